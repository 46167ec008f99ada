package domain

import (
	"time"
)

// Room is the chat scope of one study session. Its id is the session id.
type Room struct {
	ID              string     `json:"id"`
	CreatorID       string     `json:"creator_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	Location        string     `json:"location,omitempty"`
	StartTime       *time.Time `json:"start_time,omitempty"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	MaxParticipants int        `json:"max_participants,omitempty"`
	IsPublic        bool       `json:"is_public"`
	CreatedAt       time.Time  `json:"created_at"`
}

// CreateRoomRequest represents a create room request.
type CreateRoomRequest struct {
	ID              string     `json:"id"`
	Title           string     `json:"title" binding:"required,min=1,max=200"`
	Description     string     `json:"description"`
	Location        string     `json:"location"`
	StartTime       *time.Time `json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
	MaxParticipants int        `json:"max_participants" binding:"gte=0"`
	IsPublic        bool       `json:"is_public"`
}

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	Room
	MemberCount int  `json:"member_count"`
	IsCreator   bool `json:"is_creator"`
}

// ToResponse converts Room to RoomResponse for the given viewer.
func (r *Room) ToResponse(viewerID string, memberCount int) RoomResponse {
	return RoomResponse{
		Room:        *r,
		MemberCount: memberCount,
		IsCreator:   r.CreatorID == viewerID,
	}
}

// RoomMember is one participant of a room.
type RoomMember struct {
	UserID    string    `json:"user_id"`
	JoinedAt  time.Time `json:"joined_at"`
	IsCreator bool      `json:"is_creator"`
}
