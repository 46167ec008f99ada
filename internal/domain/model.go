package domain

import (
	"time"

	"github.com/CutzuDev/itec2025/pkg/database"
)

// MessageModel is the GORM model for the chat_messages table.
type MessageModel struct {
	ID          string               `gorm:"type:varchar(64);primaryKey"`
	RoomID      string               `gorm:"type:varchar(64);index:idx_chat_messages_room_created,priority:1;not null"`
	SenderID    string               `gorm:"type:varchar(64);index;not null"`
	Body        string               `gorm:"type:text;not null"`
	Attachments database.StringArray `gorm:"type:text"`
	CreatedAt   time.Time            `gorm:"index:idx_chat_messages_room_created,priority:2;not null"`
	// Set by edits only; nil marks a message that was never edited.
	UpdatedAt   *time.Time           `gorm:"autoUpdateTime:false"`
}

// TableName specifies the table name for MessageModel.
func (MessageModel) TableName() string {
	return "chat_messages"
}

// ToDomain converts MessageModel to domain ChatMessage.
func (m *MessageModel) ToDomain() *ChatMessage {
	return &ChatMessage{
		ID:          m.ID,
		RoomID:      m.RoomID,
		SenderID:    m.SenderID,
		Body:        m.Body,
		Attachments: m.Attachments.Strings(),
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   utcPtr(m.UpdatedAt),
	}
}

// MessageToModel converts domain ChatMessage to MessageModel.
func MessageToModel(m *ChatMessage) *MessageModel {
	return &MessageModel{
		ID:          m.ID,
		RoomID:      m.RoomID,
		SenderID:    m.SenderID,
		Body:        m.Body,
		Attachments: database.StringArray(m.Attachments),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// RoomModel is the GORM model for the rooms table.
type RoomModel struct {
	ID              string `gorm:"type:varchar(64);primaryKey"`
	CreatorID       string `gorm:"type:varchar(64);index;not null"`
	Title           string `gorm:"type:varchar(200);not null"`
	Description     string `gorm:"type:text"`
	Location        string `gorm:"type:varchar(200)"`
	StartTime       *time.Time
	EndTime         *time.Time
	MaxParticipants int       `gorm:"default:0"`
	IsPublic        bool      `gorm:"default:false"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for RoomModel.
func (RoomModel) TableName() string {
	return "rooms"
}

// ToDomain converts RoomModel to domain Room.
func (m *RoomModel) ToDomain() *Room {
	return &Room{
		ID:              m.ID,
		CreatorID:       m.CreatorID,
		Title:           m.Title,
		Description:     m.Description,
		Location:        m.Location,
		StartTime:       m.StartTime,
		EndTime:         m.EndTime,
		MaxParticipants: m.MaxParticipants,
		IsPublic:        m.IsPublic,
		CreatedAt:       m.CreatedAt.UTC(),
	}
}

// RoomToModel converts domain Room to RoomModel.
func RoomToModel(r *Room) *RoomModel {
	return &RoomModel{
		ID:              r.ID,
		CreatorID:       r.CreatorID,
		Title:           r.Title,
		Description:     r.Description,
		Location:        r.Location,
		StartTime:       r.StartTime,
		EndTime:         r.EndTime,
		MaxParticipants: r.MaxParticipants,
		IsPublic:        r.IsPublic,
		CreatedAt:       r.CreatedAt,
	}
}

// RoomMemberModel is the GORM model for the room_members table.
type RoomMemberModel struct {
	RoomID   string    `gorm:"type:varchar(64);primaryKey"`
	UserID   string    `gorm:"type:varchar(64);primaryKey;index"`
	JoinedAt time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for RoomMemberModel.
func (RoomMemberModel) TableName() string {
	return "room_members"
}

// UserModel is the read-only view of the users table owned by the
// authentication provider.
type UserModel struct {
	ID        string `gorm:"type:varchar(64);primaryKey"`
	FullName  string `gorm:"type:varchar(200)"`
	AvatarURL string `gorm:"type:text"`
}

// TableName specifies the table name for UserModel.
func (UserModel) TableName() string {
	return "users"
}

// ToProfile converts UserModel to SenderProfile.
func (m *UserModel) ToProfile() *SenderProfile {
	return &SenderProfile{ID: m.ID, FullName: m.FullName, AvatarURL: m.AvatarURL}
}

// Models lists every model the migrate command creates.
func Models() []interface{} {
	return []interface{}{&MessageModel{}, &RoomModel{}, &RoomMemberModel{}, &UserModel{}}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
