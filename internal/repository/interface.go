package repository

import (
	"context"
	"errors"

	"github.com/CutzuDev/itec2025/internal/domain"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrRoomNotFound    = errors.New("room not found")
	ErrMemberNotFound  = errors.New("room member not found")
)

// MessageRepository defines the interface for message persistence.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.ChatMessage) error
	GetByID(ctx context.Context, id string) (*domain.ChatMessage, error)
	// Update rewrites body and updated_at of a message owned by msg.SenderID.
	Update(ctx context.Context, msg *domain.ChatMessage) error
	// Delete removes a message owned by senderID.
	Delete(ctx context.Context, id, senderID string) error
	// ListByRoom returns the messages of a room ordered by created_at, id.
	ListByRoom(ctx context.Context, roomID string) ([]domain.ChatMessage, error)
	Close() error
}

// RoomRepository defines the interface for room and membership persistence.
type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	GetByID(ctx context.Context, id string) (*domain.Room, error)
	ListForUser(ctx context.Context, userID string) ([]domain.Room, error)
	AddMember(ctx context.Context, roomID, userID string) error
	// RemoveMember deletes a membership; ErrMemberNotFound when there is none.
	RemoveMember(ctx context.Context, roomID, userID string) error
	// ListMembers returns the members of a room in join order.
	ListMembers(ctx context.Context, roomID string) ([]domain.RoomMember, error)
	IsMember(ctx context.Context, roomID, userID string) (bool, error)
	CountMembers(ctx context.Context, roomID string) (int, error)
}

// ProfileRepository reads sender display metadata.
type ProfileRepository interface {
	GetByIDs(ctx context.Context, ids []string) (map[string]*domain.SenderProfile, error)
}
