package service

import (
	"context"
	"io"

	"github.com/CutzuDev/itec2025/internal/domain"
	"github.com/CutzuDev/itec2025/internal/feed"
)

// MessageService is the message store adapter: durable CRUD for chat
// messages plus change notifications.
type MessageService interface {
	Append(ctx context.Context, msg *domain.NewMessage) (*domain.ChatMessage, error)
	Edit(ctx context.Context, messageID, senderID, body string) (*domain.ChatMessage, error)
	Remove(ctx context.Context, messageID, senderID, roomID string) error
	List(ctx context.Context, roomID string) ([]domain.ChatMessage, error)
}

// RoomService manages rooms and membership.
type RoomService interface {
	CreateRoom(ctx context.Context, userID string, req *domain.CreateRoomRequest) (*domain.RoomResponse, error)
	GetRoom(ctx context.Context, userID, roomID string) (*domain.RoomResponse, error)
	JoinRoom(ctx context.Context, userID, roomID string) (*domain.RoomResponse, error)
	GetMyRooms(ctx context.Context, userID string) ([]domain.RoomResponse, error)
	LeaveRoom(ctx context.Context, userID, roomID string) error
	ListMembers(ctx context.Context, userID, roomID string) ([]domain.RoomMember, error)
	// RemoveMember is allowed to the room creator only.
	RemoveMember(ctx context.Context, actorID, roomID, memberID string) error
	// CheckAccess returns nil when userID may read and write in roomID.
	CheckAccess(ctx context.Context, userID, roomID string) error
}

// ChangePublisher publishes change events for committed writes.
type ChangePublisher interface {
	Publish(ctx context.Context, ev feed.ChangeEvent) error
}

// AttachmentService stores files attached to chat messages.
type AttachmentService interface {
	Upload(ctx context.Context, userID, roomID string, file *domain.Upload) (*domain.AttachmentResponse, error)
	Open(ctx context.Context, key string) (io.ReadCloser, string, error)
}
