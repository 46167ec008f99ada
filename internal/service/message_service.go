package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/CutzuDev/itec2025/internal/audit"
	"github.com/CutzuDev/itec2025/internal/domain"
	"github.com/CutzuDev/itec2025/internal/feed"
	"github.com/CutzuDev/itec2025/internal/idgen"
	"github.com/CutzuDev/itec2025/internal/profile"
	"github.com/CutzuDev/itec2025/internal/repository"
	"github.com/CutzuDev/itec2025/pkg/log"
)

// messageServiceImpl implements MessageService interface.
type messageServiceImpl struct {
	repo           repository.MessageRepository
	rooms          repository.RoomRepository
	publisher      ChangePublisher
	directory      profile.Directory
	ids            idgen.Generator
	maxAttachments int
	publishTimeout time.Duration
	now            func() time.Time
}

const defaultPublishTimeout = 2 * time.Second

// MessageServiceOption configures a message service.
type MessageServiceOption func(*messageServiceImpl)

// WithMaxAttachments limits the attachments of one message. Zero means no limit.
func WithMaxAttachments(n int) MessageServiceOption {
	return func(s *messageServiceImpl) { s.maxAttachments = n }
}

// WithPublishTimeout bounds how long one change event may take to publish.
func WithPublishTimeout(d time.Duration) MessageServiceOption {
	return func(s *messageServiceImpl) {
		if d > 0 {
			s.publishTimeout = d
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) MessageServiceOption {
	return func(s *messageServiceImpl) { s.now = now }
}

// NewMessageService creates a new message service.
func NewMessageService(
	repo repository.MessageRepository,
	rooms repository.RoomRepository,
	publisher ChangePublisher,
	directory profile.Directory,
	ids idgen.Generator,
	opts ...MessageServiceOption,
) MessageService {
	s := &messageServiceImpl{
		repo:      repo,
		rooms:     rooms,
		publisher: publisher,
		directory: directory,
		ids:       ids,
		now:       time.Now,

		publishTimeout: defaultPublishTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// timestamp returns the current time at the precision every store keeps.
func (s *messageServiceImpl) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func persistenceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrPersistence, op, err)
}

// Append stores a new message and announces it on the room's feed.
func (s *messageServiceImpl) Append(ctx context.Context, in *domain.NewMessage) (*domain.ChatMessage, error) {
	in.Normalize()
	if in.Empty() {
		return nil, domain.ErrEmptyMessage
	}
	if s.maxAttachments > 0 && len(in.Attachments) > s.maxAttachments {
		return nil, domain.ErrTooManyAttachments
	}

	ctx = log.WithRoom(ctx, in.RoomID)

	if _, err := s.rooms.GetByID(ctx, in.RoomID); err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, persistenceError("append", fmt.Errorf("room %s does not exist", in.RoomID))
		}
		return nil, persistenceError("append", err)
	}

	if in.ID != "" {
		// A retried send reuses its id; the first successful write wins.
		existing, err := s.repo.GetByID(ctx, in.ID)
		if err == nil {
			if existing.SenderID != in.SenderID || existing.RoomID != in.RoomID {
				return nil, persistenceError("append", fmt.Errorf("message id %s already in use", in.ID))
			}
			existing.Sender = s.directory.Lookup(ctx, existing.SenderID)
			return existing, nil
		}
		if !errors.Is(err, repository.ErrMessageNotFound) {
			return nil, persistenceError("append", err)
		}
	} else {
		id, err := s.ids.Generate()
		if err != nil {
			return nil, err
		}
		in.ID = id
	}

	msg := &domain.ChatMessage{
		ID:          in.ID,
		RoomID:      in.RoomID,
		SenderID:    in.SenderID,
		Body:        in.Body,
		Attachments: in.Attachments,
		CreatedAt:   s.timestamp(),
	}
	if err := s.repo.Create(ctx, msg); err != nil {
		return nil, persistenceError("append", err)
	}

	s.publish(ctx, feed.ChangeEvent{Kind: feed.KindInsert, RoomID: msg.RoomID, MessageID: msg.ID, Message: msg})
	audit.LogTarget(ctx, audit.ActionSendMessage, msg.SenderID, msg.ID, "message sent")

	out := msg.Clone()
	out.Sender = s.directory.Lookup(ctx, out.SenderID)
	return out, nil
}

// Edit replaces the body of a message. Only the sender may edit.
func (s *messageServiceImpl) Edit(ctx context.Context, messageID, senderID, body string) (*domain.ChatMessage, error) {
	current, err := s.repo.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, persistenceError("edit", err)
	}
	ctx = log.WithRoom(ctx, current.RoomID)

	if current.SenderID != senderID {
		audit.LogTarget(ctx, audit.ActionAccessDenied, senderID, messageID, "edit of another user's message rejected")
		return nil, domain.ErrAuthorization
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return nil, domain.ErrEmptyMessage
	}
	if body == current.Body {
		current.Sender = s.directory.Lookup(ctx, current.SenderID)
		return current, nil
	}

	updated := current.Clone()
	updated.Body = body
	now := s.timestamp()
	updated.UpdatedAt = &now

	if err := s.repo.Update(ctx, updated); err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, persistenceError("edit", err)
	}

	s.publish(ctx, feed.ChangeEvent{Kind: feed.KindUpdate, RoomID: updated.RoomID, MessageID: updated.ID, Message: updated})
	audit.LogTarget(ctx, audit.ActionEditMessage, senderID, messageID, "message edited")

	out := updated.Clone()
	out.Sender = s.directory.Lookup(ctx, out.SenderID)
	return out, nil
}

// Remove deletes a message of roomID. Only the sender may delete.
func (s *messageServiceImpl) Remove(ctx context.Context, messageID, senderID, roomID string) error {
	ctx = log.WithRoom(ctx, roomID)

	current, err := s.repo.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return domain.ErrNotFound
		}
		return persistenceError("remove", err)
	}
	if current.RoomID != roomID {
		return domain.ErrNotFound
	}
	if current.SenderID != senderID {
		audit.LogTarget(ctx, audit.ActionAccessDenied, senderID, messageID, "delete of another user's message rejected")
		return domain.ErrAuthorization
	}

	if err := s.repo.Delete(ctx, messageID, senderID); err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return domain.ErrNotFound
		}
		return persistenceError("remove", err)
	}

	s.publish(ctx, feed.ChangeEvent{Kind: feed.KindDelete, RoomID: roomID, MessageID: messageID})
	audit.LogTarget(ctx, audit.ActionDeleteMessage, senderID, messageID, "message deleted")
	return nil
}

// List returns the room's messages in display order with sender metadata.
func (s *messageServiceImpl) List(ctx context.Context, roomID string) ([]domain.ChatMessage, error) {
	messages, err := s.repo.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, persistenceError("list", err)
	}

	senders := make([]string, 0, len(messages))
	for _, m := range messages {
		senders = append(senders, m.SenderID)
	}
	profiles := s.directory.LookupMany(ctx, senders)
	for i := range messages {
		messages[i].Sender = profiles[messages[i].SenderID]
	}
	return messages, nil
}

// publish announces a committed write. The write already succeeded, so a
// failure here is only logged; views reconcile on their next load. The
// caller going away must not drop the event, so the request context only
// contributes its values.
func (s *messageServiceImpl) publish(ctx context.Context, ev feed.ChangeEvent) {
	if ev.Message != nil {
		ev.Message = ev.Message.Clone()
		ev.Message.Sender = nil
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pctx, ev); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).
			Str(log.FieldMessageID, ev.MessageID).
			Str(log.FieldEventType, string(ev.Kind)).
			Msg("failed to publish change event")
	}
}
