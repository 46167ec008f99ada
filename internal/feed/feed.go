// Package feed carries row-level change notifications for chat messages,
// scoped per room.
package feed

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/CutzuDev/itec2025/internal/domain"
	"github.com/CutzuDev/itec2025/pkg/log"
	"github.com/CutzuDev/itec2025/pkg/pubsub"
)

// Kind is the kind of a change event.
type Kind string

const (
	KindInsert Kind = "insert"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// ChangeEvent is one insert, update or delete on the message store. Insert
// and update carry the full record; delete carries only the ids.
type ChangeEvent struct {
	Kind      Kind
	RoomID    string
	MessageID string
	Message   *domain.ChatMessage
}

type deletePayload struct {
	ID     string `json:"id"`
	RoomID string `json:"room_id"`
}

// Handlers receives the events of one subscription. Nil callbacks are skipped.
type Handlers struct {
	OnInsert func(*domain.ChatMessage)
	OnUpdate func(*domain.ChatMessage)
	OnDelete func(messageID string)
}

// Feed publishes and subscribes to room change events.
type Feed struct {
	pub    pubsub.Publisher
	fanout *pubsub.Fanout
}

// New creates a Feed. fanout may be nil for a publish-only feed.
func New(pub pubsub.Publisher, fanout *pubsub.Fanout) *Feed {
	return &Feed{pub: pub, fanout: fanout}
}

// Publish sends a change event to the room's channel.
func (f *Feed) Publish(ctx context.Context, ev ChangeEvent) error {
	var (
		eventType string
		payload   interface{}
	)
	switch ev.Kind {
	case KindInsert:
		eventType, payload = pubsub.EventMessageInsert, ev.Message
	case KindUpdate:
		eventType, payload = pubsub.EventMessageUpdate, ev.Message
	case KindDelete:
		eventType, payload = pubsub.EventMessageDelete, deletePayload{ID: ev.MessageID, RoomID: ev.RoomID}
	default:
		return fmt.Errorf("unknown change kind: %q", ev.Kind)
	}
	if ev.Kind != KindDelete && ev.Message == nil {
		return fmt.Errorf("%s event without message", ev.Kind)
	}

	event, err := pubsub.NewEvent(eventType, ev.RoomID, payload)
	if err != nil {
		return fmt.Errorf("failed to encode change event: %w", err)
	}
	if err := f.pub.Publish(ctx, pubsub.RoomMessagesChannel(ev.RoomID), event); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	return nil
}

// Subscribe starts delivering the room's change events to h. Only events
// published after Subscribe returns are delivered; there is no replay.
func (f *Feed) Subscribe(ctx context.Context, roomID string, h Handlers) (*Subscription, error) {
	if f.fanout == nil {
		return nil, fmt.Errorf("feed has no subscriber")
	}

	sub := &Subscription{roomID: roomID}
	release, err := f.fanout.Subscribe(ctx, pubsub.RoomMessagesChannel(roomID), func(ev *pubsub.Event) {
		if sub.closed.Load() || ev.RoomID != roomID {
			return
		}
		dispatch(roomID, ev, h)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	sub.release = release

	l := log.Ctx(ctx)
	l.Debug().Str(log.FieldRoomID, roomID).Msg("subscribed to change feed")
	return sub, nil
}

func dispatch(roomID string, ev *pubsub.Event, h Handlers) {
	switch ev.Type {
	case pubsub.EventMessageInsert, pubsub.EventMessageUpdate:
		var msg domain.ChatMessage
		if err := ev.UnmarshalPayload(&msg); err != nil || msg.ID == "" {
			l := log.L()
			l.Warn().Err(err).Str(log.FieldRoomID, roomID).Str(log.FieldEventType, ev.Type).Msg("dropping malformed change event")
			return
		}
		if ev.Type == pubsub.EventMessageInsert {
			if h.OnInsert != nil {
				h.OnInsert(&msg)
			}
		} else if h.OnUpdate != nil {
			h.OnUpdate(&msg)
		}
	case pubsub.EventMessageDelete:
		var p deletePayload
		if err := ev.UnmarshalPayload(&p); err != nil || p.ID == "" {
			l := log.L()
			l.Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("dropping malformed delete event")
			return
		}
		if h.OnDelete != nil {
			h.OnDelete(p.ID)
		}
	}
}

// Subscription is one live change-feed subscription.
type Subscription struct {
	roomID  string
	closed  atomic.Bool
	once    sync.Once
	release func()
}

// RoomID returns the subscribed room.
func (s *Subscription) RoomID() string {
	return s.roomID
}

// Unsubscribe stops delivery. Calling it more than once is safe.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.closed.Store(true)
		if s.release != nil {
			s.release()
		}
	})
}
