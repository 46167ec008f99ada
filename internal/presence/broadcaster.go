// Package presence broadcasts ephemeral typing signals per room.
package presence

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/CutzuDev/itec2025/internal/domain"
	"github.com/CutzuDev/itec2025/pkg/log"
	"github.com/CutzuDev/itec2025/pkg/pubsub"
)

const defaultPublishTimeout = 2 * time.Second

// Broadcaster publishes and subscribes to typing signals. Signals are never
// persisted and a failed publish is dropped.
type Broadcaster struct {
	pub     pubsub.Publisher
	fanout  *pubsub.Fanout
	timeout time.Duration
}

// NewBroadcaster creates a Broadcaster. timeout bounds every publish.
func NewBroadcaster(pub pubsub.Publisher, fanout *pubsub.Fanout, timeout time.Duration) *Broadcaster {
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &Broadcaster{pub: pub, fanout: fanout, timeout: timeout}
}

// AnnounceTyping tells the room that userID started typing.
func (b *Broadcaster) AnnounceTyping(ctx context.Context, roomID, userID, displayName string) {
	b.announce(ctx, domain.TypingSignal{RoomID: roomID, UserID: userID, UserDisplayName: displayName, Kind: domain.TypingStart})
}

// AnnounceStopTyping tells the room that userID stopped typing.
func (b *Broadcaster) AnnounceStopTyping(ctx context.Context, roomID, userID, displayName string) {
	b.announce(ctx, domain.TypingSignal{RoomID: roomID, UserID: userID, UserDisplayName: displayName, Kind: domain.TypingStop})
}

func (b *Broadcaster) announce(ctx context.Context, sig domain.TypingSignal) {
	if err := b.publish(ctx, sig); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).
			Str(log.FieldRoomID, sig.RoomID).
			Str(log.FieldUserID, sig.UserID).
			Str("kind", string(sig.Kind)).
			Msg("typing signal dropped")
	}
}

func (b *Broadcaster) publish(ctx context.Context, sig domain.TypingSignal) error {
	eventType := pubsub.EventTypingStart
	if sig.Kind == domain.TypingStop {
		eventType = pubsub.EventTypingStop
	}

	event, err := pubsub.NewEvent(eventType, sig.RoomID, sig)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
	defer cancel()

	if err := b.pub.Publish(ctx, pubsub.RoomTypingChannel(sig.RoomID), event); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	return nil
}

// Subscribe delivers typing signals of users other than selfID.
func (b *Broadcaster) Subscribe(ctx context.Context, roomID, selfID string, onStart, onStop func(domain.TypingSignal)) (*Subscription, error) {
	if b.fanout == nil {
		return nil, fmt.Errorf("broadcaster has no subscriber")
	}

	sub := &Subscription{}
	release, err := b.fanout.Subscribe(ctx, pubsub.RoomTypingChannel(roomID), func(ev *pubsub.Event) {
		if sub.closed.Load() || ev.RoomID != roomID {
			return
		}
		var sig domain.TypingSignal
		if err := ev.UnmarshalPayload(&sig); err != nil || sig.UserID == "" {
			return
		}
		if sig.UserID == selfID {
			return
		}
		switch ev.Type {
		case pubsub.EventTypingStart:
			if onStart != nil {
				onStart(sig)
			}
		case pubsub.EventTypingStop:
			if onStop != nil {
				onStop(sig)
			}
		}
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	sub.release = release
	return sub, nil
}

// Subscription is one live typing subscription.
type Subscription struct {
	closed  atomic.Bool
	once    sync.Once
	release func()
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
