// Package roomview ties the change feed, the typing channel and the
// projection together into one live view of a room.
package roomview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/CutzuDev/itec2025/internal/audit"
	"github.com/CutzuDev/itec2025/internal/clock"
	"github.com/CutzuDev/itec2025/internal/domain"
	"github.com/CutzuDev/itec2025/internal/feed"
	"github.com/CutzuDev/itec2025/internal/idgen"
	"github.com/CutzuDev/itec2025/internal/presence"
	"github.com/CutzuDev/itec2025/internal/profile"
	"github.com/CutzuDev/itec2025/internal/projection"
	"github.com/CutzuDev/itec2025/internal/service"
	"github.com/CutzuDev/itec2025/pkg/log"
)

// Listener receives the changes of a view, typically to render them. Feed
// events, local operations and typing timers call it from different
// goroutines, so implementations must be safe for concurrent use.
type Listener interface {
	Snapshot(roomID string, entries []projection.Entry)
	Inserted(roomID string, entry projection.Entry)
	Updated(roomID string, entry projection.Entry)
	Deleted(roomID, messageID string)
	TypingChanged(roomID string, names []string)
}

// ChangeFeed is the subscribing half of feed.Feed.
type ChangeFeed interface {
	Subscribe(ctx context.Context, roomID string, h feed.Handlers) (*feed.Subscription, error)
}

// TypingChannel publishes and subscribes to typing signals.
type TypingChannel interface {
	presence.Announcer
	Subscribe(ctx context.Context, roomID, selfID string, onStart, onStop func(domain.TypingSignal)) (*presence.Subscription, error)
}

// AccessChecker decides whether a user may open a room.
type AccessChecker interface {
	CheckAccess(ctx context.Context, userID, roomID string) error
}

// Viewer identifies the user behind a view.
type Viewer struct {
	UserID      string
	DisplayName string
}

// Deps are the collaborators shared by every view.
type Deps struct {
	Messages  service.MessageService
	Access    AccessChecker
	Feed      ChangeFeed
	Presence  TypingChannel
	Directory profile.Directory
	IDs       idgen.Generator
	Clock     clock.Clock
}

// Config holds the view timings.
type Config struct {
	TypingQuietPeriod time.Duration
	TypingExpiry      time.Duration
}

// Manager opens room views.
type Manager struct {
	deps Deps
	cfg  Config
}

// NewManager creates a Manager. A nil clock uses real time.
func NewManager(deps Deps, cfg Config) *Manager {
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	return &Manager{deps: deps, cfg: cfg}
}

// SendError is returned by Send when the message was not stored. Draft is
// the input to offer back to the user.
type SendError struct {
	Draft domain.NewMessage
	Err   error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send failed: %v", e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// Subscription is one open view of a room. It owns exactly one change-feed
// subscription and one typing subscription.
type Subscription struct {
	roomID   string
	viewer   Viewer
	self     *domain.SenderProfile
	deps     Deps
	listener Listener

	ctx    context.Context
	cancel context.CancelFunc

	proj   *projection.Projection
	typing *projection.TypingSet
	typist *presence.Typist
	jobs   *queue

	feedSub     *feed.Subscription
	presenceSub *presence.Subscription

	closed    atomic.Bool
	closeOnce sync.Once
	started   bool
}

// Open subscribes to the room's change feed, loads the history, merges it
// with the events that arrived meanwhile and goes live. Typing signals are
// subscribed last.
func (m *Manager) Open(ctx context.Context, roomID string, viewer Viewer, listener Listener) (*Subscription, error) {
	ctx = log.WithRoom(ctx, roomID)

	if m.deps.Access != nil {
		if err := m.deps.Access.CheckAccess(ctx, viewer.UserID, roomID); err != nil {
			return nil, err
		}
	}

	viewCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &Subscription{
		roomID:   roomID,
		viewer:   viewer,
		deps:     m.deps,
		listener: listener,
		ctx:      viewCtx,
		cancel:   cancel,
		proj:     projection.New(),
		jobs:     newQueue(),
	}

	s.self = m.deps.Directory.Lookup(ctx, viewer.UserID)
	if s.viewer.DisplayName == "" {
		s.viewer.DisplayName = s.self.FullName
	}

	// Events queue up until the snapshot is merged.
	feedSub, err := m.deps.Feed.Subscribe(ctx, roomID, feed.Handlers{
		OnInsert: func(msg *domain.ChatMessage) { s.jobs.push(func() { s.applyInsert(msg) }) },
		OnUpdate: func(msg *domain.ChatMessage) { s.jobs.push(func() { s.applyUpdate(msg) }) },
		OnDelete: func(id string) { s.jobs.push(func() { s.applyDelete(id) }) },
	})
	if err != nil {
		cancel()
		return nil, err
	}
	s.feedSub = feedSub

	snapshot, err := m.deps.Messages.List(ctx, roomID)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.proj.Merge(snapshot)
	if listener != nil {
		listener.Snapshot(roomID, s.proj.Messages())
	}

	s.typing = projection.NewTypingSet(m.deps.Clock, m.cfg.TypingExpiry, viewer.UserID, func(names []string) {
		if s.closed.Load() || s.listener == nil {
			return
		}
		s.listener.TypingChanged(roomID, names)
	})
	s.typist = presence.NewTypist(m.deps.Presence, m.deps.Clock, m.cfg.TypingQuietPeriod, roomID, viewer.UserID, s.viewer.DisplayName)
	s.started = true
	go s.jobs.run()

	presenceSub, err := m.deps.Presence.Subscribe(ctx, roomID, viewer.UserID,
		func(sig domain.TypingSignal) { s.jobs.push(func() { s.typingStarted(sig) }) },
		func(sig domain.TypingSignal) { s.jobs.push(func() { s.typing.Stop(sig.UserID) }) },
	)
	if err != nil {
		// Typing is advisory; the view works without it.
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("typing subscription failed")
	} else {
		s.presenceSub = presenceSub
	}

	audit.LogTarget(ctx, audit.ActionOpenRoom, viewer.UserID, roomID, "room view opened")
	return s, nil
}

// RoomID returns the room of the view.
func (s *Subscription) RoomID() string {
	return s.roomID
}

// Messages returns the current message list in display order.
func (s *Subscription) Messages() []projection.Entry {
	return s.proj.Messages()
}

// Typing returns the names of the users typing, in order of first start.
func (s *Subscription) Typing() []string {
	return s.typing.Names()
}

func (s *Subscription) applyInsert(msg *domain.ChatMessage) {
	if s.closed.Load() {
		return
	}
	if msg.Sender == nil {
		msg.Sender = s.deps.Directory.Lookup(s.ctx, msg.SenderID)
	}
	if s.proj.Insert(msg) {
		s.emitInserted(msg.ID)
	}
}

func (s *Subscription) applyUpdate(msg *domain.ChatMessage) {
	if s.closed.Load() {
		return
	}
	if s.proj.Update(msg) {
		s.emitUpdated(msg.ID)
	}
}

func (s *Subscription) applyDelete(id string) {
	if s.closed.Load() {
		return
	}
	if s.proj.Delete(id) {
		s.emitDeleted(id)
	}
}

func (s *Subscription) typingStarted(sig domain.TypingSignal) {
	name := strings.TrimSpace(sig.UserDisplayName)
	if name == "" {
		name = s.deps.Directory.Lookup(s.ctx, sig.UserID).FullName
	}
	s.typing.Start(sig.UserID, name)
}

func (s *Subscription) emitInserted(id string) {
	if s.closed.Load() || s.listener == nil {
		return
	}
	if e, ok := s.proj.Entry(id); ok {
		s.listener.Inserted(s.roomID, e)
	}
}

func (s *Subscription) emitUpdated(id string) {
	if s.closed.Load() || s.listener == nil {
		return
	}
	if e, ok := s.proj.Entry(id); ok {
		s.listener.Updated(s.roomID, e)
	}
}

func (s *Subscription) emitDeleted(id string) {
	if s.closed.Load() || s.listener == nil {
		return
	}
	s.listener.Deleted(s.roomID, id)
}

// Keystroke announces that the viewer is typing.
func (s *Subscription) Keystroke() {
	if s.closed.Load() {
		return
	}
	s.typist.Keystroke()
}

// Send shows the message at once and stores it. On failure the placeholder
// is withdrawn and a *SendError carrying the draft is returned.
func (s *Subscription) Send(ctx context.Context, draft domain.NewMessage) (*domain.ChatMessage, error) {
	if s.closed.Load() {
		return nil, &SendError{Draft: draft, Err: errViewClosed}
	}
	draft.RoomID = s.roomID
	draft.SenderID = s.viewer.UserID
	draft.Normalize()
	if draft.Empty() {
		return nil, &SendError{Draft: draft, Err: domain.ErrEmptyMessage}
	}
	if draft.ID == "" {
		id, err := s.deps.IDs.Generate()
		if err != nil {
			return nil, &SendError{Draft: draft, Err: err}
		}
		draft.ID = id
	}

	s.typist.Sent()

	placeholder := &domain.ChatMessage{
		ID:          draft.ID,
		RoomID:      s.roomID,
		SenderID:    s.viewer.UserID,
		Body:        draft.Body,
		Attachments: append([]string(nil), draft.Attachments...),
		CreatedAt:   s.deps.Clock.Now().UTC().Truncate(time.Millisecond),
		Sender:      s.self,
	}
	rollback := s.proj.AddPending(placeholder)
	s.emitInserted(placeholder.ID)

	in := draft
	in.Attachments = append([]string(nil), draft.Attachments...)
	msg, err := s.deps.Messages.Append(ctx, &in)
	if err != nil {
		if rollback() {
			s.emitDeleted(placeholder.ID)
		}
		return nil, &SendError{Draft: draft, Err: err}
	}

	if s.proj.Insert(msg) {
		s.emitInserted(msg.ID)
	}
	return msg, nil
}

// Edit shows the new body at once and stores it. A message that no longer
// exists is removed from the view and Edit returns nil, nil.
func (s *Subscription) Edit(ctx context.Context, messageID, body string) (*domain.ChatMessage, error) {
	if s.closed.Load() {
		return nil, errViewClosed
	}
	current, known := s.proj.Get(messageID)
	if known && current.SenderID != s.viewer.UserID {
		return nil, domain.ErrAuthorization
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, domain.ErrEmptyMessage
	}
	if known && current.Body == body {
		return current, nil
	}

	rollback, shown := s.proj.EditPending(messageID, body)
	if shown {
		s.emitUpdated(messageID)
	}

	msg, err := s.deps.Messages.Edit(ctx, messageID, s.viewer.UserID, body)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.applyDelete(messageID)
			return nil, nil
		}
		if shown && rollback() {
			s.emitUpdated(messageID)
		}
		return nil, err
	}

	if s.proj.Update(msg) {
		s.emitUpdated(msg.ID)
	}
	return msg, nil
}

// Delete hides the message at once and removes it from the store. A message
// that no longer exists is removed from the view without an error.
func (s *Subscription) Delete(ctx context.Context, messageID string) error {
	if s.closed.Load() {
		return errViewClosed
	}
	if current, known := s.proj.Get(messageID); known && current.SenderID != s.viewer.UserID {
		return domain.ErrAuthorization
	}

	rollback, hidden := s.proj.RemovePending(messageID)
	if hidden {
		s.emitDeleted(messageID)
	}

	err := s.deps.Messages.Remove(ctx, messageID, s.viewer.UserID, s.roomID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		if hidden && rollback() {
			s.emitInserted(messageID)
		}
		return err
	}

	s.applyDelete(messageID)
	return nil
}

// Close releases both subscriptions and every typing timer. Late callbacks
// are dropped. Calling Close more than once is safe.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		if s.feedSub != nil {
			s.feedSub.Unsubscribe()
		}
		if s.presenceSub != nil {
			s.presenceSub.Unsubscribe()
		}
		s.jobs.close()
		s.cancel()
		if !s.started {
			return
		}
		<-s.jobs.done
		s.typist.Close()
		s.typing.Close()
		audit.LogTarget(s.ctx, audit.ActionCloseRoom, s.viewer.UserID, s.roomID, "room view closed")
	})
}

var errViewClosed = errors.New("room view is closed")
