package roomview

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CutzuDev/itec2025/internal/clock"
	"github.com/CutzuDev/itec2025/internal/domain"
	"github.com/CutzuDev/itec2025/internal/feed"
	"github.com/CutzuDev/itec2025/internal/idgen"
	"github.com/CutzuDev/itec2025/internal/presence"
	"github.com/CutzuDev/itec2025/internal/profile"
	"github.com/CutzuDev/itec2025/internal/projection"
	"github.com/CutzuDev/itec2025/internal/repository"
	"github.com/CutzuDev/itec2025/internal/service"
	"github.com/CutzuDev/itec2025/pkg/database"
	"github.com/CutzuDev/itec2025/pkg/pubsub"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

var t0 = time.Date(2025, 4, 5, 12, 0, 0, 0, time.UTC)

type env struct {
	messages service.MessageService
	repo     *repository.GormMessageRepository
	deps     Deps
	clock    *clock.Fake

	mu  sync.Mutex
	now time.Time
}

func (e *env) setNow(ts time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = ts
}

func (e *env) storeNow() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	db, err := database.New(&database.Config{Driver: "sqlite", FilePath: ":memory:", LogLevel: "silent"})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db, domain.Models()...))
	require.NoError(t, db.Create(&[]domain.UserModel{
		{ID: "alice", FullName: "Alice"},
		{ID: "bob", FullName: "Bob"},
		{ID: "carol", FullName: "Carol"},
	}).Error)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ps := pubsub.NewRedisPubSubFromClient(client, 64)
	fanout := pubsub.NewFanout(ps)
	t.Cleanup(func() {
		fanout.Close()
		ps.Close()
		client.Close()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	rooms := repository.NewGormRoomRepository(db)
	roomService := service.NewRoomService(rooms, idgen.NewULID())
	_, err = roomService.CreateRoom(ctx, "alice", &domain.CreateRoomRequest{ID: "room-1", Title: "Study"})
	require.NoError(t, err)
	_, err = roomService.JoinRoom(ctx, "bob", "room-1")
	require.NoError(t, err)

	e := &env{
		repo:  repository.NewGormMessageRepository(db),
		clock: clock.NewFake(t0),
		now:   t0,
	}
	changes := feed.New(ps, fanout)
	directory := profile.NewDirectory(repository.NewGormProfileRepository(db), nil, time.Minute)
	e.messages = service.NewMessageService(e.repo, rooms, changes, directory, idgen.NewKSUID(),
		service.WithClock(e.storeNow))

	e.deps = Deps{
		Messages:  e.messages,
		Access:    roomService,
		Feed:      changes,
		Presence:  presence.NewBroadcaster(ps, fanout, time.Second),
		Directory: directory,
		IDs:       idgen.NewKSUID(),
		Clock:     e.clock,
	}
	return e
}

func (e *env) manager(messages service.MessageService) *Manager {
	deps := e.deps
	if messages != nil {
		deps.Messages = messages
	}
	return NewManager(deps, Config{TypingQuietPeriod: 2 * time.Second, TypingExpiry: 2 * time.Second})
}

// recorder is a Listener that keeps every notification.
type recorder struct {
	mu       sync.Mutex
	snapshot []projection.Entry
	events   []string
	typing   []string
}

func (r *recorder) Snapshot(roomID string, entries []projection.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshot = entries
}

func (r *recorder) Inserted(roomID string, e projection.Entry) {
	r.add("inserted:" + e.Message.ID)
}

func (r *recorder) Updated(roomID string, e projection.Entry) {
	r.add("updated:" + e.Message.ID + ":" + e.Message.Body)
}

func (r *recorder) Deleted(roomID, messageID string) {
	r.add("deleted:" + messageID)
}

func (r *recorder) TypingChanged(roomID string, names []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.typing = append([]string(nil), names...)
}

func (r *recorder) add(ev string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) seen(ev string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, got := range r.events {
		if got == ev {
			return true
		}
	}
	return false
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func bodies(entries []projection.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Message.ID + ":" + e.Message.Body
	}
	return out
}

func TestOpenLoadsHistoryThenGoesLive(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	_, err := e.messages.Append(ctx, &domain.NewMessage{ID: "old", RoomID: "room-1", SenderID: "bob", Body: "earlier"})
	require.NoError(t, err)

	rec := &recorder{}
	view, err := e.manager(nil).Open(ctx, "room-1", Viewer{UserID: "alice"}, rec)
	require.NoError(t, err)
	defer view.Close()

	require.Len(t, rec.snapshot, 1)
	assert.Equal(t, "Bob", rec.snapshot[0].Message.Sender.FullName)

	e.setNow(t0.Add(time.Second))
	_, err = e.messages.Append(ctx, &domain.NewMessage{ID: "new", RoomID: "room-1", SenderID: "bob", Body: "later"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return rec.seen("inserted:new") }, waitFor, tick)
	assert.Equal(t, []string{"old:earlier", "new:later"}, bodies(view.Messages()))
	last := view.Messages()[1]
	assert.Equal(t, "Bob", last.Message.Sender.FullName)
	assert.False(t, last.Pending)
}

func TestOpenRequiresAccess(t *testing.T) {
	e := newEnv(t)
	_, err := e.manager(nil).Open(context.Background(), "room-1", Viewer{UserID: "carol"}, &recorder{})
	assert.ErrorIs(t, err, service.ErrNotRoomMember)

	_, err = e.manager(nil).Open(context.Background(), "missing", Viewer{UserID: "alice"}, &recorder{})
	assert.ErrorIs(t, err, service.ErrRoomNotFound)
}

// gatedMessages lets the test act between the store write and the moment
// Append returns to the view.
type gatedMessages struct {
	service.MessageService
	afterAppend func()
}

func (g *gatedMessages) Append(ctx context.Context, in *domain.NewMessage) (*domain.ChatMessage, error) {
	msg, err := g.MessageService.Append(ctx, in)
	if g.afterAppend != nil {
		g.afterAppend()
	}
	return msg, err
}

func TestOtherInsertBeforeOwnConfirmation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	bobView, err := e.manager(nil).Open(ctx, "room-1", Viewer{UserID: "bob"}, &recorder{})
	require.NoError(t, err)
	defer bobView.Close()

	aliceRec := &recorder{}
	gated := &gatedMessages{MessageService: e.messages}
	aliceView, err := e.manager(gated).Open(ctx, "room-1", Viewer{UserID: "alice"}, aliceRec)
	require.NoError(t, err)
	defer aliceView.Close()

	gated.afterAppend = func() {
		e.setNow(t0.Add(time.Second))
		_, err := bobView.Send(ctx, domain.NewMessage{ID: "m2", Body: "hi"})
		assert.NoError(t, err)
		assert.Eventually(t, func() bool { return aliceRec.seen("inserted:m2") }, waitFor, tick)
	}

	msg, err := aliceView.Send(ctx, domain.NewMessage{ID: "m1", Body: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "m1", msg.ID)

	require.Eventually(t, func() bool {
		entries := aliceView.Messages()
		return len(entries) == 2 && !entries[0].Pending && !entries[1].Pending
	}, waitFor, tick)
	assert.Equal(t, []string{"m1:hello", "m2:hi"}, bodies(aliceView.Messages()))

	require.Eventually(t, func() bool { return len(bobView.Messages()) == 2 }, waitFor, tick)
	assert.Equal(t, []string{"m1:hello", "m2:hi"}, bodies(bobView.Messages()))
}

func TestEditAndDeletePropagate(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	aliceView, err := e.manager(nil).Open(ctx, "room-1", Viewer{UserID: "alice"}, &recorder{})
	require.NoError(t, err)
	defer aliceView.Close()
	bobRec := &recorder{}
	bobView, err := e.manager(nil).Open(ctx, "room-1", Viewer{UserID: "bob"}, bobRec)
	require.NoError(t, err)
	defer bobView.Close()

	_, err = aliceView.Send(ctx, domain.NewMessage{ID: "m1", Body: "hello"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return bobRec.seen("inserted:m1") }, waitFor, tick)

	e.setNow(t0.Add(time.Minute))
	edited, err := aliceView.Edit(ctx, "m1", "hello!")
	require.NoError(t, err)
	assert.True(t, edited.Edited())
	require.Eventually(t, func() bool { return bobRec.seen("updated:m1:hello!") }, waitFor, tick)

	_, err = bobView.Edit(ctx, "m1", "hijacked")
	assert.ErrorIs(t, err, domain.ErrAuthorization)
	_, err = bobView.Edit(ctx, "m1", "hello!")
	assert.ErrorIs(t, err, domain.ErrAuthorization, "an unchanged body does not bypass the sender check")
	_, err = bobView.Edit(ctx, "m1", "   ")
	assert.ErrorIs(t, err, domain.ErrAuthorization)
	assert.ErrorIs(t, bobView.Delete(ctx, "m1"), domain.ErrAuthorization)

	require.NoError(t, aliceView.Delete(ctx, "m1"))
	require.Eventually(t, func() bool { return bobRec.seen("deleted:m1") }, waitFor, tick)
	assert.Empty(t, bobView.Messages())
	assert.Empty(t, aliceView.Messages())
}

func TestEditOfVanishedMessageRemovesItLocally(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	_, err := e.messages.Append(ctx, &domain.NewMessage{ID: "m1", RoomID: "room-1", SenderID: "alice", Body: "hello"})
	require.NoError(t, err)

	rec := &recorder{}
	view, err := e.manager(nil).Open(ctx, "room-1", Viewer{UserID: "alice"}, rec)
	require.NoError(t, err)
	defer view.Close()
	require.Len(t, view.Messages(), 1)

	// Removed behind the feed's back.
	require.NoError(t, e.repo.Delete(ctx, "m1", "alice"))

	msg, err := view.Edit(ctx, "m1", "changed")
	assert.NoError(t, err)
	assert.Nil(t, msg)
	assert.Empty(t, view.Messages())
	assert.True(t, rec.seen("deleted:m1"))

	assert.NoError(t, view.Delete(ctx, "m1"), "deleting twice is not an error")
}

type failingMessages struct {
	service.MessageService
	err error
}

func (f *failingMessages) Append(ctx context.Context, in *domain.NewMessage) (*domain.ChatMessage, error) {
	return nil, f.err
}

func (f *failingMessages) Remove(ctx context.Context, messageID, senderID, roomID string) error {
	return f.err
}

func TestFailedSendReturnsDraft(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	rec := &recorder{}
	view, err := e.manager(&failingMessages{MessageService: e.messages, err: domain.ErrPersistence}).
		Open(ctx, "room-1", Viewer{UserID: "alice"}, rec)
	require.NoError(t, err)
	defer view.Close()

	_, err = view.Send(ctx, domain.NewMessage{Body: " draft text ", Attachments: []string{"https://cdn/a.png"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPersistence)

	var sendErr *SendError
	require.ErrorAs(t, err, &sendErr)
	assert.Equal(t, "draft text", sendErr.Draft.Body)
	assert.Equal(t, []string{"https://cdn/a.png"}, sendErr.Draft.Attachments)

	assert.Empty(t, view.Messages())
	require.Equal(t, 2, rec.count(), "placeholder shown then withdrawn")

	_, err = view.Send(ctx, domain.NewMessage{Body: "   "})
	assert.ErrorIs(t, err, domain.ErrEmptyMessage)
}

func TestFailedDeleteRestoresMessage(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	_, err := e.messages.Append(ctx, &domain.NewMessage{ID: "m1", RoomID: "room-1", SenderID: "alice", Body: "keep me"})
	require.NoError(t, err)

	rec := &recorder{}
	view, err := e.manager(&failingMessages{MessageService: e.messages, err: domain.ErrPersistence}).
		Open(ctx, "room-1", Viewer{UserID: "alice"}, rec)
	require.NoError(t, err)
	defer view.Close()

	err = view.Delete(ctx, "m1")
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.Equal(t, []string{"m1:keep me"}, bodies(view.Messages()))
	assert.True(t, rec.seen("deleted:m1"))
	assert.True(t, rec.seen("inserted:m1"))
}

func TestTypingAcrossViews(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	aliceRec := &recorder{}
	aliceView, err := e.manager(nil).Open(ctx, "room-1", Viewer{UserID: "alice"}, aliceRec)
	require.NoError(t, err)
	defer aliceView.Close()
	bobView, err := e.manager(nil).Open(ctx, "room-1", Viewer{UserID: "bob"}, &recorder{})
	require.NoError(t, err)
	defer bobView.Close()

	aliceView.Keystroke()
	bobView.Keystroke()

	require.Eventually(t, func() bool { return len(aliceView.Typing()) == 1 }, waitFor, tick)
	assert.Equal(t, []string{"Bob"}, aliceView.Typing())
	require.Eventually(t, func() bool { return len(bobView.Typing()) == 1 }, waitFor, tick)
	assert.Equal(t, []string{"Alice"}, bobView.Typing())

	e.clock.Advance(2 * time.Second)
	require.Eventually(t, func() bool { return len(aliceView.Typing()) == 0 }, waitFor, tick)

	bobView.Keystroke()
	require.Eventually(t, func() bool { return len(aliceView.Typing()) == 1 }, waitFor, tick)
	_, err = bobView.Send(ctx, domain.NewMessage{Body: "done"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(aliceView.Typing()) == 0 }, waitFor, tick)

	aliceRec.mu.Lock()
	assert.Empty(t, aliceRec.typing)
	aliceRec.mu.Unlock()
}

func TestCloseIsIdempotentAndDetaches(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	rec := &recorder{}
	view, err := e.manager(nil).Open(ctx, "room-1", Viewer{UserID: "alice"}, rec)
	require.NoError(t, err)

	view.Close()
	view.Close()

	_, err = e.messages.Append(ctx, &domain.NewMessage{ID: "late", RoomID: "room-1", SenderID: "bob", Body: "anyone?"})
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, rec.count())

	_, err = view.Send(ctx, domain.NewMessage{Body: "after close"})
	assert.Error(t, err)
	assert.Zero(t, e.clock.Pending(), "no typing timers survive close")
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	registry := e.manager(nil).NewRegistry(Viewer{UserID: "alice"}, &recorder{})

	first, err := registry.Open(ctx, "room-1")
	require.NoError(t, err)
	again, err := registry.Open(ctx, "room-1")
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Equal(t, 1, registry.Len())

	_, err = registry.Open(ctx, "missing")
	assert.Error(t, err)
	assert.Equal(t, 1, registry.Len())

	registry.Close("room-1")
	_, ok := registry.Get("room-1")
	assert.False(t, ok)

	_, err = registry.Open(ctx, "room-1")
	require.NoError(t, err)
	registry.CloseAll()
	assert.Zero(t, registry.Len())
}
