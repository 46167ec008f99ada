package presence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CutzuDev/itec2025/internal/clock"
)

type recordingAnnouncer struct {
	mu      sync.Mutex
	signals []string
}

func (a *recordingAnnouncer) AnnounceTyping(ctx context.Context, roomID, userID, displayName string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.signals = append(a.signals, "start:"+userID)
}

func (a *recordingAnnouncer) AnnounceStopTyping(ctx context.Context, roomID, userID, displayName string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.signals = append(a.signals, "stop:"+userID)
}

func (a *recordingAnnouncer) get() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.signals...)
}

func waitSignals(t *testing.T, a *recordingAnnouncer, n int) []string {
	t.Helper()
	require.Eventually(t, func() bool { return len(a.get()) >= n }, time.Second, 5*time.Millisecond)
	return a.get()
}

func TestTypist_QuietPeriodStop(t *testing.T) {
	clk := clock.NewFake(time.Now())
	ann := &recordingAnnouncer{}
	typist := NewTypist(ann, clk, 2*time.Second, "room-1", "alice", "Alice")
	defer typist.Close()

	typist.Keystroke()
	assert.Equal(t, []string{"start:alice"}, waitSignals(t, ann, 1))

	clk.Advance(1999 * time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, ann.get(), 1, "no stop before the quiet period")

	clk.Advance(time.Millisecond)
	assert.Equal(t, []string{"start:alice", "stop:alice"}, waitSignals(t, ann, 2))
}

func TestTypist_KeystrokeRearmsTimer(t *testing.T) {
	clk := clock.NewFake(time.Now())
	ann := &recordingAnnouncer{}
	typist := NewTypist(ann, clk, 2*time.Second, "room-1", "alice", "Alice")
	defer typist.Close()

	typist.Keystroke()
	clk.Advance(1500 * time.Millisecond)
	typist.Keystroke()
	clk.Advance(1500 * time.Millisecond)

	waitSignals(t, ann, 2)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []string{"start:alice", "start:alice"}, ann.get())
	assert.Equal(t, 1, clk.Pending(), "only one quiet timer is armed")

	clk.Advance(500 * time.Millisecond)
	assert.Equal(t, []string{"start:alice", "start:alice", "stop:alice"}, waitSignals(t, ann, 3))
}

func TestTypist_SentStopsImmediately(t *testing.T) {
	clk := clock.NewFake(time.Now())
	ann := &recordingAnnouncer{}
	typist := NewTypist(ann, clk, 2*time.Second, "room-1", "alice", "Alice")
	defer typist.Close()

	typist.Keystroke()
	typist.Sent()
	assert.Equal(t, []string{"start:alice", "stop:alice"}, waitSignals(t, ann, 2))
	assert.Equal(t, 0, clk.Pending())

	clk.Advance(5 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, ann.get(), 2, "cancelled timer does not fire")
}

func TestTypist_Close(t *testing.T) {
	clk := clock.NewFake(time.Now())
	ann := &recordingAnnouncer{}
	typist := NewTypist(ann, clk, 2*time.Second, "room-1", "alice", "Alice")

	typist.Keystroke()
	waitSignals(t, ann, 1)
	typist.Close()
	typist.Close()

	assert.Equal(t, []string{"start:alice", "stop:alice"}, ann.get())
	assert.Equal(t, 0, clk.Pending())

	typist.Keystroke()
	typist.Sent()
	assert.Len(t, ann.get(), 2)
}

// stalledAnnouncer blocks the first announcement until released.
type stalledAnnouncer struct {
	recordingAnnouncer
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (a *stalledAnnouncer) AnnounceTyping(ctx context.Context, roomID, userID, displayName string) {
	a.once.Do(func() {
		close(a.entered)
		<-a.release
	})
	a.recordingAnnouncer.AnnounceTyping(ctx, roomID, userID, displayName)
}

func TestTypist_CloseDiscardsQueuedSignals(t *testing.T) {
	clk := clock.NewFake(time.Now())
	ann := &stalledAnnouncer{entered: make(chan struct{}), release: make(chan struct{})}
	typist := NewTypist(ann, clk, 2*time.Second, "room-1", "alice", "Alice")

	typist.Keystroke()
	<-ann.entered
	for i := 0; i < 10; i++ {
		typist.Keystroke()
	}

	closed := make(chan struct{})
	go func() {
		typist.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while an announcement was in flight")
	case <-time.After(20 * time.Millisecond):
	}
	close(ann.release)

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close did not return")
	}
	assert.Equal(t, []string{"start:alice", "stop:alice"}, ann.get(), "queued starts are dropped")
}

func TestTypist_CloseAfterSentKeepsStop(t *testing.T) {
	clk := clock.NewFake(time.Now())
	ann := &stalledAnnouncer{entered: make(chan struct{}), release: make(chan struct{})}
	typist := NewTypist(ann, clk, 2*time.Second, "room-1", "alice", "Alice")

	typist.Keystroke()
	<-ann.entered
	typist.Sent()

	go func() {
		time.Sleep(10 * time.Millisecond)
		close(ann.release)
	}()
	typist.Close()

	assert.Equal(t, []string{"start:alice", "stop:alice"}, ann.get())
}
