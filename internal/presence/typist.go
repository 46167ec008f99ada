package presence

import (
	"context"
	"sync"
	"time"

	"github.com/CutzuDev/itec2025/internal/clock"
	"github.com/CutzuDev/itec2025/internal/domain"
)

// DefaultQuietPeriod is how long after the last keystroke a stop is announced.
const DefaultQuietPeriod = 2 * time.Second

// Announcer is the publishing half of a Broadcaster.
type Announcer interface {
	AnnounceTyping(ctx context.Context, roomID, userID, displayName string)
	AnnounceStopTyping(ctx context.Context, roomID, userID, displayName string)
}

// Typist debounces one user's keystrokes in one room into start and stop
// signals. Signals are published in order on a background goroutine so a
// slow transport never blocks the caller.
type Typist struct {
	announcer   Announcer
	clock       clock.Clock
	quietPeriod time.Duration

	roomID      string
	userID      string
	displayName string

	mu     sync.Mutex
	timer  clock.Timer
	closed bool

	signals chan domain.TypingKind
	done    chan struct{}
}

// NewTypist creates a Typist. A nil clock uses real time.
func NewTypist(announcer Announcer, clk clock.Clock, quietPeriod time.Duration, roomID, userID, displayName string) *Typist {
	if clk == nil {
		clk = clock.Real{}
	}
	if quietPeriod <= 0 {
		quietPeriod = DefaultQuietPeriod
	}
	t := &Typist{
		announcer:   announcer,
		clock:       clk,
		quietPeriod: quietPeriod,
		roomID:      roomID,
		userID:      userID,
		displayName: displayName,
		signals:     make(chan domain.TypingKind, 16),
		done:        make(chan struct{}),
	}
	go t.run()
	return t
}

// Keystroke announces start and re-arms the quiet timer.
func (t *Typist) Keystroke() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}

	t.enqueue(domain.TypingStart)

	if t.timer != nil {
		t.timer.Stop()
	}
	var timer clock.Timer
	timer = t.clock.AfterFunc(t.quietPeriod, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		// A newer keystroke replaced this timer.
		if t.closed || t.timer != timer {
			return
		}
		t.timer = nil
		t.enqueue(domain.TypingStop)
	})
	t.timer = timer
}

// Sent cancels the quiet timer and announces stop immediately.
func (t *Typist) Sent() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.enqueue(domain.TypingStop)
}

// Close cancels the quiet timer and discards signals not yet published. A
// user who was typing, or had signals pending, gets one final stop, so Close
// waits for at most the announcement in flight plus that stop.
func (t *Typist) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	typing := t.timer != nil
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	pending := false
drain:
	for {
		select {
		case <-t.signals:
			pending = true
		default:
			break drain
		}
	}
	if typing || pending {
		t.enqueue(domain.TypingStop)
	}
	close(t.signals)
	t.mu.Unlock()

	<-t.done
}

// enqueue must be called with t.mu held. A full queue drops the signal;
// typing state is advisory.
func (t *Typist) enqueue(kind domain.TypingKind) {
	select {
	case t.signals <- kind:
	default:
	}
}

func (t *Typist) run() {
	defer close(t.done)
	ctx := context.Background()
	for kind := range t.signals {
		if kind == domain.TypingStart {
			t.announcer.AnnounceTyping(ctx, t.roomID, t.userID, t.displayName)
		} else {
			t.announcer.AnnounceStopTyping(ctx, t.roomID, t.userID, t.displayName)
		}
	}
}
