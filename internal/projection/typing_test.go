package projection

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/CutzuDev/itec2025/internal/clock"
)

type changeLog struct {
	mu    sync.Mutex
	calls [][]string
}

func (c *changeLog) record(names []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, names)
}

func (c *changeLog) last() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.calls) == 0 {
		return nil
	}
	return c.calls[len(c.calls)-1]
}

func (c *changeLog) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func TestTypingSet_ExpiresAfterExactlyTwoSeconds(t *testing.T) {
	clk := clock.NewFake(time.Now())
	log := &changeLog{}
	set := NewTypingSet(clk, 2*time.Second, "alice", log.record)
	defer set.Close()

	set.Start("bob", "Bob")
	assert.Equal(t, []string{"Bob"}, set.Names())

	clk.Advance(2*time.Second - time.Nanosecond)
	assert.Equal(t, []string{"Bob"}, set.Names(), "still typing just before expiry")

	clk.Advance(time.Nanosecond)
	assert.Empty(t, set.Names(), "gone at expiry")
	assert.Empty(t, log.last())
}

func TestTypingSet_StartResetsExpiry(t *testing.T) {
	clk := clock.NewFake(time.Now())
	set := NewTypingSet(clk, 2*time.Second, "alice", nil)
	defer set.Close()

	set.Start("bob", "Bob")
	clk.Advance(1500 * time.Millisecond)
	set.Start("bob", "Bob")
	clk.Advance(1500 * time.Millisecond)
	assert.Equal(t, []string{"Bob"}, set.Names())
	assert.Equal(t, 1, clk.Pending())

	clk.Advance(500 * time.Millisecond)
	assert.Empty(t, set.Names())
	assert.Equal(t, 0, clk.Pending())
}

func TestTypingSet_StopIsAuthoritative(t *testing.T) {
	clk := clock.NewFake(time.Now())
	log := &changeLog{}
	set := NewTypingSet(clk, 2*time.Second, "alice", log.record)
	defer set.Close()

	set.Start("bob", "Bob")
	set.Start("carol", "Carol")
	set.Stop("bob")
	assert.Equal(t, []string{"Carol"}, set.Names())
	assert.Equal(t, []string{"Carol"}, log.last())

	set.Stop("bob")
	assert.Equal(t, 3, log.count(), "stopping an absent user is not a change")
}

func TestTypingSet_IgnoresSelf(t *testing.T) {
	clk := clock.NewFake(time.Now())
	log := &changeLog{}
	set := NewTypingSet(clk, 2*time.Second, "alice", log.record)
	defer set.Close()

	set.Start("alice", "Alice")
	assert.Empty(t, set.Names())
	assert.Equal(t, 0, log.count())
	assert.Equal(t, 0, clk.Pending())
}

func TestTypingSet_OrderOfFirstStart(t *testing.T) {
	clk := clock.NewFake(time.Now())
	set := NewTypingSet(clk, 2*time.Second, "me", nil)
	defer set.Close()

	set.Start("bob", "Bob")
	set.Start("carol", "Carol")
	set.Start("bob", "Bob")
	set.Start("dan", "Dan")
	assert.Equal(t, []string{"Bob", "Carol", "Dan"}, set.Names())
	assert.Equal(t, []string{"bob", "carol", "dan"}, set.UserIDs())
}

func TestTypingSet_CloseClearsTimers(t *testing.T) {
	clk := clock.NewFake(time.Now())
	log := &changeLog{}
	set := NewTypingSet(clk, 2*time.Second, "alice", log.record)

	set.Start("bob", "Bob")
	set.Start("carol", "Carol")
	set.Close()
	set.Close()

	assert.Equal(t, 0, clk.Pending())
	assert.Empty(t, set.Names())

	calls := log.count()
	set.Start("dan", "Dan")
	clk.Advance(5 * time.Second)
	assert.Equal(t, calls, log.count(), "closed set reports nothing")
}

func TestTypingText(t *testing.T) {
	tests := []struct {
		names []string
		want  string
	}{
		{names: nil, want: ""},
		{names: []string{"Ana"}, want: "Ana is typing"},
		{names: []string{"Ana", "Bob"}, want: "Ana and Bob are typing"},
		{names: []string{"Ana", "Bob", "Cleo"}, want: "Ana and 2 others are typing"},
		{names: []string{"Ana", "Bob", "Cleo", "Dan"}, want: "Ana and 3 others are typing"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, TypingText(tt.names))
		})
	}
}
