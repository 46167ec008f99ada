package projection

import (
	"fmt"
	"sync"
	"time"

	"github.com/CutzuDev/itec2025/internal/clock"
)

// DefaultTypingExpiry is how long a typing indicator stays without renewal.
const DefaultTypingExpiry = 2 * time.Second

type typist struct {
	name  string
	timer clock.Timer
}

// TypingSet tracks who is typing in a room from one viewer's perspective.
// A start (re)arms the user's expiry timer; a stop removes the user at once.
type TypingSet struct {
	mu       sync.Mutex
	clock    clock.Clock
	expiry   time.Duration
	selfID   string
	users    map[string]*typist
	order    []string
	closed   bool
	onChange func(names []string)

	// notifyMu keeps change notifications in mutation order.
	notifyMu sync.Mutex
}

// NewTypingSet creates a TypingSet for viewer selfID. onChange, if set, is
// called after every membership change with the current names.
func NewTypingSet(clk clock.Clock, expiry time.Duration, selfID string, onChange func(names []string)) *TypingSet {
	if clk == nil {
		clk = clock.Real{}
	}
	if expiry <= 0 {
		expiry = DefaultTypingExpiry
	}
	return &TypingSet{
		clock:    clk,
		expiry:   expiry,
		selfID:   selfID,
		users:    make(map[string]*typist),
		onChange: onChange,
	}
}

// Start marks userID as typing and resets the expiry timer.
func (s *TypingSet) Start(userID, name string) {
	s.mu.Lock()
	if s.closed || userID == s.selfID {
		s.mu.Unlock()
		return
	}

	t, exists := s.users[userID]
	if exists {
		t.timer.Stop()
	} else {
		t = &typist{}
		s.users[userID] = t
		s.order = append(s.order, userID)
	}
	changed := !exists || t.name != name
	t.name = name

	var timer clock.Timer
	timer = s.clock.AfterFunc(s.expiry, func() {
		s.mu.Lock()
		cur, ok := s.users[userID]
		if s.closed || !ok || cur.timer != timer {
			s.mu.Unlock()
			return
		}
		s.removeLocked(userID)
		s.mu.Unlock()
		s.notify()
	})
	t.timer = timer
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

// Stop removes userID immediately.
func (s *TypingSet) Stop(userID string) {
	s.mu.Lock()
	t, ok := s.users[userID]
	if s.closed || !ok {
		s.mu.Unlock()
		return
	}
	t.timer.Stop()
	s.removeLocked(userID)
	s.mu.Unlock()

	s.notify()
}

// Names returns the display names of typing users in order of first start.
func (s *TypingSet) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.order))
	for _, id := range s.order {
		names = append(names, s.users[id].name)
	}
	return names
}

// UserIDs returns the ids of typing users in order of first start.
func (s *TypingSet) UserIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// Close stops every timer. Later signals are ignored.
func (s *TypingSet) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for _, t := range s.users {
		t.timer.Stop()
	}
	s.users = make(map[string]*typist)
	s.order = nil
}

func (s *TypingSet) removeLocked(userID string) {
	delete(s.users, userID)
	for i, id := range s.order {
		if id == userID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

func (s *TypingSet) notify() {
	if s.onChange == nil {
		return
	}
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	s.onChange(s.Names())
}

// TypingText renders the typing indicator line for names.
func TypingText(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("%s is typing", names[0])
	case 2:
		return fmt.Sprintf("%s and %s are typing", names[0], names[1])
	default:
		return fmt.Sprintf("%s and %d others are typing", names[0], len(names)-1)
	}
}
