// Package projection keeps the per-view state of a room: the ordered
// message list and the set of users currently typing.
package projection

import (
	"sort"
	"sync"
	"time"

	"github.com/CutzuDev/itec2025/internal/domain"
)

type pendingKind int

const (
	notPending pendingKind = iota
	pendingInsert
	pendingEdit
	pendingRemove
)

type entry struct {
	msg     *domain.ChatMessage
	pending pendingKind
	// gen changes on every local mutation so a stale rollback can tell it
	// has been overtaken.
	gen uint64
}

// Entry is one message as seen by the view.
type Entry struct {
	Message *domain.ChatMessage
	Pending bool
}

// Rollback restores the state an optimistic change replaced. It reports
// whether anything was restored.
type Rollback func() bool

// Projection is the ordered message list of one room view. Messages are
// keyed by id and kept sorted by (CreatedAt, ID). It is safe for concurrent
// use.
type Projection struct {
	mu       sync.Mutex
	order    []*entry
	byID     map[string]*entry
	early    map[string]*domain.ChatMessage
	removing map[string]*entry
	deleted  map[string]struct{}
	gen      uint64
	now      func() time.Time
}

// New creates an empty projection.
func New() *Projection {
	return &Projection{
		byID:     make(map[string]*entry),
		early:    make(map[string]*domain.ChatMessage),
		removing: make(map[string]*entry),
		deleted:  make(map[string]struct{}),
		now:      time.Now,
	}
}

// Insert adds an authoritative message. A known id is ignored unless it is
// an optimistic placeholder, which the record replaces. An update that
// arrived before this insert is applied on top.
func (p *Projection) Insert(m *domain.ChatMessage) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.insertLocked(m.Clone())
}

func (p *Projection) insertLocked(m *domain.ChatMessage) bool {
	if _, gone := p.deleted[m.ID]; gone {
		return false
	}
	if _, ok := p.removing[m.ID]; ok {
		return false
	}
	if e, ok := p.byID[m.ID]; ok {
		if e.pending != pendingInsert {
			return false
		}
		p.removeLocked(m.ID)
	}
	if early, ok := p.early[m.ID]; ok {
		delete(p.early, m.ID)
		applyUpdate(m, early)
	}
	p.addLocked(&entry{msg: m})
	return true
}

// Update replaces a message with its newer full record. An update for an
// unknown id is held until the insert arrives.
func (p *Projection) Update(m *domain.ChatMessage) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, gone := p.deleted[m.ID]; gone {
		return false
	}
	m = m.Clone()

	e, ok := p.byID[m.ID]
	if !ok {
		if stashed, removing := p.removing[m.ID]; removing {
			applyUpdate(stashed.msg, m)
			return false
		}
		p.early[m.ID] = m
		return false
	}

	updated := e.msg.Clone()
	applyUpdate(updated, m)
	p.removeLocked(m.ID)
	p.addLocked(&entry{msg: updated})
	return true
}

// applyUpdate copies the mutable fields of src onto dst. Sender metadata
// already resolved on dst survives a record that lacks it.
func applyUpdate(dst, src *domain.ChatMessage) {
	sender := dst.Sender
	*dst = *src
	if dst.Sender == nil {
		dst.Sender = sender
	}
}

// Delete removes a message. Deleting an unknown id is a no-op apart from
// remembering the id so a late insert cannot resurrect it.
func (p *Projection) Delete(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.deleted[id] = struct{}{}
	delete(p.early, id)
	delete(p.removing, id)
	if _, ok := p.byID[id]; !ok {
		return false
	}
	p.removeLocked(id)
	return true
}

// Merge folds a bulk-loaded snapshot into the projection. Ids the
// projection already holds keep their current record because feed events
// are newer than the snapshot.
func (p *Projection) Merge(snapshot []domain.ChatMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range snapshot {
		m := snapshot[i].Clone()
		if _, ok := p.byID[m.ID]; ok {
			continue
		}
		p.insertLocked(m)
	}
}

// AddPending shows a message that is not yet confirmed by the store.
func (p *Projection) AddPending(m *domain.ChatMessage) Rollback {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.byID[m.ID]; ok {
		return func() bool { return false }
	}
	e := &entry{msg: m.Clone(), pending: pendingInsert}
	p.addLocked(e)

	return func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		cur, ok := p.byID[m.ID]
		if !ok || cur != e || cur.pending != pendingInsert {
			return false
		}
		p.removeLocked(m.ID)
		return true
	}
}

// EditPending shows a new body before the store confirms it. It returns
// false when the message is not in the projection.
func (p *Projection) EditPending(id, body string) (Rollback, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.byID[id]
	if !ok {
		return nil, false
	}
	prevMsg, prevPending := e.msg, e.pending

	edited := e.msg.Clone()
	edited.Body = body
	now := p.now().UTC()
	edited.UpdatedAt = &now
	e.msg = edited
	if e.pending == notPending {
		e.pending = pendingEdit
	}
	p.gen++
	e.gen = p.gen
	gen := e.gen

	return func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		cur, ok := p.byID[id]
		if !ok || cur != e || cur.gen != gen {
			return false
		}
		cur.msg = prevMsg
		cur.pending = prevPending
		return true
	}, true
}

// RemovePending hides a message before the store confirms the delete. It
// returns false when the message is not in the projection.
func (p *Projection) RemovePending(id string) (Rollback, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.byID[id]
	if !ok {
		return nil, false
	}
	p.removeLocked(id)
	e.pending = pendingRemove
	p.removing[id] = e

	return func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		stashed, ok := p.removing[id]
		if !ok || stashed != e {
			return false
		}
		delete(p.removing, id)
		if _, exists := p.byID[id]; exists {
			return false
		}
		stashed.pending = notPending
		p.addLocked(stashed)
		return true
	}, true
}

// Get returns a copy of a visible message.
func (p *Projection) Get(id string) (*domain.ChatMessage, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.byID[id]
	if !ok {
		return nil, false
	}
	return e.msg.Clone(), true
}

// Entry returns a copy of a visible message with its pending flag.
func (p *Projection) Entry(id string) (Entry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.byID[id]
	if !ok {
		return Entry{}, false
	}
	return Entry{Message: e.msg.Clone(), Pending: e.pending != notPending}, true
}

// Messages returns a copy of the visible messages in display order.
func (p *Projection) Messages() []Entry {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Entry, len(p.order))
	for i, e := range p.order {
		out[i] = Entry{Message: e.msg.Clone(), Pending: e.pending != notPending}
	}
	return out
}

// Len returns the number of visible messages.
func (p *Projection) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.order)
}

func (p *Projection) addLocked(e *entry) {
	p.gen++
	e.gen = p.gen
	i := sort.Search(len(p.order), func(i int) bool {
		return e.msg.Less(p.order[i].msg)
	})
	p.order = append(p.order, nil)
	copy(p.order[i+1:], p.order[i:])
	p.order[i] = e
	p.byID[e.msg.ID] = e
}

func (p *Projection) removeLocked(id string) {
	e, ok := p.byID[id]
	if !ok {
		return
	}
	delete(p.byID, id)
	for i, cur := range p.order {
		if cur == e {
			p.order = append(p.order[:i], p.order[i+1:]...)
			return
		}
	}
}
