package roomview

import (
	"context"
	"sync"
)

// Registry holds the open views of one client, at most one per room.
type Registry struct {
	manager  *Manager
	viewer   Viewer
	listener Listener

	mu    sync.Mutex
	views map[string]*Subscription
}

// NewRegistry creates an empty registry for one client.
func (m *Manager) NewRegistry(viewer Viewer, listener Listener) *Registry {
	return &Registry{
		manager:  m,
		viewer:   viewer,
		listener: listener,
		views:    make(map[string]*Subscription),
	}
}

// Open returns the client's view of roomID, opening it on first use.
func (r *Registry) Open(ctx context.Context, roomID string) (*Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if view, ok := r.views[roomID]; ok {
		return view, nil
	}
	view, err := r.manager.Open(ctx, roomID, r.viewer, r.listener)
	if err != nil {
		return nil, err
	}
	r.views[roomID] = view
	return view, nil
}

// Get returns the open view of roomID.
func (r *Registry) Get(roomID string) (*Subscription, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	view, ok := r.views[roomID]
	return view, ok
}

// Close closes the view of roomID if it is open.
func (r *Registry) Close(roomID string) {
	r.mu.Lock()
	view, ok := r.views[roomID]
	delete(r.views, roomID)
	r.mu.Unlock()

	if ok {
		view.Close()
	}
}

// CloseAll closes every view of the client.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	views := r.views
	r.views = make(map[string]*Subscription)
	r.mu.Unlock()

	for _, view := range views {
		view.Close()
	}
}

// Len returns the number of open views.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}
