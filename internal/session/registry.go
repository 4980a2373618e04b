package session

import (
	"sync"

	"github.com/google/uuid"
)

// Registry tracks the live session loops in memory.
type Registry struct {
	mu    sync.RWMutex
	loops map[uuid.UUID]*Loop
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{loops: make(map[uuid.UUID]*Loop)}
}

// Add registers a loop under its session ID.
func (r *Registry) Add(l *Loop) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loops[l.ID()] = l
}

// Get returns the loop for a session ID, if live.
func (r *Registry) Get(id uuid.UUID) (*Loop, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.loops[id]
	return l, ok
}

// Remove unregisters and closes the loop for a session ID.
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	l, ok := r.loops[id]
	delete(r.loops, id)
	r.mu.Unlock()
	if ok {
		l.Close()
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.loops)
}

// CloseAll closes every live loop. Used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, l := range r.loops {
		l.Close()
		delete(r.loops, id)
	}
}
