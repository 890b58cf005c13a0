package session

import (
	"sync"

	"github.com/talkincode/wagate/internal/errs"
)

// Registry owns the live sessions. The map lock is never held across a
// session lock or any I/O.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	limit    int
}

func NewRegistry(limit int) *Registry {
	return &Registry{sessions: make(map[string]*Session), limit: limit}
}

// Create allocates a Disconnected session. Duplicate ids and creations beyond
// the configured limit are refused.
func (r *Registry) Create(id, name string) (*Session, error) {
	if id == "" {
		return nil, errs.Validation("instance id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[id]; exists {
		return nil, errs.AlreadyExists(id)
	}
	if r.limit > 0 && len(r.sessions) >= r.limit {
		return nil, errs.Capacity(r.limit)
	}
	s := newSession(id, name)
	r.sessions[id] = s
	return s, nil
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// List returns snapshots of every session in no particular order.
func (r *Registry) List() []Snapshot {
	all := r.all()
	out := make([]Snapshot, 0, len(all))
	for _, s := range all {
		out = append(out, s.Snapshot())
	}
	return out
}

// Remove drops the session from the registry. It reports whether it was present.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Counts returns the number of sessions per persisted status value.
func (r *Registry) Counts() map[string]int {
	counts := map[string]int{}
	for _, s := range r.List() {
		counts[s.Status.String()]++
	}
	return counts
}

func (r *Registry) all() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}
