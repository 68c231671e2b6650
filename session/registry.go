// Package session tracks live transport connections by connection ID.
package session

import "sync"

// Registry maps connection IDs to per-connection state.
// It is safe for concurrent use.
type Registry[T any] struct {
	mu      sync.RWMutex
	entries map[string]T
}

// NewRegistry creates an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{entries: make(map[string]T)}
}

// Insert registers v under id. It fails if id is already present.
func (r *Registry[T]) Insert(id string, v T) error {
	if id == "" {
		return ErrEmptyID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; ok {
		return ErrExists
	}
	r.entries[id] = v
	return nil
}

// Lookup returns the entry for id.
func (r *Registry[T]) Lookup(id string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[id]
	return v, ok
}

// Remove deletes and returns the entry for id.
func (r *Registry[T]) Remove(id string) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	return v, ok
}

// Len returns the number of registered entries.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Range calls fn for a snapshot of the entries until fn returns false.
// fn may call back into the registry.
func (r *Registry[T]) Range(fn func(id string, v T) bool) {
	r.mu.RLock()
	snapshot := make(map[string]T, len(r.entries))
	for id, v := range r.entries {
		snapshot[id] = v
	}
	r.mu.RUnlock()
	for id, v := range snapshot {
		if !fn(id, v) {
			return
		}
	}
}
