// Package cancel keeps the handles that abort in-flight requests, keyed by token.
package cancel

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when cancelling a token that is unknown or already done.
	ErrNotFound = errors.New("cancel token not found")
	// ErrDuplicate is returned when a token is registered twice.
	ErrDuplicate = errors.New("cancel token already registered")
)

// Handle aborts one in-flight request.
type Handle interface {
	Cancel()
}

// HandleFunc adapts a function such as context.CancelFunc to Handle.
type HandleFunc func()

func (f HandleFunc) Cancel() { f() }

// NewToken returns a fresh random token.
func NewToken() string {
	return uuid.NewString()
}

// Registry maps tokens to handles. It is safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	handles map[string]Handle
}

func NewRegistry() *Registry {
	return &Registry{handles: map[string]Handle{}}
}

// Register stores h under id.
func (r *Registry) Register(id string, h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handles[id]; ok {
		return ErrDuplicate
	}
	r.handles[id] = h
	return nil
}

// Cancel removes the handle for id and triggers it. The handle runs outside the lock.
func (r *Registry) Cancel(id string) error {
	r.mu.Lock()
	h, ok := r.handles[id]
	delete(r.handles, id)
	r.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	h.Cancel()
	return nil
}

// Remove forgets id without triggering its handle. Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.handles, id)
	r.mu.Unlock()
}

func (r *Registry) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.handles[id]
	return ok
}

// Len returns the number of in-flight handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}
