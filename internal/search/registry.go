package search

import (
	"errors"
	"sync"
)

// ErrAlreadyRunning is returned by Acquire when a job of the same kind is
// in flight.
var ErrAlreadyRunning = errors.New("a job of this kind is already running")

// ErrNotRunning is returned by RequestCancel when no job of the kind runs.
var ErrNotRunning = errors.New("no job of this kind is running")

// Registry enforces "at most one running job per kind" and carries the
// cancellation flag for each kind. Cancellation is scoped per kind: a
// cancel request for one kind never interrupts jobs of another.
type Registry struct {
	mu    sync.Mutex
	slots map[Kind]*slot
}

type slot struct {
	running         bool
	cancelRequested bool
}

// NewRegistry creates a registry with all kinds idle.
func NewRegistry() *Registry {
	r := &Registry{slots: make(map[Kind]*slot)}
	for _, k := range Kinds {
		r.slots[k] = &slot{}
	}
	return r
}

func (r *Registry) slotFor(kind Kind) *slot {
	s, ok := r.slots[kind]
	if !ok {
		s = &slot{}
		r.slots[kind] = s
	}
	return s
}

// Acquire claims the slot for kind. Fails with ErrAlreadyRunning when a
// job of the same kind holds it.
func (r *Registry) Acquire(kind Kind) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.slotFor(kind)
	if s.running {
		return ErrAlreadyRunning
	}
	s.running = true
	s.cancelRequested = false
	return nil
}

// Release frees the slot and clears its cancellation flag. Idempotent;
// must be called from a guaranteed-cleanup path on every job exit.
func (r *Registry) Release(kind Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.slotFor(kind)
	s.running = false
	s.cancelRequested = false
}

// RequestCancel flags the running job of the given kind for cooperative
// cancellation. Returns ErrNotRunning when the slot is idle.
func (r *Registry) RequestCancel(kind Kind) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.slotFor(kind)
	if !s.running {
		return ErrNotRunning
	}
	s.cancelRequested = true
	return nil
}

// CancelRequested reports whether the running job of kind should stop.
// Jobs poll this at channel boundaries and periodically inside the
// message loop.
func (r *Registry) CancelRequested(kind Kind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slotFor(kind).cancelRequested
}

// Running reports whether a job of kind is in flight.
func (r *Registry) Running(kind Kind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slotFor(kind).running
}
