package capture

import (
	"sync"
)

// Slot is a single value mailbox shared by one producer and any number of
// readers. Put always overwrites, so readers only ever see the newest value
// and older unread values are dropped. Get blocks until the slot has been
// filled once and then never blocks again.
type Slot[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	value  T
	primed bool
	closed bool

	clone   func(T) T
	release func(T)
}

// NewSlot creates an empty slot. clone is used by Get to hand out copies that
// cannot alias a later Put; release, if non-nil, frees values that are
// overwritten or left in the slot on Close.
func NewSlot[T any](clone func(T) T, release func(T)) *Slot[T] {
	s := &Slot[T]{
		clone:   clone,
		release: release,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Put stores v, replacing the previous value. Values put after Close are
// released immediately.
func (s *Slot[T]) Put(v T) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.free(v)
		return
	}
	old, hadOld := s.value, s.primed
	s.value = v
	if !s.primed {
		s.primed = true
		s.cond.Broadcast()
	}
	s.mu.Unlock()

	if hadOld {
		s.free(old)
	}
}

// Get returns a copy of the newest value, waiting for the first Put if
// needed. ok is false only if the slot was closed before it was ever filled.
func (s *Slot[T]) Get() (v T, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for !s.primed && !s.closed {
		s.cond.Wait()
	}
	if !s.primed || s.closed {
		return v, false
	}
	return s.clone(s.value), true
}

// Primed reports whether a value has ever been stored.
func (s *Slot[T]) Primed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.primed
}

// Close wakes all waiting readers and releases the held value.
func (s *Slot[T]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	v, had := s.value, s.primed
	var zero T
	s.value = zero
	s.cond.Broadcast()
	s.mu.Unlock()

	if had {
		s.free(v)
	}
}

func (s *Slot[T]) free(v T) {
	if s.release != nil {
		s.release(v)
	}
}
