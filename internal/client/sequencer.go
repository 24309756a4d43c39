package client

import "sync"

// Sequencer implements last-request-wins for overlapping queries. Each query
// takes a ticket before it is issued; only the newest ticket may commit its
// result, so a slow response for an older query never overwrites a newer one.
type Sequencer[T any] struct {
	mu      sync.Mutex
	issued  uint64
	current T
}

// Next issues a ticket for a new query, superseding all earlier tickets
func (s *Sequencer[T]) Next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

// IsLatest reports whether ticket is still the newest issued
func (s *Sequencer[T]) IsLatest(ticket uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ticket == s.issued
}

// Commit makes v visible if ticket is the newest issued. It reports whether
// v was applied.
func (s *Sequencer[T]) Commit(ticket uint64, v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket != s.issued {
		return false
	}
	s.current = v
	return true
}

// Update applies fn to the visible value if ticket is the newest issued
func (s *Sequencer[T]) Update(ticket uint64, fn func(T) T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket != s.issued {
		return false
	}
	s.current = fn(s.current)
	return true
}

// Current returns the visible value
func (s *Sequencer[T]) Current() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}
