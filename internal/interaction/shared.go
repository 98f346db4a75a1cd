package interaction

import (
	"errors"
	"sync"
)

// ErrFollowerWrite is returned when a follower session attempts to mutate
// shared state. Treated as a programming-invariant violation: fatal to the
// interaction, not to the process.
var ErrFollowerWrite = errors.New("follower attempted shared state write")

// SharedInput is the single mutable buffer shared by all sessions of one
// active interaction. The primary session is the only legal writer;
// followers hold a read-only view. One SharedInput is created at admission
// and discarded at completion, never reused.
type SharedInput struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewSharedInput creates an empty shared buffer.
func NewSharedInput() *SharedInput {
	return &SharedInput{}
}

// Write replaces the replicated view. Only RolePrimary may write.
func (s *SharedInput) Write(role Role, snap Snapshot) error {
	if role != RolePrimary {
		return ErrFollowerWrite
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
	return nil
}

// View returns the current replicated view.
func (s *SharedInput) View() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}
