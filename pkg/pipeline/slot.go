package pipeline

import "sync"

// Slot is the rendezvous between the announce hook and the commit hooks. It
// holds at most one pending load-state slot and is never cleared by a
// commit, so a commit always acts on the most recent announcement.
type Slot struct {
	mu      sync.RWMutex
	index   uint32
	pending bool
}

// Announce records index as the file being loaded.
func (s *Slot) Announce(index uint32) {
	s.mu.Lock()
	s.index = index
	s.pending = true
	s.mu.Unlock()
}

// Suppress records that the file being loaded must not be substituted.
func (s *Slot) Suppress() {
	s.mu.Lock()
	s.index = 0
	s.pending = false
	s.mu.Unlock()
}

// Pending returns the announced slot, if any.
func (s *Slot) Pending() (uint32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index, s.pending
}
