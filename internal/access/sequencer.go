package access

import (
	"sync"
	"sync/atomic"
)

// Sequencer hands out monotonically increasing request ids per key and tells
// whether a finished request is still the newest one for that key.
type Sequencer struct {
	counter atomic.Uint64
	mu      sync.Mutex
	latest  map[string]uint64
}

func NewSequencer() *Sequencer {
	return &Sequencer{latest: make(map[string]uint64)}
}

// Next issues a new id for key, superseding every earlier one.
func (s *Sequencer) Next(key string) uint64 {
	seq := s.counter.Add(1)
	s.mu.Lock()
	s.latest[key] = seq
	s.mu.Unlock()
	return seq
}

// Done reports whether seq is still the newest id for key. The newest id
// releases the key, so a missing key means a newer request already finished.
func (s *Sequencer) Done(key string, seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest[key] != seq {
		return false
	}
	delete(s.latest, key)
	return true
}

// Pending returns the number of keys with a request in flight.
func (s *Sequencer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.latest)
}
