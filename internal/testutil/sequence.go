package testutil

import "sync"

// Sequence hands out primary keys the way an AUTOINCREMENT column does:
// 1, 2, 3, ... and never reuses a value after a delete.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Sequence struct {
	mu   sync.Mutex
	last int64
}

// Next increments and returns the next id. The first call returns 1.
func (s *Sequence) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last++
	return s.last
}

// Current returns the last id handed out, or 0.
func (s *Sequence) Current() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Observe advances the sequence past an explicitly assigned id.
func (s *Sequence) Observe(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id > s.last {
		s.last = id
	}
}

// Reset rewinds the sequence so the next call to Next returns 1.
func (s *Sequence) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = 0
}
