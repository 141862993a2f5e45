package dashboard

import (
	"sync"
	"sync/atomic"
)

// stream numbers the requests of one logical query stream and applies
// their responses in request order: a response older than the last applied
// one is dropped.
type stream struct {
	issued  atomic.Uint64
	mu      sync.Mutex
	applied uint64
}

// next returns the sequence number for a new request
func (s *stream) next() uint64 {
	return s.issued.Add(1)
}

// apply runs fn for seq unless a newer response was already applied.
// fn runs under the stream lock.
func (s *stream) apply(seq uint64, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq <= s.applied {
		return false
	}
	s.applied = seq
	fn()
	return true
}

