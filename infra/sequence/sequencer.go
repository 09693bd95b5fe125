// Package sequence hands out the monotonic numbers that order snapshot
// generations and journal records.
package sequence

import "sync/atomic"

type Sequencer struct {
	last atomic.Uint64
}

// New starts after start: the first Next returns start+1.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.last.Store(start)
	return s
}

func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}

// Current is the last value handed out.
func (s *Sequencer) Current() uint64 {
	return s.last.Load()
}

