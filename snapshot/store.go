package snapshot

import (
	"sync"
	"sync/atomic"

	"gigadex/infra/sequence"
)

// Store publishes States. Load never blocks; writers are serialized.
type Store struct {
	mu  sync.Mutex
	cur atomic.Pointer[State]
	gen *sequence.Sequencer
}

func NewStore(gen *sequence.Sequencer) *Store {
	if gen == nil {
		gen = sequence.New(0)
	}
	return &Store{gen: gen}
}

// Load returns the current State, nil before the first publish.
func (s *Store) Load() *State {
	return s.cur.Load()
}

// Update runs fn against the current State and publishes what it
// returns under a new generation. A returned State that keeps prev's
// Generation is published as is: only its slots moved. Returning the
// State fn was given, or an error, publishes nothing.
func (s *Store) Update(fn func(prev *State) (*State, error)) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.cur.Load()
	next, err := fn(prev)
	if err != nil || next == nil || next == prev {
		return prev, err
	}
	if prev == nil || next.Generation != prev.Generation {
		next.Generation = s.gen.Next()
	}
	s.cur.Store(next)
	return next, nil
}
