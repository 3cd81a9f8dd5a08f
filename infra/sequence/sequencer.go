package sequence

import "sync/atomic"

// Sequencer hands out strictly increasing identifiers. Thread ids and
// cycle numbers both come from one.
type Sequencer struct {
	last atomic.Uint64
}

// New creates a sequencer whose first Next returns start+1.
// A fresh reclaimer starts at 0; one reopening a journal starts at the
// last journaled cycle.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.last.Store(start)
	return s
}

func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}

// Current returns the last issued value.
func (s *Sequencer) Current() uint64 {
	return s.last.Load()
}

// Resume moves the sequencer forward to v. It never moves backwards.
func (s *Sequencer) Resume(v uint64) {
	for {
		cur := s.last.Load()
		if v <= cur || s.last.CompareAndSwap(cur, v) {
			return
		}
	}
}
