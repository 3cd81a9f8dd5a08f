package memory

import "sync/atomic"

// ReuseStack is a lock-free LIFO of values waiting to be reused.
//
// Every Push allocates a fresh link, so a link observed by a popping
// goroutine is never recycled while it is still reachable and the CAS in
// Pop cannot succeed against a stale top (no ABA).
type ReuseStack[T any] struct {
	top  atomic.Pointer[link[T]]
	size atomic.Int64
}

type link[T any] struct {
	val  T
	next *link[T]
}

func (s *ReuseStack[T]) Push(v T) {
	l := &link[T]{val: v}
	for {
		old := s.top.Load()
		l.next = old
		if s.top.CompareAndSwap(old, l) {
			s.size.Add(1)
			return
		}
	}
}

// Pop removes the most recently pushed value. ok is false when empty.
func (s *ReuseStack[T]) Pop() (v T, ok bool) {
	for {
		old := s.top.Load()
		if old == nil {
			return v, false
		}
		if s.top.CompareAndSwap(old, old.next) {
			s.size.Add(-1)
			return old.val, true
		}
	}
}

// Len is approximate under concurrent use.
func (s *ReuseStack[T]) Len() int { return int(s.size.Load()) }
