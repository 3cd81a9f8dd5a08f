package memory

import (
	"sync"
	"sync/atomic"
)

// RetireRing is a single-producer ring buffer for retired values.
//
// Enqueue belongs to the owning goroutine and never blocks. Any goroutine
// may call DrainTo; concurrent drainers are serialized by drainMu so the
// consumer side always has a single writer of tail.
type RetireRing[T any] struct {
	head  atomic.Uint64
	_pad1 [56]byte
	tail  atomic.Uint64
	_pad2 [56]byte

	drainMu sync.Mutex
	buf     []T
	mask    uint64
}

func NewRetireRing[T any](size uint64) *RetireRing[T] {
	if size == 0 || size&(size-1) != 0 {
		panic("RetireRing size must be power of two")
	}
	return &RetireRing[T]{
		buf:  make([]T, size),
		mask: size - 1,
	}
}

// Enqueue appends v. It reports false when the ring is full.
func (r *RetireRing[T]) Enqueue(v T) bool {
	h := r.head.Load()
	t := r.tail.Load()
	if h-t == uint64(len(r.buf)) {
		return false
	}
	r.buf[h&r.mask] = v
	r.head.Store(h + 1)
	return true
}

// DrainTo appends every buffered value to dst in FIFO order and empties the
// ring. Values enqueued while the drain runs may be left for the next one.
func (r *RetireRing[T]) DrainTo(dst []T) []T {
	r.drainMu.Lock()
	defer r.drainMu.Unlock()

	var zero T
	t := r.tail.Load()
	h := r.head.Load()
	for ; t != h; t++ {
		i := t & r.mask
		dst = append(dst, r.buf[i])
		r.buf[i] = zero
	}
	r.tail.Store(t)
	return dst
}

// Len is a racy snapshot of the number of buffered values.
func (r *RetireRing[T]) Len() int {
	return int(r.head.Load() - r.tail.Load())
}

func (r *RetireRing[T]) Cap() int { return len(r.buf) }

// Reset discards buffered values. The caller must own both ends.
func (r *RetireRing[T]) Reset() {
	r.drainMu.Lock()
	defer r.drainMu.Unlock()
	clear(r.buf)
	r.head.Store(0)
	r.tail.Store(0)
}
