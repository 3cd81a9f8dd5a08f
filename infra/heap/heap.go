// Package heap is an in-process stand-in for the allocator the reclaimer
// releases into. It hands out addresses from a bump region, recycles
// released addresses through per-size free lists and keeps a sparse word
// memory so scanners have something to read.
package heap

import (
	"sync"

	"github.com/cockroachdb/errors"

	"reclaim/domain/addr"
)

var ErrZeroSize = errors.New("heap: zero-sized allocation")

type Config struct {
	// Base is the first address handed out.
	Base addr.Address
	// Alignment of every allocation; a power of two, at least one word.
	Alignment uint64
}

func DefaultConfig() Config {
	return Config{Base: 0x10000, Alignment: 16}
}

type Heap struct {
	mu    sync.Mutex
	cfg   Config
	next  addr.Address
	live  map[addr.Address]uint64
	free  map[uint64][]addr.Address
	words map[addr.Address]uint64

	released uint64
}

func New(cfg Config) *Heap {
	if cfg.Alignment < addr.WordSize || cfg.Alignment&(cfg.Alignment-1) != 0 {
		panic("heap: alignment must be a power of two of at least one word")
	}
	base := alignUp(cfg.Base, cfg.Alignment)
	return &Heap{
		cfg:   cfg,
		next:  base,
		live:  make(map[addr.Address]uint64),
		free:  make(map[uint64][]addr.Address),
		words: make(map[addr.Address]uint64),
	}
}

// Allocate returns an aligned block of at least size bytes. A block of the
// same rounded size released earlier is reused first.
func (h *Heap) Allocate(size uint64) (addr.Address, error) {
	if size == 0 {
		return 0, ErrZeroSize
	}
	size = uint64(alignUp(addr.Address(size), h.cfg.Alignment))

	h.mu.Lock()
	defer h.mu.Unlock()

	var a addr.Address
	if list := h.free[size]; len(list) > 0 {
		a = list[len(list)-1]
		h.free[size] = list[:len(list)-1]
	} else {
		a = h.bump(size)
	}
	h.live[a] = size
	return a, nil
}

// Release returns a block to its free list and zeroes its words. Releasing
// an address that is not live is a bookkeeping bug and panics.
func (h *Heap) Release(a addr.Address) {
	h.mu.Lock()
	defer h.mu.Unlock()

	size, ok := h.live[a]
	if !ok {
		panic(errors.Newf("heap: release of non-live address %s", a))
	}
	delete(h.live, a)
	h.zero(addr.Range{Low: a, High: a + addr.Address(size)})
	h.free[size] = append(h.free[size], a)
	h.released++
}

// UsableSize returns the rounded size of a live block, or 0.
func (h *Heap) UsableSize(a addr.Address) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.live[a]
}

// Stack reserves a range of the given number of words for a simulated
// thread stack. Stacks are never released.
func (h *Heap) Stack(words int) addr.Range {
	h.mu.Lock()
	defer h.mu.Unlock()
	size := uint64(alignUp(addr.Address(uint64(words)*addr.WordSize), h.cfg.Alignment))
	low := h.bump(size)
	return addr.Range{Low: low, High: low + addr.Address(size)}
}

// Store writes one word. a must be word aligned.
func (h *Heap) Store(a addr.Address, v uint64) {
	if a%addr.WordSize != 0 {
		panic(errors.Newf("heap: unaligned store at %s", a))
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if v == 0 {
		delete(h.words, a)
		return
	}
	h.words[a] = v
}

// Load reads one word; unwritten memory reads as zero.
func (h *Heap) Load(a addr.Address) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.words[a]
}

// Bounds is the part of the address space the heap has handed out so far.
func (h *Heap) Bounds() addr.Range {
	h.mu.Lock()
	defer h.mu.Unlock()
	return addr.Range{Low: alignUp(h.cfg.Base, h.cfg.Alignment), High: h.next}
}

func (h *Heap) IsLive(a addr.Address) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.live[a]
	return ok
}

// Live is the number of allocated blocks.
func (h *Heap) Live() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.live)
}

// Released is the total number of Release calls.
func (h *Heap) Released() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

func (h *Heap) bump(size uint64) addr.Address {
	a := h.next
	h.next += addr.Address(size)
	return a
}

func (h *Heap) zero(r addr.Range) {
	for w := r.Low; w < r.High; w += addr.WordSize {
		delete(h.words, w)
	}
}

func alignUp(a addr.Address, align uint64) addr.Address {
	m := addr.Address(align - 1)
	return (a + m) &^ m
}
