package memory

import "sync/atomic"

// Clock is the reclaimer's logical time. It advances once per cycle.
type Clock struct {
	now atomic.Uint64
}

func (c *Clock) Now() uint64 { return c.now.Load() }

// Advance moves time forward by one tick and returns the new value.
func (c *Clock) Advance() uint64 { return c.now.Add(1) }

// Heartbeat tracks whether a thread has made progress between two
// observations.
//
// The owner calls Checkpoint; the observer calls Observe once per cycle.
// local is the only field written by the owner.
type Heartbeat struct {
	local  atomic.Uint64
	_pad   [56]byte
	seen   uint64
	missed atomic.Int32
}

// Checkpoint records that the owner is alive at the clock's current time.
func (h *Heartbeat) Checkpoint(c *Clock) {
	h.local.Store(c.Now())
}

// Observe compares the owner's timestamp with the one seen last time and
// returns how many consecutive observations saw no update. Only one
// goroutine may observe a heartbeat.
func (h *Heartbeat) Observe() int {
	cur := h.local.Load()
	if cur != h.seen {
		h.seen = cur
		h.missed.Store(0)
		return 0
	}
	return int(h.missed.Add(1))
}

// Missed returns the value Observe last returned.
func (h *Heartbeat) Missed() int { return int(h.missed.Load()) }

// unseen never equals a clock reading, so the first Observe after Reset
// counts as progress.
const unseen = ^uint64(0)

// Reset prepares the heartbeat for a new owner.
func (h *Heartbeat) Reset() {
	h.local.Store(0)
	h.seen = unseen
	h.missed.Store(0)
}
