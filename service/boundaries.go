package service

import (
	"context"

	"reclaim/domain/addr"
	"reclaim/domain/registry"
	"reclaim/infra/journal"
)

// Allocator is the memory allocator retired addresses go back to. The
// reclaimer only ever calls Release, and only for addresses a cycle
// proved unreachable.
type Allocator interface {
	Allocate(size uint64) (addr.Address, error)
	Release(a addr.Address)
	UsableSize(a addr.Address) uint64
}

// Scanner reports every address that may still be reachable from the
// given threads. It may over-report; it must never under-report. retired
// is the cycle's sorted retired set: a reference into a retired block is
// reported as the block's base, and retired blocks reachable from other
// reachable retired blocks are reported too.
type Scanner interface {
	Scan(ctx context.Context, targets []registry.Target, retired []addr.Address) ([]addr.Address, error)
}

// Journal receives one entry per completed cycle.
type Journal interface {
	Append(e journal.Entry) error
}

// resumable journals let a restarted reclaimer continue cycle numbering.
type resumable interface {
	Last() (uint64, error)
}
