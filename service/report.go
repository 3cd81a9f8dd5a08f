package service

import (
	"time"

	"reclaim/infra/journal"
)

// CycleReport describes one reclamation cycle.
type CycleReport struct {
	Cycle    uint64
	Instance string
	Time     time.Time

	// Retired counts addresses drained this cycle, Duplicates those
	// already present in the index.
	Retired    int
	Duplicates int

	// Live counts reported addresses that matched a retired entry;
	// Misses those that did not.
	Live   int
	Misses int

	Freed   int
	Carried int
	Stalled []uint64

	Duration time.Duration
}

func (r CycleReport) entry() journal.Entry {
	return journal.Entry{
		Cycle:      r.Cycle,
		Instance:   r.Instance,
		Time:       r.Time.UnixNano(),
		Duration:   int64(r.Duration),
		Retired:    uint64(r.Retired),
		Duplicates: uint64(r.Duplicates),
		Live:       uint64(r.Live),
		Misses:     uint64(r.Misses),
		Freed:      uint64(r.Freed),
		Carried:    uint64(r.Carried),
		Stalled:    uint64(len(r.Stalled)),
	}
}

// Stats is a point-in-time summary of a reclaimer.
type Stats struct {
	Instance string
	Backend  string

	Cycles     uint64
	Retired    uint64
	Duplicates uint64
	Freed      uint64
	Misses     uint64
	Forced     uint64
	ScanErrors uint64

	// Carried is the index size after the last cycle.
	Carried int
	Threads int
	Pending int
}
