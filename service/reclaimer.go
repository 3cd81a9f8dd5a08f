package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/xid"

	"reclaim/domain/addr"
	"reclaim/domain/index"
	"reclaim/domain/registry"
	"reclaim/infra/logging"
	"reclaim/infra/memory"
	"reclaim/infra/sequence"
)

/*
Reclaimer is the ONLY place retired addresses are released.

A cycle runs under cycleMu:
  - drain every thread's ring and the pending queue into the index
  - ask the scanner what is still reachable and mark it
  - sweep, releasing unmarked entries; marked ones carry over
*/
type Reclaimer struct {
	cfg      Config
	alloc    Allocator
	scanner  Scanner
	journal  Journal
	log      *logging.Logger
	instance xid.ID

	pool     *registry.RecordPool
	registry *registry.Registry
	clock    memory.Clock
	cycles   *sequence.Sequencer

	pendingMu sync.Mutex
	pending   []addr.Address
	pressure  chan struct{}

	cycleMu sync.Mutex
	idx     index.Index
	scratch []addr.Address
	keys    []addr.Address

	retired    atomic.Uint64
	duplicates atomic.Uint64
	freed      atomic.Uint64
	misses     atomic.Uint64
	forced     atomic.Uint64
	scanErrors atomic.Uint64
	carried    atomic.Int64
}

// New wires a reclaimer. alloc receives every freed address; scanner is
// consulted once per cycle.
func New(cfg Config, alloc Allocator, scanner Scanner, opts ...Option) (*Reclaimer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Reclaimer{
		cfg:      cfg,
		alloc:    alloc,
		scanner:  scanner,
		log:      logging.Noop(),
		instance: xid.New(),
		cycles:   sequence.New(0),
		pressure: make(chan struct{}, 1),
		idx:      index.New(cfg.Backend),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.pool == nil {
		r.pool = registry.NewRecordPool(cfg.BufferCapacity)
	}
	r.registry = registry.New(r.pool)

	if j, ok := r.journal.(resumable); ok {
		last, err := j.Last()
		if err != nil {
			return nil, errors.Wrap(err, "service: resume cycle numbering")
		}
		r.cycles.Resume(last)
	}
	return r, nil
}

//
// ──────────────────────────────────────────────────────────
// Threads
// ──────────────────────────────────────────────────────────
//

// Thread is a registered participant. Retire and Checkpoint must only be
// called by the goroutine that owns the thread.
type Thread struct {
	r    *Reclaimer
	rec  *registry.ThreadRecord
	gone atomic.Bool
}

func (t *Thread) ID() uint64 { return t.rec.ID() }

func (t *Thread) Stack() addr.Range { return t.rec.Stack() }

// Retire hands a to the reclaimer. It never blocks on a cycle and never
// fails: when the ring is full it is drained into the pending queue first.
func (t *Thread) Retire(a addr.Address) {
	if t.gone.Load() {
		panic("service: retire on a deregistered thread")
	}
	t.rec.Heartbeat().Checkpoint(&t.r.clock)
	ring := t.rec.Buffer()
	if ring.Enqueue(a) {
		return
	}
	t.r.spill(ring, true)
	if !ring.Enqueue(a) {
		t.r.pendingMu.Lock()
		t.r.pending = append(t.r.pending, a)
		t.r.pendingMu.Unlock()
	}
}

// Checkpoint tells the reclaimer the owner is still making progress.
func (t *Thread) Checkpoint() {
	t.rec.Heartbeat().Checkpoint(&t.r.clock)
}

// RegisterThread registers a thread whose stack occupies stack. The
// thread takes part in the next cycle's scan.
func (r *Reclaimer) RegisterThread(stack addr.Range) *Thread {
	rec := r.registry.Register(stack)
	rec.Heartbeat().Checkpoint(&r.clock)
	r.log.LogThread(context.Background(), "registered", rec.ID())
	return &Thread{r: r, rec: rec}
}

// DeregisterThread flushes t's ring into the pending queue and removes t.
// Addresses it retired are still reclaimed by later cycles.
func (r *Reclaimer) DeregisterThread(t *Thread) error {
	if t == nil || t.r != r || !t.gone.CompareAndSwap(false, true) {
		return ErrUnknownThread
	}
	id := t.rec.ID()
	r.spill(t.rec.Buffer(), false)
	if !r.registry.Cleanup(id) {
		return errors.Wrapf(ErrUnknownThread, "thread %d", id)
	}
	t.rec.DecRef()
	r.log.LogThread(context.Background(), "deregistered", id)
	return nil
}

// spill drains ring into the pending queue. Forced spills come from a
// full ring and count towards Pressure.
func (r *Reclaimer) spill(ring *memory.RetireRing[addr.Address], forced bool) {
	r.pendingMu.Lock()
	r.pending = ring.DrainTo(r.pending)
	n := len(r.pending)
	r.pendingMu.Unlock()

	if !forced {
		return
	}
	r.forced.Add(1)
	if n >= r.cfg.PressureThreshold {
		select {
		case r.pressure <- struct{}{}:
		default:
		}
	}
}

// Pressure fires when forced drains have grown the pending queue past
// Config.PressureThreshold. Consumers should run a cycle soon.
func (r *Reclaimer) Pressure() <-chan struct{} { return r.pressure }

//
// ──────────────────────────────────────────────────────────
// Cycle
// ──────────────────────────────────────────────────────────
//

// Collect runs one reclamation cycle. Anything retired before Collect is
// called takes part in it; concurrent retirements may wait for the next
// one. If the scanner fails nothing is released and every entry carries
// over.
func (r *Reclaimer) Collect(ctx context.Context) (CycleReport, error) {
	r.cycleMu.Lock()
	defer r.cycleMu.Unlock()

	start := time.Now()
	rep := CycleReport{
		Cycle:    r.cycles.Next(),
		Instance: r.instance.String(),
		Time:     start,
	}
	r.clock.Advance()

	recs := r.registry.Acquire()
	defer r.registry.Release(recs)

	drained := r.scratch[:0]
	for _, rec := range recs {
		drained = rec.Buffer().DrainTo(drained)
	}
	r.pendingMu.Lock()
	drained = append(drained, r.pending...)
	clear(r.pending)
	r.pending = r.pending[:0]
	r.pendingMu.Unlock()

	inserted := r.idx.BuildFrom(drained)
	rep.Retired = len(drained)
	rep.Duplicates = len(drained) - inserted
	clear(drained)
	r.scratch = drained[:0]
	r.retired.Add(uint64(rep.Retired))
	r.duplicates.Add(uint64(rep.Duplicates))

	keys := r.keys[:0]
	for e := range r.idx.Ascend() {
		keys = append(keys, e.Key)
	}
	r.keys = keys

	live, err := r.scanner.Scan(ctx, r.registry.Targets(), keys)
	if err != nil {
		rep.Carried = r.idx.Len()
		rep.Stalled = r.observe(ctx, recs)
		rep.Duration = time.Since(start)
		r.carried.Store(int64(rep.Carried))
		r.scanErrors.Add(1)
		err = errors.Wrapf(errors.Mark(err, ErrScan), "cycle %d", rep.Cycle)
		r.log.LogCycle(ctx, rep.Cycle, 0, rep.Carried, 0, rep.Duration, err)
		return rep, err
	}

	for _, a := range live {
		if r.idx.Mark(a) {
			rep.Live++
		} else {
			rep.Misses++
		}
	}

	freed, survivors := r.idx.Sweep()
	for _, a := range freed {
		r.alloc.Release(a)
	}
	rep.Freed = len(freed)
	rep.Carried = len(survivors)
	rep.Stalled = r.observe(ctx, recs)
	rep.Duration = time.Since(start)

	r.freed.Add(uint64(rep.Freed))
	r.misses.Add(uint64(rep.Misses))
	r.carried.Store(int64(rep.Carried))

	if r.journal != nil {
		if err := r.journal.Append(rep.entry()); err != nil {
			r.log.WarnContext(ctx, "journal append failed", "cycle", rep.Cycle, "error", err)
		}
	}
	r.log.LogCycle(ctx, rep.Cycle, rep.Freed, rep.Carried, rep.Misses, rep.Duration, nil)
	return rep, nil
}

// observe reads every heartbeat once and returns the ids of threads that
// have not checkpointed for StallThreshold cycles. Their rings were
// drained with everyone else's; nothing waits for them.
func (r *Reclaimer) observe(ctx context.Context, recs []*registry.ThreadRecord) []uint64 {
	var stalled []uint64
	for _, rec := range recs {
		if missed := rec.Heartbeat().Observe(); missed >= r.cfg.StallThreshold {
			stalled = append(stalled, rec.ID())
			r.log.LogStall(ctx, rec.ID(), missed)
		}
	}
	return stalled
}

// Stats returns cumulative counters and current sizes.
func (r *Reclaimer) Stats() Stats {
	r.pendingMu.Lock()
	pending := len(r.pending)
	r.pendingMu.Unlock()

	return Stats{
		Instance:   r.instance.String(),
		Backend:    r.cfg.Backend.String(),
		Cycles:     r.cycles.Current(),
		Retired:    r.retired.Load(),
		Duplicates: r.duplicates.Load(),
		Freed:      r.freed.Load(),
		Misses:     r.misses.Load(),
		Forced:     r.forced.Load(),
		ScanErrors: r.scanErrors.Load(),
		Carried:    int(r.carried.Load()),
		Threads:    r.registry.Count(),
		Pending:    pending,
	}
}

// Instance identifies this reclaimer in logs and published reports.
func (r *Reclaimer) Instance() string { return r.instance.String() }
