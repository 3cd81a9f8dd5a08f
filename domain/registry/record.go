package registry

import (
	"sync/atomic"

	"reclaim/domain/addr"
	"reclaim/infra/memory"
)

// ThreadRecord is the reclaimer's view of one participating thread.
//
// A record is shared by the registry, its owning thread and any lookup in
// progress; each holds one reference. When the last reference is dropped
// the record goes back to its RecordPool and may be handed to a new
// thread, so nothing may touch it after its own DecRef.
type ThreadRecord struct {
	id        uint64
	stack     addr.Range
	buffer    *memory.RetireRing[addr.Address]
	heartbeat memory.Heartbeat

	refs atomic.Int32

	next *ThreadRecord // registry list, guarded by Registry.mu
	pool *RecordPool
}

func (r *ThreadRecord) ID() uint64 { return r.id }

// Stack is the address range the scanner reads for this thread.
func (r *ThreadRecord) Stack() addr.Range { return r.stack }

func (r *ThreadRecord) Buffer() *memory.RetireRing[addr.Address] { return r.buffer }

func (r *ThreadRecord) Heartbeat() *memory.Heartbeat { return &r.heartbeat }

// IncRef takes an additional reference. The caller must already hold one,
// or hold the registry lock while the record is linked.
func (r *ThreadRecord) IncRef() {
	r.refs.Add(1)
}

// DecRef drops a reference. The holder of the last one returns the record
// to its pool.
func (r *ThreadRecord) DecRef() {
	switch n := r.refs.Add(-1); {
	case n == 0:
		r.pool.put(r)
	case n < 0:
		panic("registry: thread record released too many times")
	}
}

// Refs is a snapshot of the reference count, for diagnostics and tests.
func (r *ThreadRecord) Refs() int32 { return r.refs.Load() }

// RecordPool recycles thread records through a lock-free stack so that
// thread churn does not allocate a new retirement buffer per thread.
type RecordPool struct {
	free     memory.ReuseStack[*ThreadRecord]
	capacity uint64
	created  atomic.Int64
}

// NewRecordPool returns a pool whose records carry retirement buffers of
// the given capacity, which must be a power of two.
func NewRecordPool(bufferCapacity uint64) *RecordPool {
	return &RecordPool{capacity: bufferCapacity}
}

// Get returns a clean record for thread id. It never returns nil.
func (p *RecordPool) Get(id uint64, stack addr.Range) *ThreadRecord {
	rec, ok := p.free.Pop()
	if !ok {
		rec = &ThreadRecord{
			buffer: memory.NewRetireRing[addr.Address](p.capacity),
			pool:   p,
		}
		p.created.Add(1)
	}
	rec.id = id
	rec.stack = stack
	rec.next = nil
	rec.heartbeat.Reset()
	rec.refs.Store(0)
	return rec
}

func (p *RecordPool) put(rec *ThreadRecord) {
	rec.buffer.Reset()
	rec.stack = addr.Range{}
	rec.next = nil
	p.free.Push(rec)
}

// Idle is the number of records waiting for reuse.
func (p *RecordPool) Idle() int { return p.free.Len() }

// Created is the number of records ever allocated by the pool.
func (p *RecordPool) Created() int { return int(p.created.Load()) }
