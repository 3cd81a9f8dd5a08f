package registry

import (
	"sync"

	"reclaim/domain/addr"
	"reclaim/infra/sequence"
)

// Target is what the scanner needs to know about one thread.
type Target struct {
	ThreadID uint64
	Stack    addr.Range
}

// Registry is the set of threads taking part in reclamation.
//
// Records are kept in a singly linked list with the newest at the head.
// Every structural change and every lookup holds mu; count always equals
// the number of linked records.
type Registry struct {
	mu    sync.Mutex
	head  *ThreadRecord
	count int

	pool *RecordPool
	ids  *sequence.Sequencer
}

func New(pool *RecordPool) *Registry {
	return &Registry{
		pool: pool,
		ids:  sequence.New(0),
	}
}

// Register creates a record for a new thread and links it. The record
// starts with two references: one owned by the registry, one returned to
// the caller.
func (r *Registry) Register(stack addr.Range) *ThreadRecord {
	rec := r.pool.Get(r.ids.Next(), stack)
	rec.refs.Store(2)
	r.Add(rec)
	return rec
}

// Add links rec at the head of the list. It is visible to the next scan.
func (r *Registry) Add(rec *ThreadRecord) {
	r.mu.Lock()
	rec.next = r.head
	r.head = rec
	r.count++
	r.mu.Unlock()
}

// Remove unlinks rec. It does not drop any reference.
func (r *Registry) Remove(rec *ThreadRecord) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unlink(func(cur *ThreadRecord) bool { return cur == rec }) != nil
}

// FindByAddress returns the record whose stack contains a. The record
// carries an extra reference the caller must drop with DecRef.
func (r *Registry) FindByAddress(a addr.Address) (*ThreadRecord, bool) {
	return r.find(func(cur *ThreadRecord) bool { return cur.stack.Contains(a) })
}

// FindByID returns the record for thread id under the same reference
// protocol as FindByAddress.
func (r *Registry) FindByID(id uint64) (*ThreadRecord, bool) {
	return r.find(func(cur *ThreadRecord) bool { return cur.id == id })
}

// Cleanup unlinks the thread with the given id and drops the registry's
// reference. It reports false for an unknown id.
func (r *Registry) Cleanup(id uint64) bool {
	r.mu.Lock()
	rec := r.unlink(func(cur *ThreadRecord) bool { return cur.id == id })
	r.mu.Unlock()
	if rec == nil {
		return false
	}
	rec.DecRef()
	return true
}

// Targets snapshots the scan targets of every linked thread.
func (r *Registry) Targets() []Target {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Target, 0, r.count)
	for cur := r.head; cur != nil; cur = cur.next {
		out = append(out, Target{ThreadID: cur.id, Stack: cur.stack})
	}
	return out
}

// Acquire returns every linked record with a reference held on each, so
// the caller can work on them without the registry lock. Hand the slice
// back to Release when done.
func (r *Registry) Acquire() []*ThreadRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*ThreadRecord, 0, r.count)
	for cur := r.head; cur != nil; cur = cur.next {
		cur.IncRef()
		out = append(out, cur)
	}
	return out
}

func (r *Registry) Release(recs []*ThreadRecord) {
	for _, rec := range recs {
		rec.DecRef()
	}
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func (r *Registry) Pool() *RecordPool { return r.pool }

func (r *Registry) find(match func(*ThreadRecord) bool) (*ThreadRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for cur := r.head; cur != nil; cur = cur.next {
		if match(cur) {
			cur.IncRef()
			return cur, true
		}
	}
	return nil, false
}

// unlink removes the first matching record. Caller holds mu.
func (r *Registry) unlink(match func(*ThreadRecord) bool) *ThreadRecord {
	for link := &r.head; *link != nil; link = &(*link).next {
		if cur := *link; match(cur) {
			*link = cur.next
			cur.next = nil
			r.count--
			return cur
		}
	}
	return nil
}
