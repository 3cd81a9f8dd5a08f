package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reclaim/domain/addr"
)

func stackAt(base uint64) addr.Range {
	return addr.Range{Low: addr.Address(base), High: addr.Address(base + 0x1000)}
}

func TestRegisterAndFind(t *testing.T) {
	reg := New(NewRecordPool(8))
	a := reg.Register(stackAt(0x10000))
	b := reg.Register(stackAt(0x20000))

	assert.Equal(t, 2, reg.Count())
	assert.NotEqual(t, a.ID(), b.ID())
	assert.EqualValues(t, 2, a.Refs())

	rec, ok := reg.FindByAddress(0x20010)
	require.True(t, ok)
	assert.Same(t, b, rec)
	assert.EqualValues(t, 3, rec.Refs())
	rec.DecRef()

	_, ok = reg.FindByAddress(0x30000)
	assert.False(t, ok)

	rec, ok = reg.FindByID(a.ID())
	require.True(t, ok)
	assert.Same(t, a, rec)
	rec.DecRef()

	targets := reg.Targets()
	require.Len(t, targets, 2)
	assert.Equal(t, b.ID(), targets[0].ThreadID, "newest first")
	assert.Equal(t, stackAt(0x10000), targets[1].Stack)
}

func TestCleanupUnknownThread(t *testing.T) {
	reg := New(NewRecordPool(8))
	assert.False(t, reg.Cleanup(99))

	rec := reg.Register(stackAt(0x10000))
	require.True(t, reg.Cleanup(rec.ID()))
	assert.False(t, reg.Cleanup(rec.ID()))
	assert.Zero(t, reg.Count())
	rec.DecRef()
}

func TestRemoveKeepsReferences(t *testing.T) {
	reg := New(NewRecordPool(8))
	rec := reg.Register(stackAt(0x10000))

	require.True(t, reg.Remove(rec))
	assert.False(t, reg.Remove(rec))
	assert.EqualValues(t, 2, rec.Refs())
	assert.Zero(t, reg.Count())
}

// A record found by a lookup stays out of the pool until the lookup drops
// its reference, even after the registry and the owner have both let go.
func TestReuseSafety(t *testing.T) {
	pool := NewRecordPool(8)
	reg := New(pool)
	rec := reg.Register(stackAt(0x10000))
	id := rec.ID()

	found, ok := reg.FindByAddress(0x10008)
	require.True(t, ok)

	require.True(t, reg.Cleanup(id))
	rec.DecRef() // owner leaves
	assert.Zero(t, pool.Idle())
	assert.Equal(t, id, found.ID())
	assert.Equal(t, stackAt(0x10000), found.Stack())

	found.DecRef()
	assert.Equal(t, 1, pool.Idle())

	// The next thread gets the same storage with fresh state.
	next := reg.Register(stackAt(0x50000))
	assert.Same(t, rec, next)
	assert.NotEqual(t, id, next.ID())
	assert.Zero(t, next.Buffer().Len())
	assert.Equal(t, 1, pool.Created())
}

func TestDecRefUnderflowPanics(t *testing.T) {
	reg := New(NewRecordPool(8))
	rec := reg.Register(stackAt(0x10000))
	reg.Cleanup(rec.ID())
	rec.DecRef()
	assert.Panics(t, rec.DecRef)
}

func TestAcquireRelease(t *testing.T) {
	reg := New(NewRecordPool(8))
	a := reg.Register(stackAt(0x10000))
	reg.Register(stackAt(0x20000))

	recs := reg.Acquire()
	require.Len(t, recs, 2)
	assert.EqualValues(t, 3, a.Refs())

	// Leaving while acquired defers the return to the pool.
	reg.Cleanup(a.ID())
	a.DecRef()
	assert.Zero(t, reg.Pool().Idle())

	reg.Release(recs)
	assert.Equal(t, 1, reg.Pool().Idle())
}

func TestConcurrentRegistryConsistency(t *testing.T) {
	reg := New(NewRecordPool(8))

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				base := uint64(g+1)<<24 | uint64(i)<<12
				rec := reg.Register(stackAt(base))
				if found, ok := reg.FindByAddress(addr.Address(base + 8)); ok {
					found.DecRef()
				}
				if i%2 == 0 {
					assert.True(t, reg.Cleanup(rec.ID()))
				}
				rec.DecRef()
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 8*100, reg.Count())
	assert.Len(t, reg.Targets(), reg.Count())

	// Every linked record still has exactly the registry's reference.
	for _, rec := range reg.Acquire() {
		assert.EqualValues(t, 2, rec.Refs())
		rec.DecRef()
	}
}
