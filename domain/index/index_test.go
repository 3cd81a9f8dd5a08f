package index

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reclaim/domain/addr"
)

var backends = []Backend{BackendAVL, BackendSortedBatch}

func TestNoDuplicates(t *testing.T) {
	for _, b := range backends {
		t.Run(b.String(), func(t *testing.T) {
			idx := New(b)
			assert.True(t, idx.Insert(42))
			assert.False(t, idx.Insert(42))
			assert.Equal(t, 1, idx.Len())

			assert.Equal(t, 2, idx.BuildFrom([]addr.Address{7, 42, 7, 9}))
			assert.Equal(t, 3, idx.Len())
		})
	}
}

func TestMarkIdempotence(t *testing.T) {
	for _, b := range backends {
		t.Run(b.String(), func(t *testing.T) {
			once, twice := New(b), New(b)
			keys := []addr.Address{3, 1, 4, 5, 9, 2, 6}
			once.BuildFrom(keys)
			twice.BuildFrom(keys)

			once.Mark(4)
			twice.Mark(4)
			twice.Mark(4)

			assert.Equal(t, slices.Collect(once.Ascend()), slices.Collect(twice.Ascend()))
			assert.False(t, once.Mark(8))
		})
	}
}

func TestSweepCompleteness(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 5))
	for _, b := range backends {
		t.Run(b.String(), func(t *testing.T) {
			for round := 0; round < 50; round++ {
				idx := New(b)
				set := map[addr.Address]bool{}
				var live []addr.Address
				n := r.IntN(300)
				for i := 0; i < n; i++ {
					k := addr.Address(r.Uint64N(1 << 20))
					idx.Insert(k)
					set[k] = true
				}
				for k := range set {
					if r.IntN(3) == 0 {
						live = append(live, k)
						require.True(t, idx.Mark(k))
					}
				}
				// Reports about unknown addresses are ignored.
				idx.Mark(1<<20 + 1)

				freed, survivors := idx.Sweep()

				var wantFreed []addr.Address
				for k := range set {
					if !slices.Contains(live, k) {
						wantFreed = append(wantFreed, k)
					}
				}
				slices.Sort(wantFreed)
				slices.Sort(live)
				assert.Equal(t, len(wantFreed), len(freed))
				if len(wantFreed) > 0 {
					assert.Equal(t, wantFreed, freed)
				}
				if len(live) > 0 {
					assert.Equal(t, live, survivors)
				}
				assert.Equal(t, len(live), idx.Len())
			}
		})
	}
}

func TestSurvivorsCarryIntoNextCycle(t *testing.T) {
	for _, b := range backends {
		t.Run(b.String(), func(t *testing.T) {
			idx := New(b)
			idx.BuildFrom([]addr.Address{100, 200, 300})
			idx.Mark(200)
			idx.Sweep()

			// Next cycle: 200 is no longer reported, a new key arrives.
			idx.Insert(400)
			idx.Mark(400)
			freed, survivors := idx.Sweep()
			assert.Equal(t, []addr.Address{200}, freed)
			assert.Equal(t, []addr.Address{400}, survivors)
		})
	}
}

func TestAscendIsOrdered(t *testing.T) {
	for _, b := range backends {
		t.Run(b.String(), func(t *testing.T) {
			idx := New(b)
			idx.BuildFrom([]addr.Address{8, 3, 5, 1})
			idx.Mark(5)

			got := slices.Collect(idx.Ascend())
			assert.Equal(t, []Entry{{1, false}, {3, false}, {5, true}, {8, false}}, got)
		})
	}
}

func TestParseBackend(t *testing.T) {
	b, err := ParseBackend("avl")
	require.NoError(t, err)
	assert.Equal(t, BackendAVL, b)

	b, err = ParseBackend("sorted-batch")
	require.NoError(t, err)
	assert.Equal(t, BackendSortedBatch, b)

	_, err = ParseBackend("skiplist")
	require.Error(t, err)
	assert.EqualError(t, err, `index: unknown backend "skiplist"`)
	assert.NotNil(t, errors.GetReportableStackTrace(err), "carries the call site")
}
