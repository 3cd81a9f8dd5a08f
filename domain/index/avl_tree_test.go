package index

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reclaim/domain/addr"
)

// checkAVL verifies ordering, stored heights and balance factors and
// returns the subtree height.
func checkAVL(t *testing.T, n *avlNode, lo, hi *addr.Address) int {
	t.Helper()
	if n == nil {
		return 0
	}
	if lo != nil {
		require.Greater(t, n.key, *lo, "ordering violated")
	}
	if hi != nil {
		require.Less(t, n.key, *hi, "ordering violated")
	}
	lh := checkAVL(t, n.left, lo, &n.key)
	rh := checkAVL(t, n.right, &n.key, hi)
	require.LessOrEqual(t, lh-rh, 1, "left heavy at %v", n.key)
	require.GreaterOrEqual(t, lh-rh, -1, "right heavy at %v", n.key)
	h := max(lh, rh) + 1
	require.Equal(t, h, n.height, "stale height at %v", n.key)
	return h
}

func TestAVLScenario(t *testing.T) {
	tree := NewAVLTree()
	for _, k := range []addr.Address{10, 20, 5, 15, 30} {
		require.True(t, tree.Insert(k))
	}

	assert.True(t, tree.Contains(15))
	assert.False(t, tree.Contains(99))
	assert.True(t, tree.Mark(20))

	freed, survivors := tree.Sweep()
	assert.Equal(t, []addr.Address{5, 10, 15, 30}, freed)
	assert.Equal(t, []addr.Address{20}, survivors)
	assert.Equal(t, 1, tree.Len())

	for e := range tree.Ascend() {
		assert.False(t, e.Marked, "survivor mark must be cleared")
	}
}

func TestAVLBalanceInvariant(t *testing.T) {
	orders := map[string]func(n int) []addr.Address{
		"ascending": func(n int) []addr.Address {
			out := make([]addr.Address, n)
			for i := range out {
				out[i] = addr.Address(i)
			}
			return out
		},
		"descending": func(n int) []addr.Address {
			out := make([]addr.Address, n)
			for i := range out {
				out[i] = addr.Address(n - i)
			}
			return out
		},
		"random": func(n int) []addr.Address {
			r := rand.New(rand.NewPCG(1, 2))
			out := make([]addr.Address, n)
			for i := range out {
				out[i] = addr.Address(r.Uint64N(uint64(n) * 4))
			}
			return out
		},
		"zigzag": func(n int) []addr.Address {
			out := make([]addr.Address, 0, n)
			for i := 0; i < n/2; i++ {
				out = append(out, addr.Address(i), addr.Address(n-i))
			}
			return out
		},
	}

	for name, gen := range orders {
		t.Run(name, func(t *testing.T) {
			tree := NewAVLTree()
			for i, k := range gen(2000) {
				tree.Insert(k)
				if i%97 == 0 {
					checkAVL(t, tree.root, nil, nil)
				}
			}
			h := checkAVL(t, tree.root, nil, nil)
			assert.Equal(t, h, tree.Height())
			// 1.44 * log2(2000) is about 15.8.
			assert.LessOrEqual(t, h, 16)
		})
	}
}

func TestAVLEmpty(t *testing.T) {
	tree := NewAVLTree()

	assert.Zero(t, tree.Height())
	assert.False(t, tree.Contains(1))
	assert.False(t, tree.Mark(1))

	freed, survivors := tree.Sweep()
	assert.Empty(t, freed)
	assert.Empty(t, survivors)

	count := 0
	for range tree.Ascend() {
		count++
	}
	assert.Zero(t, count)
}

func TestAVLAscendStopsEarly(t *testing.T) {
	tree := NewAVLTree()
	tree.BuildFrom([]addr.Address{4, 2, 6, 1, 3, 5, 7})

	var seen []addr.Address
	for e := range tree.Ascend() {
		seen = append(seen, e.Key)
		if len(seen) == 3 {
			break
		}
	}
	assert.Equal(t, []addr.Address{1, 2, 3}, seen)

	// Restartable by ranging again.
	seen = seen[:0]
	for e := range tree.Ascend() {
		seen = append(seen, e.Key)
	}
	assert.Equal(t, []addr.Address{1, 2, 3, 4, 5, 6, 7}, seen)
}

func TestAVLResetDestroysEntries(t *testing.T) {
	tree := NewAVLTree()
	tree.BuildFrom([]addr.Address{1, 2, 3})
	tree.Reset()

	assert.Zero(t, tree.Len())
	assert.False(t, tree.Contains(2))
	assert.True(t, tree.Insert(2))
}
