package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetireRingBasic(t *testing.T) {
	r := NewRetireRing[uint64](4)

	require.True(t, r.Enqueue(1))
	require.True(t, r.Enqueue(2))
	assert.Equal(t, 2, r.Len())

	assert.Equal(t, []uint64{1, 2}, r.DrainTo(nil))
	assert.Zero(t, r.Len())
	assert.Empty(t, r.DrainTo(nil))
}

func TestRetireRingFull(t *testing.T) {
	r := NewRetireRing[uint64](2)
	require.True(t, r.Enqueue(1))
	require.True(t, r.Enqueue(2))
	assert.False(t, r.Enqueue(3))

	got := r.DrainTo(make([]uint64, 0, 2))
	assert.Equal(t, []uint64{1, 2}, got)
	assert.True(t, r.Enqueue(3))
	assert.Equal(t, 2, r.Cap())
}

func TestRetireRingRejectsBadSize(t *testing.T) {
	assert.Panics(t, func() { NewRetireRing[int](3) })
	assert.Panics(t, func() { NewRetireRing[int](0) })
}

func TestRetireRingWrapAround(t *testing.T) {
	r := NewRetireRing[int](4)
	var out []int
	for i := 0; i < 10; i++ {
		require.True(t, r.Enqueue(i))
		if i%3 == 2 {
			out = r.DrainTo(out)
		}
	}
	out = r.DrainTo(out)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, out)
}

// One producer, several drainers: every value is drained exactly once.
func TestRetireRingConcurrentDrain(t *testing.T) {
	const n = 20000
	r := NewRetireRing[int](64)

	var (
		mu   sync.Mutex
		seen = make(map[int]int, n)
		wg   sync.WaitGroup
		done = make(chan struct{})
	)
	for w := 0; w < 3; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var buf []int
			for {
				buf = r.DrainTo(buf[:0])
				mu.Lock()
				for _, v := range buf {
					seen[v]++
				}
				mu.Unlock()
				select {
				case <-done:
					if r.Len() == 0 {
						return
					}
				default:
				}
			}
		}()
	}

	for i := 0; i < n; {
		if r.Enqueue(i) {
			i++
		}
	}
	close(done)
	wg.Wait()

	require.Len(t, seen, n)
	for v, c := range seen {
		require.Equal(t, 1, c, "value %d drained %d times", v, c)
	}
}

func TestRetireRingReset(t *testing.T) {
	r := NewRetireRing[int](4)
	r.Enqueue(1)
	r.Reset()
	assert.Zero(t, r.Len())
	assert.Empty(t, r.DrainTo(nil))
}
