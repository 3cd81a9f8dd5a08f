package sequence

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequencerUnique(t *testing.T) {
	s := New(0)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[uint64]bool{}
	)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				v := s.Next()
				mu.Lock()
				assert.False(t, seen[v], "duplicate %d", v)
				seen[v] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(4000), s.Current())
}

func TestSequencerResume(t *testing.T) {
	s := New(10)
	s.Resume(5)
	assert.Equal(t, uint64(10), s.Current())
	s.Resume(42)
	assert.Equal(t, uint64(43), s.Next())
}
