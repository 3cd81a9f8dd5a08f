package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReuseStackLIFO(t *testing.T) {
	var s ReuseStack[int]
	_, ok := s.Pop()
	assert.False(t, ok)

	s.Push(1)
	s.Push(2)
	assert.Equal(t, 2, s.Len())

	v, ok := s.Pop()
	require.True(t, ok)
	assert.Equal(t, 2, v)
	v, _ = s.Pop()
	assert.Equal(t, 1, v)
	assert.Zero(t, s.Len())
}

// Values cycled through the stack by many goroutines are never handed out
// twice at the same time.
func TestReuseStackConcurrent(t *testing.T) {
	type token struct{ inUse int32 }

	var s ReuseStack[*token]
	for i := 0; i < 8; i++ {
		s.Push(&token{})
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		misuse int
	)
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 2000; i++ {
				tok, ok := s.Pop()
				if !ok {
					continue
				}
				mu.Lock()
				tok.inUse++
				if tok.inUse != 1 {
					misuse++
				}
				tok.inUse--
				mu.Unlock()
				s.Push(tok)
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, misuse)
	assert.Equal(t, 8, s.Len())
}
