// Package scan is a conservative reference scanner. It reads every word in
// each thread's stack and in configured root ranges and reports the words
// that look like heap addresses. Words pointing anywhere inside a retired
// block count as references to that block, and retired blocks found that
// way are themselves scanned for further retired references.
package scan

import (
	"context"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"reclaim/domain/addr"
	"reclaim/domain/index"
	"reclaim/domain/registry"
	"reclaim/infra/memory"
)

// Memory is the word-addressable memory being scanned. UsableSize reports
// the size of the block starting at a, or 0 if a is not a block base.
type Memory interface {
	Load(a addr.Address) uint64
	UsableSize(a addr.Address) uint64
}

// Bounded memory reports which addresses can be heap objects. When
// Config.Bounds is empty the scanner uses it to filter candidates.
type Bounded interface {
	Bounds() addr.Range
}

type Config struct {
	// Workers bounds how many chunks are scanned concurrently.
	Workers int
	// MaxRangeWords splits larger ranges into chunks of this many words.
	MaxRangeWords int
	// Bounds filters candidate words; empty means ask the memory, or keep
	// everything if it cannot tell.
	Bounds addr.Range
	// Roots are scanned in addition to every thread stack.
	Roots []addr.Range
}

func DefaultConfig() Config {
	return Config{Workers: 4, MaxRangeWords: 512}
}

type Scanner struct {
	mem  Memory
	cfg  Config
	bufs *memory.Pool[[]addr.Address]
}

func New(mem Memory, cfg Config) *Scanner {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Scanner{
		mem: mem,
		cfg: cfg,
		bufs: memory.NewPool(
			func() *[]addr.Address { b := make([]addr.Address, 0, 256); return &b },
			func(b *[]addr.Address) { *b = (*b)[:0] },
		),
	}
}

// Scan returns the sorted, de-duplicated set of candidate addresses found
// in the targets' stacks and the configured roots. Tag bits are masked
// off every word before it is considered.
//
// retired must be sorted. A candidate that falls inside a retired block is
// reported as that block's base, and every retired block reported is
// traced for retired blocks it references in turn.
func (s *Scanner) Scan(ctx context.Context, targets []registry.Target, retired []addr.Address) ([]addr.Address, error) {
	bounds := s.cfg.Bounds
	if bounds.Empty() {
		if b, ok := s.mem.(Bounded); ok {
			bounds = b.Bounds()
		}
	}

	var (
		mu    sync.Mutex
		found []addr.Address
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)

	for _, chunk := range s.chunks(targets) {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			buf := s.bufs.Get()
			defer s.bufs.Put(buf)

			*buf = s.scanRange(chunk, bounds, *buf)
			mu.Lock()
			found = append(found, *buf...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(retired) > 0 {
		var err error
		if found, err = s.trace(ctx, found, retired, bounds); err != nil {
			return nil, err
		}
	}

	index.Sort(found)
	return index.Compact(found), nil
}

// trace resolves candidates to retired block bases and walks the words of
// every retired block reached using an explicit worklist.
func (s *Scanner) trace(ctx context.Context, found, retired []addr.Address, bounds addr.Range) ([]addr.Address, error) {
	rb := newBlocks(s.mem, retired)
	visited := make([]bool, len(retired))
	var work []int

	visit := func(i int) {
		if !visited[i] {
			visited[i] = true
			work = append(work, i)
		}
	}
	for n, a := range found {
		if i, ok := rb.containing(a); ok {
			found[n] = retired[i]
			visit(i)
		}
	}

	for len(work) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		i := work[len(work)-1]
		work = work[:len(work)-1]

		span := rb.span(i)
		for w := span.Low; w+addr.WordSize <= span.High; w += addr.WordSize {
			v := s.mem.Load(w)
			if v == 0 {
				continue
			}
			a := addr.Mask(v)
			if !bounds.Empty() && !bounds.Contains(a) {
				continue
			}
			if j, ok := rb.containing(a); ok && !visited[j] {
				found = append(found, retired[j])
				visit(j)
			}
		}
	}
	return found, nil
}

func (s *Scanner) chunks(targets []registry.Target) []addr.Range {
	limit := uint64(s.cfg.MaxRangeWords) * addr.WordSize
	var out []addr.Range
	for _, t := range targets {
		out = append(out, t.Stack.Split(limit)...)
	}
	for _, r := range s.cfg.Roots {
		out = append(out, r.Split(limit)...)
	}
	return out
}

func (s *Scanner) scanRange(r addr.Range, bounds addr.Range, dst []addr.Address) []addr.Address {
	for w := r.Low; w+addr.WordSize <= r.High; w += addr.WordSize {
		v := s.mem.Load(w)
		if v == 0 {
			continue
		}
		a := addr.Mask(v)
		if !bounds.Empty() && !bounds.Contains(a) {
			continue
		}
		dst = append(dst, a)
	}
	return dst
}

// blocks is the retired set with each base's usable size.
type blocks struct {
	bases []addr.Address
	sizes []uint64
}

func newBlocks(mem Memory, retired []addr.Address) blocks {
	b := blocks{bases: retired, sizes: make([]uint64, len(retired))}
	for i, a := range retired {
		b.sizes[i] = mem.UsableSize(a)
	}
	return b
}

// containing returns the index of the retired block a points into. A base
// whose size is unknown only matches exactly.
func (b blocks) containing(a addr.Address) (int, bool) {
	i, ok := slices.BinarySearch(b.bases, a)
	if ok {
		return i, true
	}
	if i == 0 {
		return 0, false
	}
	i--
	return i, a < b.bases[i]+addr.Address(b.sizes[i])
}

func (b blocks) span(i int) addr.Range {
	return addr.Range{Low: b.bases[i], High: b.bases[i] + addr.Address(b.sizes[i])}
}
