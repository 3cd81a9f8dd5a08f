package index

import (
	"iter"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"reclaim/domain/addr"
)

// SortedBatch keeps retired addresses in one array, sorted lazily, with a
// parallel flag array holding the marks.
//
// Arrivals are appended and the whole array is re-sorted before the next
// query; there is no incremental merge of sorted runs. A flagged entry is
// still live and survives Compact.
type SortedBatch struct {
	keys  []addr.Address
	flags []bool

	// members answers duplicate checks without touching the unsorted tail.
	members *roaring64.Bitmap
	marked  int
	dirty   bool
}

func NewSortedBatch() *SortedBatch {
	return &SortedBatch{members: roaring64.New()}
}

func (s *SortedBatch) Len() int { return len(s.keys) }

func (s *SortedBatch) Insert(key addr.Address) bool {
	if s.members.Contains(uint64(key)) {
		return false
	}
	s.members.Add(uint64(key))
	s.keys = append(s.keys, key)
	s.flags = append(s.flags, false)
	s.dirty = true
	return true
}

func (s *SortedBatch) BuildFrom(keys []addr.Address) int {
	added := 0
	for _, k := range keys {
		if s.Insert(k) {
			added++
		}
	}
	return added
}

func (s *SortedBatch) Contains(key addr.Address) bool {
	return s.Search(key) >= 0
}

// Search returns the position of key in the sorted array, or -1.
func (s *SortedBatch) Search(key addr.Address) int {
	s.settle()
	return search(s.keys, key)
}

func (s *SortedBatch) Mark(key addr.Address) bool {
	i := s.Search(key)
	if i < 0 {
		return false
	}
	if !s.flags[i] {
		s.flags[i] = true
		s.marked++
	}
	return true
}

// Keys returns the sorted key array. The slice aliases internal storage and
// is only valid until the next mutation.
func (s *SortedBatch) Keys() []addr.Address {
	s.settle()
	return s.keys
}

func (s *SortedBatch) Ascend() iter.Seq[Entry] {
	s.settle()
	return func(yield func(Entry) bool) {
		for i, k := range s.keys {
			if !yield(Entry{Key: k, Marked: s.flags[i]}) {
				return
			}
		}
	}
}

// Compact keeps flagged entries, clearing their flags, in one linear pass
// and returns the unflagged keys it removed.
func (s *SortedBatch) Compact() (removed []addr.Address) {
	s.settle()
	n := 0
	for i, k := range s.keys {
		if !s.flags[i] {
			removed = append(removed, k)
			s.members.Remove(uint64(k))
			continue
		}
		s.keys[n] = k
		s.flags[n] = false
		n++
	}
	s.keys = s.keys[:n]
	s.flags = s.flags[:n]
	s.marked = 0
	return removed
}

func (s *SortedBatch) Sweep() (freed, survivors []addr.Address) {
	freed = s.Compact()
	survivors = make([]addr.Address, len(s.keys))
	copy(survivors, s.keys)
	return freed, survivors
}

func (s *SortedBatch) Reset() {
	s.keys = s.keys[:0]
	s.flags = s.flags[:0]
	s.members.Clear()
	s.marked = 0
	s.dirty = false
}

// settle sorts pending arrivals into place. Marks set before the arrivals
// are re-applied by key after the sort.
func (s *SortedBatch) settle() {
	if !s.dirty {
		return
	}
	var live []addr.Address
	if s.marked > 0 {
		live = make([]addr.Address, 0, s.marked)
		for i, f := range s.flags {
			if f {
				live = append(live, s.keys[i])
				s.flags[i] = false
			}
		}
	}
	Sort(s.keys)
	for _, k := range live {
		s.flags[search(s.keys, k)] = true
	}
	s.dirty = false
}
