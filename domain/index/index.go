package index

import (
	"fmt"
	"iter"

	"github.com/cockroachdb/errors"

	"reclaim/domain/addr"
)

// Entry is one retired address and its liveness mark.
type Entry struct {
	Key    addr.Address
	Marked bool
}

// Index is the contract a reclamation cycle drives.
type Index interface {
	// Insert adds key unmarked. It reports false if key was already present.
	Insert(key addr.Address) bool

	Contains(key addr.Address) bool

	// Mark flags key as still live. It reports whether key was found.
	// Marking twice is the same as marking once.
	Mark(key addr.Address) bool

	// BuildFrom inserts every key and returns how many were new.
	BuildFrom(keys []addr.Address) int

	Len() int

	// Ascend yields entries in key order. Mutating the index while ranging
	// over the sequence is not supported; call Ascend again instead.
	Ascend() iter.Seq[Entry]

	// Sweep partitions the index: unmarked keys are removed and returned as
	// freed, marked keys stay in the index with their mark cleared and are
	// returned as survivors. Both slices are in ascending order.
	Sweep() (freed, survivors []addr.Address)

	// Reset drops every entry.
	Reset()
}

// Backend selects an Index implementation.
type Backend uint8

const (
	BackendAVL Backend = iota
	BackendSortedBatch
)

func (b Backend) String() string {
	switch b {
	case BackendAVL:
		return "avl"
	case BackendSortedBatch:
		return "sorted-batch"
	default:
		return fmt.Sprintf("backend(%d)", uint8(b))
	}
}

// ParseBackend maps a configuration name to a Backend.
func ParseBackend(name string) (Backend, error) {
	switch name {
	case "avl", "tree", "":
		return BackendAVL, nil
	case "sorted-batch", "sorted", "batch":
		return BackendSortedBatch, nil
	default:
		return 0, errors.Newf("index: unknown backend %q", name)
	}
}

// New returns an empty index for the given backend.
func New(b Backend) Index {
	switch b {
	case BackendSortedBatch:
		return NewSortedBatch()
	default:
		return NewAVLTree()
	}
}
