// Package index implements the retired-pointer index: the ordered set of
// addresses retired during a reclamation cycle, each with a mark flag the
// scanner sets when the address is still reachable.
//
// Two interchangeable backends satisfy the Index interface:
//
//   - AVLTree: height-balanced tree, O(log n) insert/contains/mark.
//   - SortedBatch: sorted array plus parallel flags, re-sorted once per
//     batch of arrivals and searched with binary search.
//
// Both backends use the same mark convention: a marked entry is still live
// and survives the sweep; an unmarked entry is returned as freed.
//
// An Index is not safe for concurrent use. The reclamation cycle that owns
// it serializes every call.
package index
