package index

import "reclaim/domain/addr"

// insertionThreshold is the partition size at or below which quicksort
// hands off to insertion sort.
const insertionThreshold = 16

// Sort orders keys ascending in place.
//
// It is a quicksort with the middle element as pivot and no randomization:
// adversarial input can still drive it to O(n^2) comparisons. Recursion only
// descends into the smaller partition, so stack depth stays O(log n).
func Sort(keys []addr.Address) {
	lo, hi := 0, len(keys)-1
	for hi-lo > insertionThreshold {
		mid := partition(keys, lo, hi)
		if mid-lo < hi-mid {
			Sort(keys[lo:mid])
			lo = mid + 1
		} else {
			Sort(keys[mid+1 : hi+1])
			hi = mid - 1
		}
	}
	insertionSort(keys, lo, hi)
}

// partition moves the middle element to hi, gathers every key <= pivot to
// the front and returns the pivot's final position.
func partition(keys []addr.Address, lo, hi int) int {
	pivot := lo + (hi-lo)/2
	pv := keys[pivot]
	keys[pivot], keys[hi] = keys[hi], keys[pivot]
	store := lo
	for i := lo; i < hi; i++ {
		if keys[i] <= pv {
			keys[i], keys[store] = keys[store], keys[i]
			store++
		}
	}
	keys[store], keys[hi] = keys[hi], keys[store]
	return store
}

func insertionSort(keys []addr.Address, lo, hi int) {
	for i := lo + 1; i <= hi; i++ {
		for j := i; j > lo && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
}

// Compact removes adjacent duplicates from sorted keys and returns the
// shortened slice.
func Compact(keys []addr.Address) []addr.Address {
	if len(keys) < 2 {
		return keys
	}
	n := 1
	for i := 1; i < len(keys); i++ {
		if keys[i] != keys[n-1] {
			keys[n] = keys[i]
			n++
		}
	}
	return keys[:n]
}

// search returns the position of key in sorted keys, or -1.
func search(keys []addr.Address, key addr.Address) int {
	lo, hi := 0, len(keys)-1
	for lo <= hi {
		mid := lo + (hi-lo)/2
		switch {
		case keys[mid] == key:
			return mid
		case key < keys[mid]:
			hi = mid - 1
		default:
			lo = mid + 1
		}
	}
	return -1
}
