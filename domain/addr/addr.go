// Package addr defines the value types shared by the reclamation core:
// retired addresses and the half-open address ranges that describe thread
// stacks and scan roots.
package addr

import "fmt"

// WordSize is the width of one scanned memory word.
const WordSize = 8

// tagMask clears the two low-order bits some structures use to tag pointers.
const tagMask = ^Address(3)

// Address is an opaque integer key for a retired (or live) heap object.
type Address uint64

// Mask strips pointer tag bits so a tagged reference compares equal to the
// address it refers to.
func Mask(v uint64) Address {
	return Address(v) & tagMask
}

func (a Address) String() string {
	return fmt.Sprintf("%#x", uint64(a))
}

// Range is the half-open interval [Low, High).
type Range struct {
	Low  Address
	High Address
}

func (r Range) Contains(a Address) bool {
	return a >= r.Low && a < r.High
}

func (r Range) Empty() bool {
	return r.High <= r.Low
}

// Len returns the size of the range in bytes.
func (r Range) Len() uint64 {
	if r.Empty() {
		return 0
	}
	return uint64(r.High - r.Low)
}

// Words returns how many whole words fit in the range.
func (r Range) Words() uint64 {
	return r.Len() / WordSize
}

// Split cuts r into consecutive pieces of at most maxBytes each.
// A zero maxBytes returns r unchanged.
func (r Range) Split(maxBytes uint64) []Range {
	if r.Empty() {
		return nil
	}
	if maxBytes == 0 || r.Len() <= maxBytes {
		return []Range{r}
	}
	out := make([]Range, 0, r.Len()/maxBytes+1)
	for low := r.Low; low < r.High; {
		high := low + Address(maxBytes)
		if high > r.High || high < low {
			high = r.High
		}
		out = append(out, Range{Low: low, High: high})
		low = high
	}
	return out
}

func (r Range) String() string {
	return fmt.Sprintf("[%s, %s)", r.Low, r.High)
}
