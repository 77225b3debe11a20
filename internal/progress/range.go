// Package progress implements the byte-range algebra used to track which
// parts of a download have completed: a half-open ByteRange and the
// canonical, disjoint ProgressSet built from a sequence of them.
package progress

import "fmt"

// ByteRange is the half-open interval [Start, End) over byte offsets.
type ByteRange struct {
	Start uint64
	End   uint64
}

// NewByteRange returns the range [start, end). It panics if end < start,
// matching the invariant that callers are expected to uphold internally.
func NewByteRange(start, end uint64) ByteRange {
	if end < start {
		panic(fmt.Sprintf("progress: invalid range [%d, %d)", start, end))
	}
	return ByteRange{Start: start, End: end}
}

// Empty reports whether the range covers zero bytes.
func (r ByteRange) Empty() bool {
	return r.Start == r.End
}

// Len returns the number of bytes covered by the range.
func (r ByteRange) Len() uint64 {
	return r.End - r.Start
}

// Mergeable reports whether r and other touch or overlap, i.e. their union
// is a single contiguous range.
func (r ByteRange) Mergeable(other ByteRange) bool {
	return r.Start <= other.End && other.Start <= r.End
}

// Union returns the smallest range covering both r and other. Callers
// should only call this when Mergeable(other) is true.
func (r ByteRange) Union(other ByteRange) ByteRange {
	start := r.Start
	if other.Start < start {
		start = other.Start
	}
	end := r.End
	if other.End > end {
		end = other.End
	}
	return ByteRange{Start: start, End: end}
}

func (r ByteRange) String() string {
	return fmt.Sprintf("[%d, %d)", r.Start, r.End)
}
