package progress

import "sort"

// Set is an ordered, canonical sequence of ByteRange: strictly increasing
// Start, pairwise disjoint, and with no two ranges adjacent (no a.End ==
// b.Start). Every exported mutator restores this invariant before
// returning. The zero value is an empty set.
type Set struct {
	ranges []ByteRange
}

// NewSet builds a canonical Set from an arbitrary (possibly unsorted,
// possibly overlapping) slice of ranges.
func NewSet(ranges ...ByteRange) *Set {
	s := &Set{}
	for _, r := range ranges {
		s.Merge(r)
	}
	return s
}

// Ranges returns the canonical ranges in order. The returned slice must
// not be mutated by the caller.
func (s *Set) Ranges() []ByteRange {
	return s.ranges
}

// Total returns the sum of the lengths of every range in the set.
func (s *Set) Total() uint64 {
	var total uint64
	for _, r := range s.ranges {
		total += r.Len()
	}
	return total
}

// Merge inserts r into the canonical form, fusing it with any predecessor
// or successor it touches or overlaps. O(log n) search for the insertion
// point, then the set is rebuilt into a fresh slice, which copies every
// range (O(n)).
func (s *Set) Merge(r ByteRange) {
	if r.Empty() {
		return
	}

	// Find the first range whose End is >= r.Start; everything before it
	// is strictly before r and cannot merge.
	lo := sort.Search(len(s.ranges), func(i int) bool {
		return s.ranges[i].End >= r.Start
	})

	hi := lo
	merged := r
	for hi < len(s.ranges) && s.ranges[hi].Mergeable(merged) {
		merged = merged.Union(s.ranges[hi])
		hi++
	}

	out := make([]ByteRange, 0, len(s.ranges)-(hi-lo)+1)
	out = append(out, s.ranges[:lo]...)
	out = append(out, merged)
	out = append(out, s.ranges[hi:]...)
	s.ranges = out
}

// Complement returns the ranges in [0, totalSize) not covered by s, in
// ascending order. If s is empty, it returns [0, totalSize) as a single
// range (or nothing if totalSize is 0).
func (s *Set) Complement(totalSize uint64) []ByteRange {
	var gaps []ByteRange
	var cursor uint64
	for _, r := range s.ranges {
		if r.Start > cursor {
			gaps = append(gaps, ByteRange{Start: cursor, End: r.Start})
		}
		if r.End > cursor {
			cursor = r.End
		}
	}
	if cursor < totalSize {
		gaps = append(gaps, ByteRange{Start: cursor, End: totalSize})
	}
	return gaps
}

// Clone returns a deep copy of s.
func (s *Set) Clone() *Set {
	c := &Set{ranges: make([]ByteRange, len(s.ranges))}
	copy(c.ranges, s.ranges)
	return c
}
