package progress

import (
	"strconv"
	"strings"
)

// Format encodes a canonical Set as a comma-separated list of
// "start-endInclusive" decimal pairs, e.g. "0-9,20-29". An empty set
// encodes to the empty string.
func Format(s *Set) string {
	if s == nil || len(s.ranges) == 0 {
		return ""
	}
	parts := make([]string, len(s.ranges))
	for i, r := range s.ranges {
		parts[i] = strconv.FormatUint(r.Start, 10) + "-" + strconv.FormatUint(r.End-1, 10)
	}
	return strings.Join(parts, ",")
}

// Parse decodes the on-disk progress encoding produced by Format. The
// empty string decodes to an empty Set. Malformed entries are skipped
// rather than erroring, since persisted state is best-effort and a single
// corrupt entry should not invalidate an otherwise-resumable file.
func Parse(encoded string) *Set {
	s := &Set{}
	if encoded == "" {
		return s
	}
	for _, part := range strings.Split(encoded, ",") {
		dash := strings.IndexByte(part, '-')
		if dash < 0 {
			continue
		}
		start, err := strconv.ParseUint(part[:dash], 10, 64)
		if err != nil {
			continue
		}
		endIncl, err := strconv.ParseUint(part[dash+1:], 10, 64)
		if err != nil || endIncl < start {
			continue
		}
		s.Merge(ByteRange{Start: start, End: endIncl + 1})
	}
	return s
}
