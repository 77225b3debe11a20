package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSet_MergeCanonicalForm(t *testing.T) {
	cases := []struct {
		name  string
		input []ByteRange
		want  []ByteRange
	}{
		{
			name:  "disjoint ranges stay separate",
			input: []ByteRange{{0, 10}, {20, 30}},
			want:  []ByteRange{{0, 10}, {20, 30}},
		},
		{
			name:  "overlapping ranges fuse",
			input: []ByteRange{{0, 10}, {5, 15}},
			want:  []ByteRange{{0, 15}},
		},
		{
			name:  "adjacent ranges fuse (no touching gap allowed)",
			input: []ByteRange{{0, 10}, {10, 20}},
			want:  []ByteRange{{0, 20}},
		},
		{
			name:  "out of order input still canonicalizes",
			input: []ByteRange{{20, 30}, {0, 10}, {10, 20}},
			want:  []ByteRange{{0, 30}},
		},
		{
			name:  "insert fuses both neighbors at once",
			input: []ByteRange{{0, 5}, {10, 15}, {5, 10}},
			want:  []ByteRange{{0, 15}},
		},
		{
			name:  "empty ranges are ignored",
			input: []ByteRange{{5, 5}, {0, 10}},
			want:  []ByteRange{{0, 10}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSet(tc.input...)
			assert.Equal(t, tc.want, s.Ranges())
		})
	}
}

func TestSet_ComplementLaw(t *testing.T) {
	s := NewSet(ByteRange{0, 5}, ByteRange{7, 10})
	gaps := s.Complement(10)

	merged := NewSet(append(append([]ByteRange{}, s.Ranges()...), gaps...)...)
	require.EqualValues(t, 10, merged.Total())
	assert.Equal(t, []ByteRange{{0, 10}}, merged.Ranges())
}

func TestSet_ComplementEmpty(t *testing.T) {
	s := NewSet()
	assert.Equal(t, []ByteRange{{0, 10}}, s.Complement(10))
}

func TestSet_ComplementScenario(t *testing.T) {
	s := NewSet(ByteRange{0, 5}, ByteRange{7, 10})
	assert.Equal(t, []ByteRange{{5, 7}}, s.Complement(10))
}

func TestSet_Total(t *testing.T) {
	s := NewSet(ByteRange{0, 10}, ByteRange{20, 25})
	assert.EqualValues(t, 15, s.Total())
}
