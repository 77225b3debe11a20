package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatParseRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		set  *Set
	}{
		{"empty", NewSet()},
		{"single range", NewSet(ByteRange{5, 15})},
		{"multiple ranges", NewSet(ByteRange{0, 10}, ByteRange{20, 30})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			encoded := Format(tc.set)
			decoded := Parse(encoded)
			assert.Equal(t, tc.set.Ranges(), decoded.Ranges(), "round trip mismatch")
		})
	}
}

func TestParseScenario(t *testing.T) {
	assert.Equal(t, []ByteRange{{0, 10}, {20, 30}}, Parse("0-9,20-29").Ranges())
}

func TestFormatScenario(t *testing.T) {
	assert.Equal(t, "5-14", Format(NewSet(ByteRange{5, 15})))
}

func TestParseEmptyString(t *testing.T) {
	assert.Empty(t, Parse("").Ranges())
}

func TestParseIgnoresMalformedEntries(t *testing.T) {
	assert.Equal(t, []ByteRange{{0, 10}, {20, 30}}, Parse("0-9,garbage,20-29").Ranges())
}
