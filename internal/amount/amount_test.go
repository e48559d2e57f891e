package amount

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: `100`, want: "100"},
		{in: `"100"`, want: "100"},
		{in: `"0x0de0b6b3a7640000"`, want: "1000000000000000000"},
		{in: `"1,000"`, want: "1000"},
		{in: `1e3`, want: "1000"},
		{in: `"340282366920938463463374607431768211455"`, want: "340282366920938463463374607431768211455"},
	}
	for _, tt := range tests {
		got, err := Parse(json.RawMessage(tt.in))
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, Format(got), tt.in)
	}
}

func TestParseRejects(t *testing.T) {
	for _, in := range []string{`-1`, `"1.5"`, `{"v":1}`, `null`, `""`, `"0xzz"`, `[1]`} {
		_, err := Parse(json.RawMessage(in))
		assert.Error(t, err, in)
	}
}
