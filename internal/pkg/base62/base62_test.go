package base62

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		num  uint64
		want string
	}{
		{0, "0"},
		{1, "1"},
		{61, "z"},
		{62, "10"},
		{3844, "100"},
		{123456789, "8M0kX"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Encode(tt.num))
	}
}

func TestEncodePadded(t *testing.T) {
	assert.Equal(t, "000001", EncodePadded(1, 6))
	assert.Equal(t, "08M0kX", EncodePadded(123456789, 6))

	// already at or above the minimum, no padding
	long := EncodePadded(1<<62, 6)
	assert.GreaterOrEqual(t, len(long), 6)
}

func TestDecode_RoundTrip(t *testing.T) {
	for _, num := range []uint64{0, 1, 61, 62, 12345, 987654321, 1 << 40} {
		decoded, err := Decode(Encode(num))
		require.NoError(t, err)
		assert.Equal(t, num, decoded)
	}
}

func TestDecode_IgnoresLeadingPadding(t *testing.T) {
	decoded, err := Decode("0008M0kX")
	require.NoError(t, err)
	assert.Equal(t, uint64(123456789), decoded)
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode("")
	assert.Error(t, err)

	_, err = Decode("abc!")
	assert.Error(t, err)
}
