package protocol

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytes32_RoundTrip(t *testing.T) {
	original, err := NewBytes32FromString("0x00000000000000000000000000000000000000000000000000000000000000ff")
	require.NoError(t, err)
	assert.Equal(t, byte(0xff), original[31])

	parsed, err := NewBytes32FromString(original.String())
	require.NoError(t, err)
	require.Equal(t, original, parsed)

	raw, err := json.Marshal(original)
	require.NoError(t, err)
	var decoded Bytes32
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, original, decoded)
}

func TestNewBytes32FromString_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "missing prefix", input: "ff"},
		{name: "too long", input: "0x" + strings.Repeat("f", 66)},
		{name: "not hex", input: "0xzz"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewBytes32FromString(tc.input)
			require.Error(t, err)
		})
	}
}

func TestBytes32_IsEmpty(t *testing.T) {
	assert.True(t, Bytes32{}.IsEmpty())
	assert.False(t, Bytes32{0x01}.IsEmpty())
}

func TestByteSlice_JSON(t *testing.T) {
	tests := []struct {
		name string
		in   ByteSlice
		json string
	}{
		{name: "nil", in: nil, json: "null"},
		{name: "empty", in: ByteSlice{}, json: `"0x"`},
		{name: "bytes", in: ByteSlice{0xde, 0xad}, json: `"0xdead"`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := json.Marshal(tc.in)
			require.NoError(t, err)
			assert.JSONEq(t, tc.json, string(raw))

			var back ByteSlice
			require.NoError(t, json.Unmarshal(raw, &back))
			assert.Equal(t, tc.in, back)
		})
	}
}
