package daghash

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashString(t *testing.T) {
	var h Hash
	h[0] = 0xab
	h[31] = 0xcd
	require.Equal(t, 64, len(h.String()))
	require.True(t, h.String()[:2] == "ab")
	require.True(t, h.String()[62:] == "cd")
}

func TestHashSetBytesWrongLength(t *testing.T) {
	var h Hash
	err := h.SetBytes([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestNewHashFromStrRoundTrip(t *testing.T) {
	orig := Hash{}
	orig[5] = 0x42
	parsed, err := NewHashFromStr(orig.String())
	require.NoError(t, err)
	require.True(t, orig.IsEqual(parsed))
}

func TestIsEqualNilHandling(t *testing.T) {
	var a, b *Hash
	require.True(t, a.IsEqual(b))

	h := Hash{1}
	require.False(t, h.IsEqual(nil))
}

func TestHashLessIsATotalOrder(t *testing.T) {
	a := Hash{1}
	b := Hash{2}
	require.True(t, a.Less(b))
	require.False(t, b.Less(a))
	require.False(t, a.Less(a))
}
