package wire

import (
	"testing"

	"github.com/mstonedag/node/util/daghash"
	"github.com/stretchr/testify/require"
)

func hashFromByte(b byte) *daghash.Hash {
	var h daghash.Hash
	h[0] = b
	return &h
}

func TestMsgGetInvRoundTrip(t *testing.T) {
	msg := &MsgGetInv{Locator: []*daghash.Hash{hashFromByte(1), hashFromByte(2)}, Nonce: 42}
	encoded, err := msg.Encode()
	require.NoError(t, err)

	decoded := &MsgGetInv{}
	require.NoError(t, decoded.Decode(encoded))
	require.Equal(t, msg.Nonce, decoded.Nonce)
	require.Len(t, decoded.Locator, 2)
	require.True(t, msg.Locator[0].IsEqual(decoded.Locator[0]))
}

func TestMsgInvEmptyMeansSameHead(t *testing.T) {
	msg := &MsgInv{Hashes: nil, Nonce: 7}
	encoded, err := msg.Encode()
	require.NoError(t, err)

	decoded := &MsgInv{}
	require.NoError(t, decoded.Decode(encoded))
	require.Empty(t, decoded.Hashes)
}

func TestMsgGetDataRoundTrip(t *testing.T) {
	msg := &MsgGetData{
		Kind: InvKindLevelSet,
		Requests: []GetDataRequest{
			{Hash: hashFromByte(3), Nonce: 1},
			{Hash: hashFromByte(4), Nonce: 2},
		},
	}
	encoded, err := msg.Encode()
	require.NoError(t, err)

	decoded := &MsgGetData{}
	require.NoError(t, decoded.Decode(encoded))
	require.Equal(t, InvKindLevelSet, decoded.Kind)
	require.Len(t, decoded.Requests, 2)
}

func TestMsgBundleRoundTrip(t *testing.T) {
	msg := &MsgBundle{Nonce: 9, Payload: []byte("level-set-payload")}
	encoded, err := msg.Encode()
	require.NoError(t, err)

	decoded := &MsgBundle{}
	require.NoError(t, decoded.Decode(encoded))
	require.Equal(t, msg.Payload, decoded.Payload)
}

func TestMsgNotFoundRoundTrip(t *testing.T) {
	msg := &MsgNotFound{Hash: hashFromByte(5), Nonce: 11}
	encoded, err := msg.Encode()
	require.NoError(t, err)

	decoded := &MsgNotFound{}
	require.NoError(t, decoded.Decode(encoded))
	require.True(t, msg.Hash.IsEqual(decoded.Hash))
}
