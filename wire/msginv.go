package wire

import (
	"bytes"

	"github.com/mstonedag/node/util/binaryserializer"
	"github.com/mstonedag/node/util/daghash"
)

// MsgInv answers a GetInv. An empty Hashes means "we are at the same head".
// A single-element Hashes containing only the genesis hash means "no
// intersection, widen your locator" (spec.md §6, B1/B2).
type MsgInv struct {
	Hashes []*daghash.Hash
	Nonce  uint64
}

func (msg *MsgInv) Command() Command { return CmdInv }

func (msg *MsgInv) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeHashSlice(&buf, msg.Hashes); err != nil {
		return nil, err
	}
	if err := binaryserializer.PutUint64(&buf, msg.Nonce); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (msg *MsgInv) Decode(b []byte) error {
	r := newReader(b)
	hashes, err := readHashSlice(r)
	if err != nil {
		return err
	}
	nonce, err := binaryserializer.Uint64(r)
	if err != nil {
		return err
	}
	msg.Hashes = hashes
	msg.Nonce = nonce
	return nil
}
