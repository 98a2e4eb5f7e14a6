package wire

import (
	"bytes"

	"github.com/mstonedag/node/util/binaryserializer"
	"github.com/mstonedag/node/util/daghash"
)

// MsgNotFound answers a GetData request whose hash could not be served,
// either because the level-set was never stored or because it has since
// been pruned (spec.md §6, and the supplemented NotFound-cause distinction
// carried from original_source/ — see SPEC_FULL.md).
type MsgNotFound struct {
	Hash  *daghash.Hash
	Nonce uint64
}

func (msg *MsgNotFound) Command() Command { return CmdNotFound }

func (msg *MsgNotFound) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeHash(&buf, msg.Hash); err != nil {
		return nil, err
	}
	if err := binaryserializer.PutUint64(&buf, msg.Nonce); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (msg *MsgNotFound) Decode(b []byte) error {
	r := newReader(b)
	hash, err := readHash(r)
	if err != nil {
		return err
	}
	nonce, err := binaryserializer.Uint64(r)
	if err != nil {
		return err
	}
	msg.Hash = hash
	msg.Nonce = nonce
	return nil
}
