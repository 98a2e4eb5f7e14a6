package wire

import (
	"bytes"

	"github.com/mstonedag/node/util/binaryserializer"
	"github.com/mstonedag/node/util/daghash"
)

// MsgGetInv asks a peer "what do you have, from here back?" — it carries a
// block locator built by ConstructLocator (spec.md §4.5.4).
type MsgGetInv struct {
	Locator []*daghash.Hash
	Nonce   uint64
}

func (msg *MsgGetInv) Command() Command { return CmdGetInv }

func (msg *MsgGetInv) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeHashSlice(&buf, msg.Locator); err != nil {
		return nil, err
	}
	if err := binaryserializer.PutUint64(&buf, msg.Nonce); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (msg *MsgGetInv) Decode(b []byte) error {
	r := newReader(b)
	locator, err := readHashSlice(r)
	if err != nil {
		return err
	}
	nonce, err := binaryserializer.Uint64(r)
	if err != nil {
		return err
	}
	msg.Locator = locator
	msg.Nonce = nonce
	return nil
}
