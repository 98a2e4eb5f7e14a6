package wire

import (
	"bytes"

	"github.com/mstonedag/node/util/binaryserializer"
)

// MsgBundle carries the serialized payload of one requested level-set
// (spec.md §6). Canonical ordering places the milestone vertex first in
// the raw wire form, reversed from the in-memory convention where it is
// last — callers building Payload (sync.RespondRequestLVS) and callers
// consuming it (the peer's IBD path) must agree on this, not this type.
type MsgBundle struct {
	Nonce   uint64
	Payload []byte
}

func (msg *MsgBundle) Command() Command { return CmdBundle }

func (msg *MsgBundle) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := binaryserializer.PutUint64(&buf, msg.Nonce); err != nil {
		return nil, err
	}
	if err := binaryserializer.PutUint64(&buf, uint64(len(msg.Payload))); err != nil {
		return nil, err
	}
	buf.Write(msg.Payload)
	return buf.Bytes(), nil
}

func (msg *MsgBundle) Decode(b []byte) error {
	r := newReader(b)
	nonce, err := binaryserializer.Uint64(r)
	if err != nil {
		return err
	}
	n, err := binaryserializer.Uint64(r)
	if err != nil {
		return err
	}
	payload := make([]byte, n)
	if _, err := r.Read(payload); err != nil && n > 0 {
		return err
	}
	msg.Nonce = nonce
	msg.Payload = payload
	return nil
}
