package wire

import (
	"bytes"

	"github.com/mstonedag/node/util/binaryserializer"
	"github.com/mstonedag/node/util/daghash"
	"github.com/pkg/errors"
)

// GetDataRequest is one (hash, nonce) pair within a MsgGetData batch.
type GetDataRequest struct {
	Hash  *daghash.Hash
	Nonce uint64
}

// MsgGetData requests either a milestone's level-set or a chain's pending
// set for each listed hash (spec.md §6). Batched to at most maxGetDataSize
// entries by RequestData (spec.md §4.5.4); this type just carries the batch.
type MsgGetData struct {
	Kind     InvKind
	Requests []GetDataRequest
}

func (msg *MsgGetData) Command() Command { return CmdGetData }

func (msg *MsgGetData) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := binaryserializer.PutUint8(&buf, uint8(msg.Kind)); err != nil {
		return nil, err
	}
	if err := binaryserializer.PutUint64(&buf, uint64(len(msg.Requests))); err != nil {
		return nil, err
	}
	for _, req := range msg.Requests {
		if err := writeHash(&buf, req.Hash); err != nil {
			return nil, err
		}
		if err := binaryserializer.PutUint64(&buf, req.Nonce); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func (msg *MsgGetData) Decode(b []byte) error {
	r := newReader(b)
	kind, err := binaryserializer.Uint8(r)
	if err != nil {
		return err
	}
	n, err := binaryserializer.Uint64(r)
	if err != nil {
		return err
	}
	requests := make([]GetDataRequest, 0, n)
	for i := uint64(0); i < n; i++ {
		hash, err := readHash(r)
		if err != nil {
			return err
		}
		nonce, err := binaryserializer.Uint64(r)
		if err != nil {
			return err
		}
		requests = append(requests, GetDataRequest{Hash: hash, Nonce: nonce})
	}
	if kind != uint8(InvKindLevelSet) && kind != uint8(InvKindPendingSet) {
		return errors.Errorf("unknown inventory kind %d", kind)
	}
	msg.Kind = InvKind(kind)
	msg.Requests = requests
	return nil
}
