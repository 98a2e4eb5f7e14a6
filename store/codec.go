package store

import (
	"bytes"
	"io"

	"github.com/mstonedag/node/dag"
	"github.com/mstonedag/node/util"
	"github.com/mstonedag/node/util/binaryserializer"
	"github.com/mstonedag/node/util/daghash"
)

// Key prefixes, grounded on the teacher's dagio.go bucket-per-concern
// layout, adapted to goleveldb's flat keyspace.
var (
	prefixVertex       = []byte("v")
	prefixMilestoneIdx = []byte("m") // height -> milestone hash
	prefixUTXO         = []byte("u")
	prefixRegistration = []byte("r")
	prefixHeadHeight   = []byte("h")
)

func vertexKey(hash daghash.Hash) []byte {
	return append(append([]byte{}, prefixVertex...), hash[:]...)
}

func milestoneIdxKey(height uint64) []byte {
	buf := make([]byte, 8)
	putUint64(buf, height)
	return append(append([]byte{}, prefixMilestoneIdx...), buf...)
}

func utxoKey(out dag.Outpoint) []byte {
	buf := append(append([]byte{}, prefixUTXO...), out.TxID[:]...)
	idx := make([]byte, 4)
	putUint32(idx, out.Index)
	return append(buf, idx...)
}

func registrationKey(account daghash.Hash) []byte {
	return append(append([]byte{}, prefixRegistration...), account[:]...)
}

func putUint64(buf []byte, v uint64) {
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * (7 - i)))
	}
}

func putUint32(buf []byte, v uint32) {
	for i := 0; i < 4; i++ {
		buf[i] = byte(v >> (8 * (3 - i)))
	}
}

// encodeUTXOEntry and decodeUTXOEntry use binaryserializer for the fixed
// fields, grounded on the teacher's dagio.go (de)serialization style.
func encodeUTXOEntry(e *dag.UTXOEntry) ([]byte, error) {
	var buf bytes.Buffer
	if err := binaryserializer.PutUint64(&buf, uint64(e.Output.Value)); err != nil {
		return nil, err
	}
	if err := binaryserializer.PutUint64(&buf, e.BlockHeight); err != nil {
		return nil, err
	}
	if err := binaryserializer.PutUint32(&buf, uint32(len(e.Output.Script))); err != nil {
		return nil, err
	}
	buf.Write(e.Output.Script)
	return buf.Bytes(), nil
}

func decodeUTXOEntry(raw []byte) (*dag.UTXOEntry, error) {
	r := bytes.NewReader(raw)
	value, err := binaryserializer.Uint64(r)
	if err != nil {
		return nil, err
	}
	height, err := binaryserializer.Uint64(r)
	if err != nil {
		return nil, err
	}
	scriptLen, err := binaryserializer.Uint32(r)
	if err != nil {
		return nil, err
	}
	script := make([]byte, scriptLen)
	if scriptLen > 0 {
		if _, err := io.ReadFull(r, script); err != nil {
			return nil, err
		}
	}
	return &dag.UTXOEntry{
		Output:      dag.TxOutput{Value: util.Amount(value), Script: script},
		BlockHeight: height,
	}, nil
}
