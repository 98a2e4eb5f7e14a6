package wire

import (
	"bytes"
	"io"

	"github.com/mstonedag/node/util/binaryserializer"
	"github.com/mstonedag/node/util/daghash"
	"github.com/pkg/errors"
)

func writeHash(w io.Writer, h *daghash.Hash) error {
	_, err := w.Write(h[:])
	return errors.WithStack(err)
}

func readHash(r io.Reader) (*daghash.Hash, error) {
	var h daghash.Hash
	if _, err := io.ReadFull(r, h[:]); err != nil {
		return nil, errors.WithStack(err)
	}
	return &h, nil
}

func writeHashSlice(w io.Writer, hashes []*daghash.Hash) error {
	if err := binaryserializer.PutUint64(w, uint64(len(hashes))); err != nil {
		return err
	}
	for _, h := range hashes {
		if err := writeHash(w, h); err != nil {
			return err
		}
	}
	return nil
}

func readHashSlice(r io.Reader) ([]*daghash.Hash, error) {
	n, err := binaryserializer.Uint64(r)
	if err != nil {
		return nil, err
	}
	hashes := make([]*daghash.Hash, 0, n)
	for i := uint64(0); i < n; i++ {
		h, err := readHash(r)
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, h)
	}
	return hashes, nil
}

func newReader(b []byte) *bytes.Reader {
	return bytes.NewReader(b)
}
