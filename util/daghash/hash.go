// Package daghash provides the Hash type used to content-address blocks,
// vertices and milestones throughout the DAG engine.
package daghash

import (
	"encoding/hex"

	"github.com/pkg/errors"
)

// HashSize is the number of bytes in a Hash.
const HashSize = 32

// MaxHashStringSize is the maximum length of a Hash hash string.
const MaxHashStringSize = HashSize * 2

// ErrHashStrSize describes an error that indicates the caller specified a
// hash string that has too many characters.
var ErrHashStrSize = errors.Errorf("max hash string length is %v bytes", MaxHashStringSize)

// Hash is a 256-bit opaque identifier. The engine treats it as a content
// address produced by the block/transaction format collaborator (out of
// scope here); Hash itself carries no hashing logic.
type Hash [HashSize]byte

// ZeroHash is the Hash value of all zero bytes, used for the genesis
// parent sentinel and as a wire "no value" marker.
var ZeroHash Hash

// String returns the Hash as a hexadecimal string.
func (hash Hash) String() string {
	return hex.EncodeToString(hash[:])
}

// Bytes returns the bytes that make up the Hash.
func (hash Hash) Bytes() []byte {
	newHash := make([]byte, HashSize)
	copy(newHash, hash[:])
	return newHash
}

// SetBytes sets the bytes which represent the Hash. An error is returned
// if the argument has an invalid length.
func (hash *Hash) SetBytes(newHash []byte) error {
	nhlen := len(newHash)
	if nhlen != HashSize {
		return errors.Errorf("invalid hash length of %v, want %v", nhlen, HashSize)
	}
	copy(hash[:], newHash)
	return nil
}

// IsEqual returns true if the two hashes are the same. Two nils are equal;
// nil never equals a non-nil hash, not even the zero hash.
func (hash *Hash) IsEqual(target *Hash) bool {
	if hash == nil && target == nil {
		return true
	}
	if hash == nil || target == nil {
		return false
	}
	return *hash == *target
}

// Less orders hashes lexicographically by byte value. Used to make
// iteration order over hash-keyed maps deterministic where the spec
// requires it (e.g. OBC release order is insertion order, not hash order —
// Less exists for structures where any total order will do, such as
// sorting a locator's tie-break set in tests).
func (hash Hash) Less(other Hash) bool {
	for i := 0; i < HashSize; i++ {
		if hash[i] != other[i] {
			return hash[i] < other[i]
		}
	}
	return false
}

// NewHash returns a new Hash from a byte slice.
func NewHash(newHash []byte) (*Hash, error) {
	var sh Hash
	err := sh.SetBytes(newHash)
	if err != nil {
		return nil, err
	}
	return &sh, nil
}

// NewHashFromStr creates a Hash from a hash string. The string should be
// the hexadecimal string of the hash.
func NewHashFromStr(hash string) (*Hash, error) {
	ret := new(Hash)
	err := Decode(ret, hash)
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// Decode decodes the hex string encoding of a Hash into dst.
func Decode(dst *Hash, src string) error {
	if len(src) > MaxHashStringSize {
		return ErrHashStrSize
	}

	decoded, err := hex.DecodeString(src)
	if err != nil {
		return errors.WithStack(err)
	}
	return dst.SetBytes(decoded)
}
