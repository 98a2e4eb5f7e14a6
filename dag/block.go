// Package dag implements the consensus DAG engine: the Vertex/Milestone
// model (C1), the Orphan Block Container (C2), Chain (C3), the
// Milestone-Chain Set (C4), the DAG Manager (C5), the Flush Pipeline (C6)
// and the Sync Protocol Glue (C7) described in spec.md.
//
// The block/transaction binary format, the signature scheme and the P2P
// transport are named external collaborators (spec.md §1) and are not
// implemented here — Block is the minimal in-memory shape this engine
// needs to do its job, not a wire codec.
package dag

import (
	"time"

	"github.com/mstonedag/node/util/daghash"
)

// Block is the immutable record this engine reasons about. Three parent
// references are required; genesis is the sole block allowed to omit them
// (spec.md §3).
type Block struct {
	Version int32

	// MilestoneParent is the milestone this block considers its chain-state
	// reference point.
	MilestoneParent daghash.Hash
	// PrevParent and TipParent are the other two required parent edges
	// used to discover level-set membership (spec.md §4.3).
	PrevParent daghash.Hash
	TipParent  daghash.Hash

	Timestamp time.Time

	// Bits is the compact difficulty target this block claims to satisfy.
	Bits uint32
	Nonce uint64

	Transactions []*Transaction

	// ProofHash is the block's content hash and proof-of-work target
	// subject, supplied by the (out of scope) block format collaborator.
	ProofHash daghash.Hash
}

// Hash returns the block's content address.
func (b *Block) Hash() daghash.Hash {
	return b.ProofHash
}

// IsGenesis reports whether b is the DAG's sole parent-less terminator.
func (b *Block) IsGenesis() bool {
	return b.MilestoneParent == daghash.ZeroHash &&
		b.PrevParent == daghash.ZeroHash &&
		b.TipParent == daghash.ZeroHash
}

// WellFormed reports whether all three required parent hashes are present,
// per spec.md §3 ("the block is well-formed only if all three hashes are
// present; genesis is the sole terminator").
func (b *Block) WellFormed() bool {
	if b.IsGenesis() {
		return true
	}
	return b.MilestoneParent != daghash.ZeroHash &&
		b.PrevParent != daghash.ZeroHash &&
		b.TipParent != daghash.ZeroHash
}

// ParentHashes returns the three parent edges in (milestone, prev, tip)
// order. Note this is not the OBC's missing-parent mask bit order (that
// order is milestone, tip, prev) — callers map by parent name, not by
// tuple index.
func (b *Block) ParentHashes() [3]daghash.Hash {
	return [3]daghash.Hash{b.MilestoneParent, b.PrevParent, b.TipParent}
}

// GetMilestoneHash returns the milestone-parent of the contained block
// (spec.md §4.1).
func (b *Block) GetMilestoneHash() daghash.Hash {
	return b.MilestoneParent
}

// IsMilestoneCandidate reports whether the block's proof hash satisfies
// the milestoneTarget carried by the referenced milestone snapshot
// (spec.md §4.5.2): the block is itself a milestone.
func (b *Block) IsMilestoneCandidate(milestoneTarget uint32) bool {
	return compactLessOrEqual(b.ProofHash, milestoneTarget)
}

// compactLessOrEqual reports whether hash, interpreted as a big-endian
// integer, is less than or equal to the value the compact target bits
// represents. The bit-exact expansion of a compact target is owned by the
// (out of scope) block format collaborator; this engine only needs the
// comparison, grounded on the teacher's CompactToBig/BigToCompact pattern
// in blockdag/difficulty.go.
func compactLessOrEqual(hash daghash.Hash, bits uint32) bool {
	target := CompactToBig(bits)
	hashInt := hashToBigEndianUint(hash)
	return hashInt.Cmp(target) <= 0
}
