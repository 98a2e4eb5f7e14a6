package dag

import (
	"github.com/mstonedag/node/util"
	"github.com/mstonedag/node/util/daghash"
)

// Vertex wraps a Block with the derived fields the engine computes during
// verification (spec.md §4.1). Fields are mutated only until the vertex is
// sealed by a milestone (by Chain.Verify); afterwards they are read-only
// until the vertex is evicted on flush.
type Vertex struct {
	Block *Block

	// Height is the milestone height of the milestone this vertex points
	// to, or of itself if it is a milestone.
	Height uint64

	// MinerChainHeight is the number of hops down this vertex's own
	// miner-chain (prev-parent edges) back to genesis.
	MinerChainHeight uint64

	// CumulativeReward is the total reward attributed to this vertex's
	// miner chain up to and including this vertex.
	CumulativeReward util.Amount

	IsMilestone bool
	IsRedeemed  bool

	// Snapshot is non-nil only when IsMilestone is true (invariant I3).
	Snapshot *Milestone
}

// Hash returns the contained block's hash.
func (v *Vertex) Hash() daghash.Hash {
	return v.Block.Hash()
}

// GetMilestoneHash returns the milestone-parent of the contained block
// (spec.md §4.1).
func (v *Vertex) GetMilestoneHash() daghash.Hash {
	return v.Block.GetMilestoneHash()
}

// LevelSetEntry is a weak reference to a sealed Vertex (spec.md §4.1,
// design note §9): the Milestone snapshot holds these, not strong *Vertex
// pointers, so the vertex-owns-snapshot cycle can be broken by flush
// without a finalizer. Go has no ambient weak-pointer primitive at this
// module's language level, so the "weak" discipline is enforced by
// convention: Clear is called exactly once, by the Flush Pipeline,
// immediately after the vertex's block is uncached (spec.md §4.6 step 3).
type LevelSetEntry struct {
	Hash   daghash.Hash
	vertex *Vertex
}

// NewLevelSetEntry wraps a sealed vertex as a level-set reference.
func NewLevelSetEntry(v *Vertex) LevelSetEntry {
	return LevelSetEntry{Hash: v.Hash(), vertex: v}
}

// Upgrade returns the referenced Vertex and true if it has not yet been
// cleared by a flush. Once cleared, callers must fall back to the Store
// (spec.md §4.1).
func (e *LevelSetEntry) Upgrade() (*Vertex, bool) {
	if e.vertex == nil {
		return nil, false
	}
	return e.vertex, true
}

// Clear drops the strong reference to the vertex, called once by the
// Flush Pipeline after the vertex has been persisted and uncached.
func (e *LevelSetEntry) Clear() {
	e.vertex = nil
}
