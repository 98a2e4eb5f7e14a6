package dag

import (
	"math/big"

	"github.com/mstonedag/node/util/daghash"
	"lukechampine.com/blake3"
)

// RegChange is the registration-table delta sealed by one milestone's
// level-set (spec.md §3). Applying Removed then Added (in that order) to a
// registration table and then applying Inverse() must be a no-op — this is
// round-trip law R2 in spec.md §8.
type RegChange struct {
	// Added maps an account to the registration outpoint it now owns.
	Added map[daghash.Hash]Outpoint
	// Removed maps an account to the registration outpoint it no longer
	// owns (the one that was just redeemed).
	Removed map[daghash.Hash]Outpoint
}

// NewRegChange returns an empty RegChange.
func NewRegChange() *RegChange {
	return &RegChange{Added: map[daghash.Hash]Outpoint{}, Removed: map[daghash.Hash]Outpoint{}}
}

// Inverse returns the RegChange that undoes rc when applied to a table rc
// was already applied to.
func (rc *RegChange) Inverse() *RegChange {
	inv := NewRegChange()
	for acct, out := range rc.Added {
		inv.Removed[acct] = out
	}
	for acct, out := range rc.Removed {
		inv.Added[acct] = out
	}
	return inv
}

// Commitment folds the delta into a single digest using blake3, so
// OnLvsConfirmed listeners get a cheap integrity check on regChange
// without re-walking the level-set (SPEC_FULL.md domain stack).
func (rc *RegChange) Commitment() daghash.Hash {
	h := blake3.New(32, nil)
	for acct, out := range rc.Added {
		h.Write(acct[:])
		h.Write(out.TxID[:])
	}
	for acct, out := range rc.Removed {
		h.Write(acct[:])
		h.Write(out.TxID[:])
	}
	sum := h.Sum(nil)
	var result daghash.Hash
	copy(result[:], sum)
	return result
}

// Milestone is the chain-state summary sealed at a milestone boundary
// (spec.md §3).
type Milestone struct {
	Hash daghash.Hash

	Height uint64

	// Chainwork is the cumulative proof-of-work on the chain ending at
	// this milestone; the best-chain criterion (spec.md §4.4).
	Chainwork *big.Int

	// BlockTarget and MilestoneTarget are the compact difficulty targets
	// ordinary blocks and milestone candidates respectively must satisfy
	// to build on this milestone.
	BlockTarget     uint32
	MilestoneTarget uint32

	// HashRate is an EMA of observed network hash rate, used for the
	// valid-distance bound (spec.md §4.3) and future target adjustment.
	HashRate float64

	RegChange *RegChange

	// UTXOCreated and UTXORemoved are this milestone's own UTXO delta —
	// exactly the outputs its covered level-set created and spent,
	// captured at seal time. A chain's live Ledger diff accumulates across
	// every unflushed milestone at once, so the Flush Pipeline persists
	// these fields rather than the live diff: two milestones queued for
	// flush in the same triggerFlush pass each then persist only their own
	// data (spec.md §4.6).
	UTXOCreated map[Outpoint]*UTXOEntry
	UTXORemoved []Outpoint

	// LevelSet holds weak references to every vertex this milestone
	// sealed. In memory the milestone vertex is conventionally last; the
	// wire (serialized) form places it first (spec.md §3, R1).
	LevelSet []LevelSetEntry

	// Stored transitions false→true at most once, monotonically, only in
	// oldest-to-newest order on the best chain (invariant I5).
	Stored bool
}

// GetLevelSet returns the milestone's sealed vertices as weak references.
// Callers must Upgrade each entry and fall back to the Store collaborator
// when the referent has already been evicted by a flush (spec.md §4.1).
func (m *Milestone) GetLevelSet() []LevelSetEntry {
	return m.LevelSet
}

// MilestoneVertexHash returns the hash of the milestone's own sealing
// vertex — the last entry of the in-memory level-set by convention.
func (m *Milestone) MilestoneVertexHash() daghash.Hash {
	if len(m.LevelSet) == 0 {
		return daghash.ZeroHash
	}
	return m.LevelSet[len(m.LevelSet)-1].Hash
}

// SerializedOrder returns the level-set hashes with the milestone vertex
// first, the canonical wire ordering (spec.md §3, R1).
func (m *Milestone) SerializedOrder() []daghash.Hash {
	n := len(m.LevelSet)
	ordered := make([]daghash.Hash, n)
	for i, entry := range m.LevelSet {
		// in-memory: milestone last (index n-1) → wire: milestone first (index 0)
		ordered[(i+1)%n] = entry.Hash
	}
	return ordered
}
