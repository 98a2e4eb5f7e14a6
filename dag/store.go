package dag

import "github.com/mstonedag/node/util/daghash"

// Store is the durable-storage collaborator (spec.md §6). It owns the
// block/vertex key-value store, the UTXO and registration tables, and
// physically the Orphan Block Container — though OBC admission policy is
// enforced by the Manager, not the Store. The concrete implementation
// (backed by goleveldb) lives in the sibling store package; this module
// depends only on this interface, not on that package, so dag has no
// import of a storage engine.
type Store interface {
	Exists(hash daghash.Hash) bool
	DAGExists(hash daghash.Hash) bool
	DBExists(hash daghash.Hash) bool

	Cache(v *Vertex)
	UnCache(hash daghash.Hash)

	GetVertex(hash daghash.Hash) (*Vertex, error)
	GetMilestoneAt(height uint64) (*Milestone, error)

	GetLevelSetBlksAt(height uint64) ([]*Block, error)
	GetLevelSetVtcsAt(height uint64) ([]*Vertex, error)
	// GetRawLevelSetAt returns the serialized level-set payload, milestone
	// vertex first (spec.md §6, R1). Distinguishes a pruned height from an
	// unknown one (SPEC_FULL.md supplemented feature #5).
	GetRawLevelSetAt(height uint64) ([]byte, error)

	StoreLevelSet(m *Milestone, vertices []*Vertex) error

	AddUTXO(out Outpoint, entry *UTXOEntry) error
	RemoveUTXO(out Outpoint) error
	GetUTXO(out Outpoint) (*UTXOEntry, bool, error)

	GetRegistration(account daghash.Hash) (Outpoint, bool, error)
	UpdatePrevRedemHashes(rc *RegChange) error

	SaveHeadHeight(height uint64) error

	IsWeaklySolid(block *Block) bool
	AnyLinkIsOrphan(block *Block) bool
	AddBlockToOBC(block *Block, mask uint8) error
	ReleaseBlocks(hash daghash.Hash) []*Block
	EnableOBC(enable bool)
}

// errPruned and errNotFound distinguish, for GetRawLevelSetAt, a height
// that was evicted by pruning from one the Store has simply never heard
// of (SPEC_FULL.md supplemented feature #5, grounded on original_source/
// storage.h's separate PRUNED status).
var (
	ErrPruned   = ruleError(ErrStoreFailure, "level-set height has been pruned")
	ErrNotFound = ruleError(ErrStoreFailure, "level-set height is unknown")
)
