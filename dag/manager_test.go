package dag

import (
	"math/big"
	"testing"
	"time"

	"github.com/mstonedag/node/util/daghash"
	"github.com/stretchr/testify/require"
)

// fakeStore is a minimal in-memory dag.Store good enough to drive the
// admission pipeline and flush logic under test, without a real database.
type fakeStore struct {
	vertices map[daghash.Hash]*Vertex
	utxos    map[Outpoint]*UTXOEntry
	regs     map[daghash.Hash]Outpoint
	milestonesByHeight map[uint64]*Milestone
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		vertices:           map[daghash.Hash]*Vertex{},
		utxos:              map[Outpoint]*UTXOEntry{},
		regs:               map[daghash.Hash]Outpoint{},
		milestonesByHeight: map[uint64]*Milestone{},
	}
}

func (s *fakeStore) Exists(hash daghash.Hash) bool    { _, ok := s.vertices[hash]; return ok }
func (s *fakeStore) DAGExists(hash daghash.Hash) bool { return s.Exists(hash) }
func (s *fakeStore) DBExists(hash daghash.Hash) bool  { return s.Exists(hash) }
func (s *fakeStore) Cache(v *Vertex)                  {}
func (s *fakeStore) UnCache(hash daghash.Hash)        {}

func (s *fakeStore) GetVertex(hash daghash.Hash) (*Vertex, error) {
	if v, ok := s.vertices[hash]; ok {
		return v, nil
	}
	return nil, ErrNotFound
}

func (s *fakeStore) GetMilestoneAt(height uint64) (*Milestone, error) {
	if m, ok := s.milestonesByHeight[height]; ok {
		return m, nil
	}
	return nil, ErrNotFound
}

func (s *fakeStore) GetLevelSetBlksAt(height uint64) ([]*Block, error) { return nil, ErrNotFound }
func (s *fakeStore) GetLevelSetVtcsAt(height uint64) ([]*Vertex, error) { return nil, ErrNotFound }
func (s *fakeStore) GetRawLevelSetAt(height uint64) ([]byte, error)     { return nil, ErrNotFound }

func (s *fakeStore) StoreLevelSet(m *Milestone, vertices []*Vertex) error {
	s.milestonesByHeight[m.Height] = m
	for _, v := range vertices {
		s.vertices[v.Hash()] = v
	}
	return nil
}

func (s *fakeStore) AddUTXO(out Outpoint, entry *UTXOEntry) error { s.utxos[out] = entry; return nil }
func (s *fakeStore) RemoveUTXO(out Outpoint) error                { delete(s.utxos, out); return nil }
func (s *fakeStore) GetUTXO(out Outpoint) (*UTXOEntry, bool, error) {
	e, ok := s.utxos[out]
	return e, ok, nil
}

func (s *fakeStore) GetRegistration(account daghash.Hash) (Outpoint, bool, error) {
	out, ok := s.regs[account]
	return out, ok, nil
}
func (s *fakeStore) UpdatePrevRedemHashes(rc *RegChange) error {
	for acct := range rc.Removed {
		delete(s.regs, acct)
	}
	for acct, out := range rc.Added {
		s.regs[acct] = out
	}
	return nil
}

func (s *fakeStore) SaveHeadHeight(height uint64) error { return nil }

func (s *fakeStore) IsWeaklySolid(block *Block) bool   { return false }
func (s *fakeStore) AnyLinkIsOrphan(block *Block) bool { return false }
func (s *fakeStore) AddBlockToOBC(block *Block, mask uint8) error { return nil }
func (s *fakeStore) ReleaseBlocks(hash daghash.Hash) []*Block     { return nil }
func (s *fakeStore) EnableOBC(enable bool)                        {}

func testGenesisBlock() *Block {
	return &Block{Version: 1, Timestamp: time.Unix(1700000000, 0), Bits: 0x207fffff, ProofHash: hashN(0)}
}

func newTestManager() (*Manager, *fakeStore) {
	store := newFakeStore()
	genesisBlock := testGenesisBlock()
	store.vertices[genesisBlock.Hash()] = &Vertex{Block: genesisBlock, IsMilestone: true}
	params := DefaultParams()
	workers := NewWorkers()
	m := NewManager(store, genesisBlock, params, workers)
	// Seed a reachable snapshot on genesis so ordinary blocks referencing
	// it pass the difficulty check (step 4 needs msVertex[...].Snapshot).
	m.msVertex[genesisBlock.Hash()].Snapshot = &Milestone{
		Hash: genesisBlock.Hash(), Height: 0,
		Chainwork: big.NewInt(0),
		// MilestoneTarget of compact-0 decodes to a zero big.Int target, so
		// no ordinary test hash (built from a small nonzero trailing byte
		// via hashN) accidentally qualifies as a milestone candidate;
		// tests that want promotion set this explicitly.
		BlockTarget: 0x207fffff, MilestoneTarget: 0,
		RegChange: NewRegChange(),
	}
	return m, store
}

func TestAddNewBlockRejectsGenesis(t *testing.T) {
	m, _ := newTestManager()
	err := m.AddNewBlock(testGenesisBlock(), nil)
	require.Error(t, err)
	kind, _ := KindOf(err)
	require.Equal(t, ErrDuplicate, kind)
}

func TestAddNewBlockRejectsMalformed(t *testing.T) {
	m, _ := newTestManager()
	// One parent present, two missing: not the all-zero genesis shape, but
	// still fails WellFormed's "all three or none" rule.
	bad := &Block{MilestoneParent: hashN(5), ProofHash: hashN(1)}
	err := m.AddNewBlock(bad, nil)
	require.Error(t, err)
	kind, _ := KindOf(err)
	require.Equal(t, ErrMalformed, kind)
}

func TestAddNewBlockAcceptsOrdinaryBlockOnGenesis(t *testing.T) {
	m, _ := newTestManager()
	genesisHash := testGenesisBlock().Hash()
	block := &Block{
		MilestoneParent: genesisHash, PrevParent: genesisHash, TipParent: genesisHash,
		Timestamp: time.Unix(1700000100, 0),
		Bits:      0x207fffff,
		ProofHash: hashN(1),
	}
	err := m.AddNewBlock(block, nil)
	require.NoError(t, err)

	best := m.chainSet.Best()
	_, pending := best.Pending(block.Hash())
	require.True(t, pending)
}

func TestAddNewBlockRejectsWrongTarget(t *testing.T) {
	m, _ := newTestManager()
	genesisHash := testGenesisBlock().Hash()
	block := &Block{
		MilestoneParent: genesisHash, PrevParent: genesisHash, TipParent: genesisHash,
		Bits:      0x1b00ffff, // does not match seeded BlockTarget
		ProofHash: hashN(1),
	}
	err := m.AddNewBlock(block, nil)
	require.Error(t, err)
	kind, _ := KindOf(err)
	require.Equal(t, ErrWrongTarget, kind)
}

func TestAddNewBlockPromotesCaseAMilestoneExtendingBestTip(t *testing.T) {
	m, _ := newTestManager()
	genesisHash := testGenesisBlock().Hash()
	// hashN(1) encodes the integer 1; a MilestoneTarget whose compact form
	// decodes to >=1 makes this candidate satisfy the PoW check trivially.
	m.msVertex[genesisHash].Snapshot.MilestoneTarget = 0x03000005

	block := &Block{
		MilestoneParent: genesisHash, PrevParent: genesisHash, TipParent: genesisHash,
		Timestamp: time.Unix(1700000100, 0),
		Bits:      0x207fffff,
		ProofHash: hashN(1),
	}
	err := m.AddNewBlock(block, nil)
	require.NoError(t, err)

	best := m.chainSet.Best()
	require.Equal(t, block.Hash(), best.Tip())
	require.Equal(t, 1, best.MilestoneCount())
	require.Equal(t, block.Hash(), best.NewestMilestone().Hash)
	require.Equal(t, uint64(1), best.NewestMilestone().Height)

	sealedVertex, ok := m.msVertex[block.Hash()]
	require.True(t, ok)
	require.True(t, sealedVertex.IsMilestone)
}

func TestAddNewBlockStagesOrphanWhenNotSolidAndEnabled(t *testing.T) {
	m, _ := newTestManager()
	m.obc.Enable()

	missingParent := hashN(77)
	block := &Block{
		MilestoneParent: missingParent, PrevParent: missingParent, TipParent: missingParent,
		ProofHash: hashN(1),
	}
	err := m.AddNewBlock(block, nil)
	require.Error(t, err)
	kind, _ := KindOf(err)
	require.Equal(t, ErrNotSolid, kind)
	require.True(t, m.obc.Has(block.Hash()))
}

func TestAddNewBlockNotSolidDropsWhenOBCDisabled(t *testing.T) {
	m, _ := newTestManager()
	// OBC disabled by default (NewOrphanBlockContainer starts disabled).
	missingParent := hashN(77)
	block := &Block{
		MilestoneParent: missingParent, PrevParent: missingParent, TipParent: missingParent,
		ProofHash: hashN(1),
	}
	err := m.AddNewBlock(block, nil)
	require.Error(t, err)
	kind, _ := KindOf(err)
	require.Equal(t, ErrNotSolid, kind)
	require.False(t, m.obc.Has(block.Hash()), "a disabled OBC must not retain the entry")
}

func TestAddNewBlockCaseBExtendsNonBestChainAndCaseCForksThenOvertakes(t *testing.T) {
	m, _ := newTestManager()
	dumpChainSetOnFailure(t, m)
	genesisHash := testGenesisBlock().Hash()
	m.msVertex[genesisHash].Snapshot.MilestoneTarget = 0x03000005

	seal := func(parent daghash.Hash, proof daghash.Hash, ts int64) *Block {
		return &Block{
			MilestoneParent: parent, PrevParent: parent, TipParent: parent,
			Timestamp: time.Unix(ts, 0),
			Bits:      0x207fffff,
			ProofHash: proof,
		}
	}

	ms1 := seal(genesisHash, hashN(1), 1700000100)
	require.NoError(t, m.AddNewBlock(ms1, nil))
	require.Equal(t, ms1.Hash(), m.chainSet.Best().Tip())

	ms2 := seal(ms1.Hash(), hashN(2), 1700000200)
	require.NoError(t, m.AddNewBlock(ms2, nil))
	require.Equal(t, ms2.Hash(), m.chainSet.Best().Tip())
	require.Equal(t, 2, m.chainSet.Best().MilestoneCount())

	// ms1b names ms1 — an interior milestone on the best chain, not its
	// current head — as its MilestoneParent: Case C, forking the chain
	// truncated at ms1.
	ms1b := seal(ms1.Hash(), hashN(3), 1700000300)
	require.NoError(t, m.AddNewBlock(ms1b, nil))

	forked, ok := findChainByTip(m, ms1b.Hash())
	require.True(t, ok, "the Case C fork must be tracked under its new tip")
	require.Equal(t, 1, forked.MilestoneCount(), "ms2 belongs only to the original branch")
	require.Equal(t, ms2.Hash(), m.chainSet.Best().Tip(), "equal chainwork ties favor the earlier-inserted chain")

	// ms1c names ms1b — the fork's own head, not the best chain's — as its
	// MilestoneParent: Case B, extending the non-best chain in place.
	ms1c := seal(ms1b.Hash(), hashN(4), 1700000400)
	require.NoError(t, m.AddNewBlock(ms1c, nil))

	require.Equal(t, ms1c.Hash(), m.chainSet.Best().Tip(), "the fork's extra milestone must overtake the original branch")
	require.Equal(t, 2, m.chainSet.Best().MilestoneCount())
}

func TestAddNewBlockRejectsStaleMilestoneReferenceAsTooOld(t *testing.T) {
	m, _ := newTestManager()
	genesisHash := testGenesisBlock().Hash()
	m.msVertex[genesisHash].Snapshot.MilestoneTarget = 0x03000005
	m.params.PunctualityThreshold = 2

	seal := func(parent daghash.Hash, proof daghash.Hash, ts int64) *Block {
		return &Block{
			MilestoneParent: parent, PrevParent: parent, TipParent: parent,
			Timestamp: time.Unix(ts, 0),
			Bits:      0x207fffff,
			ProofHash: proof,
		}
	}

	ms1 := seal(genesisHash, hashN(1), 1700000100)
	require.NoError(t, m.AddNewBlock(ms1, nil))
	ms2 := seal(ms1.Hash(), hashN(2), 1700000200)
	require.NoError(t, m.AddNewBlock(ms2, nil))
	ms3 := seal(ms2.Hash(), hashN(3), 1700000300)
	require.NoError(t, m.AddNewBlock(ms3, nil))
	ms4 := seal(ms3.Hash(), hashN(4), 1700000400)
	require.NoError(t, m.AddNewBlock(ms4, nil))
	require.Equal(t, uint64(4), m.chainSet.Best().NewestMilestone().Height)

	// An ordinary, fully-solid block naming ms1 (height 1) while best sits
	// at height 4: a gap of 3 exceeds the threshold of 2.
	stale := &Block{
		MilestoneParent: ms1.Hash(), PrevParent: ms1.Hash(), TipParent: ms1.Hash(),
		Timestamp: time.Unix(1700000500, 0),
		Bits:      0x207fffff,
		ProofHash: hashN(6), // above the target-5 candidacy boundary: stays ordinary
	}
	err := m.AddNewBlock(stale, nil)
	require.Error(t, err)
	kind, _ := KindOf(err)
	require.Equal(t, ErrTooOld, kind)
}

// TestPromoteMilestoneCaseDStandsInAFreshChainForAStoreOnlyParent exercises
// Case D by calling promoteMilestone directly rather than through
// AddNewBlock. purgeAfterFlush (flush.go) deletes a flushed milestone's
// msVertex entry and pops it from every in-memory chain's history in the
// same pass, so by the time the Store is the sole owner of a milestone, any
// ordinary block naming it as MilestoneParent already fails AddNewBlock's
// step 4 difficulty check (msVertex lookup) before promoteMilestone ever
// runs. Case D's premise — Store knows it, no live chain does — is real
// internal state, just not one the public admission path can hand it from;
// reaching it for real needs a startup/resync routine that reloads
// msVertex from the Store, which is out of this engine's current scope.
func TestPromoteMilestoneCaseDStandsInAFreshChainForAStoreOnlyParent(t *testing.T) {
	m, store := newTestManager()
	genesisHash := testGenesisBlock().Hash()
	m.msVertex[genesisHash].Snapshot.MilestoneTarget = 0x03000005

	ms1 := &Block{
		MilestoneParent: genesisHash, PrevParent: genesisHash, TipParent: genesisHash,
		Timestamp: time.Unix(1700000100, 0), Bits: 0x207fffff, ProofHash: hashN(1),
	}
	require.NoError(t, m.AddNewBlock(ms1, nil))
	require.Equal(t, ms1.Hash(), m.chainSet.Best().Tip())

	storeOnly := hashN(40)
	store.vertices[storeOnly] = &Vertex{Block: &Block{ProofHash: storeOnly}, IsMilestone: true}

	candidate := &Vertex{Block: &Block{
		MilestoneParent: storeOnly, PrevParent: storeOnly, TipParent: storeOnly,
		Timestamp: time.Unix(1700000500, 0), Bits: 0x207fffff, ProofHash: hashN(2),
	}}
	m.cache[candidate.Hash()] = candidate

	err := m.promoteMilestone(candidate)
	require.NoError(t, err)

	owner, ok := findChainByTip(m, candidate.Hash())
	require.True(t, ok, "the stand-in chain must be tracked under the candidate's new tip")
	require.Equal(t, 1, owner.MilestoneCount())
	require.Equal(t, candidate.Hash(), owner.NewestMilestone().Hash)
	require.Equal(t, uint64(1), owner.NewestMilestone().Height, "a stand-in chain has no predecessor snapshot to inherit height from")

	// Tied chainwork against the real best chain (one milestone each, equal
	// Bits): the earlier-inserted chain keeps best on a tie (I4).
	require.Equal(t, ms1.Hash(), m.chainSet.Best().Tip())
}
