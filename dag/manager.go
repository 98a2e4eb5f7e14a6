package dag

import (
	"math/big"
	"sync"
	"time"

	"github.com/mstonedag/node/util/daghash"
	"github.com/mstonedag/node/util/mstime"
)

// Manager is the top-level orchestrator (spec.md §4.5, C5): verification,
// fork creation/pruning, flush triggering, and sync locator construction.
// Its three worker pools enforce the single-writer discipline of spec.md
// §5; Manager's own methods assume they are already running on the
// correct pool and do not re-check this (callers submit via Workers).
type Manager struct {
	mu sync.RWMutex

	store     Store
	chainSet  *ChainSet
	obc       *OrphanBlockContainer
	cache     map[daghash.Hash]*Vertex // every vertex currently resident in memory, pending or sealed
	msVertex  map[daghash.Hash]*Vertex // sealed milestone vertices only, erased at flush (spec.md §4.4, §4.6)
	genesis   *Vertex
	bestHeadAge time.Time // timestamp of best head's arrival, for obcEnableThreshold gating

	params    Params
	listeners Listeners
	workers   *Workers

	downloadingMu sync.Mutex
	downloading   map[daghash.Hash]bool

	relay func(block *Block, from Peer)
}

// NewManager constructs a Manager rooted at genesis, backed by store.
func NewManager(store Store, genesisBlock *Block, params Params, workers *Workers) *Manager {
	genesisVertex := &Vertex{Block: genesisBlock, Height: 0, IsMilestone: true}
	genesisChain := NewChain(genesisVertex, store)

	m := &Manager{
		store:       store,
		chainSet:    NewChainSet(genesisChain, params.DeleteForkThreshold),
		obc:         NewOrphanBlockContainer(),
		cache:       map[daghash.Hash]*Vertex{genesisBlock.Hash(): genesisVertex},
		msVertex:    map[daghash.Hash]*Vertex{genesisBlock.Hash(): genesisVertex},
		genesis:     genesisVertex,
		params:      params,
		workers:     workers,
		downloading: map[daghash.Hash]bool{},
	}
	m.bestHeadAge = mstime.Now()
	return m
}

// SetRelay registers the callback used to relay an accepted block to
// other peers (spec.md §4.5.1 step 6). Left unset in tests that don't care
// about relay.
func (m *Manager) SetRelay(f func(block *Block, from Peer)) { m.relay = f }

func (m *Manager) Listeners() *Listeners { return &m.listeners }

// existsInDAG reports whether hash is already known to the cache or the
// Store (spec.md's "cache ∪ Store").
func (m *Manager) existsInDAG(hash daghash.Hash) bool {
	if _, ok := m.cache[hash]; ok {
		return true
	}
	return m.store.Exists(hash)
}

// AddNewBlock is the admission pipeline (spec.md §4.5.1). It runs on the
// verify worker.
func (m *Manager) AddNewBlock(block *Block, from Peer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addNewBlock(block, from)
}

// addNewBlock is AddNewBlock's body, callable while m.mu is already held —
// accept() re-enters it directly for each OBC entry a block's arrival
// releases (spec.md §4.5.1 step 6), which would deadlock against a
// non-reentrant lock taken a second time.
func (m *Manager) addNewBlock(block *Block, from Peer) error {
	hash := block.Hash()

	// 1. Reject genesis and known blocks.
	if hash == m.genesis.Hash() || m.existsInDAG(hash) {
		return ruleError(ErrDuplicate, "block is genesis or already known")
	}

	// 2. Syntactic verification: well-formedness is the part this engine
	// can check; PoW-matches-target, transaction structure and signatures
	// are the (out of scope) block format collaborator's job.
	if !block.WellFormed() {
		return ruleError(ErrMalformed, "block is missing a required parent")
	}

	// 3. Solidity check.
	mask := m.missingParentMask(block)
	if mask != 0 {
		weaklySolid := m.weaklySolid(block, mask)
		if weaklySolid && m.obc.AnyLinkIsOrphan(block) {
			m.stageOrphan(block, mask)
			return ruleError(ErrNotSolid, "block is weakly solid, staged in OBC")
		}
		if !weaklySolid {
			if !m.punctualityOK(block) {
				return ruleError(ErrTooOld, "not solid and referenced milestone is too old")
			}
			m.stageOrphan(block, mask)
			if from != nil {
				from.StartSync()
			}
			return ruleError(ErrNotSolid, "not solid, staged in OBC and sync requested")
		}
		m.stageOrphan(block, mask)
		return ruleError(ErrNotSolid, "weakly solid, staged in OBC")
	}

	// 4. Difficulty check.
	msVertex, ok := m.msVertex[block.MilestoneParent]
	if !ok || msVertex.Snapshot == nil {
		return ruleError(ErrNotSolid, "referenced milestone snapshot unavailable")
	}
	if block.Bits != msVertex.Snapshot.BlockTarget {
		return ruleError(ErrWrongTarget, "block target does not match referenced milestone")
	}

	// 5. Punctuality check.
	if !m.punctualityOK(block) {
		return ruleError(ErrTooOld, "referenced milestone is too old relative to best head")
	}

	// 6. Accept.
	return m.accept(block, from)
}

// missingParentMask computes which of block's three parents are absent
// from cache ∪ Store (spec.md §4.5.1 step 3).
func (m *Manager) missingParentMask(block *Block) parentMask {
	var mask parentMask
	if !m.existsInDAG(block.MilestoneParent) {
		mask |= maskMilestoneParent
	}
	if !m.existsInDAG(block.TipParent) {
		mask |= maskTipParent
	}
	if !m.existsInDAG(block.PrevParent) {
		mask |= maskPrevParent
	}
	return mask
}

// weaklySolid reports whether every missing parent is at least present in
// the OBC (spec.md glossary: "Weakly solid").
func (m *Manager) weaklySolid(block *Block, mask parentMask) bool {
	if mask&maskMilestoneParent != 0 && !m.inOBC(block.MilestoneParent) {
		return false
	}
	if mask&maskTipParent != 0 && !m.inOBC(block.TipParent) {
		return false
	}
	if mask&maskPrevParent != 0 && !m.inOBC(block.PrevParent) {
		return false
	}
	return true
}

func (m *Manager) inOBC(hash daghash.Hash) bool {
	return m.obc.Has(hash)
}

// punctualityOK reports whether block's referenced milestone is within
// PunctualityThreshold of the best head's milestone height. A milestone
// parent unknown to this node is treated as punctual (the caller will
// instead hit the solidity branch).
func (m *Manager) punctualityOK(block *Block) bool {
	msVertex, ok := m.msVertex[block.MilestoneParent]
	if !ok {
		return true
	}
	best := m.chainSet.Best().NewestMilestone()
	if best == nil {
		return true
	}
	if msVertex.Height > best.Height {
		return true
	}
	return best.Height-msVertex.Height <= m.params.PunctualityThreshold
}

// stageOrphan inserts block into the OBC if enabled, dropping it silently
// otherwise (spec.md §4.2, §4.5.1).
func (m *Manager) stageOrphan(block *Block, mask parentMask) {
	if !m.obc.enabled {
		return
	}
	m.obc.Add(block, func(h daghash.Hash) bool { return m.existsInDAG(h) })
}

// accept caches block, relays it, admits it to every chain's pending set,
// and releases every OBC entry it newly unblocks (spec.md §4.5.1 step 6).
// If block is itself a milestone candidate, it also runs milestone
// promotion (spec.md §4.5.2).
func (m *Manager) accept(block *Block, from Peer) error {
	hash := block.Hash()
	v := &Vertex{Block: block}
	m.cache[hash] = v

	if m.relay != nil {
		m.relay(block, from)
	}

	for _, id := range m.chainSet.Chains() {
		c, ok := m.chainSet.Get(id)
		if !ok {
			continue
		}
		c.AddPending(v)
	}

	released := m.obc.Release(hash)
	for _, orphan := range released {
		// Re-attempt admission; errors here are expected (a released
		// orphan may still be waiting on a sibling) and are not fatal.
		_ = m.addNewBlock(orphan, nil)
	}

	if msVertex, ok := m.msVertex[block.MilestoneParent]; ok && msVertex.Snapshot != nil {
		if block.IsMilestoneCandidate(msVertex.Snapshot.MilestoneTarget) {
			return m.promoteMilestone(v)
		}
	}

	return nil
}

// promoteMilestone implements the Case A-D fork logic of spec.md §4.5.2.
// candidate is the newly-accepted vertex whose proof-of-work satisfies its
// referenced milestone's milestoneTarget.
func (m *Manager) promoteMilestone(candidate *Vertex) error {
	msParent := candidate.Block.MilestoneParent
	bestID := m.chainSet.best

	var owner *Chain
	isBest := false

	// Case A/B match against each chain's newest SEALED milestone, not its
	// raw Tip(): accept() has already advanced every live chain's Tip to
	// candidate's own hash (every chain gets the new vertex added to its
	// pending set before promotion is considered), so Tip() never equals
	// msParent once a candidate is a milestone. A milestone's
	// MilestoneParent always names the last milestone its author built on,
	// which is chainMilestoneHead, not the bleeding tip.
	if best := m.chainSet.Best(); best != nil && m.chainMilestoneHead(best) == msParent {
		// Case A: extends the best chain.
		owner, isBest = best, true
	} else if c, ok := m.findChainByMilestoneHead(msParent); ok {
		// Case B: extends a non-best chain's head.
		owner = c
	} else if c, ok := m.findChainContainingMilestone(msParent); ok {
		// Case C: extends some chain but not at its head — fork it.
		forked, err := m.chainSet.Fork(c, msParent)
		if err != nil {
			return ruleErrorWrap(ErrVerifyFailure, "fork failed", err)
		}
		owner = forked
	} else if m.store.DAGExists(msParent) {
		// Case D: referenced milestone unknown to any in-memory chain but
		// resolvable via the Store. A full reconstruction of a Store-backed
		// Chain is out of this engine's in-memory scope; a minimal chain
		// rooted at genesis stands in as the fork point.
		fresh := NewChain(m.genesis, m.store)
		m.chainSet.register(fresh)
		owner = fresh
	} else {
		return ruleError(ErrNotSolid, "referenced milestone is unknown to every chain and the store")
	}

	members := m.levelSetMembers(owner, candidate)
	regBefore := owner.Ledger().BeginRound()
	height := m.nextMilestoneHeight(candidate)
	prevRate := m.prevHashRate(candidate)
	resolve := func(h daghash.Hash) (*Vertex, bool) { v, ok := m.cache[h]; return v, ok }
	txoc, covered, err := owner.Verify(candidate, members, resolve, height, m.params.SortitionThreshold, prevRate)
	if err != nil {
		return err
	}

	newMilestone := m.sealMilestone(owner, candidate, members, covered, txoc, regBefore)
	owner.PushMilestone(newMilestone, covered)
	m.msVertex[candidate.Hash()] = candidate
	candidate.IsMilestone = true
	candidate.Snapshot = newMilestone

	m.chainSet.Reconsider()

	becameBest := m.chainSet.best == owner.id && (isBest || m.chainSet.best != bestID)
	m.listeners.fireChainUpdated(candidate.Block, becameBest)

	if becameBest {
		m.bestHeadAge = mstime.Now()
		m.reconsiderOBCGate()
		m.pruneStaleChains()
		m.triggerFlush()
	}

	return nil
}

// chainMilestoneHead returns the hash a milestone candidate must name as
// its MilestoneParent to extend c: the chain's newest sealed milestone, or
// genesis if c has not sealed one yet.
func (m *Manager) chainMilestoneHead(c *Chain) daghash.Hash {
	if ms := c.NewestMilestone(); ms != nil {
		return ms.Hash
	}
	return m.genesis.Hash()
}

// findChainByMilestoneHead returns the chain whose newest sealed milestone
// (or genesis, if it has none) is hash, if any (spec.md §4.5.2 Case B).
func (m *Manager) findChainByMilestoneHead(hash daghash.Hash) (*Chain, bool) {
	for _, id := range m.chainSet.order {
		c, ok := m.chainSet.Get(id)
		if !ok {
			continue
		}
		if m.chainMilestoneHead(c) == hash {
			return c, true
		}
	}
	return nil, false
}

// findChainContainingMilestone searches every chain's sealed milestone
// history for hash, returning the owning chain if found (spec.md §4.5.2
// Case C). Ties prefer the best chain, then first-inserted (spec.md
// §4.5.2 "Tie-breaking").
func (m *Manager) findChainContainingMilestone(hash daghash.Hash) (*Chain, bool) {
	if best := m.chainSet.Best(); best != nil && chainHasMilestone(best, hash) {
		return best, true
	}
	for _, id := range m.chainSet.order {
		c, ok := m.chainSet.Get(id)
		if !ok {
			continue
		}
		if chainHasMilestone(c, hash) {
			return c, true
		}
	}
	return nil, false
}

func chainHasMilestone(c *Chain, hash daghash.Hash) bool {
	for i := 0; i < c.milestones.Len(); i++ {
		if c.milestones.At(i).(*Milestone).Hash == hash {
			return true
		}
	}
	return false
}

// levelSetMembers collects every vertex transitively reachable from
// candidate via prev/tip edges that shares candidate's milestone-parent,
// from the owning chain's pending set (spec.md §4.3 Verify step a).
func (m *Manager) levelSetMembers(owner *Chain, candidate *Vertex) map[daghash.Hash]*Vertex {
	members := map[daghash.Hash]*Vertex{candidate.Hash(): candidate}
	queue := []daghash.Hash{candidate.Block.PrevParent, candidate.Block.TipParent}
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		if _, already := members[h]; already {
			continue
		}
		v, ok := owner.Pending(h)
		if !ok {
			continue // not in this chain's pending set: sealed already, or external
		}
		if v.Block.MilestoneParent != candidate.Block.MilestoneParent {
			continue
		}
		members[h] = v
		queue = append(queue, v.Block.PrevParent, v.Block.TipParent)
	}
	return members
}

// sealMilestone computes the new Milestone snapshot from the previous one
// on owner and the just-verified level-set (spec.md §4.3 Verify steps b-c).
// txoc is the composed TXOC Verify returned for this same level-set: its
// Created outpoints are looked up against owner's live ledger diff while
// that output's entry is still resident there, giving this milestone its
// own UTXOCreated/UTXORemoved snapshot independent of any other unflushed
// milestone sharing the chain.
func (m *Manager) sealMilestone(owner *Chain, candidate *Vertex, members map[daghash.Hash]*Vertex, covered []daghash.Hash, txoc *TXOC, regBefore map[daghash.Hash]Outpoint) *Milestone {
	prev, ok := m.msVertex[candidate.Block.MilestoneParent]
	var prevSnapshot *Milestone
	if ok {
		prevSnapshot = prev.Snapshot
	}

	height := uint64(1)
	chainwork := calcWork(candidate.Block.Bits)
	blockTarget := candidate.Block.Bits
	milestoneTarget := candidate.Block.Bits
	hashRate := 0.0

	if prevSnapshot != nil {
		height = prevSnapshot.Height + 1
		chainwork = new(big.Int).Add(prevSnapshot.Chainwork, chainwork)
		blockTarget = prevSnapshot.BlockTarget
		milestoneTarget = prevSnapshot.MilestoneTarget
		gap := candidate.Block.Timestamp.Sub(m.milestoneVertexTimestamp(prev)).Seconds()
		hashRate = nextHashRate(prevSnapshot.HashRate, CompactToBig(milestoneTarget), gap)
	}

	entries := make([]LevelSetEntry, 0, len(covered))
	for _, h := range covered {
		if h == candidate.Hash() {
			continue
		}
		if v, ok := members[h]; ok {
			entries = append(entries, NewLevelSetEntry(v))
		}
	}
	entries = append(entries, NewLevelSetEntry(candidate))

	regChange := owner.Ledger().RegChange(regBefore)

	utxoCreated := make(map[Outpoint]*UTXOEntry, len(txoc.Created))
	for _, out := range txoc.Created {
		// Present in the live diff unless a later vertex in this same
		// level-set already spent it: created-and-spent within one round
		// nets to nothing and needs no Store entry either way.
		if entry, ok := owner.Ledger().diff.Created[out]; ok {
			utxoCreated[out] = entry
		}
	}
	utxoRemoved := append([]Outpoint{}, txoc.Spent...)

	return &Milestone{
		Hash:            candidate.Hash(),
		Height:          height,
		Chainwork:       chainwork,
		BlockTarget:     blockTarget,
		MilestoneTarget: milestoneTarget,
		HashRate:        hashRate,
		RegChange:       regChange,
		UTXOCreated:     utxoCreated,
		UTXORemoved:     utxoRemoved,
		LevelSet:        entries,
	}
}

func (m *Manager) milestoneVertexTimestamp(v *Vertex) time.Time {
	return v.Block.Timestamp
}

// reconsiderOBCGate toggles the OBC enabled state based on how far behind
// live tip the best head currently is (spec.md §4.2).
func (m *Manager) reconsiderOBCGate() {
	age := time.Since(m.bestHeadAge).Seconds()
	if int64(age) > m.params.ObcEnableThresholdSeconds {
		m.obc.Disable()
	} else {
		m.obc.Enable()
	}
}

// pruneStaleChains deletes every chain that has fallen DeleteForkThreshold
// milestones behind the best chain (spec.md §4.4), releasing any
// milestone-vertex map entries that are not also referenced by the best
// chain.
func (m *Manager) pruneStaleChains() {
	for _, id := range m.chainSet.StaleChains() {
		c, ok := m.chainSet.Get(id)
		if !ok {
			continue
		}
		for i := 0; i < c.milestones.Len(); i++ {
			ms := c.milestones.At(i).(*Milestone)
			if !chainHasMilestone(m.chainSet.Best(), ms.Hash) {
				delete(m.msVertex, ms.Hash)
				delete(m.cache, ms.Hash)
			}
		}
		m.chainSet.DeleteFork(id)
	}
}

// nextMilestoneHeight returns the height a new milestone candidate would
// seal at — one past its milestone-parent's, or 1 if genesis is the
// parent. sealMilestone recomputes the same value once verification
// succeeds; this pure helper exists so Verify can assign every level-set
// vertex's Height before sealMilestone itself runs.
func (m *Manager) nextMilestoneHeight(candidate *Vertex) uint64 {
	if prev, ok := m.msVertex[candidate.Block.MilestoneParent]; ok && prev.Snapshot != nil {
		return prev.Snapshot.Height + 1
	}
	return 1
}

// prevHashRate returns the hash-rate EMA sealed on candidate's
// milestone-parent snapshot, the basis for Verify's valid-distance bound
// (spec.md §4.3).
func (m *Manager) prevHashRate(candidate *Vertex) float64 {
	if prev, ok := m.msVertex[candidate.Block.MilestoneParent]; ok && prev.Snapshot != nil {
		return prev.Snapshot.HashRate
	}
	return 0.0
}
