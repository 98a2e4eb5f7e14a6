package dag

import (
	"math/big"

	"github.com/dominikbraun/graph"
	"github.com/gammazero/deque"
	"github.com/mitchellh/copystructure"
	"github.com/mstonedag/node/util"
	"github.com/mstonedag/node/util/daghash"
)

// Chain is one fork of the DAG: a sequence of flushed-or-pending
// milestones plus the pending vertices built on top of the newest one
// (spec.md §3). Chains are copy-on-fork: forking a branch copies only the
// mutable suffix (the pending level-set and the Ledger diff), sharing the
// already-sealed milestone history by reference.
type Chain struct {
	// id is this chain's stable identity within its ChainSet, assigned
	// once at registration (ChainSet.register). Never used by Chain
	// itself; present here only so ChainSet can stamp it in place.
	id chainID

	// milestones holds this chain's sealed Milestone history, oldest at
	// the front. Using gammazero/deque rather than a slice gives O(1)
	// PopOldest without the slice-header creep of repeated re-slicing
	// (spec.md §4.6; the Flush Pipeline pops from the front).
	milestones *deque.Deque

	// pending holds vertices admitted to this chain since its newest
	// milestone, keyed by hash, awaiting the next level-set seal.
	pending map[daghash.Hash]*Vertex

	ledger *Ledger

	tip       daghash.Hash
	chainwork *big.Int
}

// NewChain returns a chain rooted at genesis, with an empty pending set.
func NewChain(genesis *Vertex, source UTXOSource) *Chain {
	d := deque.New()
	c := &Chain{
		milestones: d,
		pending:    map[daghash.Hash]*Vertex{},
		ledger:     NewLedger(source),
		chainwork:  big.NewInt(0),
	}
	if genesis != nil {
		c.tip = genesis.Hash()
	}
	return c
}

// Tip returns the hash of the chain's current best-known vertex.
func (c *Chain) Tip() daghash.Hash { return c.tip }

// Chainwork returns the chain's cumulative proof-of-work, the best-chain
// selection criterion (spec.md §4.4).
func (c *Chain) Chainwork() *big.Int { return c.chainwork }

// NewestMilestone returns the chain's most recently sealed milestone, or
// nil if none have been sealed yet.
func (c *Chain) NewestMilestone() *Milestone {
	if c.milestones.Len() == 0 {
		return nil
	}
	return c.milestones.Back().(*Milestone)
}

// OldestMilestone returns the chain's oldest retained milestone, or nil.
func (c *Chain) OldestMilestone() *Milestone {
	if c.milestones.Len() == 0 {
		return nil
	}
	return c.milestones.Front().(*Milestone)
}

// MilestoneCount reports how many sealed milestones this chain retains in
// memory.
func (c *Chain) MilestoneCount() int { return c.milestones.Len() }

// PushMilestone seals a newly-confirmed milestone onto the chain, adjusts
// chainwork, and drops every pending vertex it covers (they are now part
// of the sealed snapshot, not the pending set). m.Chainwork is already the
// chain's absolute cumulative total through m (sealMilestone computes it by
// adding onto the milestone parent's own cumulative total), so this sets
// the chain's running total rather than adding onto it — adding would
// double-count every milestone before m.
func (c *Chain) PushMilestone(m *Milestone, covered []daghash.Hash) {
	c.milestones.PushBack(m)
	c.tip = m.Hash
	c.chainwork = new(big.Int).Set(m.Chainwork)
	for _, h := range covered {
		delete(c.pending, h)
	}
}

// PopOldest evicts the chain's oldest milestone, used by the Flush
// Pipeline once that milestone's vertices have been persisted to the
// Store (spec.md §4.6 step 4).
func (c *Chain) PopOldest() *Milestone {
	if c.milestones.Len() == 0 {
		return nil
	}
	return c.milestones.PopFront().(*Milestone)
}

// AddPending admits a non-milestone vertex to the chain's working set.
func (c *Chain) AddPending(v *Vertex) {
	c.pending[v.Hash()] = v
	c.tip = v.Hash()
}

// Pending returns the vertex admitted to this chain's working set under
// hash, if any.
func (c *Chain) Pending(hash daghash.Hash) (*Vertex, bool) {
	v, ok := c.pending[hash]
	return v, ok
}

// Ledger returns the chain's UTXO ledger.
func (c *Chain) Ledger() *Ledger { return c.ledger }

// fork returns a new Chain sharing this chain's sealed milestone history
// by reference but holding an independent copy of the pending set and
// ledger diff, so mutations on the fork never touch the parent (spec.md
// §3 "copy-on-fork"). The deep copy of the pending map uses
// mitchellh/copystructure, grounded on the teacher's use of the same
// library for config/peer snapshot cloning.
func (c *Chain) fork() (*Chain, error) {
	clonedAny, err := copystructure.Copy(c.pending)
	if err != nil {
		return nil, err
	}
	clonedPending, ok := clonedAny.(map[daghash.Hash]*Vertex)
	if !ok {
		clonedPending = map[daghash.Hash]*Vertex{}
	}

	clonedLedger, err := c.ledger.clone()
	if err != nil {
		return nil, err
	}

	forked := &Chain{
		milestones: cloneMilestoneDeque(c.milestones),
		pending:    clonedPending,
		ledger:     clonedLedger,
		tip:        c.tip,
		chainwork:  new(big.Int).Set(c.chainwork),
	}
	return forked, nil
}

// cloneMilestoneDeque shares the underlying *Milestone pointers (sealed
// milestones are immutable once stored) while giving the fork its own
// deque so PushMilestone/PopOldest on one chain never mutates the other.
func cloneMilestoneDeque(d *deque.Deque) *deque.Deque {
	out := deque.New()
	for i := 0; i < d.Len(); i++ {
		out.PushBack(d.At(i))
	}
	return out
}

// forkAt returns a fork of c truncated to end at atMilestone: every sealed
// milestone after atMilestone is dropped (they belong only to c's branch),
// and the fork's chainwork and tip rewind to that point. A milestone
// candidate naming atMilestone as its MilestoneParent extends exactly this
// truncated history, never c's later milestones (spec.md §4.5.2 Case C). The
// pending set is cleared rather than inherited: everything c had pending
// was built assuming c's later milestones, which this fork does not have.
func (c *Chain) forkAt(atMilestone daghash.Hash) (*Chain, error) {
	forked, err := c.fork()
	if err != nil {
		return nil, err
	}

	truncated := deque.New()
	var cutChainwork *big.Int
	for i := 0; i < forked.milestones.Len(); i++ {
		ms := forked.milestones.At(i).(*Milestone)
		truncated.PushBack(ms)
		if ms.Hash == atMilestone {
			cutChainwork = ms.Chainwork
			break
		}
	}
	if cutChainwork == nil {
		return nil, ruleError(ErrVerifyFailure, "fork point milestone not found on base chain")
	}

	forked.milestones = truncated
	forked.chainwork = new(big.Int).Set(cutChainwork)
	forked.tip = atMilestone
	forked.pending = map[daghash.Hash]*Vertex{}
	return forked, nil
}

// VertexResolver looks up a vertex that lies outside the level-set
// currently being verified — an already-sealed ancestor (including
// genesis) whose MinerChainHeight and CumulativeReward were fixed when it
// was itself sealed. Chain.Verify needs this to extend the miner-chain
// walk across a level-set boundary (spec.md §4.3 step b); Manager supplies
// one backed by its in-memory vertex cache.
type VertexResolver func(hash daghash.Hash) (*Vertex, bool)

// minerChainAncestor returns the MinerChainHeight and CumulativeReward of
// the vertex at prevHash — the miner-chain parent edge — so its child can
// extend both by one step. A parent still inside this level-set (not yet
// committed to its own Vertex fields) is read from the computed maps this
// same Verify pass has already filled in, guaranteed populated first by the
// topological walk order; anything else falls through to resolve.
func minerChainAncestor(prevHash daghash.Hash, members map[daghash.Hash]*Vertex, resolve VertexResolver, computedMinerHeight map[daghash.Hash]uint64, computedReward map[daghash.Hash]util.Amount) (height uint64, reward util.Amount, ok bool) {
	if _, inMembers := members[prevHash]; inMembers {
		h, exists := computedMinerHeight[prevHash]
		if !exists {
			return 0, 0, false
		}
		return h, computedReward[prevHash], true
	}
	if resolve == nil {
		return 0, 0, false
	}
	pv, found := resolve(prevHash)
	if !found {
		return 0, 0, false
	}
	return pv.MinerChainHeight, pv.CumulativeReward, true
}

// Verify checks the level-set rooted at candidate against ledger rules,
// walking the pending DAG in dependency order via dominikbraun/graph
// rather than a hand-rolled topological sort (SPEC_FULL.md domain stack).
// It computes each member's MinerChainHeight, Height and CumulativeReward,
// enforces the valid-distance/sortition bound on any block carrying
// transactions (spec.md §4.3, supplemented feature #1, grounded on
// original_source/test/core/test_chain_verification.cpp), and applies every
// member to a scratch clone of the ledger, committing it onto c only once
// the whole level-set succeeds — a failure midway through must leave c
// untouched (spec.md §4.3 "Failure behavior"). It returns the composed TXOC
// for the whole level-set and the set of vertex hashes it covers.
func (c *Chain) Verify(candidate *Vertex, members map[daghash.Hash]*Vertex, resolve VertexResolver, height, sortitionThreshold uint64, msHashRate float64) (*TXOC, []daghash.Hash, error) {
	g := graph.New(func(v *Vertex) daghash.Hash { return v.Hash() }, graph.Directed(), graph.PreventCycles())

	for _, v := range members {
		if err := g.AddVertex(v); err != nil && err != graph.ErrVertexAlreadyExists {
			return nil, nil, ruleErrorWrap(ErrVerifyFailure, "level-set graph construction failed", err)
		}
	}
	for _, v := range members {
		for _, p := range v.Block.ParentHashes() {
			if _, ok := members[p]; !ok {
				continue // parent lies outside this level-set (already sealed or external)
			}
			if err := g.AddEdge(p, v.Hash()); err != nil && err != graph.ErrEdgeAlreadyExists {
				return nil, nil, ruleErrorWrap(ErrVerifyFailure, "level-set graph edge failed", err)
			}
		}
	}

	order, err := graph.TopologicalSort(g)
	if err != nil {
		return nil, nil, ruleErrorWrap(ErrVerifyFailure, "level-set is not a DAG", err)
	}

	scratch, err := c.ledger.clone()
	if err != nil {
		return nil, nil, ruleErrorWrap(ErrVerifyFailure, "ledger clone for verification failed", err)
	}

	composed := &TXOC{}
	redeemedThisRound := map[daghash.Hash]bool{}
	covered := make([]daghash.Hash, 0, len(order))
	computedMinerHeight := make(map[daghash.Hash]uint64, len(order))
	computedReward := make(map[daghash.Hash]util.Amount, len(order))

	for _, hash := range order {
		v, ok := members[hash]
		if !ok {
			continue
		}

		ancestorHeight, ancestorReward, hasAncestor := minerChainAncestor(v.Block.PrevParent, members, resolve, computedMinerHeight, computedReward)
		minerHeight := uint64(0)
		reward := util.Amount(0)
		if hasAncestor {
			minerHeight = ancestorHeight + 1
			reward = ancestorReward
		}

		if len(v.Block.Transactions) > 0 && !isValidDistance(minerHeight, sortitionThreshold, msHashRate) {
			return nil, nil, ruleError(ErrInvalidDistance,
				"block's miner-chain distance is insufficient for its transactions: "+hash.String())
		}

		txoc, err := scratch.ApplyBlock(v.Block, height, redeemedThisRound)
		if err != nil {
			return nil, nil, err
		}

		if hash == candidate.Hash() {
			reward += util.Amount(len(members))
		} else {
			reward += util.Amount(1)
		}
		computedMinerHeight[hash] = minerHeight
		computedReward[hash] = reward

		composed.Created = append(composed.Created, txoc.Created...)
		composed.Spent = append(composed.Spent, txoc.Spent...)
		covered = append(covered, hash)
	}

	for _, hash := range covered {
		v := members[hash]
		v.Height = height
		v.MinerChainHeight = computedMinerHeight[hash]
		v.CumulativeReward = computedReward[hash]
	}
	c.ledger = scratch

	return composed, covered, nil
}
