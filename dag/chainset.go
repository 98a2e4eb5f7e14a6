package dag

import (
	"github.com/mstonedag/node/util/daghash"
)

// chainID is a chain's stable identity within a ChainSet, assigned once at
// registration and never reassigned. Chain.tip changes on every ordinary
// pending-block admission (AddPending) and again at every PushMilestone;
// keying the set by tip hash instead of a stable id let two live chains
// collapse onto one map entry the moment accept() admitted the same block
// into both of their pending sets. chainID has no such mutable aliasing.
type chainID uint64

// ChainSet tracks every live fork of the DAG and the current best chain
// (spec.md §3, §4.4). The best chain is the one with the greatest
// cumulative chainwork; ties are broken by earliest chain-creation order
// (spec.md §4.4, invariant I4).
type ChainSet struct {
	chains map[chainID]*Chain
	order  []chainID // registration order, for tie-breaking
	best   chainID

	nextID chainID

	deleteForkThreshold uint64
}

// NewChainSet returns a ChainSet seeded with a single genesis chain.
func NewChainSet(genesis *Chain, deleteForkThreshold uint64) *ChainSet {
	cs := &ChainSet{
		chains:              map[chainID]*Chain{},
		deleteForkThreshold: deleteForkThreshold,
	}
	cs.register(genesis)
	return cs
}

// register assigns c the next chainID, tracks it, and re-evaluates the
// best-chain pointer. Used for the genesis chain, ChainSet.Fork's result,
// and Manager's Case D stand-in chain.
func (cs *ChainSet) register(c *Chain) chainID {
	cs.nextID++
	id := cs.nextID
	c.id = id
	cs.chains[id] = c
	cs.order = append(cs.order, id)
	cs.reconsiderBest()
	return id
}

// Best returns the current best chain by chainwork.
func (cs *ChainSet) Best() *Chain {
	return cs.chains[cs.best]
}

// Get returns the chain registered under id, if any.
func (cs *ChainSet) Get(id chainID) (*Chain, bool) {
	c, ok := cs.chains[id]
	return c, ok
}

// Fork creates a new chain branching off base at atMilestone — a milestone
// somewhere in base's sealed history, not necessarily its head — and
// registers it under its own chainID.
func (cs *ChainSet) Fork(base *Chain, atMilestone daghash.Hash) (*Chain, error) {
	forked, err := base.forkAt(atMilestone)
	if err != nil {
		return nil, err
	}
	cs.register(forked)
	return forked, nil
}

// Reconsider re-evaluates the best-chain pointer. Callers invoke this after
// an operation that actually changes some chain's chainwork (PushMilestone,
// Fork); ordinary pending-block admission (AddPending) never
// changes chainwork and must not trigger it.
func (cs *ChainSet) Reconsider() {
	cs.reconsiderBest()
}

func (cs *ChainSet) reconsiderBest() {
	var bestID chainID
	for _, id := range cs.order {
		c, ok := cs.chains[id]
		if !ok {
			continue
		}
		if bestID == 0 {
			bestID = id
			continue
		}
		best := cs.chains[bestID]
		if c.Chainwork().Cmp(best.Chainwork()) > 0 {
			bestID = id
		}
		// equal chainwork: earlier entry in cs.order (already bestID) wins (I4)
	}
	cs.best = bestID
}

// StaleChains returns every chain other than the best one whose chainwork
// has fallen behind the chainwork the best chain already had
// deleteForkThreshold milestones ago — candidates for DeleteFork pruning
// (spec.md §4.4). Comparing chainwork against that fixed ancestor, rather
// than a raw height delta, matches the grounded original's
// targetChainWork = (*(milestones.end()-deleteForkThreshold))->chainwork:
// a fork that's merely short on height but still accumulating comparable
// work isn't stale yet.
func (cs *ChainSet) StaleChains() []chainID {
	best := cs.Best()
	if best == nil || uint64(best.MilestoneCount()) < cs.deleteForkThreshold {
		return nil
	}
	targetIdx := best.milestones.Len() - int(cs.deleteForkThreshold)
	targetWork := best.milestones.At(targetIdx).(*Milestone).Chainwork

	var stale []chainID
	for _, id := range cs.order {
		if id == cs.best {
			continue
		}
		c, ok := cs.chains[id]
		if !ok {
			continue
		}
		if c.Chainwork().Cmp(targetWork) < 0 {
			stale = append(stale, id)
		}
	}
	return stale
}

// DeleteFork removes a stale chain from the set entirely (spec.md §4.5):
// its pending vertices and ledger diff are simply discarded, since they
// were never flushed to the shared Store.
func (cs *ChainSet) DeleteFork(id chainID) {
	if id == cs.best {
		return // never delete the best chain
	}
	delete(cs.chains, id)
	for i, x := range cs.order {
		if x == id {
			cs.order = append(cs.order[:i], cs.order[i+1:]...)
			break
		}
	}
}

// Chains returns every live chain's id.
func (cs *ChainSet) Chains() []chainID {
	out := make([]chainID, len(cs.order))
	copy(out, cs.order)
	return out
}
