package dag

import (
	"math/big"
	"testing"

	"github.com/mstonedag/node/util"
	"github.com/mstonedag/node/util/daghash"
	"github.com/stretchr/testify/require"
)

func newTestGenesisChain() *Chain {
	genesis := &Vertex{Block: &Block{ProofHash: hashN(0)}, IsMilestone: true}
	return NewChain(genesis, newFakeSource())
}

func TestChainPushMilestoneDropsCoveredPending(t *testing.T) {
	c := newTestGenesisChain()
	v := &Vertex{Block: blockN(1, hashN(0), hashN(0), hashN(0))}
	c.AddPending(v)
	_, ok := c.Pending(v.Hash())
	require.True(t, ok)

	ms := &Milestone{Hash: hashN(1), Height: 1, Chainwork: big.NewInt(100)}
	c.PushMilestone(ms, []daghash.Hash{v.Hash()})

	_, ok = c.Pending(v.Hash())
	require.False(t, ok)
	require.Equal(t, big.NewInt(100), c.Chainwork())
	require.Equal(t, ms, c.NewestMilestone())
}

func TestChainPushMilestoneChainworkIsAbsoluteNotCumulativeAdd(t *testing.T) {
	c := newTestGenesisChain()
	ms1 := &Milestone{Hash: hashN(1), Height: 1, Chainwork: big.NewInt(100)}
	c.PushMilestone(ms1, nil)
	require.Equal(t, big.NewInt(100), c.Chainwork())

	// ms2.Chainwork already names the chain's total through ms2 (as
	// sealMilestone computes it: ms1.Chainwork plus ms2's own block work),
	// so pushing it must REPLACE, not add onto, the running total.
	ms2 := &Milestone{Hash: hashN(2), Height: 2, Chainwork: big.NewInt(175)}
	c.PushMilestone(ms2, nil)
	require.Equal(t, big.NewInt(175), c.Chainwork(), "chainwork must not double-count ms1's work")
}

func TestChainForkIsIndependent(t *testing.T) {
	c := newTestGenesisChain()
	v := &Vertex{Block: blockN(1, hashN(0), hashN(0), hashN(0))}
	c.AddPending(v)

	forked, err := c.fork()
	require.NoError(t, err)

	extra := &Vertex{Block: blockN(2, hashN(0), hashN(0), hashN(0))}
	forked.AddPending(extra)

	_, onOriginal := c.Pending(extra.Hash())
	require.False(t, onOriginal, "mutating the fork must not leak into the parent")

	_, onFork := forked.Pending(v.Hash())
	require.True(t, onFork, "the fork must still see what was pending at fork time")
}

func TestChainVerifyAppliesLevelSetInDependencyOrder(t *testing.T) {
	c := newTestGenesisChain()

	tx := &Transaction{
		ID:      Outpoint{TxID: hashN(10)},
		Outputs: []TxOutput{{Value: util.Amount(5)}},
	}
	parent := &Vertex{Block: &Block{
		MilestoneParent: hashN(0), PrevParent: hashN(0), TipParent: hashN(0),
		ProofHash:    hashN(1),
		Transactions: []*Transaction{tx},
	}}

	spendTx := &Transaction{
		ID:     Outpoint{TxID: hashN(11)},
		Inputs: []TxInput{{PreviousOutpoint: Outpoint{TxID: hashN(10), Index: 0}}},
	}
	child := &Vertex{Block: &Block{
		MilestoneParent: parent.Hash(), PrevParent: parent.Hash(), TipParent: parent.Hash(),
		ProofHash:    hashN(2),
		Transactions: []*Transaction{spendTx},
	}}

	members := map[daghash.Hash]*Vertex{
		parent.Hash(): parent,
		child.Hash():  child,
	}
	txoc, covered, err := c.Verify(child, members, nil, 1, 0, 0)
	require.NoError(t, err)
	require.Len(t, covered, 2)
	require.Equal(t, covered[0], parent.Hash(), "parent must be ordered before its spender")
	require.Len(t, txoc.Spent, 1)
	require.Equal(t, uint64(1), parent.Height)
	require.Equal(t, uint64(1), child.Height)
	require.Equal(t, uint64(1), child.MinerChainHeight, "child sits one hop below parent on its own miner-chain")
}

func TestChainVerifyLeavesLedgerUntouchedOnFailure(t *testing.T) {
	c := newTestGenesisChain()

	bad := &Vertex{Block: &Block{
		MilestoneParent: hashN(0), PrevParent: hashN(0), TipParent: hashN(0),
		ProofHash: hashN(1),
		Transactions: []*Transaction{{
			ID:     Outpoint{TxID: hashN(20)},
			Inputs: []TxInput{{PreviousOutpoint: Outpoint{TxID: hashN(99)}}}, // spends an output that doesn't exist
		}},
	}}
	members := map[daghash.Hash]*Vertex{bad.Hash(): bad}

	before := c.Ledger().Diff()
	_, _, err := c.Verify(bad, members, nil, 1, 0, 0)
	require.Error(t, err)
	require.Same(t, before, c.Ledger().Diff(), "a failed Verify must not replace or mutate the chain's live ledger diff")
	require.Empty(t, c.Ledger().Diff().Created)
	require.Empty(t, c.Ledger().Diff().Spent)
}

func TestChainVerifyRejectsTransactionBelowSortitionDistance(t *testing.T) {
	c := newTestGenesisChain()

	candidate := &Vertex{Block: &Block{
		MilestoneParent: hashN(0), PrevParent: hashN(0), TipParent: hashN(0),
		ProofHash: hashN(1),
		Transactions: []*Transaction{{
			ID:      Outpoint{TxID: hashN(30)},
			Outputs: []TxOutput{{Value: util.Amount(1)}},
		}},
	}}
	members := map[daghash.Hash]*Vertex{candidate.Hash(): candidate}

	// candidate's only miner-chain parent is genesis, unresolvable here (no
	// resolver given), so its minerChainHeight is 0 — below a
	// sortitionThreshold of 1.
	_, _, err := c.Verify(candidate, members, nil, 1, 1, 0)
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	require.Equal(t, ErrInvalidDistance, kind)
}
