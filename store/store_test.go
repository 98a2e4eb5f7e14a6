package store

import (
	"testing"

	"github.com/mstonedag/node/dag"
	"github.com/mstonedag/node/util"
	"github.com/mstonedag/node/util/daghash"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *LevelStore {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func TestStoreVertexRoundTrip(t *testing.T) {
	s := openTestStore(t)

	hash := daghash.Hash{1}
	require.False(t, s.DAGExists(hash))

	ms := &dag.Milestone{Hash: hash, Height: 3}
	v := &dag.Vertex{Block: &dag.Block{ProofHash: hash}, Height: 3, IsMilestone: true}
	require.NoError(t, s.StoreLevelSet(ms, []*dag.Vertex{v}))

	require.True(t, s.DAGExists(hash))
	got, err := s.GetVertex(hash)
	require.NoError(t, err)
	require.Equal(t, uint64(3), got.Height)
	require.True(t, got.IsMilestone)
}

func TestStoreGetVertexNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetVertex(daghash.Hash{9})
	require.ErrorIs(t, err, dag.ErrNotFound)
}

func TestStoreVertexCacheHitAvoidsDB(t *testing.T) {
	s := openTestStore(t)
	hash := daghash.Hash{2}
	v := &dag.Vertex{Block: &dag.Block{ProofHash: hash}}
	s.Cache(v)

	got, err := s.GetVertex(hash)
	require.NoError(t, err)
	require.Same(t, v, got)

	s.UnCache(hash)
	_, err = s.GetVertex(hash)
	require.ErrorIs(t, err, dag.ErrNotFound)
}

func TestStoreGetMilestoneAt(t *testing.T) {
	s := openTestStore(t)
	hash := daghash.Hash{3}
	ms := &dag.Milestone{Hash: hash, Height: 7}
	require.NoError(t, s.StoreLevelSet(ms, nil))

	got, err := s.GetMilestoneAt(7)
	require.NoError(t, err)
	require.Equal(t, hash, got.Hash)

	_, err = s.GetMilestoneAt(8)
	require.ErrorIs(t, err, dag.ErrNotFound)
}

func TestStoreUTXORoundTrip(t *testing.T) {
	s := openTestStore(t)
	out := dag.Outpoint{TxID: daghash.Hash{4}, Index: 2}
	entry := &dag.UTXOEntry{Output: dag.TxOutput{Value: util.Amount(42), Script: []byte("scr")}, BlockHeight: 5}

	_, ok, err := s.GetUTXO(out)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.AddUTXO(out, entry))
	got, ok, err := s.GetUTXO(out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, entry.BlockHeight, got.BlockHeight)
	require.Equal(t, entry.Output.Value, got.Output.Value)
	require.Equal(t, entry.Output.Script, got.Output.Script)

	require.NoError(t, s.RemoveUTXO(out))
	_, ok, err = s.GetUTXO(out)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStoreRegistrationRoundTrip(t *testing.T) {
	s := openTestStore(t)
	account := daghash.Hash{5}
	out := dag.Outpoint{TxID: daghash.Hash{6}, Index: 1}

	rc := dag.NewRegChange()
	rc.Added[account] = out
	require.NoError(t, s.UpdatePrevRedemHashes(rc))

	got, ok, err := s.GetRegistration(account)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, out, got)

	rc2 := dag.NewRegChange()
	rc2.Removed[account] = out
	require.NoError(t, s.UpdatePrevRedemHashes(rc2))

	_, ok, err = s.GetRegistration(account)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStoreIsWeaklySolidRejectsAParentOnlyReferencedByAnOrphan(t *testing.T) {
	s := openTestStore(t)
	known := daghash.Hash{7}
	require.NoError(t, s.StoreLevelSet(&dag.Milestone{Hash: known, Height: 1},
		[]*dag.Vertex{{Block: &dag.Block{ProofHash: known}}}))

	tipParent := daghash.Hash{99}
	block := &dag.Block{MilestoneParent: known, PrevParent: known, TipParent: tipParent}
	require.False(t, s.IsWeaklySolid(block), "tip parent is neither known nor an orphan")

	s.EnableOBC(true)
	// Stage an unrelated orphan that names tipParent as its milestone
	// parent, so the OBC now holds tipParent as a waiter key.
	orphanStandIn := &dag.Block{
		MilestoneParent: tipParent, PrevParent: daghash.Hash{101}, TipParent: daghash.Hash{102},
	}
	require.Equal(t, tipParent, orphanStandIn.MilestoneParent)
	s.obc.Add(orphanStandIn, func(h daghash.Hash) bool { return h == known })
	require.True(t, s.obc.Has(orphanStandIn.Hash()))

	// tipParent itself is still not *in* the OBC (only orphanStandIn, which
	// references it, is) — IsWeaklySolid checks obc.Has(p), not byParent, so
	// it still reports false for a parent that is merely referenced.
	require.False(t, s.IsWeaklySolid(block))
}
