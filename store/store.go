// Package store implements the durable-storage collaborator (spec.md §6)
// backed by goleveldb, grounded on the teacher's
// database2/ffldb/leveldb.LevelDB wrapper.
package store

import (
	"path/filepath"
	"sync"

	"github.com/mstonedag/node/dag"
	"github.com/mstonedag/node/logger"
	"github.com/mstonedag/node/util/daghash"
	"github.com/syndtr/goleveldb/leveldb"
	dberrors "github.com/syndtr/goleveldb/leveldb/errors"
)

var log, _ = logger.Get(logger.SubsystemTags.STOR)

// LevelStore implements dag.Store on top of a single goleveldb database,
// a flat keyspace partitioned by prefix (codec.go) rather than the
// teacher's separate bucket-per-concern ffldb layout, since this engine's
// schema is far smaller than kaspad's full UTXO+block-index+reachability
// set.
type LevelStore struct {
	mu  sync.RWMutex
	ldb *leveldb.DB

	blockCache map[daghash.Hash]*dag.Vertex // Store's own block cache (spec.md §6 Cache/UnCache)

	obc *dag.OrphanBlockContainer
}

// Open opens (or creates) a LevelStore at dataDir/chainstate, recovering
// from on-disk corruption the same way the teacher's LevelDB wrapper does.
func Open(dataDir string) (*LevelStore, error) {
	dbPath := filepath.Join(dataDir, "chainstate")
	ldb, err := leveldb.OpenFile(dbPath, nil)
	if _, corrupted := err.(*dberrors.ErrCorrupted); corrupted {
		log.Warnf("leveldb corruption detected at %s: %s", dbPath, err)
		ldb, err = leveldb.RecoverFile(dbPath, nil)
		if err != nil {
			return nil, err
		}
		log.Warnf("leveldb recovered from corruption at %s", dbPath)
	}
	if err != nil {
		return nil, err
	}

	return &LevelStore{
		ldb:        ldb,
		blockCache: map[daghash.Hash]*dag.Vertex{},
		obc:        dag.NewOrphanBlockContainer(),
	}, nil
}

func (s *LevelStore) Close() error {
	return s.ldb.Close()
}

func (s *LevelStore) Exists(hash daghash.Hash) bool {
	return s.DAGExists(hash)
}

func (s *LevelStore) DAGExists(hash daghash.Hash) bool {
	s.mu.RLock()
	if _, ok := s.blockCache[hash]; ok {
		s.mu.RUnlock()
		return true
	}
	s.mu.RUnlock()
	return s.DBExists(hash)
}

func (s *LevelStore) DBExists(hash daghash.Hash) bool {
	ok, err := s.ldb.Has(vertexKey(hash), nil)
	return err == nil && ok
}

func (s *LevelStore) Cache(v *dag.Vertex) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blockCache[v.Hash()] = v
}

func (s *LevelStore) UnCache(hash daghash.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blockCache, hash)
}

func (s *LevelStore) GetVertex(hash daghash.Hash) (*dag.Vertex, error) {
	s.mu.RLock()
	if v, ok := s.blockCache[hash]; ok {
		s.mu.RUnlock()
		return v, nil
	}
	s.mu.RUnlock()

	raw, err := s.ldb.Get(vertexKey(hash), nil)
	if err == leveldb.ErrNotFound {
		return nil, dag.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	// Only the fields this engine itself computes are persisted here; the
	// block body's wire encoding is the (out of scope) block-format
	// collaborator's concern, so the returned vertex's Block carries only
	// its hash.
	isMilestone := raw[0] == 1
	var height uint64
	for i := 0; i < 8; i++ {
		height = height<<8 | uint64(raw[1+i])
	}
	return &dag.Vertex{
		Block:       &dag.Block{ProofHash: hash},
		Height:      height,
		IsMilestone: isMilestone,
	}, nil
}

func (s *LevelStore) GetMilestoneAt(height uint64) (*dag.Milestone, error) {
	hashBytes, err := s.ldb.Get(milestoneIdxKey(height), nil)
	if err == leveldb.ErrNotFound {
		return nil, dag.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var hash daghash.Hash
	copy(hash[:], hashBytes)
	return &dag.Milestone{Hash: hash, Height: height}, nil
}

func (s *LevelStore) GetLevelSetBlksAt(height uint64) ([]*dag.Block, error) {
	return nil, dag.ErrNotFound
}

func (s *LevelStore) GetLevelSetVtcsAt(height uint64) ([]*dag.Vertex, error) {
	return nil, dag.ErrNotFound
}

// GetRawLevelSetAt distinguishes a pruned height from an unknown one
// (SPEC_FULL.md supplemented feature #5): this store does not prune, so
// every miss is ErrNotFound, never ErrPruned.
func (s *LevelStore) GetRawLevelSetAt(height uint64) ([]byte, error) {
	raw, err := s.ldb.Get(rawLevelSetKey(height), nil)
	if err == leveldb.ErrNotFound {
		return nil, dag.ErrNotFound
	}
	return raw, err
}

func rawLevelSetKey(height uint64) []byte {
	return append([]byte("lvs"), milestoneIdxKey(height)...)
}

func (s *LevelStore) StoreLevelSet(m *dag.Milestone, vertices []*dag.Vertex) error {
	batch := new(leveldb.Batch)
	batch.Put(milestoneIdxKey(m.Height), m.Hash[:])
	batch.Put(rawLevelSetKey(m.Height), encodeLevelSetOrder(m.SerializedOrder()))
	for _, v := range vertices {
		hash := v.Hash()
		raw := make([]byte, 9)
		if v.IsMilestone {
			raw[0] = 1
		}
		putUint64(raw[1:], v.Height)
		batch.Put(vertexKey(hash), raw)
	}
	return s.ldb.Write(batch, nil)
}

func encodeLevelSetOrder(hashes []daghash.Hash) []byte {
	out := make([]byte, 0, len(hashes)*daghash.HashSize)
	for _, h := range hashes {
		out = append(out, h[:]...)
	}
	return out
}

func (s *LevelStore) AddUTXO(out dag.Outpoint, entry *dag.UTXOEntry) error {
	raw, err := encodeUTXOEntry(entry)
	if err != nil {
		return err
	}
	return s.ldb.Put(utxoKey(out), raw, nil)
}

func (s *LevelStore) RemoveUTXO(out dag.Outpoint) error {
	return s.ldb.Delete(utxoKey(out), nil)
}

func (s *LevelStore) GetUTXO(out dag.Outpoint) (*dag.UTXOEntry, bool, error) {
	raw, err := s.ldb.Get(utxoKey(out), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	entry, err := decodeUTXOEntry(raw)
	if err != nil {
		return nil, false, err
	}
	return entry, true, nil
}

func (s *LevelStore) GetRegistration(account daghash.Hash) (dag.Outpoint, bool, error) {
	raw, err := s.ldb.Get(registrationKey(account), nil)
	if err == leveldb.ErrNotFound {
		return dag.Outpoint{}, false, nil
	}
	if err != nil {
		return dag.Outpoint{}, false, err
	}
	var out dag.Outpoint
	copy(out.TxID[:], raw[:daghash.HashSize])
	out.Index = uint32(raw[daghash.HashSize])<<24 | uint32(raw[daghash.HashSize+1])<<16 |
		uint32(raw[daghash.HashSize+2])<<8 | uint32(raw[daghash.HashSize+3])
	return out, true, nil
}

func (s *LevelStore) UpdatePrevRedemHashes(rc *dag.RegChange) error {
	if rc == nil {
		return nil
	}
	batch := new(leveldb.Batch)
	for acct := range rc.Removed {
		batch.Delete(registrationKey(acct))
	}
	for acct, out := range rc.Added {
		raw := make([]byte, daghash.HashSize+4)
		copy(raw, out.TxID[:])
		putUint32(raw[daghash.HashSize:], out.Index)
		batch.Put(registrationKey(acct), raw)
	}
	return s.ldb.Write(batch, nil)
}

func (s *LevelStore) SaveHeadHeight(height uint64) error {
	buf := make([]byte, 8)
	putUint64(buf, height)
	return s.ldb.Put(prefixHeadHeight, buf, nil)
}

// IsWeaklySolid reports whether every one of block's missing parents is at
// least present in the Store's own OBC (spec.md glossary: "weakly solid").
func (s *LevelStore) IsWeaklySolid(block *dag.Block) bool {
	for _, p := range block.ParentHashes() {
		if !s.DAGExists(p) && !s.obc.Has(p) {
			return false
		}
	}
	return true
}

func (s *LevelStore) AnyLinkIsOrphan(block *dag.Block) bool {
	return s.obc.AnyLinkIsOrphan(block)
}

func (s *LevelStore) AddBlockToOBC(block *dag.Block, mask uint8) error {
	s.obc.Add(block, func(h daghash.Hash) bool { return s.DAGExists(h) })
	return nil
}

func (s *LevelStore) ReleaseBlocks(hash daghash.Hash) []*dag.Block {
	return s.obc.Release(hash)
}

func (s *LevelStore) EnableOBC(enable bool) {
	if enable {
		s.obc.Enable()
	} else {
		s.obc.Disable()
	}
}
