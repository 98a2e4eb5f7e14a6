package dag

import (
	"github.com/mstonedag/node/util/daghash"
)

// maxOrphanEntries bounds the Orphan Block Container independently of the
// Enable/Disable gate (SPEC_FULL.md supplemented feature #3, grounded on
// the teacher's maxOrphanBlocks cap in the now-superseded blockdag package):
// a burst of unsolicited blocks referencing unknown parents must not grow
// the container without bound even while it is enabled.
const maxOrphanEntries = 500

// parentMask is the 3-bit missing-parent bitmask (spec.md §4.2): bit i set
// means ParentHashes()[i] is not yet resolvable as a vertex.
type parentMask uint8

// Bit order matches spec.md §3: bit0 = milestone-parent missing, bit1 =
// tip-parent missing, bit2 = prev-parent missing — note this differs from
// Block.ParentHashes()'s (milestone, prev, tip) tuple order, so callers
// must map explicitly rather than shift by tuple index.
const (
	maskMilestoneParent parentMask = 1 << iota
	maskTipParent
	maskPrevParent
)

func (m parentMask) empty() bool { return m == 0 }

// obcEntry is one orphan held by the container: the block itself plus the
// set of parent hashes still missing.
type obcEntry struct {
	block   *Block
	mask    parentMask
	missing [3]daghash.Hash // only the masked slots are meaningful
	seq     uint64          // insertion order, for deterministic release
}

// OrphanBlockContainer holds blocks that referenced at least one
// not-yet-known parent, keyed by block hash, with an inverted index from
// "missing parent hash" to "orphans waiting on it" so a single arriving
// block can release every dependent in one step (spec.md §4.2).
type OrphanBlockContainer struct {
	enabled bool

	byHash   map[daghash.Hash]*obcEntry
	byParent map[daghash.Hash]map[daghash.Hash]bool // missing parent -> set of orphan hashes waiting on it

	nextSeq uint64
}

// NewOrphanBlockContainer returns an OBC, disabled until Enable is called
// (spec.md §4.2: the OBC is gated on sync progress via ObcEnableThreshold).
func NewOrphanBlockContainer() *OrphanBlockContainer {
	return &OrphanBlockContainer{
		byHash:   map[daghash.Hash]*obcEntry{},
		byParent: map[daghash.Hash]map[daghash.Hash]bool{},
	}
}

// Enable turns on orphan retention. Disable turns it off and drops every
// held entry: while disabled, the engine treats ErrNotSolid blocks as
// simply dropped rather than staged (spec.md §4.2).
func (o *OrphanBlockContainer) Enable()  { o.enabled = true }
func (o *OrphanBlockContainer) Disable() { o.enabled = false; o.clear() }

func (o *OrphanBlockContainer) clear() {
	o.byHash = map[daghash.Hash]*obcEntry{}
	o.byParent = map[daghash.Hash]map[daghash.Hash]bool{}
}

// Enabled reports the current gate state.
func (o *OrphanBlockContainer) Enabled() bool { return o.enabled }

// resolver reports whether a hash is already known as a vertex (i.e. no
// longer missing). Passed in by the caller rather than held as a field so
// the OBC itself stays free of a direct Chain/Store dependency.
type resolver func(hash daghash.Hash) bool

// Add stages block as an orphan, computing which of its parents are still
// missing via has. A no-op (false) if the OBC is disabled or already at
// maxOrphanEntries. Returns false when every parent already resolves — the
// caller should not have called Add in that case.
func (o *OrphanBlockContainer) Add(block *Block, has resolver) bool {
	if !o.enabled || len(o.byHash) >= maxOrphanEntries {
		return false
	}

	parents := block.ParentHashes()
	var mask parentMask
	var missing [3]daghash.Hash
	bits := [3]parentMask{maskMilestoneParent, maskPrevParent, maskTipParent}
	for i, p := range parents {
		if !has(p) {
			mask |= bits[i]
			missing[i] = p
		}
	}
	if mask.empty() {
		return false
	}

	hash := block.Hash()
	entry := &obcEntry{block: block, mask: mask, missing: missing, seq: o.nextSeq}
	o.nextSeq++
	o.byHash[hash] = entry

	for i, bit := range bits {
		if mask&bit == 0 {
			continue
		}
		waiters, ok := o.byParent[missing[i]]
		if !ok {
			waiters = map[daghash.Hash]bool{}
			o.byParent[missing[i]] = waiters
		}
		waiters[hash] = true
	}
	return true
}

// AnyLinkIsOrphan reports whether any of block's parents is itself
// currently held in the OBC — used by the admission pipeline to decide
// whether a block that resolves all three parents against the Store still
// needs to wait behind an orphan ancestor (spec.md §4.2).
func (o *OrphanBlockContainer) AnyLinkIsOrphan(block *Block) bool {
	for _, p := range block.ParentHashes() {
		if _, ok := o.byHash[p]; ok {
			return true
		}
	}
	return false
}

// Release reports the orphans that become resolvable now that hash is
// known, in deterministic insertion order, removing them from the
// container. The caller is responsible for re-attempting admission of each
// returned block, which may itself release further orphans transitively.
func (o *OrphanBlockContainer) Release(hash daghash.Hash) []*Block {
	waiters, ok := o.byParent[hash]
	if !ok {
		return nil
	}
	delete(o.byParent, hash)

	var ready []*obcEntry
	for waitHash := range waiters {
		entry, ok := o.byHash[waitHash]
		if !ok {
			continue
		}
		entry.mask = clearMissingBit(entry, hash)
		if entry.mask.empty() {
			ready = append(ready, entry)
			delete(o.byHash, waitHash)
		}
	}

	sortBySeq(ready)
	blocks := make([]*Block, len(ready))
	for i, e := range ready {
		blocks[i] = e.block
	}
	return blocks
}

func clearMissingBit(entry *obcEntry, resolved daghash.Hash) parentMask {
	bits := [3]parentMask{maskMilestoneParent, maskPrevParent, maskTipParent}
	mask := entry.mask
	for i, bit := range bits {
		if mask&bit != 0 && entry.missing[i] == resolved {
			mask &^= bit
		}
	}
	return mask
}

func sortBySeq(entries []*obcEntry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].seq < entries[j-1].seq; j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}

// Len reports the number of orphans currently held.
func (o *OrphanBlockContainer) Len() int { return len(o.byHash) }

// Has reports whether hash is currently held as an orphan.
func (o *OrphanBlockContainer) Has(hash daghash.Hash) bool {
	_, ok := o.byHash[hash]
	return ok
}
