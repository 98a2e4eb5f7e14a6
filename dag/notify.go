package dag

import "github.com/mstonedag/node/util/daghash"

// LvsConfirmedListener is invoked once per flushed milestone, after its
// level-set has been persisted to the Store (spec.md §4.6 step 4, §6).
// regCommitment is the blake3 digest of the milestone's RegChange
// (RegChange.Commitment), letting a listener verify its own view of the
// registration delta against a cheap fixed-size digest rather than
// re-walking Added/Removed.
type LvsConfirmedListener func(vertices []*Vertex, utxosCreated, utxosRemoved []Outpoint, regCommitment daghash.Hash)

// ChainUpdatedListener fires whenever a milestone is sealed onto any
// chain, main or not (spec.md §4.5.2, §6).
type ChainUpdatedListener func(block *Block, isMain bool)

// Listeners holds the Manager's registered downstream callbacks. A
// listener fault is non-fatal (spec.md §9 open question): the Manager
// recovers from a panicking listener and continues the purge.
type Listeners struct {
	onLvsConfirmed []LvsConfirmedListener
	onChainUpdated []ChainUpdatedListener
}

func (l *Listeners) OnLvsConfirmed(f LvsConfirmedListener) {
	l.onLvsConfirmed = append(l.onLvsConfirmed, f)
}

func (l *Listeners) OnChainUpdated(f ChainUpdatedListener) {
	l.onChainUpdated = append(l.onChainUpdated, f)
}

func (l *Listeners) fireLvsConfirmed(vertices []*Vertex, created, removed []Outpoint, regCommitment daghash.Hash) {
	for _, f := range l.onLvsConfirmed {
		callListenerSafely(func() { f(vertices, created, removed, regCommitment) })
	}
}

func (l *Listeners) fireChainUpdated(block *Block, isMain bool) {
	for _, f := range l.onChainUpdated {
		callListenerSafely(func() { f(block, isMain) })
	}
}

// callListenerSafely isolates a listener panic so a faulty downstream
// consumer cannot abort the flush or admission pipeline (spec.md §9).
func callListenerSafely(f func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("listener panicked, continuing: %v", r)
		}
	}()
	f()
}
