package dag

import (
	"github.com/mitchellh/copystructure"
	"github.com/mstonedag/node/util/daghash"
)

// UTXOEntry is one unspent output tracked by a Ledger.
type UTXOEntry struct {
	Output      TxOutput
	BlockHeight uint64
}

// UTXOSource resolves an outpoint that is not present in a Ledger's own
// diff — i.e. an output that was already flushed to the Store collaborator
// on an ancestor milestone. Ancestor-visible lookups are branch-local: a
// Chain only ever consults its own Ledger plus the shared, already-flushed
// prefix (spec.md §3 "Chain ... is copy-on-fork").
type UTXOSource interface {
	GetUTXO(out Outpoint) (*UTXOEntry, bool, error)
	GetRegistration(account daghash.Hash) (Outpoint, bool, error)
}

// UTXODiff is the set of outputs created and removed on a branch since its
// last flushed milestone (spec.md §3).
type UTXODiff struct {
	Created map[Outpoint]*UTXOEntry
	Spent   map[Outpoint]*UTXOEntry
}

// NewUTXODiff returns an empty diff.
func NewUTXODiff() *UTXODiff {
	return &UTXODiff{Created: map[Outpoint]*UTXOEntry{}, Spent: map[Outpoint]*UTXOEntry{}}
}

// TXOC is the (created, spent) pair produced by a block or composed across
// a level-set (spec.md glossary).
type TXOC struct {
	Created []Outpoint
	Spent   []Outpoint
}

// Ledger is a Chain's per-branch UTXO view: outputs created and spent
// since the branch's last flushed milestone, plus a fallback to the
// shared Store for anything flushed on an ancestor.
type Ledger struct {
	source        UTXOSource
	diff          *UTXODiff
	registrations map[daghash.Hash]Outpoint
}

// NewLedger returns an empty Ledger reading through to source for
// anything not yet in its own diff.
func NewLedger(source UTXOSource) *Ledger {
	return &Ledger{
		source:        source,
		diff:          NewUTXODiff(),
		registrations: map[daghash.Hash]Outpoint{},
	}
}

// Get resolves an outpoint against the branch-local diff first, falling
// back to the Store collaborator for the already-flushed prefix.
func (l *Ledger) Get(out Outpoint) (*UTXOEntry, bool, error) {
	if _, spent := l.diff.Spent[out]; spent {
		return nil, false, nil
	}
	if entry, ok := l.diff.Created[out]; ok {
		return entry, true, nil
	}
	return l.source.GetUTXO(out)
}

// currentRegistration resolves an account's live registration outpoint,
// branch-local diff first.
func (l *Ledger) currentRegistration(account daghash.Hash) (Outpoint, bool, error) {
	if out, ok := l.registrations[account]; ok {
		return out, true, nil
	}
	return l.source.GetRegistration(account)
}

// ApplyBlock validates block's transactions against the ledger and returns
// the TXOC it produces, mutating the ledger's diff in place. redeemedThisRound
// tracks accounts already redeemed earlier in the same level-set
// verification pass, enforcing the single-hop-per-round rule (SPEC_FULL.md
// supplemented feature #4): an account that already redeemed once in this
// level-set may not redeem again, so a registration minted by a redemption
// earlier in the same level-set cannot itself be redeemed in it.
func (l *Ledger) ApplyBlock(block *Block, height uint64, redeemedThisRound map[daghash.Hash]bool) (*TXOC, error) {
	txoc := &TXOC{}

	for _, tx := range block.Transactions {
		for _, in := range tx.Inputs {
			entry, ok, err := l.Get(in.PreviousOutpoint)
			if err != nil {
				return nil, ruleErrorWrap(ErrVerifyFailure, "utxo lookup failed", err)
			}
			if !ok {
				return nil, ruleError(ErrVerifyFailure,
					"transaction spends an output that is not unspent: "+in.PreviousOutpoint.TxID.String())
			}
			delete(l.diff.Created, in.PreviousOutpoint)
			l.diff.Spent[in.PreviousOutpoint] = entry
			txoc.Spent = append(txoc.Spent, in.PreviousOutpoint)
		}

		for i, out := range tx.Outputs {
			outpoint := Outpoint{TxID: tx.Hash(), Index: uint32(i)}
			l.diff.Created[outpoint] = &UTXOEntry{Output: out, BlockHeight: height}
			txoc.Created = append(txoc.Created, outpoint)
		}

		if tx.Registration != nil {
			if err := l.applyRegistration(tx.Registration, redeemedThisRound); err != nil {
				return nil, err
			}
		}
	}

	return txoc, nil
}

// applyRegistration enforces "at most one unredeemed registration at a
// time" (spec.md §4.3): a redemption must spend the account's current
// registration, and that account must not have already been redeemed
// earlier in this level-set (SPEC_FULL.md supplemented feature #4).
func (l *Ledger) applyRegistration(op *RegistrationOp, redeemedThisRound map[daghash.Hash]bool) error {
	if op.Spends == (Outpoint{}) {
		// First registration: nothing to redeem, nothing to conflict with.
		l.registrations[op.Account] = op.NewOutput
		return nil
	}

	if redeemedThisRound[op.Account] {
		return ruleError(ErrVerifyFailure,
			"account already redeemed its registration earlier in this level-set: "+op.Account.String())
	}

	current, ok, err := l.currentRegistration(op.Account)
	if err != nil {
		return ruleErrorWrap(ErrVerifyFailure, "registration lookup failed", err)
	}
	if !ok || current != op.Spends {
		return ruleError(ErrVerifyFailure,
			"redemption does not spend the account's current registration: "+op.Account.String())
	}

	l.registrations[op.Account] = op.NewOutput
	redeemedThisRound[op.Account] = true
	return nil
}

// BeginRound snapshots the ledger's current registration overlay before a
// level-set's writes land, so a later RegChange call can tell an account's
// prior registration from the round's own new write (spec.md §8 R2).
func (l *Ledger) BeginRound() map[daghash.Hash]Outpoint {
	snapshot := make(map[daghash.Hash]Outpoint, len(l.registrations))
	for acct, out := range l.registrations {
		snapshot[acct] = out
	}
	return snapshot
}

// RegChange summarizes the registration-table deltas accumulated this
// round, for sealing onto the new Milestone. before is the overlay
// snapshot BeginRound returned prior to this round's writes; an account
// missing from it was never touched by this branch before, so its prior
// registration (if any) is looked up against the Store collaborator
// instead — either way, Removed must carry the account's actual
// pre-round owner for Inverse() to restore it (spec.md §8 R2).
func (l *Ledger) RegChange(before map[daghash.Hash]Outpoint) *RegChange {
	rc := NewRegChange()
	for acct, newOut := range l.registrations {
		if oldOut, had := before[acct]; had {
			rc.Removed[acct] = oldOut
		} else if oldOut, had, err := l.source.GetRegistration(acct); err == nil && had {
			rc.Removed[acct] = oldOut
		}
		rc.Added[acct] = newOut
	}
	return rc
}

// Diff returns the accumulated created/spent sets since the ledger's last
// flush boundary.
func (l *Ledger) Diff() *UTXODiff {
	return l.diff
}

// Reset clears the ledger's diff and registration overlay outright. Only
// safe when nothing else on the chain is still unflushed: if a later
// milestone's writes are still pending in the same diff, prefer
// ReleaseFlushed.
func (l *Ledger) Reset() {
	l.diff = NewUTXODiff()
	l.registrations = map[daghash.Hash]Outpoint{}
}

// ReleaseFlushed removes exactly the entries one just-flushed milestone
// persisted from the live diff and registration overlay, called by
// purgeAfterFlush (spec.md §4.6 step 5). triggerFlush can queue several
// still-unflushed milestones in one pass; releasing only the flushed
// milestone's own slice — rather than Reset()'ing the whole diff — leaves
// a later, still-pending milestone's entries intact for Ledger.Get/
// currentRegistration to keep resolving correctly until its own flush.
func (l *Ledger) ReleaseFlushed(created map[Outpoint]*UTXOEntry, removed []Outpoint, registered map[daghash.Hash]Outpoint) {
	for out := range created {
		delete(l.diff.Created, out)
	}
	for _, out := range removed {
		delete(l.diff.Spent, out)
	}
	for acct, out := range registered {
		if cur, ok := l.registrations[acct]; ok && cur == out {
			delete(l.registrations, acct)
		}
	}
}

// Clone returns a new ledger over the same source with the given diff and
// registration overlay, the building block both Chain.fork and clone use
// to hand a branch an independent copy of its mutable state.
func (l *Ledger) Clone(diff *UTXODiff, registrations map[daghash.Hash]Outpoint) *Ledger {
	return &Ledger{source: l.source, diff: diff, registrations: registrations}
}

// clone deep-copies this ledger's diff and registration overlay via
// mitchellh/copystructure, returning an independent Ledger over the same
// source. Chain.fork uses this to give a forked branch its own mutable
// state; Chain.Verify uses it to apply a candidate level-set against a
// scratch copy, committing it back onto the chain only on success (spec.md
// §4.3 "Failure behavior").
func (l *Ledger) clone() (*Ledger, error) {
	diffAny, err := copystructure.Copy(l.diff)
	if err != nil {
		return nil, err
	}
	clonedDiff, ok := diffAny.(*UTXODiff)
	if !ok {
		clonedDiff = NewUTXODiff()
	}

	regAny, err := copystructure.Copy(l.registrations)
	if err != nil {
		return nil, err
	}
	clonedReg, ok := regAny.(map[daghash.Hash]Outpoint)
	if !ok {
		clonedReg = map[daghash.Hash]Outpoint{}
	}

	return l.Clone(clonedDiff, clonedReg), nil
}
