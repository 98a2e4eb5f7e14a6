package dag

import (
	"github.com/mstonedag/node/util"
	"github.com/mstonedag/node/util/daghash"
)

// Outpoint references one output of a previous transaction.
type Outpoint struct {
	TxID  daghash.Hash
	Index uint32
}

// TxOutput is a spendable output.
type TxOutput struct {
	Value  util.Amount
	Script []byte
}

// TxInput spends a previous output.
type TxInput struct {
	PreviousOutpoint Outpoint
	SignatureScript  []byte
}

// RegistrationOp describes the redemption mechanics a block's special
// transaction may carry (spec.md §4.3 "Redemption"): an account rotates its
// single unspent registration output by spending the old one and minting a
// new one in the same transaction.
type RegistrationOp struct {
	Account daghash.Hash
	// Spends is the previously-registered outpoint being redeemed. Zero
	// value means this is a first registration (nothing to redeem).
	Spends Outpoint
	// NewOutput is the freshly minted registration output.
	NewOutput Outpoint
}

// Transaction is the minimal in-memory shape the ledger needs. Script
// execution semantics are delegated to the Chain collaborator per spec.md
// §1 Non-goals; this engine only needs inputs/outputs/registration intent
// to maintain the UTXO set and the redemption invariant.
type Transaction struct {
	ID Outpoint `json:"-"`

	Inputs  []TxInput
	Outputs []TxOutput

	// Registration is non-nil when this transaction performs a
	// registration or redemption (spec.md §4.3).
	Registration *RegistrationOp

	// Fee is the amount this transaction pays the sealing milestone's
	// miner, already netted (out of scope: fee computation from
	// input/output sums belongs to the Chain collaborator — this engine
	// only needs the final figure to compute cumulativeReward).
	Fee util.Amount
}

// Hash returns the transaction's own identifying outpoint's hash (ID.TxID).
func (tx *Transaction) Hash() daghash.Hash {
	return tx.ID.TxID
}
