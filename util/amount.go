package util

import "strconv"

// AtomsPerUnit is the number of atomic reward units (atoms) in one whole
// coin. Named after the teacher's own SatoshiPerBitcoin convention, scaled
// for this engine's reward accounting.
const AtomsPerUnit = 1e8

// MaxAtoms is the maximum cumulative reward representable. CumulativeReward
// on a Vertex (spec.md §3) is not checked or clamped against it.
const MaxAtoms = 21_000_000 * AtomsPerUnit

// Amount represents a quantity of reward/fee atoms as an int64, mirroring
// the teacher's own SatoshiPerBitcoin-based Amount convention.
type Amount int64

// String formats the amount as atoms; a dedicated display unit is a
// wallet concern (out of scope, spec.md §1 Non-goals).
func (a Amount) String() string {
	return strconv.FormatInt(int64(a), 10)
}
