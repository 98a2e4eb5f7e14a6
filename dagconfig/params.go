// Package dagconfig carries the handful of network-wide constants the
// three-parent milestone model needs at genesis, replacing the teacher's
// much larger GHOSTDAG-era params.go (K, MergeSetSizeLimit, mass limits,
// etc. — none of which apply to this model).
package dagconfig

import (
	"time"

	"github.com/mstonedag/node/dag"
)

// Params is a named network's genesis and starting difficulty.
type Params struct {
	Name string

	GenesisBlock *dag.Block

	// PowMaxBits is the loosest starting target for ordinary blocks;
	// MilestoneMaxBits is the (necessarily stricter) starting target for
	// milestone candidates.
	PowMaxBits       uint32
	MilestoneMaxBits uint32

	TargetMilestoneSpacing time.Duration
}

// MainnetParams is the production network.
var MainnetParams = Params{
	Name:                   "mainnet",
	GenesisBlock:           genesisBlock(),
	PowMaxBits:             0x1d00ffff,
	MilestoneMaxBits:       0x1b00ffff,
	TargetMilestoneSpacing: 10 * time.Minute,
}

// TestnetParams relaxes the starting targets for a fast-iterating test
// network.
var TestnetParams = Params{
	Name:                   "testnet",
	GenesisBlock:           genesisBlock(),
	PowMaxBits:             0x1e0fffff,
	MilestoneMaxBits:       0x1e00ffff,
	TargetMilestoneSpacing: 1 * time.Minute,
}

// SimnetParams is for local, deterministic single-node simulation.
var SimnetParams = Params{
	Name:                   "simnet",
	GenesisBlock:           genesisBlock(),
	PowMaxBits:             0x207fffff,
	MilestoneMaxBits:       0x207fffff,
	TargetMilestoneSpacing: 1 * time.Second,
}

// genesisBlock returns the sole parent-less terminator (spec.md §3, I2):
// all three parent hashes are the zero hash.
func genesisBlock() *dag.Block {
	return &dag.Block{
		Version:   1,
		Timestamp: time.Unix(1700000000, 0),
		Bits:      0x1d00ffff,
	}
}
