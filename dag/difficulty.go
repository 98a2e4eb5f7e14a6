package dag

import (
	"math/big"

	"github.com/mstonedag/node/util/daghash"
)

// hashRateAlpha is the smoothing factor for the hashRate EMA (SPEC_FULL.md
// supplemented feature #2): a fresh inter-milestone gap moves the estimate
// by this fraction rather than replacing it outright, damping target
// oscillation under bursty miner arrival.
const hashRateAlpha = 0.2

// hashRateDistanceUnit scales a milestone snapshot's HashRate EMA into
// extra required miner-chain confirmations for the valid-distance bound
// (isValidDistance): every hashRateDistanceUnit hashes/sec of sustained
// network rate demands one more hop down the miner-chain than
// sortitionThreshold alone requires. original_source/test/core/
// test_chain_verification.cpp exercises a block that clears
// sortitionThreshold on minerChainHeight alone yet is still rejected once
// hash rate climbs — the formula's shape is grounded there, but its
// implementation file was not present in the retrieved pack, so this
// constant is an invented, documented choice (DESIGN.md open question),
// not a recovered one.
const hashRateDistanceUnit = 1e6

// isValidDistance enforces spec.md §4.3's "Valid distance" sub-protocol: a
// block carrying transactions must have climbed far enough down its own
// miner-chain, where "far enough" grows with the referenced milestone's
// hash rate so a fast network can't let a shallow miner-chain rush
// transactions through.
func isValidDistance(minerChainHeight, sortitionThreshold uint64, msHashRate float64) bool {
	required := sortitionThreshold
	if bonus := uint64(msHashRate / hashRateDistanceUnit); bonus > 0 {
		required += bonus
	}
	return minerChainHeight >= required
}

// CompactToBig converts a compact representation (the "Bits" target
// encoding used throughout bitcoin-derived DAGs) to a big.Int, grounded on
// the teacher's blockdag/difficulty.go CompactToBig.
func CompactToBig(compact uint32) *big.Int {
	mantissa := compact & 0x007fffff
	exponent := uint(compact >> 24)

	var bn *big.Int
	if exponent <= 3 {
		mantissa >>= 8 * (3 - exponent)
		bn = big.NewInt(int64(mantissa))
	} else {
		bn = big.NewInt(int64(mantissa))
		bn.Lsh(bn, 8*(exponent-3))
	}

	if compact&0x00800000 != 0 {
		bn = bn.Neg(bn)
	}
	return bn
}

// BigToCompact converts a big.Int target into its compact representation.
func BigToCompact(n *big.Int) uint32 {
	if n.Sign() == 0 {
		return 0
	}

	var mantissa uint32
	exponent := uint(len(n.Bytes()))
	if exponent <= 3 {
		mantissa = uint32(n.Bits()[0])
		mantissa <<= 8 * (3 - exponent)
	} else {
		tn := new(big.Int).Set(n)
		mantissa = uint32(tn.Rsh(tn, 8*(exponent-3)).Bits()[0])
	}

	if mantissa&0x00800000 != 0 {
		mantissa >>= 8
		exponent++
	}

	compact := uint32(exponent<<24) | mantissa
	if n.Sign() < 0 {
		compact |= 0x00800000
	}
	return compact
}

func hashToBigEndianUint(hash daghash.Hash) *big.Int {
	return new(big.Int).SetBytes(hash[:])
}

// calcWork returns the amount of work represented by a compact difficulty
// target, the quantity accumulated into a chain's chainwork.
func calcWork(bits uint32) *big.Int {
	target := CompactToBig(bits)
	if target.Sign() <= 0 {
		return big.NewInt(0)
	}
	// work = 2^256 / (target+1)
	denom := new(big.Int).Add(target, big.NewInt(1))
	oneLsh256 := new(big.Int).Lsh(big.NewInt(1), 256)
	return new(big.Int).Div(oneLsh256, denom)
}

// nextHashRate folds one new inter-milestone gap (in seconds) into the
// previous EMA (SPEC_FULL.md supplemented feature #2).
func nextHashRate(prevHashRate float64, target *big.Int, gapSeconds float64) float64 {
	if gapSeconds <= 0 {
		gapSeconds = 1
	}
	// instantaneous estimate: expected hashes needed to find one block at
	// this target, divided by the observed time to find it.
	difficulty := new(big.Int).Div(new(big.Int).Lsh(big.NewInt(1), 256), target)
	instant := new(big.Float).SetInt(difficulty)
	instant.Quo(instant, big.NewFloat(gapSeconds))
	instantF, _ := instant.Float64()

	if prevHashRate == 0 {
		return instantF
	}
	return prevHashRate*(1-hashRateAlpha) + instantF*hashRateAlpha
}
