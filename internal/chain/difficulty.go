package chain

import "math/big"

const (
	// RetargetWindow is the number of recent blocks difficulty is
	// recomputed over.
	RetargetWindow = 10
	// MaxAdjustmentFactor bounds how far a single retarget may move the
	// target in either direction, the same "clamp the swing" idiom
	// proof-of-work chains use to prevent a burst of fast or slow blocks
	// from producing a runaway difficulty.
	MaxAdjustmentFactor = 4
)

// InitialDifficulty is the genesis target, used when no parent chain
// exists yet and offline candidate generation is permitted.
func InitialDifficulty() *big.Int {
	// 2^236 leaves roughly 20 bits of work per block at genesis, loose
	// enough for a freshly bootstrapped chain or a test network.
	return new(big.Int).Lsh(big.NewInt(1), 236)
}

// RequiredDifficultyAfter computes the next target given the difficulty
// and timestamps of the last RetargetWindow blocks (oldest first,
// blockTimestamps[len-1] being the immediate parent) and the protocol's
// target block interval in seconds. With fewer than two samples it simply
// returns the parent's difficulty unchanged. Both AppendHeader's
// acceptance check and Coordinator.Assemble call this against the same
// window so a header is only ever accepted at the target its own miner
// would have computed.
func RequiredDifficultyAfter(parentDifficulty *big.Int, blockTimestamps []int64, targetBlockTime int64) *big.Int {
	if len(blockTimestamps) < 2 || targetBlockTime <= 0 {
		return new(big.Int).Set(parentDifficulty)
	}

	actualSpan := blockTimestamps[len(blockTimestamps)-1] - blockTimestamps[0]
	expectedSpan := targetBlockTime * int64(len(blockTimestamps)-1)
	if actualSpan <= 0 {
		actualSpan = 1
	}

	next := new(big.Int).Mul(parentDifficulty, big.NewInt(actualSpan))
	next.Div(next, big.NewInt(expectedSpan))

	return clampDifficulty(next, parentDifficulty)
}

// clampDifficulty restricts next to within a MaxAdjustmentFactor swing of
// previous, in either direction.
func clampDifficulty(next, previous *big.Int) *big.Int {
	upper := new(big.Int).Mul(previous, big.NewInt(MaxAdjustmentFactor))
	lower := new(big.Int).Div(previous, big.NewInt(MaxAdjustmentFactor))
	if lower.Sign() == 0 {
		lower = big.NewInt(1)
	}

	if next.Cmp(upper) > 0 {
		return upper
	}
	if next.Cmp(lower) < 0 {
		return lower
	}
	return next
}
