package airdrop

import "math/big"

// Bonus returns min(maxBonus, staked * multiplier / 10000). No bonus is paid
// without a multiplier, without a staked portion, or when the lockup is
// shorter than minLockupForMultiplier.
func Bonus(staked *big.Int, multiplier, lockup, minLockupForMultiplier uint64, maxBonus *big.Int) *big.Int {
	if multiplier == 0 || staked == nil || staked.Sign() <= 0 || lockup < minLockupForMultiplier {
		return big.NewInt(0)
	}
	bonus := new(big.Int).Mul(staked, new(big.Int).SetUint64(multiplier))
	bonus.Quo(bonus, big.NewInt(MaxBips))
	if maxBonus != nil && bonus.Cmp(maxBonus) > 0 {
		bonus.Set(maxBonus)
	}
	if bonus.Sign() < 0 {
		return big.NewInt(0)
	}
	return bonus
}

// ProtocolShare returns ceil(distributed * bips / 10000).
func ProtocolShare(distributed *big.Int, bips uint64) *big.Int {
	if bips == 0 || distributed == nil || distributed.Sign() <= 0 {
		return big.NewInt(0)
	}
	share := new(big.Int).Mul(distributed, new(big.Int).SetUint64(bips))
	share.Add(share, big.NewInt(MaxBips-1))
	return share.Quo(share, big.NewInt(MaxBips))
}

// splitAllocation returns the claimed and staked portions of allocation. The
// claimed portion is rounded down and the staked portion takes the remainder
// of the consumed amount, so claimed + staked always equals consumed.
func splitAllocation(allocation *big.Int, opts ClaimOptions) (consumed, claimed, staked *big.Int) {
	denominator := big.NewInt(MaxBips)
	consumed = new(big.Int).Mul(allocation, new(big.Int).SetUint64(opts.PercentageToClaim+opts.PercentageToStake))
	consumed.Quo(consumed, denominator)
	claimed = new(big.Int).Mul(allocation, new(big.Int).SetUint64(opts.PercentageToClaim))
	claimed.Quo(claimed, denominator)
	staked = new(big.Int).Sub(consumed, claimed)
	return consumed, claimed, staked
}
