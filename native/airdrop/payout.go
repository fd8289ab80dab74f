package airdrop

import (
	"fmt"
	"math/big"

	"claimdrop/native/fees"
)

// dispatch pays the immediate portion to the beneficiary and hands the staked
// portion plus bonus to the staking collaborator, which pulls the tokens
// through the allowance granted at initialization. A collaborator failure
// aborts the surrounding unit.
func (e *Engine) dispatch(inst *Instance, beneficiary [20]byte, claimed, toStake *big.Int, lockup uint64) (uint64, error) {
	if claimed.Sign() > 0 {
		if err := e.bank.Transfer(inst.Asset, e.address, beneficiary, claimed); err != nil {
			return 0, fmt.Errorf("airdrop: pay beneficiary: %w", err)
		}
	}
	if toStake.Sign() == 0 {
		return 0, nil
	}
	if e.staking == nil || !inst.StakingEnabled() {
		return 0, ErrStakingDisabled
	}
	stakeID, err := e.staking.StakeFor(e.address, beneficiary, toStake, lockup)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStakingFailed, err)
	}
	return stakeID, nil
}

// chargedUsd is the USD value actually charged by a collection.
func chargedUsd(receipt fees.Receipt) uint64 {
	if !receipt.Charged() {
		return 0
	}
	return receipt.UsdCents
}
