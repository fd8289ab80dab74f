package events

import (
	"math/big"

	"claimdrop/core/types"
)

const (
	TypeStakeCreated = "staking.stake.created"
	TypeStakeClaimed = "staking.stake.claimed"
)

type StakeCreated struct {
	Vault    [20]byte
	StakeID  uint64
	Staker   [20]byte
	Funder   [20]byte
	Amount   *big.Int
	Duration uint64
	Start    uint64
}

func (StakeCreated) EventType() string { return TypeStakeCreated }

func (e StakeCreated) Event() *types.Event {
	return &types.Event{
		Type: TypeStakeCreated,
		Attributes: map[string]string{
			"vault":    displayAddress(e.Vault),
			"stakeId":  uintToString(e.StakeID),
			"staker":   displayAddress(e.Staker),
			"funder":   displayAddress(e.Funder),
			"amount":   formatAmount(e.Amount),
			"duration": uintToString(e.Duration),
			"start":    uintToString(e.Start),
		},
	}
}

type StakeClaimed struct {
	Vault   [20]byte
	StakeID uint64
	Staker  [20]byte
	Amount  *big.Int
}

func (StakeClaimed) EventType() string { return TypeStakeClaimed }

func (e StakeClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypeStakeClaimed,
		Attributes: map[string]string{
			"vault":   displayAddress(e.Vault),
			"stakeId": uintToString(e.StakeID),
			"staker":  displayAddress(e.Staker),
			"amount":  formatAmount(e.Amount),
		},
	}
}
