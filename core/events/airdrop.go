package events

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"claimdrop/core/types"
)

const (
	TypeAirdropInitialized           = "airdrop.initialized"
	TypeAirdropClaimSettled          = "airdrop.claim.settled"
	TypeAirdropNonceCancelled        = "airdrop.nonce.cancelled"
	TypeAirdropMultiplierUpdated     = "airdrop.multiplier.updated"
	TypeAirdropEnded                 = "airdrop.ended"
	TypeAirdropPaused                = "airdrop.paused"
	TypeAirdropUnpaused              = "airdrop.unpaused"
	TypeAirdropOwnershipTransferred  = "airdrop.ownership.transferred"
	TypeAirdropPartnerOverflowUpdate = "airdrop.fees.partner_overflow.updated"
	TypeAirdropProtocolWithdrawn     = "airdrop.protocol.withdrawn"
)

type AirdropInitialized struct {
	Instance   [20]byte
	Admin      [20]byte
	Root       [32]byte
	Asset      string
	Staking    [20]byte
	Multiplier uint64
	MaxBonus   *big.Int
}

func (AirdropInitialized) EventType() string { return TypeAirdropInitialized }

func (e AirdropInitialized) Event() *types.Event {
	attrs := map[string]string{
		"instance":   displayAddress(e.Instance),
		"admin":      displayAddress(e.Admin),
		"root":       hex.EncodeToString(e.Root[:]),
		"asset":      normalizeAsset(e.Asset),
		"multiplier": uintToString(e.Multiplier),
		"maxBonus":   formatAmount(e.MaxBonus),
	}
	if staking := displayAddress(e.Staking); staking != "" {
		attrs["staking"] = staking
	}
	return &types.Event{Type: TypeAirdropInitialized, Attributes: attrs}
}

// AirdropClaimSettled is the settlement record of a successful claim.
type AirdropClaimSettled struct {
	Instance          [20]byte
	Beneficiary       [20]byte
	Caller            [20]byte
	OptionID          uint64
	Nonce             [32]byte
	TotalAllocation   *big.Int
	AmountClaimed     *big.Int
	AmountStaked      *big.Int
	Bonus             *big.Int
	ProtocolShare     *big.Int
	Multiplier        uint64
	PercentageToClaim uint64
	PercentageToStake uint64
	LockupPeriod      uint64
	FeeReceiver       [20]byte
	FeePaid           *big.Int
	FeeUsdCents       uint64
	FeePostCap        bool
	OverflowMode      string
}

func (AirdropClaimSettled) EventType() string { return TypeAirdropClaimSettled }

func (e AirdropClaimSettled) Event() *types.Event {
	attrs := map[string]string{
		"instance":          displayAddress(e.Instance),
		"beneficiary":       displayAddress(e.Beneficiary),
		"caller":            displayAddress(e.Caller),
		"optionId":          uintToString(e.OptionID),
		"nonce":             hex.EncodeToString(e.Nonce[:]),
		"totalAllocation":   formatAmount(e.TotalAllocation),
		"amountClaimed":     formatAmount(e.AmountClaimed),
		"amountStaked":      formatAmount(e.AmountStaked),
		"bonus":             formatAmount(e.Bonus),
		"protocolShare":     formatAmount(e.ProtocolShare),
		"multiplier":        uintToString(e.Multiplier),
		"percentageToClaim": uintToString(e.PercentageToClaim),
		"percentageToStake": uintToString(e.PercentageToStake),
		"lockupPeriod":      uintToString(e.LockupPeriod),
		"feePaid":           formatAmount(e.FeePaid),
		"feeUsdCents":       uintToString(e.FeeUsdCents),
		"feePostCap":        strconv.FormatBool(e.FeePostCap),
		"overflowMode":      e.OverflowMode,
	}
	if receiver := displayAddress(e.FeeReceiver); receiver != "" {
		attrs["feeReceiver"] = receiver
	}
	return &types.Event{Type: TypeAirdropClaimSettled, Attributes: attrs}
}

type AirdropNonceCancelled struct {
	Instance    [20]byte
	Beneficiary [20]byte
	Nonce       [32]byte
}

func (AirdropNonceCancelled) EventType() string { return TypeAirdropNonceCancelled }

func (e AirdropNonceCancelled) Event() *types.Event {
	return &types.Event{
		Type: TypeAirdropNonceCancelled,
		Attributes: map[string]string{
			"instance":    displayAddress(e.Instance),
			"beneficiary": displayAddress(e.Beneficiary),
			"nonce":       hex.EncodeToString(e.Nonce[:]),
		},
	}
}

type AirdropMultiplierUpdated struct {
	Instance [20]byte
	Previous uint64
	Next     uint64
}

func (AirdropMultiplierUpdated) EventType() string { return TypeAirdropMultiplierUpdated }

func (e AirdropMultiplierUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeAirdropMultiplierUpdated,
		Attributes: map[string]string{
			"instance": displayAddress(e.Instance),
			"previous": uintToString(e.Previous),
			"next":     uintToString(e.Next),
		},
	}
}

type AirdropEnded struct {
	Instance  [20]byte
	Recipient [20]byte
	Swept     *big.Int
	Retained  *big.Int
}

func (AirdropEnded) EventType() string { return TypeAirdropEnded }

func (e AirdropEnded) Event() *types.Event {
	return &types.Event{
		Type: TypeAirdropEnded,
		Attributes: map[string]string{
			"instance":  displayAddress(e.Instance),
			"recipient": displayAddress(e.Recipient),
			"swept":     formatAmount(e.Swept),
			"retained":  formatAmount(e.Retained),
		},
	}
}

// AirdropPauseToggled reports a pause or unpause of the claim path.
type AirdropPauseToggled struct {
	Instance [20]byte
	Admin    [20]byte
	Paused   bool
}

func (e AirdropPauseToggled) EventType() string {
	if e.Paused {
		return TypeAirdropPaused
	}
	return TypeAirdropUnpaused
}

func (e AirdropPauseToggled) Event() *types.Event {
	return &types.Event{
		Type: e.EventType(),
		Attributes: map[string]string{
			"instance": displayAddress(e.Instance),
			"admin":    displayAddress(e.Admin),
		},
	}
}

type AirdropOwnershipTransferred struct {
	Instance [20]byte
	Previous [20]byte
	Next     [20]byte
}

func (AirdropOwnershipTransferred) EventType() string { return TypeAirdropOwnershipTransferred }

func (e AirdropOwnershipTransferred) Event() *types.Event {
	return &types.Event{
		Type: TypeAirdropOwnershipTransferred,
		Attributes: map[string]string{
			"instance": displayAddress(e.Instance),
			"previous": displayAddress(e.Previous),
			"next":     displayAddress(e.Next),
		},
	}
}

type AirdropPartnerOverflowUpdated struct {
	Instance [20]byte
	Previous [20]byte
	Next     [20]byte
}

func (AirdropPartnerOverflowUpdated) EventType() string { return TypeAirdropPartnerOverflowUpdate }

func (e AirdropPartnerOverflowUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeAirdropPartnerOverflowUpdate,
		Attributes: map[string]string{
			"instance": displayAddress(e.Instance),
			"previous": displayAddress(e.Previous),
			"next":     displayAddress(e.Next),
		},
	}
}

type AirdropProtocolWithdrawn struct {
	Instance  [20]byte
	Caller    [20]byte
	Recipient [20]byte
	Amount    *big.Int
	Remaining *big.Int
}

func (AirdropProtocolWithdrawn) EventType() string { return TypeAirdropProtocolWithdrawn }

func (e AirdropProtocolWithdrawn) Event() *types.Event {
	return &types.Event{
		Type: TypeAirdropProtocolWithdrawn,
		Attributes: map[string]string{
			"instance":  displayAddress(e.Instance),
			"caller":    displayAddress(e.Caller),
			"recipient": displayAddress(e.Recipient),
			"amount":    formatAmount(e.Amount),
			"remaining": formatAmount(e.Remaining),
		},
	}
}
