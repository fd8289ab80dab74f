package airdrop

import (
	"math/big"
	"strings"

	"claimdrop/core/events"
	"claimdrop/native/fees"
)

const (
	// MaxBips is the basis point denominator used by percentages, the
	// multiplier and the protocol token share.
	MaxBips = 10_000

	// RoleProtocolAdmin is the role the deploying authority's registry grants
	// to accounts allowed to withdraw accrued protocol tokens.
	RoleProtocolAdmin = "ROLE_PROTOCOL_ADMIN"
)

// InitParams fixes the distribution economics of an instance.
type InitParams struct {
	Admin                          [20]byte
	Root                           [32]byte
	Asset                          string
	Staking                        [20]byte
	MaxBonus                       *big.Int
	MinLockupDuration              uint64
	MinLockupDurationForMultiplier uint64
	Multiplier                     uint64
}

// InitFeeConfig is the fee schedule supplied at initialization.
type InitFeeConfig struct {
	PriceFeed              [20]byte
	MaxPriceAge            uint64
	ProtocolTreasury       [20]byte
	ProtocolOverflow       [20]byte
	PartnerOverflow        [20]byte
	FeeClaimUsdCents       uint64
	FeeStakeUsdCents       uint64
	FeeCapUsdCents         uint64
	OverflowMode           fees.OverflowMode
	ProtocolTokenShareBips uint64
}

// Validate checks the schedule with the same rules Initialize applies.
func (c InitFeeConfig) Validate() error {
	cfg := c.config()
	return cfg.Validate()
}

func (c InitFeeConfig) config() fees.Config {
	return fees.Config{
		PriceFeed:              c.PriceFeed,
		MaxPriceAge:            c.MaxPriceAge,
		ProtocolTreasury:       c.ProtocolTreasury,
		ProtocolOverflow:       c.ProtocolOverflow,
		PartnerOverflow:        c.PartnerOverflow,
		FeeClaimUsdCents:       c.FeeClaimUsdCents,
		FeeStakeUsdCents:       c.FeeStakeUsdCents,
		FeeCapUsdCents:         c.FeeCapUsdCents,
		OverflowMode:           c.OverflowMode,
		ProtocolTokenShareBips: c.ProtocolTokenShareBips,
	}
}

// Instance is the persisted aggregate of one airdrop: its immutable economics,
// lifecycle flags, running totals and fee configuration. All cross-field
// invariants are maintained by the engine in a single atomic unit.
type Instance struct {
	Address                        [20]byte
	Deployer                       [20]byte
	Admin                          [20]byte
	Root                           [32]byte
	Asset                          string
	Staking                        [20]byte
	Multiplier                     uint64
	MaxBonus                       *big.Int
	MinLockupDuration              uint64
	MinLockupDurationForMultiplier uint64
	Active                         bool
	Paused                         bool
	TotalClaimed                   *big.Int
	TotalStaked                    *big.Int
	TotalBonusTokens               *big.Int
	ProtocolAccruedTokens          *big.Int
	Fees                           fees.Config
	InitializedAt                  uint64
}

// Clone returns a deep copy of the instance.
func (i *Instance) Clone() *Instance {
	if i == nil {
		return nil
	}
	clone := *i
	clone.MaxBonus = cloneAmount(i.MaxBonus)
	clone.TotalClaimed = cloneAmount(i.TotalClaimed)
	clone.TotalStaked = cloneAmount(i.TotalStaked)
	clone.TotalBonusTokens = cloneAmount(i.TotalBonusTokens)
	clone.ProtocolAccruedTokens = cloneAmount(i.ProtocolAccruedTokens)
	return &clone
}

// StakingEnabled reports whether a staking collaborator was configured.
func (i *Instance) StakingEnabled() bool {
	return i.Staking != ([20]byte{})
}

// ClaimOptions is the signed intent of a beneficiary.
type ClaimOptions struct {
	OptionID          uint64
	Multiplier        uint64
	PercentageToClaim uint64
	PercentageToStake uint64
	LockupPeriod      uint64
}

// StakeSelected reports whether any portion of the allocation is staked.
func (o ClaimOptions) StakeSelected() bool {
	return o.PercentageToStake > 0
}

// ClaimRequest bundles everything a relayer submits to settle a claim.
type ClaimRequest struct {
	Beneficiary     [20]byte
	TotalAllocation *big.Int
	Proof           [][32]byte
	Options         ClaimOptions
	Nonce           [32]byte
	Signature       []byte
}

// Settlement is the outcome of a successful claim.
type Settlement struct {
	Instance        [20]byte
	Beneficiary     [20]byte
	Caller          [20]byte
	Nonce           [32]byte
	Options         ClaimOptions
	TotalAllocation *big.Int
	AmountClaimed   *big.Int
	AmountStaked    *big.Int
	Bonus           *big.Int
	ProtocolShare   *big.Int
	StakeID         uint64
	FeePaid         *big.Int
	FeeRefund       *big.Int
	FeeReceiver     [20]byte
	FeeUsdCents     uint64
	FeePostCap      bool
	OverflowMode    fees.OverflowMode
	SettledAt       uint64
}

// Distributed returns claimed + staked + bonus.
func (s *Settlement) Distributed() *big.Int {
	total := cloneAmount(s.AmountClaimed)
	total.Add(total, cloneAmount(s.AmountStaked))
	return total.Add(total, cloneAmount(s.Bonus))
}

func (s *Settlement) event() events.AirdropClaimSettled {
	return events.AirdropClaimSettled{
		Instance:          s.Instance,
		Beneficiary:       s.Beneficiary,
		Caller:            s.Caller,
		OptionID:          s.Options.OptionID,
		Nonce:             s.Nonce,
		TotalAllocation:   cloneAmount(s.TotalAllocation),
		AmountClaimed:     cloneAmount(s.AmountClaimed),
		AmountStaked:      cloneAmount(s.AmountStaked),
		Bonus:             cloneAmount(s.Bonus),
		ProtocolShare:     cloneAmount(s.ProtocolShare),
		Multiplier:        s.Options.Multiplier,
		PercentageToClaim: s.Options.PercentageToClaim,
		PercentageToStake: s.Options.PercentageToStake,
		LockupPeriod:      s.Options.LockupPeriod,
		FeeReceiver:       s.FeeReceiver,
		FeePaid:           cloneAmount(s.FeePaid),
		FeeUsdCents:       s.FeeUsdCents,
		FeePostCap:        s.FeePostCap,
		OverflowMode:      s.OverflowMode.String(),
	}
}

func cloneAmount(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func normalizeAsset(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}
