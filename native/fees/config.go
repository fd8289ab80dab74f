package fees

import (
	"fmt"
)

// MaxBips is the basis point denominator.
const MaxBips = 10_000

// Config is the per-instance fee configuration. Every field is fixed at
// initialization except PartnerOverflow, which the partner admin may rotate,
// and TotalFeeUsdCents, the running pre-cap collection counter.
type Config struct {
	PriceFeed              [20]byte
	MaxPriceAge            uint64
	ProtocolTreasury       [20]byte
	ProtocolOverflow       [20]byte
	PartnerOverflow        [20]byte
	FeeClaimUsdCents       uint64
	FeeStakeUsdCents       uint64
	FeeCapUsdCents         uint64
	TotalFeeUsdCents       uint64
	OverflowMode           OverflowMode
	ProtocolTokenShareBips uint64
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// FeesEnabled reports whether any per-claim fee is configured.
func (c *Config) FeesEnabled() bool {
	return c != nil && (c.FeeClaimUsdCents > 0 || c.FeeStakeUsdCents > 0)
}

// UsdCentsFor returns the fee for the requested action. Staking takes
// priority whenever any portion of the allocation is staked.
func (c *Config) UsdCentsFor(stakeSelected bool) uint64 {
	if c == nil {
		return 0
	}
	if stakeSelected {
		return c.FeeStakeUsdCents
	}
	return c.FeeClaimUsdCents
}

// RemainingUsdCents returns how much USD may still be collected before the
// cap. It is zero when no cap is configured or the cap is exhausted.
func (c *Config) RemainingUsdCents() uint64 {
	if c == nil || c.FeeCapUsdCents == 0 || c.TotalFeeUsdCents >= c.FeeCapUsdCents {
		return 0
	}
	return c.FeeCapUsdCents - c.TotalFeeUsdCents
}

// PostCap reports whether the cumulative cap has been reached. A zero cap
// never trips.
func (c *Config) PostCap() bool {
	return c != nil && c.FeeCapUsdCents > 0 && c.TotalFeeUsdCents >= c.FeeCapUsdCents
}

// OverflowReceiver returns the post-cap receiver for the configured mode.
func (c *Config) OverflowReceiver() [20]byte {
	switch c.OverflowMode {
	case OverflowRouteToPartner:
		return c.PartnerOverflow
	case OverflowRouteToProtocol:
		return c.ProtocolOverflow
	default:
		return [20]byte{}
	}
}

// Validate checks the static configuration.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	if !c.OverflowMode.Valid() {
		return fmt.Errorf("%w: overflow mode %d", ErrInvalidConfig, uint8(c.OverflowMode))
	}
	if c.ProtocolTokenShareBips > MaxBips {
		return fmt.Errorf("%w: protocol token share %d exceeds %d bips", ErrInvalidConfig, c.ProtocolTokenShareBips, MaxBips)
	}
	if c.TotalFeeUsdCents != 0 {
		return fmt.Errorf("%w: fee counter must start at zero", ErrInvalidConfig)
	}
	if !c.FeesEnabled() {
		return nil
	}
	if c.MaxPriceAge == 0 {
		return fmt.Errorf("%w: max price age required when fees are enabled", ErrInvalidConfig)
	}
	if c.ProtocolTreasury == ([20]byte{}) {
		return fmt.Errorf("%w: protocol treasury required when fees are enabled", ErrInvalidConfig)
	}
	if c.FeeCapUsdCents > 0 {
		switch c.OverflowMode {
		case OverflowRouteToPartner:
			if c.PartnerOverflow == ([20]byte{}) {
				return fmt.Errorf("%w: partner overflow receiver required", ErrInvalidConfig)
			}
		case OverflowRouteToProtocol:
			if c.ProtocolOverflow == ([20]byte{}) {
				return fmt.Errorf("%w: protocol overflow receiver required", ErrInvalidConfig)
			}
		}
	}
	return nil
}

// UpdatePartnerOverflow rotates the partner overflow receiver and returns the
// previous value. Authorization is the caller's responsibility.
func (c *Config) UpdatePartnerOverflow(next [20]byte) ([20]byte, error) {
	if next == ([20]byte{}) {
		return [20]byte{}, ErrZeroAddress
	}
	previous := c.PartnerOverflow
	c.PartnerOverflow = next
	return previous, nil
}
