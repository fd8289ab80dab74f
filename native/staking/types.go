package staking

import (
	"fmt"
	"math/big"
	"strings"
)

// Mode selects how a stake vests over its lockup duration.
type Mode uint8

const (
	// ModeLinear releases the stake pro rata over the duration.
	ModeLinear Mode = iota
	// ModeTimelock releases the whole stake once the duration has elapsed.
	ModeTimelock
)

func (m Mode) String() string {
	switch m {
	case ModeLinear:
		return "linear"
	case ModeTimelock:
		return "timelock"
	default:
		return "unknown"
	}
}

// ParseMode decodes a vesting mode name.
func ParseMode(value string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "linear":
		return ModeLinear, nil
	case "timelock", "cliff":
		return ModeTimelock, nil
	default:
		return ModeLinear, fmt.Errorf("staking: unknown vesting mode %q", value)
	}
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(data []byte) error {
	parsed, err := ParseMode(string(data))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Stake is one locked position.
type Stake struct {
	ID       uint64
	Owner    [20]byte
	Funder   [20]byte
	Amount   *big.Int
	Claimed  *big.Int
	Start    uint64
	Duration uint64
}

func (s *Stake) Clone() *Stake {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Amount = cloneInt(s.Amount)
	clone.Claimed = cloneInt(s.Claimed)
	return &clone
}

// Vested returns how much of the stake has unlocked at now.
func (s *Stake) Vested(mode Mode, now uint64) *big.Int {
	amount := cloneInt(s.Amount)
	if amount.Sign() == 0 || s.Duration == 0 || now >= s.Start+s.Duration {
		return amount
	}
	if now <= s.Start {
		return big.NewInt(0)
	}
	if mode == ModeTimelock {
		return big.NewInt(0)
	}
	elapsed := new(big.Int).SetUint64(now - s.Start)
	vested := amount.Mul(amount, elapsed)
	return vested.Quo(vested, new(big.Int).SetUint64(s.Duration))
}

// Claimable returns the vested but unclaimed portion at now.
func (s *Stake) Claimable(mode Mode, now uint64) *big.Int {
	claimable := s.Vested(mode, now)
	claimable.Sub(claimable, cloneInt(s.Claimed))
	if claimable.Sign() < 0 {
		return big.NewInt(0)
	}
	return claimable
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
