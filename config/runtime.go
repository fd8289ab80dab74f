package config

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"claimdrop/crypto"
	"claimdrop/native/airdrop"
	"claimdrop/native/fees"
	"claimdrop/native/staking"
)

// GenesisBalance is a parsed [[genesis]] entry.
type GenesisBalance struct {
	Address [20]byte
	Asset   string
	Amount  *big.Int
}

func parseAddress(field, value string, required bool) ([20]byte, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		if required {
			return [20]byte{}, fmt.Errorf("%s is required", field)
		}
		return [20]byte{}, nil
	}
	addr, err := crypto.ParseAddress(trimmed)
	if err != nil {
		return [20]byte{}, fmt.Errorf("invalid %s: %w", field, err)
	}
	return addr, nil
}

func parseAddresses(field string, values []string) ([][20]byte, error) {
	out := make([][20]byte, 0, len(values))
	for i, value := range values {
		addr, err := parseAddress(fmt.Sprintf("%s[%d]", field, i), value, true)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

// parseUintAmount parses a base-10 non-negative integer. Empty input is zero.
func parseUintAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return amount, nil
}

// InstanceAddress returns the ledger address of the hosted instance.
func (c *Config) InstanceAddress() ([20]byte, error) {
	return parseAddress("instance.Address", c.Instance.Address, true)
}

// DeployerAddress returns the deploying authority of the hosted instance.
func (c *Config) DeployerAddress() ([20]byte, error) {
	return parseAddress("instance.Deployer", c.Instance.Deployer, true)
}

// Root returns the configured allocation root. ok is false when the root is
// to be derived from AllocationsFile instead.
func (c *Config) Root() (root [32]byte, ok bool, err error) {
	trimmed := strings.TrimSpace(c.Instance.Root)
	if trimmed == "" {
		return root, false, nil
	}
	raw, err := hexutil.Decode(trimmed)
	if err != nil {
		return root, false, fmt.Errorf("invalid instance.Root: %w", err)
	}
	if len(raw) != 32 {
		return root, false, fmt.Errorf("invalid instance.Root: want 32 bytes, got %d", len(raw))
	}
	copy(root[:], raw)
	return root, true, nil
}

// StakingAddress returns the staking vault address, zero when staking is
// disabled.
func (c *Config) StakingAddress() ([20]byte, error) {
	return parseAddress("staking.Address", c.Staking.Address, false)
}

// StakingMode parses the vault vesting mode.
func (c *Config) StakingMode() (staking.Mode, error) {
	mode, err := staking.ParseMode(c.Staking.Mode)
	if err != nil {
		return 0, fmt.Errorf("invalid staking.Mode: %w", err)
	}
	return mode, nil
}

// InitParams assembles the initialization parameters for root.
func (c *Config) InitParams(root [32]byte) (airdrop.InitParams, error) {
	admin, err := parseAddress("instance.Admin", c.Instance.Admin, true)
	if err != nil {
		return airdrop.InitParams{}, err
	}
	stakingAddr, err := c.StakingAddress()
	if err != nil {
		return airdrop.InitParams{}, err
	}
	maxBonus, err := parseUintAmount(c.Instance.MaxBonus)
	if err != nil {
		return airdrop.InitParams{}, fmt.Errorf("invalid instance.MaxBonus: %w", err)
	}
	return airdrop.InitParams{
		Admin:                          admin,
		Root:                           root,
		Asset:                          c.Instance.Asset,
		Staking:                        stakingAddr,
		MaxBonus:                       maxBonus,
		MinLockupDuration:              c.Instance.MinLockupDuration,
		MinLockupDurationForMultiplier: c.Instance.MinLockupDurationForMultiplier,
		Multiplier:                     c.Instance.Multiplier,
	}, nil
}

// FeeConfig parses the [fees] section.
func (c *Config) FeeConfig() (airdrop.InitFeeConfig, error) {
	var (
		out airdrop.InitFeeConfig
		err error
	)
	if out.PriceFeed, err = parseAddress("fees.PriceFeed", c.Fees.PriceFeed, false); err != nil {
		return out, err
	}
	if out.ProtocolTreasury, err = parseAddress("fees.ProtocolTreasury", c.Fees.ProtocolTreasury, false); err != nil {
		return out, err
	}
	if out.ProtocolOverflow, err = parseAddress("fees.ProtocolOverflow", c.Fees.ProtocolOverflow, false); err != nil {
		return out, err
	}
	if out.PartnerOverflow, err = parseAddress("fees.PartnerOverflow", c.Fees.PartnerOverflow, false); err != nil {
		return out, err
	}
	mode, err := fees.ParseOverflowMode(c.Fees.OverflowMode)
	if err != nil {
		return out, fmt.Errorf("invalid fees.OverflowMode: %w", err)
	}
	out.OverflowMode = mode
	out.MaxPriceAge = c.Fees.MaxPriceAge
	out.FeeClaimUsdCents = c.Fees.FeeClaimUsdCents
	out.FeeStakeUsdCents = c.Fees.FeeStakeUsdCents
	out.FeeCapUsdCents = c.Fees.FeeCapUsdCents
	out.ProtocolTokenShareBips = c.Fees.ProtocolTokenShareBips
	return out, nil
}

// OracleOperators returns the accounts allowed to publish prices.
func (c *Config) OracleOperators() ([][20]byte, error) {
	return parseAddresses("oracle.Operators", c.Oracle.Operators)
}

// OracleInitialAnswer returns the price published at boot, nil when unset.
func (c *Config) OracleInitialAnswer() (*big.Int, error) {
	if strings.TrimSpace(c.Oracle.InitialAnswer) == "" {
		return nil, nil
	}
	answer, err := parseUintAmount(c.Oracle.InitialAnswer)
	if err != nil {
		return nil, fmt.Errorf("invalid oracle.InitialAnswer: %w", err)
	}
	if answer.Sign() == 0 {
		return nil, fmt.Errorf("invalid oracle.InitialAnswer: must be positive")
	}
	return answer, nil
}

// ProtocolAdminAddresses returns the accounts granted RoleProtocolAdmin.
func (c *Config) ProtocolAdminAddresses() ([][20]byte, error) {
	return parseAddresses("ProtocolAdmins", c.ProtocolAdmins)
}

// GenesisBalances parses the [[genesis]] entries.
func (c *Config) GenesisBalances() ([]GenesisBalance, error) {
	out := make([]GenesisBalance, 0, len(c.Genesis))
	for i, entry := range c.Genesis {
		field := fmt.Sprintf("genesis[%d]", i)
		addr, err := parseAddress(field+".Address", entry.Address, true)
		if err != nil {
			return nil, err
		}
		amount, err := parseUintAmount(entry.Amount)
		if err != nil {
			return nil, fmt.Errorf("invalid %s.Amount: %w", field, err)
		}
		asset := strings.ToUpper(strings.TrimSpace(entry.Asset))
		if asset == "" {
			return nil, fmt.Errorf("%s.Asset is required", field)
		}
		out = append(out, GenesisBalance{Address: addr, Asset: asset, Amount: amount})
	}
	return out, nil
}
