package config

import (
	"fmt"
	"strings"
)

// MinJWTSecretLength is the shortest HMAC secret accepted for write routes.
var MinJWTSecretLength = 16

// Validate checks that every section parses and is internally consistent.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddress) == "" {
		return fmt.Errorf("ListenAddress is required")
	}
	switch strings.ToLower(strings.TrimSpace(c.StateBackend)) {
	case "leveldb", "bolt":
	default:
		return fmt.Errorf("StateBackend must be leveldb or bolt, got %q", c.StateBackend)
	}
	if _, err := c.InstanceAddress(); err != nil {
		return err
	}
	if _, err := c.DeployerAddress(); err != nil {
		return err
	}
	_, hasRoot, err := c.Root()
	if err != nil {
		return err
	}
	if !hasRoot && strings.TrimSpace(c.Instance.AllocationsFile) == "" {
		return fmt.Errorf("instance: Root or AllocationsFile is required")
	}
	if _, err := c.InitParams([32]byte{}); err != nil {
		return err
	}
	if _, err := c.StakingMode(); err != nil {
		return err
	}
	feeCfg, err := c.FeeConfig()
	if err != nil {
		return err
	}
	if err := feeCfg.Validate(); err != nil {
		return fmt.Errorf("fees: %w", err)
	}
	if c.Oracle.Decimals > 18 {
		return fmt.Errorf("oracle: Decimals must be at most 18")
	}
	if _, err := c.OracleInitialAnswer(); err != nil {
		return err
	}
	if _, err := c.OracleOperators(); err != nil {
		return err
	}
	if _, err := c.ProtocolAdminAddresses(); err != nil {
		return err
	}
	if _, err := c.GenesisBalances(); err != nil {
		return err
	}
	if len(c.Auth.Secret()) < MinJWTSecretLength {
		return fmt.Errorf("auth: JWT secret must be at least %d characters", MinJWTSecretLength)
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit: values must not be negative")
	}
	return nil
}
