package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the claimd configuration file.
type Config struct {
	ListenAddress  string   `toml:"ListenAddress"`
	DataDir        string   `toml:"DataDir"`
	StateBackend   string   `toml:"StateBackend"`
	Environment    string   `toml:"Environment"`
	ChainID        uint64   `toml:"ChainID"`
	ProtocolAdmins []string `toml:"ProtocolAdmins"`

	Instance    Instance    `toml:"instance"`
	Staking     Staking     `toml:"staking"`
	Fees        Fees        `toml:"fees"`
	Oracle      Oracle      `toml:"oracle"`
	Auth        Auth        `toml:"auth"`
	RateLimit   RateLimit   `toml:"rate_limit"`
	Settlements Settlements `toml:"settlements"`
	Logging     Logging     `toml:"logging"`
	Telemetry   Telemetry   `toml:"telemetry"`
	Genesis     []Balance   `toml:"genesis"`
}

// Load reads the configuration at path, applies defaults and validates it.
// A missing file is replaced by a default configuration written to path.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := &Config{}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s: unknown key %s", path, undecoded[0])
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used for a fresh data directory.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.ListenAddress) == "" {
		c.ListenAddress = ":8088"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./claimd-data"
	}
	if strings.TrimSpace(c.StateBackend) == "" {
		c.StateBackend = "leveldb"
	}
	if c.ChainID == 0 {
		c.ChainID = 1
	}
	if strings.TrimSpace(c.Instance.Asset) == "" {
		c.Instance.Asset = "DROP"
	}
	if strings.TrimSpace(c.Staking.Mode) == "" {
		c.Staking.Mode = "linear"
	}
	if strings.TrimSpace(c.Fees.OverflowMode) == "" {
		c.Fees.OverflowMode = "cancel"
	}
	if c.Oracle.Decimals == 0 {
		c.Oracle.Decimals = 8
	}
	if c.RateLimit.RequestsPerSecond == 0 {
		c.RateLimit.RequestsPerSecond = 20
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 40
	}
	if strings.TrimSpace(c.Settlements.DSN) == "" {
		c.Settlements.DSN = "sqlite://" + filepath.Join(c.DataDir, "settlements.db")
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
}

// createDefault writes a default configuration to path and returns it. The
// default leaves the instance unconfigured, so the daemon refuses to start
// until an operator fills in the [instance] section.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("config file %s created with defaults; configure [instance] and restart", path)
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// Secret resolves the signing secret, preferring the environment variable
// named by JWTSecretEnv.
func (a Auth) Secret() string {
	if env := strings.TrimSpace(a.JWTSecretEnv); env != "" {
		if value := strings.TrimSpace(os.Getenv(env)); value != "" {
			return value
		}
	}
	return strings.TrimSpace(a.JWTSecret)
}
