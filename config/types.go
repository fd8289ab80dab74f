package config

// Instance describes the airdrop instance the daemon hosts. Address and
// Deployer identify the ledger; the remaining fields seed Initialize on first
// boot.
type Instance struct {
	Address                        string `toml:"Address"`
	Deployer                       string `toml:"Deployer"`
	Admin                          string `toml:"Admin"`
	Root                           string `toml:"Root"`
	AllocationsFile                string `toml:"AllocationsFile"`
	Asset                          string `toml:"Asset"`
	Multiplier                     uint64 `toml:"Multiplier"`
	MaxBonus                       string `toml:"MaxBonus"`
	MinLockupDuration              uint64 `toml:"MinLockupDuration"`
	MinLockupDurationForMultiplier uint64 `toml:"MinLockupDurationForMultiplier"`
}

// Staking configures the bundled staking vault. An empty Address disables
// staking for the instance.
type Staking struct {
	Address     string `toml:"Address"`
	Mode        string `toml:"Mode"`
	MinDuration uint64 `toml:"MinDuration"`
}

// Fees mirrors the fee schedule of the instance. Addresses accept hex or
// bech32 encodings.
type Fees struct {
	PriceFeed              string `toml:"PriceFeed"`
	MaxPriceAge            uint64 `toml:"MaxPriceAge"`
	ProtocolTreasury       string `toml:"ProtocolTreasury"`
	ProtocolOverflow       string `toml:"ProtocolOverflow"`
	PartnerOverflow        string `toml:"PartnerOverflow"`
	FeeClaimUsdCents       uint64 `toml:"FeeClaimUsdCents"`
	FeeStakeUsdCents       uint64 `toml:"FeeStakeUsdCents"`
	FeeCapUsdCents         uint64 `toml:"FeeCapUsdCents"`
	OverflowMode           string `toml:"OverflowMode"`
	ProtocolTokenShareBips uint64 `toml:"ProtocolTokenShareBips"`
}

// Oracle configures the operator-fed USD price feed.
type Oracle struct {
	Decimals      uint8    `toml:"Decimals"`
	InitialAnswer string   `toml:"InitialAnswer"`
	Operators     []string `toml:"Operators"`
}

// Auth configures the HMAC JWT verification of write routes.
type Auth struct {
	JWTSecret    string `toml:"JWTSecret"`
	JWTSecretEnv string `toml:"JWTSecretEnv"`
	Issuer       string `toml:"Issuer"`
	Audience     string `toml:"Audience"`
}

// RateLimit is the per-client token bucket applied to every route.
type RateLimit struct {
	RequestsPerSecond float64 `toml:"RequestsPerSecond"`
	Burst             int     `toml:"Burst"`
}

// Settlements configures the queryable settlement index.
type Settlements struct {
	DSN string `toml:"DSN"`
}

// Logging controls the JSON logger.
type Logging struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
	Compress   bool   `toml:"Compress"`
}

// Telemetry controls the OTLP exporters.
type Telemetry struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Headers  string `toml:"Headers"`
	Metrics  bool   `toml:"Metrics"`
	Traces   bool   `toml:"Traces"`
}

// Balance credits Amount of Asset to Address when the data directory is
// created.
type Balance struct {
	Address string `toml:"Address"`
	Asset   string `toml:"Asset"`
	Amount  string `toml:"Amount"`
}
