package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"claimdrop/crypto"
	"claimdrop/native/fees"
	"claimdrop/native/staking"
)

const sampleConfig = `ListenAddress = "127.0.0.1:9000"
DataDir = "./data"
ChainID = 8453
ProtocolAdmins = ["0x00000000000000000000000000000000000000b0"]

[instance]
Address = "0x00000000000000000000000000000000000000a1"
Deployer = "0x00000000000000000000000000000000000000d1"
Admin = "0x00000000000000000000000000000000000000ad"
Root = "0x1111111111111111111111111111111111111111111111111111111111111111"
Asset = "drop"
Multiplier = 1000
MaxBonus = "5000"
MinLockupDuration = 30
MinLockupDurationForMultiplier = 90

[staking]
Address = "0x000000000000000000000000000000000000005a"
Mode = "cliff"

[fees]
MaxPriceAge = 3600
ProtocolTreasury = "0x0000000000000000000000000000000000000071"
PartnerOverflow = "0x0000000000000000000000000000000000000072"
FeeClaimUsdCents = 100
FeeStakeUsdCents = 200
FeeCapUsdCents = 500
OverflowMode = "route_to_partner"
ProtocolTokenShareBips = 100

[oracle]
Decimals = 8
InitialAnswer = "300000000000"
Operators = ["0x00000000000000000000000000000000000000cc"]

[auth]
JWTSecret = "0123456789abcdef0123"

[[genesis]]
Address = "0x00000000000000000000000000000000000000a1"
Asset = "drop"
Amount = "1000000"
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "claimd.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadParsesSections(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", cfg.ListenAddress)
	require.EqualValues(t, 8453, cfg.ChainID)
	require.Equal(t, 20.0, cfg.RateLimit.RequestsPerSecond, "default applied")
	require.True(t, strings.HasPrefix(cfg.Settlements.DSN, "sqlite://"))

	root, ok, err := cfg.Root()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, byte(0x11), root[31])

	params, err := cfg.InitParams(root)
	require.NoError(t, err)
	require.Equal(t, [20]byte{19: 0xad}, params.Admin)
	require.Equal(t, [20]byte{19: 0x5a}, params.Staking)
	require.Equal(t, "5000", params.MaxBonus.String())

	mode, err := cfg.StakingMode()
	require.NoError(t, err)
	require.Equal(t, staking.ModeTimelock, mode)

	feeCfg, err := cfg.FeeConfig()
	require.NoError(t, err)
	require.Equal(t, fees.OverflowRouteToPartner, feeCfg.OverflowMode)
	require.Equal(t, [20]byte{19: 0x72}, feeCfg.PartnerOverflow)

	answer, err := cfg.OracleInitialAnswer()
	require.NoError(t, err)
	require.Equal(t, "300000000000", answer.String())

	genesis, err := cfg.GenesisBalances()
	require.NoError(t, err)
	require.Len(t, genesis, 1)
	require.Equal(t, "DROP", genesis[0].Asset)
}

func TestLoadRejectsInvalidSections(t *testing.T) {
	cases := map[string]struct{ old, new string }{
		"unknown key":        {`ChainID = 8453`, `ChainID = 8453` + "\nBogus = 1"},
		"missing deployer":   {`Deployer = "0x00000000000000000000000000000000000000d1"`, ``},
		"short root":         {`Root = "0x1111111111111111111111111111111111111111111111111111111111111111"`, `Root = "0x11"`},
		"bad overflow mode":  {`OverflowMode = "route_to_partner"`, `OverflowMode = "burn"`},
		"cap without target": {`PartnerOverflow = "0x0000000000000000000000000000000000000072"`, ``},
		"weak secret":        {`JWTSecret = "0123456789abcdef0123"`, `JWTSecret = "short"`},
		"negative genesis":   {`Amount = "1000000"`, `Amount = "-5"`},
		"bad staking mode":   {`Mode = "cliff"`, `Mode = "instant"`},
		"bad state backend":  {`DataDir = "./data"`, `DataDir = "./data"` + "\nStateBackend = \"rocksdb\""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, strings.Replace(sampleConfig, tc.old, tc.new, 1)))
			require.Error(t, err)
		})
	}
}

func TestLoadAcceptsBech32AndAllocationsFile(t *testing.T) {
	bech := crypto.Display([20]byte{19: 0xad})
	contents := strings.Replace(sampleConfig, `Admin = "0x00000000000000000000000000000000000000ad"`, `Admin = "`+bech+`"`, 1)
	contents = strings.Replace(contents, `Root = "0x1111111111111111111111111111111111111111111111111111111111111111"`, `AllocationsFile = "allocations.yaml"`, 1)
	cfg, err := Load(writeConfig(t, contents))
	require.NoError(t, err)
	_, ok, err := cfg.Root()
	require.NoError(t, err)
	require.False(t, ok)
	params, err := cfg.InitParams([32]byte{})
	require.NoError(t, err)
	require.Equal(t, [20]byte{19: 0xad}, params.Admin)
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "claimd.toml")
	_, err := Load(path)
	require.Error(t, err, "defaults leave the instance unconfigured")
	require.FileExists(t, path)
}

func TestSecretPrefersEnvironment(t *testing.T) {
	t.Setenv("CLAIMD_TEST_SECRET", "from-environment-123")
	auth := Auth{JWTSecret: "from-file", JWTSecretEnv: "CLAIMD_TEST_SECRET"}
	require.Equal(t, "from-environment-123", auth.Secret())
	auth.JWTSecretEnv = "CLAIMD_UNSET_SECRET"
	require.Equal(t, "from-file", auth.Secret())
}
