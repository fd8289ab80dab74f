package node

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"claimdrop/config"
	"claimdrop/core/events"
	"claimdrop/crypto"
	"claimdrop/native/airdrop"
	"claimdrop/native/staking"
	"claimdrop/storage"
)

const (
	instanceHex = "0x00000000000000000000000000000000000000a1"
	deployerHex = "0x00000000000000000000000000000000000000d1"
	adminHex    = "0x00000000000000000000000000000000000000ad"
	stakingHex  = "0x000000000000000000000000000000000000005a"
	operatorHex = "0x00000000000000000000000000000000000000cc"
	relayerHex  = "0x000000000000000000000000000000000000007e"
)

type fixture struct {
	cfg     *config.Config
	db      *storage.MemDB
	now     int64
	rec     *events.Recorder
	members []*crypto.PrivateKey
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{db: storage.NewMemDB(), now: 1_700_000_000, rec: &events.Recorder{}}
	doc := "allocations:\n"
	for _, amount := range []int{100, 250} {
		key, err := crypto.GeneratePrivateKey()
		require.NoError(t, err)
		f.members = append(f.members, key)
		addr := key.Address20()
		doc += fmt.Sprintf("  - beneficiary: \"0x%x\"\n    amount: \"%d\"\n", addr[:], amount)
	}
	path := filepath.Join(t.TempDir(), "allocations.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Instance.Address = instanceHex
	cfg.Instance.Deployer = deployerHex
	cfg.Instance.Admin = adminHex
	cfg.Instance.AllocationsFile = path
	cfg.Instance.Multiplier = 1_000
	cfg.Instance.MaxBonus = "1000"
	cfg.Instance.MinLockupDuration = 30
	cfg.Instance.MinLockupDurationForMultiplier = 90
	cfg.Staking.Address = stakingHex
	cfg.Oracle.InitialAnswer = "300000000000"
	cfg.Oracle.Operators = []string{operatorHex}
	cfg.Auth.JWTSecret = "0123456789abcdef0123"
	cfg.Genesis = []config.Balance{{Address: instanceHex, Asset: "drop", Amount: "10000"}}
	require.NoError(t, cfg.Validate())
	f.cfg = cfg
	return f
}

func (f *fixture) open(t *testing.T) *Node {
	t.Helper()
	n, err := Open(f.cfg, Options{
		DB:       f.db,
		Now:      func() int64 { return f.now },
		Emitters: []events.Emitter{f.rec},
	})
	require.NoError(t, err)
	return n
}

func mustAddress(t *testing.T, value string) [20]byte {
	t.Helper()
	addr, err := crypto.ParseAddress(value)
	require.NoError(t, err)
	return addr
}

func (f *fixture) claim(t *testing.T, n *Node, key *crypto.PrivateKey, opts airdrop.ClaimOptions) *airdrop.Settlement {
	t.Helper()
	beneficiary := key.Address20()
	allocation, ok := n.Tree().Allocation(beneficiary)
	require.True(t, ok)
	proof, _ := n.Tree().Proof(beneficiary)
	nonce := [32]byte{0x01}
	digest, err := n.Engine().ClaimDigest(beneficiary, allocation.Amount, opts, nonce)
	require.NoError(t, err)
	sig, err := key.SignDigest(digest[:])
	require.NoError(t, err)
	settlement, err := n.Engine().ClaimFor(mustAddress(t, relayerHex), big.NewInt(0), airdrop.ClaimRequest{
		Beneficiary:     beneficiary,
		TotalAllocation: allocation.Amount,
		Proof:           proof,
		Options:         opts,
		Nonce:           nonce,
		Signature:       sig,
	})
	require.NoError(t, err)
	return settlement
}

func TestOpenInitializesOnce(t *testing.T) {
	f := newFixture(t)
	n := f.open(t)

	inst, err := n.Engine().Instance()
	require.NoError(t, err)
	require.Equal(t, n.Tree().Root(), inst.Root)
	require.True(t, inst.Paused)
	require.Equal(t, "DROP", inst.Asset)
	require.Len(t, f.rec.OfType(events.TypeAirdropInitialized), 1)

	balance, err := n.Engine().Balance()
	require.NoError(t, err)
	require.EqualValues(t, 10000, balance.Int64())

	reopened := f.open(t)
	balance, err = reopened.Engine().Balance()
	require.NoError(t, err)
	require.EqualValues(t, 10000, balance.Int64(), "genesis is credited once")
	require.Len(t, f.rec.OfType(events.TypeAirdropInitialized), 1)
	require.NoError(t, reopened.Close())
	require.NoError(t, reopened.Close())
}

func TestOpenRejectsMismatchedRoot(t *testing.T) {
	f := newFixture(t)
	f.cfg.Instance.Root = "0x1111111111111111111111111111111111111111111111111111111111111111"
	_, err := Open(f.cfg, Options{DB: f.db})
	require.ErrorIs(t, err, ErrRootMismatch)
}

func TestPublishPrice(t *testing.T) {
	f := newFixture(t)
	n := f.open(t)

	_, err := n.PublishPrice(mustAddress(t, relayerHex), big.NewInt(1))
	require.ErrorIs(t, err, ErrNotOperator)

	operator := mustAddress(t, operatorHex)
	_, err = n.PublishPrice(operator, big.NewInt(0))
	require.Error(t, err)

	f.now += 60
	round, err := n.PublishPrice(operator, big.NewInt(310_000_000_000))
	require.NoError(t, err)
	require.EqualValues(t, 2, round.RoundID)
	require.EqualValues(t, f.now, round.UpdatedAt)

	latest, err := n.Feed().LatestRoundData()
	require.NoError(t, err)
	require.Equal(t, "310000000000", latest.Answer.String())
}

func TestStakeLifecycle(t *testing.T) {
	f := newFixture(t)
	n := f.open(t)
	require.NoError(t, n.Engine().Unpause(mustAddress(t, adminHex)))

	member := f.members[0]
	settlement := f.claim(t, n, member, airdrop.ClaimOptions{
		OptionID:          2,
		Multiplier:        1_000,
		PercentageToClaim: 3_000,
		PercentageToStake: 7_000,
		LockupPeriod:      100,
	})
	require.EqualValues(t, 77, new(big.Int).Add(settlement.AmountStaked, settlement.Bonus).Int64())

	stakes, claimable, err := n.Stakes(member.Address20())
	require.NoError(t, err)
	require.Len(t, stakes, 1)
	require.EqualValues(t, 77, stakes[0].Amount.Int64())
	require.Zero(t, claimable[0].Sign())

	_, err = n.ClaimStake(member.Address20(), stakes[0].ID)
	require.ErrorIs(t, err, staking.ErrNothingClaimable)

	f.now += 50
	_, claimable, err = n.Stakes(member.Address20())
	require.NoError(t, err)
	require.Positive(t, claimable[0].Sign())

	_, err = n.ClaimStake(mustAddress(t, relayerHex), stakes[0].ID)
	require.ErrorIs(t, err, staking.ErrNotStakeOwner)

	released, err := n.ClaimStake(member.Address20(), 0)
	require.NoError(t, err)
	require.Equal(t, claimable[0].String(), released.String())

	held, err := n.Bank().Balance("DROP", member.Address20())
	require.NoError(t, err)
	require.Equal(t, new(big.Int).Add(settlement.AmountClaimed, released).String(), held.String())
}

func TestStakingUnavailableWithoutVault(t *testing.T) {
	f := newFixture(t)
	f.cfg.Staking.Address = ""
	n := f.open(t)
	require.Nil(t, n.Vault())

	_, _, err := n.Stakes(f.members[0].Address20())
	require.ErrorIs(t, err, ErrStakingUnavailable)
	_, err = n.ClaimStake(f.members[0].Address20(), 1)
	require.ErrorIs(t, err, ErrStakingUnavailable)
}

func TestOpenBoltBackendPersists(t *testing.T) {
	f := newFixture(t)
	f.cfg.StateBackend = "bolt"
	require.NoError(t, f.cfg.Validate())

	n, err := Open(f.cfg, Options{Now: func() int64 { return f.now }})
	require.NoError(t, err)
	require.NoError(t, n.Engine().Unpause(mustAddress(t, adminHex)))
	require.NoError(t, n.Close())

	reopened, err := Open(f.cfg, Options{Now: func() int64 { return f.now }})
	require.NoError(t, err)
	defer reopened.Close()
	inst, err := reopened.Engine().Instance()
	require.NoError(t, err)
	require.False(t, inst.Paused)
	balance, err := reopened.Engine().Balance()
	require.NoError(t, err)
	require.EqualValues(t, 10000, balance.Int64())
}

func TestRestartAfterFailedInitializeMintsGenesisOnce(t *testing.T) {
	f := newFixture(t)
	f.cfg.Fees.FeeClaimUsdCents = 100
	f.cfg.Fees.ProtocolTreasury = adminHex
	f.cfg.Fees.MaxPriceAge = 0
	f.cfg.ProtocolAdmins = []string{adminHex}

	_, err := Open(f.cfg, Options{
		DB:       f.db,
		Now:      func() int64 { return f.now },
		Emitters: []events.Emitter{f.rec},
	})
	require.Error(t, err)
	require.Empty(t, f.rec.OfType(events.TypeAirdropInitialized))

	f.cfg.Fees.MaxPriceAge = 3600
	n := f.open(t)
	balance, err := n.Engine().Balance()
	require.NoError(t, err)
	require.EqualValues(t, 10000, balance.Int64(), "genesis is credited once")
	require.Len(t, f.rec.OfType(events.TypeAirdropInitialized), 1)
	admin := mustAddress(t, adminHex)
	require.True(t, n.state.HasRole(airdrop.RoleProtocolAdmin, admin[:]))
	members, err := n.state.RoleMembers(airdrop.RoleProtocolAdmin)
	require.NoError(t, err)
	require.Len(t, members, 1)
}
