package airdrop

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"claimdrop/core/events"
	"claimdrop/core/state"
	"claimdrop/crypto"
	"claimdrop/native/bank"
	"claimdrop/native/fees"
	"claimdrop/native/staking"
)

const (
	tokenAsset  = "DROP"
	minLockup   = 30
	bonusLockup = 90
	testNow     = int64(1_700_000_000)
)

var (
	instanceAddr  = [20]byte{0xa1}
	deployerAddr  = [20]byte{0xd1}
	adminAddr     = [20]byte{0xad}
	protocolAdmin = [20]byte{0xbe}
	relayerAddr   = [20]byte{0x7e}
	treasuryAddr  = [20]byte{0x71}
	partnerAddr   = [20]byte{0x72}
	overflowAddr  = [20]byte{0x73}
	stakingAddr   = [20]byte{0x5a}
	sweepAddr     = [20]byte{0x5e}
)

type member struct {
	key    *crypto.PrivateKey
	addr   [20]byte
	amount *big.Int
}

type harnessConfig struct {
	params  InitParams
	fees    InitFeeConfig
	fund    int64
	staking StakingCollaborator
}

type harness struct {
	t         *testing.T
	mgr       *state.Manager
	ledger    *bank.Ledger
	feed      *fees.ManualFeed
	vault     *staking.Vault
	engine    *Engine
	rec       *events.Recorder
	tree      *Tree
	members   []*member
	nextNonce byte
}

func feesEnabled(mode fees.OverflowMode) func(*harnessConfig) {
	return func(cfg *harnessConfig) {
		cfg.fees = InitFeeConfig{
			MaxPriceAge:      3600,
			ProtocolTreasury: treasuryAddr,
			ProtocolOverflow: overflowAddr,
			PartnerOverflow:  partnerAddr,
			FeeClaimUsdCents: 100,
			FeeStakeUsdCents: 200,
			FeeCapUsdCents:   500,
			OverflowMode:     mode,
		}
	}
}

func newHarness(t *testing.T, opts ...func(*harnessConfig)) *harness {
	t.Helper()
	h := &harness{t: t, mgr: state.NewManager(nil), rec: &events.Recorder{}}
	h.ledger = bank.NewLedger(h.mgr)

	allocations := make([]Allocation, 0, 5)
	for _, amount := range []int64{100, 100, 100, 100, 1000} {
		key, err := crypto.GeneratePrivateKey()
		require.NoError(t, err)
		m := &member{key: key, addr: key.Address20(), amount: big.NewInt(amount)}
		h.members = append(h.members, m)
		allocations = append(allocations, Allocation{Beneficiary: m.addr, Amount: m.amount})
	}
	tree, err := BuildTree(allocations)
	require.NoError(t, err)
	h.tree = tree

	h.feed = fees.NewManualFeed(8)
	h.feed.Push(new(big.Int).Mul(big.NewInt(3000), big.NewInt(100_000_000)), uint64(testNow))
	feeEngine := fees.NewEngine()
	feeEngine.SetBank(h.ledger)
	feeEngine.SetPriceFeed(h.feed)
	feeEngine.SetNowFunc(func() int64 { return testNow })

	h.vault = staking.NewVault(stakingAddr, tokenAsset, staking.ModeLinear)
	h.vault.SetState(h.mgr)
	h.vault.SetBank(h.ledger)
	h.vault.SetNowFunc(func() int64 { return testNow })

	cfg := &harnessConfig{
		params: InitParams{
			Admin:                          adminAddr,
			Root:                           tree.Root(),
			Asset:                          tokenAsset,
			Staking:                        stakingAddr,
			MaxBonus:                       big.NewInt(1_000),
			MinLockupDuration:              minLockup,
			MinLockupDurationForMultiplier: bonusLockup,
			Multiplier:                     1_000,
		},
		fund:    1_000_000,
		staking: h.vault,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	h.engine = NewEngine(instanceAddr, deployerAddr)
	h.engine.SetState(h.mgr)
	h.engine.SetBank(h.ledger)
	h.engine.SetFeeEngine(feeEngine)
	if cfg.staking != nil {
		h.engine.SetStaking(cfg.staking)
	}
	h.engine.SetEmitter(h.rec)
	h.engine.SetNowFunc(func() int64 { return testNow })

	require.NoError(t, h.mgr.Atomic(func() error {
		if err := h.ledger.Mint(tokenAsset, instanceAddr, big.NewInt(cfg.fund)); err != nil {
			return err
		}
		if err := h.ledger.Mint(bank.NativeAsset, relayerAddr, new(big.Int).Exp(big.NewInt(10), big.NewInt(20), nil)); err != nil {
			return err
		}
		return h.mgr.SetRole(RoleProtocolAdmin, protocolAdmin[:])
	}))
	require.NoError(t, h.engine.Initialize(deployerAddr, cfg.params, cfg.fees))
	require.NoError(t, h.engine.Unpause(adminAddr))
	h.rec.Reset()
	return h
}

func (h *harness) request(m *member, opts ClaimOptions) ClaimRequest {
	h.t.Helper()
	h.nextNonce++
	return h.signedRequest(m, m.key, opts, [32]byte{h.nextNonce})
}

func (h *harness) signedRequest(m *member, signer *crypto.PrivateKey, opts ClaimOptions, nonce [32]byte) ClaimRequest {
	h.t.Helper()
	proof, ok := h.tree.Proof(m.addr)
	require.True(h.t, ok)
	digest, err := h.engine.ClaimDigest(m.addr, m.amount, opts, nonce)
	require.NoError(h.t, err)
	sig, err := signer.SignDigest(digest[:])
	require.NoError(h.t, err)
	return ClaimRequest{
		Beneficiary:     m.addr,
		TotalAllocation: new(big.Int).Set(m.amount),
		Proof:           proof,
		Options:         opts,
		Nonce:           nonce,
		Signature:       sig,
	}
}

func (h *harness) claim(m *member, opts ClaimOptions, payment *big.Int) (*Settlement, error) {
	h.t.Helper()
	return h.engine.ClaimFor(relayerAddr, payment, h.request(m, opts))
}

func (h *harness) balance(asset string, addr [20]byte) *big.Int {
	h.t.Helper()
	bal, err := h.ledger.Balance(asset, addr)
	require.NoError(h.t, err)
	return bal
}

func (h *harness) instance() *Instance {
	h.t.Helper()
	inst, err := h.engine.Instance()
	require.NoError(h.t, err)
	return inst
}

func claimAll() ClaimOptions {
	return ClaimOptions{OptionID: 1, Multiplier: 1_000, PercentageToClaim: MaxBips}
}

func splitStake(lockup uint64) ClaimOptions {
	return ClaimOptions{OptionID: 2, Multiplier: 1_000, PercentageToClaim: 3_000, PercentageToStake: 7_000, LockupPeriod: lockup}
}

func requireAmount(t *testing.T, want int64, got *big.Int, msgAndArgs ...interface{}) {
	t.Helper()
	require.NotNil(t, got)
	require.Zerof(t, got.Cmp(big.NewInt(want)), "want %d, got %s %v", want, got, msgAndArgs)
}

func TestInitializeGuards(t *testing.T) {
	h := newHarness(t)
	err := h.engine.Initialize(adminAddr, InitParams{}, InitFeeConfig{})
	require.ErrorIs(t, err, ErrNotDeployer)

	err = h.engine.Initialize(deployerAddr, InitParams{Admin: adminAddr, Root: h.tree.Root(), Asset: tokenAsset}, InitFeeConfig{})
	require.ErrorIs(t, err, ErrAlreadyInitialized)

	allowance, err := h.ledger.Allowance(tokenAsset, instanceAddr, stakingAddr)
	require.NoError(t, err)
	require.Zero(t, allowance.Cmp(bank.MaxAllowance), "staking holds the standing allowance")

	fresh := NewEngine([20]byte{0xf0}, deployerAddr)
	fresh.SetState(h.mgr)
	fresh.SetBank(h.ledger)
	fresh.SetFeeEngine(fees.NewEngine())
	fresh.SetStaking(h.vault)
	err = fresh.Initialize(deployerAddr, InitParams{Admin: adminAddr, Root: h.tree.Root(), Asset: tokenAsset, Staking: [20]byte{0x01}}, InitFeeConfig{})
	require.ErrorIs(t, err, ErrInvalidParams)
	err = fresh.Initialize(deployerAddr, InitParams{Admin: adminAddr, Root: h.tree.Root(), Asset: tokenAsset}, InitFeeConfig{FeeClaimUsdCents: 1})
	require.ErrorIs(t, err, fees.ErrInvalidConfig)

	require.NoError(t, fresh.Initialize(deployerAddr, InitParams{Admin: adminAddr, Root: h.tree.Root(), Asset: tokenAsset}, InitFeeConfig{}))
	inst, err := fresh.Instance()
	require.NoError(t, err)
	require.True(t, inst.Active)
	require.True(t, inst.Paused, "instances start paused")
	_, err = fresh.ClaimFor(relayerAddr, nil, ClaimRequest{})
	require.ErrorIs(t, err, ErrPaused)
}

func TestScenarioAClaimEverything(t *testing.T) {
	h := newHarness(t)
	m := h.members[0]
	settlement, err := h.claim(m, claimAll(), nil)
	require.NoError(t, err)

	requireAmount(t, 100, settlement.AmountClaimed)
	requireAmount(t, 0, settlement.AmountStaked)
	requireAmount(t, 0, settlement.Bonus)
	requireAmount(t, 100, h.balance(tokenAsset, m.addr))

	consumed, err := h.engine.ClaimedAmount(m.addr)
	require.NoError(t, err)
	requireAmount(t, 100, consumed)

	inst := h.instance()
	requireAmount(t, 100, inst.TotalClaimed)
	requireAmount(t, 0, inst.TotalStaked)

	settled := h.rec.OfType(events.TypeAirdropClaimSettled)
	require.Len(t, settled, 1)
	evt := settled[0].(events.Typed).Event()
	require.Equal(t, "100", evt.Attr("amountClaimed"))
	require.Equal(t, "1000", evt.Attr("multiplier"))
	require.Equal(t, "cancel", evt.Attr("overflowMode"))
}

func TestScenarioBStakeWithBonus(t *testing.T) {
	h := newHarness(t)
	m := h.members[1]
	settlement, err := h.claim(m, splitStake(bonusLockup), nil)
	require.NoError(t, err)

	requireAmount(t, 30, settlement.AmountClaimed)
	requireAmount(t, 70, settlement.AmountStaked)
	requireAmount(t, 7, settlement.Bonus)
	requireAmount(t, 107, settlement.Distributed())
	require.NotZero(t, settlement.StakeID)

	requireAmount(t, 30, h.balance(tokenAsset, m.addr))
	stake, err := h.vault.Stake(settlement.StakeID)
	require.NoError(t, err)
	require.Equal(t, m.addr, stake.Owner)
	requireAmount(t, 77, stake.Amount)
	require.EqualValues(t, bonusLockup, stake.Duration)

	inst := h.instance()
	requireAmount(t, 30, inst.TotalClaimed)
	requireAmount(t, 70, inst.TotalStaked)
	requireAmount(t, 7, inst.TotalBonusTokens)
	requireAmount(t, 1_000_000-107, h.balance(tokenAsset, instanceAddr))
}

func TestInstanceWithBalanceAgreesWithTotals(t *testing.T) {
	h := newHarness(t)
	_, err := h.claim(h.members[1], splitStake(bonusLockup), nil)
	require.NoError(t, err)
	_, err = h.claim(h.members[0], claimAll(), nil)
	require.NoError(t, err)

	inst, balance, err := h.engine.InstanceWithBalance()
	require.NoError(t, err)
	distributed := new(big.Int).Add(inst.TotalClaimed, inst.TotalStaked)
	distributed.Add(distributed, inst.TotalBonusTokens)
	requireAmount(t, 1_000_000, new(big.Int).Add(balance, distributed))

	alone, err := h.engine.Balance()
	require.NoError(t, err)
	require.Zero(t, balance.Cmp(alone))
}

func TestClaimedPlusStakedEqualsConsumed(t *testing.T) {
	h := newHarness(t)
	m := h.members[4]
	opts := ClaimOptions{OptionID: 9, Multiplier: 1_000, PercentageToClaim: 3_333, PercentageToStake: 6_667, LockupPeriod: minLockup}
	settlement, err := h.claim(m, opts, nil)
	require.ErrorIs(t, err, ErrLockupTooShort, "multiplier is live so its minimum applies")
	require.Nil(t, settlement)

	opts.LockupPeriod = bonusLockup
	settlement, err = h.claim(m, opts, nil)
	require.NoError(t, err)
	total := new(big.Int).Add(settlement.AmountClaimed, settlement.AmountStaked)
	consumed, err := h.engine.ClaimedAmount(m.addr)
	require.NoError(t, err)
	require.Zero(t, total.Cmp(consumed))
	requireAmount(t, 1_000, consumed)
	requireAmount(t, 333, settlement.AmountClaimed)
}

func TestSecondClaimAlwaysFails(t *testing.T) {
	h := newHarness(t)
	m := h.members[0]
	_, err := h.claim(m, claimAll(), nil)
	require.NoError(t, err)

	_, err = h.claim(m, claimAll(), nil)
	require.ErrorIs(t, err, ErrAlreadyClaimed)
	_, err = h.claim(m, splitStake(bonusLockup), nil)
	require.ErrorIs(t, err, ErrAlreadyClaimed)
	requireAmount(t, 100, h.balance(tokenAsset, m.addr))
}

func TestNonceReplayAndCancellation(t *testing.T) {
	h := newHarness(t)
	m := h.members[0]
	nonce := [32]byte{0x42}
	req := h.signedRequest(m, m.key, claimAll(), nonce)

	require.NoError(t, h.engine.Pause(adminAddr))
	require.NoError(t, h.engine.CancelNonce(m.addr, nonce), "cancellation ignores pause")
	require.NoError(t, h.engine.Unpause(adminAddr))
	require.ErrorIs(t, h.engine.CancelNonce(m.addr, nonce), ErrSignatureAlreadyUsed)

	used, err := h.engine.IsNonceUsed(m.addr, nonce)
	require.NoError(t, err)
	require.True(t, used)

	_, err = h.engine.ClaimFor(relayerAddr, nil, req)
	require.ErrorIs(t, err, ErrSignatureAlreadyUsed)
	require.Len(t, h.rec.OfType(events.TypeAirdropNonceCancelled), 1)

	other := h.members[1]
	otherReq := h.signedRequest(other, other.key, claimAll(), nonce)
	_, err = h.engine.ClaimFor(relayerAddr, nil, otherReq)
	require.NoError(t, err, "nonces are scoped per beneficiary")
}

func TestClaimOptionValidation(t *testing.T) {
	cases := []struct {
		name string
		opts ClaimOptions
		err  error
	}{
		{"sum too high", ClaimOptions{OptionID: 1, Multiplier: 1_000, PercentageToClaim: 6_000, PercentageToStake: 5_000, LockupPeriod: bonusLockup}, ErrPercentageTooHigh},
		{"partial claim", ClaimOptions{OptionID: 1, Multiplier: 1_000, PercentageToClaim: 5_000}, ErrInvalidPercentageSum},
		{"zero option", ClaimOptions{Multiplier: 1_000, PercentageToClaim: MaxBips}, ErrInvalidOptionID},
		{"multiplier mismatch", ClaimOptions{OptionID: 1, Multiplier: 999, PercentageToClaim: MaxBips}, ErrMultiplierMismatch},
		{"lockup below staking minimum", ClaimOptions{OptionID: 1, Multiplier: 1_000, PercentageToStake: MaxBips, LockupPeriod: minLockup - 1}, ErrLockupTooShort},
		{"lockup below multiplier minimum", ClaimOptions{OptionID: 1, Multiplier: 1_000, PercentageToStake: MaxBips, LockupPeriod: bonusLockup - 1}, ErrLockupTooShort},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			_, err := h.engine.ValidateClaimOptions(tc.opts)
			require.ErrorIs(t, err, tc.err)

			m := h.members[0]
			_, err = h.claim(m, tc.opts, nil)
			require.ErrorIs(t, err, tc.err)
			require.Equal(t, KindValidation, ErrorKind(err))
			used, err := h.engine.IsNonceUsed(m.addr, [32]byte{h.nextNonce})
			require.NoError(t, err)
			require.False(t, used, "rejected claims leave no trace")
		})
	}
}

func TestStakingDisabledWithoutCollaborator(t *testing.T) {
	h := newHarness(t, func(cfg *harnessConfig) {
		cfg.params.Staking = [20]byte{}
		cfg.staking = nil
	})
	_, err := h.claim(h.members[0], splitStake(bonusLockup), nil)
	require.ErrorIs(t, err, ErrStakingDisabled)
	_, err = h.claim(h.members[0], claimAll(), nil)
	require.NoError(t, err)
}

func TestSignatureAndProofFailures(t *testing.T) {
	h := newHarness(t)
	m, mallory := h.members[0], h.members[1]

	forged := h.signedRequest(m, mallory.key, claimAll(), [32]byte{0x99})
	_, err := h.engine.ClaimFor(relayerAddr, nil, forged)
	require.ErrorIs(t, err, ErrInvalidClaimSignature)
	require.Equal(t, KindAuthorization, ErrorKind(err))

	inflated := h.signedRequest(m, m.key, claimAll(), [32]byte{0x98})
	inflated.TotalAllocation = big.NewInt(1_000)
	_, err = h.engine.ClaimFor(relayerAddr, nil, inflated)
	require.ErrorIs(t, err, ErrInvalidClaimSignature, "the allocation is covered by the signature")

	// A correctly signed claim for an allocation outside the tree.
	outsider := &member{key: m.key, addr: m.addr, amount: big.NewInt(1_000)}
	req := h.signedRequest(outsider, m.key, claimAll(), [32]byte{0x97})
	_, err = h.engine.ClaimFor(relayerAddr, nil, req)
	require.ErrorIs(t, err, ErrInvalidProof)
	require.Equal(t, KindState, ErrorKind(err))

	used, err := h.engine.IsNonceUsed(m.addr, [32]byte{0x97})
	require.NoError(t, err)
	require.False(t, used)
}

// Changing the multiplier invalidates signatures produced against the old
// value, even though the beneficiary did nothing wrong.
func TestSetMultiplierInvalidatesPendingSignatures(t *testing.T) {
	h := newHarness(t)
	m := h.members[1]
	pending := h.request(m, splitStake(bonusLockup))

	require.ErrorIs(t, h.engine.SetMultiplier(m.addr, 1_500), ErrNotAdmin)
	require.NoError(t, h.engine.SetMultiplier(adminAddr, 1_500))

	_, err := h.engine.ClaimFor(relayerAddr, nil, pending)
	require.ErrorIs(t, err, ErrMultiplierMismatch)

	opts := splitStake(bonusLockup)
	opts.Multiplier = 1_500
	settlement, err := h.claim(m, opts, nil)
	require.NoError(t, err)
	requireAmount(t, 10, settlement.Bonus, "70 * 15%")
	require.Len(t, h.rec.OfType(events.TypeAirdropMultiplierUpdated), 1)
}

func TestBonusCappedByMaxBonus(t *testing.T) {
	h := newHarness(t, func(cfg *harnessConfig) { cfg.params.MaxBonus = big.NewInt(50) })
	m := h.members[4]
	opts := ClaimOptions{OptionID: 1, Multiplier: 1_000, PercentageToStake: MaxBips, LockupPeriod: bonusLockup}
	settlement, err := h.claim(m, opts, nil)
	require.NoError(t, err)
	requireAmount(t, 1_000, settlement.AmountStaked)
	requireAmount(t, 50, settlement.Bonus)
}

func TestProtocolShareAndProgramEnd(t *testing.T) {
	h := newHarness(t, func(cfg *harnessConfig) { cfg.fees.ProtocolTokenShareBips = 250 })

	settlement, err := h.claim(h.members[0], claimAll(), nil)
	require.NoError(t, err)
	requireAmount(t, 3, settlement.ProtocolShare, "ceil(100 * 2.5%)")
	requireAmount(t, 100, h.balance(tokenAsset, h.members[0].addr), "share does not reduce the beneficiary")

	settlement, err = h.claim(h.members[1], splitStake(bonusLockup), nil)
	require.NoError(t, err)
	requireAmount(t, 3, settlement.ProtocolShare, "ceil(107 * 2.5%)")
	requireAmount(t, 6, h.instance().ProtocolAccruedTokens)

	require.ErrorIs(t, h.engine.Pause(h.members[0].addr), ErrNotAdmin)
	require.NoError(t, h.engine.Pause(adminAddr))

	swept, err := h.engine.EndAirdrop(adminAddr, sweepAddr)
	require.NoError(t, err)
	requireAmount(t, 1_000_000-207-6, swept)
	requireAmount(t, 6, h.balance(tokenAsset, instanceAddr), "only accrued protocol tokens remain")
	requireAmount(t, 6, h.instance().ProtocolAccruedTokens)
	require.False(t, h.instance().Active)

	_, err = h.engine.EndAirdrop(adminAddr, sweepAddr)
	require.ErrorIs(t, err, ErrInactive)
	require.ErrorIs(t, h.engine.Unpause(adminAddr), ErrInactive)
	_, err = h.claim(h.members[2], claimAll(), nil)
	require.ErrorIs(t, err, ErrInactive)

	require.ErrorIs(t, h.engine.WithdrawProtocolAccrued(adminAddr, adminAddr, big.NewInt(1)), ErrNotProtocolAdmin)
	require.ErrorIs(t, h.engine.WithdrawProtocolAccrued(protocolAdmin, protocolAdmin, big.NewInt(7)), ErrExceedsAccrued)
	require.NoError(t, h.engine.WithdrawProtocolAccrued(protocolAdmin, treasuryAddr, big.NewInt(4)))
	requireAmount(t, 2, h.instance().ProtocolAccruedTokens)
	requireAmount(t, 4, h.balance(tokenAsset, treasuryAddr))
	require.Len(t, h.rec.OfType(events.TypeAirdropProtocolWithdrawn), 1)
}

func TestOutOfTokensLeavesNoTrace(t *testing.T) {
	h := newHarness(t, feesEnabled(fees.OverflowCancel), func(cfg *harnessConfig) { cfg.fund = 99 })
	m := h.members[0]
	fee, err := h.engine.ValidateClaimOptions(claimAll())
	require.NoError(t, err)
	relayerBefore := h.balance(bank.NativeAsset, relayerAddr)

	req := h.request(m, claimAll())
	_, err = h.engine.ClaimFor(relayerAddr, fee, req)
	require.ErrorIs(t, err, ErrOutOfTokens)
	require.Equal(t, KindResource, ErrorKind(err))

	require.Zero(t, h.balance(bank.NativeAsset, relayerAddr).Cmp(relayerBefore), "payment was not kept")
	require.Zero(t, h.balance(bank.NativeAsset, treasuryAddr).Sign())
	inst := h.instance()
	require.Zero(t, inst.Fees.TotalFeeUsdCents)
	requireAmount(t, 0, inst.TotalClaimed)
	consumed, err := h.engine.ClaimedAmount(m.addr)
	require.NoError(t, err)
	require.Zero(t, consumed.Sign())
	used, err := h.engine.IsNonceUsed(m.addr, req.Nonce)
	require.NoError(t, err)
	require.False(t, used)
	require.Empty(t, h.rec.Events())
}

func TestAccruedProtocolTokensStayCovered(t *testing.T) {
	h := newHarness(t, func(cfg *harnessConfig) {
		cfg.fund = 205
		cfg.fees.ProtocolTokenShareBips = MaxBips
	})
	_, err := h.claim(h.members[0], claimAll(), nil)
	require.NoError(t, err)
	requireAmount(t, 100, h.instance().ProtocolAccruedTokens)

	// 105 left, 100 of it owed to the protocol.
	_, err = h.claim(h.members[1], claimAll(), nil)
	require.ErrorIs(t, err, ErrOutOfTokens)
}

type brokenStaking struct{}

func (brokenStaking) Address() [20]byte { return stakingAddr }

func (brokenStaking) StakeFor([20]byte, [20]byte, *big.Int, uint64) (uint64, error) {
	return 0, errors.New("vault offline")
}

func TestStakingFailureRevertsClaim(t *testing.T) {
	h := newHarness(t, func(cfg *harnessConfig) { cfg.staking = brokenStaking{} })
	m := h.members[1]
	_, err := h.claim(m, splitStake(bonusLockup), nil)
	require.ErrorIs(t, err, ErrStakingFailed)

	require.Zero(t, h.balance(tokenAsset, m.addr).Sign(), "immediate portion rolled back")
	consumed, err := h.engine.ClaimedAmount(m.addr)
	require.NoError(t, err)
	require.Zero(t, consumed.Sign())
	requireAmount(t, 0, h.instance().TotalStaked)
}

func TestFeeCapAcrossClaims(t *testing.T) {
	h := newHarness(t, feesEnabled(fees.OverflowRouteToPartner))

	claimFee, err := h.engine.ValidateClaimOptions(claimAll())
	require.NoError(t, err)
	stakeFee, err := h.engine.ValidateClaimOptions(splitStake(bonusLockup))
	require.NoError(t, err)
	require.Equal(t, 1, stakeFee.Cmp(claimFee))

	// Underpayment aborts before anything moves.
	short := new(big.Int).Sub(claimFee, big.NewInt(1))
	_, err = h.claim(h.members[0], claimAll(), short)
	require.ErrorIs(t, err, fees.ErrInsufficientFee)
	require.Zero(t, h.balance(bank.NativeAsset, treasuryAddr).Sign())

	// Overpayment refunds the exact difference.
	relayerBefore := h.balance(bank.NativeAsset, relayerAddr)
	settlement, err := h.claim(h.members[0], claimAll(), new(big.Int).Add(claimFee, big.NewInt(5)))
	require.NoError(t, err)
	requireAmount(t, 5, settlement.FeeRefund)
	require.Zero(t, settlement.FeePaid.Cmp(claimFee))
	require.Equal(t, treasuryAddr, settlement.FeeReceiver)
	spent := new(big.Int).Sub(relayerBefore, h.balance(bank.NativeAsset, relayerAddr))
	require.Zero(t, spent.Cmp(claimFee))

	for _, m := range h.members[1:3] {
		settlement, err := h.claim(m, splitStake(bonusLockup), stakeFee)
		require.NoError(t, err)
		require.False(t, settlement.FeePostCap)
	}
	require.EqualValues(t, 500, h.instance().Fees.TotalFeeUsdCents)

	require.NoError(t, h.engine.UpdatePartnerOverflow(adminAddr, [20]byte{0x77}))
	settlement, err = h.claim(h.members[3], splitStake(bonusLockup), stakeFee)
	require.NoError(t, err)
	require.True(t, settlement.FeePostCap)
	require.Equal(t, [20]byte{0x77}, settlement.FeeReceiver)
	require.EqualValues(t, 200, settlement.FeeUsdCents)
	require.EqualValues(t, 500, h.instance().Fees.TotalFeeUsdCents)
	require.Zero(t, h.balance(bank.NativeAsset, [20]byte{0x77}).Cmp(stakeFee))
	require.Zero(t, h.balance(bank.NativeAsset, partnerAddr).Sign())

	evt := h.rec.OfType(events.TypeAirdropClaimSettled)[3].(events.Typed).Event()
	require.Equal(t, "true", evt.Attr("feePostCap"))
	require.Equal(t, "route_to_partner", evt.Attr("overflowMode"))
}

func TestStalePriceBlocksClaims(t *testing.T) {
	h := newHarness(t, feesEnabled(fees.OverflowCancel))
	h.feed.Push(big.NewInt(300_000_000_000), uint64(testNow-7200))
	_, err := h.engine.ValidateClaimOptions(claimAll())
	require.ErrorIs(t, err, fees.ErrStalePrice)
	_, err = h.claim(h.members[0], claimAll(), big.NewInt(1))
	require.ErrorIs(t, err, fees.ErrStalePrice)
	require.Equal(t, KindOracle, ErrorKind(err))
}

func TestAdminControls(t *testing.T) {
	h := newHarness(t, feesEnabled(fees.OverflowRouteToPartner))
	require.ErrorIs(t, h.engine.Unpause(adminAddr), ErrNotPaused)
	require.NoError(t, h.engine.Pause(adminAddr))
	require.ErrorIs(t, h.engine.Pause(adminAddr), ErrPaused)

	_, err := h.claim(h.members[0], claimAll(), nil)
	require.ErrorIs(t, err, ErrPaused)

	require.ErrorIs(t, h.engine.TransferOwnership(adminAddr, [20]byte{}), ErrZeroAddress)
	require.ErrorIs(t, h.engine.TransferOwnership(relayerAddr, relayerAddr), ErrNotAdmin)
	next := [20]byte{0xa2}
	require.NoError(t, h.engine.TransferOwnership(adminAddr, next))
	require.ErrorIs(t, h.engine.Unpause(adminAddr), ErrNotAdmin)
	require.NoError(t, h.engine.Unpause(next))
	require.Equal(t, next, h.instance().Admin)

	require.ErrorIs(t, h.engine.UpdatePartnerOverflow(next, [20]byte{}), fees.ErrZeroAddress)
	require.ErrorIs(t, h.engine.UpdatePartnerOverflow(adminAddr, [20]byte{0x01}), ErrNotAdmin)

	_, err = h.engine.EndAirdrop(next, [20]byte{})
	require.ErrorIs(t, err, ErrZeroAddress)

	var seen []string
	for _, evt := range h.rec.Events() {
		seen = append(seen, evt.EventType())
	}
	require.Equal(t, []string{
		events.TypeAirdropPaused,
		events.TypeAirdropOwnershipTransferred,
		events.TypeAirdropUnpaused,
	}, seen)
}

func TestErrorKind(t *testing.T) {
	require.Equal(t, KindNone, ErrorKind(nil))
	require.Equal(t, KindAccess, ErrorKind(ErrNotDeployer))
	require.Equal(t, KindResource, ErrorKind(fees.ErrInsufficientFee))
	require.Equal(t, KindOracle, ErrorKind(fees.ErrInvalidFeedDecimals))
	require.Equal(t, KindState, ErrorKind(ErrAlreadyClaimed))
	require.Equal(t, KindInternal, ErrorKind(errors.New("disk on fire")))
}
