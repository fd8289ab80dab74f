package fees

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/require"

	"claimdrop/core/state"
	"claimdrop/native/bank"
)

var (
	holder   = [20]byte{0x10}
	payer    = [20]byte{0x20}
	treasury = [20]byte{0x30}
	partner  = [20]byte{0x40}
	protocol = [20]byte{0x50}
)

type harness struct {
	engine *Engine
	ledger *bank.Ledger
	feed   *ManualFeed
	now    int64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mgr := state.NewManager(nil)
	ledger := bank.NewLedger(mgr)
	feed := NewManualFeed(8)
	now := int64(1_700_000_000)
	feed.Push(new(big.Int).Mul(big.NewInt(3000), big.NewInt(100_000_000)), uint64(now))

	engine := NewEngine()
	engine.SetBank(ledger)
	engine.SetPriceFeed(feed)
	engine.SetNowFunc(func() int64 { return now })
	return &harness{engine: engine, ledger: ledger, feed: feed, now: now}
}

// fund moves payment into holder's custody the way an instance receives the
// attached value before collection.
func (h *harness) fund(t *testing.T, amount *big.Int) {
	t.Helper()
	require.NoError(t, h.ledger.Mint(bank.NativeAsset, holder, amount))
}

func (h *harness) balance(t *testing.T, addr [20]byte) *big.Int {
	t.Helper()
	bal, err := h.ledger.Balance(bank.NativeAsset, addr)
	require.NoError(t, err)
	return bal
}

func cappedConfig(mode OverflowMode) *Config {
	return &Config{
		MaxPriceAge:      3600,
		ProtocolTreasury: treasury,
		ProtocolOverflow: protocol,
		PartnerOverflow:  partner,
		FeeClaimUsdCents: 100,
		FeeStakeUsdCents: 200,
		FeeCapUsdCents:   500,
		OverflowMode:     mode,
	}
}

func TestConvertUsdCentsRoundsUp(t *testing.T) {
	price := new(big.Int).Mul(big.NewInt(3000), big.NewInt(100_000_000))
	got, err := ConvertUsdCents(100, price, 8)
	require.NoError(t, err)
	want, _ := new(big.Int).SetString("333333333333334", 10)
	require.Zerof(t, got.Cmp(want), "got %s", got)

	exact, err := ConvertUsdCents(100, big.NewInt(100_000_000), 8)
	require.NoError(t, err)
	require.Zero(t, exact.Cmp(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)), "one dollar at $1 is one whole unit")

	_, err = ConvertUsdCents(100, price, 19)
	require.ErrorIs(t, err, ErrInvalidFeedDecimals)
	_, err = ConvertUsdCents(100, big.NewInt(0), 8)
	require.ErrorIs(t, err, ErrBadPrice)
}

func TestReadPriceGuards(t *testing.T) {
	feed := NewManualFeed(8)
	_, err := ReadPrice(feed, 100, 60)
	require.ErrorIs(t, err, ErrPriceFeedUnavailable)
	_, err = ReadPrice(nil, 100, 60)
	require.ErrorIs(t, err, ErrPriceFeedUnavailable)

	feed.Push(big.NewInt(-5), 100)
	_, err = ReadPrice(feed, 100, 60)
	require.ErrorIs(t, err, ErrBadPrice)

	feed.SetRoundData(RoundData{RoundID: 9, Answer: big.NewInt(5), UpdatedAt: 100, AnsweredInRound: 8})
	_, err = ReadPrice(feed, 100, 60)
	require.ErrorIs(t, err, ErrBadPrice)

	feed.Push(big.NewInt(5), 100)
	_, err = ReadPrice(feed, 161, 60)
	require.ErrorIs(t, err, ErrStalePrice)
	price, err := ReadPrice(feed, 160, 60)
	require.NoError(t, err)
	require.EqualValues(t, 10, price.RoundID)

	_, err = ReadPrice(feed, 50, 60)
	require.NoError(t, err, "future timestamps are not stale")

	feed.SetDecimals(19)
	_, err = ReadPrice(feed, 100, 60)
	require.ErrorIs(t, err, ErrInvalidFeedDecimals)
}

func TestDisabledFeeRefundsWithoutOracle(t *testing.T) {
	h := newHarness(t)
	h.engine.SetPriceFeed(nil)
	cfg := &Config{FeeStakeUsdCents: 200, MaxPriceAge: 60, ProtocolTreasury: treasury}
	h.fund(t, big.NewInt(77))

	receipt, err := h.engine.Collect(cfg, false, holder, payer, big.NewInt(77))
	require.NoError(t, err)
	require.True(t, receipt.Disabled)
	require.Zero(t, receipt.Refund.Cmp(big.NewInt(77)))
	require.Zero(t, h.balance(t, payer).Cmp(big.NewInt(77)))
	require.Zero(t, cfg.TotalFeeUsdCents)
}

func TestCollectRefundsDustAndRejectsUnderpayment(t *testing.T) {
	h := newHarness(t)
	cfg := cappedConfig(OverflowCancel)
	required, err := h.engine.RequiredFee(cfg, false)
	require.NoError(t, err)

	under := new(big.Int).Sub(required, big.NewInt(1))
	h.fund(t, under)
	_, err = h.engine.Collect(cfg, false, holder, payer, under)
	require.ErrorIs(t, err, ErrInsufficientFee)
	require.Zero(t, h.balance(t, treasury).Sign(), "no transfer before the payment check")
	require.Zero(t, cfg.TotalFeeUsdCents)

	over := new(big.Int).Add(required, big.NewInt(1234))
	h.fund(t, new(big.Int).Sub(over, under))
	receipt, err := h.engine.Collect(cfg, false, holder, payer, over)
	require.NoError(t, err)
	require.Equal(t, treasury, receipt.Receiver)
	require.Zero(t, h.balance(t, treasury).Cmp(required))
	require.Zero(t, h.balance(t, payer).Cmp(big.NewInt(1234)))
	require.Zero(t, h.balance(t, holder).Sign())
	require.EqualValues(t, 100, cfg.TotalFeeUsdCents)
}

func TestCapExhaustionRouting(t *testing.T) {
	cases := []struct {
		mode     OverflowMode
		receiver [20]byte
		waived   bool
	}{
		{mode: OverflowCancel, waived: true},
		{mode: OverflowRouteToPartner, receiver: partner},
		{mode: OverflowRouteToProtocol, receiver: protocol},
	}
	for _, tc := range cases {
		t.Run(tc.mode.String(), func(t *testing.T) {
			h := newHarness(t)
			cfg := cappedConfig(tc.mode)
			stakeFee, err := h.engine.RequiredFee(cfg, true)
			require.NoError(t, err)

			for i, stake := range []bool{false, true, true} {
				fee, err := h.engine.RequiredFee(cfg, stake)
				require.NoError(t, err)
				h.fund(t, fee)
				receipt, err := h.engine.Collect(cfg, stake, holder, payer, fee)
				require.NoError(t, err)
				require.Falsef(t, receipt.PostCap, "payment %d", i)
				require.Equal(t, treasury, receipt.Receiver)
			}
			require.EqualValues(t, 500, cfg.TotalFeeUsdCents)
			require.Zero(t, cfg.RemainingUsdCents())

			h.fund(t, stakeFee)
			receipt, err := h.engine.Collect(cfg, true, holder, payer, stakeFee)
			require.NoError(t, err)
			require.True(t, receipt.PostCap)
			require.EqualValues(t, 500, cfg.TotalFeeUsdCents, "post-cap collections do not advance the counter")
			if tc.waived {
				require.True(t, receipt.Waived)
				require.Zero(t, h.balance(t, payer).Cmp(stakeFee))
				return
			}
			require.Equal(t, tc.receiver, receipt.Receiver)
			require.Zero(t, h.balance(t, tc.receiver).Cmp(stakeFee))
		})
	}
}

func TestCapCrossingCallIsPreCap(t *testing.T) {
	h := newHarness(t)
	cfg := cappedConfig(OverflowRouteToPartner)
	cfg.TotalFeeUsdCents = 400

	fee, err := h.engine.RequiredFee(cfg, true)
	require.NoError(t, err)
	h.fund(t, fee)
	receipt, err := h.engine.Collect(cfg, true, holder, payer, fee)
	require.NoError(t, err)
	require.False(t, receipt.PostCap)
	require.Equal(t, treasury, receipt.Receiver)
	require.EqualValues(t, 600, cfg.TotalFeeUsdCents)
	require.True(t, cfg.PostCap())
}

func TestStalePriceAbortsCollection(t *testing.T) {
	h := newHarness(t)
	cfg := cappedConfig(OverflowCancel)
	h.engine.SetNowFunc(func() int64 { return h.now + 7200 })
	h.fund(t, big.NewInt(1))
	_, err := h.engine.Collect(cfg, false, holder, payer, big.NewInt(1))
	require.ErrorIs(t, err, ErrStalePrice)
	require.Zero(t, h.balance(t, payer).Sign())
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, cappedConfig(OverflowRouteToPartner).Validate())
	require.NoError(t, (&Config{}).Validate(), "fees disabled needs no receivers")

	cfg := cappedConfig(OverflowRouteToPartner)
	cfg.PartnerOverflow = [20]byte{}
	require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = cappedConfig(OverflowCancel)
	cfg.MaxPriceAge = 0
	require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = cappedConfig(OverflowCancel)
	cfg.ProtocolTokenShareBips = MaxBips + 1
	require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = cappedConfig(OverflowMode(9))
	require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

func TestUpdatePartnerOverflow(t *testing.T) {
	cfg := cappedConfig(OverflowRouteToPartner)
	_, err := cfg.UpdatePartnerOverflow([20]byte{})
	require.ErrorIs(t, err, ErrZeroAddress)

	previous, err := cfg.UpdatePartnerOverflow([20]byte{0x99})
	require.NoError(t, err)
	require.Equal(t, partner, previous)
	require.Equal(t, [20]byte{0x99}, cfg.OverflowReceiver())
}

func TestOverflowModeCodecs(t *testing.T) {
	raw, err := json.Marshal(OverflowRouteToProtocol)
	require.NoError(t, err)
	require.JSONEq(t, `"route_to_protocol"`, string(raw))

	var decoded OverflowMode
	require.NoError(t, json.Unmarshal([]byte(`"routeToPartner"`), &decoded))
	require.Equal(t, OverflowRouteToPartner, decoded)

	var doc struct {
		Mode OverflowMode `toml:"mode"`
	}
	_, err = toml.Decode(`mode = "route-to-protocol"`, &doc)
	require.NoError(t, err)
	require.Equal(t, OverflowRouteToProtocol, doc.Mode)

	_, err = ParseOverflowMode("sideways")
	require.Error(t, err)
	_, err = OverflowMode(7).MarshalText()
	require.Error(t, err)
}
