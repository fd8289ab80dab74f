package fees

import (
	"fmt"
	"math/big"
	"time"

	"github.com/holiman/uint256"

	"claimdrop/native/bank"
)

// Transferer moves native currency between accounts. It is satisfied by
// *bank.Ledger.
type Transferer interface {
	Transfer(asset string, from, to [20]byte, amount *big.Int) error
}

// Quote is the fee owed by one claim, evaluated against the counter value at
// call time.
type Quote struct {
	UsdCents uint64
	Amount   *big.Int
	Receiver [20]byte
	PostCap  bool
	Waived   bool
	Disabled bool
	Price    *Price
}

// Charged reports whether the quote moves any funds to a receiver.
func (q Quote) Charged() bool {
	return q.Amount != nil && q.Amount.Sign() > 0
}

// Receipt describes a completed collection.
type Receipt struct {
	Quote
	Paid   *big.Int
	Refund *big.Int
}

// Engine converts USD denominated fees into native currency and settles them.
type Engine struct {
	feed  PriceFeed
	bank  Transferer
	asset string
	nowFn func() int64
}

// NewEngine constructs a fee engine settling in the native asset.
func NewEngine() *Engine {
	return &Engine{asset: bank.NativeAsset, nowFn: func() int64 { return time.Now().Unix() }}
}

func (e *Engine) SetPriceFeed(feed PriceFeed) { e.feed = feed }

func (e *Engine) SetBank(ledger Transferer) { e.bank = ledger }

// SetNowFunc overrides the clock used for oracle freshness checks.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) now() int64 {
	if e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// RequiredFee returns the native amount owed for the action without moving
// funds.
func (e *Engine) RequiredFee(cfg *Config, stakeSelected bool) (*big.Int, error) {
	quote, err := e.Quote(cfg, stakeSelected)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(quote.Amount), nil
}

// Quote evaluates the fee schedule. A disabled fee and a waived post-cap fee
// never consult the oracle.
func (e *Engine) Quote(cfg *Config, stakeSelected bool) (Quote, error) {
	if cfg == nil {
		return Quote{}, fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	usd := cfg.UsdCentsFor(stakeSelected)
	if usd == 0 {
		return Quote{Amount: big.NewInt(0), Disabled: true}, nil
	}
	postCap := cfg.PostCap()
	if postCap && cfg.OverflowMode == OverflowCancel {
		return Quote{UsdCents: usd, Amount: big.NewInt(0), PostCap: true, Waived: true}, nil
	}
	price, err := ReadPrice(e.feed, e.now(), cfg.MaxPriceAge)
	if err != nil {
		return Quote{}, err
	}
	amount, err := ConvertUsdCents(usd, price.Answer, price.Decimals)
	if err != nil {
		return Quote{}, err
	}
	receiver := cfg.ProtocolTreasury
	if postCap {
		receiver = cfg.OverflowReceiver()
	}
	return Quote{
		UsdCents: usd,
		Amount:   amount,
		Receiver: receiver,
		PostCap:  postCap,
		Price:    &price,
	}, nil
}

// Collect settles the fee out of payment, which holder already custodies on
// behalf of payer. Exactly the required amount goes to the receiver and any
// excess is refunded to payer. Pre-cap collections advance the cumulative
// counter in cfg; post-cap collections leave it untouched.
func (e *Engine) Collect(cfg *Config, stakeSelected bool, holder, payer [20]byte, payment *big.Int) (Receipt, error) {
	if payment == nil {
		payment = big.NewInt(0)
	}
	if payment.Sign() < 0 {
		return Receipt{}, fmt.Errorf("%w: negative payment", ErrInsufficientFee)
	}
	quote, err := e.Quote(cfg, stakeSelected)
	if err != nil {
		return Receipt{}, err
	}
	if payment.Cmp(quote.Amount) < 0 {
		return Receipt{}, fmt.Errorf("%w: required %s, supplied %s", ErrInsufficientFee, quote.Amount, payment)
	}
	if e.bank == nil && payment.Sign() > 0 {
		return Receipt{}, fmt.Errorf("fees: bank not configured")
	}
	if quote.Charged() {
		if err := e.bank.Transfer(e.asset, holder, quote.Receiver, quote.Amount); err != nil {
			return Receipt{}, fmt.Errorf("fees: pay receiver: %w", err)
		}
	}
	refund := new(big.Int).Sub(payment, quote.Amount)
	if refund.Sign() > 0 {
		if err := e.bank.Transfer(e.asset, holder, payer, refund); err != nil {
			return Receipt{}, fmt.Errorf("fees: refund: %w", err)
		}
	}
	if quote.Charged() && !quote.PostCap {
		cfg.TotalFeeUsdCents += quote.UsdCents
	}
	return Receipt{Quote: quote, Paid: new(big.Int).Set(quote.Amount), Refund: refund}, nil
}

// ConvertUsdCents returns ceil(usdCents/100 * 10^(18+decimals) / price), the
// native amount worth usdCents at the given feed price.
func ConvertUsdCents(usdCents uint64, price *big.Int, decimals uint8) (*big.Int, error) {
	if decimals > MaxFeedDecimals {
		return nil, fmt.Errorf("%w: %d", ErrInvalidFeedDecimals, decimals)
	}
	if price == nil || price.Sign() <= 0 {
		return nil, fmt.Errorf("%w: non-positive answer", ErrBadPrice)
	}
	p, overflow := uint256.FromBig(price)
	if overflow {
		return nil, fmt.Errorf("%w: price exceeds 256 bits", ErrBadPrice)
	}
	scale := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(16+decimals)))
	numerator, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(usdCents), scale)
	if overflow {
		return nil, ErrConversionOverflow
	}
	quotient, remainder := new(uint256.Int).DivMod(numerator, p, new(uint256.Int))
	if !remainder.IsZero() {
		quotient.AddUint64(quotient, 1)
	}
	return quotient.ToBig(), nil
}
