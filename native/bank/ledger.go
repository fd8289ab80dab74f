package bank

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// NativeAsset is the ledger symbol of the chain's native currency, the asset
// used for fee payments.
const NativeAsset = "NATIVE"

var (
	balancePrefix   = []byte("bank/balance/")
	allowancePrefix = []byte("bank/allowance/")
)

var (
	ErrInvalidAmount         = errors.New("bank: amount must not be negative")
	ErrInvalidAsset          = errors.New("bank: asset symbol required")
	ErrInsufficientBalance   = errors.New("bank: insufficient balance")
	ErrInsufficientAllowance = errors.New("bank: insufficient allowance")
)

// MaxAllowance is the unlimited allowance sentinel (2^256 - 1). Allowances at
// this value are never decremented by TransferFrom.
var MaxAllowance = new(uint256.Int).SetAllOne().ToBig()

type ledgerState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Ledger tracks balances and spending allowances for the native currency and
// every fungible asset hosted on the same state.
type Ledger struct {
	state ledgerState
}

// NewLedger binds a ledger to the supplied state backend.
func NewLedger(state ledgerState) *Ledger {
	return &Ledger{state: state}
}

func normalizeAsset(asset string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(asset))
	if trimmed == "" {
		return "", ErrInvalidAsset
	}
	return trimmed, nil
}

func balanceKey(asset string, addr [20]byte) []byte {
	key := make([]byte, 0, len(balancePrefix)+len(asset)+1+len(addr))
	key = append(key, balancePrefix...)
	key = append(key, asset...)
	key = append(key, '/')
	return append(key, addr[:]...)
}

func allowanceKey(asset string, owner, spender [20]byte) []byte {
	key := make([]byte, 0, len(allowancePrefix)+len(asset)+1+40)
	key = append(key, allowancePrefix...)
	key = append(key, asset...)
	key = append(key, '/')
	key = append(key, owner[:]...)
	return append(key, spender[:]...)
}

func (l *Ledger) load(key []byte) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, fmt.Errorf("bank: state not configured")
	}
	value := new(big.Int)
	ok, err := l.state.KVGet(key, value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return value, nil
}

func (l *Ledger) store(key []byte, value *big.Int) error {
	if value == nil {
		value = big.NewInt(0)
	}
	return l.state.KVPut(key, value)
}

func checkAmount(amount *big.Int) (*big.Int, error) {
	if amount == nil {
		return big.NewInt(0), nil
	}
	if amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	return new(big.Int).Set(amount), nil
}

// Balance returns the balance held by addr.
func (l *Ledger) Balance(asset string, addr [20]byte) (*big.Int, error) {
	normalized, err := normalizeAsset(asset)
	if err != nil {
		return nil, err
	}
	return l.load(balanceKey(normalized, addr))
}

// Mint credits addr out of thin air. Used by genesis funding and tests.
func (l *Ledger) Mint(asset string, to [20]byte, amount *big.Int) error {
	normalized, err := normalizeAsset(asset)
	if err != nil {
		return err
	}
	amt, err := checkAmount(amount)
	if err != nil {
		return err
	}
	balance, err := l.load(balanceKey(normalized, to))
	if err != nil {
		return err
	}
	return l.store(balanceKey(normalized, to), balance.Add(balance, amt))
}

// Transfer moves amount from one account to another. Zero transfers succeed
// without touching state.
func (l *Ledger) Transfer(asset string, from, to [20]byte, amount *big.Int) error {
	normalized, err := normalizeAsset(asset)
	if err != nil {
		return err
	}
	amt, err := checkAmount(amount)
	if err != nil {
		return err
	}
	if amt.Sign() == 0 || from == to {
		if amt.Sign() > 0 {
			balance, err := l.load(balanceKey(normalized, from))
			if err != nil {
				return err
			}
			if balance.Cmp(amt) < 0 {
				return ErrInsufficientBalance
			}
		}
		return nil
	}
	fromBalance, err := l.load(balanceKey(normalized, from))
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amt) < 0 {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, normalized, fromBalance, amt)
	}
	toBalance, err := l.load(balanceKey(normalized, to))
	if err != nil {
		return err
	}
	if err := l.store(balanceKey(normalized, from), fromBalance.Sub(fromBalance, amt)); err != nil {
		return err
	}
	return l.store(balanceKey(normalized, to), toBalance.Add(toBalance, amt))
}

// Allowance returns how much spender may pull from owner.
func (l *Ledger) Allowance(asset string, owner, spender [20]byte) (*big.Int, error) {
	normalized, err := normalizeAsset(asset)
	if err != nil {
		return nil, err
	}
	return l.load(allowanceKey(normalized, owner, spender))
}

// Approve replaces the allowance spender holds over owner's balance.
func (l *Ledger) Approve(asset string, owner, spender [20]byte, amount *big.Int) error {
	normalized, err := normalizeAsset(asset)
	if err != nil {
		return err
	}
	amt, err := checkAmount(amount)
	if err != nil {
		return err
	}
	if amt.Cmp(MaxAllowance) > 0 {
		amt = new(big.Int).Set(MaxAllowance)
	}
	return l.store(allowanceKey(normalized, owner, spender), amt)
}

// TransferFrom lets spender move amount out of owner's balance against a prior
// allowance.
func (l *Ledger) TransferFrom(asset string, spender, owner, to [20]byte, amount *big.Int) error {
	normalized, err := normalizeAsset(asset)
	if err != nil {
		return err
	}
	amt, err := checkAmount(amount)
	if err != nil {
		return err
	}
	allowance, err := l.load(allowanceKey(normalized, owner, spender))
	if err != nil {
		return err
	}
	if allowance.Cmp(amt) < 0 {
		return fmt.Errorf("%w: %s allowance %s, needs %s", ErrInsufficientAllowance, normalized, allowance, amt)
	}
	if allowance.Cmp(MaxAllowance) != 0 && amt.Sign() > 0 {
		if err := l.store(allowanceKey(normalized, owner, spender), allowance.Sub(allowance, amt)); err != nil {
			return err
		}
	}
	return l.Transfer(normalized, owner, to, amt)
}
