package staking

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"claimdrop/core/events"
)

var (
	ErrNilState         = errors.New("staking: state not configured")
	ErrNilBank          = errors.New("staking: bank not configured")
	ErrInvalidAmount    = errors.New("staking: amount must be positive")
	ErrInvalidStaker    = errors.New("staking: staker must not be the zero address")
	ErrLockupTooShort   = errors.New("staking: lockup below vault minimum")
	ErrStakeNotFound    = errors.New("staking: stake not found")
	ErrNotStakeOwner    = errors.New("staking: caller does not own stake")
	ErrNothingClaimable = errors.New("staking: nothing claimable")
)

var (
	stakePrefix   = []byte("staking/stake/")
	accountPrefix = []byte("staking/account/")
	sequenceKey   = []byte("staking/sequence")
)

type vaultState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	AfterCommit(fn func())
}

// Ledger is the token movement surface the vault needs.
type Ledger interface {
	Transfer(asset string, from, to [20]byte, amount *big.Int) error
	TransferFrom(asset string, spender, owner, to [20]byte, amount *big.Int) error
}

// Vault locks tokens on behalf of stakers. Funds always arrive by pulling
// against an allowance the funder granted to the vault address.
type Vault struct {
	address     [20]byte
	asset       string
	mode        Mode
	minDuration uint64
	state       vaultState
	bank        Ledger
	emitter     events.Emitter
	nowFn       func() int64
}

// NewVault creates a vault holding asset under address.
func NewVault(address [20]byte, asset string, mode Mode) *Vault {
	return &Vault{
		address: address,
		asset:   strings.ToUpper(strings.TrimSpace(asset)),
		mode:    mode,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

func (v *Vault) SetState(state vaultState) { v.state = state }

func (v *Vault) SetBank(ledger Ledger) { v.bank = ledger }

// SetMinDuration configures the shortest lockup the vault accepts.
func (v *Vault) SetMinDuration(seconds uint64) { v.minDuration = seconds }

func (v *Vault) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		v.emitter = events.NoopEmitter{}
		return
	}
	v.emitter = emitter
}

func (v *Vault) SetNowFunc(now func() int64) {
	if now == nil {
		v.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	v.nowFn = now
}

func (v *Vault) Address() [20]byte { return v.address }

func (v *Vault) Asset() string { return v.asset }

func (v *Vault) Mode() Mode { return v.mode }

func (v *Vault) MinDuration() uint64 { return v.minDuration }

func (v *Vault) now() uint64 {
	ts := v.nowFn()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

// emit releases evt once the enclosing unit commits.
func (v *Vault) emit(evt events.Event) {
	if v.emitter == nil || v.state == nil {
		return
	}
	emitter := v.emitter
	v.state.AfterCommit(func() { emitter.Emit(evt) })
}

func stakeKey(id uint64) []byte {
	return append(append([]byte{}, stakePrefix...), strconv.FormatUint(id, 10)...)
}

func accountKey(addr [20]byte) []byte {
	return append(append([]byte{}, accountPrefix...), addr[:]...)
}

// StakeFor pulls amount from funder and locks it for staker. The funder must
// have approved the vault address beforehand.
func (v *Vault) StakeFor(funder, staker [20]byte, amount *big.Int, duration uint64) (uint64, error) {
	if v.state == nil {
		return 0, ErrNilState
	}
	if v.bank == nil {
		return 0, ErrNilBank
	}
	if amount == nil || amount.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}
	if staker == ([20]byte{}) {
		return 0, ErrInvalidStaker
	}
	if duration < v.minDuration {
		return 0, fmt.Errorf("%w: %d < %d", ErrLockupTooShort, duration, v.minDuration)
	}
	if err := v.bank.TransferFrom(v.asset, v.address, funder, v.address, amount); err != nil {
		return 0, fmt.Errorf("staking: pull funds: %w", err)
	}
	var seq uint64
	if _, err := v.state.KVGet(sequenceKey, &seq); err != nil {
		return 0, err
	}
	seq++
	stake := &Stake{
		ID:       seq,
		Owner:    staker,
		Funder:   funder,
		Amount:   new(big.Int).Set(amount),
		Claimed:  big.NewInt(0),
		Start:    v.now(),
		Duration: duration,
	}
	if err := v.state.KVPut(stakeKey(seq), stake); err != nil {
		return 0, err
	}
	ids, err := v.stakeIDs(staker)
	if err != nil {
		return 0, err
	}
	if err := v.state.KVPut(accountKey(staker), append(ids, seq)); err != nil {
		return 0, err
	}
	if err := v.state.KVPut(sequenceKey, seq); err != nil {
		return 0, err
	}
	v.emit(events.StakeCreated{
		Vault:    v.address,
		StakeID:  seq,
		Staker:   staker,
		Funder:   funder,
		Amount:   stake.Amount,
		Duration: duration,
		Start:    stake.Start,
	})
	return seq, nil
}

func (v *Vault) stakeIDs(account [20]byte) ([]uint64, error) {
	var ids []uint64
	if _, err := v.state.KVGet(accountKey(account), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// Stake loads a single stake.
func (v *Vault) Stake(id uint64) (*Stake, error) {
	if v.state == nil {
		return nil, ErrNilState
	}
	stake := new(Stake)
	ok, err := v.state.KVGet(stakeKey(id), stake)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrStakeNotFound
	}
	return stake, nil
}

// Stakes lists every stake owned by account.
func (v *Vault) Stakes(account [20]byte) ([]*Stake, error) {
	if v.state == nil {
		return nil, ErrNilState
	}
	ids, err := v.stakeIDs(account)
	if err != nil {
		return nil, err
	}
	out := make([]*Stake, 0, len(ids))
	for _, id := range ids {
		stake, err := v.Stake(id)
		if err != nil {
			return nil, err
		}
		out = append(out, stake)
	}
	return out, nil
}

// Claimable reports the vested, unclaimed amount per stake. A zero stakeID
// selects every stake owned by account.
func (v *Vault) Claimable(stakeID uint64, account [20]byte) ([]uint64, []*big.Int, error) {
	var stakes []*Stake
	if stakeID == 0 {
		all, err := v.Stakes(account)
		if err != nil {
			return nil, nil, err
		}
		stakes = all
	} else {
		stake, err := v.Stake(stakeID)
		if err != nil {
			return nil, nil, err
		}
		if stake.Owner != account {
			return nil, nil, ErrNotStakeOwner
		}
		stakes = []*Stake{stake}
	}
	now := v.now()
	ids := make([]uint64, 0, len(stakes))
	amounts := make([]*big.Int, 0, len(stakes))
	for _, stake := range stakes {
		ids = append(ids, stake.ID)
		amounts = append(amounts, stake.Claimable(v.mode, now))
	}
	return ids, amounts, nil
}

// Claim releases everything vested on the selected stakes to account and
// returns the total paid out.
func (v *Vault) Claim(stakeID uint64, account [20]byte) (*big.Int, error) {
	if v.bank == nil {
		return nil, ErrNilBank
	}
	ids, amounts, err := v.Claimable(stakeID, account)
	if err != nil {
		return nil, err
	}
	total := big.NewInt(0)
	for i, id := range ids {
		amount := amounts[i]
		if amount.Sign() == 0 {
			continue
		}
		stake, err := v.Stake(id)
		if err != nil {
			return nil, err
		}
		stake.Claimed = new(big.Int).Add(cloneInt(stake.Claimed), amount)
		if err := v.state.KVPut(stakeKey(id), stake); err != nil {
			return nil, err
		}
		if err := v.bank.Transfer(v.asset, v.address, account, amount); err != nil {
			return nil, fmt.Errorf("staking: release stake %d: %w", id, err)
		}
		total.Add(total, amount)
		v.emit(events.StakeClaimed{Vault: v.address, StakeID: id, Staker: account, Amount: amount})
	}
	if total.Sign() == 0 {
		return nil, ErrNothingClaimable
	}
	return total, nil
}
