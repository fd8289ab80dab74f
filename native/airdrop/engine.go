package airdrop

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"claimdrop/core/events"
	"claimdrop/native/bank"
	"claimdrop/native/fees"
)

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	Atomic(fn func() error) error
	View(fn func() error) error
}

// RoleRegistry is the deploying authority's role store.
type RoleRegistry interface {
	HasRole(role string, addr []byte) bool
}

// Bank moves the airdrop token and native fee payments.
type Bank interface {
	Balance(asset string, addr [20]byte) (*big.Int, error)
	Transfer(asset string, from, to [20]byte, amount *big.Int) error
	Approve(asset string, owner, spender [20]byte, amount *big.Int) error
}

// StakingCollaborator locks tokens for a beneficiary. StakeFor pulls funds
// from funder through a standing allowance; it never receives a push.
type StakingCollaborator interface {
	Address() [20]byte
	StakeFor(funder, staker [20]byte, amount *big.Int, duration uint64) (uint64, error)
}

// FeeEngine quotes and settles per-claim fees.
type FeeEngine interface {
	Quote(cfg *fees.Config, stakeSelected bool) (fees.Quote, error)
	Collect(cfg *fees.Config, stakeSelected bool, holder, payer [20]byte, payment *big.Int) (fees.Receipt, error)
}

// Engine is the claim ledger of a single airdrop instance. Every mutating
// operation runs as one atomic unit on the shared state; events are only
// released once the unit has committed.
type Engine struct {
	address  [20]byte
	deployer [20]byte
	chainID  *big.Int
	state    engineState
	roles    RoleRegistry
	bank     Bank
	staking  StakingCollaborator
	fees     FeeEngine
	emitter  events.Emitter
	nowFn    func() int64
}

// NewEngine creates the ledger for the instance living at address. Only
// deployer may initialize it.
func NewEngine(address, deployer [20]byte) *Engine {
	return &Engine{
		address:  address,
		deployer: deployer,
		chainID:  big.NewInt(1),
		emitter:  events.NoopEmitter{},
		nowFn:    func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend. When the backend also exposes a role
// registry it is used unless SetRoles overrides it.
func (e *Engine) SetState(state engineState) {
	e.state = state
	if registry, ok := state.(RoleRegistry); ok && e.roles == nil {
		e.roles = registry
	}
}

func (e *Engine) SetRoles(registry RoleRegistry) { e.roles = registry }

func (e *Engine) SetBank(b Bank) { e.bank = b }

func (e *Engine) SetStaking(collaborator StakingCollaborator) { e.staking = collaborator }

func (e *Engine) SetFeeEngine(engine FeeEngine) { e.fees = engine }

// SetChainID configures the chain id bound into claim signatures.
func (e *Engine) SetChainID(id *big.Int) {
	if id == nil {
		e.chainID = big.NewInt(1)
		return
	}
	e.chainID = new(big.Int).Set(id)
}

func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) Address() [20]byte { return e.address }

func (e *Engine) Deployer() [20]byte { return e.deployer }

func (e *Engine) ChainID() *big.Int { return new(big.Int).Set(e.chainID) }

func (e *Engine) now() uint64 {
	ts := e.nowFn()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func (e *Engine) keyPrefix() string {
	return "airdrop/" + hex.EncodeToString(e.address[:]) + "/"
}

func (e *Engine) instanceKey() []byte {
	return []byte(e.keyPrefix() + "instance")
}

func (e *Engine) claimedKey(beneficiary [20]byte) []byte {
	return append([]byte(e.keyPrefix()+"claimed/"), beneficiary[:]...)
}

func (e *Engine) nonceKey(beneficiary [20]byte, nonce [32]byte) []byte {
	key := append([]byte(e.keyPrefix()+"nonce/"), beneficiary[:]...)
	return append(key, nonce[:]...)
}

// atomic runs fn as one unit and releases the events it staged only after
// the unit committed.
func (e *Engine) atomic(fn func(emit func(events.Event)) error) error {
	if e.state == nil {
		return errNilState
	}
	var pending []events.Event
	emit := func(evt events.Event) { pending = append(pending, evt) }
	if err := e.state.Atomic(func() error { return fn(emit) }); err != nil {
		return err
	}
	for _, evt := range pending {
		e.emitter.Emit(evt)
	}
	return nil
}

func (e *Engine) view(fn func() error) error {
	if e.state == nil {
		return errNilState
	}
	return e.state.View(fn)
}

func (e *Engine) loadInstance() (*Instance, error) {
	inst := new(Instance)
	ok, err := e.state.KVGet(e.instanceKey(), inst)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotInitialized
	}
	return inst, nil
}

func (e *Engine) storeInstance(inst *Instance) error {
	return e.state.KVPut(e.instanceKey(), inst)
}

func (e *Engine) claimedAmount(beneficiary [20]byte) (*big.Int, error) {
	amount := new(big.Int)
	ok, err := e.state.KVGet(e.claimedKey(beneficiary), amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

func (e *Engine) nonceUsed(beneficiary [20]byte, nonce [32]byte) (bool, error) {
	var used bool
	ok, err := e.state.KVGet(e.nonceKey(beneficiary, nonce), &used)
	if err != nil {
		return false, err
	}
	return ok && used, nil
}

func (e *Engine) markNonce(beneficiary [20]byte, nonce [32]byte) error {
	return e.state.KVPut(e.nonceKey(beneficiary, nonce), true)
}

// Initialize configures the instance. It may only be called once, by the
// deploying authority, and leaves the instance active but paused. When a
// staking collaborator is configured it receives its one and only standing
// allowance here.
func (e *Engine) Initialize(caller [20]byte, params InitParams, feeCfg InitFeeConfig) error {
	if caller != e.deployer {
		return ErrNotDeployer
	}
	if err := e.validateInit(params, feeCfg); err != nil {
		return err
	}
	return e.atomic(func(emit func(events.Event)) error {
		if _, err := e.loadInstance(); err == nil {
			return ErrAlreadyInitialized
		} else if !errors.Is(err, ErrNotInitialized) {
			return err
		}
		inst := &Instance{
			Address:                        e.address,
			Deployer:                       e.deployer,
			Admin:                          params.Admin,
			Root:                           params.Root,
			Asset:                          normalizeAsset(params.Asset),
			Staking:                        params.Staking,
			Multiplier:                     params.Multiplier,
			MaxBonus:                       cloneAmount(params.MaxBonus),
			MinLockupDuration:              params.MinLockupDuration,
			MinLockupDurationForMultiplier: params.MinLockupDurationForMultiplier,
			Active:                         true,
			Paused:                         true,
			TotalClaimed:                   big.NewInt(0),
			TotalStaked:                    big.NewInt(0),
			TotalBonusTokens:               big.NewInt(0),
			ProtocolAccruedTokens:          big.NewInt(0),
			Fees:                           feeCfg.config(),
			InitializedAt:                  e.now(),
		}
		if inst.StakingEnabled() {
			if err := e.bank.Approve(inst.Asset, e.address, inst.Staking, bank.MaxAllowance); err != nil {
				return fmt.Errorf("airdrop: grant staking allowance: %w", err)
			}
		}
		if err := e.storeInstance(inst); err != nil {
			return err
		}
		emit(events.AirdropInitialized{
			Instance:   e.address,
			Admin:      inst.Admin,
			Root:       inst.Root,
			Asset:      inst.Asset,
			Staking:    inst.Staking,
			Multiplier: inst.Multiplier,
			MaxBonus:   cloneAmount(inst.MaxBonus),
		})
		return nil
	})
}

func (e *Engine) validateInit(params InitParams, feeCfg InitFeeConfig) error {
	if e.bank == nil {
		return errNilBank
	}
	if e.fees == nil {
		return errNilFees
	}
	if params.Admin == ([20]byte{}) {
		return fmt.Errorf("%w: admin required", ErrInvalidParams)
	}
	if params.Root == ([32]byte{}) {
		return fmt.Errorf("%w: allocation root required", ErrInvalidParams)
	}
	if normalizeAsset(params.Asset) == "" {
		return fmt.Errorf("%w: token asset required", ErrInvalidParams)
	}
	if params.MaxBonus != nil && params.MaxBonus.Sign() < 0 {
		return fmt.Errorf("%w: max bonus must not be negative", ErrInvalidParams)
	}
	if params.Staking != ([20]byte{}) {
		if e.staking == nil {
			return fmt.Errorf("%w: staking collaborator not attached", ErrInvalidParams)
		}
		if e.staking.Address() != params.Staking {
			return fmt.Errorf("%w: staking collaborator address mismatch", ErrInvalidParams)
		}
	}
	cfg := feeCfg.config()
	return cfg.Validate()
}

// Instance returns a snapshot of the instance aggregate.
func (e *Engine) Instance() (*Instance, error) {
	var inst *Instance
	err := e.view(func() error {
		loaded, err := e.loadInstance()
		inst = loaded
		return err
	})
	return inst, err
}

// ClaimedAmount returns the allocation consumed by beneficiary, zero when the
// beneficiary has not claimed.
func (e *Engine) ClaimedAmount(beneficiary [20]byte) (*big.Int, error) {
	var amount *big.Int
	err := e.view(func() error {
		loaded, err := e.claimedAmount(beneficiary)
		amount = loaded
		return err
	})
	return amount, err
}

// IsNonceUsed reports whether nonce was consumed or cancelled by beneficiary.
func (e *Engine) IsNonceUsed(beneficiary [20]byte, nonce [32]byte) (bool, error) {
	var used bool
	err := e.view(func() error {
		loaded, err := e.nonceUsed(beneficiary, nonce)
		used = loaded
		return err
	})
	return used, err
}

// Balance returns the token balance held by the instance.
func (e *Engine) Balance() (*big.Int, error) {
	_, balance, err := e.InstanceWithBalance()
	return balance, err
}

// InstanceWithBalance loads the instance and its token balance from the same
// state view, so the balance always agrees with the instance totals.
func (e *Engine) InstanceWithBalance() (*Instance, *big.Int, error) {
	var (
		inst    *Instance
		balance *big.Int
	)
	err := e.view(func() error {
		loaded, err := e.loadInstance()
		if err != nil {
			return err
		}
		inst = loaded
		balance, err = e.bank.Balance(inst.Asset, e.address)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return inst, balance, nil
}

// DomainSeparator returns the signing domain hash of this instance.
func (e *Engine) DomainSeparator() ([32]byte, error) {
	return DomainSeparator(e.chainID, e.address)
}

// ClaimDigest returns the digest beneficiary must sign to authorize a claim.
func (e *Engine) ClaimDigest(beneficiary [20]byte, totalAllocation *big.Int, opts ClaimOptions, nonce [32]byte) ([32]byte, error) {
	return ClaimDigest(e.chainID, e.address, beneficiary, totalAllocation, opts, nonce)
}
