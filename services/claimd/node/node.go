package node

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"claimdrop/config"
	"claimdrop/core/events"
	"claimdrop/core/state"
	"claimdrop/native/airdrop"
	"claimdrop/native/bank"
	"claimdrop/native/fees"
	"claimdrop/native/staking"
	"claimdrop/storage"
)

var (
	// ErrNotOperator is returned when a price push comes from an account
	// outside the configured operator set.
	ErrNotOperator = errors.New("claimd: caller is not an oracle operator")
	// ErrStakingUnavailable is returned by stake routes when the instance has
	// no staking vault.
	ErrStakingUnavailable = errors.New("claimd: staking vault not configured")
	// ErrRootMismatch is returned when the configured root disagrees with the
	// allocations file.
	ErrRootMismatch = errors.New("claimd: allocation root does not match allocations file")
)

// Options override the defaults used by Open.
type Options struct {
	// DB replaces the LevelDB store under DataDir.
	DB       storage.Database
	Now      func() int64
	Emitters []events.Emitter
	Logger   *slog.Logger
}

// Node wires the ledger components of one airdrop instance.
type Node struct {
	cfg       *config.Config
	logger    *slog.Logger
	db        storage.Database
	state     *state.Manager
	bank      *bank.Ledger
	feed      *fees.ManualFeed
	fees      *fees.Engine
	vault     *staking.Vault
	engine    *airdrop.Engine
	tree      *airdrop.Tree
	operators map[[20]byte]struct{}
	nowFn     func() int64
	closeOnce sync.Once
}

// Open builds the ledger from cfg and initializes the instance on first boot.
func Open(cfg *config.Config, opts Options) (*Node, error) {
	if cfg == nil {
		return nil, fmt.Errorf("claimd: config required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	nowFn := opts.Now
	if nowFn == nil {
		nowFn = func() int64 { return time.Now().Unix() }
	}
	db := opts.DB
	if db == nil {
		opened, err := openState(cfg)
		if err != nil {
			return nil, err
		}
		db = opened
	}
	n := &Node{cfg: cfg, logger: logger, db: db, nowFn: nowFn}
	if err := n.wire(opts.Emitters); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := n.bootstrap(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return n, nil
}

func openState(cfg *config.Config) (storage.Database, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("claimd: create data dir: %w", err)
	}
	var (
		db  storage.Database
		err error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.StateBackend)) {
	case "bolt":
		db, err = storage.NewBoltDB(filepath.Join(cfg.DataDir, "state.bolt"))
	default:
		db, err = storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	}
	if err != nil {
		return nil, fmt.Errorf("claimd: open state: %w", err)
	}
	return db, nil
}

func (n *Node) wire(emitters []events.Emitter) error {
	cfg := n.cfg
	emitter := events.Fanout(emitters)

	n.state = state.NewManager(n.db)
	n.bank = bank.NewLedger(n.state)

	n.feed = fees.NewManualFeed(cfg.Oracle.Decimals)
	answer, err := cfg.OracleInitialAnswer()
	if err != nil {
		return err
	}
	if answer != nil {
		n.feed.Push(answer, uint64(n.nowFn()))
	}
	operators, err := cfg.OracleOperators()
	if err != nil {
		return err
	}
	n.operators = make(map[[20]byte]struct{}, len(operators))
	for _, op := range operators {
		n.operators[op] = struct{}{}
	}

	n.fees = fees.NewEngine()
	n.fees.SetBank(n.bank)
	n.fees.SetPriceFeed(n.feed)
	n.fees.SetNowFunc(n.nowFn)

	instanceAddr, err := cfg.InstanceAddress()
	if err != nil {
		return err
	}
	deployer, err := cfg.DeployerAddress()
	if err != nil {
		return err
	}
	n.engine = airdrop.NewEngine(instanceAddr, deployer)
	n.engine.SetState(n.state)
	n.engine.SetBank(n.bank)
	n.engine.SetFeeEngine(n.fees)
	n.engine.SetChainID(new(big.Int).SetUint64(cfg.ChainID))
	n.engine.SetEmitter(emitter)
	n.engine.SetNowFunc(n.nowFn)

	stakingAddr, err := cfg.StakingAddress()
	if err != nil {
		return err
	}
	if stakingAddr != ([20]byte{}) {
		mode, err := cfg.StakingMode()
		if err != nil {
			return err
		}
		n.vault = staking.NewVault(stakingAddr, cfg.Instance.Asset, mode)
		n.vault.SetState(n.state)
		n.vault.SetBank(n.bank)
		n.vault.SetMinDuration(cfg.Staking.MinDuration)
		n.vault.SetEmitter(emitter)
		n.vault.SetNowFunc(n.nowFn)
		n.engine.SetStaking(n.vault)
	}

	if path := strings.TrimSpace(cfg.Instance.AllocationsFile); path != "" {
		allocations, err := airdrop.LoadAllocations(path)
		if err != nil {
			return err
		}
		tree, err := airdrop.BuildTree(allocations)
		if err != nil {
			return fmt.Errorf("claimd: build allocation tree: %w", err)
		}
		n.tree = tree
	}
	return nil
}

func (n *Node) root() ([32]byte, error) {
	root, ok, err := n.cfg.Root()
	if err != nil {
		return root, err
	}
	if n.tree != nil {
		if ok && root != n.tree.Root() {
			return root, ErrRootMismatch
		}
		return n.tree.Root(), nil
	}
	if !ok {
		return root, fmt.Errorf("claimd: no allocation root configured")
	}
	return root, nil
}

// genesisMarkerKey records that genesis balances and roles were applied, so a
// restart after a failed Initialize does not mint them twice.
var genesisMarkerKey = []byte("claimd/genesis")

// bootstrap credits genesis balances, seeds the role registry and
// initializes the instance when the state is fresh.
func (n *Node) bootstrap() error {
	_, err := n.engine.Instance()
	if err == nil {
		n.logger.Info("airdrop instance loaded", slog.String("instance", addressHex(n.engine.Address())))
		return nil
	}
	if !errors.Is(err, airdrop.ErrNotInitialized) {
		return err
	}
	root, err := n.root()
	if err != nil {
		return err
	}
	params, err := n.cfg.InitParams(root)
	if err != nil {
		return err
	}
	feeCfg, err := n.cfg.FeeConfig()
	if err != nil {
		return err
	}
	genesis, err := n.cfg.GenesisBalances()
	if err != nil {
		return err
	}
	admins, err := n.cfg.ProtocolAdminAddresses()
	if err != nil {
		return err
	}
	err = n.state.Atomic(func() error {
		var seeded bool
		if _, err := n.state.KVGet(genesisMarkerKey, &seeded); err != nil {
			return err
		}
		if seeded {
			return nil
		}
		for _, entry := range genesis {
			if err := n.bank.Mint(entry.Asset, entry.Address, entry.Amount); err != nil {
				return fmt.Errorf("claimd: genesis balance: %w", err)
			}
		}
		for _, admin := range admins {
			if err := n.state.SetRole(airdrop.RoleProtocolAdmin, admin[:]); err != nil {
				return err
			}
		}
		return n.state.KVPut(genesisMarkerKey, true)
	})
	if err != nil {
		return err
	}
	if err := n.engine.Initialize(n.engine.Deployer(), params, feeCfg); err != nil {
		return fmt.Errorf("claimd: initialize instance: %w", err)
	}
	n.logger.Info("airdrop instance initialized",
		slog.String("instance", addressHex(n.engine.Address())),
		slog.Int("genesis_balances", len(genesis)),
		slog.Int("protocol_admins", len(admins)))
	return nil
}

// Close flushes and releases the state database.
func (n *Node) Close() error {
	var err error
	n.closeOnce.Do(func() { err = n.db.Close() })
	return err
}

func (n *Node) Engine() *airdrop.Engine { return n.engine }

func (n *Node) Bank() *bank.Ledger { return n.bank }

func (n *Node) Feed() *fees.ManualFeed { return n.feed }

// Vault returns the staking vault, nil when staking is disabled.
func (n *Node) Vault() *staking.Vault { return n.vault }

// Tree returns the allocation tree, nil when no allocations file is set.
func (n *Node) Tree() *airdrop.Tree { return n.tree }

// PublishPrice records a new oracle round on behalf of an operator.
func (n *Node) PublishPrice(caller [20]byte, answer *big.Int) (fees.RoundData, error) {
	if _, ok := n.operators[caller]; !ok {
		return fees.RoundData{}, ErrNotOperator
	}
	if answer == nil || answer.Sign() <= 0 {
		return fees.RoundData{}, fees.ErrBadPrice
	}
	return n.feed.Push(answer, uint64(n.nowFn())), nil
}

// Stakes lists the stakes owned by account.
func (n *Node) Stakes(account [20]byte) ([]*staking.Stake, []*big.Int, error) {
	if n.vault == nil {
		return nil, nil, ErrStakingUnavailable
	}
	var (
		stakes    []*staking.Stake
		claimable []*big.Int
	)
	err := n.state.View(func() error {
		loaded, err := n.vault.Stakes(account)
		if err != nil {
			return err
		}
		stakes = loaded
		claimable = make([]*big.Int, len(loaded))
		for i, stake := range loaded {
			claimable[i] = stake.Claimable(n.vault.Mode(), uint64(n.nowFn()))
		}
		return nil
	})
	return stakes, claimable, err
}

// ClaimStake releases vested tokens of stakeID, or of every stake when
// stakeID is zero, to caller.
func (n *Node) ClaimStake(caller [20]byte, stakeID uint64) (*big.Int, error) {
	if n.vault == nil {
		return nil, ErrStakingUnavailable
	}
	var released *big.Int
	err := n.state.Atomic(func() error {
		amount, err := n.vault.Claim(stakeID, caller)
		released = amount
		return err
	})
	if err != nil {
		return nil, err
	}
	return released, nil
}

func addressHex(addr [20]byte) string {
	return fmt.Sprintf("0x%x", addr[:])
}
