package staking

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"claimdrop/core/events"
	"claimdrop/core/state"
	"claimdrop/native/bank"
)

var (
	vaultAddr = [20]byte{0xee}
	funder    = [20]byte{0x01}
	alice     = [20]byte{0x0a}
	bob       = [20]byte{0x0b}
)

type fixture struct {
	mgr    *state.Manager
	ledger *bank.Ledger
	vault  *Vault
	rec    *events.Recorder
	now    int64
}

func newFixture(t *testing.T, mode Mode) *fixture {
	t.Helper()
	mgr := state.NewManager(nil)
	ledger := bank.NewLedger(mgr)
	f := &fixture{mgr: mgr, ledger: ledger, rec: &events.Recorder{}, now: 1_000}
	vault := NewVault(vaultAddr, "drop", mode)
	vault.SetState(mgr)
	vault.SetBank(ledger)
	vault.SetEmitter(f.rec)
	vault.SetNowFunc(func() int64 { return f.now })
	f.vault = vault

	require.NoError(t, ledger.Mint("DROP", funder, big.NewInt(1_000)))
	require.NoError(t, ledger.Approve("DROP", funder, vaultAddr, bank.MaxAllowance))
	return f
}

func TestStakeForPullsFunds(t *testing.T) {
	f := newFixture(t, ModeLinear)
	id, err := f.vault.StakeFor(funder, alice, big.NewInt(400), 100)
	require.NoError(t, err)
	require.EqualValues(t, 1, id)

	held, err := f.ledger.Balance("DROP", vaultAddr)
	require.NoError(t, err)
	require.Zero(t, held.Cmp(big.NewInt(400)))

	stakes, err := f.vault.Stakes(alice)
	require.NoError(t, err)
	require.Len(t, stakes, 1)
	require.Equal(t, funder, stakes[0].Funder)
	require.EqualValues(t, 1_000, stakes[0].Start)
	require.Len(t, f.rec.OfType(events.TypeStakeCreated), 1)
}

func TestStakeForRejectsWithoutAllowance(t *testing.T) {
	f := newFixture(t, ModeLinear)
	require.NoError(t, f.ledger.Mint("DROP", bob, big.NewInt(10)))
	_, err := f.vault.StakeFor(bob, bob, big.NewInt(10), 1)
	require.ErrorIs(t, err, bank.ErrInsufficientAllowance)

	_, err = f.vault.StakeFor(funder, alice, big.NewInt(0), 1)
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = f.vault.StakeFor(funder, [20]byte{}, big.NewInt(1), 1)
	require.ErrorIs(t, err, ErrInvalidStaker)

	f.vault.SetMinDuration(50)
	_, err = f.vault.StakeFor(funder, alice, big.NewInt(1), 49)
	require.ErrorIs(t, err, ErrLockupTooShort)
}

func TestLinearVesting(t *testing.T) {
	f := newFixture(t, ModeLinear)
	first, err := f.vault.StakeFor(funder, alice, big.NewInt(400), 100)
	require.NoError(t, err)
	second, err := f.vault.StakeFor(funder, alice, big.NewInt(100), 0)
	require.NoError(t, err)

	f.now = 1_025
	ids, amounts, err := f.vault.Claimable(0, alice)
	require.NoError(t, err)
	require.Equal(t, []uint64{first, second}, ids)
	require.Zero(t, amounts[0].Cmp(big.NewInt(100)))
	require.Zero(t, amounts[1].Cmp(big.NewInt(100)), "zero duration vests immediately")

	paid, err := f.vault.Claim(first, alice)
	require.NoError(t, err)
	require.Zero(t, paid.Cmp(big.NewInt(100)))

	_, err = f.vault.Claim(first, alice)
	require.ErrorIs(t, err, ErrNothingClaimable)

	f.now = 5_000
	paid, err = f.vault.Claim(0, alice)
	require.NoError(t, err)
	require.Zero(t, paid.Cmp(big.NewInt(400)))

	balance, err := f.ledger.Balance("DROP", alice)
	require.NoError(t, err)
	require.Zero(t, balance.Cmp(big.NewInt(500)))
}

func TestTimelockVesting(t *testing.T) {
	f := newFixture(t, ModeTimelock)
	id, err := f.vault.StakeFor(funder, alice, big.NewInt(300), 100)
	require.NoError(t, err)

	f.now = 1_099
	_, amounts, err := f.vault.Claimable(id, alice)
	require.NoError(t, err)
	require.Zero(t, amounts[0].Sign())

	f.now = 1_100
	_, amounts, err = f.vault.Claimable(id, alice)
	require.NoError(t, err)
	require.Zero(t, amounts[0].Cmp(big.NewInt(300)))

	_, _, err = f.vault.Claimable(id, bob)
	require.ErrorIs(t, err, ErrNotStakeOwner)
	_, _, err = f.vault.Claimable(99, alice)
	require.ErrorIs(t, err, ErrStakeNotFound)
}

func TestClaimRevertsInsideUnit(t *testing.T) {
	f := newFixture(t, ModeLinear)
	require.NoError(t, f.mgr.Atomic(func() error {
		_, err := f.vault.StakeFor(funder, alice, big.NewInt(10), 0)
		return err
	}))

	err := f.mgr.Atomic(func() error {
		if _, err := f.vault.Claim(0, alice); err != nil {
			return err
		}
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	_, amounts, err := f.vault.Claimable(0, alice)
	require.NoError(t, err)
	require.Zero(t, amounts[0].Cmp(big.NewInt(10)))
	require.Empty(t, f.rec.OfType(events.TypeStakeClaimed))
}

func TestEventsWaitForCommit(t *testing.T) {
	f := newFixture(t, ModeLinear)
	err := f.mgr.Atomic(func() error {
		if _, err := f.vault.StakeFor(funder, alice, big.NewInt(10), 0); err != nil {
			return err
		}
		require.Empty(t, f.rec.OfType(events.TypeStakeCreated))
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)
	require.Empty(t, f.rec.OfType(events.TypeStakeCreated))

	require.NoError(t, f.mgr.Atomic(func() error {
		_, err := f.vault.StakeFor(funder, alice, big.NewInt(10), 0)
		return err
	}))
	require.Len(t, f.rec.OfType(events.TypeStakeCreated), 1)

	require.NoError(t, f.mgr.Atomic(func() error {
		_, err := f.vault.Claim(0, alice)
		return err
	}))
	require.Len(t, f.rec.OfType(events.TypeStakeClaimed), 1)
}

var errAbort = errors.New("abort")

func TestModeCodec(t *testing.T) {
	var m Mode
	require.NoError(t, m.UnmarshalText([]byte("cliff")))
	require.Equal(t, ModeTimelock, m)
	raw, err := ModeLinear.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "linear", string(raw))
	require.Error(t, m.UnmarshalText([]byte("exponential")))
}
