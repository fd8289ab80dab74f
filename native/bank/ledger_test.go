package bank

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"claimdrop/core/state"
)

func newTestLedger(t *testing.T) (*state.Manager, *Ledger) {
	t.Helper()
	mgr := state.NewManager(nil)
	return mgr, NewLedger(mgr)
}

func requireBalance(t *testing.T, l *Ledger, asset string, addr [20]byte, want int64) {
	t.Helper()
	got, err := l.Balance(asset, addr)
	require.NoError(t, err)
	require.Zerof(t, got.Cmp(big.NewInt(want)), "balance %s, want %d", got, want)
}

func TestTransfer(t *testing.T) {
	_, l := newTestLedger(t)
	alice, bob := [20]byte{1}, [20]byte{2}

	require.NoError(t, l.Mint("drop", alice, big.NewInt(100)))
	require.NoError(t, l.Transfer("DROP", alice, bob, big.NewInt(40)))
	requireBalance(t, l, "drop", alice, 60)
	requireBalance(t, l, "DROP", bob, 40)

	err := l.Transfer("DROP", alice, bob, big.NewInt(61))
	require.ErrorIs(t, err, ErrInsufficientBalance)
	requireBalance(t, l, "DROP", alice, 60)

	require.NoError(t, l.Transfer("DROP", alice, bob, nil))
	require.ErrorIs(t, l.Transfer("DROP", alice, bob, big.NewInt(-1)), ErrInvalidAmount)
	require.ErrorIs(t, l.Transfer(" ", alice, bob, big.NewInt(1)), ErrInvalidAsset)

	require.NoError(t, l.Transfer("DROP", alice, alice, big.NewInt(60)))
	require.ErrorIs(t, l.Transfer("DROP", alice, alice, big.NewInt(61)), ErrInsufficientBalance)
	requireBalance(t, l, "DROP", alice, 60)
}

func TestTransferFromAllowance(t *testing.T) {
	_, l := newTestLedger(t)
	owner, spender, sink := [20]byte{1}, [20]byte{2}, [20]byte{3}
	require.NoError(t, l.Mint(NativeAsset, owner, big.NewInt(50)))

	require.ErrorIs(t, l.TransferFrom(NativeAsset, spender, owner, sink, big.NewInt(1)), ErrInsufficientAllowance)

	require.NoError(t, l.Approve(NativeAsset, owner, spender, big.NewInt(20)))
	require.NoError(t, l.TransferFrom(NativeAsset, spender, owner, sink, big.NewInt(15)))
	allowance, err := l.Allowance(NativeAsset, owner, spender)
	require.NoError(t, err)
	require.Zero(t, allowance.Cmp(big.NewInt(5)))
	requireBalance(t, l, NativeAsset, sink, 15)
}

func TestUnlimitedAllowanceNotDecremented(t *testing.T) {
	_, l := newTestLedger(t)
	owner, spender := [20]byte{1}, [20]byte{2}
	require.NoError(t, l.Mint("DROP", owner, big.NewInt(1_000)))
	require.NoError(t, l.Approve("DROP", owner, spender, new(big.Int).Lsh(big.NewInt(1), 300)))

	require.NoError(t, l.TransferFrom("DROP", spender, owner, spender, big.NewInt(400)))
	allowance, err := l.Allowance("DROP", owner, spender)
	require.NoError(t, err)
	require.Zero(t, allowance.Cmp(MaxAllowance))
	requireBalance(t, l, "DROP", spender, 400)
}

func TestLedgerWritesRevertWithUnit(t *testing.T) {
	mgr, l := newTestLedger(t)
	alice, bob := [20]byte{1}, [20]byte{2}
	require.NoError(t, mgr.Atomic(func() error {
		return l.Mint("DROP", alice, big.NewInt(10))
	}))

	err := mgr.Atomic(func() error {
		if err := l.Transfer("DROP", alice, bob, big.NewInt(10)); err != nil {
			return err
		}
		return l.Transfer("DROP", bob, alice, big.NewInt(11))
	})
	require.ErrorIs(t, err, ErrInsufficientBalance)
	requireBalance(t, l, "DROP", alice, 10)
	requireBalance(t, l, "DROP", bob, 0)
}
