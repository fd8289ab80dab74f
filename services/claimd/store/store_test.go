package store

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"claimdrop/core/events"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func settledEvent(beneficiary byte, nonce byte) events.AirdropClaimSettled {
	return events.AirdropClaimSettled{
		Instance:        [20]byte{0xa1},
		Beneficiary:     [20]byte{beneficiary},
		Caller:          [20]byte{0x7e},
		OptionID:        2,
		Nonce:           [32]byte{nonce},
		TotalAllocation: big.NewInt(100),
		AmountClaimed:   big.NewInt(30),
		AmountStaked:    big.NewInt(70),
		Bonus:           big.NewInt(7),
		FeeReceiver:     [20]byte{0x71},
		FeePaid:         big.NewInt(333333333333334),
		FeeUsdCents:     100,
		OverflowMode:    "cancel",
	}
}

func TestRecordAndQuery(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0)

	first := FromEvent(settledEvent(0x01, 1), base)
	require.NoError(t, s.Record(ctx, first))
	require.NoError(t, s.Record(ctx, FromEvent(settledEvent(0x01, 1), base)), "duplicate nonce is ignored")
	require.NoError(t, s.Record(ctx, FromEvent(settledEvent(0x02, 1), base.Add(time.Minute))))

	all, err := s.List(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, hexAddress([20]byte{0x02}), all[0].Beneficiary, "newest first")

	mine, err := s.List(ctx, Query{Beneficiary: hexAddress([20]byte{0x01})})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, "333333333333334", mine[0].FeePaid)
	require.Equal(t, "0", mine[0].ProtocolShare)

	found, err := s.ForBeneficiary(ctx, [20]byte{0xa1}, [20]byte{0x01})
	require.NoError(t, err)
	require.Equal(t, first.ID, found.ID)
	require.Equal(t, "70", found.AmountStaked)

	_, err = s.ForBeneficiary(ctx, [20]byte{0xa1}, [20]byte{0x09})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestParseDSN(t *testing.T) {
	driver, dsn, err := ParseDSN("postgres://claimd@localhost/claimd")
	require.NoError(t, err)
	require.Equal(t, DriverPostgres, driver)
	require.Equal(t, "postgres://claimd@localhost/claimd", dsn)

	driver, dsn, err = ParseDSN("sqlite://./data/settlements.db")
	require.NoError(t, err)
	require.Equal(t, DriverSQLite, driver)
	require.Contains(t, dsn, "settlements.db?mode=rwc")

	_, _, err = ParseDSN("")
	require.ErrorIs(t, err, ErrDSNRequired)
	_, _, err = ParseDSN("mysql://nope")
	require.Error(t, err)
}
