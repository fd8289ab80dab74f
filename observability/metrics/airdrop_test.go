package metrics

import (
	"math/big"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"claimdrop/core/events"
)

func TestAirdropEmitterTracksSettlements(t *testing.T) {
	m := Airdrop()
	instance := [20]byte{0x10}
	label := instanceLabel(instance)

	m.Emit(events.AirdropInitialized{Instance: instance})
	require.Equal(t, 1.0, testutil.ToFloat64(m.paused.WithLabelValues(label)))
	m.Emit(events.AirdropPauseToggled{Instance: instance})
	require.Equal(t, 0.0, testutil.ToFloat64(m.paused.WithLabelValues(label)))

	m.Emit(events.AirdropClaimSettled{
		Instance:      instance,
		AmountClaimed: big.NewInt(30),
		AmountStaked:  big.NewInt(70),
		Bonus:         big.NewInt(7),
		ProtocolShare: big.NewInt(2),
		FeePaid:       big.NewInt(500),
		FeeUsdCents:   200,
	})
	require.Equal(t, 1.0, testutil.ToFloat64(m.claims.WithLabelValues(label, "true")))
	require.Equal(t, 70.0, testutil.ToFloat64(m.tokens.WithLabelValues(label, "staked")))
	require.Equal(t, 200.0, testutil.ToFloat64(m.feeUsdCents.WithLabelValues(label, "pre_cap")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.protocolAccrued.WithLabelValues(label)))

	m.Emit(events.AirdropProtocolWithdrawn{Instance: instance, Remaining: big.NewInt(1)})
	require.Equal(t, 1.0, testutil.ToFloat64(m.protocolAccrued.WithLabelValues(label)))

	m.RecordRejection("")
	require.Equal(t, 1.0, testutil.ToFloat64(m.rejections.WithLabelValues("unknown")))
}

func TestNilRegistryIsSafe(t *testing.T) {
	var m *AirdropMetrics
	require.NotPanics(t, func() {
		m.Emit(events.AirdropNonceCancelled{})
		m.RecordRejection("state")
		m.SetProtocolAccrued([20]byte{}, 1)
	})
}
