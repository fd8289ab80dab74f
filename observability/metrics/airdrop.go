package metrics

import (
	"encoding/hex"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"claimdrop/core/events"
	"claimdrop/observability"
)

// AirdropMetrics tracks claim settlement, fee routing and protocol accruals.
type AirdropMetrics struct {
	claims          *prometheus.CounterVec
	tokens          *prometheus.CounterVec
	feeUsdCents     *prometheus.CounterVec
	feeNative       *prometheus.CounterVec
	protocolAccrued *prometheus.GaugeVec
	paused          *prometheus.GaugeVec
	noncesCancelled *prometheus.CounterVec
	rejections      *prometheus.CounterVec
	stakes          *prometheus.CounterVec
}

var (
	airdropOnce     sync.Once
	airdropRegistry *AirdropMetrics
)

// Airdrop returns the process wide airdrop metrics registry.
func Airdrop() *AirdropMetrics {
	airdropOnce.Do(func() {
		airdropRegistry = &AirdropMetrics{
			claims: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "airdrop_claims_total",
				Help: "Settled claims by instance and whether a stake was created.",
			}, []string{"instance", "staked"}),
			tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "airdrop_tokens_total",
				Help: "Tokens moved by settlements, split by destination (claimed, staked, bonus, protocol).",
			}, []string{"instance", "kind"}),
			feeUsdCents: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "airdrop_fee_usd_cents_total",
				Help: "USD cents charged per fee route (pre_cap, post_cap).",
			}, []string{"instance", "route"}),
			feeNative: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "airdrop_fee_native_total",
				Help: "Native currency collected as claim fees.",
			}, []string{"instance", "route"}),
			protocolAccrued: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "airdrop_protocol_accrued_tokens",
				Help: "Tokens currently owed to the protocol and held by the instance.",
			}, []string{"instance"}),
			paused: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "airdrop_paused",
				Help: "1 while the claim path is paused or the program has ended.",
			}, []string{"instance"}),
			noncesCancelled: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "airdrop_nonces_cancelled_total",
				Help: "Nonces burnt by beneficiaries.",
			}, []string{"instance"}),
			rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "airdrop_claim_rejections_total",
				Help: "Rejected claim submissions by error kind.",
			}, []string{"kind"}),
			stakes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "airdrop_stakes_total",
				Help: "Stake lifecycle events observed by the staking vault.",
			}, []string{"action"}),
		}
		prometheus.MustRegister(
			airdropRegistry.claims,
			airdropRegistry.tokens,
			airdropRegistry.feeUsdCents,
			airdropRegistry.feeNative,
			airdropRegistry.protocolAccrued,
			airdropRegistry.paused,
			airdropRegistry.noncesCancelled,
			airdropRegistry.rejections,
			airdropRegistry.stakes,
		)
	})
	return airdropRegistry
}

func instanceLabel(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

// ObserveSettlement records a committed claim.
func (m *AirdropMetrics) ObserveSettlement(evt events.AirdropClaimSettled) {
	if m == nil {
		return
	}
	instance := instanceLabel(evt.Instance)
	staked := evt.AmountStaked != nil && evt.AmountStaked.Sign() > 0
	m.claims.WithLabelValues(instance, strconv.FormatBool(staked)).Inc()
	m.tokens.WithLabelValues(instance, "claimed").Add(observability.BigToFloat(evt.AmountClaimed))
	m.tokens.WithLabelValues(instance, "staked").Add(observability.BigToFloat(evt.AmountStaked))
	m.tokens.WithLabelValues(instance, "bonus").Add(observability.BigToFloat(evt.Bonus))
	m.tokens.WithLabelValues(instance, "protocol").Add(observability.BigToFloat(evt.ProtocolShare))
	m.protocolAccrued.WithLabelValues(instance).Add(observability.BigToFloat(evt.ProtocolShare))
	if evt.FeeUsdCents == 0 {
		return
	}
	route := "pre_cap"
	if evt.FeePostCap {
		route = "post_cap"
	}
	m.feeUsdCents.WithLabelValues(instance, route).Add(float64(evt.FeeUsdCents))
	m.feeNative.WithLabelValues(instance, route).Add(observability.BigToFloat(evt.FeePaid))
}

// RecordRejection counts a claim that failed with the supplied error kind.
func (m *AirdropMetrics) RecordRejection(kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.rejections.WithLabelValues(kind).Inc()
}

func (m *AirdropMetrics) setPaused(instance [20]byte, paused bool) {
	value := 0.0
	if paused {
		value = 1
	}
	m.paused.WithLabelValues(instanceLabel(instance)).Set(value)
}

// Emit implements events.Emitter so the registry can sit in an emitter fanout.
func (m *AirdropMetrics) Emit(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	observability.Events().RecordEvent(evt.EventType())
	switch e := evt.(type) {
	case events.AirdropInitialized:
		m.setPaused(e.Instance, true)
	case events.AirdropClaimSettled:
		m.ObserveSettlement(e)
	case events.AirdropNonceCancelled:
		m.noncesCancelled.WithLabelValues(instanceLabel(e.Instance)).Inc()
	case events.AirdropPauseToggled:
		m.setPaused(e.Instance, e.Paused)
	case events.AirdropEnded:
		m.setPaused(e.Instance, true)
		m.protocolAccrued.WithLabelValues(instanceLabel(e.Instance)).Set(observability.BigToFloat(e.Retained))
	case events.AirdropProtocolWithdrawn:
		m.protocolAccrued.WithLabelValues(instanceLabel(e.Instance)).Set(observability.BigToFloat(e.Remaining))
	case events.StakeCreated:
		m.stakes.WithLabelValues("created").Inc()
	case events.StakeClaimed:
		m.stakes.WithLabelValues("claimed").Inc()
	}
}

// SetProtocolAccrued seeds the accrual gauge, typically from stored state at boot.
func (m *AirdropMetrics) SetProtocolAccrued(instance [20]byte, accrued float64) {
	if m == nil {
		return
	}
	m.protocolAccrued.WithLabelValues(instanceLabel(instance)).Set(accrued)
}
