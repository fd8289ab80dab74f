package fees

import (
	"fmt"
	"math/big"
	"sync"
)

// MaxFeedDecimals bounds the precision accepted from a price feed.
const MaxFeedDecimals = 18

// RoundData mirrors the latest round reported by an aggregator style feed.
// Answer is the native currency price in USD scaled by the feed decimals.
type RoundData struct {
	RoundID         uint64
	Answer          *big.Int
	StartedAt       uint64
	UpdatedAt       uint64
	AnsweredInRound uint64
}

// PriceFeed is the native/USD oracle consulted when converting fees.
type PriceFeed interface {
	Decimals() (uint8, error)
	LatestRoundData() (RoundData, error)
}

// Price is a validated oracle observation.
type Price struct {
	Answer    *big.Int
	Decimals  uint8
	UpdatedAt uint64
	RoundID   uint64
}

// ReadPrice queries the feed and applies the freshness and sanity guards: the
// answer must be positive, the round must not be answered out of order, the
// observation must be at most maxAge seconds old at now, and the feed must not
// report more than MaxFeedDecimals decimals.
func ReadPrice(feed PriceFeed, now int64, maxAge uint64) (Price, error) {
	if feed == nil {
		return Price{}, ErrPriceFeedUnavailable
	}
	decimals, err := feed.Decimals()
	if err != nil {
		return Price{}, fmt.Errorf("%w: decimals: %v", ErrPriceFeedUnavailable, err)
	}
	if decimals > MaxFeedDecimals {
		return Price{}, fmt.Errorf("%w: %d", ErrInvalidFeedDecimals, decimals)
	}
	round, err := feed.LatestRoundData()
	if err != nil {
		return Price{}, fmt.Errorf("%w: latest round: %v", ErrPriceFeedUnavailable, err)
	}
	if round.Answer == nil || round.Answer.Sign() <= 0 {
		return Price{}, fmt.Errorf("%w: non-positive answer", ErrBadPrice)
	}
	if round.AnsweredInRound < round.RoundID {
		return Price{}, fmt.Errorf("%w: round %d answered in %d", ErrBadPrice, round.RoundID, round.AnsweredInRound)
	}
	if round.UpdatedAt == 0 {
		return Price{}, fmt.Errorf("%w: round incomplete", ErrStalePrice)
	}
	if now > 0 && uint64(now) > round.UpdatedAt && uint64(now)-round.UpdatedAt > maxAge {
		return Price{}, fmt.Errorf("%w: age %ds exceeds %ds", ErrStalePrice, uint64(now)-round.UpdatedAt, maxAge)
	}
	return Price{
		Answer:    new(big.Int).Set(round.Answer),
		Decimals:  decimals,
		UpdatedAt: round.UpdatedAt,
		RoundID:   round.RoundID,
	}, nil
}

// ManualFeed is an operator-pushed price feed. Every Push opens and answers a
// new round.
type ManualFeed struct {
	mu       sync.RWMutex
	decimals uint8
	round    RoundData
}

// NewManualFeed creates a feed reporting prices with the given decimals.
func NewManualFeed(decimals uint8) *ManualFeed {
	return &ManualFeed{decimals: decimals}
}

// Push publishes a new answer observed at updatedAt (unix seconds).
func (f *ManualFeed) Push(answer *big.Int, updatedAt uint64) RoundData {
	f.mu.Lock()
	defer f.mu.Unlock()
	next := f.round.RoundID + 1
	f.round = RoundData{
		RoundID:         next,
		Answer:          cloneInt(answer),
		StartedAt:       updatedAt,
		UpdatedAt:       updatedAt,
		AnsweredInRound: next,
	}
	return cloneRound(f.round)
}

// SetRoundData overrides the latest round verbatim.
func (f *ManualFeed) SetRoundData(round RoundData) {
	f.mu.Lock()
	f.round = cloneRound(round)
	f.mu.Unlock()
}

// SetDecimals changes the reported precision.
func (f *ManualFeed) SetDecimals(decimals uint8) {
	f.mu.Lock()
	f.decimals = decimals
	f.mu.Unlock()
}

func (f *ManualFeed) Decimals() (uint8, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.decimals, nil
}

func (f *ManualFeed) LatestRoundData() (RoundData, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.round.RoundID == 0 && f.round.Answer == nil {
		return RoundData{}, fmt.Errorf("no rounds published")
	}
	return cloneRound(f.round), nil
}

func cloneRound(r RoundData) RoundData {
	r.Answer = cloneInt(r.Answer)
	return r
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
