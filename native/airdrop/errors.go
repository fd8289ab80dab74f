package airdrop

import (
	"errors"

	"claimdrop/native/bank"
	"claimdrop/native/fees"
)

var (
	// Validation.
	ErrPercentageTooHigh    = errors.New("airdrop: claim and stake percentages exceed 10000 bips")
	ErrInvalidPercentageSum = errors.New("airdrop: claim and stake percentages must sum to 10000 bips")
	ErrInvalidOptionID      = errors.New("airdrop: option id must be nonzero")
	ErrMultiplierMismatch   = errors.New("airdrop: signed multiplier does not match live multiplier")
	ErrStakingDisabled      = errors.New("airdrop: staking not configured")
	ErrLockupTooShort       = errors.New("airdrop: lockup period below required minimum")
	ErrZeroAllocation       = errors.New("airdrop: allocation consumes nothing")
	ErrInvalidParams        = errors.New("airdrop: invalid initialization parameters")
	ErrZeroAddress          = errors.New("airdrop: address must not be zero")
	ErrInvalidAmount        = errors.New("airdrop: amount must be positive")

	// Authorization.
	ErrInvalidClaimSignature = errors.New("airdrop: signature does not recover to beneficiary")
	ErrSignatureAlreadyUsed  = errors.New("airdrop: nonce already used")

	// State.
	ErrNotInitialized     = errors.New("airdrop: instance not initialized")
	ErrAlreadyInitialized = errors.New("airdrop: instance already initialized")
	ErrInactive           = errors.New("airdrop: program inactive")
	ErrPaused             = errors.New("airdrop: claims paused")
	ErrNotPaused          = errors.New("airdrop: claims not paused")
	ErrAlreadyClaimed     = errors.New("airdrop: beneficiary already claimed")
	ErrInvalidProof       = errors.New("airdrop: allocation proof does not match root")

	// Resource.
	ErrOutOfTokens     = errors.New("airdrop: insufficient token balance")
	ErrExceedsAccrued  = errors.New("airdrop: amount exceeds accrued protocol tokens")
	ErrStakingFailed   = errors.New("airdrop: staking handoff failed")
	ErrPaymentTransfer = errors.New("airdrop: attached payment could not be transferred")

	// Access.
	ErrNotAdmin         = errors.New("airdrop: caller is not the partner admin")
	ErrNotProtocolAdmin = errors.New("airdrop: caller lacks the protocol admin role")
	ErrNotDeployer      = errors.New("airdrop: caller is not the deploying authority")

	errNilState = errors.New("airdrop: state not configured")
	errNilBank  = errors.New("airdrop: bank not configured")
	errNilFees  = errors.New("airdrop: fee engine not configured")
)

// Kind groups errors so callers can react to a class of failure.
type Kind string

const (
	KindNone          Kind = ""
	KindValidation    Kind = "validation"
	KindAuthorization Kind = "authorization"
	KindState         Kind = "state"
	KindResource      Kind = "resource"
	KindOracle        Kind = "oracle"
	KindAccess        Kind = "access"
	KindInternal      Kind = "internal"
)

var kindTable = []struct {
	kind Kind
	errs []error
}{
	{KindValidation, []error{
		ErrPercentageTooHigh, ErrInvalidPercentageSum, ErrInvalidOptionID, ErrMultiplierMismatch,
		ErrStakingDisabled, ErrLockupTooShort, ErrZeroAllocation, ErrInvalidParams, ErrZeroAddress,
		ErrInvalidAmount, fees.ErrInvalidConfig, fees.ErrZeroAddress,
	}},
	{KindAuthorization, []error{ErrInvalidClaimSignature, ErrSignatureAlreadyUsed}},
	{KindState, []error{
		ErrNotInitialized, ErrAlreadyInitialized, ErrInactive, ErrPaused, ErrNotPaused,
		ErrAlreadyClaimed, ErrInvalidProof,
	}},
	{KindOracle, []error{
		fees.ErrBadPrice, fees.ErrStalePrice, fees.ErrInvalidFeedDecimals, fees.ErrPriceFeedUnavailable,
	}},
	{KindResource, []error{
		ErrOutOfTokens, ErrExceedsAccrued, ErrStakingFailed, ErrPaymentTransfer,
		fees.ErrInsufficientFee, bank.ErrInsufficientBalance,
	}},
	{KindAccess, []error{ErrNotAdmin, ErrNotProtocolAdmin, ErrNotDeployer}},
}

// ErrorKind classifies err. Unknown errors are internal; nil has no kind.
func ErrorKind(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, entry := range kindTable {
		for _, target := range entry.errs {
			if errors.Is(err, target) {
				return entry.kind
			}
		}
	}
	return KindInternal
}
