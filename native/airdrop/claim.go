package airdrop

import (
	"fmt"
	"math/big"

	"claimdrop/core/events"
	"claimdrop/native/bank"
)

// validateOptions applies the per-request checks shared by quoting and
// settlement.
func (e *Engine) validateOptions(inst *Instance, opts ClaimOptions) error {
	if opts.PercentageToClaim > MaxBips || opts.PercentageToStake > MaxBips ||
		opts.PercentageToClaim+opts.PercentageToStake > MaxBips {
		return ErrPercentageTooHigh
	}
	if opts.PercentageToClaim+opts.PercentageToStake != MaxBips {
		return ErrInvalidPercentageSum
	}
	if opts.OptionID == 0 {
		return ErrInvalidOptionID
	}
	if opts.Multiplier != inst.Multiplier {
		return fmt.Errorf("%w: signed %d, live %d", ErrMultiplierMismatch, opts.Multiplier, inst.Multiplier)
	}
	if !opts.StakeSelected() {
		return nil
	}
	if !inst.StakingEnabled() || e.staking == nil {
		return ErrStakingDisabled
	}
	if opts.LockupPeriod < inst.MinLockupDuration {
		return fmt.Errorf("%w: %d < staking minimum %d", ErrLockupTooShort, opts.LockupPeriod, inst.MinLockupDuration)
	}
	if inst.Multiplier > 0 && opts.LockupPeriod < inst.MinLockupDurationForMultiplier {
		return fmt.Errorf("%w: %d < multiplier minimum %d", ErrLockupTooShort, opts.LockupPeriod, inst.MinLockupDurationForMultiplier)
	}
	return nil
}

// ValidateClaimOptions runs the option checks against live state and returns
// the exact native payment a claim with these options must attach. It never
// mutates state.
func (e *Engine) ValidateClaimOptions(opts ClaimOptions) (*big.Int, error) {
	if e.fees == nil {
		return nil, errNilFees
	}
	var required *big.Int
	err := e.view(func() error {
		inst, err := e.loadInstance()
		if err != nil {
			return err
		}
		if err := e.validateOptions(inst, opts); err != nil {
			return err
		}
		quote, err := e.fees.Quote(&inst.Fees, opts.StakeSelected())
		if err != nil {
			return err
		}
		required = cloneAmount(quote.Amount)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return required, nil
}

// ClaimFor settles a beneficiary's allocation. caller submits the request and
// attaches payment in native currency for the fee; any excess is refunded to
// caller. Either every effect of the claim lands or none does.
func (e *Engine) ClaimFor(caller [20]byte, payment *big.Int, req ClaimRequest) (*Settlement, error) {
	if e.bank == nil {
		return nil, errNilBank
	}
	if e.fees == nil {
		return nil, errNilFees
	}
	if payment == nil {
		payment = big.NewInt(0)
	}
	if payment.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative payment", ErrInvalidAmount)
	}
	var settlement *Settlement
	err := e.atomic(func(emit func(events.Event)) error {
		result, err := e.settle(caller, payment, req)
		if err != nil {
			return err
		}
		settlement = result
		emit(result.event())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return settlement, nil
}

func (e *Engine) settle(caller [20]byte, payment *big.Int, req ClaimRequest) (*Settlement, error) {
	inst, err := e.loadInstance()
	if err != nil {
		return nil, err
	}
	if !inst.Active {
		return nil, ErrInactive
	}
	if inst.Paused {
		return nil, ErrPaused
	}
	if req.TotalAllocation == nil || req.TotalAllocation.Sign() <= 0 {
		return nil, ErrZeroAllocation
	}

	// Authorization and allocation membership.
	digest, err := e.ClaimDigest(req.Beneficiary, req.TotalAllocation, req.Options, req.Nonce)
	if err != nil {
		return nil, err
	}
	if err := VerifyClaimSignature(digest, req.Signature, req.Beneficiary); err != nil {
		return nil, err
	}
	used, err := e.nonceUsed(req.Beneficiary, req.Nonce)
	if err != nil {
		return nil, err
	}
	if used {
		return nil, ErrSignatureAlreadyUsed
	}
	if err := VerifyAllocation(inst.Root, req.Beneficiary, req.TotalAllocation, req.Proof); err != nil {
		return nil, err
	}
	already, err := e.claimedAmount(req.Beneficiary)
	if err != nil {
		return nil, err
	}
	if already.Sign() != 0 {
		return nil, ErrAlreadyClaimed
	}

	if err := e.validateOptions(inst, req.Options); err != nil {
		return nil, err
	}
	consumed, amountClaimed, amountStaked := splitAllocation(req.TotalAllocation, req.Options)
	if consumed.Sign() == 0 {
		return nil, ErrZeroAllocation
	}
	if err := e.markNonce(req.Beneficiary, req.Nonce); err != nil {
		return nil, err
	}
	if err := e.state.KVPut(e.claimedKey(req.Beneficiary), consumed); err != nil {
		return nil, err
	}

	// Fee: the attached payment enters custody of the instance and leaves it
	// as fee and refund.
	if payment.Sign() > 0 {
		if err := e.bank.Transfer(bank.NativeAsset, caller, e.address, payment); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPaymentTransfer, err)
		}
	}
	receipt, err := e.fees.Collect(&inst.Fees, req.Options.StakeSelected(), e.address, caller, payment)
	if err != nil {
		return nil, err
	}

	bonus := Bonus(amountStaked, inst.Multiplier, req.Options.LockupPeriod, inst.MinLockupDurationForMultiplier, inst.MaxBonus)
	distributed := new(big.Int).Add(amountClaimed, amountStaked)
	distributed.Add(distributed, bonus)
	share := ProtocolShare(distributed, inst.Fees.ProtocolTokenShareBips)

	// The balance must fund this payout and keep every accrued protocol token
	// in place afterwards.
	balance, err := e.bank.Balance(inst.Asset, e.address)
	if err != nil {
		return nil, err
	}
	needed := new(big.Int).Add(distributed, share)
	needed.Add(needed, cloneAmount(inst.ProtocolAccruedTokens))
	if balance.Cmp(needed) < 0 {
		return nil, fmt.Errorf("%w: balance %s, needs %s", ErrOutOfTokens, balance, needed)
	}

	inst.TotalClaimed = new(big.Int).Add(cloneAmount(inst.TotalClaimed), amountClaimed)
	inst.TotalStaked = new(big.Int).Add(cloneAmount(inst.TotalStaked), amountStaked)
	inst.TotalBonusTokens = new(big.Int).Add(cloneAmount(inst.TotalBonusTokens), bonus)
	inst.ProtocolAccruedTokens = new(big.Int).Add(cloneAmount(inst.ProtocolAccruedTokens), share)
	if err := e.storeInstance(inst); err != nil {
		return nil, err
	}

	toStake := new(big.Int).Add(amountStaked, bonus)
	stakeID, err := e.dispatch(inst, req.Beneficiary, amountClaimed, toStake, req.Options.LockupPeriod)
	if err != nil {
		return nil, err
	}

	return &Settlement{
		Instance:        e.address,
		Beneficiary:     req.Beneficiary,
		Caller:          caller,
		Nonce:           req.Nonce,
		Options:         req.Options,
		TotalAllocation: cloneAmount(req.TotalAllocation),
		AmountClaimed:   amountClaimed,
		AmountStaked:    amountStaked,
		Bonus:           bonus,
		ProtocolShare:   share,
		StakeID:         stakeID,
		FeePaid:         cloneAmount(receipt.Paid),
		FeeRefund:       cloneAmount(receipt.Refund),
		FeeReceiver:     receipt.Receiver,
		FeeUsdCents:     chargedUsd(receipt),
		FeePostCap:      receipt.PostCap,
		OverflowMode:    inst.Fees.OverflowMode,
		SettledAt:       e.now(),
	}, nil
}

// CancelNonce burns nonce for caller so a signature carrying it can never be
// settled. It works whether or not claims are paused.
func (e *Engine) CancelNonce(caller [20]byte, nonce [32]byte) error {
	return e.atomic(func(emit func(events.Event)) error {
		if _, err := e.loadInstance(); err != nil {
			return err
		}
		used, err := e.nonceUsed(caller, nonce)
		if err != nil {
			return err
		}
		if used {
			return ErrSignatureAlreadyUsed
		}
		if err := e.markNonce(caller, nonce); err != nil {
			return err
		}
		emit(events.AirdropNonceCancelled{Instance: e.address, Beneficiary: caller, Nonce: nonce})
		return nil
	})
}
