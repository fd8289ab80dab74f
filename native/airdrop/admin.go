package airdrop

import (
	"fmt"
	"math/big"

	"claimdrop/core/events"
)

// adminUnit loads the instance, checks that caller is the partner admin and
// runs fn inside one unit. The instance is persisted when fn succeeds.
func (e *Engine) adminUnit(caller [20]byte, fn func(inst *Instance, emit func(events.Event)) error) error {
	return e.atomic(func(emit func(events.Event)) error {
		inst, err := e.loadInstance()
		if err != nil {
			return err
		}
		if caller != inst.Admin {
			return ErrNotAdmin
		}
		if err := fn(inst, emit); err != nil {
			return err
		}
		return e.storeInstance(inst)
	})
}

// SetMultiplier replaces the live bonus multiplier. Signed requests carrying
// the previous value stop settling from this point on.
func (e *Engine) SetMultiplier(caller [20]byte, multiplier uint64) error {
	return e.adminUnit(caller, func(inst *Instance, emit func(events.Event)) error {
		previous := inst.Multiplier
		inst.Multiplier = multiplier
		emit(events.AirdropMultiplierUpdated{Instance: e.address, Previous: previous, Next: multiplier})
		return nil
	})
}

// Pause blocks the claim path. Admin operations and protocol withdrawals are
// unaffected.
func (e *Engine) Pause(caller [20]byte) error {
	return e.adminUnit(caller, func(inst *Instance, emit func(events.Event)) error {
		if !inst.Active {
			return ErrInactive
		}
		if inst.Paused {
			return ErrPaused
		}
		inst.Paused = true
		emit(events.AirdropPauseToggled{Instance: e.address, Admin: caller, Paused: true})
		return nil
	})
}

// Unpause reopens the claim path.
func (e *Engine) Unpause(caller [20]byte) error {
	return e.adminUnit(caller, func(inst *Instance, emit func(events.Event)) error {
		if !inst.Active {
			return ErrInactive
		}
		if !inst.Paused {
			return ErrNotPaused
		}
		inst.Paused = false
		emit(events.AirdropPauseToggled{Instance: e.address, Admin: caller})
		return nil
	})
}

// EndAirdrop permanently deactivates the program and sweeps every token not
// owed to the protocol to recipient. It returns the swept amount.
func (e *Engine) EndAirdrop(caller, recipient [20]byte) (*big.Int, error) {
	if recipient == ([20]byte{}) {
		return nil, ErrZeroAddress
	}
	var swept *big.Int
	err := e.adminUnit(caller, func(inst *Instance, emit func(events.Event)) error {
		if !inst.Active {
			return ErrInactive
		}
		balance, err := e.bank.Balance(inst.Asset, e.address)
		if err != nil {
			return err
		}
		retained := cloneAmount(inst.ProtocolAccruedTokens)
		swept = new(big.Int).Sub(balance, retained)
		if swept.Sign() < 0 {
			swept = big.NewInt(0)
		}
		if swept.Sign() > 0 {
			if err := e.bank.Transfer(inst.Asset, e.address, recipient, swept); err != nil {
				return fmt.Errorf("airdrop: sweep: %w", err)
			}
		}
		inst.Active = false
		emit(events.AirdropEnded{Instance: e.address, Recipient: recipient, Swept: cloneAmount(swept), Retained: retained})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return swept, nil
}

// TransferOwnership hands the partner admin role to next.
func (e *Engine) TransferOwnership(caller, next [20]byte) error {
	if next == ([20]byte{}) {
		return ErrZeroAddress
	}
	return e.adminUnit(caller, func(inst *Instance, emit func(events.Event)) error {
		previous := inst.Admin
		inst.Admin = next
		emit(events.AirdropOwnershipTransferred{Instance: e.address, Previous: previous, Next: next})
		return nil
	})
}

// UpdatePartnerOverflow rotates the post-cap partner fee receiver.
func (e *Engine) UpdatePartnerOverflow(caller, next [20]byte) error {
	return e.adminUnit(caller, func(inst *Instance, emit func(events.Event)) error {
		previous, err := inst.Fees.UpdatePartnerOverflow(next)
		if err != nil {
			return err
		}
		emit(events.AirdropPartnerOverflowUpdated{Instance: e.address, Previous: previous, Next: next})
		return nil
	})
}

// WithdrawProtocolAccrued pays accrued protocol tokens to recipient. The
// caller must hold RoleProtocolAdmin in the deploying authority's registry;
// the partner admin has no say. Pause and program end do not block it.
func (e *Engine) WithdrawProtocolAccrued(caller, recipient [20]byte, amount *big.Int) error {
	if recipient == ([20]byte{}) {
		return ErrZeroAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return e.atomic(func(emit func(events.Event)) error {
		if e.roles == nil || !e.roles.HasRole(RoleProtocolAdmin, caller[:]) {
			return ErrNotProtocolAdmin
		}
		inst, err := e.loadInstance()
		if err != nil {
			return err
		}
		accrued := cloneAmount(inst.ProtocolAccruedTokens)
		if amount.Cmp(accrued) > 0 {
			return fmt.Errorf("%w: requested %s, accrued %s", ErrExceedsAccrued, amount, accrued)
		}
		inst.ProtocolAccruedTokens = accrued.Sub(accrued, amount)
		if err := e.storeInstance(inst); err != nil {
			return err
		}
		if err := e.bank.Transfer(inst.Asset, e.address, recipient, amount); err != nil {
			return fmt.Errorf("airdrop: withdraw protocol tokens: %w", err)
		}
		emit(events.AirdropProtocolWithdrawn{
			Instance:  e.address,
			Caller:    caller,
			Recipient: recipient,
			Amount:    new(big.Int).Set(amount),
			Remaining: cloneAmount(inst.ProtocolAccruedTokens),
		})
		return nil
	})
}
