package margin

import (
	"fmt"
	"math/big"

	"margincore/crypto"
	"margincore/native/common"
)

// MarginCall demands additional collateral from the position owner. Only the
// lender, or a delegate lender consenting on the caller's behalf, may call.
// Calling an already-called position is rejected.
func (e *Engine) MarginCall(id [32]byte, caller crypto.Address, requiredDeposit *big.Int) (err error) {
	if err := e.ready(); err != nil {
		return err
	}
	if err := common.Guard(e.modeView, common.ActionMarginCall); err != nil {
		return err
	}
	if requiredDeposit == nil || requiredDeposit.Sign() <= 0 {
		return errInvalidAmount
	}
	finish, err := e.begin()
	if err != nil {
		return err
	}
	defer func() { finish(err) }()

	pos, err := e.openPosition(id)
	if err != nil {
		return err
	}
	if pos.Called() {
		return errAlreadyCalled
	}
	if !caller.Equal(pos.Lender) {
		impl, ok := e.delegateFor(pos.Lender)
		if !ok {
			return errUnauthorized
		}
		delegate, ok := impl.(MarginCallDelegate)
		if !ok {
			return fmt.Errorf("%w: lender cannot approve margin calls", errDelegateRefused)
		}
		if consentErr := delegate.MarginCallOnBehalfOf(caller, id, requiredDeposit); consentErr != nil {
			return fmt.Errorf("%w: %v", errDelegateRefused, consentErr)
		}
	}

	pos.CallTimestamp = e.nowFn()
	pos.RequiredDeposit = new(big.Int).Set(requiredDeposit)
	if err = e.state.PutPosition(pos); err != nil {
		return err
	}
	e.queue(newMarginCallInitiatedEvent(pos))
	return nil
}

// CancelMarginCall clears an active margin call.
func (e *Engine) CancelMarginCall(id [32]byte, caller crypto.Address) (err error) {
	if err := e.ready(); err != nil {
		return err
	}
	if err := common.Guard(e.modeView, common.ActionCancelMarginCall); err != nil {
		return err
	}
	finish, err := e.begin()
	if err != nil {
		return err
	}
	defer func() { finish(err) }()

	pos, err := e.openPosition(id)
	if err != nil {
		return err
	}
	if !pos.Called() {
		return errNotCalled
	}
	if !caller.Equal(pos.Lender) {
		impl, ok := e.delegateFor(pos.Lender)
		if !ok {
			return errUnauthorized
		}
		delegate, ok := impl.(CancelMarginCallDelegate)
		if !ok {
			return fmt.Errorf("%w: lender cannot approve call cancellation", errDelegateRefused)
		}
		if consentErr := delegate.CancelMarginCallOnBehalfOf(caller, id); consentErr != nil {
			return fmt.Errorf("%w: %v", errDelegateRefused, consentErr)
		}
	}

	pos.CallTimestamp = 0
	pos.RequiredDeposit = big.NewInt(0)
	if err = e.state.PutPosition(pos); err != nil {
		return err
	}
	e.queue(newMarginCallCanceledEvent(pos))
	return nil
}

// DepositCollateral adds held-asset collateral to the position. Owner only.
// A deposit meeting the required amount of an active margin call clears the
// call in the same operation.
func (e *Engine) DepositCollateral(id [32]byte, caller crypto.Address, amount *big.Int) (err error) {
	if err := e.ready(); err != nil {
		return err
	}
	if err := common.Guard(e.modeView, common.ActionDeposit); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	finish, err := e.begin()
	if err != nil {
		return err
	}
	defer func() { finish(err) }()

	pos, err := e.openPosition(id)
	if err != nil {
		return err
	}
	if !caller.Equal(pos.Owner) {
		return errUnauthorized
	}
	if err = e.collat.Credit(id, pos.HeldAsset, caller, amount); err != nil {
		return err
	}
	e.queue(newCollateralDepositedEvent(id, caller, amount, e.collat.Balance(id, pos.HeldAsset)))

	if pos.Called() && amount.Cmp(pos.RequiredDeposit) >= 0 {
		pos.CallTimestamp = 0
		pos.RequiredDeposit = big.NewInt(0)
		if err = e.state.PutPosition(pos); err != nil {
			return err
		}
		e.queue(newMarginCallCanceledEvent(pos))
	}
	return nil
}

// ForceRecoverCollateral seizes the entire remaining collateral after the
// owner defaults: either an unmet margin call past its time limit, or the
// position exceeding its maximum duration plus the same grace window. The
// position closes immediately and the lender forfeits interest settlement.
// Allowed in every operation mode.
func (e *Engine) ForceRecoverCollateral(id [32]byte, caller, recipient crypto.Address) (amount *big.Int, err error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := common.Guard(e.modeView, common.ActionForceRecover); err != nil {
		return nil, err
	}
	finish, err := e.begin()
	if err != nil {
		return nil, err
	}
	defer func() { finish(err) }()

	pos, err := e.openPosition(id)
	if err != nil {
		return nil, err
	}
	if recipient.IsZero() {
		recipient = caller
	}
	if !caller.Equal(pos.Lender) {
		impl, ok := e.delegateFor(pos.Lender)
		if !ok {
			return nil, errUnauthorized
		}
		delegate, ok := impl.(ForceRecoverDelegate)
		if !ok {
			return nil, fmt.Errorf("%w: lender cannot approve recovery", errDelegateRefused)
		}
		if consentErr := delegate.ForceRecoverCollateralOnBehalfOf(caller, recipient, id); consentErr != nil {
			return nil, fmt.Errorf("%w: %v", errDelegateRefused, consentErr)
		}
	}

	now := e.nowFn()
	var deadline int64
	if pos.Called() {
		deadline = pos.CallTimestamp + int64(pos.CallTimeLimit)
	} else {
		deadline = pos.StartTimestamp + int64(pos.MaxDuration) + int64(pos.CallTimeLimit)
	}
	if now < deadline {
		return nil, errNotRecoverable
	}

	amount = e.collat.Balance(id, pos.HeldAsset)
	if err = e.collat.Debit(id, pos.HeldAsset, recipient, amount); err != nil {
		return nil, err
	}
	if err = e.state.SetStatus(id, StatusClosed); err != nil {
		return nil, err
	}
	e.queue(newCollateralRecoveredEvent(id, recipient, amount))
	return amount, nil
}
