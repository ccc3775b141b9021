package margin

import (
	"margincore/crypto"
	"margincore/native/common"
)

// TransferPosition moves position ownership to another account, routing
// through delegate consent when the target is programmable. Allowed in every
// operation mode.
func (e *Engine) TransferPosition(id [32]byte, caller, to crypto.Address) (err error) {
	if err := e.ready(); err != nil {
		return err
	}
	if err := common.Guard(e.modeView, common.ActionTransfer); err != nil {
		return err
	}
	if to.IsZero() {
		return errInvalidRecipient
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
	if to.Equal(pos.Owner) {
		return errSelfTransfer
	}
	newOwner, err := e.resolvePositionOwner(caller, to, id)
	if err != nil {
		return err
	}
	if newOwner.Equal(pos.Owner) {
		return errSelfTransfer
	}
	pos.Owner = newOwner
	if err = e.state.PutPosition(pos); err != nil {
		return err
	}
	e.queue(newPositionTransferredEvent(id, caller, newOwner))
	return nil
}

// TransferLoan moves the lender side of the position to another account.
func (e *Engine) TransferLoan(id [32]byte, caller, to crypto.Address) (err error) {
	if err := e.ready(); err != nil {
		return err
	}
	if err := common.Guard(e.modeView, common.ActionTransfer); err != nil {
		return err
	}
	if to.IsZero() {
		return errInvalidRecipient
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
	if !caller.Equal(pos.Lender) {
		return errUnauthorized
	}
	if to.Equal(pos.Lender) {
		return errSelfTransfer
	}
	newLender, err := e.resolveLoanOwner(caller, to, id)
	if err != nil {
		return err
	}
	if newLender.Equal(pos.Lender) {
		return errSelfTransfer
	}
	pos.Lender = newLender
	if err = e.state.PutPosition(pos); err != nil {
		return err
	}
	e.queue(newLoanTransferredEvent(id, caller, newLender))
	return nil
}
