package margin

import (
	"fmt"
	"math/big"

	"margincore/crypto"
)

// Delegates are programmable owners. An address registered as a delegate is
// consulted synchronously whenever a privileged operation touches a position
// or loan it holds; the absence of an explicit affirmative answer is a
// rejection, never a default-allow. A delegate implements only the capability
// interfaces for the operations it supports.

// PositionReceiver consents to receiving position ownership. The returned
// address finalizes the new owner: returning the delegate's own address keeps
// ownership, a different address re-delegates one hop further, and a zero
// address rejects the transfer.
type PositionReceiver interface {
	ReceivePositionOwnership(from crypto.Address, id [32]byte) (crypto.Address, error)
}

// LoanReceiver is the lender-side counterpart of PositionReceiver.
type LoanReceiver interface {
	ReceiveLoanOwnership(from crypto.Address, id [32]byte) (crypto.Address, error)
}

// IncreaseDelegate consents to principal being added to an owned position.
type IncreaseDelegate interface {
	IncreasePositionOnBehalfOf(trader crypto.Address, id [32]byte, amount *big.Int) error
}

// LoanIncreaseDelegate consents to an owned loan being grown by an increase.
type LoanIncreaseDelegate interface {
	IncreaseLoanOnBehalfOf(payer crypto.Address, id [32]byte, amount *big.Int) error
}

// CloseDelegate bounds how much of an owned position a third-party closer may
// burn. The returned amount must be positive and no greater than requested;
// zero or excess is a rejection.
type CloseDelegate interface {
	ClosePositionOnBehalfOf(closer, recipient crypto.Address, id [32]byte, requested *big.Int) (*big.Int, error)
}

// MarginCallDelegate consents to margin calls initiated through an owned loan.
type MarginCallDelegate interface {
	MarginCallOnBehalfOf(caller crypto.Address, id [32]byte, deposit *big.Int) error
}

// CancelMarginCallDelegate consents to clearing an active margin call.
type CancelMarginCallDelegate interface {
	CancelMarginCallOnBehalfOf(caller crypto.Address, id [32]byte) error
}

// ForceRecoverDelegate consents to seizure of collateral on an owned loan.
type ForceRecoverDelegate interface {
	ForceRecoverCollateralOnBehalfOf(caller, recipient crypto.Address, id [32]byte) error
}

// maxDelegationHops bounds re-delegation: a delegate may redirect ownership
// once, and the redirect target must accept for itself.
const maxDelegationHops = 1

func (e *Engine) delegateFor(addr crypto.Address) (interface{}, bool) {
	impl, ok := e.delegates[string(addr.Bytes())]
	return impl, ok
}

// resolvePositionOwner walks the delegate consent chain for a position
// ownership grant and returns the finalized owner.
func (e *Engine) resolvePositionOwner(from, to crypto.Address, id [32]byte) (crypto.Address, error) {
	current := to
	for hop := 0; ; hop++ {
		impl, ok := e.delegateFor(current)
		if !ok {
			return current, nil
		}
		receiver, ok := impl.(PositionReceiver)
		if !ok {
			return crypto.Address{}, fmt.Errorf("%w: %s cannot receive positions", errDelegateRefused, current)
		}
		next, err := receiver.ReceivePositionOwnership(from, id)
		if err != nil {
			return crypto.Address{}, fmt.Errorf("%w: %v", errDelegateRefused, err)
		}
		if next.IsZero() {
			return crypto.Address{}, errDelegateRefused
		}
		if next.Equal(current) {
			return current, nil
		}
		if hop >= maxDelegationHops {
			return crypto.Address{}, errDelegateTooDeep
		}
		current = next
	}
}

// resolveLoanOwner walks the delegate consent chain for a loan ownership
// grant and returns the finalized lender.
func (e *Engine) resolveLoanOwner(from, to crypto.Address, id [32]byte) (crypto.Address, error) {
	current := to
	for hop := 0; ; hop++ {
		impl, ok := e.delegateFor(current)
		if !ok {
			return current, nil
		}
		receiver, ok := impl.(LoanReceiver)
		if !ok {
			return crypto.Address{}, fmt.Errorf("%w: %s cannot receive loans", errDelegateRefused, current)
		}
		next, err := receiver.ReceiveLoanOwnership(from, id)
		if err != nil {
			return crypto.Address{}, fmt.Errorf("%w: %v", errDelegateRefused, err)
		}
		if next.IsZero() {
			return crypto.Address{}, errDelegateRefused
		}
		if next.Equal(current) {
			return current, nil
		}
		if hop >= maxDelegationHops {
			return crypto.Address{}, errDelegateTooDeep
		}
		current = next
	}
}
