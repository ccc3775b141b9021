package common

import (
	"errors"
	"fmt"
)

var (
	ErrOperationNotAllowed = errors.New("operation not allowed in current state")
	ErrInvalidState        = errors.New("invalid operation state")
)

// OperationState is the administrative mode gating which lifecycle entry
// points are callable. States are strictly narrowing: each successive state
// permits a subset of the operations allowed by the previous one.
type OperationState uint8

const (
	Operational OperationState = iota
	CloseAndCancelLoanOnly
	CloseOnly
	CloseDirectlyOnly
)

func (s OperationState) String() string {
	switch s {
	case Operational:
		return "OPERATIONAL"
	case CloseAndCancelLoanOnly:
		return "CLOSE_AND_CANCEL_LOAN_ONLY"
	case CloseOnly:
		return "CLOSE_ONLY"
	case CloseDirectlyOnly:
		return "CLOSE_DIRECTLY_ONLY"
	default:
		return fmt.Sprintf("OperationState(%d)", uint8(s))
	}
}

// Valid reports whether the state is one of the defined modes.
func (s OperationState) Valid() bool {
	return s <= CloseDirectlyOnly
}

// Action identifies a guarded lifecycle entry point.
type Action uint8

const (
	ActionOpen Action = iota
	ActionIncrease
	ActionMarginCall
	ActionCancelMarginCall
	ActionDeposit
	ActionTransfer
	ActionCancelLoan
	ActionClose
	ActionCloseDirectly
	ActionForceRecover
)

// StateView exposes the current operation state to guarded modules.
type StateView interface {
	OperationState() OperationState
}

// Guard rejects the action when the current operation state does not permit
// it. A nil view is treated as fully operational.
func Guard(view StateView, action Action) error {
	state := Operational
	if view != nil {
		state = view.OperationState()
	}
	if !state.Valid() {
		return ErrInvalidState
	}
	if allowed(state, action) {
		return nil
	}
	return fmt.Errorf("%w: %s during %s", ErrOperationNotAllowed, actionName(action), state)
}

func allowed(state OperationState, action Action) bool {
	switch action {
	case ActionTransfer, ActionForceRecover, ActionCloseDirectly:
		return true
	case ActionClose:
		return state <= CloseOnly
	case ActionCancelLoan:
		return state <= CloseAndCancelLoanOnly
	default:
		return state == Operational
	}
}

func actionName(action Action) string {
	switch action {
	case ActionOpen:
		return "open"
	case ActionIncrease:
		return "increase"
	case ActionMarginCall:
		return "margin call"
	case ActionCancelMarginCall:
		return "cancel margin call"
	case ActionDeposit:
		return "deposit"
	case ActionTransfer:
		return "transfer"
	case ActionCancelLoan:
		return "cancel loan offering"
	case ActionClose:
		return "close"
	case ActionCloseDirectly:
		return "close directly"
	case ActionForceRecover:
		return "force recover"
	default:
		return fmt.Sprintf("action(%d)", uint8(action))
	}
}
