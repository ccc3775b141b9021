package margin

import (
	"errors"
	"sync"

	"margincore/crypto"
	"margincore/native/common"
)

// ErrNotOperator is returned when a non-operator tries to change the
// administrative operation mode.
var ErrNotOperator = errors.New("margin engine: caller is not the operator")

// AdminSwitch is the administrative pause switch gating engine entry points.
// It starts fully operational. The engine consumes it through
// common.StateView; only the configured operator may change the mode.
type AdminSwitch struct {
	mu       sync.RWMutex
	state    common.OperationState
	operator crypto.Address
}

func NewAdminSwitch(operator crypto.Address) *AdminSwitch {
	return &AdminSwitch{operator: operator}
}

// OperationState returns the current mode.
func (a *AdminSwitch) OperationState() common.OperationState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// SetOperationState changes the mode. Operator only.
func (a *AdminSwitch) SetOperationState(caller crypto.Address, state common.OperationState) error {
	if !caller.Equal(a.operator) {
		return ErrNotOperator
	}
	if !state.Valid() {
		return common.ErrInvalidState
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = state
	return nil
}
