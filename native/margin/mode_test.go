package margin

import (
	"errors"
	"math/big"
	"testing"

	"margincore/crypto"
	"margincore/native/common"
)

// Every entry point is invoked with arguments that pass the mode guard but
// fail on a later validation, so a guard rejection is unambiguous.
func TestOperationModeMatrix(t *testing.T) {
	entryPoints := []struct {
		name   string
		invoke func(*fixture) error
		// minimum mode at which the entry point is rejected
		rejectedFrom common.OperationState
		alwaysOpen   bool
	}{
		{name: "open", invoke: func(f *fixture) error {
			_, err := f.engine.OpenPosition(OpenRequest{})
			return err
		}, rejectedFrom: common.CloseAndCancelLoanOnly},
		{name: "increase", invoke: func(f *fixture) error {
			return f.engine.IncreasePosition(IncreaseRequest{})
		}, rejectedFrom: common.CloseAndCancelLoanOnly},
		{name: "margin call", invoke: func(f *fixture) error {
			return f.engine.MarginCall([32]byte{}, f.lender, nil)
		}, rejectedFrom: common.CloseAndCancelLoanOnly},
		{name: "cancel margin call", invoke: func(f *fixture) error {
			return f.engine.CancelMarginCall([32]byte{}, f.lender)
		}, rejectedFrom: common.CloseAndCancelLoanOnly},
		{name: "deposit", invoke: func(f *fixture) error {
			return f.engine.DepositCollateral([32]byte{}, f.trader, nil)
		}, rejectedFrom: common.CloseAndCancelLoanOnly},
		{name: "cancel loan offering", invoke: func(f *fixture) error {
			_, err := f.engine.CancelLoanOffering(nil, f.lender, nil)
			return err
		}, rejectedFrom: common.CloseOnly},
		{name: "close", invoke: func(f *fixture) error {
			_, err := f.engine.ClosePosition(CloseRequest{})
			return err
		}, rejectedFrom: common.CloseDirectlyOnly},
		{name: "close directly", invoke: func(f *fixture) error {
			_, err := f.engine.ClosePositionDirectly([32]byte{}, f.trader, crypto.Address{}, nil)
			return err
		}, alwaysOpen: true},
		{name: "transfer", invoke: func(f *fixture) error {
			return f.engine.TransferPosition([32]byte{}, f.trader, crypto.Address{})
		}, alwaysOpen: true},
		{name: "force recover", invoke: func(f *fixture) error {
			_, err := f.engine.ForceRecoverCollateral([32]byte{}, f.lender, crypto.Address{})
			return err
		}, alwaysOpen: true},
	}
	modes := []common.OperationState{
		common.Operational,
		common.CloseAndCancelLoanOnly,
		common.CloseOnly,
		common.CloseDirectlyOnly,
	}

	for _, mode := range modes {
		f := newFixture(t)
		if err := f.mode.SetOperationState(f.operator, mode); err != nil {
			t.Fatalf("set mode: %v", err)
		}
		for _, ep := range entryPoints {
			err := ep.invoke(f)
			wantRejected := !ep.alwaysOpen && mode >= ep.rejectedFrom
			if gotRejected := errors.Is(err, common.ErrOperationNotAllowed); gotRejected != wantRejected {
				t.Errorf("%s in %s: rejected=%v, want %v (err=%v)", ep.name, mode, gotRejected, wantRejected, err)
			}
		}
	}
}

func TestAdminSwitchOperatorOnly(t *testing.T) {
	f := newFixture(t)
	if err := f.mode.SetOperationState(f.trader, common.CloseOnly); !errors.Is(err, ErrNotOperator) {
		t.Fatalf("err = %v, want ErrNotOperator", err)
	}
	if got := f.mode.OperationState(); got != common.Operational {
		t.Fatalf("mode = %s, want OPERATIONAL", got)
	}
	if err := f.mode.SetOperationState(f.operator, common.OperationState(9)); !errors.Is(err, common.ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}

// Mode gating still lets a live position settle while new exposure is frozen.
func TestCloseOnlyModeEndToEnd(t *testing.T) {
	f := newFixture(t)
	id := f.open()
	if err := f.mode.SetOperationState(f.operator, common.CloseOnly); err != nil {
		t.Fatalf("set mode: %v", err)
	}
	if _, err := f.engine.ClosePosition(CloseRequest{
		ID:                id,
		Closer:            f.trader,
		RequestedAmount:   big.NewInt(1_000_000),
		PayoutInHeldAsset: true,
		Exchange:          f.exchange,
	}); err != nil {
		t.Fatalf("close in CLOSE_ONLY: %v", err)
	}
}
