package margin

import (
	"encoding/hex"
	"errors"
	"math/big"
	"testing"

	"margincore/crypto"
)

// testReceiver accepts ownership for itself or redirects it elsewhere.
type testReceiver struct {
	self     crypto.Address
	redirect crypto.Address
	reject   bool
	callback func() error
}

func (r *testReceiver) answer() (crypto.Address, error) {
	if r.callback != nil {
		if err := r.callback(); err != nil {
			return crypto.Address{}, err
		}
	}
	if r.reject {
		return crypto.Address{}, nil
	}
	if !r.redirect.IsZero() {
		return r.redirect, nil
	}
	return r.self, nil
}

func (r *testReceiver) ReceivePositionOwnership(from crypto.Address, id [32]byte) (crypto.Address, error) {
	return r.answer()
}

func (r *testReceiver) ReceiveLoanOwnership(from crypto.Address, id [32]byte) (crypto.Address, error) {
	return r.answer()
}

func TestTransferPosition(t *testing.T) {
	f := newFixture(t)
	id := f.open()
	newOwner := addr(0xB1)

	if err := f.engine.TransferPosition(id, f.lender, newOwner); !errors.Is(err, errUnauthorized) {
		t.Fatalf("non-owner transfer err = %v, want errUnauthorized", err)
	}
	if err := f.engine.TransferPosition(id, f.trader, f.trader); !errors.Is(err, errSelfTransfer) {
		t.Fatalf("self transfer err = %v, want errSelfTransfer", err)
	}
	if err := f.engine.TransferPosition(id, f.trader, newOwner); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	pos, err := f.engine.GetPosition(id)
	if err != nil {
		t.Fatalf("get position: %v", err)
	}
	if !pos.Owner.Equal(newOwner) {
		t.Fatalf("owner = %s, want %s", pos.Owner, newOwner)
	}
	attrs := f.lastEvent(EventTypePositionTransferred)
	if attrs["positionId"] != hex.EncodeToString(id[:]) {
		t.Fatalf("event positionId = %s", attrs["positionId"])
	}
	if attrs["from"] != hex.EncodeToString(f.trader.Bytes()) || attrs["to"] != hex.EncodeToString(newOwner.Bytes()) {
		t.Fatalf("event from/to = %s/%s", attrs["from"], attrs["to"])
	}
	// The new owner holds the deposit privilege now.
	if err := f.engine.DepositCollateral(id, f.trader, big.NewInt(100)); !errors.Is(err, errUnauthorized) {
		t.Fatalf("old owner deposit err = %v, want errUnauthorized", err)
	}
}

func TestTransferLoan(t *testing.T) {
	f := newFixture(t)
	id := f.open()
	newLender := addr(0xB2)

	if err := f.engine.TransferLoan(id, f.trader, newLender); !errors.Is(err, errUnauthorized) {
		t.Fatalf("non-lender transfer err = %v, want errUnauthorized", err)
	}
	if err := f.engine.TransferLoan(id, f.lender, newLender); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	pos, err := f.engine.GetPosition(id)
	if err != nil {
		t.Fatalf("get position: %v", err)
	}
	if !pos.Lender.Equal(newLender) {
		t.Fatalf("lender = %s, want %s", pos.Lender, newLender)
	}
	attrs := f.lastEvent(EventTypeLoanTransferred)
	if attrs["from"] != hex.EncodeToString(f.lender.Bytes()) || attrs["to"] != hex.EncodeToString(newLender.Bytes()) {
		t.Fatalf("event from/to = %s/%s", attrs["from"], attrs["to"])
	}
	// Margin calls now belong to the new lender.
	if err := f.engine.MarginCall(id, f.lender, big.NewInt(100)); !errors.Is(err, errUnauthorized) {
		t.Fatalf("old lender call err = %v, want errUnauthorized", err)
	}
	if err := f.engine.MarginCall(id, newLender, big.NewInt(100)); err != nil {
		t.Fatalf("new lender call: %v", err)
	}
}

func TestTransferPositionRedelegation(t *testing.T) {
	f := newFixture(t)
	id := f.open()

	final := addr(0xD2)
	first := &testReceiver{self: addr(0xD1), redirect: final}
	f.engine.RegisterDelegate(addr(0xD1), first)

	// One redirect hop to a plain account is allowed.
	if err := f.engine.TransferPosition(id, f.trader, addr(0xD1)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	pos, err := f.engine.GetPosition(id)
	if err != nil {
		t.Fatalf("get position: %v", err)
	}
	if !pos.Owner.Equal(final) {
		t.Fatalf("owner = %s, want %s", pos.Owner, final)
	}
	attrs := f.lastEvent(EventTypePositionTransferred)
	if attrs["to"] != hex.EncodeToString(final.Bytes()) {
		t.Fatalf("event to = %s", attrs["to"])
	}
}

func TestTransferPositionChainTooDeep(t *testing.T) {
	f := newFixture(t)
	id := f.open()

	f.engine.RegisterDelegate(addr(0xD1), &testReceiver{self: addr(0xD1), redirect: addr(0xD2)})
	f.engine.RegisterDelegate(addr(0xD2), &testReceiver{self: addr(0xD2), redirect: addr(0xD3)})

	err := f.engine.TransferPosition(id, f.trader, addr(0xD1))
	if !errors.Is(err, errDelegateTooDeep) {
		t.Fatalf("err = %v, want errDelegateTooDeep", err)
	}
	pos, getErr := f.engine.GetPosition(id)
	if getErr != nil {
		t.Fatalf("get position: %v", getErr)
	}
	if !pos.Owner.Equal(f.trader) {
		t.Fatalf("failed transfer changed owner to %s", pos.Owner)
	}
}

func TestTransferPositionDelegateRejects(t *testing.T) {
	f := newFixture(t)
	id := f.open()
	f.engine.RegisterDelegate(addr(0xD1), &testReceiver{self: addr(0xD1), reject: true})

	err := f.engine.TransferPosition(id, f.trader, addr(0xD1))
	if !errors.Is(err, errDelegateRefused) {
		t.Fatalf("err = %v, want errDelegateRefused", err)
	}
}

func TestDelegateCallbackCannotReenter(t *testing.T) {
	f := newFixture(t)
	id := f.open()

	receiver := &testReceiver{self: addr(0xD1)}
	receiver.callback = func() error {
		// A delegate trying to mutate the engine mid-consent must be shut out.
		return f.engine.DepositCollateral(id, f.trader, big.NewInt(1))
	}
	f.engine.RegisterDelegate(addr(0xD1), receiver)

	err := f.engine.TransferPosition(id, f.trader, addr(0xD1))
	if !errors.Is(err, errDelegateRefused) {
		t.Fatalf("err = %v, want errDelegateRefused", err)
	}
	pos, getErr := f.engine.GetPosition(id)
	if getErr != nil {
		t.Fatalf("get position: %v", getErr)
	}
	if !pos.Owner.Equal(f.trader) {
		t.Fatalf("reentrant transfer changed owner to %s", pos.Owner)
	}
}

func TestOpenAssignsThirdPartyOwnership(t *testing.T) {
	f := newFixture(t)
	loanOwner := addr(0xB3)
	offer := f.offering()
	offer.Owner = loanOwner

	id, err := f.engine.OpenPosition(OpenRequest{
		Trader:             f.trader,
		Nonce:              7,
		Owner:              addr(0xB4),
		Principal:          big.NewInt(1000),
		Deposit:            big.NewInt(500),
		DepositInHeldAsset: true,
		Offering:           offer,
		Signature:          f.sign(offer),
		Exchange:           f.exchange,
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	pos, err := f.engine.GetPosition(id)
	if err != nil {
		t.Fatalf("get position: %v", err)
	}
	if !pos.Owner.Equal(addr(0xB4)) {
		t.Fatalf("owner = %s, want %s", pos.Owner, addr(0xB4))
	}
	if !pos.Lender.Equal(loanOwner) {
		t.Fatalf("lender = %s, want %s", pos.Lender, loanOwner)
	}
	if got := f.eventCount(EventTypePositionTransferred); got != 1 {
		t.Fatalf("position transfer events = %d, want 1", got)
	}
	if got := f.eventCount(EventTypeLoanTransferred); got != 1 {
		t.Fatalf("loan transfer events = %d, want 1", got)
	}
}
