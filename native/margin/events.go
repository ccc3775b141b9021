package margin

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"margincore/core/events"
	"margincore/core/types"
	"margincore/crypto"
)

const (
	EventTypePositionOpened       = "margin.position_opened"
	EventTypePositionIncreased    = "margin.position_increased"
	EventTypePositionClosed       = "margin.position_closed"
	EventTypePositionTransferred  = "margin.position_transferred"
	EventTypeLoanTransferred      = "margin.loan_transferred"
	EventTypeMarginCallInitiated  = "margin.margin_call_initiated"
	EventTypeMarginCallCanceled   = "margin.margin_call_canceled"
	EventTypeCollateralDeposited  = "margin.additional_collateral_deposited"
	EventTypeCollateralRecovered  = "margin.collateral_force_recovered"
	EventTypeLoanOfferingCanceled = "margin.loan_offering_canceled"
)

type marginEvent struct {
	evt *types.Event
}

func (e marginEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e marginEvent) Event() *types.Event { return e.evt }

func hexAddr(addr crypto.Address) string { return hex.EncodeToString(addr.Bytes()) }

func hexID(id [32]byte) string { return hex.EncodeToString(id[:]) }

func amountStr(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func newPositionOpenedEvent(pos *Position, trader crypto.Address, loanHash [32]byte, heldFromSale, deposit *big.Int, depositInHeld bool) events.Event {
	return marginEvent{evt: &types.Event{
		Type: EventTypePositionOpened,
		Attributes: map[string]string{
			"positionId":         hexID(pos.ID),
			"trader":             hexAddr(trader),
			"owner":              hexAddr(pos.Owner),
			"lender":             hexAddr(pos.Lender),
			"loanHash":           hexID(loanHash),
			"owedAsset":          hexAddr(pos.OwedAsset),
			"heldAsset":          hexAddr(pos.HeldAsset),
			"principal":          amountStr(pos.Principal),
			"heldFromSale":       amountStr(heldFromSale),
			"deposit":            amountStr(deposit),
			"depositInHeldAsset": strconv.FormatBool(depositInHeld),
			"interestRate":       strconv.FormatUint(uint64(pos.InterestRate), 10),
			"interestPeriod":     strconv.FormatUint(uint64(pos.InterestPeriod), 10),
			"callTimeLimit":      strconv.FormatUint(uint64(pos.CallTimeLimit), 10),
			"maxDuration":        strconv.FormatUint(uint64(pos.MaxDuration), 10),
		},
	}}
}

func newPositionIncreasedEvent(pos *Position, trader crypto.Address, loanHash [32]byte, added, heldFromSale, deposit *big.Int, depositInHeld bool) events.Event {
	return marginEvent{evt: &types.Event{
		Type: EventTypePositionIncreased,
		Attributes: map[string]string{
			"positionId":         hexID(pos.ID),
			"trader":             hexAddr(trader),
			"lender":             hexAddr(pos.Lender),
			"loanHash":           hexID(loanHash),
			"principalAdded":     amountStr(added),
			"principalTotal":     amountStr(pos.Principal),
			"heldFromSale":       amountStr(heldFromSale),
			"deposit":            amountStr(deposit),
			"depositInHeldAsset": strconv.FormatBool(depositInHeld),
		},
	}}
}

func newPositionClosedEvent(id [32]byte, closer, recipient crypto.Address, receipt *CloseReceipt) events.Event {
	return marginEvent{evt: &types.Event{
		Type: EventTypePositionClosed,
		Attributes: map[string]string{
			"positionId":        hexID(id),
			"closer":            hexAddr(closer),
			"recipient":         hexAddr(recipient),
			"closeAmount":       amountStr(receipt.CloseAmount),
			"remainingAmount":   amountStr(receipt.RemainingAmount),
			"owedPaidToLender":  amountStr(receipt.OwedPaidToLender),
			"payoutAmount":      amountStr(receipt.PayoutAmount),
			"buybackCost":       amountStr(receipt.BuybackCost),
			"payoutInHeldAsset": strconv.FormatBool(receipt.PayoutInHeldAsset),
		},
	}}
}

func newPositionTransferredEvent(id [32]byte, from, to crypto.Address) events.Event {
	return marginEvent{evt: &types.Event{
		Type: EventTypePositionTransferred,
		Attributes: map[string]string{
			"positionId": hexID(id),
			"from":       hexAddr(from),
			"to":         hexAddr(to),
		},
	}}
}

func newLoanTransferredEvent(id [32]byte, from, to crypto.Address) events.Event {
	return marginEvent{evt: &types.Event{
		Type: EventTypeLoanTransferred,
		Attributes: map[string]string{
			"positionId": hexID(id),
			"from":       hexAddr(from),
			"to":         hexAddr(to),
		},
	}}
}

func newMarginCallInitiatedEvent(pos *Position) events.Event {
	return marginEvent{evt: &types.Event{
		Type: EventTypeMarginCallInitiated,
		Attributes: map[string]string{
			"positionId":      hexID(pos.ID),
			"lender":          hexAddr(pos.Lender),
			"owner":           hexAddr(pos.Owner),
			"requiredDeposit": amountStr(pos.RequiredDeposit),
		},
	}}
}

func newMarginCallCanceledEvent(pos *Position) events.Event {
	return marginEvent{evt: &types.Event{
		Type: EventTypeMarginCallCanceled,
		Attributes: map[string]string{
			"positionId": hexID(pos.ID),
			"lender":     hexAddr(pos.Lender),
			"owner":      hexAddr(pos.Owner),
		},
	}}
}

func newCollateralDepositedEvent(id [32]byte, depositor crypto.Address, amount, balance *big.Int) events.Event {
	return marginEvent{evt: &types.Event{
		Type: EventTypeCollateralDeposited,
		Attributes: map[string]string{
			"positionId": hexID(id),
			"depositor":  hexAddr(depositor),
			"amount":     amountStr(amount),
			"balance":    amountStr(balance),
		},
	}}
}

func newCollateralRecoveredEvent(id [32]byte, recipient crypto.Address, amount *big.Int) events.Event {
	return marginEvent{evt: &types.Event{
		Type: EventTypeCollateralRecovered,
		Attributes: map[string]string{
			"positionId": hexID(id),
			"recipient":  hexAddr(recipient),
			"amount":     amountStr(amount),
		},
	}}
}

func newLoanOfferingCanceledEvent(hash [32]byte, payer, feeRecipient crypto.Address, amount *big.Int) events.Event {
	return marginEvent{evt: &types.Event{
		Type: EventTypeLoanOfferingCanceled,
		Attributes: map[string]string{
			"loanHash":     hexID(hash),
			"payer":        hexAddr(payer),
			"feeRecipient": hexAddr(feeRecipient),
			"cancelAmount": amountStr(amount),
		},
	}}
}
