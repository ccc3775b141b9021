package margin

import (
	"fmt"
	"math/big"

	"margincore/crypto"
	"margincore/native/common"
	"margincore/native/interest"
)

// CloseRequest burns up to RequestedAmount of the position's principal, sells
// the proportional held-asset share through the exchange wrapper to repay the
// lender, and pays out the remainder.
type CloseRequest struct {
	ID              [32]byte
	Closer          crypto.Address
	RequestedAmount *big.Int
	// Recipient receives the payout. Zero defaults to the closer.
	Recipient         crypto.Address
	PayoutInHeldAsset bool
	Exchange          ExchangeWrapper
	Order             []byte
}

// ClosePosition settles part or all of a position via a counter-order.
func (e *Engine) ClosePosition(req CloseRequest) (receipt *CloseReceipt, err error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := common.Guard(e.modeView, common.ActionClose); err != nil {
		return nil, err
	}
	if req.Exchange == nil {
		return nil, errNilExchange
	}
	finish, err := e.begin()
	if err != nil {
		return nil, err
	}
	defer func() { finish(err) }()
	return e.closeInternal(req.ID, req.Closer, req.Recipient, req.RequestedAmount, req.PayoutInHeldAsset, req.Exchange, req.Order, false)
}

// ClosePositionDirectly settles with the closer supplying the owed asset out
// of their own balance, skipping the sale step. Payout is always in held
// asset. Allowed in every operation mode.
func (e *Engine) ClosePositionDirectly(id [32]byte, closer, recipient crypto.Address, requested *big.Int) (receipt *CloseReceipt, err error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := common.Guard(e.modeView, common.ActionCloseDirectly); err != nil {
		return nil, err
	}
	finish, err := e.begin()
	if err != nil {
		return nil, err
	}
	defer func() { finish(err) }()
	return e.closeInternal(id, closer, recipient, requested, true, nil, nil, false)
}

// CloseWithoutCounterparty pays out the proportional held-asset share with no
// interest settlement. It only applies to self-funded positions, where owner
// and lender are the same party and no repayment is owed to anyone else.
func (e *Engine) CloseWithoutCounterparty(id [32]byte, closer, recipient crypto.Address, requested *big.Int) (receipt *CloseReceipt, err error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := common.Guard(e.modeView, common.ActionCloseDirectly); err != nil {
		return nil, err
	}
	finish, err := e.begin()
	if err != nil {
		return nil, err
	}
	defer func() { finish(err) }()
	return e.closeInternal(id, closer, recipient, requested, true, nil, nil, true)
}

func (e *Engine) closeInternal(id [32]byte, closer, recipient crypto.Address, requested *big.Int, payoutInHeld bool, exch ExchangeWrapper, order []byte, noCounterparty bool) (*CloseReceipt, error) {
	if requested == nil || requested.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	pos, err := e.openPosition(id)
	if err != nil {
		return nil, err
	}
	if recipient.IsZero() {
		recipient = closer
	}
	if noCounterparty && !pos.Owner.Equal(pos.Lender) {
		return nil, errUnauthorized
	}

	closeAmount := minBig(requested, pos.Principal)
	if closeAmount, err = e.consentClose(pos, closer, recipient, closeAmount); err != nil {
		return nil, err
	}

	var owed *big.Int
	if noCounterparty {
		owed = big.NewInt(0)
	} else {
		elapsed := e.nowFn() - pos.StartTimestamp
		if elapsed > int64(pos.MaxDuration) {
			elapsed = int64(pos.MaxDuration)
		}
		owed, err = interest.OwedAmount(closeAmount, pos.InterestRate, pos.InterestPeriod, elapsed)
		if err != nil {
			return nil, err
		}
	}

	startHeld := e.collat.Balance(id, pos.HeldAsset)
	availableHeld, err := partialAmount(closeAmount, pos.Principal, startHeld, false)
	if err != nil {
		return nil, err
	}

	receipt := &CloseReceipt{
		CloseAmount:       closeAmount,
		OwedPaidToLender:  big.NewInt(0),
		PayoutAmount:      big.NewInt(0),
		BuybackCost:       big.NewInt(0),
		PayoutInHeldAsset: payoutInHeld,
	}
	switch {
	case noCounterparty:
		if err = e.collat.Debit(id, pos.HeldAsset, recipient, availableHeld); err != nil {
			return nil, err
		}
		receipt.PayoutAmount = availableHeld
	case exch == nil:
		// Direct settlement: the closer repays the lender from their own
		// owed-asset balance and the full held share pays out.
		if err = e.ledger.TransferFrom(pos.OwedAsset, e.collat.Custodian(), closer, pos.Lender, owed); err != nil {
			return nil, err
		}
		if err = e.collat.Debit(id, pos.HeldAsset, recipient, availableHeld); err != nil {
			return nil, err
		}
		receipt.OwedPaidToLender = owed
		receipt.PayoutAmount = availableHeld
	case payoutInHeld:
		if err = e.closeBuyback(pos, id, recipient, owed, availableHeld, exch, order, receipt); err != nil {
			return nil, err
		}
	default:
		if err = e.closeSellAll(pos, id, recipient, owed, availableHeld, exch, order, receipt); err != nil {
			return nil, err
		}
	}

	remaining := new(big.Int).Sub(pos.Principal, closeAmount)
	receipt.RemainingAmount = remaining
	if remaining.Sign() == 0 {
		if err = e.state.SetStatus(id, StatusClosed); err != nil {
			return nil, err
		}
	} else {
		pos.Principal = remaining
		if err = e.state.PutPosition(pos); err != nil {
			return nil, err
		}
	}
	if receipt.OwedPaidToLender.Sign() > 0 {
		if err = e.state.AddOwedRepaid(id, receipt.OwedPaidToLender); err != nil {
			return nil, err
		}
	}
	e.queue(newPositionClosedEvent(id, closer, recipient, receipt))
	return receipt, nil
}

// closeBuyback sells just enough of the held share to repay the lender and
// pays the rest of the share out in held asset.
func (e *Engine) closeBuyback(pos *Position, id [32]byte, recipient crypto.Address, owed, availableHeld *big.Int, exch ExchangeWrapper, order []byte, receipt *CloseReceipt) error {
	custodian := e.collat.Custodian()
	exchAddr := exch.Address()
	cost := big.NewInt(0)
	if owed.Sign() > 0 {
		var err error
		cost, err = exch.ExchangeCost(pos.HeldAsset, pos.OwedAsset, owed, order)
		if err != nil {
			return err
		}
		if cost.Cmp(availableHeld) > 0 {
			return errBuybackExceedsMax
		}
		if err = e.collat.Debit(id, pos.HeldAsset, exchAddr, cost); err != nil {
			return err
		}
		proceeds, err := exch.Exchange(pos.HeldAsset, pos.OwedAsset, cost, order)
		if err != nil {
			return err
		}
		if proceeds == nil || proceeds.Cmp(owed) < 0 {
			return errInsufficientSale
		}
		// The lender receives the full sale proceeds; rounding surplus over
		// the owed amount stays with the lender, never the closer.
		if err = e.ledger.TransferFrom(pos.OwedAsset, custodian, exchAddr, pos.Lender, proceeds); err != nil {
			return fmt.Errorf("%w: exchange proceeds unavailable: %v", common.ErrInvariant, err)
		}
		receipt.OwedPaidToLender = proceeds
	}
	payout := new(big.Int).Sub(availableHeld, cost)
	if err := e.collat.Debit(id, pos.HeldAsset, recipient, payout); err != nil {
		return err
	}
	receipt.BuybackCost = cost
	receipt.PayoutAmount = payout
	return nil
}

// closeSellAll sells the entire held share and pays the remainder after
// lender repayment out in owed asset.
func (e *Engine) closeSellAll(pos *Position, id [32]byte, recipient crypto.Address, owed, availableHeld *big.Int, exch ExchangeWrapper, order []byte, receipt *CloseReceipt) error {
	custodian := e.collat.Custodian()
	exchAddr := exch.Address()
	if err := e.collat.Debit(id, pos.HeldAsset, exchAddr, availableHeld); err != nil {
		return err
	}
	proceeds, err := exch.Exchange(pos.HeldAsset, pos.OwedAsset, availableHeld, order)
	if err != nil {
		return err
	}
	if proceeds == nil || proceeds.Cmp(owed) < 0 {
		return errInsufficientSale
	}
	if owed.Sign() > 0 {
		if err := e.ledger.TransferFrom(pos.OwedAsset, custodian, exchAddr, pos.Lender, owed); err != nil {
			return fmt.Errorf("%w: exchange proceeds unavailable: %v", common.ErrInvariant, err)
		}
	}
	payout := new(big.Int).Sub(proceeds, owed)
	if payout.Sign() > 0 {
		if err := e.ledger.TransferFrom(pos.OwedAsset, custodian, exchAddr, recipient, payout); err != nil {
			return fmt.Errorf("%w: exchange proceeds unavailable: %v", common.ErrInvariant, err)
		}
	}
	receipt.OwedPaidToLender = owed
	receipt.PayoutAmount = payout
	return nil
}

// consentClose bounds the close amount by the owner's consent when a third
// party closes. The delegate must name a positive amount no greater than
// requested; zero or excess is a rejection.
func (e *Engine) consentClose(pos *Position, closer, recipient crypto.Address, requested *big.Int) (*big.Int, error) {
	if closer.Equal(pos.Owner) {
		return requested, nil
	}
	impl, ok := e.delegateFor(pos.Owner)
	if !ok {
		return nil, errUnauthorized
	}
	delegate, ok := impl.(CloseDelegate)
	if !ok {
		return nil, fmt.Errorf("%w: owner cannot approve closes", errDelegateRefused)
	}
	allowed, err := delegate.ClosePositionOnBehalfOf(closer, recipient, pos.ID, requested)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errDelegateRefused, err)
	}
	if allowed == nil || allowed.Sign() <= 0 || allowed.Cmp(requested) > 0 {
		return nil, errDelegateRefused
	}
	return new(big.Int).Set(allowed), nil
}
