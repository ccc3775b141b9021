package margin

import (
	"fmt"
	"math/big"

	"margincore/crypto"
	"margincore/native/common"
)

// IncreaseRequest adds principal to an open position using a loan offering
// for the same asset pair.
type IncreaseRequest struct {
	ID                 [32]byte
	Trader             crypto.Address
	Principal          *big.Int
	DepositInHeldAsset bool
	Offering           *LoanOffering
	Signature          []byte
	Exchange           ExchangeWrapper
	Order              []byte
}

// IncreasePosition grows the position's principal. The offering's terms must
// be at least as lender-favorable as the position's, and the held-asset per
// unit of principal may never decrease, so existing collateralization is
// never diluted. The existing owner and lender must consent when the caller
// or funding source is not them.
func (e *Engine) IncreasePosition(req IncreaseRequest) (err error) {
	if err := e.ready(); err != nil {
		return err
	}
	if err := common.Guard(e.modeView, common.ActionIncrease); err != nil {
		return err
	}
	if req.Offering == nil {
		return errNilOffering
	}
	if req.Exchange == nil {
		return errNilExchange
	}
	if req.Principal == nil || req.Principal.Sign() <= 0 {
		return errInvalidAmount
	}
	finish, err := e.begin()
	if err != nil {
		return err
	}
	defer func() { finish(err) }()

	pos, err := e.openPosition(req.ID)
	if err != nil {
		return err
	}
	if e.nowFn() >= pos.StartTimestamp+int64(pos.MaxDuration) {
		return errPositionExpired
	}

	offer := req.Offering
	if !offer.OwedAsset.Equal(pos.OwedAsset) || !offer.HeldAsset.Equal(pos.HeldAsset) {
		return errAssetMismatch
	}
	if offer.InterestRate != pos.InterestRate || offer.InterestPeriod != pos.InterestPeriod {
		return errTermsMismatch
	}
	if offer.CallTimeLimit < pos.CallTimeLimit || offer.MaxDuration < pos.MaxDuration {
		return errTermsMismatch
	}

	loanHash, err := e.fillOffering(offer, req.Signature, req.Trader, req.Principal)
	if err != nil {
		return err
	}

	// The increase must bring at least the held asset the position already
	// carries per unit of principal, rounded up.
	startHeld := e.collat.Balance(req.ID, pos.HeldAsset)
	requiredHeld, err := partialAmount(req.Principal, pos.Principal, startHeld, true)
	if err != nil {
		return err
	}

	custodian := e.collat.Custodian()
	exchAddr := req.Exchange.Address()
	var heldFromSale, deposit *big.Int
	if req.DepositInHeldAsset {
		if err = e.ledger.TransferFrom(offer.OwedAsset, custodian, offer.Payer, exchAddr, req.Principal); err != nil {
			return err
		}
		heldFromSale, err = req.Exchange.Exchange(offer.OwedAsset, offer.HeldAsset, req.Principal, req.Order)
		if err != nil {
			return err
		}
		if heldFromSale == nil || heldFromSale.Sign() < 0 {
			return errInsufficientSale
		}
		if heldFromSale.Sign() > 0 {
			if err = e.collat.Credit(req.ID, offer.HeldAsset, exchAddr, heldFromSale); err != nil {
				return err
			}
		}
		deposit = new(big.Int).Sub(requiredHeld, heldFromSale)
		if deposit.Sign() <= 0 {
			return errDepositRequired
		}
		if err = e.collat.Credit(req.ID, offer.HeldAsset, req.Trader, deposit); err != nil {
			return err
		}
	} else {
		// Deposit in owed asset: the trader tops up the borrowed amount so
		// the combined sale buys the full required held asset.
		cost, costErr := req.Exchange.ExchangeCost(offer.OwedAsset, offer.HeldAsset, requiredHeld, req.Order)
		if costErr != nil {
			return costErr
		}
		deposit = new(big.Int).Sub(cost, req.Principal)
		if deposit.Sign() <= 0 {
			return errDepositRequired
		}
		if err = e.ledger.TransferFrom(offer.OwedAsset, custodian, offer.Payer, exchAddr, req.Principal); err != nil {
			return err
		}
		if err = e.ledger.TransferFrom(offer.OwedAsset, custodian, req.Trader, exchAddr, deposit); err != nil {
			return err
		}
		heldFromSale, err = req.Exchange.Exchange(offer.OwedAsset, offer.HeldAsset, cost, req.Order)
		if err != nil {
			return err
		}
		if heldFromSale == nil || heldFromSale.Cmp(requiredHeld) < 0 {
			return errInsufficientSale
		}
		if err = e.collat.Credit(req.ID, offer.HeldAsset, exchAddr, heldFromSale); err != nil {
			return err
		}
	}

	if err = e.consentIncrease(pos, req.Trader, offer.Payer, req.Principal); err != nil {
		return err
	}

	pos.Principal = new(big.Int).Add(pos.Principal, req.Principal)
	if err = e.state.PutPosition(pos); err != nil {
		return err
	}
	e.queue(newPositionIncreasedEvent(pos, req.Trader, loanHash, req.Principal, heldFromSale, deposit, req.DepositInHeldAsset))
	return nil
}

// consentIncrease requires explicit approval from the position owner when the
// trader is a third party, and from the lender when the funding payer is not
// the lender itself.
func (e *Engine) consentIncrease(pos *Position, trader, payer crypto.Address, amount *big.Int) error {
	if !trader.Equal(pos.Owner) {
		impl, ok := e.delegateFor(pos.Owner)
		if !ok {
			return errUnauthorized
		}
		delegate, ok := impl.(IncreaseDelegate)
		if !ok {
			return fmt.Errorf("%w: owner cannot approve increases", errDelegateRefused)
		}
		if err := delegate.IncreasePositionOnBehalfOf(trader, pos.ID, amount); err != nil {
			return fmt.Errorf("%w: %v", errDelegateRefused, err)
		}
	}
	if !payer.Equal(pos.Lender) {
		impl, ok := e.delegateFor(pos.Lender)
		if !ok {
			return errUnauthorized
		}
		delegate, ok := impl.(LoanIncreaseDelegate)
		if !ok {
			return fmt.Errorf("%w: lender cannot approve increases", errDelegateRefused)
		}
		if err := delegate.IncreaseLoanOnBehalfOf(payer, pos.ID, amount); err != nil {
			return fmt.Errorf("%w: %v", errDelegateRefused, err)
		}
	}
	return nil
}
