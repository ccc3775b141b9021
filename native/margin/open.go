package margin

import (
	"math/big"

	"margincore/crypto"
	"margincore/native/common"
)

// OpenRequest opens a new leveraged position against a signed loan offering.
type OpenRequest struct {
	Trader crypto.Address
	Nonce  uint64
	// Owner optionally reassigns position ownership away from the trader.
	Owner     crypto.Address
	Principal *big.Int
	// Deposit is the trader's collateral contribution, denominated in the
	// held asset or, when DepositInHeldAsset is false, in the owed asset and
	// sold together with the borrowed principal.
	Deposit            *big.Int
	DepositInHeldAsset bool
	Offering           *LoanOffering
	Signature          []byte
	Exchange           ExchangeWrapper
	Order              []byte
}

// OpenPosition borrows principal against the offering, sells it for held
// asset through the exchange wrapper, and credits the combined collateral to
// the vault under a fresh position id.
func (e *Engine) OpenPosition(req OpenRequest) (id [32]byte, err error) {
	if err := e.ready(); err != nil {
		return [32]byte{}, err
	}
	if err := common.Guard(e.modeView, common.ActionOpen); err != nil {
		return [32]byte{}, err
	}
	if req.Offering == nil {
		return [32]byte{}, errNilOffering
	}
	if req.Exchange == nil {
		return [32]byte{}, errNilExchange
	}
	if req.Principal == nil || req.Principal.Sign() <= 0 || req.Deposit == nil || req.Deposit.Sign() <= 0 {
		return [32]byte{}, errInvalidAmount
	}
	finish, err := e.begin()
	if err != nil {
		return [32]byte{}, err
	}
	defer func() { finish(err) }()

	id = PositionID(req.Trader, req.Nonce)
	if e.state.Status(id) != StatusUnused {
		return [32]byte{}, errPositionExists
	}

	offer := req.Offering
	loanHash, err := e.fillOffering(offer, req.Signature, req.Trader, req.Principal)
	if err != nil {
		return [32]byte{}, err
	}

	custodian := e.collat.Custodian()
	exchAddr := req.Exchange.Address()
	soldOwed := new(big.Int).Set(req.Principal)
	if err = e.ledger.TransferFrom(offer.OwedAsset, custodian, offer.Payer, exchAddr, req.Principal); err != nil {
		return [32]byte{}, err
	}
	if !req.DepositInHeldAsset {
		if err = e.ledger.TransferFrom(offer.OwedAsset, custodian, req.Trader, exchAddr, req.Deposit); err != nil {
			return [32]byte{}, err
		}
		soldOwed.Add(soldOwed, req.Deposit)
	}
	heldFromSale, err := req.Exchange.Exchange(offer.OwedAsset, offer.HeldAsset, soldOwed, req.Order)
	if err != nil {
		return [32]byte{}, err
	}
	if heldFromSale == nil || heldFromSale.Sign() <= 0 {
		return [32]byte{}, errInsufficientSale
	}
	if err = e.collat.Credit(id, offer.HeldAsset, exchAddr, heldFromSale); err != nil {
		return [32]byte{}, err
	}
	totalHeld := new(big.Int).Set(heldFromSale)
	if req.DepositInHeldAsset {
		if err = e.collat.Credit(id, offer.HeldAsset, req.Trader, req.Deposit); err != nil {
			return [32]byte{}, err
		}
		totalHeld.Add(totalHeld, req.Deposit)
	}

	// Collateralization floor scales MinHeldAmount by the borrowed fraction
	// of the offering: totalHeld/principal >= minHeld/maxAmount.
	if offer.MinHeldAmount != nil && offer.MinHeldAmount.Sign() > 0 {
		lhs := new(big.Int).Mul(totalHeld, offer.MaxAmount)
		rhs := new(big.Int).Mul(offer.MinHeldAmount, req.Principal)
		if lhs.Cmp(rhs) < 0 {
			return [32]byte{}, errCollateralRatio
		}
	}

	owner, err := e.openPositionOwner(req, id)
	if err != nil {
		return [32]byte{}, err
	}
	lender := offer.Payer
	if !offer.Owner.IsZero() && !offer.Owner.Equal(offer.Payer) {
		if lender, err = e.resolveLoanOwner(offer.Payer, offer.Owner, id); err != nil {
			return [32]byte{}, err
		}
	}

	pos := &Position{
		ID:              id,
		OwedAsset:       offer.OwedAsset,
		HeldAsset:       offer.HeldAsset,
		Principal:       new(big.Int).Set(req.Principal),
		InterestRate:    offer.InterestRate,
		InterestPeriod:  offer.InterestPeriod,
		CallTimeLimit:   offer.CallTimeLimit,
		MaxDuration:     offer.MaxDuration,
		StartTimestamp:  e.nowFn(),
		RequiredDeposit: big.NewInt(0),
		Owner:           owner,
		Lender:          lender,
	}
	if err = e.state.PutPosition(pos); err != nil {
		return [32]byte{}, err
	}
	if err = e.state.SetStatus(id, StatusOpen); err != nil {
		return [32]byte{}, err
	}

	e.queue(newPositionOpenedEvent(pos, req.Trader, loanHash, heldFromSale, req.Deposit, req.DepositInHeldAsset))
	if !owner.Equal(req.Trader) {
		e.queue(newPositionTransferredEvent(id, req.Trader, owner))
	}
	if !lender.Equal(offer.Payer) {
		e.queue(newLoanTransferredEvent(id, offer.Payer, lender))
	}
	return id, nil
}

func (e *Engine) openPositionOwner(req OpenRequest, id [32]byte) (crypto.Address, error) {
	target := req.Trader
	if !req.Owner.IsZero() {
		target = req.Owner
	}
	if !req.Offering.PositionOwner.IsZero() && !req.Offering.PositionOwner.Equal(target) {
		return crypto.Address{}, errOfferingTerms
	}
	if target.Equal(req.Trader) {
		return target, nil
	}
	return e.resolvePositionOwner(req.Trader, target, id)
}

// OpenDirectRequest opens a self-funded position with no loan offering and no
// counter-order: the trader is both borrower and lender.
type OpenDirectRequest struct {
	Trader    crypto.Address
	Nonce     uint64
	Owner     crypto.Address
	OwedAsset crypto.Address
	HeldAsset crypto.Address
	Principal *big.Int
	Deposit   *big.Int

	CallTimeLimit  uint32
	MaxDuration    uint32
	InterestRate   uint32
	InterestPeriod uint32
}

// OpenWithoutCounterparty opens a position funded entirely by the trader's
// held-asset deposit. Such positions settle via CloseWithoutCounterparty.
func (e *Engine) OpenWithoutCounterparty(req OpenDirectRequest) (id [32]byte, err error) {
	if err := e.ready(); err != nil {
		return [32]byte{}, err
	}
	if err := common.Guard(e.modeView, common.ActionOpen); err != nil {
		return [32]byte{}, err
	}
	if req.Principal == nil || req.Principal.Sign() <= 0 || req.Deposit == nil || req.Deposit.Sign() <= 0 {
		return [32]byte{}, errInvalidAmount
	}
	if req.OwedAsset.IsZero() || req.HeldAsset.IsZero() || req.OwedAsset.Equal(req.HeldAsset) {
		return [32]byte{}, errOfferingTerms
	}
	if req.MaxDuration == 0 || req.InterestPeriod > req.MaxDuration {
		return [32]byte{}, errOfferingTerms
	}
	finish, err := e.begin()
	if err != nil {
		return [32]byte{}, err
	}
	defer func() { finish(err) }()

	id = PositionID(req.Trader, req.Nonce)
	if e.state.Status(id) != StatusUnused {
		return [32]byte{}, errPositionExists
	}
	if err = e.collat.Credit(id, req.HeldAsset, req.Trader, req.Deposit); err != nil {
		return [32]byte{}, err
	}

	owner := req.Trader
	if !req.Owner.IsZero() && !req.Owner.Equal(req.Trader) {
		if owner, err = e.resolvePositionOwner(req.Trader, req.Owner, id); err != nil {
			return [32]byte{}, err
		}
	}

	pos := &Position{
		ID:              id,
		OwedAsset:       req.OwedAsset,
		HeldAsset:       req.HeldAsset,
		Principal:       new(big.Int).Set(req.Principal),
		InterestRate:    req.InterestRate,
		InterestPeriod:  req.InterestPeriod,
		CallTimeLimit:   req.CallTimeLimit,
		MaxDuration:     req.MaxDuration,
		StartTimestamp:  e.nowFn(),
		RequiredDeposit: big.NewInt(0),
		Owner:           owner,
		Lender:          owner,
	}
	if err = e.state.PutPosition(pos); err != nil {
		return [32]byte{}, err
	}
	if err = e.state.SetStatus(id, StatusOpen); err != nil {
		return [32]byte{}, err
	}

	e.queue(newPositionOpenedEvent(pos, req.Trader, [32]byte{}, big.NewInt(0), req.Deposit, true))
	if !owner.Equal(req.Trader) {
		e.queue(newPositionTransferredEvent(id, req.Trader, owner))
	}
	return id, nil
}
