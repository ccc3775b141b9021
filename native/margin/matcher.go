package margin

import (
	"math/big"

	"margincore/crypto"
	"margincore/native/common"
)

// fillOffering enforces the matcher rules for consuming part of a loan
// offering and records the fill. Over-fill is never clamped: a request that
// does not fit in the remaining capacity fails whole. Lender and taker fees
// are charged pro-rata to the borrowed fraction of MaxAmount.
func (e *Engine) fillOffering(offer *LoanOffering, sig []byte, taker crypto.Address, amount *big.Int) ([32]byte, error) {
	if offer == nil {
		return [32]byte{}, errNilOffering
	}
	if offer.OwedAsset.IsZero() || offer.HeldAsset.IsZero() || offer.OwedAsset.Equal(offer.HeldAsset) {
		return [32]byte{}, errOfferingTerms
	}
	if offer.MaxDuration == 0 || offer.InterestPeriod > offer.MaxDuration {
		return [32]byte{}, errOfferingTerms
	}
	if offer.MaxAmount == nil || offer.MaxAmount.Sign() <= 0 {
		return [32]byte{}, errOfferingTerms
	}
	if err := offer.VerifySignature(sig); err != nil {
		return [32]byte{}, err
	}
	if !offer.Taker.IsZero() && !offer.Taker.Equal(taker) {
		return [32]byte{}, errTakerRestricted
	}
	if e.nowFn() >= offer.Expiration {
		return [32]byte{}, errOfferingExpired
	}
	if offer.MinAmount != nil && amount.Cmp(offer.MinAmount) < 0 {
		return [32]byte{}, errBelowMinAmount
	}

	hash := offer.Hash()
	filled := e.state.FilledAmount(hash)
	consumed := new(big.Int).Add(filled, e.state.CanceledAmount(hash))
	if new(big.Int).Add(consumed, amount).Cmp(offer.MaxAmount) > 0 {
		return [32]byte{}, errOverFill
	}

	if err := e.chargeFee(offer.LenderFeeAsset, offer.Payer, offer.FeeRecipient, offer.LenderFee, amount, offer.MaxAmount); err != nil {
		return [32]byte{}, err
	}
	if err := e.chargeFee(offer.TakerFeeAsset, taker, offer.FeeRecipient, offer.TakerFee, amount, offer.MaxAmount); err != nil {
		return [32]byte{}, err
	}

	if err := e.state.SetFilledAmount(hash, filled.Add(filled, amount)); err != nil {
		return [32]byte{}, err
	}
	return hash, nil
}

// chargeFee pulls the borrowed fraction of the full-fill fee. Rounded down,
// so dust fractions are forgiven rather than over-charged.
func (e *Engine) chargeFee(asset, from, recipient crypto.Address, fee, amount, maxAmount *big.Int) error {
	if fee == nil || fee.Sign() == 0 || recipient.IsZero() {
		return nil
	}
	due, err := partialAmount(amount, maxAmount, fee, false)
	if err != nil {
		return err
	}
	if due.Sign() == 0 {
		return nil
	}
	return e.ledger.TransferFrom(asset, e.collat.Custodian(), from, recipient, due)
}

// CancelLoanOffering marks up to amount of the offering's remaining unfilled
// capacity as canceled. Only the payer may cancel, and the canceled amount
// only ever grows. Canceling a fully consumed offering is rejected.
func (e *Engine) CancelLoanOffering(offer *LoanOffering, caller crypto.Address, amount *big.Int) (canceled *big.Int, err error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := common.Guard(e.modeView, common.ActionCancelLoan); err != nil {
		return nil, err
	}
	if offer == nil {
		return nil, errNilOffering
	}
	if !caller.Equal(offer.Payer) {
		return nil, errUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	finish, err := e.begin()
	if err != nil {
		return nil, err
	}
	defer func() { finish(err) }()

	hash := offer.Hash()
	prior := e.state.CanceledAmount(hash)
	consumed := new(big.Int).Add(e.state.FilledAmount(hash), prior)
	remaining := new(big.Int).Sub(offer.MaxAmount, consumed)
	if remaining.Sign() <= 0 {
		return nil, errOfferingCanceled
	}
	delta := minBig(amount, remaining)
	if err = e.state.SetCanceledAmount(hash, new(big.Int).Add(prior, delta)); err != nil {
		return nil, err
	}
	e.queue(newLoanOfferingCanceledEvent(hash, offer.Payer, offer.FeeRecipient, delta))
	return delta, nil
}
