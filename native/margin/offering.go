package margin

import (
	"errors"
	"math/big"

	"margincore/crypto"
)

// offeringDomain separates loan offering digests from any other signed
// payload in the system.
const offeringDomain = "margincore/loan-offering/v1"

var (
	errOfferingSignature = errors.New("margin engine: loan offering signature invalid")
	errOfferingExpired   = errors.New("margin engine: loan offering expired")
	errOfferingTerms     = errors.New("margin engine: loan offering terms invalid")
	errTakerRestricted   = errors.New("margin engine: caller is not the authorized taker")
	errBelowMinAmount    = errors.New("margin engine: fill below offering minimum")
	errOverFill          = errors.New("margin engine: fill exceeds offering capacity")
)

// LoanOffering is an off-ledger signed lending intent. The payer funds the
// loan; the owner, when set, receives the loan right on open. Offerings are
// consumed incrementally across open and increase calls until filled plus
// canceled reaches MaxAmount.
type LoanOffering struct {
	OwedAsset      crypto.Address
	HeldAsset      crypto.Address
	Payer          crypto.Address
	Owner          crypto.Address
	Taker          crypto.Address
	PositionOwner  crypto.Address
	FeeRecipient   crypto.Address
	LenderFeeAsset crypto.Address
	TakerFeeAsset  crypto.Address

	MaxAmount     *big.Int
	MinAmount     *big.Int
	MinHeldAmount *big.Int
	LenderFee     *big.Int
	TakerFee      *big.Int
	Expiration    int64
	Salt          *big.Int

	CallTimeLimit  uint32
	MaxDuration    uint32
	InterestRate   uint32
	InterestPeriod uint32
}

// Hash returns the canonical digest identifying the offering. The digest
// binds every economic field, so any alteration invalidates the signature.
func (o *LoanOffering) Hash() [32]byte {
	values := crypto.Keccak256(
		uint256Bytes(o.MaxAmount),
		uint256Bytes(o.MinAmount),
		uint256Bytes(o.MinHeldAmount),
		uint256Bytes(o.LenderFee),
		uint256Bytes(o.TakerFee),
		uint256Bytes(big.NewInt(o.Expiration)),
		uint256Bytes(o.Salt),
		uint32Bytes(o.CallTimeLimit),
		uint32Bytes(o.MaxDuration),
		uint32Bytes(o.InterestRate),
		uint32Bytes(o.InterestPeriod),
	)
	return crypto.Keccak256(
		[]byte(offeringDomain),
		o.OwedAsset.Bytes(),
		o.HeldAsset.Bytes(),
		o.Payer.Bytes(),
		o.Owner.Bytes(),
		o.Taker.Bytes(),
		o.PositionOwner.Bytes(),
		o.FeeRecipient.Bytes(),
		o.LenderFeeAsset.Bytes(),
		o.TakerFeeAsset.Bytes(),
		values[:],
	)
}

// VerifySignature checks that the detached signature over the canonical hash
// recovers to the offering's payer.
func (o *LoanOffering) VerifySignature(sig []byte) error {
	signer, err := crypto.RecoverSigner(o.Hash(), sig)
	if err != nil {
		return errOfferingSignature
	}
	if !signer.Equal(o.Payer) {
		return errOfferingSignature
	}
	return nil
}

func uint256Bytes(v *big.Int) []byte {
	out := make([]byte, 32)
	if v == nil || v.Sign() == 0 {
		return out
	}
	v.FillBytes(out)
	return out
}

func uint32Bytes(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}
