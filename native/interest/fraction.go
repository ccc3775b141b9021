package interest

import (
	"fmt"
	"math/big"

	"margincore/native/common"
)

// MaxPrecisionBits is the largest fraction width the math will operate at.
// Requests beyond it are rejected as fatal to keep exponentiation cost bounded.
const MaxPrecisionBits = 128

// Fraction is a non-negative rational with arbitrary-precision numerator and
// denominator. The zero value is not valid; construct via NewFraction or One.
type Fraction struct {
	Num *big.Int
	Den *big.Int
}

// NewFraction builds a fraction from the given numerator and denominator. A
// zero or negative denominator is a fatal invariant violation.
func NewFraction(num, den *big.Int) (Fraction, error) {
	if den == nil || den.Sign() <= 0 {
		return Fraction{}, fmt.Errorf("%w: fraction denominator must be positive", common.ErrInvariant)
	}
	if num == nil || num.Sign() < 0 {
		return Fraction{}, fmt.Errorf("%w: fraction numerator must be non-negative", common.ErrInvariant)
	}
	return Fraction{Num: new(big.Int).Set(num), Den: new(big.Int).Set(den)}, nil
}

// One returns the fraction 1/1.
func One() Fraction {
	return Fraction{Num: big.NewInt(1), Den: big.NewInt(1)}
}

// Mul returns f*other bounded to the given precision.
func (f Fraction) Mul(other Fraction, precisionBits uint) (Fraction, error) {
	product := Fraction{
		Num: new(big.Int).Mul(f.Num, other.Num),
		Den: new(big.Int).Mul(f.Den, other.Den),
	}
	return product.bound(precisionBits)
}

// Add returns f+other bounded to the given precision.
func (f Fraction) Add(other Fraction, precisionBits uint) (Fraction, error) {
	num := new(big.Int).Mul(f.Num, other.Den)
	num.Add(num, new(big.Int).Mul(other.Num, f.Den))
	sum := Fraction{
		Num: num,
		Den: new(big.Int).Mul(f.Den, other.Den),
	}
	return sum.bound(precisionBits)
}

// ApplyCeil returns ceil(amount * f).
func (f Fraction) ApplyCeil(amount *big.Int) (*big.Int, error) {
	if f.Den == nil || f.Den.Sign() <= 0 {
		return nil, fmt.Errorf("%w: fraction denominator must be positive", common.ErrInvariant)
	}
	num := new(big.Int).Mul(amount, f.Num)
	num.Add(num, new(big.Int).Sub(f.Den, big.NewInt(1)))
	return num.Quo(num, f.Den), nil
}

// bound shifts numerator and denominator right by the same amount until both
// fit within precisionBits. The numerator is rounded up so that repeated
// bounding never under-states accrued interest.
func (f Fraction) bound(precisionBits uint) (Fraction, error) {
	if precisionBits == 0 || precisionBits > MaxPrecisionBits {
		return Fraction{}, fmt.Errorf("%w: %d bits", ErrPrecision, precisionBits)
	}
	if f.Den == nil || f.Den.Sign() <= 0 {
		return Fraction{}, fmt.Errorf("%w: fraction denominator must be positive", common.ErrInvariant)
	}
	numBits := uint(f.Num.BitLen())
	denBits := uint(f.Den.BitLen())
	widest := numBits
	if denBits > widest {
		widest = denBits
	}
	if widest <= precisionBits {
		return f, nil
	}
	shift := widest - precisionBits
	roundUp := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), shift), big.NewInt(1))
	num := new(big.Int).Add(f.Num, roundUp)
	num.Rsh(num, shift)
	den := new(big.Int).Rsh(f.Den, shift)
	if den.Sign() == 0 {
		// The ratio exceeds 2^precisionBits; saturate the denominator at one.
		// The factor is already beyond any realistic interest multiple and the
		// truncation only ever overstates the amount owed.
		den = big.NewInt(1)
	}
	return Fraction{Num: num, Den: den}, nil
}
