package interest

import (
	"errors"
	"fmt"
	"math/big"

	"margincore/native/common"
)

// RateDenominator fixes the interest rate unit: a rate of RateDenominator is
// 100% per interest period.
const RateDenominator = 1_000_000

// ErrPrecision marks a fatal request for unbounded-cost math. It wraps
// common.ErrInvariant so callers only need to test one sentinel.
var ErrPrecision = fmt.Errorf("%w: interest precision out of range", common.ErrInvariant)

var errNegativePrincipal = errors.New("interest: principal must be non-negative")

// Periods converts elapsed seconds into a whole number of interest periods.
// With roundUp set, any partial period counts as a full one. A period of zero
// or one second means every elapsed second is its own period.
func Periods(elapsed int64, period uint32, roundUp bool) uint64 {
	if elapsed <= 0 {
		return 0
	}
	if period <= 1 {
		return uint64(elapsed)
	}
	n := uint64(elapsed) / uint64(period)
	if roundUp && uint64(elapsed)%uint64(period) != 0 {
		n++
	}
	return n
}

// Compounded returns the total owed after compounding the principal at
// ratePPM (parts-per-million per period) over the given number of whole
// periods: ceil(principal * (1 + rate)^periods). The ceiling keeps rounding in
// the lender's favour.
func Compounded(principal *big.Int, ratePPM uint32, periods uint64) (*big.Int, error) {
	return CompoundedAtPrecision(principal, ratePPM, periods, MaxPrecisionBits)
}

// CompoundedAtPrecision is Compounded with an explicit fraction width. A
// width of zero or beyond MaxPrecisionBits is rejected as fatal.
func CompoundedAtPrecision(principal *big.Int, ratePPM uint32, periods uint64, precisionBits uint) (*big.Int, error) {
	if precisionBits == 0 || precisionBits > MaxPrecisionBits {
		return nil, fmt.Errorf("%w: %d bits", ErrPrecision, precisionBits)
	}
	if principal == nil || principal.Sign() < 0 {
		return nil, errNegativePrincipal
	}
	if periods == 0 || ratePPM == 0 || principal.Sign() == 0 {
		return new(big.Int).Set(principal), nil
	}

	base, err := NewFraction(
		big.NewInt(int64(RateDenominator)+int64(ratePPM)),
		big.NewInt(RateDenominator),
	)
	if err != nil {
		return nil, err
	}

	// Exponentiation by squaring, renormalising after every multiply so the
	// operand width stays bounded regardless of the exponent.
	factor := One()
	for exp := periods; exp > 0; exp >>= 1 {
		if exp&1 == 1 {
			factor, err = factor.Mul(base, precisionBits)
			if err != nil {
				return nil, err
			}
		}
		if exp > 1 {
			base, err = base.Mul(base, precisionBits)
			if err != nil {
				return nil, err
			}
		}
	}
	return factor.ApplyCeil(principal)
}

// OwedAmount computes the total owed on the closed principal share after the
// elapsed time, rounding elapsed up to whole periods and capping nothing:
// callers cap elapsed at the position's max duration before calling.
func OwedAmount(principal *big.Int, ratePPM uint32, period uint32, elapsed int64) (*big.Int, error) {
	return Compounded(principal, ratePPM, Periods(elapsed, period, true))
}
