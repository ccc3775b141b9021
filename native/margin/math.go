package margin

import (
	"fmt"
	"math/big"

	"margincore/native/common"
)

// partialAmount computes target * numerator / denominator with the requested
// rounding. A zero denominator is a fatal invariant violation.
func partialAmount(numerator, denominator, target *big.Int, roundUp bool) (*big.Int, error) {
	if denominator == nil || denominator.Sign() == 0 {
		return nil, fmt.Errorf("%w: partial amount denominator is zero", common.ErrInvariant)
	}
	out := new(big.Int).Mul(target, numerator)
	if roundUp {
		out.Add(out, new(big.Int).Sub(denominator, big.NewInt(1)))
	}
	return out.Quo(out, denominator), nil
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}
