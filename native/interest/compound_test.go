package interest

import (
	"errors"
	"math/big"
	"testing"

	"margincore/native/common"
)

func TestPeriods(t *testing.T) {
	cases := []struct {
		elapsed int64
		period  uint32
		roundUp bool
		want    uint64
	}{
		{0, 100, true, 0},
		{-5, 100, true, 0},
		{1, 0, true, 1},
		{10, 1, true, 10},
		{100, 100, true, 1},
		{101, 100, true, 2},
		{101, 100, false, 1},
		{199, 100, false, 1},
		{200, 100, false, 2},
	}
	for _, tc := range cases {
		if got := Periods(tc.elapsed, tc.period, tc.roundUp); got != tc.want {
			t.Errorf("Periods(%d, %d, %v) = %d, want %d", tc.elapsed, tc.period, tc.roundUp, got, tc.want)
		}
	}
}

func TestCompoundedZeroPeriodsChargesNothing(t *testing.T) {
	principal := big.NewInt(1_000_000)
	owed, err := Compounded(principal, 10_000, 0)
	if err != nil {
		t.Fatalf("Compounded: %v", err)
	}
	if owed.Cmp(principal) != 0 {
		t.Fatalf("owed = %s, want %s", owed, principal)
	}
}

func TestCompoundedOnePercentOnePeriod(t *testing.T) {
	// 1% per period on 1,000,000 over one period owes exactly 1,010,000.
	owed, err := Compounded(big.NewInt(1_000_000), 10_000, 1)
	if err != nil {
		t.Fatalf("Compounded: %v", err)
	}
	if owed.Cmp(big.NewInt(1_010_000)) != 0 {
		t.Fatalf("owed = %s, want 1010000", owed)
	}
}

func TestCompoundedMultiplePeriods(t *testing.T) {
	// 10% per period over 3 periods: 1000 * 1.1^3 = 1331.
	owed, err := Compounded(big.NewInt(1000), 100_000, 3)
	if err != nil {
		t.Fatalf("Compounded: %v", err)
	}
	if owed.Cmp(big.NewInt(1331)) != 0 {
		t.Fatalf("owed = %s, want 1331", owed)
	}
}

func TestCompoundedLargeExponentStaysBounded(t *testing.T) {
	// A large exponent must terminate quickly and stay close to the exact
	// value despite the bounded fraction width.
	principal := new(big.Int).SetUint64(1_000_000_000_000)
	owed, err := Compounded(principal, 100, 1<<20)
	if err != nil {
		t.Fatalf("Compounded: %v", err)
	}
	if owed.Cmp(principal) <= 0 {
		t.Fatalf("owed = %s, want > principal", owed)
	}
}

func TestCompoundedRoundsUp(t *testing.T) {
	// 1% on 1: exact owed is 1.01, ceiling gives 2.
	owed, err := Compounded(big.NewInt(1), 10_000, 1)
	if err != nil {
		t.Fatalf("Compounded: %v", err)
	}
	if owed.Cmp(big.NewInt(2)) != 0 {
		t.Fatalf("owed = %s, want 2", owed)
	}
}

func TestCompoundedPrecisionBoundIsFatal(t *testing.T) {
	_, err := CompoundedAtPrecision(big.NewInt(100), 10_000, 1, MaxPrecisionBits+1)
	if !errors.Is(err, ErrPrecision) {
		t.Fatalf("err = %v, want ErrPrecision", err)
	}
	if !errors.Is(err, common.ErrInvariant) {
		t.Fatalf("precision error must be classed as invariant violation, got %v", err)
	}
	_, err = CompoundedAtPrecision(big.NewInt(100), 10_000, 1, 0)
	if !errors.Is(err, ErrPrecision) {
		t.Fatalf("err = %v, want ErrPrecision for zero width", err)
	}
}

func TestNewFractionZeroDenominatorIsFatal(t *testing.T) {
	_, err := NewFraction(big.NewInt(1), big.NewInt(0))
	if !errors.Is(err, common.ErrInvariant) {
		t.Fatalf("err = %v, want ErrInvariant", err)
	}
}

func TestFractionAdditionPreservesRatio(t *testing.T) {
	big63 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 63), big.NewInt(1))
	f, err := NewFraction(big63, big63)
	if err != nil {
		t.Fatalf("NewFraction: %v", err)
	}
	sum, err := f.Add(f, MaxPrecisionBits)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	// The sum of x/x + x/x is exactly 2.
	twice := new(big.Int).Mul(sum.Den, big.NewInt(2))
	if sum.Num.Cmp(twice) != 0 {
		t.Fatalf("sum = %s/%s, want ratio 2", sum.Num, sum.Den)
	}
}

func TestFractionBoundKeepsWidthBounded(t *testing.T) {
	ones127 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	f, err := NewFraction(ones127, ones127)
	if err != nil {
		t.Fatalf("NewFraction: %v", err)
	}
	product, err := f.Mul(f, MaxPrecisionBits)
	if err != nil {
		t.Fatalf("Mul: %v", err)
	}
	if product.Num.BitLen() > MaxPrecisionBits+1 || product.Den.BitLen() > MaxPrecisionBits {
		t.Fatalf("product = %d/%d bits, want <= %d", product.Num.BitLen(), product.Den.BitLen(), MaxPrecisionBits)
	}
}
