package lending

import (
	"math/big"
	"testing"
)

func TestInterestOneYearExact(t *testing.T) {
	// 100 principal at 10% for exactly one year owes 10.
	got := Interest(big.NewInt(100), secondsPerYear, 10)
	if got.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("interest = %s, want 10", got)
	}
}

func TestInterestFloorsTowardZero(t *testing.T) {
	// 100 * 10 * 1s / (31_536_000 * 100) is well below 1 and floors to 0.
	got := Interest(big.NewInt(100), 1, 10)
	if got.Sign() != 0 {
		t.Fatalf("interest = %s, want 0", got)
	}

	// Half a year at 10% on 99 principal: 99*10*15768000/3153600000 = 4.95, floors to 4.
	got = Interest(big.NewInt(99), secondsPerYear/2, 10)
	if got.Cmp(big.NewInt(4)) != 0 {
		t.Fatalf("interest = %s, want 4", got)
	}
}

func TestInterestZeroInputs(t *testing.T) {
	if got := Interest(nil, secondsPerYear, 10); got.Sign() != 0 {
		t.Fatalf("interest(nil principal) = %s, want 0", got)
	}
	if got := Interest(big.NewInt(0), secondsPerYear, 10); got.Sign() != 0 {
		t.Fatalf("interest(0 principal) = %s, want 0", got)
	}
	if got := Interest(big.NewInt(100), 0, 10); got.Sign() != 0 {
		t.Fatalf("interest(0 duration) = %s, want 0", got)
	}
}

func TestInterestDeterministic(t *testing.T) {
	// Same inputs always produce the same value. The repayment path and
	// the preview path share this function, so this is the whole
	// preview-equals-settlement guarantee.
	a := Interest(big.NewInt(12345), 86_400*37, 7)
	b := Interest(big.NewInt(12345), 86_400*37, 7)
	if a.Cmp(b) != 0 {
		t.Fatalf("interest not deterministic: %s vs %s", a, b)
	}
}

func TestRequiredCollateral(t *testing.T) {
	cases := []struct {
		principal int64
		ratio     int64
		want      int64
	}{
		{100, 150, 150},
		{100, 100, 100},
		{1, 150, 1},   // 1*150/100 = 1.5 floors to 1
		{99, 150, 148}, // 99*150/100 = 148.5 floors to 148
	}
	for _, tc := range cases {
		got := RequiredCollateral(big.NewInt(tc.principal), tc.ratio)
		if got.Cmp(big.NewInt(tc.want)) != 0 {
			t.Errorf("RequiredCollateral(%d, %d) = %s, want %d", tc.principal, tc.ratio, got, tc.want)
		}
	}
}

func TestMaxBorrowable(t *testing.T) {
	cases := []struct {
		collateral int64
		ratio      int64
		want       int64
	}{
		{150, 150, 100},
		{100, 150, 66}, // 100*100/150 = 66.67 floors to 66
		{0, 150, 0},
	}
	for _, tc := range cases {
		got := MaxBorrowable(big.NewInt(tc.collateral), tc.ratio)
		if got.Cmp(big.NewInt(tc.want)) != 0 {
			t.Errorf("MaxBorrowable(%d, %d) = %s, want %d", tc.collateral, tc.ratio, got, tc.want)
		}
	}
}
