package lending

import "math/big"

// secondsPerYear is the fixed accrual denominator (365 days, no leap
// adjustment).
const secondsPerYear = 365 * 24 * 60 * 60

// Interest computes the interest owed on principal after durationSeconds
// at ratePercent annual interest:
//
//	principal * ratePercent * durationSeconds / (secondsPerYear * 100)
//
// Integer floor division throughout. Rounding down is intentional and
// favors the borrower; preview and settlement must both go through this
// function so the two never drift.
func Interest(principal *big.Int, durationSeconds int64, ratePercent int64) *big.Int {
	if principal == nil || principal.Sign() <= 0 || durationSeconds <= 0 {
		return big.NewInt(0)
	}
	n := new(big.Int).Mul(principal, big.NewInt(ratePercent))
	n.Mul(n, big.NewInt(durationSeconds))
	return n.Quo(n, big.NewInt(secondsPerYear*100))
}

// RequiredCollateral returns the collateral needed to back principal at
// ratioPercent: principal * ratioPercent / 100, floor division.
func RequiredCollateral(principal *big.Int, ratioPercent int64) *big.Int {
	n := new(big.Int).Mul(principal, big.NewInt(ratioPercent))
	return n.Quo(n, big.NewInt(100))
}

// MaxBorrowable is the inverse of RequiredCollateral: the largest
// principal that collateral can back at ratioPercent, floor division.
func MaxBorrowable(collateral *big.Int, ratioPercent int64) *big.Int {
	if ratioPercent <= 0 {
		return big.NewInt(0)
	}
	n := new(big.Int).Mul(collateral, big.NewInt(100))
	return n.Quo(n, big.NewInt(ratioPercent))
}
