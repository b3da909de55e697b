package lending

import "fmt"

// Params fixes the economic terms of an engine instance for its lifetime.
type Params struct {
	// Annual interest rate in whole percent, 1..100 inclusive.
	InterestRate int64

	// Collateral required per 100 units of principal, in whole percent.
	// Must be >= 100 (full or over-collateralization). Zero selects the
	// uncollateralized variant: borrow is bounded by pool liquidity only.
	CollateralRatio int64
}

func (p Params) Validate() error {
	if p.InterestRate < 1 || p.InterestRate > 100 {
		return fmt.Errorf("%w: interest rate %d%% outside [1,100]", ErrInvalidConfig, p.InterestRate)
	}
	if p.CollateralRatio != 0 && p.CollateralRatio < 100 {
		return fmt.Errorf("%w: collateral ratio %d%% below 100", ErrInvalidConfig, p.CollateralRatio)
	}
	return nil
}

// Collateralized reports whether borrow operations are collateral-gated.
func (p Params) Collateralized() bool {
	return p.CollateralRatio > 0
}
