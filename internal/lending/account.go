package lending

import (
	"math/big"

	"github.com/google/uuid"
)

// Account is the per-caller ledger record. First touch creates a
// zero-valued record implicitly; records are never deleted, only the
// loan fields are zeroed on full repayment.
type Account struct {
	ID uuid.UUID

	// Cumulative funds supplied to the pool.
	LendingBalance *big.Int

	// Native-asset collateral pledged, available to back a loan.
	CollateralBalance *big.Int

	// Outstanding loan principal. Zero means no active loan.
	BorrowedPrincipal *big.Int

	// Unix seconds the principal was issued. Zero when no loan.
	// Nonzero iff BorrowedPrincipal is nonzero.
	BorrowStart int64
}

func newAccount(id uuid.UUID) *Account {
	return &Account{
		ID:                id,
		LendingBalance:    big.NewInt(0),
		CollateralBalance: big.NewInt(0),
		BorrowedPrincipal: big.NewInt(0),
	}
}

// HasLoan reports whether the account is in the ActiveLoan state.
func (a *Account) HasLoan() bool {
	return a.BorrowedPrincipal.Sign() > 0
}
