package asset

import (
	"errors"
	"math/big"

	"github.com/google/uuid"
)

var (
	ErrInsufficientBalance   = errors.New("asset: insufficient balance")
	ErrInsufficientAllowance = errors.New("asset: insufficient allowance")
	ErrInvalidAmount         = errors.New("asset: amount must be positive")
)

// Settlement is the boundary contract for the fungible settlement asset.
// The ledger consumes it as an opaque value-transfer collaborator; mint,
// burn and approval policy live on the other side of this interface.
type Settlement interface {
	// BalanceOf returns the current balance of an account.
	BalanceOf(account uuid.UUID) *big.Int

	// Allowance returns how much spender may pull from owner via TransferFrom.
	Allowance(owner, spender uuid.UUID) *big.Int

	// Transfer pushes amount from one account to another.
	Transfer(from, to uuid.UUID, amount *big.Int) error

	// TransferFrom pulls amount from owner to recipient, consuming spender's
	// allowance. Requires prior approval by owner.
	TransferFrom(spender, owner, recipient uuid.UUID, amount *big.Int) error
}

// Native is the value-transfer collaborator for the native settlement asset
// used as collateral. Collateral is valued 1:1, so the interface carries no
// pricing surface at all.
type Native interface {
	BalanceOf(account uuid.UUID) *big.Int
	Transfer(from, to uuid.UUID, amount *big.Int) error
}
