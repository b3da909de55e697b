package event

import (
	"math/big"
	"time"

	"github.com/google/uuid"
)

// Type discriminator for ledger event records
type Type int32

const (
	TypeUnknown Type = iota
	TypeCollateralDeposited
	TypeCollateralWithdrawn
	TypeFundsLent
	TypeLoanIssued
	TypeLoanRepaid
)

func (t Type) String() string {
	switch t {
	case TypeCollateralDeposited:
		return "CollateralDeposited"
	case TypeCollateralWithdrawn:
		return "CollateralWithdrawn"
	case TypeFundsLent:
		return "FundsLent"
	case TypeLoanIssued:
		return "LoanIssued"
	case TypeLoanRepaid:
		return "LoanRepaid"
	default:
		return "Unknown"
	}
}

// ParseType maps a stored event-type name back to its discriminator.
// Unrecognized names yield TypeUnknown.
func ParseType(s string) Type {
	switch s {
	case "CollateralDeposited":
		return TypeCollateralDeposited
	case "CollateralWithdrawn":
		return TypeCollateralWithdrawn
	case "FundsLent":
		return TypeFundsLent
	case "LoanIssued":
		return TypeLoanIssued
	case "LoanRepaid":
		return TypeLoanRepaid
	default:
		return TypeUnknown
	}
}

// Record is the append-only log entry emitted for every successful mutation.
// Sequence is assigned by the core when the record enters the log; everything
// else is set by the engine at the moment the mutation commits.
type Record struct {
	// Global monotonic sequence assigned by core
	Sequence int64

	// Event type discriminator
	Type Type

	// Unique record identity, doubles as the idempotency key downstream
	EventID uuid.UUID

	// Account the mutation applies to
	Account uuid.UUID

	// Amount moved by the operation (deposit/withdraw/lend amount,
	// loan principal on issue, total paid on repay)
	Amount *big.Int

	// Collateral backing the loan at issue time (LoanIssued only)
	Collateral *big.Int

	// Outstanding principal settled (LoanRepaid only)
	Principal *big.Int

	// Interest portion of the repayment (LoanRepaid only)
	Interest *big.Int

	// Engine clock at commit time
	Timestamp time.Time
}

func NewCollateralDeposited(account uuid.UUID, amount *big.Int, at time.Time) *Record {
	return &Record{
		Type:      TypeCollateralDeposited,
		EventID:   uuid.New(),
		Account:   account,
		Amount:    new(big.Int).Set(amount),
		Timestamp: at,
	}
}

func NewCollateralWithdrawn(account uuid.UUID, amount *big.Int, at time.Time) *Record {
	return &Record{
		Type:      TypeCollateralWithdrawn,
		EventID:   uuid.New(),
		Account:   account,
		Amount:    new(big.Int).Set(amount),
		Timestamp: at,
	}
}

func NewFundsLent(account uuid.UUID, amount *big.Int, at time.Time) *Record {
	return &Record{
		Type:      TypeFundsLent,
		EventID:   uuid.New(),
		Account:   account,
		Amount:    new(big.Int).Set(amount),
		Timestamp: at,
	}
}

func NewLoanIssued(account uuid.UUID, principal, collateral *big.Int, at time.Time) *Record {
	return &Record{
		Type:       TypeLoanIssued,
		EventID:    uuid.New(),
		Account:    account,
		Amount:     new(big.Int).Set(principal),
		Collateral: new(big.Int).Set(collateral),
		Timestamp:  at,
	}
}

func NewLoanRepaid(account uuid.UUID, principal, interest *big.Int, at time.Time) *Record {
	total := new(big.Int).Add(principal, interest)
	return &Record{
		Type:      TypeLoanRepaid,
		EventID:   uuid.New(),
		Account:   account,
		Amount:    total,
		Principal: new(big.Int).Set(principal),
		Interest:  new(big.Int).Set(interest),
		Timestamp: at,
	}
}
