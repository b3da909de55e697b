package lending

import "errors"

var (
	// Construction-time failures. Fatal: the engine cannot be created.
	ErrInvalidConfig = errors.New("lending: invalid configuration")

	// Caller-supplied amount is zero, negative, or missing.
	ErrInvalidAmount = errors.New("lending: amount must be positive")

	// Settlement-asset preconditions on the caller's side.
	ErrInsufficientBalance   = errors.New("lending: insufficient settlement balance")
	ErrInsufficientAllowance = errors.New("lending: insufficient allowance")
	ErrTransferFailed        = errors.New("lending: settlement transfer failed")

	// Loan state machine preconditions.
	ErrOutstandingLoan = errors.New("lending: loan already outstanding")
	ErrNoActiveLoan    = errors.New("lending: no active loan")

	// Solvency preconditions.
	ErrInsufficientCollateral = errors.New("lending: insufficient collateral")
	ErrInsufficientPoolFunds  = errors.New("lending: insufficient pool funds")

	// A guarded entry point was re-entered while another call was in flight.
	ErrReentrantCall = errors.New("lending: reentrant call rejected")
)
