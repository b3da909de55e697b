package lending

import (
	"fmt"
	"math/big"
	"time"

	"LendLedger/internal/asset"
	"LendLedger/internal/event"

	"github.com/google/uuid"
)

// Engine holds the full accounting state of one lending instance:
// per-account balances, the single-loan state machine, and references
// to the two external value ledgers (settlement asset for lend/borrow
// funds, native asset for collateral custody).
//
// Engine methods are NOT safe for concurrent use. All calls must be
// serialized by the owning core loop; the reentrancy guard only rejects
// nested re-entry from within a settlement callback, it is not a lock.
type Engine struct {
	params     Params
	settlement asset.Settlement
	collateral asset.Native

	// Identity under which the instance custodies value in both
	// external ledgers.
	pool uuid.UUID

	accounts map[uuid.UUID]*Account
	guard    Guard

	now func() time.Time
}

func NewEngine(params Params, settlement asset.Settlement, collateral asset.Native, pool uuid.UUID) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if settlement == nil {
		return nil, fmt.Errorf("%w: nil settlement asset", ErrInvalidConfig)
	}
	if collateral == nil {
		return nil, fmt.Errorf("%w: nil collateral ledger", ErrInvalidConfig)
	}
	return &Engine{
		params:     params,
		settlement: settlement,
		collateral: collateral,
		pool:       pool,
		accounts:   make(map[uuid.UUID]*Account),
		now:        time.Now,
	}, nil
}

// Params returns the immutable instance terms.
func (e *Engine) Params() Params {
	return e.params
}

// Pool returns the custody identity of the instance.
func (e *Engine) Pool() uuid.UUID {
	return e.pool
}

// account returns the record for id, creating a zero-valued one on
// first touch.
func (e *Engine) account(id uuid.UUID) *Account {
	a, ok := e.accounts[id]
	if !ok {
		a = newAccount(id)
		e.accounts[id] = a
	}
	return a
}

func validAmount(amount *big.Int) bool {
	return amount != nil && amount.Sign() > 0
}

// DepositCollateral pulls amount of the native asset from the caller
// into pool custody and credits the caller's collateral balance.
func (e *Engine) DepositCollateral(caller uuid.UUID, amount *big.Int) (*event.Record, error) {
	if !validAmount(amount) {
		return nil, ErrInvalidAmount
	}
	if err := e.collateral.Transfer(caller, e.pool, amount); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	acct := e.account(caller)
	acct.CollateralBalance = new(big.Int).Add(acct.CollateralBalance, amount)
	return event.NewCollateralDeposited(caller, amount, e.now()), nil
}

// WithdrawCollateral releases collateral back to the caller. While a
// loan is active the remaining collateral must still cover the
// outstanding principal at the configured ratio. The balance debit
// happens before the external transfer; on transfer failure the debit
// is restored and the whole call fails.
func (e *Engine) WithdrawCollateral(caller uuid.UUID, amount *big.Int) (*event.Record, error) {
	if !e.guard.Enter() {
		return nil, ErrReentrantCall
	}
	defer e.guard.Exit()

	if !validAmount(amount) {
		return nil, ErrInvalidAmount
	}
	acct := e.account(caller)
	if acct.CollateralBalance.Cmp(amount) < 0 {
		return nil, ErrInsufficientCollateral
	}
	remaining := new(big.Int).Sub(acct.CollateralBalance, amount)
	if acct.HasLoan() && e.params.Collateralized() {
		required := RequiredCollateral(acct.BorrowedPrincipal, e.params.CollateralRatio)
		if remaining.Cmp(required) < 0 {
			return nil, ErrInsufficientCollateral
		}
	}

	// Debit before the external transfer.
	prior := acct.CollateralBalance
	acct.CollateralBalance = remaining

	if err := e.collateral.Transfer(e.pool, caller, amount); err != nil {
		acct.CollateralBalance = prior
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	return event.NewCollateralWithdrawn(caller, amount, e.now()), nil
}

// Lend pulls amount of the settlement asset from the caller into pool
// custody (approval required beforehand) and credits the caller's
// lending balance.
func (e *Engine) Lend(caller uuid.UUID, amount *big.Int) (*event.Record, error) {
	if !e.guard.Enter() {
		return nil, ErrReentrantCall
	}
	defer e.guard.Exit()

	if !validAmount(amount) {
		return nil, ErrInvalidAmount
	}
	if e.settlement.BalanceOf(caller).Cmp(amount) < 0 {
		return nil, ErrInsufficientBalance
	}
	if e.settlement.Allowance(caller, e.pool).Cmp(amount) < 0 {
		return nil, ErrInsufficientAllowance
	}
	if err := e.settlement.TransferFrom(e.pool, caller, e.pool, amount); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	acct := e.account(caller)
	acct.LendingBalance = new(big.Int).Add(acct.LendingBalance, amount)
	return event.NewFundsLent(caller, amount, e.now()), nil
}

// Borrow issues a loan of amount to the caller, gated on collateral
// sufficiency (collateralized variant) and real pool custody. The loan
// fields are set before the outbound transfer and rolled back if the
// transfer fails.
func (e *Engine) Borrow(caller uuid.UUID, amount *big.Int) (*event.Record, error) {
	if !e.guard.Enter() {
		return nil, ErrReentrantCall
	}
	defer e.guard.Exit()

	if !validAmount(amount) {
		return nil, ErrInvalidAmount
	}
	acct := e.account(caller)
	if acct.HasLoan() {
		return nil, ErrOutstandingLoan
	}
	if e.params.Collateralized() {
		required := RequiredCollateral(amount, e.params.CollateralRatio)
		if acct.CollateralBalance.Cmp(required) < 0 {
			return nil, ErrInsufficientCollateral
		}
	}
	// Real custody, not a tracked counter: the check reflects funds
	// actually held even after external transfers.
	if e.settlement.BalanceOf(e.pool).Cmp(amount) < 0 {
		return nil, ErrInsufficientPoolFunds
	}

	now := e.now()
	acct.BorrowedPrincipal = new(big.Int).Set(amount)
	acct.BorrowStart = now.Unix()

	if err := e.settlement.Transfer(e.pool, caller, amount); err != nil {
		acct.BorrowedPrincipal = big.NewInt(0)
		acct.BorrowStart = 0
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	return event.NewLoanIssued(caller, amount, acct.CollateralBalance, now), nil
}

// Repay settles the caller's loan in full: principal plus interest
// accrued since issue, pulled from the caller into pool custody. No
// partial repayment exists. The loan fields are zeroed before the pull
// and restored if the pull fails, so a failed repay leaves the loan
// exactly as it was.
func (e *Engine) Repay(caller uuid.UUID) (*event.Record, error) {
	if !e.guard.Enter() {
		return nil, ErrReentrantCall
	}
	defer e.guard.Exit()

	acct := e.account(caller)
	if !acct.HasLoan() {
		return nil, ErrNoActiveLoan
	}

	now := e.now()
	principal := acct.BorrowedPrincipal
	interest := Interest(principal, now.Unix()-acct.BorrowStart, e.params.InterestRate)
	owed := new(big.Int).Add(principal, interest)

	if e.settlement.BalanceOf(caller).Cmp(owed) < 0 {
		return nil, ErrInsufficientBalance
	}
	if e.settlement.Allowance(caller, e.pool).Cmp(owed) < 0 {
		return nil, ErrInsufficientAllowance
	}

	// Zero the loan before the pull so a reentrant repay on the same
	// loan sees NoActiveLoan.
	priorStart := acct.BorrowStart
	acct.BorrowedPrincipal = big.NewInt(0)
	acct.BorrowStart = 0

	if err := e.settlement.TransferFrom(e.pool, caller, e.pool, owed); err != nil {
		acct.BorrowedPrincipal = principal
		acct.BorrowStart = priorStart
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	return event.NewLoanRepaid(caller, principal, interest, now), nil
}

// Restore applies a persisted event record to account state without
// touching the external ledgers: the value movements already happened
// when the record was first committed, only the tracked balances need
// rebuilding. Records must be applied in sequence order before the
// engine serves traffic.
func (e *Engine) Restore(rec *event.Record) error {
	if rec == nil || rec.Amount == nil {
		return fmt.Errorf("restore: incomplete record")
	}
	acct := e.account(rec.Account)
	switch rec.Type {
	case event.TypeCollateralDeposited:
		acct.CollateralBalance = new(big.Int).Add(acct.CollateralBalance, rec.Amount)
	case event.TypeCollateralWithdrawn:
		acct.CollateralBalance = new(big.Int).Sub(acct.CollateralBalance, rec.Amount)
	case event.TypeFundsLent:
		acct.LendingBalance = new(big.Int).Add(acct.LendingBalance, rec.Amount)
	case event.TypeLoanIssued:
		acct.BorrowedPrincipal = new(big.Int).Set(rec.Amount)
		acct.BorrowStart = rec.Timestamp.Unix()
	case event.TypeLoanRepaid:
		acct.BorrowedPrincipal = big.NewInt(0)
		acct.BorrowStart = 0
	default:
		return fmt.Errorf("restore: unknown event type %d at sequence %d", rec.Type, rec.Sequence)
	}
	return nil
}

// TotalRepayment returns what Repay would require of the account right
// now, 0 if no loan is active. Side-effect free; two calls at different
// times may differ because interest accrues against the live clock.
func (e *Engine) TotalRepayment(id uuid.UUID) *big.Int {
	acct, ok := e.accounts[id]
	if !ok || !acct.HasLoan() {
		return big.NewInt(0)
	}
	interest := Interest(acct.BorrowedPrincipal, e.now().Unix()-acct.BorrowStart, e.params.InterestRate)
	return new(big.Int).Add(acct.BorrowedPrincipal, interest)
}

// MaxBorrowableAmount returns the largest principal the account's
// collateral can back, 0 if a loan is already active or the instance is
// uncollateralized. Client guidance only, the borrow-time check is
// authoritative.
func (e *Engine) MaxBorrowableAmount(id uuid.UUID) *big.Int {
	if !e.params.Collateralized() {
		return big.NewInt(0)
	}
	acct, ok := e.accounts[id]
	if !ok || acct.HasLoan() {
		return big.NewInt(0)
	}
	return MaxBorrowable(acct.CollateralBalance, e.params.CollateralRatio)
}

// PreviewInterest exposes the accrual formula for clients. Identical to
// what Repay settles at the same principal and duration.
func (e *Engine) PreviewInterest(principal *big.Int, durationSeconds int64) *big.Int {
	return Interest(principal, durationSeconds, e.params.InterestRate)
}

// PoolBalance returns the settlement funds the pool actually custodies.
func (e *Engine) PoolBalance() *big.Int {
	return e.settlement.BalanceOf(e.pool)
}

func (e *Engine) CollateralBalance(id uuid.UUID) *big.Int {
	if acct, ok := e.accounts[id]; ok {
		return new(big.Int).Set(acct.CollateralBalance)
	}
	return big.NewInt(0)
}

func (e *Engine) LendingBalance(id uuid.UUID) *big.Int {
	if acct, ok := e.accounts[id]; ok {
		return new(big.Int).Set(acct.LendingBalance)
	}
	return big.NewInt(0)
}

// Loan returns the outstanding principal and issue time, or ok=false
// when the account has no active loan.
func (e *Engine) Loan(id uuid.UUID) (principal *big.Int, start int64, ok bool) {
	acct, exists := e.accounts[id]
	if !exists || !acct.HasLoan() {
		return big.NewInt(0), 0, false
	}
	return new(big.Int).Set(acct.BorrowedPrincipal), acct.BorrowStart, true
}
