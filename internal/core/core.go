package core

import (
	"context"
	"errors"
	"math/big"
	"time"

	"LendLedger/internal/event"
	"LendLedger/internal/lending"
	"LendLedger/internal/observability"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Core owns the lending engine and serializes every operation, reads
// included, through a single-writer loop. Callers on any goroutine
// enqueue a request and block until the loop has executed it. This is
// what realizes the one-mutation-at-a-time discipline the engine
// assumes; the engine's own guard only catches synchronous re-entry
// from a settlement callback inside an operation.
type Core struct {
	engine   *lending.Engine
	sequence int64

	requests chan request

	// persistChan uses a BLOCKING send (backpressure): the loop stalls
	// until the persistence worker drains, so no event is ever lost.
	// publishChan is non-blocking with drop on full; consumers can
	// rebuild from the event log.
	persistChan chan<- *event.Record
	publishChan chan<- *event.Record

	metrics *observability.Metrics
	log     zerolog.Logger
}

type request struct {
	op   string
	run  func() (*event.Record, error)
	done chan result
}

type result struct {
	record *event.Record
	err    error
}

func New(
	engine *lending.Engine,
	startSequence int64,
	persistChan, publishChan chan<- *event.Record,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *Core {
	return &Core{
		engine:      engine,
		sequence:    startSequence,
		requests:    make(chan request, 256),
		persistChan: persistChan,
		publishChan: publishChan,
		metrics:     metrics,
		log:         log,
	}
}

// Run drains the request queue until ctx is cancelled. Must be the
// only goroutine touching the engine.
func (c *Core) Run(ctx context.Context) {
	c.log.Info().Int64("start_sequence", c.sequence).Msg("core loop started")
	for {
		select {
		case <-ctx.Done():
			c.log.Info().Int64("sequence", c.sequence).Msg("core loop stopped")
			return
		case req := <-c.requests:
			c.handle(req)
		}
	}
}

func (c *Core) handle(req request) {
	start := time.Now()
	rec, err := req.run()

	if err != nil {
		if c.metrics != nil {
			c.metrics.CoreOpsRejected.WithLabelValues(req.op, rejectReason(err)).Inc()
		}
		req.done <- result{err: err}
		return
	}

	if rec != nil {
		rec.Sequence = c.sequence
		c.sequence++

		select {
		case c.persistChan <- rec:
		default:
			// Buffer full: the loop stalls here until the
			// persistence worker drains.
			if c.metrics != nil {
				c.metrics.PersistBackpressure.Inc()
			}
			c.persistChan <- rec
		}

		select {
		case c.publishChan <- rec:
		default:
			// Dropped; indexers catch up from the event log.
			if c.metrics != nil {
				c.metrics.PublishDrops.Inc()
			}
		}

		c.log.Debug().
			Int64("sequence", rec.Sequence).
			Str("event_type", rec.Type.String()).
			Str("account", rec.Account.String()).
			Str("amount", rec.Amount.String()).
			Msg("operation applied")

		if c.metrics != nil {
			c.metrics.CoreOpsApplied.WithLabelValues(req.op).Inc()
			c.metrics.CoreOpDuration.WithLabelValues(req.op).Observe(time.Since(start).Seconds())
			c.metrics.CoreSequence.Set(float64(c.sequence))
			c.recordDomainMetrics(rec)
		}
	}

	req.done <- result{record: rec}
}

func (c *Core) recordDomainMetrics(rec *event.Record) {
	switch rec.Type {
	case event.TypeLoanIssued:
		c.metrics.LoansIssued.Inc()
		c.metrics.ActiveLoans.Inc()
	case event.TypeLoanRepaid:
		c.metrics.LoansRepaid.Inc()
		c.metrics.ActiveLoans.Dec()
		if rec.Interest != nil {
			interest, _ := new(big.Float).SetInt(rec.Interest).Float64()
			c.metrics.InterestPaid.Add(interest)
		}
	}
	pool, _ := new(big.Float).SetInt(c.engine.PoolBalance()).Float64()
	c.metrics.PoolBalance.Set(pool)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, lending.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, lending.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, lending.ErrInsufficientAllowance):
		return "insufficient_allowance"
	case errors.Is(err, lending.ErrTransferFailed):
		return "transfer_failed"
	case errors.Is(err, lending.ErrOutstandingLoan):
		return "outstanding_loan"
	case errors.Is(err, lending.ErrNoActiveLoan):
		return "no_active_loan"
	case errors.Is(err, lending.ErrInsufficientCollateral):
		return "insufficient_collateral"
	case errors.Is(err, lending.ErrInsufficientPoolFunds):
		return "insufficient_pool_funds"
	case errors.Is(err, lending.ErrReentrantCall):
		return "reentrant_call"
	default:
		return "other"
	}
}

// submit enqueues a request and waits for the loop to execute it.
func (c *Core) submit(ctx context.Context, op string, run func() (*event.Record, error)) (*event.Record, error) {
	req := request{op: op, run: run, done: make(chan result, 1)}
	select {
	case c.requests <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case res := <-req.done:
		return res.record, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// read runs fn inside the loop with no event emission. fn writes its
// results into captured variables.
func (c *Core) read(ctx context.Context, op string, fn func()) error {
	_, err := c.submit(ctx, op, func() (*event.Record, error) {
		fn()
		return nil, nil
	})
	return err
}

// --- Mutations ---

func (c *Core) DepositCollateral(ctx context.Context, account uuid.UUID, amount *big.Int) (*event.Record, error) {
	return c.submit(ctx, "deposit_collateral", func() (*event.Record, error) {
		return c.engine.DepositCollateral(account, amount)
	})
}

func (c *Core) WithdrawCollateral(ctx context.Context, account uuid.UUID, amount *big.Int) (*event.Record, error) {
	return c.submit(ctx, "withdraw_collateral", func() (*event.Record, error) {
		return c.engine.WithdrawCollateral(account, amount)
	})
}

func (c *Core) Lend(ctx context.Context, account uuid.UUID, amount *big.Int) (*event.Record, error) {
	return c.submit(ctx, "lend", func() (*event.Record, error) {
		return c.engine.Lend(account, amount)
	})
}

func (c *Core) Borrow(ctx context.Context, account uuid.UUID, amount *big.Int) (*event.Record, error) {
	return c.submit(ctx, "borrow", func() (*event.Record, error) {
		return c.engine.Borrow(account, amount)
	})
}

func (c *Core) Repay(ctx context.Context, account uuid.UUID) (*event.Record, error) {
	return c.submit(ctx, "repay", func() (*event.Record, error) {
		return c.engine.Repay(account)
	})
}

// --- Reads ---

func (c *Core) TotalRepayment(ctx context.Context, account uuid.UUID) (*big.Int, error) {
	var out *big.Int
	err := c.read(ctx, "total_repayment", func() {
		out = c.engine.TotalRepayment(account)
	})
	return out, err
}

func (c *Core) MaxBorrowableAmount(ctx context.Context, account uuid.UUID) (*big.Int, error) {
	var out *big.Int
	err := c.read(ctx, "max_borrowable", func() {
		out = c.engine.MaxBorrowableAmount(account)
	})
	return out, err
}

func (c *Core) PreviewInterest(ctx context.Context, principal *big.Int, durationSeconds int64) (*big.Int, error) {
	var out *big.Int
	err := c.read(ctx, "preview_interest", func() {
		out = c.engine.PreviewInterest(principal, durationSeconds)
	})
	return out, err
}

func (c *Core) PoolBalance(ctx context.Context) (*big.Int, error) {
	var out *big.Int
	err := c.read(ctx, "pool_balance", func() {
		out = c.engine.PoolBalance()
	})
	return out, err
}

// AccountState is a point-in-time view of one account.
type AccountState struct {
	Account           uuid.UUID
	LendingBalance    *big.Int
	CollateralBalance *big.Int
	BorrowedPrincipal *big.Int
	BorrowStart       int64
	TotalRepayment    *big.Int
	MaxBorrowable     *big.Int
}

// Account reads all per-account fields in one pass through the loop so
// the view is internally consistent.
func (c *Core) Account(ctx context.Context, account uuid.UUID) (*AccountState, error) {
	state := &AccountState{Account: account}
	err := c.read(ctx, "account", func() {
		state.LendingBalance = c.engine.LendingBalance(account)
		state.CollateralBalance = c.engine.CollateralBalance(account)
		principal, start, ok := c.engine.Loan(account)
		if ok {
			state.BorrowedPrincipal = principal
			state.BorrowStart = start
		} else {
			state.BorrowedPrincipal = big.NewInt(0)
		}
		state.TotalRepayment = c.engine.TotalRepayment(account)
		state.MaxBorrowable = c.engine.MaxBorrowableAmount(account)
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// Params returns the immutable instance terms. No loop round-trip
// needed, params never change after construction.
func (c *Core) Params() lending.Params {
	return c.engine.Params()
}

// Pool returns the instance's custody identity, constant after
// construction.
func (c *Core) Pool() uuid.UUID {
	return c.engine.Pool()
}

// Sequence returns the next sequence the loop will assign. Only safe
// before Run starts or after it stops.
func (c *Core) Sequence() int64 {
	return c.sequence
}
