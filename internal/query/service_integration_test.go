package query_test

import (
	"context"
	"database/sql"
	"math/big"
	"testing"
	"time"

	"LendLedger/internal/event"
	"LendLedger/internal/persistence"
	"LendLedger/internal/query"
	"LendLedger/internal/testutil"

	"github.com/google/uuid"
)

func seedEvents(t *testing.T, db *sql.DB, recs []*event.Record) {
	t.Helper()

	rows := make([]persistence.EventRow, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, persistence.RowFromRecord(rec))
	}

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	writer := persistence.NewEventLogWriter(db)
	if err := writer.WriteBatch(context.Background(), tx, rows); err != nil {
		tx.Rollback()
		t.Fatalf("write batch: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

// seedLoanCycle writes a four-event history: another account funds the
// pool, then the target account deposits, borrows, and repays.
func seedLoanCycle(t *testing.T, db *sql.DB, account, lender uuid.UUID) {
	t.Helper()

	now := time.Now().UTC()
	recs := []*event.Record{
		event.NewFundsLent(lender, big.NewInt(1000), now),
		event.NewCollateralDeposited(account, big.NewInt(150), now),
		event.NewLoanIssued(account, big.NewInt(100), big.NewInt(150), now),
		event.NewLoanRepaid(account, big.NewInt(100), big.NewInt(10), now.Add(time.Hour)),
	}
	for i, rec := range recs {
		rec.Sequence = int64(i + 1)
	}
	seedEvents(t, db, recs)
}

func TestAccountEventHistory(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	account := uuid.New()
	lender := uuid.New()
	seedLoanCycle(t, db, account, lender)

	svc := query.NewService(db)
	ctx := context.Background()

	entries, err := svc.AccountEvents(ctx, account, 10, nil)
	if err != nil {
		t.Fatalf("AccountEvents: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 events for account, got %d", len(entries))
	}

	// Newest first.
	repaid := entries[0]
	if repaid.Sequence != 4 || repaid.EventType != "LoanRepaid" {
		t.Fatalf("entries[0] = seq %d type %s, want seq 4 LoanRepaid", repaid.Sequence, repaid.EventType)
	}
	if repaid.Amount != "110" || repaid.Principal != "100" || repaid.Interest != "10" {
		t.Fatalf("repaid amounts = %s/%s/%s, want 110/100/10", repaid.Amount, repaid.Principal, repaid.Interest)
	}
	issued := entries[1]
	if issued.EventType != "LoanIssued" || issued.Collateral != "150" {
		t.Fatalf("entries[1] = type %s collateral %s, want LoanIssued 150", issued.EventType, issued.Collateral)
	}
	if entries[2].EventType != "CollateralDeposited" {
		t.Fatalf("entries[2] type = %s, want CollateralDeposited", entries[2].EventType)
	}

	// Cursor pagination.
	before := int64(4)
	page, err := svc.AccountEvents(ctx, account, 10, &before)
	if err != nil {
		t.Fatalf("AccountEvents before=4: %v", err)
	}
	if len(page) != 2 || page[0].Sequence != 3 || page[1].Sequence != 2 {
		t.Fatalf("page before seq 4 wrong: %+v", page)
	}
}

func TestAccountSummaryAggregation(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	account := uuid.New()
	lender := uuid.New()
	seedLoanCycle(t, db, account, lender)

	svc := query.NewService(db)
	ctx := context.Background()

	summary, err := svc.AccountSummary(ctx, account)
	if err != nil {
		t.Fatalf("AccountSummary: %v", err)
	}
	if summary.Deposits != 1 || summary.LoansIssued != 1 || summary.LoansRepaid != 1 {
		t.Fatalf("counts = %d/%d/%d, want 1/1/1", summary.Deposits, summary.LoansIssued, summary.LoansRepaid)
	}
	if summary.LendOperations != 0 || summary.TotalInterest != "10" {
		t.Fatalf("lend ops %d interest %s, want 0 and 10", summary.LendOperations, summary.TotalInterest)
	}
	if summary.FirstSequence != 2 || summary.LatestSequence != 4 || summary.AsOfSequence != 4 {
		t.Fatalf("sequences = %d/%d/%d, want 2/4/4", summary.FirstSequence, summary.LatestSequence, summary.AsOfSequence)
	}

	lenderSummary, err := svc.AccountSummary(ctx, lender)
	if err != nil {
		t.Fatalf("AccountSummary lender: %v", err)
	}
	if lenderSummary.LendOperations != 1 || lenderSummary.TotalLent != "1000" {
		t.Fatalf("lender = %d ops, %s lent, want 1 and 1000", lenderSummary.LendOperations, lenderSummary.TotalLent)
	}
}

func TestGlobalEventSlice(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	seedLoanCycle(t, db, uuid.New(), uuid.New())

	svc := query.NewService(db)
	ctx := context.Background()

	entries, err := svc.Events(ctx, 2, nil)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(entries) != 2 || entries[0].Sequence != 4 || entries[1].Sequence != 3 {
		t.Fatalf("head slice wrong: %+v", entries)
	}

	before := int64(3)
	entries, err = svc.Events(ctx, 10, &before)
	if err != nil {
		t.Fatalf("Events before=3: %v", err)
	}
	if len(entries) != 2 || entries[0].Sequence != 2 || entries[1].Sequence != 1 {
		t.Fatalf("tail slice wrong: %+v", entries)
	}
}
