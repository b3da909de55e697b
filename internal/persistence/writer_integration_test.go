package persistence_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"LendLedger/internal/event"
	"LendLedger/internal/observability"
	"LendLedger/internal/persistence"
	"LendLedger/internal/testutil"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func TestWriteBatchIdempotentOnSequence(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	writer := persistence.NewEventLogWriter(db)

	rec := event.NewCollateralDeposited(uuid.New(), big.NewInt(42), time.Now().UTC())
	rec.Sequence = 1
	row := persistence.RowFromRecord(rec)

	for i := 0; i < 2; i++ {
		tx, err := db.Begin()
		if err != nil {
			t.Fatalf("begin: %v", err)
		}
		if err := writer.WriteBatch(ctx, tx, []persistence.EventRow{row}); err != nil {
			tx.Rollback()
			t.Fatalf("write attempt %d: %v", i, err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatalf("commit attempt %d: %v", i, err)
		}
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM lend_ledger.events").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 row after replay, got %d", count)
	}

	seq, err := writer.LastSequence(ctx)
	if err != nil {
		t.Fatalf("LastSequence: %v", err)
	}
	if seq != 1 {
		t.Fatalf("LastSequence = %d, want 1", seq)
	}
}

func TestLastSequenceEmptyLog(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	writer := persistence.NewEventLogWriter(db)
	seq, err := writer.LastSequence(context.Background())
	if err != nil {
		t.Fatalf("LastSequence: %v", err)
	}
	if seq != 0 {
		t.Fatalf("LastSequence on empty log = %d, want 0", seq)
	}
}

func TestWorkerDrainsChannelOnClose(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ch := make(chan *event.Record, 8)
	for i := 1; i <= 3; i++ {
		rec := event.NewCollateralDeposited(uuid.New(), big.NewInt(int64(i)), time.Now().UTC())
		rec.Sequence = int64(i)
		ch <- rec
	}
	close(ch)

	worker := persistence.NewWorker(db, ch, 50, 10*time.Millisecond, nil,
		observability.NewLoggerWithLevel("persistence", zerolog.ErrorLevel))
	if err := worker.Run(context.Background()); err != nil {
		t.Fatalf("worker run: %v", err)
	}

	seq, err := worker.Writer().LastSequence(context.Background())
	if err != nil {
		t.Fatalf("LastSequence: %v", err)
	}
	if seq != 3 {
		t.Fatalf("LastSequence = %d, want 3", seq)
	}
}

func TestReadFromRoundTrip(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	writer := persistence.NewEventLogWriter(db)

	account := uuid.New()
	now := time.Now().Truncate(time.Second).UTC()
	issued := event.NewLoanIssued(account, big.NewInt(100), big.NewInt(150), now)
	issued.Sequence = 1
	repaid := event.NewLoanRepaid(account, big.NewInt(100), big.NewInt(10), now.Add(time.Hour))
	repaid.Sequence = 2

	rows := []persistence.EventRow{
		persistence.RowFromRecord(issued),
		persistence.RowFromRecord(repaid),
	}
	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := writer.WriteBatch(ctx, tx, rows); err != nil {
		tx.Rollback()
		t.Fatalf("write batch: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	recs, err := writer.ReadFrom(ctx, 1, 10)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}

	got := recs[0]
	if got.Type != event.TypeLoanIssued || got.Sequence != 1 {
		t.Fatalf("recs[0] = type %s seq %d, want LoanIssued 1", got.Type, got.Sequence)
	}
	if got.EventID != issued.EventID || got.Account != account {
		t.Fatalf("recs[0] identity mismatch: %s / %s", got.EventID, got.Account)
	}
	if got.Amount.Cmp(big.NewInt(100)) != 0 || got.Collateral.Cmp(big.NewInt(150)) != 0 {
		t.Fatalf("recs[0] amounts = %s/%s, want 100/150", got.Amount, got.Collateral)
	}
	if got.Timestamp.Unix() != now.Unix() {
		t.Fatalf("recs[0] timestamp = %d, want %d", got.Timestamp.Unix(), now.Unix())
	}

	got = recs[1]
	if got.Type != event.TypeLoanRepaid || got.Amount.Cmp(big.NewInt(110)) != 0 {
		t.Fatalf("recs[1] = type %s amount %s, want LoanRepaid 110", got.Type, got.Amount)
	}
	if got.Principal.Cmp(big.NewInt(100)) != 0 || got.Interest.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("recs[1] principal/interest = %s/%s, want 100/10", got.Principal, got.Interest)
	}
	if got.Collateral != nil {
		t.Fatalf("recs[1] collateral = %s, want nil", got.Collateral)
	}

	tail, err := writer.ReadFrom(ctx, 2, 10)
	if err != nil {
		t.Fatalf("ReadFrom tail: %v", err)
	}
	if len(tail) != 1 || tail[0].Sequence != 2 {
		t.Fatalf("tail = %d records, want 1 at seq 2", len(tail))
	}
}
