package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"strings"
	"time"

	"LendLedger/internal/event"

	"github.com/google/uuid"
)

// EventLogWriter batch-writes ledger events to Postgres using
// multi-row INSERT. Amounts are stored as NUMERIC text so they survive
// arbitrary big.Int precision.
type EventLogWriter struct {
	db *sql.DB
}

// EventRow represents a row in lend_ledger.events.
type EventRow struct {
	Sequence   int64
	EventType  string
	EventID    string
	AccountID  string
	Amount     string
	Collateral sql.NullString
	Principal  sql.NullString
	Interest   sql.NullString
	Timestamp  int64 // unix seconds
}

// RowFromRecord flattens a core event record into its storage row.
func RowFromRecord(rec *event.Record) EventRow {
	row := EventRow{
		Sequence:  rec.Sequence,
		EventType: rec.Type.String(),
		EventID:   rec.EventID.String(),
		AccountID: rec.Account.String(),
		Amount:    rec.Amount.String(),
		Timestamp: rec.Timestamp.Unix(),
	}
	if rec.Collateral != nil {
		row.Collateral = sql.NullString{String: rec.Collateral.String(), Valid: true}
	}
	if rec.Principal != nil {
		row.Principal = sql.NullString{String: rec.Principal.String(), Valid: true}
	}
	if rec.Interest != nil {
		row.Interest = sql.NullString{String: rec.Interest.String(), Valid: true}
	}
	return row
}

func NewEventLogWriter(db *sql.DB) *EventLogWriter {
	return &EventLogWriter{db: db}
}

// WriteBatch writes a batch of events inside tx. ON CONFLICT DO
// NOTHING makes retried batches idempotent on both the sequence key
// and the event_id uniqueness.
func (w *EventLogWriter) WriteBatch(ctx context.Context, tx *sql.Tx, events []EventRow) error {
	if len(events) == 0 {
		return nil
	}

	query := `INSERT INTO lend_ledger.events
		(sequence, event_type, event_id, account_id, amount, collateral, principal, interest, timestamp)
		VALUES `

	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*9)

	for i, e := range events {
		base := i * 9
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, to_timestamp($%d))",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9,
		))
		args = append(args,
			e.Sequence, e.EventType, e.EventID, e.AccountID,
			e.Amount, e.Collateral, e.Principal, e.Interest, e.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// LastSequence returns the highest persisted sequence, 0 when the log
// is empty. Used at startup to resume sequence assignment.
func (w *EventLogWriter) LastSequence(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := w.db.QueryRowContext(ctx,
		`SELECT MAX(sequence) FROM lend_ledger.events`,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("query last sequence: %w", err)
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}

// ReadFrom returns up to limit events with sequence >= fromSequence in
// ascending order. Used by startup replay to rebuild engine state.
func (w *EventLogWriter) ReadFrom(ctx context.Context, fromSequence int64, limit int) ([]*event.Record, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT sequence, event_type, event_id, account_id, amount::text,
		       COALESCE(collateral::text, ''), COALESCE(principal::text, ''),
		       COALESCE(interest::text, ''), EXTRACT(EPOCH FROM timestamp)::bigint
		FROM lend_ledger.events
		WHERE sequence >= $1
		ORDER BY sequence
		LIMIT $2
	`, fromSequence, limit)
	if err != nil {
		return nil, fmt.Errorf("query events from %d: %w", fromSequence, err)
	}
	defer rows.Close()

	var recs []*event.Record
	for rows.Next() {
		var (
			row       EventRow
			eventType string
		)
		if err := rows.Scan(
			&row.Sequence, &eventType, &row.EventID, &row.AccountID, &row.Amount,
			&row.Collateral.String, &row.Principal.String, &row.Interest.String,
			&row.Timestamp,
		); err != nil {
			return nil, err
		}

		rec := &event.Record{
			Sequence:  row.Sequence,
			Type:      event.ParseType(eventType),
			Timestamp: time.Unix(row.Timestamp, 0).UTC(),
		}
		if rec.EventID, err = uuid.Parse(row.EventID); err != nil {
			return nil, fmt.Errorf("event %d: bad event id %q", row.Sequence, row.EventID)
		}
		if rec.Account, err = uuid.Parse(row.AccountID); err != nil {
			return nil, fmt.Errorf("event %d: bad account id %q", row.Sequence, row.AccountID)
		}
		if rec.Amount = parseNumeric(row.Amount); rec.Amount == nil {
			return nil, fmt.Errorf("event %d: bad amount %q", row.Sequence, row.Amount)
		}
		rec.Collateral = parseNumeric(row.Collateral.String)
		rec.Principal = parseNumeric(row.Principal.String)
		rec.Interest = parseNumeric(row.Interest.String)

		recs = append(recs, rec)
	}

	return recs, rows.Err()
}

// parseNumeric converts a NUMERIC column rendered as text back to a
// big.Int, nil for the empty string (NULL column).
func parseNumeric(s string) *big.Int {
	if s == "" {
		return nil
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil
	}
	return n
}
