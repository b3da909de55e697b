package query

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// Service provides read-only access to the persisted event log. Live
// balances come from the core; this serves history and audit queries
// that the in-memory state no longer holds.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// AccountEvents returns an account's event history, newest first, with
// cursor pagination on sequence.
func (s *Service) AccountEvents(
	ctx context.Context,
	accountID uuid.UUID,
	limit int,
	beforeSequence *int64,
) ([]EventEntry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := `
		SELECT sequence, event_type, event_id, account_id, amount,
		       COALESCE(collateral::text, ''), COALESCE(principal::text, ''),
		       COALESCE(interest::text, ''), EXTRACT(EPOCH FROM timestamp)::bigint
		FROM lend_ledger.events
		WHERE account_id = $1
	`
	args := []interface{}{accountID}
	argIdx := 2

	if beforeSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *beforeSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []EventEntry
	for rows.Next() {
		var e EventEntry
		if err := rows.Scan(
			&e.Sequence, &e.EventType, &e.EventID, &e.AccountID,
			&e.Amount, &e.Collateral, &e.Principal, &e.Interest, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// AccountSummary aggregates one account's activity from the full log.
func (s *Service) AccountSummary(ctx context.Context, accountID uuid.UUID) (*AccountActivity, error) {
	asOfSeq, err := s.lastSequence(ctx)
	if err != nil {
		return nil, fmt.Errorf("last sequence: %w", err)
	}

	activity := &AccountActivity{AccountID: accountID, AsOfSequence: asOfSeq}

	err = s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE event_type = 'CollateralDeposited'),
			COUNT(*) FILTER (WHERE event_type = 'CollateralWithdrawn'),
			COUNT(*) FILTER (WHERE event_type = 'LoanIssued'),
			COUNT(*) FILTER (WHERE event_type = 'LoanRepaid'),
			COUNT(*) FILTER (WHERE event_type = 'FundsLent'),
			COALESCE(SUM(amount) FILTER (WHERE event_type = 'FundsLent'), 0)::text,
			COALESCE(SUM(interest) FILTER (WHERE event_type = 'LoanRepaid'), 0)::text,
			COALESCE(MIN(sequence), 0),
			COALESCE(MAX(sequence), 0)
		FROM lend_ledger.events
		WHERE account_id = $1
	`, accountID).Scan(
		&activity.Deposits, &activity.Withdrawals,
		&activity.LoansIssued, &activity.LoansRepaid,
		&activity.LendOperations, &activity.TotalLent, &activity.TotalInterest,
		&activity.FirstSequence, &activity.LatestSequence,
	)
	if err != nil {
		return nil, err
	}

	return activity, nil
}

// Events returns a global slice of the log for auditors, newest first.
func (s *Service) Events(ctx context.Context, limit int, beforeSequence *int64) ([]EventEntry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := `
		SELECT sequence, event_type, event_id, account_id, amount,
		       COALESCE(collateral::text, ''), COALESCE(principal::text, ''),
		       COALESCE(interest::text, ''), EXTRACT(EPOCH FROM timestamp)::bigint
		FROM lend_ledger.events
	`
	args := []interface{}{}
	argIdx := 1

	if beforeSequence != nil {
		query += fmt.Sprintf(" WHERE sequence < $%d", argIdx)
		args = append(args, *beforeSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []EventEntry
	for rows.Next() {
		var e EventEntry
		if err := rows.Scan(
			&e.Sequence, &e.EventType, &e.EventID, &e.AccountID,
			&e.Amount, &e.Collateral, &e.Principal, &e.Interest, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func (s *Service) lastSequence(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(sequence) FROM lend_ledger.events`).Scan(&seq)
	if err != nil {
		return 0, err
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}
