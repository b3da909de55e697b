package query

import "github.com/google/uuid"

// EventEntry represents one event-log row for API queries.
type EventEntry struct {
	Sequence   int64  `json:"sequence"`
	EventType  string `json:"event_type"`
	EventID    string `json:"event_id"`
	AccountID  string `json:"account_id"`
	Amount     string `json:"amount"`
	Collateral string `json:"collateral,omitempty"`
	Principal  string `json:"principal,omitempty"`
	Interest   string `json:"interest,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

// AccountActivity aggregates an account's history from the event log.
type AccountActivity struct {
	AccountID      uuid.UUID `json:"account_id"`
	Deposits       int64     `json:"deposits"`
	Withdrawals    int64     `json:"withdrawals"`
	LoansIssued    int64     `json:"loans_issued"`
	LoansRepaid    int64     `json:"loans_repaid"`
	LendOperations int64     `json:"lend_operations"`
	TotalLent      string    `json:"total_lent"`
	TotalInterest  string    `json:"total_interest"`
	FirstSequence  int64     `json:"first_sequence"`
	LatestSequence int64     `json:"latest_sequence"`
	AsOfSequence   int64     `json:"as_of_sequence"`
}
