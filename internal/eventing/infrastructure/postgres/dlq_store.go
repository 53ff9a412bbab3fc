package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fleet-settlement/internal/eventing"
	pgstore "fleet-settlement/internal/storage/postgres"
)

const defaultDLQTable = "dead_letter_events"

// DLQStore keeps undeliverable envelopes in Postgres, one row per event.
type DLQStore struct {
	db    *sql.DB
	table string
	now   func() time.Time
}

// NewDLQStore constructs a DLQ store.
func NewDLQStore(db *sql.DB, opts ...DLQOption) *DLQStore {
	store := &DLQStore{db: db, table: defaultDLQTable, now: time.Now}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// DLQOption configures the DLQ store.
type DLQOption func(*DLQStore)

// WithDLQTable overrides the table name.
func WithDLQTable(table string) DLQOption {
	return func(store *DLQStore) {
		if table != "" {
			store.table = table
		}
	}
}

// RecordFailure upserts the failure; repeated failures bump attempts.
func (s *DLQStore) RecordFailure(ctx context.Context, env eventing.Envelope, cause error) error {
	if s == nil || s.db == nil {
		return errors.New("dlq store: nil db")
	}
	if env.EventID == "" {
		return errors.New("dlq store: empty event id")
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	message := ""
	if cause != nil {
		message = cause.Error()
	}

	query := fmt.Sprintf(`
INSERT INTO %[1]s (event_id, event_type, company_id, payload, error, first_seen_at, last_seen_at, attempts)
VALUES ($1, $2, $3, $4, $5, $6, $6, 1)
ON CONFLICT (event_id)
DO UPDATE SET
	error = EXCLUDED.error,
	last_seen_at = EXCLUDED.last_seen_at,
	attempts = %[1]s.attempts + 1`, s.table)

	_, err = pgstore.Conn(ctx, s.db).ExecContext(ctx, query,
		env.EventID, env.EventType, env.CompanyID, payload, message, s.now().UTC())
	return err
}

// List returns the most recently failed events, optionally for one company.
func (s *DLQStore) List(ctx context.Context, companyID string, limit int) ([]eventing.DeadLetter, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("dlq store: nil db")
	}
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`
SELECT event_id, event_type, company_id, error, attempts, first_seen_at, last_seen_at
FROM %s
WHERE ($1 = '' OR company_id = $1)
ORDER BY last_seen_at DESC
LIMIT $2`, s.table)

	rows, err := pgstore.Conn(ctx, s.db).QueryContext(ctx, query, companyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var letters []eventing.DeadLetter
	for rows.Next() {
		var letter eventing.DeadLetter
		if err := rows.Scan(&letter.EventID, &letter.EventType, &letter.CompanyID, &letter.Error,
			&letter.Attempts, &letter.FirstSeenAt, &letter.LastSeenAt); err != nil {
			return nil, err
		}
		letter.FirstSeenAt = letter.FirstSeenAt.UTC()
		letter.LastSeenAt = letter.LastSeenAt.UTC()
		letters = append(letters, letter)
	}
	return letters, rows.Err()
}
