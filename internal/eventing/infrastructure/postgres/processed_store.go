package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	pgstore "fleet-settlement/internal/storage/postgres"
)

// ProcessedStore records which consumer handled which event.
type ProcessedStore struct {
	db *sql.DB
}

// NewProcessedStore constructs a processed store backed by processed_events.
func NewProcessedStore(db *sql.DB) *ProcessedStore {
	return &ProcessedStore{db: db}
}

// HasProcessed checks if event was already processed by consumer.
func (s *ProcessedStore) HasProcessed(ctx context.Context, eventID, consumerName string) (bool, error) {
	if err := s.check(eventID, consumerName); err != nil {
		return false, err
	}
	var exists bool
	err := pgstore.Conn(ctx, s.db).QueryRowContext(ctx, `
SELECT EXISTS (
	SELECT 1 FROM processed_events WHERE event_id = $1 AND consumer_name = $2
)`, eventID, consumerName).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// MarkProcessed records an event as processed; repeated marks are ignored.
func (s *ProcessedStore) MarkProcessed(ctx context.Context, eventID, consumerName string) error {
	if err := s.check(eventID, consumerName); err != nil {
		return err
	}
	_, err := pgstore.Conn(ctx, s.db).ExecContext(ctx, `
INSERT INTO processed_events (event_id, consumer_name, processed_at)
VALUES ($1, $2, $3)
ON CONFLICT (event_id, consumer_name)
DO NOTHING`, eventID, consumerName, time.Now().UTC())
	return err
}

func (s *ProcessedStore) check(eventID, consumerName string) error {
	if s == nil || s.db == nil {
		return errors.New("processed store: nil db")
	}
	if eventID == "" || consumerName == "" {
		return errors.New("processed store: invalid arguments")
	}
	return nil
}
