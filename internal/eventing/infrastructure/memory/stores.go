package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"fleet-settlement/internal/eventing"
	memtx "fleet-settlement/internal/storage/memory"
)

type outboxEntry struct {
	record    eventing.OutboxRecord
	status    string
	attempts  int
	createdAt time.Time
	seq       int
}

// OutboxStore keeps outbox records in memory.
type OutboxStore struct {
	mu      sync.Mutex
	entries map[string]*outboxEntry
	seq     int
}

// NewOutboxStore constructs an outbox store.
func NewOutboxStore() *OutboxStore {
	return &OutboxStore{entries: make(map[string]*outboxEntry)}
}

// Insert adds a pending record; it is removed again if the surrounding
// transaction rolls back.
func (s *OutboxStore) Insert(ctx context.Context, env eventing.Envelope) (string, error) {
	id := eventing.NewEventID()
	s.mu.Lock()
	s.seq++
	s.entries[id] = &outboxEntry{
		record:    eventing.OutboxRecord{ID: id, Envelope: env},
		status:    "pending",
		createdAt: time.Now().UTC(),
		seq:       s.seq,
	}
	s.mu.Unlock()
	memtx.RecordUndo(ctx, func() {
		s.mu.Lock()
		delete(s.entries, id)
		s.mu.Unlock()
	})
	return id, nil
}

// ListPending returns pending records in insertion order.
func (s *OutboxStore) ListPending(ctx context.Context, limit int) ([]eventing.OutboxRecord, error) {
	_ = ctx
	if limit <= 0 {
		limit = 50
	}
	s.mu.Lock()
	pending := make([]*outboxEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		if entry.status == "pending" {
			pending = append(pending, entry)
		}
	}
	s.mu.Unlock()
	sort.Slice(pending, func(i, j int) bool { return pending[i].seq < pending[j].seq })
	if len(pending) > limit {
		pending = pending[:limit]
	}
	result := make([]eventing.OutboxRecord, 0, len(pending))
	for _, entry := range pending {
		result = append(result, entry.record)
	}
	return result, nil
}

// MarkSent marks a record as sent.
func (s *OutboxStore) MarkSent(ctx context.Context, id string) error {
	return s.setStatus(id, "sent")
}

// MarkFailed marks a record as failed and increments attempts.
func (s *OutboxStore) MarkFailed(ctx context.Context, id string) error {
	return s.setStatus(id, "failed")
}

// Pending returns the number of pending records.
func (s *OutboxStore) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, entry := range s.entries {
		if entry.status == "pending" {
			count++
		}
	}
	return count
}

func (s *OutboxStore) setStatus(id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return errors.New("outbox store: record not found")
	}
	entry.status = status
	if status == "failed" {
		entry.attempts++
	}
	return nil
}

// ProcessedStore tracks consumed events in memory.
type ProcessedStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewProcessedStore constructs a processed store.
func NewProcessedStore() *ProcessedStore {
	return &ProcessedStore{seen: make(map[string]struct{})}
}

// HasProcessed checks if event was already processed by consumer.
func (s *ProcessedStore) HasProcessed(ctx context.Context, eventID, consumerName string) (bool, error) {
	_ = ctx
	if eventID == "" || consumerName == "" {
		return false, errors.New("processed store: invalid arguments")
	}
	s.mu.Lock()
	_, ok := s.seen[eventID+"|"+consumerName]
	s.mu.Unlock()
	return ok, nil
}

// MarkProcessed records an event as processed.
func (s *ProcessedStore) MarkProcessed(ctx context.Context, eventID, consumerName string) error {
	_ = ctx
	if eventID == "" || consumerName == "" {
		return errors.New("processed store: invalid arguments")
	}
	s.mu.Lock()
	s.seen[eventID+"|"+consumerName] = struct{}{}
	s.mu.Unlock()
	return nil
}

// DLQStore keeps failed envelopes in memory.
type DLQStore struct {
	mu       sync.Mutex
	failures map[string]eventing.DeadLetter
}

// NewDLQStore constructs a DLQ store.
func NewDLQStore() *DLQStore {
	return &DLQStore{failures: make(map[string]eventing.DeadLetter)}
}

// RecordFailure stores the last error per event id.
func (s *DLQStore) RecordFailure(ctx context.Context, env eventing.Envelope, err error) error {
	_ = ctx
	if env.EventID == "" {
		return errors.New("dlq store: empty event id")
	}
	message := ""
	if err != nil {
		message = err.Error()
	}
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	letter, ok := s.failures[env.EventID]
	if !ok {
		letter = eventing.DeadLetter{
			EventID:     env.EventID,
			EventType:   env.EventType,
			CompanyID:   env.CompanyID,
			FirstSeenAt: now,
		}
	}
	letter.Error = message
	letter.Attempts++
	letter.LastSeenAt = now
	s.failures[env.EventID] = letter
	return nil
}

// List returns dead letters newest first.
func (s *DLQStore) List(ctx context.Context, companyID string, limit int) ([]eventing.DeadLetter, error) {
	_ = ctx
	s.mu.Lock()
	letters := make([]eventing.DeadLetter, 0, len(s.failures))
	for _, letter := range s.failures {
		if companyID == "" || letter.CompanyID == companyID {
			letters = append(letters, letter)
		}
	}
	s.mu.Unlock()
	sort.Slice(letters, func(i, j int) bool {
		if !letters[i].LastSeenAt.Equal(letters[j].LastSeenAt) {
			return letters[i].LastSeenAt.After(letters[j].LastSeenAt)
		}
		return letters[i].EventID < letters[j].EventID
	})
	if limit > 0 && len(letters) > limit {
		letters = letters[:limit]
	}
	return letters, nil
}

// Count returns the number of dead-lettered events.
func (s *DLQStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.failures)
}
