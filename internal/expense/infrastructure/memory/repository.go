package memory

import (
	"context"
	"sort"
	"sync"

	expense "fleet-settlement/internal/expense/domain"
)

// ExpenseRepository keeps expenses in memory.
type ExpenseRepository struct {
	mu      sync.RWMutex
	records map[string]expense.Record
}

// NewExpenseRepository constructs a repository.
func NewExpenseRepository() *ExpenseRepository {
	return &ExpenseRepository{records: make(map[string]expense.Record)}
}

// Insert stores r.
func (r *ExpenseRepository) Insert(ctx context.Context, record expense.Record) error {
	_ = ctx
	r.mu.Lock()
	r.records[record.ID] = record
	r.mu.Unlock()
	return nil
}

// Get loads an expense by id.
func (r *ExpenseRepository) Get(ctx context.Context, id string) (*expense.Record, error) {
	_ = ctx
	r.mu.RLock()
	record, ok := r.records[id]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return &record, nil
}

// List returns expenses matching filter ordered by date then id.
func (r *ExpenseRepository) List(ctx context.Context, filter expense.Filter) ([]expense.Record, error) {
	_ = ctx
	r.mu.RLock()
	result := make([]expense.Record, 0)
	for _, record := range r.records {
		if record.CompanyID != filter.CompanyID {
			continue
		}
		if filter.CarID != "" && record.CarID != filter.CarID {
			continue
		}
		if !record.InRange(filter.From, filter.To) {
			continue
		}
		result = append(result, record)
	}
	r.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// CarDirectory resolves car names from a fixed map keyed by car id.
type CarDirectory struct {
	names map[string]string
}

// NewCarDirectory constructs a directory.
func NewCarDirectory(names map[string]string) *CarDirectory {
	copied := make(map[string]string, len(names))
	for id, name := range names {
		copied[id] = name
	}
	return &CarDirectory{names: copied}
}

// CarName returns the configured name or the id itself.
func (d *CarDirectory) CarName(ctx context.Context, companyID, carID string) (string, error) {
	_ = ctx
	_ = companyID
	if name, ok := d.names[carID]; ok {
		return name, nil
	}
	return carID, nil
}
