package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	settlement "fleet-settlement/internal/settlement/domain"
	memtx "fleet-settlement/internal/storage/memory"
)

// SettlementRepository is an in-memory repository for settlements.
type SettlementRepository struct {
	mu       sync.RWMutex
	data     map[string]settlement.Settlement
	byPeriod map[string]string
}

// NewSettlementRepository constructs a repository.
func NewSettlementRepository() *SettlementRepository {
	return &SettlementRepository{
		data:     make(map[string]settlement.Settlement),
		byPeriod: make(map[string]string),
	}
}

func periodKey(s *settlement.Settlement) string {
	return s.ContractID + "|" + s.PeriodStart.UTC().Format(time.RFC3339) + "|" + s.PeriodEnd.UTC().Format(time.RFC3339)
}

// detach drops the earnings, which the ledger owns.
func detach(s *settlement.Settlement) settlement.Settlement {
	copy := *s
	copy.Earnings = nil
	return copy
}

// Create stores a new settlement.
func (r *SettlementRepository) Create(ctx context.Context, s *settlement.Settlement) error {
	if s == nil {
		return settlement.ErrNilSettlement
	}
	key := periodKey(s)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[s.ID]; ok {
		return settlement.ErrSettlementExists
	}
	if _, ok := r.byPeriod[key]; ok {
		return settlement.ErrSettlementExists
	}
	r.data[s.ID] = detach(s)
	r.byPeriod[key] = s.ID
	id := s.ID
	memtx.RecordUndo(ctx, func() {
		r.mu.Lock()
		delete(r.data, id)
		delete(r.byPeriod, key)
		r.mu.Unlock()
	})
	return nil
}

// Get loads a settlement by id.
func (r *SettlementRepository) Get(ctx context.Context, id string) (*settlement.Settlement, error) {
	_ = ctx
	r.mu.RLock()
	s, ok := r.data[id]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// Update overwrites a settlement when the stored version matches.
func (r *SettlementRepository) Update(ctx context.Context, s *settlement.Settlement, expectedVersion int) error {
	if s == nil {
		return settlement.ErrNilSettlement
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	previous, ok := r.data[s.ID]
	if !ok {
		return settlement.ErrSettlementNotFound
	}
	if previous.Version != expectedVersion {
		return settlement.ErrVersionConflict
	}
	r.data[s.ID] = detach(s)
	memtx.RecordUndo(ctx, func() {
		r.mu.Lock()
		r.data[previous.ID] = previous
		r.mu.Unlock()
	})
	return nil
}

// List returns settlements matching filter ordered by period then id.
func (r *SettlementRepository) List(ctx context.Context, filter settlement.Filter) ([]settlement.Settlement, error) {
	_ = ctx
	r.mu.RLock()
	result := make([]settlement.Settlement, 0, len(r.data))
	for _, s := range r.data {
		if matches(&s, filter) {
			result = append(result, s)
		}
	}
	r.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool {
		if !result[i].PeriodStart.Equal(result[j].PeriodStart) {
			return result[i].PeriodStart.Before(result[j].PeriodStart)
		}
		if result[i].ContractID != result[j].ContractID {
			return result[i].ContractID < result[j].ContractID
		}
		return result[i].ID < result[j].ID
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func matches(s *settlement.Settlement, f settlement.Filter) bool {
	if f.CompanyID != "" && s.CompanyID != f.CompanyID {
		return false
	}
	if f.ContractID != "" && s.ContractID != f.ContractID {
		return false
	}
	if len(f.ContractIDs) > 0 && !slices.Contains(f.ContractIDs, s.ContractID) {
		return false
	}
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	if !f.From.IsZero() && !s.PeriodEnd.After(f.From) {
		return false
	}
	if !f.To.IsZero() && !s.PeriodStart.Before(f.To) {
		return false
	}
	return true
}
