package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	ledger "fleet-settlement/internal/ledger/domain"
	memtx "fleet-settlement/internal/storage/memory"
)

// EarningRepository is an in-memory repository for earnings.
type EarningRepository struct {
	mu      sync.RWMutex
	records map[string]ledger.EarningRecord
	keys    map[string]string
}

// NewEarningRepository constructs a repository.
func NewEarningRepository() *EarningRepository {
	return &EarningRepository{
		records: make(map[string]ledger.EarningRecord),
		keys:    make(map[string]string),
	}
}

// Insert stores a new record.
func (r *EarningRepository) Insert(ctx context.Context, record ledger.EarningRecord) error {
	key := record.DuplicateKey()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.keys[key]; ok {
		return ledger.ErrDuplicateEarning
	}
	if _, ok := r.records[record.ID]; ok {
		return ledger.ErrDuplicateEarning
	}
	r.records[record.ID] = record
	r.keys[key] = record.ID
	memtx.RecordUndo(ctx, func() {
		r.mu.Lock()
		delete(r.records, record.ID)
		delete(r.keys, key)
		r.mu.Unlock()
	})
	return nil
}

// Get loads a record by id.
func (r *EarningRepository) Get(ctx context.Context, id string) (*ledger.EarningRecord, error) {
	_ = ctx
	r.mu.RLock()
	record, ok := r.records[id]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return &record, nil
}

// ListUnsettled returns unsettled records for a contract inside [from, to).
func (r *EarningRepository) ListUnsettled(ctx context.Context, contractID string, from, to time.Time) ([]ledger.EarningRecord, error) {
	_ = ctx
	return r.filter(func(rec ledger.EarningRecord) bool {
		return rec.ContractID == contractID && !rec.IsSettled() && rec.InWindow(from, to)
	}), nil
}

// ListBySettlement returns records assigned to a settlement.
func (r *EarningRepository) ListBySettlement(ctx context.Context, settlementID string) ([]ledger.EarningRecord, error) {
	_ = ctx
	return r.filter(func(rec ledger.EarningRecord) bool {
		return rec.SettlementID == settlementID
	}), nil
}

// ListByContract returns all records for a contract inside [from, to).
func (r *EarningRepository) ListByContract(ctx context.Context, contractID string, from, to time.Time) ([]ledger.EarningRecord, error) {
	_ = ctx
	return r.filter(func(rec ledger.EarningRecord) bool {
		return rec.ContractID == contractID && rec.InWindow(from, to)
	}), nil
}

// AssignSettlement links records to a settlement, all or nothing.
func (r *EarningRepository) AssignSettlement(ctx context.Context, ids []string, settlementID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		record, ok := r.records[id]
		if !ok {
			return ledger.ErrEarningNotFound
		}
		if record.IsSettled() {
			return ledger.ErrAlreadySettled
		}
	}
	for _, id := range ids {
		record := r.records[id]
		record.SettlementID = settlementID
		r.records[id] = record
	}
	assigned := append([]string(nil), ids...)
	memtx.RecordUndo(ctx, func() {
		r.mu.Lock()
		for _, id := range assigned {
			record := r.records[id]
			if record.SettlementID == settlementID {
				record.SettlementID = ""
				r.records[id] = record
			}
		}
		r.mu.Unlock()
	})
	return nil
}

// ContractsWithUnsettled lists contracts holding unsettled records in [from, to).
func (r *EarningRepository) ContractsWithUnsettled(ctx context.Context, from, to time.Time) ([]ledger.ContractRef, error) {
	_ = ctx
	seen := make(map[string]ledger.ContractRef)
	r.mu.RLock()
	for _, rec := range r.records {
		if rec.IsSettled() || !rec.InWindow(from, to) {
			continue
		}
		seen[rec.ContractID] = ledger.ContractRef{ContractID: rec.ContractID, CompanyID: rec.CompanyID}
	}
	r.mu.RUnlock()
	refs := make([]ledger.ContractRef, 0, len(seen))
	for _, ref := range seen {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].ContractID < refs[j].ContractID })
	return refs, nil
}

func (r *EarningRepository) filter(match func(ledger.EarningRecord) bool) []ledger.EarningRecord {
	r.mu.RLock()
	var result []ledger.EarningRecord
	for _, rec := range r.records {
		if match(rec) {
			result = append(result, rec)
		}
	}
	r.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool {
		if result[i].IncomeDate.Equal(result[j].IncomeDate) {
			return result[i].ID < result[j].ID
		}
		return result[i].IncomeDate.Before(result[j].IncomeDate)
	})
	return result
}
