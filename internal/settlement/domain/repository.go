package settlement

import (
	"context"
	"time"
)

// Filter narrows settlement listings. Zero fields do not filter.
// From/To select settlements whose period overlaps [From, To).
type Filter struct {
	CompanyID   string
	ContractID  string
	ContractIDs []string
	Status      Status
	From        time.Time
	To          time.Time
	Limit       int
}

// Repository persists settlements. Earnings are owned by the ledger and
// are not stored with the settlement.
//
// Create reports ErrSettlementExists when the contract already has a
// settlement with the same period. Update applies only when the stored
// version equals expectedVersion and reports ErrVersionConflict otherwise.
type Repository interface {
	Create(ctx context.Context, s *Settlement) error
	Get(ctx context.Context, id string) (*Settlement, error)
	Update(ctx context.Context, s *Settlement, expectedVersion int) error
	List(ctx context.Context, filter Filter) ([]Settlement, error)
}
