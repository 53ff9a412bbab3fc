package expense

import (
	"context"
	"time"
)

// Filter selects expenses of a company over an inclusive date range.
type Filter struct {
	CompanyID string
	CarID     string
	From      time.Time
	To        time.Time
}

// Repository persists expense records.
type Repository interface {
	Insert(ctx context.Context, r Record) error
	Get(ctx context.Context, id string) (*Record, error)
	List(ctx context.Context, filter Filter) ([]Record, error)
}

// CarDirectory resolves display names of company cars.
type CarDirectory interface {
	CarName(ctx context.Context, companyID, carID string) (string, error)
}
