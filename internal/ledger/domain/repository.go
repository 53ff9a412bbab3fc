package ledger

import (
	"context"
	"time"
)

// ContractRef names a contract and the company that owns it.
type ContractRef struct {
	ContractID string
	CompanyID  string
}

// Repository persists earning records.
//
// Insert reports ErrDuplicateEarning for a known DuplicateKey. AssignSettlement
// is all-or-nothing and reports ErrAlreadySettled or ErrEarningNotFound without
// changing any record.
type Repository interface {
	Insert(ctx context.Context, record EarningRecord) error
	Get(ctx context.Context, id string) (*EarningRecord, error)
	ListUnsettled(ctx context.Context, contractID string, from, to time.Time) ([]EarningRecord, error)
	ListBySettlement(ctx context.Context, settlementID string) ([]EarningRecord, error)
	ListByContract(ctx context.Context, contractID string, from, to time.Time) ([]EarningRecord, error)
	AssignSettlement(ctx context.Context, ids []string, settlementID string) error
	ContractsWithUnsettled(ctx context.Context, from, to time.Time) ([]ContractRef, error)
}
