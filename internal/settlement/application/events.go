package application

import (
	"time"

	"github.com/shopspring/decimal"
)

// SettlementCreated is emitted when earnings are grouped into a new settlement.
type SettlementCreated struct {
	SettlementID   string
	CompanyID      string
	ContractID     string
	PeriodStart    time.Time
	PeriodEnd      time.Time
	GrossAmount    decimal.Decimal
	NetPayout      decimal.Decimal
	EarningCount   int
	NegativePayout bool
	OccurredAt     time.Time
}

// SettlementConfirmed is emitted when the driver accepts a settlement.
type SettlementConfirmed struct {
	SettlementID string
	CompanyID    string
	ContractID   string
	NetPayout    decimal.Decimal
	SnapshotHash string
	OccurredAt   time.Time
}

// SettlementDisputed is emitted when a confirmed settlement is reopened.
type SettlementDisputed struct {
	SettlementID string
	CompanyID    string
	ContractID   string
	Reason       string
	OccurredAt   time.Time
}

// SettlementRecomputed is emitted when totals are re-derived.
type SettlementRecomputed struct {
	SettlementID string
	CompanyID    string
	ContractID   string
	GrossAmount  decimal.Decimal
	NetPayout    decimal.Decimal
	Attached     int
	OccurredAt   time.Time
}

// Events lists every event type emitted by the engine, for registries.
func Events() []any {
	return []any{
		SettlementCreated{},
		SettlementConfirmed{},
		SettlementDisputed{},
		SettlementRecomputed{},
	}
}
