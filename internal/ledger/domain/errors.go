package ledger

import "errors"

var (
	// ErrDuplicateEarning is returned when the same payment is ingested twice.
	ErrDuplicateEarning = errors.New("ledger: duplicate earning")
	// ErrAlreadySettled is returned when an earning is already assigned to a settlement.
	ErrAlreadySettled = errors.New("ledger: earning already settled")
	// ErrEarningNotFound is returned when an earning does not exist.
	ErrEarningNotFound = errors.New("ledger: earning not found")
	// ErrInvalidWeek is returned when the income date falls outside its week.
	ErrInvalidWeek = errors.New("ledger: income date outside week window")
	// ErrInvalidPeriod is returned when a lookup window is empty or inverted.
	ErrInvalidPeriod = errors.New("ledger: invalid period")
	// ErrUnknownPlatform is returned for platforms outside the supported set.
	ErrUnknownPlatform = errors.New("ledger: unknown platform")
	// ErrEmptyContractID is returned when contract id is empty.
	ErrEmptyContractID = errors.New("ledger: empty contract id")
	// ErrEmptyCompanyID is returned when company id is empty.
	ErrEmptyCompanyID = errors.New("ledger: empty company id")
	// ErrEmptySettlementID is returned when assigning to an empty settlement id.
	ErrEmptySettlementID = errors.New("ledger: empty settlement id")
)
