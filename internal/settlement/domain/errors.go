package settlement

import "errors"

var (
	// ErrNoEarningsInPeriod is returned when a contract has nothing to settle.
	ErrNoEarningsInPeriod = errors.New("settlement: no earnings in period")
	// ErrInvalidTransition is returned for a status change the lifecycle forbids.
	ErrInvalidTransition = errors.New("settlement: invalid transition")
	// ErrImmutableAfterConfirmation is returned when a confirmed settlement is edited.
	ErrImmutableAfterConfirmation = errors.New("settlement: immutable after confirmation")
	// ErrSettlementNotFound is returned when a settlement is not found.
	ErrSettlementNotFound = errors.New("settlement: not found")
	// ErrSettlementExists is returned when the contract already has a settlement for the period.
	ErrSettlementExists = errors.New("settlement: already exists for contract and period")
	// ErrInvalidPeriod is returned when period start is not before period end.
	ErrInvalidPeriod = errors.New("settlement: invalid period")
	// ErrEmptyContractID is returned when contract id is empty.
	ErrEmptyContractID = errors.New("settlement: empty contract id")
	// ErrEarningOutsidePeriod is returned for an earning of another contract or window.
	ErrEarningOutsidePeriod = errors.New("settlement: earning outside contract period")
	// ErrCompanyMismatch is returned when earnings or callers belong to another company.
	ErrCompanyMismatch = errors.New("settlement: company mismatch")
	// ErrVersionConflict is returned when a concurrent update won.
	ErrVersionConflict = errors.New("settlement: version conflict")
	// ErrNilSettlement is returned when saving a nil settlement.
	ErrNilSettlement = errors.New("settlement: nil settlement")
)
