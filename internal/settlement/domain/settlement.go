package settlement

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	ledger "fleet-settlement/internal/ledger/domain"
	"fleet-settlement/internal/money"
)

// Status is the settlement lifecycle state.
type Status string

const (
	StatusPending           Status = "pending"
	StatusConfirmedByDriver Status = "confirmed_by_driver"
)

// ParseStatus validates a status string.
func ParseStatus(value string) (Status, error) {
	switch Status(value) {
	case StatusPending, StatusConfirmedByDriver:
		return Status(value), nil
	}
	return "", fmt.Errorf("settlement: unknown status %q", value)
}

// Settlement groups the earnings of one contract over [PeriodStart, PeriodEnd)
// into a payout. Gross, BTW and net income are always re-derived from Earnings.
type Settlement struct {
	ID                string                 `json:"id"`
	CompanyID         string                 `json:"company_id"`
	ContractID        string                 `json:"contract_id"`
	PeriodStart       time.Time              `json:"period_start"`
	PeriodEnd         time.Time              `json:"period_end"`
	GrossAmount       decimal.Decimal        `json:"gross_amount"`
	BTWAmount         decimal.Decimal        `json:"btw_amount"`
	NetIncome         decimal.Decimal        `json:"net_income"`
	RentDeduction     decimal.Decimal        `json:"rent_deduction"`
	ExtraCosts        decimal.Decimal        `json:"extra_costs"`
	NetPayout         decimal.Decimal        `json:"net_payout"`
	Description       string                 `json:"description,omitempty"`
	Status            Status                 `json:"status"`
	ConfirmedByDriver bool                   `json:"confirmed_by_driver"`
	ConfirmedAt       time.Time              `json:"confirmed_at,omitempty"`
	SnapshotHash      string                 `json:"snapshot_hash,omitempty"`
	DisputeReason     string                 `json:"dispute_reason,omitempty"`
	DisputedAt        time.Time              `json:"disputed_at,omitempty"`
	Earnings          []ledger.EarningRecord `json:"earnings,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
	Version           int                    `json:"version"`
}

// NewSettlementInput carries the fields of a new settlement.
type NewSettlementInput struct {
	ID            string
	ContractID    string
	PeriodStart   time.Time
	PeriodEnd     time.Time
	RentDeduction decimal.Decimal
	ExtraCosts    decimal.Decimal
	Description   string
	Earnings      []ledger.EarningRecord
	CreatedAt     time.Time
}

// NewSettlement builds a pending settlement over unsettled earnings.
func NewSettlement(in NewSettlementInput) (*Settlement, error) {
	if in.ContractID == "" {
		return nil, ErrEmptyContractID
	}
	if err := ValidatePeriod(in.PeriodStart, in.PeriodEnd); err != nil {
		return nil, err
	}
	if err := money.ValidAmount("rent deduction", in.RentDeduction); err != nil {
		return nil, err
	}
	if err := money.ValidAmount("extra costs", in.ExtraCosts); err != nil {
		return nil, err
	}
	if len(in.Earnings) == 0 {
		return nil, ErrNoEarningsInPeriod
	}
	for _, earning := range in.Earnings {
		if earning.IsSettled() {
			return nil, ledger.ErrAlreadySettled
		}
	}

	createdAt := in.CreatedAt.UTC().Truncate(time.Microsecond)
	s := &Settlement{
		ID:            in.ID,
		CompanyID:     in.Earnings[0].CompanyID,
		ContractID:    in.ContractID,
		PeriodStart:   in.PeriodStart.UTC(),
		PeriodEnd:     in.PeriodEnd.UTC(),
		RentDeduction: in.RentDeduction,
		ExtraCosts:    in.ExtraCosts,
		Description:   in.Description,
		Status:        StatusPending,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
		Version:       1,
	}
	if err := s.derive(in.Earnings); err != nil {
		return nil, err
	}
	return s, nil
}

// ValidatePeriod checks that start lies strictly before end.
func ValidatePeriod(start, end time.Time) error {
	if start.IsZero() || end.IsZero() || !start.Before(end) {
		return ErrInvalidPeriod
	}
	return nil
}

// IsConfirmed reports whether the driver confirmed the settlement.
func (s *Settlement) IsConfirmed() bool {
	return s.Status == StatusConfirmedByDriver
}

// IsNegativePayout reports whether deductions exceed gross income.
func (s *Settlement) IsNegativePayout() bool {
	return s.NetPayout.IsNegative()
}

// EarningIDs returns the ids of the settled earnings in income order.
func (s *Settlement) EarningIDs() []string {
	ids := make([]string, 0, len(s.Earnings))
	for _, earning := range s.Earnings {
		ids = append(ids, earning.ID)
	}
	return ids
}

// Confirm records the driver's acceptance. Only the driver of the contract
// may confirm, and only a pending settlement.
func (s *Settlement) Confirm(byDriver bool, at time.Time) error {
	if s.Status != StatusPending || !byDriver {
		return ErrInvalidTransition
	}
	s.Status = StatusConfirmedByDriver
	s.ConfirmedByDriver = true
	s.ConfirmedAt = at.UTC().Truncate(time.Microsecond)
	s.DisputeReason = ""
	s.DisputedAt = time.Time{}
	hash, err := s.computeSnapshotHash()
	if err != nil {
		return err
	}
	s.SnapshotHash = hash
	s.touch(at)
	return nil
}

// Dispute reopens a confirmed settlement for correction.
func (s *Settlement) Dispute(reason string, at time.Time) error {
	if s.Status != StatusConfirmedByDriver {
		return ErrInvalidTransition
	}
	s.Status = StatusPending
	s.ConfirmedByDriver = false
	s.ConfirmedAt = time.Time{}
	s.SnapshotHash = ""
	s.DisputeReason = reason
	s.DisputedAt = at.UTC().Truncate(time.Microsecond)
	s.touch(at)
	return nil
}

// Recompute re-derives the totals from the currently assigned earnings.
func (s *Settlement) Recompute(earnings []ledger.EarningRecord, at time.Time) error {
	if s.IsConfirmed() {
		return ErrImmutableAfterConfirmation
	}
	if len(earnings) == 0 {
		return ErrNoEarningsInPeriod
	}
	for _, earning := range earnings {
		if earning.SettlementID != s.ID {
			return fmt.Errorf("%w: earning %s not assigned to %s", ErrEarningOutsidePeriod, earning.ID, s.ID)
		}
	}
	if err := s.derive(earnings); err != nil {
		return err
	}
	s.touch(at)
	return nil
}

// AttachEarnings adds late earnings of the same contract and window.
func (s *Settlement) AttachEarnings(late []ledger.EarningRecord, at time.Time) error {
	if s.IsConfirmed() {
		return ErrImmutableAfterConfirmation
	}
	if len(late) == 0 {
		return nil
	}
	all := make([]ledger.EarningRecord, 0, len(s.Earnings)+len(late))
	all = append(all, s.Earnings...)
	all = append(all, late...)
	if err := s.derive(all); err != nil {
		return err
	}
	s.touch(at)
	return nil
}

// LinkEarnings stamps the settlement id on the held earnings once the
// ledger has assigned them.
func (s *Settlement) LinkEarnings() {
	for i := range s.Earnings {
		s.Earnings[i].SettlementID = s.ID
	}
}

// VerifySnapshot reports whether the confirmed state is unchanged.
func (s *Settlement) VerifySnapshot() (bool, error) {
	if !s.IsConfirmed() || s.SnapshotHash == "" {
		return false, nil
	}
	hash, err := s.computeSnapshotHash()
	if err != nil {
		return false, err
	}
	return hash == s.SnapshotHash, nil
}

func (s *Settlement) derive(earnings []ledger.EarningRecord) error {
	sorted := slices.Clone(earnings)
	slices.SortStableFunc(sorted, func(a, b ledger.EarningRecord) int {
		if c := a.IncomeDate.Compare(b.IncomeDate); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})

	gross := decimal.Zero
	btw := decimal.Zero
	net := decimal.Zero
	for _, earning := range sorted {
		if earning.ContractID != s.ContractID || !earning.InWindow(s.PeriodStart, s.PeriodEnd) {
			return fmt.Errorf("%w: %s", ErrEarningOutsidePeriod, earning.ID)
		}
		if earning.CompanyID != s.CompanyID {
			return fmt.Errorf("%w: earning %s", ErrCompanyMismatch, earning.ID)
		}
		gross = gross.Add(earning.GrossIncome)
		btw = btw.Add(earning.BTWAmount)
		net = net.Add(earning.NetIncome)
	}

	s.Earnings = sorted
	s.GrossAmount = gross
	s.BTWAmount = btw
	s.NetIncome = net
	s.NetPayout = gross.Sub(s.RentDeduction).Sub(s.ExtraCosts)
	return nil
}

func (s *Settlement) touch(at time.Time) {
	s.UpdatedAt = at.UTC().Truncate(time.Microsecond)
	s.Version++
}

type snapshotEarning struct {
	ID          string    `json:"id"`
	Platform    string    `json:"platform"`
	IncomeDate  time.Time `json:"income_date"`
	GrossIncome string    `json:"gross_income"`
	BTWAmount   string    `json:"btw_amount"`
	NetIncome   string    `json:"net_income"`
}

type snapshot struct {
	ID            string            `json:"id"`
	CompanyID     string            `json:"company_id"`
	ContractID    string            `json:"contract_id"`
	PeriodStart   time.Time         `json:"period_start"`
	PeriodEnd     time.Time         `json:"period_end"`
	GrossAmount   string            `json:"gross_amount"`
	BTWAmount     string            `json:"btw_amount"`
	NetIncome     string            `json:"net_income"`
	RentDeduction string            `json:"rent_deduction"`
	ExtraCosts    string            `json:"extra_costs"`
	NetPayout     string            `json:"net_payout"`
	ConfirmedAt   time.Time         `json:"confirmed_at"`
	Earnings      []snapshotEarning `json:"earnings"`
}

// computeSnapshotHash hashes the payout-relevant state with amounts in
// fixed two-decimal form so equal values hash equally.
func (s *Settlement) computeSnapshotHash() (string, error) {
	snap := snapshot{
		ID:            s.ID,
		CompanyID:     s.CompanyID,
		ContractID:    s.ContractID,
		PeriodStart:   s.PeriodStart.UTC(),
		PeriodEnd:     s.PeriodEnd.UTC(),
		GrossAmount:   money.Format(s.GrossAmount),
		BTWAmount:     money.Format(s.BTWAmount),
		NetIncome:     money.Format(s.NetIncome),
		RentDeduction: money.Format(s.RentDeduction),
		ExtraCosts:    money.Format(s.ExtraCosts),
		NetPayout:     money.Format(s.NetPayout),
		ConfirmedAt:   s.ConfirmedAt.UTC(),
		Earnings:      make([]snapshotEarning, 0, len(s.Earnings)),
	}
	for _, earning := range s.Earnings {
		snap.Earnings = append(snap.Earnings, snapshotEarning{
			ID:          earning.ID,
			Platform:    string(earning.Platform),
			IncomeDate:  earning.IncomeDate.UTC(),
			GrossIncome: money.Format(earning.GrossIncome),
			BTWAmount:   money.Format(earning.BTWAmount),
			NetIncome:   money.Format(earning.NetIncome),
		})
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
