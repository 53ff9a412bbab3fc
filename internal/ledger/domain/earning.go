package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"fleet-settlement/internal/money"
)

// EarningRecord is one payment event from a platform.
type EarningRecord struct {
	ID            string          `json:"id"`
	ContractID    string          `json:"contract_id"`
	CompanyID     string          `json:"company_id"`
	Platform      Platform        `json:"platform"`
	GrossIncome   decimal.Decimal `json:"gross_income"`
	BTWPercentage decimal.Decimal `json:"btw_percentage"`
	BTWAmount     decimal.Decimal `json:"btw_amount"`
	NetIncome     decimal.Decimal `json:"net_income"`
	IncomeDate    time.Time       `json:"income_date"`
	// WeekStart and WeekEnd are UTC calendar days; both are inclusive.
	WeekStart     time.Time       `json:"week_start"`
	WeekEnd       time.Time       `json:"week_end"`
	SettlementID  string          `json:"settlement_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// NewEarning carries the raw fields of an incoming payment.
type NewEarning struct {
	ID            string
	ContractID    string
	CompanyID     string
	Platform      Platform
	GrossIncome   decimal.Decimal
	BTWPercentage decimal.Decimal
	IncomeDate    time.Time
	WeekStart     time.Time
	WeekEnd       time.Time
	CreatedAt     time.Time
}

// NewEarningRecord validates input and derives the BTW split.
// A zero week window defaults to the ISO week (Monday to Sunday) of the income date.
func NewEarningRecord(in NewEarning) (EarningRecord, error) {
	if in.ContractID == "" {
		return EarningRecord{}, ErrEmptyContractID
	}
	if in.CompanyID == "" {
		return EarningRecord{}, ErrEmptyCompanyID
	}
	if !in.Platform.Valid() {
		return EarningRecord{}, fmt.Errorf("%w: %q", ErrUnknownPlatform, in.Platform)
	}
	if in.IncomeDate.IsZero() {
		return EarningRecord{}, fmt.Errorf("%w: missing income date", ErrInvalidWeek)
	}
	weekStart, weekEnd := in.WeekStart, in.WeekEnd
	if weekStart.IsZero() && weekEnd.IsZero() {
		weekStart, weekEnd = WeekOf(in.IncomeDate)
	}
	if err := validateWeek(in.IncomeDate, weekStart, weekEnd); err != nil {
		return EarningRecord{}, err
	}
	btw, net, err := money.ComputeBTW(in.GrossIncome, in.BTWPercentage)
	if err != nil {
		return EarningRecord{}, err
	}
	return EarningRecord{
		ID:            in.ID,
		ContractID:    in.ContractID,
		CompanyID:     in.CompanyID,
		Platform:      in.Platform,
		GrossIncome:   in.GrossIncome,
		BTWPercentage: in.BTWPercentage,
		BTWAmount:     btw,
		NetIncome:     net,
		IncomeDate:    in.IncomeDate.UTC().Truncate(time.Microsecond),
		WeekStart:     truncateDay(weekStart),
		WeekEnd:       truncateDay(weekEnd),
		CreatedAt:     in.CreatedAt.UTC().Truncate(time.Microsecond),
	}, nil
}

// IsSettled reports whether the record is assigned to a settlement.
func (e EarningRecord) IsSettled() bool { return e.SettlementID != "" }

// DuplicateKey identifies the same payment across ingestions.
func (e EarningRecord) DuplicateKey() string {
	return e.ContractID + "|" + e.IncomeDate.UTC().Format(time.RFC3339Nano) + "|" + e.GrossIncome.String() + "|" + string(e.Platform)
}

// InWindow reports whether the income date lies in [from, to).
func (e EarningRecord) InWindow(from, to time.Time) bool {
	return !e.IncomeDate.Before(from) && e.IncomeDate.Before(to)
}

// WeekOf returns the Monday and Sunday (UTC dates) of the ISO week containing t.
func WeekOf(t time.Time) (time.Time, time.Time) {
	day := truncateDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	start := day.AddDate(0, 0, -offset)
	return start, start.AddDate(0, 0, 6)
}

// validateWeek compares calendar days so a Sunday evening payment still
// belongs to a week ending on that Sunday.
func validateWeek(incomeDate, weekStart, weekEnd time.Time) error {
	if weekStart.IsZero() || weekEnd.IsZero() {
		return fmt.Errorf("%w: incomplete week window", ErrInvalidWeek)
	}
	income := truncateDay(incomeDate)
	start := truncateDay(weekStart)
	end := truncateDay(weekEnd)
	if start.After(end) {
		return fmt.Errorf("%w: week start after week end", ErrInvalidWeek)
	}
	if income.Before(start) || income.After(end) {
		return fmt.Errorf("%w: %s not in [%s, %s]", ErrInvalidWeek,
			income.Format("2006-01-02"), start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	return nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
