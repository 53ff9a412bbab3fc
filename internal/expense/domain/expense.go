package expense

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"fleet-settlement/internal/money"
)

// Record is a company expense, optionally attributed to one car.
type Record struct {
	ID          string          `json:"id"`
	CompanyID   string          `json:"company_id"`
	CarID       string          `json:"car_id,omitempty"`
	Type        Type            `json:"type"`
	Date        time.Time       `json:"date"`
	NetAmount   decimal.Decimal `json:"net_amount"`
	VATAmount   decimal.Decimal `json:"vat_amount"`
	GrossAmount decimal.Decimal `json:"gross_amount"`
	Description string          `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// NewRecord validates r. Gross must equal net plus VAT exactly.
func NewRecord(r Record) (Record, error) {
	if r.CompanyID == "" {
		return Record{}, ErrEmptyCompanyID
	}
	if !r.Type.Valid() {
		return Record{}, fmt.Errorf("%w: %q", ErrUnknownType, r.Type)
	}
	if r.Date.IsZero() {
		return Record{}, ErrMissingDate
	}
	if err := money.ValidAmount("net amount", r.NetAmount); err != nil {
		return Record{}, err
	}
	if err := money.ValidAmount("vat amount", r.VATAmount); err != nil {
		return Record{}, err
	}
	if err := money.ValidAmount("gross amount", r.GrossAmount); err != nil {
		return Record{}, err
	}
	if !r.NetAmount.Add(r.VATAmount).Equal(r.GrossAmount) {
		return Record{}, fmt.Errorf("%w: gross %s != net %s + vat %s",
			money.ErrInvalidAmount, r.GrossAmount, r.NetAmount, r.VATAmount)
	}
	r.Date = day(r.Date)
	r.CreatedAt = r.CreatedAt.UTC().Truncate(time.Microsecond)
	return r, nil
}

// InRange reports whether the record date lies in [from, to] by calendar day.
func (r Record) InRange(from, to time.Time) bool {
	d := day(r.Date)
	return !d.Before(day(from)) && !d.After(day(to))
}

// ValidateRange checks an inclusive date range.
func ValidateRange(from, to time.Time) error {
	if from.IsZero() || to.IsZero() || day(from).After(day(to)) {
		return ErrInvalidRange
	}
	return nil
}

func day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
