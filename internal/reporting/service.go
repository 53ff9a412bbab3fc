package reporting

import (
	"context"
	"errors"
	"time"

	"fleet-settlement/internal/auth"
	expense "fleet-settlement/internal/expense/domain"
	settlement "fleet-settlement/internal/settlement/domain"
)

// SettlementSource lists and loads settlements.
type SettlementSource interface {
	Get(ctx context.Context, id string) (*settlement.Settlement, error)
	List(ctx context.Context, filter settlement.Filter) ([]settlement.Settlement, error)
}

// ExpenseSource summarizes expenses.
type ExpenseSource interface {
	Summarize(ctx context.Context, companyID string, carID *string, from, to time.Time) (expense.Summary, error)
}

// Service assembles report views from the settlement engine and the
// expense aggregator.
type Service struct {
	settlements SettlementSource
	expenses    ExpenseSource
	format      Formatter
}

// NewService constructs the reporting service.
func NewService(settlements SettlementSource, expenses ExpenseSource, currency string) (*Service, error) {
	if settlements == nil {
		return nil, errors.New("reporting service: nil settlement source")
	}
	if expenses == nil {
		return nil, errors.New("reporting service: nil expense source")
	}
	if currency == "" {
		currency = "EUR"
	}
	return &Service{settlements: settlements, expenses: expenses, format: Formatter{Currency: currency}}, nil
}

// Formatter returns the formatter used by the service.
func (s *Service) Formatter() Formatter {
	return s.format
}

// Settlement loads one settlement view with its earnings.
func (s *Service) Settlement(ctx context.Context, id string) (SettlementView, error) {
	st, err := s.settlements.Get(ctx, id)
	if err != nil {
		return SettlementView{}, err
	}
	return s.format.SettlementView(st), nil
}

// Settlements lists settlements overlapping [filter.From, filter.To).
func (s *Service) Settlements(ctx context.Context, filter settlement.Filter) (SettlementReport, error) {
	list, err := s.settlements.List(ctx, filter)
	if err != nil {
		return SettlementReport{}, err
	}
	return s.format.SettlementReport(filter.From, filter.To, list), nil
}

// Expenses summarizes expenses over [from, to], optionally for one car.
func (s *Service) Expenses(ctx context.Context, companyID string, carID *string, from, to time.Time) (ExpenseReport, error) {
	summary, err := s.expenses.Summarize(ctx, companyID, carID, from, to)
	if err != nil {
		return ExpenseReport{}, err
	}
	return s.format.ExpenseReport(summary), nil
}

// Dashboard combines settlements overlapping [from, to) with expenses dated
// from through the day before to.
func (s *Service) Dashboard(ctx context.Context, companyID string, from, to time.Time) (Dashboard, error) {
	if companyID == "" {
		companyID = auth.CompanyIDFromContext(ctx)
	}
	if !from.Before(to) {
		return Dashboard{}, settlement.ErrInvalidPeriod
	}
	list, err := s.settlements.List(ctx, settlement.Filter{CompanyID: companyID, From: from, To: to})
	if err != nil {
		return Dashboard{}, err
	}
	summary, err := s.expenses.Summarize(ctx, companyID, nil, from, lastDayBefore(to))
	if err != nil {
		return Dashboard{}, err
	}
	return s.format.Dashboard(companyID, from, to, list, summary), nil
}

// lastDayBefore returns the UTC calendar day holding the last instant of a
// window that ends (exclusively) at to.
func lastDayBefore(to time.Time) time.Time {
	last := to.UTC().Add(-time.Nanosecond)
	return time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, time.UTC)
}
