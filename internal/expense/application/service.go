package application

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fleet-settlement/internal/auth"
	expense "fleet-settlement/internal/expense/domain"
	"fleet-settlement/internal/observability/metrics"
	"fleet-settlement/internal/storage"
)

// RecordInput carries a new expense.
type RecordInput struct {
	CompanyID   string
	CarID       string
	Type        expense.Type
	Date        time.Time
	NetAmount   decimal.Decimal
	VATAmount   decimal.Decimal
	GrossAmount decimal.Decimal
	Description string
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Service records expenses and aggregates them for reports.
type Service struct {
	repo   expense.Repository
	cars   expense.CarDirectory
	clock  Clock
	logger *log.Logger
}

// NewService constructs the expense service. cars may be nil.
func NewService(repo expense.Repository, cars expense.CarDirectory, clock Clock, logger *log.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.New("expense service: nil repository")
	}
	if clock == nil {
		clock = systemClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{repo: repo, cars: cars, clock: clock, logger: logger}, nil
}

// Record validates and stores an expense. The caller's company wins over
// the input company.
func (s *Service) Record(ctx context.Context, in RecordInput) (expense.Record, error) {
	companyID, err := resolveCompany(ctx, in.CompanyID)
	if err != nil {
		return expense.Record{}, err
	}
	record, err := expense.NewRecord(expense.Record{
		ID:          uuid.NewString(),
		CompanyID:   companyID,
		CarID:       in.CarID,
		Type:        in.Type,
		Date:        in.Date,
		NetAmount:   in.NetAmount,
		VATAmount:   in.VATAmount,
		GrossAmount: in.GrossAmount,
		Description: in.Description,
		CreatedAt:   s.clock.Now(),
	})
	if err != nil {
		return expense.Record{}, err
	}
	if err := s.repo.Insert(ctx, record); err != nil {
		return expense.Record{}, storage.Wrap("insert expense", err)
	}
	return record, nil
}

// Summarize aggregates the company's expenses with dates in [from, to],
// optionally for a single car.
func (s *Service) Summarize(ctx context.Context, companyID string, carID *string, from, to time.Time) (summary expense.Summary, err error) {
	start := time.Now()
	defer func() {
		result := metrics.ResultSuccess
		if err != nil {
			result = metrics.ResultError
		}
		metrics.ObserveExpenseSummary(result, time.Since(start))
	}()

	records, companyID, car, err := s.list(ctx, companyID, carID, from, to)
	if err != nil {
		return expense.Summary{}, err
	}
	summary = expense.Summarize(companyID, car, from, to, records)
	if car != "" && s.cars != nil {
		name, err := s.cars.CarName(ctx, companyID, car)
		if err != nil {
			s.logger.Printf("expense summary: car name lookup failed car=%s err=%v", car, err)
		} else {
			summary.CarName = name
		}
	}
	return summary, nil
}

// List returns the matching expenses ordered by date.
func (s *Service) List(ctx context.Context, companyID string, carID *string, from, to time.Time) ([]expense.Record, error) {
	records, _, _, err := s.list(ctx, companyID, carID, from, to)
	return records, err
}

// Get loads one expense of the caller's company.
func (s *Service) Get(ctx context.Context, id string) (expense.Record, error) {
	record, err := s.repo.Get(ctx, id)
	if err != nil {
		return expense.Record{}, storage.Wrap("get expense", err)
	}
	if record == nil || auth.EnsureCompany(ctx, record.CompanyID) != nil {
		return expense.Record{}, expense.ErrExpenseNotFound
	}
	return *record, nil
}

func (s *Service) list(ctx context.Context, companyID string, carID *string, from, to time.Time) ([]expense.Record, string, string, error) {
	companyID, err := resolveCompany(ctx, companyID)
	if err != nil {
		return nil, "", "", err
	}
	if err := expense.ValidateRange(from, to); err != nil {
		return nil, "", "", err
	}
	car := ""
	if carID != nil {
		car = *carID
	}
	records, err := s.repo.List(ctx, expense.Filter{CompanyID: companyID, CarID: car, From: from, To: to})
	if err != nil {
		return nil, "", "", storage.Wrap("list expenses", err)
	}
	return records, companyID, car, nil
}

func resolveCompany(ctx context.Context, requested string) (string, error) {
	caller := auth.CompanyIDFromContext(ctx)
	switch {
	case caller == "":
	case requested == "":
		requested = caller
	case requested != caller:
		return "", auth.ErrCompanyMismatch
	}
	if requested == "" {
		return "", expense.ErrEmptyCompanyID
	}
	return requested, nil
}
