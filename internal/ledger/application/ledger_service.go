package application

import (
	"context"
	"errors"
	"iter"
	"log"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	ledger "fleet-settlement/internal/ledger/domain"
	"fleet-settlement/internal/money"
	"fleet-settlement/internal/observability/metrics"
	"fleet-settlement/internal/storage"
)

// IngestInput carries an incoming platform payment.
type IngestInput struct {
	ID            string
	ContractID    string
	CompanyID     string
	Platform      ledger.Platform
	GrossIncome   decimal.Decimal
	BTWPercentage *decimal.Decimal
	IncomeDate    time.Time
	WeekStart     time.Time
	WeekEnd       time.Time
}

// EarningIngested is emitted after an earning is stored.
type EarningIngested struct {
	EarningID   string
	ContractID  string
	CompanyID   string
	Platform    string
	GrossIncome decimal.Decimal
	IncomeDate  time.Time
	OccurredAt  time.Time
}

// EventPublisher emits ledger events.
type EventPublisher interface {
	Publish(ctx context.Context, event any) error
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Option configures the service.
type Option func(*Service)

// WithDefaultBTW sets the BTW percentage applied when input omits one.
func WithDefaultBTW(pct decimal.Decimal) Option {
	return func(s *Service) { s.defaultBTW = pct }
}

// WithTransactor makes Ingest store the record and its event atomically.
func WithTransactor(tx storage.Transactor) Option {
	return func(s *Service) { s.tx = tx }
}

// WithLogger sets the service logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Service is the earning ledger.
type Service struct {
	repo       ledger.Repository
	publisher  EventPublisher
	clock      Clock
	tx         storage.Transactor
	defaultBTW decimal.Decimal
	logger     *log.Logger
}

// DefaultBTWPercentage is the Dutch low rate applied to passenger transport.
var DefaultBTWPercentage = decimal.NewFromInt(9)

// NewService constructs the ledger service.
func NewService(repo ledger.Repository, publisher EventPublisher, clock Clock, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, errors.New("ledger service: nil repository")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	s := &Service{
		repo:       repo,
		publisher:  publisher,
		clock:      clock,
		defaultBTW: DefaultBTWPercentage,
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Ingest validates, derives BTW and stores a new unsettled earning.
func (s *Service) Ingest(ctx context.Context, in IngestInput) (record ledger.EarningRecord, err error) {
	start := time.Now()
	defer func() {
		result := metrics.ResultSuccess
		if err != nil {
			result = metrics.ResultError
			metrics.IncIngestError(ingestErrorReason(err))
		}
		metrics.ObserveIngest(result, time.Since(start))
	}()

	pct := s.defaultBTW
	if in.BTWPercentage != nil {
		pct = *in.BTWPercentage
	}
	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	record, err = ledger.NewEarningRecord(ledger.NewEarning{
		ID:            id,
		ContractID:    in.ContractID,
		CompanyID:     in.CompanyID,
		Platform:      in.Platform,
		GrossIncome:   in.GrossIncome,
		BTWPercentage: pct,
		IncomeDate:    in.IncomeDate,
		WeekStart:     in.WeekStart,
		WeekEnd:       in.WeekEnd,
		CreatedAt:     s.clock.Now(),
	})
	if err != nil {
		return ledger.EarningRecord{}, err
	}

	err = s.within(ctx, func(ctx context.Context) error {
		if err := s.repo.Insert(ctx, record); err != nil {
			return wrapStorage("insert earning", err)
		}
		if s.publisher == nil {
			return nil
		}
		err := s.publisher.Publish(ctx, EarningIngested{
			EarningID:   record.ID,
			ContractID:  record.ContractID,
			CompanyID:   record.CompanyID,
			Platform:    string(record.Platform),
			GrossIncome: record.GrossIncome,
			IncomeDate:  record.IncomeDate,
			OccurredAt:  record.CreatedAt,
		})
		return wrapStorage("publish earning ingested", err)
	})
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateEarning) {
			s.logger.Printf("ledger ingest: duplicate contract=%s platform=%s date=%s gross=%s",
				record.ContractID, record.Platform, record.IncomeDate.Format(time.RFC3339), record.GrossIncome)
		}
		return ledger.EarningRecord{}, err
	}
	return record, nil
}

// FindUnsettled returns the unsettled earnings of a contract whose income date
// lies in [from, to), ascending by income date. The sequence replays the same
// snapshot every time it is ranged over.
func (s *Service) FindUnsettled(ctx context.Context, contractID string, from, to time.Time) (iter.Seq[ledger.EarningRecord], error) {
	if contractID == "" {
		return nil, ledger.ErrEmptyContractID
	}
	if err := validatePeriod(from, to); err != nil {
		return nil, err
	}
	records, err := s.repo.ListUnsettled(ctx, contractID, from, to)
	if err != nil {
		return nil, wrapStorage("list unsettled earnings", err)
	}
	snapshot := slices.Clone(records)
	sortByIncomeDate(snapshot)
	return slices.Values(snapshot), nil
}

// MarkSettled assigns every listed earning to settlementID or none of them.
func (s *Service) MarkSettled(ctx context.Context, ids []string, settlementID string) error {
	if settlementID == "" {
		return ledger.ErrEmptySettlementID
	}
	unique := dedupe(ids)
	if len(unique) == 0 {
		return nil
	}
	if err := s.repo.AssignSettlement(ctx, unique, settlementID); err != nil {
		return wrapStorage("assign settlement", err)
	}
	return nil
}

// Get loads an earning by id.
func (s *Service) Get(ctx context.Context, id string) (ledger.EarningRecord, error) {
	record, err := s.repo.Get(ctx, id)
	if err != nil {
		return ledger.EarningRecord{}, wrapStorage("get earning", err)
	}
	if record == nil {
		return ledger.EarningRecord{}, ledger.ErrEarningNotFound
	}
	return *record, nil
}

// ListBySettlement returns the earnings of a settlement ordered by income date.
func (s *Service) ListBySettlement(ctx context.Context, settlementID string) ([]ledger.EarningRecord, error) {
	if settlementID == "" {
		return nil, ledger.ErrEmptySettlementID
	}
	records, err := s.repo.ListBySettlement(ctx, settlementID)
	if err != nil {
		return nil, wrapStorage("list settlement earnings", err)
	}
	sortByIncomeDate(records)
	return records, nil
}

// ListByContract returns settled and unsettled earnings of a contract in [from, to).
func (s *Service) ListByContract(ctx context.Context, contractID string, from, to time.Time) ([]ledger.EarningRecord, error) {
	if contractID == "" {
		return nil, ledger.ErrEmptyContractID
	}
	if err := validatePeriod(from, to); err != nil {
		return nil, err
	}
	records, err := s.repo.ListByContract(ctx, contractID, from, to)
	if err != nil {
		return nil, wrapStorage("list contract earnings", err)
	}
	sortByIncomeDate(records)
	return records, nil
}

// ContractsWithUnsettled lists contracts that still hold unsettled earnings in [from, to).
func (s *Service) ContractsWithUnsettled(ctx context.Context, from, to time.Time) ([]ledger.ContractRef, error) {
	if err := validatePeriod(from, to); err != nil {
		return nil, err
	}
	refs, err := s.repo.ContractsWithUnsettled(ctx, from, to)
	if err != nil {
		return nil, wrapStorage("list contracts with unsettled earnings", err)
	}
	return refs, nil
}

func (s *Service) within(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.tx == nil {
		return fn(ctx)
	}
	return s.tx.WithinTx(ctx, fn)
}

func validatePeriod(from, to time.Time) error {
	if from.IsZero() || to.IsZero() || !from.Before(to) {
		return ledger.ErrInvalidPeriod
	}
	return nil
}

func sortByIncomeDate(records []ledger.EarningRecord) {
	slices.SortStableFunc(records, func(a, b ledger.EarningRecord) int {
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
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}

var domainErrors = []error{
	ledger.ErrDuplicateEarning,
	ledger.ErrAlreadySettled,
	ledger.ErrEarningNotFound,
	ledger.ErrEmptySettlementID,
}

// wrapStorage marks persistence failures while letting ledger sentinels through.
func wrapStorage(op string, err error) error {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	return storage.Wrap(op, err)
}

func ingestErrorReason(err error) string {
	switch {
	case errors.Is(err, ledger.ErrDuplicateEarning):
		return "duplicate"
	case errors.Is(err, money.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ledger.ErrInvalidWeek):
		return "invalid_week"
	case errors.Is(err, ledger.ErrUnknownPlatform):
		return "unknown_platform"
	case errors.Is(err, storage.ErrStorageFailure):
		return "storage"
	default:
		return "invalid"
	}
}
