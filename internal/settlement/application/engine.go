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

	"fleet-settlement/internal/auth"
	ledger "fleet-settlement/internal/ledger/domain"
	"fleet-settlement/internal/observability/metrics"
	settlement "fleet-settlement/internal/settlement/domain"
	"fleet-settlement/internal/storage"
)

// EarningLedger is the part of the earning ledger the engine depends on.
type EarningLedger interface {
	FindUnsettled(ctx context.Context, contractID string, from, to time.Time) (iter.Seq[ledger.EarningRecord], error)
	MarkSettled(ctx context.Context, ids []string, settlementID string) error
	ListBySettlement(ctx context.Context, settlementID string) ([]ledger.EarningRecord, error)
}

// EventPublisher emits settlement events.
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

// CreateInput describes a settlement to create.
type CreateInput struct {
	CompanyID     string
	ContractID    string
	PeriodStart   time.Time
	PeriodEnd     time.Time
	RentDeduction decimal.Decimal
	ExtraCosts    decimal.Decimal
	Description   string
}

// CreateResult is the outcome of CreateSettlement. NegativePayout flags a
// settlement whose deductions exceed gross income.
type CreateResult struct {
	Settlement     *settlement.Settlement
	NegativePayout bool
}

// AttachResult is the outcome of AttachLateEarnings.
type AttachResult struct {
	Settlement *settlement.Settlement
	Attached   int
}

// Engine turns unsettled earnings into settlements and drives their lifecycle.
type Engine struct {
	repo      settlement.Repository
	ledger    EarningLedger
	tx        storage.Transactor
	publisher EventPublisher
	clock     Clock
	logger    *log.Logger
}

// NewEngine constructs the settlement engine.
func NewEngine(
	repo settlement.Repository,
	earnings EarningLedger,
	tx storage.Transactor,
	publisher EventPublisher,
	clock Clock,
	logger *log.Logger,
) (*Engine, error) {
	if repo == nil {
		return nil, errors.New("settlement engine: nil repository")
	}
	if earnings == nil {
		return nil, errors.New("settlement engine: nil ledger")
	}
	if tx == nil {
		return nil, errors.New("settlement engine: nil transactor")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		repo:      repo,
		ledger:    earnings,
		tx:        tx,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
	}, nil
}

// CreateSettlement settles every unsettled earning of the contract inside
// [PeriodStart, PeriodEnd). Marking the earnings and storing the settlement
// happen in one transaction; when another settlement claims any of the
// earnings first, ledger.ErrAlreadySettled is returned and nothing is stored.
func (e *Engine) CreateSettlement(ctx context.Context, in CreateInput) (result CreateResult, err error) {
	start := time.Now()
	defer func() { observe("create", err, start) }()

	if in.ContractID == "" {
		return CreateResult{}, settlement.ErrEmptyContractID
	}
	if err := settlement.ValidatePeriod(in.PeriodStart, in.PeriodEnd); err != nil {
		return CreateResult{}, err
	}
	if hasIdentity(ctx) && !auth.CanAccessContract(ctx, in.ContractID) {
		return CreateResult{}, auth.ErrForbidden
	}

	seq, err := e.ledger.FindUnsettled(ctx, in.ContractID, in.PeriodStart, in.PeriodEnd)
	if err != nil {
		return CreateResult{}, err
	}
	earnings := slices.Collect(seq)
	if len(earnings) == 0 {
		return CreateResult{}, settlement.ErrNoEarningsInPeriod
	}

	s, err := settlement.NewSettlement(settlement.NewSettlementInput{
		ID:            uuid.NewString(),
		ContractID:    in.ContractID,
		PeriodStart:   in.PeriodStart,
		PeriodEnd:     in.PeriodEnd,
		RentDeduction: in.RentDeduction,
		ExtraCosts:    in.ExtraCosts,
		Description:   in.Description,
		Earnings:      earnings,
		CreatedAt:     e.clock.Now(),
	})
	if err != nil {
		return CreateResult{}, err
	}
	if err := e.ensureCompany(ctx, in.CompanyID, s); err != nil {
		return CreateResult{}, err
	}

	err = e.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := e.ledger.MarkSettled(ctx, s.EarningIDs(), s.ID); err != nil {
			return err
		}
		if err := e.repo.Create(ctx, s); err != nil {
			return wrapStorage("create settlement", err)
		}
		return e.publish(ctx, SettlementCreated{
			SettlementID:   s.ID,
			CompanyID:      s.CompanyID,
			ContractID:     s.ContractID,
			PeriodStart:    s.PeriodStart,
			PeriodEnd:      s.PeriodEnd,
			GrossAmount:    s.GrossAmount,
			NetPayout:      s.NetPayout,
			EarningCount:   len(s.Earnings),
			NegativePayout: s.IsNegativePayout(),
			OccurredAt:     s.CreatedAt,
		})
	})
	if err != nil {
		return CreateResult{}, err
	}
	s.LinkEarnings()

	if s.IsNegativePayout() {
		metrics.IncNegativePayout()
		e.logger.Printf("settlement created with negative payout: id=%s contract=%s gross=%s payout=%s",
			s.ID, s.ContractID, s.GrossAmount, s.NetPayout)
	}
	return CreateResult{Settlement: s, NegativePayout: s.IsNegativePayout()}, nil
}

// Confirm records the driver's acceptance of a pending settlement.
func (e *Engine) Confirm(ctx context.Context, id string, byDriver bool) (s *settlement.Settlement, err error) {
	start := time.Now()
	defer func() { observe("confirm", err, start) }()

	return e.mutate(ctx, id, func(s *settlement.Settlement, now time.Time) (any, error) {
		if err := s.Confirm(byDriver, now); err != nil {
			return nil, err
		}
		return SettlementConfirmed{
			SettlementID: s.ID,
			CompanyID:    s.CompanyID,
			ContractID:   s.ContractID,
			NetPayout:    s.NetPayout,
			SnapshotHash: s.SnapshotHash,
			OccurredAt:   now,
		}, nil
	})
}

// Dispute reopens a confirmed settlement.
func (e *Engine) Dispute(ctx context.Context, id, reason string) (s *settlement.Settlement, err error) {
	start := time.Now()
	defer func() { observe("dispute", err, start) }()

	return e.mutate(ctx, id, func(s *settlement.Settlement, now time.Time) (any, error) {
		if err := s.Dispute(reason, now); err != nil {
			return nil, err
		}
		return SettlementDisputed{
			SettlementID: s.ID,
			CompanyID:    s.CompanyID,
			ContractID:   s.ContractID,
			Reason:       reason,
			OccurredAt:   now,
		}, nil
	})
}

// Recompute re-derives the totals of a pending settlement from the earnings
// currently assigned to it.
func (e *Engine) Recompute(ctx context.Context, id string) (s *settlement.Settlement, err error) {
	start := time.Now()
	defer func() { observe("recompute", err, start) }()

	return e.mutate(ctx, id, func(s *settlement.Settlement, now time.Time) (any, error) {
		if err := s.Recompute(s.Earnings, now); err != nil {
			return nil, err
		}
		return SettlementRecomputed{
			SettlementID: s.ID,
			CompanyID:    s.CompanyID,
			ContractID:   s.ContractID,
			GrossAmount:  s.GrossAmount,
			NetPayout:    s.NetPayout,
			OccurredAt:   now,
		}, nil
	})
}

// AttachLateEarnings assigns earnings that arrived after creation inside the
// settlement window and recomputes the totals. Confirmed settlements are
// immutable; dispute them first.
func (e *Engine) AttachLateEarnings(ctx context.Context, id string) (result AttachResult, err error) {
	start := time.Now()
	defer func() { observe("attach_late", err, start) }()

	s, err := e.load(ctx, id)
	if err != nil {
		return AttachResult{}, err
	}
	if s.IsConfirmed() {
		return AttachResult{}, settlement.ErrImmutableAfterConfirmation
	}
	seq, err := e.ledger.FindUnsettled(ctx, s.ContractID, s.PeriodStart, s.PeriodEnd)
	if err != nil {
		return AttachResult{}, err
	}
	late := slices.Collect(seq)
	if len(late) == 0 {
		return AttachResult{Settlement: s}, nil
	}

	expected := s.Version
	now := e.clock.Now()
	if err := s.AttachEarnings(late, now); err != nil {
		return AttachResult{}, err
	}
	err = e.tx.WithinTx(ctx, func(ctx context.Context) error {
		ids := make([]string, 0, len(late))
		for _, earning := range late {
			ids = append(ids, earning.ID)
		}
		if err := e.ledger.MarkSettled(ctx, ids, s.ID); err != nil {
			return err
		}
		if err := e.repo.Update(ctx, s, expected); err != nil {
			return wrapStorage("update settlement", err)
		}
		return e.publish(ctx, SettlementRecomputed{
			SettlementID: s.ID,
			CompanyID:    s.CompanyID,
			ContractID:   s.ContractID,
			GrossAmount:  s.GrossAmount,
			NetPayout:    s.NetPayout,
			Attached:     len(late),
			OccurredAt:   now,
		})
	})
	if err != nil {
		return AttachResult{}, err
	}
	s.LinkEarnings()
	return AttachResult{Settlement: s, Attached: len(late)}, nil
}

// Get loads a settlement with its earnings.
func (e *Engine) Get(ctx context.Context, id string) (*settlement.Settlement, error) {
	return e.load(ctx, id)
}

// List returns settlements matching filter without their earnings. The
// caller's company and, for drivers, contracts narrow the filter.
func (e *Engine) List(ctx context.Context, filter settlement.Filter) ([]settlement.Settlement, error) {
	if identity, ok := auth.IdentityFromContext(ctx); ok {
		filter.CompanyID = identity.CompanyID
		if identity.Role == auth.RoleDriver {
			if filter.ContractID != "" && !auth.CanAccessContract(ctx, filter.ContractID) {
				return nil, auth.ErrForbidden
			}
			filter.ContractIDs = identity.ContractIDs
		}
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && !filter.From.Before(filter.To) {
		return nil, settlement.ErrInvalidPeriod
	}
	list, err := e.repo.List(ctx, filter)
	if err != nil {
		return nil, wrapStorage("list settlements", err)
	}
	return list, nil
}

type mutation func(s *settlement.Settlement, now time.Time) (any, error)

// mutate loads, changes, persists and announces a settlement atomically.
func (e *Engine) mutate(ctx context.Context, id string, change mutation) (*settlement.Settlement, error) {
	s, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	expected := s.Version
	now := e.clock.Now()
	event, err := change(s, now)
	if err != nil {
		return nil, err
	}
	err = e.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := e.repo.Update(ctx, s, expected); err != nil {
			return wrapStorage("update settlement", err)
		}
		return e.publish(ctx, event)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (e *Engine) load(ctx context.Context, id string) (*settlement.Settlement, error) {
	if id == "" {
		return nil, settlement.ErrSettlementNotFound
	}
	s, err := e.repo.Get(ctx, id)
	if err != nil {
		return nil, wrapStorage("get settlement", err)
	}
	if s == nil {
		return nil, settlement.ErrSettlementNotFound
	}
	if err := auth.EnsureCompany(ctx, s.CompanyID); err != nil {
		return nil, settlement.ErrSettlementNotFound
	}
	if hasIdentity(ctx) && !auth.CanAccessContract(ctx, s.ContractID) {
		return nil, settlement.ErrSettlementNotFound
	}
	earnings, err := e.ledger.ListBySettlement(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	s.Earnings = earnings
	return s, nil
}

func (e *Engine) ensureCompany(ctx context.Context, requested string, s *settlement.Settlement) error {
	if requested != "" && requested != s.CompanyID {
		return settlement.ErrCompanyMismatch
	}
	if err := auth.EnsureCompany(ctx, s.CompanyID); err != nil {
		return settlement.ErrCompanyMismatch
	}
	return nil
}

func (e *Engine) publish(ctx context.Context, event any) error {
	if e.publisher == nil || event == nil {
		return nil
	}
	return wrapStorage("publish settlement event", e.publisher.Publish(ctx, event))
}

func hasIdentity(ctx context.Context) bool {
	_, ok := auth.IdentityFromContext(ctx)
	return ok
}

var domainErrors = []error{
	settlement.ErrSettlementExists,
	settlement.ErrVersionConflict,
	settlement.ErrSettlementNotFound,
	ledger.ErrAlreadySettled,
	ledger.ErrEarningNotFound,
}

func wrapStorage(op string, err error) error {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	return storage.Wrap(op, err)
}

func observe(operation string, err error, start time.Time) {
	result := metrics.ResultSuccess
	switch {
	case err == nil:
	case errors.Is(err, settlement.ErrNoEarningsInPeriod), errors.Is(err, ledger.ErrAlreadySettled):
		result = metrics.ResultSkipped
	default:
		result = metrics.ResultError
	}
	metrics.ObserveSettlement(operation, result, time.Since(start))
}
