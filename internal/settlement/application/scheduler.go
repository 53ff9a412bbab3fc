package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	ledger "fleet-settlement/internal/ledger/domain"
	"fleet-settlement/internal/observability/metrics"
	settlement "fleet-settlement/internal/settlement/domain"
)

// ContractSource lists contracts that still hold unsettled earnings.
type ContractSource interface {
	ContractsWithUnsettled(ctx context.Context, from, to time.Time) ([]ledger.ContractRef, error)
}

// SchedulerConfig configures the weekly run.
type SchedulerConfig struct {
	Weekday  time.Weekday
	WeeklyAt string
	// Rents maps contract id to the weekly rent deducted by automatic runs.
	Rents map[string]decimal.Decimal
}

// RunSummary counts the outcome of one scheduled run.
type RunSummary struct {
	PeriodStart time.Time
	PeriodEnd   time.Time
	Created     int
	Skipped     int
	Failed      int
}

// Scheduler settles the previous ISO week for every contract with unsettled
// earnings at a configured weekday and time (UTC).
type Scheduler struct {
	engine    *Engine
	contracts ContractSource
	cfg       SchedulerConfig
	hour      int
	minute    int
	logger    *log.Logger
}

// NewScheduler constructs a Scheduler.
func NewScheduler(engine *Engine, contracts ContractSource, cfg SchedulerConfig, logger *log.Logger) (*Scheduler, error) {
	if engine == nil {
		return nil, errors.New("settlement scheduler: nil engine")
	}
	if contracts == nil {
		return nil, errors.New("settlement scheduler: nil contract source")
	}
	hour, minute, err := parseWeeklyAt(cfg.WeeklyAt)
	if err != nil {
		return nil, fmt.Errorf("settlement scheduler: weekly_at %q: %w", cfg.WeeklyAt, err)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		engine:    engine,
		contracts: contracts,
		cfg:       cfg,
		hour:      hour,
		minute:    minute,
		logger:    logger,
	}, nil
}

// Start begins the scheduler loop and returns when ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil {
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if !s.shouldRun(now.UTC()) {
				continue
			}
			if _, err := s.RunOnce(ctx, now.UTC()); err != nil {
				s.logger.Printf("settlement schedule error: %v", err)
			}
		}
	}
}

func (s *Scheduler) shouldRun(now time.Time) bool {
	return now.Weekday() == s.cfg.Weekday && now.Hour() == s.hour && now.Minute() == s.minute
}

// RunOnce settles the ISO week preceding now. Contracts without earnings or
// already settled for that week count as skipped.
func (s *Scheduler) RunOnce(ctx context.Context, now time.Time) (RunSummary, error) {
	start, end := PreviousWeek(now)
	summary := RunSummary{PeriodStart: start, PeriodEnd: end}

	refs, err := s.contracts.ContractsWithUnsettled(ctx, start, end)
	if err != nil {
		return summary, err
	}
	for _, ref := range refs {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		_, err := s.engine.CreateSettlement(ctx, CreateInput{
			CompanyID:     ref.CompanyID,
			ContractID:    ref.ContractID,
			PeriodStart:   start,
			PeriodEnd:     end,
			RentDeduction: s.cfg.Rents[ref.ContractID],
			Description:   "weekly settlement " + start.Format("2006-01-02"),
		})
		switch {
		case err == nil:
			summary.Created++
			metrics.IncSchedulerContract("created")
		case errors.Is(err, settlement.ErrNoEarningsInPeriod),
			errors.Is(err, settlement.ErrSettlementExists),
			errors.Is(err, ledger.ErrAlreadySettled):
			summary.Skipped++
			metrics.IncSchedulerContract("skipped")
			s.logger.Printf("settlement schedule skip: contract=%s week=%s reason=%v",
				ref.ContractID, start.Format("2006-01-02"), err)
		default:
			summary.Failed++
			metrics.IncSchedulerContract("failed")
			s.logger.Printf("settlement schedule error: contract=%s week=%s err=%v",
				ref.ContractID, start.Format("2006-01-02"), err)
		}
	}
	s.logger.Printf("settlement schedule done: week=%s created=%d skipped=%d failed=%d",
		start.Format("2006-01-02"), summary.Created, summary.Skipped, summary.Failed)
	return summary, nil
}

// PreviousWeek returns [Monday 00:00, next Monday 00:00) UTC of the ISO week
// before the one containing now.
func PreviousWeek(now time.Time) (time.Time, time.Time) {
	monday, _ := ledger.WeekOf(now)
	return monday.AddDate(0, 0, -7), monday
}

// ParseWeekday accepts english weekday names such as "monday" or "Mon".
func ParseWeekday(value string) (time.Weekday, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if v == name || v == name[:3] {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", value)
}

func parseWeeklyAt(value string) (int, int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}
