package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	ledger "fleet-settlement/internal/ledger/domain"
	ledgermemory "fleet-settlement/internal/ledger/infrastructure/memory"
	"fleet-settlement/internal/money"
	"fleet-settlement/internal/storage"
	memtx "fleet-settlement/internal/storage/memory"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type recordingPublisher struct {
	mu     sync.Mutex
	events []any
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

type failingRepo struct {
	ledger.Repository
}

func (failingRepo) ListUnsettled(ctx context.Context, contractID string, from, to time.Time) ([]ledger.EarningRecord, error) {
	return nil, errors.New("connection reset")
}

func (failingRepo) AssignSettlement(ctx context.Context, ids []string, settlementID string) error {
	return errors.New("connection reset")
}

func newTestService(t *testing.T, opts ...Option) (*Service, *recordingPublisher) {
	t.Helper()
	publisher := &recordingPublisher{}
	svc, err := NewService(ledgermemory.NewEarningRepository(), publisher,
		fixedClock{now: time.Date(2026, time.March, 9, 9, 0, 0, 0, time.UTC)}, opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, publisher
}

func pct(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func input(contractID string, gross string, day int) IngestInput {
	return IngestInput{
		ContractID:    contractID,
		CompanyID:     "company-1",
		Platform:      ledger.PlatformUber,
		GrossIncome:   money.MustParse(gross),
		BTWPercentage: pct(9),
		IncomeDate:    time.Date(2026, time.March, day, 14, 0, 0, 0, time.UTC),
	}
}

func TestIngest_ComputesBTWAndPublishes(t *testing.T) {
	svc, publisher := newTestService(t)
	record, err := svc.Ingest(context.Background(), input("contract-1", "100", 3))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !record.BTWAmount.Equal(money.MustParse("9")) || !record.NetIncome.Equal(money.MustParse("91")) {
		t.Fatalf("unexpected split btw=%s net=%s", record.BTWAmount, record.NetIncome)
	}
	if record.ID == "" || record.IsSettled() {
		t.Fatalf("expected new unsettled record with id, got %+v", record)
	}
	if len(publisher.events) != 1 {
		t.Fatalf("expected one event, got %d", len(publisher.events))
	}
	event, ok := publisher.events[0].(EarningIngested)
	if !ok || event.EarningID != record.ID {
		t.Fatalf("unexpected event %+v", publisher.events[0])
	}
}

func TestIngest_DefaultBTW(t *testing.T) {
	svc, _ := newTestService(t, WithDefaultBTW(decimal.NewFromInt(21)))
	in := input("contract-1", "10", 3)
	in.BTWPercentage = nil
	record, err := svc.Ingest(context.Background(), in)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !record.BTWAmount.Equal(money.MustParse("2.10")) {
		t.Fatalf("expected default 21%% btw, got %s", record.BTWAmount)
	}
}

func TestIngest_DuplicateRejected(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Ingest(ctx, input("contract-1", "100", 3)); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	_, err := svc.Ingest(ctx, input("contract-1", "100.00", 3))
	if !errors.Is(err, ledger.ErrDuplicateEarning) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	records, err := svc.ListByContract(ctx, "contract-1",
		time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected exactly one record, got %d", len(records))
	}
}

func TestIngest_RejectsInvalidInput(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	negative := input("contract-1", "-1", 3)
	if _, err := svc.Ingest(ctx, negative); !errors.Is(err, money.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}

	outside := input("contract-1", "10", 3)
	outside.WeekStart = time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC)
	outside.WeekEnd = time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)
	if _, err := svc.Ingest(ctx, outside); !errors.Is(err, ledger.ErrInvalidWeek) {
		t.Fatalf("expected invalid week, got %v", err)
	}

	unknown := input("contract-1", "10", 3)
	unknown.Platform = "lyft"
	if _, err := svc.Ingest(ctx, unknown); !errors.Is(err, ledger.ErrUnknownPlatform) {
		t.Fatalf("expected unknown platform, got %v", err)
	}
}

func TestIngest_RollsBackWhenPublishFails(t *testing.T) {
	publisher := &recordingPublisher{err: errors.New("outbox down")}
	repo := ledgermemory.NewEarningRepository()
	svc, err := NewService(repo, publisher, nil, WithTransactor(memtx.NewTransactor()))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	_, err = svc.Ingest(context.Background(), input("contract-1", "10", 3))
	if !errors.Is(err, storage.ErrStorageFailure) {
		t.Fatalf("expected storage failure, got %v", err)
	}
	publisher.err = nil
	if _, err := svc.Ingest(context.Background(), input("contract-1", "10", 3)); err != nil {
		t.Fatalf("expected retry to succeed after rollback, got %v", err)
	}
}

func TestFindUnsettled_OrderedWindowedRestartable(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	for _, in := range []IngestInput{
		input("contract-1", "30", 5),
		input("contract-1", "10", 2),
		input("contract-1", "20", 4),
		input("contract-1", "99", 9),
		input("contract-2", "50", 3),
	} {
		if _, err := svc.Ingest(ctx, in); err != nil {
			t.Fatalf("ingest: %v", err)
		}
	}

	from := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC)
	seq, err := svc.FindUnsettled(ctx, "contract-1", from, to)
	if err != nil {
		t.Fatalf("find unsettled: %v", err)
	}

	collect := func() []string {
		var grosses []string
		for record := range seq {
			grosses = append(grosses, record.GrossIncome.String())
		}
		return grosses
	}
	first := collect()
	want := []string{"10", "20", "30"}
	if len(first) != len(want) {
		t.Fatalf("expected %v, got %v", want, first)
	}
	for i := range want {
		if first[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, first)
		}
	}
	second := collect()
	if len(second) != len(first) {
		t.Fatalf("expected replay of %d records, got %d", len(first), len(second))
	}

	for range seq {
		break
	}
}

func TestFindUnsettled_InvalidPeriod(t *testing.T) {
	svc, _ := newTestService(t)
	at := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	if _, err := svc.FindUnsettled(context.Background(), "contract-1", at, at); !errors.Is(err, ledger.ErrInvalidPeriod) {
		t.Fatalf("expected invalid period, got %v", err)
	}
}

func TestMarkSettled_AllOrNothing(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	a, _ := svc.Ingest(ctx, input("contract-1", "10", 2))
	b, _ := svc.Ingest(ctx, input("contract-1", "20", 3))
	c, _ := svc.Ingest(ctx, input("contract-1", "30", 4))

	if err := svc.MarkSettled(ctx, []string{a.ID, a.ID}, "settlement-1"); err != nil {
		t.Fatalf("mark settled: %v", err)
	}
	err := svc.MarkSettled(ctx, []string{b.ID, a.ID, c.ID}, "settlement-2")
	if !errors.Is(err, ledger.ErrAlreadySettled) {
		t.Fatalf("expected already settled, got %v", err)
	}
	for _, id := range []string{b.ID, c.ID} {
		record, err := svc.Get(ctx, id)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if record.IsSettled() {
			t.Fatalf("expected %s untouched after failed assignment", id)
		}
	}

	if err := svc.MarkSettled(ctx, []string{b.ID, "missing"}, "settlement-3"); !errors.Is(err, ledger.ErrEarningNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := svc.MarkSettled(ctx, []string{b.ID}, ""); !errors.Is(err, ledger.ErrEmptySettlementID) {
		t.Fatalf("expected empty settlement id, got %v", err)
	}

	settled, err := svc.ListBySettlement(ctx, "settlement-1")
	if err != nil {
		t.Fatalf("list by settlement: %v", err)
	}
	if len(settled) != 1 || settled[0].ID != a.ID {
		t.Fatalf("unexpected settlement members %+v", settled)
	}
}

func TestContractsWithUnsettled(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	first, _ := svc.Ingest(ctx, input("contract-b", "10", 3))
	_, _ = svc.Ingest(ctx, input("contract-a", "10", 3))
	if err := svc.MarkSettled(ctx, []string{first.ID}, "settlement-1"); err != nil {
		t.Fatalf("mark settled: %v", err)
	}
	refs, err := svc.ContractsWithUnsettled(ctx,
		time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("contracts: %v", err)
	}
	if len(refs) != 1 || refs[0].ContractID != "contract-a" || refs[0].CompanyID != "company-1" {
		t.Fatalf("unexpected refs %+v", refs)
	}
}

func TestStorageErrorsAreWrapped(t *testing.T) {
	svc, err := NewService(failingRepo{Repository: ledgermemory.NewEarningRepository()}, nil, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()
	_, err = svc.FindUnsettled(ctx, "contract-1",
		time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC))
	if !errors.Is(err, storage.ErrStorageFailure) {
		t.Fatalf("expected storage failure, got %v", err)
	}
	if err := svc.MarkSettled(ctx, []string{"x"}, "s"); !errors.Is(err, storage.ErrStorageFailure) {
		t.Fatalf("expected storage failure, got %v", err)
	}
}

func TestNewService_NilRepository(t *testing.T) {
	if _, err := NewService(nil, nil, nil); err == nil {
		t.Fatalf("expected error for nil repository")
	}
}
