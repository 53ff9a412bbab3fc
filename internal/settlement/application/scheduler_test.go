package application

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fleet-settlement/internal/money"
	settlement "fleet-settlement/internal/settlement/domain"
)

func TestPreviousWeek(t *testing.T) {
	cases := []struct {
		now   time.Time
		start time.Time
	}{
		{now: time.Date(2026, time.March, 10, 6, 0, 0, 0, time.UTC), start: weekStart},
		{now: time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC), start: weekStart},
		{now: time.Date(2026, time.March, 15, 23, 59, 0, 0, time.UTC), start: weekStart},
	}
	for _, tc := range cases {
		start, end := PreviousWeek(tc.now)
		if !start.Equal(tc.start) || !end.Equal(tc.start.AddDate(0, 0, 7)) {
			t.Fatalf("now=%s: got [%s, %s)", tc.now, start, end)
		}
	}
}

func TestParseWeekday(t *testing.T) {
	for value, want := range map[string]time.Weekday{"monday": time.Monday, "Mon": time.Monday, " sunday ": time.Sunday} {
		got, err := ParseWeekday(value)
		if err != nil || got != want {
			t.Fatalf("%q: got %v err=%v", value, got, err)
		}
	}
	if _, err := ParseWeekday("someday"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNewScheduler_RejectsBadTime(t *testing.T) {
	f := newFixture(t)
	if _, err := NewScheduler(f.engine, f.ledger, SchedulerConfig{WeeklyAt: "25:00"}, nil); err == nil {
		t.Fatalf("expected error")
	}
}

func TestScheduler_RunOnceSettlesPreviousWeek(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, "contract-1", "100", 3)
	f.ingest(t, "contract-1", "50", 4)
	f.ingest(t, "contract-2", "80", 8)
	f.ingest(t, "contract-3", "30", 10)

	scheduler, err := NewScheduler(f.engine, f.ledger, SchedulerConfig{
		Weekday:  time.Monday,
		WeeklyAt: "06:00",
		Rents:    map[string]decimal.Decimal{"contract-1": money.MustParse("20")},
	}, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	now := time.Date(2026, time.March, 10, 6, 0, 0, 0, time.UTC)
	summary, err := scheduler.RunOnce(context.Background(), now)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Created != 2 || summary.Skipped != 0 || summary.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	list, err := f.engine.List(context.Background(), settlement.Filter{From: weekStart, To: weekEnd})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 settlements, got %d", len(list))
	}
	for _, s := range list {
		if s.ContractID == "contract-1" && !s.NetPayout.Equal(money.MustParse("130")) {
			t.Fatalf("expected rent applied, payout %s", s.NetPayout)
		}
	}

	again, err := scheduler.RunOnce(context.Background(), now)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if again.Created != 0 {
		t.Fatalf("second run should not create settlements: %+v", again)
	}
}

func TestScheduler_ShouldRun(t *testing.T) {
	f := newFixture(t)
	scheduler, err := NewScheduler(f.engine, f.ledger, SchedulerConfig{Weekday: time.Monday, WeeklyAt: "06:00"}, nil)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	if !scheduler.shouldRun(time.Date(2026, time.March, 9, 6, 0, 30, 0, time.UTC)) {
		t.Fatalf("expected run on monday 06:00")
	}
	if scheduler.shouldRun(time.Date(2026, time.March, 10, 6, 0, 0, 0, time.UTC)) {
		t.Fatalf("tuesday should not run")
	}
}
