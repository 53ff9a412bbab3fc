package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"fleet-settlement/internal/auth"
	expense "fleet-settlement/internal/expense/domain"
	expensememory "fleet-settlement/internal/expense/infrastructure/memory"
	"fleet-settlement/internal/money"
)

var (
	march1  = time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	march31 = time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC)
)

func newService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(expensememory.NewExpenseRepository(),
		expensememory.NewCarDirectory(map[string]string{"car-1": "Toyota Prius GX-123-B"}), nil, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func record(t *testing.T, svc *Service, company, car string, typ expense.Type, net, vat string, day int) {
	t.Helper()
	n := money.MustParse(net)
	v := money.MustParse(vat)
	_, err := svc.Record(context.Background(), RecordInput{
		CompanyID:   company,
		CarID:       car,
		Type:        typ,
		Date:        time.Date(2026, time.March, day, 9, 30, 0, 0, time.UTC),
		NetAmount:   n,
		VATAmount:   v,
		GrossAmount: n.Add(v),
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
}

func TestSummarize_FiltersCompanyCarAndRange(t *testing.T) {
	svc := newService(t)
	record(t, svc, "company-1", "car-1", expense.TypeFuel, "50", "10.50", 1)
	record(t, svc, "company-1", "car-1", expense.TypeRepair, "100", "21", 31)
	record(t, svc, "company-1", "car-2", expense.TypeFuel, "40", "8.40", 10)
	record(t, svc, "company-2", "car-1", expense.TypeFuel, "999", "0", 10)
	record(t, svc, "company-1", "car-1", expense.TypeFuel, "70", "14.70", 0)

	car := "car-1"
	summary, err := svc.Summarize(context.Background(), "company-1", &car, march1, march31)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary.CarName != "Toyota Prius GX-123-B" {
		t.Fatalf("unexpected car name %q", summary.CarName)
	}
	if !summary.Totals.Gross.Equal(money.MustParse("181.50")) {
		t.Fatalf("expected gross 181.50, got %s", summary.Totals.Gross)
	}
	if len(summary.Breakdown) != 2 || summary.Breakdown[0].Type != expense.TypeFuel {
		t.Fatalf("unexpected breakdown %+v", summary.Breakdown)
	}

	all, err := svc.Summarize(context.Background(), "company-1", nil, march1, march31)
	if err != nil {
		t.Fatalf("summarize all: %v", err)
	}
	if all.Count != 3 || !all.Totals.Net.Equal(money.MustParse("190")) {
		t.Fatalf("unexpected all-vehicle summary: count=%d net=%s", all.Count, all.Totals.Net)
	}
}

func TestSummarize_EmptyAndInvalidRange(t *testing.T) {
	svc := newService(t)
	summary, err := svc.Summarize(context.Background(), "company-1", nil, march1, march31)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if len(summary.Breakdown) != 0 || !summary.Totals.Gross.IsZero() {
		t.Fatalf("expected empty summary, got %+v", summary)
	}
	if _, err := svc.Summarize(context.Background(), "company-1", nil, march31, march1); !errors.Is(err, expense.ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func TestRecord_RejectsGrossMismatch(t *testing.T) {
	svc := newService(t)
	_, err := svc.Record(context.Background(), RecordInput{
		CompanyID:   "company-1",
		Type:        expense.TypeParking,
		Date:        march1,
		NetAmount:   money.MustParse("10"),
		VATAmount:   money.MustParse("2.10"),
		GrossAmount: money.MustParse("12"),
	})
	if !errors.Is(err, money.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestCompanyScoping(t *testing.T) {
	svc := newService(t)
	ctx := auth.WithIdentity(context.Background(), auth.Identity{CompanyID: "company-1", Role: auth.RoleManager})

	if _, err := svc.Summarize(ctx, "company-2", nil, march1, march31); !errors.Is(err, auth.ErrCompanyMismatch) {
		t.Fatalf("expected ErrCompanyMismatch, got %v", err)
	}
	n := money.MustParse("5")
	rec, err := svc.Record(ctx, RecordInput{Type: expense.TypeTolls, Date: march1, NetAmount: n, VATAmount: money.MustParse("0"), GrossAmount: n})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if rec.CompanyID != "company-1" {
		t.Fatalf("expected caller company, got %s", rec.CompanyID)
	}
	other := auth.WithIdentity(context.Background(), auth.Identity{CompanyID: "company-2", Role: auth.RoleManager})
	if _, err := svc.Get(other, rec.ID); !errors.Is(err, expense.ErrExpenseNotFound) {
		t.Fatalf("expected ErrExpenseNotFound, got %v", err)
	}
}
