package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"fleet-settlement/internal/auth"
	expense "fleet-settlement/internal/expense/domain"
	"fleet-settlement/internal/money"
	"fleet-settlement/internal/reporting"
	settlement "fleet-settlement/internal/settlement/domain"
)

type settlementStub struct {
	filters []settlement.Filter
}

func (s *settlementStub) Get(ctx context.Context, id string) (*settlement.Settlement, error) {
	return nil, settlement.ErrSettlementNotFound
}

func (s *settlementStub) List(ctx context.Context, filter settlement.Filter) ([]settlement.Settlement, error) {
	s.filters = append(s.filters, filter)
	return []settlement.Settlement{{
		ID:          "s-1",
		CompanyID:   filter.CompanyID,
		ContractID:  "contract-1",
		GrossAmount: money.MustParse("150"),
		NetPayout:   money.MustParse("125"),
		Status:      settlement.StatusPending,
	}}, nil
}

type expenseStub struct {
	to time.Time
}

func (s *expenseStub) Summarize(ctx context.Context, companyID string, carID *string, from, to time.Time) (expense.Summary, error) {
	s.to = to
	return expense.Summarize(companyID, "", from, to, nil), nil
}

func TestDashboard(t *testing.T) {
	settlements := &settlementStub{}
	expenses := &expenseStub{}
	reports, err := reporting.NewService(settlements, expenses, "EUR")
	if err != nil {
		t.Fatalf("reports: %v", err)
	}
	handler, err := NewHandler(reports)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	router := mux.NewRouter()
	handler.Register(router.PathPrefix("/api/v1").Subrouter())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard?from=2026-03-01&to=2026-04-01", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{CompanyID: "company-1", Role: auth.RoleManager}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var dashboard reporting.Dashboard
	if err := json.Unmarshal(rec.Body.Bytes(), &dashboard); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dashboard.CompanyID != "company-1" || dashboard.Settlements.Totals.NetPayout != "125.00" {
		t.Fatalf("dashboard = %+v", dashboard)
	}
	if len(settlements.filters) != 1 || settlements.filters[0].CompanyID != "company-1" {
		t.Fatalf("filters = %+v", settlements.filters)
	}
	if want := time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC); !expenses.to.Equal(want) {
		t.Fatalf("expense range ends %s, want %s", expenses.to, want)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/dashboard?from=2026-04-01&to=2026-03-01", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{CompanyID: "company-1", Role: auth.RoleManager}))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("inverted range status = %d", rec.Code)
	}
}
