package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"fleet-settlement/internal/audit"
	"fleet-settlement/internal/auth"
	ledgerapp "fleet-settlement/internal/ledger/application"
	ledger "fleet-settlement/internal/ledger/domain"
	ledgermemory "fleet-settlement/internal/ledger/infrastructure/memory"
)

var webhookSecret = []byte("bolt-secret")

type testServer struct {
	router *mux.Router
	audit  *audit.MemoryLog
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	service, err := ledgerapp.NewService(ledgermemory.NewEarningRepository(), nil, nil)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	auditLog := audit.NewMemoryLog()
	handler, err := NewHandler(service, auditLog, nil)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	router := mux.NewRouter()
	webhooks := router.PathPrefix("/webhooks").Subrouter()
	webhooks.Use(auth.NewWebhookAuthMiddleware(map[string][]byte{"bolt": webhookSecret}, 5*time.Minute).Wrap)
	handler.Register(router.PathPrefix("/api/v1").Subrouter(), webhooks)
	return &testServer{router: router, audit: auditLog}
}

func (s *testServer) do(req *http.Request, identity *auth.Identity) *httptest.ResponseRecorder {
	if identity != nil {
		req = req.WithContext(auth.WithIdentity(req.Context(), *identity))
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

var manager = &auth.Identity{CompanyID: "company-1", Role: auth.RoleManager, Subject: "manager-1"}

func ingestBody(contractID, gross string) []byte {
	body, _ := json.Marshal(map[string]string{
		"contract_id":  contractID,
		"platform":     "bolt",
		"gross_income": gross,
		"income_date":  "2026-03-03",
	})
	return body
}

func TestHandleIngest(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(httptest.NewRequest(http.MethodPost, "/api/v1/earnings", bytes.NewReader(ingestBody("contract-1", "150.00"))), manager)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var record ledger.EarningRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record.CompanyID != "company-1" {
		t.Fatalf("company = %q", record.CompanyID)
	}
	if record.BTWAmount.StringFixed(2) != "13.50" || record.NetIncome.StringFixed(2) != "136.50" {
		t.Fatalf("btw=%s net=%s", record.BTWAmount, record.NetIncome)
	}
	entries := srv.audit.Entries()
	if len(entries) != 1 || entries[0].Action != audit.ActionEarningIngest || entries[0].ResourceID != record.ID {
		t.Fatalf("audit entries = %+v", entries)
	}

	rec = srv.do(httptest.NewRequest(http.MethodPost, "/api/v1/earnings", bytes.NewReader(ingestBody("contract-1", "150.00"))), manager)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d", rec.Code)
	}
}

func TestHandleIngest_Invalid(t *testing.T) {
	srv := newTestServer(t)
	cases := []struct {
		name string
		body string
		want int
	}{
		{"missing contract", `{"platform":"bolt","gross_income":"1","income_date":"2026-03-03"}`, http.StatusBadRequest},
		{"unknown platform", `{"contract_id":"c","platform":"lyft","gross_income":"1","income_date":"2026-03-03"}`, http.StatusBadRequest},
		{"negative amount", `{"contract_id":"c","platform":"bolt","gross_income":"-1","income_date":"2026-03-03"}`, http.StatusBadRequest},
		{"sub-cent gross", `{"contract_id":"c","platform":"bolt","gross_income":"10.005","income_date":"2026-03-03"}`, http.StatusBadRequest},
		{"three decimal btw", `{"contract_id":"c","platform":"bolt","gross_income":"10","btw_percentage":"33.333","income_date":"2026-03-03"}`, http.StatusBadRequest},
		{"week without end", `{"contract_id":"c","platform":"bolt","gross_income":"1","income_date":"2026-03-03","week_start":"2026-03-02"}`, http.StatusBadRequest},
		{"date outside week", `{"contract_id":"c","platform":"bolt","gross_income":"1","income_date":"2026-03-20","week_start":"2026-03-02","week_end":"2026-03-08"}`, http.StatusBadRequest},
		{"other company", `{"contract_id":"c","company_id":"company-2","platform":"bolt","gross_income":"1","income_date":"2026-03-03"}`, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := srv.do(httptest.NewRequest(http.MethodPost, "/api/v1/earnings", bytes.NewBufferString(tc.body)), manager)
			if rec.Code != tc.want {
				t.Fatalf("status = %d want %d body=%s", rec.Code, tc.want, rec.Body.String())
			}
		})
	}
}

func TestHandleList_DriverScope(t *testing.T) {
	srv := newTestServer(t)
	for _, contractID := range []string{"contract-1", "contract-2"} {
		rec := srv.do(httptest.NewRequest(http.MethodPost, "/api/v1/earnings", bytes.NewReader(ingestBody(contractID, "50"))), manager)
		if rec.Code != http.StatusCreated {
			t.Fatalf("ingest status = %d", rec.Code)
		}
	}
	driver := &auth.Identity{CompanyID: "company-1", Role: auth.RoleDriver, Subject: "driver-1", ContractIDs: []string{"contract-1"}}

	rec := srv.do(httptest.NewRequest(http.MethodGet, "/api/v1/earnings?contract_id=contract-1&from=2026-03-02&to=2026-03-09", nil), driver)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var records []ledger.EarningRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(records) != 1 || records[0].ContractID != "contract-1" {
		t.Fatalf("records = %+v", records)
	}

	rec = srv.do(httptest.NewRequest(http.MethodGet, "/api/v1/earnings?contract_id=contract-2&from=2026-03-02&to=2026-03-09", nil), driver)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("other contract status = %d", rec.Code)
	}

	rec = srv.do(httptest.NewRequest(http.MethodGet, "/api/v1/earnings?contract_id=contract-1&from=2026-03-02&to=2026-03-09&unsettled=true", nil), manager)
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil || len(records) != 1 {
		t.Fatalf("unsettled records = %+v err=%v", records, err)
	}

	other := &auth.Identity{CompanyID: "company-2", Role: auth.RoleManager, Subject: "manager-2"}
	rec = srv.do(httptest.NewRequest(http.MethodGet, "/api/v1/earnings?contract_id=contract-1&from=2026-03-02&to=2026-03-09", nil), other)
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil || len(records) != 0 {
		t.Fatalf("other company records = %+v err=%v", records, err)
	}
}

func signedWebhook(t *testing.T, body []byte, platform string) *http.Request {
	t.Helper()
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/earnings", bytes.NewReader(body))
	req.Header.Set("X-Platform-Name", platform)
	req.Header.Set("X-Platform-Timestamp", ts)
	req.Header.Set("X-Platform-Signature", auth.ComputeWebhookSignature(webhookSecret, ts, body))
	return req
}

func TestHandleWebhook(t *testing.T) {
	srv := newTestServer(t)
	body := []byte(`{"contract_id":"contract-1","company_id":"company-1","platform":"bolt","gross_income":"80","income_date":"2026-03-04"}`)

	rec := srv.do(signedWebhook(t, body, "bolt"), nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	entries := srv.audit.Entries()
	if len(entries) != 1 || entries[0].CompanyID != "company-1" || entries[0].Actor != "bolt" {
		t.Fatalf("audit = %+v", entries)
	}

	rec = srv.do(signedWebhook(t, body, "bolt"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("retry status = %d", rec.Code)
	}
	var resp map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || !resp["duplicate"] {
		t.Fatalf("retry body = %s", rec.Body.String())
	}
}

func TestHandleWebhook_Rejects(t *testing.T) {
	srv := newTestServer(t)

	uber := []byte(`{"contract_id":"contract-1","company_id":"company-1","platform":"uber","gross_income":"80","income_date":"2026-03-04"}`)
	if rec := srv.do(signedWebhook(t, uber, "bolt"), nil); rec.Code != http.StatusForbidden {
		t.Fatalf("platform mismatch status = %d", rec.Code)
	}

	noCompany := []byte(`{"contract_id":"contract-1","platform":"bolt","gross_income":"80","income_date":"2026-03-04"}`)
	if rec := srv.do(signedWebhook(t, noCompany, "bolt"), nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing company status = %d", rec.Code)
	}

	req := signedWebhook(t, uber, "bolt")
	req.Header.Set("X-Platform-Signature", "00")
	if rec := srv.do(req, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad signature status = %d", rec.Code)
	}
}
