package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware_NoToken(t *testing.T) {
	secret := []byte("test-secret")
	mw := NewMiddleware(secret, NewDefaultPolicy(nil, nil))
	handler := mw.Wrap(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/settlements", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAuthMiddleware_ExemptHealth(t *testing.T) {
	mw := NewMiddleware([]byte("test-secret"), NewDefaultPolicy([]string{"/healthz"}, nil))
	handler := mw.Wrap(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestAuthMiddleware_DriverForbidden(t *testing.T) {
	secret := []byte("test-secret")
	token := mustToken(t, secret, "company-a", "driver", []string{"contract-1"})
	mw := NewMiddleware(secret, NewDefaultPolicy(nil, nil))
	handler := mw.Wrap(okHandler())

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/settlements"},
		{http.MethodPost, "/api/v1/earnings"},
		{http.MethodPost, "/api/v1/settlements/s-1/recompute"},
		{http.MethodGet, "/api/v1/exports/settlements.csv"},
		{http.MethodGet, "/api/v1/dashboard"},
		{http.MethodGet, "/api/v1/expenses/summary"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusForbidden {
			t.Fatalf("%s %s: expected 403, got %d", tc.method, tc.path, resp.Code)
		}
	}
}

func TestAuthMiddleware_DriverMayConfirm(t *testing.T) {
	secret := []byte("test-secret")
	token := mustToken(t, secret, "company-a", "driver", []string{"contract-1"})
	mw := NewMiddleware(secret, NewDefaultPolicy(nil, nil))

	var confirming bool
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		confirming = IsConfirmingDriver(r.Context(), "contract-1")
		if CompanyIDFromContext(r.Context()) != "company-a" {
			t.Fatalf("expected company-a in context")
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/settlements/s-1/confirm", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !confirming {
		t.Fatalf("expected driver to be confirming for own contract")
	}
}

func TestAuthMiddleware_DriverTokenWithoutContracts(t *testing.T) {
	secret := []byte("test-secret")
	token := mustToken(t, secret, "company-a", "driver", nil)
	mw := NewMiddleware(secret, NewDefaultPolicy(nil, nil))
	handler := mw.Wrap(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/settlements", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAuthMiddleware_ManagerCreatesSettlement(t *testing.T) {
	secret := []byte("test-secret")
	token := mustToken(t, secret, "company-a", "manager", nil)
	mw := NewMiddleware(secret, NewDefaultPolicy(nil, nil))

	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IsConfirmingDriver(r.Context(), "contract-1") {
			t.Fatalf("manager must never count as confirming driver")
		}
		if !CanAccessContract(r.Context(), "contract-9") {
			t.Fatalf("manager should access any contract")
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/settlements", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestIdentityHelpers(t *testing.T) {
	ctx := WithIdentity(context.Background(), Identity{
		CompanyID:   "company-a",
		Role:        RoleDriver,
		Subject:     "driver-7",
		ContractIDs: []string{"contract-1"},
	})
	if !CanAccessContract(ctx, "contract-1") || CanAccessContract(ctx, "contract-2") {
		t.Fatalf("driver contract scoping broken")
	}
	if IsConfirmingDriver(ctx, "contract-2") {
		t.Fatalf("driver must not confirm foreign contract")
	}
	if err := EnsureCompany(ctx, "company-b"); err != ErrCompanyMismatch {
		t.Fatalf("expected company mismatch, got %v", err)
	}
	if err := EnsureCompany(ctx, "company-a"); err != nil {
		t.Fatalf("expected same company ok, got %v", err)
	}
	if IsConfirmingDriver(context.Background(), "contract-1") {
		t.Fatalf("anonymous caller must not confirm")
	}
}

func TestWebhookAuthMiddleware(t *testing.T) {
	secret := []byte("uber-secret")
	now := time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)
	mw := NewWebhookAuthMiddleware(map[string][]byte{"uber": secret}, 5*time.Minute)
	mw.now = func() time.Time { return now }

	var platform string
	handler := mw.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		platform = PlatformFromContext(r.Context())
		w.WriteHeader(http.StatusAccepted)
	}))

	body := `{"contract_id":"contract-1"}`
	ts := strconv.FormatInt(now.Unix(), 10)

	cases := []struct {
		name      string
		platform  string
		timestamp string
		signature string
		want      int
	}{
		{"valid", "uber", ts, ComputeWebhookSignature(secret, ts, []byte(body)), http.StatusAccepted},
		{"unknown platform", "bolt", ts, ComputeWebhookSignature(secret, ts, []byte(body)), http.StatusUnauthorized},
		{"bad signature", "uber", ts, "deadbeef", http.StatusUnauthorized},
		{"expired", "uber", strconv.FormatInt(now.Add(-time.Hour).Unix(), 10), ComputeWebhookSignature(secret, strconv.FormatInt(now.Add(-time.Hour).Unix(), 10), []byte(body)), http.StatusUnauthorized},
		{"missing", "uber", "", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			platform = ""
			req := httptest.NewRequest(http.MethodPost, "/webhooks/earnings", strings.NewReader(body))
			req.Header.Set("X-Platform-Name", tc.platform)
			req.Header.Set("X-Platform-Timestamp", tc.timestamp)
			req.Header.Set("X-Platform-Signature", tc.signature)
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, req)
			if resp.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, resp.Code)
			}
			if tc.want == http.StatusAccepted && platform != "uber" {
				t.Fatalf("expected platform in context, got %q", platform)
			}
		})
	}
}

func mustToken(t *testing.T, secret []byte, companyID, role string, contracts []string) string {
	t.Helper()
	claims := Claims{
		CompanyID:   companyID,
		Role:        role,
		ContractIDs: contracts,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
