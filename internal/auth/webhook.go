package auth

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	headerPlatform  = "X-Platform-Name"
	headerTimestamp = "X-Platform-Timestamp"
	headerSignature = "X-Platform-Signature"

	maxWebhookBody = 1 << 20
)

const contextKeyPlatform contextKey = "auth.platform"

// WebhookAuthMiddleware verifies HMAC-signed pushes from ride platforms.
// Each platform signs "<timestamp>\n<body>" with its own shared secret.
type WebhookAuthMiddleware struct {
	Secrets map[string][]byte
	MaxSkew time.Duration
	now     func() time.Time
}

// NewWebhookAuthMiddleware constructs webhook signature middleware.
func NewWebhookAuthMiddleware(secrets map[string][]byte, maxSkew time.Duration) *WebhookAuthMiddleware {
	return &WebhookAuthMiddleware{Secrets: secrets, MaxSkew: maxSkew, now: time.Now}
}

// PlatformFromContext returns the platform whose signature was verified.
func PlatformFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	platform, _ := ctx.Value(contextKeyPlatform).(string)
	return platform
}

// Wrap enforces webhook signature validation.
func (m *WebhookAuthMiddleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		platform := strings.ToLower(strings.TrimSpace(r.Header.Get(headerPlatform)))
		secret := m.Secrets[platform]
		if len(secret) == 0 {
			http.Error(w, "webhook auth not configured", http.StatusUnauthorized)
			return
		}
		timestamp := strings.TrimSpace(r.Header.Get(headerTimestamp))
		signature := strings.TrimSpace(r.Header.Get(headerSignature))
		if timestamp == "" || signature == "" {
			http.Error(w, "missing webhook signature", http.StatusUnauthorized)
			return
		}
		ts, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			http.Error(w, "invalid webhook timestamp", http.StatusUnauthorized)
			return
		}
		now := time.Now
		if m.now != nil {
			now = m.now
		}
		skew := now().Sub(time.Unix(ts, 0))
		if skew < 0 {
			skew = -skew
		}
		if m.MaxSkew > 0 && skew > m.MaxSkew {
			http.Error(w, "webhook signature expired", http.StatusUnauthorized)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
		if err != nil {
			http.Error(w, "read body error", http.StatusBadRequest)
			return
		}
		_ = r.Body.Close()

		expected := ComputeWebhookSignature(secret, timestamp, body)
		if !hmac.Equal([]byte(strings.ToLower(signature)), []byte(expected)) {
			http.Error(w, "invalid webhook signature", http.StatusUnauthorized)
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		ctx := context.WithValue(r.Context(), contextKeyPlatform, platform)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ComputeWebhookSignature returns the hex HMAC-SHA256 a platform must send.
func ComputeWebhookSignature(secret []byte, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write([]byte(timestamp))
	_, _ = mac.Write([]byte("\n"))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
