package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"fleet-settlement/internal/auth"
)

// Actions recorded by the HTTP layer.
const (
	ActionEarningIngest       = "earning.ingest"
	ActionSettlementCreate    = "settlement.create"
	ActionSettlementConfirm   = "settlement.confirm"
	ActionSettlementDispute   = "settlement.dispute"
	ActionSettlementRecompute = "settlement.recompute"
	ActionSettlementAttach    = "settlement.attach_late"
	ActionExpenseRecord       = "expense.record"
	ActionExport              = "report.export"
)

// Entry represents an audit log entry.
type Entry struct {
	ID            string
	CompanyID     string
	Actor         string
	Role          string
	Action        string
	ResourceType  string
	ResourceID    string
	ContractID    string
	Metadata      json.RawMessage
	PayloadDigest string
	IP            string
	UserAgent     string
	CreatedAt     time.Time
}

// Logger writes audit entries.
type Logger interface {
	Log(ctx context.Context, entry Entry) error
}

// NewID generates a random audit id.
func NewID() string {
	return "audit-" + uuid.NewString()
}

// DigestJSON computes a SHA256 hex digest for metadata payloads.
func DigestJSON(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FromRequest builds an entry for the authenticated caller of r.
func FromRequest(r *http.Request, action, resourceType, resourceID, contractID string, metadata any) Entry {
	identity, _ := auth.IdentityFromContext(r.Context())
	entry := Entry{
		CompanyID:    identity.CompanyID,
		Actor:        identity.Subject,
		Role:         string(identity.Role),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		ContractID:   contractID,
		IP:           ClientIP(r),
		UserAgent:    r.UserAgent(),
	}
	if metadata != nil {
		if raw, err := json.Marshal(metadata); err == nil {
			entry.Metadata = raw
		}
	}
	return entry
}

// ClientIP extracts client ip from common headers or RemoteAddr.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return strings.TrimSpace(realIP)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

func normalize(entry Entry, now time.Time) Entry {
	if entry.ID == "" {
		entry.ID = NewID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now.UTC()
	}
	if entry.PayloadDigest == "" {
		entry.PayloadDigest = DigestJSON(entry.Metadata)
	}
	return entry
}

// MemoryLog keeps audit entries in memory.
type MemoryLog struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemoryLog constructs an in-memory audit log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

// Log appends an entry.
func (m *MemoryLog) Log(ctx context.Context, entry Entry) error {
	_ = ctx
	m.mu.Lock()
	m.entries = append(m.entries, normalize(entry, time.Now()))
	m.mu.Unlock()
	return nil
}

// Entries returns a copy of the recorded entries.
func (m *MemoryLog) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}
