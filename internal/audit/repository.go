package audit

import (
	"context"
	"database/sql"
	"errors"
	"time"

	pgstore "fleet-settlement/internal/storage/postgres"
)

// Repository writes audit logs to Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs an audit repository.
func NewRepository(db *sql.DB) *Repository {
	if db == nil {
		return nil
	}
	return &Repository{db: db}
}

// Log writes an audit entry.
func (r *Repository) Log(ctx context.Context, entry Entry) error {
	if r == nil || r.db == nil {
		return errors.New("audit repo: nil db")
	}
	entry = normalize(entry, time.Now())

	var metadata any
	if len(entry.Metadata) > 0 {
		metadata = []byte(entry.Metadata)
	}
	_, err := pgstore.Conn(ctx, r.db).ExecContext(ctx, `
INSERT INTO audit_logs (
	id, company_id, actor, role, action, resource_type, resource_id, contract_id,
	metadata, payload_digest, ip, user_agent, created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
)`, entry.ID, entry.CompanyID, entry.Actor, entry.Role, entry.Action, entry.ResourceType, entry.ResourceID, entry.ContractID,
		metadata, entry.PayloadDigest, entry.IP, entry.UserAgent, entry.CreatedAt)
	return err
}
