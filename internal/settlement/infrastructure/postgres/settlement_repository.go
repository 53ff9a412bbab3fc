package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	settlement "fleet-settlement/internal/settlement/domain"
	pgstore "fleet-settlement/internal/storage/postgres"
)

const uniqueViolation = "23505"

const settlementColumns = `id, company_id, contract_id, period_start, period_end,
	gross_amount, btw_amount, net_income, rent_deduction, extra_costs, net_payout,
	description, status, confirmed_by_driver, confirmed_at, snapshot_hash,
	dispute_reason, disputed_at, created_at, updated_at, version`

// SettlementRepository persists settlements in Postgres.
type SettlementRepository struct {
	db *sql.DB
}

// NewSettlementRepository constructs a repository.
func NewSettlementRepository(db *sql.DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

// Create inserts a settlement; the unique (contract_id, period_start,
// period_end) index reports a second settlement for the same period.
func (r *SettlementRepository) Create(ctx context.Context, s *settlement.Settlement) error {
	if r == nil || r.db == nil {
		return errors.New("settlement repo: nil db")
	}
	if s == nil {
		return settlement.ErrNilSettlement
	}
	_, err := pgstore.Conn(ctx, r.db).ExecContext(ctx, `
INSERT INTO settlements (`+settlementColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`,
		s.ID, s.CompanyID, s.ContractID, s.PeriodStart, s.PeriodEnd,
		s.GrossAmount, s.BTWAmount, s.NetIncome, s.RentDeduction, s.ExtraCosts, s.NetPayout,
		s.Description, string(s.Status), s.ConfirmedByDriver, nullTime(s.ConfirmedAt), s.SnapshotHash,
		s.DisputeReason, nullTime(s.DisputedAt), s.CreatedAt, s.UpdatedAt, s.Version,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return settlement.ErrSettlementExists
		}
		return err
	}
	return nil
}

// Get loads a settlement by id.
func (r *SettlementRepository) Get(ctx context.Context, id string) (*settlement.Settlement, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("settlement repo: nil db")
	}
	row := pgstore.Conn(ctx, r.db).QueryRowContext(ctx, `
SELECT `+settlementColumns+`
FROM settlements
WHERE id = $1`, id)
	s, err := scanSettlement(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// Update writes the mutable columns guarded by the expected version.
func (r *SettlementRepository) Update(ctx context.Context, s *settlement.Settlement, expectedVersion int) error {
	if r == nil || r.db == nil {
		return errors.New("settlement repo: nil db")
	}
	if s == nil {
		return settlement.ErrNilSettlement
	}
	res, err := pgstore.Conn(ctx, r.db).ExecContext(ctx, `
UPDATE settlements
SET gross_amount = $1, btw_amount = $2, net_income = $3, net_payout = $4,
	status = $5, confirmed_by_driver = $6, confirmed_at = $7, snapshot_hash = $8,
	dispute_reason = $9, disputed_at = $10, updated_at = $11, version = $12
WHERE id = $13 AND version = $14`,
		s.GrossAmount, s.BTWAmount, s.NetIncome, s.NetPayout,
		string(s.Status), s.ConfirmedByDriver, nullTime(s.ConfirmedAt), s.SnapshotHash,
		s.DisputeReason, nullTime(s.DisputedAt), s.UpdatedAt, s.Version,
		s.ID, expectedVersion,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		existing, err := r.Get(ctx, s.ID)
		if err != nil {
			return err
		}
		if existing == nil {
			return settlement.ErrSettlementNotFound
		}
		return settlement.ErrVersionConflict
	}
	return nil
}

// List returns settlements matching filter ordered by period then contract.
func (r *SettlementRepository) List(ctx context.Context, filter settlement.Filter) ([]settlement.Settlement, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("settlement repo: nil db")
	}
	var where []string
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.CompanyID != "" {
		add("company_id = $%d", filter.CompanyID)
	}
	if filter.ContractID != "" {
		add("contract_id = $%d", filter.ContractID)
	}
	if len(filter.ContractIDs) > 0 {
		add("contract_id = ANY($%d)", filter.ContractIDs)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if !filter.From.IsZero() {
		add("period_end > $%d", filter.From.UTC())
	}
	if !filter.To.IsZero() {
		add("period_start < $%d", filter.To.UTC())
	}

	query := `
SELECT ` + settlementColumns + `
FROM settlements`
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY period_start ASC, contract_id ASC, id ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf("\nLIMIT $%d", len(args))
	}

	rows, err := pgstore.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []settlement.Settlement
	for rows.Next() {
		s, err := scanSettlement(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSettlement(row rowScanner) (settlement.Settlement, error) {
	var s settlement.Settlement
	var status string
	var confirmedAt, disputedAt sql.NullTime
	err := row.Scan(
		&s.ID, &s.CompanyID, &s.ContractID, &s.PeriodStart, &s.PeriodEnd,
		&s.GrossAmount, &s.BTWAmount, &s.NetIncome, &s.RentDeduction, &s.ExtraCosts, &s.NetPayout,
		&s.Description, &status, &s.ConfirmedByDriver, &confirmedAt, &s.SnapshotHash,
		&s.DisputeReason, &disputedAt, &s.CreatedAt, &s.UpdatedAt, &s.Version,
	)
	if err != nil {
		return settlement.Settlement{}, err
	}
	s.Status = settlement.Status(status)
	if confirmedAt.Valid {
		s.ConfirmedAt = confirmedAt.Time.UTC()
	}
	if disputedAt.Valid {
		s.DisputedAt = disputedAt.Time.UTC()
	}
	s.PeriodStart = s.PeriodStart.UTC()
	s.PeriodEnd = s.PeriodEnd.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}

func nullTime(t interface{ IsZero() bool }) any {
	if t.IsZero() {
		return nil
	}
	return t
}
