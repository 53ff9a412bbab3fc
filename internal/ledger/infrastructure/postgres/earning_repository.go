package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	ledger "fleet-settlement/internal/ledger/domain"
	pgstore "fleet-settlement/internal/storage/postgres"
)

const uniqueViolation = "23505"

const earningColumns = `id, contract_id, company_id, platform, gross_income, btw_percentage,
	btw_amount, net_income, income_date, week_start, week_end, settlement_id, created_at`

// EarningRepository is a Postgres implementation for earnings.
type EarningRepository struct {
	db *sql.DB
	tx *pgstore.Transactor
}

// NewEarningRepository constructs a repository.
func NewEarningRepository(db *sql.DB) *EarningRepository {
	return &EarningRepository{db: db, tx: pgstore.NewTransactor(db)}
}

// Insert writes a new earning; the unique index on the duplicate key
// reports repeated payments.
func (r *EarningRepository) Insert(ctx context.Context, record ledger.EarningRecord) error {
	if r == nil || r.db == nil {
		return errors.New("earning repo: nil db")
	}
	_, err := pgstore.Conn(ctx, r.db).ExecContext(ctx, `
INSERT INTO earnings (
	id, contract_id, company_id, platform, gross_income, btw_percentage,
	btw_amount, net_income, income_date, week_start, week_end, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		record.ID, record.ContractID, record.CompanyID, string(record.Platform),
		record.GrossIncome, record.BTWPercentage, record.BTWAmount, record.NetIncome,
		record.IncomeDate, record.WeekStart, record.WeekEnd, record.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ledger.ErrDuplicateEarning
		}
		return err
	}
	return nil
}

// Get loads an earning by id.
func (r *EarningRepository) Get(ctx context.Context, id string) (*ledger.EarningRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("earning repo: nil db")
	}
	row := pgstore.Conn(ctx, r.db).QueryRowContext(ctx, `
SELECT `+earningColumns+`
FROM earnings
WHERE id = $1`, id)
	record, err := scanEarning(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// ListUnsettled returns unsettled earnings for a contract inside [from, to).
func (r *EarningRepository) ListUnsettled(ctx context.Context, contractID string, from, to time.Time) ([]ledger.EarningRecord, error) {
	return r.list(ctx, `
SELECT `+earningColumns+`
FROM earnings
WHERE contract_id = $1 AND settlement_id IS NULL AND income_date >= $2 AND income_date < $3
ORDER BY income_date ASC, id ASC`, contractID, from.UTC(), to.UTC())
}

// ListBySettlement returns earnings assigned to a settlement.
func (r *EarningRepository) ListBySettlement(ctx context.Context, settlementID string) ([]ledger.EarningRecord, error) {
	return r.list(ctx, `
SELECT `+earningColumns+`
FROM earnings
WHERE settlement_id = $1
ORDER BY income_date ASC, id ASC`, settlementID)
}

// ListByContract returns all earnings for a contract inside [from, to).
func (r *EarningRepository) ListByContract(ctx context.Context, contractID string, from, to time.Time) ([]ledger.EarningRecord, error) {
	return r.list(ctx, `
SELECT `+earningColumns+`
FROM earnings
WHERE contract_id = $1 AND income_date >= $2 AND income_date < $3
ORDER BY income_date ASC, id ASC`, contractID, from.UTC(), to.UTC())
}

// AssignSettlement locks the target rows in id order and assigns them in one
// transaction.
func (r *EarningRepository) AssignSettlement(ctx context.Context, ids []string, settlementID string) error {
	if r == nil || r.db == nil {
		return errors.New("earning repo: nil db")
	}
	return r.tx.WithinTx(ctx, func(ctx context.Context) error {
		conn := pgstore.Conn(ctx, r.db)
		rows, err := conn.QueryContext(ctx, `
SELECT id, settlement_id
FROM earnings
WHERE id = ANY($1)
ORDER BY id
FOR UPDATE`, ids)
		if err != nil {
			return err
		}
		found := 0
		settled := false
		for rows.Next() {
			var id string
			var current sql.NullString
			if err := rows.Scan(&id, &current); err != nil {
				rows.Close()
				return err
			}
			found++
			if current.Valid && current.String != "" {
				settled = true
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()
		if found != len(ids) {
			return ledger.ErrEarningNotFound
		}
		if settled {
			return ledger.ErrAlreadySettled
		}
		res, err := conn.ExecContext(ctx, `
UPDATE earnings
SET settlement_id = $1
WHERE id = ANY($2) AND settlement_id IS NULL`, settlementID, ids)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if int(affected) != len(ids) {
			return ledger.ErrAlreadySettled
		}
		return nil
	})
}

// ContractsWithUnsettled lists contracts holding unsettled earnings in [from, to).
func (r *EarningRepository) ContractsWithUnsettled(ctx context.Context, from, to time.Time) ([]ledger.ContractRef, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("earning repo: nil db")
	}
	rows, err := pgstore.Conn(ctx, r.db).QueryContext(ctx, `
SELECT DISTINCT contract_id, company_id
FROM earnings
WHERE settlement_id IS NULL AND income_date >= $1 AND income_date < $2
ORDER BY contract_id ASC`, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ledger.ContractRef
	for rows.Next() {
		var ref ledger.ContractRef
		if err := rows.Scan(&ref.ContractID, &ref.CompanyID); err != nil {
			return nil, err
		}
		result = append(result, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *EarningRepository) list(ctx context.Context, query string, args ...any) ([]ledger.EarningRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("earning repo: nil db")
	}
	rows, err := pgstore.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ledger.EarningRecord
	for rows.Next() {
		record, err := scanEarning(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEarning(row rowScanner) (ledger.EarningRecord, error) {
	var record ledger.EarningRecord
	var platform string
	var settlementID sql.NullString
	err := row.Scan(
		&record.ID,
		&record.ContractID,
		&record.CompanyID,
		&platform,
		&record.GrossIncome,
		&record.BTWPercentage,
		&record.BTWAmount,
		&record.NetIncome,
		&record.IncomeDate,
		&record.WeekStart,
		&record.WeekEnd,
		&settlementID,
		&record.CreatedAt,
	)
	if err != nil {
		return ledger.EarningRecord{}, err
	}
	record.Platform = ledger.Platform(platform)
	if settlementID.Valid {
		record.SettlementID = settlementID.String
	}
	record.IncomeDate = record.IncomeDate.UTC()
	record.WeekStart = record.WeekStart.UTC()
	record.WeekEnd = record.WeekEnd.UTC()
	record.CreatedAt = record.CreatedAt.UTC()
	return record, nil
}
