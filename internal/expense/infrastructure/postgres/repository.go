package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	expense "fleet-settlement/internal/expense/domain"
	pgstore "fleet-settlement/internal/storage/postgres"
)

const expenseColumns = `id, company_id, car_id, expense_type, expense_date,
	net_amount, vat_amount, gross_amount, description, created_at`

// ExpenseRepository persists expenses in Postgres.
type ExpenseRepository struct {
	db *sql.DB
}

// NewExpenseRepository constructs a repository.
func NewExpenseRepository(db *sql.DB) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

// Insert stores an expense.
func (r *ExpenseRepository) Insert(ctx context.Context, record expense.Record) error {
	if r == nil || r.db == nil {
		return errors.New("expense repo: nil db")
	}
	_, err := pgstore.Conn(ctx, r.db).ExecContext(ctx, `
INSERT INTO expenses (`+expenseColumns+`)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10)`,
		record.ID, record.CompanyID, record.CarID, string(record.Type), record.Date,
		record.NetAmount, record.VATAmount, record.GrossAmount, record.Description, record.CreatedAt,
	)
	return err
}

// Get loads an expense by id.
func (r *ExpenseRepository) Get(ctx context.Context, id string) (*expense.Record, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("expense repo: nil db")
	}
	row := pgstore.Conn(ctx, r.db).QueryRowContext(ctx, `
SELECT `+expenseColumns+`
FROM expenses
WHERE id = $1`, id)
	record, err := scanExpense(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// List returns expenses of a company with expense_date in [From, To].
func (r *ExpenseRepository) List(ctx context.Context, filter expense.Filter) ([]expense.Record, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("expense repo: nil db")
	}
	rows, err := pgstore.Conn(ctx, r.db).QueryContext(ctx, `
SELECT `+expenseColumns+`
FROM expenses
WHERE company_id = $1
	AND ($2 = '' OR car_id = $2)
	AND expense_date >= $3::date
	AND expense_date <= $4::date
ORDER BY expense_date ASC, id ASC`,
		filter.CompanyID, filter.CarID, filter.From.UTC().Format(time.DateOnly), filter.To.UTC().Format(time.DateOnly))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]expense.Record, 0)
	for rows.Next() {
		record, err := scanExpense(rows)
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

func scanExpense(row rowScanner) (expense.Record, error) {
	var record expense.Record
	var carID sql.NullString
	var typ string
	err := row.Scan(&record.ID, &record.CompanyID, &carID, &typ, &record.Date,
		&record.NetAmount, &record.VATAmount, &record.GrossAmount, &record.Description, &record.CreatedAt)
	if err != nil {
		return expense.Record{}, err
	}
	record.CarID = carID.String
	record.Type = expense.Type(typ)
	record.Date = record.Date.UTC()
	record.CreatedAt = record.CreatedAt.UTC()
	return record, nil
}

// CarDirectory reads car names from the cars table.
type CarDirectory struct {
	db *sql.DB
}

// NewCarDirectory constructs a directory.
func NewCarDirectory(db *sql.DB) *CarDirectory {
	return &CarDirectory{db: db}
}

// CarName returns the car's display name, falling back to its id.
func (d *CarDirectory) CarName(ctx context.Context, companyID, carID string) (string, error) {
	if d == nil || d.db == nil {
		return "", errors.New("car directory: nil db")
	}
	var name string
	err := d.db.QueryRowContext(ctx, `
SELECT name
FROM cars
WHERE company_id = $1 AND id = $2`, companyID, carID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return carID, nil
	}
	if err != nil {
		return "", err
	}
	return name, nil
}
