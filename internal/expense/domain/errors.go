package expense

import "errors"

var (
	// ErrUnknownType is returned for an expense type outside the closed set.
	ErrUnknownType = errors.New("expense: unknown type")
	// ErrEmptyCompanyID is returned when the company is missing.
	ErrEmptyCompanyID = errors.New("expense: empty company id")
	// ErrInvalidRange is returned when from is after to.
	ErrInvalidRange = errors.New("expense: invalid date range")
	// ErrMissingDate is returned when the expense date is missing.
	ErrMissingDate = errors.New("expense: missing date")
	// ErrExpenseNotFound is returned when no expense has the id.
	ErrExpenseNotFound = errors.New("expense: not found")
)
