package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrStorageFailure marks errors surfaced by the persistence layer.
var ErrStorageFailure = errors.New("storage: failure")

// Error wraps a persistence error without interpreting it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is reports ErrStorageFailure so callers can match the category.
func (e *Error) Is(target error) bool { return target == ErrStorageFailure }

// Wrap tags err as a storage failure. Nil stays nil and already wrapped
// errors are returned unchanged.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return err
	}
	return &Error{Op: op, Err: err}
}

// Transactor runs fn so that every store call made with the supplied context
// commits or rolls back together.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
