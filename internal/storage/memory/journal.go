package memory

import (
	"context"
	"sync"
)

type journalKey struct{}

// journal collects undo steps for the writes made inside one transaction.
type journal struct {
	mu   sync.Mutex
	undo []func()
}

// Transactor gives in-memory stores all-or-nothing semantics: stores record
// an undo step for each write and a failed fn replays them in reverse.
type Transactor struct{}

// NewTransactor constructs a Transactor.
func NewTransactor() *Transactor { return &Transactor{} }

// WithinTx runs fn and rolls back recorded writes when it fails.
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(journalKey{}).(*journal); ok {
		return fn(ctx)
	}
	j := &journal{}
	if err := fn(context.WithValue(ctx, journalKey{}, j)); err != nil {
		j.rollback()
		return err
	}
	return nil
}

// RecordUndo registers an undo step when ctx carries a transaction.
func RecordUndo(ctx context.Context, undo func()) {
	j, ok := ctx.Value(journalKey{}).(*journal)
	if !ok || undo == nil {
		return
	}
	j.mu.Lock()
	j.undo = append(j.undo, undo)
	j.mu.Unlock()
}

func (j *journal) rollback() {
	j.mu.Lock()
	steps := j.undo
	j.undo = nil
	j.mu.Unlock()
	for i := len(steps) - 1; i >= 0; i-- {
		steps[i]()
	}
}
