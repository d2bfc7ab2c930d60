package gateway

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"sqlite-init/internal/dberr"
)

// ErrTxDone is returned when a finished transaction is used.
var ErrTxDone = dberr.E(dberr.KindExecution, "gateway.tx", sql.ErrTxDone)

// Tx is an open transaction and the holder of the gateway's execution lock.
// Only the handle returned by BeginTransaction can release that lock, and it
// does so at most once.
type Tx struct {
	g  *Gateway
	tx *sql.Tx

	mu   sync.Mutex
	done bool
}

func (t *Tx) isDone() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

func (t *Tx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	if t.isDone() {
		return -1, ErrTxDone
	}
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return -1, execError("tx.execute", query, err)
	}
	return rowsAffected(res), nil
}

func (t *Tx) Scalar(ctx context.Context, query string, args ...any) (any, error) {
	if t.isDone() {
		return nil, ErrTxDone
	}
	return scalar(t.tx.QueryRowContext(ctx, query, args...), query)
}

func (t *Tx) Query(ctx context.Context, query string, args ...any) (*Rows, error) {
	if t.isDone() {
		return nil, ErrTxDone
	}
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, execError("tx.reader", query, err)
	}
	return newRows(rows, nil), nil
}

// Commit commits and releases the execution lock and the connection.
func (t *Tx) Commit() error {
	if !t.markDone() {
		return ErrTxDone
	}
	defer t.release()

	if err := t.tx.Commit(); err != nil {
		return dberr.E(dberr.KindExecution, "tx.commit", fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// Rollback aborts the transaction. The execution lock is released even when
// the driver rollback fails. Rolling back a finished transaction is a no-op.
func (t *Tx) Rollback() error {
	if !t.markDone() {
		return nil
	}
	defer t.release()

	if err := t.tx.Rollback(); err != nil {
		t.g.logger.Printf("gateway: rollback failed: %v", err)
		return dberr.E(dberr.KindExecution, "tx.rollback", fmt.Errorf("rollback transaction: %w", err))
	}
	return nil
}

// markDone flips the handle to finished and reports whether this call did it.
func (t *Tx) markDone() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

func (t *Tx) release() {
	g := t.g
	g.stateMu.Lock()
	if g.active == t {
		g.active = nil
	}
	g.stateMu.Unlock()

	if err := g.closeConnLocked(); err != nil {
		g.logger.Printf("gateway: close connection after transaction: %v", err)
	}
	g.execMu.Unlock()
}
