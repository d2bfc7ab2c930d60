// Package gateway serializes statement execution against one database
// connection and owns the transaction lifecycle around it.
//
// Every call through a Gateway takes its execution lock for the duration of
// the call. BeginTransaction takes the same lock and keeps it until the
// returned Tx is committed or rolled back, so nothing else can interleave
// statements with an open transaction. Code running inside the transaction
// must execute through the Tx; calling the Gateway directly from that code
// blocks until the transaction ends.
package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"

	"sqlite-init/internal/dberr"
)

// Policy controls what happens to the connection after a call.
type Policy int

const (
	// KeepOpen leaves the connection open; the caller closes it.
	KeepOpen Policy = iota
	// CloseOnExit releases the connection once the call (or its reader) finishes.
	CloseOnExit
)

func (p Policy) String() string {
	if p == CloseOnExit {
		return "close-on-exit"
	}
	return "keep-open"
}

// Executor runs statements. Both the policy-bound Gateway view and Tx satisfy it.
type Executor interface {
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	Scalar(ctx context.Context, query string, args ...any) (any, error)
	Query(ctx context.Context, query string, args ...any) (*Rows, error)
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger used for best-effort cleanup failures.
func WithLogger(l *log.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// Gateway wraps a single live connection.
type Gateway struct {
	db     *sql.DB
	ownsDB bool
	logger *log.Logger

	// execMu is the exclusive execution lock.
	execMu sync.Mutex
	// conn is only touched while execMu is held.
	conn *sql.Conn

	stateMu sync.Mutex
	active  *Tx
	closed  bool
}

// Open opens driver/dsn and wraps it. The pool is capped at one connection.
func Open(driver, dsn string, opts ...Option) (*Gateway, error) {
	if dsn == "" {
		return nil, dberr.Errorf(dberr.KindConfiguration, "gateway.open", "connection string is required")
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, dberr.E(dberr.KindExecution, "gateway.open", fmt.Errorf("open %s db: %w", driver, err))
	}
	g := New(db, opts...)
	g.ownsDB = true
	return g, nil
}

// New wraps an existing pool. The caller keeps ownership of db.
func New(db *sql.DB, opts ...Option) *Gateway {
	db.SetMaxOpenConns(1)
	g := &Gateway{db: db, logger: log.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// DB exposes the underlying pool.
func (g *Gateway) DB() *sql.DB {
	return g.db
}

// connLocked returns the open connection, opening it if needed. execMu must be held.
func (g *Gateway) connLocked(ctx context.Context) (*sql.Conn, error) {
	g.stateMu.Lock()
	closed := g.closed
	g.stateMu.Unlock()
	if closed {
		return nil, dberr.Errorf(dberr.KindExecution, "gateway.conn", "gateway is closed")
	}
	if g.conn != nil {
		return g.conn, nil
	}
	conn, err := g.db.Conn(ctx)
	if err != nil {
		return nil, dberr.E(dberr.KindExecution, "gateway.conn", fmt.Errorf("open connection: %w", err))
	}
	g.conn = conn
	return conn, nil
}

// closeConnLocked releases the connection. execMu must be held.
func (g *Gateway) closeConnLocked() error {
	if g.conn == nil {
		return nil
	}
	err := g.conn.Close()
	g.conn = nil
	return err
}

func (g *Gateway) finishLocked(policy Policy) {
	if policy != CloseOnExit {
		return
	}
	if err := g.closeConnLocked(); err != nil {
		g.logger.Printf("gateway: close connection: %v", err)
	}
}

// Execute runs a non-query statement and returns the affected row count.
// Callers must not infer DDL outcomes from the count: drivers disagree on
// what a no-op CREATE reports.
func (g *Gateway) Execute(ctx context.Context, policy Policy, query string, args ...any) (int64, error) {
	g.execMu.Lock()
	defer g.execMu.Unlock()
	defer g.finishLocked(policy)

	conn, err := g.connLocked(ctx)
	if err != nil {
		return -1, err
	}
	res, err := conn.ExecContext(ctx, query, args...)
	if err != nil {
		return -1, execError("gateway.execute", query, err)
	}
	return rowsAffected(res), nil
}

// ExecuteScalar returns the first column of the first row, or nil when no row is produced.
func (g *Gateway) ExecuteScalar(ctx context.Context, policy Policy, query string, args ...any) (any, error) {
	g.execMu.Lock()
	defer g.execMu.Unlock()
	defer g.finishLocked(policy)

	conn, err := g.connLocked(ctx)
	if err != nil {
		return nil, err
	}
	return scalar(conn.QueryRowContext(ctx, query, args...), query)
}

// ExecuteReader runs a query. The execution lock stays held until the
// returned Rows is closed; under CloseOnExit closing the rows also releases
// the connection.
func (g *Gateway) ExecuteReader(ctx context.Context, policy Policy, query string, args ...any) (*Rows, error) {
	g.execMu.Lock()

	conn, err := g.connLocked(ctx)
	if err != nil {
		g.execMu.Unlock()
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		g.finishLocked(policy)
		g.execMu.Unlock()
		return nil, execError("gateway.reader", query, err)
	}
	return newRows(rows, func() {
		g.finishLocked(policy)
		g.execMu.Unlock()
	}), nil
}

// With returns an Executor that runs every call under policy.
func (g *Gateway) With(policy Policy) Executor {
	return &bound{g: g, policy: policy}
}

// BeginTransaction opens the connection if needed and starts a transaction.
// The execution lock is held by the returned Tx until Commit or Rollback.
func (g *Gateway) BeginTransaction(ctx context.Context) (*Tx, error) {
	g.execMu.Lock()

	conn, err := g.connLocked(ctx)
	if err != nil {
		g.execMu.Unlock()
		return nil, err
	}
	sqlTx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		g.execMu.Unlock()
		return nil, dberr.E(dberr.KindExecution, "gateway.begin", fmt.Errorf("begin transaction: %w", err))
	}

	tx := &Tx{g: g, tx: sqlTx}
	g.stateMu.Lock()
	g.active = tx
	g.stateMu.Unlock()
	return tx, nil
}

// Close rolls back any open transaction, then closes the connection and,
// when the gateway opened it, the pool.
func (g *Gateway) Close() error {
	g.stateMu.Lock()
	if g.closed {
		g.stateMu.Unlock()
		return nil
	}
	active := g.active
	g.stateMu.Unlock()

	if active != nil {
		if err := active.Rollback(); err != nil {
			g.logger.Printf("gateway: rollback on close: %v", err)
		}
	}

	g.execMu.Lock()
	defer g.execMu.Unlock()

	g.stateMu.Lock()
	g.closed = true
	g.stateMu.Unlock()

	var errs []error
	if err := g.closeConnLocked(); err != nil {
		errs = append(errs, fmt.Errorf("close connection: %w", err))
	}
	if g.ownsDB {
		if err := g.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close db: %w", err))
		}
	}
	return errors.Join(errs...)
}

type bound struct {
	g      *Gateway
	policy Policy
}

func (b *bound) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return b.g.Execute(ctx, b.policy, query, args...)
}

func (b *bound) Scalar(ctx context.Context, query string, args ...any) (any, error) {
	return b.g.ExecuteScalar(ctx, b.policy, query, args...)
}

func (b *bound) Query(ctx context.Context, query string, args ...any) (*Rows, error) {
	return b.g.ExecuteReader(ctx, b.policy, query, args...)
}

func scalar(row *sql.Row, query string) (any, error) {
	var v any
	if err := row.Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, execError("gateway.scalar", query, err)
	}
	return v, nil
}

func rowsAffected(res sql.Result) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return -1
	}
	return n
}

func execError(op, query string, err error) error {
	return dberr.E(dberr.KindExecution, op, fmt.Errorf("%s: %w", firstLine(query), err))
}

func firstLine(query string) string {
	for i, r := range query {
		if r == '\n' {
			return query[:i] + " ..."
		}
	}
	return query
}
