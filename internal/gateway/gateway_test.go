package gateway

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"sqlite-init/internal/dberr"

	_ "modernc.org/sqlite"
)

func openTestGateway(t *testing.T, path string) *Gateway {
	t.Helper()
	g, err := Open("sqlite", path)
	if err != nil {
		t.Fatalf("open gateway: %v", err)
	}
	t.Cleanup(func() {
		if err := g.Close(); err != nil {
			t.Fatalf("close gateway: %v", err)
		}
	})
	return g
}

func tempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "gateway.db")
}

func countRows(t *testing.T, ex Executor, table string) int64 {
	t.Helper()
	v, err := ex.Scalar(context.Background(), "SELECT COUNT(*) FROM "+table)
	if err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	n, ok := v.(int64)
	if !ok {
		t.Fatalf("count %s: unexpected scalar type %T", table, v)
	}
	return n
}

func mustExec(t *testing.T, ex Executor, query string, args ...any) {
	t.Helper()
	if _, err := ex.Exec(context.Background(), query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}

func TestExecuteAndScalar(t *testing.T) {
	g := openTestGateway(t, tempDBPath(t))
	ex := g.With(KeepOpen)

	mustExec(t, ex, "CREATE TABLE items(id INTEGER PRIMARY KEY, name TEXT)")
	n, err := g.Execute(context.Background(), KeepOpen, "INSERT INTO items(name) VALUES (?), (?)", "a", "b")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if n != 2 {
		t.Fatalf("affected rows = %d, want 2", n)
	}
	if got := countRows(t, ex, "items"); got != 2 {
		t.Fatalf("count = %d, want 2", got)
	}

	v, err := g.ExecuteScalar(context.Background(), KeepOpen, "SELECT name FROM items WHERE id = ?", 99)
	if err != nil {
		t.Fatalf("scalar: %v", err)
	}
	if v != nil {
		t.Fatalf("scalar with no rows = %v, want nil", v)
	}
}

func TestCloseOnExitReleasesConnection(t *testing.T) {
	g := openTestGateway(t, tempDBPath(t))

	if _, err := g.Execute(context.Background(), KeepOpen, "CREATE TABLE t(x INTEGER)"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if g.conn == nil {
		t.Fatal("KeepOpen should leave the connection open")
	}

	if _, err := g.Execute(context.Background(), CloseOnExit, "INSERT INTO t VALUES (1)"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if g.conn != nil {
		t.Fatal("CloseOnExit should release the connection")
	}

	rows, err := g.ExecuteReader(context.Background(), CloseOnExit, "SELECT x FROM t")
	if err != nil {
		t.Fatalf("reader: %v", err)
	}
	if g.conn == nil {
		t.Fatal("reader must keep the connection until closed")
	}
	if err := rows.Close(); err != nil {
		t.Fatalf("close rows: %v", err)
	}
	if g.conn != nil {
		t.Fatal("closing a CloseOnExit reader should release the connection")
	}
}

func TestExecutionErrorIsClassified(t *testing.T) {
	g := openTestGateway(t, tempDBPath(t))

	_, err := g.Execute(context.Background(), KeepOpen, "INSERT INTO missing VALUES (1)")
	if !errors.Is(err, dberr.ErrExecution) {
		t.Fatalf("expected execution error, got %v", err)
	}
	// The gateway stays usable after a failed statement.
	mustExec(t, g.With(KeepOpen), "CREATE TABLE ok(x INTEGER)")
}

func TestReaderHoldsLockUntilClosed(t *testing.T) {
	g := openTestGateway(t, tempDBPath(t))
	mustExec(t, g.With(KeepOpen), "CREATE TABLE t(x INTEGER)")

	rows, err := g.ExecuteReader(context.Background(), KeepOpen, "SELECT x FROM t")
	if err != nil {
		t.Fatalf("reader: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := g.Execute(context.Background(), KeepOpen, "INSERT INTO t VALUES (1)")
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("execute should block while a reader is open")
	case <-time.After(50 * time.Millisecond):
	}

	if err := rows.Close(); err != nil {
		t.Fatalf("close rows: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("insert after reader closed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("execute did not resume after the reader closed")
	}
}

func TestTransactionExcludesOtherCallers(t *testing.T) {
	g := openTestGateway(t, tempDBPath(t))
	mustExec(t, g.With(KeepOpen), "CREATE TABLE t(x INTEGER)")

	tx, err := g.BeginTransaction(context.Background())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	mustExec(t, tx, "INSERT INTO t VALUES (1)")

	done := make(chan error, 1)
	go func() {
		_, err := g.Execute(context.Background(), KeepOpen, "INSERT INTO t VALUES (2)")
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("execute should block while a transaction is open")
	case <-time.After(50 * time.Millisecond):
	}

	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("insert after commit: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("execute did not resume after commit")
	}

	if got := countRows(t, g.With(KeepOpen), "t"); got != 2 {
		t.Fatalf("count = %d, want 2", got)
	}
}

func TestRollbackDiscardsAndReleases(t *testing.T) {
	g := openTestGateway(t, tempDBPath(t))
	mustExec(t, g.With(KeepOpen), "CREATE TABLE t(x INTEGER)")

	tx, err := g.BeginTransaction(context.Background())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	mustExec(t, tx, "INSERT INTO t VALUES (1)")
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	if got := countRows(t, g.With(KeepOpen), "t"); got != 0 {
		t.Fatalf("count after rollback = %d, want 0", got)
	}
}

func TestFinishedTransactionGuards(t *testing.T) {
	g := openTestGateway(t, tempDBPath(t))

	tx, err := g.BeginTransaction(context.Background())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	// Neither call may release the lock a second time.
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback after commit should be a no-op, got %v", err)
	}
	if err := tx.Commit(); !errors.Is(err, ErrTxDone) {
		t.Fatalf("second commit = %v, want ErrTxDone", err)
	}
	if _, err := tx.Exec(context.Background(), "SELECT 1"); !errors.Is(err, ErrTxDone) {
		t.Fatalf("exec on finished tx = %v, want ErrTxDone", err)
	}

	// The lock is free exactly once: a new transaction can start.
	tx2, err := g.BeginTransaction(context.Background())
	if err != nil {
		t.Fatalf("begin after finished tx: %v", err)
	}
	if err := tx2.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}
}

func TestRollbackReleasesLockWhenDriverRollbackFails(t *testing.T) {
	g := openTestGateway(t, tempDBPath(t))

	ctx, cancel := context.WithCancel(context.Background())
	tx, err := g.BeginTransaction(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	// Cancelling the context makes database/sql abort the transaction on its
	// own; the explicit rollback may then report ErrTxDone.
	cancel()
	time.Sleep(20 * time.Millisecond)
	_ = tx.Rollback()

	done := make(chan error, 1)
	go func() {
		_, err := g.Execute(context.Background(), KeepOpen, "CREATE TABLE after_rollback(x INTEGER)")
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("execute after rollback: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("lock was not released by rollback")
	}
}

func TestCloseRollsBackActiveTransaction(t *testing.T) {
	path := tempDBPath(t)

	g, err := Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	mustExec(t, g.With(KeepOpen), "CREATE TABLE t(x INTEGER)")
	tx, err := g.BeginTransaction(context.Background())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	mustExec(t, tx, "INSERT INTO t VALUES (1)")
	if err := g.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := g.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, err := g.Execute(context.Background(), KeepOpen, "SELECT 1"); !errors.Is(err, dberr.ErrExecution) {
		t.Fatalf("execute on closed gateway = %v, want execution error", err)
	}

	reopened := openTestGateway(t, path)
	if got := countRows(t, reopened.With(KeepOpen), "t"); got != 0 {
		t.Fatalf("count after close = %d, want 0", got)
	}
}

func TestOpenRequiresConnectionString(t *testing.T) {
	if _, err := Open("sqlite", ""); !errors.Is(err, dberr.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
