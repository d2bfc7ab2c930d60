package ddl

import (
	"context"
	"fmt"
	"log"

	"sqlite-init/internal/dberr"
	"sqlite-init/internal/dialect"
	"sqlite-init/internal/gateway"
	"sqlite-init/internal/schema"
)

// ColumnErrorPolicy decides what a failed ADD COLUMN does to the run.
type ColumnErrorPolicy int

const (
	// ColumnErrorsAbort returns the failure and aborts the sync.
	ColumnErrorsAbort ColumnErrorPolicy = iota
	// ColumnErrorsLog logs the failure and carries on with the next column.
	ColumnErrorsLog
)

// ParseColumnErrorPolicy reads "abort" or "log".
func ParseColumnErrorPolicy(s string) (ColumnErrorPolicy, error) {
	switch s {
	case "", "abort":
		return ColumnErrorsAbort, nil
	case "log":
		return ColumnErrorsLog, nil
	default:
		return ColumnErrorsAbort, dberr.Errorf(dberr.KindConfiguration, "ddl.policy", "unknown column error policy %q", s)
	}
}

// SyncResult reports what SyncTable did to one table.
type SyncResult struct {
	Table         string
	AddedColumns  []string
	FailedColumns []string
	Indexes       int
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(m *Mapper) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithColumnErrorPolicy sets the ADD COLUMN failure policy.
func WithColumnErrorPolicy(p ColumnErrorPolicy) Option {
	return func(m *Mapper) { m.columnPolicy = p }
}

// Mapper materializes descriptors: create, additive column diff, indexes.
type Mapper struct {
	dialect      dialect.Dialect
	logger       *log.Logger
	columnPolicy ColumnErrorPolicy
}

// NewMapper returns a Mapper for d.
func NewMapper(d dialect.Dialect, opts ...Option) *Mapper {
	m := &Mapper{dialect: d, logger: log.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SyncTable creates the table if needed, adds missing columns and creates
// its indexes. The column diff always runs after CREATE TABLE IF NOT EXISTS;
// the affected-row count of the create is never consulted.
func (m *Mapper) SyncTable(ctx context.Context, ex gateway.Executor, d *schema.EntityDescriptor) (SyncResult, error) {
	res := SyncResult{Table: d.TableName}

	if _, err := ex.Exec(ctx, CreateTableStatement(d)); err != nil {
		return res, fmt.Errorf("create table %s: %w", d.TableName, err)
	}

	if err := m.migrateColumns(ctx, ex, d, &res); err != nil {
		return res, err
	}

	for _, stmt := range IndexStatements(d) {
		if _, err := ex.Exec(ctx, stmt); err != nil {
			return res, fmt.Errorf("create index on %s: %w", d.TableName, err)
		}
		res.Indexes++
	}
	return res, nil
}

func (m *Mapper) migrateColumns(ctx context.Context, ex gateway.Executor, d *schema.EntityDescriptor, res *SyncResult) error {
	live, err := schema.Analyze(ctx, ex, m.dialect, d.TableName)
	if err != nil {
		return m.columnFailure(d.TableName, "", err, res)
	}

	for _, c := range MissingColumns(d, live) {
		_, err := ex.Exec(ctx, AddColumnStatement(d.TableName, c))
		if err != nil && !m.dialect.IsAlreadyExistsError(err) {
			if ferr := m.columnFailure(d.TableName, c.Name, err, res); ferr != nil {
				return ferr
			}
			continue
		}
		res.AddedColumns = append(res.AddedColumns, c.Name)
	}
	return nil
}

func (m *Mapper) columnFailure(table, column string, err error, res *SyncResult) error {
	cerr := dberr.E(dberr.KindColumnMigration, "ddl.migrate_columns", fmt.Errorf("table %s column %q: %w", table, column, err))
	if m.columnPolicy == ColumnErrorsAbort {
		return cerr
	}
	m.logger.Printf("ddl: skipping failed column migration: %v", cerr)
	if column != "" {
		res.FailedColumns = append(res.FailedColumns, column)
	}
	return nil
}

// SyncAll runs SyncTable for every descriptor in order.
func (m *Mapper) SyncAll(ctx context.Context, ex gateway.Executor, descriptors []*schema.EntityDescriptor) ([]SyncResult, error) {
	results := make([]SyncResult, 0, len(descriptors))
	for _, d := range descriptors {
		res, err := m.SyncTable(ctx, ex, d)
		results = append(results, res)
		if err != nil {
			return results, err
		}
		if len(res.AddedColumns) > 0 {
			m.logger.Printf("ddl: %s: added columns %v", d.TableName, res.AddedColumns)
		}
	}
	return results, nil
}

// Plan returns the statements SyncTable would issue, without executing any.
// A missing table plans its CREATE; an existing one plans only the column diff.
func (m *Mapper) Plan(ctx context.Context, ex gateway.Executor, d *schema.EntityDescriptor) ([]string, error) {
	live, err := schema.Analyze(ctx, ex, m.dialect, d.TableName)
	if err != nil {
		return nil, err
	}
	var stmts []string
	if !live.Exists() {
		stmts = append(stmts, CreateTableStatement(d))
	} else {
		stmts = append(stmts, AlterAddColumnStatements(d, live)...)
	}
	return append(stmts, IndexStatements(d)...), nil
}

// DropIndexIfExists drops an index by name. Index changes are never
// migrated automatically; upgrade hooks call this before recreating one.
func DropIndexIfExists(ctx context.Context, ex gateway.Executor, name string) (int64, error) {
	if name == "" {
		return 0, nil
	}
	return ex.Exec(ctx, DropIndexStatement(name))
}
