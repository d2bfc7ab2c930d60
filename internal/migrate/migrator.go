package migrate

import (
	"context"
	"fmt"
	"log"

	"sqlite-init/internal/dberr"
	"sqlite-init/internal/ddl"
	"sqlite-init/internal/dialect"
	"sqlite-init/internal/gateway"
	"sqlite-init/internal/schema"
)

// Option configures a Migrator.
type Option func(*Migrator)

// WithLogger sets the logger shared with the gateway and mapper.
func WithLogger(l *log.Logger) Option {
	return func(m *Migrator) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithDialect overrides the SQL dialect.
func WithDialect(d dialect.Dialect) Option {
	return func(m *Migrator) {
		if d != nil {
			m.dialect = d
		}
	}
}

// WithRegistry shares a descriptor registry with other components.
func WithRegistry(r *schema.Registry) Option {
	return func(m *Migrator) {
		if r != nil {
			m.registry = r
		}
	}
}

// WithColumnErrorPolicy sets how failed ADD COLUMN statements are handled.
func WithColumnErrorPolicy(p ddl.ColumnErrorPolicy) Option {
	return func(m *Migrator) { m.columnPolicy = p }
}

// WithConnectionString overrides the initializer's connection string.
func WithConnectionString(dsn string) Option {
	return func(m *Migrator) { m.dsn = dsn }
}

// Migrator owns the descriptor registry, the registered entity order and the
// connection used by one migration run.
type Migrator struct {
	hooks        Initializer
	dialect      dialect.Dialect
	registry     *schema.Registry
	logger       *log.Logger
	columnPolicy ddl.ColumnErrorPolicy
	dsn          string
	target       int

	descriptors []*schema.EntityDescriptor
}

// New validates the initializer and returns a Migrator for it.
func New(in Initializer, opts ...Option) (*Migrator, error) {
	if in == nil {
		return nil, dberr.Errorf(dberr.KindConfiguration, "migrate.new", "initializer is required")
	}
	m := &Migrator{
		hooks:   in,
		dialect: &dialect.SQLiteDialect{},
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = schema.NewRegistry(schema.Options{})
	}
	if m.dsn == "" {
		m.dsn = in.DefaultConnectionString()
	}
	if m.dsn == "" {
		return nil, dberr.Errorf(dberr.KindConfiguration, "migrate.new", "connection string is required")
	}
	m.target = in.NewVersion()
	if m.target <= 0 {
		return nil, dberr.Errorf(dberr.KindConfiguration, "migrate.new", "target version must be positive, got %d", m.target)
	}
	return m, nil
}

// Register describes entities and adds them to the sync set in order.
// Mapping errors surface here, before any statement runs. Registering the
// same type twice keeps its first position.
func (m *Migrator) Register(entities ...any) error {
	for _, e := range entities {
		d, err := m.registry.Describe(e)
		if err != nil {
			return err
		}
		if m.registered(d) {
			continue
		}
		m.descriptors = append(m.descriptors, d)
	}
	return nil
}

func (m *Migrator) registered(d *schema.EntityDescriptor) bool {
	for _, have := range m.descriptors {
		if have == d {
			return true
		}
	}
	return false
}

// Descriptors returns the registered descriptors in registration order.
func (m *Migrator) Descriptors() []*schema.EntityDescriptor {
	out := make([]*schema.EntityDescriptor, len(m.descriptors))
	copy(out, m.descriptors)
	return out
}

// Registry returns the descriptor registry.
func (m *Migrator) Registry() *schema.Registry {
	return m.registry
}

// Dialect returns the SQL dialect.
func (m *Migrator) Dialect() dialect.Dialect {
	return m.dialect
}

// ConnectionString returns the connection string runs will open.
func (m *Migrator) ConnectionString() string {
	return m.dsn
}

// Target returns the version runs migrate to.
func (m *Migrator) Target() int {
	return m.target
}

// Mapper returns a schema mapper configured like the one Run uses.
func (m *Migrator) Mapper() *ddl.Mapper {
	return ddl.NewMapper(m.dialect, ddl.WithLogger(m.logger), ddl.WithColumnErrorPolicy(m.columnPolicy))
}

// Open opens a gateway on the migrator's connection string.
func (m *Migrator) Open() (*gateway.Gateway, error) {
	return gateway.Open(m.dialect.Driver(), m.dsn, gateway.WithLogger(m.logger))
}

// Run performs one migration. The legacy hook always runs first. A stored
// version equal to the target is a no-op and a newer one is a downgrade
// error. Otherwise table sync, the branch hook and the version write share
// one transaction that is rolled back on any failure.
func (m *Migrator) Run(ctx context.Context) (Outcome, error) {
	out := Outcome{Branch: BranchNoOp, From: -1, To: m.target}

	if err := m.hooks.OnDoLegacy(ctx); err != nil {
		return out, dberr.E(dberr.KindMigration, "migrate.legacy", fmt.Errorf("legacy hook: %w", err))
	}

	g, err := m.Open()
	if err != nil {
		return out, err
	}
	defer func() {
		if cerr := g.Close(); cerr != nil {
			m.logger.Printf("migrate: close gateway: %v", cerr)
		}
	}()

	stored, err := ReadVersion(ctx, g.With(gateway.KeepOpen), m.dialect)
	if err != nil {
		return out, err
	}
	out.From = stored

	branch, err := Decide(stored, m.target)
	if err != nil {
		return out, err
	}
	if branch == BranchNoOp {
		m.logger.Printf("migrate: database is at version %d, nothing to do", stored)
		return out, nil
	}

	tx, err := g.BeginTransaction(ctx)
	if err != nil {
		return out, dberr.E(dberr.KindMigration, "migrate.begin", err)
	}

	if err := m.apply(ctx, tx, branch, stored); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			m.logger.Printf("migrate: rollback after failed %s: %v", branch, rerr)
		}
		return out, dberr.E(dberr.KindMigration, "migrate.run", fmt.Errorf("%s from version %d to %d: %w", branch, stored, m.target, err))
	}
	if err := tx.Commit(); err != nil {
		return out, dberr.E(dberr.KindMigration, "migrate.commit", err)
	}

	out.Branch = branch
	m.logger.Printf("migrate: %s complete, version %d -> %d", branch, stored, m.target)
	return out, nil
}

func (m *Migrator) apply(ctx context.Context, tx *gateway.Tx, branch Branch, stored int) error {
	if _, err := m.Mapper().SyncAll(ctx, tx, m.descriptors); err != nil {
		return err
	}

	switch branch {
	case BranchCreate:
		if err := m.hooks.OnCreate(ctx, tx, stored); err != nil {
			return fmt.Errorf("create hook: %w", err)
		}
	case BranchUpgrade:
		if err := m.hooks.OnUpgrade(ctx, tx, stored, m.target); err != nil {
			return fmt.Errorf("upgrade hook: %w", err)
		}
	}
	return WriteVersion(ctx, tx, m.dialect, m.target)
}

// Plan returns the statements a run would issue for each registered table,
// keyed by table name, without changing the database.
func (m *Migrator) Plan(ctx context.Context) (map[string][]string, error) {
	g, err := m.Open()
	if err != nil {
		return nil, err
	}
	defer g.Close()

	ex := g.With(gateway.KeepOpen)
	mapper := m.Mapper()
	plan := make(map[string][]string, len(m.descriptors))
	for _, d := range m.descriptors {
		stmts, err := mapper.Plan(ctx, ex, d)
		if err != nil {
			return nil, err
		}
		plan[d.TableName] = stmts
	}
	return plan, nil
}

// TryInitialize registers entities and runs one migration for in.
func TryInitialize(ctx context.Context, in Initializer, entities []any, opts ...Option) (Outcome, error) {
	m, err := New(in, opts...)
	if err != nil {
		return Outcome{}, err
	}
	if err := m.Register(entities...); err != nil {
		return Outcome{To: m.target}, err
	}
	return m.Run(ctx)
}
