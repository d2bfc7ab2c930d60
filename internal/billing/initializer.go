package billing

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"sqlite-init/internal/ddl"
	"sqlite-init/internal/dialect"
	"sqlite-init/internal/engine"
	"sqlite-init/internal/gateway"
	"sqlite-init/internal/migrate"
	"sqlite-init/internal/schema"
)

var _ migrate.Initializer = (*Initializer)(nil)

// Schema versions. Each upgrade step applies to databases older than its version.
const (
	VersionInitial   = 1
	VersionBillLines = 512
	VersionCurrent   = 1024
)

// RetiredIndexes are indexes older releases created and the current one no longer declares.
var RetiredIndexes = []string{"idx_Bill_Type"}

// Config is what the initializer needs to know about its database.
type Config struct {
	// DSN is handed to the driver as-is.
	DSN string
	// Path is the database file. Used to relocate a legacy file.
	Path string
	// LegacyPath is where older releases kept the database.
	LegacyPath string

	TargetVersion   int
	SeedCount       int
	DateTimeAsTicks bool

	// Progress, if set, is called once per seeded row.
	Progress func()
}

// Initializer creates and upgrades the billing database.
type Initializer struct {
	cfg      Config
	dialect  dialect.Dialect
	registry *schema.Registry
	logger   *log.Logger
}

// NewInitializer returns an initializer for cfg. A zero TargetVersion means VersionCurrent.
func NewInitializer(cfg Config, logger *log.Logger) *Initializer {
	if cfg.TargetVersion == 0 {
		cfg.TargetVersion = VersionCurrent
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Initializer{
		cfg:      cfg,
		dialect:  &dialect.SQLiteDialect{},
		registry: schema.NewRegistry(schema.Options{DateTimeAsTicks: cfg.DateTimeAsTicks}),
		logger:   logger,
	}
}

// Registry returns the descriptor registry the initializer seeds with.
// The migrator must share it so both see the same descriptors.
func (i *Initializer) Registry() *schema.Registry {
	return i.registry
}

func (i *Initializer) DefaultConnectionString() string {
	return i.cfg.DSN
}

func (i *Initializer) NewVersion() int {
	return i.cfg.TargetVersion
}

// OnDoLegacy moves a database left at the legacy location into place, as
// long as it opens as a database and nothing exists at the current path yet.
func (i *Initializer) OnDoLegacy(ctx context.Context) error {
	if i.cfg.LegacyPath == "" || i.cfg.Path == "" {
		return nil
	}
	if _, err := os.Stat(i.cfg.Path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", i.cfg.Path, err)
	}
	if _, err := os.Stat(i.cfg.LegacyPath); errors.Is(err, fs.ErrNotExist) {
		return nil
	} else if err != nil {
		return fmt.Errorf("stat legacy %s: %w", i.cfg.LegacyPath, err)
	}

	if !i.legacyReadable(ctx) {
		i.logger.Printf("billing: legacy database %s is not readable, leaving it in place", i.cfg.LegacyPath)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(i.cfg.Path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(i.cfg.Path), err)
	}
	if err := os.Rename(i.cfg.LegacyPath, i.cfg.Path); err != nil {
		return fmt.Errorf("move legacy database: %w", err)
	}
	i.logger.Printf("billing: moved legacy database %s to %s", i.cfg.LegacyPath, i.cfg.Path)
	return nil
}

// legacyReadable reports whether the legacy file answers a version query.
func (i *Initializer) legacyReadable(ctx context.Context) bool {
	g, err := gateway.Open(i.dialect.Driver(), i.cfg.LegacyPath, gateway.WithLogger(i.logger))
	if err != nil {
		return false
	}
	defer g.Close()
	_, err = g.ExecuteScalar(ctx, gateway.CloseOnExit, i.dialect.UserVersionQuery())
	return err == nil
}

func (i *Initializer) descriptors() ([]*schema.EntityDescriptor, error) {
	var descs []*schema.EntityDescriptor
	for _, e := range Entities() {
		d, err := i.registry.Describe(e)
		if err != nil {
			return nil, err
		}
		descs = append(descs, d)
	}
	return descs, nil
}

// OnCreate seeds every table with SeedCount generated rows.
func (i *Initializer) OnCreate(ctx context.Context, ex gateway.Executor, currentVersion int) error {
	if i.cfg.SeedCount <= 0 {
		return nil
	}
	descs, err := i.descriptors()
	if err != nil {
		return err
	}
	results, err := engine.Pump(ctx, ex, i.dialect, descs, i.cfg.SeedCount, i.cfg.Progress,
		engine.WithLogger(i.logger), engine.WithDateTimeAsTicks(i.cfg.DateTimeAsTicks))
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	for _, r := range results {
		if r.Status == "ERROR" {
			return fmt.Errorf("seed %s: %s", r.TableName, r.ErrorMsg)
		}
		i.logger.Printf("billing: seeded %s with %d rows", r.TableName, r.Actual)
	}
	return nil
}

// OnUpgrade runs the data steps of every version between oldVersion and
// newVersion. Tables and columns are already synced when it runs.
func (i *Initializer) OnUpgrade(ctx context.Context, ex gateway.Executor, oldVersion, newVersion int) error {
	if oldVersion < VersionBillLines && newVersion >= VersionBillLines {
		n, err := ex.Exec(ctx, `INSERT INTO "t_test_bill_line" ("BillGuid", "LineNo", "Quantity", "Amount")
SELECT b."BillGuid", 1, 1, b."DiscountPayment" FROM "t_test_bill" b
WHERE NOT EXISTS (SELECT 1 FROM "t_test_bill_line" l WHERE l."BillGuid" = b."BillGuid")`)
		if err != nil {
			return fmt.Errorf("backfill bill lines: %w", err)
		}
		i.logger.Printf("billing: backfilled %d bill lines", n)
	}

	if oldVersion < VersionCurrent && newVersion >= VersionCurrent {
		for _, name := range RetiredIndexes {
			if _, err := ddl.DropIndexIfExists(ctx, ex, name); err != nil {
				return fmt.Errorf("drop retired index %s: %w", name, err)
			}
		}
		if _, err := ex.Exec(ctx, `UPDATE "t_test_bill" SET "State" = 0 WHERE "State" < 0`); err != nil {
			return fmt.Errorf("normalize bill state: %w", err)
		}
	}
	return nil
}
