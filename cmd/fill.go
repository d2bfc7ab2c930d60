package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/gosuri/uiprogress"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"sqlite-init/internal/engine"
	"sqlite-init/internal/gateway"
	"sqlite-init/internal/migrate"
	"sqlite-init/internal/schema"
)

var (
	fillCount  int
	fillClean  bool
	fillDryRun bool
	fillTables []string
)

var fillCmd = &cobra.Command{
	Use:   "fill",
	Short: "Pump random rows into the tables of a migrated database",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		m, err := newMigrator(AppConfig, AppConfig.Billing(0))
		if err != nil {
			return err
		}
		d := m.Dialect()

		// Flag > Config > Default
		perTable := viper.GetInt("settings.default_count")
		if fillCount > 0 {
			perTable = fillCount
		}

		targets, err := selectTables(m.Descriptors(), fillTables)
		if err != nil {
			return err
		}

		if fillDryRun {
			log.Println("[SIMULATION] Dry-Run Mode Active: No data will be written.")
			for i, t := range targets {
				fmt.Printf("[%02d] %s (%d columns, %d indexes, key: %s)\n",
					i+1, t.TableName, len(t.Columns), len(t.Indexes()), keyNames(t))
			}
			return nil
		}

		g, err := m.Open()
		if err != nil {
			return err
		}
		defer g.Close()
		fmt.Printf("🗄  Database: %s\n", AppConfig.Database.FilePath())

		pending, err := migrate.NeedUpgrade(ctx, g.With(gateway.KeepOpen), d, m.Target())
		if err != nil {
			return err
		}
		if pending {
			return fmt.Errorf("database is below version %d: run migrate first", m.Target())
		}

		if fillClean {
			if err := cleanDatabase(ctx, g, d, targets); err != nil {
				return err
			}
		}

		log.Printf("Starting pump with count=%d per table...", perTable)
		start := time.Now()

		uiprogress.Start()
		bar := uiprogress.AddBar(perTable * len(targets)).AppendCompleted().PrependElapsed()
		bar.PrependFunc(func(b *uiprogress.Bar) string {
			return "Pumping: "
		})

		tx, err := g.BeginTransaction(ctx)
		if err != nil {
			uiprogress.Stop()
			return err
		}
		results, err := engine.Pump(ctx, tx, d, targets, perTable, func() { bar.Incr() },
			engine.WithLogger(log.Default()),
			engine.WithDateTimeAsTicks(AppConfig.Migration.DateTimeAsTicks),
		)
		uiprogress.Stop()
		if err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit pump transaction: %w", err)
		}

		printSummary(engine.VerifyInjection(ctx, g.With(gateway.KeepOpen), d, results))
		log.Printf("Pump Done! Time Elapsed: %s", time.Since(start))
		return nil
	},
}

func init() {
	RootCmd.AddCommand(fillCmd)

	fillCmd.Flags().IntVar(&fillCount, "count", 0, "Rows to generate per table (overrides settings.default_count)")
	fillCmd.Flags().BoolVar(&fillClean, "clean", false, "Delete existing rows before pumping")
	fillCmd.Flags().BoolVar(&fillDryRun, "dry-run", false, "List the tables that would be filled and exit")
	fillCmd.Flags().StringSliceVarP(&fillTables, "tables", "t", []string{}, "Specific tables to fill (comma-separated)")

	// --tables is resolved by selectTables, not through viper.
	viper.BindPFlag("settings.default_count", fillCmd.Flags().Lookup("count"))
}

var statusLabels = map[string]string{
	"VERIFIED_OK": "OK (Verified)",
	"PARTIAL":     "PARTIAL (fewer rows than requested)",
	"VERIFY_FAIL": "FAILED (table unreadable)",
}

func printSummary(results []schema.PumpResult) {
	fmt.Println("\n📊 Summary Report (Registration Order):")
	total := 0
	for i, r := range results {
		icon, label := "✓", r.Status
		if r.Status != "VERIFIED_OK" {
			icon = "!"
		}
		if l, ok := statusLabels[r.Status]; ok {
			label = l
		}
		fmt.Printf("[%s] [%02d/%02d] %-20s : %d rows (Target: %d) - %s\n",
			icon, i+1, len(results), r.TableName, r.Actual, r.Target, label)
		if r.ErrorMsg != "" {
			fmt.Printf("    └ Error: %s\n", r.ErrorMsg)
		}
		total += r.Actual
	}
	fmt.Println("--------------------------------------------------")
	fmt.Printf("Total Rows: %d\n", total)
}

func keyNames(d *schema.EntityDescriptor) []string {
	names := make([]string, len(d.PrimaryKeys))
	for i, c := range d.PrimaryKeys {
		names[i] = c.Name
	}
	return names
}
