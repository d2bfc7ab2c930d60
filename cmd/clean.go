package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"sqlite-init/internal/dialect"
	"sqlite-init/internal/engine"
	"sqlite-init/internal/gateway"
	"sqlite-init/internal/schema"
)

var cleanTables []string

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete every row from the registered tables, keeping the schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newMigrator(AppConfig, AppConfig.Billing(0))
		if err != nil {
			return err
		}
		targets, err := selectTables(m.Descriptors(), cleanTables)
		if err != nil {
			return err
		}

		g, err := m.Open()
		if err != nil {
			return err
		}
		defer g.Close()

		fmt.Printf("🗄  Database: %s\n", AppConfig.Database.FilePath())
		return cleanDatabase(cmd.Context(), g, m.Dialect(), targets)
	},
}

func init() {
	RootCmd.AddCommand(cleanCmd)

	cleanCmd.Flags().StringSliceVarP(&cleanTables, "tables", "t", []string{}, "Specific tables to clean (comma-separated)")
}

// cleanDatabase empties tables, children first, in one transaction.
func cleanDatabase(ctx context.Context, g *gateway.Gateway, d dialect.Dialect, tables []*schema.EntityDescriptor) error {
	tx, err := g.BeginTransaction(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	before := make(map[string]any, len(tables))
	for _, t := range tables {
		n, err := tx.Scalar(ctx, d.CountQuery(t.TableName))
		if err != nil {
			log.Printf("Warning: %s is not readable: %v", t.TableName, err)
			continue
		}
		before[t.TableName] = n
	}

	cleaned, err := engine.Clean(ctx, tx, d, tables, engine.WithLogger(log.Default()))
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cleaning transaction: %w", err)
	}

	for i := len(tables) - 1; i >= 0; i-- {
		name := tables[i].TableName
		if n, ok := before[name]; ok {
			fmt.Printf("  - %-24s : %v rows removed\n", name, n)
		}
	}
	log.Printf("Cleaned %d/%d tables", cleaned, len(tables))
	return nil
}
