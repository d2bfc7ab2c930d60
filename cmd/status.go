package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"sqlite-init/internal/gateway"
	"sqlite-init/internal/migrate"
	"sqlite-init/internal/schema"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored version and the tables of the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		m, err := newMigrator(AppConfig, AppConfig.Billing(0))
		if err != nil {
			return err
		}

		g, err := m.Open()
		if err != nil {
			return err
		}
		defer g.Close()
		ex := g.With(gateway.KeepOpen)
		d := m.Dialect()

		stored, err := migrate.ReadVersion(ctx, ex, d)
		if err != nil {
			return err
		}
		fmt.Printf("Stored version : %d\n", stored)
		fmt.Printf("Target version : %d\n", m.Target())

		branch, err := migrate.Decide(stored, m.Target())
		if err != nil {
			fmt.Printf("Pending        : none (%v)\n", err)
		} else {
			fmt.Printf("Pending        : %s\n", branch)
		}

		tables, err := schema.ListTables(ctx, ex, d)
		if err != nil {
			return err
		}
		fmt.Println("\n📋 Tables:")
		if len(tables) == 0 {
			fmt.Println("  (none)")
		}
		for _, t := range tables {
			n, err := ex.Scalar(ctx, d.CountQuery(t))
			if err != nil {
				fmt.Printf("  %-24s : ? (%v)\n", t, err)
				continue
			}
			fmt.Printf("  %-24s : %v rows\n", t, n)
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(statusCmd)
}
