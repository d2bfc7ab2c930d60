package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/gosuri/uiprogress"
	"github.com/spf13/cobra"

	"sqlite-init/internal/billing"
	"sqlite-init/internal/migrate"
)

var seed int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database to the target version",
	RunE: func(cmd *cobra.Command, args []string) error {
		bc := AppConfig.Billing(seed)

		var bar *uiprogress.Bar
		if seed > 0 {
			uiprogress.Start()
			bar = uiprogress.AddBar(seed * len(billing.Entities())).AppendCompleted().PrependElapsed()
			bar.PrependFunc(func(b *uiprogress.Bar) string {
				return "Seeding: "
			})
			bc.Progress = func() { bar.Incr() }
		}

		m, err := newMigrator(AppConfig, bc)
		if err != nil {
			return err
		}

		fmt.Printf("🗄  Database: %s (target version %d)\n", bc.Path, m.Target())
		start := time.Now()
		out, err := m.Run(cmd.Context())
		if bar != nil {
			uiprogress.Stop()
		}
		if err != nil {
			return err
		}

		if out.Branch == migrate.BranchNoOp {
			fmt.Printf("✓ Already at version %d, nothing to do\n", out.To)
		} else {
			fmt.Printf("✓ %s: version %d -> %d\n", out.Branch, out.From, out.To)
		}
		log.Printf("Migrate Done! Time Elapsed: %s", time.Since(start))
		return nil
	},
}

func init() {
	RootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().IntVar(&seed, "seed", 0, "Rows of demo data to generate per table when the database is created")
}
