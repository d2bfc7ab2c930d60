package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the DDL a migration would issue, without writing",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newMigrator(AppConfig, AppConfig.Billing(0))
		if err != nil {
			return err
		}
		plan, err := m.Plan(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Println("[SIMULATION] Plan Mode Active: No changes will be written.")
		for i, d := range m.Descriptors() {
			stmts := plan[d.TableName]
			fmt.Printf("\n-- [%02d] %s (%d statements)\n", i+1, d.TableName, len(stmts))
			for _, s := range stmts {
				fmt.Printf("%s;\n", strings.TrimRight(s, ";"))
			}
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(planCmd)
}
