package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"sqlite-init/internal/billing"
	"sqlite-init/internal/ddl"
	"sqlite-init/internal/dialect"
	"sqlite-init/internal/migrate"
	"sqlite-init/internal/schema"
)

var (
	cfgFile       string
	dsn           string
	targetVersion int

	// AppConfig is loaded before every command runs.
	AppConfig *Config
)

var RootCmd = &cobra.Command{
	Use:   "sqlite-init",
	Short: "A versioned SQLite schema initializer",
	Long: `
  ____   ___  _     _ _          ___       _ _
 / ___| / _ \| |   (_) |_ ___   |_ _|_ __ (_) |_
 \___ \| | | | |   | | __/ _ \   | || '_ \| | __|
  ___) | |_| | |___| | ||  __/   | || | | | | |_
 |____/ \__\_\_____|_|\__\___|  |___|_| |_|_|\__|

SQLITE INIT - Versioned schema creation, upgrade & demo data
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := LoadConfig()
		if err != nil {
			return err
		}
		AppConfig = c
		return nil
	},
}

// Execute runs the root command until it finishes or the process is interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := RootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println(err)
		stop()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	setDefaults()

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./sqlite-init.yaml)")
	RootCmd.PersistentFlags().StringVar(&dsn, "dsn", "", "SQLite DSN (overrides database.path)")
	RootCmd.PersistentFlags().IntVar(&targetVersion, "target-version", 0, "Schema version to migrate to (overrides config)")

	viper.BindPFlag("database.dsn", RootCmd.PersistentFlags().Lookup("dsn"))
	viper.BindPFlag("migration.target_version", RootCmd.PersistentFlags().Lookup("target-version"))
}

// initConfig reads the .env file, the config file and environment variables.
func initConfig() {
	// A missing .env is fine.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// 1. Executable Directory (Priority 1)
		ex, err := os.Executable()
		if err == nil {
			viper.AddConfigPath(filepath.Dir(ex))
		}

		// 2. Current Directory (Priority 2)
		viper.AddConfigPath(".")

		viper.SetConfigName("sqlite-init")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("SQLITE_INIT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

// newMigrator wires the billing initializer into a migrator configured from c.
func newMigrator(c *Config, bc billing.Config) (*migrate.Migrator, error) {
	policy, err := ddl.ParseColumnErrorPolicy(c.Migration.ColumnErrors)
	if err != nil {
		return nil, err
	}
	d, err := dialect.GetDialect(c.Database.Driver)
	if err != nil {
		return nil, err
	}
	logger := log.Default()
	log.Printf("Using Dialect: %s", d.Driver())
	ini := billing.NewInitializer(bc, logger)
	m, err := migrate.New(ini,
		migrate.WithDialect(d),
		migrate.WithRegistry(ini.Registry()),
		migrate.WithColumnErrorPolicy(policy),
		migrate.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	if err := m.Register(billing.Entities()...); err != nil {
		return nil, err
	}
	return m, nil
}

// selectTables filters descriptors by name. Flag > Config > All.
func selectTables(descs []*schema.EntityDescriptor, flagTables []string) ([]*schema.EntityDescriptor, error) {
	names := flagTables
	if len(names) == 0 {
		names = AppConfig.Settings.Tables
	}
	if len(names) == 0 {
		return descs, nil
	}

	req := make(map[string]bool)
	for _, t := range names {
		req[strings.ToLower(strings.TrimSpace(t))] = true
	}
	var out []*schema.EntityDescriptor
	for _, d := range descs {
		if req[strings.ToLower(d.TableName)] {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no matching tables found for inputs: %v", names)
	}
	return out, nil
}
