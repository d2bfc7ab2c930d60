package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"sqlite-init/internal/billing"
	"sqlite-init/internal/ddl"
)

type DatabaseConfig struct {
	Driver        string `mapstructure:"driver"`
	Path          string `mapstructure:"path"`
	DSN           string `mapstructure:"dsn"`
	LegacyPath    string `mapstructure:"legacy_path"`
	BusyTimeoutMS int    `mapstructure:"busy_timeout_ms"`
}

type MigrationConfig struct {
	TargetVersion   int    `mapstructure:"target_version"`
	ColumnErrors    string `mapstructure:"column_errors"`
	DateTimeAsTicks bool   `mapstructure:"datetime_as_ticks"`
}

type SettingsConfig struct {
	DefaultCount int      `mapstructure:"default_count"`
	Tables       []string `mapstructure:"tables"`
}

// Config is the merged view of defaults, config file, environment and flags.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Migration MigrationConfig `mapstructure:"migration"`
	Settings  SettingsConfig  `mapstructure:"settings"`
}

func setDefaults() {
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.path", "./demo.db")
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("database.legacy_path", "")
	viper.SetDefault("database.busy_timeout_ms", 5000)
	viper.SetDefault("migration.target_version", billing.VersionCurrent)
	viper.SetDefault("migration.column_errors", "abort")
	viper.SetDefault("migration.datetime_as_ticks", false)
	viper.SetDefault("settings.default_count", 100)
	viper.SetDefault("settings.tables", []string{})
}

// LoadConfig unmarshals the active configuration and validates it.
func LoadConfig() (*Config, error) {
	var c Config
	if err := viper.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if c.Database.DSN == "" && c.Database.Path == "" {
		return nil, fmt.Errorf("database.path or database.dsn is required (via flag, env or config)")
	}
	if _, err := ddl.ParseColumnErrorPolicy(c.Migration.ColumnErrors); err != nil {
		return nil, err
	}
	return &c, nil
}

// ConnectionString returns database.dsn when set, otherwise a DSN for the
// database file with the busy timeout and foreign keys pragmas applied.
func (c DatabaseConfig) ConnectionString() string {
	if c.DSN != "" {
		return c.DSN
	}
	path := filepath.Clean(c.Path)
	if c.BusyTimeoutMS <= 0 {
		return path + "?_pragma=foreign_keys(1)"
	}
	return fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", path, c.BusyTimeoutMS)
}

// FilePath returns the database file, taken from the DSN when only a DSN is set.
func (c DatabaseConfig) FilePath() string {
	if c.Path != "" && c.DSN == "" {
		return filepath.Clean(c.Path)
	}
	path, _, _ := strings.Cut(strings.TrimPrefix(c.DSN, "file:"), "?")
	return path
}

// Billing builds the initializer configuration. seed is the number of rows
// generated per table on create.
func (c *Config) Billing(seed int) billing.Config {
	return billing.Config{
		DSN:             c.Database.ConnectionString(),
		Path:            c.Database.FilePath(),
		LegacyPath:      c.Database.LegacyPath,
		TargetVersion:   c.Migration.TargetVersion,
		SeedCount:       seed,
		DateTimeAsTicks: c.Migration.DateTimeAsTicks,
	}
}
