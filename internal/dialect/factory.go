package dialect

import (
	"sqlite-init/internal/dberr"
)

// GetDialect returns the Dialect implementation for a driver name.
func GetDialect(driver string) (Dialect, error) {
	switch driver {
	case "sqlite", "sqlite3", "":
		return &SQLiteDialect{}, nil
	default:
		return nil, dberr.Errorf(dberr.KindConfiguration, "dialect.get", "unsupported driver %q", driver)
	}
}

// Ensure interface implementation
var _ Dialect = (*SQLiteDialect)(nil)
