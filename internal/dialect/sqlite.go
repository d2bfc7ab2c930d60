package dialect

import (
	"fmt"
	"strings"
)

// SQLiteDialect targets the embedded SQLite engine (modernc.org/sqlite).
type SQLiteDialect struct{}

func (d *SQLiteDialect) Driver() string {
	return "sqlite"
}

func (d *SQLiteDialect) QuoteIdent(name string) string {
	return QuoteIdent(name)
}

// UserVersionQuery reads the database-level version counter.
func (d *SQLiteDialect) UserVersionQuery() string {
	return "PRAGMA user_version;"
}

// SetUserVersionQuery writes the version counter. Pragmas do not accept
// bound parameters, so the value is formatted into the text.
func (d *SQLiteDialect) SetUserVersionQuery(version int) string {
	return fmt.Sprintf("PRAGMA user_version = %d;", version)
}

func (d *SQLiteDialect) TablesQuery() string {
	return `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`
}

// TableInfoQuery returns cid, name, type, notnull, dflt_value, pk per column.
func (d *SQLiteDialect) TableInfoQuery(table string) string {
	return fmt.Sprintf("PRAGMA table_info(%s)", d.QuoteIdent(table))
}

func (d *SQLiteDialect) InsertQuery(table string, cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.QuoteIdent(c)
	}
	vals := GeneratePlaceholders(len(cols), d.Placeholder)
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", d.QuoteIdent(table), strings.Join(quoted, ", "), vals)
}

func (d *SQLiteDialect) DeleteQuery(table string) string {
	return fmt.Sprintf("DELETE FROM %s", d.QuoteIdent(table))
}

func (d *SQLiteDialect) CountQuery(table string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", d.QuoteIdent(table))
}

func (d *SQLiteDialect) Placeholder(index int) string {
	return "?"
}

func (d *SQLiteDialect) NormalizeType(sqlType string) string {
	t := DefaultNormalizeType(sqlType)
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	switch t {
	case "int", "int2", "int4", "tinyint", "mediumint":
		return "integer"
	case "int8":
		return "bigint"
	case "real", "float4":
		return "float"
	case "float8", "double precision":
		return "double"
	case "character varying", "nvarchar", "text":
		return "varchar"
	default:
		return t
	}
}

// IsAlreadyExistsError reports whether this error indicates idempotent DDL success.
func (d *SQLiteDialect) IsAlreadyExistsError(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "already exists") || strings.Contains(value, "duplicate column name")
}
