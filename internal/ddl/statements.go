// Package ddl turns entity descriptors into idempotent DDL and applies it.
package ddl

import (
	"fmt"
	"strings"

	"sqlite-init/internal/dialect"
	"sqlite-init/internal/schema"
)

// ColumnDecl renders one column definition. Clause order is fixed:
// name, type, PRIMARY KEY, AUTOINCREMENT, NOT NULL, DEFAULT, COLLATE.
// inlinePK is false for tables with a composite key, whose key is declared
// in a trailing clause instead.
func ColumnDecl(c *schema.ColumnDescriptor, inlinePK bool) string {
	parts := []string{dialect.QuoteIdent(c.Name), c.StorageType}
	if inlinePK && c.IsPrimaryKey {
		parts = append(parts, "PRIMARY KEY")
	}
	if c.IsAutoIncrement {
		parts = append(parts, "AUTOINCREMENT")
	}
	if !c.IsNullable {
		parts = append(parts, "NOT NULL")
	}
	if c.DefaultValue != nil {
		if c.QuoteDefault {
			parts = append(parts, "DEFAULT '"+strings.ReplaceAll(*c.DefaultValue, "'", "''")+"'")
		} else {
			parts = append(parts, "DEFAULT "+*c.DefaultValue)
		}
	}
	if c.Collation != "" {
		parts = append(parts, "COLLATE "+c.Collation)
	}
	return strings.Join(parts, " ")
}

// PrimaryKeyClause renders the trailing composite key clause, ordered by key order.
func PrimaryKeyClause(d *schema.EntityDescriptor) string {
	names := make([]string, len(d.PrimaryKeys))
	for i, pk := range d.PrimaryKeys {
		names[i] = keyIdent(pk.Name)
	}
	return "PRIMARY KEY(" + strings.Join(names, ",") + ")"
}

func keyIdent(name string) string {
	if dialect.IsBareIdent(name) {
		return name
	}
	return dialect.QuoteIdent(name)
}

// CreateTableStatement renders CREATE TABLE IF NOT EXISTS for d.
func CreateTableStatement(d *schema.EntityDescriptor) string {
	composite := d.CompositeKey()
	decls := make([]string, 0, len(d.Columns)+1)
	for _, c := range d.Columns {
		decls = append(decls, ColumnDecl(c, !composite))
	}
	if composite {
		decls = append(decls, PrimaryKeyClause(d))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s(\n%s\n);", dialect.QuoteIdent(d.TableName), strings.Join(decls, ",\n"))
}

// MissingColumns returns the descriptor columns absent from the live table,
// in declaration order. Names compare case-insensitively.
func MissingColumns(d *schema.EntityDescriptor, live *schema.TableSnapshot) []*schema.ColumnDescriptor {
	var missing []*schema.ColumnDescriptor
	for _, c := range d.Columns {
		if !live.Has(c.Name) {
			missing = append(missing, c)
		}
	}
	return missing
}

// AddColumnStatement renders ALTER TABLE ... ADD COLUMN for one column.
func AddColumnStatement(table string, c *schema.ColumnDescriptor) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", dialect.QuoteIdent(table), ColumnDecl(c, true))
}

// AlterAddColumnStatements renders one ADD COLUMN per missing column.
// Existing columns are never altered, renamed or dropped.
func AlterAddColumnStatements(d *schema.EntityDescriptor, live *schema.TableSnapshot) []string {
	var stmts []string
	for _, c := range MissingColumns(d, live) {
		stmts = append(stmts, AddColumnStatement(d.TableName, c))
	}
	return stmts
}

// IndexStatement renders CREATE [UNIQUE] INDEX IF NOT EXISTS for idx.
func IndexStatement(idx schema.Index) string {
	cols := make([]string, len(idx.Columns))
	for i, c := range idx.Columns {
		cols[i] = dialect.QuoteIdent(c)
	}
	kind := "INDEX"
	if idx.Unique {
		kind = "UNIQUE INDEX"
	}
	return fmt.Sprintf("CREATE %s IF NOT EXISTS %s ON %s(%s)", kind, dialect.QuoteIdent(idx.Name), dialect.QuoteIdent(idx.Table), strings.Join(cols, ","))
}

// IndexStatements renders every index of d in first-appearance order.
func IndexStatements(d *schema.EntityDescriptor) []string {
	indexes := d.Indexes()
	stmts := make([]string, len(indexes))
	for i, idx := range indexes {
		stmts[i] = IndexStatement(idx)
	}
	return stmts
}

// DropIndexStatement renders DROP INDEX IF EXISTS.
func DropIndexStatement(name string) string {
	return fmt.Sprintf("DROP INDEX IF EXISTS %s", dialect.QuoteIdent(name))
}
