package schema

import (
	"context"
	"database/sql"
	"fmt"

	"sqlite-init/internal/dialect"
	"sqlite-init/internal/gateway"
)

// Analyze reads the live column set of table. A missing table yields an
// empty snapshot, not an error.
func Analyze(ctx context.Context, ex gateway.Executor, d dialect.Dialect, table string) (*TableSnapshot, error) {
	rows, err := ex.Query(ctx, d.TableInfoQuery(table))
	if err != nil {
		return nil, fmt.Errorf("failed to query table info (table: %s): %w", table, err)
	}
	defer rows.Close()

	snap := &TableSnapshot{Table: table}
	for rows.Next() {
		var (
			cid      int
			name     string
			dataType sql.NullString
			notNull  int
			dflt     sql.NullString
			pk       int
		)
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column (table: %s): %w", table, err)
		}
		col := LiveColumn{
			Name:       name,
			DataType:   d.NormalizeType(dataType.String),
			IsNullable: notNull == 0,
			IsPK:       pk > 0,
		}
		if dflt.Valid {
			v := dflt.String
			col.Default = &v
		}
		snap.Columns = append(snap.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns (table: %s): %w", table, err)
	}
	return snap, nil
}

// ListTables returns the user tables present in the database.
func ListTables(ctx context.Context, ex gateway.Executor, d dialect.Dialect) ([]string, error) {
	rows, err := ex.Query(ctx, d.TablesQuery())
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}
	return tables, nil
}
