// Package engine fills mapped tables with generated rows and clears them again.
package engine

import (
	"context"
	"fmt"
	"log"
	"reflect"
	"strings"

	"sqlite-init/internal/dialect"
	"sqlite-init/internal/gateway"
	"sqlite-init/internal/schema"
)

// poolLimit caps how many key values are kept per referenced column.
const poolLimit = 10000

// Option configures Pump and Clean.
type Option func(*options)

type options struct {
	logger          *log.Logger
	dateTimeAsTicks bool
}

// WithLogger sets the logger for insert failures and progress notes.
func WithLogger(l *log.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithDateTimeAsTicks generates BIGINT ticks for date/time columns.
func WithDateTimeAsTicks(on bool) Option {
	return func(o *options) { o.dateTimeAsTicks = on }
}

func buildOptions(opts []Option) options {
	o := options{logger: log.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// typeMaxValue returns the largest value an autoincrement field of kind k can hold.
func typeMaxValue(k reflect.Kind) int {
	switch k {
	case reflect.Int8:
		return 127
	case reflect.Uint8:
		return 255
	case reflect.Int16:
		return 32767
	case reflect.Uint16:
		return 65535
	case reflect.Int32:
		return 2147483647
	default:
		return int(^uint(0) >> 1)
	}
}

// calculateMaxInsertCount limits count to what the autoincrement field's Go
// type can number.
func calculateMaxInsertCount(d *schema.EntityDescriptor, requested int, logger *log.Logger) int {
	maxCount := requested
	for _, c := range d.Columns {
		if !c.IsAutoIncrement || d.Type == nil {
			continue
		}
		kind := d.Type.FieldByIndex(c.FieldIndex).Type.Kind()
		if typeMax := typeMaxValue(kind); typeMax < maxCount {
			maxCount = typeMax
			logger.Printf("[LIMIT] Table %s: autoincrement column %s (%s) limits max rows to %d",
				d.TableName, c.Name, kind, typeMax)
		}
	}
	return maxCount
}

// Pump inserts count generated rows into each table, in order. Columns that
// share a name with a primary or unique key of an earlier table reuse that
// table's values, so child rows point at existing parents.
func Pump(ctx context.Context, ex gateway.Executor, d dialect.Dialect, descs []*schema.EntityDescriptor, count int, onProgress func(), opts ...Option) ([]schema.PumpResult, error) {
	o := buildOptions(opts)
	var results []schema.PumpResult
	keyPool := make(map[string][]any)

	for _, desc := range descs {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := pumpTable(ctx, ex, d, desc, count, keyPool, onProgress, o)
		if err != nil {
			return results, err
		}
		results = append(results, res)
		updateKeyPool(ctx, ex, d, desc, keyPool, o.logger)
	}
	return results, nil
}

func pumpTable(ctx context.Context, ex gateway.Executor, d dialect.Dialect, desc *schema.EntityDescriptor, count int, keyPool map[string][]any, onProgress func(), o options) (schema.PumpResult, error) {
	res := schema.PumpResult{TableName: desc.TableName, Target: count}

	initialCount, err := countRows(ctx, ex, d, desc.TableName)
	if err != nil {
		res.Status = "ERROR"
		res.ErrorMsg = err.Error()
		return res, nil
	}

	adjustedCount := calculateMaxInsertCount(desc, count, o.logger)

	var insertCols []*schema.ColumnDescriptor
	var colNames []string
	for _, c := range desc.Columns {
		if !c.IsAutoIncrement {
			insertCols = append(insertCols, c)
			colNames = append(colNames, c.Name)
		}
	}
	if len(insertCols) == 0 {
		res.Status = "SKIPPED"
		res.ErrorMsg = "no insertable columns"
		return res, nil
	}

	query := d.InsertQuery(desc.TableName, colNames)
	compositePK := desc.CompositeKey()
	usedCombinations := make(map[string]bool)
	usedUniqueValues := make(map[string]map[string]bool)
	for _, c := range insertCols {
		if c.IsUnique() || (c.IsPrimaryKey && !compositePK) {
			usedUniqueValues[c.Name] = make(map[string]bool)
		}
	}

	inserted, attempts := 0, 0
	for inserted < adjustedCount && attempts < adjustedCount*10 {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		attempts++
		values := generateRow(desc, insertCols, keyPool, attempts, o.dateTimeAsTicks)

		if compositePK {
			var pkValues []string
			for i, c := range insertCols {
				if c.IsPrimaryKey {
					pkValues = append(pkValues, fmt.Sprintf("%v", values[i]))
				}
			}
			key := strings.Join(pkValues, "|")
			if usedCombinations[key] {
				continue
			}
			usedCombinations[key] = true
		}

		skipRow := false
		for i, c := range insertCols {
			if used, ok := usedUniqueValues[c.Name]; ok && used[fmt.Sprint(values[i])] {
				skipRow = true
				break
			}
		}
		if skipRow {
			continue
		}
		for i, c := range insertCols {
			if used, ok := usedUniqueValues[c.Name]; ok {
				used[fmt.Sprint(values[i])] = true
			}
		}

		if _, err := ex.Exec(ctx, query, values...); err != nil {
			if attempts <= 3 {
				o.logger.Printf("[DEBUG] Table %s attempt %d: %v", desc.TableName, attempts, err)
			}
			continue
		}
		inserted++
		if onProgress != nil {
			onProgress()
		}
	}

	finalCount, err := countRows(ctx, ex, d, desc.TableName)
	if err != nil {
		return res, err
	}
	res.Actual = finalCount - initialCount
	res.Status = "OK"
	if res.Actual < adjustedCount {
		res.Status = "MISSING DATA"
		if inserted == 0 && attempts > 0 {
			res.ErrorMsg = "Failed to insert any rows. Check logs for details."
		} else {
			res.ErrorMsg = fmt.Sprintf("Only inserted %d out of %d. High failure rate?", res.Actual, adjustedCount)
		}
	}
	return res, nil
}

// referencesPool reports whether col should draw its value from an earlier
// table's keys: it must not be a key of its own table.
func referencesPool(desc *schema.EntityDescriptor, col *schema.ColumnDescriptor) bool {
	if col.IsUnique() {
		return false
	}
	return !col.IsPrimaryKey || desc.CompositeKey()
}

func generateRow(desc *schema.EntityDescriptor, cols []*schema.ColumnDescriptor, keyPool map[string][]any, index int, ticks bool) []any {
	values := make([]any, len(cols))
	for i, col := range cols {
		if vals := keyPool[strings.ToLower(col.Name)]; len(vals) > 0 && referencesPool(desc, col) {
			values[i] = vals[index%len(vals)]
			continue
		}
		values[i] = GenerateValue(col, ticks)
	}
	return values
}

// poolSource returns the columns of desc whose values later tables may reference.
func poolSource(desc *schema.EntityDescriptor) []*schema.ColumnDescriptor {
	var cols []*schema.ColumnDescriptor
	if len(desc.PrimaryKeys) == 1 {
		cols = append(cols, desc.PrimaryKeys[0])
	}
	for _, idx := range desc.Indexes() {
		if idx.Unique && len(idx.Columns) == 1 {
			if c := desc.Column(idx.Columns[0]); c != nil && !c.IsPrimaryKey {
				cols = append(cols, c)
			}
		}
	}
	return cols
}

// updateKeyPool loads desc's key values for later tables to reference.
// Failures leave the pool short and are logged.
func updateKeyPool(ctx context.Context, ex gateway.Executor, d dialect.Dialect, desc *schema.EntityDescriptor, keyPool map[string][]any, logger *log.Logger) {
	for _, c := range poolSource(desc) {
		query := fmt.Sprintf("SELECT %s FROM %s LIMIT %d", d.QuoteIdent(c.Name), d.QuoteIdent(desc.TableName), poolLimit)
		rows, err := ex.Query(ctx, query)
		if err != nil {
			logger.Printf("Warning: key pool for %s.%s not loaded: %v", desc.TableName, c.Name, err)
			continue
		}
		key := strings.ToLower(c.Name)
		keyPool[key] = keyPool[key][:0]
		scanErrs := 0
		for rows.Next() {
			var v any
			if err := rows.Scan(&v); err != nil {
				scanErrs++
				if scanErrs <= 3 {
					logger.Printf("Warning: key pool scan %s.%s: %v", desc.TableName, c.Name, err)
				}
				continue
			}
			if v != nil {
				keyPool[key] = append(keyPool[key], v)
			}
		}
		if err := rows.Err(); err != nil {
			logger.Printf("Warning: key pool read %s.%s: %v", desc.TableName, c.Name, err)
		}
		rows.Close()
	}
}

// VerifyInjection re-counts every table after pumping.
func VerifyInjection(ctx context.Context, ex gateway.Executor, d dialect.Dialect, results []schema.PumpResult) []schema.PumpResult {
	var verified []schema.PumpResult
	for _, res := range results {
		current, err := countRows(ctx, ex, d, res.TableName)

		status := "VERIFIED_OK"
		if err != nil {
			status = fmt.Sprintf("VERIFY_FAIL: %v", err)
		} else if current < res.Target {
			status = fmt.Sprintf("PARTIAL: %d/%d", current, res.Target)
		}

		verified = append(verified, schema.PumpResult{
			TableName: res.TableName,
			Target:    res.Target,
			Actual:    current,
			Status:    status,
			ErrorMsg:  res.ErrorMsg,
		})
	}
	return verified
}

// Clean deletes every row from the tables in reverse order and returns how
// many tables were cleared. A table that fails is logged and skipped.
func Clean(ctx context.Context, ex gateway.Executor, d dialect.Dialect, descs []*schema.EntityDescriptor, opts ...Option) (int, error) {
	o := buildOptions(opts)
	cleaned := 0
	for i := len(descs) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return cleaned, err
		}
		table := descs[i].TableName
		if _, err := ex.Exec(ctx, d.DeleteQuery(table)); err != nil {
			o.logger.Printf("Warning: Failed to clean %s: %v (continuing...)", table, err)
			continue
		}
		cleaned++
	}
	return cleaned, nil
}

func countRows(ctx context.Context, ex gateway.Executor, d dialect.Dialect, table string) (int, error) {
	v, err := ex.Scalar(ctx, d.CountQuery(table))
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case int64:
		return int(n), nil
	case int:
		return n, nil
	default:
		return 0, fmt.Errorf("count %s: unexpected result %T", table, v)
	}
}
