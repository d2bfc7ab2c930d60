package schema

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"sqlite-init/internal/dberr"
)

// TableNamer lets an entity choose its table name. Without it the Go type
// name is used.
type TableNamer interface {
	TableName() string
}

// Options tune how descriptors are built.
type Options struct {
	// DateTimeAsTicks stores time.Time columns as BIGINT instead of DATETIME.
	DateTimeAsTicks bool
}

// Registry builds entity descriptors and caches them by type identity.
// Repeated lookups for a type return the same descriptor instance.
type Registry struct {
	opts Options

	mu    sync.Mutex
	cache map[reflect.Type]*EntityDescriptor
}

// NewRegistry returns an empty registry.
func NewRegistry(opts Options) *Registry {
	return &Registry{opts: opts, cache: make(map[reflect.Type]*EntityDescriptor)}
}

// Options returns the options the registry was built with.
func (r *Registry) Options() Options {
	return r.opts
}

// Describe returns the descriptor for an entity value, a pointer to one, or
// a reflect.Type.
func (r *Registry) Describe(entity any) (*EntityDescriptor, error) {
	if entity == nil {
		return nil, dberr.Errorf(dberr.KindMapping, "schema.describe", "nil entity")
	}
	t, ok := entity.(reflect.Type)
	if !ok {
		t = reflect.TypeOf(entity)
	}
	return r.DescribeType(t)
}

// Describe is the generic form of Registry.Describe.
func Describe[T any](r *Registry) (*EntityDescriptor, error) {
	return r.DescribeType(reflect.TypeOf((*T)(nil)).Elem())
}

// DescribeType returns the cached descriptor for t, building it on first use.
// Failed builds are not cached.
func (r *Registry) DescribeType(t reflect.Type) (*EntityDescriptor, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.cache[t]; ok {
		return d, nil
	}
	d, err := build(t, r.opts)
	if err != nil {
		return nil, err
	}
	r.cache[t] = d
	return d, nil
}

// Len returns the number of cached descriptors.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cache)
}

func mappingErr(t reflect.Type, format string, args ...any) error {
	return dberr.Errorf(dberr.KindMapping, "schema.describe", "%s: %s", t, fmt.Sprintf(format, args...))
}

func build(t reflect.Type, opts Options) (*EntityDescriptor, error) {
	if t.Kind() != reflect.Struct {
		return nil, mappingErr(t, "entity must be a struct, got %s", t.Kind())
	}

	d := &EntityDescriptor{Type: t, TableName: t.Name()}
	if namer, ok := reflect.New(t).Interface().(TableNamer); ok {
		if name := strings.TrimSpace(namer.TableName()); name != "" {
			d.TableName = name
		}
	}
	if d.TableName == "" {
		return nil, mappingErr(t, "anonymous struct needs a TableName method")
	}

	seen := make(map[string]bool)
	for _, f := range reflect.VisibleFields(t) {
		if f.Anonymous || !f.IsExported() {
			continue
		}
		tag, err := parseTag(f.Tag.Get(TagName))
		if err != nil {
			return nil, mappingErr(t, "field %s: %v", f.Name, err)
		}
		if tag.Ignore {
			continue
		}
		col, err := buildColumn(d.TableName, f, tag, opts)
		if err != nil {
			return nil, mappingErr(t, "field %s: %v", f.Name, err)
		}
		key := strings.ToLower(col.Name)
		if seen[key] {
			return nil, mappingErr(t, "duplicate column %q", col.Name)
		}
		seen[key] = true
		d.Columns = append(d.Columns, col)
		if col.IsPrimaryKey {
			d.PrimaryKeys = append(d.PrimaryKeys, col)
		}
	}
	if len(d.Columns) == 0 {
		return nil, mappingErr(t, "no mapped columns")
	}

	sort.SliceStable(d.PrimaryKeys, func(i, j int) bool {
		return d.PrimaryKeys[i].PrimaryKeyOrder < d.PrimaryKeys[j].PrimaryKeyOrder
	})

	for _, c := range d.Columns {
		if !c.IsAutoIncrement {
			continue
		}
		if !c.IsPrimaryKey || d.CompositeKey() {
			return nil, mappingErr(t, "column %q: autoincrement requires a single-column primary key", c.Name)
		}
		if !strings.EqualFold(c.StorageType, "INTEGER") {
			return nil, mappingErr(t, "column %q: autoincrement requires INTEGER storage, got %s", c.Name, c.StorageType)
		}
	}

	indexes, err := groupIndexes(d)
	if err != nil {
		return nil, mappingErr(t, "%v", err)
	}
	d.indexes = indexes
	return d, nil
}

func buildColumn(table string, f reflect.StructField, tag fieldTag, opts Options) (*ColumnDescriptor, error) {
	c := &ColumnDescriptor{
		Name:            tag.Column,
		FieldName:       f.Name,
		FieldIndex:      f.Index,
		Semantic:        SemanticOf(f.Type),
		IsPrimaryKey:    tag.PrimaryKey,
		PrimaryKeyOrder: tag.PKOrder,
		DefaultValue:    tag.Default,
		Collation:       tag.Collation,
		MaxLength:       tag.MaxLength,
	}
	if c.Name == "" {
		c.Name = f.Name
	}
	if c.MaxLength == 0 {
		c.MaxLength = DefaultMaxLength
	}

	if tag.Type != "" {
		c.StorageType = tag.Type
		c.TypeOverride = true
	} else {
		sqlType, quoted, err := StorageType(c.Semantic, c.MaxLength, opts.DateTimeAsTicks)
		if err != nil {
			return nil, fmt.Errorf("unsupported type %s", f.Type)
		}
		c.StorageType = sqlType
		c.QuoteDefault = quoted
	}

	if tag.AutoIncrement {
		if c.Semantic == TypeUUID {
			c.IsAutoGeneratedIdentifier = true
		} else {
			c.IsAutoIncrement = true
		}
	}
	c.IsNullable = !c.IsPrimaryKey && !tag.NotNull

	for _, m := range tag.Indices {
		if m.Name == "" {
			m.Name = table + "_" + c.Name
		}
		c.Indices = append(c.Indices, m)
	}
	return c, nil
}

type indexedColumn struct {
	order  int
	column string
}

func groupIndexes(d *EntityDescriptor) ([]Index, error) {
	var names []string
	groups := make(map[string]*Index)
	members := make(map[string][]indexedColumn)

	for _, c := range d.Columns {
		for _, m := range c.Indices {
			idx, ok := groups[m.Name]
			if !ok {
				idx = &Index{Name: m.Name, Table: d.TableName, Unique: m.Unique}
				groups[m.Name] = idx
				names = append(names, m.Name)
			}
			if idx.Unique != m.Unique {
				return nil, fmt.Errorf("index %q: all columns in an index must agree on unique", m.Name)
			}
			members[m.Name] = append(members[m.Name], indexedColumn{order: m.Order, column: c.Name})
		}
	}

	out := make([]Index, 0, len(names))
	for _, name := range names {
		cols := members[name]
		sort.SliceStable(cols, func(i, j int) bool { return cols[i].order < cols[j].order })
		idx := groups[name]
		for _, ic := range cols {
			idx.Columns = append(idx.Columns, ic.column)
		}
		out = append(out, *idx)
	}
	return out, nil
}
