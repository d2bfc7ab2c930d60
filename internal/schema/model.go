package schema

import (
	"reflect"
	"strings"
)

// DefaultMaxLength is the VARCHAR length used when a text column sets none.
const DefaultMaxLength = 140

// EntityDescriptor describes the table an entity type maps to.
// Descriptors are built once by a Registry and must not be modified.
type EntityDescriptor struct {
	Type        reflect.Type
	TableName   string
	Columns     []*ColumnDescriptor
	PrimaryKeys []*ColumnDescriptor // ordered by PrimaryKeyOrder
	indexes     []Index
}

// CompositeKey reports whether the primary key spans more than one column.
// Composite keys are declared in a trailing PRIMARY KEY clause instead of inline.
func (d *EntityDescriptor) CompositeKey() bool {
	return len(d.PrimaryKeys) > 1
}

// Column finds a column by name, ignoring case.
func (d *EntityDescriptor) Column(name string) *ColumnDescriptor {
	for _, c := range d.Columns {
		if strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}

// Indexes returns the index groups in order of first appearance.
func (d *EntityDescriptor) Indexes() []Index {
	out := make([]Index, len(d.indexes))
	copy(out, d.indexes)
	return out
}

// ColumnDescriptor describes one mapped column.
type ColumnDescriptor struct {
	Name       string
	FieldName  string
	FieldIndex []int

	Semantic     SemanticType
	StorageType  string
	TypeOverride bool

	IsPrimaryKey    bool
	PrimaryKeyOrder int

	IsAutoIncrement           bool
	IsAutoGeneratedIdentifier bool
	IsNullable                bool

	DefaultValue *string
	QuoteDefault bool
	Collation    string
	MaxLength    int

	Indices []IndexMembership
}

// IsUnique reports whether the column belongs to any unique index.
func (c *ColumnDescriptor) IsUnique() bool {
	for _, i := range c.Indices {
		if i.Unique {
			return true
		}
	}
	return false
}

// IndexMembership places a column inside a (possibly composite) index.
type IndexMembership struct {
	Name   string
	Order  int
	Unique bool
}

// Index is a named index grouped from column memberships.
type Index struct {
	Name    string
	Table   string
	Unique  bool
	Columns []string // ordered by membership order
}

// TableSnapshot is the live column set of a table, read during migration.
type TableSnapshot struct {
	Table   string
	Columns []LiveColumn
}

// LiveColumn is one row of the engine's table info.
type LiveColumn struct {
	Name       string
	DataType   string
	IsNullable bool
	IsPK       bool
	Default    *string
}

// Exists reports whether the table was found.
func (s *TableSnapshot) Exists() bool {
	return s != nil && len(s.Columns) > 0
}

// Has reports whether the live table has a column, ignoring case.
func (s *TableSnapshot) Has(name string) bool {
	if s == nil {
		return false
	}
	for _, c := range s.Columns {
		if strings.EqualFold(c.Name, name) {
			return true
		}
	}
	return false
}

// Names returns the live column names in table order.
func (s *TableSnapshot) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// PumpResult reports how many rows were written into one table.
type PumpResult struct {
	TableName string
	Target    int
	Actual    int
	Status    string
	ErrorMsg  string
}
