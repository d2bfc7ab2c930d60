package dialect

// Dialect abstracts the engine-specific SQL text the migrator issues.
type Dialect interface {
	// Driver is the database/sql driver name.
	Driver() string

	// Identifiers
	QuoteIdent(name string) string

	// Version storage (a single integer slot inside the database file)
	UserVersionQuery() string
	SetUserVersionQuery(version int) string

	// Metadata Queries (Schema Introspection)
	TablesQuery() string
	TableInfoQuery(table string) string

	// Query Generation
	InsertQuery(table string, cols []string) string
	DeleteQuery(table string) string
	CountQuery(table string) string
	Placeholder(index int) string

	// Helpers
	NormalizeType(sqlType string) string
	IsAlreadyExistsError(err error) bool
}
