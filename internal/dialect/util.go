package dialect

import (
	"strings"
)

// GeneratePlaceholders joins count placeholders produced by placeholderFunc.
func GeneratePlaceholders(count int, placeholderFunc func(int) string) string {
	placeholders := make([]string, count)
	for i := 0; i < count; i++ {
		placeholders[i] = placeholderFunc(i)
	}
	return strings.Join(placeholders, ", ")
}

// DefaultNormalizeType lowercases and trims a declared column type.
func DefaultNormalizeType(sqlType string) string {
	return strings.ToLower(strings.TrimSpace(sqlType))
}

// QuoteIdent wraps name in double quotes, doubling any embedded quote.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// sqliteKeywords holds the words SQLite reserves; they must be quoted as identifiers.
var sqliteKeywords = map[string]struct{}{
	"ABORT": {}, "ACTION": {}, "ADD": {}, "AFTER": {}, "ALL": {}, "ALTER": {}, "ALWAYS": {},
	"ANALYZE": {}, "AND": {}, "AS": {}, "ASC": {}, "ATTACH": {}, "AUTOINCREMENT": {},
	"BEFORE": {}, "BEGIN": {}, "BETWEEN": {}, "BY": {}, "CASCADE": {}, "CASE": {}, "CAST": {},
	"CHECK": {}, "COLLATE": {}, "COLUMN": {}, "COMMIT": {}, "CONFLICT": {}, "CONSTRAINT": {},
	"CREATE": {}, "CROSS": {}, "CURRENT": {}, "CURRENT_DATE": {}, "CURRENT_TIME": {},
	"CURRENT_TIMESTAMP": {}, "DATABASE": {}, "DEFAULT": {}, "DEFERRABLE": {}, "DEFERRED": {},
	"DELETE": {}, "DESC": {}, "DETACH": {}, "DISTINCT": {}, "DO": {}, "DROP": {}, "EACH": {},
	"ELSE": {}, "END": {}, "ESCAPE": {}, "EXCEPT": {}, "EXCLUDE": {}, "EXCLUSIVE": {},
	"EXISTS": {}, "EXPLAIN": {}, "FAIL": {}, "FILTER": {}, "FIRST": {}, "FOLLOWING": {},
	"FOR": {}, "FOREIGN": {}, "FROM": {}, "FULL": {}, "GENERATED": {}, "GLOB": {}, "GROUP": {},
	"GROUPS": {}, "HAVING": {}, "IF": {}, "IGNORE": {}, "IMMEDIATE": {}, "IN": {}, "INDEX": {},
	"INDEXED": {}, "INITIALLY": {}, "INNER": {}, "INSERT": {}, "INSTEAD": {}, "INTERSECT": {},
	"INTO": {}, "IS": {}, "ISNULL": {}, "JOIN": {}, "KEY": {}, "LAST": {}, "LEFT": {}, "LIKE": {},
	"LIMIT": {}, "MATCH": {}, "MATERIALIZED": {}, "NATURAL": {}, "NO": {}, "NOT": {},
	"NOTHING": {}, "NOTNULL": {}, "NULL": {}, "NULLS": {}, "OF": {}, "OFFSET": {}, "ON": {},
	"OR": {}, "ORDER": {}, "OTHERS": {}, "OUTER": {}, "OVER": {}, "PARTITION": {}, "PLAN": {},
	"PRAGMA": {}, "PRECEDING": {}, "PRIMARY": {}, "QUERY": {}, "RAISE": {}, "RANGE": {},
	"RECURSIVE": {}, "REFERENCES": {}, "REGEXP": {}, "REINDEX": {}, "RELEASE": {}, "RENAME": {},
	"REPLACE": {}, "RESTRICT": {}, "RETURNING": {}, "RIGHT": {}, "ROLLBACK": {}, "ROW": {},
	"ROWS": {}, "SAVEPOINT": {}, "SELECT": {}, "SET": {}, "TABLE": {}, "TEMP": {},
	"TEMPORARY": {}, "THEN": {}, "TIES": {}, "TO": {}, "TRANSACTION": {}, "TRIGGER": {},
	"UNBOUNDED": {}, "UNION": {}, "UNIQUE": {}, "UPDATE": {}, "USING": {}, "VACUUM": {},
	"VALUES": {}, "VIEW": {}, "VIRTUAL": {}, "WHEN": {}, "WHERE": {}, "WINDOW": {}, "WITH": {},
	"WITHOUT": {},
}

// IsBareIdent reports whether name can appear unquoted in SQL text.
func IsBareIdent(name string) bool {
	if name == "" {
		return false
	}
	if _, ok := sqliteKeywords[strings.ToUpper(name)]; ok {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
