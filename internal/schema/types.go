package schema

import (
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SemanticType is the storage-independent type of a column.
type SemanticType int

const (
	TypeUnsupported SemanticType = iota
	TypeBool
	TypeInt   // 8, 16 and 32-bit integers
	TypeInt64 // 64-bit integers
	TypeFloat // single precision and decimal
	TypeDouble
	TypeText
	TypeDateTime
	TypeEnum
	TypeBlob
	TypeUUID
)

func (t SemanticType) String() string {
	switch t {
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeInt64:
		return "int64"
	case TypeFloat:
		return "float"
	case TypeDouble:
		return "double"
	case TypeText:
		return "text"
	case TypeDateTime:
		return "datetime"
	case TypeEnum:
		return "enum"
	case TypeBlob:
		return "blob"
	case TypeUUID:
		return "uuid"
	default:
		return "unsupported"
	}
}

// IsInteger reports whether values are stored as integers.
func (t SemanticType) IsInteger() bool {
	return t == TypeInt || t == TypeInt64 || t == TypeEnum || t == TypeBool
}

var (
	timeType    = reflect.TypeOf(time.Time{})
	uuidType    = reflect.TypeOf(uuid.UUID{})
	decimalType = reflect.TypeOf(decimal.Decimal{})
	bytesType   = reflect.TypeOf([]byte(nil))
)

// SemanticOf resolves the semantic type of a Go field type. Pointer types
// resolve to their element type.
func SemanticOf(t reflect.Type) SemanticType {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	switch t {
	case timeType:
		return TypeDateTime
	case uuidType:
		return TypeUUID
	case decimalType:
		return TypeFloat
	case bytesType:
		return TypeBlob
	}

	// Named integer types are treated as enumerations.
	named := t.PkgPath() != ""
	switch t.Kind() {
	case reflect.Bool:
		return TypeBool
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int, reflect.Uint8, reflect.Uint16:
		if named {
			return TypeEnum
		}
		return TypeInt
	case reflect.Int64, reflect.Uint32:
		if named {
			return TypeEnum
		}
		return TypeInt64
	case reflect.Float32:
		return TypeFloat
	case reflect.Float64:
		return TypeDouble
	case reflect.String:
		return TypeText
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return TypeBlob
		}
	}
	return TypeUnsupported
}

// StorageType maps a semantic type to the engine's column type.
// Storage types marked quoted take their DEFAULT literal in single quotes.
func StorageType(t SemanticType, maxLength int, dateTimeAsTicks bool) (sqlType string, quoted bool, err error) {
	switch t {
	case TypeBool:
		return "SMALLINT", false, nil
	case TypeInt, TypeEnum:
		return "INTEGER", false, nil
	case TypeInt64:
		return "BIGINT", false, nil
	case TypeFloat:
		return "FLOAT", false, nil
	case TypeDouble:
		return "DOUBLE", false, nil
	case TypeText:
		if maxLength <= 0 {
			maxLength = DefaultMaxLength
		}
		return fmt.Sprintf("VARCHAR(%d)", maxLength), true, nil
	case TypeDateTime:
		if dateTimeAsTicks {
			return "BIGINT", true, nil
		}
		return "DATETIME", true, nil
	case TypeBlob:
		return "BLOB", true, nil
	case TypeUUID:
		return "VARCHAR(36)", true, nil
	default:
		return "", false, fmt.Errorf("no storage type for %s", t)
	}
}
