// Package dberr classifies failures raised while building schemas and
// migrating a database.
package dberr

import (
	"errors"
	"fmt"
)

// Kind is the class of a failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindConfiguration covers a missing initializer, connection string or target version.
	KindConfiguration
	// KindDowngrade means the stored version is newer than the requested one.
	KindDowngrade
	// KindMapping covers unsupported field types and conflicting index definitions.
	KindMapping
	// KindExecution wraps a driver-level failure.
	KindExecution
	// KindColumnMigration is a failed ADD COLUMN during the additive column diff.
	KindColumnMigration
	// KindMigration wraps any failure inside the create/upgrade transaction.
	KindMigration
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindDowngrade:
		return "downgrade"
	case KindMapping:
		return "mapping"
	case KindExecution:
		return "execution"
	case KindColumnMigration:
		return "column migration"
	case KindMigration:
		return "migration"
	default:
		return "unknown"
	}
}

// Fatal reports whether an error of this kind must abort the run.
// Column migration errors may be logged and skipped depending on policy.
func (k Kind) Fatal() bool {
	return k != KindColumnMigration
}

// Error is a classified failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Sentinels for errors.Is. Each one matches any *Error of the same kind.
var (
	ErrConfiguration   = &Error{Kind: KindConfiguration}
	ErrDowngrade       = &Error{Kind: KindDowngrade}
	ErrMapping         = &Error{Kind: KindMapping}
	ErrExecution       = &Error{Kind: KindExecution}
	ErrColumnMigration = &Error{Kind: KindColumnMigration}
	ErrMigration       = &Error{Kind: KindMigration}
)

// E builds a classified error.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a classified error from a format string.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String() + " error"
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinel errors (no wrapped cause) of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Err != nil {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the outermost classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
