// Package migrate brings a database file to the schema version a caller asks
// for: it reads the stored version, syncs every registered entity inside one
// transaction, runs the caller's create or upgrade hook and writes the new
// version, all or nothing.
package migrate

import (
	"context"

	"sqlite-init/internal/gateway"
)

// Initializer is implemented by the application that owns the database.
//
// OnDoLegacy runs before the migration opens its connection and outside its
// transaction; it may open and close connections of its own. OnCreate and
// OnUpgrade run inside the migration transaction after all registered tables
// are synced, and must execute through the Executor they are given.
type Initializer interface {
	DefaultConnectionString() string
	NewVersion() int

	OnDoLegacy(ctx context.Context) error
	OnCreate(ctx context.Context, ex gateway.Executor, currentVersion int) error
	OnUpgrade(ctx context.Context, ex gateway.Executor, oldVersion, newVersion int) error
}

// Branch is the path a run took.
type Branch int

const (
	BranchNoOp Branch = iota
	BranchCreate
	BranchUpgrade
)

func (b Branch) String() string {
	switch b {
	case BranchCreate:
		return "create"
	case BranchUpgrade:
		return "upgrade"
	default:
		return "no-op"
	}
}

// Outcome reports what a run did.
type Outcome struct {
	Branch Branch
	From   int
	To     int
}
