package migrate

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"sqlite-init/internal/dberr"
	"sqlite-init/internal/dialect"
	"sqlite-init/internal/gateway"
)

// ReadVersion returns the version stored in the database file. A value that
// is absent or cannot be read as an integer yields -1; a failing query is
// returned as an error.
func ReadVersion(ctx context.Context, ex gateway.Executor, d dialect.Dialect) (int, error) {
	v, err := ex.Scalar(ctx, d.UserVersionQuery())
	if err != nil {
		return -1, err
	}
	return parseVersion(v), nil
}

func parseVersion(v any) int {
	switch x := v.(type) {
	case int64:
		return int(x)
	case int:
		return x
	case int32:
		return int(x)
	case float64:
		return int(x)
	case []byte:
		return atoiOr(string(x), -1)
	case string:
		return atoiOr(x, -1)
	default:
		return -1
	}
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	return n
}

// WriteVersion stores version in the database file.
func WriteVersion(ctx context.Context, ex gateway.Executor, d dialect.Dialect, version int) error {
	if _, err := ex.Exec(ctx, d.SetUserVersionQuery(version)); err != nil {
		return fmt.Errorf("write version %d: %w", version, err)
	}
	return nil
}

// NeedUpgrade reports whether newVersion is above the stored version.
func NeedUpgrade(ctx context.Context, ex gateway.Executor, d dialect.Dialect, newVersion int) (bool, error) {
	v, err := ReadVersion(ctx, ex, d)
	if err != nil {
		return false, err
	}
	return newVersion > v, nil
}

// Decide picks the branch for a stored and a target version. A stored
// version above the target is a downgrade and is rejected.
func Decide(stored, target int) (Branch, error) {
	switch {
	case stored > target:
		return BranchNoOp, dberr.Errorf(dberr.KindDowngrade, "migrate.decide",
			"stored version %d is newer than target %d; only upgrades are supported", stored, target)
	case stored == target:
		return BranchNoOp, nil
	case stored <= 0:
		return BranchCreate, nil
	default:
		return BranchUpgrade, nil
	}
}
