package store

import (
	"context"
	"fmt"
)

// Open connects to the backend named by driver ("postgres" or "sqlite").
func Open(ctx context.Context, driver, source string) (Store, error) {
	switch driver {
	case "postgres":
		return NewPostgres(ctx, source)
	case "sqlite":
		return NewSQLite(ctx, source)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}
