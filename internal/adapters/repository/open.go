package repository

import (
	"context"
	"fmt"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Open returns the store for backend. sqlitePath is used by the sqlite
// backend (empty means in memory) and databaseURL by postgres.
func Open(ctx context.Context, backend, sqlitePath, databaseURL string, opts ...Option) (Store, error) {
	switch backend {
	case "", BackendMemory:
		return NewMemoryStore(opts...), nil
	case BackendSQLite:
		return NewSQLiteStore(sqlitePath, opts...)
	case BackendPostgres:
		return NewPostgresStore(ctx, databaseURL, opts...)
	}
	return nil, fmt.Errorf("%w: unknown store backend %q", ErrInvalidInput, backend)
}
