package es

import (
	"context"
	"database/sql"
)

// DBTX is a minimal interface for database operations. It is implemented by
// both *sql.DB and *sql.Tx, so callers keep full control over transaction
// boundaries. Multi-event appends must run inside a single transaction so a
// partially written chain is never visible to readers.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Ensure standard library types implement DBTX
var (
	_ DBTX = (*sql.DB)(nil)
	_ DBTX = (*sql.Tx)(nil)
)
