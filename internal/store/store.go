// Package store implements the Postgres-backed history and crisis stores the
// engine reads from. Queries are hand-written SQL against the schema in
// migrations/001_init.sql.
//
// Dependency rule: store imports model only. It never imports engine,
// predict, rag, ai, or api.
package store

import (
	"database/sql"
)

// Postgres holds the connection pool. The two resource files (history.go,
// crises.go) attach methods to this type. The pool must already be open and
// verified (e.g. via PingContext) before calling New.
type Postgres struct {
	pool *sql.DB
}

// New creates a Postgres store from a live connection pool.
func New(pool *sql.DB) *Postgres {
	return &Postgres{pool: pool}
}
