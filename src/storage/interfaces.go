package storage

import (
	"context"
	"database/sql"

	"github.com/georgysavva/scany/v2/sqlscan"
)

// Execer is the write half of a database handle. Both *sql.DB and *sql.Tx
// satisfy it, so writes can run inside or outside a transaction.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ExecQuerier reads and writes through a single handle.
type ExecQuerier interface {
	Execer
	sqlscan.Querier
}
