// Package store provides typed access to the SQLite schema. All queries
// use explicit column lists so row scanning stays in lockstep with the
// migrations in internal/database.
package store

import (
	"context"
	"database/sql"
	"fmt"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries holds a handle to either a database or an open transaction.
type Queries struct {
	db DBTX
}

// New creates a query handle backed by db.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a query handle bound to tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// ExecTx begins a transaction on db, runs fn with a transaction-bound
// handle, and commits. Any error from fn rolls the transaction back.
func ExecTx(ctx context.Context, db *sql.DB, q *Queries, fn func(*Queries) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(q.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx error: %w, rollback error: %v", err, rbErr)
		}
		return err
	}

	return tx.Commit()
}

func lastInsertID(res sql.Result) (int64, error) {
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}
