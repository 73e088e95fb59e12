package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type contextKey string

const DBTxKey contextKey = "db_tx"

// TxBeginner is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx (nested
// Begin creates a savepoint).
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// TxFromContext returns the transaction started by RunInTx, or nil.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(DBTxKey).(pgx.Tx)
	return tx
}

// RunInTx begins a transaction, stores it in the context passed to fn and
// commits when fn returns nil. Any error from fn rolls the transaction back.
// Repositories pick the transaction up through TxFromContext.
func RunInTx(ctx context.Context, db TxBeginner, fn func(ctx context.Context) error) error {
	if db == nil {
		return fmt.Errorf("no database connection")
	}

	// Join an enclosing transaction instead of opening a second connection.
	if outer := TxFromContext(ctx); outer != nil {
		db = outer
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := fn(context.WithValue(ctx, DBTxKey, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
