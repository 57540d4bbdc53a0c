package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TxFromContext retrieves the transaction started by WithTx or RunInTx.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(DBTxKey).(pgx.Tx)
	return tx
}

// WithTx begins a transaction on the request's organization-scoped
// connection and returns a context carrying it.
func WithTx(ctx context.Context) (context.Context, pgx.Tx, error) {
	conn := ConnFromContext(ctx)
	if conn == nil {
		return ctx, nil, errors.New("no database connection in context")
	}
	tx, err := conn.Begin(ctx)
	if err != nil {
		return ctx, nil, fmt.Errorf("begin transaction: %w", err)
	}
	return context.WithValue(ctx, DBTxKey, tx), tx, nil
}

// RunInTx runs fn inside a single transaction. An enclosing transaction in
// ctx is reused. Otherwise the transaction is opened on the request
// connection, or on a pool connection scoped with SET LOCAL to the
// organization in ctx. fn's error rolls everything back.
func RunInTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context) error) error {
	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	var (
		txCtx context.Context
		tx    pgx.Tx
		err   error
	)
	if ConnFromContext(ctx) != nil {
		txCtx, tx, err = WithTx(ctx)
		if err != nil {
			return err
		}
	} else {
		if pool == nil {
			return errors.New("no database connection in context")
		}
		tx, err = pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		if orgID := OrganizationFromContext(ctx); orgID != uuid.Nil {
			if _, err := tx.Exec(ctx, "SELECT set_config($1, $2, true)", OrganizationSetting, orgID.String()); err != nil {
				_ = tx.Rollback(ctx)
				return fmt.Errorf("scope transaction: %w", err)
			}
		}
		txCtx = context.WithValue(ctx, DBTxKey, tx)
	}

	if err := fn(txCtx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
