// Package dbpkg provides helpers to make db initialization, transactions and testing easier.
package dbpkg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/go-petr/customer-ledger/pkg/errorspkg"
)

// Setup sets up connection with database.
func Setup(driver, source string) (*sql.DB, error) {
	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, err
	}

	if err = db.Ping(); err != nil {
		return nil, err
	}

	return db, nil
}

// ConfigurePool applies connection pool limits. Zero values keep the driver defaults.
func ConfigurePool(db *sql.DB, maxOpen, maxIdle int, maxLifetime time.Duration) {
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}

	if maxIdle > 0 {
		db.SetMaxIdleConns(maxIdle)
	}

	if maxLifetime > 0 {
		db.SetConnMaxLifetime(maxLifetime)
	}
}

// WithTx runs fn inside a database transaction.
//
// The transaction is committed when fn returns nil and rolled back on any
// other exit, including an error from fn, a failed commit or a panic.
func WithTx(ctx context.Context, db TxBeginner, fn func(tx SQLInterface) error) error {
	l := zerolog.Ctx(ctx)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		l.Error().Err(err).Msg("cannot begin transaction")
		return errorspkg.ErrInternal
	}

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			l.Error().Err(err).Msg("cannot rollback transaction")
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		l.Error().Err(err).Msg("cannot commit transaction")
		return errorspkg.ErrInternal
	}

	return nil
}
