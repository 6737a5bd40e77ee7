package postgres

import (
	"context"
	"database/sql"
	"net"

	"github.com/lib/pq"

	"github.com/smartallotment/hub/internal/database"
	"github.com/smartallotment/hub/internal/errors"
)

type PostgresBaseRepo struct {
	db database.DB
}

func (r *PostgresBaseRepo) BeginTx(ctx context.Context) (database.Transaction, error) {
	tx, err := r.db.GetDB().BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to begin transaction", err)
	}
	return tx, nil
}

// queryCtx bounds one store operation with the configured query timeout
// so a hung connection cannot block a caller indefinitely. A zero
// timeout leaves the caller's context as-is.
func (r *PostgresBaseRepo) queryCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if t := r.db.QueryTimeout(); t > 0 {
		return context.WithTimeout(ctx, t)
	}
	return ctx, func() {}
}

func (r *PostgresBaseRepo) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	result, err := r.db.GetDB().ExecContext(ctx, query, args...)
	if err != nil {
		return nil, wrapStoreError("failed to execute query", err)
	}
	return result, nil
}

func (r *PostgresBaseRepo) Ping(ctx context.Context) error {
	ctx, cancel := r.queryCtx(ctx)
	defer cancel()
	if err := r.db.GetDB().PingContext(ctx); err != nil {
		return errors.NewTransientError("failed to ping database", err)
	}
	return nil
}

func (r *PostgresBaseRepo) Close() error {
	if err := r.db.GetDB().Close(); err != nil {
		return errors.NewDatabaseError("failed to close database", err)
	}
	return nil
}

// sliceParam adapts a string slice for use with = ANY($n).
func sliceParam(vals []string) interface{} {
	return pq.Array(vals)
}

// pq error classes that signal a retryable condition: connection
// exceptions (08xxx), insufficient resources (53xxx), operator
// intervention such as shutdown (57xxx).
func isRetryableClass(code pq.ErrorCode) bool {
	switch code.Class() {
	case "08", "53", "57":
		return true
	}
	return false
}

// wrapStoreError maps a raw driver error onto the error taxonomy:
// uniqueness violations become conflicts, connection-level failures
// become transient (retryable), everything else is a database error.
func wrapStoreError(msg string, err error) *errors.APIError {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		if pqErr.Code == "23505" {
			return errors.NewConflictError(msg, err)
		}
		if isRetryableClass(pqErr.Code) {
			return errors.NewTransientError(msg, err)
		}
		return errors.NewDatabaseError(msg, err)
	}
	if _, ok := err.(net.Error); ok {
		return errors.NewTransientError(msg, err)
	}
	if err == sql.ErrConnDone || err == context.DeadlineExceeded {
		return errors.NewTransientError(msg, err)
	}
	return errors.NewDatabaseError(msg, err)
}
