// Package dbexec runs the read queries compiled by the planner.
package dbexec

import (
	"context"
	"database/sql"
	"time"
)

// Rows abstracts sql.Rows so executors can attach cleanup to Close.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// QueryExecutor runs a read query.
type QueryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...any) (Rows, error)
}

// StandardExecutor executes queries directly against a database handle.
// A positive timeout bounds each query, including the time spent reading
// its rows.
type StandardExecutor struct {
	db      *sql.DB
	timeout time.Duration
}

// Option configures a StandardExecutor.
type Option func(*StandardExecutor)

// WithQueryTimeout bounds every query by d. Zero or negative disables it.
func WithQueryTimeout(d time.Duration) Option {
	return func(e *StandardExecutor) {
		e.timeout = d
	}
}

// NewStandardExecutor creates an executor that runs queries directly against the database.
func NewStandardExecutor(db *sql.DB, opts ...Option) *StandardExecutor {
	e := &StandardExecutor{db: db}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *StandardExecutor) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	if e.db == nil {
		return nil, sql.ErrConnDone
	}
	if e.timeout <= 0 {
		return e.db.QueryContext(ctx, query, args...)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		cancel()
		return nil, err
	}
	return &deadlineRows{Rows: rows, cancel: cancel}, nil
}

// deadlineRows releases the query deadline once the rows are closed.
type deadlineRows struct {
	*sql.Rows
	cancel context.CancelFunc
}

func (r *deadlineRows) Close() error {
	defer r.cancel()
	return r.Rows.Close()
}
