// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package typedsql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/canonical/typedsql/backend"
	"github.com/canonical/typedsql/internal/errs"
)

// Kinds of failure. Every error returned by typedsql matches exactly one of
// them with errors.Is. Backend errors unwrap to the driver error.
var (
	ErrArityMismatch        = errs.ArityMismatch
	ErrTypeMismatch         = errs.TypeMismatch
	ErrColumnCountMismatch  = errs.ColumnCountMismatch
	ErrCardinalityViolation = errs.CardinalityViolation
	ErrBackend              = errs.Backend
	ErrConfiguration        = errs.Configuration
)

// ErrTXDone is reached through the Backend error returned when a finished
// transaction is committed or rolled back.
var ErrTXDone = sql.ErrTxDone

// Conn is a live database handle: a [sql.DB], [sql.Conn] or [sql.Tx]. It is
// owned by the caller and never opened, pooled or closed by typedsql.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Querier runs statements on a connection through a backend adapter.
type Querier struct {
	adapter backend.Adapter
	conn    Conn
	logger  *slog.Logger
}

// Option configures a [Querier].
type Option func(*Querier)

// WithLogger sets the logger calls are reported to at debug level.
// Argument values are never logged.
func WithLogger(logger *slog.Logger) Option {
	return func(q *Querier) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// New returns a [Querier] running statements on conn with adapter. The
// driver behind a [sql.DB] or [sql.Conn] is checked against the adapter.
// A [sql.Tx] cannot be inspected, use [Querier.WithTx] instead.
func New(adapter backend.Adapter, conn Conn, opts ...Option) (*Querier, error) {
	if adapter == nil {
		return nil, errs.Newf(errs.Configuration, "need backend adapter, got nil")
	}
	if conn == nil {
		return nil, errs.Newf(errs.Configuration, "need connection, got nil")
	}
	if err := checkBackend(adapter, conn); err != nil {
		return nil, errs.Wrap(errs.Configuration, err)
	}
	q := &Querier{
		adapter: adapter,
		conn:    conn,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// Backend returns the adapter of the querier.
func (q *Querier) Backend() backend.Adapter {
	return q.adapter
}

// WithTx returns a querier running statements in tx. The transaction must
// have been started on a connection of the same backend.
func (q *Querier) WithTx(tx *sql.Tx) *Querier {
	return &Querier{adapter: q.adapter, conn: tx, logger: q.logger}
}

func checkBackend(adapter backend.Adapter, conn Conn) error {
	switch c := conn.(type) {
	case interface{ Driver() driver.Driver }:
		return adapter.CheckDriver(unwrapDriver(c.Driver()))
	case *sql.Conn:
		return c.Raw(func(dc any) error {
			return adapter.CheckConn(unwrapConn(dc))
		})
	}
	return nil
}

// unwrapDriver returns the driver below any instrumenting wrappers that
// expose it with an Unwrap method.
func unwrapDriver(d driver.Driver) driver.Driver {
	for {
		u, ok := d.(interface{ Unwrap() driver.Driver })
		if !ok {
			return d
		}
		d = u.Unwrap()
	}
}

func unwrapConn(dc any) any {
	for {
		u, ok := dc.(interface{ Unwrap() driver.Conn })
		if !ok {
			return dc
		}
		dc = u.Unwrap()
	}
}

// logCall reports a finished call. Only the number of arguments is logged.
func (q *Querier) logCall(ctx context.Context, s *Statement, nargs int, start time.Time, err error) {
	attrs := []any{
		"statement", s.desc.Name,
		"backend", q.adapter.Name(),
		"args", nargs,
		"duration", time.Since(start),
	}
	if err != nil {
		q.logger.DebugContext(ctx, "statement failed", append(attrs, "error", err)...)
		return
	}
	q.logger.DebugContext(ctx, "statement run", attrs...)
}

// TX is a transaction started with [Querier.Begin]. Its embedded [Querier]
// runs statements inside the transaction. A transaction must be ended with
// [TX.Commit] or [TX.Rollback].
type TX struct {
	*Querier
	sqltx *sql.Tx
	done  int32
}

func (tx *TX) setDone() error {
	if !atomic.CompareAndSwapInt32(&tx.done, 0, 1) {
		return ErrTXDone
	}
	return nil
}

type beginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Begin starts a transaction on the connection of the querier, which must
// be a [sql.DB] or [sql.Conn].
func (q *Querier) Begin(ctx context.Context, opts *TXOptions) (*TX, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	b, ok := q.conn.(beginner)
	if !ok {
		return nil, errs.Newf(errs.Configuration, "cannot begin transaction on %T", q.conn)
	}
	sqltx, err := b.BeginTx(ctx, opts.plainTXOptions())
	if err != nil {
		return nil, errs.Wrap(errs.Backend, err)
	}
	return &TX{Querier: q.WithTx(sqltx), sqltx: sqltx}, nil
}

// Commit commits the transaction.
func (tx *TX) Commit() error {
	err := tx.setDone()
	if err == nil {
		err = tx.sqltx.Commit()
	}
	return errs.Wrap(errs.Backend, err)
}

// Rollback aborts the transaction.
func (tx *TX) Rollback() error {
	err := tx.setDone()
	if err == nil {
		err = tx.sqltx.Rollback()
	}
	return errs.Wrap(errs.Backend, err)
}

// TXOptions holds the transaction options to be used in [Querier.Begin].
type TXOptions struct {
	// Isolation is the transaction isolation level.
	// If zero, the driver or database's default level is used.
	Isolation sql.IsolationLevel
	ReadOnly  bool
}

func (txopts *TXOptions) plainTXOptions() *sql.TxOptions {
	if txopts == nil {
		return nil
	}
	return &sql.TxOptions{Isolation: txopts.Isolation, ReadOnly: txopts.ReadOnly}
}
