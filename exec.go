// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package typedsql

import (
	"context"
	"database/sql"
	"reflect"
	"time"

	"github.com/canonical/typedsql/backend"
	"github.com/canonical/typedsql/internal/bind"
	"github.com/canonical/typedsql/internal/codec"
	"github.com/canonical/typedsql/internal/errs"
	"github.com/canonical/typedsql/internal/rowmap"
)

// Outcome reports the effect of a statement run with [Exec].
type Outcome struct {
	RowsAffected int64
	// GeneratedID is only valid when the statement declares GeneratedID.
	GeneratedID sql.Null[int64]
}

// generatedIDColumn is the single column read back by RETURNING and
// OUTPUT INSERTED.
var generatedIDColumn = []rowmap.Column{{Name: "generated_id", Type: codec.Type{Kind: codec.Int}}}

func (q *Querier) bind(s *Statement, args []any) (*bind.Statement, error) {
	return bind.Bind(s.tmpl, s.params, args, q.adapter, q.adapter)
}

// Exec runs a statement of cardinality none or exec.
func Exec(ctx context.Context, q *Querier, s *Statement, args ...any) (outcome Outcome, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	defer func() {
		if err != nil {
			err = errs.WithQuery(err, s.desc.Name)
		}
		q.logCall(ctx, s, len(args), start, err)
	}()

	if err := s.expect("Exec", nil, CardinalityNone, CardinalityExec); err != nil {
		return Outcome{}, err
	}
	stmt, err := q.bind(s, args)
	if err != nil {
		return Outcome{}, err
	}

	if s.desc.GeneratedID {
		switch q.adapter.Capabilities().GeneratedID {
		case backend.Returning:
			return q.execReturning(ctx, stmt)
		case backend.LastInsertID:
		default:
			return Outcome{}, errs.Newf(errs.Configuration, "%s backend cannot report generated ids", q.adapter.Name())
		}
	}

	result, err := q.conn.ExecContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return Outcome{}, errs.Wrap(errs.Backend, err)
	}
	outcome.RowsAffected, err = result.RowsAffected()
	if err != nil {
		return Outcome{}, errs.Wrap(errs.Backend, err)
	}
	if s.desc.GeneratedID {
		id, err := result.LastInsertId()
		if err != nil {
			return Outcome{}, errs.Wrap(errs.Backend, err)
		}
		outcome.GeneratedID = sql.Null[int64]{V: id, Valid: true}
	}
	return outcome, nil
}

// execReturning runs a statement that returns its generated identifier as
// a single integer column. Each returned row counts as an affected row and
// the last identifier is reported.
func (q *Querier) execReturning(ctx context.Context, stmt *bind.Statement) (outcome Outcome, err error) {
	rows, err := q.conn.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return Outcome{}, errs.Wrap(errs.Backend, err)
	}
	defer func() {
		if cerr := rows.Close(); err == nil && cerr != nil {
			err = errs.Wrap(errs.Backend, cerr)
		}
	}()

	for rows.Next() {
		var raw any
		if err := rows.Scan(&raw); err != nil {
			if cols, cerr := rows.Columns(); cerr == nil && len(cols) != 1 {
				return Outcome{}, errs.Newf(errs.ColumnCountMismatch, "generated id needs 1 column, got %d", len(cols))
			}
			return Outcome{}, errs.Wrap(errs.Backend, err)
		}
		var id int64
		if err := rowmap.Map([]any{raw}, generatedIDColumn, q.adapter, []any{&id}); err != nil {
			return Outcome{}, err
		}
		outcome.RowsAffected++
		outcome.GeneratedID = sql.Null[int64]{V: id, Valid: true}
	}
	if err := rows.Err(); err != nil {
		return Outcome{}, errs.Wrap(errs.Backend, err)
	}
	return outcome, nil
}

// Iterator walks the rows of a query in the order the backend returns
// them. [Iterator.Close] must be called once iteration is finished.
type Iterator struct {
	q     *Querier
	s     *Statement
	ctx   context.Context
	rows  *sql.Rows
	raw   []any
	nargs int
	start time.Time
	err   error
	// started is set by the first call to Next.
	started bool
	// done is set once Next has returned false.
	done   bool
	closed bool
}

// Iter runs a statement of cardinality one or many and returns an
// [Iterator] over its rows.
func Iter(ctx context.Context, q *Querier, s *Statement, args ...any) *Iterator {
	return q.iter(ctx, s, args, s.expect("Iter", nil, CardinalityOne, CardinalityMany))
}

// iter runs s and returns an iterator over its rows. A non-nil pre error
// is reported by the iterator without running anything.
func (q *Querier) iter(ctx context.Context, s *Statement, args []any, pre error) *Iterator {
	if ctx == nil {
		ctx = context.Background()
	}
	it := &Iterator{q: q, s: s, ctx: ctx, nargs: len(args), start: time.Now()}
	if pre != nil {
		it.err = pre
		return it
	}

	stmt, err := q.bind(s, args)
	if err != nil {
		it.err = errs.WithQuery(err, s.desc.Name)
		return it
	}
	rows, err := q.conn.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		it.err = errs.WithQuery(errs.Wrap(errs.Backend, err), s.desc.Name)
		return it
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		it.err = errs.WithQuery(errs.Wrap(errs.Backend, err), s.desc.Name)
		return it
	}
	if len(cols) != len(s.columns) {
		rows.Close()
		it.err = errs.WithQuery(errs.Newf(errs.ColumnCountMismatch, "query returned %d columns, need %d", len(cols), len(s.columns)), s.desc.Name)
		return it
	}
	it.rows = rows
	it.raw = make([]any, len(cols))
	return it
}

// Next prepares the next row for [Iterator.Decode]. It returns false when
// there are no more rows or an error occurred, which [Iterator.Close]
// reports.
func (it *Iterator) Next() bool {
	it.started = true
	if it.err != nil || it.rows == nil || it.done {
		return false
	}
	if !it.rows.Next() {
		it.done = true
		return false
	}
	return true
}

// Decode decodes the current row into rec. On failure rec is left
// untouched.
func (it *Iterator) Decode(rec Record) error {
	if it.err != nil {
		return it.err
	}
	if !it.started {
		return errs.WithQuery(errs.Newf(errs.Configuration, "cannot call Decode before Next"), it.s.desc.Name)
	}
	if it.rows == nil || it.done {
		return errs.WithQuery(errs.Newf(errs.Configuration, "iteration ended"), it.s.desc.Name)
	}
	ptrs := make([]any, len(it.raw))
	for i := range it.raw {
		ptrs[i] = &it.raw[i]
	}
	if err := it.rows.Scan(ptrs...); err != nil {
		return errs.WithQuery(errs.Wrap(errs.Backend, err), it.s.desc.Name)
	}
	if err := rowmap.Map(it.raw, it.s.columns, it.q.adapter, rec.Targets()); err != nil {
		return errs.WithQuery(err, it.s.desc.Name)
	}
	return nil
}

// Close finishes the iteration and returns any error encountered. Close can
// be called multiple times and returns the same error.
func (it *Iterator) Close() error {
	it.started = true
	if it.closed {
		return it.err
	}
	it.closed = true
	if it.rows != nil {
		err := it.rows.Err()
		if cerr := it.rows.Close(); err == nil {
			err = cerr
		}
		it.rows = nil
		if it.err == nil && err != nil {
			it.err = errs.WithQuery(errs.Wrap(errs.Backend, err), it.s.desc.Name)
		}
	}
	it.q.logCall(it.ctx, it.s, it.nargs, it.start, it.err)
	return it.err
}

// fail records err as the result of the iteration, unless one is already
// recorded, and closes it.
func (it *Iterator) fail(err error) error {
	if it.err == nil {
		it.err = err
	}
	return it.Close()
}

// One runs a statement of cardinality one. It returns nil when the query
// returns no rows and a CardinalityViolation error when it returns more
// than one.
func One[T any, P interface {
	*T
	Record
}](ctx context.Context, q *Querier, s *Statement, args ...any) (*T, error) {
	if err := s.expect("One", recordType[T](), CardinalityOne); err != nil {
		return nil, err
	}
	it := q.iter(ctx, s, args, nil)
	if !it.Next() {
		return nil, it.Close()
	}
	var rec T
	if err := it.Decode(P(&rec)); err != nil {
		return nil, it.fail(err)
	}
	if it.Next() {
		return nil, it.fail(errs.WithQuery(errs.Newf(errs.CardinalityViolation, "query returned more than one row"), s.desc.Name))
	}
	if err := it.Close(); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Many runs a statement of cardinality many and returns its rows in
// backend order. The result is never nil.
func Many[T any, P interface {
	*T
	Record
}](ctx context.Context, q *Querier, s *Statement, args ...any) ([]T, error) {
	if err := s.expect("Many", recordType[T](), CardinalityMany); err != nil {
		return nil, err
	}
	it := q.iter(ctx, s, args, nil)
	recs := []T{}
	for it.Next() {
		var rec T
		if err := it.Decode(P(&rec)); err != nil {
			return nil, it.fail(err)
		}
		recs = append(recs, rec)
	}
	if err := it.Close(); err != nil {
		return nil, err
	}
	return recs, nil
}

func recordType[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
