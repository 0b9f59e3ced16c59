// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package errs_test

import (
	"database/sql"
	"errors"
	"testing"

	. "gopkg.in/check.v1"

	"github.com/canonical/typedsql/internal/errs"
)

// Hook up gocheck into the "go test" runner.
func TestErrs(t *testing.T) { TestingT(t) }

type errsSuite struct{}

var _ = Suite(&errsSuite{})

var kinds = []error{
	errs.ArityMismatch,
	errs.TypeMismatch,
	errs.ColumnCountMismatch,
	errs.CardinalityViolation,
	errs.Backend,
	errs.Configuration,
}

func (s *errsSuite) TestExactlyOneKind(c *C) {
	for _, kind := range kinds {
		err := errs.Newf(kind, "detail %d", 1)
		matches := 0
		for _, other := range kinds {
			if errors.Is(err, other) {
				matches++
			}
		}
		c.Check(matches, Equals, 1, Commentf("kind %v", kind))
		c.Check(errors.Is(err, kind), Equals, true)
	}
}

func (s *errsSuite) TestMessages(c *C) {
	err := errs.Newf(errs.TypeMismatch, "need %s, got %s", "integer", "string")
	c.Assert(err, ErrorMatches, "type mismatch: need integer, got string")

	err = errs.WithQuery(err, "getAuthor")
	c.Assert(err, ErrorMatches, "getAuthor: type mismatch: need integer, got string")

	// The first attribution is kept.
	err = errs.WithQuery(err, "other")
	c.Assert(err, ErrorMatches, "getAuthor: type mismatch: need integer, got string")
}

func (s *errsSuite) TestWrap(c *C) {
	c.Assert(errs.Wrap(errs.Backend, nil), IsNil)
	c.Assert(errs.WithQuery(nil, "q"), IsNil)

	err := errs.Wrap(errs.Backend, sql.ErrTxDone)
	c.Assert(err, ErrorMatches, "backend error: sql: transaction has already been committed or rolled back")
	c.Assert(errors.Is(err, errs.Backend), Equals, true)
	c.Assert(errors.Is(err, sql.ErrTxDone), Equals, true)

	// Errors that carry a kind keep it.
	kinded := errs.Newf(errs.ArityMismatch, "need 1 arguments, got 0")
	c.Assert(errs.Wrap(errs.Backend, kinded), Equals, kinded)

	// Plain errors attributed to a query are backend errors.
	err = errs.WithQuery(sql.ErrNoRows, "q")
	c.Assert(err, ErrorMatches, "q: backend error: sql: no rows in result set")
	c.Assert(errors.Is(err, errs.Backend), Equals, true)
}

type codeError struct{ code int }

func (e *codeError) Error() string { return "driver failure" }

func (s *errsSuite) TestDriverErrorReachable(c *C) {
	err := errs.WithQuery(errs.Wrap(errs.Backend, &codeError{code: 19}), "q")
	var ce *codeError
	c.Assert(errors.As(err, &ce), Equals, true)
	c.Assert(ce.code, Equals, 19)
}
