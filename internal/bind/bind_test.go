// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package bind_test

import (
	"database/sql"
	"errors"
	"strconv"
	"testing"

	. "gopkg.in/check.v1"

	"github.com/canonical/typedsql/internal/bind"
	"github.com/canonical/typedsql/internal/codec"
	"github.com/canonical/typedsql/internal/errs"
	"github.com/canonical/typedsql/internal/sqltmpl"
)

// Hook up gocheck into the "go test" runner.
func TestBind(t *testing.T) { TestingT(t) }

type bindSuite struct{}

var _ = Suite(&bindSuite{})

type questionDialect struct{}

func (questionDialect) Placeholder(int, string) string { return "?" }
func (questionDialect) Arg(_ int, _ string, v any) any { return v }
func (questionDialect) Numbered() bool                 { return false }

type dollarDialect struct{}

func (dollarDialect) Placeholder(n int, _ string) string { return "$" + strconv.Itoa(n) }
func (dollarDialect) Arg(_ int, _ string, v any) any     { return v }
func (dollarDialect) Numbered() bool                     { return true }

type namedDialect struct{}

func (namedDialect) Placeholder(_ int, name string) string { return "@" + name }
func (namedDialect) Arg(_ int, name string, v any) any     { return sql.Named(name, v) }
func (namedDialect) Numbered() bool                        { return true }

var (
	idParam   = bind.Param{Name: "id", Type: codec.Type{Kind: codec.Int}}
	nameParam = bind.Param{Name: "name", Type: codec.Type{Kind: codec.String, Nullable: true}}
)

func names(params []bind.Param) []string {
	var ns []string
	for _, p := range params {
		ns = append(ns, p.Name)
	}
	return ns
}

func (s *bindSuite) TestBindDialects(c *C) {
	params := []bind.Param{idParam, nameParam}
	tmpl, err := sqltmpl.Parse("SELECT * FROM t WHERE a = $id OR b = $name OR c = $id", names(params))
	c.Assert(err, IsNil)
	args := []any{int32(4), "x"}

	tests := []struct {
		summary string
		dialect bind.Dialect
		sql     string
		args    []any
	}{{
		summary: "positional dialect repeats arguments",
		dialect: questionDialect{},
		sql:     "SELECT * FROM t WHERE a = ? OR b = ? OR c = ?",
		args:    []any{int64(4), "x", int64(4)},
	}, {
		summary: "numbered dialect references once",
		dialect: dollarDialect{},
		sql:     "SELECT * FROM t WHERE a = $1 OR b = $2 OR c = $1",
		args:    []any{int64(4), "x"},
	}, {
		summary: "named dialect",
		dialect: namedDialect{},
		sql:     "SELECT * FROM t WHERE a = @id OR b = @name OR c = @id",
		args:    []any{sql.Named("id", int64(4)), sql.Named("name", "x")},
	}}
	var enc codec.Codec
	for i, t := range tests {
		c.Logf("test %d: %s", i, t.summary)
		stmt, err := bind.Bind(tmpl, params, args, t.dialect, &enc)
		c.Assert(err, IsNil)
		c.Check(stmt.SQL, Equals, t.sql)
		c.Check(stmt.Args, DeepEquals, t.args)
	}
}

func (s *bindSuite) TestBindPositionalTemplate(c *C) {
	params := []bind.Param{idParam, nameParam}
	tmpl, err := sqltmpl.Parse("INSERT INTO t (id, name) VALUES (?, ?)", names(params))
	c.Assert(err, IsNil)

	var enc codec.Codec
	stmt, err := bind.Bind(tmpl, params, []any{1, nil}, dollarDialect{}, &enc)
	c.Assert(err, IsNil)
	c.Assert(stmt.SQL, Equals, "INSERT INTO t (id, name) VALUES ($1, $2)")
	c.Assert(stmt.Args, DeepEquals, []any{int64(1), nil})
}

func (s *bindSuite) TestBindLiteralsUntouched(c *C) {
	params := []bind.Param{nameParam}
	tmpl, err := sqltmpl.Parse("SELECT '$name', ? FROM t", names(params))
	c.Assert(err, IsNil)

	var enc codec.Codec
	stmt, err := bind.Bind(tmpl, params, []any{"'; DROP TABLE t; --"}, questionDialect{}, &enc)
	c.Assert(err, IsNil)
	c.Assert(stmt.SQL, Equals, "SELECT '$name', ? FROM t")
	c.Assert(stmt.Args, DeepEquals, []any{"'; DROP TABLE t; --"})
}

func (s *bindSuite) TestBindArityMismatch(c *C) {
	params := []bind.Param{idParam}
	tmpl, err := sqltmpl.Parse("SELECT $id", names(params))
	c.Assert(err, IsNil)

	var enc codec.Codec
	_, err = bind.Bind(tmpl, params, nil, questionDialect{}, &enc)
	c.Assert(err, ErrorMatches, "arity mismatch: need 1 arguments, got 0")
	c.Assert(errors.Is(err, errs.ArityMismatch), Equals, true)

	_, err = bind.Bind(tmpl, params, []any{1, 2}, questionDialect{}, &enc)
	c.Assert(err, ErrorMatches, "arity mismatch: need 1 arguments, got 2")
}

func (s *bindSuite) TestBindTypeMismatch(c *C) {
	params := []bind.Param{idParam, nameParam}
	tmpl, err := sqltmpl.Parse("SELECT $id, $name", names(params))
	c.Assert(err, IsNil)

	var enc codec.Codec
	_, err = bind.Bind(tmpl, params, []any{"1", "x"}, questionDialect{}, &enc)
	c.Assert(err, ErrorMatches, `type mismatch: parameter "id": need integer, got string`)
	c.Assert(errors.Is(err, errs.TypeMismatch), Equals, true)

	_, err = bind.Bind(tmpl, params, []any{nil, "x"}, questionDialect{}, &enc)
	c.Assert(err, ErrorMatches, `type mismatch: parameter "id": need integer, got null`)

	_, err = bind.Bind(tmpl, params, []any{1, 2}, questionDialect{}, &enc)
	c.Assert(err, ErrorMatches, `type mismatch: parameter "name": need string, got int`)
}
