// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package bind renders a parsed statement template for one backend and
// attaches type checked arguments to it.
package bind

import (
	"bytes"

	"github.com/canonical/typedsql/internal/codec"
	"github.com/canonical/typedsql/internal/errs"
	"github.com/canonical/typedsql/internal/sqltmpl"
)

// Param is a declared parameter.
type Param struct {
	Name string
	Type codec.Type
}

// Dialect renders placeholders for one backend.
type Dialect interface {
	// Placeholder returns the placeholder text for the parameter with the
	// given 1-based position and name.
	Placeholder(n int, name string) string
	// Arg wraps an encoded value for the driver, for example with sql.Named.
	Arg(n int, name string, v any) any
	// Numbered reports whether a placeholder can be referenced more than
	// once. Positional dialects repeat the argument per occurrence instead.
	Numbered() bool
}

// Encoder converts a Go value into the value passed to the driver.
type Encoder interface {
	Encode(v any, t codec.Type) (any, error)
}

// Statement is a rendered statement with its driver arguments.
type Statement struct {
	SQL  string
	Args []any
}

// Bind checks args against params, encodes them and renders tmpl with the
// placeholders of d. Values only reach the driver as arguments.
func Bind(tmpl *sqltmpl.Template, params []Param, args []any, d Dialect, enc Encoder) (*Statement, error) {
	if len(args) != len(params) {
		return nil, errs.Newf(errs.ArityMismatch, "need %d arguments, got %d", len(params), len(args))
	}

	encoded := make([]any, len(args))
	for i, p := range params {
		v, err := enc.Encode(args[i], p.Type)
		if err != nil {
			return nil, errs.Newf(errs.TypeMismatch, "parameter %q: %s", p.Name, detail(err))
		}
		encoded[i] = v
	}

	var b sqlBuilder
	stmt := &Statement{}
	if d.Numbered() {
		for _, part := range tmpl.Parts {
			if part.Param == sqltmpl.Bypass {
				b.write(part.Text)
				continue
			}
			b.write(d.Placeholder(part.Param+1, params[part.Param].Name))
		}
		for i, p := range params {
			stmt.Args = append(stmt.Args, d.Arg(i+1, p.Name, encoded[i]))
		}
	} else {
		n := 0
		for _, part := range tmpl.Parts {
			if part.Param == sqltmpl.Bypass {
				b.write(part.Text)
				continue
			}
			n++
			name := params[part.Param].Name
			b.write(d.Placeholder(n, name))
			stmt.Args = append(stmt.Args, d.Arg(n, name, encoded[part.Param]))
		}
	}
	stmt.SQL = b.String()
	return stmt, nil
}

// detail strips the kind prefix from errors raised by the codec.
func detail(err error) error {
	if e, ok := err.(*errs.Error); ok {
		return e.Err
	}
	return err
}

// sqlBuilder is used to generate SQL string piece by piece.
type sqlBuilder struct {
	buf bytes.Buffer
}

func (b *sqlBuilder) write(s string) {
	b.buf.WriteString(s)
}

func (b *sqlBuilder) String() string {
	return b.buf.String()
}
