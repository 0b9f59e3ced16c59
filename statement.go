// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package typedsql

import (
	"fmt"
	"reflect"

	"github.com/canonical/typedsql/internal/bind"
	"github.com/canonical/typedsql/internal/codec"
	"github.com/canonical/typedsql/internal/errs"
	"github.com/canonical/typedsql/internal/rowmap"
	"github.com/canonical/typedsql/internal/sqltmpl"
)

// Type is the declared type of a parameter or result column.
type Type = codec.Type

// Declared types. Use [Nullable] to allow NULL.
var (
	String  = Type{Kind: codec.String}
	Int     = Type{Kind: codec.Int}
	Float   = Type{Kind: codec.Float}
	Bool    = Type{Kind: codec.Bool}
	Bytes   = Type{Kind: codec.Bytes}
	Time    = Type{Kind: codec.Time}
	UUID    = Type{Kind: codec.UUID}
	Decimal = Type{Kind: codec.Decimal}
	JSON    = Type{Kind: codec.JSON}
)

// Nullable returns the variant of t that also accepts NULL.
func Nullable(t Type) Type {
	return t.OrNull()
}

// Cardinality is the number of rows a statement is declared to produce.
type Cardinality int

const (
	// CardinalityNone statements produce no rows and report nothing.
	CardinalityNone Cardinality = iota
	// CardinalityOne statements produce at most one row.
	CardinalityOne
	// CardinalityMany statements produce any number of rows.
	CardinalityMany
	// CardinalityExec statements produce no rows and report the number of
	// affected rows and, optionally, a generated identifier.
	CardinalityExec
)

func (c Cardinality) String() string {
	switch c {
	case CardinalityNone:
		return "none"
	case CardinalityOne:
		return "one"
	case CardinalityMany:
		return "many"
	case CardinalityExec:
		return "exec"
	}
	return fmt.Sprintf("cardinality(%d)", int(c))
}

func (c Cardinality) returnsRows() bool {
	return c == CardinalityOne || c == CardinalityMany
}

// Param declares a statement parameter.
type Param struct {
	Name string
	Type Type
}

// Column declares a result column.
type Column struct {
	Name string
	Type Type
}

// Descriptor describes a statement: its SQL, the parameters it takes, the
// columns it returns and how many rows it returns.
//
// Parameters are referenced in SQL as $name, or as bare "?" in
// declaration order. The two styles cannot be mixed.
type Descriptor struct {
	Name        string
	SQL         string
	Params      []Param
	Columns     []Column
	Cardinality Cardinality
	// GeneratedID requests the identifier generated by an insert. It is
	// only valid for CardinalityExec statements.
	GeneratedID bool
}

// Record is a typed result row. Targets returns pointers to its fields in
// result column order.
type Record interface {
	Targets() []any
}

// Value is the record of single column results.
type Value[T any] struct {
	V T
}

// Targets implements [Record].
func (v *Value[T]) Targets() []any {
	return []any{&v.V}
}

// Statement is a validated [Descriptor] ready to be run with [Exec], [One],
// [Many] or [Iter]. It is immutable and safe for concurrent use.
type Statement struct {
	desc       Descriptor
	tmpl       *sqltmpl.Template
	params     []bind.Param
	columns    []rowmap.Column
	recordType reflect.Type
}

// Prepare validates desc and returns a [Statement]. Statements returning
// rows need a sample of the record they decode into, used only for its
// type and field count.
func Prepare(desc Descriptor, rowSample ...Record) (*Statement, error) {
	s, err := prepare(desc, rowSample)
	if err != nil {
		return nil, errs.WithQuery(errs.Wrap(errs.Configuration, err), desc.Name)
	}
	return s, nil
}

// MustPrepare is the same as [Prepare] except that it panics on error.
func MustPrepare(desc Descriptor, rowSample ...Record) *Statement {
	s, err := Prepare(desc, rowSample...)
	if err != nil {
		panic(err)
	}
	return s
}

func prepare(desc Descriptor, rowSample []Record) (*Statement, error) {
	if desc.Name == "" {
		return nil, errs.Newf(errs.Configuration, "statement needs a name")
	}
	switch desc.Cardinality {
	case CardinalityNone, CardinalityOne, CardinalityMany, CardinalityExec:
	default:
		return nil, errs.Newf(errs.Configuration, "unknown %s", desc.Cardinality)
	}
	if desc.GeneratedID && desc.Cardinality != CardinalityExec {
		return nil, errs.Newf(errs.Configuration, "generated id needs cardinality exec, got %s", desc.Cardinality)
	}

	s := &Statement{desc: desc}
	s.desc.Params = append([]Param(nil), desc.Params...)
	s.desc.Columns = append([]Column(nil), desc.Columns...)

	names := make([]string, len(desc.Params))
	for i, p := range desc.Params {
		if !isIdentifier(p.Name) {
			return nil, errs.Newf(errs.Configuration, "invalid parameter name %q", p.Name)
		}
		if !p.Type.Kind.Valid() {
			return nil, errs.Newf(errs.Configuration, "parameter %q has invalid type %s", p.Name, p.Type)
		}
		names[i] = p.Name
		s.params = append(s.params, bind.Param{Name: p.Name, Type: p.Type})
	}
	for _, col := range desc.Columns {
		if !col.Type.Kind.Valid() {
			return nil, errs.Newf(errs.Configuration, "column %q has invalid type %s", col.Name, col.Type)
		}
		s.columns = append(s.columns, rowmap.Column{Name: col.Name, Type: col.Type})
	}

	if desc.Cardinality.returnsRows() {
		if len(desc.Columns) == 0 {
			return nil, errs.Newf(errs.Configuration, "cardinality %s needs result columns", desc.Cardinality)
		}
		if len(rowSample) != 1 || rowSample[0] == nil {
			return nil, errs.Newf(errs.Configuration, "need one row sample, got %d", len(rowSample))
		}
		sample := rowSample[0]
		rt := reflect.TypeOf(sample)
		if rt.Kind() != reflect.Pointer || reflect.ValueOf(sample).IsNil() {
			return nil, errs.Newf(errs.Configuration, "need non-nil pointer row sample, got %s", rt)
		}
		if n := len(sample.Targets()); n != len(desc.Columns) {
			return nil, errs.Newf(errs.ColumnCountMismatch, "record %s has %d fields, need %d", rt.Elem(), n, len(desc.Columns))
		}
		s.recordType = rt.Elem()
	} else {
		if len(desc.Columns) != 0 {
			return nil, errs.Newf(errs.Configuration, "cardinality %s cannot have result columns", desc.Cardinality)
		}
		if len(rowSample) != 0 {
			return nil, errs.Newf(errs.Configuration, "cardinality %s cannot have a row sample", desc.Cardinality)
		}
	}

	tmpl, err := sqltmpl.Parse(desc.SQL, names)
	if err != nil {
		return nil, errs.Wrap(errs.Configuration, err)
	}
	s.tmpl = tmpl
	return s, nil
}

// Name returns the name of the statement.
func (s *Statement) Name() string {
	return s.desc.Name
}

// Cardinality returns the declared cardinality of the statement.
func (s *Statement) Cardinality() Cardinality {
	return s.desc.Cardinality
}

// Descriptor returns a copy of the descriptor the statement was prepared
// from.
func (s *Statement) Descriptor() Descriptor {
	d := s.desc
	d.Params = append([]Param(nil), s.desc.Params...)
	d.Columns = append([]Column(nil), s.desc.Columns...)
	return d
}

// expect checks that the statement is run through a dispatcher matching its
// cardinality and, for rows, the record type it was prepared with.
func (s *Statement) expect(dispatcher string, record reflect.Type, allowed ...Cardinality) error {
	ok := false
	for _, c := range allowed {
		ok = ok || s.desc.Cardinality == c
	}
	if !ok {
		return errs.WithQuery(errs.Newf(errs.Configuration, "cannot use %s with cardinality %s", dispatcher, s.desc.Cardinality), s.desc.Name)
	}
	if record != nil && record != s.recordType {
		return errs.WithQuery(errs.Newf(errs.Configuration, "statement decodes into %s, got %s", s.recordType, record), s.desc.Name)
	}
	return nil
}

func isIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z':
		case i > 0 && '0' <= r && r <= '9':
		default:
			return false
		}
	}
	return true
}
