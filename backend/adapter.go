// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package backend holds one adapter per supported database engine. An
// adapter knows the engine's placeholder syntax, how declared types map to
// the values its driver exchanges, how generated identifiers are read back
// and which driver errors are constraint violations.
package backend

import (
	"database/sql/driver"
	"reflect"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/canonical/typedsql/internal/codec"
)

// IDRetrieval is the mechanism an engine offers to read back the
// identifier generated by an insert.
type IDRetrieval int

const (
	// NoGeneratedID means generated identifiers cannot be read back.
	NoGeneratedID IDRetrieval = iota
	// LastInsertID reads the identifier from sql.Result.LastInsertId.
	LastInsertID
	// Returning means the statement itself returns the identifier as a
	// single integer column (RETURNING or OUTPUT INSERTED).
	Returning
)

func (r IDRetrieval) String() string {
	switch r {
	case LastInsertID:
		return "last-insert-id"
	case Returning:
		return "returning"
	}
	return "none"
}

// Capabilities describe the optional features of an engine.
type Capabilities struct {
	GeneratedID IDRetrieval
	// AtomicGeneratedID is true when the identifier read back is the one
	// generated by the same statement, regardless of other sessions.
	AtomicGeneratedID bool
}

// Adapter is the engine specific half of a typed call.
type Adapter interface {
	// Name identifies the engine in logs and errors.
	Name() string

	// Placeholder returns the placeholder text for the parameter with the
	// given 1-based position and name.
	Placeholder(n int, name string) string
	// Arg wraps an encoded value for the driver.
	Arg(n int, name string, v any) any
	// Numbered reports whether a placeholder may be referenced more than once.
	Numbered() bool

	// Encode validates v against t and converts it to a driver value.
	Encode(v any, t codec.Type) (any, error)
	// Decode converts a value read from the driver into the canonical value
	// of t.
	Decode(src any, t codec.Type) (any, error)

	Capabilities() Capabilities

	// CheckDriver returns an error if d is not a driver of this engine.
	CheckDriver(d driver.Driver) error
	// CheckConn returns an error if dc is not a driver connection of this
	// engine.
	CheckConn(dc any) error

	// IsConstraintViolation reports whether err is the engine reporting a
	// violated constraint (unique, foreign key, not null or check).
	IsConstraintViolation(err error) bool
}

// adapter is the common implementation of the variants. Each variant only
// fills in what differs between engines.
type adapter struct {
	name  string
	codec codec.Codec
	caps  Capabilities

	placeholder func(n int, name string) string
	arg         func(n int, name string, v any) any
	numbered    bool

	isDriver   func(d driver.Driver) bool
	isConn     func(dc any) bool
	constraint func(err error) bool
}

var _ Adapter = (*adapter)(nil)

func (a *adapter) Name() string {
	return a.name
}

func (a *adapter) Placeholder(n int, name string) string {
	return a.placeholder(n, name)
}

func (a *adapter) Arg(n int, name string, v any) any {
	if a.arg == nil {
		return v
	}
	return a.arg(n, name, v)
}

func (a *adapter) Numbered() bool {
	return a.numbered
}

func (a *adapter) Encode(v any, t codec.Type) (any, error) {
	return a.codec.Encode(v, t)
}

func (a *adapter) Decode(src any, t codec.Type) (any, error) {
	return a.codec.Decode(src, t)
}

func (a *adapter) Capabilities() Capabilities {
	return a.caps
}

func (a *adapter) CheckDriver(d driver.Driver) error {
	if d == nil || !a.isDriver(d) {
		return errors.Errorf("%s adapter cannot use driver %T", a.name, d)
	}
	return nil
}

func (a *adapter) CheckConn(dc any) error {
	if dc == nil || !a.isConn(dc) {
		return errors.Errorf("%s adapter cannot use driver connection %T", a.name, dc)
	}
	return nil
}

func (a *adapter) IsConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	return a.constraint(err)
}

// fromPackage reports whether v is, or points to, a type declared in the
// package with the given import path. It identifies drivers whose types are
// not exported.
func fromPackage(v any, path string) bool {
	t := reflect.TypeOf(v)
	if t == nil {
		return false
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.PkgPath() == path
}

var constructors = map[string]func() Adapter{
	"sqlite":     SQLite,
	"sqlite3":    SQLite,
	"dqlite":     DQLite,
	"mysql":      MySQL,
	"postgres":   Postgres,
	"postgresql": Postgres,
	"pgx":        Postgres,
	"sqlserver":  SQLServer,
	"mssql":      SQLServer,
}

// ForName returns the adapter for a configured engine name. Names are case
// insensitive.
func ForName(name string) (Adapter, error) {
	newAdapter, ok := constructors[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, errors.Errorf("unknown backend %q, need one of %s", name, strings.Join(Names(), ", "))
	}
	return newAdapter(), nil
}

// Names returns the accepted engine names, sorted.
func Names() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
