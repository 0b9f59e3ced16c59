// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package errs holds the failure kinds shared by every stage of a typed call.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kinds of failure. Every error raised by typedsql matches exactly one of
// them with errors.Is.
var (
	ArityMismatch        = errors.New("arity mismatch")
	TypeMismatch         = errors.New("type mismatch")
	ColumnCountMismatch  = errors.New("column count mismatch")
	CardinalityViolation = errors.New("cardinality violation")
	Backend              = errors.New("backend error")
	Configuration        = errors.New("configuration error")
)

// Error is a failure of a single kind, optionally attributed to the
// statement it was raised for.
type Error struct {
	Kind  error
	Query string
	Err   error
}

func (e *Error) Error() string {
	if e.Query == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Query, e.Kind, e.Err)
}

// Is reports whether target is the kind of e.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

// Unwrap returns the detail error. For Backend errors this is the driver
// error, so errors.As can reach driver specific types.
func (e *Error) Unwrap() error {
	return e.Err
}

// Newf returns an error of the given kind with a formatted detail.
func Newf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Err: errors.Errorf(format, args...)}
}

// Wrap returns err as a failure of the given kind. Errors that already
// carry a kind are returned unchanged.
func Wrap(kind error, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*Error); ok {
		return err
	}
	return &Error{Kind: kind, Err: err}
}

// WithQuery attributes err to the named statement. Errors without a kind
// are treated as Backend errors.
func WithQuery(err error, query string) error {
	if err == nil {
		return nil
	}
	e, ok := err.(*Error)
	if !ok {
		return &Error{Kind: Backend, Query: query, Err: err}
	}
	if e.Query != "" {
		return e
	}
	return &Error{Kind: e.Kind, Query: query, Err: e.Err}
}
