// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package rowmap decodes a raw result row and assigns it positionally to
// the fields of a typed record.
package rowmap

import (
	"database/sql"
	"encoding/json"
	"math"
	"reflect"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/canonical/typedsql/internal/codec"
	"github.com/canonical/typedsql/internal/errs"
)

// Column is a declared result column.
type Column struct {
	Name string
	Type codec.Type
}

// Decoder converts a value read from the driver into a canonical value.
type Decoder interface {
	Decode(src any, t codec.Type) (any, error)
}

// Map decodes raw against cols and stores the values through targets, which
// must be pointers in column order. Every column is decoded before any
// target is written, so a failed row leaves the targets untouched.
func Map(raw []any, cols []Column, dec Decoder, targets []any) error {
	if len(raw) != len(cols) {
		return errs.Newf(errs.ColumnCountMismatch, "row has %d columns, need %d", len(raw), len(cols))
	}
	if len(targets) != len(cols) {
		return errs.Newf(errs.ColumnCountMismatch, "record has %d fields, need %d", len(targets), len(cols))
	}

	values := make([]any, len(cols))
	for i, col := range cols {
		v, err := dec.Decode(raw[i], col.Type)
		if err != nil {
			return errs.Newf(errs.TypeMismatch, "column %q: %s", col.Name, detail(err))
		}
		values[i] = v
	}

	dests := make([]reflect.Value, len(cols))
	for i, col := range cols {
		if _, ok := targets[i].(*any); ok {
			continue
		}
		dv := reflect.ValueOf(targets[i])
		if dv.Kind() != reflect.Pointer || dv.IsNil() {
			return errs.Newf(errs.TypeMismatch, "column %q: need non-nil pointer target, got %T", col.Name, targets[i])
		}
		dests[i] = dv.Elem()
	}
	// Assign into scratch values first so that a failure leaves the
	// targets untouched.
	scratch := make([]reflect.Value, len(cols))
	for i, col := range cols {
		if ap, ok := targets[i].(*any); ok {
			scratch[i] = reflect.ValueOf(ap).Elem()
			continue
		}
		s := reflect.New(dests[i].Type()).Elem()
		if err := assign(s, values[i]); err != nil {
			return errs.Newf(errs.TypeMismatch, "column %q: %s", col.Name, err)
		}
		scratch[i] = s
	}
	for i := range cols {
		if ap, ok := targets[i].(*any); ok {
			*ap = values[i]
			continue
		}
		dests[i].Set(scratch[i])
	}
	return nil
}

func assign(dest reflect.Value, v any) error {
	if v == nil {
		switch dest.Kind() {
		case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
			dest.Set(reflect.Zero(dest.Type()))
			return nil
		}
		if dest.Addr().Type().Implements(scannerType) {
			return dest.Addr().Interface().(sql.Scanner).Scan(nil)
		}
		return errors.Errorf("cannot store null in %s", dest.Type())
	}

	sv := reflect.ValueOf(v)
	if sv.Type().AssignableTo(dest.Type()) {
		dest.Set(sv)
		return nil
	}
	if dest.Kind() == reflect.Pointer {
		elem := reflect.New(dest.Type().Elem())
		if err := assign(elem.Elem(), v); err != nil {
			return err
		}
		dest.Set(elem)
		return nil
	}
	if ok := convert(dest, sv); ok {
		return nil
	}
	if dest.Addr().Type().Implements(scannerType) {
		return dest.Addr().Interface().(sql.Scanner).Scan(scanValue(v))
	}
	return errors.Errorf("cannot store %T in %s", v, dest.Type())
}

// convert handles named types of the same kind and range checked numeric
// narrowing.
func convert(dest, sv reflect.Value) bool {
	switch {
	case dest.Kind() == sv.Kind() && dest.Kind() != reflect.Struct && dest.Kind() != reflect.Array && sv.Type().ConvertibleTo(dest.Type()):
		if isInt(dest.Kind()) || isFloat(dest.Kind()) {
			break
		}
		dest.Set(sv.Convert(dest.Type()))
		return true
	case sv.Kind() == reflect.Array && dest.Kind() == reflect.Array && sv.Type().ConvertibleTo(dest.Type()):
		dest.Set(sv.Convert(dest.Type()))
		return true
	}
	switch {
	case sv.Kind() == reflect.Int64 && isInt(dest.Kind()):
		i := sv.Int()
		if dest.OverflowInt(i) {
			return false
		}
		dest.SetInt(i)
		return true
	case sv.Kind() == reflect.Int64 && isUint(dest.Kind()):
		i := sv.Int()
		if i < 0 || dest.OverflowUint(uint64(i)) {
			return false
		}
		dest.SetUint(uint64(i))
		return true
	case sv.Kind() == reflect.Float64 && isFloat(dest.Kind()):
		f := sv.Float()
		if dest.Kind() == reflect.Float32 && !math.IsInf(f, 0) && dest.OverflowFloat(f) {
			return false
		}
		dest.SetFloat(f)
		return true
	}
	return false
}

// scanValue returns v in a form sql.Scanner implementations accept.
func scanValue(v any) any {
	switch x := v.(type) {
	case uuid.UUID:
		return x.String()
	case decimal.Decimal:
		return x.String()
	case json.RawMessage:
		return []byte(x)
	}
	return v
}

var scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()

func detail(err error) error {
	if e, ok := err.(*errs.Error); ok {
		return e.Err
	}
	return err
}

func isInt(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isUint(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}
