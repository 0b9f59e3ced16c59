// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package codec

import (
	"database/sql/driver"
	"encoding/json"
	"math"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/canonical/typedsql/internal/errs"
)

// maxUnwrap bounds the number of pointer and driver.Valuer indirections
// followed when looking for the underlying value of an argument.
const maxUnwrap = 8

// Canonical checks that v can be supplied where t is declared and returns
// it in the canonical Go form of t.Kind:
//
//	String  string
//	Int     int64
//	Float   float64
//	Bool    bool
//	Bytes   []byte
//	Time    time.Time
//	UUID    uuid.UUID
//	Decimal decimal.Decimal
//	JSON    json.RawMessage
//
// A nil result stands for NULL and is only returned for nullable types.
func Canonical(v any, t Type) (any, error) {
	v, null, err := unwrap(v)
	if err != nil {
		return nil, err
	}
	if null {
		if t.Nullable {
			return nil, nil
		}
		return nil, errs.Newf(errs.TypeMismatch, "need %s, got null", t.Kind)
	}
	cv, ok := canonical(v, t.Kind)
	if !ok {
		return nil, errs.Newf(errs.TypeMismatch, "need %s, got %T", t.Kind, v)
	}
	return cv, nil
}

// unwrap follows pointers and driver.Valuer implementations until it
// reaches a plain value. Types the codec knows directly are not unwrapped
// even though some of them implement driver.Valuer.
func unwrap(v any) (any, bool, error) {
	for i := 0; i < maxUnwrap; i++ {
		if v == nil {
			return nil, true, nil
		}
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				return nil, true, nil
			}
			v = rv.Elem().Interface()
			continue
		}
		switch v.(type) {
		case time.Time, uuid.UUID, decimal.Decimal, json.RawMessage, []byte:
			return v, false, nil
		}
		if valuer, ok := v.(driver.Valuer); ok {
			nv, err := valuer.Value()
			if err != nil {
				return nil, false, errs.Newf(errs.TypeMismatch, "cannot get value of %T: %s", v, err)
			}
			v = nv
			continue
		}
		return v, false, nil
	}
	return nil, false, errs.Newf(errs.TypeMismatch, "cannot unwrap value of type %T", v)
}

func canonical(v any, k Kind) (any, bool) {
	rv := reflect.ValueOf(v)
	switch k {
	case String:
		if rv.Kind() == reflect.String {
			return rv.String(), true
		}
	case Int:
		return intValue(rv)
	case Float:
		switch {
		case isFloat(rv.Kind()):
			return rv.Float(), true
		case isInt(rv.Kind()) || isUint(rv.Kind()):
			i, ok := intValue(rv)
			if !ok {
				return nil, false
			}
			return float64(i.(int64)), true
		}
	case Bool:
		if rv.Kind() == reflect.Bool {
			return rv.Bool(), true
		}
	case Bytes:
		if isByteSlice(rv) {
			b := rv.Bytes()
			if b == nil {
				b = []byte{}
			}
			return b, true
		}
	case Time:
		if t, ok := v.(time.Time); ok {
			return t, true
		}
	case UUID:
		switch x := v.(type) {
		case uuid.UUID:
			return x, true
		case [16]byte:
			return uuid.UUID(x), true
		case []byte:
			u, err := uuid.FromBytes(x)
			return u, err == nil
		case string:
			u, err := uuid.Parse(x)
			return u, err == nil
		}
	case Decimal:
		switch x := v.(type) {
		case decimal.Decimal:
			return x, true
		case string:
			d, err := decimal.NewFromString(x)
			return d, err == nil
		}
		switch {
		case isInt(rv.Kind()) || isUint(rv.Kind()):
			i, ok := intValue(rv)
			if !ok {
				return nil, false
			}
			return decimal.NewFromInt(i.(int64)), true
		case isFloat(rv.Kind()):
			return decimal.NewFromFloat(rv.Float()), true
		}
	case JSON:
		var raw []byte
		switch {
		case isByteSlice(rv):
			raw = rv.Bytes()
		case rv.Kind() == reflect.String:
			raw = []byte(rv.String())
		default:
			return nil, false
		}
		if !json.Valid(raw) {
			return nil, false
		}
		return json.RawMessage(raw), true
	}
	return nil, false
}

func intValue(rv reflect.Value) (any, bool) {
	switch {
	case isInt(rv.Kind()):
		return rv.Int(), true
	case isUint(rv.Kind()):
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, false
		}
		return int64(u), true
	}
	return nil, false
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

func isByteSlice(rv reflect.Value) bool {
	return rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8
}
