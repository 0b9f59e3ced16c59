// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package codec converts between Go values, the canonical value of each
// declared kind, and the values a database driver sends and receives.
package codec

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/canonical/typedsql/internal/errs"
)

// Codec is the type codec of one backend. The zero value passes canonical
// values to the driver unchanged, except for the kinds database/sql cannot
// carry natively (UUID, Decimal and JSON), and decodes with the generic
// conversions only.
type Codec struct {
	// Encoders map the canonical value of a kind to the backend native form.
	Encoders map[Kind]func(v any) (any, error)
	// Decoders turn a native value into the canonical value of a kind. They
	// run before the generic conversions and report false for values they
	// do not handle.
	Decoders map[Kind]func(src any) (any, bool, error)
	// TimeLayouts are tried in order when a timestamp arrives as text.
	TimeLayouts []string
}

// Encode validates v against t and returns the value handed to the driver.
func (c *Codec) Encode(v any, t Type) (any, error) {
	cv, err := Canonical(v, t)
	if err != nil || cv == nil {
		return nil, err
	}
	if enc, ok := c.Encoders[t.Kind]; ok {
		nv, err := enc(cv)
		if err != nil {
			return nil, errs.Wrap(errs.TypeMismatch, err)
		}
		return nv, nil
	}
	switch x := cv.(type) {
	case uuid.UUID:
		b := make([]byte, len(x))
		copy(b, x[:])
		return b, nil
	case decimal.Decimal:
		return x.String(), nil
	case json.RawMessage:
		return string(x), nil
	}
	return cv, nil
}

// Decode converts a value read from the driver into the canonical value of
// t. NULL is only accepted for nullable types and decodes to nil.
func (c *Codec) Decode(src any, t Type) (any, error) {
	if src == nil {
		if t.Nullable {
			return nil, nil
		}
		return nil, errs.Newf(errs.TypeMismatch, "need %s, got null", t.Kind)
	}
	if dec, ok := c.Decoders[t.Kind]; ok {
		v, handled, err := dec(src)
		if err != nil {
			return nil, errs.Wrap(errs.TypeMismatch, err)
		}
		if handled {
			return v, nil
		}
	}
	v, ok := fromNative(src, t.Kind, c.TimeLayouts)
	if !ok {
		return nil, errs.Newf(errs.TypeMismatch, "cannot decode %T as %s", src, t.Kind)
	}
	return v, nil
}

func fromNative(src any, k Kind, layouts []string) (any, bool) {
	switch k {
	case String:
		switch x := src.(type) {
		case string:
			return x, true
		case []byte:
			return string(x), true
		}
	case Int:
		switch x := src.(type) {
		case int64:
			return x, true
		case float64:
			if x == math.Trunc(x) && x >= math.MinInt64 && x < math.MaxInt64 {
				return int64(x), true
			}
		case []byte:
			return parseInt(string(x))
		case string:
			return parseInt(x)
		}
		return intValue(reflect.ValueOf(src))
	case Float:
		switch x := src.(type) {
		case float64:
			return x, true
		case float32:
			return float64(x), true
		case int64:
			return float64(x), true
		case []byte:
			return parseFloat(string(x))
		case string:
			return parseFloat(x)
		}
	case Bool:
		switch x := src.(type) {
		case bool:
			return x, true
		case int64:
			return x != 0, true
		case []byte:
			return parseBool(string(x))
		case string:
			return parseBool(x)
		}
	case Bytes:
		switch x := src.(type) {
		case []byte:
			b := make([]byte, len(x))
			copy(b, x)
			return b, true
		case string:
			return []byte(x), true
		}
	case Time:
		switch x := src.(type) {
		case time.Time:
			return x.UTC(), true
		case []byte:
			return parseTime(string(x), layouts)
		case string:
			return parseTime(x, layouts)
		case int64:
			return time.Unix(x, 0).UTC(), true
		}
	case UUID:
		switch x := src.(type) {
		case uuid.UUID:
			return x, true
		case [16]byte:
			return uuid.UUID(x), true
		case []byte:
			if len(x) == 16 {
				u, err := uuid.FromBytes(x)
				return u, err == nil
			}
			u, err := uuid.ParseBytes(x)
			return u, err == nil
		case string:
			u, err := uuid.Parse(x)
			return u, err == nil
		}
	case Decimal:
		switch x := src.(type) {
		case decimal.Decimal:
			return x, true
		case []byte:
			d, err := decimal.NewFromString(string(x))
			return d, err == nil
		case string:
			d, err := decimal.NewFromString(x)
			return d, err == nil
		case float64:
			return decimal.NewFromFloat(x), true
		case int64:
			return decimal.NewFromInt(x), true
		}
	case JSON:
		var raw []byte
		switch x := src.(type) {
		case []byte:
			raw = make([]byte, len(x))
			copy(raw, x)
		case string:
			raw = []byte(x)
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

func parseInt(s string) (any, bool) {
	i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return i, err == nil
}

func parseFloat(s string) (any, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f, err == nil
}

func parseBool(s string) (any, bool) {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	return b, err == nil
}

func parseTime(s string, layouts []string) (any, bool) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), true
	}
	s = strings.TrimSuffix(s, "Z")
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return nil, false
}
