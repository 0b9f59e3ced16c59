// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package codec

import (
	"fmt"
)

// Kind is a declared column or parameter type, independent of any backend.
type Kind int

const (
	Invalid Kind = iota
	String
	Int
	Float
	Bool
	Bytes
	Time
	UUID
	Decimal
	JSON
)

var kindNames = map[Kind]string{
	String:  "string",
	Int:     "integer",
	Float:   "float",
	Bool:    "boolean",
	Bytes:   "bytes",
	Time:    "timestamp",
	UUID:    "uuid",
	Decimal: "decimal",
	JSON:    "json",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// Type is a declared type: a kind plus nullability.
type Type struct {
	Kind     Kind
	Nullable bool
}

// OrNull returns the nullable variant of t.
func (t Type) OrNull() Type {
	t.Nullable = true
	return t
}

func (t Type) String() string {
	if t.Nullable {
		return "nullable<" + t.Kind.String() + ">"
	}
	return t.Kind.String()
}
