// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package backend

import (
	"database/sql/driver"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/canonical/typedsql/internal/codec"
)

// integrityConstraintViolation is the SQLSTATE class of constraint errors.
const integrityConstraintViolation = "23"

// Postgres returns the adapter for PostgreSQL through either
// github.com/jackc/pgx/v5/stdlib or github.com/lib/pq. Generated
// identifiers are read with RETURNING.
func Postgres() Adapter {
	return &adapter{
		name: "postgres",
		codec: codec.Codec{
			Encoders: map[codec.Kind]func(any) (any, error){
				codec.Time: func(v any) (any, error) {
					return v.(time.Time).UTC().Truncate(time.Microsecond), nil
				},
				codec.UUID: func(v any) (any, error) {
					return v.(uuid.UUID).String(), nil
				},
			},
			TimeLayouts: []string{
				"2006-01-02 15:04:05.999999999-07",
				"2006-01-02 15:04:05.999999999",
				"2006-01-02",
			},
		},
		caps: Capabilities{GeneratedID: Returning, AtomicGeneratedID: true},
		placeholder: func(n int, _ string) string {
			return "$" + strconv.Itoa(n)
		},
		numbered: true,
		isDriver: func(d driver.Driver) bool {
			switch d.(type) {
			case *stdlib.Driver, *pq.Driver, pq.Driver:
				return true
			}
			return false
		},
		isConn: func(dc any) bool {
			if _, ok := dc.(*stdlib.Conn); ok {
				return true
			}
			return fromPackage(dc, "github.com/lib/pq")
		},
		constraint: func(err error) bool {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) {
				return strings.HasPrefix(pgErr.Code, integrityConstraintViolation)
			}
			var pqErr *pq.Error
			if errors.As(err, &pqErr) {
				return pqErr.Code.Class() == integrityConstraintViolation
			}
			return false
		},
	}
}
