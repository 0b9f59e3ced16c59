// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package backend

import (
	"database/sql/driver"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"

	"github.com/canonical/typedsql/internal/codec"
)

// MySQL server errors that report a violated constraint.
var mysqlConstraintErrors = map[uint16]bool{
	1048: true, // ER_BAD_NULL_ERROR
	1062: true, // ER_DUP_ENTRY
	1451: true, // ER_ROW_IS_REFERENCED_2
	1452: true, // ER_NO_REFERENCED_ROW_2
	3819: true, // ER_CHECK_CONSTRAINT_VIOLATED
}

// MySQL returns the adapter for github.com/go-sql-driver/mysql. UUIDs are
// stored as BINARY(16) and timestamps are sent in UTC with microsecond
// precision, the finest DATETIME(6) keeps. Without parseTime=true in the
// DSN timestamps arrive as text and are parsed in UTC.
func MySQL() Adapter {
	return &adapter{
		name: "mysql",
		codec: codec.Codec{
			Encoders: map[codec.Kind]func(any) (any, error){
				codec.Time: func(v any) (any, error) {
					return v.(time.Time).UTC().Truncate(time.Microsecond), nil
				},
			},
			TimeLayouts: []string{
				"2006-01-02 15:04:05.999999",
				"2006-01-02",
			},
		},
		caps: Capabilities{GeneratedID: LastInsertID, AtomicGeneratedID: true},
		placeholder: func(int, string) string {
			return "?"
		},
		isDriver: func(d driver.Driver) bool {
			_, ok := d.(*mysql.MySQLDriver)
			return ok
		},
		isConn: func(dc any) bool {
			return fromPackage(dc, "github.com/go-sql-driver/mysql")
		},
		constraint: func(err error) bool {
			var me *mysql.MySQLError
			return errors.As(err, &me) && mysqlConstraintErrors[me.Number]
		},
	}
}
