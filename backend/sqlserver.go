// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package backend

import (
	"database/sql/driver"
	"strconv"
	"time"

	"github.com/google/uuid"
	mssql "github.com/microsoft/go-mssqldb"
	"github.com/pkg/errors"

	"github.com/canonical/typedsql/internal/codec"
)

// SQL Server errors that report a violated constraint.
var sqlServerConstraintErrors = map[int32]bool{
	515:  true, // cannot insert NULL
	547:  true, // foreign key or check constraint
	2601: true, // duplicate key in unique index
	2627: true, // unique or primary key constraint
}

// SQLServer returns the adapter for github.com/microsoft/go-mssqldb.
// UUIDs travel in the mixed-endian layout of uniqueidentifier and generated
// identifiers are read with OUTPUT INSERTED.
func SQLServer() Adapter {
	return &adapter{
		name: "sqlserver",
		codec: codec.Codec{
			Encoders: map[codec.Kind]func(any) (any, error){
				codec.Time: func(v any) (any, error) {
					return v.(time.Time).UTC(), nil
				},
				codec.UUID: func(v any) (any, error) {
					return mssql.UniqueIdentifier(v.(uuid.UUID)).Value()
				},
			},
			Decoders: map[codec.Kind]func(any) (any, bool, error){
				codec.UUID: func(src any) (any, bool, error) {
					b, ok := src.([]byte)
					if !ok || len(b) != 16 {
						return nil, false, nil
					}
					var ui mssql.UniqueIdentifier
					if err := ui.Scan(b); err != nil {
						return nil, false, err
					}
					return uuid.UUID(ui), true, nil
				},
			},
			TimeLayouts: []string{
				"2006-01-02 15:04:05.9999999",
				"2006-01-02",
			},
		},
		caps: Capabilities{GeneratedID: Returning, AtomicGeneratedID: true},
		placeholder: func(n int, _ string) string {
			return "@p" + strconv.Itoa(n)
		},
		numbered: true,
		isDriver: func(d driver.Driver) bool {
			_, ok := d.(*mssql.Driver)
			return ok
		},
		isConn: func(dc any) bool {
			_, ok := dc.(*mssql.Conn)
			return ok
		},
		constraint: func(err error) bool {
			var se mssql.Error
			return errors.As(err, &se) && sqlServerConstraintErrors[se.Number]
		},
	}
}
