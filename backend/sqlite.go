// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package backend

import (
	"database/sql"
	"database/sql/driver"
	"time"

	dqlite "github.com/canonical/go-dqlite/driver"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/canonical/typedsql/internal/codec"
)

// sqliteConstraint is the primary result code SQLITE_CONSTRAINT. Extended
// codes keep it in their low byte.
const sqliteConstraint = 19

// sqliteCodec stores timestamps as UTC text and UUIDs as 16 byte blobs.
func sqliteCodec() codec.Codec {
	return codec.Codec{
		Encoders: map[codec.Kind]func(any) (any, error){
			codec.Time: func(v any) (any, error) {
				return v.(time.Time).UTC().Format(sqlite3.SQLiteTimestampFormats[0]), nil
			},
		},
		TimeLayouts: sqlite3.SQLiteTimestampFormats,
	}
}

// SQLite returns the adapter for github.com/mattn/go-sqlite3. Parameters
// are passed by name.
func SQLite() Adapter {
	return &adapter{
		name:  "sqlite",
		codec: sqliteCodec(),
		caps:  Capabilities{GeneratedID: LastInsertID, AtomicGeneratedID: true},
		placeholder: func(_ int, name string) string {
			return "@" + name
		},
		arg: func(_ int, name string, v any) any {
			return sql.Named(name, v)
		},
		numbered: true,
		isDriver: func(d driver.Driver) bool {
			_, ok := d.(*sqlite3.SQLiteDriver)
			return ok
		},
		isConn: func(dc any) bool {
			_, ok := dc.(*sqlite3.SQLiteConn)
			return ok
		},
		constraint: func(err error) bool {
			var se sqlite3.Error
			return errors.As(err, &se) && se.Code == sqlite3.ErrConstraint
		},
	}
}

// DQLite returns the adapter for the dqlite driver from
// github.com/canonical/go-dqlite. It shares the SQLite type mapping but
// binds parameters positionally.
func DQLite() Adapter {
	return &adapter{
		name:  "dqlite",
		codec: sqliteCodec(),
		caps:  Capabilities{GeneratedID: LastInsertID, AtomicGeneratedID: true},
		placeholder: func(int, string) string {
			return "?"
		},
		isDriver: func(d driver.Driver) bool {
			_, ok := d.(*dqlite.Driver)
			return ok
		},
		isConn: func(dc any) bool {
			_, ok := dc.(*dqlite.Conn)
			return ok
		},
		constraint: func(err error) bool {
			var de dqlite.Error
			return errors.As(err, &de) && de.Code&0xff == sqliteConstraint
		},
	}
}
