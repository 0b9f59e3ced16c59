// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.
package typedsql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"strings"
	"sync"

	"github.com/mattn/go-sqlite3"
)

// This file contains a wrapper sql.Driver over the SQLite driver which
// counts the result sets opened and closed by each test. We can later use
// that information to check for cursor leaks. The wrapper exposes the
// SQLite driver and connections with Unwrap, like instrumenting drivers do.

// openRows and closedRows count the result sets opened and closed, indexed
// by test name. The rowsMutex must be used when accessing the counts.
var openRows = map[string]int{}
var closedRows = map[string]int{}
var rowsMutex sync.Mutex

// queriesRun counts the statements that reached the driver, indexed by test
// name.
var queriesRun = map[string]int{}

type trackedDriver struct {
	driver.Driver
}

func (d *trackedDriver) Unwrap() driver.Driver {
	return d.Driver
}

type trackedConn struct {
	testName string
	*sqlite3.SQLiteConn
}

func (c *trackedConn) Unwrap() driver.Conn {
	return c.SQLiteConn
}

type trackedRows struct {
	testName string
	closed   bool
	driver.Rows
}

func (r *trackedRows) Close() error {
	rowsMutex.Lock()
	if !r.closed {
		r.closed = true
		closedRows[r.testName]++
	}
	rowsMutex.Unlock()
	return r.Rows.Close()
}

func (c *trackedConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	rows, err := c.SQLiteConn.QueryContext(ctx, query, args)
	rowsMutex.Lock()
	defer rowsMutex.Unlock()
	queriesRun[c.testName]++
	if err != nil {
		return nil, err
	}
	openRows[c.testName]++
	return &trackedRows{testName: c.testName, Rows: rows}, nil
}

func (c *trackedConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	rowsMutex.Lock()
	queriesRun[c.testName]++
	rowsMutex.Unlock()
	return c.SQLiteConn.ExecContext(ctx, query, args)
}

const TestNameTag = "testName"

// Open expects the DSN to contain the test name using the testNameTag
// attribute.
func (d *trackedDriver) Open(name string) (driver.Conn, error) {
	var testName string
	if _, parameters, ok := strings.Cut(name, "?"); ok {
		for _, p := range strings.Split(parameters, "&") {
			if value, ok := strings.CutPrefix(p, TestNameTag+"="); ok {
				testName = value
			}
		}
	}
	if testName == "" {
		panic("internal error: testName is not found in the db DSN")
	}

	baseConn, err := d.Driver.Open(name)
	if err != nil {
		return nil, err
	}
	if baseConn, ok := baseConn.(*sqlite3.SQLiteConn); ok {
		return &trackedConn{SQLiteConn: baseConn, testName: testName}, nil
	}
	panic("internal error: base driver is not SQLite")
}

func init() {
	sql.Register("sqlite3_tracked", &trackedDriver{
		&sqlite3.SQLiteDriver{},
	})
}
