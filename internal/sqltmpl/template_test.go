// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqltmpl_test

import (
	"testing"

	. "gopkg.in/check.v1"

	"github.com/canonical/typedsql/internal/sqltmpl"
)

// Hook up gocheck into the "go test" runner.
func TestTemplate(t *testing.T) { TestingT(t) }

type templateSuite struct{}

var _ = Suite(&templateSuite{})

var parseTests = []struct {
	summary  string
	sql      string
	names    []string
	expected string
}{{
	"no parameters",
	"SELECT author_id, name FROM authors ORDER BY name",
	nil,
	"Template[Bypass[SELECT author_id, name FROM authors ORDER BY name]]",
}, {
	"named parameter",
	"SELECT name FROM authors WHERE author_id = $id",
	[]string{"id"},
	"Template[Bypass[SELECT name FROM authors WHERE author_id = ] Param[0:id]]",
}, {
	"named parameters out of declaration order",
	"UPDATE books SET isbn = $isbn WHERE book_id = $book_id",
	[]string{"book_id", "isbn"},
	"Template[Bypass[UPDATE books SET isbn = ] Param[1:isbn] Bypass[ WHERE book_id = ] Param[0:book_id]]",
}, {
	"repeated parameter",
	"SELECT * FROM t WHERE a = $x OR b = $x",
	[]string{"x"},
	"Template[Bypass[SELECT * FROM t WHERE a = ] Param[0:x] Bypass[ OR b = ] Param[0:x]]",
}, {
	"positional parameters",
	"SELECT * FROM books WHERE title = ? AND year > ?",
	[]string{"title", "year"},
	"Template[Bypass[SELECT * FROM books WHERE title = ] Param[0:title] Bypass[ AND year > ] Param[1:year]]",
}, {
	"parameter markers inside literals are ignored",
	"SELECT '$id', 'what?', \"$col\", `?` FROM t WHERE a = $id",
	[]string{"id"},
	"Template[Bypass[SELECT '$id', 'what?', \"$col\", `?` FROM t WHERE a = ] Param[0:id]]",
}, {
	"doubled quotes inside literal",
	"SELECT 'it''s $id' FROM t WHERE a = $id",
	[]string{"id"},
	"Template[Bypass[SELECT 'it''s $id' FROM t WHERE a = ] Param[0:id]]",
}, {
	"parameter markers inside comments are ignored",
	"SELECT a -- where a = $id?\nFROM t /* $id */ WHERE a = $id",
	[]string{"id"},
	"Template[Bypass[SELECT a -- where a = $id?\nFROM t /* $id */ WHERE a = ] Param[0:id]]",
}, {
	"numbered placeholders pass through",
	"SELECT $1, a - b / 2",
	nil,
	"Template[Bypass[SELECT $1, a - b / 2]]",
}}

func (s *templateSuite) TestParse(c *C) {
	for i, t := range parseTests {
		c.Logf("test %d: %s", i, t.summary)
		tmpl, err := sqltmpl.Parse(t.sql, t.names)
		c.Assert(err, IsNil)
		c.Check(tmpl.String(), Equals, t.expected)
	}
}

func (s *templateSuite) TestParsePositionalFlag(c *C) {
	tmpl, err := sqltmpl.Parse("SELECT ? + ?", []string{"a", "b"})
	c.Assert(err, IsNil)
	c.Assert(tmpl.Positional, Equals, true)
	c.Assert(tmpl.Occurrences(), Equals, 2)

	tmpl, err = sqltmpl.Parse("SELECT $a + $a", []string{"a"})
	c.Assert(err, IsNil)
	c.Assert(tmpl.Positional, Equals, false)
	c.Assert(tmpl.Occurrences(), Equals, 2)
}

func (s *templateSuite) TestParseErrors(c *C) {
	tests := []struct {
		summary string
		sql     string
		names   []string
		err     string
	}{{
		summary: "undeclared parameter",
		sql:     "SELECT * FROM t WHERE a = $id",
		names:   nil,
		err:     `cannot parse statement: column 27: parameter \$id not declared`,
	}, {
		summary: "unreferenced parameter",
		sql:     "SELECT * FROM t WHERE a = $id",
		names:   []string{"id", "name"},
		err:     `cannot parse statement: parameter "name" not referenced`,
	}, {
		summary: "too many placeholders",
		sql:     "SELECT ?, ?",
		names:   []string{"a"},
		err:     `cannot parse statement: column 11: more "\?" placeholders than the 1 declared parameters`,
	}, {
		summary: "mixed styles",
		sql:     "SELECT $a,\n ?",
		names:   []string{"a", "b"},
		err:     `cannot parse statement: line 2, column 2: cannot mix \$name and "\?" parameters`,
	}, {
		summary: "duplicate declaration",
		sql:     "SELECT $a",
		names:   []string{"a", "a"},
		err:     `cannot parse statement: parameter "a" declared twice`,
	}, {
		summary: "unterminated string",
		sql:     "SELECT 'abc FROM t",
		err:     `cannot parse statement: column 8: unterminated string literal`,
	}, {
		summary: "unterminated identifier",
		sql:     "SELECT \"abc FROM t",
		err:     `cannot parse statement: column 8: unterminated quoted identifier`,
	}, {
		summary: "unterminated comment",
		sql:     "SELECT 1 /* $a",
		names:   []string{"a"},
		err:     `cannot parse statement: column 10: unterminated comment`,
	}}
	for i, t := range tests {
		c.Logf("test %d: %s", i, t.summary)
		_, err := sqltmpl.Parse(t.sql, t.names)
		c.Check(err, ErrorMatches, t.err)
	}
}

func (s *templateSuite) TestSplit(c *C) {
	script := `
-- authors; and books
CREATE TABLE authors (
	author_id INTEGER PRIMARY KEY,
	name TEXT NOT NULL DEFAULT 'a;b'
);

CREATE TABLE "odd;name" (id INTEGER);
/* trailing; */
`
	stmts, err := sqltmpl.Split(script)
	c.Assert(err, IsNil)
	c.Assert(stmts, DeepEquals, []string{
		"-- authors; and books\nCREATE TABLE authors (\n\tauthor_id INTEGER PRIMARY KEY,\n\tname TEXT NOT NULL DEFAULT 'a;b'\n)",
		`CREATE TABLE "odd;name" (id INTEGER)`,
	})

	_, err = sqltmpl.Split("SELECT 'oops;")
	c.Assert(err, ErrorMatches, "cannot split script: column 8: unterminated string literal")
}
