// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package booktest

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/canonical/typedsql"
	"github.com/canonical/typedsql/internal/sqltmpl"
)

// SQL is the text of every statement for one engine. Parameters are
// referenced by name, so the declarations below are shared by all engines.
type SQL struct {
	ListAuthors      string
	GetAuthor        string
	CreateAuthor     string
	DeleteAuthor     string
	CreateBook       string
	GetBook          string
	BooksByTags      string
	BooksByTitleYear string
	UpdateBookISBN   string
	DeleteBook       string
	CountBooks       string
}

var authorColumns = []typedsql.Column{
	{Name: "author_id", Type: typedsql.Int},
	{Name: "name", Type: typedsql.String},
}

var bookColumns = []typedsql.Column{
	{Name: "book_id", Type: typedsql.Int},
	{Name: "author_id", Type: typedsql.Int},
	{Name: "isbn", Type: typedsql.String},
	{Name: "uuid", Type: typedsql.UUID},
	{Name: "book_type", Type: typedsql.String},
	{Name: "title", Type: typedsql.String},
	{Name: "yr", Type: typedsql.Int},
	{Name: "available", Type: typedsql.Nullable(typedsql.Time)},
	{Name: "tags", Type: typedsql.String},
	{Name: "price", Type: typedsql.Decimal},
}

// MustPrepare prepares the statements of an engine and panics on error.
func MustPrepare(text SQL) *Statements {
	st, err := Prepare(text)
	if err != nil {
		panic(err)
	}
	return st
}

// Prepare prepares the statements of an engine.
func Prepare(text SQL) (*Statements, error) {
	var st Statements
	descs := []struct {
		dest   **typedsql.Statement
		desc   typedsql.Descriptor
		sample typedsql.Record
	}{{
		dest: &st.ListAuthors,
		desc: typedsql.Descriptor{
			Name:        "ListAuthors",
			SQL:         text.ListAuthors,
			Columns:     authorColumns,
			Cardinality: typedsql.CardinalityMany,
		},
		sample: &Author{},
	}, {
		dest: &st.GetAuthor,
		desc: typedsql.Descriptor{
			Name:        "GetAuthor",
			SQL:         text.GetAuthor,
			Params:      []typedsql.Param{{Name: "author_id", Type: typedsql.Int}},
			Columns:     authorColumns,
			Cardinality: typedsql.CardinalityOne,
		},
		sample: &Author{},
	}, {
		dest: &st.CreateAuthor,
		desc: typedsql.Descriptor{
			Name:        "CreateAuthor",
			SQL:         text.CreateAuthor,
			Params:      []typedsql.Param{{Name: "name", Type: typedsql.String}},
			Cardinality: typedsql.CardinalityExec,
			GeneratedID: true,
		},
	}, {
		dest: &st.DeleteAuthor,
		desc: typedsql.Descriptor{
			Name:        "DeleteAuthor",
			SQL:         text.DeleteAuthor,
			Params:      []typedsql.Param{{Name: "author_id", Type: typedsql.Int}},
			Cardinality: typedsql.CardinalityNone,
		},
	}, {
		dest: &st.CreateBook,
		desc: typedsql.Descriptor{
			Name: "CreateBook",
			SQL:  text.CreateBook,
			Params: []typedsql.Param{
				{Name: "author_id", Type: typedsql.Int},
				{Name: "isbn", Type: typedsql.String},
				{Name: "uuid", Type: typedsql.UUID},
				{Name: "book_type", Type: typedsql.String},
				{Name: "title", Type: typedsql.String},
				{Name: "yr", Type: typedsql.Int},
				{Name: "available", Type: typedsql.Nullable(typedsql.Time)},
				{Name: "tags", Type: typedsql.String},
				{Name: "price", Type: typedsql.Decimal},
			},
			Cardinality: typedsql.CardinalityExec,
			GeneratedID: true,
		},
	}, {
		dest: &st.GetBook,
		desc: typedsql.Descriptor{
			Name:        "GetBook",
			SQL:         text.GetBook,
			Params:      []typedsql.Param{{Name: "book_id", Type: typedsql.Int}},
			Columns:     bookColumns,
			Cardinality: typedsql.CardinalityOne,
		},
		sample: &Book{},
	}, {
		dest: &st.BooksByTags,
		desc: typedsql.Descriptor{
			Name:   "BooksByTags",
			SQL:    text.BooksByTags,
			Params: []typedsql.Param{{Name: "tags", Type: typedsql.String}},
			Columns: []typedsql.Column{
				{Name: "book_id", Type: typedsql.Int},
				{Name: "title", Type: typedsql.String},
				{Name: "name", Type: typedsql.Nullable(typedsql.String)},
				{Name: "isbn", Type: typedsql.String},
				{Name: "tags", Type: typedsql.String},
			},
			Cardinality: typedsql.CardinalityMany,
		},
		sample: &BooksByTagsRow{},
	}, {
		dest: &st.BooksByTitleYear,
		desc: typedsql.Descriptor{
			Name: "BooksByTitleYear",
			SQL:  text.BooksByTitleYear,
			Params: []typedsql.Param{
				{Name: "title", Type: typedsql.String},
				{Name: "yr", Type: typedsql.Int},
			},
			Columns:     bookColumns,
			Cardinality: typedsql.CardinalityMany,
		},
		sample: &Book{},
	}, {
		dest: &st.UpdateBookISBN,
		desc: typedsql.Descriptor{
			Name: "UpdateBookISBN",
			SQL:  text.UpdateBookISBN,
			Params: []typedsql.Param{
				{Name: "title", Type: typedsql.String},
				{Name: "tags", Type: typedsql.String},
				{Name: "isbn", Type: typedsql.String},
				{Name: "book_id", Type: typedsql.Int},
			},
			Cardinality: typedsql.CardinalityNone,
		},
	}, {
		dest: &st.DeleteBook,
		desc: typedsql.Descriptor{
			Name:        "DeleteBook",
			SQL:         text.DeleteBook,
			Params:      []typedsql.Param{{Name: "book_id", Type: typedsql.Int}},
			Cardinality: typedsql.CardinalityExec,
		},
	}, {
		dest: &st.CountBooks,
		desc: typedsql.Descriptor{
			Name:        "CountBooks",
			SQL:         text.CountBooks,
			Columns:     []typedsql.Column{{Name: "count", Type: typedsql.Int}},
			Cardinality: typedsql.CardinalityOne,
		},
		sample: &typedsql.Value[int64]{},
	}}

	for _, d := range descs {
		var samples []typedsql.Record
		if d.sample != nil {
			samples = append(samples, d.sample)
		}
		s, err := typedsql.Prepare(d.desc, samples...)
		if err != nil {
			return nil, err
		}
		*d.dest = s
	}
	return &st, nil
}

// Execer runs statements without results.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ApplySchema runs each statement of a schema script in turn, for drivers
// that do not accept several statements at once.
func ApplySchema(ctx context.Context, db Execer, schema string) error {
	stmts, err := sqltmpl.Split(schema)
	if err != nil {
		return errors.Wrap(err, "cannot apply schema")
	}
	for i, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "cannot apply schema: statement %d", i+1)
		}
	}
	return nil
}
