// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package booktest holds the call sites a code generator emits for the
// book catalogue schema. The SQL of each engine lives in the sqlite and
// mysql subpackages. Everything here runs unchanged on both.
package booktest

import (
	"context"
	"database/sql"

	"github.com/canonical/typedsql"
)

type Querier interface {
	ListAuthors(ctx context.Context) ([]Author, error)
	GetAuthor(ctx context.Context, authorID int64) (*Author, error)
	CreateAuthor(ctx context.Context, name string) (int64, error)
	DeleteAuthor(ctx context.Context, authorID int64) error
	CreateBook(ctx context.Context, arg CreateBookParams) (int64, error)
	GetBook(ctx context.Context, bookID int64) (*Book, error)
	BooksByTags(ctx context.Context, tags string) ([]BooksByTagsRow, error)
	BooksByTitleYear(ctx context.Context, arg BooksByTitleYearParams) ([]Book, error)
	UpdateBookISBN(ctx context.Context, arg UpdateBookISBNParams) error
	DeleteBook(ctx context.Context, bookID int64) (int64, error)
	CountBooks(ctx context.Context) (int64, error)
}

var _ Querier = (*Queries)(nil)

// Statements is the prepared SQL of one engine.
type Statements struct {
	ListAuthors      *typedsql.Statement
	GetAuthor        *typedsql.Statement
	CreateAuthor     *typedsql.Statement
	DeleteAuthor     *typedsql.Statement
	CreateBook       *typedsql.Statement
	GetBook          *typedsql.Statement
	BooksByTags      *typedsql.Statement
	BooksByTitleYear *typedsql.Statement
	UpdateBookISBN   *typedsql.Statement
	DeleteBook       *typedsql.Statement
	CountBooks       *typedsql.Statement
}

// Queries runs the statements of an engine on a querier.
type Queries struct {
	q  *typedsql.Querier
	st *Statements
}

// New returns the catalogue queries run through q with the statements st.
func New(q *typedsql.Querier, st *Statements) *Queries {
	return &Queries{q: q, st: st}
}

// WithTx returns queries running inside tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{q: q.q.WithTx(tx), st: q.st}
}

// Querier returns the underlying querier.
func (q *Queries) Querier() *typedsql.Querier {
	return q.q
}

func (q *Queries) ListAuthors(ctx context.Context) ([]Author, error) {
	return typedsql.Many[Author](ctx, q.q, q.st.ListAuthors)
}

func (q *Queries) GetAuthor(ctx context.Context, authorID int64) (*Author, error) {
	return typedsql.One[Author](ctx, q.q, q.st.GetAuthor, authorID)
}

func (q *Queries) CreateAuthor(ctx context.Context, name string) (int64, error) {
	outcome, err := typedsql.Exec(ctx, q.q, q.st.CreateAuthor, name)
	if err != nil {
		return 0, err
	}
	return outcome.GeneratedID.V, nil
}

func (q *Queries) DeleteAuthor(ctx context.Context, authorID int64) error {
	_, err := typedsql.Exec(ctx, q.q, q.st.DeleteAuthor, authorID)
	return err
}

func (q *Queries) CreateBook(ctx context.Context, arg CreateBookParams) (int64, error) {
	outcome, err := typedsql.Exec(ctx, q.q, q.st.CreateBook,
		arg.AuthorID,
		arg.ISBN,
		arg.UUID,
		arg.BookType,
		arg.Title,
		arg.Year,
		arg.Available,
		arg.Tags,
		arg.Price,
	)
	if err != nil {
		return 0, err
	}
	return outcome.GeneratedID.V, nil
}

func (q *Queries) GetBook(ctx context.Context, bookID int64) (*Book, error) {
	return typedsql.One[Book](ctx, q.q, q.st.GetBook, bookID)
}

func (q *Queries) BooksByTags(ctx context.Context, tags string) ([]BooksByTagsRow, error) {
	return typedsql.Many[BooksByTagsRow](ctx, q.q, q.st.BooksByTags, tags)
}

func (q *Queries) BooksByTitleYear(ctx context.Context, arg BooksByTitleYearParams) ([]Book, error) {
	return typedsql.Many[Book](ctx, q.q, q.st.BooksByTitleYear, arg.Title, arg.Year)
}

func (q *Queries) UpdateBookISBN(ctx context.Context, arg UpdateBookISBNParams) error {
	_, err := typedsql.Exec(ctx, q.q, q.st.UpdateBookISBN, arg.Title, arg.Tags, arg.ISBN, arg.BookID)
	return err
}

func (q *Queries) DeleteBook(ctx context.Context, bookID int64) (int64, error) {
	outcome, err := typedsql.Exec(ctx, q.q, q.st.DeleteBook, bookID)
	if err != nil {
		return 0, err
	}
	return outcome.RowsAffected, nil
}

func (q *Queries) CountBooks(ctx context.Context) (int64, error) {
	count, err := typedsql.One[typedsql.Value[int64]](ctx, q.q, q.st.CountBooks)
	if err != nil {
		return 0, err
	}
	// COUNT always returns a row.
	return count.V, nil
}
