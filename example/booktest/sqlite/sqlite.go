// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package sqlite holds the book catalogue statements for SQLite. Tags are
// stored as a comma separated list.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"

	"github.com/canonical/typedsql"
	"github.com/canonical/typedsql/backend"
	"github.com/canonical/typedsql/example/booktest"
)

//go:embed schema.sql
var Schema string

const bookFields = "book_id, author_id, isbn, uuid, book_type, title, yr, available, tags, price"

var Statements = booktest.MustPrepare(booktest.SQL{
	ListAuthors: `SELECT author_id, name FROM authors
ORDER BY name`,
	GetAuthor: `SELECT author_id, name FROM authors
WHERE author_id = $author_id`,
	CreateAuthor: `INSERT INTO authors (name) VALUES ($name)`,
	DeleteAuthor: `DELETE FROM authors
WHERE author_id = $author_id`,
	CreateBook: `INSERT INTO books (
  author_id, isbn, uuid, book_type, title, yr, available, tags, price
) VALUES (
  $author_id, $isbn, $uuid, $book_type, $title, $yr, $available, $tags, $price
)`,
	GetBook: `SELECT ` + bookFields + ` FROM books
WHERE book_id = $book_id`,
	BooksByTags: `SELECT
  books.book_id,
  books.title,
  authors.name,
  books.isbn,
  books.tags
FROM books
LEFT JOIN authors ON books.author_id = authors.author_id
WHERE ',' || books.tags || ',' LIKE '%,' || $tags || ',%'
ORDER BY books.book_id`,
	BooksByTitleYear: `SELECT ` + bookFields + ` FROM books
WHERE title = $title AND yr = $yr
ORDER BY book_id`,
	UpdateBookISBN: `UPDATE books
SET title = $title, tags = $tags, isbn = $isbn
WHERE book_id = $book_id`,
	DeleteBook: `DELETE FROM books
WHERE book_id = $book_id`,
	CountBooks: `SELECT COUNT(*) FROM books`,
})

// New returns the book catalogue queries on a SQLite database.
func New(db *sql.DB, opts ...typedsql.Option) (*booktest.Queries, error) {
	q, err := typedsql.New(backend.SQLite(), db, opts...)
	if err != nil {
		return nil, err
	}
	return booktest.New(q, Statements), nil
}

// CreateSchema creates the book catalogue tables.
func CreateSchema(ctx context.Context, db booktest.Execer) error {
	return booktest.ApplySchema(ctx, db, Schema)
}
