// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package mysql holds the book catalogue statements for MySQL. Tags are
// stored as a comma separated list, as FIND_IN_SET expects.
package mysql

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
WHERE author_id = $author_id
LIMIT 1`,
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
WHERE FIND_IN_SET($tags, books.tags) > 0
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

// New returns the book catalogue queries on a MySQL database.
func New(db *sql.DB, opts ...typedsql.Option) (*booktest.Queries, error) {
	q, err := typedsql.New(backend.MySQL(), db, opts...)
	if err != nil {
		return nil, err
	}
	return booktest.New(q, Statements), nil
}

// CreateSchema creates the book catalogue tables.
func CreateSchema(ctx context.Context, db booktest.Execer) error {
	return booktest.ApplySchema(ctx, db, Schema)
}
