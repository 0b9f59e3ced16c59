// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package booktest

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BookType is the kind of a book, stored as an enumerated string.
type BookType string

const (
	BookTypeFiction    BookType = "FICTION"
	BookTypeNonfiction BookType = "NONFICTION"
)

// Valid reports whether t is one of the known book types.
func (t BookType) Valid() bool {
	return t == BookTypeFiction || t == BookTypeNonfiction
}

// Author is a row of the authors table.
type Author struct {
	AuthorID int64
	Name     string
}

// Targets returns the fields in column order.
func (a *Author) Targets() []any {
	return []any{&a.AuthorID, &a.Name}
}

// Book is a row of the books table.
type Book struct {
	BookID    int64
	AuthorID  int64
	ISBN      string
	UUID      uuid.UUID
	BookType  BookType
	Title     string
	Year      int32
	Available sql.Null[time.Time]
	Tags      string
	Price     decimal.Decimal
}

// Targets returns the fields in column order.
func (b *Book) Targets() []any {
	return []any{
		&b.BookID, &b.AuthorID, &b.ISBN, &b.UUID, &b.BookType,
		&b.Title, &b.Year, &b.Available, &b.Tags, &b.Price,
	}
}

// BooksByTagsRow is a book matching a tag, with its author's name.
type BooksByTagsRow struct {
	BookID int64
	Title  string
	Name   sql.Null[string]
	ISBN   string
	Tags   string
}

// Targets returns the fields in column order.
func (r *BooksByTagsRow) Targets() []any {
	return []any{&r.BookID, &r.Title, &r.Name, &r.ISBN, &r.Tags}
}

// CreateBookParams holds the columns of a new book.
type CreateBookParams struct {
	AuthorID  int64
	ISBN      string
	UUID      uuid.UUID
	BookType  BookType
	Title     string
	Year      int32
	Available sql.Null[time.Time]
	Tags      string
	Price     decimal.Decimal
}

// BooksByTitleYearParams selects books by title and year.
type BooksByTitleYearParams struct {
	Title string
	Year  int32
}

// UpdateBookISBNParams holds the new title, tags and ISBN of a book.
type UpdateBookISBNParams struct {
	Title  string
	Tags   string
	ISBN   string
	BookID int64
}
