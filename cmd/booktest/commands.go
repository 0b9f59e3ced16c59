// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/canonical/typedsql"
	"github.com/canonical/typedsql/backend"
	"github.com/canonical/typedsql/example/booktest"
	"github.com/canonical/typedsql/example/booktest/mysql"
	"github.com/canonical/typedsql/example/booktest/sqlite"
)

var (
	success = color.New(color.FgGreen, color.Bold)
	info    = color.New(color.FgCyan)
)

func newRootCommand(fs afero.Fs) *cobra.Command {
	v := viper.New()
	root := &cobra.Command{
		Use:           "booktest",
		Short:         "Run the book catalogue statements against a database",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	flags := root.PersistentFlags()
	flags.String("backend", "", "database backend, one of "+strings.Join(backend.Names(), ", "))
	flags.String("dsn", "", "data source name passed to the driver")
	flags.String("schema", "", "schema file to apply instead of the built in one")
	flags.BoolP("verbose", "v", false, "log every statement")
	for _, name := range []string{"backend", "dsn", "schema", "verbose"} {
		if err := v.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}

	open := func(cmd *cobra.Command) (*session, error) {
		cfg, err := loadConfig(v, fs)
		if err != nil {
			return nil, err
		}
		return openSession(cmd.Context(), cfg, fs, cmd.ErrOrStderr())
	}

	root.AddCommand(newInitCommand(open), newAuthorsCommand(open), newRunCommand(open))
	return root
}

type opener func(cmd *cobra.Command) (*session, error)

// session is an open database with the statements of its backend.
type session struct {
	db      *sql.DB
	queries *booktest.Queries
	schema  string
}

func openSession(ctx context.Context, cfg *config, fs afero.Fs, logOut io.Writer) (*session, error) {
	adapter, err := backend.ForName(cfg.Backend)
	if err != nil {
		return nil, err
	}
	var driverName, schema string
	var statements *booktest.Statements
	switch adapter.Name() {
	case "sqlite":
		driverName, schema, statements = "sqlite3", sqlite.Schema, sqlite.Statements
	case "mysql":
		driverName, schema, statements = "mysql", mysql.Schema, mysql.Statements
	default:
		return nil, errors.Errorf("no book catalogue statements for the %s backend", adapter.Name())
	}
	if cfg.Schema != "" {
		data, err := afero.ReadFile(fs, cfg.Schema)
		if err != nil {
			return nil, errors.Wrap(err, "cannot read schema")
		}
		schema = string(data)
	}

	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "cannot open database")
	}
	if adapter.Name() == "sqlite" {
		// In-memory databases only live as long as their connection.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "cannot connect to database")
	}

	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: cfg.level()}))
	q, err := typedsql.New(adapter, db, typedsql.WithLogger(logger))
	if err != nil {
		db.Close()
		return nil, err
	}
	return &session{db: db, queries: booktest.New(q, statements), schema: schema}, nil
}

func (s *session) Close() error {
	return s.db.Close()
}

func (s *session) createSchema(ctx context.Context) error {
	return booktest.ApplySchema(ctx, s.db, s.schema)
}

func newInitCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the book catalogue tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.createSchema(cmd.Context()); err != nil {
				return err
			}
			success.Fprintln(cmd.OutOrStdout(), "schema created")
			return nil
		},
	}
}

func newAuthorsCommand(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authors",
		Short: "List and add authors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			return listAuthors(cmd.Context(), cmd.OutOrStdout(), s.queries)
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add NAME...",
		Short: "Add authors",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			for _, name := range args {
				id, err := s.queries.CreateAuthor(cmd.Context(), name)
				if err != nil {
					return err
				}
				success.Fprintf(cmd.OutOrStdout(), "added %s as author %d\n", name, id)
			}
			return nil
		},
	})
	return cmd
}

func listAuthors(ctx context.Context, out io.Writer, q booktest.Querier) error {
	authors, err := q.ListAuthors(ctx)
	if err != nil {
		return err
	}
	if len(authors) == 0 {
		info.Fprintln(out, "no authors")
	}
	for _, a := range authors {
		fmt.Fprintf(out, "%d\t%s\n", a.AuthorID, a.Name)
	}
	return nil
}

func newRunCommand(open opener) *cobra.Command {
	var create, commit bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every statement once inside a transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			ctx := cmd.Context()
			if create {
				if err := s.createSchema(ctx); err != nil {
					return err
				}
			}

			tx, err := s.db.BeginTx(ctx, nil)
			if err != nil {
				return errors.Wrap(err, "cannot begin transaction")
			}
			if err := smokeTest(ctx, cmd.OutOrStdout(), s.queries.WithTx(tx)); err != nil {
				tx.Rollback()
				return err
			}
			if commit {
				return tx.Commit()
			}
			return tx.Rollback()
		},
	}
	cmd.Flags().BoolVar(&create, "create", false, "create the schema first")
	cmd.Flags().BoolVar(&commit, "commit", false, "keep the rows written")
	return cmd
}

// smokeTest runs every statement of the catalogue and reports each step.
func smokeTest(ctx context.Context, out io.Writer, q booktest.Querier) error {
	step := func(format string, args ...any) {
		success.Fprint(out, "ok ")
		fmt.Fprintf(out, format+"\n", args...)
	}

	authorID, err := q.CreateAuthor(ctx, "Unknown Master")
	if err != nil {
		return err
	}
	step("CreateAuthor: id %d", authorID)

	author, err := q.GetAuthor(ctx, authorID)
	if err != nil {
		return err
	}
	if author == nil {
		return errors.Errorf("author %d not found", authorID)
	}
	step("GetAuthor: %s", author.Name)

	bookID, err := q.CreateBook(ctx, booktest.CreateBookParams{
		AuthorID:  authorID,
		ISBN:      uuid.NewString(),
		UUID:      uuid.New(),
		BookType:  booktest.BookTypeFiction,
		Title:     "my book title",
		Year:      2016,
		Available: sql.Null[time.Time]{V: time.Now(), Valid: true},
		Tags:      "smoke,test",
		Price:     decimal.RequireFromString("9.99"),
	})
	if err != nil {
		return err
	}
	step("CreateBook: id %d", bookID)

	book, err := q.GetBook(ctx, bookID)
	if err != nil {
		return err
	}
	if book == nil {
		return errors.Errorf("book %d not found", bookID)
	}
	step("GetBook: %s (%s, %s)", book.Title, book.BookType, book.Price)

	err = q.UpdateBookISBN(ctx, booktest.UpdateBookISBNParams{
		Title:  book.Title,
		Tags:   book.Tags,
		ISBN:   uuid.NewString(),
		BookID: bookID,
	})
	if err != nil {
		return err
	}
	step("UpdateBookISBN")

	tagged, err := q.BooksByTags(ctx, "smoke")
	if err != nil {
		return err
	}
	step("BooksByTags: %d rows", len(tagged))

	sameYear, err := q.BooksByTitleYear(ctx, booktest.BooksByTitleYearParams{Title: book.Title, Year: book.Year})
	if err != nil {
		return err
	}
	step("BooksByTitleYear: %d rows", len(sameYear))

	count, err := q.CountBooks(ctx)
	if err != nil {
		return err
	}
	step("CountBooks: %d", count)

	deleted, err := q.DeleteBook(ctx, bookID)
	if err != nil {
		return err
	}
	step("DeleteBook: %d rows", deleted)

	if err := q.DeleteAuthor(ctx, authorID); err != nil {
		return err
	}
	step("DeleteAuthor")

	return listAuthors(ctx, out, q)
}
