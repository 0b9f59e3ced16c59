/*
Typedsql is a runtime for typed SQL calls. Each hand-written statement is
described once by a [Descriptor] and run through a small set of typed
functions, so that callers see plain Go parameters and Go result structs.

The same descriptors run unchanged on SQLite, dqlite, MySQL, PostgreSQL and
SQL Server. Everything that differs between engines (placeholder syntax,
how types travel over the driver, how generated identifiers are read back)
lives in a [backend.Adapter] chosen once, when the [Querier] is created.

# Basics

A descriptor names the statement, gives its SQL, and declares its parameters
and result columns with their types:

	var getAuthor = typedsql.MustPrepare(typedsql.Descriptor{
		Name: "getAuthor",
		SQL:  "SELECT author_id, name FROM authors WHERE author_id = $author_id",
		Params: []typedsql.Param{
			{Name: "author_id", Type: typedsql.Int},
		},
		Columns: []typedsql.Column{
			{Name: "author_id", Type: typedsql.Int},
			{Name: "name", Type: typedsql.String},
		},
		Cardinality: typedsql.CardinalityOne,
	}, &Author{})

Result rows are decoded into records. A record lists pointers to its
fields in column order:

	type Author struct {
		AuthorID int64
		Name     string
	}

	func (a *Author) Targets() []any {
		return []any{&a.AuthorID, &a.Name}
	}

The statement is then run on a connection:

	q, err := typedsql.New(backend.SQLite(), db)
	...
	author, err := typedsql.One[Author](ctx, q, getAuthor, int64(1))

# Parameters

Parameters are referenced in the SQL as $name, or as bare question marks
taken in declaration order. Parameters inside string literals, quoted
identifiers and comments are left alone. Values are always passed to the
driver as arguments, never spliced into the SQL.

Each argument is checked against its declared type before the statement
runs. Go integers of any size fit Int when in range, named types are
accepted by their underlying kind, and values implementing driver.Valuer,
such as [database/sql.Null], are unwrapped first. NULL is only accepted by
types wrapped with [Nullable].

# Cardinality

The cardinality of a descriptor selects the function that runs it:

  - CardinalityNone and CardinalityExec statements run with [Exec], which
    reports the affected rows and, when the descriptor asks for it, the
    generated identifier.
  - CardinalityOne statements run with [One], which returns nil when no row
    matches and fails with [ErrCardinalityViolation] on a second row.
  - CardinalityMany statements run with [Many], which returns every row in
    backend order.

[Iter] gives row by row access to either of the row returning kinds.

# Errors

Every error matches exactly one of [ErrArityMismatch], [ErrTypeMismatch],
[ErrColumnCountMismatch], [ErrCardinalityViolation], [ErrBackend] or
[ErrConfiguration] with errors.Is. Backend errors unwrap to the driver
error, so driver specific types stay reachable with errors.As.
*/
package typedsql
