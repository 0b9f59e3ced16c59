// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Booktest runs the book catalogue statements against a live database. It
// creates the schema, manages authors and runs a smoke test of every
// statement.
package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/afero"
)

func main() {
	if err := newRootCommand(afero.NewOsFs()).Execute(); err != nil {
		color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
