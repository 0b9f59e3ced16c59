// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package sqltmpl splits a statement template into verbatim SQL and
// parameter references. String literals, quoted identifiers and comments
// are passed through untouched.
package sqltmpl

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
	"github.com/pkg/errors"
)

var sqlLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `--[^\n]*|/\*(?s:.*?)\*/`},
	{Name: "String", Pattern: `'(?:[^']|'')*'`},
	{Name: "QuotedIdent", Pattern: `"(?:[^"]|"")*"|` + "`(?:[^`]|``)*`"},
	{Name: "Unterminated", Pattern: "['\"`]|/\\*"},
	{Name: "Named", Pattern: `\$[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Positional", Pattern: `\?`},
	{Name: "Semicolon", Pattern: `;`},
	{Name: "Text", Pattern: "[^'\"`$?;/-]+|[\\s\\S]"},
})

var (
	commentToken      = sqlLexer.Symbols()["Comment"]
	unterminatedToken = sqlLexer.Symbols()["Unterminated"]
	namedToken        = sqlLexer.Symbols()["Named"]
	positionalToken   = sqlLexer.Symbols()["Positional"]
	semicolonToken    = sqlLexer.Symbols()["Semicolon"]
)

// Bypass marks a Part that is passed to the database verbatim.
const Bypass = -1

// Part is a section of a parsed template: either verbatim SQL or a
// reference to a declared parameter.
type Part struct {
	// Text is the verbatim SQL of a bypass part.
	Text string
	// Param is the index of the referenced parameter, or Bypass.
	Param int
}

// Template is a parsed statement template.
type Template struct {
	Parts []Part
	// Names are the declared parameter names, in declaration order.
	Names []string
	// Positional is true when parameters are referenced with bare "?".
	Positional bool
}

// String returns a representation of the template for debugging and
// testing purposes.
func (t *Template) String() string {
	var sb strings.Builder
	sb.WriteString("Template[")
	for i, p := range t.Parts {
		if i > 0 {
			sb.WriteString(" ")
		}
		if p.Param == Bypass {
			sb.WriteString("Bypass[" + p.Text + "]")
		} else {
			fmt.Fprintf(&sb, "Param[%d:%s]", p.Param, t.Names[p.Param])
		}
	}
	sb.WriteString("]")
	return sb.String()
}

// Occurrences returns the number of parameter references in the template.
func (t *Template) Occurrences() int {
	n := 0
	for _, p := range t.Parts {
		if p.Param != Bypass {
			n++
		}
	}
	return n
}

// Parse parses sql, resolving its parameter references against names.
// Parameters are referenced either as $name or as bare "?" in declaration
// order. Every declared parameter must be referenced.
func Parse(sql string, names []string) (tmpl *Template, err error) {
	defer func() {
		if err != nil {
			err = errors.Wrap(err, "cannot parse statement")
		}
	}()

	tokens, err := tokenize(sql)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int, len(names))
	for i, name := range names {
		if _, ok := index[name]; ok {
			return nil, errors.Errorf("parameter %q declared twice", name)
		}
		index[name] = i
	}

	t := &Template{Names: append([]string(nil), names...)}
	referenced := make([]bool, len(names))
	var sawNamed, sawPositional bool
	nextPositional := 0
	var text strings.Builder
	flush := func() {
		if text.Len() > 0 {
			t.Parts = append(t.Parts, Part{Text: text.String(), Param: Bypass})
			text.Reset()
		}
	}
	for _, tok := range tokens {
		switch tok.Type {
		case namedToken:
			name := tok.Value[1:]
			i, ok := index[name]
			if !ok {
				return nil, errorAt(tok.Pos, errors.Errorf("parameter $%s not declared", name))
			}
			sawNamed = true
			referenced[i] = true
			flush()
			t.Parts = append(t.Parts, Part{Param: i})
		case positionalToken:
			if nextPositional >= len(names) {
				return nil, errorAt(tok.Pos, errors.Errorf("more \"?\" placeholders than the %d declared parameters", len(names)))
			}
			sawPositional = true
			referenced[nextPositional] = true
			flush()
			t.Parts = append(t.Parts, Part{Param: nextPositional})
			nextPositional++
		default:
			text.WriteString(tok.Value)
		}
		if sawNamed && sawPositional {
			return nil, errorAt(tok.Pos, errors.New("cannot mix $name and \"?\" parameters"))
		}
	}
	flush()

	for i, ok := range referenced {
		if !ok {
			return nil, errors.Errorf("parameter %q not referenced", names[i])
		}
	}
	t.Positional = sawPositional
	return t, nil
}

// Split splits a script into its statements on semicolons outside string
// literals, quoted identifiers and comments. Empty statements are dropped.
func Split(script string) ([]string, error) {
	tokens, err := tokenize(script)
	if err != nil {
		return nil, errors.Wrap(err, "cannot split script")
	}
	var stmts []string
	var sb strings.Builder
	flush := func() {
		if s := strings.TrimSpace(sb.String()); s != "" && !onlyComments(s) {
			stmts = append(stmts, s)
		}
		sb.Reset()
	}
	for _, tok := range tokens {
		if tok.Type == semicolonToken {
			flush()
			continue
		}
		sb.WriteString(tok.Value)
	}
	flush()
	return stmts, nil
}

func onlyComments(s string) bool {
	tokens, err := tokenize(s)
	if err != nil {
		return false
	}
	for _, tok := range tokens {
		if tok.Type != commentToken && strings.TrimSpace(tok.Value) != "" {
			return false
		}
	}
	return true
}

func tokenize(sql string) ([]lexer.Token, error) {
	lex, err := sqlLexer.LexString("", sql)
	if err != nil {
		return nil, err
	}
	tokens, err := lexer.ConsumeAll(lex)
	if err != nil {
		return nil, err
	}
	for _, tok := range tokens {
		if tok.Type == unterminatedToken {
			return nil, errorAt(tok.Pos, errors.Errorf("unterminated %s", describe(tok.Value)))
		}
	}
	// Drop the trailing EOF token.
	if n := len(tokens); n > 0 && tokens[n-1].EOF() {
		tokens = tokens[:n-1]
	}
	return tokens, nil
}

func describe(opening string) string {
	switch opening {
	case "'":
		return "string literal"
	case "/*":
		return "comment"
	}
	return "quoted identifier"
}

// errorAt wraps an error with line and column information.
func errorAt(pos lexer.Position, err error) error {
	if pos.Line > 1 {
		return errors.Wrapf(err, "line %d, column %d", pos.Line, pos.Column)
	}
	return errors.Wrapf(err, "column %d", pos.Column)
}
