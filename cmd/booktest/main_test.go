// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	. "gopkg.in/check.v1"
)

// Hook up gocheck into the "go test" runner.
func TestCommands(t *testing.T) { TestingT(t) }

type CommandSuite struct{}

var _ = Suite(&CommandSuite{})

func (s *CommandSuite) SetUpSuite(c *C) {
	color.NoColor = true
}

func (s *CommandSuite) SetUpTest(c *C) {
	for _, name := range []string{"BACKEND", "DSN", "SCHEMA", "VERBOSE"} {
		c.Assert(os.Unsetenv(envPrefix+"_"+name), IsNil)
	}
}

func (s *CommandSuite) execute(c *C, fs afero.Fs, args ...string) (string, error) {
	var out bytes.Buffer
	cmd := newRootCommand(fs)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func (s *CommandSuite) TestConfigDefaults(c *C) {
	cfg, err := loadConfig(viper.New(), afero.NewMemMapFs())
	c.Assert(err, IsNil)
	c.Assert(cfg, DeepEquals, &config{
		Backend: "sqlite",
		DSN:     "file:booktest.db?_foreign_keys=on",
	})
	c.Assert(cfg.level(), Equals, slog.LevelInfo)
}

func (s *CommandSuite) TestConfigSources(c *C) {
	fs := afero.NewMemMapFs()
	c.Assert(afero.WriteFile(fs, ".env", []byte("TYPEDSQL_BACKEND=mysql\nTYPEDSQL_DSN=from-dotenv\nOTHER=ignored\n"), 0644), IsNil)
	wd, err := os.Getwd()
	c.Assert(err, IsNil)
	c.Assert(afero.WriteFile(fs, filepath.Join(wd, ".typedsql.yaml"), []byte("dsn: from-config\nverbose: true\n"), 0644), IsNil)

	cfg, err := loadConfig(viper.New(), fs)
	c.Assert(err, IsNil)
	c.Assert(cfg.Backend, Equals, "mysql")
	c.Assert(cfg.DSN, Equals, "from-config")
	c.Assert(cfg.Verbose, Equals, true)
	c.Assert(cfg.level(), Equals, slog.LevelDebug)

	c.Assert(os.Setenv(envPrefix+"_DSN", "from-env"), IsNil)
	defer os.Unsetenv(envPrefix + "_DSN")
	cfg, err = loadConfig(viper.New(), fs)
	c.Assert(err, IsNil)
	c.Assert(cfg.DSN, Equals, "from-env")
}

func (s *CommandSuite) TestConfigBadDotEnv(c *C) {
	fs := afero.NewMemMapFs()
	c.Assert(afero.WriteFile(fs, ".env", []byte("TYPEDSQL_DSN='unterminated\n"), 0644), IsNil)
	_, err := loadConfig(viper.New(), fs)
	c.Assert(err, ErrorMatches, "cannot parse .env: .*")
}

func (s *CommandSuite) TestUnknownBackend(c *C) {
	_, err := s.execute(c, afero.NewMemMapFs(), "--backend", "oracle", "authors")
	c.Assert(err, ErrorMatches, `unknown backend "oracle", need one of .*`)

	_, err = s.execute(c, afero.NewMemMapFs(), "--backend", "postgres", "authors")
	c.Assert(err, ErrorMatches, "no book catalogue statements for the postgres backend")
}

func (s *CommandSuite) TestAuthors(c *C) {
	fs := afero.NewMemMapFs()
	dsn := "file:" + filepath.Join(c.MkDir(), "books.db") + "?_foreign_keys=on"

	out, err := s.execute(c, fs, "--dsn", dsn, "init")
	c.Assert(err, IsNil)
	c.Assert(out, Equals, "schema created\n")

	out, err = s.execute(c, fs, "--dsn", dsn, "authors")
	c.Assert(err, IsNil)
	c.Assert(out, Equals, "no authors\n")

	out, err = s.execute(c, fs, "--dsn", dsn, "authors", "add", "Kafka", "Borges")
	c.Assert(err, IsNil)
	c.Assert(out, Equals, "added Kafka as author 1\nadded Borges as author 2\n")

	out, err = s.execute(c, fs, "--dsn", dsn, "authors")
	c.Assert(err, IsNil)
	c.Assert(out, Equals, "2\tBorges\n1\tKafka\n")
}

func (s *CommandSuite) TestCustomSchema(c *C) {
	fs := afero.NewMemMapFs()
	schema := `
-- Only the authors; books are not needed here.
CREATE TABLE authors (author_id INTEGER PRIMARY KEY, name TEXT NOT NULL);
INSERT INTO authors (name) VALUES ('Woolf; Virginia');
`
	c.Assert(afero.WriteFile(fs, "authors.sql", []byte(schema), 0644), IsNil)
	dsn := "file:" + filepath.Join(c.MkDir(), "books.db")

	_, err := s.execute(c, fs, "--dsn", dsn, "--schema", "authors.sql", "init")
	c.Assert(err, IsNil)
	out, err := s.execute(c, fs, "--dsn", dsn, "authors")
	c.Assert(err, IsNil)
	c.Assert(out, Equals, "1\tWoolf; Virginia\n")

	_, err = s.execute(c, fs, "--dsn", dsn, "--schema", "missing.sql", "init")
	c.Assert(err, ErrorMatches, "cannot read schema: .*")
}

func (s *CommandSuite) TestRun(c *C) {
	out, err := s.execute(c, afero.NewMemMapFs(), "--dsn", "file:smoke?mode=memory", "run", "--create")
	c.Assert(err, IsNil)
	c.Assert(out, Matches, `(?s)ok CreateAuthor: id 1
ok GetAuthor: Unknown Master
ok CreateBook: id 1
ok GetBook: my book title \(FICTION, 9.99\)
ok UpdateBookISBN
ok BooksByTags: 1 rows
ok BooksByTitleYear: 1 rows
ok CountBooks: 1
ok DeleteBook: 1 rows
ok DeleteAuthor
no authors
`)
}

func (s *CommandSuite) TestRunVerbose(c *C) {
	out, err := s.execute(c, afero.NewMemMapFs(), "-v", "--dsn", "file:verbose?mode=memory", "run", "--create")
	c.Assert(err, IsNil)
	c.Assert(out, Matches, `(?s).*level=DEBUG msg="statement run" statement=CreateBook backend=sqlite args=9 .*`)
}
