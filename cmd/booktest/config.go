// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// envPrefix prefixes the environment variables read by the command, as in
// TYPEDSQL_DSN.
const envPrefix = "TYPEDSQL"

// config is the resolved configuration. Flags override the environment,
// which overrides .typedsql.yaml, which overrides .env.
type config struct {
	Backend string
	DSN     string
	Schema  string
	Verbose bool
}

// loadConfig resolves the configuration from v, whose flags are already
// bound, and the files found on fs.
func loadConfig(v *viper.Viper, fs afero.Fs) (*config, error) {
	v.SetFs(fs)
	v.SetConfigName(".typedsql")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := homedir.Dir(); err == nil {
		v.AddConfigPath(home)
	}
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	v.SetDefault("backend", "sqlite")
	v.SetDefault("dsn", "file:booktest.db?_foreign_keys=on")
	if err := loadDotEnv(v, fs, ".env"); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "cannot read config")
		}
	}

	cfg := &config{
		Backend: v.GetString("backend"),
		DSN:     v.GetString("dsn"),
		Schema:  v.GetString("schema"),
		Verbose: v.GetBool("verbose"),
	}
	if cfg.DSN == "" {
		return nil, errors.New("need a data source name, set --dsn or " + envPrefix + "_DSN")
	}
	return cfg, nil
}

// loadDotEnv reads the prefixed variables of a dotenv file as defaults.
// The file is optional.
func loadDotEnv(v *viper.Viper, fs afero.Fs, path string) error {
	f, err := fs.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "cannot open %s", path)
	}
	defer f.Close()

	env, err := godotenv.Parse(f)
	if err != nil {
		return errors.Wrapf(err, "cannot parse %s", path)
	}
	for key, value := range env {
		if name, ok := strings.CutPrefix(key, envPrefix+"_"); ok {
			v.SetDefault(strings.ToLower(name), value)
		}
	}
	return nil
}

// level is the log level of the typed calls.
func (c *config) level() slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
