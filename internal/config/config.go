// Package config provides functionality for managing configuration options
// for the application using command-line flags, a JSON file, a .env file and
// environment variables.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	// EnvDevelopment enables console logging and an ephemeral secret key.
	EnvDevelopment = "development"
	// EnvProduction requires SECRET_KEY and logs JSON.
	EnvProduction = "production"
)

// ErrMissingSecretKey is returned when SECRET_KEY is unset in production.
var ErrMissingSecretKey = errors.New("SECRET_KEY is not set")

// Options holds the configuration values for the application.
type Options struct {
	// Addr defines the server's listening address (ip:port).
	Addr string `json:"addr" env:"SERVER_ADDRESS"`

	// DatabaseDSN is a PostgreSQL connection string. When set it wins over
	// DatabaseFile.
	DatabaseDSN string `json:"database_dsn" env:"DATABASE_DSN"`

	// DatabaseFile is the path of the SQLite database file.
	DatabaseFile string `json:"database_file" env:"DATABASE_FILE"`

	// SecretKey signs the session cookie.
	SecretKey string `json:"-" env:"SECRET_KEY"`

	// AppEnv is either "development" or "production".
	AppEnv string `json:"app_env" env:"APP_ENV"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level" env:"LOG_LEVEL"`

	// BcryptCost is the work factor used for new password hashes.
	BcryptCost int `json:"bcrypt_cost" env:"BCRYPT_COST"`

	// SessionMaxAge is the session cookie lifetime in seconds.
	SessionMaxAge int `json:"session_max_age" env:"SESSION_MAX_AGE"`

	// SecureCookies sets the Secure attribute on the session cookie.
	SecureCookies bool `json:"secure_cookies" env:"SECURE_COOKIES"`

	// Config is the path to the Config file.
	Config string `json:"-" env:"CONFIG"`
}

// UsesPostgres reports whether the PostgreSQL backend is configured.
func (o *Options) UsesPostgres() bool {
	return o.DatabaseDSN != ""
}

// Development reports whether the application runs in development mode.
func (o *Options) Development() bool {
	return o.AppEnv == EnvDevelopment
}

// Validate checks the options that have no sensible default.
func (o *Options) Validate() error {
	if o.AppEnv != EnvDevelopment && o.AppEnv != EnvProduction {
		return fmt.Errorf("unknown app env %q", o.AppEnv)
	}
	if o.SecretKey == "" && !o.Development() {
		return ErrMissingSecretKey
	}
	if o.DatabaseDSN == "" && o.DatabaseFile == "" {
		return errors.New("either a database DSN or a database file is required")
	}
	return nil
}

// newFlagSet registers the command-line flags and their defaults on o.
func newFlagSet(name string, o *Options) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&o.Addr, "a", "localhost:8080", "run on ip:port server")
	fs.StringVar(&o.DatabaseDSN, "d", "", "postgres dsn")
	fs.StringVar(&o.DatabaseFile, "f", "instance/gophtasks.db", "sqlite database file")
	fs.StringVar(&o.AppEnv, "env", EnvDevelopment, "application environment (development|production)")
	fs.StringVar(&o.LogLevel, "l", "info", "log level")
	fs.IntVar(&o.BcryptCost, "bcrypt-cost", 0, "bcrypt cost (0 selects the library default)")
	fs.IntVar(&o.SessionMaxAge, "session-max-age", 7*24*3600, "session lifetime in seconds")
	fs.BoolVar(&o.SecureCookies, "secure-cookies", false, "mark the session cookie Secure")
	fs.StringVar(&o.Config, "config", "config.json", "path to config file")
	fs.StringVar(&o.Config, "c", "config.json", "path to config file (shorthand)")
	return fs
}

// Load builds Options from args. Flags are the lowest layer, then the JSON
// config file, then variables from .env and the process environment.
// It returns the remaining positional arguments as well.
func Load(args []string) (*Options, []string, error) {
	o := &Options{}
	fs := newFlagSet("server", o)
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	// Existing environment variables take precedence over .env entries.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("load .env: %w", err)
	}

	if configPath := os.Getenv("CONFIG"); configPath != "" {
		o.Config = configPath
	}

	if o.Config != "" {
		if _, err := os.Stat(o.Config); err == nil {
			data, err := os.ReadFile(o.Config)
			if err != nil {
				return nil, nil, fmt.Errorf("read config file: %w", err)
			}
			if err := json.Unmarshal(data, o); err != nil {
				return nil, nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	if err := env.Parse(o); err != nil {
		return nil, nil, fmt.Errorf("parse env: %w", err)
	}

	return o, fs.Args(), nil
}

// Parse parses the process arguments and environment. It returns the
// Options and the positional arguments (e.g. a subcommand) and exits on
// error.
func Parse() (*Options, []string) {
	o, rest, err := Load(os.Args[1:])
	if err != nil {
		log.Fatalf("error while loading configuration: %v", err)
	}
	return o, rest
}
