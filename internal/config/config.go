// Package config loads the process-wide settings of the migrator: a YAML
// file merged over built-in defaults, then overridden from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"blueprint-migrator/internal/blueprint"
	"blueprint-migrator/internal/fields"
	"blueprint-migrator/internal/inject"
	"blueprint-migrator/internal/migrate"
	"blueprint-migrator/internal/rules"
)

// Environment variables that override file values.
const (
	EnvConnectionID    = "PIPEDRIVE_OAUTH_CONN_ID"
	EnvConnectionLabel = "PIPEDRIVE_OAUTH_CONN_LABEL"
	EnvAPIToken        = "PIPEDRIVE_API_TOKEN"
	EnvAPIBase         = "PIPEDRIVE_API_BASE"
	EnvHistoryDSN      = "MIGRATOR_HISTORY_DSN"
)

var (
	errInvalidLogLevel  = errors.New("invalid log level: must be 'debug', 'info', 'warn', or 'error'")
	errInvalidLogFormat = errors.New("invalid log format: must be 'text' or 'json'")
	errInvalidLimit     = errors.New("migration.batch_limit must be positive")
)

// Config is the complete configuration. It is read-only once loaded.
type Config struct {
	Version    int              `yaml:"version"`
	Connection ConnectionConfig `yaml:"connection"`
	API        APIConfig        `yaml:"api"`
	Migration  MigrationConfig  `yaml:"migration"`
	Log        LogConfig        `yaml:"log"`
	Server     ServerConfig     `yaml:"server"`
	History    HistoryConfig    `yaml:"history"`
}

// ConnectionConfig describes the credential of migrated modules.
type ConnectionConfig struct {
	// DefaultID binds raw HTTP calls and injected modules without a credential.
	DefaultID int `yaml:"default_id"`
	// Label overrides the restore label of the rule table.
	Label string `yaml:"label"`
}

// APIConfig is the CRM API used to read field definitions.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// MigrationConfig holds engine defaults.
type MigrationConfig struct {
	SmartFields bool    `yaml:"smart_fields"`
	FieldsFile  string  `yaml:"fields_file"`
	BatchLimit  int     `yaml:"batch_limit"`
	Spacing     float64 `yaml:"spacing"`
	// Rules is a rule table file replacing the built-in one.
	Rules string `yaml:"rules"`
}

// LogConfig selects the log level and format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServerConfig configures the HTTP front-end.
type ServerConfig struct {
	Addr           string `yaml:"addr"`
	MaxUploadBytes int    `yaml:"max_upload_bytes"`
}

// HistoryConfig points at the run history database. An empty DSN keeps
// history in memory.
type HistoryConfig struct {
	DSN string `yaml:"dsn"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Version: 1,
		API: APIConfig{
			BaseURL: fields.DefaultBaseURL,
			Timeout: 30 * time.Second,
		},
		Migration: MigrationConfig{
			BatchLimit: inject.DefaultBatchLimit,
			Spacing:    blueprint.DefaultSpacing,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr:           ":8080",
			MaxUploadBytes: 10 << 20,
		},
	}
}

// Load reads the file at path, if any, fills unset values from Default and
// applies environment overrides.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		err = yaml.Unmarshal(data, &cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}

		if cfg.Version != 0 && cfg.Version != 1 {
			return nil, fmt.Errorf("unsupported config version %d", cfg.Version)
		}
	}

	err := mergo.Merge(&cfg, Default())
	if err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}

	err = cfg.applyEnv(os.LookupEnv)
	if err != nil {
		return nil, err
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvConnectionID); ok && v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s must be numeric: %w", EnvConnectionID, err)
		}

		c.Connection.DefaultID = id
	}

	if v, ok := lookup(EnvConnectionLabel); ok && v != "" {
		c.Connection.Label = v
	}

	if v, ok := lookup(EnvAPIToken); ok && v != "" {
		c.API.Token = v
	}

	if v, ok := lookup(EnvAPIBase); ok && v != "" {
		c.API.BaseURL = v
	}

	if v, ok := lookup(EnvHistoryDSN); ok && v != "" {
		c.History.DSN = v
	}

	return nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errInvalidLogLevel
	}

	if c.Log.Format != "text" && c.Log.Format != "json" {
		return errInvalidLogFormat
	}

	if c.Migration.BatchLimit <= 0 {
		return errInvalidLimit
	}

	return nil
}

// RuleSet returns the configured rule table.
func (c *Config) RuleSet() (*rules.Set, error) {
	if c.Migration.Rules == "" {
		return rules.Default(), nil
	}

	return rules.LoadFile(c.Migration.Rules)
}

// FieldsProvider returns the field definition source: a local file when one
// is configured, the API when a token is set, nil otherwise.
func (c *Config) FieldsProvider() (fields.Provider, error) {
	if c.Migration.FieldsFile != "" {
		p, err := fields.LoadFileProvider(c.Migration.FieldsFile)
		if err != nil {
			return nil, err
		}

		return p, nil
	}

	if c.API.Token != "" {
		return fields.NewHTTPProvider(c.API.BaseURL, c.API.Token, c.API.Timeout), nil
	}

	return nil, nil
}

// MigrateOptions returns engine options for the configuration. Callers set
// the per-run connection override.
func (c *Config) MigrateOptions(provider fields.Provider) (migrate.Options, error) {
	set, err := c.RuleSet()
	if err != nil {
		return migrate.Options{}, err
	}

	return migrate.Options{
		DefaultConnectionID: c.Connection.DefaultID,
		ConnectionLabel:     c.Connection.Label,
		SmartFields:         c.Migration.SmartFields,
		Provider:            provider,
		Rules:               set,
		BatchLimit:          c.Migration.BatchLimit,
		Spacing:             c.Migration.Spacing,
	}, nil
}
