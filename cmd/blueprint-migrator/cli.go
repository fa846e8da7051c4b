package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"blueprint-migrator/internal/config"
	"blueprint-migrator/internal/ctxlog"
	"blueprint-migrator/internal/history"
	"blueprint-migrator/internal/history/postgres"
)

// ExitError is an error carrying the process exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func usageError(format string, args ...any) *ExitError {
	return &ExitError{Code: 2, Message: fmt.Sprintf(format, args...)}
}

const usage = `blueprint-migrator - upgrade legacy CRM modules in scenario blueprints

Usage:
  blueprint-migrator <command> [options]

Commands:
  migrate   Migrate a blueprint file or every blueprint in a directory
  check     Report HTTP modules calling the CRM API and their API version
  serve     Start the HTTP front-end

Run 'blueprint-migrator <command> -h' for the options of a command.
`

// run dispatches to a command. It returns an ExitError for usage problems.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)

		return &ExitError{Code: 2}
	}

	switch args[0] {
	case "migrate":
		return runMigrate(ctx, args[1:], stdout, stderr)
	case "check":
		return runCheck(ctx, args[1:], stdout, stderr)
	case "serve":
		return runServe(ctx, args[1:], stdout, stderr)
	case "help", "-h", "-help", "--help":
		fmt.Fprint(stdout, usage)

		return nil
	default:
		return usageError("unknown command %q", args[0])
	}
}

// commonFlags are accepted by every command. Empty values defer to the
// configuration file.
type commonFlags struct {
	config    string
	logLevel  string
	logFormat string
}

func (f *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.config, "config", "", "Path to a YAML configuration file.")
	fs.StringVar(&f.logLevel, "log-level", "", "Logging level: 'debug', 'info', 'warn' or 'error'.")
	fs.StringVar(&f.logFormat, "log-format", "", "Log output format: 'text' or 'json'.")
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("blueprint-migrator "+name, flag.ContinueOnError)
	fs.SetOutput(stderr)

	return fs
}

// parse reports whether the command should run. False with a nil error
// means help was printed.
func parse(fs *flag.FlagSet, args []string) (bool, error) {
	err := fs.Parse(args)
	if err == flag.ErrHelp {
		return false, nil
	}

	if err != nil {
		return false, &ExitError{Code: 2, Message: err.Error()}
	}

	if fs.NArg() > 0 {
		return false, usageError("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	return true, nil
}

// setup loads the configuration, applies flag overrides and attaches the
// logger to ctx.
func (f *commonFlags) setup(ctx context.Context, stderr io.Writer) (context.Context, *config.Config, error) {
	cfg, err := config.Load(f.config)
	if err != nil {
		return nil, nil, &ExitError{Code: 2, Message: err.Error()}
	}

	if f.logLevel != "" {
		cfg.Log.Level = strings.ToLower(f.logLevel)
	}

	if f.logFormat != "" {
		cfg.Log.Format = strings.ToLower(f.logFormat)
	}

	err = cfg.Validate()
	if err != nil {
		return nil, nil, &ExitError{Code: 2, Message: err.Error()}
	}

	logger := ctxlog.New(cfg.Log.Level, cfg.Log.Format, stderr)

	return ctxlog.WithLogger(ctx, logger), cfg, nil
}

// openHistory returns the configured run store and a func releasing it.
func openHistory(ctx context.Context, cfg *config.Config) (history.Store, func(), error) {
	if cfg.History.DSN == "" {
		return history.NewMemory(), func() {}, nil
	}

	store, pool, err := postgres.Open(ctx, cfg.History.DSN)
	if err != nil {
		return nil, nil, err
	}

	err = store.CreateSchema(ctx)
	if err != nil {
		pool.Close()

		return nil, nil, fmt.Errorf("history: create schema: %w", err)
	}

	ctxlog.FromContext(ctx).Debug("run history enabled", "backend", "postgres")

	return store, pool.Close, nil
}
