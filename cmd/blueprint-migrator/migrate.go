package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"blueprint-migrator/internal/ctxlog"
	"blueprint-migrator/internal/history"
	"blueprint-migrator/internal/migrate"
)

func runMigrate(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var (
		common       commonFlags
		file, dir    string
		outDir       string
		connectionID int
		smartFields  bool
		fieldsFile   string
	)

	fs := newFlagSet("migrate", stderr)
	common.register(fs)
	fs.StringVar(&file, "file", "", "Blueprint file to migrate.")
	fs.StringVar(&dir, "dir", "", "Directory of blueprint files to migrate.")
	fs.StringVar(&outDir, "output-dir", "./migrated_scenarios", "Directory for migrated files.")
	fs.IntVar(&connectionID, "connection-id", 0, "Bind every migrated module to this connection. 0 preserves connections.")
	fs.BoolVar(&smartFields, "smart-fields", false, "Resolve option labels against field definitions.")
	fs.StringVar(&fieldsFile, "fields-file", "", "Read field definitions from a YAML or JSON file instead of the API.")

	ok, err := parse(fs, args)
	if !ok {
		return err
	}

	files, err := inputs(file, dir)
	if err != nil {
		return err
	}

	ctx, cfg, err := common.setup(ctx, stderr)
	if err != nil {
		return err
	}

	if fieldsFile != "" {
		cfg.Migration.FieldsFile = fieldsFile
	}

	if smartFields {
		cfg.Migration.SmartFields = true
	}

	provider, err := cfg.FieldsProvider()
	if err != nil {
		return err
	}

	opts, err := cfg.MigrateOptions(provider)
	if err != nil {
		return err
	}

	if connectionID != 0 {
		opts.ConnectionID = &connectionID
	}

	store, closeStore, err := openHistory(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	err = os.MkdirAll(outDir, 0o755)
	if err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	m := &migrator{opts: opts, store: store, outDir: outDir, stdout: stdout}

	var failed int

	for _, path := range files {
		err = m.file(ctx, path)
		if errors.Is(err, context.Canceled) {
			return err
		}

		if err != nil {
			failed++

			fmt.Fprintf(stdout, "%s: error: %v\n", path, err)
		}
	}

	if failed > 0 {
		return &ExitError{Code: 1, Message: fmt.Sprintf("%d of %d files failed", failed, len(files))}
	}

	return nil
}

type migrator struct {
	opts   migrate.Options
	store  history.Store
	outDir string
	stdout io.Writer
}

func (m *migrator) file(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	log := ctxlog.FromContext(ctx).With("file", path)
	ctx = ctxlog.WithLogger(ctx, log)
	started := time.Now()

	out, res, err := migrate.MigrateBytes(ctx, data, m.opts)
	if err != nil {
		return err
	}

	run, err := history.NewRun(filepath.Base(path), started, res.Report)
	if err == nil {
		err = m.store.Record(ctx, run)
	}

	if err != nil {
		log.Warn("failed to record run", "run_id", res.Report.RunID, "error", err)
	}

	if !res.Changed {
		fmt.Fprintf(m.stdout, "%s: nothing to migrate\n", path)

		return nil
	}

	target := outputPath(m.outDir, path)

	err = os.WriteFile(target, out, 0o644)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}

	fmt.Fprintf(m.stdout, "%s -> %s\n", path, target)

	return res.Report.Write(m.stdout)
}
