package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"blueprint-migrator/internal/audit"
	"blueprint-migrator/internal/blueprint"
)

func runCheck(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var (
		common    commonFlags
		file, dir string
	)

	fs := newFlagSet("check", stderr)
	common.register(fs)
	fs.StringVar(&file, "file", "", "Blueprint file to check.")
	fs.StringVar(&dir, "dir", "", "Directory of blueprint files to check.")

	ok, err := parse(fs, args)
	if !ok {
		return err
	}

	files, err := inputs(file, dir)
	if err != nil {
		return err
	}

	_, cfg, err := common.setup(ctx, stderr)
	if err != nil {
		return err
	}

	set, err := cfg.RuleSet()
	if err != nil {
		return err
	}

	auditor := audit.New(set)

	var findings []audit.Finding

	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		doc, err := blueprint.Parse(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		findings = append(findings, auditor.HTTPCalls(doc.Blueprint, filepath.Base(path))...)
	}

	return audit.WriteReport(stdout, findings)
}
