package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const migratedSuffix = "_migrated.json"

// inputs returns the blueprint files named by --file or found in --dir.
// Previous outputs in the directory are skipped.
func inputs(file, dir string) ([]string, error) {
	switch {
	case file != "" && dir != "":
		return nil, usageError("--file and --dir are mutually exclusive")
	case file != "":
		return []string{file}, nil
	case dir == "":
		return nil, usageError("one of --file or --dir is required")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var files []string

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.EqualFold(filepath.Ext(name), ".json") || strings.HasSuffix(name, migratedSuffix) {
			continue
		}

		files = append(files, filepath.Join(dir, name))
	}

	slices.Sort(files)

	return files, nil
}

// outputPath returns where the migrated copy of input is written.
func outputPath(outDir, input string) string {
	base := filepath.Base(input)

	return filepath.Join(outDir, strings.TrimSuffix(base, filepath.Ext(base))+migratedSuffix)
}
