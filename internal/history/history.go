// Package history records the outcome of migration runs.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"blueprint-migrator/internal/diagnostic"
)

// ErrRunNotFound is returned by Get for unknown run ids.
var ErrRunNotFound = errors.New("history: run not found")

// Store defines the contract for persisting run records.
type Store interface {
	CreateSchema(ctx context.Context) error

	Record(ctx context.Context, run Run) error
	Get(ctx context.Context, id string) (*Run, error)
	// List returns the newest runs first, at most limit of them.
	List(ctx context.Context, limit int) ([]Run, error)
}

// Run is one stored migration.
type Run struct {
	ID              string          `json:"id"`
	StartedAt       time.Time       `json:"started_at"`
	Source          string          `json:"source"`
	Changed         bool            `json:"changed"`
	ModulesMigrated int             `json:"modules_migrated"`
	NodesInjected   int             `json:"nodes_injected"`
	Warnings        int             `json:"warnings"`
	Report          json.RawMessage `json:"report"`
}

// NewRun builds the record of a finished run.
func NewRun(source string, startedAt time.Time, report *diagnostic.Report) (Run, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return Run{}, fmt.Errorf("history: encode report: %w", err)
	}

	return Run{
		ID:              report.RunID,
		StartedAt:       startedAt.UTC(),
		Source:          source,
		Changed:         report.Changed,
		ModulesMigrated: report.ModulesMigrated,
		NodesInjected:   report.NodesInjected,
		Warnings:        len(report.Diagnostics.Warnings),
		Report:          data,
	}, nil
}
