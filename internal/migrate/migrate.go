package migrate

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"blueprint-migrator/internal/blueprint"
	"blueprint-migrator/internal/ctxlog"
	"blueprint-migrator/internal/diagnostic"
	"blueprint-migrator/internal/fields"
	"blueprint-migrator/internal/inject"
	"blueprint-migrator/internal/rewrite"
	"blueprint-migrator/internal/rules"
	"blueprint-migrator/internal/upgrade"
)

// ErrInvalidDocument wraps every failure to read the input of MigrateBytes.
var ErrInvalidDocument = errors.New("invalid blueprint document")

// ConnectionPreserved is the report value when credential references were
// kept as they were.
const ConnectionPreserved = "preserved"

// Options configures one run. The zero value preserves connections and
// performs static mapping only.
type Options struct {
	// ConnectionID replaces every credential reference when set.
	ConnectionID *int
	// DefaultConnectionID binds raw HTTP calls and injected modules that
	// have no credential of their own.
	DefaultConnectionID int
	// ConnectionLabel overrides the restore label of the credential.
	ConnectionLabel string

	// SmartFields enables option label resolution against field definitions
	// read from Provider.
	SmartFields bool
	Provider    fields.Provider

	// Rules replaces the built-in rule tables.
	Rules *rules.Set

	BatchLimit int
	Spacing    float64
}

// Result is the outcome of a run.
type Result struct {
	// Changed is false when nothing legacy was found; Document is then the
	// input document itself.
	Changed  bool
	Document *blueprint.Document
	Report   *diagnostic.Report
}

// Migrate upgrades every legacy module of doc and everything that refers to
// them. doc is not modified. Per-module problems end up in the report; an
// error means the run was aborted.
func Migrate(ctx context.Context, doc *blueprint.Document, opts Options) (*Result, error) {
	runID := uuid.NewString()

	log := ctxlog.FromContext(ctx).With("run_id", runID)
	ctx = ctxlog.WithLogger(ctx, log)

	set := opts.Rules
	if set == nil {
		set = rules.Default()
	}

	r := &run{
		set:    set,
		opts:   opts,
		report: &diagnostic.Report{RunID: runID, Connection: connectionLabel(opts.ConnectionID)},
	}

	work := doc.Clone()

	bp, err := r.passes(ctx, work.Blueprint)
	if err != nil {
		log.Error("migration aborted", "error", err)

		return nil, err
	}

	r.report.Diagnostics = r.diags
	r.report.Changed = r.report.ModulesMigrated > 0 || r.report.ReferencesRewritten > 0 || r.report.NodesInjected > 0

	log.Info("migration finished",
		"changed", r.report.Changed,
		"modules_migrated", r.report.ModulesMigrated,
		"nodes_injected", r.report.NodesInjected,
		"references_rewritten", r.report.ReferencesRewritten,
		"warnings", len(r.diags.Warnings))

	if !r.report.Changed {
		return &Result{Document: doc, Report: r.report}, nil
	}

	work.Blueprint = bp

	return &Result{Changed: true, Document: work, Report: r.report}, nil
}

// MigrateBytes parses data, migrates it and encodes the result indented in
// the input's envelope. Unchanged input is returned as is.
func MigrateBytes(ctx context.Context, data []byte, opts Options) ([]byte, *Result, error) {
	doc, err := blueprint.Parse(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	res, err := Migrate(ctx, doc, opts)
	if err != nil {
		return nil, nil, err
	}

	if !res.Changed {
		return data, res, nil
	}

	out, err := res.Document.EncodeIndent()
	if err != nil {
		return nil, nil, fmt.Errorf("encode migrated blueprint: %w", err)
	}

	return out, res, nil
}

// run holds the state of one invocation.
type run struct {
	set    *rules.Set
	opts   Options
	diags  diagnostic.Diagnostics
	report *diagnostic.Report
}

func (r *run) passes(ctx context.Context, bp *blueprint.Blueprint) (*blueprint.Blueprint, error) {
	log := ctxlog.FromContext(ctx)

	base := upgrade.Options{
		ConnectionID:        r.opts.ConnectionID,
		DefaultConnectionID: r.opts.DefaultConnectionID,
		ConnectionLabel:     r.opts.ConnectionLabel,
	}

	up := upgrade.New(r.set, base)

	if r.opts.SmartFields {
		categories := r.categories(bp, up)
		if len(categories) > 0 {
			log.Debug("loading field definitions", "categories", categories)

			base.Fields = fields.Load(ctx, r.opts.Provider, categories, &r.diags)
			up = upgrade.New(r.set, base)
		}
	}

	table := base.Fields
	inj := inject.New(r.set, up, inject.Options{Spacing: r.opts.Spacing, BatchLimit: r.opts.BatchLimit})

	log.Debug("pass started", "pass", "helpers")

	helpers, stats, err := inj.Helpers(ctx, bp, &r.diags)
	if err != nil {
		return nil, err
	}

	r.count(stats)

	err = ctx.Err()
	if err != nil {
		return nil, err
	}

	log.Debug("pass started", "pass", "upgrade")

	up = up.WithHelpers(helpers)

	var results []*upgrade.Result

	err = bp.Walk(func(m *blueprint.Module) error {
		if res := up.Apply(ctx, m, &r.diags); res != nil {
			results = append(results, res)
		}

		return ctx.Err()
	})
	if err != nil {
		return nil, err
	}

	r.report.ModulesMigrated = len(results)

	log.Debug("pass started", "pass", "rewrite")

	targets := rewrite.Targets(r.set, bp, results)

	bp, n, err := rewrite.New(r.set, table, helpers, targets).Rewrite(ctx, bp, &r.diags)
	if err != nil {
		return nil, err
	}

	r.report.ReferencesRewritten += n

	for _, pass := range []struct {
		name string
		fn   func(*blueprint.Blueprint) (*blueprint.Blueprint, inject.Stats, error)
	}{
		{"scripts", func(bp *blueprint.Blueprint) (*blueprint.Blueprint, inject.Stats, error) {
			return inj.Scripts(ctx, bp, targets, helpers, &r.diags)
		}},
		{"fetchers", func(bp *blueprint.Blueprint) (*blueprint.Blueprint, inject.Stats, error) {
			return inj.Fetchers(ctx, bp, &r.diags)
		}},
		{"batches", func(bp *blueprint.Blueprint) (*blueprint.Blueprint, inject.Stats, error) {
			return inj.Batches(ctx, bp, batchCandidates(results), &r.diags)
		}},
	} {
		err = ctx.Err()
		if err != nil {
			return nil, err
		}

		log.Debug("pass started", "pass", pass.name)

		bp, stats, err = pass.fn(bp)
		if err != nil {
			return nil, err
		}

		r.count(stats)
	}

	return bp, nil
}

func (r *run) count(s inject.Stats) {
	r.report.NodesInjected += s.Injected
	r.report.ReferencesRewritten += s.Rewritten
}

// categories returns the field categories of the entities that legacy
// modules in bp read or write.
func (r *run) categories(bp *blueprint.Blueprint, up *upgrade.Upgrader) []string {
	seen := make(map[string]bool)

	var out []string

	for _, m := range bp.Modules() {
		rule, ok := up.Rule(m)
		if !ok {
			continue
		}

		e, ok := r.set.Entity(rule.Entity)
		if !ok || e.Fields == "" || seen[e.Fields] {
			continue
		}

		seen[e.Fields] = true
		out = append(out, e.Fields)
	}

	return out
}

// batchCandidates returns the native single-entity fetches upgraded this run.
func batchCandidates(results []*upgrade.Result) []int {
	var ids []int

	for _, res := range results {
		if res.Rule.Category == rules.CategoryRename && res.Rule.Operation == rules.OperationGet &&
			res.Entity != nil && res.Entity.Fields != "" {
			ids = append(ids, res.ModuleID)
		}
	}

	return ids
}

func connectionLabel(id *int) string {
	if id == nil {
		return ConnectionPreserved
	}

	return strconv.Itoa(*id)
}
