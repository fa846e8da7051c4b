package rewrite

import (
	"context"
	"fmt"
	"strings"

	"blueprint-migrator/internal/blueprint"
	"blueprint-migrator/internal/ctxlog"
	"blueprint-migrator/internal/diagnostic"
	"blueprint-migrator/internal/expr"
	"blueprint-migrator/internal/fields"
	"blueprint-migrator/internal/rules"
	"blueprint-migrator/internal/upgrade"
)

const (
	segCustomFields = "custom_fields"
	segValue        = "value"
	segLabel        = "label"
)

// Target is a module whose output references may need rewriting.
type Target struct {
	ID     int
	Type   string
	Entity *rules.Entity
	// OutputRoot is set for modules converted into raw API calls this run.
	OutputRoot *rules.RootRemap
	// Migrated marks modules upgraded this run.
	Migrated bool
}

// Targets collects every current module with a known output entity, plus
// every module upgraded this run. Modules still awaiting an upgrade are left
// out so references to their legacy output stay as they are.
func Targets(set *rules.Set, bp *blueprint.Blueprint, results []*upgrade.Result) map[int]*Target {
	targets := make(map[int]*Target)

	for _, m := range bp.Modules() {
		if pending(set, m) {
			continue
		}

		if e, ok := set.EntityOf(m.Type); ok {
			targets[m.ID] = &Target{ID: m.ID, Type: m.Type, Entity: e}
		}
	}

	for _, res := range results {
		t, ok := targets[res.ModuleID]
		if !ok {
			t = &Target{ID: res.ModuleID, Type: res.To}
			targets[res.ModuleID] = t
		}

		t.Migrated = true
		t.OutputRoot = res.OutputRoot

		if t.Entity == nil {
			t.Entity = res.Entity
		}
	}

	return targets
}

// pending reports whether m still has the legacy type or version. Upgraded
// modules carry their new type by the time targets are collected.
func pending(set *rules.Set, m *blueprint.Module) bool {
	if set.IsLegacy(m.Type) {
		return true
	}

	r, ok := set.Lookup(m.Type)

	return ok && r.Identity() && m.Version < upgrade.TargetVersion
}

// Rewriter rewrites legacy references to the targets of one run.
type Rewriter struct {
	rules   *rules.Set
	fields  *fields.Table
	helpers map[string]int
	targets map[int]*Target

	// structured records custom fields referenced with a companion suffix,
	// which makes their v2 value an object even without a definition.
	structured map[int]map[string]bool
	reported   map[string]bool
	rerooted   map[int]bool
	diags      *diagnostic.Diagnostics
}

// New returns a Rewriter. table and helpers may be nil.
func New(set *rules.Set, table *fields.Table, helpers map[string]int, targets map[int]*Target) *Rewriter {
	return &Rewriter{
		rules:   set,
		fields:  table,
		helpers: helpers,
		targets: targets,
	}
}

// Rewrite rewrites every legacy reference in bp and returns the new
// blueprint and the number of rewritten references.
func (r *Rewriter) Rewrite(ctx context.Context, bp *blueprint.Blueprint, diags *diagnostic.Diagnostics) (*blueprint.Blueprint, int, error) {
	r.diags = diags
	r.reported = make(map[string]bool)
	r.rerooted = make(map[int]bool)
	r.structured = make(map[int]map[string]bool)

	err := Scan(bp, func(site expr.Site) {
		if _, ok := r.targets[site.Ref.Module]; !ok {
			return
		}

		_, base := r.reroot(r.targets[site.Ref.Module], site.Ref)
		if base >= len(site.Ref.Path) {
			return
		}

		if hash, _, ok := fields.SplitCompanion(site.Ref.Path[base].Name); ok {
			if r.structured[site.Ref.Module] == nil {
				r.structured[site.Ref.Module] = make(map[string]bool)
			}

			r.structured[site.Ref.Module][hash] = true
		}
	})
	if err != nil {
		return nil, 0, err
	}

	out, n, err := Apply(bp, r.site)
	if err != nil {
		return nil, 0, err
	}

	ctxlog.FromContext(ctx).Debug("references rewritten", "count", n)

	return out, n, nil
}

func (r *Rewriter) site(site expr.Site) (string, bool) {
	t, ok := r.targets[site.Ref.Module]
	if !ok {
		return "", false
	}

	ref, base := r.reroot(t, site.Ref)
	if base > 0 && !ref.Equal(site.Ref) && !r.rerooted[t.ID] {
		r.rerooted[t.ID] = true
		r.diags.AddWarning(diagnostic.CodeOutputShapeChanged,
			fmt.Sprintf("module %d now returns the raw API response; references were moved under %q", t.ID, t.OutputRoot.To),
			t.ID, "")
	}

	if base < len(ref.Path) {
		var repl string

		ref, repl = r.field(t, ref, base, site)
		if repl != "" {
			return repl, true
		}
	}

	if ref.Equal(site.Ref) {
		return "", false
	}

	return ref.String(), true
}

// reroot applies the output root remap of converted raw API calls. It
// returns the reference and the index of the first entity-relative segment.
func (r *Rewriter) reroot(t *Target, ref expr.Reference) (expr.Reference, int) {
	if t.OutputRoot == nil {
		return ref, 0
	}

	to := segments(t.OutputRoot.To)

	if t.OutputRoot.From == "" {
		if ref.HasPrefix(expr.Reference{Path: to}.Names()...) {
			return ref, len(to)
		}

		return ref.Replace(0, to...), len(to)
	}

	from := segments(t.OutputRoot.From)
	if !ref.HasPrefix(expr.Reference{Path: from}.Names()...) {
		return ref, len(ref.Path)
	}

	return ref.Replace(len(from), to...), len(ref.Path)
}

func segments(path string) []expr.Segment {
	var out []expr.Segment

	for _, name := range strings.Split(path, ".") {
		if name != "" {
			out = append(out, expr.Field(name))
		}
	}

	return out
}
