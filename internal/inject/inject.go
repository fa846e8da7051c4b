package inject

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/davecgh/go-spew/spew"

	"blueprint-migrator/internal/blueprint"
	"blueprint-migrator/internal/ctxlog"
	"blueprint-migrator/internal/diagnostic"
	"blueprint-migrator/internal/expr"
	"blueprint-migrator/internal/fields"
	"blueprint-migrator/internal/rewrite"
	"blueprint-migrator/internal/rules"
	"blueprint-migrator/internal/upgrade"
)

// DefaultBatchLimit is the number of custom fields one v2 fetch may request.
const DefaultBatchLimit = 15

// Options configures an Injector.
type Options struct {
	// Spacing is the designer distance between neighbouring modules.
	Spacing float64
	// BatchLimit caps the custom fields requested by one fetch module.
	BatchLimit int
}

// Stats counts what a pass changed.
type Stats struct {
	Injected  int
	Rewritten int
}

func (s *Stats) add(o Stats) {
	s.Injected += o.Injected
	s.Rewritten += o.Rewritten
}

// Injector plans and splices derived modules.
type Injector struct {
	rules    *rules.Set
	upgrader *upgrade.Upgrader
	fields   *fields.Table
	opts     Options
}

// New returns an Injector. Connections of injected modules are chosen the
// way up chooses them for migrated modules.
func New(set *rules.Set, up *upgrade.Upgrader, opts Options) *Injector {
	if opts.Spacing <= 0 {
		opts.Spacing = blueprint.DefaultSpacing
	}

	if opts.BatchLimit <= 0 {
		opts.BatchLimit = DefaultBatchLimit
	}

	return &Injector{rules: set, upgrader: up, fields: up.Fields(), opts: opts}
}

// insertion is one planned splice.
type insertion struct {
	// Anchor is the module the new modules follow. Zero places them at the
	// head of the top-level flow.
	Anchor  int
	Modules []*blueprint.Module
	Reason  string
}

// plan is the outcome of phase one.
type plan struct {
	pass       string
	insertions []insertion
	// rewrite redirects references to the planned modules; nil keeps them.
	rewrite expr.RewriteFunc
	// edits change existing modules after the rewrite.
	edits map[int]func(m *blueprint.Module)
}

func (p *plan) edit(id int, fn func(m *blueprint.Module)) {
	if p.edits == nil {
		p.edits = make(map[int]func(m *blueprint.Module))
	}

	p.edits[id] = fn
}

func (p *plan) add(anchor int, reason string, mods ...*blueprint.Module) {
	p.insertions = append(p.insertions, insertion{Anchor: anchor, Modules: mods, Reason: reason})
}

// apply is phase two.
func (in *Injector) apply(ctx context.Context, bp *blueprint.Blueprint, p *plan, diags *diagnostic.Diagnostics) (*blueprint.Blueprint, Stats, error) {
	log := ctxlog.FromContext(ctx)

	if len(p.insertions) == 0 {
		log.Debug("nothing to inject", "pass", p.pass)

		return bp, Stats{}, nil
	}

	if log.Enabled(ctx, slog.LevelDebug) {
		log.Debug("planned insertions", "pass", p.pass, "plan", spew.Sdump(p.insertions))
	}

	var stats Stats

	out := bp

	if p.rewrite != nil {
		var (
			n   int
			err error
		)

		out, n, err = rewrite.Apply(bp, p.rewrite)
		if err != nil {
			return nil, Stats{}, fmt.Errorf("%s: %w", p.pass, err)
		}

		stats.Rewritten = n
	}

	for id, fn := range p.edits {
		m := out.Find(id)
		if m == nil {
			return nil, Stats{}, fmt.Errorf("%s: edit module %d: %w", p.pass, id, blueprint.ErrModuleNotFound)
		}

		fn(m)
	}

	for _, ins := range p.insertions {
		err := in.splice(out, ins)
		if err != nil {
			return nil, Stats{}, fmt.Errorf("%s: %w", p.pass, err)
		}

		for _, m := range ins.Modules {
			stats.Injected++

			diags.AddInfo(diagnostic.CodeNodeInjected, fmt.Sprintf("%s %q injected: %s", m.Type, m.Name(), ins.Reason), m.ID, "")
			log.Info("module injected", "module_id", m.ID, "type", m.Type, "anchor", ins.Anchor)
		}
	}

	return out, stats, nil
}

func (in *Injector) splice(bp *blueprint.Blueprint, ins insertion) error {
	if ins.Anchor == 0 {
		points := bp.MakeRoomAtHead(len(ins.Modules), in.opts.Spacing)
		place(ins.Modules, points)
		bp.Prepend(ins.Modules...)

		return nil
	}

	points := bp.MakeRoom(ins.Anchor, len(ins.Modules), in.opts.Spacing)
	place(ins.Modules, points)

	return bp.InsertAfter(ins.Anchor, ins.Modules...)
}

func place(mods []*blueprint.Module, points []blueprint.Point) {
	for i, m := range mods {
		if i < len(points) {
			m.SetPosition(points[i])
		}
	}
}

// index maps module ids to modules.
func index(bp *blueprint.Blueprint) map[int]*blueprint.Module {
	mods := bp.Modules()

	out := make(map[int]*blueprint.Module, len(mods))
	for _, m := range mods {
		out[m.ID] = m
	}

	return out
}

// connected fills in the credential parameter and its designer metadata.
func (in *Injector) connected(m *blueprint.Module, conn any) {
	param := in.rules.Connection.Parameter

	m.Parameters = map[string]any{param: conn}

	if m.Metadata == nil {
		m.Metadata = map[string]any{}
	}

	restore, ok := blueprint.Object(m.Metadata["restore"])
	if !ok {
		restore = map[string]any{}
		m.Metadata["restore"] = restore
	}

	restore["parameters"] = in.upgrader.RestoreConnection()
	m.Metadata["parameters"] = in.upgrader.ConnectionSchema()
}
