package inject

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"blueprint-migrator/internal/blueprint"
	"blueprint-migrator/internal/diagnostic"
	"blueprint-migrator/internal/expr"
	"blueprint-migrator/internal/rewrite"
	"blueprint-migrator/internal/rules"
	"blueprint-migrator/internal/upgrade"
)

// embedded is a related entity that a source module used to return inline.
type embedded struct {
	source int
	field  string
}

// Fetchers injects a fetch module after every source module whose embedded
// related entity is still referenced below its id, and points those
// references at the fetcher.
func (in *Injector) Fetchers(ctx context.Context, bp *blueprint.Blueprint, diags *diagnostic.Diagnostics) (*blueprint.Blueprint, Stats, error) {
	mods := index(bp)
	wanted := make(map[embedded]bool)

	err := rewrite.Scan(bp, func(site expr.Site) {
		if key, _, ok := in.embeddedRef(mods, site.Ref); ok {
			wanted[key] = true
		}
	})
	if err != nil {
		return nil, Stats{}, fmt.Errorf("scan embedded references: %w", err)
	}

	alloc := blueprint.NewAllocator(bp)
	fetchers := make(map[embedded]int)
	p := &plan{pass: "fetchers"}

	for _, src := range bp.Modules() {
		var names []string

		for key := range wanted {
			if key.source == src.ID {
				names = append(names, key.field)
			}
		}

		if len(names) == 0 {
			continue
		}

		conn := in.upgrader.ConnectionFor(src)
		if conn == nil {
			diags.AddWarning(diagnostic.CodeMissingCredential,
				fmt.Sprintf("no connection for the fetcher of module %d; embedded references left unchanged", src.ID),
				src.ID, "")

			continue
		}

		slices.Sort(names)

		var batch []*blueprint.Module

		for _, name := range names {
			rel, _ := in.rules.RelatedFor(src.Type, name)

			m := in.fetcherModule(alloc.Next(), src, name, rel, conn)
			fetchers[embedded{source: src.ID, field: name}] = m.ID
			batch = append(batch, m)
		}

		p.add(src.ID, fmt.Sprintf("module %d no longer embeds %s", src.ID, strings.Join(names, ", ")), batch...)
	}

	if len(fetchers) > 0 {
		p.rewrite = func(site expr.Site) (string, bool) {
			key, rel, ok := in.embeddedRef(mods, site.Ref)
			if !ok {
				return "", false
			}

			id, ok := fetchers[key]
			if !ok {
				return "", false
			}

			sub := site.Ref.Path[1]
			sub.Name = rel.Rename(sub.Name)

			ref := expr.Reference{Module: id, Path: append([]expr.Segment{sub}, site.Ref.Path[2:]...)}

			return ref.String(), true
		}
	}

	return in.apply(ctx, bp, p, diags)
}

// embeddedRef matches {{src.<field>.<sub>}} where field is an embedded
// related entity of src and sub is not the id the field now holds.
func (in *Injector) embeddedRef(mods map[int]*blueprint.Module, ref expr.Reference) (embedded, *rules.Related, bool) {
	src, ok := mods[ref.Module]
	if !ok || len(ref.Path) < 2 || ref.Path[0].Indexed {
		return embedded{}, nil, false
	}

	// A module left on its legacy type still returns the embedded object.
	if in.upgrader.IsLegacy(src) {
		return embedded{}, nil, false
	}

	rel, ok := in.rules.RelatedFor(src.Type, ref.Path[0].Name)
	if !ok || in.rules.IsLossless(ref.Path[1].Name) {
		return embedded{}, nil, false
	}

	return embedded{source: src.ID, field: ref.Path[0].Name}, rel, true
}

func (in *Injector) fetcherModule(id int, src *blueprint.Module, field string, rel *rules.Related, conn any) *blueprint.Module {
	m := &blueprint.Module{
		ID:      id,
		Type:    rel.Module,
		Version: rel.Version,
		Mapper: map[string]any{
			"id": expr.Wrap(expr.Reference{Module: src.ID, Path: []expr.Segment{expr.Field(field)}}.String()),
		},
		Metadata: map[string]any{
			"restore": map[string]any{},
			"expect":  []any{upgrade.IDSchema(rel.Entity)},
		},
	}

	m.SetName(rel.Name)
	in.connected(m, conn)

	return m
}
