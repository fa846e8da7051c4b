package inject

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"blueprint-migrator/internal/blueprint"
	"blueprint-migrator/internal/diagnostic"
	"blueprint-migrator/internal/expr"
	"blueprint-migrator/internal/fields"
	"blueprint-migrator/internal/rewrite"
	"blueprint-migrator/internal/rules"
	"blueprint-migrator/internal/upgrade"
)

const segCustomFields = "custom_fields"

// Helpers makes sure every field category whose option labels are needed
// has exactly one field-definition helper, and returns the helper id per
// category. Helpers already in bp are reused. bp is modified in place.
func (in *Injector) Helpers(ctx context.Context, bp *blueprint.Blueprint, diags *diagnostic.Diagnostics) (map[string]int, Stats, error) {
	helpers := make(map[string]int)
	if in.fields == nil {
		return helpers, Stats{}, nil
	}

	needs, err := in.helperNeeds(bp)
	if err != nil {
		return nil, Stats{}, err
	}

	existing := in.existingHelpers(bp)
	alloc := blueprint.NewAllocator(bp)
	p := &plan{pass: "helpers"}

	var mods []*blueprint.Module

	for _, category := range slices.Sorted(maps.Keys(needs)) {
		if id, ok := existing[category]; ok {
			helpers[category] = id

			continue
		}

		anchor := needs[category]

		conn := in.upgrader.ConnectionFor(anchor)
		if conn == nil {
			diags.AddWarning(diagnostic.CodeMissingCredential,
				fmt.Sprintf("no connection for the %s field-definition helper; option labels stay unresolved", category),
				anchor.ID, "")

			continue
		}

		m := in.helperModule(alloc.Next(), category, conn)
		helpers[category] = m.ID
		mods = append(mods, m)
	}

	if len(mods) > 0 {
		p.add(in.headAnchor(bp), "field definitions for option label lookups", mods...)
	}

	_, stats, err := in.apply(ctx, bp, p, diags)
	if err != nil {
		return nil, Stats{}, err
	}

	return helpers, stats, nil
}

// headAnchor is where helpers go: right after a leading trigger, which must
// stay the first module, or at the head of the flow.
func (in *Injector) headAnchor(bp *blueprint.Blueprint) int {
	if len(bp.Flow) > 0 && in.rules.IsTrigger(bp.Flow[0].Type) {
		return bp.Flow[0].ID
	}

	return 0
}

// helperNeeds returns, per field category, a module that needs option
// labels of that category: either a legacy module mapping a run-time value
// into a single-select field, or the source of a .label reference.
func (in *Injector) helperNeeds(bp *blueprint.Blueprint) (map[string]*blueprint.Module, error) {
	needs := make(map[string]*blueprint.Module)

	need := func(category string, m *blueprint.Module) {
		if _, ok := needs[category]; !ok {
			needs[category] = m
		}
	}

	for _, m := range bp.Modules() {
		if category, ok := in.dynamicOptions(m); ok {
			need(category, m)
		}
	}

	mods := index(bp)

	err := rewrite.Scan(bp, func(site expr.Site) {
		src, ok := mods[site.Ref.Module]
		if !ok {
			return
		}

		category, hash, ok := in.labelRef(src, site.Ref)
		if !ok {
			return
		}

		def, ok := in.fields.Lookup(category, hash)
		if ok && (def.IsEnum() || def.IsSet()) {
			need(category, src)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("scan label references: %w", err)
	}

	return needs, nil
}

// dynamicOptions reports the field category of a legacy module that maps a
// run-time value into a known single-select custom field.
func (in *Injector) dynamicOptions(m *blueprint.Module) (string, bool) {
	r, ok := in.upgrader.Rule(m)
	if !ok {
		return "", false
	}

	e, ok := in.rules.Entity(r.Entity)
	if !ok || e.Fields == "" {
		return "", false
	}

	inputs := []map[string]any{m.Mapper}
	if nested, ok := blueprint.Object(m.Mapper[segCustomFields]); ok {
		inputs = append(inputs, nested)
	}

	for _, bag := range inputs {
		for key, v := range bag {
			s, ok := v.(string)
			if !ok || !fields.IsHash(key) || !expr.HasTemplate(s) {
				continue
			}

			if def, ok := in.fields.Lookup(e.Fields, key); ok && def.IsEnum() {
				return e.Fields, true
			}
		}
	}

	return "", false
}

// labelRef matches <hash>.label and custom_fields.<hash>.label references to
// a module with a field category.
func (in *Injector) labelRef(src *blueprint.Module, ref expr.Reference) (string, string, bool) {
	e, ok := in.outputEntity(src)
	if !ok || e.Fields == "" {
		return "", "", false
	}

	path := ref.Path
	if len(path) > 0 && path[0].Name == segCustomFields {
		path = path[1:]
	}

	if len(path) < 2 || !fields.IsHash(path[0].Name) || path[1].Name != "label" {
		return "", "", false
	}

	return e.Fields, path[0].Name, true
}

// outputEntity returns the entity a module outputs once upgraded. Helpers are
// planned before the upgrade walk, so legacy sources resolve through their
// rule.
func (in *Injector) outputEntity(m *blueprint.Module) (*rules.Entity, bool) {
	if r, ok := in.upgrader.Rule(m); ok {
		return in.rules.Entity(r.Entity)
	}

	return in.rules.EntityOf(m.Type)
}

// existingHelpers finds helpers injected by an earlier run.
func (in *Injector) existingHelpers(bp *blueprint.Blueprint) map[string]int {
	out := make(map[string]int)

	for _, m := range bp.Modules() {
		if m.Type != in.rules.APICall.Module || m.Name() != in.rules.Helper.Name {
			continue
		}

		url, _ := m.Mapper["url"].(string)

		for _, category := range in.rules.FieldCategories() {
			if url == in.rules.Helper.PathFor(category) {
				if _, ok := out[category]; !ok {
					out[category] = m.ID
				}
			}
		}
	}

	return out
}

func (in *Injector) helperModule(id int, category string, conn any) *blueprint.Module {
	path := in.rules.Helper.PathFor(category)

	m := &blueprint.Module{
		ID:      id,
		Type:    in.rules.APICall.Module,
		Version: in.rules.APICall.Version,
		Mapper: map[string]any{
			"url":     path,
			"method":  "GET",
			"headers": []any{},
			"qs":      []any{map[string]any{"name": "limit", "value": "500"}},
			"body":    "",
		},
		Metadata: map[string]any{
			"restore": map[string]any{
				"expect": map[string]any{"url": path, "method": "GET"},
			},
			"expect": upgrade.APICallExpect(),
		},
	}

	m.SetName(in.rules.Helper.Name)
	in.connected(m, conn)

	return m
}
