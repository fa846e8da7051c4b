package inject

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"blueprint-migrator/internal/blueprint"
	"blueprint-migrator/internal/diagnostic"
	"blueprint-migrator/internal/expr"
	"blueprint-migrator/internal/fields"
	"blueprint-migrator/internal/rewrite"
)

const (
	scriptResult = "result"
	labelsPrefix = "labels_"
)

// setLabel is a .label reference to a multi-select custom field.
type setLabel struct {
	category string
	hash     string
	// value is the reference to the field's id array.
	value expr.Reference
}

// Scripts injects one label-resolution script after every module whose
// multi-select custom fields are referenced by label, and points those
// references at the script output. targets gives the output entity of every
// module, helpers the field-definition helper per category.
func (in *Injector) Scripts(ctx context.Context, bp *blueprint.Blueprint, targets map[int]*rewrite.Target, helpers map[string]int, diags *diagnostic.Diagnostics) (*blueprint.Blueprint, Stats, error) {
	if in.fields == nil {
		return bp, Stats{}, nil
	}

	p := &plan{pass: "scripts"}

	wanted := make(map[int][]setLabel)
	reported := make(map[string]bool)

	err := rewrite.Scan(bp, func(site expr.Site) {
		lbl, ok := in.setLabelRef(targets, site.Ref)
		if !ok {
			return
		}

		if _, ok := helpers[lbl.category]; !ok {
			if !reported[site.Ref.String()] {
				reported[site.Ref.String()] = true
				diags.AddWarning(diagnostic.CodeLabelReferenceUnresolved,
					fmt.Sprintf("%s: no field definition helper is available to resolve multi-select labels", site.Ref),
					site.Ref.Module, site.Ref.String())
			}

			return
		}

		if !slices.ContainsFunc(wanted[site.Ref.Module], func(l setLabel) bool { return l.hash == lbl.hash }) {
			wanted[site.Ref.Module] = append(wanted[site.Ref.Module], lbl)
		}
	})
	if err != nil {
		return nil, Stats{}, fmt.Errorf("scan label references: %w", err)
	}

	alloc := blueprint.NewAllocator(bp)
	scripts := make(map[int]int)

	for _, src := range bp.Modules() {
		labels, ok := wanted[src.ID]
		if !ok {
			continue
		}

		slices.SortFunc(labels, func(a, b setLabel) int { return strings.Compare(a.hash, b.hash) })

		m := in.scriptModule(alloc.Next(), labels, helpers)
		scripts[src.ID] = m.ID

		p.add(src.ID, fmt.Sprintf("multi-select labels of module %d are resolved at run time", src.ID), m)
	}

	if len(scripts) > 0 {
		p.rewrite = func(site expr.Site) (string, bool) {
			lbl, ok := in.setLabelRef(targets, site.Ref)
			if !ok {
				return "", false
			}

			id, ok := scripts[site.Ref.Module]
			if !ok {
				return "", false
			}

			ref := expr.Reference{Module: id, Path: []expr.Segment{expr.Field(scriptResult), expr.Field(labelsPrefix + lbl.hash)}}

			return ref.String(), true
		}
	}

	return in.apply(ctx, bp, p, diags)
}

// setLabelRef matches [prefix.]custom_fields.<hash>.label where hash is a
// multi-select field of the module's entity.
func (in *Injector) setLabelRef(targets map[int]*rewrite.Target, ref expr.Reference) (setLabel, bool) {
	t, ok := targets[ref.Module]
	if !ok || t.Entity == nil || t.Entity.Fields == "" {
		return setLabel{}, false
	}

	for i := range ref.Path {
		if ref.Path[i].Name != segCustomFields {
			continue
		}

		if i+3 != len(ref.Path) || !fields.IsHash(ref.Path[i+1].Name) || ref.Path[i+2].Name != "label" {
			return setLabel{}, false
		}

		hash := ref.Path[i+1].Name

		def, ok := in.fields.Lookup(t.Entity.Fields, hash)
		if !ok || !def.IsSet() {
			return setLabel{}, false
		}

		return setLabel{category: t.Entity.Fields, hash: hash, value: ref.Truncate(i + 2)}, true
	}

	return setLabel{}, false
}

func (in *Injector) scriptModule(id int, labels []setLabel, helpers map[string]int) *blueprint.Module {
	var (
		inputs  []any
		outputs []any
		returns []string
	)

	for _, l := range labels {
		inputs = append(inputs,
			map[string]any{"name": l.hash + "_ids", "value": expr.Wrap(l.value.String())},
			map[string]any{"name": l.hash + "_options", "value": expr.Wrap(expr.FieldOptions(helpers[l.category], l.hash))},
		)
		outputs = append(outputs, map[string]any{"name": labelsPrefix + l.hash, "type": "text"})
		returns = append(returns, fmt.Sprintf("  %s%s: labels(input[%q], input[%q]),", labelsPrefix, l.hash, l.hash+"_ids", l.hash+"_options"))
	}

	m := &blueprint.Module{
		ID:         id,
		Type:       in.rules.Script.Module,
		Version:    in.rules.Script.Version,
		Parameters: map[string]any{},
		Mapper: map[string]any{
			"language": "javascript",
			"input":    inputs,
			"code":     labelScript + "\nreturn {\n" + strings.Join(returns, "\n") + "\n};\n",
		},
		Metadata: map[string]any{
			"interface": []any{map[string]any{
				"name": scriptResult,
				"type": "collection",
				"spec": outputs,
			}},
		},
	}

	m.SetName(in.rules.Script.Name)

	return m
}

// labelScript maps an id array (or comma-separated ids) to a comma-joined
// label string. Unknown ids are kept as they are.
const labelScript = `const labels = (ids, options) => {
  const byId = new Map((options || []).map((o) => [String(o.id), o.label]));
  const list = Array.isArray(ids) ? ids : String(ids ?? "").split(",");

  return list
    .map((id) => String(id).trim())
    .filter((id) => id !== "")
    .map((id) => byId.get(id) ?? id)
    .join(", ");
};
`
