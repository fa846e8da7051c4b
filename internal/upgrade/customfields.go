package upgrade

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"blueprint-migrator/internal/blueprint"
	"blueprint-migrator/internal/diagnostic"
	"blueprint-migrator/internal/expr"
	"blueprint-migrator/internal/fields"
)

const keyCustomFields = "custom_fields"

// structuredHashes returns the custom fields whose v2 value is an object:
// those with a structured definition type, or with a companion key anywhere
// in the module's inputs or declared schema.
func (w *work) structuredHashes() map[string]bool {
	out := make(map[string]bool)

	mark := func(key string) {
		if hash, _, ok := fields.SplitCompanion(key); ok {
			out[hash] = true
		}
	}

	for key := range w.m.Mapper {
		mark(key)
	}

	for _, name := range schemaNames(w.m.Metadata["expect"]) {
		mark(name)
	}

	if re, ok := blueprint.Path(w.m.Metadata, "restore", "expect"); ok {
		obj, _ := blueprint.Object(re)
		for key := range obj {
			mark(key)
		}
	}

	for key := range w.m.Mapper {
		if def, ok := w.definition(key); ok && def.IsStructured() {
			out[key] = true
		}
	}

	return out
}

// regroup moves flat custom field keys of in under in["custom_fields"].
// Structured fields become {"value": ..., "<companion>": ...}; option fields
// have their labels resolved to ids when definitions are available.
func (w *work) regroup(in map[string]any, path string, structured map[string]bool) {
	type group struct {
		value    any
		hasValue bool
		props    map[string]any
	}

	groups := make(map[string]*group)
	get := func(hash string) *group {
		g, ok := groups[hash]
		if !ok {
			g = &group{props: map[string]any{}}
			groups[hash] = g
		}

		return g
	}

	for _, key := range slices.Sorted(maps.Keys(in)) {
		v := in[key]

		if fields.IsHash(key) {
			g := get(key)
			g.value, g.hasValue = v, true

			delete(in, key)

			continue
		}

		if hash, prop, ok := fields.SplitCompanion(key); ok {
			get(hash).props[prop] = v

			delete(in, key)
		}
	}

	if len(groups) == 0 {
		return
	}

	cf, ok := blueprint.Object(in[keyCustomFields])
	if !ok {
		cf = make(map[string]any, len(groups))
	}

	for _, hash := range slices.Sorted(maps.Keys(groups)) {
		g := groups[hash]
		fieldPath := path + "." + keyCustomFields + "." + hash

		value := g.value
		if g.hasValue {
			if def, ok := w.definition(hash); ok {
				value = w.resolveOption(def, value, fieldPath)
			}
		}

		if !structured[hash] && len(g.props) == 0 {
			cf[hash] = value

			continue
		}

		obj := make(map[string]any, len(g.props)+1)
		if g.hasValue {
			obj["value"] = value
		}

		for prop, v := range g.props {
			obj[prop] = v
		}

		cf[hash] = obj
	}

	in[keyCustomFields] = cf
}

func (w *work) definition(hash string) (fields.Definition, bool) {
	if w.entity == nil || w.entity.Fields == "" {
		return fields.Definition{}, false
	}

	return w.opts.Fields.Lookup(w.entity.Fields, hash)
}

func (w *work) resolveOption(def fields.Definition, v any, path string) any {
	switch {
	case def.IsSet():
		return w.resolveSet(def, v, path)
	case def.IsEnum():
		return w.resolveEnum(def, v, path)
	default:
		return v
	}
}

// resolveEnum turns a single-select label into its option id. A run-time
// value becomes a lookup against the field-definition helper.
func (w *work) resolveEnum(def fields.Definition, v any, path string) any {
	s, ok := v.(string)
	if !ok {
		if n, ok := blueprint.Int(v); ok {
			return n
		}

		return v
	}

	if expr.HasTemplate(s) {
		body, ok := expr.Unwrap(s)
		helper, hasHelper := w.opts.Helpers[w.entity.Fields]

		if !ok || !hasHelper {
			return s
		}

		return expr.Wrap(expr.OptionLookup(helper, def.Key, "id", "label", body))
	}

	if s == "" {
		return s
	}

	id, ok := w.optionID(def, s, path)
	if !ok {
		return s
	}

	return id
}

// resolveSet turns a comma-separated or array multi-select value into an id
// array. Unresolved labels stay in place as strings.
func (w *work) resolveSet(def fields.Definition, v any, path string) any {
	var items []any

	switch t := v.(type) {
	case string:
		if expr.HasTemplate(t) || strings.TrimSpace(t) == "" {
			return t
		}

		for _, part := range strings.Split(t, ",") {
			items = append(items, strings.TrimSpace(part))
		}
	case []any:
		items = t
	default:
		return v
	}

	out := make([]any, 0, len(items))

	for _, item := range items {
		if n, ok := blueprint.Int(item); ok {
			out = append(out, n)

			continue
		}

		s, ok := item.(string)
		if !ok || expr.HasTemplate(s) {
			out = append(out, item)

			continue
		}

		if s == "" {
			continue
		}

		id, ok := w.optionID(def, s, path)
		if !ok {
			out = append(out, s)

			continue
		}

		out = append(out, id)
	}

	return out
}

func (w *work) optionID(def fields.Definition, s, path string) (int, bool) {
	if n, ok := digits(s); ok {
		return n, true
	}

	if id, ok := def.OptionID(s); ok {
		return id, true
	}

	w.diags.Add(diagnostic.Diagnostic{
		Severity:    diagnostic.SeverityWarning,
		Code:        diagnostic.CodeUnresolvedLabel,
		Message:     fmt.Sprintf("%q is not an option of %s", s, fieldName(def)),
		ModuleID:    w.m.ID,
		FieldPath:   path,
		Suggestions: def.Suggest(s),
	})

	return 0, false
}

func fieldName(def fields.Definition) string {
	if def.Name != "" {
		return fmt.Sprintf("%q (%s)", def.Name, def.Key)
	}

	return def.Key
}

// schemaNames returns the names of a declared schema list.
func schemaNames(v any) []string {
	list, _ := blueprint.Array(v)

	names := make([]string, 0, len(list))
	for _, e := range list {
		obj, ok := blueprint.Object(e)
		if !ok {
			continue
		}

		if name, ok := obj["name"].(string); ok {
			names = append(names, name)
		}
	}

	return slices.Clip(names)
}
