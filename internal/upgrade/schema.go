package upgrade

import (
	"maps"
	"slices"
	"strings"

	"blueprint-migrator/internal/blueprint"
	"blueprint-migrator/internal/fields"
)

const keyIncludeFields = "include_fields"

// groupSchema moves custom field entries of a declared schema list into a
// single "custom_fields" collection. Structured fields become collections
// with a "value" entry and one entry per companion.
func groupSchema(list []any, structured map[string]bool) []any {
	var (
		rest   []any
		byHash = map[string]map[string]any{}
		order  []string
	)

	entry := func(hash string) map[string]any {
		e, ok := byHash[hash]
		if !ok {
			e = map[string]any{"name": hash, "label": hash}
			byHash[hash] = e
			order = append(order, hash)
		}

		return e
	}

	for _, item := range list {
		obj, ok := blueprint.Object(item)
		if !ok {
			rest = append(rest, item)

			continue
		}

		name, _ := obj["name"].(string)

		switch hash, prop, isCompanion := fields.SplitCompanion(name); {
		case fields.IsHash(name):
			e := entry(name)
			for k, v := range obj {
				if k != "spec" || !structured[name] {
					e[k] = v
				}
			}
		case isCompanion:
			sub := blueprint.CloneObject(obj)
			sub["name"] = prop

			e := entry(hash)
			e["_props"] = append(asList(e["_props"]), sub)
		default:
			rest = append(rest, item)
		}
	}

	if len(order) == 0 {
		return list
	}

	spec := make([]any, 0, len(order))

	for _, hash := range order {
		e := byHash[hash]
		props := asList(e["_props"])
		delete(e, "_props")

		if structured[hash] || len(props) > 0 {
			valueType, _ := e["type"].(string)
			if valueType == "" || valueType == "collection" {
				valueType = "text"
			}

			inner := append([]any{map[string]any{"name": "value", "type": valueType, "label": "Value"}}, props...)
			e["type"] = "collection"
			e["spec"] = inner
		}

		spec = append(spec, e)
	}

	for i, item := range rest {
		obj, ok := blueprint.Object(item)
		if ok && obj["name"] == keyCustomFields {
			existing, _ := blueprint.Array(obj["spec"])
			obj["spec"] = append(existing, spec...)
			rest[i] = obj

			return rest
		}
	}

	return append(rest, map[string]any{
		"name":  keyCustomFields,
		"type":  "collection",
		"label": "Custom Fields",
		"spec":  spec,
	})
}

func asList(v any) []any {
	list, _ := blueprint.Array(v)

	return list
}

// rebuildExpect regenerates the declared input schema of a native module.
func (w *work) rebuildExpect(structured map[string]bool) {
	md := w.metadata()
	list, hadExpect := blueprint.Array(md["expect"])

	idKey := "id"
	if w.rule.IDKey != "" {
		idKey = w.rule.IDKey
	}

	hasID := false

	for _, item := range list {
		obj, ok := blueprint.Object(item)
		if !ok {
			continue
		}

		if obj["name"] == "id" && idKey != "id" {
			obj["name"] = idKey
		}

		if obj["name"] == idKey {
			hasID = true
		}
	}

	list = groupSchema(list, structured)

	if w.rule.Operation.SingleEntity() && !hasID {
		list = append([]any{IDSchema(w.rule.Entity)}, list...)
	}

	if hadExpect || len(list) > 0 {
		md["expect"] = list
	}
}

// rebuildRestore nests custom field restore hints under custom_fields and
// applies the scoped-list id rename.
func (w *work) rebuildRestore() {
	restore := w.restore()

	re, ok := blueprint.Object(restore["expect"])
	if !ok {
		return
	}

	if w.rule.IDKey != "" {
		renameKey(re, "id", w.rule.IDKey)
	}

	nested := map[string]any{}

	for _, key := range slices.Sorted(maps.Keys(re)) {
		if _, _, ok := fields.SplitCompanion(key); ok || fields.IsHash(key) {
			nested[key] = re[key]
			delete(re, key)
		}
	}

	if len(nested) == 0 {
		return
	}

	cf, ok := blueprint.Object(re[keyCustomFields])
	if !ok {
		cf = map[string]any{}
		re[keyCustomFields] = cf
	}

	existing, ok := blueprint.Object(cf["nested"])
	if !ok {
		existing = map[string]any{}
		cf["nested"] = existing
	}

	maps.Copy(existing, nested)
}

// offerIncludeFields declares the v2 include_fields input on reads of an
// entity that has optional output fields, with the chooser left open.
func (w *work) offerIncludeFields() {
	if w.entity == nil || len(w.entity.IncludeFields) == 0 || !w.rule.Operation.Reads() {
		return
	}

	md := w.metadata()
	list, _ := blueprint.Array(md["expect"])

	declared := slices.ContainsFunc(list, func(item any) bool {
		obj, ok := blueprint.Object(item)

		return ok && obj["name"] == keyIncludeFields
	})

	if !declared {
		enum := make([]any, len(w.entity.IncludeFields))
		for i, name := range w.entity.IncludeFields {
			enum[i] = name
		}

		md["expect"] = append(list, map[string]any{
			"name":     keyIncludeFields,
			"type":     "select",
			"label":    "Include fields",
			"multiple": true,
			"validate": map[string]any{"enum": enum},
		})
	}

	restore := w.restore()

	re, ok := blueprint.Object(restore["expect"])
	if !ok {
		re = map[string]any{}
		restore["expect"] = re
	}

	if _, ok := re[keyIncludeFields]; !ok {
		re[keyIncludeFields] = map[string]any{"mode": "chose"}
	}
}

// rebuildInterface applies the entity's renames to the declared output
// schema and groups its custom fields.
func (w *work) rebuildInterface(structured map[string]bool) {
	md := w.metadata()

	list, ok := blueprint.Array(md["interface"])
	if !ok {
		return
	}

	if w.entity != nil {
		for _, item := range list {
			obj, ok := blueprint.Object(item)
			if !ok {
				continue
			}

			name, _ := obj["name"].(string)

			if w.entity.IsFlattened(name) && obj["type"] == "collection" {
				obj["type"] = "uinteger"
				delete(obj, "spec")
			}

			obj["name"] = w.entity.Rename(name)
		}
	}

	md["interface"] = groupSchema(list, structured)
}

func renameKey(m map[string]any, from, to string) {
	v, ok := m[from]
	if !ok {
		return
	}

	delete(m, from)
	m[to] = v
}

// IDSchema returns the declared input of a single-entity id.
func IDSchema(entity string) map[string]any {
	return map[string]any{
		"name":     "id",
		"type":     "uinteger",
		"label":    entityLabel(entity) + " ID",
		"required": true,
	}
}

func entityLabel(name string) string {
	if name == "" {
		return "Record"
	}

	words := strings.Split(name, "_")
	for i, word := range words {
		if word != "" {
			words[i] = strings.ToUpper(word[:1]) + word[1:]
		}
	}

	return strings.Join(words, " ")
}
