package upgrade

import (
	"fmt"
	"strconv"
	"strings"

	"blueprint-migrator/internal/blueprint"
	"blueprint-migrator/internal/diagnostic"
	"blueprint-migrator/internal/expr"
)

// Input names whose v2 shape differs from v1.
const (
	inputVisibleTo     = "visible_to"
	inputStart         = "start"
	inputSort          = "sort"
	inputSortBy        = "sort_by"
	inputSortDirection = "sort_direction"
	inputExactMatch    = "exact_match"
	inputMatch         = "match"
)

// fixInputs applies the v2 structural changes to a set of named inputs.
func (w *work) fixInputs(in map[string]any, path string) {
	if v, ok := in[inputVisibleTo]; ok {
		if n, ok := digits(v); ok {
			in[inputVisibleTo] = n
		}
	}

	if _, ok := in[inputStart]; ok {
		delete(in, inputStart)
		w.paginationRemoved(path + "." + inputStart)
	}

	if v, ok := in[inputSort]; ok {
		delete(in, inputSort)

		if by, dir, ok := w.splitSort(v, path+"."+inputSort); ok {
			in[inputSortBy] = by
			in[inputSortDirection] = dir
		}
	}

	if v, ok := in[inputExactMatch]; ok {
		delete(in, inputExactMatch)
		in[inputMatch] = matchMode(v)
	}
}

// fixQuery applies the same changes to a query list of {name, value} items.
func (w *work) fixQuery(items []any, path string) []any {
	out := make([]any, 0, len(items))

	for i, item := range items {
		obj, ok := blueprint.Object(item)
		if !ok {
			continue
		}

		name, _ := obj["name"].(string)
		itemPath := fmt.Sprintf("%s[%d]", path, i)

		switch name {
		case inputVisibleTo:
			if n, ok := digits(obj["value"]); ok {
				obj["value"] = n
			}
		case inputStart:
			w.paginationRemoved(itemPath)

			continue
		case inputSort:
			by, dir, ok := w.splitSort(obj["value"], itemPath)
			if ok {
				out = append(out,
					map[string]any{"name": inputSortBy, "value": by},
					map[string]any{"name": inputSortDirection, "value": dir})
			}

			continue
		case inputExactMatch:
			obj["name"] = inputMatch
			obj["value"] = matchMode(obj["value"])
		}

		out = append(out, obj)
	}

	return out
}

func (w *work) paginationRemoved(path string) {
	w.diags.AddWarning(diagnostic.CodePaginationRemoved,
		"offset pagination is not supported by v2 and was removed; page with the cursor instead", w.m.ID, path)
}

// splitSort splits "field DIR" into sort_by and sort_direction. ok is false
// when there is nothing to sort by.
func (w *work) splitSort(v any, path string) (any, string, bool) {
	s, isString := v.(string)
	if !isString {
		return v, "asc", v != nil
	}

	if expr.HasTemplate(s) {
		w.diags.AddWarning(diagnostic.CodeDynamicSort,
			"sort is computed at run time; check that it yields a field name only, the direction defaults to asc", w.m.ID, path)

		return s, "asc", true
	}

	keys := strings.Split(s, ",")

	parts := strings.Fields(keys[0])
	if len(parts) == 0 {
		return nil, "", false
	}

	if len(keys) > 1 {
		w.diags.AddWarning(diagnostic.CodeDynamicSort,
			fmt.Sprintf("v2 sorts by one field; only %q was kept", strings.TrimSpace(keys[0])), w.m.ID, path)
	}

	dir := "asc"
	if len(parts) > 1 && strings.EqualFold(parts[1], "desc") {
		dir = "desc"
	}

	return parts[0], dir, true
}

// matchMode turns the legacy exact_match flag into the v2 match mode.
func matchMode(v any) any {
	switch t := v.(type) {
	case bool:
		if t {
			return "exact"
		}

		return "fuzzy"
	case string:
		if body, ok := expr.Unwrap(t); ok {
			return expr.Wrap(expr.Call("if", body, `"exact"`, `"fuzzy"`))
		}

		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes":
			return "exact"
		default:
			return "fuzzy"
		}
	default:
		if n, ok := blueprint.Int(v); ok && n != 0 {
			return "exact"
		}

		return "fuzzy"
	}
}

// digits converts a static digit string to an int.
func digits(v any) (int, bool) {
	s, ok := v.(string)
	if !ok || s == "" {
		return 0, false
	}

	for i := range len(s) {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}

	n, err := strconv.Atoi(s)

	return n, err == nil
}
