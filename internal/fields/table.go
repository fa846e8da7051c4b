package fields

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"blueprint-migrator/internal/diagnostic"
)

// Provider fetches the custom field definitions of one category
// ("deal", "person", ...).
type Provider interface {
	Fields(ctx context.Context, category string) ([]Definition, error)
}

// ErrNoProvider is reported when label resolution has no definition source.
var ErrNoProvider = errors.New("no field definition provider configured")

// Table is a read-only lookup of definitions by category and key.
type Table struct {
	byCategory map[string]map[string]Definition
}

// NewTable builds a table from definitions grouped by category.
func NewTable(defs map[string][]Definition) *Table {
	t := &Table{byCategory: make(map[string]map[string]Definition, len(defs))}

	for category, list := range defs {
		byKey := make(map[string]Definition, len(list))
		for _, d := range list {
			byKey[d.Key] = d
		}

		t.byCategory[category] = byKey
	}

	return t
}

// Lookup returns the definition of key within category.
func (t *Table) Lookup(category, key string) (Definition, bool) {
	if t == nil {
		return Definition{}, false
	}

	d, ok := t.byCategory[category][key]

	return d, ok
}

// Has reports whether definitions were loaded for category.
func (t *Table) Has(category string) bool {
	if t == nil {
		return false
	}

	_, ok := t.byCategory[category]

	return ok
}

// Categories returns the loaded categories, sorted.
func (t *Table) Categories() []string {
	if t == nil {
		return nil
	}

	out := make([]string, 0, len(t.byCategory))
	for c := range t.byCategory {
		out = append(out, c)
	}

	slices.Sort(out)

	return out
}

// Load fetches every category through p. Failures degrade to warnings: the
// returned table holds whatever could be fetched, and a nil provider yields an
// empty table with a single warning.
func Load(ctx context.Context, p Provider, categories []string, diags *diagnostic.Diagnostics) *Table {
	defs := make(map[string][]Definition)

	if p == nil {
		diags.AddWarning(diagnostic.CodeFieldDefinitionsUnavailable,
			ErrNoProvider.Error()+"; option labels are left unresolved", 0, "")

		return NewTable(defs)
	}

	var failed []string

	for _, c := range categories {
		list, err := p.Fields(ctx, c)
		if err != nil {
			if ctx.Err() != nil {
				break
			}

			failed = append(failed, c)
			diags.AddWarning(diagnostic.CodeFieldDefinitionsPartial,
				fmt.Sprintf("could not load %s field definitions: %v", c, err), 0, c)

			continue
		}

		defs[c] = list
	}

	if len(failed) == len(categories) && len(categories) > 0 {
		diags.AddWarning(diagnostic.CodeFieldDefinitionsUnavailable,
			"no field definitions could be loaded; option labels are left unresolved", 0, "")
	}

	return NewTable(defs)
}

// Static is an in-memory Provider.
type Static map[string][]Definition

// Fields implements Provider.
func (s Static) Fields(_ context.Context, category string) ([]Definition, error) {
	list, ok := s[category]
	if !ok {
		return nil, fmt.Errorf("category %q not available", category)
	}

	return list, nil
}
