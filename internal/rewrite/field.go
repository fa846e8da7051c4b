package rewrite

import (
	"fmt"
	"slices"
	"strings"

	"blueprint-migrator/internal/diagnostic"
	"blueprint-migrator/internal/expr"
	"blueprint-migrator/internal/fields"
)

// field rewrites the entity-relative part of ref starting at base. A non-empty
// string result replaces the whole token with an expression.
func (r *Rewriter) field(t *Target, ref expr.Reference, base int, site expr.Site) (expr.Reference, string) {
	head := ref.Path[base]
	rest := ref.Path[base+1:]

	if fields.IsHash(head.Name) {
		return r.customField(t, ref, base, head.Name, site)
	}

	if hash, prop, ok := fields.SplitCompanion(head.Name); ok {
		// <hash>_currency -> custom_fields.<hash>.currency
		path := slices.Concat(ref.Path[:base], []expr.Segment{
			expr.Field(segCustomFields), expr.Field(hash), {Name: prop, Indexed: head.Indexed, Index: head.Index},
		}, rest)

		return expr.Reference{Module: ref.Module, Path: path}, ""
	}

	e := t.Entity
	if e == nil || head.Name == segCustomFields {
		return ref, ""
	}

	if e.IsFlattened(head.Name) && len(rest) > 0 {
		if _, ok := r.rules.RelatedFor(t.Type, head.Name); ok && !r.rules.IsLossless(rest[0].Name) {
			// Resolved by an injected fetcher.
			return ref, ""
		}

		if !r.rules.IsLossless(rest[0].Name) {
			r.lossy(t, ref, head.Name)
		}

		renamed := expr.Field(e.Rename(head.Name))

		return ref.Truncate(base).Append(renamed), ""
	}

	renamed := head
	renamed.Name = e.Rename(head.Name)
	ref = expr.Reference{Module: ref.Module, Path: slices.Concat(ref.Path[:base], []expr.Segment{renamed}, rest)}

	if t.Migrated && len(rest) == 0 && e.IsDateOnly(head.Name) && !wrappedInAddHours(site) {
		return ref, expr.AddHours(ref.String(), 0)
	}

	return ref, ""
}

// customField rewrites a flat custom field reference <hash>[.rest].
func (r *Rewriter) customField(t *Target, ref expr.Reference, base int, hash string, site expr.Site) (expr.Reference, string) {
	head := ref.Path[base]
	rest := ref.Path[base+1:]

	key := head
	key.Quoted = false

	normalized := expr.Reference{
		Module: ref.Module,
		Path:   slices.Concat(ref.Path[:base], []expr.Segment{expr.Field(segCustomFields), key}, rest),
	}

	def, hasDef := r.definition(t, hash)

	switch {
	case len(rest) == 0 && (r.structured[t.ID][hash] || hasDef && def.IsStructured()):
		return normalized.Append(expr.Field(segValue)), ""
	case len(rest) == 0 && hasDef && def.Type == fields.TypeDate && t.Migrated && !wrappedInAddHours(site):
		return normalized, expr.AddHours(normalized.String(), 0)
	case len(rest) == 1 && rest[0].Name == segLabel && hasDef && def.IsEnum():
		helper, ok := r.helpers[t.Entity.Fields]
		if !ok {
			r.unresolvedLabel(t, ref, "no field definition helper is available")

			return normalized, ""
		}

		value := normalized.Truncate(len(normalized.Path) - 1).String()

		return normalized, expr.OptionLookup(helper, hash, segLabel, "id", value)
	case len(rest) > 0 && rest[0].Name == segLabel && !hasDef:
		r.unresolvedLabel(t, ref, "the field definition is unknown")
	}

	return normalized, ""
}

func (r *Rewriter) definition(t *Target, hash string) (fields.Definition, bool) {
	if t.Entity == nil || t.Entity.Fields == "" {
		return fields.Definition{}, false
	}

	return r.fields.Lookup(t.Entity.Fields, hash)
}

func (r *Rewriter) lossy(t *Target, ref expr.Reference, field string) {
	key := "lossy:" + ref.String()
	if r.reported[key] {
		return
	}

	r.reported[key] = true
	r.diags.AddWarning(diagnostic.CodeLossyFlatten,
		fmt.Sprintf("{{%s}}: v2 returns only the id of %s; the sub-path was dropped", ref, field),
		t.ID, ref.String())
}

func (r *Rewriter) unresolvedLabel(t *Target, ref expr.Reference, reason string) {
	key := "label:" + ref.String()
	if r.reported[key] {
		return
	}

	r.reported[key] = true
	r.diags.AddWarning(diagnostic.CodeLabelReferenceUnresolved,
		fmt.Sprintf("{{%s}}: option label cannot be rewritten, %s", ref, reason),
		t.ID, ref.String())
}

func wrappedInAddHours(site expr.Site) bool {
	return strings.HasSuffix(site.Preceding(), "addHours(")
}
