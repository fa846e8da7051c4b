package rules

import (
	"fmt"

	"blueprint-migrator/internal/diagnostic"
)

const (
	codeDuplicateType  diagnostic.Code = "rules_duplicate_type"
	codeMissingTarget  diagnostic.Code = "rules_missing_target"
	codeMissingRequest diagnostic.Code = "rules_missing_request"
	codeUnknownEntity  diagnostic.Code = "rules_unknown_entity"
	codeBadOperation   diagnostic.Code = "rules_bad_operation"
	codeMissingIDKey   diagnostic.Code = "rules_missing_id_key"
)

// Validate checks the rule table for internal consistency.
func (s *Set) Validate() diagnostic.Diagnostics {
	var diags diagnostic.Diagnostics

	seen := make(map[string]int)

	for i := range s.Modules {
		r := &s.Modules[i]
		where := fmt.Sprintf("modules[%d]", i)

		if len(r.From) == 0 {
			diags.AddError(codeMissingTarget, "rule has no legacy type", 0, where)
		}

		for _, from := range r.From {
			if prev, ok := seen[from]; ok {
				diags.AddError(codeDuplicateType,
					fmt.Sprintf("type %s already handled by modules[%d]", from, prev), 0, where)
			}

			seen[from] = i
		}

		if !r.Operation.IsValid() {
			diags.AddError(codeBadOperation, fmt.Sprintf("unknown operation %q", r.Operation), 0, where)
		}

		if r.Entity != "" {
			if _, ok := s.Entities[r.Entity]; !ok {
				diags.AddError(codeUnknownEntity, fmt.Sprintf("unknown entity %q", r.Entity), 0, where)
			}
		}

		s.validateCategory(&diags, r, where)
	}

	for name, e := range s.Entities {
		if e == nil {
			continue
		}

		for field, rel := range e.Related {
			where := fmt.Sprintf("entities.%s.related.%s", name, field)

			if _, ok := s.Entities[rel.Entity]; !ok {
				diags.AddError(codeUnknownEntity, fmt.Sprintf("unknown entity %q", rel.Entity), 0, where)
			}

			if rel.Module == "" {
				diags.AddError(codeMissingTarget, "related entity has no fetcher module", 0, where)
			}
		}
	}

	return diags
}

func (s *Set) validateCategory(diags *diagnostic.Diagnostics, r *ModuleRule, where string) {
	switch r.Category {
	case CategoryRename, CategoryTrigger:
		if r.To == "" {
			diags.AddError(codeMissingTarget, "rule has no target type", 0, where)
		}
	case CategoryScopedList:
		if r.To == "" {
			diags.AddError(codeMissingTarget, "rule has no target type", 0, where)
		}

		if r.IDKey == "" {
			diags.AddError(codeMissingIDKey, "scoped list has no id_key", 0, where)
		}
	case CategoryGeneric:
		if r.URL == "" || r.Method == "" {
			diags.AddError(codeMissingRequest, "generic replacement needs url and method", 0, where)
		}

		if s.APICall.Module == "" {
			diags.AddError(codeMissingTarget, "generic replacement needs api_call.module", 0, where)
		}
	case CategoryHTTP:
		if s.APICall.Module == "" {
			diags.AddError(codeMissingTarget, "http rule needs api_call.module", 0, where)
		}
	case CategoryNone:
		diags.AddError(codeMissingTarget, "rule has no category", 0, where)
	}
}
