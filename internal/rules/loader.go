package rules

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

var loadDefault = sync.OnceValues(func() (*Set, error) {
	return Parse(defaultRules)
})

// Default returns the built-in rule set. It is parsed once and must be
// treated as read-only.
func Default() *Set {
	set, err := loadDefault()
	if err != nil {
		panic(fmt.Sprintf("rules: embedded rule table is invalid: %v", err))
	}

	return set
}

// LoadFile loads and parses a YAML rule file from the given path.
func LoadFile(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}

	return Parse(data)
}

// Parse parses YAML data into an indexed Set and validates it.
func Parse(data []byte) (*Set, error) {
	var set Set

	err := yaml.Unmarshal(data, &set)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rules YAML: %w", err)
	}

	if set.Version != 1 {
		return nil, fmt.Errorf("unsupported rules version %d", set.Version)
	}

	applyDefaults(&set)

	diags := set.Validate()
	if err := diags.Error(); err != nil {
		return nil, fmt.Errorf("invalid rules: %w", err)
	}

	set.index()

	return &set, nil
}

// applyDefaults fills in default values for optional fields.
func applyDefaults(set *Set) {
	if set.Connection.Parameter == "" {
		set.Connection.Parameter = "__IMTCONN__"
	}

	for name, e := range set.Entities {
		if e == nil {
			e = &Entity{}
			set.Entities[name] = e
		}

		e.Name = name
	}

	for i := range set.Modules {
		r := &set.Modules[i]
		r.Method = strings.ToUpper(r.Method)

		if r.Category == CategoryHTTP || r.Category == CategoryGeneric {
			if r.To == "" {
				r.To = set.APICall.Module
			}
		}
	}
}

func (s *Set) index() {
	s.byType = make(map[string]*ModuleRule)
	s.byOutput = make(map[string]*Entity)
	s.targets = make(map[string]bool)
	s.triggers = make(map[string]bool)

	for _, t := range s.Triggers {
		s.triggers[t] = true
	}

	for i := range s.Modules {
		r := &s.Modules[i]

		for _, from := range r.From {
			s.byType[from] = r
		}

		s.targets[r.To] = true

		if r.Category == CategoryTrigger {
			s.triggers[r.To] = true

			for _, from := range r.From {
				s.triggers[from] = true
			}
		}

		e, ok := s.Entities[r.Entity]
		if !ok || r.Category == CategoryHTTP {
			continue
		}

		// Generic replacements share the raw API call type, which carries
		// no entity of its own.
		if r.Category != CategoryGeneric {
			s.byOutput[r.To] = e
		}
	}

	for _, e := range s.Entities {
		for _, t := range e.Modules {
			s.byOutput[t] = e
		}

		for _, rel := range e.Related {
			if target, ok := s.Entities[rel.Entity]; ok {
				s.byOutput[rel.Module] = target
			}
		}
	}
}

// Lookup returns the upgrade rule for a module type.
func (s *Set) Lookup(moduleType string) (*ModuleRule, bool) {
	r, ok := s.byType[moduleType]

	return r, ok
}

// EntityOf returns the entity whose fields a current module type outputs.
// Legacy types have no entry: their output keeps the old field names until
// the module is upgraded.
func (s *Set) EntityOf(moduleType string) (*Entity, bool) {
	e, ok := s.byOutput[moduleType]

	return e, ok
}

// Entity returns an entity by name.
func (s *Set) Entity(name string) (*Entity, bool) {
	e, ok := s.Entities[name]

	return e, ok
}

// IsLegacy reports whether a module type still has an upgrade rule pending.
func (s *Set) IsLegacy(moduleType string) bool {
	_, ok := s.byType[moduleType]

	return ok && !s.targets[moduleType]
}

// IsTarget reports whether the type is produced by some upgrade rule.
func (s *Set) IsTarget(moduleType string) bool {
	return s.targets[moduleType]
}

// IsTrigger reports whether a module type starts a scenario: a CRM trigger
// type, a listed trigger, or a watch module of any app.
func (s *Set) IsTrigger(moduleType string) bool {
	if s.triggers[moduleType] {
		return true
	}

	_, action, ok := strings.Cut(moduleType, ":")

	return ok && strings.HasPrefix(strings.ToLower(action), "watch")
}

// InNamespace reports whether a module type belongs to the CRM app.
func (s *Set) InNamespace(moduleType string) bool {
	return strings.HasPrefix(moduleType, s.Namespace+":")
}

// IsKnown reports whether a CRM module type is covered by the tables, either
// as a legacy type, an upgrade target, or an entity output type.
func (s *Set) IsKnown(moduleType string) bool {
	if _, ok := s.byType[moduleType]; ok {
		return true
	}

	if _, ok := s.byOutput[moduleType]; ok {
		return true
	}

	return s.targets[moduleType] || moduleType == s.APICall.Module || moduleType == s.Script.Module
}

// IsTechnical reports whether a parameter is credential or runtime plumbing.
func (s *Set) IsTechnical(name string) bool {
	return slices.Contains(s.TechnicalParameters, name)
}

// IsLossless reports whether a sub-path of a flattened object is the id the
// field now holds.
func (s *Set) IsLossless(sub string) bool {
	return slices.Contains(s.FlattenLossless, sub)
}

// RelatedFor returns the related-entity rule embedded at field of the given
// source module type.
func (s *Set) RelatedFor(moduleType, field string) (*Related, bool) {
	e, ok := s.EntityOf(moduleType)
	if !ok {
		return nil, false
	}

	rel, ok := e.Related[field]
	if !ok || !rel.Sources.Contains(moduleType) {
		return nil, false
	}

	return rel, true
}

// FieldCategories returns every field-definition category named by entities.
func (s *Set) FieldCategories() []string {
	seen := make(map[string]bool)

	var out []string

	for _, e := range s.Entities {
		if e.Fields != "" && !seen[e.Fields] {
			seen[e.Fields] = true
			out = append(out, e.Fields)
		}
	}

	slices.Sort(out)

	return out
}
