package upgrade

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"blueprint-migrator/internal/blueprint"
	"blueprint-migrator/internal/ctxlog"
	"blueprint-migrator/internal/diagnostic"
	"blueprint-migrator/internal/fields"
	"blueprint-migrator/internal/match"
	"blueprint-migrator/internal/rules"
)

// TargetVersion is the module version of every v2 module.
const TargetVersion = 2

var errNoRule = errors.New("no rule function for category")

// Options configures an Upgrader. Everything is optional.
type Options struct {
	// ConnectionID replaces every credential reference when set.
	ConnectionID *int
	// DefaultConnectionID is used for raw HTTP calls that carry no credential.
	DefaultConnectionID int
	// ConnectionLabel overrides the restore label of the credential.
	ConnectionLabel string
	// Fields resolves option labels. Nil disables label resolution.
	Fields *fields.Table
	// Helpers maps a field category to the id of its field-definition helper.
	Helpers map[string]int
}

// Result describes one committed upgrade.
type Result struct {
	ModuleID int
	From     string
	To       string
	Rule     *rules.ModuleRule
	// Entity is the entity whose fields the module outputs, if any.
	Entity *rules.Entity
	// OutputRoot re-roots downstream references to this module.
	OutputRoot *rules.RootRemap
}

// Upgrader applies upgrade rules to modules.
type Upgrader struct {
	rules *rules.Set
	opts  Options
}

// New returns an Upgrader for the rule set.
func New(set *rules.Set, opts Options) *Upgrader {
	return &Upgrader{rules: set, opts: opts}
}

// WithHelpers returns a copy of u that resolves dynamic option values
// against the given field-definition helpers.
func (u *Upgrader) WithHelpers(helpers map[string]int) *Upgrader {
	c := *u
	c.opts.Helpers = helpers

	return &c
}

// Fields returns the field-definition table, which may be nil.
func (u *Upgrader) Fields() *fields.Table {
	return u.opts.Fields
}

// Rule returns the upgrade rule that applies to m, if m is legacy.
func (u *Upgrader) Rule(m *blueprint.Module) (*rules.ModuleRule, bool) {
	r, ok := u.rules.Lookup(m.Type)
	if !ok {
		return nil, false
	}

	// Same-name upgrades only differ by version.
	if r.Identity() && m.Version >= TargetVersion {
		return nil, false
	}

	if r.RequireHost && !strings.Contains(strings.ToLower(requestURL(m)), u.rules.HTTP.Host) {
		return nil, false
	}

	return r, true
}

// IsLegacy reports whether m would be upgraded.
func (u *Upgrader) IsLegacy(m *blueprint.Module) bool {
	_, ok := u.Rule(m)

	return ok
}

// Apply upgrades m in place and returns what changed, or nil when m was left
// untouched. Skips and failures are recorded in diags.
func (u *Upgrader) Apply(ctx context.Context, m *blueprint.Module, diags *diagnostic.Diagnostics) *Result {
	r, ok := u.Rule(m)
	if !ok {
		u.checkUnknown(m, diags)

		return nil
	}

	conn, ok := u.connection(m, r)
	if !ok && r.Category != rules.CategoryTrigger {
		diags.AddWarning(diagnostic.CodeMissingCredential,
			fmt.Sprintf("%s has no connection; module left unchanged", m.Type), m.ID, "parameters."+u.rules.Connection.Parameter)

		return nil
	}

	w := &work{
		Upgrader: u,
		rule:     r,
		m:        shallowClone(m),
		conn:     conn,
		hasConn:  ok,
		result:   &Result{ModuleID: m.ID, From: m.Type, Rule: r},
	}

	if e, ok := u.rules.Entity(r.Entity); ok {
		w.entity = e
		w.result.Entity = e
	}

	err := w.run()
	if err != nil {
		diags.AddWarning(diagnostic.CodeModuleFailed,
			fmt.Sprintf("%s could not be upgraded: %v", m.Type, err), m.ID, "")

		return nil
	}

	w.commit(m)
	diags.Merge(w.diags)

	w.result.To = m.Type
	diags.AddInfo(diagnostic.CodeModuleMigrated, fmt.Sprintf("%s -> %s", w.result.From, w.result.To), m.ID, "")
	ctxlog.FromContext(ctx).Info("module migrated", "module_id", m.ID, "from", w.result.From, "to", w.result.To)

	return w.result
}

func (u *Upgrader) checkUnknown(m *blueprint.Module, diags *diagnostic.Diagnostics) {
	if !u.rules.InNamespace(m.Type) || u.rules.IsKnown(m.Type) {
		return
	}

	var legacy []string
	for _, r := range u.rules.Modules {
		legacy = append(legacy, r.From...)
	}

	var suggestions []string
	for _, c := range match.Rank(m.Type, legacy, match.IdentScore, match.DefaultThreshold) {
		suggestions = append(suggestions, c.Value)
		if len(suggestions) == 3 {
			break
		}
	}

	diags.Add(diagnostic.Diagnostic{
		Severity:    diagnostic.SeverityWarning,
		Code:        diagnostic.CodeUnknownModule,
		Message:     fmt.Sprintf("no upgrade rule for %s", m.Type),
		ModuleID:    m.ID,
		Suggestions: suggestions,
	})
}

// work is the state of one in-flight upgrade.
type work struct {
	*Upgrader

	rule    *rules.ModuleRule
	entity  *rules.Entity
	m       *blueprint.Module
	conn    any
	hasConn bool
	diags   diagnostic.Diagnostics
	result  *Result
}

func (w *work) run() error {
	switch w.rule.Category {
	case rules.CategoryRename, rules.CategoryScopedList:
		return w.native()
	case rules.CategoryGeneric:
		return w.generic()
	case rules.CategoryHTTP:
		return w.rawCall()
	case rules.CategoryTrigger:
		return w.trigger()
	default:
		return fmt.Errorf("%w %v", errNoRule, w.rule.Category)
	}
}

// commit copies the working module's own fields onto m. Routes and error
// handlers are never touched by a rule.
func (w *work) commit(m *blueprint.Module) {
	m.Type = w.m.Type
	m.Version = w.m.Version
	m.Parameters = w.m.Parameters
	m.Mapper = w.m.Mapper
	m.Metadata = w.m.Metadata
	m.Extra = w.m.Extra
}

func (w *work) trigger() error {
	w.m.Type = w.rule.To
	w.m.Version = TargetVersion

	if w.hasConn {
		w.setConnection()
	}

	w.diags.AddWarning(diagnostic.CodeTriggerReconfigure,
		fmt.Sprintf("%s was replaced by %s; recreate the webhook or polling subscription after import", w.rule.From[0], w.rule.To),
		w.m.ID, "")

	return nil
}

func shallowClone(m *blueprint.Module) *blueprint.Module {
	return &blueprint.Module{
		ID:         m.ID,
		Type:       m.Type,
		Version:    m.Version,
		Parameters: blueprint.CloneObject(m.Parameters),
		Mapper:     blueprint.CloneObject(m.Mapper),
		Metadata:   blueprint.CloneObject(m.Metadata),
		Extra:      blueprint.CloneObject(m.Extra),
	}
}

// requestURL returns the URL of a raw HTTP module, mapper first.
func requestURL(m *blueprint.Module) string {
	if s, ok := m.Mapper["url"].(string); ok && s != "" {
		return s
	}

	s, _ := m.Parameters["url"].(string)

	return s
}
