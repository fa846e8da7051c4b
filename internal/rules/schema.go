package rules

import "strings"

// Set is a complete, indexed rule table.
type Set struct {
	Version             int                `yaml:"version"`
	Namespace           string             `yaml:"namespace"`
	Connection          Connection         `yaml:"connection"`
	FlattenLossless     []string           `yaml:"flatten_lossless"`
	TechnicalParameters []string           `yaml:"technical_parameters"`
	APICall             ModuleRef          `yaml:"api_call"`
	Helper              HelperRule         `yaml:"helper"`
	Script              ScriptRule         `yaml:"script"`
	Modules             []ModuleRule       `yaml:"modules"`
	HTTP                HTTPRule           `yaml:"http"`
	Entities            map[string]*Entity `yaml:"entities"`
	// Triggers lists scenario-starting module types of other apps.
	Triggers []string `yaml:"triggers"`

	byType   map[string]*ModuleRule
	byOutput map[string]*Entity
	targets  map[string]bool
	triggers map[string]bool
}

// Connection describes the credential parameter of CRM modules.
type Connection struct {
	Parameter string `yaml:"parameter"`
	Account   string `yaml:"account"`
	Label     string `yaml:"label"`
}

// ModuleRef names a module type and version.
type ModuleRef struct {
	Module  string `yaml:"module"`
	Version int    `yaml:"version"`
}

// HelperRule describes the injected field-definition helper.
type HelperRule struct {
	Name string `yaml:"name"`
	// Path is the API path with a {category} placeholder.
	Path string `yaml:"path"`
}

// PathFor returns the helper API path for a field category.
func (h HelperRule) PathFor(category string) string {
	return strings.ReplaceAll(h.Path, "{category}", category)
}

// ScriptRule describes the injected label-resolution script module.
type ScriptRule struct {
	Module  string `yaml:"module"`
	Version int    `yaml:"version"`
	Name    string `yaml:"name"`
}

// ModuleRule maps a family of legacy module types to their upgrade.
type ModuleRule struct {
	From      StringOrArray `yaml:"from"`
	To        string        `yaml:"to"`
	Category  Category      `yaml:"category"`
	Entity    string        `yaml:"entity"`
	Operation Operation     `yaml:"operation"`

	// URL and Method describe the raw API call of a generic replacement.
	URL    string `yaml:"url"`
	Method string `yaml:"method"`

	// IDKey is the entity-specific name of the parent id of a scoped list.
	IDKey string `yaml:"id_key"`

	// NumericFieldID names the mapper key holding a legacy numeric field id.
	NumericFieldID string `yaml:"numeric_field_id"`

	// RequireHost limits an http rule to calls whose URL targets the CRM host.
	RequireHost bool `yaml:"require_host"`

	// OutputRoot re-roots downstream references after conversion.
	OutputRoot *RootRemap `yaml:"output_root"`
}

// Identity reports whether the v2 type name equals the legacy one.
func (r *ModuleRule) Identity() bool {
	return r.From.Contains(r.To)
}

// RootRemap moves the root of a module's output. An empty From prefixes
// every path with To.
type RootRemap struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// HTTPRule holds the URL and header clean-up for raw API calls.
type HTTPRule struct {
	Host              string            `yaml:"host"`
	StripPrefixes     []string          `yaml:"strip_prefixes"`
	DropQuery         []string          `yaml:"drop_query"`
	DropHeaders       []string          `yaml:"drop_headers"`
	PathRewrites      map[string]string `yaml:"path_rewrites"`
	NumericFieldPaths []string          `yaml:"numeric_field_paths"`
}

// Entity is the output identity of a CRM object kind.
type Entity struct {
	Name string `yaml:"-"`

	// Fields is the field-definition category ("deal" -> dealFields).
	Fields string `yaml:"fields"`

	// Modules lists output module types beyond those named by module rules.
	Modules StringOrArray `yaml:"modules"`

	Renames   map[string]string   `yaml:"renames"`
	Flattened StringOrArray       `yaml:"flattened"`
	DateOnly  StringOrArray       `yaml:"date_only"`
	Related   map[string]*Related `yaml:"related"`

	// IncludeFields are optional output fields a v2 read returns on request.
	IncludeFields StringOrArray `yaml:"include_fields"`
}

// Rename returns the v2 name of a top-level output field.
func (e *Entity) Rename(field string) string {
	if to, ok := e.Renames[field]; ok {
		return to
	}

	return field
}

// IsFlattened reports whether a v1 object field is a scalar id in v2.
func (e *Entity) IsFlattened(field string) bool {
	return e.Flattened.Contains(field)
}

// IsDateOnly reports whether a field lost its time component in v2.
func (e *Entity) IsDateOnly(field string) bool {
	return e.DateOnly.Contains(field)
}

// Related describes an entity that v1 embedded and v2 only references by id.
type Related struct {
	Entity  string            `yaml:"entity"`
	Module  string            `yaml:"module"`
	Version int               `yaml:"version"`
	Name    string            `yaml:"name"`
	Sources StringOrArray     `yaml:"sources"`
	Renames map[string]string `yaml:"renames"`
}

// Rename returns the fetcher output name of an embedded field.
func (r *Related) Rename(field string) string {
	if to, ok := r.Renames[field]; ok {
		return to
	}

	return field
}
