package diagnostic

import (
	"errors"
	"fmt"
	"strings"
)

//go:generate go tool stringer -type=Severity -linecomment -output=severity_string.go

// Severity represents the severity level of a diagnostic.
type Severity int

const (
	SeverityInfo    Severity = iota // info
	SeverityWarning                 // warning
	SeverityError                   // error
)

// MarshalText encodes the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Code identifies a kind of diagnostic.
type Code string

const (
	// CodeMissingCredential means the module has no connection reference and was left untouched.
	CodeMissingCredential Code = "missing_credential"
	// CodeUnknownModule means the module type is in the CRM namespace but has no upgrade rule.
	CodeUnknownModule Code = "unknown_module"
	// CodeModuleFailed means an upgrade rule failed and the module was rolled back.
	CodeModuleFailed Code = "module_failed"
	// CodeUnresolvedLabel means an option label has no matching option id.
	CodeUnresolvedLabel Code = "unresolved_label"
	// CodeLossyFlatten means a sub-path of a flattened object was dropped.
	CodeLossyFlatten Code = "lossy_flatten"
	// CodePaginationRemoved means offset pagination was removed.
	CodePaginationRemoved Code = "pagination_removed"
	// CodeTriggerReconfigure means a trigger was renamed and its subscription must be recreated.
	CodeTriggerReconfigure Code = "trigger_reconfigure"
	// CodeNumericFieldID means a legacy numeric field id needs a manual hash replacement.
	CodeNumericFieldID Code = "numeric_field_id"
	// CodeFieldDefinitionsUnavailable means field definitions were unavailable so label resolution was skipped.
	CodeFieldDefinitionsUnavailable Code = "field_definitions_unavailable"
	// CodeFieldDefinitionsPartial means some categories could not be fetched.
	CodeFieldDefinitionsPartial Code = "field_definitions_partial"
	// CodeDynamicSort means a sort expression could not be split statically.
	CodeDynamicSort Code = "dynamic_sort"
	// CodeLabelReferenceUnresolved means a .label reference could not be rewritten.
	CodeLabelReferenceUnresolved Code = "label_reference_unresolved"
	// CodeOutputShapeChanged means references to a converted raw API call were re-rooted.
	CodeOutputShapeChanged Code = "output_shape_changed"
	// CodeModuleMigrated records a migrated module.
	CodeModuleMigrated Code = "module_migrated"
	// CodeNodeInjected records an injected module.
	CodeNodeInjected Code = "node_injected"
)

// Diagnostics holds all diagnostic information from a run.
type Diagnostics struct {
	Errors   []Diagnostic `json:"errors,omitempty"`
	Warnings []Diagnostic `json:"warnings,omitempty"`
	Infos    []Diagnostic `json:"infos,omitempty"`
}

// Diagnostic represents a single diagnostic message.
type Diagnostic struct {
	// Severity of the diagnostic.
	Severity Severity `json:"severity"`
	// Code is a stable identifier for this kind of diagnostic.
	Code Code `json:"code"`
	// Message is the human-readable description.
	Message string `json:"message"`
	// ModuleID identifies the module this relates to (0 when none).
	ModuleID int `json:"module_id,omitempty"`
	// FieldPath identifies the field or reference this relates to (if any).
	FieldPath string `json:"field_path,omitempty"`
	// Suggestions are potential fixes or alternatives.
	Suggestions []string `json:"suggestions,omitempty"`
}

// Add appends a diagnostic to the list matching its severity.
func (d *Diagnostics) Add(diag Diagnostic) {
	switch diag.Severity {
	case SeverityError:
		d.Errors = append(d.Errors, diag)
	case SeverityWarning:
		d.Warnings = append(d.Warnings, diag)
	default:
		d.Infos = append(d.Infos, diag)
	}
}

// AddError adds an error diagnostic.
func (d *Diagnostics) AddError(code Code, message string, moduleID int, fieldPath string) {
	d.Add(Diagnostic{
		Severity:  SeverityError,
		Code:      code,
		Message:   message,
		ModuleID:  moduleID,
		FieldPath: fieldPath,
	})
}

// AddWarning adds a warning diagnostic.
func (d *Diagnostics) AddWarning(code Code, message string, moduleID int, fieldPath string) {
	d.Add(Diagnostic{
		Severity:  SeverityWarning,
		Code:      code,
		Message:   message,
		ModuleID:  moduleID,
		FieldPath: fieldPath,
	})
}

// AddInfo adds an info diagnostic.
func (d *Diagnostics) AddInfo(code Code, message string, moduleID int, fieldPath string) {
	d.Add(Diagnostic{
		Severity:  SeverityInfo,
		Code:      code,
		Message:   message,
		ModuleID:  moduleID,
		FieldPath: fieldPath,
	})
}

// HasErrors returns true if there are any error diagnostics.
func (d *Diagnostics) HasErrors() bool {
	return len(d.Errors) > 0
}

// Merge merges another Diagnostics instance into this one.
func (d *Diagnostics) Merge(other Diagnostics) {
	d.Errors = append(d.Errors, other.Errors...)
	d.Warnings = append(d.Warnings, other.Warnings...)
	d.Infos = append(d.Infos, other.Infos...)
}

// All returns every diagnostic, errors first.
func (d *Diagnostics) All() []Diagnostic {
	all := make([]Diagnostic, 0, len(d.Errors)+len(d.Warnings)+len(d.Infos))
	all = append(all, d.Errors...)
	all = append(all, d.Warnings...)
	all = append(all, d.Infos...)

	return all
}

// Count returns the number of diagnostics with the given code.
func (d *Diagnostics) Count(code Code) int {
	n := 0

	for _, diag := range d.All() {
		if diag.Code == code {
			n++
		}
	}

	return n
}

// ByCode returns the diagnostics with the given code.
func (d *Diagnostics) ByCode(code Code) []Diagnostic {
	var out []Diagnostic

	for _, diag := range d.All() {
		if diag.Code == code {
			out = append(out, diag)
		}
	}

	return out
}

// IsValid returns true if there are no errors.
func (d *Diagnostics) IsValid() bool {
	return len(d.Errors) == 0
}

// Error returns a combined error from all error diagnostics, or nil if valid.
func (d *Diagnostics) Error() error {
	if d.IsValid() {
		return nil
	}

	var parts []string
	for _, e := range d.Errors {
		parts = append(parts, e.String())
	}

	return errors.New(strings.Join(parts, "; "))
}

// String returns a formatted diagnostic string.
func (d Diagnostic) String() string {
	var prefix []string
	if d.ModuleID != 0 {
		prefix = append(prefix, fmt.Sprintf("[module %d]", d.ModuleID))
	}

	if d.FieldPath != "" {
		prefix = append(prefix, d.FieldPath)
	}

	msg := d.Message
	if d.Code != "" {
		msg = fmt.Sprintf("[%s] %s", d.Code, msg)
	}

	if len(d.Suggestions) > 0 {
		msg += " (did you mean: " + strings.Join(d.Suggestions, ", ") + "?)"
	}

	if len(prefix) > 0 {
		return strings.Join(prefix, " ") + ": " + msg
	}

	return msg
}
