// Package audit reports modules that call the CRM API over plain HTTP and
// whether they already target the v2 endpoints.
package audit

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"blueprint-migrator/internal/blueprint"
	"blueprint-migrator/internal/rules"
)

// rawHTTPTypes are the generic HTTP modules; they only count when their URL
// targets the CRM host.
var rawHTTPTypes = []string{"http:MakeRequest", "http:ActionSendData"}

// Finding is one module issuing CRM API calls.
type Finding struct {
	Source   string `json:"source,omitempty"`
	ModuleID int    `json:"module_id"`
	Type     string `json:"module_type"`
	URL      string `json:"url"`
	UsesV2   bool   `json:"uses_v2"`
}

// Auditor inspects blueprints against a rule set.
type Auditor struct {
	set *rules.Set
}

// New returns an Auditor. A nil set selects the built-in rules.
func New(set *rules.Set) *Auditor {
	if set == nil {
		set = rules.Default()
	}

	return &Auditor{set: set}
}

// HTTPCalls returns the CRM API calls of bp in walk order, tagged with source.
func (a *Auditor) HTTPCalls(bp *blueprint.Blueprint, source string) []Finding {
	var out []Finding

	for _, m := range bp.Modules() {
		url := moduleURL(m)

		switch {
		case slices.Contains(rawHTTPTypes, m.Type):
			if !strings.Contains(strings.ToLower(url), a.set.HTTP.Host) {
				continue
			}
		case a.isAPICall(m.Type):
		default:
			continue
		}

		out = append(out, Finding{
			Source:   source,
			ModuleID: m.ID,
			Type:     m.Type,
			URL:      url,
			UsesV2:   strings.Contains(url, "/v2/"),
		})
	}

	return out
}

// HTTPCalls audits bp with the built-in rules.
func HTTPCalls(bp *blueprint.Blueprint) []Finding {
	return New(nil).HTTPCalls(bp, "")
}

func (a *Auditor) isAPICall(moduleType string) bool {
	if moduleType == a.set.APICall.Module {
		return true
	}

	r, ok := a.set.Lookup(moduleType)

	return ok && r.Category == rules.CategoryHTTP && a.set.InNamespace(moduleType)
}

func moduleURL(m *blueprint.Module) string {
	if s, ok := m.Parameters["url"].(string); ok && s != "" {
		return s
	}

	s, _ := m.Mapper["url"].(string)

	return s
}

// Counts returns the number of findings on v1 and v2 endpoints.
func Counts(findings []Finding) (v1, v2 int) {
	for _, f := range findings {
		if f.UsesV2 {
			v2++
		} else {
			v1++
		}
	}

	return v1, v2
}

// WriteReport prints one line per finding followed by the v1/v2 totals.
func WriteReport(w io.Writer, findings []Finding) error {
	var b strings.Builder

	if len(findings) == 0 {
		b.WriteString("no HTTP modules calling the CRM API found\n")

		_, err := io.WriteString(w, b.String())

		return err
	}

	for _, f := range findings {
		status := "v1, needs migration"
		if f.UsesV2 {
			status = "v2"
		}

		if f.Source != "" {
			fmt.Fprintf(&b, "%s: ", f.Source)
		}

		fmt.Fprintf(&b, "module %d (%s) %s [%s]\n", f.ModuleID, f.Type, f.URL, status)
	}

	v1, v2 := Counts(findings)
	fmt.Fprintf(&b, "total: %d, v1: %d, v2: %d\n", len(findings), v1, v2)

	_, err := io.WriteString(w, b.String())

	return err
}
