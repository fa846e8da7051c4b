package diagnostic

import (
	"fmt"
	"io"
	"strings"
)

// Report is the definitive outcome of one migration run.
type Report struct {
	RunID               string      `json:"run_id"`
	Changed             bool        `json:"changed"`
	ModulesMigrated     int         `json:"modules_migrated"`
	NodesInjected       int         `json:"nodes_injected"`
	ReferencesRewritten int         `json:"references_rewritten"`
	Connection          string      `json:"connection"`
	Diagnostics         Diagnostics `json:"diagnostics"`
}

// Counts returns the number of warnings per code.
func (r *Report) Counts() map[Code]int {
	counts := make(map[Code]int)
	for _, w := range r.Diagnostics.Warnings {
		counts[w.Code]++
	}

	return counts
}

// Summary returns a one-line description of the run.
func (r *Report) Summary() string {
	if !r.Changed {
		return "nothing to migrate"
	}

	return fmt.Sprintf("%d modules migrated, %d modules injected, %d references rewritten, %d warnings",
		r.ModulesMigrated, r.NodesInjected, r.ReferencesRewritten, len(r.Diagnostics.Warnings))
}

// Write prints the summary followed by every error and warning.
func (r *Report) Write(w io.Writer) error {
	var b strings.Builder

	fmt.Fprintf(&b, "run %s: %s\n", r.RunID, r.Summary())
	fmt.Fprintf(&b, "connection: %s\n", r.Connection)

	for _, d := range r.Diagnostics.Errors {
		fmt.Fprintf(&b, "  error   %s\n", d.String())
	}

	for _, d := range r.Diagnostics.Warnings {
		fmt.Fprintf(&b, "  warning %s\n", d.String())
	}

	_, err := io.WriteString(w, b.String())

	return err
}
