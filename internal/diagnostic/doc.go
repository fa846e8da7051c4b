// Package diagnostic collects the structured outcome of a migration run.
//
// Every pass receives the run's *Diagnostics and appends to it; nothing is
// global, so concurrent runs never share findings.
//
// Key capabilities:
//   - Stable codes for every skip, degrade, and lossy rewrite
//   - Per-module attribution with the affected field path
//   - "Did you mean" suggestions for unresolved option labels
//   - A run Report with counters suitable for CLI and HTTP output
package diagnostic
