// Package match provides label normalization, edit distance, and ranking of
// near matches. It backs the "did you mean" hints attached to option labels
// and module types that could not be resolved exactly.
//
// Key functions:
//   - NormalizeLabel: case-folds and collapses an option label
//   - NormalizeIdent: normalizes identifiers such as module type names
//   - Levenshtein: computes edit distance between strings, rune-wise
//   - Closest: ranks candidates by normalized similarity
package match
