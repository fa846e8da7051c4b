// Package rewrite fixes {{id.path}} references across a serialized blueprint
// after its modules were upgraded.
//
// Each reference is parsed into an expr.Reference, rewritten as a structured
// value and formatted back, so the order of the rewrite categories is a
// property of one function rather than of a list of patterns:
//
//  1. output root remap for modules converted into raw API calls
//  2. flattened object collapse, then simple rename
//  3. custom field path normalization
//  4. companion sub-property folding and .value for structured fields
//  5. date-only compensation
//  6. single-select .label lookups
package rewrite
