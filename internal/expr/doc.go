// Package expr parses and rewrites template references of the form
// {{<module_id>.<field_path>}} embedded in blueprint strings.
//
// It is deliberately not an expression interpreter. Blocks between {{ and }}
// are scanned for reference tokens only; everything else in a block (function
// names, operators, quoted literals) is copied through untouched.
//
// # Path Syntax
//
//   - Simple fields: "2.title"
//   - Nested fields: "2.person_id.name"
//   - Array markers: "2.person_id.phone[].value", "2.items[1].id"
//   - Quoted keys: "2.`Deal value`"
//
// RewriteJSON applies a rewrite to every string literal of a serialized
// document, which is how cross-module references are fixed after structural
// changes.
package expr
