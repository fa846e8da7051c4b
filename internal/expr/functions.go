package expr

import (
	"fmt"
	"strings"
)

// Unwrap returns the body of a value that is exactly one template block,
// e.g. "{{1.name}}" -> "1.name".
func Unwrap(s string) (string, bool) {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, openDelim) || findClose(t, len(openDelim)) != len(t)-len(closeDelim) {
		return "", false
	}

	return strings.TrimSpace(t[len(openDelim) : len(t)-len(closeDelim)]), true
}

// Wrap returns body as a template block.
func Wrap(body string) string {
	return openDelim + body + closeDelim
}

// Call formats a function call in template syntax: name(a; b).
func Call(name string, args ...string) string {
	return name + "(" + strings.Join(args, "; ") + ")"
}

// AddHours formats addHours(value; hours).
func AddHours(value string, hours int) string {
	return Call("addHours", value, fmt.Sprint(hours))
}

// OptionLookup formats a lookup over the option table of one custom field
// as returned by a field-definition helper: the options of the field whose
// field_code is key are searched for the option whose filter property equals
// value, and its want property is returned.
func OptionLookup(helperID int, key, want, filter, value string) string {
	return Call("get", Call("map", FieldOptions(helperID, key), want, filter, value), "1")
}

// FieldOptions formats the option list of the custom field key as returned
// by a field-definition helper.
func FieldOptions(helperID int, key string) string {
	return Call("get", Call("map", fmt.Sprintf("%d.body.data", helperID), "options", "field_code", key), "1")
}
