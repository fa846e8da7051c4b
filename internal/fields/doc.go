// Package fields describes CRM custom fields: how their keys look, which
// companion keys carry structured sub-values, and where their definitions
// (type and option table) come from.
//
// Definitions are fetched once per run through a Provider, before any
// document mutation, and are read-only afterwards.
package fields
