// Package upgrade rewrites a single legacy CRM module into its v2 form.
//
// Each rules.Category has one rule function. A rule runs against a working
// copy of the module and is committed only when it completes, so a failing
// rule never leaves a half-migrated module behind.
package upgrade
