// Package rules holds the static knowledge of the v1 -> v2 upgrade: which
// legacy module types exist, which rule category handles each of them, and
// how every entity's output fields were renamed or flattened.
//
// The tables live in an embedded YAML file so that a deployment can override
// them with LoadFile without rebuilding.
//
// # Categories
//
// Every legacy type belongs to exactly one Category. The upgrade package
// switches over the category, so adding a category without a rule function is
// a visible gap rather than a silent lookup miss.
//
//   - rename: type replaced with its v2 counterpart, mapper reshaped
//   - scoped_list: rename plus the parent identifier key renamed
//   - generic: no native v2 module, rewritten into a raw API call
//   - http: raw HTTP call against the CRM, re-pointed at the v2 API
//   - trigger: renamed only, subscription must be recreated by the user
//
// # Schema Overview
//
//	version: 1
//	modules:
//	  - from: [pipedrive:GetDeal, pipedrive:getDeal]
//	    to: pipedrive:getDealV2
//	    category: rename
//	    entity: deal
//	    operation: get
//	entities:
//	  deal:
//	    renames: {user_id: owner_id}
//	    flattened: [org_id]
//	    date_only: [expected_close_date]
package rules
