// Package inject synthesizes modules that v2 needs to keep downstream
// references answerable: field-definition helpers, related-entity fetchers,
// label-resolution scripts and custom-field batch clones.
//
// Every pass runs in two phases. Phase one scans the blueprint and plans the
// new modules with fresh ids and the reference rewrite that points at them;
// phase two rewrites the serialized document and splices the modules in,
// shifting the layout to make room.
package inject
