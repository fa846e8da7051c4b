// Package blueprint models automation blueprints: the module tree, the
// envelope the document arrived in, traversal, id allocation and designer
// layout.
//
// A blueprint is a tree. Top-level modules live in Blueprint.Flow, router
// modules own Routes whose Flow holds nested modules, and any module may own
// an OnError handler flow. Module ids are unique across the whole tree and
// every reference between modules is made by id, never by position.
//
// Unknown keys are carried through untouched so that a document which is not
// migrated encodes back to the same structure.
package blueprint
