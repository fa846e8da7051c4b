// Package migrate sequences the passes of one migration run:
//
//  1. load field definitions for the categories in use (smart mode only)
//  2. inject field-definition helpers at the head of the flow
//  3. upgrade every legacy module in place
//  4. rewrite references to the upgraded modules
//  5. inject label-resolution scripts, related-entity fetchers and
//     custom-field batch clones
//
// Every pass completes, including its serialize and rewrite round trip,
// before the next one starts. Helper ids are fixed before steps 3 to 5
// read them.
package migrate
