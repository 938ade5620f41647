// Package ir provides the document model for decoded family trees.
//
// A Tree is the hand-off format between the decoder and its consumers: the
// JSON emitter used by visualisations, the native text emitter and the
// SQLite store all read and write Trees.
//
// # Core Types
//
//   - Tree: a complete decoded input with its provenance hashes
//   - Record: one person, with the name already decomposed
//   - Slots: 1-based marriage and child lists; gaps encode as JSON null
//
// # Content Addressing
//
// Source files are identified by SHA-256 and BLAKE3, and trees can be hashed
// with HashTree to compare two runs over the same input.
//
// # Example
//
//	tree := ir.NewTree("family", people, reg.Mentioned())
//	if errs := ir.ValidateTree(tree); len(errs) > 0 {
//	    ...
//	}
package ir
