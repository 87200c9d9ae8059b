// Package graph builds and orders the dependency graph of a template.
//
// Nodes are resources and module groups; an edge runs from a consumer to
// the producer whose published values it reads. The graph is the sole
// source of evaluation order: a deterministic topological sort with a
// declaration-order tie-break, so identical templates always plan in the
// same order.
package graph
