// Package transform simplifies dependency graphs for display.
//
// [BreakCycles] removes the back edges found by a depth-first search, so
// that a tree whose packages require each other can still be drawn as a
// hierarchy. [TransitiveReduction] then drops every edge implied by a
// longer path: when app requires koa and koa requires debug, an extra
// app requires debug edge is hidden.
//
// Both functions modify the graph in place:
//
//	transform.BreakCycles(g)
//	transform.TransitiveReduction(g)
package transform
