// Package nodelink renders dependency graphs as node-link diagrams.
//
// # Usage
//
// Convert a scanned tree to DOT, then render it to SVG:
//
//	g, err := install.Scan(dir, true)
//	dot := nodelink.ToDOT(g, nodelink.Options{})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// Arrows point from a package to the packages it requires. The root package
// is drawn bold; a package with dependencies that are not installed gets a
// dashed red outline.
//
// # Options
//
//   - Detailed: node labels include the install directory and missing
//     dependencies, and edges are labeled with their constraint.
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG
// rendering; no Graphviz installation is needed.
package nodelink
