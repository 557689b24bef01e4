// Package render draws installed dependency trees.
//
// The [nodelink] subpackage renders a scanned tree as a Graphviz node-link
// diagram, either as DOT source or as SVG.
//
// [nodelink]: github.com/matzehuels/nary/pkg/render/nodelink
package render
