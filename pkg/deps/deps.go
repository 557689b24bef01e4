// Package deps orders the dependencies declared by one manifest.
//
// [Order] builds a [dag.DAG] with one node per distinct dependency name plus
// a node for the declaring package, adds a "requires" edge from every
// dependency to that root, and topologically sorts it. The graph is tiny and
// nearly always acyclic, but the sort makes no such assumption: a package
// that lists itself, or a richer edge set passed to [OrderGraph], yields a
// [errors.CyclicDependencyError] naming every node on the cycle.
package deps

import (
	stderrors "errors"

	"github.com/matzehuels/nary/pkg/dag"
	"github.com/matzehuels/nary/pkg/errors"
	"github.com/matzehuels/nary/pkg/manifest"
)

// DefaultMaxDepth bounds how deep the installer descends below the root.
const DefaultMaxDepth = 50

// Graph builds the requires-graph for one manifest's dependency list.
//
// Nodes are added in declaration order after the root, so declaration order
// becomes the tie-break of the sort. A dependency with the root's name is
// the root node itself and produces a self-loop.
func Graph(root string, deps []manifest.Dependency) *dag.DAG {
	g := dag.New(dag.Metadata{"root": root})
	_ = g.AddNode(dag.Node{ID: root, Meta: dag.Metadata{"root": true}})
	for _, d := range deps {
		if _, ok := g.Node(d.Name); !ok {
			_ = g.AddNode(dag.Node{ID: d.Name, Meta: dag.Metadata{"constraint": d.Spec.Raw}})
		}
		_ = g.AddEdge(dag.Edge{From: d.Name, To: root})
	}
	return g
}

// Order returns the install order of deps, excluding root.
//
// For an acyclic declaration set the result is the declaration order with
// duplicates removed, and calling Order again returns the same sequence.
func Order(root string, deps []manifest.Dependency) ([]string, error) {
	sorted, err := OrderGraph(Graph(root, deps))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(sorted))
	for _, id := range sorted {
		if id != root {
			out = append(out, id)
		}
	}
	return out, nil
}

// OrderGraph topologically sorts any requires-graph whose edges point from
// a dependency to its dependent.
func OrderGraph(g *dag.DAG) ([]string, error) {
	sorted, err := g.TopoSort()
	if err != nil {
		var cycle *dag.CycleError
		if stderrors.As(err, &cycle) {
			return nil, &errors.CyclicDependencyError{Nodes: cycle.Nodes}
		}
		return nil, err
	}
	return sorted, nil
}
