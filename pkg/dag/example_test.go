package dag_test

import (
	"errors"
	"fmt"

	"github.com/matzehuels/nary/pkg/dag"
)

func ExampleDAG_TopoSort() {
	// Dependencies point at the package that requires them.
	g := dag.New(nil)
	_ = g.AddNode(dag.Node{ID: "koa-ejs"})
	_ = g.AddNode(dag.Node{ID: "debug"})
	_ = g.AddNode(dag.Node{ID: "app"})
	_ = g.AddEdge(dag.Edge{From: "koa-ejs", To: "app"})
	_ = g.AddEdge(dag.Edge{From: "debug", To: "app"})

	order, _ := g.TopoSort()
	fmt.Println(order)
	// Output:
	// [koa-ejs debug app]
}

func ExampleDAG_TopoSort_cycle() {
	g := dag.New(nil)
	for _, id := range []string{"a", "b", "c"} {
		_ = g.AddNode(dag.Node{ID: id})
	}
	_ = g.AddEdge(dag.Edge{From: "a", To: "b"})
	_ = g.AddEdge(dag.Edge{From: "b", To: "a"})
	_ = g.AddEdge(dag.Edge{From: "b", To: "c"})

	_, err := g.TopoSort()
	var cycle *dag.CycleError
	if errors.As(err, &cycle) {
		fmt.Println(cycle.Nodes)
	}
	// Output:
	// [a b]
}

func ExampleDAG_traversal() {
	g := dag.New(nil)
	_ = g.AddNode(dag.Node{ID: "app"})
	_ = g.AddNode(dag.Node{ID: "auth"})
	_ = g.AddNode(dag.Node{ID: "cache"})
	_ = g.AddEdge(dag.Edge{From: "app", To: "auth"})
	_ = g.AddEdge(dag.Edge{From: "app", To: "cache"})

	fmt.Println("Children of app:", g.Children("app"))
	fmt.Println("Parents of auth:", g.Parents("auth"))
	fmt.Println("Out-degree of app:", g.OutDegree("app"))
	// Output:
	// Children of app: [auth cache]
	// Parents of auth: [app]
	// Out-degree of app: 2
}
