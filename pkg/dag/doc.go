// Package dag provides a small directed graph with deterministic ordering,
// used to order the dependencies of a manifest and to model installed trees.
//
// # Basic Usage
//
// Create a graph with [New], add nodes with [DAG.AddNode], and edges with
// [DAG.AddEdge]. Node IDs must be unique and edges can only connect existing
// nodes:
//
//	g := dag.New(nil)
//	g.AddNode(dag.Node{ID: "debug"})
//	g.AddNode(dag.Node{ID: "app"})
//	g.AddEdge(dag.Edge{From: "debug", To: "app"})
//
// # Ordering
//
// [DAG.TopoSort] runs Kahn's algorithm and breaks ties by insertion order,
// so the same graph always yields the same sequence. It never assumes the
// graph is acyclic: when nodes remain unsorted it returns a *[CycleError]
// listing every node on every cycle, computed by [DAG.Cycles].
//
// # Metadata
//
// Nodes, edges and the graph carry [Metadata] maps. The installer stores the
// resolved version and directory of each package there, and renderers read
// them back.
//
// # Concurrency
//
// DAG instances are not safe for concurrent use.
package dag
