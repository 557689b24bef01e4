package transform

import "github.com/matzehuels/nary/pkg/dag"

// TransitiveReduction removes every edge (u, v) for which v is also
// reachable from u through another successor, and returns the number of
// edges removed. Metadata of the remaining edges is kept.
//
// Reachability is a full closure, O(V²) in space. g should be acyclic;
// run [BreakCycles] first when it may not be.
func TransitiveReduction(g *dag.DAG) int {
	ids := g.NodeIDs()
	if len(ids) == 0 {
		return 0
	}

	index := dag.PosMap(ids)
	adjacency := make([][]int, len(ids))
	for _, e := range g.Edges() {
		src, ok := index[e.From]
		if !ok {
			continue
		}
		if dst, ok := index[e.To]; ok {
			adjacency[src] = append(adjacency[src], dst)
		}
	}

	reachable := closure(adjacency)

	removed := 0
	for _, e := range g.Edges() {
		src, dst := index[e.From], index[e.To]
		for _, mid := range adjacency[src] {
			if mid != dst && reachable[mid][dst] {
				g.RemoveEdge(e.From, e.To)
				removed++
				break
			}
		}
	}
	return removed
}

func closure(adjacency [][]int) [][]bool {
	n := len(adjacency)
	reachable := make([][]bool, n)
	for i := range reachable {
		reachable[i] = make([]bool, n)
	}

	var dfs func(source, current int)
	dfs = func(source, current int) {
		if reachable[source][current] {
			return
		}
		reachable[source][current] = true
		for _, next := range adjacency[current] {
			dfs(source, next)
		}
	}

	for i := range reachable {
		dfs(i, i)
	}
	return reachable
}
