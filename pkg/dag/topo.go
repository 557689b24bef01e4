package dag

import (
	"fmt"
	"strings"
)

// CycleError reports the nodes that prevent a topological order.
//
// Nodes lists every node that lies on some cycle, grouped by strongly
// connected component and ordered by insertion within each group.
type CycleError struct {
	Nodes []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("graph contains a cycle through %s", strings.Join(e.Nodes, ", "))
}

// TopoSort returns the node IDs so that every edge's From precedes its To.
//
// TopoSort uses Kahn's algorithm. Among nodes that are ready at the same
// time, the one inserted first is emitted first, so an edgeless graph sorts
// to its insertion order and repeated calls return the same sequence.
//
// If some nodes can never become ready the graph has a cycle and TopoSort
// returns a *[CycleError] naming every node on every cycle. Nodes that are
// merely downstream of a cycle are not listed.
func (d *DAG) TopoSort() ([]string, error) {
	pos := PosMap(d.order)
	inDegree := make(map[string]int, len(d.order))
	ready := newMinQueue(pos)
	for _, id := range d.order {
		inDegree[id] = len(d.incoming[id])
		if inDegree[id] == 0 {
			ready.push(id)
		}
	}

	sorted := make([]string, 0, len(d.order))
	for ready.len() > 0 {
		curr := ready.pop()
		sorted = append(sorted, curr)
		for _, child := range d.outgoing[curr] {
			inDegree[child]--
			if inDegree[child] == 0 {
				ready.push(child)
			}
		}
	}

	if len(sorted) == len(d.order) {
		return sorted, nil
	}
	return nil, &CycleError{Nodes: d.Cycles()}
}

// Cycles returns every node that lies on a directed cycle: members of
// strongly connected components with more than one node, and nodes with a
// self-loop. The result is empty for an acyclic graph.
//
// Components are found with Tarjan's algorithm. Components are listed in
// the insertion order of their first member, and members in insertion order.
func (d *DAG) Cycles() []string {
	pos := PosMap(d.order)
	index := make(map[string]int, len(d.order))
	low := make(map[string]int, len(d.order))
	onStack := make(map[string]bool, len(d.order))
	var stack []string
	var components [][]string
	next := 0

	var strongConnect func(id string)
	strongConnect = func(id string) {
		index[id] = next
		low[id] = next
		next++
		stack = append(stack, id)
		onStack[id] = true

		for _, child := range d.outgoing[id] {
			if _, seen := index[child]; !seen {
				strongConnect(child)
				low[id] = min(low[id], low[child])
			} else if onStack[child] {
				low[id] = min(low[id], index[child])
			}
		}

		if low[id] != index[id] {
			return
		}
		var comp []string
		for {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[top] = false
			comp = append(comp, top)
			if top == id {
				break
			}
		}
		if len(comp) > 1 || d.hasSelfLoop(id) {
			sortByPos(comp, pos)
			components = append(components, comp)
		}
	}

	for _, id := range d.order {
		if _, seen := index[id]; !seen {
			strongConnect(id)
		}
	}

	sortComponents(components, pos)
	var out []string
	for _, comp := range components {
		out = append(out, comp...)
	}
	return out
}

func (d *DAG) hasSelfLoop(id string) bool {
	for _, child := range d.outgoing[id] {
		if child == id {
			return true
		}
	}
	return false
}
