package dag

import (
	"container/heap"
	"slices"
)

// minQueue pops node IDs in ascending insertion position.
type minQueue struct {
	ids []string
	pos map[string]int
}

func newMinQueue(pos map[string]int) *minQueue { return &minQueue{pos: pos} }

func (q *minQueue) Len() int           { return len(q.ids) }
func (q *minQueue) Less(i, j int) bool { return q.pos[q.ids[i]] < q.pos[q.ids[j]] }
func (q *minQueue) Swap(i, j int)      { q.ids[i], q.ids[j] = q.ids[j], q.ids[i] }
func (q *minQueue) Push(x any)         { q.ids = append(q.ids, x.(string)) }
func (q *minQueue) Pop() any {
	last := q.ids[len(q.ids)-1]
	q.ids = q.ids[:len(q.ids)-1]
	return last
}

func (q *minQueue) push(id string) { heap.Push(q, id) }
func (q *minQueue) pop() string    { return heap.Pop(q).(string) }
func (q *minQueue) len() int       { return len(q.ids) }

func sortByPos(ids []string, pos map[string]int) {
	slices.SortFunc(ids, func(a, b string) int { return pos[a] - pos[b] })
}

func sortComponents(comps [][]string, pos map[string]int) {
	slices.SortFunc(comps, func(a, b []string) int { return pos[a[0]] - pos[b[0]] })
}
