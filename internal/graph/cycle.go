package graph

import (
	"container/list"
	"fmt"
	"strings"
)

// ProcessingQueue wraps a list-based FIFO of table names.
type ProcessingQueue struct {
	queue *list.List
}

// NewProcessingQueue creates a new empty processing queue.
func NewProcessingQueue() *ProcessingQueue {
	return &ProcessingQueue{
		queue: list.New(),
	}
}

// Enqueue adds a node to the back of the queue.
func (pq *ProcessingQueue) Enqueue(node string) {
	pq.queue.PushBack(node)
}

// Dequeue removes and returns the node at the front of the queue.
// Returns empty string and false if queue is empty.
func (pq *ProcessingQueue) Dequeue() (string, bool) {
	if pq.queue.Len() == 0 {
		return "", false
	}
	elem := pq.queue.Front()
	pq.queue.Remove(elem)
	return elem.Value.(string), true
}

// Len returns the number of nodes in the queue.
func (pq *ProcessingQueue) Len() int {
	return pq.queue.Len()
}

// IsEmpty returns true if the queue has no nodes.
func (pq *ProcessingQueue) IsEmpty() bool {
	return pq.queue.Len() == 0
}

// CalculateInDegrees counts, for each table, the tables it references.
func (g *Graph) CalculateInDegrees() map[string]int {
	inDegree := make(map[string]int, g.NodeCount())
	for _, name := range g.AllNodes() {
		inDegree[name] = len(g.GetParents(name))
	}
	return inDegree
}

// drain is one run of Kahn's algorithm: referenced tables leave the queue
// before the tables that depend on them.
type drain struct {
	g         *Graph
	inDegree  map[string]int
	processed map[string]bool
	queue     *ProcessingQueue
	order     []string
}

func (g *Graph) newDrain() *drain {
	d := &drain{
		g:         g,
		inDegree:  g.CalculateInDegrees(),
		processed: make(map[string]bool, g.NodeCount()),
		queue:     NewProcessingQueue(),
	}
	for _, name := range g.AllNodes() {
		if d.inDegree[name] == 0 {
			d.queue.Enqueue(name)
		}
	}
	return d
}

// run drains the queue until it stalls.
func (d *drain) run() {
	for !d.queue.IsEmpty() {
		node, _ := d.queue.Dequeue()
		d.processed[node] = true
		d.order = append(d.order, node)

		for _, child := range d.g.GetChildren(node) {
			if d.processed[child] {
				continue
			}
			d.inDegree[child]--
			if d.inDegree[child] == 0 {
				d.queue.Enqueue(child)
			}
		}
	}
}

func (d *drain) done() bool {
	return len(d.processed) == d.g.NodeCount()
}

// remaining returns the undrained tables in insertion order and as a set.
func (d *drain) remaining() ([]string, map[string]bool) {
	var names []string
	set := make(map[string]bool)
	for _, name := range d.g.AllNodes() {
		if !d.processed[name] {
			names = append(names, name)
			set[name] = true
		}
	}
	return names, set
}

// release lets a stalled table through by dropping its edges from the
// tables still waiting, and returns those edges.
func (d *drain) release(node string) []Edge {
	var dropped []Edge
	for _, parent := range d.g.GetParents(node) {
		if !d.processed[parent] {
			dropped = append(dropped, Edge{From: parent, To: node})
		}
	}
	d.inDegree[node] = 0
	d.queue.Enqueue(node)
	return dropped
}

// Acyclic is a drain of the whole graph with its cycles broken.
type Acyclic struct {
	// Order lists every table once, referenced tables first.
	Order []string
	// Broken holds the edges dropped to break cycles, in the order they
	// were dropped. Self references are among them.
	Broken []Edge
}

// IsBroken reports whether the edge parent -> child was dropped.
func (a *Acyclic) IsBroken(parent, child string) bool {
	for _, e := range a.Broken {
		if e.From == parent && e.To == child {
			return true
		}
	}
	return false
}

// BreakCycles drains the graph with Kahn's algorithm. When the drain
// stalls, it picks the first waiting table (in insertion order) whose
// waiting parents all sit on a cycle through it, drops those edges and
// carries on. Only edges that close a cycle are dropped: tables that merely
// depend on a cycle keep their ordering.
func (g *Graph) BreakCycles() *Acyclic {
	d := g.newDrain()
	result := &Acyclic{}

	for {
		d.run()
		if d.done() {
			break
		}
		_, waiting := d.remaining()
		result.Broken = append(result.Broken, d.release(g.cycleEntry(waiting))...)
	}

	result.Order = d.order
	return result
}

// cycleEntry returns a waiting table all of whose waiting parents it can
// reach, which makes every such parent edge part of a cycle. The waiting
// tables always contain one: any strongly connected component with no
// incoming edges from other waiting tables qualifies.
func (g *Graph) cycleEntry(waiting map[string]bool) string {
	var first string
	for _, name := range g.AllNodes() {
		if !waiting[name] {
			continue
		}
		if first == "" {
			first = name
		}
		if g.closesCycles(name, waiting) {
			return name
		}
	}
	return first
}

func (g *Graph) closesCycles(node string, waiting map[string]bool) bool {
	for _, parent := range g.GetParents(node) {
		if !waiting[parent] {
			continue
		}
		if !g.dfsCanReach(node, parent, make(map[string]bool), waiting, true) {
			return false
		}
	}
	return true
}

// CycleInfo describes the part of the graph that Kahn's algorithm could not
// drain because of circular foreign keys.
type CycleInfo struct {
	TotalNodes        int      // Total number of nodes in the graph
	ProcessedNodes    int      // Number of nodes drained before the first stall
	UnprocessedNodes  []string // Nodes in or behind a cycle
	CycleParticipants []string // Nodes that are actually part of a cycle (subset of UnprocessedNodes)
	CyclePath         []string // Ordered path showing one cycle (e.g., [A, B, C, A])
}

// CycleError reports circular foreign keys. Deletion ordering tolerates
// cycles, so this is surfaced as a diagnostic rather than a failure.
type CycleError struct {
	Info *CycleInfo
}

func (e *CycleError) Error() string {
	msg := fmt.Sprintf("cycle detected in foreign keys: %d of %d tables are in or behind a cycle",
		len(e.Info.UnprocessedNodes), e.Info.TotalNodes)

	if len(e.Info.CyclePath) > 0 {
		msg += fmt.Sprintf("\nCycle path: %s", strings.Join(e.Info.CyclePath, " -> "))
	}
	if len(e.Info.CycleParticipants) > 0 {
		msg += fmt.Sprintf("\nTables in cycle: %s", strings.Join(e.Info.CycleParticipants, ", "))
	}
	if blocked := e.Info.Blocked(); len(blocked) > 0 {
		msg += fmt.Sprintf("\nTables blocked by cycle: %s", strings.Join(blocked, ", "))
	}

	return msg
}

// Blocked returns the undrained tables that are not on a cycle themselves.
func (i *CycleInfo) Blocked() []string {
	onCycle := make(map[string]bool, len(i.CycleParticipants))
	for _, p := range i.CycleParticipants {
		onCycle[p] = true
	}
	var blocked []string
	for _, u := range i.UnprocessedNodes {
		if !onCycle[u] {
			blocked = append(blocked, u)
		}
	}
	return blocked
}

// DetectCycles drains the graph once and describes what is left. Returns
// nil if the graph is acyclic.
func (g *Graph) DetectCycles() *CycleInfo {
	d := g.newDrain()
	d.run()
	if d.done() {
		return nil
	}

	unprocessed, waiting := d.remaining()

	var participants []string
	for _, node := range unprocessed {
		if g.dfsCanReach(node, node, make(map[string]bool), waiting, true) {
			participants = append(participants, node)
		}
	}

	var path []string
	if len(participants) > 0 {
		path = g.FindCyclePath(participants[0], waiting)
	}

	return &CycleInfo{
		TotalNodes:        g.NodeCount(),
		ProcessedNodes:    len(d.processed),
		UnprocessedNodes:  unprocessed,
		CycleParticipants: participants,
		CyclePath:         path,
	}
}

// Validate returns a *CycleError if the graph contains cycles, nil otherwise.
func (g *Graph) Validate() error {
	if info := g.DetectCycles(); info != nil {
		return &CycleError{Info: info}
	}
	return nil
}

// FindCyclePath returns one cycle through start within allowed, with start
// at both ends, or nil.
func (g *Graph) FindCyclePath(start string, allowed map[string]bool) []string {
	visited := make(map[string]bool)
	path := []string{start}

	if g.dfsFindPath(start, start, visited, allowed, &path) {
		return path
	}
	return nil
}

func (g *Graph) dfsFindPath(current, target string, visited, allowed map[string]bool, path *[]string) bool {
	for _, child := range g.GetChildren(current) {
		if !allowed[child] {
			continue
		}
		if child == target {
			*path = append(*path, target)
			return true
		}
		if visited[child] {
			continue
		}

		visited[child] = true
		*path = append(*path, child)
		if g.dfsFindPath(child, target, visited, allowed, path) {
			return true
		}
		*path = (*path)[:len(*path)-1]
	}
	return false
}

// dfsCanReach reports whether target is reachable from current through
// allowed tables. isStart keeps current == target from matching before a
// single edge was followed.
func (g *Graph) dfsCanReach(current, target string, visited, allowed map[string]bool, isStart bool) bool {
	if current == target && !isStart {
		return true
	}
	if visited[current] || !allowed[current] {
		return false
	}
	visited[current] = true

	for _, child := range g.GetChildren(current) {
		if g.dfsCanReach(child, target, visited, allowed, false) {
			return true
		}
	}
	return false
}
