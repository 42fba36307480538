// Package graph models foreign-key dependencies between tables and derives
// a deletion order from them.
package graph

import (
	"github.com/elliotchance/orderedmap/v2"
)

// Node represents a table in the dependency graph.
type Node struct {
	Name   string // Table name
	Schema string // Schema / database the table was listed from
}

// Edge represents a dependency relationship between tables.
// From is the referenced table, To is the table holding the foreign key.
type Edge struct {
	From string // Referenced (parent) table name
	To   string // Dependent (child) table name
}

// EdgeMeta contains metadata about an edge relationship.
type EdgeMeta struct {
	Constraint string // Foreign key constraint name
}

// Graph represents the foreign-key structure of one schema.
//
// Nodes keep the order in which tables were added so that every derived
// ordering is stable for identical input.
type Graph struct {
	Nodes        *orderedmap.OrderedMap[string, *Node]
	Children     map[string][]string // referenced table -> dependent tables (outgoing edges)
	Parents      map[string][]string // dependent table -> referenced tables (incoming edges)
	edgeMetadata map[Edge]*EdgeMeta
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		Nodes:        orderedmap.NewOrderedMap[string, *Node](),
		Children:     make(map[string][]string),
		Parents:      make(map[string][]string),
		edgeMetadata: make(map[Edge]*EdgeMeta),
	}
}

// AddNode adds a table node to the graph.
// If node is nil, a new node with default values is created.
func (g *Graph) AddNode(name string, node *Node) {
	if node == nil {
		node = &Node{Name: name}
	}
	node.Name = name
	g.Nodes.Set(name, node)
}

// AddEdge adds a referenced -> dependent relationship to the graph.
// Repeated edges between the same pair are recorded once.
func (g *Graph) AddEdge(parent, child string) {
	if _, exists := g.edgeMetadata[Edge{From: parent, To: child}]; exists {
		return
	}
	g.edgeMetadata[Edge{From: parent, To: child}] = &EdgeMeta{}

	g.Children[parent] = append(g.Children[parent], child)
	g.Parents[child] = append(g.Parents[child], parent)
}

// AddEdgeWithMeta adds an edge with the name of the constraint that produced it.
func (g *Graph) AddEdgeWithMeta(parent, child, constraint string) {
	g.AddEdge(parent, child)
	g.edgeMetadata[Edge{From: parent, To: child}].Constraint = constraint
}

// GetChildren returns the tables holding a foreign key to parent.
func (g *Graph) GetChildren(parent string) []string {
	return g.Children[parent]
}

// GetParents returns the tables child references.
func (g *Graph) GetParents(child string) []string {
	return g.Parents[child]
}


// GetEdgeMeta returns metadata for an edge, or nil if not found.
func (g *Graph) GetEdgeMeta(parent, child string) *EdgeMeta {
	return g.edgeMetadata[Edge{From: parent, To: child}]
}

// HasNode returns true if the graph contains a node with the given name.
func (g *Graph) HasNode(name string) bool {
	_, exists := g.Nodes.Get(name)
	return exists
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return g.Nodes.Len()
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	return len(g.edgeMetadata)
}

// AllNodes returns all table names in insertion order.
func (g *Graph) AllNodes() []string {
	nodes := make([]string, 0, g.Nodes.Len())
	for el := g.Nodes.Front(); el != nil; el = el.Next() {
		nodes = append(nodes, el.Key)
	}
	return nodes
}
