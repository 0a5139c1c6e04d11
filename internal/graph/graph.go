package graph

import (
	"fmt"
	"sort"

	"github.com/ternarybob/precis/internal/models"
)

// Graph is an in-memory typed document graph. It is not safe for
// concurrent mutation; build it single-threaded, then read freely.
type Graph struct {
	nodes map[string]*models.Node
	// edges keyed by from-node, each holding the outgoing set
	outgoing map[string][]*models.Edge
	incoming map[string][]*models.Edge
	// edgeKeys guards against duplicate (from,to,type) triples
	edgeKeys map[string]struct{}
	order    []string // insertion order of node IDs
}

// New creates an empty graph
func New() *Graph {
	return &Graph{
		nodes:    make(map[string]*models.Node),
		outgoing: make(map[string][]*models.Edge),
		incoming: make(map[string][]*models.Edge),
		edgeKeys: make(map[string]struct{}),
	}
}

// AddNode inserts a node, rejecting duplicate IDs
func (g *Graph) AddNode(node models.Node) error {
	if node.ID == "" {
		return fmt.Errorf("node ID cannot be empty")
	}
	if _, exists := g.nodes[node.ID]; exists {
		return fmt.Errorf("duplicate node ID: %s", node.ID)
	}
	n := node
	g.nodes[n.ID] = &n
	g.order = append(g.order, n.ID)
	return nil
}

// AddEdge inserts a directed edge. Both endpoints must exist, self-loops
// and duplicate (from, to, type) triples are rejected.
func (g *Graph) AddEdge(edge models.Edge) error {
	if edge.From == edge.To {
		return fmt.Errorf("self-loop edge on node %s", edge.From)
	}
	if _, ok := g.nodes[edge.From]; !ok {
		return fmt.Errorf("edge source node not found: %s", edge.From)
	}
	if _, ok := g.nodes[edge.To]; !ok {
		return fmt.Errorf("edge target node not found: %s", edge.To)
	}
	key := edge.From + "\x00" + edge.To + "\x00" + string(edge.Type)
	if _, dup := g.edgeKeys[key]; dup {
		return fmt.Errorf("duplicate edge %s -> %s (%s)", edge.From, edge.To, edge.Type)
	}
	e := edge
	g.edgeKeys[key] = struct{}{}
	g.outgoing[e.From] = append(g.outgoing[e.From], &e)
	g.incoming[e.To] = append(g.incoming[e.To], &e)
	return nil
}

// Node returns the node with the given ID, or nil
func (g *Graph) Node(id string) *models.Node {
	return g.nodes[id]
}

// HasNode reports whether a node exists
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// NodeCount returns the number of nodes
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges
func (g *Graph) EdgeCount() int {
	return len(g.edgeKeys)
}

// Nodes returns all nodes in insertion order
func (g *Graph) Nodes() []*models.Node {
	out := make([]*models.Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// NodesByType returns all nodes of the given type in insertion order
func (g *Graph) NodesByType(t models.NodeType) []*models.Node {
	var out []*models.Node
	for _, id := range g.order {
		if n := g.nodes[id]; n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

// Edges returns all edges, ordered by source node insertion order
func (g *Graph) Edges() []*models.Edge {
	var out []*models.Edge
	for _, id := range g.order {
		out = append(out, g.outgoing[id]...)
	}
	return out
}

// Neighbors returns nodes reachable from id along outgoing edges of the
// given types. Empty types means all edge types.
func (g *Graph) Neighbors(id string, types ...models.EdgeType) []*models.Node {
	var out []*models.Node
	seen := make(map[string]struct{})
	for _, e := range g.outgoing[id] {
		if len(types) > 0 && !containsEdgeType(types, e.Type) {
			continue
		}
		if _, dup := seen[e.To]; dup {
			continue
		}
		seen[e.To] = struct{}{}
		out = append(out, g.nodes[e.To])
	}
	return out
}

// ParentOfType walks incoming contains edges upward until it finds an
// ancestor of the given type, or nil when none exists
func (g *Graph) ParentOfType(id string, t models.NodeType) *models.Node {
	visited := make(map[string]struct{})
	current := id
	for {
		if _, loop := visited[current]; loop {
			return nil
		}
		visited[current] = struct{}{}

		var parent string
		for _, e := range g.incoming[current] {
			if e.Type == models.EdgeTypeContains {
				parent = e.From
				break
			}
		}
		if parent == "" {
			return nil
		}
		if n := g.nodes[parent]; n.Type == t {
			return n
		}
		current = parent
	}
}

// Root returns the single document node, or nil when absent
func (g *Graph) Root() *models.Node {
	docs := g.NodesByType(models.NodeTypeDocument)
	if len(docs) != 1 {
		return nil
	}
	return docs[0]
}

// Stats computes shape statistics on demand
func (g *Graph) Stats() models.GraphStats {
	stats := models.GraphStats{
		NodeCount:   len(g.nodes),
		EdgeCount:   len(g.edgeKeys),
		NodesByType: make(map[models.NodeType]int),
		EdgesByType: make(map[models.EdgeType]int),
	}
	for _, n := range g.nodes {
		stats.NodesByType[n.Type]++
	}
	for _, edges := range g.outgoing {
		for _, e := range edges {
			stats.EdgesByType[e.Type]++
		}
	}
	if len(g.nodes) > 0 {
		stats.AvgOutDegree = float64(len(g.edgeKeys)) / float64(len(g.nodes))
	}
	if root := g.Root(); root != nil {
		stats.MaxDepth = g.depthFrom(root.ID)
	}
	return stats
}

// depthFrom measures the longest contains chain from a node
func (g *Graph) depthFrom(id string) int {
	max := 0
	for _, e := range g.outgoing[id] {
		if e.Type != models.EdgeTypeContains {
			continue
		}
		if d := g.depthFrom(e.To) + 1; d > max {
			max = d
		}
	}
	return max
}

// Export serializes the graph for persistence
func (g *Graph) Export(documentID string) *models.GraphData {
	data := &models.GraphData{
		ID:         "graph_" + documentID,
		DocumentID: documentID,
		Nodes:      make([]models.Node, 0, len(g.nodes)),
		Edges:      make([]models.Edge, 0, len(g.edgeKeys)),
	}
	for _, n := range g.Nodes() {
		data.Nodes = append(data.Nodes, *n)
	}
	for _, e := range g.Edges() {
		data.Edges = append(data.Edges, *e)
	}
	return data
}

// FromData rebuilds a graph from its serialized form. Invalid records
// (dangling edges, duplicates) fail loudly rather than silently.
func FromData(data *models.GraphData) (*Graph, error) {
	g := New()
	for _, n := range data.Nodes {
		if err := g.AddNode(n); err != nil {
			return nil, fmt.Errorf("rebuilding graph %s: %w", data.ID, err)
		}
	}
	for _, e := range data.Edges {
		if err := g.AddEdge(e); err != nil {
			return nil, fmt.Errorf("rebuilding graph %s: %w", data.ID, err)
		}
	}
	return g, nil
}

// SortNodesByPosition orders nodes by (page, start) for deterministic
// context assembly
func SortNodesByPosition(nodes []*models.Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Position.Page != nodes[j].Position.Page {
			return nodes[i].Position.Page < nodes[j].Position.Page
		}
		return nodes[i].Position.Start < nodes[j].Position.Start
	})
}

func containsEdgeType(types []models.EdgeType, t models.EdgeType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}
