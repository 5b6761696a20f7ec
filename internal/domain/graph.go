package domain

import "fmt"

// Graph is one generation of the code graph. It is never patched in place:
// every payload produces a new Graph.
type Graph struct {
	Nodes       []Node `json:"nodes"`
	Edges       []Edge `json:"edges"`
	Fingerprint string `json:"fingerprint,omitempty"`

	index map[string]int
}

// NewGraph assembles a graph from nodes and edges. Nodes whose id was already
// seen are dropped, as are edges with an endpoint outside the node set. An
// edge whose id is taken is kept under the id with a "#n" suffix. The number
// of dropped nodes and edges is returned alongside.
func NewGraph(nodes []Node, edges []Edge) (g *Graph, droppedNodes, droppedEdges int) {
	g = &Graph{
		Nodes: make([]Node, 0, len(nodes)),
		Edges: make([]Edge, 0, len(edges)),
		index: make(map[string]int, len(nodes)),
	}
	edgeIDs := make(map[string]bool, len(edges))

	for _, n := range nodes {
		if _, dup := g.index[n.ID]; dup || n.ID == "" {
			droppedNodes++
			continue
		}
		n.Size = ClampSize(n.Size)
		g.index[n.ID] = len(g.Nodes)
		g.Nodes = append(g.Nodes, n)
	}

	for _, e := range edges {
		if !g.Has(e.Source) || !g.Has(e.Target) {
			droppedEdges++
			continue
		}
		e.Strength = ClampStrength(e.Strength)
		if e.ID == "" {
			e.ID = e.GenerateID()
		}
		if edgeIDs[e.ID] {
			base := e.ID
			for n := 2; edgeIDs[e.ID]; n++ {
				e.ID = fmt.Sprintf("%s#%d", base, n)
			}
		}
		edgeIDs[e.ID] = true
		g.Edges = append(g.Edges, e)
	}

	return g, droppedNodes, droppedEdges
}

// Has reports whether a node with the given id exists
func (g *Graph) Has(id string) bool {
	if g == nil {
		return false
	}
	_, ok := g.index[id]
	return ok
}

// Node returns the node with the given id
func (g *Graph) Node(id string) (Node, bool) {
	if g == nil {
		return Node{}, false
	}
	i, ok := g.index[id]
	if !ok {
		return Node{}, false
	}
	return g.Nodes[i], true
}

// IndexOf returns the slice index of the node with the given id, or -1
func (g *Graph) IndexOf(id string) int {
	if g == nil {
		return -1
	}
	if i, ok := g.index[id]; ok {
		return i
	}
	return -1
}

// Empty reports whether the graph has no nodes
func (g *Graph) Empty() bool {
	return g == nil || len(g.Nodes) == 0
}

// Stats summarises a graph for API responses and logs
type Stats struct {
	TotalNodes  int              `json:"total_nodes"`
	TotalEdges  int              `json:"total_edges"`
	NodesByType map[NodeType]int `json:"nodes_by_type,omitempty"`
	EdgesByType map[EdgeType]int `json:"edges_by_type,omitempty"`
}

// Stats counts the nodes and edges of the graph by type
func (g *Graph) Stats() Stats {
	s := Stats{
		NodesByType: make(map[NodeType]int),
		EdgesByType: make(map[EdgeType]int),
	}
	if g == nil {
		return s
	}
	s.TotalNodes = len(g.Nodes)
	s.TotalEdges = len(g.Edges)
	for _, n := range g.Nodes {
		s.NodesByType[n.Type]++
	}
	for _, e := range g.Edges {
		s.EdgesByType[e.Type]++
	}
	return s
}
