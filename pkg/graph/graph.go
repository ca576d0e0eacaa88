package graph

// Graph is a directed node/adjacency store keyed by string ids.
//
// Adjacency lists keep insertion order, which fixes traversal order.
// Graph does no locking; callers that share it across goroutines must
// serialise access themselves.
type Graph struct {
	nodes     map[string]Payload
	adjacency map[string][]string
	order     []string
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:     make(map[string]Payload),
		adjacency: make(map[string][]string),
	}
}

// AddNode inserts id with payload p if it is not already present and
// reports whether an insertion happened. A nil payload is stored as Empty.
// An existing node keeps its original payload.
func (g *Graph) AddNode(id string, p Payload) bool {
	if _, exists := g.nodes[id]; exists {
		return false
	}
	if p == nil {
		p = Empty{}
	}
	g.nodes[id] = p
	g.adjacency[id] = []string{}
	g.order = append(g.order, id)
	return true
}

// AddEdge links origin to destination, creating either endpoint with an
// empty payload if it does not exist yet. With bidirectional set the reverse
// edge is added as well. Repeated calls never duplicate an adjacency entry.
func (g *Graph) AddEdge(origin, destination string, bidirectional bool) {
	g.AddNode(origin, nil)
	g.AddNode(destination, nil)

	if !contains(g.adjacency[origin], destination) {
		g.adjacency[origin] = append(g.adjacency[origin], destination)
	}
	if bidirectional && !contains(g.adjacency[destination], origin) {
		g.adjacency[destination] = append(g.adjacency[destination], origin)
	}
}

// GetNode returns the payload stored for id.
func (g *Graph) GetNode(id string) (Payload, bool) {
	p, ok := g.nodes[id]
	return p, ok
}

// GetNeighbors returns a copy of the outgoing adjacency of id, or an empty
// slice when id has no neighbors or is unknown.
func (g *Graph) GetNeighbors(id string) []string {
	adj := g.adjacency[id]
	out := make([]string, len(adj))
	copy(out, adj)
	return out
}

// NodeCount returns the number of stored nodes.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the total number of adjacency entries. A bidirectional
// edge counts twice.
func (g *Graph) EdgeCount() int {
	total := 0
	for _, adj := range g.adjacency {
		total += len(adj)
	}
	return total
}

// IDs returns every node id in insertion order.
func (g *Graph) IDs() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// neighbors returns the adjacency slice without copying. Traversals only read it.
func (g *Graph) neighbors(id string) []string {
	return g.adjacency[id]
}

// payload returns the stored payload of id or Empty for unknown ids.
func (g *Graph) payload(id string) Payload {
	if p, ok := g.nodes[id]; ok {
		return p
	}
	return Empty{}
}

func contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}
