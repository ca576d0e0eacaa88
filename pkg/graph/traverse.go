package graph

// DFS walks the graph depth-first from start and returns, in pre-order, every
// reachable node accepted by pred. Neighbors are explored in adjacency order
// and each node is visited at most once, so cycles terminate.
//
// An unknown start is visited as an isolated node with an Empty payload.
func (g *Graph) DFS(start string, pred Predicate) []Match {
	matches, _ := g.DFSStats(start, pred)
	return matches
}

// DFSStats is DFS that also reports traversal statistics.
func (g *Graph) DFSStats(start string, pred Predicate) ([]Match, TraversalStats) {
	var stats TraversalStats
	matches := []Match{}
	visited := make(map[string]bool)

	// Explicit stack instead of recursion. Neighbors are pushed in reverse
	// so they pop in adjacency order, and the visited check happens on pop,
	// which yields the same order as the recursive pre-order walk.
	stack := []string{start}
	stats.Enqueued = 1
	stats.MaxFrontier = 1

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[id] {
			continue
		}
		visited[id] = true
		stats.Visited++

		p := g.payload(id)
		if pred == nil || pred(p, id) {
			matches = append(matches, Match{ID: id, Payload: p})
		}

		adj := g.neighbors(id)
		for i := len(adj) - 1; i >= 0; i-- {
			if !visited[adj[i]] {
				stack = append(stack, adj[i])
				stats.Enqueued++
			}
		}
		if len(stack) > stats.MaxFrontier {
			stats.MaxFrontier = len(stack)
		}
	}

	return matches, stats
}

// BFS walks the graph breadth-first from start and returns every reachable
// node accepted by pred in level order.
//
// Neighbors are checked only against the visited set, not against the
// pending queue, so a node may sit in the queue more than once. The visited
// check on dequeue guarantees it is processed and collected only once.
func (g *Graph) BFS(start string, pred Predicate) []Match {
	matches, _ := g.BFSStats(start, pred)
	return matches
}

// BFSStats is BFS that also reports traversal statistics. Enqueued counts
// duplicate queue entries.
func (g *Graph) BFSStats(start string, pred Predicate) ([]Match, TraversalStats) {
	var stats TraversalStats
	matches := []Match{}
	visited := make(map[string]bool)

	queue := []string{start}
	stats.Enqueued = 1
	stats.MaxFrontier = 1

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		if visited[id] {
			continue
		}
		visited[id] = true
		stats.Visited++

		p := g.payload(id)
		if pred == nil || pred(p, id) {
			matches = append(matches, Match{ID: id, Payload: p})
		}

		for _, next := range g.neighbors(id) {
			if !visited[next] {
				queue = append(queue, next)
				stats.Enqueued++
			}
		}
		if len(queue) > stats.MaxFrontier {
			stats.MaxFrontier = len(queue)
		}
	}

	return matches, stats
}
