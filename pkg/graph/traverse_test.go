package graph

import (
	"reflect"
	"testing"
)

func ids(matches []Match) []string {
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.ID)
	}
	return out
}

func depthTwoTree() *Graph {
	g := New()
	g.AddEdge("root", "c1", false)
	g.AddEdge("root", "c2", false)
	g.AddEdge("c1", "g1", false)
	return g
}

func TestBFS_TreeOrder(t *testing.T) {
	got := ids(depthTwoTree().BFS("root", nil))
	want := []string{"root", "c1", "c2", "g1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestDFS_TreeOrder(t *testing.T) {
	got := ids(depthTwoTree().DFS("root", nil))
	want := []string{"root", "c1", "g1", "c2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestDFS_MatchesRecursivePreOrder(t *testing.T) {
	// a -> b, c ; b -> c, d ; c -> a ; d -> b
	g := New()
	g.AddEdge("a", "b", false)
	g.AddEdge("a", "c", false)
	g.AddEdge("b", "c", false)
	g.AddEdge("b", "d", false)
	g.AddEdge("c", "a", false)
	g.AddEdge("d", "b", false)

	got := ids(g.DFS("a", nil))
	want := []string{"a", "b", "c", "d"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestTraversal_CycleTerminates(t *testing.T) {
	g := New()
	g.AddEdge("A", "B", true)

	for name, walk := range map[string]func(string, Predicate) []Match{
		"dfs": g.DFS,
		"bfs": g.BFS,
	} {
		t.Run(name, func(t *testing.T) {
			got := ids(walk("A", nil))
			if !reflect.DeepEqual(got, []string{"A", "B"}) {
				t.Errorf("expected each node once, got %v", got)
			}
		})
	}
}

func TestTraversal_UnknownStart(t *testing.T) {
	g := New()
	g.AddNode("other", Region{Name: "Coclé"})

	for name, walk := range map[string]func(string, Predicate) []Match{
		"dfs": g.DFS,
		"bfs": g.BFS,
	} {
		t.Run(name, func(t *testing.T) {
			all := walk("ghost", nil)
			if len(all) != 1 || all[0].ID != "ghost" {
				t.Fatalf("expected the unknown start alone, got %v", ids(all))
			}
			if _, isEmpty := all[0].Payload.(Empty); !isEmpty {
				t.Errorf("expected Empty payload, got %T", all[0].Payload)
			}

			onlyAlerts := walk("ghost", func(p Payload, _ string) bool {
				return p.Kind() == KindAlert
			})
			if len(onlyAlerts) != 0 {
				t.Errorf("expected no matches, got %v", ids(onlyAlerts))
			}
		})
	}

	if _, ok := g.GetNode("ghost"); ok {
		t.Error("traversal must not create nodes")
	}
}

func TestTraversal_PredicateSeesID(t *testing.T) {
	g := depthTwoTree()
	pred := func(_ Payload, id string) bool { return id == "g1" || id == "c2" }

	if got := ids(g.DFS("root", pred)); !reflect.DeepEqual(got, []string{"g1", "c2"}) {
		t.Errorf("dfs: expected [g1 c2], got %v", got)
	}
	if got := ids(g.BFS("root", pred)); !reflect.DeepEqual(got, []string{"c2", "g1"}) {
		t.Errorf("bfs: expected [c2 g1], got %v", got)
	}
}

func TestBFS_DuplicateFrontierEntries(t *testing.T) {
	// root -> a, b ; a -> c ; b -> c. c is enqueued from both a and b before
	// it is first dequeued, and must still be collected exactly once.
	g := New()
	g.AddEdge("root", "a", false)
	g.AddEdge("root", "b", false)
	g.AddEdge("a", "c", false)
	g.AddEdge("b", "c", false)

	matches, stats := g.BFSStats("root", nil)

	if got := ids(matches); !reflect.DeepEqual(got, []string{"root", "a", "b", "c"}) {
		t.Errorf("unexpected order %v", got)
	}
	if stats.Visited != 4 {
		t.Errorf("expected 4 visited nodes, got %d", stats.Visited)
	}
	// root, a, b, c (from a), c (from b)
	if stats.Enqueued != 5 {
		t.Errorf("expected 5 enqueues including the duplicate, got %d", stats.Enqueued)
	}
	if stats.Enqueued <= stats.Visited {
		t.Error("expected queue traffic to exceed the visited count")
	}
}

func TestBFS_FrontierCanExceedUnvisitedCount(t *testing.T) {
	// Full bidirectional triangle plus a hub: every node points at every
	// other one, so the queue holds stale entries for already visited nodes.
	g := New()
	nodes := []string{"x", "y", "z"}
	for _, a := range nodes {
		for _, b := range nodes {
			if a != b {
				g.AddEdge(a, b, false)
			}
		}
	}

	matches, stats := g.BFSStats("x", nil)
	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %v", ids(matches))
	}
	// After x: queue [y z]. After y: z is unvisited so [z z]. MaxFrontier 2.
	if stats.MaxFrontier != 2 {
		t.Errorf("expected max frontier 2, got %d", stats.MaxFrontier)
	}
	if stats.Enqueued != 4 {
		t.Errorf("expected 4 enqueues, got %d", stats.Enqueued)
	}
}

func TestDFS_CategoryQuery(t *testing.T) {
	build := func(active bool) *Graph {
		g := New()
		g.AddNode("TYPE_CRIME", Category{Key: "crime", Name: "Crimen/Seguridad"})
		g.AddNode("ALERTA_X", Alert{Category: "crime", Active: active})
		g.AddEdge("ALERTA_X", "TYPE_CRIME", true)
		return g
	}
	pred := func(p Payload, _ string) bool {
		a, ok := p.(Alert)
		return ok && a.Category == "crime" && a.Active
	}

	if got := ids(build(true).DFS("TYPE_CRIME", pred)); !reflect.DeepEqual(got, []string{"ALERTA_X"}) {
		t.Errorf("expected [ALERTA_X], got %v", got)
	}
	if got := build(false).DFS("TYPE_CRIME", pred); len(got) != 0 {
		t.Errorf("expected no matches for inactive alert, got %v", ids(got))
	}
}

func TestDFS_FollowsOnlyOutgoingEdges(t *testing.T) {
	g := New()
	g.AddEdge("ALERTA_X", "TYPE_CRIME", false)

	if got := ids(g.DFS("TYPE_CRIME", nil)); !reflect.DeepEqual(got, []string{"TYPE_CRIME"}) {
		t.Errorf("expected only the start without a reverse edge, got %v", got)
	}
}

func TestDFSStats_VisitedMatchesReachable(t *testing.T) {
	g := depthTwoTree()
	g.AddEdge("g1", "root", false)

	matches, stats := g.DFSStats("root", func(Payload, string) bool { return false })
	if len(matches) != 0 {
		t.Errorf("expected no matches, got %v", ids(matches))
	}
	if stats.Visited != 4 {
		t.Errorf("expected 4 visited, got %d", stats.Visited)
	}
}
