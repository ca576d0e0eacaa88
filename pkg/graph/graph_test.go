package graph

import (
	"reflect"
	"testing"
)

func TestAddNode_FirstWriteWins(t *testing.T) {
	g := New()

	if !g.AddNode("a", Region{Name: "Colón"}) {
		t.Fatal("expected first AddNode to insert")
	}
	if g.AddNode("a", Region{Name: "Darién"}) {
		t.Error("expected second AddNode to report no insertion")
	}

	p, ok := g.GetNode("a")
	if !ok {
		t.Fatal("expected node a to exist")
	}
	if p != (Region{Name: "Colón"}) {
		t.Errorf("expected original payload to be kept, got %+v", p)
	}
}

func TestAddNode_NilPayloadIsEmpty(t *testing.T) {
	g := New()
	g.AddNode("a", nil)

	p, ok := g.GetNode("a")
	if !ok {
		t.Fatal("expected node a to exist")
	}
	if _, isEmpty := p.(Empty); !isEmpty {
		t.Errorf("expected Empty payload, got %T", p)
	}
	if KindOf(p) != KindNone {
		t.Errorf("expected empty kind, got %q", KindOf(p))
	}
}

func TestAddEdge_Idempotent(t *testing.T) {
	g := New()
	g.AddEdge("a", "b", false)
	g.AddEdge("a", "b", false)

	if got := g.GetNeighbors("a"); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("expected [b], got %v", got)
	}
	if got := g.GetNeighbors("b"); len(got) != 0 {
		t.Errorf("expected b to have no neighbors, got %v", got)
	}
}

func TestAddEdge_Bidirectional(t *testing.T) {
	g := New()
	g.AddEdge("a", "b", true)
	g.AddEdge("a", "b", true)
	g.AddEdge("b", "a", false)

	if got := g.GetNeighbors("a"); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("expected a -> [b], got %v", got)
	}
	if got := g.GetNeighbors("b"); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("expected b -> [a], got %v", got)
	}
	if g.EdgeCount() != 2 {
		t.Errorf("expected 2 adjacency entries, got %d", g.EdgeCount())
	}
}

func TestAddEdge_AutoCreatesEndpoints(t *testing.T) {
	g := New()
	g.AddEdge("USER_1", "ALERTA_X", false)

	for _, id := range []string{"USER_1", "ALERTA_X"} {
		p, ok := g.GetNode(id)
		if !ok {
			t.Fatalf("expected %s to be auto-created", id)
		}
		if _, isEmpty := p.(Empty); !isEmpty {
			t.Errorf("expected %s to carry an Empty payload, got %T", id, p)
		}
	}

	// A later AddNode with real data is a no-op: the auto-created node wins.
	if g.AddNode("ALERTA_X", Alert{Active: true}) {
		t.Error("expected AddNode on auto-created node to report no insertion")
	}
}

func TestAddEdge_KeepsInsertionOrder(t *testing.T) {
	g := New()
	g.AddEdge("root", "c2", false)
	g.AddEdge("root", "c1", false)
	g.AddEdge("root", "c3", false)
	g.AddEdge("root", "c1", false)

	want := []string{"c2", "c1", "c3"}
	if got := g.GetNeighbors("root"); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if got := g.IDs(); !reflect.DeepEqual(got, []string{"root", "c2", "c1", "c3"}) {
		t.Errorf("unexpected id order %v", got)
	}
}

func TestGetNode_Missing(t *testing.T) {
	g := New()
	p, ok := g.GetNode("nope")
	if ok || p != nil {
		t.Errorf("expected (nil, false), got (%v, %v)", p, ok)
	}
}

func TestGetNeighbors_UnknownID(t *testing.T) {
	g := New()
	got := g.GetNeighbors("never-added")
	if got == nil {
		t.Fatal("expected a non-nil empty slice")
	}
	if len(got) != 0 {
		t.Errorf("expected no neighbors, got %v", got)
	}
}

func TestGetNeighbors_ReturnsCopy(t *testing.T) {
	g := New()
	g.AddEdge("a", "b", false)

	got := g.GetNeighbors("a")
	got[0] = "mutated"

	if g.GetNeighbors("a")[0] != "b" {
		t.Error("mutating the returned slice changed the stored adjacency")
	}
}

func TestCounts(t *testing.T) {
	g := New()
	g.AddNode("SISTEMA", System{})
	g.AddEdge("SISTEMA", "TYPE_CRIME", false)
	g.AddEdge("ALERTA_X", "TYPE_CRIME", true)

	if g.NodeCount() != 3 {
		t.Errorf("expected 3 nodes, got %d", g.NodeCount())
	}
	if g.EdgeCount() != 3 {
		t.Errorf("expected 3 edges, got %d", g.EdgeCount())
	}
}
