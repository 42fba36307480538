package graph

import (
	"reflect"
	"testing"
)

func TestNewGraph_Empty(t *testing.T) {
	g := NewGraph()

	if g.NodeCount() != 0 {
		t.Errorf("Expected 0 nodes, got %d", g.NodeCount())
	}
	if g.EdgeCount() != 0 {
		t.Errorf("Expected 0 edges, got %d", g.EdgeCount())
	}
}

func TestAddNode_PreservesInsertionOrder(t *testing.T) {
	g := NewGraph()
	g.AddNode("users", nil)
	g.AddNode("orders", &Node{Schema: "shop"})
	g.AddNode("addresses", nil)

	want := []string{"users", "orders", "addresses"}
	if got := g.AllNodes(); !reflect.DeepEqual(got, want) {
		t.Errorf("AllNodes() = %v, want %v", got, want)
	}

	node, _ := g.Nodes.Get("orders")
	if node == nil || node.Name != "orders" || node.Schema != "shop" {
		t.Errorf("node orders = %+v", node)
	}
	if g.HasNode("missing") {
		t.Error("Expected unknown node to be absent")
	}
}

func TestAddEdge_Deduplicates(t *testing.T) {
	g := NewGraph()
	g.AddNode("users", nil)
	g.AddNode("orders", nil)

	g.AddEdge("users", "orders")
	g.AddEdge("users", "orders")

	if g.EdgeCount() != 1 {
		t.Errorf("Expected 1 edge, got %d", g.EdgeCount())
	}
	if got := g.GetChildren("users"); !reflect.DeepEqual(got, []string{"orders"}) {
		t.Errorf("GetChildren(users) = %v", got)
	}
	if got := g.GetParents("orders"); !reflect.DeepEqual(got, []string{"users"}) {
		t.Errorf("GetParents(orders) = %v", got)
	}
	if got := g.CalculateInDegrees(); got["orders"] != 1 || got["users"] != 0 {
		t.Errorf("CalculateInDegrees() = %v", got)
	}
}

func TestAddEdgeWithMeta(t *testing.T) {
	g := NewGraph()
	g.AddNode("users", nil)
	g.AddNode("orders", nil)
	g.AddEdgeWithMeta("users", "orders", "fk_orders_user")

	meta := g.GetEdgeMeta("users", "orders")
	if meta == nil || meta.Constraint != "fk_orders_user" {
		t.Errorf("GetEdgeMeta = %+v", meta)
	}
	if g.GetEdgeMeta("orders", "users") != nil {
		t.Error("Expected nil meta for reversed edge")
	}
}
