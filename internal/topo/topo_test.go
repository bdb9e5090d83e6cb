package topo

import (
	"sort"
	"testing"

	"github.com/san-kum/trussopt/internal/model"
)

// chain builds a horizontal chain of n nodes with node 0 pinned and the
// last node loaded.
func chain(t *testing.T, n int) *model.Structure {
	t.Helper()
	nodes := make([]model.Node, n)
	for i := 0; i < n; i++ {
		nodes[i] = model.Node{ID: i, X: float64(i), Active: true}
	}
	nodes[0].FixX = true
	nodes[0].FixY = true
	nodes[n-1].Fx = 10

	springs := make([]model.Spring, 0, n-1)
	for i := 0; i < n-1; i++ {
		springs = append(springs, model.Spring{I: i, J: i + 1, K: 1, Active: true})
	}
	st, err := model.New(nodes, springs)
	if err != nil {
		t.Fatalf("model.New failed: %v", err)
	}
	return st
}

func sortedEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	sort.Ints(a)
	sort.Ints(b)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestGraphRemoveRestore(t *testing.T) {
	st := chain(t, 4)
	g := FromStructure(st, nil)

	if g.NumNodes() != 4 {
		t.Fatalf("NumNodes = %d", g.NumNodes())
	}
	if !g.Connected() {
		t.Fatal("chain must be connected")
	}

	g.Remove(1)
	if g.Connected() {
		t.Error("removing an interior chain node must disconnect")
	}
	if g.NumNodes() != 3 {
		t.Errorf("NumNodes after remove = %d", g.NumNodes())
	}

	g.Restore(1)
	if !g.Connected() {
		t.Error("restore must reconnect")
	}
}

func TestComponents(t *testing.T) {
	st, err := model.New(
		[]model.Node{
			{ID: 0, X: 0, Active: true},
			{ID: 1, X: 1, Active: true},
			{ID: 2, X: 5, Active: true},
			{ID: 3, X: 6, Active: true},
		},
		[]model.Spring{
			{I: 0, J: 1, K: 1, Active: true},
			{I: 2, J: 3, K: 1, Active: true},
		},
	)
	if err != nil {
		t.Fatalf("model.New failed: %v", err)
	}
	comps := FromStructure(st, nil).Components()
	if len(comps) != 2 {
		t.Fatalf("components = %d, want 2", len(comps))
	}
}

func TestArticulationPointsChain(t *testing.T) {
	st := chain(t, 5)
	aps := FromStructure(st, nil).ArticulationPoints()
	if !sortedEqual(aps, []int{1, 2, 3}) {
		t.Errorf("articulation points = %v, want interior nodes", aps)
	}
}

func TestArticulationPointsCycle(t *testing.T) {
	nodes := make([]model.Node, 4)
	for i := range nodes {
		nodes[i] = model.Node{ID: i, X: float64(i % 2), Y: float64(i / 2), Active: true}
	}
	springs := []model.Spring{
		{I: 0, J: 1, K: 1, Active: true},
		{I: 1, J: 3, K: 1, Active: true},
		{I: 3, J: 2, K: 1, Active: true},
		{I: 2, J: 0, K: 1, Active: true},
	}
	st, err := model.New(nodes, springs)
	if err != nil {
		t.Fatalf("model.New failed: %v", err)
	}
	if aps := FromStructure(st, nil).ArticulationPoints(); len(aps) != 0 {
		t.Errorf("cycle has articulation points %v", aps)
	}
}

func TestValidTopology(t *testing.T) {
	st := chain(t, 3)
	if !ValidTopology(st, nil) {
		t.Error("support-middle-load chain must be valid")
	}

	// Cut the chain: load loses its path to the support.
	st.Nodes[1].Active = false
	if ValidTopology(st, nil) {
		t.Error("disconnected load must invalidate topology")
	}
	st.Nodes[1].Active = true

	// No supports but a load present.
	st.Nodes[0].FixX = false
	st.Nodes[0].FixY = false
	if ValidTopology(st, nil) {
		t.Error("loaded structure without supports must be invalid")
	}
}

func TestProtectedIDs(t *testing.T) {
	st := chain(t, 5)
	// Supports, loads and their direct neighbors.
	want := []int{0, 1, 3, 4}
	if got := ProtectedIDs(st); !sortedEqual(got, want) {
		t.Errorf("protected = %v, want %v", got, want)
	}
}

func TestRemovableNodesChainMiddle(t *testing.T) {
	st := chain(t, 3)
	removable := RemovableNodes(st)
	if _, hit := removable[1]; hit {
		t.Error("middle node of a support-load chain must not be removable")
	}
}

func TestRemovableNodesIdempotent(t *testing.T) {
	st := appendageStructure(t)
	first := RemovableNodes(st)
	second := RemovableNodes(st)
	if len(first) != len(second) {
		t.Fatalf("removable sets differ in size: %d vs %d", len(first), len(second))
	}
	for id := range first {
		if _, hit := second[id]; !hit {
			t.Errorf("node %d missing from second pass", id)
		}
	}
}

// appendageStructure is a 4-node cycle (support and load on opposite
// corners) with a dangling 2-node appendage hanging off node 1.
func appendageStructure(t *testing.T) *model.Structure {
	t.Helper()
	nodes := []model.Node{
		{ID: 0, X: 0, Y: 0, FixX: true, FixY: true, Active: true},
		{ID: 1, X: 1, Y: 0, Active: true},
		{ID: 2, X: 1, Y: 1, Fx: 10, Active: true},
		{ID: 3, X: 0, Y: 1, Active: true},
		{ID: 4, X: 2, Y: 0, Active: true},
		{ID: 5, X: 3, Y: 0, Active: true},
	}
	springs := []model.Spring{
		{I: 0, J: 1, K: 1, Active: true},
		{I: 1, J: 2, K: 1, Active: true},
		{I: 2, J: 3, K: 1, Active: true},
		{I: 3, J: 0, K: 1, Active: true},
		{I: 1, J: 4, K: 1, Active: true},
		{I: 4, J: 5, K: 1, Active: true},
	}
	st, err := model.New(nodes, springs)
	if err != nil {
		t.Fatalf("model.New failed: %v", err)
	}
	return st
}

func TestRemoveUselessNodesIsland(t *testing.T) {
	// Main chain plus an unconnected 2-node island.
	nodes := []model.Node{
		{ID: 0, X: 0, Y: 0, FixX: true, FixY: true, Active: true},
		{ID: 1, X: 1, Y: 0, Active: true},
		{ID: 2, X: 2, Y: 0, Fx: 10, Active: true},
		{ID: 3, X: 5, Y: 5, Active: true},
		{ID: 4, X: 6, Y: 5, Active: true},
	}
	springs := []model.Spring{
		{I: 0, J: 1, K: 1, Active: true},
		{I: 1, J: 2, K: 1, Active: true},
		{I: 3, J: 4, K: 1, Active: true},
	}
	st, err := model.New(nodes, springs)
	if err != nil {
		t.Fatalf("model.New failed: %v", err)
	}

	removed := RemoveUselessNodes(st)
	if !sortedEqual(removed, []int{3, 4}) {
		t.Errorf("removed = %v, want [3 4]", removed)
	}
	for _, id := range []int{0, 1, 2} {
		if !st.Nodes[id].Active {
			t.Errorf("main chain node %d deactivated", id)
		}
	}
	for _, id := range []int{3, 4} {
		if st.Nodes[id].Active {
			t.Errorf("island node %d still active", id)
		}
	}
}

func TestRemoveUselessNodesAppendage(t *testing.T) {
	st := appendageStructure(t)
	removed := RemoveUselessNodes(st)
	// The dead branch goes, and so does the articulation node carrying
	// it, since the cycle keeps the rest connected without it.
	if !sortedEqual(removed, []int{1, 4, 5}) {
		t.Errorf("removed = %v, want [1 4 5]", removed)
	}
	if !ValidTopology(st, nil) {
		t.Error("cleanup broke a valid topology")
	}
}
