package store

import (
	"path/filepath"
	"testing"

	"github.com/san-kum/trussopt/internal/model"
	"github.com/san-kum/trussopt/internal/optimize"
)

func testStructure(t *testing.T) *model.Structure {
	t.Helper()
	st, err := model.New(
		[]model.Node{
			{ID: 0, X: 0, Y: 0, FixX: true, FixY: true, Active: true},
			{ID: 1, X: 1, Y: 0, FixY: true, Active: true},
			{ID: 2, X: 0.5, Y: 1, Fy: -500, Active: true},
			{ID: 3, X: 1.5, Y: 1, Active: false},
		},
		[]model.Spring{
			{I: 0, J: 1, K: 100, Active: true},
			{I: 0, J: 2, K: 150, Active: true},
			{I: 1, J: 2, K: 150, Active: true},
			{I: 1, J: 3, K: 50, Active: false},
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	return st
}

func testHistory() *optimize.History {
	return &optimize.History{
		StopReason:      optimize.StopTargetReached,
		MassFraction:    []float64{1.0, 0.9, 0.75},
		RemovedPerIter:  []int{2, 3, 1},
		MaxDisplacement: []float64{0.001, 0.0012, 0.0015},
	}
}

func TestCaseStoreSaveLoad(t *testing.T) {
	cs := NewCaseStore(filepath.Join(t.TempDir(), "cases"))
	if err := cs.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	st := testStructure(t)
	id, err := cs.Save("beam run", "energy", st, testHistory())
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if id == "" {
		t.Fatal("empty case id")
	}

	got, history, meta, err := cs.Load(id)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if meta.Name != "beam run" || meta.Optimizer != "energy" {
		t.Errorf("meta = %+v", meta)
	}
	if meta.Iterations != 3 || meta.NodesActive != 3 || meta.NodesTotal != 4 {
		t.Errorf("meta counts = %+v", meta)
	}
	if len(got.Nodes) != 4 || len(got.Springs) != 4 {
		t.Fatalf("structure shape: %d nodes, %d springs", len(got.Nodes), len(got.Springs))
	}
	if got.Nodes[3].Active {
		t.Error("inactive node resurrected")
	}
	if history == nil {
		t.Fatal("history missing")
	}
	if history.StopReason != optimize.StopTargetReached {
		t.Errorf("stop reason = %q", history.StopReason)
	}
	if len(history.MassFraction) != 3 || history.MassFraction[2] != 0.75 {
		t.Errorf("mass fractions = %v", history.MassFraction)
	}
	if len(history.RemovedPerIter) != 3 || history.TotalRemoved() != 6 {
		t.Errorf("removed = %v", history.RemovedPerIter)
	}
	if len(history.MaxDisplacement) != 3 || history.MaxDisplacement[1] != 0.0012 {
		t.Errorf("displacements = %v", history.MaxDisplacement)
	}
}

func TestCaseStoreSaveWithoutHistory(t *testing.T) {
	cs := NewCaseStore(t.TempDir())
	if err := cs.Init(); err != nil {
		t.Fatal(err)
	}
	id, err := cs.Save("", "", testStructure(t), nil)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	_, history, meta, err := cs.Load(id)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if history != nil {
		t.Error("history present for a case saved without one")
	}
	if meta.Name != "unnamed" {
		t.Errorf("name = %q, want unnamed", meta.Name)
	}
}

func TestCaseStoreListAndDelete(t *testing.T) {
	cs := NewCaseStore(t.TempDir())
	if err := cs.Init(); err != nil {
		t.Fatal(err)
	}
	st := testStructure(t)
	idA, err := cs.Save("a", "energy", st, nil)
	if err != nil {
		t.Fatal(err)
	}
	idB, err := cs.Save("b", "simp", st, nil)
	if err != nil {
		t.Fatal(err)
	}

	metas, err := cs.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(metas) != 2 {
		t.Fatalf("list length = %d, want 2", len(metas))
	}

	ok, err := cs.Delete(idA)
	if err != nil || !ok {
		t.Fatalf("Delete(%s) = %v, %v", idA, ok, err)
	}
	ok, err = cs.Delete(idA)
	if err != nil || ok {
		t.Fatalf("second Delete = %v, %v, want false", ok, err)
	}
	metas, err = cs.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(metas) != 1 || metas[0].ID != idB {
		t.Errorf("remaining cases = %+v", metas)
	}
}

func TestCaseStoreListEmpty(t *testing.T) {
	cs := NewCaseStore(filepath.Join(t.TempDir(), "never-created"))
	metas, err := cs.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(metas) != 0 {
		t.Errorf("list length = %d, want 0", len(metas))
	}
}

func TestMaterialCatalogBuiltins(t *testing.T) {
	c, err := OpenMaterialCatalog(filepath.Join(t.TempDir(), "materials.yaml"))
	if err != nil {
		t.Fatalf("OpenMaterialCatalog failed: %v", err)
	}
	steel, err := c.Get("steel")
	if err != nil {
		t.Fatalf("Get(steel) failed: %v", err)
	}
	if steel.EModPa != 210e9 || steel.YieldPa != 235e6 {
		t.Errorf("steel = %+v", steel)
	}
	if _, err := c.Get("unobtainium"); err == nil {
		t.Error("unknown material resolved")
	}
	if got := len(c.List()); got != 3 {
		t.Errorf("builtin count = %d, want 3", got)
	}
}

func TestMaterialCatalogAddShadowDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "materials.yaml")
	c, err := OpenMaterialCatalog(path)
	if err != nil {
		t.Fatal(err)
	}

	custom := Material{Name: "steel", EModPa: 200e9, AreaM2: 2e-4, Density: 7800, YieldPa: 355e6}
	if err := c.Add(custom); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	got, err := c.Get("steel")
	if err != nil {
		t.Fatal(err)
	}
	if got.EModPa != 200e9 {
		t.Errorf("saved entry does not shadow the builtin: %+v", got)
	}
	if err := c.Add(custom); err == nil {
		t.Error("duplicate Add accepted")
	}
	if err := c.Add(Material{Name: "bad", EModPa: -1, AreaM2: 1, Density: 1}); err == nil {
		t.Error("negative modulus accepted")
	}

	// Reopened catalogs see the persisted entry.
	c2, err := OpenMaterialCatalog(path)
	if err != nil {
		t.Fatal(err)
	}
	got, err = c2.Get("steel")
	if err != nil || got.YieldPa != 355e6 {
		t.Errorf("persisted entry not reloaded: %+v, %v", got, err)
	}

	ok, err := c2.Delete("steel")
	if err != nil || !ok {
		t.Fatalf("Delete = %v, %v", ok, err)
	}
	// Deleting the saved shadow falls back to the builtin.
	got, err = c2.Get("steel")
	if err != nil || got.EModPa != 210e9 {
		t.Errorf("builtin not restored after delete: %+v, %v", got, err)
	}
	ok, err = c2.Delete("aluminum")
	if err != nil || ok {
		t.Errorf("builtin deletable: %v, %v", ok, err)
	}
}
