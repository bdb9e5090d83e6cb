package optimize

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/san-kum/trussopt/internal/grid"
	"github.com/san-kum/trussopt/internal/model"
)

func beamLattice(t *testing.T, nx, ny int) *model.Structure {
	t.Helper()
	opts := grid.Options{Width: 2, Height: 1, NX: nx, NY: ny, SpringK: 1}
	st, err := grid.Generate(opts)
	if err != nil {
		t.Fatalf("grid.Generate failed: %v", err)
	}
	if err := grid.SimplySupportedBeam(st, opts, -1000); err != nil {
		t.Fatalf("boundary failed: %v", err)
	}
	if err := st.UpdateStiffness(210e9, 1e-4, 7850); err != nil {
		t.Fatalf("UpdateStiffness failed: %v", err)
	}
	return st
}

func TestEnergyOptimizerValidation(t *testing.T) {
	cases := []struct {
		remove, start float64
		ramp          int
	}{
		{0, 0.25, 10},
		{1, 0.25, 10},
		{0.02, 0, 10},
		{0.02, 1.5, 10},
		{0.02, 0.25, -1},
	}
	for _, c := range cases {
		if _, err := NewEnergyOptimizer(c.remove, c.start, c.ramp); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("NewEnergyOptimizer(%v, %v, %d) error = %v, want ErrInvalidInput",
				c.remove, c.start, c.ramp, err)
		}
	}
	if _, err := NewEnergyOptimizer(0.02, 0.25, 10); err != nil {
		t.Errorf("valid parameters rejected: %v", err)
	}
}

func TestEnergyFractionRamp(t *testing.T) {
	o, err := NewEnergyOptimizer(0.1, 0.25, 10)
	if err != nil {
		t.Fatal(err)
	}
	if f := o.fraction(0); math.Abs(f-0.025) > 1e-12 {
		t.Errorf("fraction(0) = %v, want 0.025", f)
	}
	if f := o.fraction(10); math.Abs(f-0.1) > 1e-12 {
		t.Errorf("fraction(10) = %v, want 0.1", f)
	}
	if f := o.fraction(100); math.Abs(f-0.1) > 1e-12 {
		t.Errorf("fraction beyond ramp = %v, want 0.1", f)
	}
}

func TestRunRejectsInvalidTopology(t *testing.T) {
	// Load without any support.
	st, err := model.New(
		[]model.Node{
			{ID: 0, X: 0, Active: true},
			{ID: 1, X: 1, Fx: 10, Active: true},
		},
		[]model.Spring{{I: 0, J: 1, K: 100, Active: true}},
	)
	if err != nil {
		t.Fatal(err)
	}
	o, _ := NewEnergyOptimizer(0.02, 0.25, 10)
	_, err = o.Run(context.Background(), st, Options{TargetMassFraction: 0.5, MaxIters: 10})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

func TestRunRejectsBadOptions(t *testing.T) {
	st := beamLattice(t, 5, 3)
	o, _ := NewEnergyOptimizer(0.02, 0.25, 10)
	if _, err := o.Run(context.Background(), st, Options{TargetMassFraction: 0, MaxIters: 10}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("zero target accepted: %v", err)
	}
	if _, err := o.Run(context.Background(), st, Options{TargetMassFraction: 0.5, MaxIters: 0}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("zero iterations accepted: %v", err)
	}
}

func TestEnergyChainKeepsMiddleNode(t *testing.T) {
	st, err := model.New(
		[]model.Node{
			{ID: 0, X: 0, Y: 0, FixX: true, FixY: true, Active: true},
			{ID: 1, X: 1, Y: 0, FixY: true, Active: true},
			{ID: 2, X: 2, Y: 0, FixY: true, Fx: 10, Active: true},
		},
		[]model.Spring{
			{I: 0, J: 1, K: 100, Active: true},
			{I: 1, J: 2, K: 100, Active: true},
		},
	)
	if err != nil {
		t.Fatal(err)
	}

	o, _ := NewEnergyOptimizer(0.9, 1.0, 0)
	h, err := o.Run(context.Background(), st, Options{TargetMassFraction: 0.01, MaxIters: 20})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !st.Nodes[1].Active {
		t.Error("middle node of the load path was deactivated")
	}
	if h.StopReason != StopNoFurther {
		t.Errorf("stop reason = %q, want %q", h.StopReason, StopNoFurther)
	}
}

func TestEnergyMassFractionMonotonic(t *testing.T) {
	st := beamLattice(t, 9, 5)
	o, _ := NewEnergyOptimizer(0.05, 0.5, 5)
	h, err := o.Run(context.Background(), st, Options{TargetMassFraction: 0.6, MaxIters: 60})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if h.Iterations() == 0 {
		t.Fatal("no iterations recorded")
	}
	for i := 1; i < len(h.MassFraction); i++ {
		if h.MassFraction[i] > h.MassFraction[i-1]+1e-12 {
			t.Fatalf("mass fraction increased at %d: %v -> %v",
				i, h.MassFraction[i-1], h.MassFraction[i])
		}
	}
	if h.StopReason == "" {
		t.Error("no stop reason recorded")
	}
}

func TestRunCancelled(t *testing.T) {
	st := beamLattice(t, 9, 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o, _ := NewEnergyOptimizer(0.02, 0.25, 10)
	h, err := o.Run(ctx, st, Options{TargetMassFraction: 0.5, MaxIters: 50})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if h.StopReason != StopCancelled {
		t.Errorf("stop reason = %q, want %q", h.StopReason, StopCancelled)
	}
}

func TestForceModeRemoves(t *testing.T) {
	st := beamLattice(t, 7, 5)
	o, _ := NewEnergyOptimizer(0.1, 1.0, 0)
	h, err := o.Run(context.Background(), st, Options{
		TargetMassFraction: 0.5,
		MaxIters:           3,
		Force:              true,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if h.TotalRemoved() == 0 {
		t.Error("force mode removed nothing")
	}
}

func TestDynamicOptimizerValidation(t *testing.T) {
	if _, err := NewDynamicOptimizer(0, 1.5, 0.02, 1); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("alpha > 1 accepted: %v", err)
	}
	if _, err := NewDynamicOptimizer(0, 0.5, 0.02, 0); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("zero node mass accepted: %v", err)
	}
}

func TestDynamicRunRecordsFrequencies(t *testing.T) {
	st := beamLattice(t, 7, 5)
	o, err := NewDynamicOptimizer(100, 0.5, 0.05, 1)
	if err != nil {
		t.Fatal(err)
	}
	h, err := o.Run(context.Background(), st, Options{TargetMassFraction: 0.7, MaxIters: 10})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(h.Omega1) == 0 {
		t.Fatal("no omega1 series recorded")
	}
	for i, w := range h.Omega1 {
		if w <= 0 {
			t.Errorf("omega1[%d] = %v, want > 0", i, w)
		}
		if math.Abs(h.FreqDistance[i]-math.Abs(w-100)) > 1e-9 {
			t.Errorf("freq distance[%d] inconsistent with omega1", i)
		}
	}
}

func TestRankPercentiles(t *testing.T) {
	ranks := rankPercentiles([]float64{30, 10, 20})
	want := []float64{1, 0, 0.5}
	for i := range want {
		if math.Abs(ranks[i]-want[i]) > 1e-12 {
			t.Errorf("rank[%d] = %v, want %v", i, ranks[i], want[i])
		}
	}
}

func TestSIMPVolumeConstraint(t *testing.T) {
	st := beamLattice(t, 7, 5)
	o := NewSIMPOptimizer(210e9)
	o.VolumeFraction = 0.5

	h, err := o.Run(context.Background(), st, 25, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(h.VolumeFraction) == 0 {
		t.Fatal("no volume series recorded")
	}
	final := h.VolumeFraction[len(h.VolumeFraction)-1]
	if math.Abs(final-0.5) > 0.1 {
		t.Errorf("final volume fraction = %v, want about 0.5", final)
	}
	aMax := o.resolveAMax(st)
	for i := range st.Springs {
		if !st.Springs[i].Active {
			continue
		}
		a := st.Springs[i].Area
		if a < o.AMin-1e-15 || a > aMax+1e-15 {
			t.Errorf("spring %d area %v outside [%v, %v]", i, a, o.AMin, aMax)
		}
	}
}

func TestSIMPValidation(t *testing.T) {
	st := beamLattice(t, 5, 3)
	o := NewSIMPOptimizer(210e9)
	o.VolumeFraction = 0
	if _, err := o.Run(context.Background(), st, 10, nil); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("zero volume fraction accepted: %v", err)
	}
}

func TestRebuildNoOverstress(t *testing.T) {
	// A fully intact structure has no inactive neighbors to reactivate.
	st := beamLattice(t, 5, 3)
	result := RebuildSupport(st, DefaultRebuildOptions())
	if len(result.ReactivatedNodeIDs) != 0 {
		t.Errorf("reactivated %v on an intact structure", result.ReactivatedNodeIDs)
	}
	if result.Message == "" {
		t.Error("no message set")
	}
	if result.StressAfter != result.StressBefore {
		t.Errorf("stress changed without any reactivation: %v -> %v",
			result.StressBefore, result.StressAfter)
	}
}

func TestSweepEnergyPicksBest(t *testing.T) {
	st := beamLattice(t, 7, 5)
	opts := Options{TargetMassFraction: 0.7, MaxIters: 30}
	result, err := SweepEnergy(context.Background(), st, opts,
		[]float64{0.02, 0.05}, []float64{0.5}, 5)
	if err != nil {
		t.Fatalf("SweepEnergy failed: %v", err)
	}
	if len(result.Points) != 2 {
		t.Fatalf("points = %d, want 2", len(result.Points))
	}
	if result.Best == nil || result.BestStructure == nil {
		t.Fatal("no best point selected")
	}
	// The input structure must stay untouched.
	if st.ActiveNodeCount() != len(st.Nodes) {
		t.Error("sweep mutated the input structure")
	}
}
