package grid

import (
	"math"
	"testing"
)

func TestGenerateCounts(t *testing.T) {
	opts := Options{Width: 2, Height: 1, NX: 3, NY: 3, SpringK: 10}
	st, err := Generate(opts)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(st.Nodes) != 9 {
		t.Errorf("nodes = %d, want 9", len(st.Nodes))
	}
	// Per direction: 3 rows of 2 horizontals, 3 columns of 2 verticals,
	// and 2 diagonals in each of the 4 cells.
	if len(st.Springs) != 20 {
		t.Errorf("springs = %d, want 20", len(st.Springs))
	}
	for i := range st.Springs {
		if st.Springs[i].K != 10 {
			t.Fatalf("spring %d stiffness = %v, want 10", i, st.Springs[i].K)
		}
	}
}

func TestGenerateCoordinates(t *testing.T) {
	opts := Options{Width: 2, Height: 1, NX: 3, NY: 2, SpringK: 1}
	st, err := Generate(opts)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	// Bottom-left origin, row-major ids.
	checks := []struct {
		row, col int
		x, y     float64
	}{
		{0, 0, 0, 0},
		{0, 2, 2, 0},
		{1, 0, 0, 1},
		{1, 1, 1, 1},
	}
	for _, c := range checks {
		n := st.Nodes[opts.Index(c.row, c.col)]
		if math.Abs(n.X-c.x) > 1e-12 || math.Abs(n.Y-c.y) > 1e-12 {
			t.Errorf("node (%d,%d) at (%v,%v), want (%v,%v)",
				c.row, c.col, n.X, n.Y, c.x, c.y)
		}
		if !n.Active {
			t.Errorf("node (%d,%d) generated inactive", c.row, c.col)
		}
	}
}

func TestGenerateValidation(t *testing.T) {
	bad := []Options{
		{Width: 1, Height: 1, NX: 1, NY: 3, SpringK: 1},
		{Width: 0, Height: 1, NX: 3, NY: 3, SpringK: 1},
		{Width: 1, Height: 1, NX: 3, NY: 3, SpringK: 0},
	}
	for i, o := range bad {
		if _, err := Generate(o); err == nil {
			t.Errorf("case %d: invalid options accepted", i)
		}
	}
}

func TestBoundaryApply(t *testing.T) {
	opts := Options{Width: 1, Height: 1, NX: 3, NY: 3, SpringK: 1}
	st, err := Generate(opts)
	if err != nil {
		t.Fatal(err)
	}

	var b Boundary
	b.Pin(0).Roll(2).Load(7, 0, -500)
	if err := b.Apply(st); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if !st.Nodes[0].FixX || !st.Nodes[0].FixY {
		t.Error("pinned node not fully fixed")
	}
	if st.Nodes[2].FixX || !st.Nodes[2].FixY {
		t.Error("roller node fixity wrong")
	}
	if st.Nodes[7].Fy != -500 {
		t.Errorf("load Fy = %v, want -500", st.Nodes[7].Fy)
	}

	// Re-applying a different boundary clears the old one.
	var b2 Boundary
	b2.Pin(6).Roll(8).Load(1, 100, 0)
	if err := b2.Apply(st); err != nil {
		t.Fatalf("second Apply failed: %v", err)
	}
	if st.Nodes[0].FixX || st.Nodes[0].FixY {
		t.Error("old pin not cleared")
	}
	if st.Nodes[7].Fy != 0 {
		t.Error("old load not cleared")
	}
	if st.Nodes[1].Fx != 100 {
		t.Errorf("new load Fx = %v, want 100", st.Nodes[1].Fx)
	}
}

func TestBoundaryApplyErrors(t *testing.T) {
	opts := Options{Width: 1, Height: 1, NX: 3, NY: 3, SpringK: 1}
	st, err := Generate(opts)
	if err != nil {
		t.Fatal(err)
	}
	st.Nodes[4].Active = false

	cases := []struct {
		name  string
		build func() *Boundary
	}{
		{"no pin", func() *Boundary {
			var b Boundary
			return b.Roll(2).Load(7, 0, -1)
		}},
		{"no roller", func() *Boundary {
			var b Boundary
			return b.Pin(0).Load(7, 0, -1)
		}},
		{"same support node", func() *Boundary {
			var b Boundary
			return b.Pin(0).Roll(0).Load(7, 0, -1)
		}},
		{"no loads", func() *Boundary {
			var b Boundary
			return b.Pin(0).Roll(2)
		}},
		{"too many loads", func() *Boundary {
			var b Boundary
			b.Pin(0).Roll(2)
			for i := 0; i < MaxLoads+1; i++ {
				b.Load(3+i, 0, -1)
			}
			return &b
		}},
		{"duplicate load", func() *Boundary {
			var b Boundary
			return b.Pin(0).Roll(2).Load(7, 0, -1).Load(7, 1, 0)
		}},
		{"load out of range", func() *Boundary {
			var b Boundary
			return b.Pin(0).Roll(2).Load(99, 0, -1)
		}},
		{"load on inactive node", func() *Boundary {
			var b Boundary
			return b.Pin(0).Roll(2).Load(4, 0, -1)
		}},
	}
	for _, c := range cases {
		if err := c.build().Apply(st); err == nil {
			t.Errorf("%s: Apply accepted", c.name)
		}
	}
	// Failed applies must not touch the structure.
	for i := range st.Nodes {
		n := &st.Nodes[i]
		if n.FixX || n.FixY || n.Fx != 0 || n.Fy != 0 {
			t.Fatalf("node %d modified by a failed Apply", i)
		}
	}
}

func TestSimplySupportedBeam(t *testing.T) {
	opts := Options{Width: 2, Height: 1, NX: 5, NY: 3, SpringK: 1}
	st, err := Generate(opts)
	if err != nil {
		t.Fatal(err)
	}
	if err := SimplySupportedBeam(st, opts, -1000); err != nil {
		t.Fatalf("SimplySupportedBeam failed: %v", err)
	}

	pin := st.Nodes[opts.Index(0, 0)]
	if !pin.FixX || !pin.FixY {
		t.Error("bottom-left corner not pinned")
	}
	roll := st.Nodes[opts.Index(0, 4)]
	if roll.FixX || !roll.FixY {
		t.Error("bottom-right corner not a roller")
	}
	load := st.Nodes[opts.Index(2, 2)]
	if load.Fy != -1000 || load.Fx != 0 {
		t.Errorf("load = (%v, %v), want (0, -1000)", load.Fx, load.Fy)
	}
}
