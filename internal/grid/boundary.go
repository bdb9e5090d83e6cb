package grid

import (
	"fmt"

	"github.com/san-kum/trussopt/internal/model"
)

// Boundary accumulates supports and loads before applying them to a
// structure in one shot. Exactly one pinned and one roller support are
// required; loads are capped at [MaxLoads] and must sit on distinct
// nodes.
type Boundary struct {
	pinned int
	roller int
	loads  []pointLoad
	hasPin bool
	hasRol bool
}

type pointLoad struct {
	id     int
	fx, fy float64
}

// Pin fixes both DOFs of the given node.
func (b *Boundary) Pin(id int) *Boundary {
	b.pinned = id
	b.hasPin = true
	return b
}

// Roll fixes only the vertical DOF of the given node.
func (b *Boundary) Roll(id int) *Boundary {
	b.roller = id
	b.hasRol = true
	return b
}

// Load adds a point load on the given node.
func (b *Boundary) Load(id int, fx, fy float64) *Boundary {
	b.loads = append(b.loads, pointLoad{id, fx, fy})
	return b
}

// Apply clears all existing boundary conditions on st and installs the
// accumulated ones. The structure is unchanged on error.
func (b *Boundary) Apply(st *model.Structure) error {
	if !b.hasPin {
		return fmt.Errorf("grid: pinned support not set")
	}
	if !b.hasRol {
		return fmt.Errorf("grid: roller support not set")
	}
	if b.pinned == b.roller {
		return fmt.Errorf("grid: pinned and roller support on same node %d", b.pinned)
	}
	if len(b.loads) == 0 {
		return fmt.Errorf("grid: at least one load required")
	}
	if len(b.loads) > MaxLoads {
		return fmt.Errorf("grid: %d loads exceeds limit of %d", len(b.loads), MaxLoads)
	}
	seen := make(map[int]struct{}, len(b.loads))
	for _, l := range b.loads {
		if err := checkNode(st, l.id); err != nil {
			return err
		}
		if _, dup := seen[l.id]; dup {
			return fmt.Errorf("grid: duplicate load on node %d", l.id)
		}
		seen[l.id] = struct{}{}
	}
	if err := checkNode(st, b.pinned); err != nil {
		return err
	}
	if err := checkNode(st, b.roller); err != nil {
		return err
	}

	for i := range st.Nodes {
		n := &st.Nodes[i]
		n.FixX, n.FixY = false, false
		n.Fx, n.Fy = 0, 0
	}
	st.Nodes[b.pinned].FixX = true
	st.Nodes[b.pinned].FixY = true
	st.Nodes[b.roller].FixY = true
	for _, l := range b.loads {
		st.Nodes[l.id].Fx = l.fx
		st.Nodes[l.id].Fy = l.fy
	}
	return nil
}

func checkNode(st *model.Structure, id int) error {
	if id < 0 || id >= len(st.Nodes) {
		return fmt.Errorf("grid: node %d out of range [0,%d)", id, len(st.Nodes))
	}
	if !st.Nodes[id].Active {
		return fmt.Errorf("grid: node %d is not active", id)
	}
	return nil
}

// SimplySupportedBeam pins the bottom-left corner, rolls the bottom-right
// corner and loads the top mid-column node with the given vertical force.
func SimplySupportedBeam(st *model.Structure, o Options, loadFy float64) error {
	var b Boundary
	b.Pin(o.Index(0, 0))
	b.Roll(o.Index(0, o.NX-1))
	b.Load(o.Index(o.NY-1, o.NX/2), 0, loadFy)
	return b.Apply(st)
}
