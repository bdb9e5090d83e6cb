package model

import "math"

// loadEps is the magnitude below which a nodal force is treated as zero.
const loadEps = 1e-9

// Node is a single lattice point with two displacement DOFs.
type Node struct {
	ID     int
	X, Y   float64
	Fx, Fy float64
	FixX   bool
	FixY   bool
	Active bool
}

func (n *Node) DofX() int { return 2 * n.ID }
func (n *Node) DofY() int { return 2*n.ID + 1 }

// FixedDofs returns the DOF indices constrained on this node.
func (n *Node) FixedDofs() []int {
	dofs := make([]int, 0, 2)
	if n.FixX {
		dofs = append(dofs, n.DofX())
	}
	if n.FixY {
		dofs = append(dofs, n.DofY())
	}
	return dofs
}

// Supported reports whether the node carries a boundary fixity.
func (n *Node) Supported() bool { return n.FixX || n.FixY }

// Loaded reports whether the node carries a nonzero point load.
func (n *Node) Loaded() bool {
	return math.Abs(n.Fx) > loadEps || math.Abs(n.Fy) > loadEps
}
