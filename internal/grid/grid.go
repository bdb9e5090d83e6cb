// Package grid builds regular rectangular lattices and applies boundary
// conditions to them. It is the inbound construction path for everything
// else in this module; the optimizers only require that the resulting
// structure carries at least one support and one load.
package grid

import (
	"fmt"

	"github.com/san-kum/trussopt/internal/model"
)

// MaxLoads caps the number of point loads a boundary builder accepts.
const MaxLoads = 5

// Options describes a rectangular lattice.
type Options struct {
	Width   float64 // physical extent in x, meters
	Height  float64 // physical extent in y, meters
	NX, NY  int     // node counts per direction
	SpringK float64 // uniform spring stiffness, N/m
}

// DefaultOptions returns a square 10x10 lattice of unit springs.
func DefaultOptions() Options {
	return Options{Width: 1, Height: 1, NX: 10, NY: 10, SpringK: 1}
}

func (o Options) validate() error {
	if o.NX < 2 || o.NY < 2 {
		return fmt.Errorf("grid: need at least 2x2 nodes, got %dx%d", o.NX, o.NY)
	}
	if o.Width <= 0 || o.Height <= 0 {
		return fmt.Errorf("grid: extent must be positive, got %gx%g", o.Width, o.Height)
	}
	if o.SpringK <= 0 {
		return fmt.Errorf("grid: spring stiffness must be positive, got %g", o.SpringK)
	}
	return nil
}

// Index maps a (row, col) lattice position to a node id.
func (o Options) Index(row, col int) int { return row*o.NX + col }

// Generate builds the lattice: nodes row by row from the bottom-left
// corner, springs horizontal, vertical and along both diagonals of every
// cell. Node ids equal their slice index.
func Generate(o Options) (*model.Structure, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}
	dx := o.Width / float64(o.NX-1)
	dy := o.Height / float64(o.NY-1)

	nodes := make([]model.Node, 0, o.NX*o.NY)
	for row := 0; row < o.NY; row++ {
		for col := 0; col < o.NX; col++ {
			nodes = append(nodes, model.Node{
				ID:     o.Index(row, col),
				X:      float64(col) * dx,
				Y:      float64(row) * dy,
				Active: true,
			})
		}
	}

	var springs []model.Spring
	add := func(i, j int) {
		springs = append(springs, model.Spring{I: i, J: j, K: o.SpringK, Active: true})
	}
	for row := 0; row < o.NY; row++ {
		for col := 0; col < o.NX; col++ {
			i := o.Index(row, col)
			if col+1 < o.NX {
				add(i, o.Index(row, col+1))
			}
			if row+1 < o.NY {
				add(i, o.Index(row+1, col))
			}
			if row+1 < o.NY && col+1 < o.NX {
				add(i, o.Index(row+1, col+1))
			}
			if row+1 < o.NY && col-1 >= 0 {
				add(i, o.Index(row+1, col-1))
			}
		}
	}
	return model.New(nodes, springs)
}
