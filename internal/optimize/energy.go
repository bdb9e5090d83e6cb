package optimize

import (
	"context"
	"fmt"

	"github.com/san-kum/trussopt/internal/model"
)

// EnergyOptimizer removes the nodes carrying the least static strain
// energy each iteration. The effective remove fraction ramps linearly
// from StartFactor up to 1.0 over the first RampIters iterations, since
// the dense starting structure is the most fragile to large simultaneous
// removals.
type EnergyOptimizer struct {
	RemoveFraction float64
	StartFactor    float64
	RampIters      int
}

// NewEnergyOptimizer validates the parameter ranges.
func NewEnergyOptimizer(removeFraction, startFactor float64, rampIters int) (*EnergyOptimizer, error) {
	if removeFraction <= 0 || removeFraction >= 1 {
		return nil, fmt.Errorf("%w: remove fraction must be in (0, 1)", ErrInvalidInput)
	}
	if startFactor <= 0 || startFactor > 1 {
		return nil, fmt.Errorf("%w: start factor must be in (0, 1]", ErrInvalidInput)
	}
	if rampIters < 0 {
		return nil, fmt.Errorf("%w: ramp iterations must be >= 0", ErrInvalidInput)
	}
	return &EnergyOptimizer{
		RemoveFraction: removeFraction,
		StartFactor:    startFactor,
		RampIters:      rampIters,
	}, nil
}

func (o *EnergyOptimizer) fraction(iter int) float64 {
	if o.RampIters == 0 {
		return o.RemoveFraction
	}
	t := float64(iter) / float64(o.RampIters)
	if t > 1 {
		t = 1
	}
	return o.RemoveFraction * (o.StartFactor + (1-o.StartFactor)*t)
}

func (o *EnergyOptimizer) score(st *model.Structure, u []float64, h *History) ([]float64, float64, error) {
	if u == nil {
		return make([]float64, len(st.Nodes)), 0, nil
	}
	imp := st.NodeImportanceFromEnergy(u)
	maxImp := 0.0
	for _, v := range imp {
		if v > maxImp {
			maxImp = v
		}
	}
	return imp, maxImp, nil
}

// Run drives the shared state machine with strain-energy scoring.
func (o *EnergyOptimizer) Run(ctx context.Context, st *model.Structure, opts Options) (*History, error) {
	return run(ctx, st, o, opts)
}
