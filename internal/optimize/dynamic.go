package optimize

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/trussopt/internal/model"
	"github.com/san-kum/trussopt/internal/solver"
)

// eigenModes is how many structural modes each iteration requests.
const eigenModes = 6

// DynamicOptimizer blends static strain-energy importance with a
// Rayleigh sensitivity from the first eigenmode, driving the structure
// toward a target excitation frequency instead of pure minimum mass.
type DynamicOptimizer struct {
	// OmegaExcitation is the excitation frequency [rad/s] whose distance
	// to omega1 is tracked per iteration.
	OmegaExcitation float64
	// Alpha weights the dynamic rank against the static rank in [0, 1].
	Alpha          float64
	RemoveFraction float64
	// NodeMass is the uniform fallback mass when no material is set.
	NodeMass float64
}

// NewDynamicOptimizer validates the parameter ranges.
func NewDynamicOptimizer(omegaExcitation, alpha, removeFraction, nodeMass float64) (*DynamicOptimizer, error) {
	if removeFraction <= 0 || removeFraction >= 1 {
		return nil, fmt.Errorf("%w: remove fraction must be in (0, 1)", ErrInvalidInput)
	}
	if alpha < 0 || alpha > 1 {
		return nil, fmt.Errorf("%w: alpha must be in [0, 1]", ErrInvalidInput)
	}
	if nodeMass <= 0 {
		return nil, fmt.Errorf("%w: node mass must be > 0", ErrInvalidInput)
	}
	return &DynamicOptimizer{
		OmegaExcitation: omegaExcitation,
		Alpha:           alpha,
		RemoveFraction:  removeFraction,
		NodeMass:        nodeMass,
	}, nil
}

func (o *DynamicOptimizer) fraction(int) float64 { return o.RemoveFraction }

func (o *DynamicOptimizer) score(st *model.Structure, u []float64, h *History) ([]float64, float64, error) {
	k, err := st.AssembleStiffness()
	if err != nil {
		return nil, 0, err
	}
	massDiag := solver.AssembleMass(st, o.NodeMass)
	eigenvalues, eigenvectors, err := solver.SolveEigen(k, massDiag, st.FixedDofs(), eigenModes)
	if err != nil {
		return nil, 0, err
	}
	omega1, f1 := solver.FirstFrequency(eigenvalues)
	h.Omega1 = append(h.Omega1, omega1)
	h.F1 = append(h.F1, f1)
	h.FreqDistance = append(h.FreqDistance, math.Abs(omega1-o.OmegaExcitation))

	n := len(st.Nodes)
	staticImp := make([]float64, n)
	if o.Alpha < 1 && u != nil {
		staticImp = st.NodeImportanceFromEnergy(u)
	}
	dynamicImp := make([]float64, n)
	if o.Alpha > 0 {
		for i := range st.Nodes {
			node := &st.Nodes[i]
			if !node.Active {
				continue
			}
			ux := eigenvectors.At(node.DofX(), 0)
			uy := eigenvectors.At(node.DofY(), 0)
			dynamicImp[i] = (ux*ux + uy*uy) * massDiag[node.DofX()]
		}
	}
	return o.blend(staticImp, dynamicImp), omega1, nil
}

// blend converts both importance vectors to rank percentiles and mixes
// them. Static energy and modal mass live on incomparable scales, so raw
// magnitudes must not be combined directly.
func (o *DynamicOptimizer) blend(staticImp, dynamicImp []float64) []float64 {
	n := len(staticImp)
	if n == 0 {
		return nil
	}
	staticRank := rankPercentiles(staticImp)
	dynamicRank := rankPercentiles(dynamicImp)
	score := make([]float64, n)
	for i := range score {
		score[i] = (1-o.Alpha)*staticRank[i] + o.Alpha*dynamicRank[i]
	}
	return score
}

// rankPercentiles maps each value to rank/(n-1) in [0, 1].
func rankPercentiles(values []float64) []float64 {
	n := len(values)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return values[order[a]] < values[order[b]]
	})
	denom := float64(n - 1)
	if denom < 1 {
		denom = 1
	}
	ranks := make([]float64, n)
	for rank, idx := range order {
		ranks[idx] = float64(rank) / denom
	}
	return ranks
}

// Run drives the shared state machine with blended static/dynamic
// scoring, recording omega1, f1, and the excitation distance per
// iteration.
func (o *DynamicOptimizer) Run(ctx context.Context, st *model.Structure, opts Options) (*History, error) {
	return run(ctx, st, o, opts)
}
