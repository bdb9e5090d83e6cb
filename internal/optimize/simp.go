package optimize

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/trussopt/internal/model"
	"github.com/san-kum/trussopt/internal/topo"
)

const (
	// ocBisectionSteps bounds the Lagrange multiplier search.
	ocBisectionSteps = 100
	// ocBracketTol ends the bisection once the bracket is tight.
	ocBracketTol = 1e-10
	// moveLimitFloor is the smallest move limit the singular-retry
	// shrinking may reach.
	moveLimitFloor = 0.01
	// simpConvergeStreak is how many consecutive iterations must sit
	// below tol before the run counts as converged.
	simpConvergeStreak = 3
)

// SIMPOptimizer performs continuous cross-section sizing: a power-law
// stiffness penalty pushes spring areas toward 0 or Amax while an
// Optimality-Criteria update holds the total volume at the target
// fraction.
type SIMPOptimizer struct {
	EModulusPa     float64
	AMin           float64
	AMax           float64 // zero: taken from the largest active area
	VolumeFraction float64
	Penalty        float64
	Eta            float64
	MoveLimit      float64
	Tol            float64
}

// NewSIMPOptimizer fills in the usual parameter defaults.
func NewSIMPOptimizer(emodPa float64) *SIMPOptimizer {
	return &SIMPOptimizer{
		EModulusPa:     emodPa,
		AMin:           1e-9,
		VolumeFraction: 0.5,
		Penalty:        3.0,
		Eta:            0.5,
		MoveLimit:      0.2,
		Tol:            1e-3,
	}
}

func (o *SIMPOptimizer) areas(st *model.Structure) []float64 {
	a := make([]float64, len(st.Springs))
	for i := range st.Springs {
		a[i] = st.Springs[i].Area
	}
	return a
}

func (o *SIMPOptimizer) setAreas(st *model.Structure, areas []float64) error {
	for i := range st.Springs {
		st.Springs[i].Area = areas[i]
	}
	return st.UpdateStiffnessFromAreas(o.EModulusPa)
}

func (o *SIMPOptimizer) resolveAMax(st *model.Structure) float64 {
	if o.AMax > 0 {
		return o.AMax
	}
	aMax := 0.0
	for i := range st.Springs {
		if st.Springs[i].Active && st.Springs[i].Area > aMax {
			aMax = st.Springs[i].Area
		}
	}
	if aMax <= 0 {
		aMax = 1
	}
	return aMax
}

// applyPenalty sets k_e = (A_e/Amax)^p * E*Amax/L. With p <= 1 the
// penalty degenerates to the plain k = E*A/L sizing already applied by
// setAreas.
func (o *SIMPOptimizer) applyPenalty(st *model.Structure, areas []float64, aMax float64) {
	if o.Penalty <= 1 {
		return
	}
	for i := range st.Springs {
		s := &st.Springs[i]
		if !s.Active {
			continue
		}
		l := s.Length(&st.Nodes[s.I], &st.Nodes[s.J])
		if l <= 0 {
			continue
		}
		rho := areas[i] / aMax
		s.K = math.Pow(rho, o.Penalty) * o.EModulusPa * aMax / l
	}
}

// sensitivities computes dCompliance/dArea_e per spring:
// -p*rho^(p-1)*(E/L)*delta^2, or the unpenalized form for p <= 1.
func (o *SIMPOptimizer) sensitivities(st *model.Structure, u, areas []float64, aMax float64) []float64 {
	dc := make([]float64, len(st.Springs))
	for i := range st.Springs {
		s := &st.Springs[i]
		ni := &st.Nodes[s.I]
		nj := &st.Nodes[s.J]
		if !s.Active || !ni.Active || !nj.Active {
			continue
		}
		ex, ey, err := s.UnitDirection(ni, nj)
		if err != nil {
			continue
		}
		delta := ex*(u[nj.DofX()]-u[ni.DofX()]) + ey*(u[nj.DofY()]-u[ni.DofY()])
		l := s.Length(ni, nj)
		if o.Penalty > 1 {
			rho := areas[i] / aMax
			dc[i] = -o.Penalty * math.Pow(rho, o.Penalty-1) * (o.EModulusPa / l) * delta * delta
		} else {
			dc[i] = -(o.EModulusPa / l) * delta * delta
		}
	}
	return dc
}

// ocUpdate bisects the Lagrange multiplier until the updated areas meet
// the volume target, clipping each candidate to the move limit and to
// [AMin, AMax].
func (o *SIMPOptimizer) ocUpdate(st *model.Structure, areas, dc []float64, aMax float64) []float64 {
	move := o.MoveLimit * aMax
	lengths := make([]float64, len(st.Springs))
	vInitial := 0.0
	for i := range st.Springs {
		s := &st.Springs[i]
		if !s.Active {
			continue
		}
		lengths[i] = s.Length(&st.Nodes[s.I], &st.Nodes[s.J])
		vInitial += aMax * lengths[i]
	}
	vTarget := o.VolumeFraction * vInitial

	areasNew := append([]float64(nil), areas...)
	lamLo, lamHi := 1e-20, 1e20
	for step := 0; step < ocBisectionSteps; step++ {
		lamMid := 0.5 * (lamLo + lamHi)
		vNew := 0.0
		for i := range st.Springs {
			if !st.Springs[i].Active || lengths[i] <= 0 {
				continue
			}
			numerator := -dc[i]
			denominator := lamMid * lengths[i]
			be := 0.0
			if numerator > 0 && denominator > 0 {
				be = math.Sqrt(numerator / denominator)
			}
			candidate := areas[i] * math.Pow(be, o.Eta)
			lo := math.Max(o.AMin, areas[i]-move)
			hi := math.Min(aMax, areas[i]+move)
			areasNew[i] = math.Min(hi, math.Max(lo, candidate))
			vNew += areasNew[i] * lengths[i]
		}
		if vNew > vTarget {
			lamLo = lamMid
		} else {
			lamHi = lamMid
		}
		if math.Abs(lamHi-lamLo)/math.Max(lamMid, 1e-20) < ocBracketTol {
			break
		}
	}
	return areasNew
}

// Compliance returns u.K.u for the current assembly.
func Compliance(st *model.Structure, u []float64) (float64, error) {
	k, err := st.AssembleStiffness()
	if err != nil {
		return 0, err
	}
	n := k.SymmetricDim()
	c := 0.0
	for i := 0; i < n; i++ {
		if u[i] == 0 {
			continue
		}
		for j := 0; j < n; j++ {
			c += u[i] * k.At(i, j) * u[j]
		}
	}
	return c, nil
}

// Run iterates penalty / solve / sensitivity / OC update until the
// compliance and area changes settle below Tol, recording compliance,
// volume fraction, and max area change per iteration.
func (o *SIMPOptimizer) Run(ctx context.Context, st *model.Structure, maxIters int, onIter IterFunc) (*History, error) {
	if maxIters <= 0 {
		return nil, fmt.Errorf("%w: max iterations must be > 0", ErrInvalidInput)
	}
	if o.VolumeFraction <= 0 || o.VolumeFraction > 1 {
		return nil, fmt.Errorf("%w: volume fraction must be in (0, 1]", ErrInvalidInput)
	}
	if !topo.ValidTopology(st, nil) {
		return nil, fmt.Errorf("%w: no valid load path from every load to a support", ErrInvalidInput)
	}

	h := &History{}
	aMax := o.resolveAMax(st)

	if _, err := solveStructure(st); err != nil {
		h.StopReason = StopUnstable
		return h, nil
	}

	prevCompliance := math.Inf(1)
	singularCount := 0
	converged := 0
	moveLimit := o.MoveLimit
	defer func() { o.MoveLimit = moveLimit }()

	for iter := 0; iter < maxIters; iter++ {
		select {
		case <-ctx.Done():
			h.StopReason = StopCancelled
			return h, nil
		default:
		}

		areas := o.areas(st)
		backup := append([]float64(nil), areas...)

		o.applyPenalty(st, areas, aMax)
		u, err := solveStructure(st)
		if err != nil {
			// Revert and retry with a smaller move limit.
			if err := o.setAreas(st, backup); err != nil {
				h.StopReason = StopBecameSingular
				return h, nil
			}
			singularCount++
			if singularCount > 3 {
				h.StopReason = StopBecameSingular
				return h, nil
			}
			o.MoveLimit = math.Max(o.MoveLimit*0.5, moveLimitFloor)
			continue
		}
		singularCount = 0

		compliance, err := Compliance(st, u)
		if err != nil {
			h.StopReason = StopBecameSingular
			return h, nil
		}
		volInitial := 0.0
		for i := range st.Springs {
			s := &st.Springs[i]
			if s.Active {
				volInitial += aMax * s.Length(&st.Nodes[s.I], &st.Nodes[s.J])
			}
		}
		volFraction := st.TotalVolume() / math.Max(volInitial, 1e-20)

		dc := o.sensitivities(st, u, areas, aMax)
		areasNew := o.ocUpdate(st, areas, dc, aMax)

		areaChange := 0.0
		for i := range areas {
			if d := math.Abs(areasNew[i] - areas[i]); d > areaChange {
				areaChange = d
			}
		}
		areaChange /= aMax

		h.Compliance = append(h.Compliance, compliance)
		h.VolumeFraction = append(h.VolumeFraction, volFraction)
		h.AreaChange = append(h.AreaChange, areaChange)

		if err := o.setAreas(st, areasNew); err != nil {
			h.StopReason = StopBecameSingular
			return h, nil
		}
		if onIter != nil {
			onIter(st, iter, compliance, 0)
		}

		relChange := math.Abs(compliance-prevCompliance) / math.Max(math.Abs(prevCompliance), 1e-20)
		if iter > 5 && relChange < o.Tol && areaChange < o.Tol {
			converged++
			if converged >= simpConvergeStreak {
				h.StopReason = StopConverged
				return h, nil
			}
		} else {
			converged = 0
		}
		prevCompliance = compliance
	}
	h.StopReason = StopMaxIters
	return h, nil
}

// PostProcess removes springs whose area ended below
// thresholdFraction*Amax, verifies the structure stays solvable (batch
// first, then one by one when the batch breaks it), and purges nodes the
// removal orphaned. Returns the number of springs removed.
func (o *SIMPOptimizer) PostProcess(st *model.Structure, thresholdFraction float64) int {
	aMax := o.resolveAMax(st)
	threshold := thresholdFraction * aMax

	var thin []int
	for i := range st.Springs {
		if st.Springs[i].Active && st.Springs[i].Area < threshold {
			thin = append(thin, i)
		}
	}
	if len(thin) == 0 {
		return 0
	}

	springWasActive := make([]bool, len(st.Springs))
	nodeWasActive := make([]bool, len(st.Nodes))
	for i := range st.Springs {
		springWasActive[i] = st.Springs[i].Active
	}
	for i := range st.Nodes {
		nodeWasActive[i] = st.Nodes[i].Active
	}
	restore := func() {
		for i := range st.Springs {
			st.Springs[i].Active = springWasActive[i]
		}
		for i := range st.Nodes {
			st.Nodes[i].Active = nodeWasActive[i]
		}
	}

	for _, i := range thin {
		st.Springs[i].Active = false
	}
	topo.RemoveUselessNodes(st)
	if _, err := solveStructure(st); err == nil {
		return len(thin)
	}

	restore()
	removed := 0
	for _, i := range thin {
		st.Springs[i].Active = false
		if _, err := solveStructure(st); err != nil {
			st.Springs[i].Active = true
		} else {
			removed++
		}
	}
	topo.RemoveUselessNodes(st)
	if _, err := solveStructure(st); err != nil {
		restore()
		return 0
	}
	return removed
}
