package model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Gravity is the downward acceleration applied for self-weight loads.
const Gravity = 9.81

// Structure owns the node and spring arrays plus derived material state.
// The arrays are never shared; Clone produces an independent deep copy.
type Structure struct {
	Nodes   []Node
	Springs []Spring

	// Density and BeamArea are zero until a material is applied.
	Density  float64
	BeamArea float64

	// initialMass is cached the first time stiffnesses are computed from
	// material properties and is the denominator for mass fractions.
	initialMass float64
}

// New wraps node and spring arrays into a Structure. Node ids must equal
// their array index and spring endpoints must be valid indices.
func New(nodes []Node, springs []Spring) (*Structure, error) {
	for i := range nodes {
		if nodes[i].ID != i {
			return nil, fmt.Errorf("model: node id %d at index %d", nodes[i].ID, i)
		}
	}
	for i := range springs {
		s := &springs[i]
		if s.I < 0 || s.I >= len(nodes) || s.J < 0 || s.J >= len(nodes) {
			return nil, fmt.Errorf("model: spring %d references node out of range", i)
		}
	}
	return &Structure{Nodes: nodes, Springs: springs}, nil
}

// NDof returns the total DOF count, including inactive nodes.
func (st *Structure) NDof() int { return 2 * len(st.Nodes) }

// Clone returns a deep copy sharing no state with the receiver.
func (st *Structure) Clone() *Structure {
	c := &Structure{
		Nodes:       make([]Node, len(st.Nodes)),
		Springs:     make([]Spring, len(st.Springs)),
		Density:     st.Density,
		BeamArea:    st.BeamArea,
		initialMass: st.initialMass,
	}
	copy(c.Nodes, st.Nodes)
	copy(c.Springs, st.Springs)
	return c
}

// springActive reports the mechanical-activity conjunction: the spring's
// own flag plus both endpoints.
func (st *Structure) springActive(s *Spring) bool {
	return s.Active && st.Nodes[s.I].Active && st.Nodes[s.J].Active
}

// AssembleStiffness builds the global stiffness matrix by scatter-adding
// each active spring's element matrix into its DOF slots.
func (st *Structure) AssembleStiffness() (*mat.SymDense, error) {
	n := st.NDof()
	data := make([]float64, n*n)
	for i := range st.Springs {
		s := &st.Springs[i]
		if !st.springActive(s) {
			continue
		}
		ni := &st.Nodes[s.I]
		nj := &st.Nodes[s.J]
		ke, err := s.ElementStiffness(ni, nj)
		if err != nil {
			return nil, fmt.Errorf("model: spring %d: %w", i, err)
		}
		dofs := [4]int{ni.DofX(), ni.DofY(), nj.DofX(), nj.DofY()}
		for a := 0; a < 4; a++ {
			for b := 0; b < 4; b++ {
				data[dofs[a]*n+dofs[b]] += ke[a][b]
			}
		}
	}
	return mat.NewSymDense(n, data), nil
}

// AssembleLoad builds the global load vector from nodal point loads plus,
// when material properties are set, spring self-weight split between the
// two endpoints.
func (st *Structure) AssembleLoad() []float64 {
	f := make([]float64, st.NDof())
	for i := range st.Nodes {
		n := &st.Nodes[i]
		if !n.Active {
			continue
		}
		f[n.DofX()] += n.Fx
		f[n.DofY()] += n.Fy
	}
	if st.Density <= 0 {
		return f
	}
	for i := range st.Springs {
		s := &st.Springs[i]
		if !st.springActive(s) {
			continue
		}
		ni := &st.Nodes[s.I]
		nj := &st.Nodes[s.J]
		w := 0.5 * s.Mass(ni, nj, st.Density, st.BeamArea) * Gravity
		f[ni.DofY()] -= w
		f[nj.DofY()] -= w
	}
	return f
}

// FixedDofs lists every constrained DOF index. Inactive nodes contribute
// both DOFs; active nodes only those marked fixed.
func (st *Structure) FixedDofs() []int {
	fixed := make([]int, 0, st.NDof())
	for i := range st.Nodes {
		n := &st.Nodes[i]
		if !n.Active {
			fixed = append(fixed, n.DofX(), n.DofY())
			continue
		}
		fixed = append(fixed, n.FixedDofs()...)
	}
	return fixed
}

// UpdateStiffness computes every active spring's k from material
// properties and caches the initial mass on first call.
func (st *Structure) UpdateStiffness(emodPa, beamAreaM2, density float64) error {
	st.BeamArea = beamAreaM2
	st.Density = density
	for i := range st.Springs {
		s := &st.Springs[i]
		if !s.Active {
			continue
		}
		s.Area = beamAreaM2
		k, err := s.StiffnessFromMaterial(&st.Nodes[s.I], &st.Nodes[s.J], emodPa, beamAreaM2)
		if err != nil {
			return fmt.Errorf("model: spring %d: %w", i, err)
		}
		s.K = k
	}
	if st.initialMass <= 0 {
		st.initialMass = st.TotalMass()
	}
	return nil
}

// UpdateStiffnessFromAreas recomputes k = E*A_e/L per spring from each
// spring's own area. Used by the sizing optimizer.
func (st *Structure) UpdateStiffnessFromAreas(emodPa float64) error {
	for i := range st.Springs {
		s := &st.Springs[i]
		if !s.Active {
			continue
		}
		k, err := s.StiffnessFromMaterial(&st.Nodes[s.I], &st.Nodes[s.J], emodPa, s.Area)
		if err != nil {
			return fmt.Errorf("model: spring %d: %w", i, err)
		}
		s.K = k
	}
	return nil
}

// TotalMass sums the mass of all mechanically active springs.
func (st *Structure) TotalMass() float64 {
	total := 0.0
	for i := range st.Springs {
		s := &st.Springs[i]
		if !st.springActive(s) {
			continue
		}
		total += s.Mass(&st.Nodes[s.I], &st.Nodes[s.J], st.Density, st.BeamArea)
	}
	return total
}

// TotalVolume sums area*length over mechanically active springs.
func (st *Structure) TotalVolume() float64 {
	total := 0.0
	for i := range st.Springs {
		s := &st.Springs[i]
		if !st.springActive(s) {
			continue
		}
		total += s.Area * s.Length(&st.Nodes[s.I], &st.Nodes[s.J])
	}
	return total
}

// MassFraction returns current mass over cached initial mass, falling
// back to active/total node count when no material has been applied.
func (st *Structure) MassFraction() float64 {
	if st.initialMass <= 0 {
		if len(st.Nodes) == 0 {
			return 0
		}
		return float64(st.ActiveNodeCount()) / float64(len(st.Nodes))
	}
	return st.TotalMass() / st.initialMass
}

// InitialMass exposes the cached denominator, zero when unset.
func (st *Structure) InitialMass() float64 { return st.initialMass }

func (st *Structure) ActiveNodeCount() int {
	count := 0
	for i := range st.Nodes {
		if st.Nodes[i].Active {
			count++
		}
	}
	return count
}

func (st *Structure) ActiveNodeIDs() []int {
	ids := make([]int, 0, len(st.Nodes))
	for i := range st.Nodes {
		if st.Nodes[i].Active {
			ids = append(ids, i)
		}
	}
	return ids
}

// NodeImportanceFromEnergy spreads half of each active spring's strain
// energy onto each endpoint. This is the static sensitivity signal.
func (st *Structure) NodeImportanceFromEnergy(u []float64) []float64 {
	imp := make([]float64, len(st.Nodes))
	for i := range st.Springs {
		s := &st.Springs[i]
		if !st.springActive(s) {
			continue
		}
		e := s.StrainEnergy(&st.Nodes[s.I], &st.Nodes[s.J], u)
		imp[s.I] += 0.5 * e
		imp[s.J] += 0.5 * e
	}
	return imp
}

// perSpringValues evaluates fn for every mechanically active spring,
// leaving zeros elsewhere.
func (st *Structure) perSpringValues(u []float64, fn func(s *Spring, ni, nj *Node) float64) []float64 {
	values := make([]float64, len(st.Springs))
	for i := range st.Springs {
		s := &st.Springs[i]
		if !st.springActive(s) {
			continue
		}
		values[i] = fn(s, &st.Nodes[s.I], &st.Nodes[s.J])
	}
	return values
}

func (st *Structure) SpringEnergies(u []float64) []float64 {
	return st.perSpringValues(u, func(s *Spring, ni, nj *Node) float64 {
		return s.StrainEnergy(ni, nj, u)
	})
}

func (st *Structure) SpringForces(u []float64) []float64 {
	return st.perSpringValues(u, func(s *Spring, ni, nj *Node) float64 {
		return s.AxialForce(ni, nj, u)
	})
}

func (st *Structure) SpringStresses(u []float64) []float64 {
	return st.perSpringValues(u, func(s *Spring, ni, nj *Node) float64 {
		return s.Stress(ni, nj, u)
	})
}

// MaxStress returns the largest active spring stress for displacement u.
func (st *Structure) MaxStress(u []float64) float64 {
	maxStress := 0.0
	for _, v := range st.SpringStresses(u) {
		if v > maxStress {
			maxStress = v
		}
	}
	return maxStress
}

// MostStressedSpringNodes returns the endpoint pair of the highest-stress
// active spring, or ok=false when no spring carries positive stress.
func (st *Structure) MostStressedSpringNodes(u []float64) (i, j int, ok bool) {
	stresses := st.SpringStresses(u)
	best := -1
	bestStress := 0.0
	for idx, v := range stresses {
		if v > bestStress {
			bestStress = v
			best = idx
		}
	}
	if best < 0 {
		return 0, 0, false
	}
	return st.Springs[best].I, st.Springs[best].J, true
}

// DeactivateNodes marks the given nodes inactive and deactivates every
// spring touching them.
func (st *Structure) DeactivateNodes(ids []int) {
	set := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
		st.Nodes[id].Active = false
	}
	for i := range st.Springs {
		s := &st.Springs[i]
		if _, hit := set[s.I]; hit {
			s.Active = false
			continue
		}
		if _, hit := set[s.J]; hit {
			s.Active = false
		}
	}
}

// ReactivateNodes marks the given nodes active again and re-activates
// springs whose endpoints are both active afterwards.
func (st *Structure) ReactivateNodes(ids []int) {
	for _, id := range ids {
		st.Nodes[id].Active = true
	}
	for i := range st.Springs {
		s := &st.Springs[i]
		if st.Nodes[s.I].Active && st.Nodes[s.J].Active {
			s.Active = true
		}
	}
}

// SupportIDs lists active nodes carrying any fixity.
func (st *Structure) SupportIDs() []int {
	ids := make([]int, 0, 4)
	for i := range st.Nodes {
		if st.Nodes[i].Active && st.Nodes[i].Supported() {
			ids = append(ids, i)
		}
	}
	return ids
}

// LoadIDs lists active nodes carrying a nonzero point load.
func (st *Structure) LoadIDs() []int {
	ids := make([]int, 0, 4)
	for i := range st.Nodes {
		if st.Nodes[i].Active && st.Nodes[i].Loaded() {
			ids = append(ids, i)
		}
	}
	return ids
}
