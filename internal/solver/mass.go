package solver

import "github.com/san-kum/trussopt/internal/model"

// AssembleMass builds the lumped mass diagonal (length 2N).
//
// With material properties set, each endpoint of an active spring carries
// half the spring's mass. Without a material, every active node gets the
// uniform nodeMass. Inactive nodes get zero; their DOFs are constrained
// separately in the eigenvalue solver.
func AssembleMass(st *model.Structure, nodeMass float64) []float64 {
	diag := make([]float64, st.NDof())

	if st.Density > 0 && st.BeamArea > 0 {
		nodal := make([]float64, len(st.Nodes))
		for i := range st.Springs {
			s := &st.Springs[i]
			ni := &st.Nodes[s.I]
			nj := &st.Nodes[s.J]
			if !s.Active || !ni.Active || !nj.Active {
				continue
			}
			m := s.Mass(ni, nj, st.Density, st.BeamArea)
			nodal[s.I] += 0.5 * m
			nodal[s.J] += 0.5 * m
		}
		for i := range st.Nodes {
			n := &st.Nodes[i]
			if !n.Active {
				continue
			}
			m := nodal[i]
			if m <= 0 {
				m = nodeMass
			}
			diag[n.DofX()] = m
			diag[n.DofY()] = m
		}
		return diag
	}

	for i := range st.Nodes {
		n := &st.Nodes[i]
		if !n.Active {
			continue
		}
		diag[n.DofX()] = nodeMass
		diag[n.DofY()] = nodeMass
	}
	return diag
}
