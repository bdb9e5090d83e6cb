package model

import (
	"errors"
	"math"
)

// ErrZeroLength is returned when a spring's endpoints coincide.
var ErrZeroLength = errors.New("model: spring length must be > 0")

// Spring is a 2-node axial element. K is derived from material properties
// (k = E*A/L), never a primary input once a material is set.
type Spring struct {
	I, J   int
	K      float64
	Area   float64
	Active bool
}

// Length returns the distance between the spring's endpoints.
func (s *Spring) Length(ni, nj *Node) float64 {
	return math.Hypot(nj.X-ni.X, nj.Y-ni.Y)
}

// UnitDirection returns the unit vector from node i to node j.
func (s *Spring) UnitDirection(ni, nj *Node) (ex, ey float64, err error) {
	dx := nj.X - ni.X
	dy := nj.Y - ni.Y
	l := math.Hypot(dx, dy)
	if l <= 0 {
		return 0, 0, ErrZeroLength
	}
	return dx / l, dy / l, nil
}

// ElementStiffness returns the 4x4 stiffness matrix for the spring,
// DOF order [i.x, i.y, j.x, j.y]. It is the outer product of the unit
// direction scaled by +-k, Kronecker-expanded to both DOF pairs.
func (s *Spring) ElementStiffness(ni, nj *Node) ([4][4]float64, error) {
	var ke [4][4]float64
	ex, ey, err := s.UnitDirection(ni, nj)
	if err != nil {
		return ke, err
	}
	o := [2][2]float64{
		{ex * ex, ex * ey},
		{ey * ex, ey * ey},
	}
	for a := 0; a < 2; a++ {
		for b := 0; b < 2; b++ {
			ke[a][b] = s.K * o[a][b]
			ke[a][b+2] = -s.K * o[a][b]
			ke[a+2][b] = -s.K * o[a][b]
			ke[a+2][b+2] = s.K * o[a][b]
		}
	}
	return ke, nil
}

// axialStretch projects the relative endpoint displacement onto the
// spring axis.
func (s *Spring) axialStretch(ni, nj *Node, u []float64) float64 {
	ex, ey, err := s.UnitDirection(ni, nj)
	if err != nil {
		return 0
	}
	dux := u[nj.DofX()] - u[ni.DofX()]
	duy := u[nj.DofY()] - u[ni.DofY()]
	return ex*dux + ey*duy
}

// StrainEnergy returns 0.5*k*(e.(uj-ui))^2 for displacement vector u.
func (s *Spring) StrainEnergy(ni, nj *Node, u []float64) float64 {
	d := s.axialStretch(ni, nj, u)
	return 0.5 * s.K * d * d
}

// AxialForce returns |k*(e.(uj-ui))|.
func (s *Spring) AxialForce(ni, nj *Node, u []float64) float64 {
	return math.Abs(s.K * s.axialStretch(ni, nj, u))
}

// Stress returns the axial force divided by the cross-sectional area, or
// zero when no area is set.
func (s *Spring) Stress(ni, nj *Node, u []float64) float64 {
	if s.Area <= 0 {
		return 0
	}
	return s.AxialForce(ni, nj, u) / s.Area
}

// Mass returns density*area*length. The spring's own area wins over the
// structure-wide fallback area.
func (s *Spring) Mass(ni, nj *Node, density, fallbackArea float64) float64 {
	area := s.Area
	if area <= 0 {
		area = fallbackArea
	}
	return density * area * s.Length(ni, nj)
}

// StiffnessFromMaterial returns k = E*A/L.
func (s *Spring) StiffnessFromMaterial(ni, nj *Node, emodPa, areaM2 float64) (float64, error) {
	l := s.Length(ni, nj)
	if l <= 0 {
		return 0, ErrZeroLength
	}
	return emodPa * areaM2 / l, nil
}
