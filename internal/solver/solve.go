package solver

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrSingular means the stiffness system has no trustworthy solution at
// the current topology.
var ErrSingular = errors.New("solver: stiffness matrix is singular")

const (
	// lsqResidualTol is the absolute residual bound for accepting a
	// least-squares fallback solution.
	lsqResidualTol = 1e-6
	// relResidualTol is the relative residual bound applied to every
	// solution before it is returned.
	relResidualTol = 1e-4
)

// Solve computes the displacement vector u for K*u = F with the given
// fixed DOFs pinned to zero. It reduces to the free-DOF subsystem, solves
// it directly, falls back to least squares on a singular factorization,
// and verifies the reduced residual either way.
func Solve(k *mat.SymDense, f []float64, fixedDofs []int) ([]float64, error) {
	n := k.SymmetricDim()
	u := make([]float64, n)
	free := freeDofs(n, fixedDofs)
	if len(free) == 0 {
		return u, nil
	}

	nf := len(free)
	kf := mat.NewDense(nf, nf, nil)
	ff := mat.NewVecDense(nf, nil)
	for a, da := range free {
		ff.SetVec(a, f[da])
		for b, db := range free {
			kf.Set(a, b, k.At(da, db))
		}
	}

	var uf mat.VecDense
	var lu mat.LU
	lu.Factorize(kf)
	err := lu.SolveVecTo(&uf, false, ff)
	if err != nil || !allFinite(uf.RawVector().Data) {
		if err := solveLeastSquares(&uf, kf, ff); err != nil {
			return nil, err
		}
	}

	// Re-verify: a near-singular system can be silently mis-solved.
	res := residualNorm(kf, &uf, ff)
	fNorm := mat.Norm(ff, 2)
	if fNorm > 0 && res/fNorm > relResidualTol {
		return nil, ErrSingular
	}

	for a, da := range free {
		u[da] = uf.AtVec(a)
	}
	return u, nil
}

// solveLeastSquares retries a failed direct solve with an SVD-based
// least-squares solution, accepted only when the absolute residual is
// small enough to count as an exact solution.
func solveLeastSquares(uf *mat.VecDense, kf *mat.Dense, ff *mat.VecDense) error {
	var svd mat.SVD
	if !svd.Factorize(kf, mat.SVDThin) {
		return ErrSingular
	}
	rank := svd.Rank(1e-12)
	if rank == 0 {
		return ErrSingular
	}
	svd.SolveVecTo(uf, ff, rank)
	if !allFinite(uf.RawVector().Data) {
		return ErrSingular
	}
	if residualNorm(kf, uf, ff) > lsqResidualTol {
		return ErrSingular
	}
	return nil
}

func residualNorm(kf *mat.Dense, uf, ff *mat.VecDense) float64 {
	var r mat.VecDense
	r.MulVec(kf, uf)
	r.SubVec(&r, ff)
	return mat.Norm(&r, 2)
}

func freeDofs(n int, fixed []int) []int {
	isFixed := make([]bool, n)
	for _, d := range fixed {
		if d >= 0 && d < n {
			isFixed[d] = true
		}
	}
	free := make([]int, 0, n)
	for d := 0; d < n; d++ {
		if !isFixed[d] {
			free = append(free, d)
		}
	}
	return free
}

func allFinite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// MaxAbsDisplacement is a convenience for history recording.
func MaxAbsDisplacement(u []float64) float64 {
	maxAbs := 0.0
	for _, x := range u {
		if a := math.Abs(x); a > maxAbs {
			maxAbs = a
		}
	}
	return maxAbs
}
