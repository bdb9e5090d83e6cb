package solver

import (
	"errors"
	"log"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrEigenFailed means the symmetric eigendecomposition did not converge.
var ErrEigenFailed = errors.New("solver: eigendecomposition failed")

// modeOversample controls how many extra modes are computed before the
// mechanism-mode filter runs.
const modeOversample = 8

// SolveEigen solves the generalized symmetric problem (K - w^2*M)u = 0
// for the lowest nModes structural modes. M is the lumped mass diagonal.
//
// The system is reduced to free DOFs before solving; imposing fixed DOFs
// by row/column zeroing instead would inject spurious unit eigenvalues.
// The free-block stiffness is regularized with eps*I to stay positive
// definite when mechanisms exist, and the low-eigenvalue artifact modes
// that regularization manufactures are filtered back out.
//
// Eigenvectors are returned scattered to full DOF size with zeros at
// fixed DOFs, one column per mode.
func SolveEigen(k *mat.SymDense, massDiag []float64, fixedDofs []int, nModes int) ([]float64, *mat.Dense, error) {
	n := k.SymmetricDim()
	free := freeDofs(n, fixedDofs)
	if len(free) == 0 {
		return make([]float64, nModes), mat.NewDense(n, max(nModes, 1), nil), nil
	}
	nf := len(free)
	nWant := min(nModes, nf)

	// Reduced, regularized stiffness block.
	maxAbs := 1.0
	for _, da := range free {
		for _, db := range free {
			if v := math.Abs(k.At(da, db)); v > maxAbs {
				maxAbs = v
			}
		}
	}
	eps := maxAbs * 1e-8

	// Mass-normalized transform: with D = diag(m), solving
	// D^-1/2 * K * D^-1/2 * y = lambda*y is the generalized problem with
	// u = D^-1/2 * y. Lumped masses on free DOFs are strictly positive.
	minMass := math.Inf(1)
	invSqrt := make([]float64, nf)
	for a, da := range free {
		m := massDiag[da]
		if m <= 0 {
			m = 1
		}
		if m < minMass {
			minMass = m
		}
		invSqrt[a] = 1 / math.Sqrt(m)
	}
	b := mat.NewSymDense(nf, nil)
	for a, da := range free {
		for c := a; c < nf; c++ {
			kv := k.At(da, free[c])
			if a == c {
				kv += eps
			}
			b.SetSym(a, c, kv*invSqrt[a]*invSqrt[c])
		}
	}

	var eig mat.EigenSym
	if !eig.Factorize(b, true) {
		return nil, nil, ErrEigenFailed
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	nCompute := min(nWant*modeOversample, nf)
	raw := values[:nCompute]

	// Mechanism modes manufactured by the regularization cluster around
	// eps/m; a real structural mode sits far above that.
	threshold := (eps / minMass) * 10
	keep := make([]int, 0, nCompute)
	for idx, v := range raw {
		if v > threshold {
			keep = append(keep, idx)
		}
	}
	if len(keep) == 0 {
		log.Printf("solver: no structural modes above mechanism threshold %.2e, returning raw modes", threshold)
		for idx := range raw {
			keep = append(keep, idx)
		}
	}

	nTake := min(nWant, len(keep))
	eigenvalues := make([]float64, nWant)
	full := mat.NewDense(n, nWant, nil)
	for col := 0; col < nTake; col++ {
		src := keep[col]
		eigenvalues[col] = math.Max(raw[src], 0)
		for a, da := range free {
			full.Set(da, col, vectors.At(a, src)*invSqrt[a])
		}
	}
	return eigenvalues, full, nil
}

// FirstFrequency extracts (omega1 [rad/s], f1 [Hz]) from the eigenvalues.
func FirstFrequency(eigenvalues []float64) (omega1, f1 float64) {
	if len(eigenvalues) == 0 {
		return 0, 0
	}
	omega1 = math.Sqrt(math.Max(0, eigenvalues[0]))
	return omega1, omega1 / (2 * math.Pi)
}
