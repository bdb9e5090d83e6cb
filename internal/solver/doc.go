// Package solver wraps the linear and generalized eigenvalue solves on
// the free-DOF submatrix of a structure's stiffness system.
//
// Topology optimization routinely produces near-singular, about to
// disconnect structures, so [Solve] double-checks every solution against
// the reduced residual instead of trusting a single factorization.
package solver
