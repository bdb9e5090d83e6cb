// Package optimize implements the topology and sizing optimizers.
//
// Three variants share one iteration state machine and differ only in how
// node importance is scored:
//
//   - [EnergyOptimizer]: static strain-energy scores with a removal ramp
//   - [DynamicOptimizer]: static scores blended with eigenfrequency
//     sensitivity, driven toward a target excitation frequency
//   - [SIMPOptimizer]: continuous cross-section sizing via Optimality
//     Criteria instead of node removal
//
// [RebuildSupport] is a post-hoc local search that reactivates removed
// nodes to relieve overstressed members.
//
// Iteration-level failures degrade to a stop reason recorded on the
// returned [History], never to an error: a run always yields a usable
// history plus whatever state the structure reached. Errors are reserved
// for invalid input configurations detected before the first iteration.
package optimize
