package optimize

import "github.com/san-kum/trussopt/internal/model"

// StopReason classifies why a run ended. Values are stable so callers can
// branch on them (e.g. offer a retry/force action only for
// StopNoFurther, never for StopTargetReached).
type StopReason string

const (
	StopTargetReached      StopReason = "target mass fraction reached"
	StopUnstable           StopReason = "structure unstable"
	StopUnstableAfterRedis StopReason = "structure unstable after stress redistribution"
	StopYieldLimit         StopReason = "yield limit reached"
	StopInitialOverstress  StopReason = "initial stress exceeds yield limit"
	StopNoFurther          StopReason = "no further optimization possible"
	StopMaxIters           StopReason = "max iterations reached"
	StopEigenFailed        StopReason = "eigenvalue solve failed"
	StopConverged          StopReason = "converged"
	StopBecameSingular     StopReason = "structure became singular"
	StopCancelled          StopReason = "cancelled"
)

// Terminal reports whether the reason rules out a retry or force
// continuation on the same structure.
func (r StopReason) Terminal() bool {
	switch r {
	case StopTargetReached, StopConverged, StopUnstable, StopCancelled:
		return true
	}
	return false
}

// History is the append-only per-iteration record of a run. A later
// continuation run is concatenated onto the same instance with Append.
type History struct {
	MassFraction        []float64
	RemovedPerIter      []int
	RemovedNodesPerIter [][]int
	MaxDisplacement     []float64

	// Dynamic-variant series.
	Omega1       []float64
	F1           []float64
	FreqDistance []float64

	// SIMP-variant series.
	Compliance     []float64
	VolumeFraction []float64
	AreaChange     []float64

	StopReason StopReason
}

// TotalRemoved sums the committed removal counts.
func (h *History) TotalRemoved() int {
	total := 0
	for _, n := range h.RemovedPerIter {
		total += n
	}
	return total
}

// Iterations returns the number of recorded mass-fraction samples.
func (h *History) Iterations() int { return len(h.MassFraction) }

// Append concatenates a follow-up run's series onto h. The follow-up's
// stop reason replaces the old one.
func (h *History) Append(next *History) {
	h.MassFraction = append(h.MassFraction, next.MassFraction...)
	h.RemovedPerIter = append(h.RemovedPerIter, next.RemovedPerIter...)
	for _, ids := range next.RemovedNodesPerIter {
		h.RemovedNodesPerIter = append(h.RemovedNodesPerIter, append([]int(nil), ids...))
	}
	h.MaxDisplacement = append(h.MaxDisplacement, next.MaxDisplacement...)
	h.Omega1 = append(h.Omega1, next.Omega1...)
	h.F1 = append(h.F1, next.F1...)
	h.FreqDistance = append(h.FreqDistance, next.FreqDistance...)
	h.Compliance = append(h.Compliance, next.Compliance...)
	h.VolumeFraction = append(h.VolumeFraction, next.VolumeFraction...)
	h.AreaChange = append(h.AreaChange, next.AreaChange...)
	h.StopReason = next.StopReason
}

// IterFunc is invoked once per committed iteration. metric is the
// variant's headline number (max displacement, omega1, or compliance).
// It never fires for iterations that failed to commit anything.
type IterFunc func(st *model.Structure, iter int, metric float64, removed int)

// Options configures a topology optimization run.
type Options struct {
	TargetMassFraction float64
	MaxIters           int
	// MaxStress is the stress ceiling in Pa; zero or negative disables
	// the check.
	MaxStress float64
	// Force skips all safety checks and removes the best-scoring batch
	// every iteration regardless of validity. The final structure may be
	// singular; callers must treat the output as provisional.
	Force  bool
	OnIter IterFunc
}
