package optimize

import (
	"context"
	"errors"
	"fmt"

	"github.com/san-kum/trussopt/internal/model"
	"github.com/san-kum/trussopt/internal/solver"
	"github.com/san-kum/trussopt/internal/topo"
)

// ErrInvalidInput marks a configuration rejected before the first
// iteration: bad parameter ranges or a structure with no valid load path.
var ErrInvalidInput = errors.New("optimize: invalid input")

// strategy is the per-variant scoring hook plugged into the shared
// iteration driver. score may record variant-specific history series; it
// returns the per-node importance and the headline metric for OnIter.
// u is nil when the static solve is unavailable (force mode only).
type strategy interface {
	fraction(iter int) float64
	score(st *model.Structure, u []float64, h *History) (scores []float64, metric float64, err error)
}

func validateRunOptions(opts Options) error {
	if opts.TargetMassFraction <= 0 || opts.TargetMassFraction > 1 {
		return fmt.Errorf("%w: target mass fraction must be in (0, 1]", ErrInvalidInput)
	}
	if opts.MaxIters <= 0 {
		return fmt.Errorf("%w: max iterations must be > 0", ErrInvalidInput)
	}
	return nil
}

// run executes the shared topology-optimization state machine. Errors are
// reserved for invalid input; everything else ends in a stop reason.
func run(ctx context.Context, st *model.Structure, strat strategy, opts Options) (*History, error) {
	if err := validateRunOptions(opts); err != nil {
		return nil, err
	}
	if !topo.ValidTopology(st, nil) {
		return nil, fmt.Errorf("%w: no valid load path from every load to a support", ErrInvalidInput)
	}

	d := newDriver(st)
	h := &History{}

	if opts.Force {
		runForced(ctx, st, strat, d, h, opts)
		return h, nil
	}

	// Pre-check: the starting structure must be solvable, and within the
	// stress ceiling when one is configured.
	u, err := solveStructure(st)
	if opts.MaxStress > 0 {
		if err != nil {
			h.StopReason = StopUnstable
			return h, nil
		}
		if st.MaxStress(u) > opts.MaxStress {
			h.StopReason = StopInitialOverstress
			return h, nil
		}
	}
	needsSolve := err != nil

	for iter := 0; iter < opts.MaxIters; iter++ {
		select {
		case <-ctx.Done():
			h.StopReason = StopCancelled
			return h, nil
		default:
		}

		// 1. Free cleanup: islands and dead-ends need no solve to spot.
		cleaned := topo.RemoveUselessNodes(st)
		if len(cleaned) > 0 {
			needsSolve = true
		}

		// 2. Target check.
		h.MassFraction = append(h.MassFraction, st.MassFraction())
		if st.MassFraction() <= opts.TargetMassFraction {
			h.StopReason = StopTargetReached
			return h, nil
		}

		// 3. Static solve, with one reactivation retry when the cleanup
		// itself made the system singular.
		if needsSolve {
			u, err = solveStructure(st)
			if err != nil && len(cleaned) > 0 {
				st.ReactivateNodes(cleaned)
				u, err = solveStructure(st)
			}
			if err != nil {
				h.StopReason = StopUnstable
				return h, nil
			}
			needsSolve = false
		}

		// 4. Stress ceiling with local redistribution.
		if exceedsStress(st, u, opts.MaxStress) {
			if !d.tryStressRedistribution(st, u) {
				h.StopReason = StopYieldLimit
				return h, nil
			}
			u, err = solveStructure(st)
			if err != nil {
				h.StopReason = StopUnstableAfterRedis
				return h, nil
			}
		}
		h.MaxDisplacement = append(h.MaxDisplacement, solver.MaxAbsDisplacement(u))

		// 5. Variant scores.
		scores, metric, err := strat.score(st, u, h)
		if err != nil {
			h.StopReason = StopEigenFailed
			return h, nil
		}

		// 6. Connectivity-preserving candidate batch.
		candidates := d.selectCandidates(st, scores, strat.fraction(iter))
		if len(candidates) == 0 {
			h.StopReason = StopNoFurther
			return h, nil
		}

		// 7. Whole batch at once.
		st.DeactivateNodes(candidates)
		uCheck, err := solveStructure(st)
		if err == nil {
			if exceedsStress(st, uCheck, opts.MaxStress) {
				st.ReactivateNodes(candidates)
				h.StopReason = StopYieldLimit
				return h, nil
			}
			u = uCheck
			commit(h, st, iter, metric, candidates, opts.OnIter)
			continue
		}

		// 8. Batch failed: retry per mirror-pair or single, blacklist
		// groups that cannot be removed.
		st.ReactivateNodes(candidates)
		var removed []int
		for _, group := range d.mirrorGroups(candidates) {
			st.DeactivateNodes(group)
			uTest, err := solveStructure(st)
			if err != nil || exceedsStress(st, uTest, opts.MaxStress) {
				st.ReactivateNodes(group)
				d.blacklistWithMirror(group)
				continue
			}
			u = uTest
			removed = append(removed, group...)
		}
		if len(removed) == 0 {
			h.StopReason = StopNoFurther
			return h, nil
		}
		commit(h, st, iter, metric, removed, opts.OnIter)
	}

	h.StopReason = StopMaxIters
	return h, nil
}

func commit(h *History, st *model.Structure, iter int, metric float64, removed []int, onIter IterFunc) {
	h.RemovedPerIter = append(h.RemovedPerIter, len(removed))
	h.RemovedNodesPerIter = append(h.RemovedNodesPerIter, append([]int(nil), removed...))
	if onIter != nil {
		onIter(st, iter, metric, len(removed))
	}
}

// runForced removes the best-scoring batch every iteration with no
// validity or stress checks. The result may be singular.
func runForced(ctx context.Context, st *model.Structure, strat strategy, d *driver, h *History, opts Options) {
	for iter := 0; iter < opts.MaxIters; iter++ {
		select {
		case <-ctx.Done():
			h.StopReason = StopCancelled
			return
		default:
		}

		topo.RemoveUselessNodes(st)
		h.MassFraction = append(h.MassFraction, st.MassFraction())
		if st.MassFraction() <= opts.TargetMassFraction {
			h.StopReason = StopTargetReached
			return
		}

		u, err := solveStructure(st)
		if err != nil {
			u = nil
		} else {
			h.MaxDisplacement = append(h.MaxDisplacement, solver.MaxAbsDisplacement(u))
		}
		scores, metric, err := strat.score(st, u, h)
		if err != nil {
			h.StopReason = StopEigenFailed
			return
		}
		candidates := d.selectCandidates(st, scores, strat.fraction(iter))
		if len(candidates) == 0 {
			h.StopReason = StopNoFurther
			return
		}
		st.DeactivateNodes(candidates)
		commit(h, st, iter, metric, candidates, opts.OnIter)
	}
	h.StopReason = StopMaxIters
}
