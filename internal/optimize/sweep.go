package optimize

import (
	"context"
	"math"
	"sync"

	"github.com/san-kum/trussopt/internal/model"
)

// SweepPoint records the outcome of one hyperparameter combination.
type SweepPoint struct {
	RemoveFraction  float64
	StartFactor     float64
	MassFraction    float64
	MaxDisplacement float64
	StopReason      StopReason
}

// SweepResult holds all evaluated points plus the winner. BestStructure
// is the optimized clone belonging to Best.
type SweepResult struct {
	Points        []SweepPoint
	Best          *SweepPoint
	BestStructure *model.Structure
}

// SweepEnergy runs the energy optimizer over every combination of the
// given removal fractions and start factors, each on its own clone of
// st. Runs execute concurrently; st itself is never modified. A point
// wins over another by reaching the target where the other did not, and
// by lower final displacement otherwise.
func SweepEnergy(ctx context.Context, st *model.Structure, opts Options, removeFractions, startFactors []float64, rampIters int) (*SweepResult, error) {
	type combo struct {
		remove, start float64
	}
	var combos []combo
	for _, rf := range removeFractions {
		for _, sf := range startFactors {
			combos = append(combos, combo{rf, sf})
		}
	}
	if len(combos) == 0 {
		return nil, ErrInvalidInput
	}

	// Per-run progress callbacks would interleave across goroutines.
	opts.OnIter = nil

	points := make([]SweepPoint, len(combos))
	structures := make([]*model.Structure, len(combos))
	errs := make([]error, len(combos))

	var wg sync.WaitGroup
	for i, c := range combos {
		wg.Add(1)
		go func(idx int, c combo) {
			defer wg.Done()

			clone := st.Clone()
			opt, err := NewEnergyOptimizer(c.remove, c.start, rampIters)
			if err != nil {
				errs[idx] = err
				return
			}
			history, err := opt.Run(ctx, clone, opts)
			if err != nil {
				errs[idx] = err
				return
			}

			p := SweepPoint{
				RemoveFraction: c.remove,
				StartFactor:    c.start,
				StopReason:     history.StopReason,
				MassFraction:   clone.MassFraction(),
			}
			p.MaxDisplacement = math.Inf(1)
			if n := len(history.MaxDisplacement); n > 0 {
				p.MaxDisplacement = history.MaxDisplacement[n-1]
			}
			points[idx] = p
			structures[idx] = clone
		}(i, c)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	result := &SweepResult{Points: points}
	for i := range points {
		if result.Best == nil || betterPoint(&points[i], result.Best) {
			result.Best = &points[i]
			result.BestStructure = structures[i]
		}
	}
	return result, nil
}

func betterPoint(a, b *SweepPoint) bool {
	aHit := a.StopReason == StopTargetReached
	bHit := b.StopReason == StopTargetReached
	if aHit != bHit {
		return aHit
	}
	if aHit {
		return a.MaxDisplacement < b.MaxDisplacement
	}
	if a.MassFraction != b.MassFraction {
		return a.MassFraction < b.MassFraction
	}
	return a.MaxDisplacement < b.MaxDisplacement
}
