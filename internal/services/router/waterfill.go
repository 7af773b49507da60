package router

import (
	"sort"
)

const (
	waterfillMaxIter = 5000
	levelSearchIters = 60

	// dustMinPct drops allocations below this fraction of the total during
	// normalization, folding them into the largest allocation.
	dustMinPct = 0.001
)

// SplitOutcome is an allocation vector over the candidate curves. Inputs is
// aligned with the curves slice and sums to the requested total within
// tolerance (after normalization).
type SplitOutcome struct {
	Inputs         []float64
	Iterations     int
	BudgetExceeded bool
}

// TotalOutput evaluates the allocation against the curves.
func (o *SplitOutcome) TotalOutput(curves []*ResponseCurve) float64 {
	total := 0.0
	for i, x := range o.Inputs {
		if x > 0 {
			total += curves[i].OutputAt(x)
		}
	}
	return total
}

// inputForLevel returns the allocation at which the curve's marginal rate
// drops to the target level, by monotone binary search from x0, capped at
// capLimit. When even the cap cannot bring the marginal down to the level,
// the cap binds and is returned.
func (c *ResponseCurve) inputForLevel(x0, level, capLimit float64) float64 {
	if capLimit > c.Cap {
		capLimit = c.Cap
	}
	if capLimit <= x0 {
		return x0
	}
	if c.MarginalAt(capLimit) > level {
		return capLimit
	}
	lo, hi := x0, capLimit
	for i := 0; i < levelSearchIters; i++ {
		mid := (lo + hi) / 2
		if c.MarginalAt(mid) > level {
			lo = mid
		} else {
			hi = mid
		}
	}
	return hi
}

// WaterFill equilibrates marginal rates across the curves under per-path caps
// and a total-input equality constraint. Because each curve is concave, the
// optimum puts every interior path at a common marginal level; saturated
// paths sit at their cap below it.
func WaterFill(curves []*ResponseCurve, total, inputTol float64) *SplitOutcome {
	out := &SplitOutcome{Inputs: make([]float64, len(curves))}
	if len(curves) == 0 || total <= 0 {
		return out
	}

	tol := inputTol
	if t := total * 1e-12; t > tol {
		tol = t
	}
	if tol < 1e-9 {
		tol = 1e-9
	}

	// Rank by initial marginal, descending; zero-cap and zero-marginal paths
	// never participate.
	type entry struct {
		idx int
		m0  float64
	}
	sorted := make([]entry, 0, len(curves))
	for i, c := range curves {
		if c.Cap > 0 && c.InitialMarginal() > 0 {
			sorted = append(sorted, entry{idx: i, m0: c.InitialMarginal()})
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].m0 != sorted[j].m0 {
			return sorted[i].m0 > sorted[j].m0
		}
		return sorted[i].idx < sorted[j].idx
	})
	if len(sorted) == 0 {
		return out
	}

	x := out.Inputs
	remaining := total
	active := make([]int, 0, len(sorted))
	ptr := 0

	sumDeltaAt := func(level float64) float64 {
		s := 0.0
		for _, i := range active {
			s += curves[i].inputForLevel(x[i], level, curves[i].Cap) - x[i]
		}
		return s
	}

	applyLevel := func(level, budget float64) float64 {
		// Apply the per-path moves implied by the level, scaled down when
		// they exceed the remaining budget.
		deltas := make([]float64, len(active))
		s := 0.0
		for k, i := range active {
			deltas[k] = curves[i].inputForLevel(x[i], level, curves[i].Cap) - x[i]
			s += deltas[k]
		}
		if s <= 0 {
			return 0
		}
		scale := 1.0
		if s > budget {
			scale = budget / s
		}
		applied := 0.0
		for k, i := range active {
			d := deltas[k] * scale
			x[i] += d
			applied += d
		}
		return applied
	}

	sweep := func() {
		keep := active[:0]
		for _, i := range active {
			if x[i] >= curves[i].Cap-tol {
				continue // saturated
			}
			if curves[i].MarginalAt(x[i]) <= 0 {
				continue
			}
			keep = append(keep, i)
		}
		active = keep
	}

	iter := 0
	for ; iter < waterfillMaxIter; iter++ {
		if remaining <= tol {
			break
		}
		if len(active) == 0 {
			if ptr >= len(sorted) {
				break // capacity shortfall: every path saturated
			}
			active = append(active, sorted[ptr].idx)
			ptr++
		}

		targetLevel := 0.0
		if ptr < len(sorted) {
			targetLevel = sorted[ptr].m0
		}

		currentLevel := 0.0
		for _, i := range active {
			if m := curves[i].MarginalAt(x[i]); m > currentLevel {
				currentLevel = m
			}
		}
		if currentLevel <= targetLevel && ptr < len(sorted) {
			// The active set already sits at or below the next path's entry
			// level; bring that path in.
			active = append(active, sorted[ptr].idx)
			ptr++
			continue
		}

		sumDelta := sumDeltaAt(targetLevel)
		if sumDelta <= remaining+tol {
			remaining -= applyLevel(targetLevel, remaining)
			sweep()
			if remaining > tol && ptr < len(sorted) {
				active = append(active, sorted[ptr].idx)
				ptr++
			}
		} else {
			// The target over-allocates: find the lowest level in
			// [targetLevel, currentLevel] still inside the budget.
			lo, hi := targetLevel, currentLevel
			for j := 0; j < levelSearchIters; j++ {
				mid := (lo + hi) / 2
				if sumDeltaAt(mid) > remaining {
					lo = mid
				} else {
					hi = mid
				}
			}
			remaining -= applyLevel(hi, remaining)
			sweep()
		}
	}

	out.Iterations = iter
	out.BudgetExceeded = iter >= waterfillMaxIter
	normalizeAllocations(x, total, tol)
	return out
}

// normalizeAllocations folds dust into the largest allocation and rescales so
// the vector sums exactly to total. Skipped when the sum already matches and
// no dust exists.
func normalizeAllocations(x []float64, total, tol float64) {
	sum := 0.0
	largest := -1
	for i, v := range x {
		sum += v
		if largest < 0 || v > x[largest] {
			largest = i
		}
	}
	if sum <= 0 || largest < 0 {
		return
	}

	dusted := false
	for i, v := range x {
		if i == largest || v <= 0 {
			continue
		}
		if v < dustMinPct*total {
			x[largest] += v
			x[i] = 0
			dusted = true
		}
	}

	if !dusted && sum >= total-tol && sum <= total+tol {
		return
	}

	sum = 0
	for _, v := range x {
		sum += v
	}
	if sum <= 0 {
		return
	}
	scale := total / sum
	for i := range x {
		x[i] *= scale
	}
}
