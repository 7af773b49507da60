package router

import "math"

const (
	hillClimbMaxRounds = 200
	hillClimbMaxActive = 10
	hillClimbDeltaPct  = 0.001
)

// HillClimb refines an allocation by repeated single-move delta transfers:
// each round executes the one move with the largest positive gain in total
// output. Slower than the water-fill but mechanically independent, which
// makes it the differential cross-check.
func HillClimb(curves []*ResponseCurve, total float64) *SplitOutcome {
	out := &SplitOutcome{Inputs: make([]float64, len(curves))}
	if len(curves) == 0 || total <= 0 {
		return out
	}

	x := out.Inputs
	x[0] = total

	delta := math.Round(total * hillClimbDeltaPct)
	if delta < 1 {
		delta = 1
	}

	rounds := 0
	for ; rounds < hillClimbMaxRounds; rounds++ {
		// Keep the active set bounded: fold the smallest allocation into the
		// largest before continuing.
		if countActive(x) > hillClimbMaxActive {
			foldSmallest(x)
		}

		bestGain := 0.0
		bestFrom, bestTo, bestMove := -1, -1, 0.0

		for i := range curves {
			if x[i] <= 0 {
				continue
			}
			move := math.Min(delta, x[i])
			lose := curves[i].OutputAt(x[i]) - curves[i].OutputAt(x[i]-move)
			for j := range curves {
				if j == i {
					continue
				}
				if x[j]+move > curves[j].Cap {
					continue
				}
				gain := curves[j].OutputAt(x[j]+move) - curves[j].OutputAt(x[j]) - lose
				if gain > bestGain {
					bestGain = gain
					bestFrom, bestTo, bestMove = i, j, move
				}
			}
		}

		if bestFrom < 0 {
			break
		}
		x[bestFrom] -= bestMove
		x[bestTo] += bestMove
	}

	out.Iterations = rounds
	out.BudgetExceeded = rounds >= hillClimbMaxRounds
	return out
}

func countActive(x []float64) int {
	n := 0
	for _, v := range x {
		if v > 0 {
			n++
		}
	}
	return n
}

func foldSmallest(x []float64) {
	smallest, largest := -1, -1
	for i, v := range x {
		if v <= 0 {
			continue
		}
		if smallest < 0 || v < x[smallest] {
			smallest = i
		}
		if largest < 0 || v > x[largest] {
			largest = i
		}
	}
	if smallest >= 0 && largest >= 0 && smallest != largest {
		x[largest] += x[smallest]
		x[smallest] = 0
	}
}
