package router

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cpmmCurve builds a synthetic response curve for a constant-product pool of
// the given input-side depth and output rate, sampled at the canonical
// fractions of total.
func cpmmCurve(idx int, rate, depth, capLimit, total float64) *ResponseCurve {
	c := &ResponseCurve{PathIndex: idx}
	prevIn, prevOut := 0.0, 0.0
	for _, frac := range CurveFractions {
		in := total * frac
		out := rate * in * depth / (depth + in)
		var marginal float64
		if len(c.Points) == 0 {
			marginal = out / in
		} else {
			marginal = (out - prevOut) / (in - prevIn)
		}
		c.Points = append(c.Points, CurvePoint{Input: in, Output: out, Marginal: marginal})
		prevIn, prevOut = in, out
	}
	c.Cap = capLimit
	if last := c.Points[len(c.Points)-1].Input; last < c.Cap {
		c.Cap = last
	}
	return c
}

func allocationSum(x []float64) float64 {
	s := 0.0
	for _, v := range x {
		s += v
	}
	return s
}

func TestWaterFillBalance(t *testing.T) {
	total := 6e8
	curves := []*ResponseCurve{
		cpmmCurve(0, 1.0, 5e9, math.MaxFloat64, total),
		cpmmCurve(1, 1.0, 3e9, math.MaxFloat64, total),
		cpmmCurve(2, 1.0, 2e9, math.MaxFloat64, total),
	}

	res := WaterFill(curves, total, 0)
	require.Len(t, res.Inputs, 3)

	for _, x := range res.Inputs {
		assert.GreaterOrEqual(t, x, 0.0)
	}
	assert.InDelta(t, total, allocationSum(res.Inputs), math.Max(1, total*1e-9),
		"allocation must balance to the requested total")
	assert.False(t, res.BudgetExceeded)
}

func TestWaterFillEquilibratesMarginals(t *testing.T) {
	total := 6e8
	curves := []*ResponseCurve{
		cpmmCurve(0, 1.0, 5e9, math.MaxFloat64, total),
		cpmmCurve(1, 1.0, 3e9, math.MaxFloat64, total),
		cpmmCurve(2, 1.0, 2e9, math.MaxFloat64, total),
	}

	res := WaterFill(curves, total, 0)

	// Every strictly interior path must sit near a common marginal level.
	// The tolerance reflects the piecewise-constant marginal resolution.
	var interior []float64
	for i, x := range res.Inputs {
		if x > 0 && x < curves[i].Cap {
			interior = append(interior, curves[i].MarginalAt(x))
		}
	}
	require.GreaterOrEqual(t, len(interior), 2)
	for i := 1; i < len(interior); i++ {
		assert.InDelta(t, interior[0], interior[i], 0.05)
	}
}

func TestWaterFillBeatsBestSingle(t *testing.T) {
	// Three staggered pools; pushing the full size through any single pool
	// pays materially more impact than splitting.
	total := 6e8 // 30% of the smallest pool
	curves := []*ResponseCurve{
		cpmmCurve(0, 1.0, 5e9, math.MaxFloat64, total),
		cpmmCurve(1, 1.0, 3e9, math.MaxFloat64, total),
		cpmmCurve(2, 1.0, 2e9, math.MaxFloat64, total),
	}

	res := WaterFill(curves, total, 0)
	splitOut := res.TotalOutput(curves)

	bestSingle := 0.0
	for _, c := range curves {
		if out := c.OutputAt(total); out > bestSingle {
			bestSingle = out
		}
	}

	assert.Greater(t, splitOut, bestSingle*1.01,
		"splitting must beat the best single path by at least 1%")
}

func TestWaterFillCapSaturation(t *testing.T) {
	total := 1e9
	thinCap := 2e6 // above the dust threshold so the cap allocation survives
	curves := []*ResponseCurve{
		cpmmCurve(0, 1.1, 1e12, thinCap, total), // best rate but capped
		cpmmCurve(1, 1.0, 1e12, math.MaxFloat64, total),
		cpmmCurve(2, 1.0, 1e12, math.MaxFloat64, total),
	}

	res := WaterFill(curves, total, 0)

	assert.InDelta(t, thinCap, res.Inputs[0], thinCap*0.05,
		"the thin path is allocated its cap")

	m1 := curves[1].MarginalAt(res.Inputs[1])
	m2 := curves[2].MarginalAt(res.Inputs[2])
	assert.InDelta(t, m1, m2, 0.05, "the deep alternatives equilibrate")
	assert.InDelta(t, total, allocationSum(res.Inputs), math.Max(1, total*1e-9))
}

func TestWaterFillSinglePathDegenerate(t *testing.T) {
	total := 1e9
	curves := []*ResponseCurve{
		cpmmCurve(0, 1.0, 5e9, math.MaxFloat64, total),
	}

	res := WaterFill(curves, total, 0)
	assert.InDelta(t, total, res.Inputs[0], math.Max(1, total*1e-9))
}

func TestWaterFillDropsZeroMarginalPaths(t *testing.T) {
	total := 1e9
	dead := &ResponseCurve{
		PathIndex: 1,
		Points:    []CurvePoint{{Input: total * 0.001, Output: 0, Marginal: 0}},
		Cap:       total,
	}
	curves := []*ResponseCurve{
		cpmmCurve(0, 1.0, 5e9, math.MaxFloat64, total),
		dead,
	}

	res := WaterFill(curves, total, 0)
	assert.Equal(t, 0.0, res.Inputs[1], "zero-marginal path gets nothing")
	assert.InDelta(t, total, res.Inputs[0], math.Max(1, total*1e-9))
}

func TestNormalizeDropsDust(t *testing.T) {
	total := 1e9
	x := []float64{9.995e8, 4e5, 1e5} // dust below 0.1% of total
	normalizeAllocations(x, total, 1)

	assert.Equal(t, 0.0, x[1])
	assert.Equal(t, 0.0, x[2])
	assert.InDelta(t, total, x[0], 1)
}

func TestHillClimbMatchesWaterFill(t *testing.T) {
	// The two allocators are independent implementations of the same
	// optimization; on concave fixtures they must agree within the move
	// granularity. The fixture keeps the optimal displacement inside the
	// hill-climb's 200-round reach.
	total := 6e8
	curves := []*ResponseCurve{
		cpmmCurve(0, 1.0, 5e9, math.MaxFloat64, total),
		cpmmCurve(1, 1.0, 1e9, math.MaxFloat64, total),
	}

	wf := WaterFill(curves, total, 0)
	hc := HillClimb(curves, total)

	wfOut := wf.TotalOutput(curves)
	hcOut := hc.TotalOutput(curves)
	assert.InEpsilon(t, wfOut, hcOut, 0.01, "differential check: waterfill vs hillclimb")
	assert.InDelta(t, total, allocationSum(hc.Inputs), math.Max(1, total*1e-9))
}

func TestHillClimbRespectsCaps(t *testing.T) {
	total := 1e9
	curves := []*ResponseCurve{
		cpmmCurve(0, 1.0, 5e9, math.MaxFloat64, total),
		cpmmCurve(1, 2.0, 5e9, 1e6, total), // great rate, tiny cap
	}

	hc := HillClimb(curves, total)
	assert.LessOrEqual(t, hc.Inputs[1], curves[1].Cap+1)
}

func TestSplitEndToEndBeatsBestSingle(t *testing.T) {
	// S3 through the real pipeline: three parallel pools with staggered
	// reserves (the graph keeps two after compression), splitting on.
	g := newTestGraph(t,
		mockPool(10, mintA, mintU, 5e9, 5e9, 3000),
		mockPool(11, mintA, mintU, 3e9, 3e9, 3000),
		mockPool(12, mintA, mintU, 2e9, 2e9, 3000),
	)
	res := g.FindTopKRoutes(context.Background(), searchParams(2, 10, 32))
	require.GreaterOrEqual(t, len(res.Paths), 2)

	ev := NewEvaluator()
	total := 6e8
	curves := BuildCurves(ev, res.Paths, total, 0, 0)
	wf := WaterFill(curves, total, 0)

	splitOut := 0.0
	for ci, x := range wf.Inputs {
		if x > 0 {
			splitOut += ev.SimulateRoute(res.Paths[curves[ci].PathIndex], x)
		}
	}

	_, _, bestNet := ev.SelectBest(res.Paths, total, 0)
	assert.Greater(t, splitOut, bestNet*1.01)
}

func BenchmarkWaterFill(b *testing.B) {
	total := 6e8
	curves := []*ResponseCurve{
		cpmmCurve(0, 1.0, 5e9, math.MaxFloat64, total),
		cpmmCurve(1, 1.0, 3e9, math.MaxFloat64, total),
		cpmmCurve(2, 1.0, 2e9, math.MaxFloat64, total),
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = WaterFill(curves, total, 0)
	}
}
