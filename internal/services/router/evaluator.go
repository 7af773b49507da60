package router

import (
	"math"

	"github.com/rs/zerolog/log"

	"github.com/solarisfi/sor-engine/internal/services/pool"
)

// Evaluator simulates candidate paths end-to-end. The quoter is injected so
// tests can substitute synthetic pool math.
type Evaluator struct {
	Quoter pool.QuoterFunc
}

func NewEvaluator() *Evaluator {
	return &Evaluator{Quoter: pool.Swap}
}

// SimulateRoute chains the swap oracle through every hop, short-circuiting to
// zero on the first dead hop. A non-finite oracle result is treated as zero
// and logged (the path is effectively dropped from consideration).
func (ev *Evaluator) SimulateRoute(p *Path, amountIn float64) float64 {
	amount := amountIn
	for i := range p.Edges {
		e := &p.Edges[i]
		amount = ev.Quoter(e.Pool, amount, e.FromMint(), e.ToMint())
		if math.IsNaN(amount) || math.IsInf(amount, 0) {
			log.Warn().
				Str("pool", e.Pool.Address.String()).
				Msg("[router.Evaluator] oracle returned non-finite output, dropping path")
			return 0
		}
		if amount <= 0 {
			return 0
		}
	}
	return amount
}

// NetOutput simulates the path and charges per-hop gas in output smallest
// units, floored at zero.
func (ev *Evaluator) NetOutput(p *Path, amountIn, gasPerHopOut float64) (gross, net float64) {
	gross = ev.SimulateRoute(p, amountIn)
	net = gross - float64(p.Hops())*gasPerHopOut
	if net < 0 {
		net = 0
	}
	return gross, net
}

// SelectBest returns the index of the path with the highest gas-adjusted net
// output, ties broken by discovery order. Returns -1 when every path nets
// zero or the slice is empty.
func (ev *Evaluator) SelectBest(paths []*Path, amountIn, gasPerHopOut float64) (bestIdx int, bestGross, bestNet float64) {
	bestIdx = -1
	for i, p := range paths {
		gross, net := ev.NetOutput(p, amountIn, gasPerHopOut)
		if net > bestNet {
			bestIdx = i
			bestGross = gross
			bestNet = net
		}
	}
	return bestIdx, bestGross, bestNet
}
