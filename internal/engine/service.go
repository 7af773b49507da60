// Package engine orchestrates one quote request through the routing core:
// validate, search, evaluate, sample, split, assemble.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog/log"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/solarisfi/sor-engine/internal/common"
	"github.com/solarisfi/sor-engine/internal/config"
	"github.com/solarisfi/sor-engine/internal/domain"
	"github.com/solarisfi/sor-engine/internal/metrics"
	"github.com/solarisfi/sor-engine/internal/services/router"
)

const ENGINE_SERVICE = "engine.Service"

var (
	ErrInvalidInput = errors.New("invalid input")

	// Error aliases
	ErrNoRoute      = router.ErrNoRoute
	ErrUnknownToken = router.ErrUnknownToken
)

type Service struct {
	container.BaseDIInstance

	logger    *common.ServiceLogger
	graph     *router.Graph
	evaluator *router.Evaluator
	config    *config.RouterConfig
}

func (svc *Service) ID() string {
	return ENGINE_SERVICE
}

func (svc *Service) Configure(c container.IContainer) error {
	svc.logger = common.NewServiceLogger(svc)
	svc.graph = c.Instance(router.ROUTER_SERVICE).(*router.Graph)
	svc.config = c.GetConfig(config.ROUTER_CONFIG_KEY).(*config.RouterConfig)
	svc.evaluator = router.NewEvaluator()
	return nil
}

func (svc *Service) Start() error { return nil }
func (svc *Service) Stop() error  { return nil }

func (svc *Service) Graph() *router.Graph { return svc.graph }

// Quote runs the full smart-order-router pipeline. Only invalid input is a
// hard failure; everything else degrades to an empty path list with a reason
// code and diagnostics.
func (svc *Service) Quote(ctx context.Context, req domain.QuoteRequest) (*domain.QuoteResponse, error) {
	start := time.Now()

	params, gasPerHopOut, err := svc.validate(&req)
	if err != nil {
		metrics.QuoteRequests.WithLabelValues("invalid").Inc()
		return nil, err
	}

	resp := &domain.QuoteResponse{}

	searchStart := time.Now()
	search := svc.graph.FindTopKRoutes(ctx, params)
	resp.Diagnostics.SearchTime = time.Since(searchStart)
	resp.Diagnostics.NodesExplored = search.NodesExplored
	resp.Diagnostics.StatesPruned = search.StatesPruned
	resp.Diagnostics.SearchBudgetHit = search.BudgetExceeded
	resp.Diagnostics.HeuristicCacheHit = search.HeuristicCacheHit
	if search.StatesGenerated > 0 {
		resp.Diagnostics.PruningRatio = float64(search.StatesPruned) / float64(search.StatesGenerated)
	}

	if len(search.Paths) == 0 {
		resp.Diagnostics.NoRouteReason = noRouteReason(search)
		metrics.QuoteRequests.WithLabelValues("no_route").Inc()
		log.Debug().
			Str("source", req.SourceMint.String()).
			Str("target", req.TargetMint.String()).
			Str("reason", resp.Diagnostics.NoRouteReason).
			Msg("[engine] no route")
		return resp, nil
	}

	srcToken, _ := svc.tokenFor(req.SourceMint)
	dstToken, _ := svc.tokenFor(req.TargetMint)
	amountRaw := srcToken.RawAmount(req.Amount)

	resp.Paths = pathRecords(search.Paths)

	bestIdx, gross, net := svc.evaluator.SelectBest(search.Paths, amountRaw, gasPerHopOut)
	if bestIdx >= 0 {
		best := search.Paths[bestIdx]
		resp.BestSingle = &domain.BestSingle{
			PathIndex:      bestIdx,
			OutputRaw:      gross,
			OutputHuman:    dstToken.HumanAmount(gross),
			GasCostRaw:     float64(best.Hops()) * gasPerHopOut,
			NetOutputRaw:   net,
			NetOutputHuman: dstToken.HumanAmount(net),
		}
	}

	if req.EnableSplitting && len(search.Paths) > 0 {
		svc.split(resp, search.Paths, req, amountRaw, gasPerHopOut, srcToken, dstToken)
	}

	metrics.QuoteRequests.WithLabelValues("ok").Inc()
	metrics.QuoteDuration.Observe(time.Since(start).Seconds())
	return resp, nil
}

// split samples the candidate paths, runs both allocators, and keeps the
// better outcome for presentation.
func (svc *Service) split(resp *domain.QuoteResponse, paths []*router.Path, req domain.QuoteRequest, amountRaw, gasPerHopOut float64, srcToken, dstToken domain.Token) {
	curveStart := time.Now()
	curves := router.BuildCurves(svc.evaluator, paths, amountRaw, gasPerHopOut, req.StepCount)
	curves = router.FilterCurves(curves, req.MinInitialEffRatio)
	resp.Diagnostics.CurveTime = time.Since(curveStart)
	if len(curves) == 0 {
		return
	}

	splitStart := time.Now()
	wf := router.WaterFill(curves, amountRaw, 0)
	hc := router.HillClimb(curves, amountRaw)
	resp.Diagnostics.SplitTime = time.Since(splitStart)
	resp.Diagnostics.SplitBudgetHit = wf.BudgetExceeded

	outcome, algorithm := wf, "waterfill"
	if hc.TotalOutput(curves) > wf.TotalOutput(curves) {
		outcome, algorithm = hc, "hillclimb"
	}

	result := &domain.SplitResult{
		TotalInputHuman: req.Amount,
		Algorithm:       algorithm,
		Iterations:      outcome.Iterations,
	}

	totalOut := 0.0
	for ci, x := range outcome.Inputs {
		if x <= 0 {
			continue
		}
		c := curves[ci]
		p := paths[c.PathIndex]
		// Re-run the evaluator on the final allocation: the curve is a
		// sampled approximation, the reported output is the simulated one.
		_, out := svc.evaluator.NetOutput(p, x, gasPerHopOut)
		totalOut += out
		result.Allocations = append(result.Allocations, domain.SplitAllocation{
			PathIndex:       c.PathIndex,
			InputRaw:        x,
			InputHuman:      srcToken.HumanAmount(x),
			OutputRaw:       out,
			OutputHuman:     dstToken.HumanAmount(out),
			InitialMarginal: c.InitialMarginal(),
			FinalMarginal:   c.MarginalAt(x),
		})
	}
	result.TotalOutputRaw = totalOut
	result.TotalOutputHuman = dstToken.HumanAmount(totalOut)
	resp.Split = result

	metrics.SplitIterations.Observe(float64(outcome.Iterations))
	metrics.SplitDuration.Observe(resp.Diagnostics.SplitTime.Seconds())
	if resp.BestSingle != nil && resp.BestSingle.NetOutputRaw > 0 {
		improvement := (totalOut - resp.BestSingle.NetOutputRaw) / resp.BestSingle.NetOutputRaw * 10000
		if improvement > 0 {
			metrics.SplitImprovementBps.Observe(improvement)
		}
	}
}

// validate normalizes the request against defaults and rejects nonsense.
// The gas charge is converted to target smallest units here; a non-stable
// target with no explicit USD price is an input error, never a silent $1.
func (svc *Service) validate(req *domain.QuoteRequest) (router.SearchParams, float64, error) {
	if req.Amount <= 0 || math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0) {
		return router.SearchParams{}, 0, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if req.SourceMint == req.TargetMint {
		return router.SearchParams{}, 0, fmt.Errorf("%w: %v", ErrInvalidInput, router.ErrSameToken)
	}
	if _, ok := svc.graph.Registry().GetID(req.SourceMint); !ok {
		return router.SearchParams{}, 0, fmt.Errorf("%w: unknown source token %s", ErrInvalidInput, req.SourceMint)
	}
	dstToken, ok := svc.tokenFor(req.TargetMint)
	if !ok {
		return router.SearchParams{}, 0, fmt.Errorf("%w: unknown target token %s", ErrInvalidInput, req.TargetMint)
	}

	maxHops := req.MaxHops
	if maxHops == 0 {
		maxHops = svc.config.MaxHops
	}
	if maxHops < 1 || maxHops > 8 {
		return router.SearchParams{}, 0, fmt.Errorf("%w: maxHops must be in [1,8]", ErrInvalidInput)
	}
	topK := req.TopK
	if topK == 0 {
		topK = svc.config.TopK
	}
	beam := req.BeamWidth
	if beam == 0 {
		beam = svc.config.BeamWidth
	}
	if topK < 1 || beam < 1 {
		return router.SearchParams{}, 0, fmt.Errorf("%w: topK and beamWidth must be positive", ErrInvalidInput)
	}

	gasUSD := req.GasPerHopUSD
	if gasUSD == 0 {
		gasUSD = svc.config.GasPerHopUSD
	}
	if gasUSD < 0 {
		return router.SearchParams{}, 0, fmt.Errorf("%w: gasPerHopUSD must be non-negative", ErrInvalidInput)
	}

	usdPrice := req.TargetUsdPrice
	if usdPrice <= 0 {
		if !common.IsStablecoin(req.TargetMint) {
			return router.SearchParams{}, 0, fmt.Errorf("%w: targetUsdPrice is required for non-stablecoin target %s", ErrInvalidInput, req.TargetMint)
		}
		usdPrice = 1.0
	}

	gasPerHopOut := dstToken.RawAmount(gasUSD / usdPrice)

	// The gas penalty in the search score is the per-hop charge expressed in
	// the log-price domain; a flat USD charge maps to a small constant that
	// discourages long paths without distorting ranking.
	gasPenalty := gasPenaltyFor(gasUSD)

	return router.SearchParams{
		Source:     req.SourceMint,
		Target:     req.TargetMint,
		MaxHops:    maxHops,
		TopK:       topK,
		BeamWidth:  beam,
		GasPenalty: gasPenalty,
	}, gasPerHopOut, nil
}

// gasPenaltyFor maps the per-hop USD charge to a log-domain hop penalty.
func gasPenaltyFor(gasUSD float64) float64 {
	if gasUSD <= 0 {
		return 0
	}
	// ln(1 + fee-like fraction); the default $0.01 costs about 0.00995
	// (roughly 100 bps) per hop in score space.
	p := math.Log1p(gasUSD)
	if p > 1 {
		p = 1
	}
	return p
}

func (svc *Service) tokenFor(mint solana.PublicKey) (domain.Token, bool) {
	reg := svc.graph.Registry()
	id, ok := reg.GetID(mint)
	if !ok {
		return domain.Token{}, false
	}
	return domain.Token{Mint: mint, Decimals: reg.GetDecimals(id)}, true
}

func pathRecords(paths []*router.Path) []domain.PathRecord {
	records := make([]domain.PathRecord, len(paths))
	for i, p := range paths {
		hops := make([]domain.HopRecord, len(p.Edges))
		for j := range p.Edges {
			e := &p.Edges[j]
			hops[j] = domain.HopRecord{
				PoolAddress: e.Pool.Address,
				FromMint:    e.FromMint(),
				ToMint:      e.ToMint(),
			}
		}
		records[i] = domain.PathRecord{Hops: hops, Score: p.Score, CapRaw: p.Cap}
	}
	return records
}

func noRouteReason(search *router.SearchResult) string {
	if search.BudgetExceeded {
		return "budget_exceeded"
	}
	if search.NodesExplored == 0 {
		return "invalid_endpoints"
	}
	return "no_route_found"
}
