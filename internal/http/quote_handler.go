package http

import (
	"errors"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"

	"github.com/solarisfi/sor-engine/internal/domain"
	"github.com/solarisfi/sor-engine/internal/engine"
	"github.com/solarisfi/sor-engine/internal/http/httputil"
	"github.com/solarisfi/sor-engine/internal/services/router"
)

type QuoteHandler struct {
	engineSvc *engine.Service
}

func NewQuoteHandler(engineSvc *engine.Service) *QuoteHandler {
	return &QuoteHandler{engineSvc: engineSvc}
}

func (h *QuoteHandler) Root() string {
	return "/quote"
}

func (h *QuoteHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("", h.getQuote)
}

// QuoteRequest represents the parameters for requesting a routed swap quote
type QuoteRequest struct {
	// Source token mint address (base58 public key)
	SourceMint string `form:"sourceMint" binding:"required" example:"So11111111111111111111111111111111111111112"`

	// Target token mint address (base58 public key)
	TargetMint string `form:"targetMint" binding:"required" example:"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"`

	// Swap amount in human-readable units of the source token
	Amount string `form:"amount" binding:"required" example:"10"`

	// Hop bound for the path search. Default 3, maximum 8.
	MaxHops int `form:"maxHops" example:"3"`

	// Number of candidate paths to return. Default 40.
	TopK int `form:"topK" example:"40"`

	// Frontier expansions per search round. Default 32.
	BeamWidth int `form:"beamWidth" example:"32"`

	// Per-hop gas charge in USD. Default 0.01.
	GasPerHopUSD float64 `form:"gasPerHopUsd" example:"0.01"`

	// USD price of the target token. Required when the target is not a
	// recognized stablecoin.
	TargetUsdPrice float64 `form:"targetUsdPrice" example:"1.0"`

	// Enable split execution across multiple paths
	Split bool `form:"split" example:"true"`

	// Drop paths whose initial effective rate falls below this fraction of
	// the best path's. Default 0 (disabled).
	MinInitialEffRatio float64 `form:"minInitialEffRatio" example:"0"`

	// Number of response-curve sample points (1-18). Default 18.
	StepCount int `form:"stepCount" example:"18"`

	// Slippage tolerance in basis points (1 bps = 0.01%)
	// Default: 50 bps (0.5%)
	// Common values: 10 (0.1%), 50 (0.5%), 100 (1%), 300 (3%)
	SlippageBps uint16 `form:"slippageBps" example:"50"` // optional, default 50bps
}

func (h *QuoteHandler) parseQuoteRequest(c *gin.Context) (*domain.QuoteRequest, uint16, bool) {
	var req QuoteRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httputil.BadRequest(c, "invalid query parameters: "+err.Error())
		return nil, 0, false
	}

	sourceMint, err := solana.PublicKeyFromBase58(req.SourceMint)
	if err != nil {
		httputil.BadRequest(c, "invalid sourceMint address")
		return nil, 0, false
	}

	targetMint, err := solana.PublicKeyFromBase58(req.TargetMint)
	if err != nil {
		httputil.BadRequest(c, "invalid targetMint address")
		return nil, 0, false
	}

	amount, err := strconv.ParseFloat(req.Amount, 64)
	if err != nil || amount <= 0 {
		httputil.BadRequest(c, "invalid amount: must be a positive number")
		return nil, 0, false
	}

	slippageBps := req.SlippageBps
	if slippageBps == 0 {
		slippageBps = 50
	}
	if slippageBps >= 10000 {
		httputil.BadRequest(c, "invalid slippageBps: must be below 10000")
		return nil, 0, false
	}

	return &domain.QuoteRequest{
		SourceMint:         sourceMint,
		TargetMint:         targetMint,
		Amount:             amount,
		MaxHops:            req.MaxHops,
		TopK:               req.TopK,
		BeamWidth:          req.BeamWidth,
		GasPerHopUSD:       req.GasPerHopUSD,
		TargetUsdPrice:     req.TargetUsdPrice,
		EnableSplitting:    req.Split,
		MinInitialEffRatio: req.MinInitialEffRatio,
		StepCount:          req.StepCount,
	}, slippageBps, true
}

// QuoteResponse wraps the engine response with presentation fields
type QuoteResponse struct {
	*domain.QuoteResponse

	// Price impact classification derived from the best single execution
	PriceImpactSeverity string `json:"priceImpactSeverity,omitempty"`
	PriceImpactWarning  string `json:"priceImpactWarning,omitempty"`

	// Slippage tolerance applied to the quote, in basis points
	SlippageBps uint16 `json:"slippageBps"`

	// Minimum output after applying slippage to the quoted net output, in
	// target smallest units: netOutput * (10000 - slippageBps) / 10000.
	// Derived from the split total when splitting ran, else the best single.
	OtherAmountThresholdRaw   float64 `json:"otherAmountThresholdRaw"`
	OtherAmountThresholdHuman float64 `json:"otherAmountThresholdHuman"`
}

// @Summary Get routed swap quote
// @Description Find up to K ranked paths through the liquidity graph, the best
// @Description single execution net of gas, and optionally an optimal split of
// @Description the input across paths.
// @Tags quote
// @Produce json
// @Param sourceMint query string true "Source token mint (base58)"
// @Param targetMint query string true "Target token mint (base58)"
// @Param amount query string true "Swap amount in human units of the source token"
// @Param maxHops query int false "Hop bound (1-8), default 3"
// @Param topK query int false "Candidate path count, default 40"
// @Param beamWidth query int false "Beam width, default 32"
// @Param gasPerHopUsd query number false "Per-hop gas in USD, default 0.01"
// @Param targetUsdPrice query number false "Target token USD price; required for non-stablecoins"
// @Param split query bool false "Enable split execution"
// @Param minInitialEffRatio query number false "Path quality gate in [0,1], default 0"
// @Param stepCount query int false "Response-curve sample points (1-18), default 18"
// @Param slippageBps query int false "Slippage tolerance in basis points (1 bps = 0.01%). Default: 50 (0.5%)" default(50)
// @Success 200 {object} QuoteResponse "Quote with paths, best single and optional split"
// @Failure 400 {object} httputil.Response "Invalid request parameters"
// @Failure 404 {object} httputil.Response "No route found"
// @Router /api/v1/quote [get]
func (h *QuoteHandler) getQuote(c *gin.Context) {
	parsed, slippageBps, ok := h.parseQuoteRequest(c)
	if !ok {
		return
	}

	resp, err := h.engineSvc.Quote(c.Request.Context(), *parsed)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidInput) {
			httputil.BadRequest(c, err.Error())
			return
		}
		httputil.InternalError(c, err.Error())
		return
	}

	if len(resp.Paths) == 0 {
		httputil.NotFound(c, "no route found: "+resp.Diagnostics.NoRouteReason)
		return
	}

	out := QuoteResponse{QuoteResponse: resp, SlippageBps: slippageBps}
	if resp.BestSingle != nil && resp.BestSingle.OutputRaw > 0 {
		bps := impactBps(resp.BestSingle.NetOutputRaw, resp.BestSingle.OutputRaw)
		out.PriceImpactSeverity = string(router.GetPriceImpactSeverity(bps))
		out.PriceImpactWarning = router.GetPriceImpactWarning(bps)
	}

	// Min Output = netOutput * (10000 - slippageBps) / 10000. The swap is
	// exact-in, so slippage only moves the output side; the threshold comes
	// off whichever execution the caller would take.
	netRaw, netHuman := 0.0, 0.0
	if resp.Split != nil {
		netRaw, netHuman = resp.Split.TotalOutputRaw, resp.Split.TotalOutputHuman
	} else if resp.BestSingle != nil {
		netRaw, netHuman = resp.BestSingle.NetOutputRaw, resp.BestSingle.NetOutputHuman
	}
	factor := float64(10000-slippageBps) / 10000
	out.OtherAmountThresholdRaw = netRaw * factor
	out.OtherAmountThresholdHuman = netHuman * factor

	httputil.Success(c, out)
}

// impactBps reports the gas drag between gross and net output in basis points
func impactBps(net, gross float64) uint16 {
	if gross <= 0 || net >= gross {
		return 0
	}
	bps := (gross - net) / gross * 10000
	if bps > 65535 {
		return 65535
	}
	return uint16(bps)
}
