package http

import (
	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"

	"github.com/solarisfi/sor-engine/internal/domain"
	"github.com/solarisfi/sor-engine/internal/engine"
	"github.com/solarisfi/sor-engine/internal/http/httputil"
)

type PoolHandler struct {
	engineSvc *engine.Service
}

func NewPoolHandler(engineSvc *engine.Service) *PoolHandler {
	return &PoolHandler{engineSvc: engineSvc}
}

func (h *PoolHandler) Root() string {
	return "/pools"
}

func (h *PoolHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("", h.listPools)
	pub.GET("/:address", h.getPool)
}

// PoolInfo is the public projection of a pool record
type PoolInfo struct {
	Address    string `json:"address"`
	Variant    string `json:"variant"`
	TokenMintA string `json:"tokenMintA"`
	TokenMintB string `json:"tokenMintB"`
	ReserveA   string `json:"reserveA"`
	ReserveB   string `json:"reserveB"`
	FeeRate    uint32 `json:"feeRate"`
	Active     bool   `json:"active"`
}

func poolInfo(p *domain.Pool) PoolInfo {
	reserveA, reserveB := "0", "0"
	if p.ReserveA != nil {
		reserveA = p.ReserveA.String()
	}
	if p.ReserveB != nil {
		reserveB = p.ReserveB.String()
	}
	return PoolInfo{
		Address:    p.Address.String(),
		Variant:    p.Variant.String(),
		TokenMintA: p.TokenMintA.String(),
		TokenMintB: p.TokenMintB.String(),
		ReserveA:   reserveA,
		ReserveB:   reserveB,
		FeeRate:    p.FeeRate,
		Active:     p.Active,
	}
}

// @Summary List pools
// @Tags pools
// @Produce json
// @Success 200 {array} PoolInfo
// @Router /api/v1/pools [get]
func (h *PoolHandler) listPools(c *gin.Context) {
	pools := h.engineSvc.Graph().GetAllPools()
	out := make([]PoolInfo, 0, len(pools))
	for _, p := range pools {
		out = append(out, poolInfo(p))
	}
	httputil.Success(c, out)
}

// @Summary Get pool by address
// @Tags pools
// @Produce json
// @Param address path string true "Pool address (base58)"
// @Success 200 {object} PoolInfo
// @Failure 404 {object} httputil.Response
// @Router /api/v1/pools/{address} [get]
func (h *PoolHandler) getPool(c *gin.Context) {
	addr, err := solana.PublicKeyFromBase58(c.Param("address"))
	if err != nil {
		httputil.BadRequest(c, "invalid pool address")
		return
	}
	p := h.engineSvc.Graph().GetPool(addr)
	if p == nil {
		httputil.NotFound(c, "pool not found")
		return
	}
	httputil.Success(c, poolInfo(p))
}
