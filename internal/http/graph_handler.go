package http

import (
	"github.com/gin-gonic/gin"

	"github.com/solarisfi/sor-engine/internal/engine"
	"github.com/solarisfi/sor-engine/internal/http/httputil"
)

type GraphHandler struct {
	engineSvc *engine.Service
}

func NewGraphHandler(engineSvc *engine.Service) *GraphHandler {
	return &GraphHandler{engineSvc: engineSvc}
}

func (h *GraphHandler) Root() string {
	return "/graph"
}

func (h *GraphHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("/stats", h.getStats)
}

// GraphStats summarizes the routing graph shape
type GraphStats struct {
	Tokens             int    `json:"tokens"`
	Pools              int    `json:"pools"`
	Version            uint64 `json:"version"`
	HeuristicCacheSize int    `json:"heuristicCacheSize"`
}

// @Summary Routing graph statistics
// @Tags graph
// @Produce json
// @Success 200 {object} GraphStats
// @Router /api/v1/graph/stats [get]
func (h *GraphHandler) getStats(c *gin.Context) {
	g := h.engineSvc.Graph()
	httputil.Success(c, GraphStats{
		Tokens:             g.Registry().Size(),
		Pools:              g.PoolCount(),
		Version:            g.Version(),
		HeuristicCacheSize: g.Heuristic().Size(),
	})
}
