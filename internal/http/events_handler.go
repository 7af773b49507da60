package http

import (
	"io"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"

	"github.com/solarisfi/sor-engine/internal/domain"
	"github.com/solarisfi/sor-engine/internal/http/httputil"
	"github.com/solarisfi/sor-engine/internal/services/dispatcher"
)

// EventsHandler is the push interface for pool mutation batches. Production
// ingestion speaks to the dispatcher in-process; this endpoint serves
// operators and integration tests.
type EventsHandler struct {
	dispatcherSvc *dispatcher.Service
}

func NewEventsHandler(dispatcherSvc *dispatcher.Service) *EventsHandler {
	return &EventsHandler{dispatcherSvc: dispatcherSvc}
}

func (h *EventsHandler) Root() string {
	return "/events"
}

func (h *EventsHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	admin.POST("", h.postEvents)
}

// @Summary Apply a batch of pool mutation events
// @Tags events
// @Accept json
// @Produce json
// @Success 200 {object} httputil.Response
// @Failure 400 {object} httputil.Response
// @Router /api/v1/admin/events [post]
func (h *EventsHandler) postEvents(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		httputil.BadRequest(c, "failed to read body")
		return
	}

	var events []domain.PoolEvent
	if err := sonic.Unmarshal(body, &events); err != nil {
		httputil.BadRequest(c, "invalid event batch: "+err.Error())
		return
	}

	h.dispatcherSvc.ApplyBatch(events)
	httputil.Success(c, gin.H{"applied": len(events)})
}
