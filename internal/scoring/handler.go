package scoring

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"leadscoring_backend/platform/httpkit"
)

// RunScheduler defers a client's incremental run to the background worker.
// Satisfied by the scheduler package's asynq client; nil when the API runs
// without a task broker.
type RunScheduler interface {
	EnqueueClientIncremental(ctx context.Context, clientID string) error
}

// Handler exposes the scoring run and rate inspection endpoints.
type Handler struct {
	svc   *Service
	sched RunScheduler
}

func NewHandler(svc *Service, sched RunScheduler) *Handler {
	return &Handler{svc: svc, sched: sched}
}

// IncrementalRequest optionally names an explicit batch of leads to fold in.
// An empty body (or empty list) means "use the watermark-derived batch".
type IncrementalRequest struct {
	LeadIDs []uuid.UUID `json:"leadIds"`
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/clients/:clientId/rates", h.GetRates)
	rg.POST("/clients/:clientId/recompute", h.Recompute)
	rg.POST("/clients/:clientId/incremental", h.Incremental)
	rg.POST("/sync", h.FleetSync)
}

// GetRates handles GET /api/v1/scoring/clients/:clientId/rates
func (h *Handler) GetRates(c *gin.Context) {
	rows, err := h.svc.Rates(c.Request.Context(), c.Param("clientId"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, ToRateResponses(rows))
}

// Recompute handles POST /api/v1/scoring/clients/:clientId/recompute
func (h *Handler) Recompute(c *gin.Context) {
	clientID := c.Param("clientId")
	result, err := h.svc.FullRecompute(c.Request.Context(), clientID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, RunResponse{ClientID: clientID, Mode: "full", Result: result})
}

// Incremental handles POST /api/v1/scoring/clients/:clientId/incremental
// Folds a batch of new leads into the stored counters. With no body the
// batch is derived from the stored watermark; an explicit leadIds list
// overrides it. With ?async=true the watermark-derived run is enqueued on
// the background worker instead of running inline.
func (h *Handler) Incremental(c *gin.Context) {
	clientID := c.Param("clientId")

	var req IncrementalRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
			return
		}
	}

	if c.Query("async") == "true" {
		if len(req.LeadIDs) > 0 {
			httpkit.Error(c, http.StatusBadRequest, "async mode does not accept leadIds", nil)
			return
		}
		if h.sched == nil {
			httpkit.Error(c, http.StatusServiceUnavailable, "background scheduler not configured", nil)
			return
		}
		if err := h.sched.EnqueueClientIncremental(c.Request.Context(), clientID); err != nil {
			httpkit.Error(c, http.StatusServiceUnavailable, "failed to enqueue incremental run", nil)
			return
		}
		httpkit.JSON(c, http.StatusAccepted, EnqueueResponse{ClientID: clientID, Enqueued: true})
		return
	}

	var result Result
	var err error
	if len(req.LeadIDs) > 0 {
		result, err = h.svc.IncrementalForLeadIDs(c.Request.Context(), clientID, req.LeadIDs)
	} else {
		result, err = h.svc.SyncClient(c.Request.Context(), clientID)
	}
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, RunResponse{ClientID: clientID, Mode: "incremental", Result: result})
}

// FleetSync handles POST /api/v1/scoring/sync
// Manual trigger for the run the scheduler performs weekly.
func (h *Handler) FleetSync(c *gin.Context) {
	fleet, err := h.svc.FleetWideIncrementalSync(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, fleet)
}
