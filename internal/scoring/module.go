package scoring

import (
	"leadscoring_backend/internal/events"
	apphttp "leadscoring_backend/internal/http"
	"leadscoring_backend/platform/apperr"
	"leadscoring_backend/platform/config"
	"leadscoring_backend/platform/logger"
)

// Module is the scoring bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	service *Service
}

// NewModule creates and initializes the scoring module. Both stores are
// injected by the composition root: the lead store comes from the leads
// module, the rate store from the scoring repository package. A nil sched
// disables the async run endpoint.
func NewModule(leadStore LeadStore, rateStore RateStore, cfg config.ScoringConfig, sched RunScheduler, eventBus events.Bus, log *logger.Logger) (*Module, error) {
	weights, err := WeightsFromConfig(cfg.GetScoringWeights())
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "invalid scoring weights", err)
	}

	svc := New(leadStore, rateStore, weights, cfg.GetFleetSyncParallelism(), eventBus, log)
	h := NewHandler(svc, sched)

	return &Module{handler: h, service: svc}, nil
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "scoring"
}

// Service exposes the scoring service for the scheduler worker.
func (m *Module) Service() *Service {
	return m.service
}

// RegisterRoutes mounts scoring routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/scoring")
	m.handler.RegisterRoutes(group)
}

var _ apphttp.Module = (*Module)(nil)
