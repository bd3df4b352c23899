package scheduler

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"leadscoring_backend/internal/scoring"
	"leadscoring_backend/platform/apperr"
	"leadscoring_backend/platform/config"
	"leadscoring_backend/platform/logger"
)

type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	scoring *scoring.Service
	log     *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, scoringSvc *scoring.Service, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:  server,
		mux:     mux,
		scoring: scoringSvc,
		log:     log,
	}

	mux.HandleFunc(TaskClientIncremental, w.handleClientIncremental)
	mux.HandleFunc(TaskFleetSync, w.handleFleetSync)

	return w, nil
}

func (w *Worker) handleClientIncremental(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseClientIncrementalPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	_, err = w.scoring.SyncClient(ctx, payload.ClientID)
	if apperr.Is(err, apperr.KindConflict) {
		// A run is already in flight for this client; retrying would just
		// collide with it again. The next scheduled sync picks up the leads.
		w.log.Warn("client incremental skipped, run in progress", "clientId", payload.ClientID)
		return nil
	}
	return err
}

func (w *Worker) handleFleetSync(ctx context.Context, task *asynq.Task) error {
	fleet, err := w.scoring.FleetWideIncrementalSync(ctx)
	if err != nil {
		return err
	}

	// Per-client failures live in fleet.Errors and were already logged by
	// the scoring service; the task itself succeeded.
	w.log.Info("fleet sync task complete",
		"processed_clients", fleet.ProcessedClients,
		"updated_rates", fleet.TotalUpdatedRates,
		"errors", len(fleet.Errors))
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
