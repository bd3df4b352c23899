package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"leadscoring_backend/platform/config"
	"leadscoring_backend/platform/logger"
)

// CronRunner enqueues the recurring fleet sync task on a cron schedule.
// Enqueueing (not executing) keeps the schedule tick cheap; the asynq worker
// owns execution, retries, and fault isolation.
type CronRunner struct {
	cron   *cron.Cron
	client ScoringScheduler
	spec   string
	log    *logger.Logger
}

func NewCronRunner(cfg config.SchedulerConfig, client ScoringScheduler, log *logger.Logger) *CronRunner {
	spec := cfg.GetFleetSyncCron()
	if spec == "" {
		spec = "0 3 * * 1"
	}

	return &CronRunner{
		cron:   cron.New(),
		client: client,
		spec:   spec,
		log:    log,
	}
}

// Start registers the fleet sync entry and starts the schedule.
func (r *CronRunner) Start() error {
	_, err := r.cron.AddFunc(r.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := r.client.EnqueueFleetSync(ctx); err != nil {
			r.log.Error("failed to enqueue fleet sync", "error", err)
			return
		}
		r.log.Info("fleet sync enqueued", "schedule", r.spec)
	})
	if err != nil {
		return err
	}

	r.cron.Start()
	r.log.Info("cron schedule started", "fleetSync", r.spec)
	return nil
}

// Stop halts the schedule and waits for any in-flight tick to finish.
func (r *CronRunner) Stop() {
	if r == nil || r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
}
