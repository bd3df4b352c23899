package scoring

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"leadscoring_backend/internal/events"
	"leadscoring_backend/internal/leads/domain"
	"leadscoring_backend/platform/apperr"
	"leadscoring_backend/platform/logger"
)

// Result is the outcome of one scoring run for one client. Per-item
// failures land in Errors; only top-level fetch failures are returned as
// errors to the caller.
type Result struct {
	UpdatedConversionRates int      `json:"updatedConversionRates"`
	UpdatedLeads           int      `json:"updatedLeads"`
	TotalProcessedLeads    int      `json:"totalProcessedLeads"`
	Errors                 []string `json:"errors"`
}

// FleetResult is the outcome of a fleet-wide incremental sync.
type FleetResult struct {
	ProcessedClients  int      `json:"processedClients"`
	TotalUpdatedRates int      `json:"totalUpdatedRates"`
	Errors            []string `json:"errors"`
}

// Service orchestrates the scoring pipelines: full recompute, incremental
// update, and fleet-wide sync. All store access goes through the LeadStore
// and RateStore collaborators.
type Service struct {
	leads   LeadStore
	rates   RateStore
	weights Weights
	bus     events.Bus
	log     *logger.Logger

	// fleetParallelism bounds concurrent clients during fleet sync;
	// 1 preserves strictly sequential processing.
	fleetParallelism int

	// At most one in-flight aggregation run per client. Concurrent
	// read-merge-write cycles on the same client's rate rows would be a
	// lost update, so a second caller is rejected, not queued.
	activeRuns map[string]bool
	runsMu     sync.Mutex
}

// New creates a scoring service. Weights must already be validated.
// The event bus is optional; a nil bus disables RatesRecomputed events.
func New(leads LeadStore, rates RateStore, weights Weights, fleetParallelism int, bus events.Bus, log *logger.Logger) *Service {
	if fleetParallelism < 1 {
		fleetParallelism = 1
	}
	return &Service{
		leads:            leads,
		rates:            rates,
		weights:          weights,
		fleetParallelism: fleetParallelism,
		bus:              bus,
		log:              log,
		activeRuns:       make(map[string]bool),
	}
}

func (s *Service) publishRecomputed(ctx context.Context, clientID, mode string, result Result) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, events.RatesRecomputed{
		BaseEvent:    events.NewBaseEvent(),
		ClientID:     clientID,
		Mode:         mode,
		UpdatedRates: result.UpdatedConversionRates,
		UpdatedLeads: result.UpdatedLeads,
	})
}

// markRunning attempts to mark a client run as active. Returns false if a
// run is already in flight for that client.
func (s *Service) markRunning(clientID string) bool {
	s.runsMu.Lock()
	defer s.runsMu.Unlock()

	if s.activeRuns[clientID] {
		return false
	}
	s.activeRuns[clientID] = true
	return true
}

// markComplete removes the active run marker.
func (s *Service) markComplete(clientID string) {
	s.runsMu.Lock()
	defer s.runsMu.Unlock()
	delete(s.activeRuns, clientID)
}

// FullRecompute rebuilds the client's conversion-rate table from its entire
// lead history and re-scores every lead against the fresh table. The
// recompute is authoritative: stored counters are replaced, not merged.
func (s *Service) FullRecompute(ctx context.Context, clientID string) (Result, error) {
	if clientID == "" {
		return Result{}, apperr.Validation("clientId is required")
	}
	if !s.markRunning(clientID) {
		return Result{}, apperr.Conflict("a scoring run is already in progress for this client")
	}
	defer s.markComplete(clientID)

	return s.fullRecomputeLocked(ctx, clientID)
}

func (s *Service) fullRecomputeLocked(ctx context.Context, clientID string) (Result, error) {
	leads, err := s.leads.GetLeadsByClientID(ctx, clientID)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.KindUnavailable, "fetch leads", err).WithOp("scoring.FullRecompute")
	}
	if len(leads) == 0 {
		return Result{Errors: []string{}}, nil
	}

	result := Result{TotalProcessedLeads: len(leads), Errors: []string{}}

	rows, warnings := Aggregate(leads, clientID)
	result.Errors = append(result.Errors, warnings...)

	upsert, err := s.rates.BatchUpsert(ctx, rows)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.KindUnavailable, "upsert conversion rates", err).WithOp("scoring.FullRecompute")
	}
	result.UpdatedConversionRates = upsert.Total

	updatedLeads, errs, err := s.rescoreLeads(ctx, clientID, leads)
	if err != nil {
		return Result{}, err
	}
	result.UpdatedLeads = updatedLeads
	result.Errors = append(result.Errors, errs...)

	s.advanceWatermark(ctx, clientID, leads, &result)
	s.publishRecomputed(ctx, clientID, "full", result)
	s.log.ScoringRun("full", clientID, result.TotalProcessedLeads, result.UpdatedConversionRates, result.UpdatedLeads, len(result.Errors))
	return result, nil
}

// WeeklyIncrementalUpdate folds a batch of newly-arrived leads into the
// client's stored counters and re-scores ALL of the client's leads, since
// any lead's dimension value may now map to a changed rate. The caller must
// guarantee each lead appears in exactly one batch over the system's
// lifetime; SyncClient does so via the stored watermark.
func (s *Service) WeeklyIncrementalUpdate(ctx context.Context, clientID string, newLeads []domain.Lead) (Result, error) {
	if clientID == "" {
		return Result{}, apperr.Validation("clientId is required")
	}
	if !s.markRunning(clientID) {
		return Result{}, apperr.Conflict("a scoring run is already in progress for this client")
	}
	defer s.markComplete(clientID)

	return s.incrementalLocked(ctx, clientID, newLeads)
}

func (s *Service) incrementalLocked(ctx context.Context, clientID string, newLeads []domain.Lead) (Result, error) {
	if len(newLeads) == 0 {
		return Result{Errors: []string{}}, nil
	}

	result := Result{TotalProcessedLeads: len(newLeads), Errors: []string{}}

	incoming, warnings := Aggregate(newLeads, clientID)
	result.Errors = append(result.Errors, warnings...)

	existing, err := s.rates.GetRates(ctx, clientID)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.KindUnavailable, "read conversion rates", err).WithOp("scoring.WeeklyIncrementalUpdate")
	}

	merged := Merge(existing, incoming)

	// Rows untouched by this batch carry identical counters; writing them
	// back would be wasted I/O.
	upsert, err := s.rates.BatchUpsert(ctx, MergedKeys(merged, incoming))
	if err != nil {
		return Result{}, apperr.Wrap(apperr.KindUnavailable, "upsert conversion rates", err).WithOp("scoring.WeeklyIncrementalUpdate")
	}
	result.UpdatedConversionRates = upsert.Total

	allLeads, err := s.leads.GetLeadsByClientID(ctx, clientID)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.KindUnavailable, "fetch leads", err).WithOp("scoring.WeeklyIncrementalUpdate")
	}

	updatedLeads, errs, err := s.rescoreLeads(ctx, clientID, allLeads)
	if err != nil {
		return Result{}, err
	}
	result.UpdatedLeads = updatedLeads
	result.Errors = append(result.Errors, errs...)

	s.advanceWatermark(ctx, clientID, newLeads, &result)
	s.publishRecomputed(ctx, clientID, "incremental", result)
	s.log.ScoringRun("incremental", clientID, result.TotalProcessedLeads, result.UpdatedConversionRates, result.UpdatedLeads, len(result.Errors))
	return result, nil
}

// IncrementalForLeadIDs runs an incremental update over an explicit batch of
// lead IDs instead of the watermark-derived one. Callers own the exactly-once
// guarantee for explicit batches; the watermark still advances past the
// batch's newest lead date.
func (s *Service) IncrementalForLeadIDs(ctx context.Context, clientID string, ids []uuid.UUID) (Result, error) {
	if clientID == "" {
		return Result{}, apperr.Validation("clientId is required")
	}
	// An empty ID list must not fall through to an unconstrained filter:
	// that would re-merge the client's entire history and double-count.
	if len(ids) == 0 {
		return Result{}, apperr.Validation("leadIds must not be empty")
	}
	batch, err := s.leads.FindLeads(ctx, LeadFilter{ClientID: clientID, IDs: ids})
	if err != nil {
		return Result{}, apperr.Wrap(apperr.KindUnavailable, "fetch batch leads", err).WithOp("scoring.IncrementalForLeadIDs")
	}
	return s.WeeklyIncrementalUpdate(ctx, clientID, batch)
}

// Rates returns the stored conversion-rate table for a client, ordered by
// key field and key name.
func (s *Service) Rates(ctx context.Context, clientID string) ([]ConversionRate, error) {
	if clientID == "" {
		return nil, apperr.Validation("clientId is required")
	}
	rows, err := s.rates.GetRates(ctx, clientID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "read conversion rates", err).WithOp("scoring.Rates")
	}
	return rows, nil
}

// SyncClient runs an incremental update for one client with the new-leads
// batch derived from the stored watermark. A client that has never been
// aggregated gets a full recompute instead.
func (s *Service) SyncClient(ctx context.Context, clientID string) (Result, error) {
	if clientID == "" {
		return Result{}, apperr.Validation("clientId is required")
	}
	if !s.markRunning(clientID) {
		return Result{}, apperr.Conflict("a scoring run is already in progress for this client")
	}
	defer s.markComplete(clientID)

	mark, err := s.rates.GetWatermark(ctx, clientID)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.KindUnavailable, "read watermark", err).WithOp("scoring.SyncClient")
	}
	if mark == nil {
		return s.fullRecomputeLocked(ctx, clientID)
	}

	newLeads, err := s.leads.FindLeads(ctx, LeadFilter{ClientID: clientID, DateAfter: mark})
	if err != nil {
		return Result{}, apperr.Wrap(apperr.KindUnavailable, "fetch new leads", err).WithOp("scoring.SyncClient")
	}

	return s.incrementalLocked(ctx, clientID, newLeads)
}

// FleetWideIncrementalSync runs SyncClient across every known client.
// One client's failure is recorded and never blocks the others. Clients run
// through a bounded worker pool; the default limit of 1 keeps the original
// strictly sequential behavior.
func (s *Service) FleetWideIncrementalSync(ctx context.Context) (FleetResult, error) {
	clientIDs, err := s.leads.GetDistinctClientIDs(ctx)
	if err != nil {
		return FleetResult{}, apperr.Wrap(apperr.KindUnavailable, "list clients", err).WithOp("scoring.FleetWideIncrementalSync")
	}

	fleet := FleetResult{Errors: []string{}}
	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.fleetParallelism)

	for _, clientID := range clientIDs {
		clientID := clientID
		group.Go(func() error {
			result, err := s.SyncClient(groupCtx, clientID)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				fleet.Errors = append(fleet.Errors, fmt.Sprintf("client %s: %v", clientID, err))
				return nil
			}
			fleet.ProcessedClients++
			fleet.TotalUpdatedRates += result.UpdatedConversionRates
			for _, item := range result.Errors {
				fleet.Errors = append(fleet.Errors, fmt.Sprintf("client %s: %s", clientID, item))
			}
			return nil
		})
	}

	// Workers never return errors; failures are captured per client.
	_ = group.Wait()
	sort.Strings(fleet.Errors)

	s.log.Info("fleet sync complete",
		"processed_clients", fleet.ProcessedClients,
		"updated_rates", fleet.TotalUpdatedRates,
		"errors", len(fleet.Errors))
	return fleet, nil
}

// rescoreLeads reads the authoritative stored table back before planning,
// so scores always reflect what the store persisted rather than what this
// run computed in memory.
func (s *Service) rescoreLeads(ctx context.Context, clientID string, leads []domain.Lead) (int, []string, error) {
	stored, err := s.rates.GetRates(ctx, clientID)
	if err != nil {
		return 0, nil, apperr.Wrap(apperr.KindUnavailable, "read conversion rates", err).WithOp("scoring.rescore")
	}

	plan := PlanUpdates(leads, BuildRateTable(stored), s.weights)
	if len(plan.Writes) == 0 {
		return 0, nil, nil
	}

	written, err := s.leads.BulkWrite(ctx, plan.Writes)
	if err != nil {
		return 0, nil, apperr.Wrap(apperr.KindUnavailable, "bulk write lead scores", err).WithOp("scoring.rescore")
	}
	return written.ModifiedCount, written.Errors, nil
}

// advanceWatermark records the newest lead date folded into the stored
// counters. Only called after a successful upsert: a failed run leaves the
// watermark untouched so the retry re-selects the same batch.
func (s *Service) advanceWatermark(ctx context.Context, clientID string, leads []domain.Lead, result *Result) {
	var newest time.Time
	for _, lead := range leads {
		if lead.LeadDate == "" {
			continue
		}
		parsed, err := domain.ParseLeadDate(lead.LeadDate)
		if err != nil {
			continue
		}
		if parsed.After(newest) {
			newest = parsed
		}
	}
	if newest.IsZero() {
		return
	}

	if err := s.rates.SetWatermark(ctx, clientID, newest); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("advance watermark: %v", err))
	}
}
