package scoring

import (
	"context"
	"testing"

	"leadscoring_backend/internal/leads/domain"
	"leadscoring_backend/platform/apperr"
	"leadscoring_backend/platform/logger"
)

type stubScoringConfig struct {
	weights     map[string]float64
	parallelism int
}

func (c stubScoringConfig) GetScoringWeights() map[string]float64 { return c.weights }
func (c stubScoringConfig) GetFleetSyncParallelism() int          { return c.parallelism }

func TestNewModuleRunsAgainstInjectedStores(t *testing.T) {
	leads := newFakeLeadStore()
	rates := newFakeRateStore()
	leads.leads["c1"] = []domain.Lead{
		makeLead("Roofing", "set-a", "ad-1", "30301", "2026-01-05", domain.StatusEstimateSet),
	}

	cfg := stubScoringConfig{
		weights: map[string]float64{
			"service": 20, "adSetName": 20, "adName": 20, "leadDate": 20, "zip": 20,
		},
		parallelism: 1,
	}

	mod, err := NewModule(leads, rates, cfg, nil, nil, logger.New("test"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mod.Name() != "scoring" {
		t.Fatalf("unexpected module name %q", mod.Name())
	}

	result, err := mod.Service().FullRecompute(context.Background(), "c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.UpdatedConversionRates == 0 {
		t.Fatal("expected recompute to reach the injected rate store")
	}
	if len(rates.upserts) == 0 {
		t.Fatal("expected rate rows written through the injected store")
	}
}

func TestNewModuleRejectsInvalidWeights(t *testing.T) {
	cfg := stubScoringConfig{
		weights: map[string]float64{
			"service": 20, "adSetName": 20, "adName": 20, "leadDate": 20, "zip": 10,
		},
		parallelism: 1,
	}

	_, err := NewModule(newFakeLeadStore(), newFakeRateStore(), cfg, nil, nil, logger.New("test"))
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for weights not summing to 100, got %v", err)
	}
}
