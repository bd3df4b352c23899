package scoring

import (
	"testing"

	"leadscoring_backend/internal/leads/domain"
)

func TestPlanUpdatesEmitsWriteForChangedScore(t *testing.T) {
	lead := makeLead("Roofing", "set-a", "ad-1", "30301", "2026-01-05", domain.StatusNew)
	table := RateTable{
		{Field: domain.KeyService, Name: "Roofing"}: 0.5,
	}

	plan := PlanUpdates([]domain.Lead{lead}, table, evenWeights())
	if plan.ConsideredCount != 1 || plan.ChangedCount != 1 {
		t.Fatalf("expected 1 considered / 1 changed, got %d/%d", plan.ConsideredCount, plan.ChangedCount)
	}
	if len(plan.Writes) != 1 {
		t.Fatalf("expected one write, got %d", len(plan.Writes))
	}
	if plan.Writes[0].LeadScore != 10 {
		t.Fatalf("expected planned score 10, got %d", plan.Writes[0].LeadScore)
	}
}

// A second planning pass over the written state emits nothing: planning is
// idempotent against an unchanged rate table.
func TestPlanUpdatesSecondPassIsEmpty(t *testing.T) {
	lead := makeLead("Roofing", "set-a", "ad-1", "30301", "2026-01-05", domain.StatusNew)
	table := RateTable{
		{Field: domain.KeyService, Name: "Roofing"}: 0.5,
		{Field: domain.KeyZip, Name: "30301"}:       0.25,
	}

	first := PlanUpdates([]domain.Lead{lead}, table, evenWeights())
	if len(first.Writes) != 1 {
		t.Fatalf("expected one write on first pass, got %d", len(first.Writes))
	}

	lead.LeadScore = first.Writes[0].LeadScore
	lead.ConversionRates = first.Writes[0].ConversionRates

	second := PlanUpdates([]domain.Lead{lead}, table, evenWeights())
	if len(second.Writes) != 0 || second.ChangedCount != 0 {
		t.Fatalf("expected empty second plan, got %d writes", len(second.Writes))
	}
	if second.ConsideredCount != 1 {
		t.Fatalf("expected the lead still considered, got %d", second.ConsideredCount)
	}
}

func TestPlanUpdatesDetectsSnapshotDriftAtEqualScore(t *testing.T) {
	lead := makeLead("Roofing", "set-a", "ad-1", "30301", "2026-01-05", domain.StatusNew)
	// Stored snapshot disagrees with the table in two places that cancel
	// out in the weighted sum; the plan must still rewrite the snapshot.
	lead.LeadScore = 10
	lead.ConversionRates = domain.RateSnapshot{
		domain.KeyService:   0,
		domain.KeyAdSetName: 0.5,
		domain.KeyAdName:    0,
		domain.KeyLeadDate:  0,
		domain.KeyZip:       0,
	}
	table := RateTable{
		{Field: domain.KeyService, Name: "Roofing"}: 0.5,
	}

	plan := PlanUpdates([]domain.Lead{lead}, table, evenWeights())
	if len(plan.Writes) != 1 {
		t.Fatalf("expected snapshot drift to force a write, got %d", len(plan.Writes))
	}
}

func TestPlanUpdatesOnlyChangedLeadsWritten(t *testing.T) {
	table := RateTable{
		{Field: domain.KeyService, Name: "Roofing"}: 0.5,
	}

	stale := makeLead("Roofing", "set-a", "ad-1", "30301", "2026-01-05", domain.StatusNew)

	fresh := makeLead("Roofing", "set-a", "ad-1", "30301", "2026-01-05", domain.StatusNew)
	snapshot, score := Score(fresh, table, evenWeights())
	fresh.ConversionRates = snapshot
	fresh.LeadScore = score

	plan := PlanUpdates([]domain.Lead{stale, fresh}, table, evenWeights())
	if plan.ConsideredCount != 2 {
		t.Fatalf("expected 2 considered, got %d", plan.ConsideredCount)
	}
	if len(plan.Writes) != 1 || plan.Writes[0].ID != stale.ID {
		t.Fatalf("expected only the stale lead written, got %+v", plan.Writes)
	}
}
