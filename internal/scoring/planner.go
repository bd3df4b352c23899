package scoring

import (
	"github.com/google/uuid"

	"leadscoring_backend/internal/leads/domain"
)

// LeadUpdate is one pending write bringing a lead's stored snapshot and
// score in sync with the current rate table.
type LeadUpdate struct {
	ID              uuid.UUID
	LeadScore       int
	ConversionRates domain.RateSnapshot
}

// Plan is the minimal write set for one scoring run.
type Plan struct {
	Writes          []LeadUpdate
	ConsideredCount int
	ChangedCount    int
}

// PlanUpdates scores every lead against the rate table and emits a write
// only where the candidate snapshot or score differs from what the lead
// already stores. Leads already consistent produce no write, which is what
// makes repeated full recomputes cheap: a second run over unchanged inputs
// plans zero writes.
func PlanUpdates(leads []domain.Lead, table RateTable, weights Weights) Plan {
	plan := Plan{ConsideredCount: len(leads)}

	for _, lead := range leads {
		snapshot, score := Score(lead, table, weights)
		if score == lead.LeadScore && snapshot.Equal(lead.ConversionRates) {
			continue
		}
		plan.Writes = append(plan.Writes, LeadUpdate{
			ID:              lead.ID,
			LeadScore:       score,
			ConversionRates: snapshot,
		})
		plan.ChangedCount++
	}

	return plan
}
