package scoring

import (
	"fmt"
	"sort"

	"leadscoring_backend/internal/leads/domain"
)

type rateCounters struct {
	count int
	est   int
}

// Aggregate computes conversion counters for every distinct non-empty
// dimension value present in leads. Input is expected to be pre-filtered
// to one client. Pure function: no I/O, no shared caches.
//
// Neutral leads (new, in_progress) register dimension values but contribute
// nothing to the counters. Leads whose leadDate cannot be parsed into a
// month are skipped entirely and reported as warnings; a data-quality
// problem in one lead never aborts the aggregation.
func Aggregate(leads []domain.Lead, clientID string) ([]ConversionRate, []string) {
	counters := make(map[RateKey]*rateCounters)
	var warnings []string

	for _, lead := range leads {
		if lead.Deleted {
			continue
		}

		month, err := domain.MonthKey(lead.LeadDate)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("lead %s skipped: %v", lead.ID, err))
			continue
		}

		decided := lead.Status.Decided()
		positive := lead.Status.Positive()

		for _, field := range domain.KeyFields() {
			var value string
			if field == domain.KeyLeadDate {
				value = month
			} else {
				value, _ = lead.DimensionValue(field)
			}
			if value == "" {
				continue
			}

			key := RateKey{Field: field, Name: value}
			entry := counters[key]
			if entry == nil {
				entry = &rateCounters{}
				counters[key] = entry
			}
			if decided {
				entry.count++
				if positive {
					entry.est++
				}
			}
		}
	}

	rows := make([]ConversionRate, 0, len(counters))
	for key, entry := range counters {
		rows = append(rows, ConversionRate{
			ClientID:       clientID,
			KeyField:       key.Field,
			KeyName:        key.Name,
			ConversionRate: deriveRate(entry.est, entry.count),
			PastTotalCount: entry.count,
			PastTotalEst:   entry.est,
		})
	}

	// Map iteration order is random; keep output deterministic for callers
	// and tests.
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].KeyField != rows[j].KeyField {
			return rows[i].KeyField < rows[j].KeyField
		}
		return rows[i].KeyName < rows[j].KeyName
	})

	return rows, warnings
}
