// Package scoring implements the conversion-rate and lead-score engine:
// per-dimension aggregation of lead outcomes, additive incremental merging,
// weighted lead scoring, and diff-based write planning, composed by the
// orchestrating Service.
package scoring

import (
	"math"

	"leadscoring_backend/internal/leads/domain"
)

// ConversionRate is one aggregate row keyed by (clientID, keyField, keyName).
//
// PastTotalCount is the number of decided leads matching the key,
// PastTotalEst the decided-positive subset. ConversionRate is always
// derived from the two counters, never stored independently.
type ConversionRate struct {
	ClientID       string
	KeyField       domain.KeyField
	KeyName        string
	ConversionRate float64
	PastTotalCount int
	PastTotalEst   int
}

// RateKey identifies one conversion-rate row within a client.
type RateKey struct {
	Field domain.KeyField
	Name  string
}

// RateTable maps rate keys to their conversion rate for fast scoring lookups.
type RateTable map[RateKey]float64

// BuildRateTable indexes stored rate rows for scoring.
func BuildRateTable(rows []ConversionRate) RateTable {
	table := make(RateTable, len(rows))
	for _, row := range rows {
		table[RateKey{Field: row.KeyField, Name: row.KeyName}] = row.ConversionRate
	}
	return table
}

// deriveRate computes est/count rounded to two decimal places, the single
// rounding rule applied everywhere a rate is produced. Zero denominator
// yields zero.
func deriveRate(est, count int) float64 {
	if count == 0 {
		return 0
	}
	return math.Round(float64(est)/float64(count)*100) / 100
}
