package scoring

import (
	"fmt"
	"math"

	"leadscoring_backend/internal/leads/domain"
)

// Weights maps each scoring dimension to its share of the 0-100 scale.
// Different scoring policies weight dimensions very differently (zip-heavy
// vs. evenly split), so weights are configuration, never a constant.
type Weights map[domain.KeyField]float64

// Validate checks that every dimension is covered, no weight is negative,
// and the weights sum to 100 (within floating-point tolerance). With rates
// in [0,1] this bounds the weighted sum to [0,100] by construction.
func (w Weights) Validate() error {
	var sum float64
	for _, field := range domain.KeyFields() {
		weight, ok := w[field]
		if !ok {
			return fmt.Errorf("missing weight for dimension %q", field)
		}
		if weight < 0 {
			return fmt.Errorf("weight for dimension %q must be non-negative", field)
		}
		sum += weight
	}
	if math.Abs(sum-100) > 1e-6 {
		return fmt.Errorf("weights must sum to 100, got %.4f", sum)
	}
	return nil
}

// WeightsFromConfig converts the string-keyed configuration form.
func WeightsFromConfig(raw map[string]float64) (Weights, error) {
	w := make(Weights, len(raw))
	for name, value := range raw {
		field := domain.KeyField(name)
		if !domain.ValidKeyField(field) {
			return nil, fmt.Errorf("unknown scoring dimension %q", name)
		}
		w[field] = value
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}

// Score combines the client's stored rate table with one lead's dimension
// values into a snapshot and a 0-100 score. A dimension whose value is
// empty, unparseable, or absent from the table contributes rate 0.
// Pure function; no I/O.
func Score(lead domain.Lead, table RateTable, weights Weights) (domain.RateSnapshot, int) {
	snapshot := make(domain.RateSnapshot, len(domain.KeyFields()))
	var weightedSum float64

	for _, field := range domain.KeyFields() {
		var value float64
		if name, err := lead.DimensionValue(field); err == nil && name != "" {
			value = table[RateKey{Field: field, Name: name}]
		}
		snapshot[field] = value
		weightedSum += value * weights[field]
	}

	score := int(math.Round(math.Min(math.Max(weightedSum, 0), 100)))
	return snapshot, score
}
