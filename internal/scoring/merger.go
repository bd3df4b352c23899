package scoring

// Merge additively combines freshly-aggregated counters into previously
// stored ones. Existing rows without a counterpart in incoming pass through
// unchanged; incoming rows without a counterpart become new rows verbatim;
// matching rows sum their counters and re-derive the rate.
//
// Merge is commutative and associative across disjoint lead batches, but it
// is NOT idempotent: merging the same batch twice double-counts. The
// orchestrator's watermark guarantees each lead lands in exactly one batch.
func Merge(existing, incoming []ConversionRate) []ConversionRate {
	incomingByKey := make(map[RateKey]ConversionRate, len(incoming))
	for _, row := range incoming {
		incomingByKey[RateKey{Field: row.KeyField, Name: row.KeyName}] = row
	}

	merged := make([]ConversionRate, 0, len(existing)+len(incoming))
	seen := make(map[RateKey]bool, len(existing))

	for _, row := range existing {
		key := RateKey{Field: row.KeyField, Name: row.KeyName}
		seen[key] = true

		update, ok := incomingByKey[key]
		if !ok {
			merged = append(merged, row)
			continue
		}

		count := row.PastTotalCount + update.PastTotalCount
		est := row.PastTotalEst + update.PastTotalEst
		merged = append(merged, ConversionRate{
			ClientID:       row.ClientID,
			KeyField:       row.KeyField,
			KeyName:        row.KeyName,
			ConversionRate: deriveRate(est, count),
			PastTotalCount: count,
			PastTotalEst:   est,
		})
	}

	for _, row := range incoming {
		if !seen[RateKey{Field: row.KeyField, Name: row.KeyName}] {
			merged = append(merged, row)
		}
	}

	return merged
}

// MergedKeys returns the subset of merged rows whose key appears in
// incoming. These are the only rows an incremental run needs to write back.
func MergedKeys(merged, incoming []ConversionRate) []ConversionRate {
	touched := make(map[RateKey]bool, len(incoming))
	for _, row := range incoming {
		touched[RateKey{Field: row.KeyField, Name: row.KeyName}] = true
	}

	out := make([]ConversionRate, 0, len(incoming))
	for _, row := range merged {
		if touched[RateKey{Field: row.KeyField, Name: row.KeyName}] {
			out = append(out, row)
		}
	}
	return out
}
