// Package repository persists conversion-rate rows and per-client sync
// watermarks in Postgres.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"leadscoring_backend/internal/scoring"
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Ensure Repository implements the scoring engine's store port.
var _ scoring.RateStore = (*Repository)(nil)

// GetRates returns every stored rate row for one client.
func (r *Repository) GetRates(ctx context.Context, clientID string) ([]scoring.ConversionRate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT client_id, key_field, key_name, conversion_rate, past_total_count, past_total_est
		FROM conversion_rates
		WHERE client_id = $1
		ORDER BY key_field ASC, key_name ASC
	`, clientID)
	if err != nil {
		return nil, fmt.Errorf("get conversion rates: %w", err)
	}
	defer rows.Close()

	items := make([]scoring.ConversionRate, 0)
	for rows.Next() {
		var item scoring.ConversionRate
		if err := rows.Scan(&item.ClientID, &item.KeyField, &item.KeyName, &item.ConversionRate, &item.PastTotalCount, &item.PastTotalEst); err != nil {
			return nil, fmt.Errorf("scan conversion rate: %w", err)
		}
		items = append(items, item)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("get conversion rates: %w", rows.Err())
	}

	return items, nil
}

// BatchUpsert writes rate rows as independent per-row upserts. Stored
// counters are set to the provided values (the caller has already merged
// when merging is wanted). Rows keep their identity forever: this layer
// never deletes a conversion-rate row.
func (r *Repository) BatchUpsert(ctx context.Context, rateRows []scoring.ConversionRate) (scoring.UpsertResult, error) {
	if len(rateRows) == 0 {
		return scoring.UpsertResult{}, nil
	}

	batch := &pgx.Batch{}
	for _, row := range rateRows {
		batch.Queue(`
			INSERT INTO conversion_rates (client_id, key_field, key_name, conversion_rate, past_total_count, past_total_est, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())
			ON CONFLICT (client_id, key_field, key_name) DO UPDATE SET
				conversion_rate = EXCLUDED.conversion_rate,
				past_total_count = EXCLUDED.past_total_count,
				past_total_est = EXCLUDED.past_total_est,
				updated_at = NOW()
			RETURNING (xmax = 0) AS inserted
		`, row.ClientID, row.KeyField, row.KeyName, row.ConversionRate, row.PastTotalCount, row.PastTotalEst)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	var out scoring.UpsertResult
	for range rateRows {
		var inserted bool
		if err := results.QueryRow().Scan(&inserted); err != nil {
			return scoring.UpsertResult{}, fmt.Errorf("upsert conversion rate: %w", err)
		}
		out.Total++
		if inserted {
			out.NewInserts++
		} else {
			out.Updated++
		}
	}

	return out, nil
}

// GetWatermark returns the client's last processed lead date, or nil when
// the client has never been aggregated.
func (r *Repository) GetWatermark(ctx context.Context, clientID string) (*time.Time, error) {
	var mark time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT last_processed_date
		FROM scoring_watermarks
		WHERE client_id = $1
	`, clientID).Scan(&mark)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get watermark: %w", err)
	}
	return &mark, nil
}

// SetWatermark records the newest lead date folded into the stored counters.
// The watermark only moves forward.
func (r *Repository) SetWatermark(ctx context.Context, clientID string, mark time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO scoring_watermarks (client_id, last_processed_date, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (client_id) DO UPDATE SET
			last_processed_date = GREATEST(scoring_watermarks.last_processed_date, EXCLUDED.last_processed_date),
			updated_at = NOW()
	`, clientID, mark)
	if err != nil {
		return fmt.Errorf("set watermark: %w", err)
	}
	return nil
}
