// Package repository persists lead records in Postgres.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"leadscoring_backend/internal/leads/domain"
	"leadscoring_backend/internal/scoring"
)

var ErrNotFound = errors.New("lead not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ScorePatch describes bulk score mutations for UpdateMany.
type ScorePatch struct {
	LeadScore            *int
	ClearConversionRates bool
}

const leadColumns = `
	id, client_id, service, ad_set_name, ad_name, zip,
	to_char(lead_date, 'YYYY-MM-DD'), email, phone, status,
	unqualified_lead_reason, proposal_amount, job_booked_amount,
	lead_score, conversion_rates, status_history, deleted, created_at, updated_at
`

func scanLead(row pgx.Row) (domain.Lead, error) {
	var (
		lead        domain.Lead
		ratesJSON   []byte
		historyJSON []byte
	)

	err := row.Scan(
		&lead.ID, &lead.ClientID, &lead.Service, &lead.AdSetName, &lead.AdName, &lead.Zip,
		&lead.LeadDate, &lead.Email, &lead.Phone, &lead.Status,
		&lead.UnqualifiedLeadReason, &lead.ProposalAmount, &lead.JobBookedAmount,
		&lead.LeadScore, &ratesJSON, &historyJSON, &lead.Deleted, &lead.CreatedAt, &lead.UpdatedAt,
	)
	if err != nil {
		return domain.Lead{}, err
	}

	if len(ratesJSON) > 0 {
		if err := json.Unmarshal(ratesJSON, &lead.ConversionRates); err != nil {
			return domain.Lead{}, fmt.Errorf("decode conversion rates: %w", err)
		}
	}
	if len(historyJSON) > 0 {
		if err := json.Unmarshal(historyJSON, &lead.StatusHistory); err != nil {
			return domain.Lead{}, fmt.Errorf("decode status history: %w", err)
		}
	}

	return lead, nil
}

// GetByID returns one lead, including soft-deleted ones.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	if err != nil {
		return domain.Lead{}, fmt.Errorf("get lead: %w", err)
	}
	return lead, nil
}

// GetLeadsByClientID returns a client's full active lead history.
func (r *Repository) GetLeadsByClientID(ctx context.Context, clientID string) ([]domain.Lead, error) {
	return r.queryLeads(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE client_id = $1 AND deleted = false
		ORDER BY lead_date ASC, id ASC
	`, clientID)
}

// FindLeads returns active leads matching the filter.
func (r *Repository) FindLeads(ctx context.Context, filter scoring.LeadFilter) ([]domain.Lead, error) {
	conditions := []string{"deleted = false"}
	args := []interface{}{}

	if filter.ClientID != "" {
		args = append(args, filter.ClientID)
		conditions = append(conditions, fmt.Sprintf("client_id = $%d", len(args)))
	}
	if len(filter.IDs) > 0 {
		args = append(args, filter.IDs)
		conditions = append(conditions, fmt.Sprintf("id = ANY($%d)", len(args)))
	}
	if filter.DateAfter != nil {
		args = append(args, *filter.DateAfter)
		conditions = append(conditions, fmt.Sprintf("lead_date > $%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, status := range filter.Statuses {
			statuses = append(statuses, string(status))
		}
		args = append(args, statuses)
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)))
	}

	query := `
		SELECT ` + leadColumns + `
		FROM leads
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY lead_date ASC, id ASC
	`
	return r.queryLeads(ctx, query, args...)
}

func (r *Repository) queryLeads(ctx context.Context, query string, args ...interface{}) ([]domain.Lead, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query leads: %w", err)
	}
	defer rows.Close()

	leads := make([]domain.Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		leads = append(leads, lead)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("query leads: %w", rows.Err())
	}

	return leads, nil
}

// GetDistinctClientIDs enumerates every tenant with at least one active lead.
func (r *Repository) GetDistinctClientIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT client_id
		FROM leads
		WHERE deleted = false
		ORDER BY client_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("distinct client ids: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan client id: %w", err)
		}
		ids = append(ids, id)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("distinct client ids: %w", rows.Err())
	}

	return ids, nil
}

// BulkWrite applies score updates as independent per-row UPDATEs inside one
// batch round trip. A failing row is recorded in the result's Errors and
// does not abort the remaining rows.
func (r *Repository) BulkWrite(ctx context.Context, updates []scoring.LeadUpdate) (scoring.BulkWriteResult, error) {
	if len(updates) == 0 {
		return scoring.BulkWriteResult{Errors: []string{}}, nil
	}

	batch := &pgx.Batch{}
	for _, update := range updates {
		ratesJSON, err := json.Marshal(update.ConversionRates)
		if err != nil {
			return scoring.BulkWriteResult{}, fmt.Errorf("encode conversion rates: %w", err)
		}
		batch.Queue(`
			UPDATE leads
			SET lead_score = $2, conversion_rates = $3, updated_at = NOW()
			WHERE id = $1
		`, update.ID, update.LeadScore, ratesJSON)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	out := scoring.BulkWriteResult{Errors: []string{}}
	for _, update := range updates {
		tag, err := results.Exec()
		if err != nil {
			out.Errors = append(out.Errors, fmt.Sprintf("lead %s: %v", update.ID, err))
			continue
		}
		out.ModifiedCount += int(tag.RowsAffected())
	}

	return out, nil
}

// UpdateMany applies one patch to every lead matching the filter and
// returns the number of modified rows.
func (r *Repository) UpdateMany(ctx context.Context, filter scoring.LeadFilter, patch ScorePatch) (int64, error) {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{}

	if patch.LeadScore != nil {
		args = append(args, *patch.LeadScore)
		sets = append(sets, fmt.Sprintf("lead_score = $%d", len(args)))
	}
	if patch.ClearConversionRates {
		sets = append(sets, "conversion_rates = '{}'::jsonb")
	}

	conditions := []string{"deleted = false"}
	if filter.ClientID != "" {
		args = append(args, filter.ClientID)
		conditions = append(conditions, fmt.Sprintf("client_id = $%d", len(args)))
	}
	if len(filter.IDs) > 0 {
		args = append(args, filter.IDs)
		conditions = append(conditions, fmt.Sprintf("id = ANY($%d)", len(args)))
	}
	if filter.DateAfter != nil {
		args = append(args, *filter.DateAfter)
		conditions = append(conditions, fmt.Sprintf("lead_date > $%d", len(args)))
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET `+strings.Join(sets, ", ")+`
		WHERE `+strings.Join(conditions, " AND "), args...)
	if err != nil {
		return 0, fmt.Errorf("update many leads: %w", err)
	}

	return tag.RowsAffected(), nil
}

// UpdateOutcome persists the result of a status transition.
func (r *Repository) UpdateOutcome(ctx context.Context, lead domain.Lead) (domain.Lead, error) {
	historyJSON, err := json.Marshal(lead.StatusHistory)
	if err != nil {
		return domain.Lead{}, fmt.Errorf("encode status history: %w", err)
	}

	updated, err := scanLead(r.pool.QueryRow(ctx, `
		UPDATE leads
		SET status = $2,
			unqualified_lead_reason = $3,
			proposal_amount = $4,
			job_booked_amount = $5,
			status_history = $6,
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+leadColumns+`
	`, lead.ID, lead.Status, lead.UnqualifiedLeadReason, lead.ProposalAmount, lead.JobBookedAmount, historyJSON))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	if err != nil {
		return domain.Lead{}, fmt.Errorf("update lead outcome: %w", err)
	}

	return updated, nil
}
