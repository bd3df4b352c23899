package scoring

import (
	"context"
	"time"

	"github.com/google/uuid"

	"leadscoring_backend/internal/leads/domain"
)

// LeadFilter narrows lead queries. Zero values mean "no constraint".
type LeadFilter struct {
	ClientID  string
	IDs       []uuid.UUID
	DateAfter *time.Time
	Statuses  []domain.Status
}

// BulkWriteResult reports the outcome of a batched lead write. The batch is
// a set of independent per-row operations; rows that failed are surfaced in
// Errors while the rest still count toward ModifiedCount.
type BulkWriteResult struct {
	ModifiedCount int
	Errors        []string
}

// UpsertResult reports the outcome of a conversion-rate batch upsert.
type UpsertResult struct {
	Total      int
	NewInserts int
	Updated    int
}

// LeadStore is the lead persistence collaborator.
type LeadStore interface {
	GetLeadsByClientID(ctx context.Context, clientID string) ([]domain.Lead, error)
	FindLeads(ctx context.Context, filter LeadFilter) ([]domain.Lead, error)
	BulkWrite(ctx context.Context, updates []LeadUpdate) (BulkWriteResult, error)
	GetDistinctClientIDs(ctx context.Context) ([]string, error)
}

// RateStore is the conversion-rate persistence collaborator. Watermarks
// record, per client, the newest lead date already folded into the stored
// counters, so a retried incremental run selects a fresh batch instead of
// double-counting.
type RateStore interface {
	GetRates(ctx context.Context, clientID string) ([]ConversionRate, error)
	BatchUpsert(ctx context.Context, rows []ConversionRate) (UpsertResult, error)
	GetWatermark(ctx context.Context, clientID string) (*time.Time, error)
	SetWatermark(ctx context.Context, clientID string, mark time.Time) error
}
