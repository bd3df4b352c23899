package repository

import (
	"context"

	"github.com/google/uuid"

	"leadscoring_backend/internal/leads/domain"
	"leadscoring_backend/internal/scoring"
)

// =====================================
// Segregated Interfaces (Interface Segregation Principle)
// =====================================

// LeadReader provides read-only access to lead data.
type LeadReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error)
	GetLeadsByClientID(ctx context.Context, clientID string) ([]domain.Lead, error)
	FindLeads(ctx context.Context, filter scoring.LeadFilter) ([]domain.Lead, error)
	GetDistinctClientIDs(ctx context.Context) ([]string, error)
}

// ScoreWriter persists scoring output back onto leads.
type ScoreWriter interface {
	BulkWrite(ctx context.Context, updates []scoring.LeadUpdate) (scoring.BulkWriteResult, error)
	UpdateMany(ctx context.Context, filter scoring.LeadFilter, patch ScorePatch) (int64, error)
}

// OutcomeWriter persists status-transition results.
type OutcomeWriter interface {
	UpdateOutcome(ctx context.Context, lead domain.Lead) (domain.Lead, error)
}

// =====================================
// Composite Interface
// =====================================

// LeadsRepository defines the complete interface for lead data operations.
type LeadsRepository interface {
	LeadReader
	ScoreWriter
	OutcomeWriter
}

// Ensure Repository implements LeadsRepository
var _ LeadsRepository = (*Repository)(nil)

// Ensure Repository satisfies the scoring engine's store port.
var _ scoring.LeadStore = (*Repository)(nil)
