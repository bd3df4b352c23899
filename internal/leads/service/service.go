// Package service holds lead lifecycle logic: reads, status transitions,
// and the booking notification that feeds the conversions module.
package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"leadscoring_backend/internal/events"
	"leadscoring_backend/internal/leads/domain"
	"leadscoring_backend/internal/leads/repository"
	"leadscoring_backend/internal/leads/transport"
	"leadscoring_backend/internal/scoring"
	"leadscoring_backend/platform/apperr"
	"leadscoring_backend/platform/logger"
)

// Repository defines the data access this service needs.
type Repository interface {
	repository.LeadReader
	repository.ScoreWriter
	repository.OutcomeWriter
}

// Service handles lead operations.
type Service struct {
	repo Repository
	bus  events.Bus
	log  *logger.Logger
}

// New creates a lead service.
func New(repo Repository, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, bus: bus, log: log}
}

// GetByID retrieves a single lead.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.LeadResponse, error) {
	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.LeadResponse{}, apperr.NotFound("lead not found")
		}
		return transport.LeadResponse{}, err
	}
	return transport.ToLeadResponse(lead), nil
}

// List returns all non-deleted leads for a client.
func (s *Service) List(ctx context.Context, clientID string) ([]transport.LeadResponse, error) {
	leads, err := s.repo.GetLeadsByClientID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return transport.ToLeadResponses(leads), nil
}

// UpdateStatus applies a status transition to a lead. The transition rules
// live in the domain package; this method loads, applies, persists, and
// publishes. Status-change notifications are fire-and-forget: a slow or
// failing subscriber never rolls back the persisted transition.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, req transport.UpdateStatusRequest) (transport.LeadResponse, error) {
	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.LeadResponse{}, apperr.NotFound("lead not found")
		}
		return transport.LeadResponse{}, err
	}

	result, err := domain.ApplyTransition(lead, domain.TransitionInput{
		NewStatus:         domain.Status(req.Status),
		UnqualifiedReason: req.UnqualifiedLeadReason,
		ProposalAmount:    req.ProposalAmount,
		JobBookedAmount:   req.JobBookedAmount,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUnknownStatus):
			return transport.LeadResponse{}, apperr.Validation("unknown status: " + req.Status)
		case errors.Is(err, domain.ErrReasonRequired):
			return transport.LeadResponse{}, apperr.Validation("unqualifiedLeadReason is required for status unqualified")
		case errors.Is(err, domain.ErrNegativeAmount):
			return transport.LeadResponse{}, apperr.Validation("amounts must be non-negative")
		default:
			return transport.LeadResponse{}, err
		}
	}

	if !result.Changed {
		return transport.ToLeadResponse(lead), nil
	}

	updated, err := s.repo.UpdateOutcome(ctx, result.Lead)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.LeadResponse{}, apperr.NotFound("lead not found")
		}
		return transport.LeadResponse{}, err
	}

	s.bus.Publish(ctx, events.LeadStatusChanged{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    updated.ID,
		ClientID:  updated.ClientID,
		OldStatus: string(lead.Status),
		NewStatus: string(updated.Status),
	})

	// Booked is set only on the transition into job_booked, which keeps
	// the conversion notification at most once per lead.
	if result.Booked {
		s.bus.Publish(ctx, events.LeadBooked{
			BaseEvent:       events.NewBaseEvent(),
			LeadID:          updated.ID,
			ClientID:        updated.ClientID,
			Email:           updated.Email,
			Phone:           updated.Phone,
			JobBookedAmount: updated.JobBookedAmount,
		})
	}

	return transport.ToLeadResponse(updated), nil
}

// ResetScores clears the stored score and rate snapshot for every lead of a
// client. Used before re-seeding a tenant, so the next full recompute starts
// from a clean slate.
func (s *Service) ResetScores(ctx context.Context, clientID string) (transport.ResetScoresResponse, error) {
	zero := 0
	count, err := s.repo.UpdateMany(ctx, scoring.LeadFilter{ClientID: clientID}, repository.ScorePatch{
		LeadScore:            &zero,
		ClearConversionRates: true,
	})
	if err != nil {
		return transport.ResetScoresResponse{}, err
	}
	return transport.ResetScoresResponse{ClientID: clientID, ResetCount: count}, nil
}
