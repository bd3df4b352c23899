// Package transport contains request/response DTOs for the leads API.
package transport

import (
	"time"

	"github.com/google/uuid"

	"leadscoring_backend/internal/leads/domain"
)

// UpdateStatusRequest moves a lead through the outcome taxonomy.
// Amounts are pointers so "absent" is distinguishable from zero: an absent
// amount keeps the stored value where the new status permits one.
type UpdateStatusRequest struct {
	Status                string   `json:"status" validate:"required"`
	UnqualifiedLeadReason string   `json:"unqualifiedLeadReason"`
	ProposalAmount        *float64 `json:"proposalAmount" validate:"omitempty,gte=0"`
	JobBookedAmount       *float64 `json:"jobBookedAmount" validate:"omitempty,gte=0"`
}

// StatusHistoryEntryResponse is one entry of a lead's status history.
type StatusHistoryEntryResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// LeadResponse is the API representation of a lead.
type LeadResponse struct {
	ID                    uuid.UUID                    `json:"id"`
	ClientID              string                       `json:"clientId"`
	Service               string                       `json:"service"`
	AdSetName             string                       `json:"adSetName"`
	AdName                string                       `json:"adName"`
	Zip                   string                       `json:"zip"`
	LeadDate              string                       `json:"leadDate"`
	Email                 string                       `json:"email,omitempty"`
	Phone                 string                       `json:"phone,omitempty"`
	Status                string                       `json:"status"`
	UnqualifiedLeadReason string                       `json:"unqualifiedLeadReason,omitempty"`
	ProposalAmount        float64                      `json:"proposalAmount"`
	JobBookedAmount       float64                      `json:"jobBookedAmount"`
	LeadScore             int                          `json:"leadScore"`
	ConversionRates       map[string]float64           `json:"conversionRates,omitempty"`
	StatusHistory         []StatusHistoryEntryResponse `json:"statusHistory"`
	CreatedAt             time.Time                    `json:"createdAt"`
	UpdatedAt             time.Time                    `json:"updatedAt"`
}

// ResetScoresResponse reports how many leads an admin reset touched.
type ResetScoresResponse struct {
	ClientID   string `json:"clientId"`
	ResetCount int64  `json:"resetCount"`
}

// ToLeadResponse maps a domain lead onto the API shape.
func ToLeadResponse(lead domain.Lead) LeadResponse {
	resp := LeadResponse{
		ID:                    lead.ID,
		ClientID:              lead.ClientID,
		Service:               lead.Service,
		AdSetName:             lead.AdSetName,
		AdName:                lead.AdName,
		Zip:                   lead.Zip,
		LeadDate:              lead.LeadDate,
		Email:                 lead.Email,
		Phone:                 lead.Phone,
		Status:                string(lead.Status),
		UnqualifiedLeadReason: lead.UnqualifiedLeadReason,
		ProposalAmount:        lead.ProposalAmount,
		JobBookedAmount:       lead.JobBookedAmount,
		LeadScore:             lead.LeadScore,
		CreatedAt:             lead.CreatedAt,
		UpdatedAt:             lead.UpdatedAt,
	}

	if len(lead.ConversionRates) > 0 {
		resp.ConversionRates = make(map[string]float64, len(lead.ConversionRates))
		for field, rate := range lead.ConversionRates {
			resp.ConversionRates[string(field)] = rate
		}
	}

	resp.StatusHistory = make([]StatusHistoryEntryResponse, 0, len(lead.StatusHistory))
	for _, entry := range lead.StatusHistory {
		resp.StatusHistory = append(resp.StatusHistory, StatusHistoryEntryResponse{
			Status:    string(entry.Status),
			Timestamp: entry.Timestamp,
		})
	}

	return resp
}

// ToLeadResponses maps a slice of domain leads.
func ToLeadResponses(leads []domain.Lead) []LeadResponse {
	out := make([]LeadResponse, 0, len(leads))
	for _, lead := range leads {
		out = append(out, ToLeadResponse(lead))
	}
	return out
}
