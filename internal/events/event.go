// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"github.com/google/uuid"

	"leadscoring_backend/platform/events"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Leads Domain Events
// =============================================================================

// LeadStatusChanged is published after any applied status transition.
type LeadStatusChanged struct {
	BaseEvent
	LeadID    uuid.UUID `json:"leadId"`
	ClientID  string    `json:"clientId"`
	OldStatus string    `json:"oldStatus"`
	NewStatus string    `json:"newStatus"`
}

func (e LeadStatusChanged) EventName() string { return "leads.status.changed" }

// LeadBooked is published exactly once per transition into job_booked.
// The conversions module turns it into an outbound pixel event.
type LeadBooked struct {
	BaseEvent
	LeadID          uuid.UUID `json:"leadId"`
	ClientID        string    `json:"clientId"`
	Email           string    `json:"email,omitempty"`
	Phone           string    `json:"phone,omitempty"`
	JobBookedAmount float64   `json:"jobBookedAmount"`
}

func (e LeadBooked) EventName() string { return "leads.booked" }

// =============================================================================
// Scoring Domain Events
// =============================================================================

// RatesRecomputed is published after a scoring run rewrites a client's
// conversion-rate table.
type RatesRecomputed struct {
	BaseEvent
	ClientID     string `json:"clientId"`
	Mode         string `json:"mode"` // "full" or "incremental"
	UpdatedRates int    `json:"updatedRates"`
	UpdatedLeads int    `json:"updatedLeads"`
}

func (e RatesRecomputed) EventName() string { return "scoring.rates.recomputed" }
