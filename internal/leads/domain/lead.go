// Package domain holds the lead model and outcome taxonomy shared by the
// scoring engine and the lead-management surfaces.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is a lead's outcome status.
type Status string

const (
	StatusNew               Status = "new"
	StatusInProgress        Status = "in_progress"
	StatusEstimateSet       Status = "estimate_set"
	StatusVirtualQuote      Status = "virtual_quote"
	StatusProposalPresented Status = "proposal_presented"
	StatusJobBooked         Status = "job_booked"
	StatusUnqualified       Status = "unqualified"
	StatusEstimateCanceled  Status = "estimate_canceled"
	StatusJobLost           Status = "job_lost"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusInProgress,
		StatusEstimateSet, StatusVirtualQuote, StatusProposalPresented, StatusJobBooked,
		StatusUnqualified, StatusEstimateCanceled, StatusJobLost:
		return true
	}
	return false
}

// Positive reports whether s is a decided-positive outcome. Positive leads
// count toward both the numerator and denominator of conversion rates.
func (s Status) Positive() bool {
	switch s {
	case StatusEstimateSet, StatusVirtualQuote, StatusProposalPresented, StatusJobBooked:
		return true
	}
	return false
}

// Negative reports whether s is a decided-negative outcome.
func (s Status) Negative() bool {
	switch s {
	case StatusUnqualified, StatusEstimateCanceled, StatusJobLost:
		return true
	}
	return false
}

// Decided reports whether the lead has a decided outcome. Neutral leads
// (new, in_progress) contribute nothing to conversion counters.
func (s Status) Decided() bool {
	return s.Positive() || s.Negative()
}

// AllowsProposalAmount reports whether a proposal amount is meaningful for s.
func (s Status) AllowsProposalAmount() bool {
	return s == StatusProposalPresented || s == StatusJobBooked
}

// AllowsJobBookedAmount reports whether a booked amount is meaningful for s.
func (s Status) AllowsJobBookedAmount() bool {
	return s == StatusJobBooked
}

// KeyField is a scoring dimension.
type KeyField string

const (
	KeyService   KeyField = "service"
	KeyAdSetName KeyField = "adSetName"
	KeyAdName    KeyField = "adName"
	KeyLeadDate  KeyField = "leadDate"
	KeyZip       KeyField = "zip"
)

// KeyFields returns all scoring dimensions in canonical order.
func KeyFields() []KeyField {
	return []KeyField{KeyService, KeyAdSetName, KeyAdName, KeyLeadDate, KeyZip}
}

// ValidKeyField reports whether f names a scoring dimension.
func ValidKeyField(f KeyField) bool {
	for _, known := range KeyFields() {
		if f == known {
			return true
		}
	}
	return false
}

// RateSnapshot is a lead's last-computed conversion rate per dimension.
// It mirrors the ConversionRateStore state as of the lead's last scoring
// run, not necessarily the current one.
type RateSnapshot map[KeyField]float64

// Equal compares two snapshots by value.
func (s RateSnapshot) Equal(other RateSnapshot) bool {
	if len(s) != len(other) {
		return false
	}
	for field, value := range s {
		if other[field] != value {
			return false
		}
	}
	return true
}

// StatusHistoryEntry records the most recent time a lead held a status.
type StatusHistoryEntry struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusHistory is a set of entries unique by status; the latest timestamp
// wins. It is not a full transition log.
type StatusHistory []StatusHistoryEntry

// Apply records that the lead holds status at ts, replacing any earlier
// entry for the same status.
func (h StatusHistory) Apply(status Status, ts time.Time) StatusHistory {
	for i, entry := range h {
		if entry.Status == status {
			if ts.After(entry.Timestamp) {
				h[i].Timestamp = ts
			}
			return h
		}
	}
	return append(h, StatusHistoryEntry{Status: status, Timestamp: ts})
}

// Lead is one marketing inquiry with an outcome status.
type Lead struct {
	ID                    uuid.UUID
	ClientID              string
	Service               string
	AdSetName             string
	AdName                string
	Zip                   string
	LeadDate              string // ISO calendar date, e.g. "2026-03-14"
	Email                 string
	Phone                 string
	Status                Status
	UnqualifiedLeadReason string
	ProposalAmount        float64
	JobBookedAmount       float64
	LeadScore             int
	ConversionRates       RateSnapshot
	StatusHistory         StatusHistory
	Deleted               bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// ParseLeadDate parses an ISO lead date. Ingestion sometimes delivers full
// timestamps, so the RFC3339 form is accepted as well. Every consumer of
// lead dates (month bucketing, watermark advancement) goes through this one
// parser so the accepted formats stay in lockstep.
func ParseLeadDate(isoDate string) (time.Time, error) {
	parsed, err := time.Parse("2006-01-02", isoDate)
	if err == nil {
		return parsed, nil
	}
	parsed, err = time.Parse(time.RFC3339, isoDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse lead date %q: %w", isoDate, err)
	}
	return parsed, nil
}

// MonthKey derives the calendar-month key name from an ISO lead date.
// Conversion rates along the leadDate dimension are seasonal: they collapse
// all years into twelve month buckets ("January" .. "December").
func MonthKey(isoDate string) (string, error) {
	if isoDate == "" {
		return "", nil
	}

	parsed, err := ParseLeadDate(isoDate)
	if err != nil {
		return "", err
	}

	return parsed.Month().String(), nil
}

// DimensionValue returns the lead's key name for the given dimension.
// Values are not case-normalized: exact display values are preserved and
// consistent casing is the ingestion pipeline's responsibility.
func (l Lead) DimensionValue(field KeyField) (string, error) {
	switch field {
	case KeyService:
		return l.Service, nil
	case KeyAdSetName:
		return l.AdSetName, nil
	case KeyAdName:
		return l.AdName, nil
	case KeyZip:
		return l.Zip, nil
	case KeyLeadDate:
		return MonthKey(l.LeadDate)
	default:
		return "", fmt.Errorf("unknown key field %q", field)
	}
}
