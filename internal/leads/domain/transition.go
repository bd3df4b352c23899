package domain

import (
	"errors"
	"time"
)

var (
	// ErrUnknownStatus is returned for a status outside the outcome taxonomy.
	ErrUnknownStatus = errors.New("unknown lead status")
	// ErrReasonRequired is returned when a lead enters unqualified without a reason.
	ErrReasonRequired = errors.New("unqualified status requires a reason")
	// ErrNegativeAmount is returned for negative monetary inputs.
	ErrNegativeAmount = errors.New("monetary amounts must be non-negative")
)

// TransitionInput carries a requested status change.
// Nil amounts mean "keep the current value where the new status permits it".
type TransitionInput struct {
	NewStatus         Status
	UnqualifiedReason string
	ProposalAmount    *float64
	JobBookedAmount   *float64
	Now               time.Time
}

// TransitionResult is the outcome of applying a status change to a lead.
type TransitionResult struct {
	Lead Lead
	// Booked is true only on the transition INTO job_booked. Re-applying
	// job_booked to an already-booked lead never sets it, which is what
	// keeps the conversion-event notification exactly-once.
	Booked bool
	// Changed is false when the requested status equals the current one
	// and no monetary field moved.
	Changed bool
}

// ApplyTransition applies the status-change side effects to a copy of lead:
// monetary fields are zeroed whenever the new status does not permit them,
// the unqualified reason is kept only while unqualified, and the status
// history entry for the new status is refreshed. Pure function.
func ApplyTransition(lead Lead, in TransitionInput) (TransitionResult, error) {
	if !in.NewStatus.Valid() {
		return TransitionResult{}, ErrUnknownStatus
	}
	if in.NewStatus == StatusUnqualified && in.UnqualifiedReason == "" {
		return TransitionResult{}, ErrReasonRequired
	}
	if (in.ProposalAmount != nil && *in.ProposalAmount < 0) ||
		(in.JobBookedAmount != nil && *in.JobBookedAmount < 0) {
		return TransitionResult{}, ErrNegativeAmount
	}

	updated := lead
	oldStatus := lead.Status
	updated.Status = in.NewStatus

	if in.NewStatus.AllowsProposalAmount() {
		if in.ProposalAmount != nil {
			updated.ProposalAmount = *in.ProposalAmount
		}
	} else {
		updated.ProposalAmount = 0
	}

	if in.NewStatus.AllowsJobBookedAmount() {
		if in.JobBookedAmount != nil {
			updated.JobBookedAmount = *in.JobBookedAmount
		}
	} else {
		updated.JobBookedAmount = 0
	}

	if in.NewStatus == StatusUnqualified {
		updated.UnqualifiedLeadReason = in.UnqualifiedReason
	} else {
		updated.UnqualifiedLeadReason = ""
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	updated.StatusHistory = append(StatusHistory(nil), lead.StatusHistory...).Apply(in.NewStatus, now)
	updated.UpdatedAt = now

	changed := oldStatus != in.NewStatus ||
		updated.ProposalAmount != lead.ProposalAmount ||
		updated.JobBookedAmount != lead.JobBookedAmount ||
		updated.UnqualifiedLeadReason != lead.UnqualifiedLeadReason

	return TransitionResult{
		Lead:    updated,
		Booked:  in.NewStatus == StatusJobBooked && oldStatus != StatusJobBooked,
		Changed: changed,
	}, nil
}
