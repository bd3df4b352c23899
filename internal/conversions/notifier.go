// Package conversions forwards booked-lead conversion events to an external
// advertising pixel endpoint. The notifier is fire-and-forget: delivery
// failures are logged and never surface back into the lead status update.
package conversions

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Conversion is one booked-lead conversion to report upstream.
type Conversion struct {
	LeadID     uuid.UUID
	ClientID   string
	Email      string
	Phone      string
	Amount     float64
	OccurredAt time.Time
}

// Notifier delivers conversion events to an external destination.
type Notifier interface {
	NotifyConversion(ctx context.Context, conv Conversion) error
}

// NopNotifier discards all conversions. Used when the pixel integration is
// not configured.
type NopNotifier struct{}

func (NopNotifier) NotifyConversion(ctx context.Context, conv Conversion) error { return nil }

var _ Notifier = NopNotifier{}
