package conversions

import (
	"context"

	"leadscoring_backend/internal/events"
	"leadscoring_backend/platform/config"
	"leadscoring_backend/platform/logger"
)

// Module wires the conversion notifier to the event bus. It has no HTTP
// surface; delivery happens entirely in reaction to LeadBooked events.
type Module struct {
	notifier Notifier
	log      *logger.Logger
}

// NewModule subscribes the notifier to LeadBooked events. With the pixel
// integration unconfigured, bookings are logged and dropped.
func NewModule(cfg config.ConversionsConfig, eventBus events.Bus, log *logger.Logger) *Module {
	var notifier Notifier = NopNotifier{}
	if client := NewPixelClient(cfg, log); client != nil {
		notifier = client
	} else {
		log.Info("conversion pixel not configured; booked-lead notifications disabled")
	}

	m := &Module{notifier: notifier, log: log}

	eventBus.Subscribe(events.LeadBooked{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.LeadBooked)
		if !ok {
			return nil
		}
		return m.handleBooked(ctx, e)
	}))

	return m
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "conversions"
}

func (m *Module) handleBooked(ctx context.Context, e events.LeadBooked) error {
	err := m.notifier.NotifyConversion(ctx, Conversion{
		LeadID:     e.LeadID,
		ClientID:   e.ClientID,
		Email:      e.Email,
		Phone:      e.Phone,
		Amount:     e.JobBookedAmount,
		OccurredAt: e.OccurredAt(),
	})
	if err != nil {
		// Delivery is best effort; the booking itself already committed.
		m.log.Error("conversion notification failed", "error", err, "leadId", e.LeadID)
	}
	return nil
}
