// Package worker holds the background loops: the notification worker that
// delivers appointment messages over WhatsApp and the session sweeper.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bookline/internal/domain"
	"bookline/internal/events"

	"github.com/rs/zerolog"
)

type notifyTask struct {
	eventType string
	payload   events.AppointmentEventPayload
}

// Notifier consumes appointment events and sends the customer a WhatsApp
// message for each. Delivery is retried with backoff and dropped after the
// policy is exhausted; a lost notification never affects the appointment.
type Notifier struct {
	sender domain.MessageSender
	retry  RetryPolicy
	queue  chan notifyTask
	logger *zerolog.Logger

	sleep func(ctx context.Context, d time.Duration)
}

func NewNotifier(sender domain.MessageSender, retry RetryPolicy, logger *zerolog.Logger) *Notifier {
	if retry.MaxAttempts == 0 {
		retry = DefaultRetryPolicy()
	}
	return &Notifier{
		sender: sender,
		retry:  retry,
		queue:  make(chan notifyTask, 128),
		logger: logger,
		sleep:  sleepCtx,
	}
}

// SubscribeTo registers the notifier on the bus for all appointment events.
func (n *Notifier) SubscribeTo(bus *events.EventBus) {
	for _, eventType := range []string{
		events.EventAppointmentCreated,
		events.EventAppointmentRescheduled,
		events.EventAppointmentStatusChanged,
	} {
		et := eventType
		bus.Subscribe(et, func(e *events.Event) error {
			return n.enqueue(et, e.Payload)
		})
	}
}

func (n *Notifier) enqueue(eventType string, raw []byte) error {
	var payload events.AppointmentEventPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("decode event payload: %w", err)
	}
	if payload.CustomerPhone == "" {
		return nil
	}

	select {
	case n.queue <- notifyTask{eventType: eventType, payload: payload}:
	default:
		n.logger.Warn().
			Str("event", eventType).
			Str("appointment_id", payload.AppointmentID).
			Msg("notification queue full, dropping")
	}
	return nil
}

// Start runs the delivery loop until ctx is done.
func (n *Notifier) Start(ctx context.Context) {
	n.logger.Info().Msg("notification worker started")
	defer n.logger.Info().Msg("notification worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case task := <-n.queue:
			n.deliver(ctx, task)
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, task notifyTask) {
	body := n.messageFor(task)
	if body == "" {
		return
	}

	for attempt := 1; attempt <= n.retry.MaxAttempts; attempt++ {
		_, err := n.sender.SendText(ctx, task.payload.OrgID, task.payload.CustomerPhone, body)
		if err == nil {
			return
		}

		n.logger.Warn().Err(err).
			Int("attempt", attempt).
			Str("appointment_id", task.payload.AppointmentID).
			Msg("notification delivery failed")

		if attempt == n.retry.MaxAttempts || ctx.Err() != nil {
			break
		}
		n.sleep(ctx, n.retry.NextDelay(attempt))
	}

	n.logger.Error().
		Str("appointment_id", task.payload.AppointmentID).
		Str("event", task.eventType).
		Msg("notification dropped after retries")
}

func (n *Notifier) messageFor(task notifyTask) string {
	when := task.payload.Start.Format("Mon 02/01/2006 15:04 MST")

	switch task.eventType {
	case events.EventAppointmentCreated:
		return fmt.Sprintf("We received your booking %s for %s. We'll message you when it's confirmed.",
			task.payload.AppointmentID, when)
	case events.EventAppointmentRescheduled:
		return fmt.Sprintf("Your booking %s was moved to %s.", task.payload.AppointmentID, when)
	case events.EventAppointmentStatusChanged:
		switch task.payload.Status {
		case "confirmed":
			return fmt.Sprintf("Your booking %s for %s is confirmed. See you then!",
				task.payload.AppointmentID, when)
		case "cancelled":
			return fmt.Sprintf("Your booking %s was cancelled.", task.payload.AppointmentID)
		default:
			// completed and no_show need no customer message.
			return ""
		}
	}
	return ""
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
