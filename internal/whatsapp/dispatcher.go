package whatsapp

import (
	"context"
	"time"

	"bookline/internal/bot"
	"bookline/internal/domain"
	"bookline/internal/metrics"
	"bookline/internal/service"

	"github.com/rs/zerolog"
)

// Dispatcher walks a webhook batch and runs each inbound message through the
// conversation engine. One failing message never blocks the rest of the
// batch, and the webhook handler acknowledges regardless of outcomes.
type Dispatcher struct {
	sessions  *service.SessionService
	engine    *bot.Engine
	sender    domain.MessageSender
	orgByPNID map[string]string
	rateLimit int
	rateWin   time.Duration
	logger    *zerolog.Logger
}

func NewDispatcher(
	sessions *service.SessionService,
	engine *bot.Engine,
	sender domain.MessageSender,
	orgByPhoneNumberID map[string]string,
	rateLimit int,
	rateWindow time.Duration,
	logger *zerolog.Logger,
) *Dispatcher {
	return &Dispatcher{
		sessions:  sessions,
		engine:    engine,
		sender:    sender,
		orgByPNID: orgByPhoneNumberID,
		rateLimit: rateLimit,
		rateWin:   rateWindow,
		logger:    logger,
	}
}

// Dispatch processes every message in the payload. Statuses are counted and
// dropped; messages on an unrecognized phone_number_id are logged and
// skipped.
func (d *Dispatcher) Dispatch(ctx context.Context, payload *WebhookPayload) {
	for _, entry := range payload.Entries {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}

			for range change.Value.Statuses {
				metrics.IncWebhookMessage("status")
			}

			orgID, ok := d.orgByPNID[change.Value.Metadata.PhoneNumberID]
			if !ok {
				if len(change.Value.Messages) > 0 {
					d.logger.Warn().
						Str("phone_number_id", change.Value.Metadata.PhoneNumberID).
						Msg("webhook for unknown phone number id")
				}
				continue
			}

			for i := range change.Value.Messages {
				d.handleMessage(ctx, orgID, &change.Value.Messages[i])
			}
		}
	}
}

func (d *Dispatcher) handleMessage(ctx context.Context, orgID string, msg *Message) {
	text, ok := msg.InboundText()
	if !ok {
		// Unsupported types are dropped without a read receipt.
		metrics.IncWebhookMessage("dropped")
		return
	}
	metrics.IncWebhookMessage(msg.Type)

	if err := d.sender.MarkAsRead(ctx, orgID, msg.ID); err != nil {
		d.logger.Debug().Err(err).Str("message_id", msg.ID).Msg("mark as read failed")
	}

	allowed, err := d.sessions.CheckRateLimit(ctx, msg.From, d.rateLimit, d.rateWin)
	if err != nil {
		d.logger.Error().Err(err).Str("from", msg.From).Msg("rate limit check failed")
	} else if !allowed {
		d.reply(ctx, orgID, msg.From, bot.ReplySlowDown)
		return
	}

	sess, created, err := d.sessions.ResolveOrCreate(ctx, msg.From, orgID)
	if err != nil {
		d.logger.Error().Err(err).Str("from", msg.From).Msg("session resolution failed")
		return
	}
	if created {
		d.logger.Info().Str("session_id", sess.ID).Str("org_id", orgID).Msg("new chat session")
	}

	replyText := d.engine.Handle(ctx, sess, text)

	// Persist after every turn, stays included, so updated_at renews the TTL.
	if err := d.sessions.Update(ctx, sess); err != nil {
		d.logger.Error().Err(err).Str("session_id", sess.ID).Msg("failed to persist session")
	}

	d.reply(ctx, orgID, msg.From, replyText)
}

func (d *Dispatcher) reply(ctx context.Context, orgID, to, body string) {
	if _, err := d.sender.SendText(ctx, orgID, to, body); err != nil {
		d.logger.Error().Err(err).Str("to", to).Msg("failed to send reply")
	}
}
