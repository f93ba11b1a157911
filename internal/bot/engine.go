// Package bot holds the conversational booking state machine. The engine is
// a transition function over a chat session: given the current step, its
// context and one inbound text, it rewrites the session in place and returns
// the reply to send. All I/O happens behind the AppointmentDeps facade, so
// the machine is testable without transport or storage.
package bot

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"bookline/internal/domain"
	"bookline/internal/models"

	"github.com/rs/zerolog"
)

var datePattern = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)

type Engine struct {
	deps   domain.AppointmentDeps
	logger *zerolog.Logger
}

func NewEngine(deps domain.AppointmentDeps, logger *zerolog.Logger) *Engine {
	return &Engine{deps: deps, logger: logger}
}

// Handle advances the session one turn. The session's step and context are
// always rewritten wholesale; the caller persists the result after every
// turn, including "stay" transitions, so updated_at keeps renewing the TTL.
func (e *Engine) Handle(ctx context.Context, sess *models.ChatSession, input string) string {
	input = strings.TrimSpace(input)

	switch sess.CurrentStep {
	case models.StepWelcome:
		return e.handleWelcome(ctx, sess, input)
	case models.StepSelectService:
		return e.handleSelectService(ctx, sess, input)
	case models.StepSelectDate:
		return e.handleSelectDate(ctx, sess, input)
	case models.StepSelectTime:
		return e.handleSelectTime(ctx, sess, input)
	case models.StepConfirm:
		return e.handleConfirm(ctx, sess, input)
	case models.StepCompleted:
		return e.reset(sess)
	default:
		// Unknown step means a corrupt or legacy session; start over.
		e.logger.Warn().Str("step", sess.CurrentStep).Msg("unknown session step, resetting")
		return e.reset(sess)
	}
}

func (e *Engine) reset(sess *models.ChatSession) string {
	sess.CurrentStep = models.StepWelcome
	sess.Context = models.SessionContext{}
	return replyWelcome
}

func (e *Engine) handleWelcome(ctx context.Context, sess *models.ChatSession, input string) string {
	if input != "1" {
		return replyWelcome
	}

	services, err := e.deps.ListServices(ctx, sess.OrganizationID)
	if err != nil {
		e.logger.Error().Err(err).Str("org_id", sess.OrganizationID).Msg("failed to list services")
		return replyTryAgain
	}
	if len(services) == 0 {
		return replyNoServices
	}

	sess.CurrentStep = models.StepSelectService
	sess.Context = models.SessionContext{AvailableServices: services}
	return serviceListReply(services)
}

func (e *Engine) handleSelectService(ctx context.Context, sess *models.ChatSession, input string) string {
	services := sess.Context.AvailableServices
	idx, ok := parseIndex(input, len(services))
	if !ok {
		return serviceListReply(services)
	}

	sess.CurrentStep = models.StepSelectDate
	sess.Context = models.SessionContext{SelectedServiceID: services[idx].ID}
	return replySelectDate
}

func (e *Engine) handleSelectDate(ctx context.Context, sess *models.ChatSession, input string) string {
	if !datePattern.MatchString(input) {
		return replyInvalidDate
	}
	parsed, err := time.Parse(models.ChatDateLayout, input)
	if err != nil {
		return replyInvalidDate
	}
	isoDate := parsed.Format(models.DateLayout)

	slots := e.deps.ListAvailableSlots(ctx, sess.Context.SelectedServiceID, isoDate, sess.OrganizationID)
	if len(slots) == 0 {
		// The date is not committed to the context on an empty result.
		return replyNoSlots
	}

	starts := make([]string, 0, len(slots))
	for _, slot := range slots {
		starts = append(starts, slot.StartTime.UTC().Format(time.RFC3339))
	}

	sess.CurrentStep = models.StepSelectTime
	sess.Context = models.SessionContext{
		SelectedServiceID: sess.Context.SelectedServiceID,
		SelectedDate:      isoDate,
		AvailableSlots:    starts,
	}
	return slotListReply(starts, e.location(ctx, sess.OrganizationID))
}

func (e *Engine) handleSelectTime(ctx context.Context, sess *models.ChatSession, input string) string {
	slots := sess.Context.AvailableSlots
	loc := e.location(ctx, sess.OrganizationID)

	idx, ok := parseIndex(input, len(slots))
	if !ok {
		return slotListReply(slots, loc)
	}

	sess.CurrentStep = models.StepConfirm
	sess.Context = models.SessionContext{
		SelectedServiceID: sess.Context.SelectedServiceID,
		SelectedDate:      sess.Context.SelectedDate,
		AvailableSlots:    slots,
		SelectedTimeSlot:  slots[idx],
	}
	return confirmReply(e.serviceName(ctx, sess), slots[idx], loc)
}

func (e *Engine) handleConfirm(ctx context.Context, sess *models.ChatSession, input string) string {
	switch input {
	case "1":
		return e.createAppointment(ctx, sess)
	case "2":
		sess.CurrentStep = models.StepWelcome
		sess.Context = models.SessionContext{}
		return replyCancelled
	default:
		return confirmReply(e.serviceName(ctx, sess), sess.Context.SelectedTimeSlot, e.location(ctx, sess.OrganizationID))
	}
}

func (e *Engine) createAppointment(ctx context.Context, sess *models.ChatSession) string {
	start, err := time.Parse(time.RFC3339, sess.Context.SelectedTimeSlot)
	if err == nil {
		var appt *models.Appointment
		appt, err = e.deps.CreateAppointment(ctx, domain.CreateAppointmentInput{
			OrganizationID: sess.OrganizationID,
			ServiceID:      sess.Context.SelectedServiceID,
			StartTime:      start,
			CustomerPhone:  sess.PhoneNumber,
		})
		if err == nil {
			sess.CurrentStep = models.StepCompleted
			sess.Context = models.SessionContext{}
			return bookedReply(appt.ID)
		}
	}

	// Conflict or any failure: the whole slot list for that date is stale,
	// so retreat past select_time straight to select_date.
	e.logger.Warn().Err(err).
		Str("session_id", sess.ID).
		Str("service_id", sess.Context.SelectedServiceID).
		Msg("reservation failed, retreating to date selection")

	sess.CurrentStep = models.StepSelectDate
	sess.Context = models.SessionContext{SelectedServiceID: sess.Context.SelectedServiceID}
	return replySlotTaken
}

// serviceName resolves the selected service's display name for the summary;
// the id is a safe fallback since the list came from the same source.
func (e *Engine) serviceName(ctx context.Context, sess *models.ChatSession) string {
	services, err := e.deps.ListServices(ctx, sess.OrganizationID)
	if err == nil {
		for _, svc := range services {
			if svc.ID == sess.Context.SelectedServiceID {
				return svc.Name
			}
		}
	}
	return sess.Context.SelectedServiceID
}

func (e *Engine) location(ctx context.Context, orgID string) *time.Location {
	loc, err := e.deps.OrganizationLocation(ctx, orgID)
	if err != nil {
		return time.UTC
	}
	return loc
}

// parseIndex converts a 1-based menu answer into a slice index.
func parseIndex(input string, length int) (int, bool) {
	n, err := strconv.Atoi(input)
	if err != nil || n < 1 || n > length {
		return 0, false
	}
	return n - 1, true
}
