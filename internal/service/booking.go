package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bookline/internal/database"
	"bookline/internal/domain"
	"bookline/internal/events"
	"bookline/internal/metrics"
	"bookline/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BookingService owns appointment writes: race-free creation, reschedule
// and the guarded status graph. Notification side effects go through the
// event bus and can never roll back a committed reservation.
type BookingService struct {
	db     *database.DB
	events domain.EventPublisher
	logger *zerolog.Logger
	now    func() time.Time
}

func NewBookingService(db *database.DB, eventBus domain.EventPublisher, logger *zerolog.Logger) *BookingService {
	return &BookingService{
		db:     db,
		events: eventBus,
		logger: logger,
		now:    time.Now,
	}
}

func (s *BookingService) CreateAppointment(ctx context.Context, input domain.CreateAppointmentInput) (*models.Appointment, error) {
	svc, err := s.db.GetService(ctx, input.ServiceID)
	if err != nil {
		return nil, err
	}
	if !svc.Active || svc.OrganizationID != input.OrganizationID {
		return nil, database.ErrNotFound
	}

	start := input.StartTime.UTC()
	appt := &models.Appointment{
		ID:              uuid.New().String(),
		OrganizationID:  input.OrganizationID,
		ServiceID:       input.ServiceID,
		StartDatetime:   start,
		EndDatetime:     start.Add(time.Duration(svc.DurationMinutes) * time.Minute),
		Status:          models.StatusPending,
		CustomerName:    input.CustomerName,
		CustomerPhone:   input.CustomerPhone,
		CustomerEmail:   input.CustomerEmail,
		ManagementToken: uuid.New().String(),
		ReminderPending: true,
	}

	if err := s.db.CreateAppointmentTx(ctx, appt); err != nil {
		if errors.Is(err, database.ErrConflict) {
			metrics.IncReservationConflict()
		}
		return nil, err
	}

	metrics.IncAppointmentCreated()
	s.logger.Info().
		Str("appointment_id", appt.ID).
		Str("service_id", appt.ServiceID).
		Time("start", appt.StartDatetime).
		Msg("appointment created")

	s.publish(events.EventAppointmentCreated, appt)
	return appt, nil
}

// Reschedule moves an appointment to a new start while it is still pending
// or confirmed and in the future. The conflict re-check excludes the
// appointment's own row.
func (s *BookingService) Reschedule(ctx context.Context, appointmentID string, newStart time.Time) error {
	appt, err := s.db.GetAppointment(ctx, appointmentID)
	if err != nil {
		return err
	}

	svc, err := s.db.GetService(ctx, appt.ServiceID)
	if err != nil {
		return fmt.Errorf("failed to resolve service for reschedule: %w", err)
	}

	start := newStart.UTC()
	end := start.Add(time.Duration(svc.DurationMinutes) * time.Minute)
	if err := s.db.RescheduleAppointmentTx(ctx, appointmentID, start, end, s.now()); err != nil {
		return err
	}

	s.logger.Info().
		Str("appointment_id", appointmentID).
		Time("new_start", start).
		Msg("appointment rescheduled")

	appt.StartDatetime = start
	appt.EndDatetime = end
	s.publish(events.EventAppointmentRescheduled, appt)
	return nil
}

// UpdateStatus applies one edge of the status graph. Disallowed edges
// report database.ErrInvalidTransition, distinct from not-found.
func (s *BookingService) UpdateStatus(ctx context.Context, appointmentID, status string) error {
	if err := s.db.UpdateAppointmentStatus(ctx, appointmentID, status); err != nil {
		return err
	}

	s.logger.Info().
		Str("appointment_id", appointmentID).
		Str("status", status).
		Msg("appointment status changed")

	if appt, err := s.db.GetAppointment(ctx, appointmentID); err == nil {
		s.publish(events.EventAppointmentStatusChanged, appt)
	}
	return nil
}

// CancelByToken lets a customer cancel through the unguessable management
// token from their confirmation.
func (s *BookingService) CancelByToken(ctx context.Context, token string) (*models.Appointment, error) {
	appt, err := s.db.GetAppointmentByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := s.UpdateStatus(ctx, appt.ID, models.StatusCancelled); err != nil {
		return nil, err
	}
	appt.Status = models.StatusCancelled
	return appt, nil
}

func (s *BookingService) GetByToken(ctx context.Context, token string) (*models.Appointment, error) {
	return s.db.GetAppointmentByToken(ctx, token)
}

func (s *BookingService) ListServices(ctx context.Context, orgID string) ([]models.ServiceOption, error) {
	services, err := s.db.ListActiveServices(ctx, orgID)
	if err != nil {
		return nil, err
	}
	options := make([]models.ServiceOption, 0, len(services))
	for _, svc := range services {
		options = append(options, models.ServiceOption{ID: svc.ID, Name: svc.Name})
	}
	return options, nil
}

func (s *BookingService) OrganizationLocation(ctx context.Context, orgID string) (*time.Location, error) {
	org, err := s.db.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return time.LoadLocation(org.Timezone)
}

// publish is fire-and-forget: a failed event emission is logged and never
// surfaces to the caller.
func (s *BookingService) publish(eventType string, appt *models.Appointment) {
	if s.events == nil {
		return
	}
	payload := events.AppointmentEventPayload{
		AppointmentID: appt.ID,
		OrgID:         appt.OrganizationID,
		ServiceID:     appt.ServiceID,
		Status:        appt.Status,
		Start:         appt.StartDatetime,
		End:           appt.EndDatetime,
		CustomerPhone: appt.CustomerPhone,
		CustomerName:  appt.CustomerName,
	}
	if err := s.events.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Str("appointment_id", appt.ID).Msg("failed to publish event")
	}
}

// AppointmentFacade bundles the read and write primitives behind the
// domain.AppointmentDeps interface consumed by the conversation engine.
type AppointmentFacade struct {
	*BookingService
	availability *AvailabilityService
}

func NewAppointmentFacade(booking *BookingService, availability *AvailabilityService) *AppointmentFacade {
	return &AppointmentFacade{BookingService: booking, availability: availability}
}

func (f *AppointmentFacade) ListAvailableSlots(ctx context.Context, serviceID, date, orgID string) []models.TimeSlot {
	return f.availability.ListAvailableSlots(ctx, serviceID, date, orgID)
}
