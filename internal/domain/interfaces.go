package domain

import (
	"context"
	"time"

	"bookline/internal/models"
)

// CreateAppointmentInput is everything needed to reserve a slot.
type CreateAppointmentInput struct {
	OrganizationID string
	ServiceID      string
	StartTime      time.Time
	CustomerName   string
	CustomerPhone  string
	CustomerEmail  string
}

// AppointmentDeps is the facade through which the conversation engine (and
// the REST surface) consumes the booking primitives.
type AppointmentDeps interface {
	ListServices(ctx context.Context, orgID string) ([]models.ServiceOption, error)
	ListAvailableSlots(ctx context.Context, serviceID, date, orgID string) []models.TimeSlot
	CreateAppointment(ctx context.Context, input CreateAppointmentInput) (*models.Appointment, error)
	OrganizationLocation(ctx context.Context, orgID string) (*time.Location, error)
}

// SessionRepository abstracts chat session storage. Liveness is decided by
// the caller-provided threshold, not by storage TTLs.
type SessionRepository interface {
	FindActive(ctx context.Context, phone, orgID string, threshold time.Time) (*models.ChatSession, error)
	Save(ctx context.Context, session *models.ChatSession) error
	Delete(ctx context.Context, phone, orgID string) error
	DeleteExpired(ctx context.Context, threshold time.Time) (int, error)
	CheckRateLimit(ctx context.Context, phone string, limit int, window time.Duration) (bool, error)
}

// SendResult is the typed outcome of an outbound transport call.
type SendResult struct {
	MessageID string
	Success   bool
}

// MessageSender is the outbound chat transport facade. The organization id
// selects which business phone number the message goes out from. Both
// operations are best-effort with an internal timeout; failures are
// reported, not thrown.
type MessageSender interface {
	SendText(ctx context.Context, orgID, to, body string) (SendResult, error)
	MarkAsRead(ctx context.Context, orgID, messageID string) error
}

// EventPublisher fans out domain events to in-process subscribers.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}
