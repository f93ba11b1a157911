package models

import "time"

// Organization is a tenant that publishes bookable services. Seeded from
// config; read-only at runtime.
type Organization struct {
	ID                    string `yaml:"id" json:"id"`
	Slug                  string `yaml:"slug" json:"slug"`
	Name                  string `yaml:"name" json:"name"`
	Timezone              string `yaml:"timezone" json:"timezone"`
	WhatsAppPhoneNumberID string `yaml:"whatsapp_phone_number_id" json:"whatsapp_phone_number_id"`
}

type Service struct {
	ID              string `yaml:"id" json:"id"`
	OrganizationID  string `yaml:"-" json:"organization_id"`
	Name            string `yaml:"name" json:"name"`
	DurationMinutes int    `yaml:"duration_minutes" json:"duration_minutes"`
	Active          bool   `yaml:"active" json:"active"`
}

// ServiceOption is the minimal service view offered to a chat user.
type ServiceOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Schedule is the recurring availability for one weekday.
type Schedule struct {
	ID             int64
	OrganizationID string
	Weekday        time.Weekday
	Active         bool
	Periods        []SchedulePeriod
}

// SchedulePeriod is a local time-of-day window ("HH:MM") within a weekday
// schedule during which services are bookable.
type SchedulePeriod struct {
	Start string `yaml:"start" json:"start"`
	End   string `yaml:"end" json:"end"`
}

// TimeBlock is an ad hoc exclusion for a specific calendar date, expressed in
// local time-of-day.
type TimeBlock struct {
	OrganizationID string `yaml:"-" json:"organization_id"`
	Date           string `yaml:"date" json:"date"`
	Start          string `yaml:"start" json:"start"`
	End            string `yaml:"end" json:"end"`
	Reason         string `yaml:"reason" json:"reason,omitempty"`
}

type Appointment struct {
	ID              string    `json:"id"`
	OrganizationID  string    `json:"organization_id"`
	ServiceID       string    `json:"service_id"`
	StartDatetime   time.Time `json:"start_datetime"`
	EndDatetime     time.Time `json:"end_datetime"`
	Status          string    `json:"status"`
	CustomerName    string    `json:"customer_name"`
	CustomerPhone   string    `json:"customer_phone"`
	CustomerEmail   string    `json:"customer_email,omitempty"`
	ManagementToken string    `json:"-"`
	ReminderPending bool      `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TimeSlot is a candidate reservable interval. Ephemeral: regenerated on
// every availability query, never persisted.
type TimeSlot struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}
