package models

import "time"

// SessionContext carries the partial selections accumulated by the chat
// flow. Which fields are populated depends on the current step; every turn
// replaces the whole context, never merges into it.
type SessionContext struct {
	AvailableServices []ServiceOption `json:"available_services,omitempty"`
	SelectedServiceID string          `json:"selected_service_id,omitempty"`
	SelectedDate      string          `json:"selected_date,omitempty"`
	AvailableSlots    []string        `json:"available_slots,omitempty"`
	SelectedTimeSlot  string          `json:"selected_time_slot,omitempty"`
}

// ChatSession is one customer's in-flight booking conversation. UpdatedAt
// doubles as the TTL clock: a session older than SessionTTL is treated as
// nonexistent even though the record may still be stored.
type ChatSession struct {
	ID             string         `json:"id"`
	PhoneNumber    string         `json:"phone_number"`
	OrganizationID string         `json:"organization_id"`
	CurrentStep    string         `json:"current_step"`
	Context        SessionContext `json:"context"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Expired reports whether the session's UpdatedAt falls outside the TTL
// window relative to now.
func (s *ChatSession) Expired(now time.Time) bool {
	return s.UpdatedAt.Before(now.Add(-SessionTTL))
}
