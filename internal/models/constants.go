package models

import "time"

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
	StatusNoShow    = "no_show"
)

const (
	StepWelcome       = "welcome"
	StepSelectService = "select_service"
	StepSelectDate    = "select_date"
	StepSelectTime    = "select_time"
	StepConfirm       = "confirm"
	StepCompleted     = "completed"
)

const (
	// SessionTTL is the inactivity window after which a chat session is
	// treated as expired even if its record still exists.
	SessionTTL = 30 * time.Minute

	// SessionRedisTTL is the physical lifetime of a session key in Redis.
	// Liveness is decided by UpdatedAt against SessionTTL on every read;
	// this only bounds how long dead keys linger before the sweep.
	SessionRedisTTL = 24 * time.Hour

	// RateLimitMessages is the default number of chat messages allowed per window.
	RateLimitMessages = 20

	// RateLimitWindow is the default chat rate limit window in seconds.
	RateLimitWindow = 60
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// ChatDateLayout is the format customers type into the chat.
const ChatDateLayout = "02/01/2006"

var allowedTransitions = map[string][]string{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusNoShow, StatusCancelled},
}

// CanTransition reports whether an appointment may move from one status to
// another. Cancelled, completed and no_show are terminal.
func CanTransition(from, to string) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsCancellable reports whether an appointment in the given status may still
// be cancelled or rescheduled.
func IsCancellable(status string) bool {
	return status == StatusPending || status == StatusConfirmed
}
