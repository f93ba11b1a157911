package database

import "errors"

var (
	// ErrConflict means the requested interval overlaps a non-cancelled
	// appointment for the same service.
	ErrConflict = errors.New("appointment interval conflict")

	// ErrInvalidTransition means the requested status change is not an
	// allowed edge in the appointment status graph.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNotFound means the referenced row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNotReschedulable means the appointment is no longer in a state
	// (or time) that permits moving its interval.
	ErrNotReschedulable = errors.New("appointment cannot be rescheduled")
)
