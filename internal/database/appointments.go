package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bookline/internal/models"
)

const appointmentColumns = `id, organization_id, service_id, start_datetime, end_datetime,
       status, customer_name, customer_phone, COALESCE(customer_email, ''),
       management_token, reminder_pending, created_at, updated_at`

func scanAppointment(row interface{ Scan(...any) error }) (*models.Appointment, error) {
	var a models.Appointment
	var startStr, endStr string
	err := row.Scan(
		&a.ID, &a.OrganizationID, &a.ServiceID, &startStr, &endStr,
		&a.Status, &a.CustomerName, &a.CustomerPhone, &a.CustomerEmail,
		&a.ManagementToken, &a.ReminderPending, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if a.StartDatetime, err = parseTime(startStr); err != nil {
		return nil, fmt.Errorf("failed to parse start_datetime %s: %w", startStr, err)
	}
	if a.EndDatetime, err = parseTime(endStr); err != nil {
		return nil, fmt.Errorf("failed to parse end_datetime %s: %w", endStr, err)
	}
	return &a, nil
}

// overlapQuery counts non-cancelled appointments for a service whose
// half-open interval intersects [start, end). Strings compare correctly
// because instants are stored as fixed-width UTC RFC3339.
const overlapQuery = `SELECT COUNT(*) FROM appointments
    WHERE service_id = ? AND status != ? AND start_datetime < ? AND end_datetime > ?`

// CreateAppointmentTx inserts an appointment after re-checking for an
// overlapping non-cancelled appointment inside the same transaction. The
// availability read and the insert are otherwise separated by network
// latency, so this re-check is the only race-free guard.
func (db *DB) CreateAppointmentTx(ctx context.Context, appt *models.Appointment) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var overlapping int
	err = tx.QueryRowContext(ctx, overlapQuery,
		appt.ServiceID, models.StatusCancelled,
		formatTime(appt.EndDatetime), formatTime(appt.StartDatetime)).Scan(&overlapping)
	if err != nil {
		return fmt.Errorf("failed to check conflicts in tx: %w", err)
	}
	if overlapping > 0 {
		return ErrConflict
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO appointments (
            id, organization_id, service_id, start_datetime, end_datetime,
            status, customer_name, customer_phone, customer_email,
            management_token, reminder_pending, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		appt.ID, appt.OrganizationID, appt.ServiceID,
		formatTime(appt.StartDatetime), formatTime(appt.EndDatetime),
		appt.Status, appt.CustomerName, appt.CustomerPhone, appt.CustomerEmail,
		appt.ManagementToken, appt.ReminderPending, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert appointment in tx: %w", err)
	}
	appt.CreatedAt = now
	appt.UpdatedAt = now

	return tx.Commit()
}

// RescheduleAppointmentTx moves an appointment to a new interval. Allowed
// only while the appointment is pending or confirmed and still in the
// future; the conflict re-check excludes the appointment's own row. A
// successful move clears the pending-reminder marker.
func (db *DB) RescheduleAppointmentTx(ctx context.Context, id string, newStart, newEnd, now time.Time) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var serviceID, status, startStr string
	err = tx.QueryRowContext(ctx,
		`SELECT service_id, status, start_datetime FROM appointments WHERE id = ?`, id).
		Scan(&serviceID, &status, &startStr)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load appointment in tx: %w", err)
	}

	currentStart, err := parseTime(startStr)
	if err != nil {
		return fmt.Errorf("failed to parse start_datetime %s: %w", startStr, err)
	}
	if !models.IsCancellable(status) || !currentStart.After(now) {
		return ErrNotReschedulable
	}

	var overlapping int
	err = tx.QueryRowContext(ctx,
		overlapQuery+` AND id != ?`,
		serviceID, models.StatusCancelled, formatTime(newEnd), formatTime(newStart), id).
		Scan(&overlapping)
	if err != nil {
		return fmt.Errorf("failed to check conflicts in tx: %w", err)
	}
	if overlapping > 0 {
		return ErrConflict
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE appointments SET start_datetime = ?, end_datetime = ?, reminder_pending = 0, updated_at = ? WHERE id = ?`,
		formatTime(newStart), formatTime(newEnd), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update appointment interval: %w", err)
	}

	return tx.Commit()
}

// UpdateAppointmentStatus applies a guarded status transition. Any edge
// outside the allowed graph leaves the row unchanged and reports
// ErrInvalidTransition, which is distinct from ErrNotFound.
func (db *DB) UpdateAppointmentStatus(ctx context.Context, id, newStatus string) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM appointments WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load appointment status: %w", err)
	}

	if !models.CanTransition(current, newStatus) {
		return ErrInvalidTransition
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE appointments SET status = ?, updated_at = ? WHERE id = ?`,
		newStatus, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update appointment status: %w", err)
	}

	return tx.Commit()
}

func (db *DB) GetAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	appt, err := scanAppointment(db.db.QueryRowContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return appt, nil
}

func (db *DB) GetAppointmentByToken(ctx context.Context, token string) (*models.Appointment, error) {
	appt, err := scanAppointment(db.db.QueryRowContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE management_token = ?`, token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment by token: %w", err)
	}
	return appt, nil
}

// ListAppointmentsInRange returns non-cancelled appointments for a service
// whose UTC interval intersects [from, to).
func (db *DB) ListAppointmentsInRange(ctx context.Context, serviceID string, from, to time.Time) ([]*models.Appointment, error) {
	rows, err := db.db.QueryContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments
         WHERE service_id = ? AND status != ? AND start_datetime < ? AND end_datetime > ?
         ORDER BY start_datetime`,
		serviceID, models.StatusCancelled, formatTime(to), formatTime(from))
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	defer rows.Close()

	var appts []*models.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		appts = append(appts, appt)
	}
	return appts, rows.Err()
}

// ListAppointmentsByDateRange returns appointments for an organization
// overlapping [from, to), any status, for exports.
func (db *DB) ListAppointmentsByDateRange(ctx context.Context, orgID string, from, to time.Time) ([]*models.Appointment, error) {
	rows, err := db.db.QueryContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments
         WHERE organization_id = ? AND start_datetime < ? AND end_datetime > ?
         ORDER BY start_datetime`,
		orgID, formatTime(to), formatTime(from))
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments by range: %w", err)
	}
	defer rows.Close()

	var appts []*models.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		appts = append(appts, appt)
	}
	return appts, rows.Err()
}
