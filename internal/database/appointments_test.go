package database

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"bookline/internal/config"
	"bookline/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(zerolog.NewConsoleWriter())
	dbPath := filepath.Join(t.TempDir(), "bookline.db")
	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	err = db.SeedCatalog(context.Background(), []config.OrganizationConfig{
		{
			Organization: models.Organization{
				ID:       "org-1",
				Slug:     "acme-salon",
				Name:     "Acme Salon",
				Timezone: "America/Sao_Paulo",
			},
			Services: []models.Service{
				{ID: "svc-1", Name: "Haircut", DurationMinutes: 30, Active: true},
			},
			Schedule: map[string][]models.SchedulePeriod{
				"friday": {{Start: "09:00", End: "12:00"}},
			},
		},
	})
	require.NoError(t, err)
	return db
}

func testAppointment(start, end time.Time) *models.Appointment {
	return &models.Appointment{
		ID:              uuid.New().String(),
		OrganizationID:  "org-1",
		ServiceID:       "svc-1",
		StartDatetime:   start,
		EndDatetime:     end,
		Status:          models.StatusPending,
		CustomerName:    "Maria",
		CustomerPhone:   "5511999990000",
		ManagementToken: uuid.New().String(),
		ReminderPending: true,
	}
}

func TestCreateAppointmentConflict(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	start := time.Date(2026, 2, 20, 14, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)

	require.NoError(t, db.CreateAppointmentTx(ctx, testAppointment(start, end)))

	// Exact same interval conflicts.
	err := db.CreateAppointmentTx(ctx, testAppointment(start, end))
	assert.ErrorIs(t, err, ErrConflict)

	// Partial overlap conflicts.
	err = db.CreateAppointmentTx(ctx, testAppointment(start.Add(15*time.Minute), end.Add(15*time.Minute)))
	assert.ErrorIs(t, err, ErrConflict)

	// Touching edge does not conflict.
	err = db.CreateAppointmentTx(ctx, testAppointment(end, end.Add(30*time.Minute)))
	assert.NoError(t, err)
}

func TestCreateAppointmentIgnoresCancelled(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	start := time.Date(2026, 2, 20, 14, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)

	first := testAppointment(start, end)
	require.NoError(t, db.CreateAppointmentTx(ctx, first))
	require.NoError(t, db.UpdateAppointmentStatus(ctx, first.ID, models.StatusCancelled))

	// Cancelled appointments free their interval.
	assert.NoError(t, db.CreateAppointmentTx(ctx, testAppointment(start, end)))
}

func TestConcurrentCreateExactlyOneWins(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	start := time.Date(2026, 2, 20, 14, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)

	const numGoroutines = 10
	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	results := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			results <- db.CreateAppointmentTx(ctx, testAppointment(start, end))
		}()
	}

	wg.Wait()
	close(results)

	successCount := 0
	conflictCount := 0
	for err := range results {
		switch {
		case err == nil:
			successCount++
		default:
			conflictCount++
		}
	}

	assert.Equal(t, 1, successCount, "exactly one booking should win the interval")
	assert.Equal(t, numGoroutines-1, conflictCount)

	appts, err := db.ListAppointmentsInRange(ctx, "svc-1", start, end)
	require.NoError(t, err)
	assert.Len(t, appts, 1, "no overlapping row may persist")
}

func TestStatusTransitionGuard(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	statuses := []string{
		models.StatusPending, models.StatusConfirmed, models.StatusCancelled,
		models.StatusCompleted, models.StatusNoShow,
	}

	// Every (from, to) pair outside the allowed edges must leave the stored
	// status unchanged and report ErrInvalidTransition.
	for _, from := range statuses {
		for _, to := range statuses {
			start := time.Date(2027, 3, 1, 9, 0, 0, 0, time.UTC)
			appt := testAppointment(start, start.Add(30*time.Minute))
			appt.Status = from
			// Insert directly so terminal statuses can be set up.
			_, err := db.db.ExecContext(ctx,
				`INSERT INTO appointments (id, organization_id, service_id, start_datetime, end_datetime,
                 status, customer_name, customer_phone, management_token)
                 VALUES (?, 'org-1', 'svc-2', '2027-03-01T09:00:00Z', '2027-03-01T09:30:00Z', ?, 'x', 'y', ?)`,
				appt.ID, from, appt.ManagementToken)
			require.NoError(t, err)

			err = db.UpdateAppointmentStatus(ctx, appt.ID, to)
			stored, getErr := db.GetAppointment(ctx, appt.ID)
			require.NoError(t, getErr)

			if models.CanTransition(from, to) {
				assert.NoError(t, err, "%s -> %s", from, to)
				assert.Equal(t, to, stored.Status)
			} else {
				assert.ErrorIs(t, err, ErrInvalidTransition, "%s -> %s", from, to)
				assert.Equal(t, from, stored.Status, "%s -> %s must not change stored status", from, to)
			}
		}
	}

	err := db.UpdateAppointmentStatus(ctx, "missing-id", models.StatusConfirmed)
	assert.ErrorIs(t, err, ErrNotFound, "not found must stay distinct from invalid transition")
}

func TestRescheduleAppointment(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 2, 19, 12, 0, 0, 0, time.UTC)

	start := time.Date(2026, 2, 20, 14, 0, 0, 0, time.UTC)
	appt := testAppointment(start, start.Add(30*time.Minute))
	require.NoError(t, db.CreateAppointmentTx(ctx, appt))

	blocker := testAppointment(start.Add(2*time.Hour), start.Add(2*time.Hour+30*time.Minute))
	require.NoError(t, db.CreateAppointmentTx(ctx, blocker))

	t.Run("ConflictWithOtherRow", func(t *testing.T) {
		err := db.RescheduleAppointmentTx(ctx, appt.ID, blocker.StartDatetime, blocker.EndDatetime, now)
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("OwnRowExcluded", func(t *testing.T) {
		// Shifting within the old interval must not conflict with itself.
		newStart := start.Add(15 * time.Minute)
		err := db.RescheduleAppointmentTx(ctx, appt.ID, newStart, newStart.Add(30*time.Minute), now)
		require.NoError(t, err)

		stored, err := db.GetAppointment(ctx, appt.ID)
		require.NoError(t, err)
		assert.True(t, stored.StartDatetime.Equal(newStart))
		assert.False(t, stored.ReminderPending, "reschedule clears the pending reminder marker")
	})

	t.Run("PastAppointment", func(t *testing.T) {
		late := now.Add(48 * time.Hour)
		err := db.RescheduleAppointmentTx(ctx, appt.ID, start.Add(4*time.Hour), start.Add(4*time.Hour+30*time.Minute), late)
		assert.ErrorIs(t, err, ErrNotReschedulable)
	})

	t.Run("TerminalStatus", func(t *testing.T) {
		require.NoError(t, db.UpdateAppointmentStatus(ctx, blocker.ID, models.StatusCancelled))
		err := db.RescheduleAppointmentTx(ctx, blocker.ID, start.Add(6*time.Hour), start.Add(6*time.Hour+30*time.Minute), now)
		assert.ErrorIs(t, err, ErrNotReschedulable)
	})

	t.Run("NotFound", func(t *testing.T) {
		err := db.RescheduleAppointmentTx(ctx, "missing", start, start.Add(30*time.Minute), now)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCatalogQueries(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	org, err := db.GetOrganizationBySlug(ctx, "acme-salon")
	require.NoError(t, err)
	assert.Equal(t, "org-1", org.ID)
	assert.Equal(t, "America/Sao_Paulo", org.Timezone)

	_, err = db.GetOrganizationBySlug(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	svc, err := db.GetService(ctx, "svc-1")
	require.NoError(t, err)
	assert.Equal(t, 30, svc.DurationMinutes)
	assert.True(t, svc.Active)

	services, err := db.ListActiveServices(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, services, 1)

	sched, err := db.GetScheduleForWeekday(ctx, "org-1", time.Friday)
	require.NoError(t, err)
	require.Len(t, sched.Periods, 1)
	assert.Equal(t, "09:00", sched.Periods[0].Start)

	_, err = db.GetScheduleForWeekday(ctx, "org-1", time.Sunday)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSeedCatalogIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	orgs := []config.OrganizationConfig{
		{
			Organization: models.Organization{ID: "org-1", Slug: "acme-salon", Name: "Acme", Timezone: "UTC"},
			Services: []models.Service{
				{ID: "svc-1", Name: "Haircut", DurationMinutes: 45, Active: true},
			},
		},
	}
	require.NoError(t, db.SeedCatalog(ctx, orgs))
	require.NoError(t, db.SeedCatalog(ctx, orgs))

	svc, err := db.GetService(ctx, "svc-1")
	require.NoError(t, err)
	assert.Equal(t, 45, svc.DurationMinutes)

	services, err := db.ListActiveServices(ctx, "org-1")
	require.NoError(t, err)
	assert.Len(t, services, 1)
}

func TestListAppointmentsInRangeOrdering(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	base := time.Date(2026, 2, 20, 9, 0, 0, 0, time.UTC)
	for i := 3; i >= 0; i-- {
		start := base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, db.CreateAppointmentTx(ctx, testAppointment(start, start.Add(30*time.Minute))))
	}

	appts, err := db.ListAppointmentsInRange(ctx, "svc-1", base, base.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, appts, 4)
	for i := 1; i < len(appts); i++ {
		assert.True(t, appts[i-1].StartDatetime.Before(appts[i].StartDatetime),
			fmt.Sprintf("appointments must be ordered chronologically at index %d", i))
	}
}
