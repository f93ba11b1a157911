package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bookline/internal/config"
	"bookline/internal/models"
)

// SeedCatalog replaces the read-only catalog (organizations, services,
// schedules, time blocks) with the config-declared state. Appointments are
// untouched; they are the only runtime-written table.
func (db *DB) SeedCatalog(ctx context.Context, orgs []config.OrganizationConfig) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin seed transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, table := range []string{"schedule_periods", "schedules", "time_blocks", "services", "organizations"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for _, org := range orgs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO organizations (id, slug, name, timezone, whatsapp_phone_number_id) VALUES (?, ?, ?, ?, ?)`,
			org.ID, org.Slug, org.Name, org.Timezone, org.WhatsAppPhoneNumberID)
		if err != nil {
			return fmt.Errorf("failed to seed organization %s: %w", org.ID, err)
		}

		for _, svc := range org.Services {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO services (id, organization_id, name, duration_minutes, is_active) VALUES (?, ?, ?, ?, ?)`,
				svc.ID, org.ID, svc.Name, svc.DurationMinutes, svc.Active)
			if err != nil {
				return fmt.Errorf("failed to seed service %s: %w", svc.ID, err)
			}
		}

		for day, periods := range org.Schedule {
			weekday, ok := config.ParseWeekday(day)
			if !ok {
				return fmt.Errorf("unknown weekday %q for organization %s", day, org.ID)
			}
			res, err := tx.ExecContext(ctx,
				`INSERT INTO schedules (organization_id, weekday, is_active) VALUES (?, ?, 1)`,
				org.ID, int(weekday))
			if err != nil {
				return fmt.Errorf("failed to seed schedule: %w", err)
			}
			scheduleID, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("failed to get schedule id: %w", err)
			}
			for i, p := range periods {
				_, err := tx.ExecContext(ctx,
					`INSERT INTO schedule_periods (schedule_id, start_time, end_time, position) VALUES (?, ?, ?, ?)`,
					scheduleID, p.Start, p.End, i)
				if err != nil {
					return fmt.Errorf("failed to seed schedule period: %w", err)
				}
			}
		}

		for _, b := range org.TimeBlocks {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO time_blocks (organization_id, date, start_time, end_time, reason) VALUES (?, ?, ?, ?, ?)`,
				org.ID, b.Date, b.Start, b.End, b.Reason)
			if err != nil {
				return fmt.Errorf("failed to seed time block: %w", err)
			}
		}
	}

	return tx.Commit()
}

func (db *DB) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	return db.scanOrganization(db.db.QueryRowContext(ctx,
		`SELECT id, slug, name, timezone, COALESCE(whatsapp_phone_number_id, '') FROM organizations WHERE id = ?`, id))
}

func (db *DB) GetOrganizationBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	return db.scanOrganization(db.db.QueryRowContext(ctx,
		`SELECT id, slug, name, timezone, COALESCE(whatsapp_phone_number_id, '') FROM organizations WHERE slug = ?`, slug))
}

func (db *DB) scanOrganization(row *sql.Row) (*models.Organization, error) {
	var org models.Organization
	err := row.Scan(&org.ID, &org.Slug, &org.Name, &org.Timezone, &org.WhatsAppPhoneNumberID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return &org, nil
}

func (db *DB) GetService(ctx context.Context, id string) (*models.Service, error) {
	var svc models.Service
	err := db.db.QueryRowContext(ctx,
		`SELECT id, organization_id, name, duration_minutes, is_active FROM services WHERE id = ?`, id).
		Scan(&svc.ID, &svc.OrganizationID, &svc.Name, &svc.DurationMinutes, &svc.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get service: %w", err)
	}
	return &svc, nil
}

func (db *DB) ListActiveServices(ctx context.Context, orgID string) ([]*models.Service, error) {
	rows, err := db.db.QueryContext(ctx,
		`SELECT id, organization_id, name, duration_minutes, is_active
         FROM services WHERE organization_id = ? AND is_active = 1 ORDER BY name`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	defer rows.Close()

	var services []*models.Service
	for rows.Next() {
		svc := &models.Service{}
		if err := rows.Scan(&svc.ID, &svc.OrganizationID, &svc.Name, &svc.DurationMinutes, &svc.Active); err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		services = append(services, svc)
	}
	return services, rows.Err()
}

// GetScheduleForWeekday returns the active weekday schedule with its ordered
// periods, or ErrNotFound when the weekday has no active schedule.
func (db *DB) GetScheduleForWeekday(ctx context.Context, orgID string, weekday time.Weekday) (*models.Schedule, error) {
	sched := &models.Schedule{OrganizationID: orgID, Weekday: weekday}
	err := db.db.QueryRowContext(ctx,
		`SELECT id, is_active FROM schedules WHERE organization_id = ? AND weekday = ?`,
		orgID, int(weekday)).Scan(&sched.ID, &sched.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	if !sched.Active {
		return nil, ErrNotFound
	}

	rows, err := db.db.QueryContext(ctx,
		`SELECT start_time, end_time FROM schedule_periods WHERE schedule_id = ? ORDER BY position`, sched.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedule periods: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p models.SchedulePeriod
		if err := rows.Scan(&p.Start, &p.End); err != nil {
			return nil, fmt.Errorf("failed to scan schedule period: %w", err)
		}
		sched.Periods = append(sched.Periods, p)
	}
	return sched, rows.Err()
}

func (db *DB) ListTimeBlocks(ctx context.Context, orgID, date string) ([]*models.TimeBlock, error) {
	rows, err := db.db.QueryContext(ctx,
		`SELECT organization_id, date, start_time, end_time, COALESCE(reason, '')
         FROM time_blocks WHERE organization_id = ? AND date = ? ORDER BY start_time`, orgID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list time blocks: %w", err)
	}
	defer rows.Close()

	var blocks []*models.TimeBlock
	for rows.Next() {
		b := &models.TimeBlock{}
		if err := rows.Scan(&b.OrganizationID, &b.Date, &b.Start, &b.End, &b.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan time block: %w", err)
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}
