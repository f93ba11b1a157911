package service

import (
	"context"
	"time"

	"bookline/internal/database"
	"bookline/internal/models"
	"bookline/internal/schedule"

	"github.com/rs/zerolog"
)

// AvailabilityService computes the reservable slots for a service on a
// calendar date. It always returns an ordered, possibly empty list: a
// missing service, organization or schedule degrades silently to no slots,
// because "not offered" and "no times left" are indistinguishable to
// callers on purpose.
type AvailabilityService struct {
	db     *database.DB
	logger *zerolog.Logger
	now    func() time.Time
}

func NewAvailabilityService(db *database.DB, logger *zerolog.Logger) *AvailabilityService {
	return &AvailabilityService{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// ListAvailableSlots returns bookable slots as UTC instants, in period
// order and chronological within each period.
//
// The weekday is derived from the date parsed in the process-local zone,
// not the organization's zone. For organizations far from the process
// offset this can pick the neighboring weekday near midnight; the behavior
// is kept as-is until the intended semantics are settled.
func (s *AvailabilityService) ListAvailableSlots(ctx context.Context, serviceID, date, orgID string) []models.TimeSlot {
	localDate, err := time.ParseInLocation(models.DateLayout, date, time.Local)
	if err != nil {
		s.logger.Debug().Str("date", date).Msg("availability: unparseable date")
		return []models.TimeSlot{}
	}

	svc, err := s.db.GetService(ctx, serviceID)
	if err != nil || !svc.Active || svc.OrganizationID != orgID {
		return []models.TimeSlot{}
	}

	org, err := s.db.GetOrganization(ctx, orgID)
	if err != nil {
		return []models.TimeSlot{}
	}

	loc, err := time.LoadLocation(org.Timezone)
	if err != nil {
		s.logger.Error().Str("org_id", orgID).Str("timezone", org.Timezone).Msg("availability: bad organization timezone")
		return []models.TimeSlot{}
	}

	sched, err := s.db.GetScheduleForWeekday(ctx, orgID, localDate.Weekday())
	if err != nil || len(sched.Periods) == 0 {
		return []models.TimeSlot{}
	}

	blocked, err := s.blockedWindows(ctx, orgID, date)
	if err != nil {
		s.logger.Error().Err(err).Str("org_id", orgID).Str("date", date).Msg("availability: failed to load time blocks")
		return []models.TimeSlot{}
	}

	// Appointments are loaded for the organization-local day window so
	// slots near midnight compare against everything they could touch.
	year, month, day := localDate.Date()
	dayStart := time.Date(year, month, day, 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)
	appts, err := s.db.ListAppointmentsInRange(ctx, serviceID, dayStart.UTC(), dayEnd.UTC())
	if err != nil {
		s.logger.Error().Err(err).Str("service_id", serviceID).Msg("availability: failed to load appointments")
		return []models.TimeSlot{}
	}

	busy := make([]schedule.Interval, 0, len(appts))
	for _, a := range appts {
		busy = append(busy, schedule.Interval{Start: a.StartDatetime, End: a.EndDatetime})
	}

	now := s.now()
	duration := time.Duration(svc.DurationMinutes) * time.Minute
	slots := []models.TimeSlot{}

	for _, period := range sched.Periods {
		window, ok := periodWindow(period)
		if !ok {
			s.logger.Warn().Str("org_id", orgID).Str("start", period.Start).Str("end", period.End).Msg("availability: skipping malformed period")
			continue
		}
		for _, startMin := range schedule.CandidateStarts(window, svc.DurationMinutes, blocked) {
			// A start inside a spring-forward gap would normalize onto the
			// following slot's instant and duplicate it.
			if !schedule.Materializes(year, month, day, startMin, loc) {
				continue
			}
			slotStart := schedule.AtMinutes(year, month, day, startMin, loc)
			slotEnd := slotStart.Add(duration)

			candidate := schedule.Interval{Start: slotStart, End: slotEnd}
			if candidate.IntersectsAny(busy) {
				continue
			}
			if !slotStart.After(now) {
				continue
			}
			slots = append(slots, models.TimeSlot{StartTime: slotStart, EndTime: slotEnd})
		}
	}

	return slots
}

func (s *AvailabilityService) blockedWindows(ctx context.Context, orgID, date string) ([]schedule.Window, error) {
	blocks, err := s.db.ListTimeBlocks(ctx, orgID, date)
	if err != nil {
		return nil, err
	}

	windows := make([]schedule.Window, 0, len(blocks))
	for _, b := range blocks {
		w, ok := periodWindow(models.SchedulePeriod{Start: b.Start, End: b.End})
		if !ok {
			s.logger.Warn().Str("org_id", orgID).Str("date", date).Msg("availability: skipping malformed time block")
			continue
		}
		windows = append(windows, w)
	}
	return windows, nil
}

func periodWindow(p models.SchedulePeriod) (schedule.Window, bool) {
	start, err := schedule.ParseClock(p.Start)
	if err != nil {
		return schedule.Window{}, false
	}
	end, err := schedule.ParseClock(p.End)
	if err != nil {
		return schedule.Window{}, false
	}
	return schedule.Window{Start: start, End: end}, true
}
