package service

import (
	"context"
	"time"

	"bookline/internal/domain"
	"bookline/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SessionService manages chat session lifecycle over a SessionRepository.
// A session whose updated_at is older than SessionTTL is treated as
// nonexistent on every read; physical deletion is left to the sweep.
type SessionService struct {
	repo   domain.SessionRepository
	logger *zerolog.Logger
	now    func() time.Time
}

func NewSessionService(repo domain.SessionRepository, logger *zerolog.Logger) *SessionService {
	return &SessionService{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// ResolveOrCreate returns the live session for a phone number, creating a
// fresh welcome-step session when none is live. The second return reports
// whether a new session was created.
func (s *SessionService) ResolveOrCreate(ctx context.Context, phone, orgID string) (*models.ChatSession, bool, error) {
	now := s.now().UTC()
	threshold := now.Add(-models.SessionTTL)

	session, err := s.repo.FindActive(ctx, phone, orgID, threshold)
	if err != nil {
		s.logger.Error().Err(err).Str("org_id", orgID).Msg("failed to resolve session")
		return nil, false, err
	}
	if session != nil {
		return session, false, nil
	}

	session = &models.ChatSession{
		ID:             uuid.New().String(),
		PhoneNumber:    phone,
		OrganizationID: orgID,
		CurrentStep:    models.StepWelcome,
		Context:        models.SessionContext{},
		UpdatedAt:      now,
	}
	if err := s.repo.Save(ctx, session); err != nil {
		return nil, false, err
	}
	return session, true, nil
}

// Update persists the session as-is, replacing step and context wholesale
// and refreshing updated_at. Refreshing updated_at is the only TTL renewal
// mechanism, so every handled turn must come through here.
func (s *SessionService) Update(ctx context.Context, session *models.ChatSession) error {
	session.UpdatedAt = s.now().UTC()
	return s.repo.Save(ctx, session)
}

// SweepExpired deletes sessions past the TTL window. Housekeeping only;
// never called on the request path.
func (s *SessionService) SweepExpired(ctx context.Context) (int, error) {
	threshold := s.now().UTC().Add(-models.SessionTTL)
	return s.repo.DeleteExpired(ctx, threshold)
}

// CheckRateLimit reports whether a phone number is within its message
// budget for the window.
func (s *SessionService) CheckRateLimit(ctx context.Context, phone string, limit int, window time.Duration) (bool, error) {
	return s.repo.CheckRateLimit(ctx, phone, limit, window)
}
