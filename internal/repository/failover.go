package repository

import (
	"context"
	"sync/atomic"
	"time"

	"bookline/internal/domain"
	"bookline/internal/models"

	"github.com/rs/zerolog"
)

// FailoverSessionRepository serves from the primary (Redis) store and falls
// back to the in-memory store when the primary errors. Sessions surviving a
// failover are lost, which the conversation flow tolerates: an unknown
// phone simply starts over at the welcome step.
type FailoverSessionRepository struct {
	primary   domain.SessionRepository
	fallback  domain.SessionRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverSessionRepository(primary, fallback domain.SessionRepository, logger *zerolog.Logger) *FailoverSessionRepository {
	return &FailoverSessionRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverSessionRepository) markDown(err error) {
	r.logger.Error().Err(err).Msg("primary session repository failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck.Store(time.Now().UnixNano())
}

// shouldRetryPrimary reports whether enough time has passed to probe the
// primary again (1 minute).
func (r *FailoverSessionRepository) shouldRetryPrimary() bool {
	return time.Since(time.Unix(0, r.lastCheck.Load())) > time.Minute
}

func (r *FailoverSessionRepository) FindActive(ctx context.Context, phone, orgID string, threshold time.Time) (*models.ChatSession, error) {
	if !r.isDown.Load() {
		session, err := r.primary.FindActive(ctx, phone, orgID, threshold)
		if err == nil {
			return session, nil
		}
		r.markDown(err)
	} else if r.shouldRetryPrimary() {
		session, err := r.primary.FindActive(ctx, phone, orgID, threshold)
		if err == nil {
			r.isDown.Store(false)
			return session, nil
		}
		r.lastCheck.Store(time.Now().UnixNano())
	}

	return r.fallback.FindActive(ctx, phone, orgID, threshold)
}

func (r *FailoverSessionRepository) Save(ctx context.Context, session *models.ChatSession) error {
	if !r.isDown.Load() {
		err := r.primary.Save(ctx, session)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.Save(ctx, session)
}

func (r *FailoverSessionRepository) Delete(ctx context.Context, phone, orgID string) error {
	if !r.isDown.Load() {
		err := r.primary.Delete(ctx, phone, orgID)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.Delete(ctx, phone, orgID)
}

func (r *FailoverSessionRepository) DeleteExpired(ctx context.Context, threshold time.Time) (int, error) {
	if !r.isDown.Load() {
		deleted, err := r.primary.DeleteExpired(ctx, threshold)
		if err == nil {
			return deleted, nil
		}
		r.markDown(err)
	}

	return r.fallback.DeleteExpired(ctx, threshold)
}

func (r *FailoverSessionRepository) CheckRateLimit(ctx context.Context, phone string, limit int, window time.Duration) (bool, error) {
	if !r.isDown.Load() {
		allowed, err := r.primary.CheckRateLimit(ctx, phone, limit, window)
		if err == nil {
			return allowed, nil
		}
		r.markDown(err)
	}

	return r.fallback.CheckRateLimit(ctx, phone, limit, window)
}
