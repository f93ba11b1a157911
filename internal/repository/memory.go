package repository

import (
	"context"
	"sync"
	"time"

	"bookline/internal/models"
)

// MemorySessionRepository is the in-process fallback used when Redis is
// unavailable and as a test double.
type MemorySessionRepository struct {
	sessions   sync.Map
	rateLimits sync.Map
}

func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{}
}

func (r *MemorySessionRepository) FindActive(ctx context.Context, phone, orgID string, threshold time.Time) (*models.ChatSession, error) {
	val, ok := r.sessions.Load(sessionKey(phone, orgID))
	if !ok {
		return nil, nil
	}
	session := val.(*models.ChatSession)
	if session.UpdatedAt.Before(threshold) {
		return nil, nil
	}
	copied := *session
	return &copied, nil
}

func (r *MemorySessionRepository) Save(ctx context.Context, session *models.ChatSession) error {
	copied := *session
	r.sessions.Store(sessionKey(session.PhoneNumber, session.OrganizationID), &copied)
	return nil
}

func (r *MemorySessionRepository) Delete(ctx context.Context, phone, orgID string) error {
	r.sessions.Delete(sessionKey(phone, orgID))
	return nil
}

func (r *MemorySessionRepository) DeleteExpired(ctx context.Context, threshold time.Time) (int, error) {
	deleted := 0
	r.sessions.Range(func(key, val any) bool {
		if val.(*models.ChatSession).UpdatedAt.Before(threshold) {
			r.sessions.Delete(key)
			deleted++
		}
		return true
	})
	return deleted, nil
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func (r *MemorySessionRepository) CheckRateLimit(ctx context.Context, phone string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	val, ok := r.rateLimits.Load(phone)

	var entry *rateLimitEntry
	if !ok {
		entry = &rateLimitEntry{
			count:     1,
			expiresAt: now.Add(window),
		}
	} else {
		entry = val.(*rateLimitEntry)
		if now.After(entry.expiresAt) {
			entry.count = 1
			entry.expiresAt = now.Add(window)
		} else {
			entry.count++
		}
	}

	r.rateLimits.Store(phone, entry)
	return entry.count <= limit, nil
}
