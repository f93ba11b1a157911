package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"bookline/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingRepo struct{}

func (f *failingRepo) FindActive(ctx context.Context, phone, orgID string, threshold time.Time) (*models.ChatSession, error) {
	return nil, errors.New("connection refused")
}
func (f *failingRepo) Save(ctx context.Context, s *models.ChatSession) error {
	return errors.New("connection refused")
}
func (f *failingRepo) Delete(ctx context.Context, phone, orgID string) error {
	return errors.New("connection refused")
}
func (f *failingRepo) DeleteExpired(ctx context.Context, threshold time.Time) (int, error) {
	return 0, errors.New("connection refused")
}
func (f *failingRepo) CheckRateLimit(ctx context.Context, phone string, limit int, window time.Duration) (bool, error) {
	return false, errors.New("connection refused")
}

func TestFailoverFallsBackToMemory(t *testing.T) {
	logger := zerolog.New(io.Discard)
	fallback := NewMemorySessionRepository()
	repo := NewFailoverSessionRepository(&failingRepo{}, fallback, &logger)

	ctx := context.Background()
	now := time.Now().UTC()
	threshold := now.Add(-models.SessionTTL)

	session := &models.ChatSession{
		ID:             "sess-1",
		PhoneNumber:    "5511999990000",
		OrganizationID: "org-1",
		CurrentStep:    models.StepWelcome,
		UpdatedAt:      now,
	}
	require.NoError(t, repo.Save(ctx, session))

	got, err := repo.FindActive(ctx, "5511999990000", "org-1", threshold)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "sess-1", got.ID)

	allowed, err := repo.CheckRateLimit(ctx, "5511999990000", 5, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestFailoverPrefersHealthyPrimary(t *testing.T) {
	logger := zerolog.New(io.Discard)
	primary := NewMemorySessionRepository()
	fallback := NewMemorySessionRepository()
	repo := NewFailoverSessionRepository(primary, fallback, &logger)

	ctx := context.Background()
	now := time.Now().UTC()

	session := &models.ChatSession{ID: "sess-1", PhoneNumber: "111", OrganizationID: "org-1", UpdatedAt: now}
	require.NoError(t, repo.Save(ctx, session))

	// The write must have landed on the primary, not the fallback.
	got, err := primary.FindActive(ctx, "111", "org-1", now.Add(-time.Hour))
	require.NoError(t, err)
	assert.NotNil(t, got)

	got, err = fallback.FindActive(ctx, "111", "org-1", now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Nil(t, got)
}
