package repository

import (
	"context"
	"testing"
	"time"

	"bookline/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisRepo(t *testing.T) (*RedisSessionRepository, *miniredis.Miniredis) {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisSessionRepository(client, time.Hour), s
}

func TestRedisSessionRepository(t *testing.T) {
	repo, _ := newRedisRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()
	threshold := now.Add(-models.SessionTTL)

	t.Run("SaveAndFind", func(t *testing.T) {
		session := &models.ChatSession{
			ID:             "sess-1",
			PhoneNumber:    "5511999990000",
			OrganizationID: "org-1",
			CurrentStep:    models.StepSelectDate,
			Context:        models.SessionContext{SelectedServiceID: "svc-1"},
			UpdatedAt:      now,
		}

		require.NoError(t, repo.Save(ctx, session))

		got, err := repo.FindActive(ctx, "5511999990000", "org-1", threshold)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, session.ID, got.ID)
		assert.Equal(t, session.CurrentStep, got.CurrentStep)
		assert.Equal(t, "svc-1", got.Context.SelectedServiceID)
	})

	t.Run("FindUnknownPhone", func(t *testing.T) {
		got, err := repo.FindActive(ctx, "000", "org-1", threshold)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("StaleSessionIsNotFound", func(t *testing.T) {
		// Row exists but updated_at is 31 minutes old: treated as nonexistent.
		session := &models.ChatSession{
			ID:             "sess-2",
			PhoneNumber:    "5511888880000",
			OrganizationID: "org-1",
			CurrentStep:    models.StepConfirm,
			UpdatedAt:      now.Add(-31 * time.Minute),
		}
		require.NoError(t, repo.Save(ctx, session))

		got, err := repo.FindActive(ctx, "5511888880000", "org-1", threshold)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("SaveIsFullReplace", func(t *testing.T) {
		first := &models.ChatSession{
			ID:             "sess-3",
			PhoneNumber:    "5511777770000",
			OrganizationID: "org-1",
			CurrentStep:    models.StepSelectTime,
			Context: models.SessionContext{
				SelectedServiceID: "svc-1",
				SelectedDate:      "2026-02-20",
				AvailableSlots:    []string{"2026-02-20T14:00:00Z"},
			},
			UpdatedAt: now,
		}
		require.NoError(t, repo.Save(ctx, first))

		second := *first
		second.CurrentStep = models.StepSelectDate
		second.Context = models.SessionContext{SelectedServiceID: "svc-1"}
		require.NoError(t, repo.Save(ctx, &second))

		got, err := repo.FindActive(ctx, "5511777770000", "org-1", threshold)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, models.StepSelectDate, got.CurrentStep)
		assert.Empty(t, got.Context.AvailableSlots, "context must be replaced, not merged")
		assert.Empty(t, got.Context.SelectedDate)
	})

	t.Run("Delete", func(t *testing.T) {
		session := &models.ChatSession{ID: "sess-4", PhoneNumber: "555", OrganizationID: "org-1", UpdatedAt: now}
		require.NoError(t, repo.Save(ctx, session))
		require.NoError(t, repo.Delete(ctx, "555", "org-1"))

		got, _ := repo.FindActive(ctx, "555", "org-1", threshold)
		assert.Nil(t, got)
	})
}

func TestRedisDeleteExpired(t *testing.T) {
	repo, _ := newRedisRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	fresh := &models.ChatSession{ID: "fresh", PhoneNumber: "111", OrganizationID: "org-1", UpdatedAt: now}
	stale := &models.ChatSession{ID: "stale", PhoneNumber: "222", OrganizationID: "org-1", UpdatedAt: now.Add(-2 * time.Hour)}
	require.NoError(t, repo.Save(ctx, fresh))
	require.NoError(t, repo.Save(ctx, stale))

	deleted, err := repo.DeleteExpired(ctx, now.Add(-models.SessionTTL))
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	got, err := repo.FindActive(ctx, "111", "org-1", now.Add(-models.SessionTTL))
	require.NoError(t, err)
	assert.NotNil(t, got, "fresh session must survive the sweep")
}

func TestRedisRateLimit(t *testing.T) {
	repo, s := newRedisRepo(t)
	ctx := context.Background()

	phone := "5511999990000"
	limit := 2
	window := time.Second

	allowed, err := repo.CheckRateLimit(ctx, phone, limit, window)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = repo.CheckRateLimit(ctx, phone, limit, window)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = repo.CheckRateLimit(ctx, phone, limit, window)
	require.NoError(t, err)
	assert.False(t, allowed)

	s.FastForward(window + time.Millisecond)

	allowed, err = repo.CheckRateLimit(ctx, phone, limit, window)
	require.NoError(t, err)
	assert.True(t, allowed)
}
