package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bookline/internal/config"
	"bookline/internal/models"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "chat_session:"

// RedisSessionRepository stores chat sessions as JSON values. The Redis TTL
// is only a physical backstop; liveness is re-checked against the session's
// updated_at on every read, so a stale row behaves as nonexistent even
// before it is evicted.
type RedisSessionRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient creates a Redis client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisSessionRepository(client *redis.Client, ttl time.Duration) *RedisSessionRepository {
	if ttl <= 0 {
		ttl = models.SessionRedisTTL
	}
	return &RedisSessionRepository{
		client: client,
		ttl:    ttl,
	}
}

func sessionKey(phone, orgID string) string {
	return fmt.Sprintf("%s%s:%s", sessionKeyPrefix, orgID, phone)
}

func (r *RedisSessionRepository) FindActive(ctx context.Context, phone, orgID string, threshold time.Time) (*models.ChatSession, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, sessionKey(phone, orgID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session from redis: %w", err)
	}

	var session models.ChatSession
	if err := json.Unmarshal([]byte(val), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	if session.UpdatedAt.Before(threshold) {
		return nil, nil
	}

	return &session, nil
}

func (r *RedisSessionRepository) Save(ctx context.Context, session *models.ChatSession) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	key := sessionKey(session.PhoneNumber, session.OrganizationID)
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session in redis: %w", err)
	}

	return nil
}

func (r *RedisSessionRepository) Delete(ctx context.Context, phone, orgID string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, sessionKey(phone, orgID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session from redis: %w", err)
	}
	return nil
}

// DeleteExpired scans for session keys whose stored updated_at is older than
// the threshold and removes them. Housekeeping only: reads already treat
// such sessions as nonexistent.
func (r *RedisSessionRepository) DeleteExpired(ctx context.Context, threshold time.Time) (int, error) {
	if r.client == nil {
		return 0, fmt.Errorf("redis client is nil")
	}

	deleted := 0
	iter := r.client.Scan(ctx, 0, sessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		val, err := r.client.Get(ctx, key).Result()
		if err != nil {
			continue
		}
		var session models.ChatSession
		if err := json.Unmarshal([]byte(val), &session); err != nil {
			// Unreadable payloads are garbage; sweep them too.
			if r.client.Del(ctx, key).Err() == nil {
				deleted++
			}
			continue
		}
		if session.UpdatedAt.Before(threshold) {
			if r.client.Del(ctx, key).Err() == nil {
				deleted++
			}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("failed to scan sessions: %w", err)
	}
	return deleted, nil
}

func (r *RedisSessionRepository) CheckRateLimit(ctx context.Context, phone string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	key := fmt.Sprintf("rate_limit:%s", phone)
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	if count == 1 {
		r.client.Expire(ctx, key, window)
	}

	return count <= int64(limit), nil
}

// Ping verifies the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
