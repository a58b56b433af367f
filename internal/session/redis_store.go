// Package session stores cookie sessions in Redis, with a Postgres fallback.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"notebox/api/internal/auth"
	"notebox/api/internal/store"
)

// DefaultTTL is used when a session is saved with an expiry in the past.
const DefaultTTL = 30 * 24 * time.Hour

var ErrSessionNotFound = errors.New("session not found or expired")

// sessionData is the JSON value stored under each session key
type sessionData struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RedisStore keeps sessions under session:<sha256(id)> with a TTL equal to their lifetime
type RedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisStore creates a new Redis-backed session store
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "session:",
		now:    time.Now,
	}
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + auth.HashToken(sessionID)
}

func (s *RedisStore) CreateSession(ctx context.Context, sessionID, userID string, expiresAt time.Time) error {
	now := s.now()
	ttl := expiresAt.Sub(now)
	if ttl <= 0 {
		ttl = DefaultTTL
		expiresAt = now.Add(ttl)
	}

	payload, err := json.Marshal(sessionData{UserID: userID, CreatedAt: now, ExpiresAt: expiresAt})
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(sessionID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// GetSession returns ErrSessionNotFound for unknown or expired sessions.
func (s *RedisStore) GetSession(ctx context.Context, sessionID string) (store.Session, error) {
	raw, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return store.Session{}, ErrSessionNotFound
	}
	if err != nil {
		return store.Session{}, fmt.Errorf("lookup session: %w", err)
	}

	var data sessionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return store.Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	if !data.ExpiresAt.IsZero() && !s.now().Before(data.ExpiresAt) {
		return store.Session{}, ErrSessionNotFound
	}

	return store.Session{
		ID:        sessionID,
		UserID:    data.UserID,
		CreatedAt: data.CreatedAt,
		ExpiresAt: data.ExpiresAt,
	}, nil
}

func (s *RedisStore) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
