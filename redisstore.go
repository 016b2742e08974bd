package quizengine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists session snapshots in Redis, for deployments where
// sessions are short-lived and multiple server instances share an
// engine. A zero TTL keeps snapshots until deleted.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to Redis at addr and verifies the connection.
func NewRedisStore(addr, password string, ttl time.Duration) (*RedisStore, error) {
	if addr == "" {
		return nil, configErrorf("redis address is required")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisStore{rdb: rdb, prefix: "quizengine:session:", ttl: ttl}, nil
}

// Close releases the client's connections.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + sessionID
}

// Save stores the snapshot, refreshing the TTL on every checkpoint so
// active sessions never expire mid-quiz.
func (s *RedisStore) Save(ctx context.Context, sessionID string, snapshot []byte) error {
	if err := s.rdb.Set(ctx, s.key(sessionID), snapshot, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Load retrieves a session snapshot by id.
func (s *RedisStore) Load(ctx context.Context, sessionID string) ([]byte, error) {
	data, err := s.rdb.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return data, nil
}

// Delete removes a session. Deleting an unknown id is not an error.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.rdb.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
