// Package prefs persists client local preferences, currently the thread
// that was open when a user last left a portal.
package prefs

import (
	"context"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Store keeps the last active thread per portal role and user.
type Store interface {
	LastThread(ctx context.Context, role, userID string) (string, error)
	SetLastThread(ctx context.Context, role, userID, threadID string) error
}

// Key returns the storage key for a role and user. Distinct portals never
// share a key.
func Key(role, userID string) string {
	if role == "" {
		role = "default"
	}
	return fmt.Sprintf("chat:last_thread:%s:%s", role, userID)
}

type MemoryStore struct {
	mu   sync.RWMutex
	last map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{last: make(map[string]string)}
}

func (s *MemoryStore) LastThread(_ context.Context, role, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last[Key(role, userID)], nil
}

func (s *MemoryStore) SetLastThread(_ context.Context, role, userID, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if threadID == "" {
		delete(s.last, Key(role, userID))
		return nil
	}
	s.last[Key(role, userID)] = threadID
	return nil
}

// RedisStore keeps preferences in Redis so they follow the user across
// devices.
type RedisStore struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewRedisStore builds a store whose entries expire after ttl; zero keeps
// them forever.
func NewRedisStore(client *goredis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) LastThread(ctx context.Context, role, userID string) (string, error) {
	val, err := s.client.Get(ctx, Key(role, userID)).Result()
	if err == goredis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read last thread: %w", err)
	}
	return val, nil
}

func (s *RedisStore) SetLastThread(ctx context.Context, role, userID, threadID string) error {
	key := Key(role, userID)
	if threadID == "" {
		return s.client.Del(ctx, key).Err()
	}
	if err := s.client.Set(ctx, key, threadID, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store last thread: %w", err)
	}
	return nil
}
