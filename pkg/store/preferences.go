package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// PreferenceStore persists per-player settings that must survive the
// game session, currently just the AI flavor text opt-in.
type PreferenceStore interface {
	// AIEnabled reports whether generated flavor text is enabled for the
	// player. Players without a stored preference default to enabled.
	AIEnabled(ctx context.Context, playerID string) (bool, error)
	// SetAIEnabled stores the player's opt-in flag.
	SetAIEnabled(ctx context.Context, playerID string, enabled bool) error
}

// MemoryPreferenceStore keeps preferences in memory, for tests and for
// running without Redis.
type MemoryPreferenceStore struct {
	mu    sync.Mutex
	flags map[string]bool
}

// NewMemoryPreferenceStore constructs an in-memory preference store.
func NewMemoryPreferenceStore() *MemoryPreferenceStore {
	return &MemoryPreferenceStore{flags: make(map[string]bool)}
}

// AIEnabled reports the player's stored flag, defaulting to true.
func (s *MemoryPreferenceStore) AIEnabled(_ context.Context, playerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	enabled, ok := s.flags[playerID]
	if !ok {
		return true, nil
	}
	return enabled, nil
}

// SetAIEnabled stores the player's flag.
func (s *MemoryPreferenceStore) SetAIEnabled(_ context.Context, playerID string, enabled bool) error {
	s.mu.Lock()
	s.flags[playerID] = enabled
	s.mu.Unlock()
	return nil
}

// RedisPreferenceStore stores preferences in Redis so they are shared
// across barker instances.
type RedisPreferenceStore struct {
	client  *redis.Client
	timeout time.Duration
}

// NewRedisPreferenceStore builds a Redis-backed preference store on a
// shared client.
func NewRedisPreferenceStore(client *redis.Client) *RedisPreferenceStore {
	return &RedisPreferenceStore{client: client, timeout: 3 * time.Second}
}

// AIEnabled reports the player's stored flag, defaulting to true when
// no preference has been written.
func (s *RedisPreferenceStore) AIEnabled(ctx context.Context, playerID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	value, err := s.client.Get(ctx, prefAIEnabledRedisKey(playerID)).Result()
	if err == redis.Nil {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("get ai preference: %w", err)
	}
	return value != "0", nil
}

// SetAIEnabled stores the player's flag.
func (s *RedisPreferenceStore) SetAIEnabled(ctx context.Context, playerID string, enabled bool) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	value := "1"
	if !enabled {
		value = "0"
	}
	if err := s.client.Set(ctx, prefAIEnabledRedisKey(playerID), value, 0).Err(); err != nil {
		return fmt.Errorf("set ai preference: %w", err)
	}
	return nil
}

func prefAIEnabledRedisKey(playerID string) string {
	return fmt.Sprintf("prefs:ai_enabled:%s", playerID)
}
