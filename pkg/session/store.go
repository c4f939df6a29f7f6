package session

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	sessionKeyPrefix = "archon:session:"
	userKeyPrefix    = "archon:session:user:"
)

// StoreConfig holds Redis connection settings for the session store.
type StoreConfig struct {
	RedisURL      string
	RedisPassword string
	RedisDB       int
}

// Store tracks live sessions in Redis. A session exists while its key
// does; everything expires with the refresh window so the store never
// needs a sweeper.
type Store struct {
	client *redis.Client
}

// NewStore connects to Redis and verifies the connection.
func NewStore(cfg StoreConfig) (*Store, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if cfg.RedisPassword != "" {
		opts.Password = cfg.RedisPassword
	}
	if cfg.RedisDB > 0 {
		opts.DB = cfg.RedisDB
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Store{client: client}, nil
}

// NewStoreFromClient wraps an existing client. Used by tests.
func NewStoreFromClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Add registers a session for a user. The per-user index keeps the same
// TTL as its longest-lived session so revocation can always find them.
func (s *Store) Add(ctx context.Context, userID, sessionID string, ttl time.Duration) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKeyPrefix+sessionID, userID, ttl)
	pipe.SAdd(ctx, userKeyPrefix+userID, sessionID)
	pipe.Expire(ctx, userKeyPrefix+userID, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to add session: %w", err)
	}
	return nil
}

// Valid reports whether the session still exists.
func (s *Store) Valid(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.client.Exists(ctx, sessionKeyPrefix+sessionID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check session: %w", err)
	}
	return n > 0, nil
}

// Revoke removes one session. Revoking a session that is already gone is
// not an error.
func (s *Store) Revoke(ctx context.Context, sessionID string) error {
	userID, err := s.client.GetDel(ctx, sessionKeyPrefix+sessionID).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	if err := s.client.SRem(ctx, userKeyPrefix+userID, sessionID).Err(); err != nil {
		return fmt.Errorf("failed to unindex session: %w", err)
	}
	return nil
}

// RevokeUser removes every session of a user. This is the hook the user
// service calls on deactivation and removal.
func (s *Store) RevokeUser(ctx context.Context, userID string) error {
	sessionIDs, err := s.client.SMembers(ctx, userKeyPrefix+userID).Result()
	if err != nil {
		return fmt.Errorf("failed to list user sessions: %w", err)
	}

	keys := make([]string, 0, len(sessionIDs)+1)
	for _, id := range sessionIDs {
		keys = append(keys, sessionKeyPrefix+id)
	}
	keys = append(keys, userKeyPrefix+userID)

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to revoke user sessions: %w", err)
	}
	return nil
}

// Ping checks Redis connectivity for health reporting.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Client exposes the underlying connection for health probes.
func (s *Store) Client() *redis.Client {
	return s.client
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}
