// Package statestore holds short-lived OAuth state tokens in Redis. It
// replaces a process-wide map with an injected store whose lifecycle is owned
// by the server: tokens expire via TTL instead of a background sweep, and
// Close is tied to service shutdown.
package statestore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/shiplog/shiplog/internal/errors"
)

const keyPrefix = "oauth:state:"

// Config defines Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	// TTL is how long issued state tokens stay valid.
	TTL time.Duration
}

// Store is a time-bounded, single-use token store.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*Store, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 10 * time.Minute
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Store{client: client, ttl: ttl}, nil
}

// NewWithClient wraps an existing Redis client. Used by tests.
func NewWithClient(client *redis.Client, ttl time.Duration) *Store {
	if ttl == 0 {
		ttl = 10 * time.Minute
	}
	return &Store{client: client, ttl: ttl}
}

// Issue creates a new random state token bound to value and stores it with
// the configured TTL. The returned token goes into the OAuth redirect.
func (s *Store) Issue(ctx context.Context, value string) (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate state token: %w", err)
	}
	token := hex.EncodeToString(raw)

	if err := s.client.Set(ctx, keyPrefix+token, value, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store state token: %w", err)
	}
	return token, nil
}

// Consume returns the value bound to token and deletes it atomically, so a
// token verifies at most once. Expired or unknown tokens return
// ErrStateNotFound.
func (s *Store) Consume(ctx context.Context, token string) (string, error) {
	value, err := s.client.GetDel(ctx, keyPrefix+token).Result()
	if err == redis.Nil {
		return "", errors.ErrStateNotFound
	}
	if err != nil {
		return "", fmt.Errorf("consume state token: %w", err)
	}
	return value, nil
}

// Close releases the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}
