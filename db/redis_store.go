package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore keeps each document as a single string key: <Prefix><name>.
type RedisStore struct {
	Client *redis.Client
	Prefix string
}

// NewRedisStore creates a new RedisStore instance
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{
		Client: client,
		Prefix: prefix,
	}
}

// Helper to generate the document key
func (s *RedisStore) key(name string) string {
	return s.Prefix + name
}

// Load fetches the whole document
func (s *RedisStore) Load(ctx context.Context, name string) ([]byte, error) {
	data, err := s.Client.Get(ctx, s.key(name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to get %s from Redis: %w", name, err)
	}
	return data, nil
}

// Save replaces the whole document. SET is atomic, so readers see either the
// old or the new document.
func (s *RedisStore) Save(ctx context.Context, name string, data []byte) error {
	if err := s.Client.Set(ctx, s.key(name), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save %s to Redis: %w", name, err)
	}
	return nil
}

// RedisOptions configures InitializeRedisClient
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// InitializeRedisClient creates and tests a Redis client connection
func InitializeRedisClient(ctx context.Context, opts RedisOptions, logger *slog.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("could not connect to Redis at %s: %w", opts.Addr, err)
	}

	logger.Info("connected to Redis", "addr", opts.Addr, "db", opts.DB)
	return rdb, nil
}
