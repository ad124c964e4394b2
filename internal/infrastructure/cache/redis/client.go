package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ClientOptions configures the Redis connection.
type ClientOptions struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Store is the subset of Redis operations used by LatestExporter.
type Store interface {
	Ping(ctx context.Context) error
	DeletePattern(ctx context.Context, pattern string) error
	SetHashes(ctx context.Context, hashes map[string]map[string]any, ttl time.Duration) error
	Close() error
}

// ClientStore implements Store on top of go-redis.
type ClientStore struct {
	client *redis.Client
}

// NewClientStore creates a Redis client. The connection is not checked until Ping.
func NewClientStore(opts ClientOptions) *ClientStore {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		MaxRetries:   3,
	})

	return &ClientStore{client: client}
}

func (s *ClientStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return nil
}

// DeletePattern removes all keys matching pattern
func (s *ClientStore) DeletePattern(ctx context.Context, pattern string) error {
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	pipe := s.client.Pipeline()

	for iter.Next(ctx) {
		pipe.Del(ctx, iter.Val())
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan keys: %w", err)
	}

	if pipe.Len() == 0 {
		return nil
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete keys: %w", err)
	}

	return nil
}

// SetHashes replaces every hash in one pipeline and sets its TTL.
func (s *ClientStore) SetHashes(ctx context.Context, hashes map[string]map[string]any, ttl time.Duration) error {
	if len(hashes) == 0 {
		return nil
	}

	pipe := s.client.TxPipeline()
	for key, fields := range hashes {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fields)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write hashes: %w", err)
	}
	return nil
}

func (s *ClientStore) Close() error {
	return s.client.Close()
}
