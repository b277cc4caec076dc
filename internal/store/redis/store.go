// Package redis keeps the roster document under a single Redis key, read
// with GET and replaced wholesale with SET.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shrimpsizemoose/milestones/internal/models"
	"github.com/shrimpsizemoose/milestones/internal/store"
)

type Timeouts struct {
	Dial  time.Duration
	Read  time.Duration
	Write time.Duration
}

type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore connects using a redis:// or rediss:// URL and checks the
// connection with PING.
func NewRedisStore(config *store.DBConfig, timeouts Timeouts) (*RedisStore, error) {
	opt, err := redis.ParseURL(config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if timeouts.Dial > 0 {
		opt.DialTimeout = timeouts.Dial
	}
	if timeouts.Read > 0 {
		opt.ReadTimeout = timeouts.Read
	}
	if timeouts.Write > 0 {
		opt.WriteTimeout = timeouts.Write
	}

	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return New(client, config.Key), nil
}

func New(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = store.DefaultKey
	}
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) Load(ctx context.Context) ([]models.Student, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return []models.Student{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", s.key, err)
	}
	return store.DecodeRoster(data)
}

func (s *RedisStore) Save(ctx context.Context, students []models.Student) error {
	data, err := store.EncodeRoster(students)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
