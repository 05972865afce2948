package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"portfolio-chat/internal/domain"
)

// redisAPI is the subset of redis.Cmdable used by RedisStore.
type redisAPI interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
}

// RedisConfig describes how to reach Redis. Timeouts are in seconds.
type RedisConfig struct {
	URL          string
	ReadTimeout  int
	WriteTimeout int
	DialTimeout  int
}

// NewRedisClient parses cfg.URL, applies the timeouts and pings the server.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("repository: parse redis url: %w", err)
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = time.Duration(cfg.ReadTimeout) * time.Second
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = time.Duration(cfg.WriteTimeout) * time.Second
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = time.Duration(cfg.DialTimeout) * time.Second
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("repository: ping redis: %w", err)
	}
	return client, nil
}

// RedisStore keeps each session as a list of JSON-encoded turns. The key's
// TTL is refreshed on every append.
type RedisStore struct {
	rdb redisAPI
	ttl time.Duration
}

func NewRedisStore(rdb redisAPI, ttl time.Duration) (*RedisStore, error) {
	if rdb == nil {
		return nil, errors.New("repository: redis client must not be nil")
	}
	return &RedisStore{rdb: rdb, ttl: ttl}, nil
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s:turns", sessionID)
}

func (s *RedisStore) History(ctx context.Context, sessionID string) ([]domain.ChatMessage, error) {
	rows, err := s.rdb.LRange(ctx, sessionKey(sessionID), 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []domain.ChatMessage{}, nil
		}
		return nil, fmt.Errorf("repository: load session: %w", err)
	}

	turns := make([]domain.ChatMessage, 0, len(rows))
	for i, row := range rows {
		var m domain.ChatMessage
		if err := json.Unmarshal([]byte(row), &m); err != nil {
			return nil, fmt.Errorf("repository: unmarshal turn at index %d: %w", i, err)
		}
		turns = append(turns, m)
	}
	return turns, nil
}

// Append pushes all turns in one RPUSH so they land adjacently.
func (s *RedisStore) Append(ctx context.Context, sessionID string, turns ...domain.ChatMessage) error {
	if len(turns) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(turns))
	for _, t := range turns {
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("repository: marshal turn: %w", err)
		}
		values = append(values, b)
	}

	key := sessionKey(sessionID)
	if err := s.rdb.RPush(ctx, key, values...).Err(); err != nil {
		return fmt.Errorf("repository: push turns: %w", err)
	}
	if s.ttl > 0 {
		if err := s.rdb.Expire(ctx, key, s.ttl).Err(); err != nil {
			return fmt.Errorf("repository: set session expiry: %w", err)
		}
	}
	return nil
}
