package agent

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tuannvm/mcp-creative-agent/internal/common"
	customErrors "github.com/tuannvm/mcp-creative-agent/internal/common/errors"
	"github.com/tuannvm/mcp-creative-agent/internal/config"
)

// RedisStore keeps each thread as a Redis list of JSON messages under
// <prefix><threadID>.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to Redis and checks the connection
func NewRedisStore(ctx context.Context, cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, customErrors.WrapAgentError(err, "memory_unavailable", "failed to connect to redis").WithData("addr", cfg.Addr)
	}
	return NewRedisStoreFromClient(client, cfg.KeyPrefix, config.Duration(cfg.TTL, 0)), nil
}

// NewRedisStoreFromClient wraps an existing client. ttl 0 means no expiry.
func NewRedisStoreFromClient(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(threadID string) string {
	return s.prefix + threadID
}

func (s *RedisStore) Load(ctx context.Context, threadID string) ([]common.Message, error) {
	data, err := s.client.LRange(ctx, s.key(threadID), 0, -1).Result()
	if err != nil {
		return nil, customErrors.WrapAgentError(err, "memory_unavailable", "failed to read thread history").WithData("thread_id", threadID)
	}
	history := make([]common.Message, 0, len(data))
	for _, item := range data {
		var msg common.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, customErrors.WrapAgentError(err, "memory_corrupt", "stored message is not valid JSON").WithData("thread_id", threadID)
		}
		history = append(history, msg)
	}
	return history, nil
}

// Save replaces the thread's list in one transaction
func (s *RedisStore) Save(ctx context.Context, threadID string, history []common.Message) error {
	values := make([]interface{}, 0, len(history))
	for _, msg := range history {
		b, err := json.Marshal(msg)
		if err != nil {
			return customErrors.WrapAgentError(err, "memory_unavailable", "failed to marshal message")
		}
		values = append(values, b)
	}

	key := s.key(threadID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(values) > 0 {
			pipe.RPush(ctx, key, values...)
			if s.ttl > 0 {
				pipe.Expire(ctx, key, s.ttl)
			}
		}
		return nil
	})
	if err != nil {
		return customErrors.WrapAgentError(err, "memory_unavailable", "failed to store thread history").WithData("thread_id", threadID)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, threadID string) error {
	if err := s.client.Del(ctx, s.key(threadID)).Err(); err != nil {
		return customErrors.WrapAgentError(err, "memory_unavailable", "failed to clear thread history").WithData("thread_id", threadID)
	}
	return nil
}

// Close releases the Redis connection pool
func (s *RedisStore) Close() error {
	return s.client.Close()
}
