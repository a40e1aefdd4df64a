package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BaSui01/agenthive/types"
)

// RedisMessageStore is a Redis-based implementation of MessageStore.
// Suitable for deployments where message history must survive restarts.
// Messages are stored as JSON values with IDs indexed in a capped list.
type RedisMessageStore struct {
	client    *redis.Client
	keyPrefix string
	cap       int64
}

// RedisConfig configures a RedisMessageStore.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
	// Cap bounds the number of retained messages (0 ⇒ 10000).
	Cap int `yaml:"cap"`
}

// NewRedisMessageStore creates a Redis-backed message store and verifies
// connectivity.
func NewRedisMessageStore(cfg RedisConfig) (*RedisMessageStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "agenthive:"
	}
	cap := int64(cfg.Cap)
	if cap <= 0 {
		cap = 10000
	}

	return &RedisMessageStore{
		client:    client,
		keyPrefix: prefix + "msg:",
		cap:       cap,
	}, nil
}

// Close closes the store.
func (s *RedisMessageStore) Close() error {
	return s.client.Close()
}

// Ping checks if the store is healthy.
func (s *RedisMessageStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisMessageStore) dataKey(msgID string) string {
	return s.keyPrefix + "data:" + msgID
}

func (s *RedisMessageStore) indexKey() string {
	return s.keyPrefix + "index"
}

// SaveMessage persists a single message.
func (s *RedisMessageStore) SaveMessage(ctx context.Context, msg *types.Message) error {
	if msg == nil || msg.ID == "" {
		return ErrInvalidInput
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.dataKey(msg.ID), data, 0)
	pipe.LPush(ctx, s.indexKey(), msg.ID)
	pipe.LTrim(ctx, s.indexKey(), 0, s.cap-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// GetMessage retrieves a message by ID.
func (s *RedisMessageStore) GetMessage(ctx context.Context, msgID string) (*types.Message, error) {
	data, err := s.client.Get(ctx, s.dataKey(msgID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var msg types.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	return &msg, nil
}

// RecentMessages returns up to limit most recent messages, newest first.
func (s *RedisMessageStore) RecentMessages(ctx context.Context, limit int) ([]*types.Message, error) {
	if limit <= 0 {
		limit = int(s.cap)
	}

	ids, err := s.client.LRange(ctx, s.indexKey(), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*types.Message, 0, len(ids))
	for _, id := range ids {
		msg, err := s.GetMessage(ctx, id)
		if errors.Is(err, ErrNotFound) {
			// Index entry outlived its data key; skip.
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}

// Cleanup removes messages older than the given duration.
func (s *RedisMessageStore) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)

	ids, err := s.client.LRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, id := range ids {
		msg, err := s.GetMessage(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return removed, err
		}
		if msg.CreatedAt.Before(cutoff) {
			pipe := s.client.TxPipeline()
			pipe.Del(ctx, s.dataKey(id))
			pipe.LRem(ctx, s.indexKey(), 0, id)
			if _, err := pipe.Exec(ctx); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}

// Stats returns statistics about the store.
func (s *RedisMessageStore) Stats(ctx context.Context) (*StoreStats, error) {
	total, err := s.client.LLen(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, err
	}

	stats := &StoreStats{TotalMessages: int(total)}
	if total > 0 {
		if newest, err := s.oldestOrNewest(ctx, 0); err == nil {
			stats.NewestMessage = newest
		}
		if oldest, err := s.oldestOrNewest(ctx, total-1); err == nil {
			stats.OldestMessage = oldest
		}
	}
	return stats, nil
}

func (s *RedisMessageStore) oldestOrNewest(ctx context.Context, index int64) (time.Time, error) {
	id, err := s.client.LIndex(ctx, s.indexKey(), index).Result()
	if err != nil {
		return time.Time{}, err
	}
	msg, err := s.GetMessage(ctx, id)
	if err != nil {
		return time.Time{}, err
	}
	return msg.CreatedAt, nil
}
