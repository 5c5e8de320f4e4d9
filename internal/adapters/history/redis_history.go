package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/mikey/email-priority/internal/core"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisHistory is a Redis implementation of the HistoryRepository interface.
// Entries are JSON values with a TTL; two sorted sets index them by
// recording time and by expiry.
type RedisHistory struct {
	client   *redis.Client
	prefix   string
	logger   *zap.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRedisHistory connects to redisURL and creates a new Redis history store
func NewRedisHistory(redisURL, prefix string, logger *zap.Logger, cleanupFreq time.Duration) (*RedisHistory, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	h := &RedisHistory{
		client: client,
		prefix: prefix,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	go runCleanup(h, cleanupFreq, h.stopCh, logger)

	return h, nil
}

func (h *RedisHistory) entryKey(id string) string {
	return h.prefix + "entry:" + id
}

func (h *RedisHistory) recentKey() string {
	return h.prefix + "recent"
}

func (h *RedisHistory) expiryKey() string {
	return h.prefix + "expiry"
}

// Record stores an entry
func (h *RedisHistory) Record(ctx context.Context, entry *core.HistoryEntry) error {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode history entry: %w", err)
	}

	_, err = h.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, h.entryKey(entry.ID), data, ttl)
		pipe.ZAdd(ctx, h.recentKey(), redis.Z{Score: float64(entry.RecordedAt.UnixNano()), Member: entry.ID})
		pipe.ZAdd(ctx, h.expiryKey(), redis.Z{Score: float64(entry.ExpiresAt.UnixNano()), Member: entry.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store history entry: %w", err)
	}
	return nil
}

// Get retrieves an unexpired entry by ID
func (h *RedisHistory) Get(ctx context.Context, id string) (*core.HistoryEntry, error) {
	data, err := h.client.Get(ctx, h.entryKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query history: %w", err)
	}

	var entry core.HistoryEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode history entry: %w", err)
	}
	return &entry, nil
}

// Recent returns up to limit unexpired entries, newest first
func (h *RedisHistory) Recent(ctx context.Context, limit int) ([]*core.HistoryEntry, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	ids, err := h.client.ZRevRange(ctx, h.recentKey(), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query history index: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = h.entryKey(id)
	}

	values, err := h.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load history entries: %w", err)
	}

	out := make([]*core.HistoryEntry, 0, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			// Expired between the index read and the load
			continue
		}
		var entry core.HistoryEntry
		if err := json.Unmarshal([]byte(s), &entry); err != nil {
			h.logger.Warn("Skipping undecodable history entry",
				zap.String("id", ids[i]),
				zap.Error(err))
			continue
		}
		out = append(out, &entry)
	}
	return out, nil
}

// Delete removes an entry
func (h *RedisHistory) Delete(ctx context.Context, id string) error {
	_, err := h.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, h.entryKey(id))
		pipe.ZRem(ctx, h.recentKey(), id)
		pipe.ZRem(ctx, h.expiryKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete history entry: %w", err)
	}
	return nil
}

// Cleanup drops index members whose entries have expired; the values
// themselves are removed by their TTL
func (h *RedisHistory) Cleanup(ctx context.Context) error {
	cutoff := strconv.FormatInt(time.Now().UnixNano(), 10)

	ids, err := h.client.ZRangeByScore(ctx, h.expiryKey(), &redis.ZRangeBy{Min: "-inf", Max: cutoff}).Result()
	if err != nil {
		return fmt.Errorf("failed to query expired entries: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}

	_, err = h.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, h.recentKey(), members...)
		pipe.ZRemRangeByScore(ctx, h.expiryKey(), "-inf", cutoff)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to clean up expired entries: %w", err)
	}

	h.logger.Debug("Cleaned up expired history entries", zap.Int("expired_count", len(ids)))
	return nil
}

// Stop stops the background cleanup task and closes the client
func (h *RedisHistory) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
		if err := h.client.Close(); err != nil {
			h.logger.Error("Failed to close redis client", zap.Error(err))
		}
	})
}
