package storage

import (
	"chatroulette/backend/internal/models"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const signalKeyPrefix = "signals"

// RedisSignalStore keeps each recipient's signals in a Redis list that expires
// after ttl. When max is positive the oldest entries beyond max are trimmed.
type RedisSignalStore struct {
	client *redis.Client
	ttl    time.Duration
	max    int64
}

func NewRedisSignalStore(client *redis.Client, ttl time.Duration, max int64) *RedisSignalStore {
	return &RedisSignalStore{client: client, ttl: ttl, max: max}
}

func (r *RedisSignalStore) queueKey(sessionID, toUserID string) string {
	return fmt.Sprintf("%s:%s:%s", signalKeyPrefix, sessionID, toUserID)
}

// SaveSignal assigns a monotonically increasing ID and appends the signal.
func (r *RedisSignalStore) SaveSignal(ctx context.Context, sig *models.SignalingMessage) error {
	id, err := r.client.Incr(ctx, signalKeyPrefix+":seq").Result()
	if err != nil {
		return fmt.Errorf("failed to allocate signal id: %w", err)
	}
	sig.ID = uint(id)
	if sig.CreatedAt.IsZero() {
		sig.CreatedAt = time.Now()
	}

	data, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("failed to marshal signal: %w", err)
	}

	key := r.queueKey(sig.SessionID, sig.ToUserID)
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	if r.max > 0 {
		pipe.LTrim(ctx, key, -r.max, -1)
	}
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store signal: %w", err)
	}
	return nil
}

// GetSignalsFor reads the whole queue without consuming it.
func (r *RedisSignalStore) GetSignalsFor(ctx context.Context, sessionID, toUserID string) ([]models.SignalingMessage, error) {
	raw, err := r.client.LRange(ctx, r.queueKey(sessionID, toUserID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read signals: %w", err)
	}

	signals := make([]models.SignalingMessage, 0, len(raw))
	for _, item := range raw {
		var sig models.SignalingMessage
		if err := json.Unmarshal([]byte(item), &sig); err != nil {
			return nil, fmt.Errorf("failed to unmarshal signal: %w", err)
		}
		signals = append(signals, sig)
	}
	return signals, nil
}
