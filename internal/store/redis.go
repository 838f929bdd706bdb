package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marketpulse/deepsignal/config"
)

// RedisStore is the fallback signal store for deployments without Postgres.
// Signals live under signal:<id>; processed-event markers use SetNX so
// concurrent intakes of the same event race safely.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(ctx context.Context, cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) SaveSignal(ctx context.Context, rec SignalRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding signal %s: %w", rec.ID, err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, "signal:"+rec.ID, b, 0)
	pipe.Set(ctx, "signal:event:"+rec.EventID, rec.ID, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("saving signal %s: %w", rec.ID, err)
	}
	return nil
}

func (s *RedisStore) GetSignal(ctx context.Context, id string) (SignalRecord, error) {
	b, err := s.client.Get(ctx, "signal:"+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return SignalRecord{}, ErrNotFound
	}
	if err != nil {
		return SignalRecord{}, fmt.Errorf("loading signal %s: %w", id, err)
	}
	var rec SignalRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return SignalRecord{}, fmt.Errorf("decoding signal %s: %w", id, err)
	}
	return rec, nil
}

// RecentSignals is unsupported: signals are not indexed by asset in Redis.
func (s *RedisStore) RecentSignals(ctx context.Context, asset string, limit int) ([]SignalRecord, error) {
	return nil, nil
}

func (s *RedisStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	ok, err := s.client.SetNX(ctx, "processed:"+eventID, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("marking event %s: %w", eventID, err)
	}
	return ok, nil
}

func (s *RedisStore) ClearProcessed(ctx context.Context, eventID string) error {
	if err := s.client.Del(ctx, "processed:"+eventID).Err(); err != nil {
		return fmt.Errorf("clearing event %s: %w", eventID, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
