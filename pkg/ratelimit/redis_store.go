package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ai-saleschat-be/internal/entity"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ratelimit:"

// RedisStore shares admission state across instances. Records are kept
// twice the window length so a dormant identifier's violation history
// eventually ages out on its own.
type RedisStore struct {
	rdb       *redis.Client
	retention time.Duration
}

var _ Store = &RedisStore{}

func NewRedisStore(rdb *redis.Client, retention time.Duration) *RedisStore {
	return &RedisStore{
		rdb:       rdb,
		retention: retention,
	}
}

func (s *RedisStore) Get(ctx context.Context, identifier string) (*entity.RateLimitRecord, error) {
	data, err := s.rdb.Get(ctx, redisKeyPrefix+identifier).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var record entity.RateLimitRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return &record, nil
}

func (s *RedisStore) Put(ctx context.Context, record *entity.RateLimitRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	retention := s.retention
	// A block must outlive the default retention or it would vanish early.
	if record.BlockedUntil != nil {
		if until := time.Until(*record.BlockedUntil) + time.Hour; until > retention {
			retention = until
		}
	}

	if err := s.rdb.Set(ctx, redisKeyPrefix+record.Identifier, data, retention).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, identifier string) error {
	if err := s.rdb.Del(ctx, redisKeyPrefix+identifier).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]*entity.RateLimitRecord, error) {
	var records []*entity.RateLimitRecord
	iter := s.rdb.Scan(ctx, 0, redisKeyPrefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		data, err := s.rdb.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			continue
		}
		var record entity.RateLimitRecord
		if err := json.Unmarshal(data, &record); err != nil {
			continue
		}
		records = append(records, &record)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	return records, nil
}
