package respcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	entryKeyPrefix = "respcache:entry:"
	tagKeyPrefix   = "respcache:tag:"
)

// RedisStore shares the cache across instances. Redis handles TTL
// natively, so Sweep only has to groom the tag sets.
type RedisStore struct {
	rdb *redis.Client
}

var _ Store = &RedisStore{}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, error) {
	data, err := s.rdb.Get(ctx, entryKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("unmarshal entry: %w", err)
	}

	// Redis TTL should have evicted this already; treat a straggler as
	// a miss rather than serving a stale hit.
	if !entry.ExpiresAt.After(time.Now()) {
		return nil, nil
	}

	// Access stats are best-effort; a failed pipeline never fails a read.
	entry.AccessCount++
	entry.LastAccessedAt = time.Now()
	if updated, err := json.Marshal(&entry); err == nil {
		s.rdb.Set(ctx, entryKeyPrefix+key, updated, redis.KeepTTL)
	}

	return &entry, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, entryKeyPrefix+key, data, ttl)
	for _, tag := range entry.Tags {
		pipe.SAdd(ctx, tagKeyPrefix+tag, key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, entryKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *RedisStore) DeleteByTag(ctx context.Context, tag string) (int, error) {
	keys, err := s.rdb.SMembers(ctx, tagKeyPrefix+tag).Result()
	if err != nil {
		return 0, fmt.Errorf("redis smembers: %w", err)
	}

	removed := 0
	for _, key := range keys {
		n, err := s.rdb.Del(ctx, entryKeyPrefix+key).Result()
		if err != nil {
			continue
		}
		removed += int(n)
	}
	s.rdb.Del(ctx, tagKeyPrefix+tag)
	return removed, nil
}

func (s *RedisStore) Flush(ctx context.Context) (int, error) {
	removed := 0
	for _, prefix := range []string{entryKeyPrefix, tagKeyPrefix} {
		iter := s.rdb.Scan(ctx, 0, prefix+"*", 200).Iterator()
		for iter.Next(ctx) {
			if n, err := s.rdb.Del(ctx, iter.Val()).Result(); err == nil {
				removed += int(n)
			}
		}
		if err := iter.Err(); err != nil {
			return removed, fmt.Errorf("redis scan: %w", err)
		}
	}
	return removed, nil
}

// Sweep prunes tag-set members whose entries expired out from under
// them; the entries themselves are evicted by redis TTL.
func (s *RedisStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	pruned := 0
	iter := s.rdb.Scan(ctx, 0, tagKeyPrefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		tagKey := iter.Val()
		members, err := s.rdb.SMembers(ctx, tagKey).Result()
		if err != nil {
			continue
		}
		for _, key := range members {
			exists, err := s.rdb.Exists(ctx, entryKeyPrefix+key).Result()
			if err == nil && exists == 0 {
				s.rdb.SRem(ctx, tagKey, key)
				pruned++
			}
		}
	}
	if err := iter.Err(); err != nil {
		return pruned, fmt.Errorf("redis scan: %w", err)
	}
	return pruned, nil
}
