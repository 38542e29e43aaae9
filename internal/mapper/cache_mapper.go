package mapper

import (
	"encoding/json"

	"ai-saleschat-be/internal/entity"
	"ai-saleschat-be/internal/model"
)

type CacheMapper struct{}

func NewCacheMapper() *CacheMapper {
	return &CacheMapper{}
}

func (m *CacheMapper) CacheEntryToEntity(e *model.CacheEntry) *entity.CacheEntry {
	if e == nil {
		return nil
	}

	var tags []string
	if len(e.Tags) > 0 {
		_ = json.Unmarshal(e.Tags, &tags)
	}

	return &entity.CacheEntry{
		Key:            e.Key,
		Value:          e.Value,
		Tags:           tags,
		ExpiresAt:      e.ExpiresAt,
		AccessCount:    e.AccessCount,
		LastAccessedAt: e.LastAccessedAt,
		CreatedAt:      e.CreatedAt,
	}
}

func (m *CacheMapper) CacheEntryToModel(e *entity.CacheEntry) *model.CacheEntry {
	if e == nil {
		return nil
	}

	tags, _ := json.Marshal(e.Tags)

	return &model.CacheEntry{
		Key:            e.Key,
		Value:          e.Value,
		Tags:           tags,
		ExpiresAt:      e.ExpiresAt,
		AccessCount:    e.AccessCount,
		LastAccessedAt: e.LastAccessedAt,
		CreatedAt:      e.CreatedAt,
	}
}

func (m *CacheMapper) RateLimitToEntity(r *model.RateLimitRecord) *entity.RateLimitRecord {
	if r == nil {
		return nil
	}
	return &entity.RateLimitRecord{
		Identifier:   r.Identifier,
		WindowStart:  r.WindowStart,
		RequestCount: r.RequestCount,
		Violations:   r.Violations,
		BlockedUntil: r.BlockedUntil,
		UpdatedAt:    r.UpdatedAt,
	}
}

func (m *CacheMapper) RateLimitToModel(r *entity.RateLimitRecord) *model.RateLimitRecord {
	if r == nil {
		return nil
	}
	return &model.RateLimitRecord{
		Identifier:   r.Identifier,
		WindowStart:  r.WindowStart,
		RequestCount: r.RequestCount,
		Violations:   r.Violations,
		BlockedUntil: r.BlockedUntil,
		UpdatedAt:    r.UpdatedAt,
	}
}
