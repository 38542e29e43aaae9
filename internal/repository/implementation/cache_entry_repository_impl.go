package implementation

import (
	"context"
	"errors"
	"time"

	"ai-saleschat-be/internal/entity"
	"ai-saleschat-be/internal/mapper"
	"ai-saleschat-be/internal/model"
	"ai-saleschat-be/internal/repository/contract"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CacheEntryRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.CacheMapper
}

func NewCacheEntryRepository(db *gorm.DB) contract.CacheEntryRepository {
	return &CacheEntryRepositoryImpl{
		db:     db,
		mapper: mapper.NewCacheMapper(),
	}
}

func (r *CacheEntryRepositoryImpl) Get(ctx context.Context, key string) (*entity.CacheEntry, error) {
	var m model.CacheEntry
	if err := r.db.WithContext(ctx).Where("key = ?", key).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.CacheEntryToEntity(&m), nil
}

func (r *CacheEntryRepositoryImpl) Put(ctx context.Context, entry *entity.CacheEntry) error {
	m := r.mapper.CacheEntryToModel(entry)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		UpdateAll: true,
	}).Create(m).Error
}

func (r *CacheEntryRepositoryImpl) Delete(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).Where("key = ?", key).Delete(&model.CacheEntry{}).Error
}

// DeleteByTag removes every entry whose tag list contains the tag, in a
// single pass over the jsonb index.
func (r *CacheEntryRepositoryImpl) DeleteByTag(ctx context.Context, tag string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("tags @> ?", `["`+tag+`"]`).
		Delete(&model.CacheEntry{})
	return result.RowsAffected, result.Error
}

func (r *CacheEntryRepositoryImpl) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at < ?", cutoff).
		Delete(&model.CacheEntry{})
	return result.RowsAffected, result.Error
}

func (r *CacheEntryRepositoryImpl) DeleteAll(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Where("1 = 1").Delete(&model.CacheEntry{})
	return result.RowsAffected, result.Error
}
