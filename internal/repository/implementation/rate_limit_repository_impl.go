package implementation

import (
	"context"
	"errors"

	"ai-saleschat-be/internal/entity"
	"ai-saleschat-be/internal/mapper"
	"ai-saleschat-be/internal/model"
	"ai-saleschat-be/internal/repository/contract"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RateLimitRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.CacheMapper
}

func NewRateLimitRepository(db *gorm.DB) contract.RateLimitRepository {
	return &RateLimitRepositoryImpl{
		db:     db,
		mapper: mapper.NewCacheMapper(),
	}
}

func (r *RateLimitRepositoryImpl) Get(ctx context.Context, identifier string) (*entity.RateLimitRecord, error) {
	var m model.RateLimitRecord
	if err := r.db.WithContext(ctx).Where("identifier = ?", identifier).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.RateLimitToEntity(&m), nil
}

func (r *RateLimitRepositoryImpl) Upsert(ctx context.Context, record *entity.RateLimitRecord) error {
	m := r.mapper.RateLimitToModel(record)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "identifier"}},
		UpdateAll: true,
	}).Create(m).Error
}

func (r *RateLimitRepositoryImpl) Delete(ctx context.Context, identifier string) error {
	return r.db.WithContext(ctx).Where("identifier = ?", identifier).Delete(&model.RateLimitRecord{}).Error
}

func (r *RateLimitRepositoryImpl) FindAll(ctx context.Context) ([]*entity.RateLimitRecord, error) {
	var models []*model.RateLimitRecord
	if err := r.db.WithContext(ctx).Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.RateLimitRecord, len(models))
	for i, m := range models {
		entities[i] = r.mapper.RateLimitToEntity(m)
	}
	return entities, nil
}
