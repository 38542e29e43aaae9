package service

import (
	"context"

	"ai-saleschat-be/internal/config"
	"ai-saleschat-be/internal/dto"
	"ai-saleschat-be/internal/pkg/logger"
	"ai-saleschat-be/pkg/ai/router"
	"ai-saleschat-be/pkg/ratelimit"
	"ai-saleschat-be/pkg/respcache"
)

// IOpsService is the admin surface: cache flushes, routing reloads,
// and rate limit inspection. The HTTP binding sits in the controller;
// the hooks live here.
type IOpsService interface {
	FlushCache(ctx context.Context, request *dto.FlushCacheRequest) (*dto.FlushCacheResponse, error)
	ReloadRouting(ctx context.Context, cfg router.Config) (*dto.ReloadRoutingResponse, error)
	InspectRateLimits(ctx context.Context) ([]*dto.RateLimitStateResponse, error)
	ResetRateLimit(ctx context.Context, identifier string) error
	GetEventStats() map[string]int64
	GetLogs(level string, limit, offset int) ([]logger.LogEntry, error)
}

type opsService struct {
	cache       *respcache.Cache
	modelRouter *router.Router
	limiter     *ratelimit.Limiter
	analytics   IAnalyticsService
	appConfig   *config.Config
	logger      logger.ILogger
}

func NewOpsService(cache *respcache.Cache, modelRouter *router.Router, limiter *ratelimit.Limiter, analytics IAnalyticsService, appConfig *config.Config, log logger.ILogger) IOpsService {
	return &opsService{
		cache:       cache,
		modelRouter: modelRouter,
		limiter:     limiter,
		analytics:   analytics,
		appConfig:   appConfig,
		logger:      log,
	}
}

// FlushCache drops everything when no tag is given, or just the
// entries sharing the tag.
func (os *opsService) FlushCache(ctx context.Context, request *dto.FlushCacheRequest) (*dto.FlushCacheResponse, error) {
	var (
		removed int
		err     error
	)
	if request.Tag == "" {
		removed, err = os.cache.Flush(ctx)
	} else {
		removed, err = os.cache.Invalidate(ctx, request.Tag)
	}
	if err != nil {
		return nil, err
	}

	os.logger.Info("OPS", "Cache flushed", map[string]interface{}{"tag": request.Tag, "removed": removed})
	return &dto.FlushCacheResponse{Removed: removed}, nil
}

func (os *opsService) ReloadRouting(ctx context.Context, cfg router.Config) (*dto.ReloadRoutingResponse, error) {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = os.appConfig.Ai.LLMModel
	}
	if cfg.PremiumModel == "" {
		cfg.PremiumModel = os.appConfig.Ai.PremiumModel
	}
	if cfg.LongMessageChars == 0 {
		cfg.LongMessageChars = os.appConfig.Ai.LongMessageChars
	}

	os.modelRouter.Reload(cfg)
	os.logger.Info("OPS", "Routing config reloaded", map[string]interface{}{
		"default": cfg.DefaultModel,
		"premium": cfg.PremiumModel,
	})

	return &dto.ReloadRoutingResponse{
		DefaultModel:  cfg.DefaultModel,
		FallbackModel: cfg.PremiumModel,
	}, nil
}

func (os *opsService) InspectRateLimits(ctx context.Context) ([]*dto.RateLimitStateResponse, error) {
	records, err := os.limiter.Inspect(ctx)
	if err != nil {
		return nil, err
	}

	responses := make([]*dto.RateLimitStateResponse, 0, len(records))
	for _, r := range records {
		responses = append(responses, &dto.RateLimitStateResponse{
			Identifier:   r.Identifier,
			WindowStart:  r.WindowStart,
			RequestCount: r.RequestCount,
			Violations:   r.Violations,
			BlockedUntil: r.BlockedUntil,
		})
	}
	return responses, nil
}

func (os *opsService) ResetRateLimit(ctx context.Context, identifier string) error {
	if err := os.limiter.Reset(ctx, identifier); err != nil {
		return err
	}
	os.logger.Info("OPS", "Rate limit reset", map[string]interface{}{"identifier": identifier})
	return nil
}

func (os *opsService) GetEventStats() map[string]int64 {
	if os.analytics == nil {
		return map[string]int64{}
	}
	return os.analytics.Snapshot()
}

func (os *opsService) GetLogs(level string, limit, offset int) ([]logger.LogEntry, error) {
	return os.logger.GetLogs(level, limit, offset)
}
