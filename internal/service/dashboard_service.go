package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dkv-labs/pps-api/internal/dto"
	"github.com/dkv-labs/pps-api/internal/models"
	appErrors "github.com/dkv-labs/pps-api/pkg/errors"
)

type dashboardStatRepository interface {
	StatusCounts(ctx context.Context, month string) (map[models.StatStatus]int, error)
}

type dashboardMetaRepository interface {
	ListModules(ctx context.Context) ([]models.Module, error)
	CountTopics(ctx context.Context) (int, error)
}

type dashboardGeoRepository interface {
	CountBattalions(ctx context.Context) (int, error)
}

type dashboardCacheStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// DashboardService aggregates submission progress across battalions for a
// month. Summaries are cached because they fan out over several count queries.
type DashboardService struct {
	stats    dashboardStatRepository
	meta     dashboardMetaRepository
	geo      dashboardGeoRepository
	cache    dashboardCacheStore
	cacheTTL time.Duration
	logger   *zap.Logger
}

func NewDashboardService(stats dashboardStatRepository, meta dashboardMetaRepository, geo dashboardGeoRepository, cache dashboardCacheStore, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{stats: stats, meta: meta, geo: geo, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// Summary returns the month's aggregate submission counts.
func (s *DashboardService) Summary(ctx context.Context, month string) (*dto.DashboardSummary, error) {
	if _, err := monthNumber(month); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid month")
	}

	cacheKey := fmt.Sprintf("dashboard:summary:%s", month)
	if s.cache != nil {
		var cached dto.DashboardSummary
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	counts, err := s.stats.StatusCounts(ctx, month)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count statuses")
	}
	battalions, err := s.geo.CountBattalions(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count battalions")
	}
	modules, err := s.meta.ListModules(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list modules")
	}
	topics, err := s.meta.CountTopics(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count topics")
	}

	summary := &dto.DashboardSummary{
		Month:           month,
		TotalBattalions: battalions,
		TotalModules:    len(modules),
		TotalTopics:     topics,
		Submitted:       counts[models.StatusSubmitted],
		Saved:           counts[models.StatusSaved],
		Draft:           counts[models.StatusDraft],
		GeneratedAt:     time.Now().UTC(),
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, summary, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache dashboard summary", zap.Error(err))
		}
	}
	return summary, nil
}
