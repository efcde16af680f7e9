package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkv-labs/pps-api/internal/models"
	appErrors "github.com/dkv-labs/pps-api/pkg/errors"
)

type mockDashStats struct {
	counts map[models.StatStatus]int
	calls  int
}

func (m *mockDashStats) StatusCounts(ctx context.Context, month string) (map[models.StatStatus]int, error) {
	m.calls++
	return m.counts, nil
}

type mockDashMeta struct {
	modules []models.Module
	topics  int
}

func (m *mockDashMeta) ListModules(ctx context.Context) ([]models.Module, error) {
	return m.modules, nil
}

func (m *mockDashMeta) CountTopics(ctx context.Context) (int, error) {
	return m.topics, nil
}

type mockDashGeo struct {
	battalions int
}

func (m *mockDashGeo) CountBattalions(ctx context.Context) (int, error) {
	return m.battalions, nil
}

func TestDashboardServiceSummary(t *testing.T) {
	stats := &mockDashStats{counts: map[models.StatStatus]int{
		models.StatusSubmitted: 12,
		models.StatusSaved:     5,
		models.StatusDraft:     3,
	}}
	meta := &mockDashMeta{modules: []models.Module{{ID: 1}, {ID: 2}}, topics: 14}
	geo := &mockDashGeo{battalions: 25}
	svc := NewDashboardService(stats, meta, geo, nil, 0, nil)

	summary, err := svc.Summary(context.Background(), "2026-08")
	require.NoError(t, err)
	assert.Equal(t, 25, summary.TotalBattalions)
	assert.Equal(t, 2, summary.TotalModules)
	assert.Equal(t, 14, summary.TotalTopics)
	assert.Equal(t, 12, summary.Submitted)
	assert.Equal(t, 5, summary.Saved)
	assert.Equal(t, 3, summary.Draft)
	assert.False(t, summary.GeneratedAt.IsZero())
}

func TestDashboardServiceSummaryCached(t *testing.T) {
	stats := &mockDashStats{counts: map[models.StatStatus]int{}}
	meta := &mockDashMeta{}
	geo := &mockDashGeo{}
	cache := newMockMetaCache()
	svc := NewDashboardService(stats, meta, geo, cache, time.Minute, nil)

	_, err := svc.Summary(context.Background(), "2026-08")
	require.NoError(t, err)
	_, err = svc.Summary(context.Background(), "2026-08")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.calls, "second read should come from cache")
}

func TestDashboardServiceRejectsBadMonth(t *testing.T) {
	svc := NewDashboardService(&mockDashStats{}, &mockDashMeta{}, &mockDashGeo{}, nil, 0, nil)

	_, err := svc.Summary(context.Background(), "August 2026")
	require.Error(t, err)
	appErr := &appErrors.Error{}
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}
