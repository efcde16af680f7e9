package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkv-labs/pps-api/internal/models"
	appErrors "github.com/dkv-labs/pps-api/pkg/errors"
)

type mockMetaRepo struct {
	modules []models.Module
	topics  []models.Topic

	listModuleCalls int
	createdTopic    *models.Topic
	createdQuestion *models.Question
}

func (m *mockMetaRepo) ListModules(ctx context.Context) ([]models.Module, error) {
	m.listModuleCalls++
	return m.modules, nil
}

func (m *mockMetaRepo) FindModule(ctx context.Context, id int64) (*models.Module, error) {
	for i := range m.modules {
		if m.modules[i].ID == id {
			return &m.modules[i], nil
		}
	}
	return nil, appErrors.ErrNotFound
}

func (m *mockMetaRepo) CreateModule(ctx context.Context, module *models.Module) error { return nil }
func (m *mockMetaRepo) UpdateModule(ctx context.Context, module *models.Module) error { return nil }

func (m *mockMetaRepo) ListTopics(ctx context.Context, moduleID int64) ([]models.Topic, error) {
	return m.topics, nil
}

func (m *mockMetaRepo) FindTopic(ctx context.Context, id int64) (*models.Topic, error) {
	for i := range m.topics {
		if m.topics[i].ID == id {
			return &m.topics[i], nil
		}
	}
	return nil, appErrors.ErrNotFound
}

func (m *mockMetaRepo) CreateTopic(ctx context.Context, topic *models.Topic) error {
	m.createdTopic = topic
	return nil
}

func (m *mockMetaRepo) UpdateTopic(ctx context.Context, topic *models.Topic) error { return nil }

func (m *mockMetaRepo) ListSubTopics(ctx context.Context, topicID int64) ([]models.SubTopic, error) {
	return nil, nil
}

func (m *mockMetaRepo) CreateSubTopic(ctx context.Context, subTopic *models.SubTopic) error {
	return nil
}

func (m *mockMetaRepo) UpdateSubTopic(ctx context.Context, subTopic *models.SubTopic) error {
	return nil
}

func (m *mockMetaRepo) ListQuestions(ctx context.Context, topicID int64) ([]models.Question, error) {
	return nil, nil
}

func (m *mockMetaRepo) CreateQuestion(ctx context.Context, question *models.Question) error {
	m.createdQuestion = question
	return nil
}

func (m *mockMetaRepo) UpdateQuestion(ctx context.Context, question *models.Question) error {
	return nil
}

type mockMetaCache struct {
	store          map[string][]byte
	deletePatterns []string
}

func newMockMetaCache() *mockMetaCache {
	return &mockMetaCache{store: make(map[string][]byte)}
}

func (m *mockMetaCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *mockMetaCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.store[key] = raw
	return nil
}

func (m *mockMetaCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.deletePatterns = append(m.deletePatterns, pattern)
	for key := range m.store {
		delete(m.store, key)
	}
	return nil
}

func TestFormMetaServiceModulesCached(t *testing.T) {
	repo := &mockMetaRepo{modules: []models.Module{{ID: 1, Name: "Manpower", Active: true}}}
	cache := newMockMetaCache()
	svc := NewFormMetaService(repo, cache, time.Minute, nil, nil)

	first, err := svc.Modules(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := svc.Modules(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, repo.listModuleCalls, "second read should come from cache")
}

func TestFormMetaServiceWriteInvalidatesCache(t *testing.T) {
	repo := &mockMetaRepo{modules: []models.Module{{ID: 1, Name: "Manpower", Active: true}}}
	cache := newMockMetaCache()
	svc := NewFormMetaService(repo, cache, time.Minute, nil, nil)

	_, err := svc.Modules(context.Background())
	require.NoError(t, err)

	err = svc.CreateTopic(context.Background(), &models.Topic{
		ModuleID: 1, Name: "Strength", Layout: models.LayoutNormal,
	})
	require.NoError(t, err)
	require.NotNil(t, repo.createdTopic)

	assert.Contains(t, cache.deletePatterns, "formmeta:*")
	assert.Empty(t, cache.store)
}

func TestFormMetaServiceRejectsUnknownLayout(t *testing.T) {
	repo := &mockMetaRepo{modules: []models.Module{{ID: 1, Active: true}}}
	svc := NewFormMetaService(repo, nil, 0, nil, nil)

	err := svc.CreateTopic(context.Background(), &models.Topic{ModuleID: 1, Name: "X", Layout: "DIAGONAL"})
	require.Error(t, err)
	appErr := &appErrors.Error{}
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestFormMetaServiceRejectsMalformedFormula(t *testing.T) {
	repo := &mockMetaRepo{
		modules: []models.Module{{ID: 1, Active: true}},
		topics:  []models.Topic{{ID: 10, ModuleID: 1, Name: "Strength", Layout: models.LayoutNormal, Active: true}},
	}
	svc := NewFormMetaService(repo, nil, 0, nil, nil)

	err := svc.CreateQuestion(context.Background(), &models.Question{
		TopicID: 10, Text: "Posted", Type: models.QuestionNumber, Formula: "651-=653",
	})
	require.Error(t, err)
	appErr := &appErrors.Error{}
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	err = svc.CreateQuestion(context.Background(), &models.Question{
		TopicID: 10, Text: "Posted", Type: models.QuestionNumber, Formula: "651-652=653",
	})
	require.NoError(t, err)
	require.NotNil(t, repo.createdQuestion)
}
