package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/dkv-labs/pps-api/internal/formengine"
	"github.com/dkv-labs/pps-api/internal/middleware"
	"github.com/dkv-labs/pps-api/internal/models"
	"github.com/dkv-labs/pps-api/internal/service"
	appErrors "github.com/dkv-labs/pps-api/pkg/errors"
)

type fakeMeta struct {
	modules   []models.Module
	topics    map[int64][]models.Topic
	questions map[int64][]models.Question
}

func (m *fakeMeta) ListModules(ctx context.Context) ([]models.Module, error) {
	return m.modules, nil
}

func (m *fakeMeta) FindModule(ctx context.Context, id int64) (*models.Module, error) {
	for i := range m.modules {
		if m.modules[i].ID == id {
			return &m.modules[i], nil
		}
	}
	return nil, appErrors.ErrNotFound
}

func (m *fakeMeta) ListTopics(ctx context.Context, moduleID int64) ([]models.Topic, error) {
	return m.topics[moduleID], nil
}

func (m *fakeMeta) FindTopic(ctx context.Context, id int64) (*models.Topic, error) {
	for _, topics := range m.topics {
		for i := range topics {
			if topics[i].ID == id {
				return &topics[i], nil
			}
		}
	}
	return nil, appErrors.ErrNotFound
}

func (m *fakeMeta) ListSubTopics(ctx context.Context, topicID int64) ([]models.SubTopic, error) {
	return nil, nil
}

func (m *fakeMeta) ListQuestions(ctx context.Context, topicID int64) ([]models.Question, error) {
	return m.questions[topicID], nil
}

func (m *fakeMeta) CountQuestions(ctx context.Context, topicID int64) (int, error) {
	return len(m.questions[topicID]), nil
}

type fakeStats struct {
	replaced []models.PerformanceStat
}

func (m *fakeStats) List(ctx context.Context, filter models.StatFilter) ([]models.PerformanceStat, error) {
	return nil, nil
}

func (m *fakeStats) Replace(ctx context.Context, battalionID, topicID int64, month string, stats []models.PerformanceStat) error {
	m.replaced = stats
	return nil
}

func (m *fakeStats) TopicStatus(ctx context.Context, battalionID, topicID int64, month string) (models.StatStatus, error) {
	return models.StatusDraft, nil
}

func (m *fakeStats) CompanyValues(ctx context.Context, battalionID, topicID int64, month string) ([]models.PerformanceStat, error) {
	return nil, nil
}

func (m *fakeStats) QuestionSums(ctx context.Context, battalionID, topicID int64, months []string) (map[int64]float64, error) {
	return nil, nil
}

type fakeGeo struct{}

func (m *fakeGeo) ListCompanies(ctx context.Context, battalionID int64) ([]models.Company, error) {
	return nil, nil
}

func (m *fakeGeo) FindCompanies(ctx context.Context, battalionID int64, ids []int64) ([]models.Company, error) {
	return nil, nil
}

type fakeAudit struct{}

func (m *fakeAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	return nil
}

func buildPerformanceRouter(stats *fakeStats) *gin.Engine {
	gin.SetMode(gin.TestMode)

	meta := &fakeMeta{
		modules: []models.Module{{ID: 1, Name: "Manpower", Active: true}},
		topics: map[int64][]models.Topic{
			1: {{ID: 10, ModuleID: 1, Name: "Strength", Layout: models.LayoutNormal, Active: true}},
		},
		questions: map[int64][]models.Question{
			10: {
				{ID: 651, TopicID: 10, Text: "Sanctioned", Type: models.QuestionNumber, Priority: 1, Active: true},
				{ID: 652, TopicID: 10, Text: "Vacant", Type: models.QuestionNumber, Priority: 2, Active: true},
				{ID: 653, TopicID: 10, Text: "Posted", Type: models.QuestionNumber, Formula: "651-652=653", Priority: 3, Active: true},
			},
		},
	}
	svc := service.NewPerformanceService(meta, stats, &fakeGeo{}, &fakeAudit{}, nil, formengine.WalkerConfig{}, nil, nil, nil)
	h := NewPerformanceHandler(svc)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		role := c.GetHeader("X-Test-Role")
		if role == "" {
			c.Next()
			return
		}
		claims := &models.JWTClaims{UserID: "u1", Role: models.UserRole(role)}
		if role == string(models.RoleBattalion) {
			battalionID := int64(5)
			claims.BattalionID = &battalionID
		}
		c.Set(middleware.ContextUserKey, claims)
		c.Next()
	})
	router.GET("/performance/form", h.GetForm)
	router.POST("/performance/form", h.Save)
	router.POST("/performance/navigate", h.Navigate)
	return router
}

func performRequest(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestPerformanceRoutes(t *testing.T) {
	stats := &fakeStats{}
	router := buildPerformanceRouter(stats)

	t.Run("form unauthorized", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/performance/form?battalionId=5&moduleId=1&topicId=10&month=2026-08", nil)
		resp := performRequest(router, req)
		require.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("form success", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/performance/form?battalionId=5&moduleId=1&topicId=10&month=2026-08", nil)
		req.Header.Set("X-Test-Role", string(models.RoleBattalion))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
		require.Contains(t, resp.Body.String(), `"questionId":651`)
	})

	t.Run("form foreign battalion forbidden", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/performance/form?battalionId=7&moduleId=1&topicId=10&month=2026-08", nil)
		req.Header.Set("X-Test-Role", string(models.RoleBattalion))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("save computes formula", func(t *testing.T) {
		payload := `{"battalionId":5,"moduleId":1,"topicId":10,"month":"2026-08","fields":[{"questionId":651,"value":"10"},{"questionId":652,"value":"4"}]}`
		req, _ := http.NewRequest(http.MethodPost, "/performance/form", bytes.NewBufferString(payload))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Test-Role", string(models.RoleBattalion))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
		require.Contains(t, resp.Body.String(), `"value":"6"`)
		require.NotEmpty(t, stats.replaced)
	})

	t.Run("navigate exhausted", func(t *testing.T) {
		payload := `{"battalionId":5,"moduleId":1,"topicId":10,"month":"2026-08","direction":"next"}`
		req, _ := http.NewRequest(http.MethodPost, "/performance/navigate", bytes.NewBufferString(payload))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Test-Role", string(models.RoleBattalion))
		resp := performRequest(router, req)
		require.Equal(t, http.StatusNotFound, resp.Code)
	})
}
