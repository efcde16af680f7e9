package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkv-labs/pps-api/internal/dto"
	"github.com/dkv-labs/pps-api/internal/models"
	"github.com/dkv-labs/pps-api/internal/repository"
	appErrors "github.com/dkv-labs/pps-api/pkg/errors"
	"github.com/dkv-labs/pps-api/pkg/jobs"
	"github.com/dkv-labs/pps-api/pkg/storage"
)

type mockReportRepo struct {
	jobs    map[string]*models.ReportJob
	updates []repository.UpdateReportJobParams
}

func newMockReportRepo() *mockReportRepo {
	return &mockReportRepo{jobs: make(map[string]*models.ReportJob)}
}

func (m *mockReportRepo) Create(ctx context.Context, job *models.ReportJob) error {
	m.jobs[job.ID] = job
	return nil
}

func (m *mockReportRepo) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	job, ok := m.jobs[id]
	if !ok {
		return nil, appErrors.ErrNotFound
	}
	copied := *job
	return &copied, nil
}

func (m *mockReportRepo) Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error {
	m.updates = append(m.updates, params)
	job := m.jobs[id]
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (m *mockReportRepo) ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error) {
	var out []models.ReportJob
	for _, job := range m.jobs {
		if job.Status == models.ReportStatusQueued {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (m *mockReportRepo) ListByUser(ctx context.Context, userID string, limit int) ([]models.ReportJob, error) {
	var out []models.ReportJob
	for _, job := range m.jobs {
		if job.CreatedBy == userID {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (m *mockReportRepo) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error) {
	return nil, nil
}

type mockReportStats struct {
	rows []repository.ReportRow
}

func (m *mockReportStats) ReportRows(ctx context.Context, battalionID int64, moduleID *int64, month string) ([]repository.ReportRow, error) {
	return m.rows, nil
}

func newReportService(t *testing.T, repo *mockReportRepo, stats *mockReportStats) *ReportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	return NewReportService(repo, stats, store, signer, nil, ReportServiceConfig{WorkerConcurrency: 1}, nil, nil)
}

func TestReportServiceEnqueue(t *testing.T) {
	repo := newMockReportRepo()
	svc := newReportService(t, repo, &mockReportStats{})
	svc.Start(context.Background())
	defer svc.Stop()

	job, err := svc.Enqueue(context.Background(), Actor{UserID: "u1", Role: models.RoleAdmin}, dto.CreateReportRequest{
		Type: models.ReportTypePerformance, BattalionID: 5, Month: "2026-08", Format: models.ReportFormatCSV,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, "u1", job.CreatedBy)
	require.Contains(t, repo.jobs, job.ID)
}

func TestReportServiceEnqueueForeignBattalionRejected(t *testing.T) {
	svc := newReportService(t, newMockReportRepo(), &mockReportStats{})
	own := int64(9)

	_, err := svc.Enqueue(context.Background(), Actor{UserID: "u1", Role: models.RoleBattalion, BattalionID: &own}, dto.CreateReportRequest{
		Type: models.ReportTypePerformance, BattalionID: 5, Month: "2026-08", Format: models.ReportFormatCSV,
	})
	require.Error(t, err)
	appErr := &appErrors.Error{}
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestReportServiceProcessRendersCSV(t *testing.T) {
	repo := newMockReportRepo()
	company := "A Coy"
	stats := &mockReportStats{rows: []repository.ReportRow{
		{BattalionName: "5th Bn", ModuleName: "Manpower", TopicName: "Strength", QuestionText: "Posted", CompanyName: &company, Value: "120", Status: "SAVED"},
	}}
	svc := newReportService(t, repo, stats)

	repo.jobs["job-1"] = &models.ReportJob{
		ID:     "job-1",
		Type:   models.ReportTypePerformance,
		Status: models.ReportStatusQueued,
		Params: models.ReportJobParams{BattalionID: 5, Month: "2026-08", Format: models.ReportFormatCSV},
	}

	err := svc.process(context.Background(), jobs.Job{ID: "job-1"})
	require.NoError(t, err)

	job := repo.jobs["job-1"]
	assert.Equal(t, models.ReportStatusFinished, job.Status)
	assert.Equal(t, 100, job.Progress)
	require.NotNil(t, job.ResultURL)
	require.NotNil(t, job.FinishedAt)

	data, err := os.ReadFile(svc.store.Path(filepath.Base(*job.ResultURL)))
	require.NoError(t, err)
	assert.Contains(t, string(data), "5th Bn")
	assert.Contains(t, string(data), "120")
}

func TestReportServiceGetSignsDownloadURL(t *testing.T) {
	repo := newMockReportRepo()
	svc := newReportService(t, repo, &mockReportStats{})
	result := "job-2.csv"
	repo.jobs["job-2"] = &models.ReportJob{
		ID:        "job-2",
		Status:    models.ReportStatusFinished,
		ResultURL: &result,
		CreatedBy: "u1",
	}

	resp, err := svc.Get(context.Background(), Actor{UserID: "u1", Role: models.RoleBattalion}, "job-2")
	require.NoError(t, err)
	assert.Contains(t, resp.DownloadURL, "/api/v1/downloads/reports?token=")

	_, err = svc.Get(context.Background(), Actor{UserID: "u2", Role: models.RoleBattalion}, "job-2")
	require.Error(t, err)
	appErr := &appErrors.Error{}
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}
