package service

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dkv-labs/pps-api/internal/dto"
	"github.com/dkv-labs/pps-api/internal/models"
	"github.com/dkv-labs/pps-api/internal/repository"
	appErrors "github.com/dkv-labs/pps-api/pkg/errors"
	"github.com/dkv-labs/pps-api/pkg/export"
	"github.com/dkv-labs/pps-api/pkg/jobs"
	"github.com/dkv-labs/pps-api/pkg/storage"
)

type reportJobRepository interface {
	Create(ctx context.Context, job *models.ReportJob) error
	GetByID(ctx context.Context, id string) (*models.ReportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]models.ReportJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error)
}

type reportStatRepository interface {
	ReportRows(ctx context.Context, battalionID int64, moduleID *int64, month string) ([]repository.ReportRow, error)
}

// ReportServiceConfig tunes the asynchronous export pipeline.
type ReportServiceConfig struct {
	WorkerConcurrency int
	WorkerRetries     int
	CleanupInterval   time.Duration
	ResultTTL         time.Duration
}

// ReportService queues performance exports, renders them on background
// workers, and serves the results through signed download tokens.
type ReportService struct {
	repo    reportJobRepository
	stats   reportStatRepository
	store   *storage.LocalStorage
	signer  *storage.SignedURLSigner
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	metrics *MetricsService

	queue     *jobs.Queue
	cfg       ReportServiceConfig
	validator *validator.Validate
	logger    *zap.Logger
}

func NewReportService(
	repo reportJobRepository,
	stats reportStatRepository,
	store *storage.LocalStorage,
	signer *storage.SignedURLSigner,
	metrics *MetricsService,
	cfg ReportServiceConfig,
	validate *validator.Validate,
	logger *zap.Logger,
) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	s := &ReportService{
		repo:      repo,
		stats:     stats,
		store:     store,
		signer:    signer,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		metrics:   metrics,
		cfg:       cfg,
		validator: validate,
		logger:    logger,
	}
	s.queue = jobs.NewQueue("reports", s.process, jobs.QueueConfig{
		Workers:    cfg.WorkerConcurrency,
		MaxRetries: cfg.WorkerRetries,
		Logger:     logger,
	})
	return s
}

// Start launches the worker pool, requeues jobs left QUEUED by a previous
// run, and begins the result cleanup loop.
func (s *ReportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
	s.requeuePending(ctx)
	if s.cfg.CleanupInterval > 0 {
		go s.cleanupLoop(ctx)
	}
}

// Stop drains the worker pool.
func (s *ReportService) Stop() {
	s.queue.Stop()
}

// Enqueue validates and persists a report job and hands it to the workers.
func (s *ReportService) Enqueue(ctx context.Context, actor Actor, req dto.CreateReportRequest) (*models.ReportJob, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report request")
	}
	if _, err := monthNumber(req.Month); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid month")
	}
	if actor.Role == models.RoleBattalion {
		if actor.BattalionID == nil || *actor.BattalionID != req.BattalionID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "battalion accounts may only export their own battalion")
		}
	}

	job := &models.ReportJob{
		ID:   uuid.NewString(),
		Type: req.Type,
		Params: models.ReportJobParams{
			BattalionID: req.BattalionID,
			ModuleID:    req.ModuleID,
			Month:       req.Month,
			Format:      req.Format,
		},
		Status:    models.ReportStatusQueued,
		CreatedBy: actor.UserID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
		s.logger.Error("failed to enqueue report job", zap.String("job_id", job.ID), zap.Error(err))
	}
	return job, nil
}

// Get returns a job, decorated with a signed download URL when finished. Only
// the creator (or an admin role) may read a job.
func (s *ReportService) Get(ctx context.Context, actor Actor, id string) (*dto.ReportJobResponse, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "report job not found")
	}
	if job.CreatedBy != actor.UserID && actor.Role != models.RoleAdmin && actor.Role != models.RoleSuperAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "report job belongs to another user")
	}
	resp := &dto.ReportJobResponse{ReportJob: *job}
	if job.Status == models.ReportStatusFinished && job.ResultURL != nil {
		token, _, err := s.signer.Generate(job.ID, *job.ResultURL)
		if err != nil {
			s.logger.Warn("failed to sign download url", zap.String("job_id", job.ID), zap.Error(err))
		} else {
			resp.DownloadURL = fmt.Sprintf("/api/v1/downloads/reports?token=%s", token)
		}
	}
	return resp, nil
}

// ListMine returns the caller's recent jobs.
func (s *ReportService) ListMine(ctx context.Context, actor Actor, limit int) ([]models.ReportJob, error) {
	jobs, err := s.repo.ListByUser(ctx, actor.UserID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list report jobs")
	}
	return jobs, nil
}

// ResolveDownload validates a signed token and returns the stored file path.
func (s *ReportService) ResolveDownload(ctx context.Context, token string) (string, error) {
	jobID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid download token")
	}
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "report job not found")
	}
	if job.Status != models.ReportStatusFinished || job.ResultURL == nil || *job.ResultURL != relPath {
		return "", appErrors.Clone(appErrors.ErrNotFound, "report result not available")
	}
	return s.store.Path(relPath), nil
}

// process renders one job. Failures are recorded on the row; the queue retries
// transient errors.
func (s *ReportService) process(ctx context.Context, job jobs.Job) error {
	row, err := s.repo.GetByID(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("load report job %s: %w", job.ID, err)
	}
	if row.Status == models.ReportStatusFinished {
		return nil
	}

	processing := models.ReportStatusProcessing
	progress := 10
	if err := s.repo.Update(ctx, row.ID, repository.UpdateReportJobParams{Status: &processing, Progress: &progress}); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	rows, err := s.stats.ReportRows(ctx, row.Params.BattalionID, row.Params.ModuleID, row.Params.Month)
	if err != nil {
		s.fail(ctx, row.ID, err)
		return fmt.Errorf("collect report rows: %w", err)
	}

	dataset := reportDataset(rows)
	var rendered []byte
	switch row.Params.Format {
	case models.ReportFormatPDF:
		title := "Performance Report"
		subtitle := fmt.Sprintf("Battalion %d, %s", row.Params.BattalionID, row.Params.Month)
		rendered, err = s.pdf.Render(dataset, title, subtitle)
	default:
		rendered, err = s.csv.Render(dataset)
	}
	if err != nil {
		s.fail(ctx, row.ID, err)
		return fmt.Errorf("render report: %w", err)
	}

	filename := fmt.Sprintf("%s.%s", row.ID, row.Params.Format)
	relPath, err := s.store.Save(filename, rendered)
	if err != nil {
		s.fail(ctx, row.ID, err)
		return fmt.Errorf("store report: %w", err)
	}

	finished := models.ReportStatusFinished
	done := 100
	now := time.Now().UTC()
	if err := s.repo.Update(ctx, row.ID, repository.UpdateReportJobParams{
		Status:     &finished,
		Progress:   &done,
		ResultURL:  &relPath,
		FinishedAt: &now,
	}); err != nil {
		return fmt.Errorf("mark finished: %w", err)
	}
	s.metrics.RecordReportJob(string(finished))
	s.logger.Info("report job finished", zap.String("job_id", row.ID), zap.Int("rows", len(rows)))
	return nil
}

func (s *ReportService) fail(ctx context.Context, id string, cause error) {
	failed := models.ReportStatusFailed
	msg := cause.Error()
	now := time.Now().UTC()
	if err := s.repo.Update(ctx, id, repository.UpdateReportJobParams{
		Status:       &failed,
		ErrorMessage: &msg,
		FinishedAt:   &now,
	}); err != nil {
		s.logger.Error("failed to mark report job failed", zap.String("job_id", id), zap.Error(err))
	}
	s.metrics.RecordReportJob(string(failed))
}

func (s *ReportService) requeuePending(ctx context.Context) {
	pending, err := s.repo.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Warn("failed to list queued report jobs", zap.Error(err))
		return
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
			s.logger.Warn("failed to requeue report job", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
}

// cleanupLoop periodically deletes stored results whose retention expired.
func (s *ReportService) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanupOnce(ctx)
		}
	}
}

func (s *ReportService) cleanupOnce(ctx context.Context) {
	ttl := s.cfg.ResultTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	cutoff := time.Now().UTC().Add(-ttl)
	finished, err := s.repo.ListFinishedBefore(ctx, cutoff, 50)
	if err != nil {
		s.logger.Warn("failed to list expired report jobs", zap.Error(err))
		return
	}
	for _, job := range finished {
		if job.ResultURL == nil {
			continue
		}
		if err := s.store.Delete(filepath.Base(*job.ResultURL)); err != nil {
			s.logger.Warn("failed to delete report result", zap.String("job_id", job.ID), zap.Error(err))
			continue
		}
		empty := ""
		if err := s.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{ResultURL: &empty}); err != nil {
			s.logger.Warn("failed to clear result url", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
}

func reportDataset(rows []repository.ReportRow) export.Dataset {
	headers := []string{"Battalion", "Module", "Topic", "Question", "Sub Topic", "Company", "Seq", "Value", "Status"}
	out := make([]map[string]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, map[string]string{
			"Battalion": r.BattalionName,
			"Module":    r.ModuleName,
			"Topic":     r.TopicName,
			"Question":  r.QuestionText,
			"Sub Topic": derefString(r.SubTopicName),
			"Company":   derefString(r.CompanyName),
			"Seq":       fmt.Sprintf("%d", r.Seq),
			"Value":     r.Value,
			"Status":    r.Status,
		})
	}
	return export.Dataset{Headers: headers, Rows: out}
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
