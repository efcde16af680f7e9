package dto

import "github.com/dkv-labs/pps-api/internal/models"

// CreateReportRequest queues an asynchronous export.
type CreateReportRequest struct {
	Type        models.ReportType   `json:"type" validate:"required,oneof=performance submission"`
	BattalionID int64               `json:"battalionId" validate:"required"`
	ModuleID    *int64              `json:"moduleId,omitempty"`
	Month       string              `json:"month" validate:"required"`
	Format      models.ReportFormat `json:"format" validate:"required,oneof=csv pdf"`
}

// ReportJobResponse decorates a job row with a signed download URL once the
// job has finished.
type ReportJobResponse struct {
	models.ReportJob
	DownloadURL string `json:"downloadUrl,omitempty"`
}
