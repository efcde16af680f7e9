package service

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/dkv-labs/pps-api/pkg/errors"
	"github.com/dkv-labs/pps-api/pkg/storage"
)

// UploadConfig bounds accepted form documents.
type UploadConfig struct {
	PublicBaseURL string
	MaxSizeBytes  int64
	AllowedMIMEs  []string
}

// UploadedFile describes a stored document.
type UploadedFile struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Size     int64  `json:"size"`
}

// UploadService stores form document attachments (PDF and Word files) and
// returns the public URLs the form engine keeps on document fields.
type UploadService struct {
	store   *storage.LocalStorage
	cfg     UploadConfig
	metrics *MetricsService
	logger  *zap.Logger
}

func NewUploadService(store *storage.LocalStorage, cfg UploadConfig, metrics *MetricsService, logger *zap.Logger) *UploadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UploadService{store: store, cfg: cfg, metrics: metrics, logger: logger}
}

// Store validates and persists one uploaded document.
func (s *UploadService) Store(filename, contentType string, size int64, r io.Reader) (*UploadedFile, error) {
	if s.cfg.MaxSizeBytes > 0 && size > s.cfg.MaxSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds the %d byte limit", s.cfg.MaxSizeBytes))
	}
	if !s.mimeAllowed(contentType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("content type %q is not accepted", contentType))
	}

	ext := strings.ToLower(filepath.Ext(filename))
	stored := uuid.NewString() + ext

	limited := io.Reader(r)
	if s.cfg.MaxSizeBytes > 0 {
		// Declared size can lie; cap the stream too.
		limited = io.LimitReader(r, s.cfg.MaxSizeBytes+1)
	}
	relPath, err := s.store.SaveStream(stored, limited)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}

	s.metrics.RecordUpload()
	s.logger.Info("stored uploaded document",
		zap.String("filename", filename),
		zap.String("stored_as", stored),
		zap.Int64("size", size))

	return &UploadedFile{
		Filename: stored,
		URL:      strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + relPath,
		Size:     size,
	}, nil
}

// Open resolves a previously stored file for serving.
func (s *UploadService) Open(filename string) (string, error) {
	clean := filepath.Base(filename)
	if clean != filename || clean == "." || clean == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, "invalid filename")
	}
	return s.store.Path(clean), nil
}

func (s *UploadService) mimeAllowed(contentType string) bool {
	if len(s.cfg.AllowedMIMEs) == 0 {
		return true
	}
	base := contentType
	if idx := strings.Index(base, ";"); idx >= 0 {
		base = base[:idx]
	}
	base = strings.TrimSpace(strings.ToLower(base))
	for _, allowed := range s.cfg.AllowedMIMEs {
		if base == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}
