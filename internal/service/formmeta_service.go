package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/dkv-labs/pps-api/internal/formengine"
	"github.com/dkv-labs/pps-api/internal/models"
	appErrors "github.com/dkv-labs/pps-api/pkg/errors"
)

type formMetaRepository interface {
	ListModules(ctx context.Context) ([]models.Module, error)
	FindModule(ctx context.Context, id int64) (*models.Module, error)
	CreateModule(ctx context.Context, module *models.Module) error
	UpdateModule(ctx context.Context, module *models.Module) error
	ListTopics(ctx context.Context, moduleID int64) ([]models.Topic, error)
	FindTopic(ctx context.Context, id int64) (*models.Topic, error)
	CreateTopic(ctx context.Context, topic *models.Topic) error
	UpdateTopic(ctx context.Context, topic *models.Topic) error
	ListSubTopics(ctx context.Context, topicID int64) ([]models.SubTopic, error)
	CreateSubTopic(ctx context.Context, subTopic *models.SubTopic) error
	UpdateSubTopic(ctx context.Context, subTopic *models.SubTopic) error
	ListQuestions(ctx context.Context, topicID int64) ([]models.Question, error)
	CreateQuestion(ctx context.Context, question *models.Question) error
	UpdateQuestion(ctx context.Context, question *models.Question) error
}

type metaCacheStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// FormMetaService administers the form metadata tree. Reads go through a
// short-lived Redis cache; any write invalidates the whole metadata keyspace.
type FormMetaService struct {
	repo      formMetaRepository
	cache     metaCacheStore
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFormMetaService constructs a FormMetaService.
func NewFormMetaService(repo formMetaRepository, cache metaCacheStore, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *FormMetaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &FormMetaService{repo: repo, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

const metaCachePrefix = "formmeta:"

// Modules lists active modules in navigation order.
func (s *FormMetaService) Modules(ctx context.Context) ([]models.Module, error) {
	cacheKey := metaCachePrefix + "modules"
	if s.cache != nil {
		var cached []models.Module
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	modules, err := s.repo.ListModules(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list modules")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, modules, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache modules", zap.Error(err))
		}
	}
	return modules, nil
}

// Topics lists a module's topics in navigation order.
func (s *FormMetaService) Topics(ctx context.Context, moduleID int64) ([]models.Topic, error) {
	cacheKey := fmt.Sprintf("%stopics:%d", metaCachePrefix, moduleID)
	if s.cache != nil {
		var cached []models.Topic
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	topics, err := s.repo.ListTopics(ctx, moduleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list topics")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, topics, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache topics", zap.Error(err))
		}
	}
	return topics, nil
}

// CreateModule adds a module.
func (s *FormMetaService) CreateModule(ctx context.Context, module *models.Module) error {
	if module.Name == "" {
		return appErrors.Clone(appErrors.ErrValidation, "module name is required")
	}
	module.Active = true
	if err := s.repo.CreateModule(ctx, module); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create module")
	}
	s.invalidate(ctx)
	return nil
}

// UpdateModule edits a module.
func (s *FormMetaService) UpdateModule(ctx context.Context, module *models.Module) error {
	if _, err := s.findModule(ctx, module.ID); err != nil {
		return err
	}
	if err := s.repo.UpdateModule(ctx, module); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update module")
	}
	s.invalidate(ctx)
	return nil
}

// CreateTopic adds a topic to a module.
func (s *FormMetaService) CreateTopic(ctx context.Context, topic *models.Topic) error {
	if err := validateTopic(topic); err != nil {
		return err
	}
	if _, err := s.findModule(ctx, topic.ModuleID); err != nil {
		return err
	}
	topic.Active = true
	if err := s.repo.CreateTopic(ctx, topic); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create topic")
	}
	s.invalidate(ctx)
	return nil
}

// UpdateTopic edits a topic.
func (s *FormMetaService) UpdateTopic(ctx context.Context, topic *models.Topic) error {
	if err := validateTopic(topic); err != nil {
		return err
	}
	if _, err := s.repo.FindTopic(ctx, topic.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "topic not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch topic")
	}
	if err := s.repo.UpdateTopic(ctx, topic); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update topic")
	}
	s.invalidate(ctx)
	return nil
}

// CreateSubTopic adds a subtopic to a topic.
func (s *FormMetaService) CreateSubTopic(ctx context.Context, subTopic *models.SubTopic) error {
	if subTopic.Name == "" {
		return appErrors.Clone(appErrors.ErrValidation, "subtopic name is required")
	}
	subTopic.Active = true
	if err := s.repo.CreateSubTopic(ctx, subTopic); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create subtopic")
	}
	s.invalidate(ctx)
	return nil
}

// UpdateSubTopic edits a subtopic.
func (s *FormMetaService) UpdateSubTopic(ctx context.Context, subTopic *models.SubTopic) error {
	if err := s.repo.UpdateSubTopic(ctx, subTopic); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subtopic")
	}
	s.invalidate(ctx)
	return nil
}

// CreateQuestion adds a question, rejecting unparseable formulas up front so
// battalion data entry never sees a metadata error at runtime.
func (s *FormMetaService) CreateQuestion(ctx context.Context, question *models.Question) error {
	if err := validateQuestion(question); err != nil {
		return err
	}
	question.Active = true
	if err := s.repo.CreateQuestion(ctx, question); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create question")
	}
	s.invalidate(ctx)
	return nil
}

// UpdateQuestion edits a question.
func (s *FormMetaService) UpdateQuestion(ctx context.Context, question *models.Question) error {
	if err := validateQuestion(question); err != nil {
		return err
	}
	if err := s.repo.UpdateQuestion(ctx, question); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update question")
	}
	s.invalidate(ctx)
	return nil
}

func (s *FormMetaService) findModule(ctx context.Context, id int64) (*models.Module, error) {
	module, err := s.repo.FindModule(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "module not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch module")
	}
	return module, nil
}

func (s *FormMetaService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, metaCachePrefix+"*"); err != nil {
		s.logger.Warn("failed to invalidate metadata cache", zap.Error(err))
	}
}

func validateTopic(topic *models.Topic) error {
	if topic.Name == "" {
		return appErrors.Clone(appErrors.ErrValidation, "topic name is required")
	}
	switch topic.Layout {
	case models.LayoutNormal, models.LayoutQBySub, models.LayoutSubByQ:
	default:
		return appErrors.Clone(appErrors.ErrValidation, "unknown topic layout")
	}
	if topic.StartMonth < 0 || topic.StartMonth > 12 || topic.EndMonth < 0 || topic.EndMonth > 12 {
		return appErrors.Clone(appErrors.ErrValidation, "months must be in 0..12")
	}
	return nil
}

func validateQuestion(question *models.Question) error {
	if question.Text == "" {
		return appErrors.Clone(appErrors.ErrValidation, "question text is required")
	}
	if question.Formula != "" {
		if _, err := formengine.ParseFormula(question.Formula); err != nil {
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "malformed formula")
		}
	}
	return nil
}
