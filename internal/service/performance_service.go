package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/dkv-labs/pps-api/internal/dto"
	"github.com/dkv-labs/pps-api/internal/formengine"
	"github.com/dkv-labs/pps-api/internal/models"
	appErrors "github.com/dkv-labs/pps-api/pkg/errors"
)

type performanceMetaRepository interface {
	ListModules(ctx context.Context) ([]models.Module, error)
	FindModule(ctx context.Context, id int64) (*models.Module, error)
	ListTopics(ctx context.Context, moduleID int64) ([]models.Topic, error)
	FindTopic(ctx context.Context, id int64) (*models.Topic, error)
	ListSubTopics(ctx context.Context, topicID int64) ([]models.SubTopic, error)
	ListQuestions(ctx context.Context, topicID int64) ([]models.Question, error)
	CountQuestions(ctx context.Context, topicID int64) (int, error)
}

type performanceStatRepository interface {
	List(ctx context.Context, filter models.StatFilter) ([]models.PerformanceStat, error)
	Replace(ctx context.Context, battalionID, topicID int64, month string, stats []models.PerformanceStat) error
	TopicStatus(ctx context.Context, battalionID, topicID int64, month string) (models.StatStatus, error)
	CompanyValues(ctx context.Context, battalionID, topicID int64, month string) ([]models.PerformanceStat, error)
	QuestionSums(ctx context.Context, battalionID, topicID int64, months []string) (map[int64]float64, error)
}

type performanceGeoRepository interface {
	ListCompanies(ctx context.Context, battalionID int64) ([]models.Company, error)
	FindCompanies(ctx context.Context, battalionID int64, ids []int64) ([]models.Company, error)
}

type performanceAuditRepository interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Actor identifies the authenticated caller of a performance operation.
type Actor struct {
	UserID      string
	Role        models.UserRole
	BattalionID *int64
	IP          string
	UserAgent   string
}

type saveKey struct {
	battalionID int64
	topicID     int64
}

// PerformanceService implements topic form retrieval, save/submit and
// content-aware navigation. Saves for the same battalion and topic are
// serialized so concurrent submissions cannot interleave the delete-and-insert
// replacement.
type PerformanceService struct {
	meta    performanceMetaRepository
	stats   performanceStatRepository
	geo     performanceGeoRepository
	audit   performanceAuditRepository
	walker  *formengine.Walker
	rollup  *formengine.RollupConfig
	metrics *MetricsService

	validator *validator.Validate
	logger    *zap.Logger

	mu    sync.Mutex
	locks map[saveKey]*sync.Mutex
}

// NewPerformanceService constructs the service and its navigation walker.
func NewPerformanceService(
	meta performanceMetaRepository,
	stats performanceStatRepository,
	geo performanceGeoRepository,
	audit performanceAuditRepository,
	rollup *formengine.RollupConfig,
	walkerCfg formengine.WalkerConfig,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *PerformanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	s := &PerformanceService{
		meta:      meta,
		stats:     stats,
		geo:       geo,
		audit:     audit,
		rollup:    rollup,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		locks:     make(map[saveKey]*sync.Mutex),
	}
	s.walker = formengine.NewWalker(&metaProber{meta: meta}, walkerCfg, logger)
	return s
}

// GetForm assembles the complete topic form for a battalion and month:
// metadata, prior values, recomputed formulas, status and navigation flags.
func (s *PerformanceService) GetForm(ctx context.Context, actor Actor, req dto.FormRequest) (*dto.FormResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid form request")
	}
	if err := s.checkScope(actor, req.BattalionID); err != nil {
		return nil, err
	}
	if _, err := monthNumber(req.Month); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid month")
	}

	form, err := s.loadForm(ctx, req.BattalionID, req.ModuleID, req.TopicID, req.Month, req.CompanyIDs)
	if err != nil {
		return nil, err
	}

	cache := formengine.NewValueCache()
	if s.rollup.SummaryFor(req.TopicID) {
		if err := s.warmRollupCache(ctx, cache, req.BattalionID, req.Month); err != nil {
			return nil, err
		}
	}

	engine := formengine.NewEngine(form, s.rollup, cache, s.logger)
	engine.RecomputeAll()

	status, err := s.stats.TopicStatus(ctx, req.BattalionID, req.TopicID, req.Month)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve topic status")
	}

	nav, err := s.navigationFlags(ctx, req.ModuleID, req.TopicID)
	if err != nil {
		return nil, err
	}

	return &dto.FormResponse{
		Module:     form.Module,
		Topic:      form.Topic,
		Questions:  form.Questions,
		SubTopics:  form.SubTopics,
		Companies:  form.Companies,
		Fields:     stateToFields(engine.State()),
		Status:     status,
		Navigation: nav,
	}, nil
}

// Save applies submitted field and document values onto the freshly built
// form shape, recomputes, and replaces the battalion's records for the topic
// and month. Submit=true finalizes the topic.
func (s *PerformanceService) Save(ctx context.Context, actor Actor, req dto.SaveFormRequest) (*dto.FormResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid save payload")
	}
	if err := s.checkScope(actor, req.BattalionID); err != nil {
		return nil, err
	}
	month, err := monthNumber(req.Month)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid month")
	}

	lock := s.saveLock(req.BattalionID, req.TopicID)
	lock.Lock()
	defer lock.Unlock()

	current, err := s.stats.TopicStatus(ctx, req.BattalionID, req.TopicID, req.Month)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve topic status")
	}
	next := models.StatusSaved
	if req.Submit {
		next = models.StatusSubmitted
	}
	if !current.CanTransitionTo(next) {
		return nil, appErrors.Clone(appErrors.ErrSubmitted, "topic already submitted for this month")
	}

	form, err := s.loadForm(ctx, req.BattalionID, req.ModuleID, req.TopicID, req.Month, req.CompanyIDs)
	if err != nil {
		return nil, err
	}
	if !form.Topic.OpenInMonth(int(month)) {
		return nil, appErrors.Clone(appErrors.ErrFormClosed, fmt.Sprintf("topic %d is closed in month %s", req.TopicID, req.Month))
	}

	cache := formengine.NewValueCache()
	if s.rollup.SummaryFor(req.TopicID) {
		if err := s.warmRollupCache(ctx, cache, req.BattalionID, req.Month); err != nil {
			return nil, err
		}
	}

	engine := formengine.NewEngine(form, s.rollup, cache, s.logger)

	// Base fields first so count questions materialize their date series,
	// then the sub-field values that depend on those slots existing.
	for _, f := range req.Fields {
		if f.Seq == 0 {
			engine.SetField(fieldKeyOf(f), f.Value)
		}
	}
	engine.RecomputeAll()
	for _, f := range req.Fields {
		if f.Seq != 0 {
			engine.SetField(fieldKeyOf(f), f.Value)
		}
	}
	for _, d := range req.Documents {
		engine.SetDocument(formengine.FieldKey{
			QuestionID: d.QuestionID,
			SubTopicID: derefInt64(d.SubTopicID),
			CompanyID:  derefInt64(d.CompanyID),
		}, formengine.DocumentRef{PDFURL: d.PDFURL, WordURL: d.WordURL})
	}
	engine.RecomputeAll()

	records := formengine.AssembleStats(engine.State(), formengine.SubmissionScope{
		BattalionID: req.BattalionID,
		ModuleID:    req.ModuleID,
		TopicID:     req.TopicID,
		Month:       req.Month,
	}, next)
	if err := s.stats.Replace(ctx, req.BattalionID, req.TopicID, req.Month, records); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist statistics")
	}

	s.writeAudit(ctx, actor, req, next)
	s.metrics.RecordSave(string(next))

	nav, err := s.navigationFlags(ctx, req.ModuleID, req.TopicID)
	if err != nil {
		return nil, err
	}
	return &dto.FormResponse{
		Module:     form.Module,
		Topic:      form.Topic,
		Questions:  form.Questions,
		SubTopics:  form.SubTopics,
		Companies:  form.Companies,
		Fields:     stateToFields(engine.State()),
		Status:     next,
		Navigation: nav,
	}, nil
}

// Navigate resolves the next or previous topic that has content for the month.
func (s *PerformanceService) Navigate(ctx context.Context, actor Actor, req dto.NavigateRequest) (*dto.NavigateResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid navigation request")
	}
	if err := s.checkScope(actor, req.BattalionID); err != nil {
		return nil, err
	}
	month, err := monthNumber(req.Month)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid month")
	}

	pos := formengine.Position{ModuleID: req.ModuleID, TopicID: req.TopicID}
	var next formengine.Position
	if req.Direction == "prev" {
		next, err = s.walker.Prev(ctx, pos, month, actor.Role)
	} else {
		next, err = s.walker.Next(ctx, pos, month, actor.Role)
	}
	if err != nil {
		switch {
		case errors.Is(err, formengine.ErrNavigationExhausted):
			return nil, appErrors.Clone(appErrors.ErrNoFurtherContent, "no further topic with content")
		case errors.Is(err, formengine.ErrWalkInProgress):
			return nil, appErrors.Clone(appErrors.ErrConflict, "a navigation is already in progress")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "navigation failed")
		}
	}

	s.metrics.RecordNavigation(req.Direction)
	return &dto.NavigateResponse{ModuleID: next.ModuleID, TopicID: next.TopicID}, nil
}

func (s *PerformanceService) checkScope(actor Actor, battalionID int64) error {
	if actor.Role != models.RoleBattalion {
		return nil
	}
	if actor.BattalionID == nil || *actor.BattalionID != battalionID {
		return appErrors.Clone(appErrors.ErrForbidden, "battalion accounts may only access their own battalion")
	}
	return nil
}

// loadForm gathers the metadata tree slice and the battalion's prior records
// into the document the form engine consumes.
func (s *PerformanceService) loadForm(ctx context.Context, battalionID, moduleID, topicID int64, month string, companyIDs []int64) (*models.TopicForm, error) {
	topic, err := s.meta.FindTopic(ctx, topicID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "topic not found")
	}
	if !topic.Active || topic.ModuleID != moduleID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("topic %d not found under module %d", topicID, moduleID))
	}
	module, err := s.meta.FindModule(ctx, moduleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "module not found")
	}
	questions, err := s.meta.ListQuestions(ctx, topicID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list questions")
	}
	subTopics, err := s.meta.ListSubTopics(ctx, topicID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sub topics")
	}

	companies, err := s.resolveCompanies(ctx, battalionID, topicID, companyIDs)
	if err != nil {
		return nil, err
	}

	prior, err := s.stats.List(ctx, models.StatFilter{
		BattalionID: battalionID,
		ModuleID:    moduleID,
		TopicID:     topicID,
		Month:       month,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prior statistics")
	}

	if err := s.attachCounts(ctx, battalionID, topic, questions, month); err != nil {
		return nil, err
	}

	return &models.TopicForm{
		Module:    *module,
		Topic:     *topic,
		Questions: questions,
		SubTopics: subTopics,
		Companies: companies,
		Prior:     prior,
		IsSuccess: true,
	}, nil
}

// resolveCompanies picks the company scope for the topic. The roll-up topics
// always see every company of the battalion so aggregation is complete;
// otherwise an explicit selection narrows the scope.
func (s *PerformanceService) resolveCompanies(ctx context.Context, battalionID, topicID int64, ids []int64) ([]models.Company, error) {
	var (
		companies []models.Company
		err       error
	)
	switch {
	case s.rollup.SummaryFor(topicID) || s.rollup.SourceFor(topicID):
		companies, err = s.geo.ListCompanies(ctx, battalionID)
	case len(ids) > 0:
		companies, err = s.geo.FindCompanies(ctx, battalionID, ids)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve companies")
	}
	return companies, nil
}

// attachCounts fills the per-question count metadata: the addressed month's
// own sum, plus the previous-month and fiscal-year sums when the topic
// declares it shows them. Sums come from persisted numeric values;
// non-numeric entries contribute zero.
func (s *PerformanceService) attachCounts(ctx context.Context, battalionID int64, topic *models.Topic, questions []models.Question, month string) error {
	current, err := s.stats.QuestionSums(ctx, battalionID, topic.ID, []string{month})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum current month")
	}
	for i := range questions {
		if v, ok := current[questions[i].ID]; ok {
			questions[i].CurrentCount = formatSum(v)
		}
	}

	if topic.ShowPrevious {
		prev, err := previousMonth(month)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid month")
		}
		sums, err := s.stats.QuestionSums(ctx, battalionID, topic.ID, []string{prev})
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum previous month")
		}
		for i := range questions {
			if v, ok := sums[questions[i].ID]; ok {
				questions[i].PreviousCount = formatSum(v)
			}
		}
	}
	if topic.ShowCumulative {
		months, err := fiscalYearMonths(month)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid month")
		}
		sums, err := s.stats.QuestionSums(ctx, battalionID, topic.ID, months)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum fiscal year")
		}
		for i := range questions {
			if v, ok := sums[questions[i].ID]; ok {
				questions[i].FiscalYearCount = formatSum(v)
			}
		}
	}
	return nil
}

// warmRollupCache seeds the aggregation cache with the persisted
// company-scoped values of the source topic.
func (s *PerformanceService) warmRollupCache(ctx context.Context, cache *formengine.ValueCache, battalionID int64, month string) error {
	records, err := s.stats.CompanyValues(ctx, battalionID, s.rollup.SourceTopicID, month)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load company values")
	}
	for _, rec := range records {
		if rec.CompanyID == nil || rec.Seq != 0 {
			continue
		}
		cache.Put(*rec.CompanyID, rec.QuestionID, derefInt64(rec.SubTopicID), rec.Value)
	}
	return nil
}

func (s *PerformanceService) navigationFlags(ctx context.Context, moduleID, topicID int64) (dto.NavigationFlags, error) {
	var flags dto.NavigationFlags
	modules, err := s.meta.ListModules(ctx)
	if err != nil {
		return flags, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list modules")
	}
	topics, err := s.meta.ListTopics(ctx, moduleID)
	if err != nil {
		return flags, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list topics")
	}
	for i, m := range modules {
		if m.ID == moduleID {
			flags.PrevModule = i > 0
			flags.NextModule = i < len(modules)-1
			break
		}
	}
	for i, t := range topics {
		if t.ID == topicID {
			flags.PrevTopic = i > 0
			flags.NextTopic = i < len(topics)-1
			break
		}
	}
	return flags, nil
}

func (s *PerformanceService) saveLock(battalionID, topicID int64) *sync.Mutex {
	key := saveKey{battalionID: battalionID, topicID: topicID}
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}

func (s *PerformanceService) writeAudit(ctx context.Context, actor Actor, req dto.SaveFormRequest, status models.StatStatus) {
	action := models.AuditActionSave
	if status == models.StatusSubmitted {
		action = models.AuditActionSubmit
	}
	payload, _ := json.Marshal(map[string]interface{}{
		"battalion_id": req.BattalionID,
		"module_id":    req.ModuleID,
		"topic_id":     req.TopicID,
		"month":        req.Month,
		"fields":       len(req.Fields),
	})
	resourceID := fmt.Sprintf("%d:%d:%s", req.BattalionID, req.TopicID, req.Month)
	entry := &models.AuditLog{
		Action:     action,
		Resource:   "performance_statistics",
		ResourceID: &resourceID,
		NewValues:  payload,
		IPAddress:  actor.IP,
		UserAgent:  actor.UserAgent,
	}
	if actor.UserID != "" {
		entry.UserID = &actor.UserID
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to write audit log", zap.Error(err))
	}
}

// metaProber adapts the metadata repository to the walker's probing contract.
type metaProber struct {
	meta performanceMetaRepository
}

func (p *metaProber) ModuleIDs(ctx context.Context) ([]int64, error) {
	modules, err := p.meta.ListModules(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(modules))
	for _, m := range modules {
		if m.Active {
			ids = append(ids, m.ID)
		}
	}
	return ids, nil
}

func (p *metaProber) TopicIDs(ctx context.Context, moduleID int64) ([]int64, error) {
	topics, err := p.meta.ListTopics(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(topics))
	for _, t := range topics {
		if t.Active {
			ids = append(ids, t.ID)
		}
	}
	return ids, nil
}

func (p *metaProber) HasContent(ctx context.Context, moduleID, topicID int64, month time.Month) (bool, error) {
	topic, err := p.meta.FindTopic(ctx, topicID)
	if err != nil {
		return false, err
	}
	if !topic.Active || topic.ModuleID != moduleID || !topic.OpenInMonth(int(month)) {
		return false, nil
	}
	count, err := p.meta.CountQuestions(ctx, topicID)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func stateToFields(state *formengine.FormState) []dto.FormField {
	fields := make([]dto.FormField, 0, state.Len())
	for _, key := range state.Keys() {
		field := dto.FormField{
			QuestionID: key.QuestionID,
			SubTopicID: key.SubTopicID,
			CompanyID:  key.CompanyID,
			Seq:        key.Seq,
			Value:      state.Value(key),
		}
		if ref, ok := state.Document(key); ok && !ref.Empty() {
			field.Document = &dto.DocumentRef{PDFURL: ref.PDFURL, WordURL: ref.WordURL}
		}
		fields = append(fields, field)
	}
	return fields
}

func fieldKeyOf(f dto.FieldValue) formengine.FieldKey {
	return formengine.FieldKey{
		QuestionID: f.QuestionID,
		SubTopicID: derefInt64(f.SubTopicID),
		CompanyID:  derefInt64(f.CompanyID),
		Seq:        f.Seq,
	}
}

func derefInt64(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

// monthNumber parses a "YYYY-MM" month key into its calendar month.
func monthNumber(month string) (time.Month, error) {
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return 0, fmt.Errorf("parse month %q: %w", month, err)
	}
	return t.Month(), nil
}

// previousMonth returns the month key immediately before the given one.
func previousMonth(month string) (string, error) {
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return "", fmt.Errorf("parse month %q: %w", month, err)
	}
	return t.AddDate(0, -1, 0).Format("2006-01"), nil
}

// fiscalYearMonths lists the month keys from the fiscal-year start (April)
// through the given month, inclusive.
func fiscalYearMonths(month string) ([]string, error) {
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return nil, fmt.Errorf("parse month %q: %w", month, err)
	}
	start := time.Date(t.Year(), time.April, 1, 0, 0, 0, 0, time.UTC)
	if t.Month() < time.April {
		start = start.AddDate(-1, 0, 0)
	}
	months := make([]string, 0, 12)
	for cur := start; !cur.After(t); cur = cur.AddDate(0, 1, 0) {
		months = append(months, cur.Format("2006-01"))
	}
	return months, nil
}

func formatSum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
