package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkv-labs/pps-api/internal/dto"
	"github.com/dkv-labs/pps-api/internal/formengine"
	"github.com/dkv-labs/pps-api/internal/models"
	appErrors "github.com/dkv-labs/pps-api/pkg/errors"
)

type mockPerfMeta struct {
	modules   []models.Module
	topics    map[int64][]models.Topic
	subTopics map[int64][]models.SubTopic
	questions map[int64][]models.Question
}

func (m *mockPerfMeta) ListModules(ctx context.Context) ([]models.Module, error) {
	return m.modules, nil
}

func (m *mockPerfMeta) FindModule(ctx context.Context, id int64) (*models.Module, error) {
	for i := range m.modules {
		if m.modules[i].ID == id {
			return &m.modules[i], nil
		}
	}
	return nil, appErrors.ErrNotFound
}

func (m *mockPerfMeta) ListTopics(ctx context.Context, moduleID int64) ([]models.Topic, error) {
	return m.topics[moduleID], nil
}

func (m *mockPerfMeta) FindTopic(ctx context.Context, id int64) (*models.Topic, error) {
	for _, topics := range m.topics {
		for i := range topics {
			if topics[i].ID == id {
				return &topics[i], nil
			}
		}
	}
	return nil, appErrors.ErrNotFound
}

func (m *mockPerfMeta) ListSubTopics(ctx context.Context, topicID int64) ([]models.SubTopic, error) {
	return m.subTopics[topicID], nil
}

func (m *mockPerfMeta) ListQuestions(ctx context.Context, topicID int64) ([]models.Question, error) {
	return m.questions[topicID], nil
}

func (m *mockPerfMeta) CountQuestions(ctx context.Context, topicID int64) (int, error) {
	return len(m.questions[topicID]), nil
}

type mockPerfStats struct {
	prior         []models.PerformanceStat
	status        models.StatStatus
	sums          map[int64]float64
	companyValues []models.PerformanceStat

	replaced       []models.PerformanceStat
	replacedMonth  string
	updatedStatus  models.StatStatus
	replaceInvoked bool
}

func (m *mockPerfStats) List(ctx context.Context, filter models.StatFilter) ([]models.PerformanceStat, error) {
	return m.prior, nil
}

func (m *mockPerfStats) Replace(ctx context.Context, battalionID, topicID int64, month string, stats []models.PerformanceStat) error {
	m.replaceInvoked = true
	m.replaced = stats
	m.replacedMonth = month
	if len(stats) > 0 {
		m.updatedStatus = stats[0].Status
	}
	return nil
}

func (m *mockPerfStats) TopicStatus(ctx context.Context, battalionID, topicID int64, month string) (models.StatStatus, error) {
	if m.status == "" {
		return models.StatusDraft, nil
	}
	return m.status, nil
}

func (m *mockPerfStats) CompanyValues(ctx context.Context, battalionID, topicID int64, month string) ([]models.PerformanceStat, error) {
	return m.companyValues, nil
}

func (m *mockPerfStats) QuestionSums(ctx context.Context, battalionID, topicID int64, months []string) (map[int64]float64, error) {
	return m.sums, nil
}

type mockPerfGeo struct {
	companies []models.Company
}

func (m *mockPerfGeo) ListCompanies(ctx context.Context, battalionID int64) ([]models.Company, error) {
	return m.companies, nil
}

func (m *mockPerfGeo) FindCompanies(ctx context.Context, battalionID int64, ids []int64) ([]models.Company, error) {
	var out []models.Company
	for _, c := range m.companies {
		for _, id := range ids {
			if c.ID == id {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

type mockPerfAudit struct {
	logs []*models.AuditLog
}

func (m *mockPerfAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

func flatMeta() *mockPerfMeta {
	return &mockPerfMeta{
		modules: []models.Module{
			{ID: 1, Name: "Manpower", Priority: 1, Active: true},
			{ID: 2, Name: "Operations", Priority: 2, Active: true},
		},
		topics: map[int64][]models.Topic{
			1: {
				{ID: 10, ModuleID: 1, Name: "Strength", Layout: models.LayoutNormal, Active: true},
				{ID: 11, ModuleID: 1, Name: "Leave", Layout: models.LayoutNormal, Active: true},
			},
			2: {
				{ID: 20, ModuleID: 2, Name: "Patrolling", Layout: models.LayoutNormal, Active: true},
			},
		},
		questions: map[int64][]models.Question{
			10: {
				{ID: 651, TopicID: 10, Text: "Sanctioned", Type: models.QuestionNumber, Priority: 1, Active: true},
				{ID: 652, TopicID: 10, Text: "Vacant", Type: models.QuestionNumber, Priority: 2, Active: true},
				{ID: 653, TopicID: 10, Text: "Posted", Type: models.QuestionNumber, Formula: "651-652=653", Priority: 3, Active: true},
			},
			11: {
				{ID: 700, TopicID: 11, Text: "On leave", Type: models.QuestionNumber, Priority: 1, Active: true},
			},
			20: {
				{ID: 800, TopicID: 20, Text: "Night patrols", Type: models.QuestionNumber, Priority: 1, Active: true},
			},
		},
	}
}

func newPerfService(meta *mockPerfMeta, stats *mockPerfStats, geo *mockPerfGeo, audit *mockPerfAudit) *PerformanceService {
	return NewPerformanceService(meta, stats, geo, audit, nil, formengine.WalkerConfig{}, nil, nil, nil)
}

func TestPerformanceServiceGetForm(t *testing.T) {
	stats := &mockPerfStats{
		prior: []models.PerformanceStat{
			{QuestionID: 651, Value: "10", Status: models.StatusSaved},
			{QuestionID: 652, Value: "4", Status: models.StatusSaved},
		},
		status: models.StatusSaved,
	}
	svc := newPerfService(flatMeta(), stats, &mockPerfGeo{}, &mockPerfAudit{})

	resp, err := svc.GetForm(context.Background(), Actor{UserID: "u1", Role: models.RoleAdmin}, dto.FormRequest{
		BattalionID: 5, ModuleID: 1, TopicID: 10, Month: "2026-08",
	})
	require.NoError(t, err)
	require.Len(t, resp.Fields, 3)

	values := map[int64]string{}
	for _, f := range resp.Fields {
		values[f.QuestionID] = f.Value
	}
	assert.Equal(t, "10", values[651])
	assert.Equal(t, "4", values[652])
	assert.Equal(t, "6", values[653])
	assert.Equal(t, models.StatusSaved, resp.Status)
	assert.True(t, resp.Navigation.NextModule)
	assert.False(t, resp.Navigation.PrevModule)
	assert.True(t, resp.Navigation.NextTopic)
	assert.False(t, resp.Navigation.PrevTopic)
}

// A question with persisted values for the addressed month but no record for
// a specific field pre-fills that field from the month's own sum.
func TestPerformanceServiceGetFormPrefillsCurrentCount(t *testing.T) {
	stats := &mockPerfStats{sums: map[int64]float64{700: 12}}
	svc := newPerfService(flatMeta(), stats, &mockPerfGeo{}, &mockPerfAudit{})

	resp, err := svc.GetForm(context.Background(), Actor{UserID: "u1", Role: models.RoleAdmin}, dto.FormRequest{
		BattalionID: 5, ModuleID: 1, TopicID: 11, Month: "2026-08",
	})
	require.NoError(t, err)
	require.Len(t, resp.Questions, 1)
	assert.Equal(t, "12", resp.Questions[0].CurrentCount)
	require.Len(t, resp.Fields, 1)
	assert.Equal(t, "12", resp.Fields[0].Value)
}

func TestPerformanceServiceGetFormWrongModule(t *testing.T) {
	svc := newPerfService(flatMeta(), &mockPerfStats{}, &mockPerfGeo{}, &mockPerfAudit{})

	_, err := svc.GetForm(context.Background(), Actor{UserID: "u1", Role: models.RoleAdmin}, dto.FormRequest{
		BattalionID: 5, ModuleID: 2, TopicID: 10, Month: "2026-08",
	})
	require.Error(t, err)
	appErr := &appErrors.Error{}
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestPerformanceServiceBattalionScope(t *testing.T) {
	svc := newPerfService(flatMeta(), &mockPerfStats{}, &mockPerfGeo{}, &mockPerfAudit{})
	other := int64(9)

	_, err := svc.GetForm(context.Background(), Actor{UserID: "u1", Role: models.RoleBattalion, BattalionID: &other}, dto.FormRequest{
		BattalionID: 5, ModuleID: 1, TopicID: 10, Month: "2026-08",
	})
	require.Error(t, err)
	appErr := &appErrors.Error{}
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	own := int64(5)
	_, err = svc.GetForm(context.Background(), Actor{UserID: "u1", Role: models.RoleBattalion, BattalionID: &own}, dto.FormRequest{
		BattalionID: 5, ModuleID: 1, TopicID: 10, Month: "2026-08",
	})
	require.NoError(t, err)
}

func TestPerformanceServiceSaveComputesAndPersists(t *testing.T) {
	stats := &mockPerfStats{}
	audit := &mockPerfAudit{}
	svc := newPerfService(flatMeta(), stats, &mockPerfGeo{}, audit)

	resp, err := svc.Save(context.Background(), Actor{UserID: "u1", Role: models.RoleAdmin}, dto.SaveFormRequest{
		BattalionID: 5, ModuleID: 1, TopicID: 10, Month: "2026-08",
		Fields: []dto.FieldValue{
			{QuestionID: 651, Value: "10"},
			{QuestionID: 652, Value: "4"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusSaved, resp.Status)

	require.True(t, stats.replaceInvoked)
	assert.Equal(t, "2026-08", stats.replacedMonth)
	persisted := map[int64]string{}
	for _, rec := range stats.replaced {
		persisted[rec.QuestionID] = rec.Value
		assert.Equal(t, models.StatusSaved, rec.Status)
		assert.Equal(t, int64(5), rec.BattalionID)
	}
	assert.Equal(t, "6", persisted[653])

	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionSave, audit.logs[0].Action)
}

func TestPerformanceServiceSubmitFinalizes(t *testing.T) {
	stats := &mockPerfStats{}
	audit := &mockPerfAudit{}
	svc := newPerfService(flatMeta(), stats, &mockPerfGeo{}, audit)

	resp, err := svc.Save(context.Background(), Actor{UserID: "u1", Role: models.RoleAdmin}, dto.SaveFormRequest{
		BattalionID: 5, ModuleID: 1, TopicID: 10, Month: "2026-08", Submit: true,
		Fields: []dto.FieldValue{{QuestionID: 651, Value: "3"}},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, resp.Status)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionSubmit, audit.logs[0].Action)
}

func TestPerformanceServiceSaveAfterSubmitRejected(t *testing.T) {
	stats := &mockPerfStats{status: models.StatusSubmitted}
	svc := newPerfService(flatMeta(), stats, &mockPerfGeo{}, &mockPerfAudit{})

	_, err := svc.Save(context.Background(), Actor{UserID: "u1", Role: models.RoleAdmin}, dto.SaveFormRequest{
		BattalionID: 5, ModuleID: 1, TopicID: 10, Month: "2026-08",
		Fields: []dto.FieldValue{{QuestionID: 651, Value: "1"}},
	})
	require.Error(t, err)
	appErr := &appErrors.Error{}
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrSubmitted.Code, appErr.Code)
	assert.False(t, stats.replaceInvoked)
}

func TestPerformanceServiceSaveOutsideWindow(t *testing.T) {
	meta := flatMeta()
	topics := meta.topics[1]
	topics[0].StartMonth = 1
	topics[0].EndMonth = 3
	svc := newPerfService(meta, &mockPerfStats{}, &mockPerfGeo{}, &mockPerfAudit{})

	_, err := svc.Save(context.Background(), Actor{UserID: "u1", Role: models.RoleAdmin}, dto.SaveFormRequest{
		BattalionID: 5, ModuleID: 1, TopicID: 10, Month: "2026-08",
		Fields: []dto.FieldValue{{QuestionID: 651, Value: "1"}},
	})
	require.Error(t, err)
	appErr := &appErrors.Error{}
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrFormClosed.Code, appErr.Code)
}

func TestPerformanceServiceSaveDocuments(t *testing.T) {
	meta := flatMeta()
	meta.questions[10] = append(meta.questions[10], models.Question{
		ID: 654, TopicID: 10, Text: "Order copy", Type: models.QuestionPDFDocument, Priority: 4, Active: true,
	})
	stats := &mockPerfStats{}
	svc := newPerfService(meta, stats, &mockPerfGeo{}, &mockPerfAudit{})

	_, err := svc.Save(context.Background(), Actor{UserID: "u1", Role: models.RoleAdmin}, dto.SaveFormRequest{
		BattalionID: 5, ModuleID: 1, TopicID: 10, Month: "2026-08",
		Documents: []dto.DocumentValue{{QuestionID: 654, PDFURL: "/files/order.pdf"}},
	})
	require.NoError(t, err)

	var docRec *models.PerformanceStat
	for i := range stats.replaced {
		if stats.replaced[i].QuestionID == 654 {
			docRec = &stats.replaced[i]
		}
	}
	require.NotNil(t, docRec)
	assert.Equal(t, formengine.SeqDocumentPDF, docRec.Seq)
	assert.Equal(t, "/files/order.pdf", docRec.Value)
}

func TestPerformanceServiceNavigateNext(t *testing.T) {
	svc := newPerfService(flatMeta(), &mockPerfStats{}, &mockPerfGeo{}, &mockPerfAudit{})

	resp, err := svc.Navigate(context.Background(), Actor{UserID: "u1", Role: models.RoleAdmin}, dto.NavigateRequest{
		BattalionID: 5, ModuleID: 1, TopicID: 10, Month: "2026-08", Direction: "next",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.ModuleID)
	assert.Equal(t, int64(11), resp.TopicID)
}

func TestPerformanceServiceNavigateCrossesModule(t *testing.T) {
	svc := newPerfService(flatMeta(), &mockPerfStats{}, &mockPerfGeo{}, &mockPerfAudit{})

	resp, err := svc.Navigate(context.Background(), Actor{UserID: "u1", Role: models.RoleAdmin}, dto.NavigateRequest{
		BattalionID: 5, ModuleID: 1, TopicID: 11, Month: "2026-08", Direction: "next",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.ModuleID)
	assert.Equal(t, int64(20), resp.TopicID)
}

func TestPerformanceServiceNavigateExhausted(t *testing.T) {
	svc := newPerfService(flatMeta(), &mockPerfStats{}, &mockPerfGeo{}, &mockPerfAudit{})

	_, err := svc.Navigate(context.Background(), Actor{UserID: "u1", Role: models.RoleAdmin}, dto.NavigateRequest{
		BattalionID: 5, ModuleID: 2, TopicID: 20, Month: "2026-08", Direction: "next",
	})
	require.Error(t, err)
	appErr := &appErrors.Error{}
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNoFurtherContent.Code, appErr.Code)
}

func TestPerformanceServiceNavigateSkipsClosedTopics(t *testing.T) {
	meta := flatMeta()
	topics := meta.topics[1]
	topics[1].StartMonth = 1
	topics[1].EndMonth = 3
	svc := newPerfService(meta, &mockPerfStats{}, &mockPerfGeo{}, &mockPerfAudit{})

	resp, err := svc.Navigate(context.Background(), Actor{UserID: "u1", Role: models.RoleAdmin}, dto.NavigateRequest{
		BattalionID: 5, ModuleID: 1, TopicID: 10, Month: "2026-08", Direction: "next",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.ModuleID)
	assert.Equal(t, int64(20), resp.TopicID)
}

func TestMonthHelpers(t *testing.T) {
	prev, err := previousMonth("2026-01")
	require.NoError(t, err)
	assert.Equal(t, "2025-12", prev)

	months, err := fiscalYearMonths("2026-08")
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-04", "2026-05", "2026-06", "2026-07", "2026-08"}, months)

	months, err = fiscalYearMonths("2026-02")
	require.NoError(t, err)
	require.Len(t, months, 11)
	assert.Equal(t, "2025-04", months[0])
	assert.Equal(t, "2026-02", months[10])

	_, err = monthNumber("08-2026")
	require.Error(t, err)
}
