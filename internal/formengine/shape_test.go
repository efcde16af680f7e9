package formengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkv-labs/pps-api/internal/models"
)

func int64p(v int64) *int64 { return &v }

func TestBuildShapeInitialValuePrecedence(t *testing.T) {
	topic := models.Topic{ID: 1, Layout: models.LayoutNormal}
	questions := []models.Question{
		{ID: 10, Type: models.QuestionNumber, CurrentCount: "4", DefaultValue: "9"},
		{ID: 11, Type: models.QuestionNumber, DefaultValue: "9"},
		{ID: 12, Type: models.QuestionNumber},
		{ID: 13, Type: models.QuestionNumber, CurrentCount: "4"},
	}
	prior := []models.PerformanceStat{
		{QuestionID: 13, Value: "77"},
	}

	state := BuildShape(ShapeInput{Topic: topic, Questions: questions, Prior: prior})

	// prior beats count beats default beats blank
	assert.Equal(t, "77", state.Value(FieldKey{QuestionID: 13}))
	assert.Equal(t, "4", state.Value(FieldKey{QuestionID: 10}))
	assert.Equal(t, "9", state.Value(FieldKey{QuestionID: 11}))
	assert.Equal(t, "", state.Value(FieldKey{QuestionID: 12}))
}

func TestBuildShapeMatrixCellsDefaultToZero(t *testing.T) {
	topic := models.Topic{ID: 1, Layout: models.LayoutQBySub}
	questions := []models.Question{{ID: 10, Type: models.QuestionNumber}}
	subTopics := []models.SubTopic{{ID: 2}, {ID: 3}}

	state := BuildShape(ShapeInput{Topic: topic, Questions: questions, SubTopics: subTopics})

	require.Equal(t, 2, state.Len())
	assert.Equal(t, "0", state.Value(FieldKey{QuestionID: 10, SubTopicID: 2}))
	assert.Equal(t, "0", state.Value(FieldKey{QuestionID: 10, SubTopicID: 3}))
}

func TestBuildShapeCompanyScopedMatrix(t *testing.T) {
	topic := models.Topic{ID: 1, Layout: models.LayoutQBySub}
	questions := []models.Question{{ID: 10, Type: models.QuestionNumber}}
	subTopics := []models.SubTopic{{ID: 2}}
	companies := []models.Company{{ID: 7}, {ID: 8}}
	prior := []models.PerformanceStat{
		{QuestionID: 10, SubTopicID: int64p(2), CompanyID: int64p(8), Value: "5"},
	}

	state := BuildShape(ShapeInput{
		Topic: topic, Questions: questions, SubTopics: subTopics,
		Companies: companies, Prior: prior,
	})

	require.Equal(t, 2, state.Len())
	assert.Equal(t, "0", state.Value(FieldKey{CompanyID: 7, QuestionID: 10, SubTopicID: 2}))
	assert.Equal(t, "5", state.Value(FieldKey{CompanyID: 8, QuestionID: 10, SubTopicID: 2}))
}

func TestBuildShapeDocumentFields(t *testing.T) {
	topic := models.Topic{ID: 1, Layout: models.LayoutNormal}
	questions := []models.Question{{ID: 10, Type: models.QuestionPDFDocument}}
	prior := []models.PerformanceStat{
		{QuestionID: 10, Seq: SeqDocumentPDF, Value: "/files/a.pdf"},
		{QuestionID: 10, Seq: SeqDocumentWord, Value: "/files/a.docx"},
	}

	state := BuildShape(ShapeInput{Topic: topic, Questions: questions, Prior: prior})

	ref, ok := state.Document(FieldKey{QuestionID: 10})
	require.True(t, ok)
	assert.Equal(t, "/files/a.pdf", ref.PDFURL)
	assert.Equal(t, "/files/a.docx", ref.WordURL)
}

func TestBuildShapeDateSeriesFromCount(t *testing.T) {
	topic := models.Topic{ID: 1, Layout: models.LayoutNormal}
	questions := []models.Question{
		{ID: 10, Type: models.QuestionNumber, CurrentCount: "3"},
		{ID: 11, Type: models.QuestionDate, CountQuestionID: int64p(10)},
	}
	prior := []models.PerformanceStat{
		{QuestionID: 11, Seq: 2, Value: "2026-08-14"},
	}

	state := BuildShape(ShapeInput{Topic: topic, Questions: questions, Prior: prior})

	assert.True(t, state.Has(FieldKey{QuestionID: 11, Seq: 1}))
	assert.Equal(t, "2026-08-14", state.Value(FieldKey{QuestionID: 11, Seq: 2}))
	assert.True(t, state.Has(FieldKey{QuestionID: 11, Seq: 3}))
	assert.False(t, state.Has(FieldKey{QuestionID: 11, Seq: 4}))
}

func TestDateSeriesKeysBounds(t *testing.T) {
	assert.Empty(t, DateSeriesKeys(11, -2))
	assert.Len(t, DateSeriesKeys(11, 5), 5)
	assert.Len(t, DateSeriesKeys(11, maxDateSeries+1000), maxDateSeries)
}

func TestBuildShapeSummaryTopicAggregates(t *testing.T) {
	rollup := &RollupConfig{
		SummaryTopicID: 10,
		SourceTopicID:  20,
		QuestionMap:    map[int64]int64{664: 1078},
		SubTopicMap:    map[int64]int64{114: 285},
	}
	cache := NewValueCache()
	cache.Put(1, 1078, 285, "3")
	cache.Put(2, 1078, 285, "5")

	topic := models.Topic{ID: 10, Layout: models.LayoutQBySub}
	questions := []models.Question{{ID: 664, Type: models.QuestionNumber}}
	subTopics := []models.SubTopic{{ID: 114}}
	companies := []models.Company{{ID: 1}, {ID: 2}}

	state := BuildShape(ShapeInput{
		Topic: topic, Questions: questions, SubTopics: subTopics,
		Companies: companies, Rollup: rollup, Cache: cache,
	})

	// the summary topic is keyed without a company dimension
	require.Equal(t, 1, state.Len())
	assert.Equal(t, "8", state.Value(FieldKey{QuestionID: 664, SubTopicID: 114}))
}

func TestStatKeyRoundTrip(t *testing.T) {
	rec := models.PerformanceStat{
		QuestionID: 664,
		SubTopicID: int64p(114),
		CompanyID:  int64p(7),
		Seq:        0,
	}
	assert.Equal(t, FieldKey{CompanyID: 7, QuestionID: 664, SubTopicID: 114}, StatKey(rec))
}
