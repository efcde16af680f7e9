package formengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkv-labs/pps-api/internal/models"
)

func TestAssembleStatsSkipsBlankFields(t *testing.T) {
	state := NewFormState()
	state.Set(FieldKey{QuestionID: 10}, "5")
	state.Set(FieldKey{QuestionID: 11}, "")

	scope := SubmissionScope{BattalionID: 3, ModuleID: 1, TopicID: 2, Month: "2026-08"}
	stats := AssembleStats(state, scope, models.StatusSaved)

	require.Len(t, stats, 1)
	assert.Equal(t, int64(10), stats[0].QuestionID)
	assert.Equal(t, "5", stats[0].Value)
	assert.Equal(t, int64(3), stats[0].BattalionID)
	assert.Equal(t, "2026-08", stats[0].Month)
	assert.Equal(t, models.StatusSaved, stats[0].Status)
	assert.Nil(t, stats[0].SubTopicID)
	assert.Nil(t, stats[0].CompanyID)
}

func TestAssembleStatsDocumentSlots(t *testing.T) {
	state := NewFormState()
	key := FieldKey{QuestionID: 10}
	state.Set(key, "")
	state.SetDocument(key, DocumentRef{PDFURL: "/files/a.pdf", WordURL: "/files/a.docx"})

	stats := AssembleStats(state, SubmissionScope{TopicID: 2, Month: "2026-08"}, models.StatusSubmitted)

	require.Len(t, stats, 2)
	assert.Equal(t, SeqDocumentPDF, stats[0].Seq)
	assert.Equal(t, "/files/a.pdf", stats[0].Value)
	assert.Equal(t, SeqDocumentWord, stats[1].Seq)
	assert.Equal(t, "/files/a.docx", stats[1].Value)
}

func TestAssembleStatsMatrixPointers(t *testing.T) {
	state := NewFormState()
	state.Set(FieldKey{CompanyID: 7, QuestionID: 10, SubTopicID: 2}, "4")

	stats := AssembleStats(state, SubmissionScope{TopicID: 2, Month: "2026-08"}, models.StatusSaved)

	require.Len(t, stats, 1)
	require.NotNil(t, stats[0].SubTopicID)
	require.NotNil(t, stats[0].CompanyID)
	assert.Equal(t, int64(2), *stats[0].SubTopicID)
	assert.Equal(t, int64(7), *stats[0].CompanyID)
}

// Assembled records feed BuildShape as prior data; the round trip must
// restore both plain values and document references.
func TestAssembleStatsRoundTrip(t *testing.T) {
	topic := models.Topic{ID: 2, Layout: models.LayoutNormal}
	questions := []models.Question{
		{ID: 10, Type: models.QuestionNumber},
		{ID: 11, Type: models.QuestionPDFDocument},
	}

	state := BuildShape(ShapeInput{Topic: topic, Questions: questions})
	state.Set(FieldKey{QuestionID: 10}, "42")
	state.SetDocument(FieldKey{QuestionID: 11}, DocumentRef{PDFURL: "/files/x.pdf"})

	scope := SubmissionScope{BattalionID: 3, ModuleID: 1, TopicID: 2, Month: "2026-08"}
	stats := AssembleStats(state, scope, models.StatusSaved)

	reloaded := BuildShape(ShapeInput{Topic: topic, Questions: questions, Prior: stats})
	assert.Equal(t, "42", reloaded.Value(FieldKey{QuestionID: 10}))
	ref, ok := reloaded.Document(FieldKey{QuestionID: 11})
	require.True(t, ok)
	assert.Equal(t, "/files/x.pdf", ref.PDFURL)
	assert.Equal(t, "", ref.WordURL)
}
