package formengine

import "github.com/dkv-labs/pps-api/internal/models"

// SubmissionScope pins assembled records to one battalion, topic and month.
type SubmissionScope struct {
	BattalionID int64
	ModuleID    int64
	TopicID     int64
	Month       string
}

// AssembleStats flattens form state into statistic records for persistence.
// Blank fields produce no record. Document fields produce one record per
// attached file, on the pdf and word sequence slots, so that reloading the
// topic restores the references through the same key mapping. Record IDs and
// timestamps are left for the repository to assign.
func AssembleStats(state *FormState, scope SubmissionScope, status models.StatStatus) []models.PerformanceStat {
	stats := make([]models.PerformanceStat, 0, state.Len())
	for _, key := range state.Keys() {
		if ref, ok := state.Document(key); ok && !ref.Empty() {
			if ref.PDFURL != "" {
				stats = append(stats, newStat(key, scope, status, SeqDocumentPDF, ref.PDFURL))
			}
			if ref.WordURL != "" {
				stats = append(stats, newStat(key, scope, status, SeqDocumentWord, ref.WordURL))
			}
			continue
		}
		value := state.Value(key)
		if value == "" {
			continue
		}
		stats = append(stats, newStat(key, scope, status, key.Seq, value))
	}
	return stats
}

func newStat(key FieldKey, scope SubmissionScope, status models.StatStatus, seq int, value string) models.PerformanceStat {
	stat := models.PerformanceStat{
		BattalionID: scope.BattalionID,
		ModuleID:    scope.ModuleID,
		TopicID:     scope.TopicID,
		QuestionID:  key.QuestionID,
		Seq:         seq,
		Month:       scope.Month,
		Value:       value,
		Status:      status,
	}
	if key.SubTopicID != 0 {
		id := key.SubTopicID
		stat.SubTopicID = &id
	}
	if key.CompanyID != 0 {
		id := key.CompanyID
		stat.CompanyID = &id
	}
	return stat
}
