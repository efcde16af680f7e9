package formengine

import (
	"sort"
	"strconv"

	"github.com/dkv-labs/pps-api/internal/models"
)

// maxDateSeries bounds count-driven date sub-field materialization so a typo
// in the count field cannot explode the shape.
const maxDateSeries = 200

// ShapeInput carries everything the builder needs to enumerate a topic's
// addressable fields.
type ShapeInput struct {
	Topic     models.Topic
	Questions []models.Question
	SubTopics []models.SubTopic
	Companies []models.Company

	// Prior holds the battalion's existing submission records for this topic.
	Prior []models.PerformanceStat

	// Rollup and Cache drive immediate aggregation when Topic is the
	// designated roll-up summary topic.
	Rollup *RollupConfig
	Cache  *ValueCache
}

// BuildShape enumerates the complete set of form field keys for a topic and
// assigns each field its initial value. Precedence, first match wins: explicit
// prior submission value for the exact key, then the question's current count
// supplied by metadata, then the declared default, then "0" for matrix cells
// and "" for flat fields. The designated roll-up topic instead computes every
// matrix cell through the aggregation path.
func BuildShape(in ShapeInput) *FormState {
	state := NewFormState()
	prior := indexPrior(in.Prior)
	questions := orderedQuestions(in.Questions)

	if in.Topic.Layout.IsMatrix() {
		buildMatrix(state, in, questions, prior)
		return state
	}

	// flat layout first pass: everything except date series
	for _, q := range questions {
		key := FieldKey{QuestionID: q.ID}
		if q.Type.IsDocument() {
			state.Set(key, "")
			state.SetDocument(key, DocumentRef{
				PDFURL:  prior[FieldKey{QuestionID: q.ID, Seq: SeqDocumentPDF}],
				WordURL: prior[FieldKey{QuestionID: q.ID, Seq: SeqDocumentWord}],
			})
			continue
		}
		if q.Type == models.QuestionDate && q.CountQuestionID != nil {
			continue
		}
		state.Set(key, initialValue(q, key, prior, false))
	}

	// second pass: count-driven date series, once count fields have values
	for _, q := range questions {
		if q.Type != models.QuestionDate || q.CountQuestionID == nil {
			continue
		}
		count := seriesCount(state.Value(FieldKey{QuestionID: *q.CountQuestionID}))
		for _, key := range DateSeriesKeys(q.ID, count) {
			state.Set(key, prior[key])
		}
	}

	return state
}

func buildMatrix(state *FormState, in ShapeInput, questions []models.Question, prior map[FieldKey]string) {
	subTopics := orderedSubTopics(in.SubTopics)
	selected := companyIDs(in.Companies)
	isSummary := in.Rollup.SummaryFor(in.Topic.ID)

	scopes := selected
	if len(scopes) == 0 || isSummary {
		// the summary topic is not company-keyed; its company set is the
		// aggregation input, not a field-key dimension
		scopes = []int64{0}
	}

	for _, companyID := range scopes {
		for _, q := range questions {
			for _, st := range subTopics {
				key := FieldKey{CompanyID: companyID, QuestionID: q.ID, SubTopicID: st.ID}
				if q.Type.IsDocument() {
					state.Set(key, "")
					state.SetDocument(key, DocumentRef{
						PDFURL:  prior[FieldKey{CompanyID: companyID, QuestionID: q.ID, SubTopicID: st.ID, Seq: SeqDocumentPDF}],
						WordURL: prior[FieldKey{CompanyID: companyID, QuestionID: q.ID, SubTopicID: st.ID, Seq: SeqDocumentWord}],
					})
					continue
				}
				if isSummary {
					state.Set(key, sumAcrossCompanies(in.Cache, in.Rollup, selected, q.ID, st.ID))
					continue
				}
				state.Set(key, initialValue(q, key, prior, true))
			}
		}
	}
}

// DateSeriesKeys is the pure mapping from a count value to the ordered date
// sub-field keys it implies. Recomputed on every relevant change; the caller
// reconciles the set against existing state.
func DateSeriesKeys(questionID int64, count int) []FieldKey {
	if count < 0 {
		count = 0
	}
	if count > maxDateSeries {
		count = maxDateSeries
	}
	keys := make([]FieldKey, 0, count)
	for seq := 1; seq <= count; seq++ {
		keys = append(keys, FieldKey{QuestionID: questionID, Seq: seq})
	}
	return keys
}

func seriesCount(raw string) int {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		// tolerate decimal count values written by formulas
		f, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil {
			return 0
		}
		n = int(f)
	}
	return n
}

func initialValue(q models.Question, key FieldKey, prior map[FieldKey]string, matrix bool) string {
	if v, ok := priorLookup(prior, key); ok {
		return v
	}
	if q.CurrentCount != "" {
		return q.CurrentCount
	}
	if q.DefaultValue != "" {
		return q.DefaultValue
	}
	if matrix {
		return "0"
	}
	return ""
}

func priorLookup(prior map[FieldKey]string, key FieldKey) (string, bool) {
	v, ok := prior[key]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func indexPrior(records []models.PerformanceStat) map[FieldKey]string {
	index := make(map[FieldKey]string, len(records))
	for _, rec := range records {
		index[StatKey(rec)] = rec.Value
	}
	return index
}

// StatKey rebuilds the typed field key addressed by a persisted record.
func StatKey(rec models.PerformanceStat) FieldKey {
	key := FieldKey{QuestionID: rec.QuestionID, Seq: rec.Seq}
	if rec.CompanyID != nil {
		key.CompanyID = *rec.CompanyID
	}
	if rec.SubTopicID != nil {
		key.SubTopicID = *rec.SubTopicID
	}
	return key
}

func orderedQuestions(questions []models.Question) []models.Question {
	ordered := make([]models.Question, len(questions))
	copy(ordered, questions)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority < ordered[j].Priority
		}
		return ordered[i].ID < ordered[j].ID
	})
	return ordered
}

func orderedSubTopics(subTopics []models.SubTopic) []models.SubTopic {
	ordered := make([]models.SubTopic, len(subTopics))
	copy(ordered, subTopics)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority < ordered[j].Priority
		}
		return ordered[i].ID < ordered[j].ID
	})
	return ordered
}

func companyIDs(companies []models.Company) []int64 {
	ids := make([]int64, 0, len(companies))
	for _, c := range companies {
		ids = append(ids, c.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
