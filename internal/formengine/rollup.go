package formengine

// RollupConfig is the data-driven mapping behind the company roll-up: it
// translates each field of the summary topic ("Strength in all Coys") to its
// corresponding field in the company-scoped source topic ("Company's
// Deployment"). The tables are configuration input, validated independently of
// the engine.
type RollupConfig struct {
	SummaryTopicID int64
	SourceTopicID  int64
	QuestionMap    map[int64]int64
	SubTopicMap    map[int64]int64
}

// SummaryFor reports whether topicID is the designated roll-up summary topic.
func (c *RollupConfig) SummaryFor(topicID int64) bool {
	return c != nil && c.SummaryTopicID != 0 && c.SummaryTopicID == topicID
}

// SourceFor reports whether topicID is the company-scoped source topic.
func (c *RollupConfig) SourceFor(topicID int64) bool {
	return c != nil && c.SourceTopicID != 0 && c.SourceTopicID == topicID
}

// MapField translates a summary-topic field to its source-topic counterpart.
func (c *RollupConfig) MapField(questionID, subTopicID int64) (srcQuestionID, srcSubTopicID int64, ok bool) {
	if c == nil {
		return 0, 0, false
	}
	srcQuestionID, okQ := c.QuestionMap[questionID]
	srcSubTopicID, okS := c.SubTopicMap[subTopicID]
	if !okQ || !okS {
		return 0, 0, false
	}
	return srcQuestionID, srcSubTopicID, true
}

// ValueCache holds last-known company-scoped source values keyed by
// (company, question, subtopic). The caller owns it and controls its
// lifecycle: populate on topic load, clear on navigation away.
type ValueCache struct {
	values map[FieldKey]string
}

// NewValueCache returns an empty cache.
func NewValueCache() *ValueCache {
	return &ValueCache{values: make(map[FieldKey]string)}
}

// Put stores a company-scoped cell value.
func (c *ValueCache) Put(companyID, questionID, subTopicID int64, value string) {
	c.values[FieldKey{CompanyID: companyID, QuestionID: questionID, SubTopicID: subTopicID}] = value
}

// Get retrieves a company-scoped cell value.
func (c *ValueCache) Get(companyID, questionID, subTopicID int64) (string, bool) {
	v, ok := c.values[FieldKey{CompanyID: companyID, QuestionID: questionID, SubTopicID: subTopicID}]
	return v, ok
}

// Clear drops all cached values.
func (c *ValueCache) Clear() {
	c.values = make(map[FieldKey]string)
}

// Len returns the number of cached cells.
func (c *ValueCache) Len() int {
	return len(c.values)
}
