package models

import "time"

// TopicLayout selects the addressing scheme for all of a topic's questions.
type TopicLayout string

const (
	// LayoutNormal renders a flat list of fields, one per question.
	LayoutNormal TopicLayout = "NORMAL"
	// LayoutQBySub renders a matrix with questions as rows and subtopics as columns.
	LayoutQBySub TopicLayout = "Q/ST"
	// LayoutSubByQ renders a matrix with subtopics as rows and questions as columns.
	LayoutSubByQ TopicLayout = "ST/Q"
)

// IsMatrix reports whether the layout keys fields by (question, subtopic).
func (l TopicLayout) IsMatrix() bool {
	return l == LayoutQBySub || l == LayoutSubByQ
}

// QuestionType declares how a question's field is rendered and validated.
type QuestionType string

const (
	QuestionText           QuestionType = "TEXT"
	QuestionNumber         QuestionType = "NUMBER"
	QuestionDate           QuestionType = "DATE"
	QuestionBoolean        QuestionType = "BOOLEAN"
	QuestionMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionPDFDocument    QuestionType = "PDF_DOCUMENT"
	QuestionWordDocument   QuestionType = "WORD_DOCUMENT"
)

// IsDocument reports whether the question stores uploaded-file references
// instead of a plain value.
func (t QuestionType) IsDocument() bool {
	return t == QuestionPDFDocument || t == QuestionWordDocument
}

// Module is a top-level category owning an ordered sequence of topics.
type Module struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Priority  int       `db:"priority" json:"priority"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Topic is one form definition within a module. SubName acts as a semantic
// discriminator (e.g. "Strength in all Coys" marks the roll-up summary topic).
type Topic struct {
	ID             int64       `db:"id" json:"id"`
	ModuleID       int64       `db:"module_id" json:"module_id"`
	Name           string      `db:"name" json:"name"`
	SubName        string      `db:"sub_name" json:"sub_name"`
	Layout         TopicLayout `db:"layout" json:"layout"`
	ShowCumulative bool        `db:"show_cumulative" json:"show_cumulative"`
	ShowPrevious   bool        `db:"show_previous" json:"show_previous"`
	StartMonth     int         `db:"start_month" json:"start_month"`
	EndMonth       int         `db:"end_month" json:"end_month"`
	Priority       int         `db:"priority" json:"priority"`
	Active         bool        `db:"active" json:"active"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updated_at"`
}

// OpenInMonth reports whether the topic accepts entries for the given calendar
// month (1..12). A zero start/end means no window restriction.
func (t Topic) OpenInMonth(month int) bool {
	if t.StartMonth == 0 && t.EndMonth == 0 {
		return true
	}
	if t.StartMonth <= t.EndMonth {
		return month >= t.StartMonth && month <= t.EndMonth
	}
	// window wraps the year end (e.g. Nov..Feb)
	return month >= t.StartMonth || month <= t.EndMonth
}

// SubTopic is a row/column label within a matrix-layout topic.
type SubTopic struct {
	ID        int64     `db:"id" json:"id"`
	TopicID   int64     `db:"topic_id" json:"topic_id"`
	Name      string    `db:"name" json:"name"`
	Priority  int       `db:"priority" json:"priority"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Question is a single field definition. A formula, when present, is a string
// of the shape "<expr>=<target>".
type Question struct {
	ID              int64        `db:"id" json:"id"`
	TopicID         int64        `db:"topic_id" json:"topic_id"`
	Text            string       `db:"text" json:"text"`
	Type            QuestionType `db:"type" json:"type"`
	Formula         string       `db:"formula" json:"formula,omitempty"`
	DefaultValue    string       `db:"default_value" json:"default_value,omitempty"`
	DefaultSubTopic *int64       `db:"default_sub_topic_id" json:"default_sub_topic_id,omitempty"`
	CountQuestionID *int64       `db:"count_question_id" json:"count_question_id,omitempty"`
	IsCumulative    bool         `db:"is_cumulative" json:"is_cumulative"`
	IsPrevious      bool         `db:"is_previous" json:"is_previous"`
	Priority        int          `db:"priority" json:"priority"`
	Active          bool         `db:"active" json:"active"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at" json:"updated_at"`

	// Counts supplied by metadata for the addressed battalion/month; not
	// persisted on the question row itself.
	CurrentCount    string `db:"-" json:"current_count,omitempty"`
	PreviousCount   string `db:"-" json:"previous_count,omitempty"`
	FiscalYearCount string `db:"-" json:"fiscal_year_count,omitempty"`
}

// TopicForm is the per-topic form retrieval document: the metadata tree slice
// the form engine consumes, plus navigation/submittability flags.
type TopicForm struct {
	Module     Module            `json:"module"`
	Topic      Topic             `json:"topic"`
	Questions  []Question        `json:"questions"`
	SubTopics  []SubTopic        `json:"sub_topics,omitempty"`
	Companies  []Company         `json:"companies,omitempty"`
	Prior      []PerformanceStat `json:"prior,omitempty"`
	IsSuccess  bool              `json:"isSuccess"`
	NextModule bool              `json:"nextModule"`
	PrevModule bool              `json:"prevModule"`
	NextTopic  bool              `json:"nextTopic"`
	PrevTopic  bool              `json:"prevTopic"`
}

// Populated reports whether the form has at least one question to fill.
func (f *TopicForm) Populated() bool {
	return f != nil && len(f.Questions) > 0
}
