package dto

import "github.com/dkv-labs/pps-api/internal/models"

// FormRequest captures query parameters for retrieving a topic form.
type FormRequest struct {
	BattalionID int64   `form:"battalionId" validate:"required"`
	ModuleID    int64   `form:"moduleId" validate:"required"`
	TopicID     int64   `form:"topicId" validate:"required"`
	Month       string  `form:"month" validate:"required"`
	CompanyIDs  []int64 `form:"companyIds"`
}

// FieldValue is one submitted field of a topic form.
type FieldValue struct {
	QuestionID int64  `json:"questionId" validate:"required"`
	SubTopicID *int64 `json:"subTopicId,omitempty"`
	CompanyID  *int64 `json:"companyId,omitempty"`
	Seq        int    `json:"seq,omitempty"`
	Value      string `json:"value"`
}

// DocumentValue attaches uploaded file URLs to a document question.
type DocumentValue struct {
	QuestionID int64  `json:"questionId" validate:"required"`
	SubTopicID *int64 `json:"subTopicId,omitempty"`
	CompanyID  *int64 `json:"companyId,omitempty"`
	PDFURL     string `json:"pdfUrl,omitempty"`
	WordURL    string `json:"wordUrl,omitempty"`
}

// SaveFormRequest is the payload of a form save or submit.
type SaveFormRequest struct {
	BattalionID int64           `json:"battalionId" validate:"required"`
	ModuleID    int64           `json:"moduleId" validate:"required"`
	TopicID     int64           `json:"topicId" validate:"required"`
	Month       string          `json:"month" validate:"required"`
	CompanyIDs  []int64         `json:"companyIds,omitempty"`
	Submit      bool            `json:"submit"`
	Fields      []FieldValue    `json:"fields"`
	Documents   []DocumentValue `json:"documents,omitempty"`
}

// FormField is one addressable field of the rendered form, with its
// recomputed value.
type FormField struct {
	QuestionID int64        `json:"questionId"`
	SubTopicID int64        `json:"subTopicId,omitempty"`
	CompanyID  int64        `json:"companyId,omitempty"`
	Seq        int          `json:"seq,omitempty"`
	Value      string       `json:"value"`
	Document   *DocumentRef `json:"document,omitempty"`
}

// DocumentRef carries the file URLs attached to a document field.
type DocumentRef struct {
	PDFURL  string `json:"pdfUrl,omitempty"`
	WordURL string `json:"wordUrl,omitempty"`
}

// NavigationFlags tells the client which navigation moves are available.
type NavigationFlags struct {
	NextModule bool `json:"nextModule"`
	PrevModule bool `json:"prevModule"`
	NextTopic  bool `json:"nextTopic"`
	PrevTopic  bool `json:"prevTopic"`
}

// FormResponse is the complete topic form document returned to the client.
type FormResponse struct {
	Module     models.Module     `json:"module"`
	Topic      models.Topic      `json:"topic"`
	Questions  []models.Question `json:"questions"`
	SubTopics  []models.SubTopic `json:"subTopics,omitempty"`
	Companies  []models.Company  `json:"companies,omitempty"`
	Fields     []FormField       `json:"fields"`
	Status     models.StatStatus `json:"status"`
	Navigation NavigationFlags   `json:"navigation"`
}

// NavigateRequest asks for the next or previous topic with content.
type NavigateRequest struct {
	BattalionID int64  `json:"battalionId" validate:"required"`
	ModuleID    int64  `json:"moduleId" validate:"required"`
	TopicID     int64  `json:"topicId" validate:"required"`
	Month       string `json:"month" validate:"required"`
	Direction   string `json:"direction" validate:"required,oneof=next prev"`
}

// NavigateResponse points at the resolved topic.
type NavigateResponse struct {
	ModuleID int64 `json:"moduleId"`
	TopicID  int64 `json:"topicId"`
}
