package models

import "time"

// StatStatus tracks the lifecycle of a performance statistic record.
type StatStatus string

const (
	StatusDraft     StatStatus = "DRAFT"
	StatusSaved     StatStatus = "SAVED"
	StatusSubmitted StatStatus = "SUBMITTED"
)

// CanTransitionTo enforces the DRAFT -> SAVED -> SUBMITTED progression.
// Re-saving at the same stage is allowed; SUBMITTED is final.
func (s StatStatus) CanTransitionTo(next StatStatus) bool {
	switch s {
	case StatusDraft:
		return next == StatusDraft || next == StatusSaved || next == StatusSubmitted
	case StatusSaved:
		return next == StatusSaved || next == StatusSubmitted
	case StatusSubmitted:
		return false
	default:
		return true
	}
}

// PerformanceStat is the flattened, persisted form of one form field.
type PerformanceStat struct {
	ID          string     `db:"id" json:"id"`
	BattalionID int64      `db:"battalion_id" json:"battalion_id"`
	ModuleID    int64      `db:"module_id" json:"module_id"`
	TopicID     int64      `db:"topic_id" json:"topic_id"`
	QuestionID  int64      `db:"question_id" json:"question_id"`
	SubTopicID  *int64     `db:"sub_topic_id" json:"sub_topic_id,omitempty"`
	CompanyID   *int64     `db:"company_id" json:"company_id,omitempty"`
	Seq         int        `db:"seq" json:"seq,omitempty"`
	Month       string     `db:"month" json:"month"`
	Value       string     `db:"value" json:"value"`
	Status      StatStatus `db:"status" json:"status"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// StatFilter captures query criteria for statistics.
type StatFilter struct {
	BattalionID int64
	ModuleID    int64
	TopicID     int64
	CompanyID   *int64
	Month       string
	Status      *StatStatus
}
