package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dkv-labs/pps-api/internal/models"
)

// StatisticRepository persists the flattened performance statistic records.
type StatisticRepository struct {
	db *sqlx.DB
}

// NewStatisticRepository creates a new instance of StatisticRepository.
func NewStatisticRepository(db *sqlx.DB) *StatisticRepository {
	return &StatisticRepository{db: db}
}

const statColumns = "id, battalion_id, module_id, topic_id, question_id, sub_topic_id, company_id, seq, month, value, status, created_at, updated_at"

// List returns statistic records matching the filter.
func (r *StatisticRepository) List(ctx context.Context, filter models.StatFilter) ([]models.PerformanceStat, error) {
	baseQuery := `FROM performance_stats WHERE battalion_id = $1 AND topic_id = $2 AND month = $3`
	args := []interface{}{filter.BattalionID, filter.TopicID, filter.Month}

	var conditions []string
	if filter.CompanyID != nil {
		conditions = append(conditions, fmt.Sprintf("company_id = $%d", len(args)+1))
		args = append(args, *filter.CompanyID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf("SELECT %s %s ORDER BY question_id, sub_topic_id, company_id, seq", statColumns, baseQuery)
	var stats []models.PerformanceStat
	if err := r.db.SelectContext(ctx, &stats, query, args...); err != nil {
		return nil, fmt.Errorf("list statistics: %w", err)
	}
	return stats, nil
}

// Replace atomically swaps a battalion's records for one topic and month with
// the given set. The whole save is one transaction so a partial write can
// never shadow the previous submission.
func (r *StatisticRepository) Replace(ctx context.Context, battalionID, topicID int64, month string, stats []models.PerformanceStat) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save transaction: %w", err)
	}
	defer tx.Rollback()

	const deleteQuery = `DELETE FROM performance_stats WHERE battalion_id = $1 AND topic_id = $2 AND month = $3`
	if _, err := tx.ExecContext(ctx, deleteQuery, battalionID, topicID, month); err != nil {
		return fmt.Errorf("clear previous statistics: %w", err)
	}

	now := time.Now().UTC()
	const insertQuery = `INSERT INTO performance_stats (id, battalion_id, module_id, topic_id, question_id, sub_topic_id, company_id, seq, month, value, status, created_at, updated_at) VALUES (:id, :battalion_id, :module_id, :topic_id, :question_id, :sub_topic_id, :company_id, :seq, :month, :value, :status, :created_at, :updated_at)`
	for i := range stats {
		if stats[i].ID == "" {
			stats[i].ID = uuid.NewString()
		}
		if stats[i].CreatedAt.IsZero() {
			stats[i].CreatedAt = now
		}
		stats[i].UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, insertQuery, stats[i]); err != nil {
			return fmt.Errorf("insert statistic: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save transaction: %w", err)
	}
	return nil
}

// TopicStatus returns the submission status of a battalion's topic for a
// month. Topics with no records yet are DRAFT.
func (r *StatisticRepository) TopicStatus(ctx context.Context, battalionID, topicID int64, month string) (models.StatStatus, error) {
	const query = `SELECT COALESCE(MAX(status), 'DRAFT') FROM performance_stats WHERE battalion_id = $1 AND topic_id = $2 AND month = $3`
	var status models.StatStatus
	if err := r.db.GetContext(ctx, &status, query, battalionID, topicID, month); err != nil {
		return "", fmt.Errorf("topic status: %w", err)
	}
	return status, nil
}

// UpdateStatus promotes every record of a topic submission to the new status.
func (r *StatisticRepository) UpdateStatus(ctx context.Context, battalionID, topicID int64, month string, status models.StatStatus) error {
	const query = `UPDATE performance_stats SET status = $4, updated_at = $5 WHERE battalion_id = $1 AND topic_id = $2 AND month = $3`
	if _, err := r.db.ExecContext(ctx, query, battalionID, topicID, month, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update statistic status: %w", err)
	}
	return nil
}

// CompanyValues returns the company-scoped records of a topic, used to warm
// the roll-up aggregation cache.
func (r *StatisticRepository) CompanyValues(ctx context.Context, battalionID, topicID int64, month string) ([]models.PerformanceStat, error) {
	query := fmt.Sprintf("SELECT %s FROM performance_stats WHERE battalion_id = $1 AND topic_id = $2 AND month = $3 AND company_id IS NOT NULL", statColumns)
	var stats []models.PerformanceStat
	if err := r.db.SelectContext(ctx, &stats, query, battalionID, topicID, month); err != nil {
		return nil, fmt.Errorf("company values: %w", err)
	}
	return stats, nil
}

// QuestionSums aggregates per-question numeric totals over a month range,
// used for previous-month and fiscal-year-to-date columns. Non-numeric
// values contribute zero.
func (r *StatisticRepository) QuestionSums(ctx context.Context, battalionID, topicID int64, months []string) (map[int64]float64, error) {
	if len(months) == 0 {
		return map[int64]float64{}, nil
	}
	// The regex uses {0,1} instead of ? because sqlx.In treats every '?' in
	// the query string as a bind placeholder, even inside quoted literals.
	query, args, err := sqlx.In(`SELECT question_id, SUM(CASE WHEN value ~ '^-{0,1}[0-9]+(\.[0-9]+){0,1}$' THEN value::numeric ELSE 0 END) AS total FROM performance_stats WHERE battalion_id = ? AND topic_id = ? AND month IN (?) AND seq = 0 GROUP BY question_id`, battalionID, topicID, months)
	if err != nil {
		return nil, fmt.Errorf("build question sums query: %w", err)
	}
	query = r.db.Rebind(query)

	rows := []struct {
		QuestionID int64   `db:"question_id"`
		Total      float64 `db:"total"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("question sums: %w", err)
	}

	sums := make(map[int64]float64, len(rows))
	for _, row := range rows {
		sums[row.QuestionID] = row.Total
	}
	return sums, nil
}

// StatusCounts returns how many battalions reached each status for a month.
func (r *StatisticRepository) StatusCounts(ctx context.Context, month string) (map[models.StatStatus]int, error) {
	const query = `SELECT status, COUNT(DISTINCT battalion_id) AS total FROM performance_stats WHERE month = $1 GROUP BY status`
	rows := []struct {
		Status models.StatStatus `db:"status"`
		Total  int               `db:"total"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, month); err != nil {
		return nil, fmt.Errorf("status counts: %w", err)
	}
	counts := make(map[models.StatStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

// ReportRow is one denormalized line of a performance report export.
type ReportRow struct {
	BattalionName string  `db:"battalion_name"`
	ModuleName    string  `db:"module_name"`
	TopicName     string  `db:"topic_name"`
	QuestionText  string  `db:"question_text"`
	SubTopicName  *string `db:"sub_topic_name"`
	CompanyName   *string `db:"company_name"`
	Seq           int     `db:"seq"`
	Value         string  `db:"value"`
	Status        string  `db:"status"`
}

// ReportRows returns denormalized report lines for a battalion and month,
// optionally narrowed to one module.
func (r *StatisticRepository) ReportRows(ctx context.Context, battalionID int64, moduleID *int64, month string) ([]ReportRow, error) {
	query := `SELECT b.name AS battalion_name, m.name AS module_name, t.name AS topic_name, q.text AS question_text, st.name AS sub_topic_name, c.name AS company_name, s.seq, s.value, s.status
		FROM performance_stats s
		JOIN battalions b ON b.id = s.battalion_id
		JOIN modules m ON m.id = s.module_id
		JOIN topics t ON t.id = s.topic_id
		JOIN questions q ON q.id = s.question_id
		LEFT JOIN sub_topics st ON st.id = s.sub_topic_id
		LEFT JOIN companies c ON c.id = s.company_id
		WHERE s.battalion_id = $1 AND s.month = $2`
	args := []interface{}{battalionID, month}
	if moduleID != nil {
		query += " AND s.module_id = $3"
		args = append(args, *moduleID)
	}
	query += " ORDER BY m.priority, t.priority, q.priority, s.sub_topic_id, s.company_id, s.seq"

	var rows []ReportRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("report rows: %w", err)
	}
	return rows, nil
}
