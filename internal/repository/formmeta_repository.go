package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/dkv-labs/pps-api/internal/models"
)

// FormMetaRepository manages the form metadata tree: modules, topics,
// subtopics and questions.
type FormMetaRepository struct {
	db *sqlx.DB
}

// NewFormMetaRepository creates a new instance of FormMetaRepository.
func NewFormMetaRepository(db *sqlx.DB) *FormMetaRepository {
	return &FormMetaRepository{db: db}
}

// ListModules returns active modules in navigation order.
func (r *FormMetaRepository) ListModules(ctx context.Context) ([]models.Module, error) {
	const query = `SELECT id, name, priority, active, created_at, updated_at FROM modules WHERE active = TRUE ORDER BY priority, id`
	var modules []models.Module
	if err := r.db.SelectContext(ctx, &modules, query); err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}
	return modules, nil
}

// FindModule returns a module by identifier.
func (r *FormMetaRepository) FindModule(ctx context.Context, id int64) (*models.Module, error) {
	const query = `SELECT id, name, priority, active, created_at, updated_at FROM modules WHERE id = $1 LIMIT 1`
	var module models.Module
	if err := r.db.GetContext(ctx, &module, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find module: %w", err)
	}
	return &module, nil
}

// CreateModule inserts a module and assigns its generated identifier.
func (r *FormMetaRepository) CreateModule(ctx context.Context, module *models.Module) error {
	now := time.Now().UTC()
	module.CreatedAt = now
	module.UpdatedAt = now
	const query = `INSERT INTO modules (name, priority, active, created_at, updated_at) VALUES ($1, $2, $3, $4, $5) RETURNING id`
	if err := r.db.GetContext(ctx, &module.ID, query, module.Name, module.Priority, module.Active, module.CreatedAt, module.UpdatedAt); err != nil {
		return fmt.Errorf("create module: %w", err)
	}
	return nil
}

// UpdateModule updates mutable module fields.
func (r *FormMetaRepository) UpdateModule(ctx context.Context, module *models.Module) error {
	module.UpdatedAt = time.Now().UTC()
	const query = `UPDATE modules SET name = :name, priority = :priority, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, module); err != nil {
		return fmt.Errorf("update module: %w", err)
	}
	return nil
}

const topicColumns = "id, module_id, name, sub_name, layout, show_cumulative, show_previous, start_month, end_month, priority, active, created_at, updated_at"

// ListTopics returns a module's active topics in navigation order.
func (r *FormMetaRepository) ListTopics(ctx context.Context, moduleID int64) ([]models.Topic, error) {
	query := fmt.Sprintf("SELECT %s FROM topics WHERE module_id = $1 AND active = TRUE ORDER BY priority, id", topicColumns)
	var topics []models.Topic
	if err := r.db.SelectContext(ctx, &topics, query, moduleID); err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	return topics, nil
}

// FindTopic returns a topic by identifier.
func (r *FormMetaRepository) FindTopic(ctx context.Context, id int64) (*models.Topic, error) {
	query := fmt.Sprintf("SELECT %s FROM topics WHERE id = $1 LIMIT 1", topicColumns)
	var topic models.Topic
	if err := r.db.GetContext(ctx, &topic, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find topic: %w", err)
	}
	return &topic, nil
}

// CreateTopic inserts a topic and assigns its generated identifier.
func (r *FormMetaRepository) CreateTopic(ctx context.Context, topic *models.Topic) error {
	now := time.Now().UTC()
	topic.CreatedAt = now
	topic.UpdatedAt = now
	const query = `INSERT INTO topics (module_id, name, sub_name, layout, show_cumulative, show_previous, start_month, end_month, priority, active, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id`
	if err := r.db.GetContext(ctx, &topic.ID, query,
		topic.ModuleID, topic.Name, topic.SubName, topic.Layout,
		topic.ShowCumulative, topic.ShowPrevious, topic.StartMonth, topic.EndMonth,
		topic.Priority, topic.Active, topic.CreatedAt, topic.UpdatedAt); err != nil {
		return fmt.Errorf("create topic: %w", err)
	}
	return nil
}

// UpdateTopic updates mutable topic fields.
func (r *FormMetaRepository) UpdateTopic(ctx context.Context, topic *models.Topic) error {
	topic.UpdatedAt = time.Now().UTC()
	const query = `UPDATE topics SET name = :name, sub_name = :sub_name, layout = :layout, show_cumulative = :show_cumulative, show_previous = :show_previous, start_month = :start_month, end_month = :end_month, priority = :priority, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, topic); err != nil {
		return fmt.Errorf("update topic: %w", err)
	}
	return nil
}

// ListSubTopics returns a topic's active subtopics in display order.
func (r *FormMetaRepository) ListSubTopics(ctx context.Context, topicID int64) ([]models.SubTopic, error) {
	const query = `SELECT id, topic_id, name, priority, active, created_at, updated_at FROM sub_topics WHERE topic_id = $1 AND active = TRUE ORDER BY priority, id`
	var subTopics []models.SubTopic
	if err := r.db.SelectContext(ctx, &subTopics, query, topicID); err != nil {
		return nil, fmt.Errorf("list subtopics: %w", err)
	}
	return subTopics, nil
}

// CreateSubTopic inserts a subtopic and assigns its generated identifier.
func (r *FormMetaRepository) CreateSubTopic(ctx context.Context, subTopic *models.SubTopic) error {
	now := time.Now().UTC()
	subTopic.CreatedAt = now
	subTopic.UpdatedAt = now
	const query = `INSERT INTO sub_topics (topic_id, name, priority, active, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	if err := r.db.GetContext(ctx, &subTopic.ID, query,
		subTopic.TopicID, subTopic.Name, subTopic.Priority, subTopic.Active,
		subTopic.CreatedAt, subTopic.UpdatedAt); err != nil {
		return fmt.Errorf("create subtopic: %w", err)
	}
	return nil
}

// UpdateSubTopic updates mutable subtopic fields.
func (r *FormMetaRepository) UpdateSubTopic(ctx context.Context, subTopic *models.SubTopic) error {
	subTopic.UpdatedAt = time.Now().UTC()
	const query = `UPDATE sub_topics SET name = :name, priority = :priority, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, subTopic); err != nil {
		return fmt.Errorf("update subtopic: %w", err)
	}
	return nil
}

const questionColumns = "id, topic_id, text, type, formula, default_value, default_sub_topic_id, count_question_id, is_cumulative, is_previous, priority, active, created_at, updated_at"

// ListQuestions returns a topic's active questions in display order.
func (r *FormMetaRepository) ListQuestions(ctx context.Context, topicID int64) ([]models.Question, error) {
	query := fmt.Sprintf("SELECT %s FROM questions WHERE topic_id = $1 AND active = TRUE ORDER BY priority, id", questionColumns)
	var questions []models.Question
	if err := r.db.SelectContext(ctx, &questions, query, topicID); err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	return questions, nil
}

// CountQuestions reports whether a topic has any active questions.
func (r *FormMetaRepository) CountQuestions(ctx context.Context, topicID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM questions WHERE topic_id = $1 AND active = TRUE`
	var total int
	if err := r.db.GetContext(ctx, &total, query, topicID); err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return total, nil
}

// CreateQuestion inserts a question and assigns its generated identifier.
func (r *FormMetaRepository) CreateQuestion(ctx context.Context, question *models.Question) error {
	now := time.Now().UTC()
	question.CreatedAt = now
	question.UpdatedAt = now
	const query = `INSERT INTO questions (topic_id, text, type, formula, default_value, default_sub_topic_id, count_question_id, is_cumulative, is_previous, priority, active, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13) RETURNING id`
	if err := r.db.GetContext(ctx, &question.ID, query,
		question.TopicID, question.Text, question.Type, question.Formula,
		question.DefaultValue, question.DefaultSubTopic, question.CountQuestionID,
		question.IsCumulative, question.IsPrevious, question.Priority, question.Active,
		question.CreatedAt, question.UpdatedAt); err != nil {
		return fmt.Errorf("create question: %w", err)
	}
	return nil
}

// UpdateQuestion updates mutable question fields.
func (r *FormMetaRepository) UpdateQuestion(ctx context.Context, question *models.Question) error {
	question.UpdatedAt = time.Now().UTC()
	const query = `UPDATE questions SET text = :text, type = :type, formula = :formula, default_value = :default_value, default_sub_topic_id = :default_sub_topic_id, count_question_id = :count_question_id, is_cumulative = :is_cumulative, is_previous = :is_previous, priority = :priority, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, question); err != nil {
		return fmt.Errorf("update question: %w", err)
	}
	return nil
}

// CountTopics returns the number of active topics across all modules.
func (r *FormMetaRepository) CountTopics(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM topics WHERE active = TRUE`
	var total int
	if err := r.db.GetContext(ctx, &total, query); err != nil {
		return 0, fmt.Errorf("count topics: %w", err)
	}
	return total, nil
}
