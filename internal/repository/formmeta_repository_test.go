package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/dkv-labs/pps-api/internal/models"
)

func newFormMetaRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestFormMetaRepositoryListModulesOrdered(t *testing.T) {
	db, mock, cleanup := newFormMetaRepoMock(t)
	defer cleanup()
	repo := NewFormMetaRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "priority", "active", "created_at", "updated_at"}).
		AddRow(int64(1), "Administration", 1, true, now, now).
		AddRow(int64(2), "Operations", 2, true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM modules WHERE active = TRUE ORDER BY priority, id")).
		WillReturnRows(rows)

	modules, err := repo.ListModules(context.Background())
	require.NoError(t, err)
	require.Len(t, modules, 2)
	require.Equal(t, "Administration", modules[0].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFormMetaRepositoryListQuestions(t *testing.T) {
	db, mock, cleanup := newFormMetaRepoMock(t)
	defer cleanup()
	repo := NewFormMetaRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "topic_id", "text", "type", "formula", "default_value", "default_sub_topic_id", "count_question_id", "is_cumulative", "is_previous", "priority", "active", "created_at", "updated_at"}).
		AddRow(int64(653), int64(2), "Vacancies", "NUMBER", "651-652=653", "", nil, nil, false, false, 3, true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM questions WHERE topic_id = $1 AND active = TRUE ORDER BY priority, id")).
		WithArgs(int64(2)).
		WillReturnRows(rows)

	questions, err := repo.ListQuestions(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, questions, 1)
	require.Equal(t, "651-652=653", questions[0].Formula)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFormMetaRepositoryCreateTopicAssignsID(t *testing.T) {
	db, mock, cleanup := newFormMetaRepoMock(t)
	defer cleanup()
	repo := NewFormMetaRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO topics")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	topic := &models.Topic{ModuleID: 1, Name: "Company's Deployment", Layout: models.LayoutQBySub, Active: true}
	require.NoError(t, repo.CreateTopic(context.Background(), topic))
	require.Equal(t, int64(42), topic.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFormMetaRepositoryCountQuestions(t *testing.T) {
	db, mock, cleanup := newFormMetaRepoMock(t)
	defer cleanup()
	repo := NewFormMetaRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM questions WHERE topic_id = $1 AND active = TRUE")).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))

	total, err := repo.CountQuestions(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, 5, total)
	require.NoError(t, mock.ExpectationsWereMet())
}
