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

func newStatRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestStatisticRepositoryList(t *testing.T) {
	db, mock, cleanup := newStatRepoMock(t)
	defer cleanup()
	repo := NewStatisticRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "battalion_id", "module_id", "topic_id", "question_id", "sub_topic_id", "company_id", "seq", "month", "value", "status", "created_at", "updated_at"}).
		AddRow("stat-1", int64(3), int64(1), int64(2), int64(651), nil, nil, 0, "2026-08", "10", "SAVED", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM performance_stats WHERE battalion_id = $1 AND topic_id = $2 AND month = $3")).
		WithArgs(int64(3), int64(2), "2026-08").
		WillReturnRows(rows)

	stats, err := repo.List(context.Background(), models.StatFilter{BattalionID: 3, TopicID: 2, Month: "2026-08"})
	require.NoError(t, err)
	require.Len(t, stats, 1)
	require.Equal(t, "10", stats[0].Value)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatisticRepositoryReplaceIsTransactional(t *testing.T) {
	db, mock, cleanup := newStatRepoMock(t)
	defer cleanup()
	repo := NewStatisticRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM performance_stats WHERE battalion_id = $1 AND topic_id = $2 AND month = $3")).
		WithArgs(int64(3), int64(2), "2026-08").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO performance_stats")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	stats := []models.PerformanceStat{{
		BattalionID: 3, ModuleID: 1, TopicID: 2, QuestionID: 651,
		Month: "2026-08", Value: "10", Status: models.StatusSaved,
	}}
	require.NoError(t, repo.Replace(context.Background(), 3, 2, "2026-08", stats))
	require.NotEmpty(t, stats[0].ID, "replace assigns record ids")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatisticRepositoryReplaceRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newStatRepoMock(t)
	defer cleanup()
	repo := NewStatisticRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM performance_stats")).
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	err := repo.Replace(context.Background(), 3, 2, "2026-08", nil)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatisticRepositoryTopicStatusDefaultsToDraft(t *testing.T) {
	db, mock, cleanup := newStatRepoMock(t)
	defer cleanup()
	repo := NewStatisticRepository(db)

	rows := sqlmock.NewRows([]string{"coalesce"}).AddRow("DRAFT")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(status), 'DRAFT') FROM performance_stats")).
		WithArgs(int64(3), int64(2), "2026-08").
		WillReturnRows(rows)

	status, err := repo.TopicStatus(context.Background(), 3, 2, "2026-08")
	require.NoError(t, err)
	require.Equal(t, models.StatusDraft, status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatisticRepositoryQuestionSums(t *testing.T) {
	db, mock, cleanup := newStatRepoMock(t)
	defer cleanup()
	repo := NewStatisticRepository(db)

	rows := sqlmock.NewRows([]string{"question_id", "total"}).
		AddRow(int64(651), 12.5).
		AddRow(int64(652), 3.0)
	mock.ExpectQuery("SELECT question_id, SUM").
		WillReturnRows(rows)

	sums, err := repo.QuestionSums(context.Background(), 3, 2, []string{"2026-04", "2026-05"})
	require.NoError(t, err)
	require.Equal(t, 12.5, sums[651])
	require.Equal(t, 3.0, sums[652])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatisticRepositoryQuestionSumsEmptyMonths(t *testing.T) {
	db, _, cleanup := newStatRepoMock(t)
	defer cleanup()
	repo := NewStatisticRepository(db)

	sums, err := repo.QuestionSums(context.Background(), 3, 2, nil)
	require.NoError(t, err)
	require.Empty(t, sums)
}
