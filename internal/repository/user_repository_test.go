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

func newUserRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestUserRepositoryFindByEmail(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	battalionID := int64(3)
	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "full_name", "role", "battalion_id", "active", "last_login", "created_at", "updated_at"}).
		AddRow("user-1", "entry@bn3.example", "hash", "Data Entry", "BATTALION", battalionID, true, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1 LIMIT 1")).
		WithArgs("entry@bn3.example").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), "entry@bn3.example")
	require.NoError(t, err)
	require.Equal(t, models.RoleBattalion, user.Role)
	require.NotNil(t, user.BattalionID)
	require.Equal(t, battalionID, *user.BattalionID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	user := &models.User{Email: "admin@example.com", Role: models.RoleAdmin, Active: true}
	require.NoError(t, repo.Create(context.Background(), user))
	require.NotEmpty(t, user.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryListFiltersByBattalion(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	battalionID := int64(3)
	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "full_name", "role", "battalion_id", "active", "last_login", "created_at", "updated_at"}).
		AddRow("user-1", "entry@bn3.example", "hash", "Data Entry", "BATTALION", battalionID, true, nil, now, now)
	mock.ExpectQuery("SELECT .+ FROM users WHERE 1=1 AND battalion_id").
		WithArgs(battalionID).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE 1=1 AND battalion_id")).
		WithArgs(battalionID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	users, total, err := repo.List(context.Background(), models.UserFilter{BattalionID: &battalionID})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, users, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}
