package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"group_chat/internal/storage"
)

func newMockRepo(t *testing.T) (MessageRepository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		DisableAutomaticPing: true,
		Logger:               logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	return NewMessageRepository(&storage.Database{DB: db}, "15:04"), mock
}

func TestPinClearsAndSetsInOneTransaction(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT count\(\*\) FROM "messages"`).
		WithArgs("general", true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec(`UPDATE "messages" SET "is_pinned"`).
		WithArgs(false, "general").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`UPDATE "messages" SET "is_pinned"`).
		WithArgs(true, sqlmock.AnyArg(), "general").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	_, err := repo.Pin(context.Background(), 42, "general")
	assert.ErrorIs(t, err, ErrPinCleared)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPinRollsBackOnFailure(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT count\(\*\) FROM "messages"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`UPDATE "messages" SET "is_pinned"`).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := repo.Pin(context.Background(), 42, "general")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStoreUnavailable(t *testing.T) {
	repo, mock := newMockRepo(t)
	unavailable := errors.New("dial tcp: connection refused")

	mock.ExpectBegin().WillReturnError(unavailable)
	_, err := repo.Pin(context.Background(), 1, "general")
	assert.ErrorIs(t, err, unavailable)

	mock.ExpectQuery(`SELECT \* FROM "messages"`).WillReturnError(unavailable)
	_, err = repo.ListByGroup(context.Background(), "general")
	assert.ErrorIs(t, err, unavailable)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
