package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"modqueue/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func setupSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection so every query sees the same in-memory database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.ReportedPostRecord{}))
	return db
}

func TestReportedPostRepository_ListReported_SQL(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewReportedPostRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "reported_posts" ORDER BY reported_at DESC, id ASC LIMIT $1`)).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "author_username", "status"}).
			AddRow(3, "Reported", "mallory", "pending"))

	records, err := repo.ListReported(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, uint(3), records[0].ID)
	assert.Equal(t, "mallory", records[0].AuthorUsername)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportedPostRepository_RoundTrip(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewReportedPostRepository(db)
	ctx := context.Background()

	base := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	records := []models.ReportedPostRecord{
		{ID: 1, Title: "old", Content: "c", AuthorUsername: "a", Status: "pending", ReportedReason: "spam", ReportedAt: base},
		{ID: 2, Title: "new", Content: "c", AuthorUsername: "b", Status: "pending", ReportedReason: "spam", ReportedAt: base.Add(time.Hour)},
		{ID: 3, Title: "mid", Content: "c", AuthorUsername: "c", Status: "pending", ReportedReason: "harassment", ReportedAt: base.Add(30 * time.Minute)},
	}
	require.NoError(t, repo.UpsertBatch(ctx, records))

	got, err := repo.ListReported(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []uint{2, 3, 1}, []uint{got[0].ID, got[1].ID, got[2].ID})

	limited, err := repo.ListReported(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	// upsert overwrites an existing row
	records[0].Title = "old (edited)"
	require.NoError(t, repo.UpsertBatch(ctx, records[:1]))
	var stored models.ReportedPostRecord
	require.NoError(t, db.First(&stored, 1).Error)
	assert.Equal(t, "old (edited)", stored.Title)

	counts, err := repo.CountByReason(ctx)
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, ReasonCount{ReportedReason: "spam", Total: 2}, counts[0])
	assert.Equal(t, ReasonCount{ReportedReason: "harassment", Total: 1}, counts[1])
}

func TestReportedPostRepository_UpsertEmpty(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewReportedPostRepository(db)
	assert.NoError(t, repo.UpsertBatch(context.Background(), nil))
}
