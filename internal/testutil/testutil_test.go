package testutil

import (
	"context"
	"errors"
	"testing"

	"modqueue/internal/models"
	"modqueue/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportedRepoStub(t *testing.T) {
	ctx := context.Background()
	s := NewReportedRepoStub(
		models.ReportedPostRecord{ID: 1, Title: "a", ReportedReason: "Spam"},
		models.ReportedPostRecord{ID: 2, Title: "b", ReportedReason: "Scam"},
	)

	require.NoError(t, s.UpsertBatch(ctx, []models.ReportedPostRecord{
		{ID: 2, Title: "b2", ReportedReason: "Spam"},
		{ID: 3, Title: "c", ReportedReason: "Abuse"},
	}))

	got, err := s.ListReported(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b2", got[1].Title)
	assert.Equal(t, int32(1), s.ListCalls())

	counts, err := s.CountByReason(ctx)
	require.NoError(t, err)
	assert.Equal(t, []repository.ReasonCount{
		{ReportedReason: "Abuse", Total: 1},
		{ReportedReason: "Spam", Total: 2},
	}, counts)

	s.Err = errors.New("down")
	_, err = s.ListReported(ctx, 0)
	assert.Error(t, err)
	assert.Equal(t, int32(2), s.ListCalls())
}

func TestNewSQLiteDB_Migrated(t *testing.T) {
	db := NewSQLiteDB(t)
	assert.True(t, db.Migrator().HasTable(&models.ReportedPostRecord{}))
}
