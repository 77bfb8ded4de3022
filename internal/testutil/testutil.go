// Package testutil provides shared test doubles and fixtures for modqueue tests.
package testutil

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"testing"

	"modqueue/internal/models"
	"modqueue/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewSQLiteDB opens a migrated in-memory database that is closed with the test.
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// each new connection would see a fresh :memory: database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.ReportedPostRecord{}))
	return db
}

// NewRedis starts a miniredis instance and a client pointed at it.
func NewRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

// ReportedRepoStub is an in-memory repository.ReportedPostRepository.
// A non-nil Err is returned from every call.
type ReportedRepoStub struct {
	mu      sync.Mutex
	calls   atomic.Int32
	Records []models.ReportedPostRecord
	Err     error
}

var _ repository.ReportedPostRepository = (*ReportedRepoStub)(nil)

// NewReportedRepoStub returns a stub holding records.
func NewReportedRepoStub(records ...models.ReportedPostRecord) *ReportedRepoStub {
	return &ReportedRepoStub{Records: records}
}

// ListCalls reports how many times ListReported ran.
func (s *ReportedRepoStub) ListCalls() int32 {
	return s.calls.Load()
}

// ListReported returns up to limit stored records in insertion order.
func (s *ReportedRepoStub) ListReported(_ context.Context, limit int) ([]models.ReportedPostRecord, error) {
	s.calls.Add(1)
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Clone(s.Records)
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// UpsertBatch replaces records with matching ids and appends the rest.
func (s *ReportedRepoStub) UpsertBatch(_ context.Context, records []models.ReportedPostRecord) error {
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		i := slices.IndexFunc(s.Records, func(r models.ReportedPostRecord) bool { return r.ID == rec.ID })
		if i >= 0 {
			s.Records[i] = rec
			continue
		}
		s.Records = append(s.Records, rec)
	}
	return nil
}

// CountByReason groups stored records by reason, ordered by reason.
func (s *ReportedRepoStub) CountByReason(context.Context) ([]repository.ReasonCount, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	totals := make(map[string]int64)
	for _, rec := range s.Records {
		totals[rec.ReportedReason]++
	}
	out := make([]repository.ReasonCount, 0, len(totals))
	for reason, n := range totals {
		out = append(out, repository.ReasonCount{ReportedReason: reason, Total: n})
	}
	slices.SortFunc(out, func(a, b repository.ReasonCount) int {
		return cmp.Compare(a.ReportedReason, b.ReportedReason)
	})
	return out, nil
}
