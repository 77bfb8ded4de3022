package repository

import (
	"context"
	"time"

	"modqueue/internal/middleware"
	"modqueue/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReasonCount is one row of the per-reason aggregate.
type ReasonCount struct {
	ReportedReason string `json:"reported_reason"`
	Total          int64  `json:"total"`
}

// ReportedPostRepository reads the stored queue of reported posts.
type ReportedPostRepository interface {
	ListReported(ctx context.Context, limit int) ([]models.ReportedPostRecord, error)
	UpsertBatch(ctx context.Context, records []models.ReportedPostRecord) error
	CountByReason(ctx context.Context) ([]ReasonCount, error)
}

type reportedPostRepository struct {
	db *gorm.DB
}

// NewReportedPostRepository creates a gorm-backed reported post repository.
func NewReportedPostRepository(db *gorm.DB) ReportedPostRepository {
	return &reportedPostRepository{db: db}
}

// ListReported returns reported posts newest report first. A non-positive limit
// returns every row.
func (r *reportedPostRepository) ListReported(ctx context.Context, limit int) ([]models.ReportedPostRecord, error) {
	defer observeQuery("select", time.Now())

	var records []models.ReportedPostRecord
	q := r.db.WithContext(ctx).Order("reported_at DESC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *reportedPostRepository) UpsertBatch(ctx context.Context, records []models.ReportedPostRecord) error {
	if len(records) == 0 {
		return nil
	}
	defer observeQuery("upsert", time.Now())

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(records, 100).Error
}

func (r *reportedPostRepository) CountByReason(ctx context.Context) ([]ReasonCount, error) {
	defer observeQuery("count", time.Now())

	var rows []ReasonCount
	err := r.db.WithContext(ctx).
		Model(&models.ReportedPostRecord{}).
		Select("reported_reason, COUNT(*) as total").
		Group("reported_reason").
		Order("total DESC, reported_reason ASC").
		Scan(&rows).Error
	return rows, err
}

func observeQuery(operation string, start time.Time) {
	middleware.DatabaseQueryLatency.
		WithLabelValues(operation, models.ReportedPostRecord{}.TableName()).
		Observe(time.Since(start).Seconds())
}
