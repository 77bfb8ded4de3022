// Package seed builds fake reported posts for development and demos.
package seed

import (
	"context"
	"fmt"
	"time"

	"modqueue/internal/models"
	"modqueue/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
)

var reportReasons = []string{
	"Spam", "Harassment", "Hate speech", "Misinformation",
	"Nudity", "Violence", "Scam", "Impersonation", "Off-topic",
}

// Options controls generated data.
type Options struct {
	// StartID is the id given to the first generated post.
	StartID uint
	// MaxDays bounds how far back report times are spread.
	MaxDays int
	// Seed makes output reproducible. Zero seeds from the clock.
	Seed int64
}

// Factory builds reported post records.
type Factory struct {
	faker  *gofakeit.Faker
	opts   Options
	nextID uint
	now    func() time.Time
}

// NewFactory creates a Factory.
func NewFactory(opts Options) *Factory {
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	if opts.MaxDays <= 0 {
		opts.MaxDays = 14
	}
	if opts.StartID == 0 {
		opts.StartID = 1
	}
	return &Factory{
		faker:  gofakeit.New(opts.Seed),
		opts:   opts,
		nextID: opts.StartID,
		now:    time.Now,
	}
}

// BuildReportedPost returns one pending reported post.
func (f *Factory) BuildReportedPost() models.ReportedPostRecord {
	now := f.now()
	rec := models.ReportedPostRecord{
		ID:             f.nextID,
		Title:          f.faker.Sentence(5),
		Content:        f.faker.Paragraph(1, 3, 8, "\n"),
		AuthorUsername: f.faker.Username(),
		Status:         string(models.StatusPending),
		ReportedReason: f.faker.RandomString(reportReasons),
		ReportedAt:     f.faker.DateRange(now.AddDate(0, 0, -f.opts.MaxDays), now),
		ReportCount:    f.faker.Number(1, 40),
	}
	// roughly a third of reports carry an image
	if f.faker.Number(1, 3) == 1 {
		rec.ImageURL = fmt.Sprintf("https://picsum.photos/seed/%s/800/600", f.faker.UUID())
	}
	f.nextID++
	return rec
}

// Build returns n reported posts with consecutive ids.
func (f *Factory) Build(n int) []models.ReportedPostRecord {
	out := make([]models.ReportedPostRecord, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, f.BuildReportedPost())
	}
	return out
}

// ReportedPosts writes n generated posts through repo and returns them.
func ReportedPosts(ctx context.Context, repo repository.ReportedPostRepository, n int, opts Options) ([]models.ReportedPostRecord, error) {
	if n <= 0 {
		return nil, nil
	}
	records := NewFactory(opts).Build(n)
	if err := repo.UpsertBatch(ctx, records); err != nil {
		return nil, fmt.Errorf("seed reported posts: %w", err)
	}
	return records, nil
}
