package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"modqueue/internal/cache"
	"modqueue/internal/middleware"
	"modqueue/internal/models"
	"modqueue/internal/repository"

	"github.com/redis/go-redis/v9"
)

const loadTimeout = 30 * time.Second

// PostLoader fetches the initial post set for review sessions, reading through
// the Redis cache in front of the reported-post source.
type PostLoader struct {
	source repository.ReportedPostRepository
	rdb    *redis.Client
	ttl    time.Duration
	limit  int
	logger *slog.Logger
}

// NewPostLoader returns a loader. A nil rdb or zero ttl disables caching and a
// non-positive limit fetches every reported post.
func NewPostLoader(source repository.ReportedPostRepository, rdb *redis.Client, ttl time.Duration, limit int) *PostLoader {
	return &PostLoader{
		source: source,
		rdb:    rdb,
		ttl:    ttl,
		limit:  limit,
		logger: middleware.Logger,
	}
}

// Fetch returns the reported posts, newest report first.
func (l *PostLoader) Fetch(ctx context.Context) ([]models.Post, error) {
	posts := []models.Post{}
	err := cache.Aside(ctx, l.rdb, cache.ReportedPostsKey, &posts, l.ttl, func() error {
		records, err := l.source.ListReported(ctx, l.limit)
		if err != nil {
			return fmt.Errorf("list reported posts: %w", err)
		}
		posts = make([]models.Post, 0, len(records))
		for _, rec := range records {
			posts = append(posts, rec.ToPost())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// LoadAsync fetches posts in the background and loads them into session. The
// session keeps reporting IsLoading until the fetch succeeds. The returned
// channel is closed when the attempt finishes.
func (l *PostLoader) LoadAsync(ctx context.Context, session *ModerationSession) <-chan struct{} {
	done := make(chan struct{})
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)

	go func() {
		defer close(done)
		defer cancel()

		posts, err := l.Fetch(ctx)
		if err != nil {
			session.failLoad(err)
			return
		}
		session.Load(posts)
	}()

	return done
}

// Invalidate drops the cached post set so the next fetch reads the source.
func (l *PostLoader) Invalidate(ctx context.Context) error {
	return cache.Invalidate(ctx, l.rdb, cache.ReportedPostsKey)
}
