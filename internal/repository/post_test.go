package repository

import (
	"slices"
	"testing"

	"modqueue/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePosts() []models.Post {
	return []models.Post{
		{ID: 1, Title: "first", Status: models.StatusPending},
		{ID: 2, Title: "second", Status: models.StatusApproved},
		{ID: 3, Title: "third", Status: models.StatusPending},
		{ID: 4, Title: "fourth", Status: models.StatusRejected, RejectionReason: "spam"},
	}
}

func TestPostRepository_Load(t *testing.T) {
	repo := NewPostRepository()
	assert.True(t, repo.IsLoading())
	assert.Equal(t, 0, repo.Len())

	posts := samplePosts()
	repo.Load(posts)

	assert.False(t, repo.IsLoading())
	assert.Equal(t, posts, repo.All())

	posts[0].Title = "caller mutation"
	got, ok := repo.FindByID(1)
	require.True(t, ok)
	assert.Equal(t, "first", got.Title)

	repo.Load([]models.Post{{ID: 9, Status: models.StatusPending}})
	assert.Equal(t, 1, repo.Len())
	_, ok = repo.FindByID(1)
	assert.False(t, ok)
}

func TestPostRepository_ListByStatus(t *testing.T) {
	repo := NewPostRepository()
	repo.Load(samplePosts())

	var ids []uint
	for p := range repo.ListByStatus(models.StatusPending) {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []uint{1, 3}, ids)

	// stops early when the consumer breaks
	var first []uint
	for p := range repo.ListByStatus(models.StatusPending) {
		first = append(first, p.ID)
		break
	}
	assert.Equal(t, []uint{1}, first)

	assert.Empty(t, slices.Collect(repo.ListByStatus(models.Status("unknown"))))
}

func TestPostRepository_SetFieldsAndReplace(t *testing.T) {
	repo := NewPostRepository()
	repo.Load(samplePosts())

	status := models.StatusRejected
	reason := "abuse"
	assert.True(t, repo.SetFields(1, models.PostFields{Status: &status, RejectionReason: &reason}))
	got, _ := repo.FindByID(1)
	assert.Equal(t, models.StatusRejected, got.Status)
	assert.Equal(t, "abuse", got.RejectionReason)
	assert.Equal(t, "first", got.Title)

	assert.False(t, repo.SetFields(42, models.PostFields{Status: &status}))

	assert.True(t, repo.Replace(models.Post{ID: 1, Title: "restored", Status: models.StatusPending}))
	got, _ = repo.FindByID(1)
	assert.Equal(t, "restored", got.Title)
	assert.Empty(t, got.RejectionReason)
	assert.False(t, repo.Replace(models.Post{ID: 42}))
}

func TestPostRepository_UpdateWhere(t *testing.T) {
	repo := NewPostRepository()
	repo.Load(samplePosts())

	approved := models.StatusApproved
	n := repo.UpdateWhere(func(p models.Post) bool { return p.ID%2 == 1 }, models.PostFields{Status: &approved})
	assert.Equal(t, 2, n)

	counts := repo.CountsByStatus()
	assert.Equal(t, 0, counts[models.StatusPending])
	assert.Equal(t, 3, counts[models.StatusApproved])
	assert.Equal(t, 1, counts[models.StatusRejected])
}

func TestPostRepository_CountsByStatusIncludesEmptyBuckets(t *testing.T) {
	repo := NewPostRepository()
	counts := repo.CountsByStatus()
	assert.Len(t, counts, 3)
	for _, s := range models.Statuses {
		assert.Zero(t, counts[s])
	}
}

func TestPostRepository_DuplicateIDsResolveToFirst(t *testing.T) {
	repo := NewPostRepository()
	repo.Load([]models.Post{
		{ID: 5, Title: "a", Status: models.StatusPending},
		{ID: 5, Title: "b", Status: models.StatusPending},
	})

	got, ok := repo.FindByID(5)
	require.True(t, ok)
	assert.Equal(t, "a", got.Title)
	assert.Equal(t, 2, repo.Len())
}

func TestPostRepository_Neighbors(t *testing.T) {
	repo := NewPostRepository()
	repo.Load(samplePosts())

	tests := []struct {
		id       uint
		prev     uint
		next     uint
		expectOK bool
	}{
		{1, 0, 2, true},
		{3, 2, 4, true},
		{4, 3, 0, true},
		{99, 0, 0, false},
	}
	for _, tt := range tests {
		prev, next, ok := repo.Neighbors(tt.id)
		assert.Equal(t, tt.expectOK, ok, "id %d", tt.id)
		assert.Equal(t, tt.prev, prev, "prev of %d", tt.id)
		assert.Equal(t, tt.next, next, "next of %d", tt.id)
	}
}
