// Package repository provides data access layer implementations for the application.
package repository

import (
	"iter"

	"modqueue/internal/models"
)

// PostRepository is the canonical store of posts for one review session.
// It is not safe for concurrent use; the owning session serializes access.
type PostRepository interface {
	Load(posts []models.Post)
	IsLoading() bool
	FindByID(id uint) (models.Post, bool)
	ListByStatus(status models.Status) iter.Seq[models.Post]
	All() []models.Post
	Filter(match func(models.Post) bool) []models.Post
	SetFields(id uint, fields models.PostFields) bool
	UpdateWhere(match func(models.Post) bool, fields models.PostFields) int
	Replace(post models.Post) bool
	CountsByStatus() map[models.Status]int
	Neighbors(id uint) (prev, next uint, ok bool)
	Len() int
}

// memoryPostRepository keeps posts in load order. Lookups by id resolve to the
// first post carrying that id.
type memoryPostRepository struct {
	posts   []models.Post
	index   map[uint]int
	loading bool
}

// NewPostRepository creates an empty repository that reports itself as loading
// until the first Load.
func NewPostRepository() PostRepository {
	return &memoryPostRepository{
		index:   make(map[uint]int),
		loading: true,
	}
}

func (r *memoryPostRepository) Load(posts []models.Post) {
	r.posts = make([]models.Post, len(posts))
	copy(r.posts, posts)
	r.index = make(map[uint]int, len(posts))
	for i, p := range r.posts {
		if _, exists := r.index[p.ID]; !exists {
			r.index[p.ID] = i
		}
	}
	r.loading = false
}

func (r *memoryPostRepository) IsLoading() bool {
	return r.loading
}

func (r *memoryPostRepository) FindByID(id uint) (models.Post, bool) {
	i, ok := r.index[id]
	if !ok {
		return models.Post{}, false
	}
	return r.posts[i], true
}

func (r *memoryPostRepository) ListByStatus(status models.Status) iter.Seq[models.Post] {
	return func(yield func(models.Post) bool) {
		for _, p := range r.posts {
			if p.Status != status {
				continue
			}
			if !yield(p) {
				return
			}
		}
	}
}

func (r *memoryPostRepository) All() []models.Post {
	out := make([]models.Post, len(r.posts))
	copy(out, r.posts)
	return out
}

func (r *memoryPostRepository) Filter(match func(models.Post) bool) []models.Post {
	var out []models.Post
	for _, p := range r.posts {
		if match(p) {
			out = append(out, p)
		}
	}
	return out
}

func (r *memoryPostRepository) SetFields(id uint, fields models.PostFields) bool {
	i, ok := r.index[id]
	if !ok {
		return false
	}
	fields.Apply(&r.posts[i])
	return true
}

func (r *memoryPostRepository) UpdateWhere(match func(models.Post) bool, fields models.PostFields) int {
	n := 0
	for i := range r.posts {
		if match(r.posts[i]) {
			fields.Apply(&r.posts[i])
			n++
		}
	}
	return n
}

func (r *memoryPostRepository) Replace(post models.Post) bool {
	i, ok := r.index[post.ID]
	if !ok {
		return false
	}
	r.posts[i] = post
	return true
}

func (r *memoryPostRepository) CountsByStatus() map[models.Status]int {
	counts := make(map[models.Status]int, len(models.Statuses))
	for _, s := range models.Statuses {
		counts[s] = 0
	}
	for _, p := range r.posts {
		counts[p.Status]++
	}
	return counts
}

// Neighbors returns the ids loaded immediately before and after id. A zero id
// means there is no neighbor on that side.
func (r *memoryPostRepository) Neighbors(id uint) (prev, next uint, ok bool) {
	i, found := r.index[id]
	if !found {
		return 0, 0, false
	}
	if i > 0 {
		prev = r.posts[i-1].ID
	}
	if i+1 < len(r.posts) {
		next = r.posts[i+1].ID
	}
	return prev, next, true
}

func (r *memoryPostRepository) Len() int {
	return len(r.posts)
}
