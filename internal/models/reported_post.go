package models

import (
	"time"
)

// ReportedPostRecord is the stored form of a reported post, the source a review
// session is loaded from. Moderation decisions are not written back.
type ReportedPostRecord struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Title          string    `gorm:"not null" json:"title"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	AuthorUsername string    `gorm:"not null;index" json:"author_username"`
	Status         string    `gorm:"not null;default:pending;index" json:"status"`
	ReportedReason string    `json:"reported_reason"`
	ReportedAt     time.Time `gorm:"index" json:"reported_at"`
	ReportCount    int       `gorm:"not null;default:0" json:"report_count"`
	ImageURL       string    `json:"image_url"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName pins the table name used by gorm.
func (ReportedPostRecord) TableName() string {
	return "reported_posts"
}

// ToPost converts the stored record into a reviewable post.
// Unknown stored statuses are kept as-is; loading performs no shape validation.
func (r ReportedPostRecord) ToPost() Post {
	status := Status(r.Status)
	if status == "" {
		status = StatusPending
	}
	count := r.ReportCount
	if count < 0 {
		count = 0
	}
	return Post{
		ID:             r.ID,
		Title:          r.Title,
		Content:        r.Content,
		Author:         Author{Username: r.AuthorUsername},
		Status:         status,
		ReportedReason: r.ReportedReason,
		ReportedAt:     r.ReportedAt,
		ReportCount:    count,
		ImageURL:       r.ImageURL,
	}
}
