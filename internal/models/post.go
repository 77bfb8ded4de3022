// Package models contains data structures for the moderation domain.
package models

import (
	"time"
)

// Status is the moderation state of a reported post.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// DefaultRejectionReason is recorded when a post is rejected without a reason.
const DefaultRejectionReason = "-"

// Statuses lists every status in display order.
var Statuses = []Status{StatusPending, StatusApproved, StatusRejected}

// ParseStatus converts raw input into a Status. Anything outside the three
// known values is rejected with an INVALID_STATUS error.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", NewInvalidStatusError(raw)
	}
	return s, nil
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// IsTransitionTarget reports whether a post may be moved into s.
func (s Status) IsTransitionTarget() bool {
	return s == StatusApproved || s == StatusRejected
}

// Author identifies who wrote a reported post.
type Author struct {
	Username string `json:"username"`
}

// Post is a reported post under review.
type Post struct {
	ID              uint      `json:"id" validate:"required"`
	Title           string    `json:"title"`
	Content         string    `json:"content"`
	Author          Author    `json:"author"`
	Status          Status    `json:"status"`
	ReportedReason  string    `json:"reportedReason"`
	ReportedAt      time.Time `json:"reportedAt"`
	ReportCount     int       `json:"reportCount"`
	ImageURL        string    `json:"imageUrl,omitempty"`
	RejectionReason string    `json:"rejectionReason,omitempty"`
}

// PostFields is a partial update applied by the transition engine.
// Nil fields are left untouched.
type PostFields struct {
	Status          *Status
	RejectionReason *string
}

// Apply writes the non-nil fields onto p.
func (f PostFields) Apply(p *Post) {
	if f.Status != nil {
		p.Status = *f.Status
	}
	if f.RejectionReason != nil {
		p.RejectionReason = *f.RejectionReason
	}
}
