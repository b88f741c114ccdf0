package models

import "time"

// FeedbackStatus is the moderation outcome of a submission
type FeedbackStatus string

const (
	FeedbackAccepted FeedbackStatus = "accepted"
	FeedbackFlagged  FeedbackStatus = "flagged"
)

// Feedback is one submitted piece of feedback. UserID is empty for anonymous submissions.
type Feedback struct {
	ID          string               `bson:"_id" json:"id"`
	Content     string               `bson:"content" json:"content"`
	Category    string               `bson:"category,omitempty" json:"category,omitempty"`
	UserID      string               `bson:"userId,omitempty" json:"-"`
	Status      FeedbackStatus       `bson:"status" json:"status"`
	Moderation  ModerationVerdict    `bson:"moderation" json:"moderation"`
	Enforcement *EnforcementDecision `bson:"enforcement,omitempty" json:"enforcement,omitempty"`
	CreatedAt   time.Time            `bson:"createdAt" json:"createdAt"`
}

// FeedbackPage is one page of the admin feedback listing
type FeedbackPage struct {
	Items []Feedback `json:"items"`
	Total int64      `json:"total"`
	Page  int        `json:"page"`
	Limit int        `json:"limit"`
}
