package models

import "time"

// NotificationType classifies a notification for the UI
type NotificationType string

const (
	NotificationWarning NotificationType = "warning"
	NotificationBan     NotificationType = "ban"
	NotificationInfo    NotificationType = "info"
	NotificationReview  NotificationType = "review"
)

// Severity of a notification or admin alert
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Notification is a user-visible notice. Only Read ever changes after creation.
type Notification struct {
	ID          string           `bson:"_id" json:"id"`
	UserID      string           `bson:"userId" json:"userId"`
	TemplateKey string           `bson:"templateKey" json:"templateKey"`
	Title       string           `bson:"title" json:"title"`
	Message     string           `bson:"message" json:"message"`
	Type        NotificationType `bson:"type" json:"type"`
	Severity    Severity         `bson:"severity" json:"severity"`
	Read        bool             `bson:"read" json:"read"`
	Timestamp   time.Time        `bson:"timestamp" json:"timestamp"`
}

// NotificationPage is one page of a user's notification list
type NotificationPage struct {
	Items []Notification `json:"items"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}
