package models

import "time"

// ActionTaken records what a confirmed violation resulted in
type ActionTaken string

const (
	ActionWarning      ActionTaken = "Warning"
	ActionTemporaryBan ActionTaken = "TemporaryBan"
)

// FlagEntry is one confirmed violation. Never edited once the transition commits.
type FlagEntry struct {
	Reason        string      `bson:"reason" json:"reason"`
	ViolationType string      `bson:"violationType" json:"violationType"`
	Timestamp     time.Time   `bson:"timestamp" json:"timestamp"`
	ActionTaken   ActionTaken `bson:"actionTaken" json:"actionTaken"`
	FeedbackRef   string      `bson:"feedbackRef" json:"feedbackRef"`
}

// ViolationRecord is the enforcement state of a user.
// WarningCount resets to 0 exactly when a ban is issued.
type ViolationRecord struct {
	WarningCount int         `bson:"warningCount" json:"warningCount"`
	BanUntil     *time.Time  `bson:"banUntil,omitempty" json:"banUntil,omitempty"`
	FlagHistory  []FlagEntry `bson:"flagHistory" json:"flagHistory"`
}

// IsBanned derives the ban state at the given instant. Never cache the result.
func (v ViolationRecord) IsBanned(now time.Time) bool {
	return v.BanUntil != nil && v.BanUntil.After(now)
}

// Role of a user account
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is the identity record owning a ViolationRecord
type User struct {
	ID             string          `bson:"_id" json:"id"`
	Email          string          `bson:"email,omitempty" json:"email,omitempty"`
	Role           Role            `bson:"role" json:"role"`
	Violations     ViolationRecord `bson:"violations" json:"violations"`
	Version        int64           `bson:"version" json:"version"`
	CreatedAt      time.Time       `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time       `bson:"updatedAt" json:"updatedAt"`
	LastUnbannedBy string          `bson:"lastUnbannedBy,omitempty" json:"lastUnbannedBy,omitempty"`
	LastUnbannedAt *time.Time      `bson:"lastUnbannedAt,omitempty" json:"lastUnbannedAt,omitempty"`
}

// Clone returns a deep copy so callers can mutate without touching shared state
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Violations.BanUntil != nil {
		t := *u.Violations.BanUntil
		c.Violations.BanUntil = &t
	}
	if u.LastUnbannedAt != nil {
		t := *u.LastUnbannedAt
		c.LastUnbannedAt = &t
	}
	c.Violations.FlagHistory = append([]FlagEntry(nil), u.Violations.FlagHistory...)
	return &c
}
