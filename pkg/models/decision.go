package models

import "time"

// EnforcementAction is the action decided for one violation
type EnforcementAction string

const (
	EnforcementNone         EnforcementAction = "None"
	EnforcementWarn         EnforcementAction = "Warn"
	EnforcementTemporaryBan EnforcementAction = "TemporaryBan"
)

// EnforcementDecision links a ViolationRecord mutation to its notifications.
// Produced per call, never stored on its own.
type EnforcementDecision struct {
	Action          EnforcementAction `bson:"action" json:"action"`
	NewWarningCount int               `bson:"newWarningCount" json:"newWarningCount"`
	BanUntil        *time.Time        `bson:"banUntil,omitempty" json:"banUntil,omitempty"`
	NotifyAdmins    bool              `bson:"notifyAdmins" json:"notifyAdmins"`
	AlreadyBanned   bool              `bson:"alreadyBanned" json:"alreadyBanned"`
}
