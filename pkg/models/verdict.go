package models

import "time"

// Provider identifies which stage of the moderation pipeline produced a verdict
type Provider string

const (
	ProviderLocal Provider = "local"
	ProviderA     Provider = "providerA"
	ProviderB     Provider = "providerB"
	ProviderNone  Provider = "none"
	ProviderAll   Provider = "all"
)

// ModerationVerdict is the outcome of moderating one piece of text.
// Created once per submission and stored only as part of the Feedback record.
type ModerationVerdict struct {
	Flagged   bool               `bson:"flagged" json:"flagged"`
	Reason    string             `bson:"reason" json:"reason"`
	Provider  Provider           `bson:"provider" json:"provider"`
	Rule      string             `bson:"rule,omitempty" json:"rule,omitempty"`
	Details   string             `bson:"details,omitempty" json:"details,omitempty"`
	Scores    map[string]float64 `bson:"scores,omitempty" json:"scores,omitempty"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
}
