package notify

import (
	"strings"

	"github.com/PancyStudios/PancyFeedbackGo/pkg/models"
)

// Template keys
const (
	Welcome            = "WELCOME"
	FirstWarning       = "FIRST_WARNING"
	SecondWarning      = "SECOND_WARNING"
	FinalWarning       = "FINAL_WARNING"
	TemporaryBan       = "TEMPORARY_BAN"
	AccountUnbanned    = "ACCOUNT_UNBANNED"
	HarassmentDetected = "HARASSMENT_DETECTED"
)

// Template is a fixed notification text with {{var}} placeholders
type Template struct {
	Title    string
	Message  string
	Type     models.NotificationType
	Severity models.Severity
}

var templates = map[string]Template{
	Welcome: {
		Title:    "👋 Welcome to PancyFeedback",
		Message:  "Your account is ready. Everything you submit stays anonymous to the people you review.",
		Type:     models.NotificationInfo,
		Severity: models.SeverityLow,
	},
	FirstWarning: {
		Title:    "⚠️ First Warning",
		Message:  "Your feedback was flagged: {{reason}}. This is warning {{warningCount}} of {{threshold}}. Please keep your feedback respectful.",
		Type:     models.NotificationWarning,
		Severity: models.SeverityMedium,
	},
	SecondWarning: {
		Title:    "⚠️ Second Warning",
		Message:  "Your feedback was flagged again: {{reason}}. This is warning {{warningCount}} of {{threshold}}.",
		Type:     models.NotificationWarning,
		Severity: models.SeverityHigh,
	},
	FinalWarning: {
		Title:    "🛑 Final Warning",
		Message:  "Your feedback was flagged: {{reason}}. This is your final warning. One more violation suspends your account for {{banHours}} hours.",
		Type:     models.NotificationWarning,
		Severity: models.SeverityCritical,
	},
	TemporaryBan: {
		Title:    "🚫 Account Temporarily Suspended",
		Message:  "Your account has been suspended until {{banUntil}} after repeated violations. Last reason: {{reason}}.",
		Type:     models.NotificationBan,
		Severity: models.SeverityCritical,
	},
	AccountUnbanned: {
		Title:    "✅ Account Reinstated",
		Message:  "An administrator lifted your suspension. You can submit feedback again.",
		Type:     models.NotificationInfo,
		Severity: models.SeverityMedium,
	},
	HarassmentDetected: {
		Title:    "🚨 Harassment Detected",
		Message:  "User {{userId}} reached {{action}} (warnings: {{warningCount}}). Reason: {{reason}}. Feedback: {{feedbackRef}}.",
		Type:     models.NotificationReview,
		Severity: models.SeverityHigh,
	},
}

// Lookup returns the template for key
func Lookup(key string) (Template, bool) {
	t, ok := templates[key]
	return t, ok
}

// Render substitutes vars into the template's title and message.
// Placeholders without a value are left as they are.
func Render(key string, vars map[string]string) (Template, bool) {
	t, ok := templates[key]
	if !ok {
		return Template{}, false
	}
	if len(vars) == 0 {
		return t, true
	}

	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	r := strings.NewReplacer(pairs...)
	t.Title = r.Replace(t.Title)
	t.Message = r.Replace(t.Message)
	return t, true
}
