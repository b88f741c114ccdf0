package discord

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PancyStudios/PancyFeedbackGo/pkg/alerts"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/models"
	"github.com/bwmarrin/discordgo"
)

// WebhookSink posts admin alerts to a Discord channel webhook. It is an alerts.Sink.
type WebhookSink struct {
	session *discordgo.Session
	id      string
	token   string
}

// NewWebhookSink parses a https://discord.com/api/webhooks/<id>/<token> URL
func NewWebhookSink(webhookURL string) (*WebhookSink, error) {
	id, token, err := parseWebhookURL(webhookURL)
	if err != nil {
		return nil, err
	}

	// Webhook execution is authenticated by the token in the path
	session, err := discordgo.New("")
	if err != nil {
		return nil, err
	}

	return &WebhookSink{session: session, id: id, token: token}, nil
}

func parseWebhookURL(raw string) (id, token string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid webhook url: %w", err)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, p := range parts {
		if p == "webhooks" && i+2 < len(parts) {
			id, token = parts[i+1], parts[i+2]
			break
		}
	}
	if id == "" || token == "" {
		return "", "", fmt.Errorf("invalid webhook url: expected /webhooks/<id>/<token>")
	}
	return id, token, nil
}

// Name implements alerts.Sink
func (w *WebhookSink) Name() string { return "discord" }

// Send implements alerts.Sink
func (w *WebhookSink) Send(ctx context.Context, a alerts.Alert) error {
	_, err := w.session.WebhookExecute(w.id, w.token, false, &discordgo.WebhookParams{
		Username: "PancyFeedback",
		Embeds:   []*discordgo.MessageEmbed{alertEmbed(a)},
	}, discordgo.WithContext(ctx))
	return err
}

func severityColor(s models.Severity) int {
	switch s {
	case models.SeverityCritical:
		return 0xFF0000
	case models.SeverityHigh:
		return 0xFFA500
	case models.SeverityMedium:
		return 0xFFFF00
	default:
		return 0x0000FF
	}
}

// alertEmbed renders an alert the way the admin channel shows it
func alertEmbed(a alerts.Alert) *discordgo.MessageEmbed {
	fields := []*discordgo.MessageEmbedField{
		{Name: "👤 Usuario", Value: fmt.Sprintf("`%s`", a.UserID), Inline: true},
		{Name: "⚖️ Acción", Value: string(a.Action), Inline: true},
		{Name: "⚠️ Advertencias", Value: fmt.Sprintf("%d", a.WarningCount), Inline: true},
	}
	if a.BanUntil != nil {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  "🚫 Suspendido hasta",
			Value: fmt.Sprintf("<t:%d:F>", a.BanUntil.Unix()),
		})
	}
	if a.FeedbackRef != "" {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  "📝 Feedback",
			Value: fmt.Sprintf("`%s`", a.FeedbackRef),
		})
	}

	ts := a.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	return &discordgo.MessageEmbed{
		Title:       a.Title,
		Description: a.Message,
		Color:       severityColor(a.Severity),
		Fields:      fields,
		Timestamp:   ts.Format(time.RFC3339),
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("💫 - Developed by PancyStudios | %s", strings.ToUpper(string(a.Severity))),
		},
	}
}
