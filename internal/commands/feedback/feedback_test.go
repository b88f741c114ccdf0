package feedback

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/PancyStudios/PancyFeedbackGo/pkg/discord"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/enforcement"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/errors"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/models"
)

func TestViolationsEmbed(t *testing.T) {
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	until := now.Add(24 * time.Hour)

	var history []models.FlagEntry
	for i := 0; i < 12; i++ {
		history = append(history, models.FlagEntry{
			ViolationType: fmt.Sprintf("type-%d", i),
			ActionTaken:   models.ActionWarning,
			Timestamp:     now.Add(time.Duration(i) * time.Minute),
		})
	}

	embed := violationsEmbed(enforcement.Status{
		UserID:       "u1",
		Banned:       true,
		BanUntil:     &until,
		WarningCount: 3,
		Violations:   12,
	}, history, now)

	if embed.Color != 0xFF0000 {
		t.Errorf("Color = %#x, want red while banned", embed.Color)
	}
	if !strings.Contains(embed.Description, fmt.Sprintf("<t:%d:F>", until.Unix())) {
		t.Error("Expected the ban end to be shown")
	}
	if !strings.Contains(embed.Description, "**type-11**") || strings.Contains(embed.Description, "**type-1**") {
		t.Error("Expected only the most recent entries")
	}
	if strings.Index(embed.Description, "type-11") > strings.Index(embed.Description, "type-10") {
		t.Error("Expected newest entries first")
	}
	if !strings.Contains(embed.Description, "…y 2 más.") {
		t.Errorf("Description = %q, want overflow marker", embed.Description)
	}

	clean := violationsEmbed(enforcement.Status{UserID: "u2"}, nil, now)
	if clean.Color != 0x00FF00 || !strings.Contains(clean.Description, "No se han encontrado") {
		t.Errorf("clean embed = %+v", clean)
	}

	warned := violationsEmbed(enforcement.Status{UserID: "u3", WarningCount: 1}, nil, now)
	if warned.Color != 0xFFA500 {
		t.Errorf("warned Color = %#x, want orange", warned.Color)
	}
}

func TestUnbanReply(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"ok", nil, "✅"},
		{"unknown", fmt.Errorf("loading: %w", errors.ErrUserNotFound), "No existe"},
		{"conflict", fmt.Errorf("unbanning: %w", errors.ErrConflict), "inténtalo de nuevo"},
		{"other", errors.New("db down"), "Error al actualizar"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := unbanReply("u1", tt.err); !strings.Contains(got, tt.want) {
				t.Errorf("unbanReply() = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestVerdictEmbed(t *testing.T) {
	flagged := verdictEmbed(models.ModerationVerdict{
		Flagged:  true,
		Reason:   "toxicity",
		Provider: models.ProviderA,
		Scores:   map[string]float64{"TOXICITY": 0.91, "INSULT": 0.7},
	})
	if flagged.Color != 0xFF0000 || !strings.Contains(flagged.Title, "marcado") {
		t.Errorf("flagged embed = %+v", flagged)
	}
	if strings.Index(flagged.Description, "INSULT") > strings.Index(flagged.Description, "TOXICITY") {
		t.Error("Expected scores sorted by name")
	}
	if !strings.Contains(flagged.Description, "0.91") {
		t.Errorf("Description = %q, want formatted score", flagged.Description)
	}

	local := verdictEmbed(models.ModerationVerdict{Flagged: true, Reason: "bad word", Provider: models.ProviderLocal, Rule: "bad_word", Details: "i***a"})
	if !strings.Contains(local.Description, "bad_word") || !strings.Contains(local.Description, "i***a") {
		t.Errorf("local embed = %q", local.Description)
	}

	clean := verdictEmbed(models.ModerationVerdict{Reason: "clean", Provider: models.ProviderAll})
	if clean.Color != 0x00FF00 {
		t.Errorf("clean Color = %#x", clean.Color)
	}
}

type stubEnforcer struct{}

func (stubEnforcer) Status(ctx context.Context, userID string) (enforcement.Status, error) {
	return enforcement.Status{UserID: userID}, nil
}

func (stubEnforcer) History(ctx context.Context, userID string) ([]models.FlagEntry, error) {
	return nil, nil
}

func (stubEnforcer) Unban(ctx context.Context, userID, adminID string) error { return nil }

type stubModerator struct{}

func (stubModerator) Moderate(ctx context.Context, text string) models.ModerationVerdict {
	return models.ModerationVerdict{}
}

func TestRegisterFeedbackCommands(t *testing.T) {
	client, err := discord.NewClient("token", "guild-1")
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	RegisterFeedbackCommands(client, Deps{Enforcer: stubEnforcer{}, Moderator: stubModerator{}})

	for _, name := range []string{"feedback.violations", "feedback.unban", "feedback.check"} {
		cmd, ok := client.Commands.Get(name)
		if !ok {
			t.Errorf("command %s not registered", name)
			continue
		}
		if !cmd.AdminGuildOnly || cmd.UserPermissions == 0 {
			t.Errorf("command %s must be an admin-guild command with permissions", name)
		}
	}
}
