package discord

import (
	"strings"
	"testing"
	"time"

	"github.com/PancyStudios/PancyFeedbackGo/pkg/alerts"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/models"
	"github.com/bwmarrin/discordgo"
)

func noop(ctx *CommandContext) error { return nil }

// TestCommandCreation verifies that commands can be created with the builder pattern
func TestCommandCreation(t *testing.T) {
	cmd := NewCommand("check", "Analiza un texto", "feedback", noop)

	if cmd.Name != "check" {
		t.Errorf("Name = %v, want %v", cmd.Name, "check")
	}
	if cmd.Category != "feedback" {
		t.Errorf("Category = %v, want %v", cmd.Category, "feedback")
	}
	if cmd.Run == nil {
		t.Error("Run function is nil")
	}
}

func TestToApplicationCommand(t *testing.T) {
	option := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "texto",
		Description: "Texto a analizar",
		Required:    true,
	}

	cmd := NewCommand("check", "Analiza un texto", "feedback", noop).
		WithOptions(option).
		WithUserPermissions(discordgo.PermissionManageGuild)

	appCmd := cmd.ToApplicationCommand()
	if appCmd.Name != "check" || len(appCmd.Options) != 1 {
		t.Fatalf("ToApplicationCommand() = %+v", appCmd)
	}
	if appCmd.DefaultMemberPermissions == nil || *appCmd.DefaultMemberPermissions != discordgo.PermissionManageGuild {
		t.Error("Expected DefaultMemberPermissions to mirror UserPermissions")
	}

	if NewCommand("open", "", "", noop).ToApplicationCommand().DefaultMemberPermissions != nil {
		t.Error("Commands without permissions must not restrict members")
	}
}

func TestCommandAllowed(t *testing.T) {
	cmd := NewCommand("unban", "", "", noop).WithUserPermissions(discordgo.PermissionManageGuild | discordgo.PermissionModerateMembers)

	tests := []struct {
		name  string
		perms int64
		want  bool
	}{
		{"none", 0, false},
		{"partial", discordgo.PermissionManageGuild, false},
		{"exact", discordgo.PermissionManageGuild | discordgo.PermissionModerateMembers, true},
		{"administrator", discordgo.PermissionAdministrator, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cmd.allowed(tt.perms); got != tt.want {
				t.Errorf("allowed(%d) = %v, want %v", tt.perms, got, tt.want)
			}
		})
	}

	if !NewCommand("open", "", "", noop).allowed(0) {
		t.Error("Expected a command without permissions to allow everyone")
	}
}

func TestRegisterCommandGroup(t *testing.T) {
	c := &ExtendedClient{Commands: NewCommandCollection()}
	h := NewCommandHandler(c)

	group := h.RegisterCommandGroup("feedback", "Moderación de feedback",
		NewCommand("check", "", "", noop),
		NewCommand("unban", "", "", noop).WithUserPermissions(discordgo.PermissionManageGuild).InAdminGuild(),
	)

	if len(group.Options) != 2 || group.Options[1].Type != discordgo.ApplicationCommandOptionSubCommand {
		t.Fatalf("group options = %+v", group.Options)
	}
	if group.DefaultMemberPermissions == nil || *group.DefaultMemberPermissions != discordgo.PermissionManageGuild {
		t.Error("Expected the group to carry its subcommands' permissions")
	}
	if len(h.adminGuildCommands) != 1 || len(h.slashCommands) != 0 {
		t.Errorf("admin=%d global=%d, want the group scoped to the admin guild", len(h.adminGuildCommands), len(h.slashCommands))
	}
	if _, ok := c.Commands.Get("feedback.unban"); !ok {
		t.Error("Expected subcommand to be stored as feedback.unban")
	}
	if c.Commands.Size() != 2 {
		t.Errorf("Size() = %v, want 2", c.Commands.Size())
	}
}

func TestCommandName(t *testing.T) {
	data := discordgo.ApplicationCommandInteractionData{
		Name: "feedback",
		Options: []*discordgo.ApplicationCommandInteractionDataOption{
			{Name: "violations", Type: discordgo.ApplicationCommandOptionSubCommand},
		},
	}
	if got := commandName(data); got != "feedback.violations" {
		t.Errorf("commandName() = %v, want feedback.violations", got)
	}

	if got := commandName(discordgo.ApplicationCommandInteractionData{Name: "ping"}); got != "ping" {
		t.Errorf("commandName() = %v, want ping", got)
	}
}

func TestParseWebhookURL(t *testing.T) {
	id, token, err := parseWebhookURL("https://discord.com/api/webhooks/123456/abc-DEF_tok")
	if err != nil || id != "123456" || token != "abc-DEF_tok" {
		t.Errorf("parseWebhookURL() = %q, %q, %v", id, token, err)
	}

	id, _, err = parseWebhookURL("https://discordapp.com/api/v10/webhooks/42/tok/")
	if err != nil || id != "42" {
		t.Errorf("versioned url: id = %q, err = %v", id, err)
	}

	for _, bad := range []string{"", "https://discord.com/api/webhooks/123", "https://example.com/hook"} {
		if _, _, err := parseWebhookURL(bad); err == nil {
			t.Errorf("parseWebhookURL(%q) succeeded, want error", bad)
		}
	}
}

func TestAlertEmbed(t *testing.T) {
	until := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	embed := alertEmbed(alerts.Alert{
		UserID:       "u1",
		FeedbackRef:  "fb-1",
		Title:        "Harassment detected",
		Message:      "detalle",
		Severity:     models.SeverityCritical,
		Action:       models.EnforcementTemporaryBan,
		WarningCount: 3,
		BanUntil:     &until,
	})

	if embed.Color != 0xFF0000 {
		t.Errorf("Color = %#x, want red for critical", embed.Color)
	}
	if len(embed.Fields) != 5 {
		t.Fatalf("Fields = %d, want 5", len(embed.Fields))
	}
	if !strings.Contains(embed.Fields[3].Value, "<t:") {
		t.Errorf("ban field = %q, want a Discord timestamp", embed.Fields[3].Value)
	}
	if !strings.Contains(embed.Footer.Text, "CRITICAL") {
		t.Errorf("Footer = %q", embed.Footer.Text)
	}

	if got := alertEmbed(alerts.Alert{Severity: models.SeverityHigh}); len(got.Fields) != 3 || got.Color != 0xFFA500 {
		t.Errorf("minimal embed = %+v", got)
	}
}
