// Package feedback provides the /feedback admin commands. Each subcommand
// is in its own file.
package feedback

import (
	"context"
	"time"

	"github.com/PancyStudios/PancyFeedbackGo/pkg/discord"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/enforcement"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/models"
	"github.com/bwmarrin/discordgo"
)

const commandTimeout = 10 * time.Second

// Enforcer is the enforcement engine as seen by the commands
type Enforcer interface {
	Status(ctx context.Context, userID string) (enforcement.Status, error)
	History(ctx context.Context, userID string) ([]models.FlagEntry, error)
	Unban(ctx context.Context, userID, adminID string) error
}

// Moderator runs the moderation pipeline
type Moderator interface {
	Moderate(ctx context.Context, text string) models.ModerationVerdict
}

// Deps are the services the commands act on
type Deps struct {
	Enforcer  Enforcer
	Moderator Moderator
}

// RegisterFeedbackCommands registers /feedback with its subcommands in the admin guild
func RegisterFeedbackCommands(client *discord.ExtendedClient, deps Deps) {
	client.CommandHandler.RegisterCommandGroup(
		"feedback",
		"Moderación del feedback anónimo",
		createViolationsCommand(deps.Enforcer),
		createUnbanCommand(deps.Enforcer),
		createCheckCommand(deps.Moderator),
	)
}

func userIDOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "usuario",
		Description: "ID del usuario en el servicio de feedback",
		Required:    true,
	}
}

func footer() *discordgo.MessageEmbedFooter {
	return &discordgo.MessageEmbedFooter{Text: "💫 - Developed by PancyStudios"}
}
