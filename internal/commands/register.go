// Package commands provides a registry for organizing bot commands.
// Commands are organized in subdirectories by category.
package commands

import (
	"github.com/PancyStudios/PancyFeedbackGo/internal/commands/feedback"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/discord"
)

// RegisterAll registers all commands with the Discord client
func RegisterAll(client *discord.ExtendedClient, deps feedback.Deps) {
	// Moderation admin commands (/feedback violations, /feedback unban, /feedback check)
	feedback.RegisterFeedbackCommands(client, deps)
}
