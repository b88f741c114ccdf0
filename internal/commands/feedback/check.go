package feedback

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/PancyStudios/PancyFeedbackGo/pkg/discord"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/errors"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/models"
	"github.com/bwmarrin/discordgo"
)

// createCheckCommand creates the /feedback check subcommand
func createCheckCommand(moderator Moderator) *discord.Command {
	return discord.NewCommand(
		"check",
		"Pasa un texto por el pipeline de moderación sin guardarlo",
		"feedback",
		func(ctx *discord.CommandContext) error {
			return checkHandler(ctx, moderator)
		},
	).WithOptions(&discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "texto",
		Description: "Texto a analizar",
		Required:    true,
		MaxLength:   2000,
	}).WithUserPermissions(discordgo.PermissionManageGuild).
		InAdminGuild()
}

func checkHandler(ctx *discord.CommandContext, moderator Moderator) error {
	text := ctx.GetStringOption("texto")
	if err := ctx.DeferEphemeral(); err != nil {
		return err
	}

	go func() {
		defer errors.RecoverMiddleware()()

		c, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		ctx.EditReplyEmbed(verdictEmbed(moderator.Moderate(c, text)))
	}()

	return nil
}

func verdictEmbed(v models.ModerationVerdict) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:  "✅ - Texto aceptado",
		Color:  0x00FF00,
		Footer: footer(),
	}
	if v.Flagged {
		embed.Title = "🚩 - Texto marcado"
		embed.Color = 0xFF0000
	}

	var b strings.Builder
	fmt.Fprintf(&b, "> **Motivo:** %s\n> **Proveedor:** %s\n", v.Reason, v.Provider)
	if v.Rule != "" {
		fmt.Fprintf(&b, "> **Regla:** %s\n", v.Rule)
	}
	if v.Details != "" {
		fmt.Fprintf(&b, "> **Detalle:** %s\n", v.Details)
	}

	if len(v.Scores) > 0 {
		names := make([]string, 0, len(v.Scores))
		for name := range v.Scores {
			names = append(names, name)
		}
		sort.Strings(names)

		b.WriteString("\n**Puntuaciones:**\n")
		for _, name := range names {
			fmt.Fprintf(&b, "`%s` %.2f\n", name, v.Scores[name])
		}
	}

	embed.Description = b.String()
	return embed
}
