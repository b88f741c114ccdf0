package feedback

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PancyStudios/PancyFeedbackGo/pkg/discord"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/enforcement"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/errors"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/logger"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/models"
	"github.com/bwmarrin/discordgo"
)

// historyLimit caps the entries shown; embeds max out at 4096 characters
const historyLimit = 10

// createViolationsCommand creates the /feedback violations subcommand
func createViolationsCommand(enforcer Enforcer) *discord.Command {
	return discord.NewCommand(
		"violations",
		"Muestra las advertencias y el historial de un usuario",
		"feedback",
		func(ctx *discord.CommandContext) error {
			return violationsHandler(ctx, enforcer)
		},
	).WithOptions(userIDOption()).
		WithUserPermissions(discordgo.PermissionManageGuild).
		InAdminGuild()
}

func violationsHandler(ctx *discord.CommandContext, enforcer Enforcer) error {
	userID := ctx.GetStringOption("usuario")
	if err := ctx.DeferEphemeral(); err != nil {
		return err
	}

	go func() {
		defer errors.RecoverMiddleware()()

		c, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		status, err := enforcer.Status(c, userID)
		if err != nil {
			if errors.Is(err, errors.ErrUserNotFound) {
				ctx.EditReply(fmt.Sprintf("❌ No existe el usuario `%s`.", userID))
				return
			}
			logger.Error(fmt.Sprintf("Error consultando estado de %s: %v", userID, err), "CMD-Violations")
			ctx.EditReply("❌ Error al consultar la base de datos.")
			return
		}

		history, err := enforcer.History(c, userID)
		if err != nil {
			logger.Error(fmt.Sprintf("Error consultando historial de %s: %v", userID, err), "CMD-Violations")
			ctx.EditReply("❌ Error al consultar la base de datos.")
			return
		}

		ctx.EditReplyEmbed(violationsEmbed(status, history, time.Now()))
	}()

	return nil
}

// violationsEmbed shows the most recent entries first
func violationsEmbed(status enforcement.Status, history []models.FlagEntry, now time.Time) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:  fmt.Sprintf("🔖 - Historial de %s", status.UserID),
		Color:  0x00FF00,
		Footer: footer(),
	}

	state := "🟢 Activo"
	if status.Banned {
		state = fmt.Sprintf("🔴 Suspendido hasta <t:%d:F>", status.BanUntil.Unix())
		embed.Color = 0xFF0000
	} else if status.WarningCount > 0 {
		embed.Color = 0xFFA500
	}

	var b strings.Builder
	fmt.Fprintf(&b, "> 💫 - **Estado:** %s\n", state)
	fmt.Fprintf(&b, "> ⚠️ - **Advertencias:** %d\n", status.WarningCount)
	fmt.Fprintf(&b, "> 📚 - **Infracciones registradas:** %d\n", status.Violations)
	fmt.Fprintf(&b, "> 🕒 - **Fecha de consulta:** <t:%d>\n\n", now.Unix())

	if len(history) == 0 {
		b.WriteString("No se han encontrado infracciones de este usuario.")
	}

	shown := 0
	for i := len(history) - 1; i >= 0 && shown < historyLimit; i-- {
		entry := history[i]
		fmt.Fprintf(&b, "> **%s** (%s) <t:%d:R>\n", entry.ViolationType, entry.ActionTaken, entry.Timestamp.Unix())
		if entry.FeedbackRef != "" {
			fmt.Fprintf(&b, "> Feedback: `%s`\n", entry.FeedbackRef)
		}
		b.WriteString("\n")
		shown++
	}
	if rest := len(history) - shown; rest > 0 {
		fmt.Fprintf(&b, "…y %d más.", rest)
	}

	embed.Description = b.String()
	return embed
}
