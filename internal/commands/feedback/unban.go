package feedback

import (
	"context"
	"fmt"

	"github.com/PancyStudios/PancyFeedbackGo/pkg/discord"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/errors"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/logger"
	"github.com/bwmarrin/discordgo"
)

// createUnbanCommand creates the /feedback unban subcommand
func createUnbanCommand(enforcer Enforcer) *discord.Command {
	return discord.NewCommand(
		"unban",
		"Levanta la suspensión de un usuario",
		"feedback",
		func(ctx *discord.CommandContext) error {
			return unbanHandler(ctx, enforcer)
		},
	).WithOptions(userIDOption()).
		WithUserPermissions(discordgo.PermissionManageGuild).
		InAdminGuild()
}

func unbanHandler(ctx *discord.CommandContext, enforcer Enforcer) error {
	userID := ctx.GetStringOption("usuario")
	adminID := "discord:" + ctx.User().ID

	if err := ctx.DeferEphemeral(); err != nil {
		return err
	}

	go func() {
		defer errors.RecoverMiddleware()()

		c, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		ctx.EditReply(unbanReply(userID, enforcer.Unban(c, userID, adminID)))
	}()

	return nil
}

func unbanReply(userID string, err error) string {
	switch {
	case err == nil:
		logger.Info(fmt.Sprintf("Suspensión de %s levantada desde Discord", userID), "CMD-Unban")
		return fmt.Sprintf("✅ El usuario `%s` ya puede volver a enviar feedback.", userID)
	case errors.Is(err, errors.ErrUserNotFound):
		return fmt.Sprintf("❌ No existe el usuario `%s`.", userID)
	case errors.Is(err, errors.ErrConflict):
		return "⚠️ El usuario se está actualizando en este momento, inténtalo de nuevo."
	default:
		logger.Error(fmt.Sprintf("Error levantando suspensión de %s: %v", userID, err), "CMD-Unban")
		return "❌ Error al actualizar el usuario."
	}
}
