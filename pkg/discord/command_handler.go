package discord

import (
	"fmt"

	"github.com/PancyStudios/PancyFeedbackGo/pkg/logger"
	"github.com/bwmarrin/discordgo"
)

// CommandHandler manages command loading and registration
type CommandHandler struct {
	client             *ExtendedClient
	slashCommands      []*discordgo.ApplicationCommand
	adminGuildCommands []*discordgo.ApplicationCommand
}

// NewCommandHandler creates a new CommandHandler
func NewCommandHandler(client *ExtendedClient) *CommandHandler {
	return &CommandHandler{
		client:             client,
		slashCommands:      make([]*discordgo.ApplicationCommand, 0),
		adminGuildCommands: make([]*discordgo.ApplicationCommand, 0),
	}
}

// RegisterCommand adds a top-level command to the handler
func (ch *CommandHandler) RegisterCommand(cmd *Command) {
	ch.client.Commands.Set(cmd.Name, cmd)
	ch.add(cmd.ToApplicationCommand(), cmd.AdminGuildOnly)
	logger.Debug("Comando registrado: "+cmd.Name, "CommandHandler")
}

// RegisterCommandGroup registers /name with one subcommand per cmd. The
// group takes the strictest permissions of its subcommands and is scoped to
// the admin guild when any subcommand is.
func (ch *CommandHandler) RegisterCommandGroup(name, description string, subcommands ...*Command) *discordgo.ApplicationCommand {
	group := ch.BuildCommandGroup(name, description, subcommands...)

	adminOnly := false
	var perms int64
	for _, cmd := range subcommands {
		adminOnly = adminOnly || cmd.AdminGuildOnly
		perms |= cmd.UserPermissions
	}
	if perms != 0 {
		group.DefaultMemberPermissions = &perms
	}

	ch.add(group, adminOnly)
	logger.Debug(fmt.Sprintf("Grupo registrado: /%s (%d subcomandos)", name, len(subcommands)), "CommandHandler")
	return group
}

// BuildCommandGroup creates a command group with subcommands
func (ch *CommandHandler) BuildCommandGroup(name, description string, subcommands ...*Command) *discordgo.ApplicationCommand {
	options := make([]*discordgo.ApplicationCommandOption, 0, len(subcommands))

	for _, cmd := range subcommands {
		fullName := name + "." + cmd.Name
		ch.client.Commands.Set(fullName, cmd)

		opt := &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        cmd.Name,
			Description: cmd.Description,
			Options:     cmd.Options,
		}
		options = append(options, opt)
	}

	return &discordgo.ApplicationCommand{
		Name:        name,
		Description: description,
		Options:     options,
	}
}

func (ch *CommandHandler) add(cmd *discordgo.ApplicationCommand, adminGuild bool) {
	if adminGuild {
		ch.adminGuildCommands = append(ch.adminGuildCommands, cmd)
		return
	}
	ch.slashCommands = append(ch.slashCommands, cmd)
}

// RegisterCommands overwrites the remote command set with the local one,
// which also removes stale commands
func (ch *CommandHandler) RegisterCommands() {
	appID := ch.client.Session.State.User.ID

	logger.Info("🔄 Registrando comandos globales...", "CommandHandler")
	if _, err := ch.client.Session.ApplicationCommandBulkOverwrite(appID, "", ch.slashCommands); err != nil {
		logger.Error("Error registrando comandos globales: "+err.Error(), "CommandHandler")
	} else {
		logger.Success("✅ Comandos globales registrados.", "CommandHandler")
	}

	guildID := ch.client.AdminGuildID
	if len(ch.adminGuildCommands) == 0 {
		return
	}
	if guildID == "" {
		logger.Warn("Hay comandos de administración pero no se configuró DevGuildID", "CommandHandler")
		return
	}

	logger.Info("🔄 Registrando comandos de administración en el servidor "+guildID+"...", "CommandHandler")
	if _, err := ch.client.Session.ApplicationCommandBulkOverwrite(appID, guildID, ch.adminGuildCommands); err != nil {
		logger.Error("Error registrando comandos de administración: "+err.Error(), "CommandHandler")
		return
	}
	logger.Success("✅ Comandos de administración registrados.", "CommandHandler")
}
