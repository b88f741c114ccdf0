// Package discord provides the optional admin bot and the Discord webhook
// alert sink. It wraps discordgo with a small slash-command framework.
package discord

import (
	"fmt"
	"sync"
	"time"

	"github.com/PancyStudios/PancyFeedbackGo/pkg/errors"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/logger"
	"github.com/bwmarrin/discordgo"
)

// discordgo.Logger is a function, not an interface
func init() {
	discordgo.Logger = func(msgL int, caller int, format string, a ...interface{}) {
		logger.Info(fmt.Sprintf(format, a...), "DiscordGo")
	}
}

// ExtendedClient wraps discordgo.Session with command handling
type ExtendedClient struct {
	Session        *discordgo.Session
	Commands       *CommandCollection
	CommandHandler *CommandHandler
	AdminGuildID   string
	StartTime      time.Time
	mu             sync.RWMutex
	isReady        bool
}

// CommandCollection holds registered commands
type CommandCollection struct {
	commands map[string]*Command
	mu       sync.RWMutex
}

// NewCommandCollection creates a new CommandCollection
func NewCommandCollection() *CommandCollection {
	return &CommandCollection{
		commands: make(map[string]*Command),
	}
}

// Set adds or updates a command
func (cc *CommandCollection) Set(name string, cmd *Command) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.commands[name] = cmd
}

// Get retrieves a command by name
func (cc *CommandCollection) Get(name string) (*Command, bool) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	cmd, ok := cc.commands[name]
	return cmd, ok
}

// Size returns the number of commands
func (cc *CommandCollection) Size() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.commands)
}

// NewClient creates a new ExtendedClient. Admin-only commands are
// registered in adminGuildID.
func NewClient(token, adminGuildID string) (*ExtendedClient, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds
	session.SyncEvents = false
	session.StateEnabled = true
	session.LogLevel = discordgo.LogWarning

	c := &ExtendedClient{
		Session:      session,
		Commands:     NewCommandCollection(),
		AdminGuildID: adminGuildID,
	}
	c.CommandHandler = NewCommandHandler(c)

	return c, nil
}

// Start opens the gateway connection. Commands are pushed to Discord once
// the session is ready.
func (c *ExtendedClient) Start() error {
	c.Session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		c.mu.Lock()
		c.isReady = true
		c.mu.Unlock()

		logger.Success("Bot conectado como: "+r.User.Username, "Client")
		if err := s.UpdateGameStatus(0, "🛡️ Moderando feedback"); err != nil {
			logger.Warn(fmt.Sprintf("Error estableciendo estado: %v", err), "Client")
		}

		c.CommandHandler.RegisterCommands()
	})

	c.Session.AddHandler(func(s *discordgo.Session, d *discordgo.Disconnect) {
		c.mu.Lock()
		c.isReady = false
		c.mu.Unlock()
		logger.Warn("Sesión de Discord desconectada", "Client")
	})

	c.Session.AddHandler(c.handleInteraction)

	c.StartTime = time.Now()

	return c.Session.Open()
}

// commandName builds the lookup key, "group.sub" for subcommands
func commandName(data discordgo.ApplicationCommandInteractionData) string {
	name := data.Name
	if len(data.Options) > 0 {
		opt := data.Options[0]
		if opt.Type == discordgo.ApplicationCommandOptionSubCommandGroup {
			if len(opt.Options) > 0 {
				name = data.Name + "." + opt.Name + "." + opt.Options[0].Name
			}
		} else if opt.Type == discordgo.ApplicationCommandOptionSubCommand {
			name = data.Name + "." + opt.Name
		}
	}
	return name
}

// handleInteraction handles incoming Discord interactions
func (c *ExtendedClient) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	defer errors.RecoverMiddleware()()

	name := commandName(i.ApplicationCommandData())
	cmd, ok := c.Commands.Get(name)
	if !ok {
		logger.Warn("Command not found: "+name, "Client")
		return
	}

	ctx := &CommandContext{
		Session:     s,
		Interaction: i,
		Client:      c,
	}

	var perms int64
	if i.Member != nil {
		perms = i.Member.Permissions
	}
	if !cmd.allowed(perms) {
		logger.Warn(fmt.Sprintf("Usuario %s sin permisos para /%s", ctx.User().ID, name), "Client")
		ctx.ReplyEphemeral("❌ No tienes permisos para usar este comando.")
		return
	}

	if err := cmd.Run(ctx); err != nil {
		logger.Error("Error executing command "+name+": "+err.Error(), "Client")
	}
}

// Stop stops the bot and closes the session
func (c *ExtendedClient) Stop() error {
	c.mu.Lock()
	c.isReady = false
	c.mu.Unlock()

	if c.Session != nil {
		return c.Session.Close()
	}
	return nil
}

// IsReady returns true if the bot is ready
func (c *ExtendedClient) IsReady() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isReady
}
