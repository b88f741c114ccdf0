// Package main is the entry point for the PancyFeedback Go service.
// It wires storage, moderation, enforcement and notifications, then serves
// the HTTP API until SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PancyStudios/PancyFeedbackGo/internal/commands"
	"github.com/PancyStudios/PancyFeedbackGo/internal/commands/feedback"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/alerts"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/config"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/database"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/discord"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/enforcement"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/errors"
	feedbacksvc "github.com/PancyStudios/PancyFeedbackGo/pkg/feedback"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/logger"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/models"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/moderation"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/moderation/classifier"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/mqtt"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/notify"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/web"
)

const shutdownTimeout = 15 * time.Second

// store is what both the Mongo and the in-memory backends provide
type store interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User, expectedVersion int64) error
	EnsureUser(ctx context.Context, id, email string) (*models.User, bool, error)
	feedbacksvc.Store
	notify.Store
}

// app holds everything that needs closing on shutdown
type app struct {
	db         *database.Database
	mqtt       *mqtt.MqttCommunicator
	bot        *discord.ExtendedClient
	server     *web.Server
	dispatcher *notify.Dispatcher
	fanout     *alerts.Fanout
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.Init(cfg.ErrorWebhook, cfg.LogsWebhook)
	defer log.Close()

	logger.System(fmt.Sprintf("Iniciando PancyFeedback Go %s (%s)...", config.Version, config.BuildTime), "Main")

	if cfg.JWTSecret == "" {
		logger.Critical("JWT_SECRET no está configurado; la API de administración no puede arrancar", "Main")
		os.Exit(1)
	}

	a := &app{}
	errors.Init(cfg.ErrorWebhook, func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.shutdown(ctx)
	})

	st := a.openStore(cfg)

	// Moderation
	transport := classifier.NewHTTPTransport()
	pipeline := moderation.NewPipeline(
		moderation.NewFilter(cfg.BadWords...),
		classifier.NewPerspective(cfg.PerspectiveAPIKey, cfg.PerspectiveURL, cfg.ClassifierTimeout, transport),
		classifier.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModerationURL, cfg.ClassifierTimeout, transport),
	)
	if len(pipeline.Available()) == 0 {
		logger.Warn("No hay clasificadores configurados, solo se aplicará el filtro local", "Main")
	} else {
		logger.Info(fmt.Sprintf("Clasificadores disponibles: %v", pipeline.Available()), "Main")
	}

	// Notifications
	var mailer notify.Mailer = notify.NopMailer{}
	if cfg.HasSMTP() {
		mailer = notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	} else {
		logger.Warn("SMTP no configurado, las notificaciones solo se guardarán en la aplicación", "Main")
	}
	a.dispatcher = notify.NewDispatcher(st, st, mailer)

	// Admin alerts
	hub := web.NewAlertHub(cfg.AllowedHosts)
	a.fanout = alerts.NewFanout(hub)
	if cfg.AdminAlertsWebhook != "" {
		sink, err := discord.NewWebhookSink(cfg.AdminAlertsWebhook)
		if err != nil {
			logger.Error(fmt.Sprintf("Webhook de alertas inválido: %v", err), "Main")
		} else {
			a.fanout.Add(sink)
		}
	}

	// Enforcement
	engine := enforcement.NewEngine(st, a.dispatcher, a.fanout, enforcement.Options{
		BanDuration:      cfg.BanDuration,
		WarningThreshold: cfg.WarningThreshold,
	})

	// MQTT
	mqttClientID := "pancyfeedback"
	if !cfg.IsProd() {
		mqttClientID = "pancyfeedback_canary"
	}
	a.mqtt = mqtt.Init(cfg.MQTTHost, cfg.MQTTPort, cfg.MQTTUser, cfg.MQTTPassword, mqttClientID)
	engine.SetPublisher(a.mqtt)
	a.fanout.Add(a.mqtt)
	if err := a.mqtt.ServeModeration(pipeline, cfg.ClassifierTimeout*2); err != nil {
		logger.Warn(fmt.Sprintf("La moderación remota se activará al conectar: %v", err), "Main")
	}

	logger.Info(fmt.Sprintf("Destinos de alertas: %v", a.fanout.Sinks()), "Main")

	// Optional admin bot
	var bot web.BotStatus
	if cfg.BotToken != "" {
		a.bot, err = discord.NewClient(cfg.BotToken, cfg.DevGuildID)
		if err != nil {
			logger.Error(fmt.Sprintf("Error creating Discord client: %v", err), "Main")
		} else {
			commands.RegisterAll(a.bot, feedback.Deps{Enforcer: engine, Moderator: pipeline})
			if err := a.bot.Start(); err != nil {
				logger.Error(fmt.Sprintf("Error starting Discord client: %v", err), "Main")
				a.bot = nil
			} else {
				bot = a.bot
			}
		}
	}

	// HTTP API
	a.server = web.NewServer(web.Options{
		WebhookURL:         cfg.LogsWebServerHook,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		AllowedHosts:       cfg.AllowedHosts,
	})
	api := &web.API{
		Feedback:      feedbacksvc.NewService(st, pipeline, engine),
		Enforcement:   engine,
		Notifications: a.dispatcher,
		Users:         st,
		Bot:           bot,
		Hub:           hub,
		Providers:     pipeline.Available,
		JWTSecret:     cfg.JWTSecret,
		StartedAt:     time.Now(),
	}
	if a.db != nil {
		api.Database = a.db
	}
	web.SetupAPIRoutes(a.server, api)
	a.server.StartAsync(cfg.Port)

	logger.Success("PancyFeedback Go iniciado correctamente!", "Main")

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	logger.System("Apagando PancyFeedback Go...", "Main")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.shutdown(ctx)
}

// openStore connects to MongoDB, or falls back to memory when it is unreachable
func (a *app) openStore(cfg *config.Config) store {
	db, err := database.Init(cfg.MongoDBURL, cfg.DBName)
	if err != nil {
		logger.Error(fmt.Sprintf("Error connecting to database: %v", err), "Main")
		logger.Warn("Usando almacenamiento en memoria; los datos se perderán al reiniciar", "Main")
		_ = db.Disconnect()
		return database.NewMemoryStore()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.EnsureIndexes(ctx); err != nil {
		logger.Warn(fmt.Sprintf("Error creando índices: %v", err), "Main")
	}

	a.db = db
	return database.NewMongoStore(db)
}

// shutdown stops intake first, then drains detached side effects
func (a *app) shutdown(ctx context.Context) {
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			logger.Warn(fmt.Sprintf("Error cerrando el servidor web: %v", err), "Main")
		}
	}
	if a.bot != nil {
		if err := a.bot.Stop(); err != nil {
			logger.Warn(fmt.Sprintf("Error cerrando el bot: %v", err), "Main")
		}
	}

	drained := make(chan struct{})
	go func() {
		if a.dispatcher != nil {
			a.dispatcher.Wait()
		}
		if a.fanout != nil {
			a.fanout.Wait()
		}
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		logger.Warn("Tiempo agotado esperando notificaciones pendientes", "Main")
	}

	if a.mqtt != nil {
		a.mqtt.Destroy()
	}
	if a.db != nil {
		if err := a.db.Disconnect(); err != nil {
			logger.Warn(fmt.Sprintf("Error cerrando la base de datos: %v", err), "Main")
		}
	}
}
