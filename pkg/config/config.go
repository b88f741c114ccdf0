// Package config provides configuration management for the feedback service.
// It loads environment variables and makes them available throughout the application.
package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the service
type Config struct {
	// MongoDB
	MongoDBURL string
	DBName     string

	// MQTT
	MQTTHost     string
	MQTTPort     string
	MQTTUser     string
	MQTTPassword string

	// Web Server
	Port               string
	JWTSecret          string
	RateLimitPerMinute int
	AllowedHosts       string

	// Environment
	Environment string

	// Webhooks
	ErrorWebhook       string
	LogsWebhook        string
	LogsWebServerHook  string
	AdminAlertsWebhook string

	// Admin bot (optional)
	BotToken   string
	DevGuildID string

	// Classifiers
	PerspectiveAPIKey   string
	PerspectiveURL      string
	OpenAIAPIKey        string
	OpenAIModerationURL string
	ClassifierTimeout   time.Duration

	// Enforcement
	BanDuration      time.Duration
	WarningThreshold int
	BadWords         []string

	// SMTP
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
}

var (
	Version   = "Dev-Local"
	BuildTime = "Hoy"
)

// cfg holds the global configuration instance
var (
	cfg     *Config
	cfgOnce sync.Once
)

// resetForTesting resets the configuration for testing purposes.
// This function should only be called from test code.
func resetForTesting() {
	cfg = nil
	cfgOnce = sync.Once{}
}

// loadConfig performs the actual configuration loading
func loadConfig() {
	// Load .env file if it exists (ignoring error if it doesn't)
	_ = godotenv.Load()

	cfg = &Config{
		// MongoDB
		MongoDBURL: getEnv("mongodbUrl", "mongodb://localhost:27017"),
		DBName:     getEnv("dbName", "PancyFeedback"),

		// MQTT
		MQTTHost:     getEnv("MQTT_Host", "localhost"),
		MQTTPort:     getEnv("MQTT_Port", "1883"),
		MQTTUser:     getEnv("MQTT_User", ""),
		MQTTPassword: getEnv("MQTT_Password", ""),

		// Web Server
		Port:               getEnv("PORT", "3000"),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 100),
		AllowedHosts:       getEnv("ALLOWED_HOSTS", ""),

		// Environment
		Environment: getEnv("enviroment", "dev"),

		// Webhooks
		ErrorWebhook:       getEnv("errorWebhook", ""),
		LogsWebhook:        getEnv("logsWebhook", ""),
		LogsWebServerHook:  getEnv("logsWebServerWebhook", ""),
		AdminAlertsWebhook: getEnv("adminAlertsWebhook", ""),

		// Admin bot
		BotToken:   getEnv("botToken", ""),
		DevGuildID: getEnv("devGuildId", ""),

		// Classifiers
		PerspectiveAPIKey:   getEnv("PERSPECTIVE_API_KEY", ""),
		PerspectiveURL:      getEnv("PERSPECTIVE_URL", "https://commentanalyzer.googleapis.com/v1alpha1/comments:analyze"),
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		OpenAIModerationURL: getEnv("OPENAI_MODERATION_URL", "https://api.openai.com/v1/moderations"),
		ClassifierTimeout:   time.Duration(getEnvInt("CLASSIFIER_TIMEOUT_MS", 2000)) * time.Millisecond,

		// Enforcement
		BanDuration:      time.Duration(getEnvInt("BAN_DURATION_HOURS", 24)) * time.Hour,
		WarningThreshold: getEnvInt("WARNING_THRESHOLD", 3),
		BadWords:         getEnvList("MODERATION_BAD_WORDS"),

		// SMTP
		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", "no-reply@pancy.dev"),
	}
}

// Load initializes the configuration from environment variables
func Load() (*Config, error) {
	cfgOnce.Do(loadConfig)
	return cfg, nil
}

// Get returns the current configuration
func Get() *Config {
	// Use sync.Once to ensure thread-safe initialization if Load wasn't called
	cfgOnce.Do(loadConfig)
	return cfg
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets a positive integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}

// getEnvList splits a comma separated environment variable, dropping blanks
func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// IsProd returns true if the environment is production
func (c *Config) IsProd() bool {
	return c.Environment == "prod"
}

// HasSMTP reports whether outbound email is configured
func (c *Config) HasSMTP() bool {
	return c.SMTPHost != ""
}
