package logger

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

const timestampFormat = "2006-01-02 15:04:05"

// lineFormatter renders "[time] [LEVEL] [prefix]: message"
type lineFormatter struct {
	colors bool
}

// entryLevel recovers our level from the entry, falling back to the logrus one
func entryLevel(e *logrus.Entry) LogLevel {
	if level, ok := e.Data[levelField].(LogLevel); ok {
		return level
	}
	switch e.Level {
	case logrus.PanicLevel, logrus.FatalLevel:
		return LevelCritical
	case logrus.ErrorLevel:
		return LevelError
	case logrus.WarnLevel:
		return LevelWarn
	case logrus.DebugLevel, logrus.TraceLevel:
		return LevelDebug
	default:
		return LevelInfo
	}
}

func entryPrefix(e *logrus.Entry) string {
	if prefix, ok := e.Data[prefixField].(string); ok && prefix != "" {
		return prefix
	}
	return "App"
}

// Format implements logrus.Formatter
func (f *lineFormatter) Format(e *logrus.Entry) ([]byte, error) {
	level := entryLevel(e)
	levelText := level.String()
	if f.colors {
		levelText = level.Color() + levelText + colorReset
	}

	return []byte(fmt.Sprintf("[%s] [%s] [%s]: %s\n",
		e.Time.Format(timestampFormat),
		levelText,
		entryPrefix(e),
		e.Message,
	)), nil
}

// fileHook writes uncolored lines to a file for the given levels
type fileHook struct {
	file      *os.File
	levels    []logrus.Level
	formatter logrus.Formatter
	mu        sync.Mutex
}

func newFileHook(file *os.File, levels []logrus.Level) *fileHook {
	return &fileHook{
		file:      file,
		levels:    levels,
		formatter: &lineFormatter{colors: false},
	}
}

// Levels implements logrus.Hook
func (h *fileHook) Levels() []logrus.Level {
	return h.levels
}

// Fire implements logrus.Hook
func (h *fileHook) Fire(e *logrus.Entry) error {
	line, err := h.formatter.Format(e)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.file.Write(line)
	return err
}

// webhookHook mirrors log lines to Discord webhooks
type webhookHook struct {
	errorWebhookURL string
	logsWebhookURL  string
	client          *http.Client
}

func newWebhookHook(errorWebhook, logsWebhook string) *webhookHook {
	return &webhookHook{
		errorWebhookURL: errorWebhook,
		logsWebhookURL:  logsWebhook,
		client:          &http.Client{Timeout: 5 * time.Second},
	}
}

// Levels implements logrus.Hook
func (h *webhookHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire implements logrus.Hook. Delivery happens on its own goroutine.
func (h *webhookHook) Fire(e *logrus.Entry) error {
	level := entryLevel(e)
	url := h.webhookFor(level)
	if url == "" {
		return nil
	}

	go h.send(url, level, e.Message, entryPrefix(e))
	return nil
}

// webhookFor picks the error webhook for error levels and the logs webhook otherwise
func (h *webhookHook) webhookFor(level LogLevel) string {
	if level <= LevelError {
		return h.errorWebhookURL
	}
	return h.logsWebhookURL
}

func (h *webhookHook) send(url string, level LogLevel, message, prefix string) {
	embed := map[string]interface{}{
		"title":       fmt.Sprintf("[%s] %s", level.String(), prefix),
		"description": fmt.Sprintf("```%s```", message),
		"color":       level.DiscordColor(),
		"timestamp":   time.Now().Format(time.RFC3339),
		"footer": map[string]string{
			"text": "💫 Developed by PancyStudio | PancyFeedback Go",
		},
	}

	payload := map[string]interface{}{
		"embeds": []interface{}{embed},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return
	}
	defer resp.Body.Close()
}
