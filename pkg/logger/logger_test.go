package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestNewLogger(t *testing.T) {
	// Create a new logger without webhooks
	l := NewLogger("", "")
	if l == nil {
		t.Fatal("Expected logger to be created, got nil")
	}
	l.SetOutput(&bytes.Buffer{})

	// Test that logger methods don't panic
	l.Info("Test info message", "TEST")
	l.Warn("Test warning message", "TEST")
	l.Debug("Test debug message", "TEST")
	l.System("Test system message", "TEST")
	l.Success("Test success message", "TEST")

	l.Close()
}

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelCritical, "CRITICAL"},
		{LevelError, "ERROR"},
		{LevelWarn, "WARN"},
		{LevelSuccess, "SUCCESS"},
		{LevelInfo, "INFO"},
		{LevelDebug, "DEBUG"},
		{LevelSystem, "SYSTEM"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.level.String(); got != tt.expected {
				t.Errorf("LogLevel.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestLogLevelDiscordColor(t *testing.T) {
	tests := []struct {
		level LogLevel
		color int
	}{
		{LevelCritical, 0xFF0000},
		{LevelError, 0xFF0000},
		{LevelWarn, 0xFFFF00},
		{LevelSuccess, 0x00FF00},
		{LevelInfo, 0x0000FF},
		{LevelDebug, 0x800080},
		{LevelSystem, 0x808080},
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			if got := tt.level.DiscordColor(); got != tt.color {
				t.Errorf("LogLevel.DiscordColor() = %v, want %v", got, tt.color)
			}
		})
	}
}

func TestLineFormatter(t *testing.T) {
	entry := &logrus.Entry{
		Time:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Level:   logrus.InfoLevel,
		Message: "hola",
		Data: logrus.Fields{
			levelField:  LevelSuccess,
			prefixField: "Pipeline",
		},
	}

	out, err := (&lineFormatter{colors: false}).Format(entry)
	if err != nil {
		t.Fatalf("Format() returned error: %v", err)
	}

	want := "[2026-01-02 03:04:05] [SUCCESS] [Pipeline]: hola\n"
	if string(out) != want {
		t.Errorf("Format() = %q, want %q", string(out), want)
	}

	colored, _ := (&lineFormatter{colors: true}).Format(entry)
	if !strings.Contains(string(colored), LevelSuccess.Color()) {
		t.Error("Expected colored output to contain the level color")
	}
}

func TestConsoleOutputUsesPrefix(t *testing.T) {
	l := NewLogger("", "")
	defer l.Close()

	var buf bytes.Buffer
	l.SetOutput(&buf)
	l.Warn("algo raro", "Engine")

	if !strings.Contains(buf.String(), "[Engine]: algo raro") {
		t.Errorf("console output = %q, want prefix and message", buf.String())
	}
}

func TestWebhookRouting(t *testing.T) {
	h := newWebhookHook("error-url", "logs-url")

	if got := h.webhookFor(LevelCritical); got != "error-url" {
		t.Errorf("webhookFor(Critical) = %v, want %v", got, "error-url")
	}
	if got := h.webhookFor(LevelError); got != "error-url" {
		t.Errorf("webhookFor(Error) = %v, want %v", got, "error-url")
	}
	if got := h.webhookFor(LevelInfo); got != "logs-url" {
		t.Errorf("webhookFor(Info) = %v, want %v", got, "logs-url")
	}
}

func TestLogFileCreation(t *testing.T) {
	// Clean up logs directory before test
	logsDir := filepath.Join(".", "logs")
	os.RemoveAll(logsDir)

	l := NewLogger("", "")
	defer l.Close()
	l.SetOutput(&bytes.Buffer{})

	// Check that logs directory was created
	if _, err := os.Stat(logsDir); os.IsNotExist(err) {
		t.Error("Expected logs directory to be created")
	}

	// Check that log files were created
	combinedLog := filepath.Join(logsDir, "combined.log")
	errorLog := filepath.Join(logsDir, "error.log")

	if _, err := os.Stat(combinedLog); os.IsNotExist(err) {
		t.Error("Expected combined.log to be created")
	}

	if _, err := os.Stat(errorLog); os.IsNotExist(err) {
		t.Error("Expected error.log to be created")
	}

	l.Error("fallo de prueba", "TEST")
	data, err := os.ReadFile(errorLog)
	if err != nil {
		t.Fatalf("reading error.log: %v", err)
	}
	if !strings.Contains(string(data), "fallo de prueba") {
		t.Error("Expected error.log to contain the error line")
	}
}

func TestGlobalLoggerInit(t *testing.T) {
	// Reset the global logger for this test
	logger = nil
	once = sync.Once{}

	l := Init("", "")
	if l == nil {
		t.Fatal("Expected Init to return a logger")
	}

	// Calling Init again should return the same logger
	l2 := Init("different", "different")
	if l != l2 {
		t.Error("Expected Init to return the same logger on subsequent calls")
	}

	// Get should return the same logger
	l3 := Get()
	if l != l3 {
		t.Error("Expected Get to return the same logger")
	}

	l.Close()
}
