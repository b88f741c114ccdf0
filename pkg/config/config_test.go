package config

import (
	"os"
	"reflect"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	// Set up test environment variables
	os.Setenv("PERSPECTIVE_API_KEY", "test-key")
	os.Setenv("PORT", "3001")
	os.Setenv("enviroment", "test")
	defer func() {
		os.Unsetenv("PERSPECTIVE_API_KEY")
		os.Unsetenv("PORT")
		os.Unsetenv("enviroment")
	}()

	// Reset global config
	resetForTesting()

	config, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if config.PerspectiveAPIKey != "test-key" {
		t.Errorf("PerspectiveAPIKey = %v, want %v", config.PerspectiveAPIKey, "test-key")
	}

	if config.Port != "3001" {
		t.Errorf("Port = %v, want %v", config.Port, "3001")
	}

	if config.Environment != "test" {
		t.Errorf("Environment = %v, want %v", config.Environment, "test")
	}
}

func TestGetEnv(t *testing.T) {
	os.Setenv("TEST_VAR", "test-value")
	defer os.Unsetenv("TEST_VAR")

	if got := getEnv("TEST_VAR", "default"); got != "test-value" {
		t.Errorf("getEnv() = %v, want %v", got, "test-value")
	}

	if got := getEnv("NON_EXISTENT_VAR", "default"); got != "default" {
		t.Errorf("getEnv() = %v, want %v", got, "default")
	}
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  int
	}{
		{"valid", "42", 42},
		{"padded", " 7 ", 7},
		{"empty", "", 5},
		{"garbage", "abc", 5},
		{"zero", "0", 5},
		{"negative", "-3", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Setenv("TEST_INT", tt.value)
			defer os.Unsetenv("TEST_INT")

			if got := getEnvInt("TEST_INT", 5); got != tt.want {
				t.Errorf("getEnvInt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvList(t *testing.T) {
	os.Setenv("TEST_LIST", "foo, bar,,  baz ")
	defer os.Unsetenv("TEST_LIST")

	want := []string{"foo", "bar", "baz"}
	if got := getEnvList("TEST_LIST"); !reflect.DeepEqual(got, want) {
		t.Errorf("getEnvList() = %v, want %v", got, want)
	}

	if got := getEnvList("NON_EXISTENT_LIST"); got != nil {
		t.Errorf("getEnvList() = %v, want nil", got)
	}
}

func TestIsProd(t *testing.T) {
	resetForTesting()
	os.Setenv("enviroment", "prod")
	config, _ := Load()

	if !config.IsProd() {
		t.Error("IsProd() should return true when environment is 'prod'")
	}

	resetForTesting()
	os.Setenv("enviroment", "dev")
	config, _ = Load()

	if config.IsProd() {
		t.Error("IsProd() should return false when environment is not 'prod'")
	}

	os.Unsetenv("enviroment")
}

func TestGet(t *testing.T) {
	resetForTesting()

	// Get should create a new config if none exists
	config := Get()
	if config == nil {
		t.Fatal("Get() returned nil")
	}

	// Get should return the same config on subsequent calls
	config2 := Get()
	if config != config2 {
		t.Error("Get() should return the same config on subsequent calls")
	}
}

func TestDefaultValues(t *testing.T) {
	// Clear all environment variables
	for _, key := range []string{
		"mongodbUrl", "dbName", "MQTT_Host", "MQTT_Port", "PORT", "enviroment",
		"CLASSIFIER_TIMEOUT_MS", "BAN_DURATION_HOURS", "WARNING_THRESHOLD",
		"SMTP_HOST", "RATE_LIMIT_PER_MINUTE",
	} {
		os.Unsetenv(key)
	}

	resetForTesting()
	config, _ := Load()

	if config.MongoDBURL != "mongodb://localhost:27017" {
		t.Errorf("MongoDBURL default = %v, want %v", config.MongoDBURL, "mongodb://localhost:27017")
	}

	if config.DBName != "PancyFeedback" {
		t.Errorf("DBName default = %v, want %v", config.DBName, "PancyFeedback")
	}

	if config.MQTTPort != "1883" {
		t.Errorf("MQTTPort default = %v, want %v", config.MQTTPort, "1883")
	}

	if config.Port != "3000" {
		t.Errorf("Port default = %v, want %v", config.Port, "3000")
	}

	if config.ClassifierTimeout != 2*time.Second {
		t.Errorf("ClassifierTimeout default = %v, want %v", config.ClassifierTimeout, 2*time.Second)
	}

	if config.BanDuration != 24*time.Hour {
		t.Errorf("BanDuration default = %v, want %v", config.BanDuration, 24*time.Hour)
	}

	if config.WarningThreshold != 3 {
		t.Errorf("WarningThreshold default = %v, want %v", config.WarningThreshold, 3)
	}

	if config.RateLimitPerMinute != 100 {
		t.Errorf("RateLimitPerMinute default = %v, want %v", config.RateLimitPerMinute, 100)
	}

	if config.HasSMTP() {
		t.Error("HasSMTP() should be false without SMTP_HOST")
	}
}
