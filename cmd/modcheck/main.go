// Package main provides an operator tool to run text through the moderation
// pipeline and print the verdict as JSON.
//
// Usage:
//
//	go run ./cmd/modcheck [options]
//
// Options:
//
//	-text <s>       Text to moderate (reads stdin when empty)
//	-remote         Ask a running server over MQTT instead of moderating locally
//	-timeout <d>    Overall deadline (default 10s)
//	-local-only     Skip the external classifiers
//
// Exit status is 0 for accepted text, 2 for flagged text and 1 on errors.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/PancyStudios/PancyFeedbackGo/pkg/config"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/logger"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/models"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/moderation"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/moderation/classifier"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/mqtt"
	json "github.com/goccy/go-json"
)

func main() {
	text := flag.String("text", "", "Text to moderate (reads stdin when empty)")
	remote := flag.Bool("remote", false, "Moderate on a running server over MQTT")
	timeout := flag.Duration("timeout", 10*time.Second, "Overall deadline")
	localOnly := flag.Bool("local-only", false, "Skip the external classifiers")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Logs go to stderr so stdout stays valid JSON
	log := logger.Init("", "")
	log.SetOutput(os.Stderr)
	defer log.Close()

	input := *text
	if input == "" {
		input, err = readInput(os.Stdin)
		if err != nil {
			logger.Error(fmt.Sprintf("Error leyendo la entrada: %v", err), "ModCheck")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var verdict models.ModerationVerdict
	if *remote {
		verdict, err = moderateRemote(ctx, cfg, input)
		if err != nil {
			logger.Error(fmt.Sprintf("Error en la moderación remota: %v", err), "ModCheck")
			os.Exit(1)
		}
	} else {
		verdict = newPipeline(cfg, *localOnly).Moderate(ctx, input)
	}

	out, err := json.MarshalIndent(verdict, "", "  ")
	if err != nil {
		logger.Error(fmt.Sprintf("Error serializando el veredicto: %v", err), "ModCheck")
		os.Exit(1)
	}
	fmt.Println(string(out))

	if verdict.Flagged {
		os.Exit(2)
	}
}

// readInput reads all of r, keeping line breaks
func readInput(r io.Reader) (string, error) {
	var b strings.Builder
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(scanner.Text())
	}
	return b.String(), scanner.Err()
}

func newPipeline(cfg *config.Config, localOnly bool) *moderation.Pipeline {
	filter := moderation.NewFilter(cfg.BadWords...)
	if localOnly {
		return moderation.NewPipeline(filter)
	}

	transport := classifier.NewHTTPTransport()
	return moderation.NewPipeline(filter,
		classifier.NewPerspective(cfg.PerspectiveAPIKey, cfg.PerspectiveURL, cfg.ClassifierTimeout, transport),
		classifier.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModerationURL, cfg.ClassifierTimeout, transport),
	)
}

func moderateRemote(ctx context.Context, cfg *config.Config, text string) (models.ModerationVerdict, error) {
	mc := mqtt.NewMqttCommunicator(cfg.MQTTHost, cfg.MQTTPort, cfg.MQTTUser, cfg.MQTTPassword, "pancyfeedback_modcheck")
	defer mc.Destroy()

	if !mc.IsConnected() {
		return models.ModerationVerdict{}, fmt.Errorf("no se pudo conectar al broker %s:%s", cfg.MQTTHost, cfg.MQTTPort)
	}
	return mc.RemoteModerate(ctx, text)
}
