package mqtt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PancyStudios/PancyFeedbackGo/pkg/alerts"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/logger"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/models"
	json "github.com/goccy/go-json"
)

// ModerateTopic is the request topic served by ServeModeration
const ModerateTopic = "moderate"

// DecisionEvent is published for every committed enforcement decision
type DecisionEvent struct {
	UserID          string                   `json:"userId"`
	Action          models.EnforcementAction `json:"action"`
	NewWarningCount int                      `json:"newWarningCount"`
	BanUntil        *time.Time               `json:"banUntil,omitempty"`
	NotifyAdmins    bool                     `json:"notifyAdmins"`
	Timestamp       time.Time                `json:"timestamp"`
}

// DecisionTopic is pancy/enforcement/<action>, lower-cased
func DecisionTopic(action models.EnforcementAction) string {
	return fmt.Sprintf("%s/enforcement/%s", topicPrefix, strings.ToLower(string(action)))
}

// AlertTopic is pancy/alerts/<severity>
func AlertTopic(severity models.Severity) string {
	return fmt.Sprintf("%s/alerts/%s", topicPrefix, severity)
}

func newDecisionEvent(userID string, d models.EnforcementDecision, now time.Time) DecisionEvent {
	return DecisionEvent{
		UserID:          userID,
		Action:          d.Action,
		NewWarningCount: d.NewWarningCount,
		BanUntil:        d.BanUntil,
		NotifyAdmins:    d.NotifyAdmins,
		Timestamp:       now,
	}
}

// PublishDecision implements enforcement.Publisher. Failures are logged.
func (mc *MqttCommunicator) PublishDecision(ctx context.Context, userID string, d models.EnforcementDecision) {
	if !mc.IsConnected() {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	topic := DecisionTopic(d.Action)
	if err := mc.publish(ctx, topic, qosAtLeastOne, newDecisionEvent(userID, d, time.Now())); err != nil {
		logger.Warn(fmt.Sprintf("No se pudo publicar la decisión en %s: %v", topic, err), "MQTT")
	}
}

// Name implements alerts.Sink
func (mc *MqttCommunicator) Name() string { return "mqtt" }

// Send implements alerts.Sink
func (mc *MqttCommunicator) Send(ctx context.Context, a alerts.Alert) error {
	if !mc.IsConnected() {
		return fmt.Errorf("mqtt: not connected")
	}
	return mc.publish(ctx, AlertTopic(a.Severity), qosAtLeastOne, a)
}

// Moderator runs the moderation pipeline
type Moderator interface {
	Moderate(ctx context.Context, text string) models.ModerationVerdict
}

// ServeModeration answers pancy/request/moderate with a ModerationVerdict
func (mc *MqttCommunicator) ServeModeration(m Moderator, timeout time.Duration) error {
	return mc.On(ModerateTopic, moderationHandler(m, timeout))
}

func moderationHandler(m Moderator, timeout time.Duration) RequestHandler {
	return func(ctx context.Context, payload map[string]interface{}) (interface{}, error) {
		text, ok := payload["text"].(string)
		if !ok {
			return nil, fmt.Errorf("payload.text must be a string")
		}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return m.Moderate(ctx, text), nil
	}
}

// RemoteModerate asks a running server to moderate text over MQTT
func (mc *MqttCommunicator) RemoteModerate(ctx context.Context, text string) (models.ModerationVerdict, error) {
	var verdict models.ModerationVerdict

	data, err := mc.Request(ctx, ModerateTopic, map[string]string{"text": text})
	if err != nil {
		return verdict, err
	}
	if err := json.Unmarshal(data, &verdict); err != nil {
		return verdict, fmt.Errorf("decoding verdict: %w", err)
	}
	return verdict, nil
}
