// Package mqtt provides MQTT communication for the feedback service.
// It publishes enforcement events and admin alerts, and serves
// request/response calls such as remote moderation.
package mqtt

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PancyStudios/PancyFeedbackGo/pkg/errors"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/logger"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	topicPrefix   = "pancy"
	requestRoot   = topicPrefix + "/request/"
	responseRoot  = topicPrefix + "/response/"
	qosAtMostOnce = 0
	qosAtLeastOne = 1

	responseTimeout = 5 * time.Second
)

// MqttRequest represents an MQTT request message
type MqttRequest struct {
	CorrelationID string      `json:"correlationId"`
	Payload       interface{} `json:"payload,omitempty"`
}

// MqttResponse represents an MQTT response message
type MqttResponse struct {
	CorrelationID string      `json:"correlationId"`
	Data          interface{} `json:"data"`
	Error         string      `json:"error,omitempty"`
}

// rawResponse is MqttResponse as seen by the requester
type rawResponse struct {
	CorrelationID string          `json:"correlationId"`
	Data          json.RawMessage `json:"data"`
	Error         string          `json:"error,omitempty"`
}

// MessageHandler receives every message on a subscribed pattern
type MessageHandler func(topic string, payload []byte)

type subscription struct {
	qos     byte
	handler MessageHandler
}

// MqttCommunicator handles MQTT communication
type MqttCommunicator struct {
	client   mqtt.Client
	clientID string

	mu            sync.RWMutex
	subscriptions map[string]subscription
}

var (
	communicator *MqttCommunicator
	once         sync.Once
)

// Init initializes the global MQTT communicator
func Init(host, port, username, password, clientID string) *MqttCommunicator {
	once.Do(func() {
		communicator = NewMqttCommunicator(host, port, username, password, clientID)
	})
	return communicator
}

// Get returns the global MQTT communicator
func Get() *MqttCommunicator {
	return communicator
}

// NewMqttCommunicator creates a communicator and starts connecting. Connection
// failures are retried in the background.
func NewMqttCommunicator(host, port, username, password, clientID string) *MqttCommunicator {
	mc := &MqttCommunicator{
		clientID:      clientID,
		subscriptions: make(map[string]subscription),
	}

	uniqueID := fmt.Sprintf("%s_%s", clientID, uuid.New().String())

	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%s", host, port)).
		SetClientID(uniqueID).
		SetUsername(username).
		SetPassword(password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(false).
		SetDefaultPublishHandler(func(c mqtt.Client, msg mqtt.Message) {
			mc.dispatch(msg.Topic(), msg.Payload())
		}).
		SetOnConnectHandler(func(c mqtt.Client) {
			logger.Success(fmt.Sprintf("Conectado al broker MQTT como %s", clientID), "MQTT")
			mc.resubscribe()
		}).
		SetConnectionLostHandler(func(c mqtt.Client, err error) {
			logger.Error(fmt.Sprintf("Conexión MQTT perdida: %v", err), "MQTT")
		})

	mc.client = mqtt.NewClient(opts)

	token := mc.client.Connect()
	if !token.WaitTimeout(10*time.Second) || token.Error() != nil {
		logger.Error(fmt.Sprintf("Error de conexión MQTT: %v", token.Error()), "MQTT")
	}

	return mc
}

// Destroy closes the MQTT connection
func (mc *MqttCommunicator) Destroy() {
	if mc.client != nil && mc.client.IsConnected() {
		mc.client.Disconnect(250)
		logger.System("Conexión MQTT cerrada exitosamente.", "MQTT")
	} else {
		logger.Warn("El cliente MQTT no estaba conectado, no se necesita cerrar.", "MQTT")
	}
}

// IsConnected returns true if connected to the broker
func (mc *MqttCommunicator) IsConnected() bool {
	return mc.client != nil && mc.client.IsConnected()
}

// Publish sends a JSON message to a topic
func (mc *MqttCommunicator) Publish(topic string, payload interface{}) error {
	return mc.publish(context.Background(), topic, qosAtMostOnce, payload)
}

func (mc *MqttCommunicator) publish(ctx context.Context, topic string, qos byte, payload interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	token := mc.client.Publish(topic, qos, false, jsonData)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Request publishes payload on pancy/request/<topic> and waits for the
// matching response. The returned data is left undecoded.
func (mc *MqttCommunicator) Request(ctx context.Context, topic string, payload interface{}) (json.RawMessage, error) {
	correlationID := uuid.New().String()
	requestTopic := requestRoot + topic
	responseTopic := fmt.Sprintf("%s%s/%s", responseRoot, topic, correlationID)

	responseChan := make(chan rawResponse, 1)

	token := mc.client.Subscribe(responseTopic, qosAtLeastOne, func(c mqtt.Client, msg mqtt.Message) {
		var response rawResponse
		if err := json.Unmarshal(msg.Payload(), &response); err != nil {
			logger.Warn(fmt.Sprintf("Respuesta MQTT inválida en %s: %v", msg.Topic(), err), "MQTT")
			return
		}
		if response.CorrelationID != correlationID {
			return
		}
		select {
		case responseChan <- response:
		default:
		}
	})
	if err := waitToken(ctx, token); err != nil {
		return nil, err
	}
	defer mc.client.Unsubscribe(responseTopic)

	request := MqttRequest{
		CorrelationID: correlationID,
		Payload:       payload,
	}
	if err := mc.publish(ctx, requestTopic, qosAtLeastOne, request); err != nil {
		return nil, err
	}

	select {
	case response := <-responseChan:
		if response.Error != "" {
			return nil, fmt.Errorf("%s", response.Error)
		}
		return response.Data, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("la petición a '%s' ha expirado: %w", topic, ctx.Err())
	}
}

// RequestHandler is a function type for handling MQTT requests
type RequestHandler func(ctx context.Context, payload map[string]interface{}) (interface{}, error)

// replyFunc publishes one response
type replyFunc func(ctx context.Context, topic string, response MqttResponse) error

// On serves requests sent to pancy/request/<requestTopic>
func (mc *MqttCommunicator) On(requestTopic string, callback RequestHandler) error {
	return mc.Subscribe(requestRoot+requestTopic, serveRequests(callback, func(ctx context.Context, topic string, response MqttResponse) error {
		return mc.publish(ctx, topic, qosAtLeastOne, response)
	}))
}

// serveRequests returns a message handler that answers each request on its
// own goroutine. paho callbacks must not block, so the handler itself
// returns immediately.
func serveRequests(callback RequestHandler, reply replyFunc) MessageHandler {
	return func(topic string, raw []byte) {
		go func() {
			defer errors.RecoverMiddleware()()

			response, ok := handleRequest(topic, raw, callback)
			if !ok {
				return
			}

			responseTopic := fmt.Sprintf("%s%s/%s", responseRoot, strings.TrimPrefix(topic, requestRoot), response.CorrelationID)
			ctx, cancel := context.WithTimeout(context.Background(), responseTimeout)
			defer cancel()

			if err := reply(ctx, responseTopic, response); err != nil {
				logger.Error(fmt.Sprintf("Error enviando respuesta MQTT a %s: %v", responseTopic, err), "MQTT")
			}
		}()
	}
}

// handleRequest decodes one request and runs callback on it
func handleRequest(topic string, raw []byte, callback RequestHandler) (MqttResponse, bool) {
	var request MqttRequest
	if err := json.Unmarshal(raw, &request); err != nil {
		logger.Error(fmt.Sprintf("Error parsing MQTT request: %v", err), "MQTT")
		return MqttResponse{}, false
	}
	if request.CorrelationID == "" {
		logger.Warn(fmt.Sprintf("Petición MQTT sin correlationId en %s", topic), "MQTT")
		return MqttResponse{}, false
	}

	payloadMap := make(map[string]interface{})
	if pm, ok := request.Payload.(map[string]interface{}); ok {
		payloadMap = pm
	}
	payloadMap["_topic"] = strings.TrimPrefix(topic, requestRoot)

	data, err := callback(context.Background(), payloadMap)
	if err != nil {
		return MqttResponse{CorrelationID: request.CorrelationID, Error: err.Error()}, true
	}
	return MqttResponse{CorrelationID: request.CorrelationID, Data: data}, true
}

// Subscribe subscribes to a topic pattern. Subscriptions are restored
// after every reconnect.
func (mc *MqttCommunicator) Subscribe(pattern string, handler MessageHandler) error {
	mc.mu.Lock()
	mc.subscriptions[pattern] = subscription{qos: qosAtLeastOne, handler: handler}
	mc.mu.Unlock()

	token := mc.client.Subscribe(pattern, qosAtLeastOne, func(c mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	token.Wait()
	return token.Error()
}

// Unsubscribe unsubscribes from a topic
func (mc *MqttCommunicator) Unsubscribe(pattern string) error {
	mc.mu.Lock()
	delete(mc.subscriptions, pattern)
	mc.mu.Unlock()

	token := mc.client.Unsubscribe(pattern)
	token.Wait()
	return token.Error()
}

func (mc *MqttCommunicator) resubscribe() {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	for pattern, sub := range mc.subscriptions {
		handler := sub.handler
		mc.client.Subscribe(pattern, sub.qos, func(c mqtt.Client, msg mqtt.Message) {
			handler(msg.Topic(), msg.Payload())
		})
	}
}

// dispatch routes messages that arrived without a per-subscription
// callback, as happens for queued messages delivered right after reconnect
func (mc *MqttCommunicator) dispatch(topic string, payload []byte) {
	mc.mu.RLock()
	var matched []MessageHandler
	for pattern, sub := range mc.subscriptions {
		if topicMatch(pattern, topic) {
			matched = append(matched, sub.handler)
		}
	}
	mc.mu.RUnlock()

	if len(matched) == 0 {
		logger.Debug(fmt.Sprintf("Mensaje MQTT sin suscriptor: %s", topic), "MQTT")
		return
	}
	for _, h := range matched {
		h(topic, payload)
	}
}

func waitToken(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// topicMatch checks if a received topic matches a pattern (with wildcards)
// '+' matches exactly one topic level
// '#' matches zero or more topic levels and must be the last character
func topicMatch(pattern, topic string) bool {
	patternParts := strings.Split(pattern, "/")
	topicParts := strings.Split(topic, "/")

	patternLen := len(patternParts)
	topicLen := len(topicParts)

	for i := 0; i < patternLen; i++ {
		if patternParts[i] == "#" {
			return true
		}

		if i >= topicLen {
			return false
		}

		if patternParts[i] == "+" {
			continue
		}

		if patternParts[i] != topicParts[i] {
			return false
		}
	}

	return patternLen == topicLen
}
