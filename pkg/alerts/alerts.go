// Package alerts fans admin-visible alerts out to every configured sink
// (Discord webhook, MQTT, live WebSocket dashboard).
package alerts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/PancyStudios/PancyFeedbackGo/pkg/errors"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/logger"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/models"
	"github.com/google/uuid"
)

const sendTimeout = 10 * time.Second

// Alert is an admin-facing notice about an enforcement result. Never persisted.
type Alert struct {
	ID           string                   `json:"id"`
	UserID       string                   `json:"userId"`
	FeedbackRef  string                   `json:"feedbackRef,omitempty"`
	Title        string                   `json:"title"`
	Message      string                   `json:"message"`
	Severity     models.Severity          `json:"severity"`
	Action       models.EnforcementAction `json:"action"`
	WarningCount int                      `json:"warningCount"`
	BanUntil     *time.Time               `json:"banUntil,omitempty"`
	Timestamp    time.Time                `json:"timestamp"`
}

// Sink delivers alerts to one channel
type Sink interface {
	Name() string
	Send(ctx context.Context, alert Alert) error
}

// SinkFunc adapts a function to Sink
type SinkFunc struct {
	SinkName string
	Fn       func(ctx context.Context, alert Alert) error
}

func (s SinkFunc) Name() string { return s.SinkName }

func (s SinkFunc) Send(ctx context.Context, alert Alert) error { return s.Fn(ctx, alert) }

// Fanout sends each alert to all sinks on detached goroutines.
// Delivery failures are logged only.
type Fanout struct {
	mu    sync.RWMutex
	sinks []Sink
	wg    sync.WaitGroup
}

// NewFanout creates a fan-out over the given sinks
func NewFanout(sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks}
}

// Add registers another sink
func (f *Fanout) Add(s Sink) {
	if s == nil {
		return
	}
	f.mu.Lock()
	f.sinks = append(f.sinks, s)
	f.mu.Unlock()
}

// Sinks returns the names of the registered sinks
func (f *Fanout) Sinks() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.sinks))
	for _, s := range f.sinks {
		names = append(names, s.Name())
	}
	return names
}

// Alert dispatches a to every sink and returns immediately
func (f *Fanout) Alert(ctx context.Context, a Alert) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}

	f.mu.RLock()
	sinks := append([]Sink(nil), f.sinks...)
	f.mu.RUnlock()

	ctx = context.WithoutCancel(ctx)
	for _, s := range sinks {
		f.wg.Add(1)
		go func(s Sink) {
			defer f.wg.Done()
			defer errors.RecoverMiddleware()()

			sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
			defer cancel()

			if err := s.Send(sendCtx, a); err != nil {
				logger.Warn(fmt.Sprintf("No se pudo enviar la alerta %s a %s: %v", a.ID, s.Name(), err), "Alerts")
			}
		}(s)
	}
}

// Wait blocks until all in-flight deliveries finish
func (f *Fanout) Wait() {
	f.wg.Wait()
}
