// Package errors provides error handling and recovery mechanisms for the service.
// It implements an error counter with automatic shutdown on excessive errors,
// the error taxonomy shared by moderation and enforcement, and burst reports
// for degraded classifiers and contended enforcement writes.
package errors

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PancyStudios/PancyFeedbackGo/pkg/logger"
	json "github.com/goccy/go-json"
)

// ErrorHandler manages error counting and reporting
type ErrorHandler struct {
	errorCount    int32
	webhookURL    string
	stopChan      chan struct{}
	stopOnce      sync.Once
	shutdownFunc  func()
	exitFunc      func(code int)
	maxErrors     int32
	resetInterval time.Duration
	checkInterval time.Duration

	// Incident tracking: per-kind counts over incidentWindow, one report per kind per window
	incidentMu        sync.Mutex
	incidents         map[string]int
	reported          map[string]bool
	incidentThreshold int
	incidentWindow    time.Duration
	reportFunc        func(ReportErrorOptions)
}

// ReportErrorOptions contains options for reporting an error
type ReportErrorOptions struct {
	Error   string
	Message string
}

var (
	handler *ErrorHandler
	once    sync.Once
)

// Init initializes the global error handler
func Init(webhookURL string, shutdownFunc func()) *ErrorHandler {
	once.Do(func() {
		handler = NewErrorHandler(webhookURL, shutdownFunc)
	})
	return handler
}

// Get returns the global error handler instance
func Get() *ErrorHandler {
	return handler
}

// NewErrorHandler creates a new ErrorHandler instance
func NewErrorHandler(webhookURL string, shutdownFunc func()) *ErrorHandler {
	h := &ErrorHandler{
		errorCount:    0,
		webhookURL:    webhookURL,
		stopChan:      make(chan struct{}),
		shutdownFunc:  shutdownFunc,
		exitFunc:      os.Exit,
		maxErrors:     15,
		resetInterval: 5 * time.Second,
		checkInterval: 1 * time.Second,

		incidentThreshold: 10,
		incidentWindow:    time.Minute,
	}
	h.reportFunc = h.Report

	h.start()
	return h
}

// start begins the error monitoring goroutines
func (h *ErrorHandler) start() {
	// Error reset goroutine - resets error count every 5 seconds
	go func() {
		ticker := time.NewTicker(h.resetInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				atomic.StoreInt32(&h.errorCount, 0)
			case <-h.stopChan:
				return
			}
		}
	}()

	// Incident window goroutine
	if h.incidentWindow > 0 {
		go func() {
			ticker := time.NewTicker(h.incidentWindow)
			defer ticker.Stop()

			for {
				select {
				case <-ticker.C:
					h.resetIncidents()
				case <-h.stopChan:
					return
				}
			}
		}()
	}

	// Error check goroutine - checks for excessive errors
	go func() {
		ticker := time.NewTicker(h.checkInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if atomic.LoadInt32(&h.errorCount) > h.maxErrors {
					h.shutdown()
					return
				}
			case <-h.stopChan:
				return
			}
		}
	}()
}

// shutdown reports the error burst, runs the shutdown hook and exits
func (h *ErrorHandler) shutdown() {
	start := time.Now()
	logger.Warn("Se detectó un número demasiado alto de errores", "CRITICAL")
	logger.Warn("Apagando...", "CRITICAL")

	h.Report(ReportErrorOptions{
		Error:   "Critical Error",
		Message: "Número inusual de errores. Apagando...",
	})

	if h.shutdownFunc != nil {
		h.shutdownFunc()
	}

	elapsed := time.Since(start)
	logger.Warn(fmt.Sprintf("Finalizando proceso... Tiempo total: %v", elapsed), "CRITICAL")
	h.exitFunc(1)
}

// Stop stops the error monitoring goroutines
func (h *ErrorHandler) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopChan)
	})
}

// Count returns the errors seen in the current window
func (h *ErrorHandler) Count() int32 {
	return atomic.LoadInt32(&h.errorCount)
}

// IncrementError increments the error count
func (h *ErrorHandler) IncrementError() {
	count := atomic.AddInt32(&h.errorCount, 1)
	logger.Error(fmt.Sprintf("Error count: %d", count), "AntiCrash")
}

// HandlePanic handles a recovered panic
func (h *ErrorHandler) HandlePanic(recovered interface{}) {
	h.IncrementError()
	logger.Debug("Unhandled Panic/Catch", "AntiCrash")
	logger.Error(fmt.Sprintf("%v", recovered), "SYS")
}

// Report sends an error report to the Discord webhook
func (h *ErrorHandler) Report(data ReportErrorOptions) {
	if h.webhookURL == "" {
		return
	}

	embed := map[string]interface{}{
		"author": map[string]string{
			"name": fmt.Sprintf("Error %s", data.Error),
		},
		"description": data.Message,
		"color":       0xFF0000, // Red
		"footer": map[string]string{
			"text": "PancyFeedback Go",
		},
		"timestamp": time.Now().Format(time.RFC3339),
	}

	payload := map[string]interface{}{
		"embeds": []interface{}{embed},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		logger.Error(fmt.Sprintf("Failed to marshal error report: %v", err), "AntiCrash")
		return
	}

	req, err := http.NewRequest(http.MethodPost, h.webhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		logger.Error(fmt.Sprintf("Failed to create webhook request: %v", err), "AntiCrash")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		logger.Error(fmt.Sprintf("Failed to send error report: %v", err), "AntiCrash")
		return
	}
	defer resp.Body.Close()

	logger.Warn(fmt.Sprintf("Sent ErrorReport to Webhook, Status: %d", resp.StatusCode), "AntiCrash")
}

// incidentKind names the domain failure err represents, or "" when it is not tracked
func incidentKind(err error) string {
	var te *TransientError
	switch {
	case err == nil:
		return ""
	case stderrors.As(err, &te):
		if te.Timeout {
			return "classifier_timeout:" + te.Provider
		}
		return "classifier_failure:" + te.Provider
	case stderrors.Is(err, ErrConflict):
		return "enforcement_conflict"
	}
	return ""
}

// Track counts classifier transient errors and enforcement conflicts. The
// first time a kind reaches incidentThreshold within a window it is reported
// to the error webhook. Untracked errors are ignored.
func (h *ErrorHandler) Track(err error) {
	kind := incidentKind(err)
	if kind == "" {
		return
	}

	h.incidentMu.Lock()
	if h.incidents == nil {
		h.incidents = make(map[string]int)
		h.reported = make(map[string]bool)
	}
	h.incidents[kind]++
	count := h.incidents[kind]
	fire := h.incidentThreshold > 0 && count >= h.incidentThreshold && !h.reported[kind]
	if fire {
		h.reported[kind] = true
	}
	h.incidentMu.Unlock()

	if !fire {
		return
	}

	logger.Warn(fmt.Sprintf("Ráfaga de incidencias %s: %d en la ventana actual", kind, count), "AntiCrash")
	if h.reportFunc != nil {
		go h.reportFunc(ReportErrorOptions{
			Error:   kind,
			Message: fmt.Sprintf("%d incidencias de tipo %s en menos de %v. Último error: %v", count, kind, h.incidentWindow, err),
		})
	}
}

// Incidents returns the count of kind in the current window
func (h *ErrorHandler) Incidents(kind string) int {
	h.incidentMu.Lock()
	defer h.incidentMu.Unlock()
	return h.incidents[kind]
}

func (h *ErrorHandler) resetIncidents() {
	h.incidentMu.Lock()
	h.incidents = make(map[string]int)
	h.reported = make(map[string]bool)
	h.incidentMu.Unlock()
}

// Track records err on the global handler, if one was initialized
func Track(err error) {
	if handler != nil {
		handler.Track(err)
	}
}

// RecoverMiddleware returns a recovery function for use in deferred calls
func RecoverMiddleware() func() {
	return func() {
		if r := recover(); r != nil {
			if handler != nil {
				handler.HandlePanic(r)
			} else {
				logger.Error(fmt.Sprintf("Panic recovered (no handler): %v", r), "AntiCrash")
			}
		}
	}
}
