package errors

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func TestTransientError(t *testing.T) {
	err := fmt.Errorf("moderating: %w", &TransientError{Provider: "providerA", Timeout: true, Err: context.DeadlineExceeded})

	if !IsTransient(err) {
		t.Fatal("IsTransient() = false, want true for wrapped TransientError")
	}

	if !Is(err, context.DeadlineExceeded) {
		t.Error("Expected TransientError to unwrap to its cause")
	}

	var te *TransientError
	if !As(err, &te) || !te.Timeout || te.Provider != "providerA" {
		t.Errorf("As() = %+v, want timeout error for providerA", te)
	}

	if IsTransient(ErrAdapterUnavailable) {
		t.Error("ErrAdapterUnavailable must not be treated as transient")
	}
}

func TestSentinelWrapping(t *testing.T) {
	err := fmt.Errorf("saving user u1: %w", ErrConflict)
	if !Is(err, ErrConflict) {
		t.Error("Expected wrapped ErrConflict to match")
	}
	if Is(err, ErrValidation) {
		t.Error("ErrConflict must not match ErrValidation")
	}
}

func TestRecoverMiddleware(t *testing.T) {
	handler = nil

	func() {
		defer RecoverMiddleware()()
		panic("boom")
	}()
	// Reaching this point means the panic was recovered
}

func TestHandlePanicCountsErrors(t *testing.T) {
	h := &ErrorHandler{stopChan: make(chan struct{})}
	h.HandlePanic("boom")
	h.HandlePanic("boom again")

	if got := h.Count(); got != 2 {
		t.Errorf("Count() = %v, want %v", got, 2)
	}
}

func TestShutdownOnErrorBurst(t *testing.T) {
	var shutdownCalled, exitCode int32
	exited := make(chan struct{})

	h := &ErrorHandler{
		stopChan:      make(chan struct{}),
		shutdownFunc:  func() { atomic.StoreInt32(&shutdownCalled, 1) },
		exitFunc:      func(code int) { atomic.StoreInt32(&exitCode, int32(code)); close(exited) },
		maxErrors:     2,
		resetInterval: time.Hour,
		checkInterval: 10 * time.Millisecond,
	}
	h.start()
	defer h.Stop()

	for i := 0; i < 3; i++ {
		h.IncrementError()
	}

	select {
	case <-exited:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected error burst to trigger shutdown")
	}

	if atomic.LoadInt32(&shutdownCalled) != 1 {
		t.Error("Expected shutdown hook to run")
	}
	if atomic.LoadInt32(&exitCode) != 1 {
		t.Errorf("exit code = %v, want %v", exitCode, 1)
	}
}

func TestTrackReportsIncidentBursts(t *testing.T) {
	reports := make(chan ReportErrorOptions, 4)
	h := &ErrorHandler{
		stopChan:          make(chan struct{}),
		incidentThreshold: 3,
		incidentWindow:    time.Minute,
		reportFunc:        func(r ReportErrorOptions) { reports <- r },
	}

	timeout := fmt.Errorf("moderating: %w", &TransientError{Provider: "providerA", Timeout: true, Err: context.DeadlineExceeded})
	for i := 0; i < 5; i++ {
		h.Track(timeout)
	}
	h.Track(fmt.Errorf("recording violation for u1: %w", ErrConflict))
	h.Track(ErrValidation)
	h.Track(nil)

	if got := h.Incidents("classifier_timeout:providerA"); got != 5 {
		t.Errorf("Incidents(timeout) = %v, want %v", got, 5)
	}
	if got := h.Incidents("enforcement_conflict"); got != 1 {
		t.Errorf("Incidents(conflict) = %v, want %v", got, 1)
	}

	select {
	case r := <-reports:
		if r.Error != "classifier_timeout:providerA" {
			t.Errorf("report kind = %v, want classifier_timeout:providerA", r.Error)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected a report once the threshold was reached")
	}
	select {
	case r := <-reports:
		t.Errorf("unexpected second report %+v in the same window", r)
	case <-time.After(50 * time.Millisecond):
	}

	h.resetIncidents()
	if got := h.Incidents("classifier_timeout:providerA"); got != 0 {
		t.Errorf("Incidents() after reset = %v, want 0", got)
	}
	for i := 0; i < 3; i++ {
		h.Track(timeout)
	}
	select {
	case <-reports:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected a new report in the next window")
	}
}

func TestIncidentKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"timeout", &TransientError{Provider: "providerB", Timeout: true}, "classifier_timeout:providerB"},
		{"failure", fmt.Errorf("wrap: %w", &TransientError{Provider: "providerA"}), "classifier_failure:providerA"},
		{"conflict", fmt.Errorf("saving: %w", ErrConflict), "enforcement_conflict"},
		{"untracked", ErrNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := incidentKind(tt.err); got != tt.want {
				t.Errorf("incidentKind() = %q, want %q", got, tt.want)
			}
		})
	}
}
