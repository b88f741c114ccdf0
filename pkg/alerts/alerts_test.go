package alerts

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/PancyStudios/PancyFeedbackGo/pkg/models"
)

type recordingSink struct {
	name string
	err  error
	mu   sync.Mutex
	got  []Alert
}

func (r *recordingSink) Name() string { return r.name }

func (r *recordingSink) Send(ctx context.Context, a Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, a)
	return r.err
}

func (r *recordingSink) alerts() []Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Alert(nil), r.got...)
}

func TestFanoutDeliversToEverySink(t *testing.T) {
	ok := &recordingSink{name: "ok"}
	failing := &recordingSink{name: "failing", err: fmt.Errorf("webhook down")}
	f := NewFanout(ok, failing)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f.Alert(ctx, Alert{UserID: "u1", Title: "Final warning", Severity: models.SeverityHigh})
	f.Wait()

	for _, s := range []*recordingSink{ok, failing} {
		got := s.alerts()
		if len(got) != 1 {
			t.Fatalf("%s received %d alerts, want 1", s.name, len(got))
		}
		if got[0].ID == "" || got[0].Timestamp.IsZero() {
			t.Errorf("%s alert missing id or timestamp: %+v", s.name, got[0])
		}
	}
	if ok.alerts()[0].ID != failing.alerts()[0].ID {
		t.Error("Expected every sink to receive the same alert id")
	}
}

func TestFanoutRecoversPanickingSink(t *testing.T) {
	rec := &recordingSink{name: "rec"}
	f := NewFanout(SinkFunc{SinkName: "panics", Fn: func(ctx context.Context, a Alert) error {
		panic("boom")
	}})
	f.Add(rec)
	f.Add(nil)

	f.Alert(context.Background(), Alert{UserID: "u1"})
	f.Wait()

	if len(rec.alerts()) != 1 {
		t.Errorf("received %d alerts, want 1", len(rec.alerts()))
	}
	if got := f.Sinks(); len(got) != 2 || got[0] != "panics" || got[1] != "rec" {
		t.Errorf("Sinks() = %v, want [panics rec]", got)
	}
}
