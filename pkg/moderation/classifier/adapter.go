// Package classifier wraps the external text classifiers behind one Adapter
// interface. Each adapter makes exactly one HTTP call per Classify, bounded by
// its own timeout, and turns the provider's JSON into a ModerationVerdict.
package classifier

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/PancyStudios/PancyFeedbackGo/pkg/errors"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/models"
)

const (
	// Threshold above which a tracked attribute flags the text
	Threshold = 0.5
	// DefaultTimeout is used when an adapter is built without one
	DefaultTimeout = 2 * time.Second

	maxResponseBytes = 1 << 20
)

// Adapter is one external classifier
type Adapter interface {
	Name() models.Provider
	// Available is false when the adapter has no credentials. That never changes at runtime.
	Available() bool
	// Classify returns a verdict, ErrAdapterUnavailable, or a *errors.TransientError
	Classify(ctx context.Context, text string) (*models.ModerationVerdict, error)
}

// Transport is the generic POST the adapters use
type Transport interface {
	Post(ctx context.Context, url string, headers map[string]string, body []byte) ([]byte, error)
}

// HTTPTransport is a Transport over net/http
type HTTPTransport struct {
	Client *http.Client
}

// NewHTTPTransport creates a transport with its own client
func NewHTTPTransport() *HTTPTransport {
	return &HTTPTransport{Client: &http.Client{}}
}

// Post implements Transport
func (t *HTTPTransport) Post(ctx context.Context, url string, headers map[string]string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return data, nil
}

type postResult struct {
	body []byte
	err  error
}

// post runs one transport call under timeout. The select makes the deadline
// hold even when a Transport ignores its context.
func post(ctx context.Context, provider models.Provider, t Transport, timeout time.Duration, url string, headers map[string]string, body []byte) ([]byte, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan postResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- postResult{err: fmt.Errorf("transport panic: %v", r)}
			}
		}()
		data, err := t.Post(ctx, url, headers, body)
		done <- postResult{body: data, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, transient(ctx, provider, res.err)
		}
		return res.body, nil
	case <-ctx.Done():
		return nil, transient(ctx, provider, ctx.Err())
	}
}

func transient(ctx context.Context, provider models.Provider, err error) error {
	return &errors.TransientError{
		Provider: string(provider),
		Timeout:  errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded),
		Err:      err,
	}
}

// decodeError wraps a malformed provider response as a transient failure
func decodeError(provider models.Provider, format string, args ...any) error {
	return &errors.TransientError{Provider: string(provider), Err: fmt.Errorf(format, args...)}
}

// verdict builds the normalized result from per-attribute scores and the provider's own flag
func verdict(provider models.Provider, scores map[string]float64, providerFlag bool) *models.ModerationVerdict {
	top, topScore := "", -1.0
	for attr, score := range scores {
		if score > topScore || (score == topScore && attr < top) {
			top, topScore = attr, score
		}
	}

	v := &models.ModerationVerdict{
		Provider:  provider,
		Scores:    scores,
		Timestamp: time.Now(),
		Reason:    "clean",
	}

	switch {
	case topScore > Threshold:
		v.Flagged = true
		v.Reason = fmt.Sprintf("Flagged by %s: %s (%.2f)", provider, top, topScore)
	case providerFlag:
		v.Flagged = true
		v.Reason = fmt.Sprintf("Flagged by %s", provider)
	}
	return v
}
