package moderation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PancyStudios/PancyFeedbackGo/pkg/errors"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/logger"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/models"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/moderation/classifier"
)

// Reasons returned when nothing flagged the text
const (
	ReasonEmpty         = "empty"
	ReasonRuleBasedOnly = "rule-based only"
	ReasonClean         = "clean"
	ReasonCancelled     = "cancelled"
)

// Pipeline runs the local filter and at most two classifier calls per text.
// The secondary adapter only runs when the primary fails.
type Pipeline struct {
	filter   *Filter
	adapters []classifier.Adapter
	now      func() time.Time
}

// NewPipeline creates a pipeline. adapters are in preference order (Provider A first).
func NewPipeline(filter *Filter, adapters ...classifier.Adapter) *Pipeline {
	if filter == nil {
		filter = NewFilter()
	}
	return &Pipeline{filter: filter, adapters: adapters, now: time.Now}
}

// Filter returns the local filter in use
func (p *Pipeline) Filter() *Filter {
	return p.filter
}

// Available lists the providers that have credentials, in preference order
func (p *Pipeline) Available() []models.Provider {
	var out []models.Provider
	for _, a := range p.adapters {
		if a != nil && a.Available() {
			out = append(out, a.Name())
		}
	}
	return out
}

// selectAdapters picks the primary and the optional secondary among available adapters
func (p *Pipeline) selectAdapters() (primary, secondary classifier.Adapter) {
	for _, a := range p.adapters {
		if a == nil || !a.Available() {
			continue
		}
		if primary == nil {
			primary = a
		} else if secondary == nil {
			secondary = a
			break
		}
	}
	return primary, secondary
}

// Moderate classifies text. It never returns an error: provider failures
// degrade to a clean verdict so submissions are not blocked.
func (p *Pipeline) Moderate(ctx context.Context, text string) models.ModerationVerdict {
	v := p.moderate(ctx, text)
	verdictCount.WithLabelValues(string(v.Provider), strconv.FormatBool(v.Flagged)).Inc()
	return v
}

func (p *Pipeline) moderate(ctx context.Context, text string) models.ModerationVerdict {
	if strings.TrimSpace(text) == "" {
		return p.result(false, ReasonEmpty, models.ProviderNone)
	}

	if res := p.filter.Check(text); res.Flagged {
		localRuleCount.WithLabelValues(string(res.Rule)).Inc()
		v := p.result(true, res.Reason, models.ProviderLocal)
		v.Rule = string(res.Rule)
		v.Details = res.Details
		return v
	}

	primary, secondary := p.selectAdapters()
	if primary == nil {
		return p.result(false, ReasonRuleBasedOnly, models.ProviderNone)
	}

	v, err := p.classify(ctx, primary, text)
	if err == nil {
		if v.Flagged {
			return *v
		}
		clean := p.result(false, ReasonClean, models.ProviderAll)
		clean.Scores = v.Scores
		return clean
	}

	if ctx.Err() != nil {
		logger.Debug(fmt.Sprintf("Moderación cancelada tras fallo de %s", primary.Name()), "Moderation")
		return p.result(false, ReasonCancelled, models.ProviderNone)
	}

	if secondary != nil {
		fallbackCount.Inc()
		logger.Warn(fmt.Sprintf("Clasificador %s falló, usando %s: %v", primary.Name(), secondary.Name(), err), "Moderation")
		if v, err := p.classify(ctx, secondary, text); err == nil && v.Flagged {
			return *v
		}
	}

	return p.result(false, ReasonClean, models.ProviderAll)
}

func (p *Pipeline) classify(ctx context.Context, a classifier.Adapter, text string) (*models.ModerationVerdict, error) {
	start := time.Now()
	v, err := a.Classify(ctx, text)
	classifierDuration.WithLabelValues(string(a.Name())).Observe(time.Since(start).Seconds())

	if err != nil {
		var te *errors.TransientError
		timeout := errors.As(err, &te) && te.Timeout
		classifierErrorCount.WithLabelValues(string(a.Name()), strconv.FormatBool(timeout)).Inc()
		errors.Track(err)
		logger.Warn(fmt.Sprintf("Error en clasificador %s: %v", a.Name(), err), "Moderation")
		return nil, err
	}
	if v == nil {
		err := &errors.TransientError{Provider: string(a.Name()), Err: errors.New("empty verdict")}
		errors.Track(err)
		return nil, err
	}
	if v.Timestamp.IsZero() {
		v.Timestamp = p.now()
	}
	return v, nil
}

func (p *Pipeline) result(flagged bool, reason string, provider models.Provider) models.ModerationVerdict {
	return models.ModerationVerdict{
		Flagged:   flagged,
		Reason:    reason,
		Provider:  provider,
		Timestamp: p.now(),
	}
}
