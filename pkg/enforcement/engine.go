// Package enforcement turns confirmed violations into warnings and temporary
// bans. Each user's record moves through Clean -> Warned-1..N -> Banned, and a
// ban expires on its own because the state is always derived from banUntil.
package enforcement

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/PancyStudios/PancyFeedbackGo/pkg/alerts"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/errors"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/logger"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/models"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/notify"
	"github.com/puzpuzpuz/xsync/v4"
)

const (
	DefaultBanDuration      = 24 * time.Hour
	DefaultWarningThreshold = 3

	// saveAttempts is the first try plus one retry after a version conflict
	saveAttempts = 2
)

// UserStore loads and conditionally saves users
type UserStore interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	// SaveUser fails with ErrConflict when the stored version is not expectedVersion
	SaveUser(ctx context.Context, user *models.User, expectedVersion int64) error
}

// Notifier delivers user notifications
type Notifier interface {
	Dispatch(ctx context.Context, userID, templateKey string, vars map[string]string, sendEmail bool) bool
}

// Alerter delivers admin alerts
type Alerter interface {
	Alert(ctx context.Context, a alerts.Alert)
}

// Publisher receives every committed decision, e.g. for the event bus
type Publisher interface {
	PublishDecision(ctx context.Context, userID string, decision models.EnforcementDecision)
}

// Options tune the state machine
type Options struct {
	BanDuration      time.Duration
	WarningThreshold int
	Now              func() time.Time
}

// Engine applies violations and unbans to user records
type Engine struct {
	store     UserStore
	notifier  Notifier
	alerter   Alerter
	publisher Publisher

	locks       *xsync.Map[string, *sync.Mutex]
	banDuration time.Duration
	threshold   int
	now         func() time.Time
}

// NewEngine creates an engine. notifier and alerter may be nil.
func NewEngine(store UserStore, notifier Notifier, alerter Alerter, opts Options) *Engine {
	if opts.BanDuration <= 0 {
		opts.BanDuration = DefaultBanDuration
	}
	if opts.WarningThreshold <= 0 {
		opts.WarningThreshold = DefaultWarningThreshold
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		store:       store,
		notifier:    notifier,
		alerter:     alerter,
		locks:       xsync.NewMap[string, *sync.Mutex](),
		banDuration: opts.BanDuration,
		threshold:   opts.WarningThreshold,
		now:         opts.Now,
	}
}

// SetPublisher attaches a publisher for committed decisions
func (e *Engine) SetPublisher(p Publisher) {
	e.publisher = p
}

// Threshold returns the number of warnings before a ban
func (e *Engine) Threshold() int {
	return e.threshold
}

func (e *Engine) lockFor(userID string) *sync.Mutex {
	mu, _ := e.locks.LoadOrCompute(userID, func() (*sync.Mutex, bool) {
		return &sync.Mutex{}, false
	})
	return mu
}

// RecordViolation applies one confirmed violation to the user's record.
// The transition is committed with a compare-and-set on the user's version;
// a lost race is retried once against the fresh record. Once committed the
// effect stands even if ctx is cancelled afterwards.
func (e *Engine) RecordViolation(ctx context.Context, userID, violationType, feedbackRef string) (models.EnforcementDecision, error) {
	mu := e.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < saveAttempts; attempt++ {
		user, err := e.store.GetUser(ctx, userID)
		if err != nil {
			return models.EnforcementDecision{}, fmt.Errorf("loading violation record for %s: %w", userID, err)
		}

		expected := user.Version
		decision, changed := e.transition(user, violationType, feedbackRef)
		if !changed {
			decisionCount.WithLabelValues("already_banned").Inc()
			return decision, nil
		}

		err = e.store.SaveUser(ctx, user, expected)
		if err == nil {
			decisionCount.WithLabelValues(string(decision.Action)).Inc()
			e.afterViolation(context.WithoutCancel(ctx), user, decision, violationType, feedbackRef)
			return decision, nil
		}
		if !errors.Is(err, errors.ErrConflict) {
			return models.EnforcementDecision{}, fmt.Errorf("saving violation record for %s: %w", userID, err)
		}

		conflictCount.Inc()
		lastErr = err
	}

	logger.Warn(fmt.Sprintf("Conflicto persistente al registrar la infracción de %s: %v", userID, lastErr), "Enforcement")
	err := fmt.Errorf("recording violation for %s: %w", userID, errors.ErrConflict)
	errors.Track(err)
	return models.EnforcementDecision{}, err
}

// transition mutates user in place and reports whether anything changed
func (e *Engine) transition(user *models.User, violationType, feedbackRef string) (models.EnforcementDecision, bool) {
	now := e.now()
	v := &user.Violations

	if v.IsBanned(now) {
		banUntil := *v.BanUntil
		return models.EnforcementDecision{
			Action:          models.EnforcementNone,
			NewWarningCount: v.WarningCount,
			BanUntil:        &banUntil,
			AlreadyBanned:   true,
		}, false
	}

	v.WarningCount++
	v.FlagHistory = append(v.FlagHistory, models.FlagEntry{
		Reason:        violationReason(violationType),
		ViolationType: violationType,
		Timestamp:     now,
		ActionTaken:   models.ActionWarning,
		FeedbackRef:   feedbackRef,
	})

	user.Version++
	user.UpdatedAt = now

	if v.WarningCount <= e.threshold {
		return models.EnforcementDecision{
			Action:          models.EnforcementWarn,
			NewWarningCount: v.WarningCount,
			NotifyAdmins:    v.WarningCount == e.threshold,
		}, true
	}

	banUntil := now.Add(e.banDuration)
	v.BanUntil = &banUntil
	v.WarningCount = 0
	v.FlagHistory[len(v.FlagHistory)-1].ActionTaken = models.ActionTemporaryBan

	until := banUntil
	return models.EnforcementDecision{
		Action:          models.EnforcementTemporaryBan,
		NewWarningCount: 0,
		BanUntil:        &until,
		NotifyAdmins:    true,
	}, true
}

func violationReason(violationType string) string {
	if violationType == "" {
		return "Inappropriate content"
	}
	return violationType
}

// warningTemplate picks the template for the nth warning. Counts between the
// second and the last both use SECOND_WARNING when the threshold is raised.
func (e *Engine) warningTemplate(count int) string {
	switch {
	case count >= e.threshold:
		return notify.FinalWarning
	case count == 1:
		return notify.FirstWarning
	default:
		return notify.SecondWarning
	}
}

// afterViolation runs side effects once the transition is committed
func (e *Engine) afterViolation(ctx context.Context, user *models.User, d models.EnforcementDecision, violationType, feedbackRef string) {
	defer errors.RecoverMiddleware()()

	vars := map[string]string{
		"userId":       user.ID,
		"reason":       violationReason(violationType),
		"warningCount": strconv.Itoa(d.NewWarningCount),
		"threshold":    strconv.Itoa(e.threshold),
		"banHours":     strconv.Itoa(int(e.banDuration.Hours())),
		"action":       string(d.Action),
		"feedbackRef":  feedbackRef,
	}

	templateKey := notify.TemporaryBan
	if d.Action == models.EnforcementWarn {
		templateKey = e.warningTemplate(d.NewWarningCount)
	} else {
		vars["banUntil"] = d.BanUntil.UTC().Format(time.RFC1123)
	}

	logger.Info(fmt.Sprintf("Usuario %s: %s (advertencias: %d)", user.ID, d.Action, d.NewWarningCount), "Enforcement")

	if e.notifier != nil {
		e.notifier.Dispatch(ctx, user.ID, templateKey, vars, true)
	}

	if d.NotifyAdmins && e.alerter != nil {
		rendered, _ := notify.Render(notify.HarassmentDetected, vars)
		severity := models.SeverityHigh
		if d.Action == models.EnforcementTemporaryBan {
			severity = models.SeverityCritical
		}
		e.alerter.Alert(ctx, alerts.Alert{
			UserID:       user.ID,
			FeedbackRef:  feedbackRef,
			Title:        rendered.Title,
			Message:      rendered.Message,
			Severity:     severity,
			Action:       d.Action,
			WarningCount: user.Violations.WarningCount,
			BanUntil:     d.BanUntil,
		})
	}

	if e.publisher != nil {
		e.publisher.PublishDecision(ctx, user.ID, d)
	}
}

// Status is the derived enforcement state of a user
type Status struct {
	UserID       string     `json:"userId"`
	Banned       bool       `json:"banned"`
	BanUntil     *time.Time `json:"banUntil,omitempty"`
	WarningCount int        `json:"warningCount"`
	Violations   int        `json:"violations"`
}

// Status derives the current ban state. Ban expiry is never cached.
func (e *Engine) Status(ctx context.Context, userID string) (Status, error) {
	user, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return Status{}, err
	}

	v := user.Violations
	s := Status{
		UserID:       user.ID,
		Banned:       v.IsBanned(e.now()),
		WarningCount: v.WarningCount,
		Violations:   len(v.FlagHistory),
	}
	if s.Banned {
		until := *v.BanUntil
		s.BanUntil = &until
	}
	return s, nil
}

// IsBanned reports whether the user's ban is active right now
func (e *Engine) IsBanned(ctx context.Context, userID string) (bool, *time.Time, error) {
	s, err := e.Status(ctx, userID)
	if err != nil {
		return false, nil, err
	}
	return s.Banned, s.BanUntil, nil
}

// Unban clears banUntil whether or not it is still in the future and leaves
// warningCount untouched. Unbanning a user without banUntil changes nothing,
// so repeated calls are idempotent.
func (e *Engine) Unban(ctx context.Context, userID, adminID string) error {
	mu := e.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	for attempt := 0; attempt < saveAttempts; attempt++ {
		user, err := e.store.GetUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("loading user %s: %w", userID, err)
		}
		if user.Violations.BanUntil == nil {
			return nil
		}

		expected := user.Version
		now := e.now()
		user.Violations.BanUntil = nil
		user.LastUnbannedBy = adminID
		user.LastUnbannedAt = &now
		user.UpdatedAt = now
		user.Version++

		err = e.store.SaveUser(ctx, user, expected)
		if err == nil {
			unbanCount.Inc()
			logger.Info(fmt.Sprintf("Usuario %s desbaneado por %s", userID, adminID), "Enforcement")
			if e.notifier != nil {
				e.notifier.Dispatch(context.WithoutCancel(ctx), userID, notify.AccountUnbanned, map[string]string{"userId": userID}, true)
			}
			return nil
		}
		if !errors.Is(err, errors.ErrConflict) {
			return fmt.Errorf("saving user %s: %w", userID, err)
		}
		conflictCount.Inc()
	}

	logger.Warn(fmt.Sprintf("Conflicto persistente al desbanear a %s", userID), "Enforcement")
	err := fmt.Errorf("unbanning %s: %w", userID, errors.ErrConflict)
	errors.Track(err)
	return err
}

// History returns the user's flag history, oldest first
func (e *Engine) History(ctx context.Context, userID string) ([]models.FlagEntry, error) {
	user, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.Violations.FlagHistory, nil
}
