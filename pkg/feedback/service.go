// Package feedback accepts feedback submissions, runs them through moderation
// and hands confirmed violations to the enforcement engine.
package feedback

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PancyStudios/PancyFeedbackGo/pkg/errors"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/logger"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/models"
	"github.com/google/uuid"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Store persists feedback
type Store interface {
	SaveFeedback(ctx context.Context, fb *models.Feedback) error
	GetFeedback(ctx context.Context, id string) (*models.Feedback, error)
	ListFeedback(ctx context.Context, status models.FeedbackStatus, offset, limit int) ([]models.Feedback, int64, error)
	DeleteFeedback(ctx context.Context, id string) error
}

// Moderator classifies text
type Moderator interface {
	Moderate(ctx context.Context, text string) models.ModerationVerdict
}

// Enforcer applies violations and reports ban state
type Enforcer interface {
	RecordViolation(ctx context.Context, userID, violationType, feedbackRef string) (models.EnforcementDecision, error)
	IsBanned(ctx context.Context, userID string) (bool, *time.Time, error)
}

// SubmitInput is one submission. UserID is empty for anonymous feedback.
type SubmitInput struct {
	Content  string
	Category string
	UserID   string
}

// SubmitResult is what the submitter gets back
type SubmitResult struct {
	Feedback models.Feedback
	Decision *models.EnforcementDecision
}

// BannedError rejects a submission from a user whose ban is active
type BannedError struct {
	UserID   string
	BanUntil time.Time
}

func (e *BannedError) Error() string {
	return fmt.Sprintf("user %s is banned until %s", e.UserID, e.BanUntil.UTC().Format(time.RFC3339))
}

func (e *BannedError) Unwrap() error { return errors.ErrUserBanned }

// Service is the submission flow
type Service struct {
	store     Store
	moderator Moderator
	enforcer  Enforcer
	now       func() time.Time
}

// NewService creates the submission service. enforcer may be nil for anonymous-only setups.
func NewService(store Store, moderator Moderator, enforcer Enforcer) *Service {
	return &Service{store: store, moderator: moderator, enforcer: enforcer, now: time.Now}
}

// Submit validates, moderates and stores one piece of feedback. Enforcement
// failures are logged and never block an accepted submission.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (SubmitResult, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return SubmitResult{}, fmt.Errorf("feedback content is empty: %w", errors.ErrValidation)
	}

	if in.UserID != "" && s.enforcer != nil {
		banned, until, err := s.enforcer.IsBanned(ctx, in.UserID)
		if err != nil && !errors.Is(err, errors.ErrUserNotFound) {
			logger.Warn(fmt.Sprintf("No se pudo comprobar el baneo de %s: %v", in.UserID, err), "Feedback")
		}
		if banned {
			return SubmitResult{}, &BannedError{UserID: in.UserID, BanUntil: *until}
		}
	}

	verdict := s.moderator.Moderate(ctx, content)

	fb := models.Feedback{
		ID:         uuid.NewString(),
		Content:    content,
		Category:   strings.TrimSpace(in.Category),
		UserID:     in.UserID,
		Status:     models.FeedbackAccepted,
		Moderation: verdict,
		CreatedAt:  s.now(),
	}
	if verdict.Flagged {
		fb.Status = models.FeedbackFlagged
	}

	var decision *models.EnforcementDecision
	if verdict.Flagged && in.UserID != "" && s.enforcer != nil {
		d, err := s.enforcer.RecordViolation(ctx, in.UserID, violationType(verdict), fb.ID)
		if err != nil {
			logger.Warn(fmt.Sprintf("No se pudo registrar la infracción de %s: %v", in.UserID, err), "Feedback")
		} else {
			decision = &d
			fb.Enforcement = &d
		}
	}

	if err := s.store.SaveFeedback(context.WithoutCancel(ctx), &fb); err != nil {
		return SubmitResult{}, fmt.Errorf("saving feedback: %w", err)
	}

	return SubmitResult{Feedback: fb, Decision: decision}, nil
}

// violationType names the violation for the flag history
func violationType(v models.ModerationVerdict) string {
	if v.Rule != "" {
		return v.Rule
	}
	if v.Reason != "" {
		return v.Reason
	}
	return string(v.Provider)
}

// Get returns one feedback record
func (s *Service) Get(ctx context.Context, id string) (*models.Feedback, error) {
	return s.store.GetFeedback(ctx, id)
}

// List returns a page of feedback, newest first
func (s *Service) List(ctx context.Context, status models.FeedbackStatus, page, limit int) (models.FeedbackPage, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	items, total, err := s.store.ListFeedback(ctx, status, (page-1)*limit, limit)
	if err != nil {
		return models.FeedbackPage{}, fmt.Errorf("listing feedback: %w", err)
	}
	if items == nil {
		items = []models.Feedback{}
	}
	return models.FeedbackPage{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// Delete removes one feedback record
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.DeleteFeedback(ctx, id)
}
