package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/PancyStudios/PancyFeedbackGo/pkg/errors"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/models"
	"github.com/puzpuzpuz/xsync/v4"
)

// MemoryStore keeps everything in process. Used by tests and when Mongo is
// unreachable at startup. Users are copied in and out so callers never share state.
type MemoryStore struct {
	users    *xsync.Map[string, *models.User]
	feedback *xsync.Map[string, *models.Feedback]

	notifMu       sync.RWMutex
	notifications []models.Notification
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    xsync.NewMap[string, *models.User](),
		feedback: xsync.NewMap[string, *models.Feedback](),
	}
}

// PutUser stores u as is, bypassing the version check
func (s *MemoryStore) PutUser(u *models.User) {
	s.users.Store(u.ID, u.Clone())
}

// GetUser loads a user by id
func (s *MemoryStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	u, ok := s.users.Load(id)
	if !ok {
		return nil, errors.ErrUserNotFound
	}
	return u.Clone(), nil
}

// SaveUser replaces the user only if the stored version equals expectedVersion
func (s *MemoryStore) SaveUser(ctx context.Context, user *models.User, expectedVersion int64) error {
	var missing, conflict bool
	s.users.Compute(user.ID, func(old *models.User, loaded bool) (*models.User, xsync.ComputeOp) {
		if !loaded {
			missing = true
			return nil, xsync.CancelOp
		}
		if old.Version != expectedVersion {
			conflict = true
			return old, xsync.CancelOp
		}
		return user.Clone(), xsync.UpdateOp
	})

	switch {
	case missing:
		return errors.ErrUserNotFound
	case conflict:
		return fmt.Errorf("saving user %s at version %d: %w", user.ID, expectedVersion, errors.ErrConflict)
	}
	return nil
}

// EnsureUser returns the user, creating a clean record on first sight
func (s *MemoryStore) EnsureUser(ctx context.Context, id, email string) (*models.User, bool, error) {
	u, loaded := s.users.LoadOrCompute(id, func() (*models.User, bool) {
		now := time.Now()
		return &models.User{
			ID:         id,
			Email:      email,
			Role:       models.RoleUser,
			Violations: models.ViolationRecord{FlagHistory: []models.FlagEntry{}},
			CreatedAt:  now,
			UpdatedAt:  now,
		}, false
	})
	return u.Clone(), !loaded, nil
}

// SaveFeedback stores a new feedback record
func (s *MemoryStore) SaveFeedback(ctx context.Context, fb *models.Feedback) error {
	c := *fb
	s.feedback.Store(fb.ID, &c)
	return nil
}

// GetFeedback loads one feedback record
func (s *MemoryStore) GetFeedback(ctx context.Context, id string) (*models.Feedback, error) {
	fb, ok := s.feedback.Load(id)
	if !ok {
		return nil, errors.ErrNotFound
	}
	c := *fb
	return &c, nil
}

// ListFeedback pages feedback newest first, optionally filtered by status
func (s *MemoryStore) ListFeedback(ctx context.Context, status models.FeedbackStatus, offset, limit int) ([]models.Feedback, int64, error) {
	var all []models.Feedback
	s.feedback.Range(func(_ string, fb *models.Feedback) bool {
		if status == "" || fb.Status == status {
			all = append(all, *fb)
		}
		return true
	})
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return page(all, offset, limit), int64(len(all)), nil
}

// DeleteFeedback removes one feedback record
func (s *MemoryStore) DeleteFeedback(ctx context.Context, id string) error {
	if _, ok := s.feedback.LoadAndDelete(id); !ok {
		return errors.ErrNotFound
	}
	return nil
}

// AppendNotification stores a new notification
func (s *MemoryStore) AppendNotification(ctx context.Context, n *models.Notification) error {
	s.notifMu.Lock()
	s.notifications = append(s.notifications, *n)
	s.notifMu.Unlock()
	return nil
}

// ListNotifications pages a user's notifications newest first
func (s *MemoryStore) ListNotifications(ctx context.Context, userID string, unreadOnly bool, offset, limit int) ([]models.Notification, int64, error) {
	s.notifMu.RLock()
	var mine []models.Notification
	for i := len(s.notifications) - 1; i >= 0; i-- {
		n := s.notifications[i]
		if n.UserID != userID || (unreadOnly && n.Read) {
			continue
		}
		mine = append(mine, n)
	}
	s.notifMu.RUnlock()

	sort.SliceStable(mine, func(i, j int) bool {
		return mine[i].Timestamp.After(mine[j].Timestamp)
	})
	return page(mine, offset, limit), int64(len(mine)), nil
}

// MarkNotificationsRead flips read on the user's own notifications among ids
func (s *MemoryStore) MarkNotificationsRead(ctx context.Context, userID string, ids []string) (int64, error) {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	s.notifMu.Lock()
	defer s.notifMu.Unlock()

	var updated int64
	for i := range s.notifications {
		n := &s.notifications[i]
		if _, ok := want[n.ID]; !ok || n.UserID != userID || n.Read {
			continue
		}
		n.Read = true
		updated++
	}
	return updated, nil
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
