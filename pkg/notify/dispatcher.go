// Package notify creates in-app notifications from fixed templates and mirrors
// them by email. The in-app record is authoritative; email is best effort.
package notify

import (
	"context"
	"fmt"
	"html"
	"sync"
	"time"

	"github.com/PancyStudios/PancyFeedbackGo/pkg/errors"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/logger"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/models"
	"github.com/google/uuid"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100

	emailTimeout = 30 * time.Second
)

// Store persists notifications
type Store interface {
	AppendNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, offset, limit int) ([]models.Notification, int64, error)
	MarkNotificationsRead(ctx context.Context, userID string, ids []string) (int64, error)
}

// ContactLookup resolves a user's email address
type ContactLookup interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// Dispatcher implements the notification side of enforcement
type Dispatcher struct {
	store  Store
	users  ContactLookup
	mailer Mailer
	wg     sync.WaitGroup
	now    func() time.Time
}

// NewDispatcher creates a dispatcher. A nil mailer disables email.
func NewDispatcher(store Store, users ContactLookup, mailer Mailer) *Dispatcher {
	return &Dispatcher{store: store, users: users, mailer: mailer, now: time.Now}
}

// Dispatch renders templateKey, appends it to the user's notifications and,
// when sendEmail is set, mails it on a detached goroutine. It reports whether
// the in-app notification was stored; email never affects the result.
func (d *Dispatcher) Dispatch(ctx context.Context, userID, templateKey string, vars map[string]string, sendEmail bool) bool {
	t, ok := Render(templateKey, vars)
	if !ok {
		logger.Error(fmt.Sprintf("Plantilla de notificación desconocida: %s", templateKey), "Notify")
		return false
	}

	n := &models.Notification{
		ID:          uuid.NewString(),
		UserID:      userID,
		TemplateKey: templateKey,
		Title:       t.Title,
		Message:     t.Message,
		Type:        t.Type,
		Severity:    t.Severity,
		Timestamp:   d.now(),
	}

	if err := d.store.AppendNotification(ctx, n); err != nil {
		logger.Error(fmt.Sprintf("No se pudo guardar la notificación %s para %s: %v", templateKey, userID, err), "Notify")
		return false
	}
	notificationCount.WithLabelValues(templateKey).Inc()

	if sendEmail && d.mailer != nil && d.users != nil {
		d.wg.Add(1)
		go d.sendEmail(context.WithoutCancel(ctx), userID, t)
	}
	return true
}

func (d *Dispatcher) sendEmail(ctx context.Context, userID string, t Template) {
	defer d.wg.Done()
	defer errors.RecoverMiddleware()()

	ctx, cancel := context.WithTimeout(ctx, emailTimeout)
	defer cancel()

	user, err := d.users.GetUser(ctx, userID)
	if err != nil {
		logger.Warn(fmt.Sprintf("No se pudo obtener el contacto de %s: %v", userID, err), "Notify")
		return
	}
	if user.Email == "" {
		return
	}

	body := fmt.Sprintf("<h2>%s</h2><p>%s</p>", html.EscapeString(t.Title), html.EscapeString(t.Message))
	if err := d.mailer.Send(ctx, user.Email, t.Title, body); err != nil {
		emailErrorCount.Inc()
		logger.Warn(fmt.Sprintf("Fallo al enviar correo a %s: %v", userID, err), "Notify")
	}
}

// Wait blocks until detached email sends finish
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// List returns one page of a user's notifications, newest first
func (d *Dispatcher) List(ctx context.Context, userID string, page, limit int, unreadOnly bool) (models.NotificationPage, error) {
	page, limit = normalizePage(page, limit)

	items, total, err := d.store.ListNotifications(ctx, userID, unreadOnly, (page-1)*limit, limit)
	if err != nil {
		return models.NotificationPage{}, fmt.Errorf("listing notifications for %s: %w", userID, err)
	}
	if items == nil {
		items = []models.Notification{}
	}
	return models.NotificationPage{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// MarkRead marks the given notifications read. Ids owned by other users are ignored.
func (d *Dispatcher) MarkRead(ctx context.Context, userID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := d.store.MarkNotificationsRead(ctx, userID, ids)
	if err != nil {
		return 0, fmt.Errorf("marking notifications read for %s: %w", userID, err)
	}
	return n, nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}
