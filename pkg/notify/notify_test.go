package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PancyStudios/PancyFeedbackGo/pkg/errors"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/models"
)

type fakeStore struct {
	mu        sync.Mutex
	items     []models.Notification
	appendErr error
	lastQuery struct {
		unreadOnly    bool
		offset, limit int
	}
}

func (f *fakeStore) AppendNotification(ctx context.Context, n *models.Notification) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, *n)
	return nil
}

func (f *fakeStore) ListNotifications(ctx context.Context, userID string, unreadOnly bool, offset, limit int) ([]models.Notification, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery.unreadOnly, f.lastQuery.offset, f.lastQuery.limit = unreadOnly, offset, limit
	var out []models.Notification
	for _, n := range f.items {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeStore) MarkNotificationsRead(ctx context.Context, userID string, ids []string) (int64, error) {
	return int64(len(ids)), nil
}

type fakeUsers map[string]*models.User

func (f fakeUsers) GetUser(ctx context.Context, id string) (*models.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, errors.ErrUserNotFound
}

type fakeMailer struct {
	mu   sync.Mutex
	err  error
	sent []string
}

func (m *fakeMailer) Send(ctx context.Context, to, subject, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to+"|"+subject+"|"+html)
	return m.err
}

func TestRender(t *testing.T) {
	tpl, ok := Render(FirstWarning, map[string]string{
		"reason":       "Contains inappropriate language",
		"warningCount": "1",
		"threshold":    "3",
	})
	if !ok {
		t.Fatal("Render() ok = false for a known template")
	}
	want := "Your feedback was flagged: Contains inappropriate language. This is warning 1 of 3. Please keep your feedback respectful."
	if tpl.Message != want {
		t.Errorf("Message = %q, want %q", tpl.Message, want)
	}
	if tpl.Type != models.NotificationWarning {
		t.Errorf("Type = %v, want warning", tpl.Type)
	}

	if _, ok := Render("NOPE", nil); ok {
		t.Error("Render() ok = true for an unknown template")
	}

	partial, _ := Render(TemporaryBan, map[string]string{"reason": "spam"})
	if !strings.Contains(partial.Message, "{{banUntil}}") {
		t.Error("Expected missing variables to stay as placeholders")
	}
}

func TestAllTemplatesExist(t *testing.T) {
	for _, key := range []string{Welcome, FirstWarning, SecondWarning, FinalWarning, TemporaryBan, AccountUnbanned, HarassmentDetected} {
		tpl, ok := Lookup(key)
		if !ok || tpl.Title == "" || tpl.Message == "" {
			t.Errorf("template %s missing or empty", key)
		}
	}
	if tpl, _ := Lookup(TemporaryBan); tpl.Title != "🚫 Account Temporarily Suspended" {
		t.Errorf("TEMPORARY_BAN title = %q", tpl.Title)
	}
	if tpl, _ := Lookup(AccountUnbanned); !strings.Contains(tpl.Title, "Account Reinstated") {
		t.Errorf("ACCOUNT_UNBANNED title = %q", tpl.Title)
	}
}

func TestDispatchStoresNotification(t *testing.T) {
	store := &fakeStore{}
	d := NewDispatcher(store, fakeUsers{}, nil)

	if ok := d.Dispatch(context.Background(), "u1", Welcome, nil, false); !ok {
		t.Fatal("Dispatch() = false, want true")
	}
	if len(store.items) != 1 {
		t.Fatalf("stored = %v, want 1", len(store.items))
	}
	n := store.items[0]
	if n.ID == "" || n.UserID != "u1" || n.TemplateKey != Welcome || n.Read || n.Timestamp.IsZero() {
		t.Errorf("stored notification = %+v", n)
	}

	if ok := d.Dispatch(context.Background(), "u1", "UNKNOWN", nil, false); ok {
		t.Error("Dispatch() = true for an unknown template")
	}
}

func TestDispatchStoreFailure(t *testing.T) {
	d := NewDispatcher(&fakeStore{appendErr: fmt.Errorf("db down")}, fakeUsers{}, &fakeMailer{})
	if ok := d.Dispatch(context.Background(), "u1", Welcome, nil, true); ok {
		t.Error("Dispatch() = true although the in-app notification was not stored")
	}
}

func TestDispatchEmailFailureDoesNotPropagate(t *testing.T) {
	store := &fakeStore{}
	mailer := &fakeMailer{err: fmt.Errorf("smtp refused")}
	users := fakeUsers{"u1": {ID: "u1", Email: "u1@example.com"}}
	d := NewDispatcher(store, users, mailer)

	ctx, cancel := context.WithCancel(context.Background())
	ok := d.Dispatch(ctx, "u1", FinalWarning, map[string]string{"reason": "<b>spam</b>"}, true)
	cancel()
	d.Wait()

	if !ok {
		t.Error("Dispatch() = false, want true despite email failure")
	}
	if len(store.items) != 1 {
		t.Errorf("stored = %v, want 1", len(store.items))
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("emails attempted = %v, want 1", len(mailer.sent))
	}
	if !strings.HasPrefix(mailer.sent[0], "u1@example.com|🛑 Final Warning|") {
		t.Errorf("email = %q", mailer.sent[0])
	}
	if strings.Contains(mailer.sent[0], "<b>spam</b>") {
		t.Error("Expected template variables to be escaped in the email body")
	}
}

func TestDispatchSkipsEmailWithoutAddress(t *testing.T) {
	mailer := &fakeMailer{}
	users := fakeUsers{"u1": {ID: "u1"}}
	d := NewDispatcher(&fakeStore{}, users, mailer)

	d.Dispatch(context.Background(), "u1", Welcome, nil, true)
	d.Dispatch(context.Background(), "ghost", Welcome, nil, true)
	d.Dispatch(context.Background(), "u1", Welcome, nil, false)
	d.Wait()

	if len(mailer.sent) != 0 {
		t.Errorf("emails sent = %v, want 0", len(mailer.sent))
	}
}

func TestListNormalizesPaging(t *testing.T) {
	tests := []struct {
		page, limit         int
		wantPage, wantLimit int
		wantOffset          int
	}{
		{0, 0, 1, DefaultLimit, 0},
		{-3, 10, 1, 10, 0},
		{3, 10, 3, 10, 20},
		{2, 500, 2, MaxLimit, MaxLimit},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("page=%d,limit=%d", tt.page, tt.limit), func(t *testing.T) {
			store := &fakeStore{}
			d := NewDispatcher(store, nil, nil)

			p, err := d.List(context.Background(), "u1", tt.page, tt.limit, true)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if p.Page != tt.wantPage || p.Limit != tt.wantLimit {
				t.Errorf("page/limit = %d/%d, want %d/%d", p.Page, p.Limit, tt.wantPage, tt.wantLimit)
			}
			if store.lastQuery.offset != tt.wantOffset || !store.lastQuery.unreadOnly {
				t.Errorf("offset = %d, want %d", store.lastQuery.offset, tt.wantOffset)
			}
			if p.Items == nil {
				t.Error("Expected an empty slice, not nil")
			}
		})
	}
}

func TestMarkRead(t *testing.T) {
	d := NewDispatcher(&fakeStore{}, nil, nil)

	n, err := d.MarkRead(context.Background(), "u1", nil)
	if err != nil || n != 0 {
		t.Errorf("MarkRead(nil) = %v, %v, want 0, nil", n, err)
	}

	n, _ = d.MarkRead(context.Background(), "u1", []string{"a", "b"})
	if n != 2 {
		t.Errorf("MarkRead() = %v, want 2", n)
	}
}

func TestNopMailer(t *testing.T) {
	if err := (NopMailer{}).Send(context.Background(), "a@b.c", "s", "<p>x</p>"); err != nil {
		t.Errorf("NopMailer.Send() error = %v", err)
	}
}

func TestSMTPMailerRejectsBadAddress(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "localhost", From: "not an address"})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.Send(ctx, "u1@example.com", "s", "<p>x</p>"); err == nil {
		t.Error("Expected an invalid from address to fail")
	}
}
