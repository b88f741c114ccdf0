package database

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PancyStudios/PancyFeedbackGo/pkg/errors"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/models"
)

func TestMemoryStoreCompareAndSet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	u, created, err := s.EnsureUser(ctx, "u1", "u1@example.com")
	if err != nil || !created {
		t.Fatalf("EnsureUser() = %v, %v, want created", created, err)
	}

	u.Violations.WarningCount = 1
	u.Version = 1
	if err := s.SaveUser(ctx, u, 0); err != nil {
		t.Fatalf("SaveUser() error = %v", err)
	}

	stale := u.Clone()
	stale.Version = 1
	if err := s.SaveUser(ctx, stale, 0); !errors.Is(err, errors.ErrConflict) {
		t.Errorf("SaveUser() with stale version error = %v, want ErrConflict", err)
	}

	got, err := s.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if got.Version != 1 || got.Violations.WarningCount != 1 {
		t.Errorf("GetUser() = version %d count %d, want 1 and 1", got.Version, got.Violations.WarningCount)
	}

	if err := s.SaveUser(ctx, &models.User{ID: "ghost"}, 0); !errors.Is(err, errors.ErrUserNotFound) {
		t.Errorf("SaveUser() unknown user error = %v, want ErrUserNotFound", err)
	}
	if _, err := s.GetUser(ctx, "ghost"); !errors.Is(err, errors.ErrUserNotFound) {
		t.Errorf("GetUser() unknown user error = %v, want ErrUserNotFound", err)
	}

	_, created, _ = s.EnsureUser(ctx, "u1", "")
	if created {
		t.Error("EnsureUser() created an existing user again")
	}
}

func TestMemoryStoreConcurrentWritersOneWins(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.PutUser(&models.User{ID: "u1", Version: 7})

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, _ := s.GetUser(ctx, "u1")
			u.Violations.WarningCount = i
			u.Version = 8
			if err := s.SaveUser(ctx, u, 7); err == nil {
				atomic.AddInt32(&wins, 1)
			}
		}(i)
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("successful writers = %v, want 1", wins)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.PutUser(&models.User{ID: "u1"})

	u, _ := s.GetUser(ctx, "u1")
	u.Violations.WarningCount = 3

	again, _ := s.GetUser(ctx, "u1")
	if again.Violations.WarningCount != 0 {
		t.Error("Mutating a loaded user changed the stored record")
	}
}

func TestMemoryStoreFeedback(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Now()

	for i := 0; i < 5; i++ {
		status := models.FeedbackAccepted
		if i%2 == 0 {
			status = models.FeedbackFlagged
		}
		s.SaveFeedback(ctx, &models.Feedback{
			ID:        fmt.Sprintf("f%d", i),
			Status:    status,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	items, total, _ := s.ListFeedback(ctx, models.FeedbackFlagged, 0, 2)
	if total != 3 {
		t.Errorf("total = %v, want 3", total)
	}
	if len(items) != 2 || items[0].ID != "f4" || items[1].ID != "f2" {
		t.Errorf("ListFeedback() = %v, want f4, f2", items)
	}

	items, total, _ = s.ListFeedback(ctx, "", 4, 10)
	if total != 5 || len(items) != 1 || items[0].ID != "f0" {
		t.Errorf("ListFeedback() last page = %v (total %d), want f0 of 5", items, total)
	}

	if err := s.DeleteFeedback(ctx, "f0"); err != nil {
		t.Errorf("DeleteFeedback() error = %v", err)
	}
	if err := s.DeleteFeedback(ctx, "f0"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("DeleteFeedback() twice error = %v, want ErrNotFound", err)
	}
	if _, err := s.GetFeedback(ctx, "f0"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetFeedback() deleted error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreNotifications(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Now()

	for i := 0; i < 3; i++ {
		s.AppendNotification(ctx, &models.Notification{ID: fmt.Sprintf("n%d", i), UserID: "u1", Timestamp: base.Add(time.Duration(i) * time.Second)})
	}
	s.AppendNotification(ctx, &models.Notification{ID: "other", UserID: "u2", Timestamp: base})

	updated, _ := s.MarkNotificationsRead(ctx, "u1", []string{"n0", "other", "missing"})
	if updated != 1 {
		t.Errorf("MarkNotificationsRead() = %v, want 1", updated)
	}

	items, total, _ := s.ListNotifications(ctx, "u1", false, 0, 10)
	if total != 3 || items[0].ID != "n2" {
		t.Errorf("ListNotifications() = %v (total %d), want newest first of 3", items, total)
	}

	unread, total, _ := s.ListNotifications(ctx, "u1", true, 0, 10)
	if total != 2 || len(unread) != 2 {
		t.Errorf("unread total = %v, want 2", total)
	}

	others, _, _ := s.ListNotifications(ctx, "u2", true, 0, 10)
	if len(others) != 1 || others[0].Read {
		t.Error("Another user's notification was marked read")
	}
}

func TestDataManagerOfflineQueuesWrites(t *testing.T) {
	ctx := context.Background()
	db := NewDatabase()
	dm := NewDataManager[models.Feedback](FeedbackCollection, db)

	fb := &models.Feedback{ID: "f1", Content: "hola"}
	if err := dm.Insert(ctx, fb.ID, fb); err != nil {
		t.Fatalf("Insert() offline error = %v, want nil", err)
	}
	if db.QueueLength() != 1 {
		t.Errorf("QueueLength() = %v, want 1", db.QueueLength())
	}

	got, err := dm.Get(ctx, "f1")
	if err != nil || got.Content != "hola" {
		t.Errorf("Get() = %v, %v, want cached document", got, err)
	}
	if dm.CacheSize() != 1 {
		t.Errorf("CacheSize() = %v, want 1", dm.CacheSize())
	}

	if _, err := dm.Get(ctx, "missing"); err == nil {
		t.Error("Expected an error reading an uncached id while offline")
	}
	if _, _, err := dm.Find(ctx, nil, nil, 0, 10); err == nil {
		t.Error("Expected Find() to fail while offline")
	}

	dm.ClearCache()
	if dm.CacheSize() != 0 {
		t.Errorf("CacheSize() after clear = %v, want 0", dm.CacheSize())
	}
}

func TestDatabaseOfflineStatus(t *testing.T) {
	db := NewDatabase()
	if db.Connected() {
		t.Error("Expected a new database to be offline")
	}
	if _, err := db.Ping(context.Background()); err == nil {
		t.Error("Expected Ping() to fail while offline")
	}
	if status, ok := db.GetStatus(context.Background()); ok || status == "" {
		t.Errorf("GetStatus() = %q, %v, want offline", status, ok)
	}
	if db.GetCollection(UsersCollection) != nil {
		t.Error("Expected no collection before connecting")
	}
	if err := db.Disconnect(); err != nil {
		t.Errorf("Disconnect() error = %v", err)
	}
}

func TestMongoStoreOffline(t *testing.T) {
	s := NewMongoStore(NewDatabase())
	if _, err := s.GetUser(context.Background(), "u1"); err == nil {
		t.Error("Expected GetUser() to fail while offline")
	}
	if err := s.SaveFeedback(context.Background(), &models.Feedback{ID: "f1"}); err != nil {
		t.Errorf("SaveFeedback() offline error = %v, want queued", err)
	}
}
