package database

import (
	"context"
	"fmt"
	"time"

	"github.com/PancyStudios/PancyFeedbackGo/pkg/errors"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoStore implements the user, feedback and notification stores on MongoDB
type MongoStore struct {
	db            *Database
	feedback      *DataManager[models.Feedback]
	notifications *DataManager[models.Notification]
	opTimeout     time.Duration
}

// NewMongoStore creates the stores over an initialized Database
func NewMongoStore(db *Database) *MongoStore {
	return &MongoStore{
		db:            db,
		feedback:      NewDataManager[models.Feedback](FeedbackCollection, db),
		notifications: NewDataManager[models.Notification](NotificationsCollection, db, DataManagerOptions{MaxCacheSize: 256, CacheTTL: time.Minute, OpTimeout: 5 * time.Second}),
		opTimeout:     5 * time.Second,
	}
}

// Users are never cached: every read must see the latest version and banUntil.
func (s *MongoStore) users() (*mongo.Collection, error) {
	if !s.db.Connected() {
		return nil, errOffline
	}
	col := s.db.GetCollection(UsersCollection)
	if col == nil {
		return nil, errOffline
	}
	return col, nil
}

// GetUser loads a user by id
func (s *MongoStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	col, err := s.users()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	var u models.User
	if err := col.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.ErrUserNotFound
		}
		return nil, fmt.Errorf("loading user %s: %w", id, err)
	}
	return &u, nil
}

// SaveUser replaces the user only if the stored version still equals expectedVersion.
// The caller sets user.Version to the new version before calling.
func (s *MongoStore) SaveUser(ctx context.Context, user *models.User, expectedVersion int64) error {
	col, err := s.users()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	res, err := col.ReplaceOne(ctx, bson.M{"_id": user.ID, "version": expectedVersion}, user)
	if err != nil {
		return fmt.Errorf("saving user %s: %w", user.ID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("saving user %s at version %d: %w", user.ID, expectedVersion, errors.ErrConflict)
	}
	return nil
}

// EnsureUser returns the user, creating a clean record on first sight
func (s *MongoStore) EnsureUser(ctx context.Context, id, email string) (*models.User, bool, error) {
	u, err := s.GetUser(ctx, id)
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, errors.ErrUserNotFound) {
		return nil, false, err
	}

	col, err := s.users()
	if err != nil {
		return nil, false, err
	}

	now := time.Now()
	u = &models.User{
		ID:         id,
		Email:      email,
		Role:       models.RoleUser,
		Violations: models.ViolationRecord{FlagHistory: []models.FlagEntry{}},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if _, err := col.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			existing, err := s.GetUser(ctx, id)
			return existing, false, err
		}
		return nil, false, fmt.Errorf("creating user %s: %w", id, err)
	}
	return u, true, nil
}

// SaveFeedback stores a new feedback record
func (s *MongoStore) SaveFeedback(ctx context.Context, fb *models.Feedback) error {
	return s.feedback.Insert(ctx, fb.ID, fb)
}

// GetFeedback loads one feedback record
func (s *MongoStore) GetFeedback(ctx context.Context, id string) (*models.Feedback, error) {
	return s.feedback.Get(ctx, id)
}

// ListFeedback pages feedback newest first, optionally filtered by status
func (s *MongoStore) ListFeedback(ctx context.Context, status models.FeedbackStatus, offset, limit int) ([]models.Feedback, int64, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	return s.feedback.Find(ctx, filter, bson.D{{Key: "createdAt", Value: -1}}, int64(offset), int64(limit))
}

// DeleteFeedback removes one feedback record
func (s *MongoStore) DeleteFeedback(ctx context.Context, id string) error {
	return s.feedback.Delete(ctx, id)
}

// AppendNotification stores a new notification
func (s *MongoStore) AppendNotification(ctx context.Context, n *models.Notification) error {
	return s.notifications.Insert(ctx, n.ID, n)
}

// ListNotifications pages a user's notifications newest first
func (s *MongoStore) ListNotifications(ctx context.Context, userID string, unreadOnly bool, offset, limit int) ([]models.Notification, int64, error) {
	filter := bson.M{"userId": userID}
	if unreadOnly {
		filter["read"] = false
	}
	return s.notifications.Find(ctx, filter, bson.D{{Key: "timestamp", Value: -1}}, int64(offset), int64(limit))
}

// MarkNotificationsRead flips read on the user's own notifications among ids
func (s *MongoStore) MarkNotificationsRead(ctx context.Context, userID string, ids []string) (int64, error) {
	return s.notifications.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "userId": userID, "read": false},
		bson.M{"$set": bson.M{"read": true}},
	)
}
