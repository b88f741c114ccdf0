// Package database provides the MongoDB connection and the stores behind the
// feedback service: users (optimistic concurrency on a version field),
// feedback and notifications. MemoryStore implements the same contracts for
// tests and offline runs.
package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/PancyStudios/PancyFeedbackGo/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection names
const (
	UsersCollection         = "users"
	FeedbackCollection      = "feedback"
	NotificationsCollection = "notifications"
)

// QueuedOperation is a write that could not reach Mongo and will be replayed
type QueuedOperation struct {
	CollectionName string
	Query          bson.M
	Operation      string // "insert", "set" or "delete"
	Data           interface{}
}

// Database manages the MongoDB connection
type Database struct {
	client          *mongo.Client
	db              *mongo.Database
	connected       bool
	mongoURL        string
	dbName          string
	writeQueue      []QueuedOperation
	reconnectTicker *time.Ticker
	stopReconnect   chan struct{}
	stopOnce        sync.Once
	mu              sync.RWMutex
	queueMu         sync.Mutex
	collections     map[string]*mongo.Collection
}

var (
	database *Database
	dbOnce   sync.Once
)

// Init initializes the global database instance
func Init(mongoURL, dbName string) (*Database, error) {
	var err error
	dbOnce.Do(func() {
		database = NewDatabase()
		err = database.Connect(mongoURL, dbName)
	})
	return database, err
}

// Get returns the global database instance
func Get() *Database {
	return database
}

// NewDatabase creates a new Database instance
func NewDatabase() *Database {
	return &Database{
		writeQueue:    make([]QueuedOperation, 0),
		stopReconnect: make(chan struct{}),
		collections:   make(map[string]*mongo.Collection),
	}
}

// Connect establishes a connection to MongoDB. On failure a background
// reconnect loop keeps trying every 15 seconds.
func (d *Database) Connect(mongoURL, dbName string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return nil
	}
	d.mongoURL, d.dbName = mongoURL, dbName

	logger.System("Intentando conectar a la base de datos...", "DB")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(mongoURL).
		SetServerSelectionTimeout(5 * time.Second)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		logger.Critical("Fallo al conectar con la base de datos.", "DB")
		d.startReconnect()
		return err
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		logger.Critical("Fallo al verificar conexión con la base de datos.", "DB")
		_ = client.Disconnect(context.Background())
		d.startReconnect()
		return err
	}

	d.client = client
	d.db = client.Database(dbName)
	d.collections = make(map[string]*mongo.Collection)
	d.connected = true

	logger.Success("Conectado exitosamente a la base de datos.", "DB")

	if d.reconnectTicker != nil {
		d.reconnectTicker.Stop()
		d.reconnectTicker = nil
	}

	go d.syncOfflineWrites()

	return nil
}

// MarkDisconnected switches to offline mode after an operation saw the connection drop
func (d *Database) MarkDisconnected() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return
	}
	d.connected = false
	logger.Warn("Se perdió la conexión con la base de datos. Activando modo offline.", "DB")
	d.startReconnect()
}

// startReconnect must be called with d.mu held
func (d *Database) startReconnect() {
	if d.reconnectTicker != nil {
		return
	}
	ticker := time.NewTicker(15 * time.Second)
	d.reconnectTicker = ticker
	url, name := d.mongoURL, d.dbName

	go func() {
		for {
			select {
			case <-ticker.C:
				logger.Info("Intentando reconectar a la base de datos...", "DB")
				d.mu.Lock()
				d.reconnectTicker = nil
				d.mu.Unlock()
				ticker.Stop()
				// Connect restarts the loop with a fresh ticker when it fails
				_ = d.Connect(url, name)
				return
			case <-d.stopReconnect:
				return
			}
		}
	}()
}

// Connected reports whether the last known state is online
func (d *Database) Connected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// Disconnect closes the database connection
func (d *Database) Disconnect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.reconnectTicker != nil {
		d.reconnectTicker.Stop()
		d.reconnectTicker = nil
	}
	d.stopOnce.Do(func() { close(d.stopReconnect) })

	if d.client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.client.Disconnect(ctx); err != nil {
			return err
		}
		d.connected = false
		logger.Warn("La base de datos ha sido desconectada", "DB")
	}
	return nil
}

// Ping measures the database response time
func (d *Database) Ping(ctx context.Context) (time.Duration, error) {
	d.mu.RLock()
	client, connected := d.client, d.connected
	d.mu.RUnlock()

	if !connected || client == nil {
		return 0, fmt.Errorf("not connected to database")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	err := client.Ping(ctx, readpref.Primary())
	return time.Since(start), err
}

// GetStatus returns the database connection status for the status endpoint
func (d *Database) GetStatus(ctx context.Context) (string, bool) {
	if _, err := d.Ping(ctx); err != nil {
		return "🔴 | Desconectado", false
	}
	return "🟢 | En linea", true
}

// GetCollection returns a MongoDB collection, or nil before the first connection
func (d *Database) GetCollection(name string) *mongo.Collection {
	d.mu.RLock()
	if col, exists := d.collections[name]; exists {
		d.mu.RUnlock()
		return col
	}
	d.mu.RUnlock()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return nil
	}

	col := d.db.Collection(name)
	d.collections[name] = col
	return col
}

// EnsureIndexes creates the indexes the stores query on
func (d *Database) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		FeedbackCollection: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "userId", Value: 1}}},
		},
		NotificationsCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "timestamp", Value: -1}}},
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "read", Value: 1}}},
		},
	}

	for name, models := range indexes {
		col := d.GetCollection(name)
		if col == nil {
			return fmt.Errorf("collection %s unavailable", name)
		}
		if _, err := col.Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("creating indexes on %s: %w", name, err)
		}
	}
	return nil
}

// AddToWriteQueue adds an operation to the offline write queue
func (d *Database) AddToWriteQueue(op QueuedOperation) {
	d.queueMu.Lock()
	defer d.queueMu.Unlock()
	d.writeQueue = append(d.writeQueue, op)
}

// QueueLength returns the number of writes waiting for the connection
func (d *Database) QueueLength() int {
	d.queueMu.Lock()
	defer d.queueMu.Unlock()
	return len(d.writeQueue)
}

// syncOfflineWrites replays queued operations once the connection is back
func (d *Database) syncOfflineWrites() {
	d.queueMu.Lock()
	if len(d.writeQueue) == 0 {
		d.queueMu.Unlock()
		return
	}

	logger.System(fmt.Sprintf("Sincronizando %d operaciones pendientes con la DB...", len(d.writeQueue)), "DB-Sync")

	operations := make([]QueuedOperation, len(d.writeQueue))
	copy(operations, d.writeQueue)
	d.writeQueue = make([]QueuedOperation, 0)
	d.queueMu.Unlock()

	failedOps := make([]QueuedOperation, 0)

	for _, op := range operations {
		col := d.GetCollection(op.CollectionName)
		if col == nil {
			logger.Error(fmt.Sprintf("Colección '%s' no encontrada durante la sincronización.", op.CollectionName), "DB-Sync")
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)

		var err error
		switch op.Operation {
		case "insert":
			_, err = col.InsertOne(ctx, op.Data)
			if mongo.IsDuplicateKeyError(err) {
				err = nil
			}
		case "set":
			_, err = col.UpdateOne(ctx, op.Query, bson.M{"$set": op.Data}, options.Update().SetUpsert(true))
		case "delete":
			_, err = col.DeleteOne(ctx, op.Query)
		}

		cancel()

		if err != nil {
			logger.Error(fmt.Sprintf("Error al sincronizar operación para '%s'. La operación se volverá a encolar.", op.CollectionName), "DB-Sync")
			failedOps = append(failedOps, op)
		}
	}

	if len(failedOps) > 0 {
		d.queueMu.Lock()
		d.writeQueue = append(d.writeQueue, failedOps...)
		d.queueMu.Unlock()
		logger.Warn(fmt.Sprintf("%d operaciones no pudieron sincronizarse y se reintentarán.", len(failedOps)), "DB-Sync")
	} else {
		logger.Success("Sincronización completada exitosamente.", "DB-Sync")
	}
}

// Client returns the underlying MongoDB client
func (d *Database) Client() *mongo.Client {
	return d.client
}
