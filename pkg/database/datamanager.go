package database

import (
	"context"
	"fmt"
	"time"

	"github.com/PancyStudios/PancyFeedbackGo/pkg/errors"
	"github.com/PancyStudios/PancyFeedbackGo/pkg/logger"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// errOffline is returned by reads while Mongo is unreachable
var errOffline = errors.New("database not connected")

// DataManagerOptions contains configuration for a DataManager
type DataManagerOptions struct {
	MaxCacheSize int
	CacheTTL     time.Duration
	OpTimeout    time.Duration
}

// DefaultDataManagerOptions returns default options for DataManager
func DefaultDataManagerOptions() DataManagerOptions {
	return DataManagerOptions{
		MaxCacheSize: 1000,
		CacheTTL:     10 * time.Minute,
		OpTimeout:    5 * time.Second,
	}
}

// DataManager provides cached access to one MongoDB collection keyed by _id.
// Writes made while offline are queued on the Database and replayed on reconnect.
type DataManager[T any] struct {
	name    string
	db      *Database
	cache   *expirable.LRU[string, *T]
	options DataManagerOptions
}

// NewDataManager creates a new DataManager for a collection
func NewDataManager[T any](collectionName string, db *Database, opts ...DataManagerOptions) *DataManager[T] {
	dmOptions := DefaultDataManagerOptions()
	if len(opts) > 0 {
		dmOptions = opts[0]
	}

	return &DataManager[T]{
		name:    collectionName,
		db:      db,
		cache:   expirable.NewLRU[string, *T](dmOptions.MaxCacheSize, nil, dmOptions.CacheTTL),
		options: dmOptions,
	}
}

// collection resolves lazily since the connection may come up after construction
func (dm *DataManager[T]) collection() *mongo.Collection {
	if dm.db == nil || !dm.db.Connected() {
		return nil
	}
	return dm.db.GetCollection(dm.name)
}

func (dm *DataManager[T]) checkNetwork(err error) {
	if err != nil && mongo.IsNetworkError(err) {
		dm.db.MarkDisconnected()
	}
}

// Get retrieves a document by id from cache or database
func (dm *DataManager[T]) Get(ctx context.Context, id string) (*T, error) {
	if doc, ok := dm.cache.Get(id); ok {
		return doc, nil
	}

	col := dm.collection()
	if col == nil {
		return nil, errOffline
	}

	ctx, cancel := context.WithTimeout(ctx, dm.options.OpTimeout)
	defer cancel()

	var result T
	if err := col.FindOne(ctx, bson.M{"_id": id}).Decode(&result); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.ErrNotFound
		}
		dm.checkNetwork(err)
		logger.Warn(fmt.Sprintf("Fallo al leer de la DB (%s): %v", dm.name, err), "DataManager")
		return nil, err
	}

	dm.cache.Add(id, &result)
	return &result, nil
}

// Find returns one page of documents matching filter, plus the total match count
func (dm *DataManager[T]) Find(ctx context.Context, filter bson.M, sort bson.D, skip, limit int64) ([]T, int64, error) {
	col := dm.collection()
	if col == nil {
		return nil, 0, errOffline
	}

	ctx, cancel := context.WithTimeout(ctx, 2*dm.options.OpTimeout)
	defer cancel()

	total, err := col.CountDocuments(ctx, filter)
	if err != nil {
		dm.checkNetwork(err)
		return nil, 0, err
	}

	opts := options.Find().SetSort(sort).SetSkip(skip).SetLimit(limit)
	cursor, err := col.Find(ctx, filter, opts)
	if err != nil {
		dm.checkNetwork(err)
		return nil, 0, err
	}
	defer func() { _ = cursor.Close(ctx) }()

	results := make([]T, 0, limit)
	if err := cursor.All(ctx, &results); err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

// Insert stores a new document. While offline the write is queued and the
// document is served from cache until it is replayed.
func (dm *DataManager[T]) Insert(ctx context.Context, id string, doc *T) error {
	dm.cache.Add(id, doc)

	col := dm.collection()
	if col == nil {
		logger.Warn(fmt.Sprintf("DB offline. Encolando escritura para '%s'", dm.name), "DataManager")
		dm.db.AddToWriteQueue(QueuedOperation{CollectionName: dm.name, Operation: "insert", Data: doc})
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, dm.options.OpTimeout)
	defer cancel()

	if _, err := col.InsertOne(ctx, doc); err != nil {
		if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
			dm.checkNetwork(err)
			logger.Error(fmt.Sprintf("Error en 'insert' sobre '%s'. Encolando por seguridad.", dm.name), "DataManager")
			dm.db.AddToWriteQueue(QueuedOperation{CollectionName: dm.name, Operation: "insert", Data: doc})
			return nil
		}
		dm.cache.Remove(id)
		return err
	}
	return nil
}

// UpdateMany applies update to every document matching filter and drops the cache
func (dm *DataManager[T]) UpdateMany(ctx context.Context, filter, update bson.M) (int64, error) {
	col := dm.collection()
	if col == nil {
		return 0, errOffline
	}

	ctx, cancel := context.WithTimeout(ctx, dm.options.OpTimeout)
	defer cancel()

	res, err := col.UpdateMany(ctx, filter, update)
	dm.cache.Purge()
	if err != nil {
		dm.checkNetwork(err)
		return 0, err
	}
	return res.ModifiedCount, nil
}

// Delete removes a document from the database and cache
func (dm *DataManager[T]) Delete(ctx context.Context, id string) error {
	dm.cache.Remove(id)

	col := dm.collection()
	if col == nil {
		return errOffline
	}

	ctx, cancel := context.WithTimeout(ctx, dm.options.OpTimeout)
	defer cancel()

	res, err := col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		dm.checkNetwork(err)
		return err
	}
	if res.DeletedCount == 0 {
		return errors.ErrNotFound
	}
	return nil
}

// CacheSize returns the current cache size
func (dm *DataManager[T]) CacheSize() int {
	return dm.cache.Len()
}

// ClearCache clears the cache
func (dm *DataManager[T]) ClearCache() {
	dm.cache.Purge()
}

// PrimeCache logs that the cache is ready (caches are filled on demand)
func (dm *DataManager[T]) PrimeCache() {
	logger.System(fmt.Sprintf("Caché para '%s' preparada (tamaño máx: %d). Se llenará bajo demanda.", dm.name, dm.options.MaxCacheSize), "DataManager")
}
