package lock

import (
	"context"
	"fmt"
	"time"

	"tourbook/pkg/logger"
	"tourbook/pkg/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const CollectionName = "Calendar_locks"

// Mongo holds a scope by inserting a document with a unique _id. A TTL index
// on expires_at reaps documents left behind by crashed holders, and stale
// documents are also stolen once expired.
type Mongo struct {
	collection *mongo.Collection
	timeout    time.Duration
	ttl        time.Duration
	log        *logger.Logger
}

func NewMongo(db *mongo.Database, timeout, ttl time.Duration, log *logger.Logger) *Mongo {
	return &Mongo{
		collection: db.Collection(CollectionName),
		timeout:    timeout,
		ttl:        ttl,
		log:        log,
	}
}

func (m *Mongo) Lease() time.Duration { return m.ttl }

func (m *Mongo) Acquire(ctx context.Context, key string) (Unlock, error) {
	token := uuid.NewString()

	err := poll(ctx, m.timeout, func(ctx context.Context) (bool, error) {
		return m.tryInsert(ctx, key, token)
	})
	if err != nil {
		return nil, err
	}

	return once(func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
		defer cancel()
		if _, err := m.collection.DeleteOne(releaseCtx, bson.M{"_id": key, "token": token}); err != nil {
			m.log.Warn("Failed to release calendar lock", "key", key, "error", err)
		}
	}), nil
}

func (m *Mongo) tryInsert(ctx context.Context, key, token string) (bool, error) {
	now := time.Now().UTC()
	doc := model.CalendarLock{
		ID:        key,
		Token:     token,
		ExpiresAt: now.Add(m.ttl),
		CreatedAt: now,
	}

	_, err := m.collection.InsertOne(ctx, doc)
	if err == nil {
		return true, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return false, fmt.Errorf("failed to insert calendar lock: %w", err)
	}

	res, err := m.collection.DeleteOne(ctx, bson.M{"_id": key, "expires_at": bson.M{"$lt": now}})
	if err != nil {
		return false, fmt.Errorf("failed to clear expired calendar lock: %w", err)
	}
	if res.DeletedCount > 0 {
		m.log.Warn("Stole expired calendar lock", "key", key)
	}
	return false, nil
}
