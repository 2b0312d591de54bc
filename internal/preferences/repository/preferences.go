package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	preferenceserrors "tourbook/internal/preferences/errors"
	"tourbook/pkg/config"
	mongotx "tourbook/pkg/db/mongo"
	"tourbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Calendar_preferences"
)

type PreferencesRepository interface {
	FindByUser(ctx context.Context, user model.UserRef) (*model.CalendarPreferences, error)
	Upsert(ctx context.Context, prefs *model.CalendarPreferences) error
}

type mongoPreferencesRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoPreferencesRepository(cfg *config.Config) PreferencesRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoPreferencesRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoPreferencesRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if mongotx.IsSessionContext(ctx) {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoPreferencesRepository) FindByUser(ctx context.Context, user model.UserRef) (*model.CalendarPreferences, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var prefs model.CalendarPreferences
	err := r.collection.FindOne(ctx, bson.M{"user_id": user.ID, "user_type": user.Type}).Decode(&prefs)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, preferenceserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find calendar preferences: %w", err)
	}
	return &prefs, nil
}

func (r *mongoPreferencesRepository) Upsert(ctx context.Context, prefs *model.CalendarPreferences) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"user_id": prefs.UserID, "user_type": prefs.UserType}
	_, err := r.collection.ReplaceOne(ctx, filter, prefs, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save calendar preferences: %w", err)
	}
	return nil
}
