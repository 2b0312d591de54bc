package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	assignments "tourbook/internal/assignments/repository"
	availability "tourbook/internal/availability/repository"
	bookings "tourbook/internal/bookings/repository"
	"tourbook/internal/migrations/mongo/validators"
	preferences "tourbook/internal/preferences/repository"
	"tourbook/pkg/lock"
)

var (
	BookingsIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "assigned_user.type", Value: 1},
			{Key: "assigned_user.id", Value: 1},
			{Key: "start_at", Value: 1},
		}},
		{Keys: bson.D{
			{Key: "visitor.phone", Value: 1},
			{Key: "status", Value: 1},
		}},
		{Keys: bson.D{
			{Key: "visitor.name_key", Value: 1},
			{Key: "status", Value: 1},
		}},
		{Keys: bson.D{
			{Key: "property_id", Value: 1},
			{Key: "start_at", Value: 1},
		}},
	}

	AvailabilitySlotsIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "user_type", Value: 1},
			{Key: "user_id", Value: 1},
			{Key: "start_at", Value: 1},
			{Key: "end_at", Value: 1},
		}},
		{
			Keys:    bson.D{{Key: "booking_id", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
		{Keys: bson.D{
			{Key: "source", Value: 1},
			{Key: "end_at", Value: 1},
		}},
	}

	PreferencesIndexes = []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "user_type", Value: 1},
				{Key: "user_id", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
	}

	AssignmentsIndexes = []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "property_id", Value: 1},
			{Key: "timestamp", Value: -1},
		}},
	}

	PropertiesIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner_user_id", Value: 1}}},
	}

	// Expired lock documents are reaped by the server.
	CalendarLocksIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}
)

type CollectionDef struct {
	Indexes   []mongo.IndexModel
	Validator bson.M
}

func Collections() map[string]CollectionDef {
	return map[string]CollectionDef{
		bookings.CollectionName: {
			Indexes:   BookingsIndexes,
			Validator: validators.BookingValidator,
		},
		availability.CollectionName: {
			Indexes:   AvailabilitySlotsIndexes,
			Validator: validators.AvailabilitySlotValidator,
		},
		preferences.CollectionName: {
			Indexes:   PreferencesIndexes,
			Validator: validators.PreferencesValidator,
		},
		assignments.AssignmentCollectionName: {
			Indexes:   AssignmentsIndexes,
			Validator: validators.AssignmentValidator,
		},
		assignments.PropertyCollectionName: {
			Indexes: PropertiesIndexes,
		},
		lock.CollectionName: {
			Indexes: CalendarLocksIndexes,
		},
	}
}

func RunMigration(ctx context.Context, db *mongo.Database) error {
	fmt.Printf("🚀 Running tourbook Mongo migrations on database: %s\n", db.Name())

	for name, def := range Collections() {
		if err := ensureCollection(ctx, db, name, def.Validator); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", name, err)
		}
		if err := ensureIndexes(ctx, db, name, def.Indexes); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", name, err)
		}
	}

	fmt.Println("✅ All migrations applied successfully.")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		fmt.Printf("🆕 Creating collection: %s\n", name)
		opts := options.CreateCollection()
		if validator != nil {
			opts.SetValidator(validator)
		}
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	if validator == nil {
		return nil
	}
	fmt.Printf("ℹ️ Collection %s already exists, updating validator if needed\n", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		fmt.Printf("⚠️ Warning: failed updating validator for %s: %v\n", name, err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel) error {
	if len(models) == 0 {
		return nil
	}
	coll := db.Collection(name)
	if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
		return err
	}
	fmt.Printf("📚 Ensured indexes for %s\n", name)
	return nil
}
