package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	assignmentserrors "tourbook/internal/assignments/errors"
	"tourbook/pkg/config"
	mongotx "tourbook/pkg/db/mongo"
	"tourbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	AssignmentCollectionName = "Property_assignments"
	PropertyCollectionName   = "Properties"
)

// AssignmentRepository is the append-only reassignment ledger. It has no
// update or delete operations.
type AssignmentRepository interface {
	Append(ctx context.Context, row *model.PropertyAssignment) error
	// LatestAt returns the newest row with Timestamp <= at.
	LatestAt(ctx context.Context, propertyID string, at time.Time) (*model.PropertyAssignment, error)
	History(ctx context.Context, propertyID string) ([]*model.PropertyAssignment, error)
}

// PropertyRepository is a read-only view of the listing catalogue.
type PropertyRepository interface {
	FindByID(ctx context.Context, id string) (*model.Property, error)
}

type mongoAssignmentRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoAssignmentRepository(cfg *config.Config) AssignmentRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoAssignmentRepository{
		cfg:        cfg,
		collection: db.Collection(AssignmentCollectionName),
	}
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if mongotx.IsSessionContext(ctx) {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoAssignmentRepository) Append(ctx context.Context, row *model.PropertyAssignment) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if row.ID == "" {
		row.ID = primitive.NewObjectID().Hex()
	}
	if _, err := r.collection.InsertOne(ctx, row); err != nil {
		return fmt.Errorf("failed to append property assignment: %w", err)
	}
	return nil
}

func (r *mongoAssignmentRepository) LatestAt(ctx context.Context, propertyID string, at time.Time) (*model.PropertyAssignment, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"property_id": propertyID,
		"timestamp":   bson.M{"$lte": at},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}})

	var row model.PropertyAssignment
	err := r.collection.FindOne(ctx, filter, opts).Decode(&row)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, assignmentserrors.ErrNoAssignment
		}
		return nil, fmt.Errorf("failed to find property assignment: %w", err)
	}
	return &row, nil
}

func (r *mongoAssignmentRepository) History(ctx context.Context, propertyID string) ([]*model.PropertyAssignment, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"property_id": propertyID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find property assignments: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []*model.PropertyAssignment
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode property assignments: %w", err)
	}
	return rows, nil
}

type mongoPropertyRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoPropertyRepository(cfg *config.Config) PropertyRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoPropertyRepository{
		cfg:        cfg,
		collection: db.Collection(PropertyCollectionName),
	}
}

func (r *mongoPropertyRepository) FindByID(ctx context.Context, id string) (*model.Property, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var property model.Property
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&property)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, assignmentserrors.ErrPropertyNotFound
		}
		return nil, fmt.Errorf("failed to find property: %w", err)
	}
	return &property, nil
}
