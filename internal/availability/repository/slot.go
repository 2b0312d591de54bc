package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	availabilityerrors "tourbook/internal/availability/errors"
	"tourbook/pkg/config"
	mongotx "tourbook/pkg/db/mongo"
	"tourbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Availability_slots"
)

type mongoSlotRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

type SlotRepository interface {
	Create(ctx context.Context, slot *model.AvailabilitySlot) error
	Update(ctx context.Context, slot *model.AvailabilitySlot) error
	FindByID(ctx context.Context, id string) (*model.AvailabilitySlot, error)
	Delete(ctx context.Context, id string) error
	// FindOverlapping returns the user's slots overlapping [from, to), ordered
	// by start. A nil types slice matches every slot type.
	FindOverlapping(ctx context.Context, user model.UserRef, from, to time.Time, types []model.SlotType) ([]*model.AvailabilitySlot, error)
	FindIdentical(ctx context.Context, user model.UserRef, slotType model.SlotType, start, end time.Time) (*model.AvailabilitySlot, error)
	DeleteByBookingID(ctx context.Context, bookingID string) (int64, error)
	FindBookingSourced(ctx context.Context, limit int64) ([]*model.AvailabilitySlot, error)
	DeleteEndedBefore(ctx context.Context, sources []model.SlotSource, before time.Time) (int64, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoSlotRepository(cfg *config.Config) SlotRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSlotRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout bounds ctx by timeout unless it already belongs to a
// transaction, whose session context cannot be wrapped.
func (r *mongoSlotRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if mongotx.IsSessionContext(ctx) {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline && time.Until(deadline) < timeout {
		return context.WithDeadline(ctx, deadline)
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoSlotRepository) Create(ctx context.Context, slot *model.AvailabilitySlot) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if slot.ID == "" {
		slot.ID = primitive.NewObjectID().Hex()
	}
	if _, err := r.collection.InsertOne(ctx, slot); err != nil {
		return fmt.Errorf("failed to create availability slot: %w", err)
	}
	return nil
}

func (r *mongoSlotRepository) Update(ctx context.Context, slot *model.AvailabilitySlot) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := primitive.ObjectIDFromHex(slot.ID); err != nil {
		return fmt.Errorf("%w: %s", availabilityerrors.ErrInvalidID, slot.ID)
	}

	update := bson.M{"$set": bson.M{
		"start_at":   slot.StartAt,
		"end_at":     slot.EndAt,
		"slot_type":  slot.SlotType,
		"title":      slot.Title,
		"updated_at": slot.UpdatedAt,
	}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": slot.ID}, update)
	if err != nil {
		return fmt.Errorf("failed to update availability slot: %w", err)
	}
	if result.MatchedCount == 0 {
		return availabilityerrors.ErrNotFound
	}
	return nil
}

func (r *mongoSlotRepository) FindByID(ctx context.Context, id string) (*model.AvailabilitySlot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, fmt.Errorf("%w: %s", availabilityerrors.ErrInvalidID, id)
	}

	var slot model.AvailabilitySlot
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&slot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, availabilityerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find availability slot: %w", err)
	}
	return &slot, nil
}

func (r *mongoSlotRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return fmt.Errorf("%w: %s", availabilityerrors.ErrInvalidID, id)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete availability slot: %w", err)
	}
	if result.DeletedCount == 0 {
		return availabilityerrors.ErrNotFound
	}
	return nil
}

func (r *mongoSlotRepository) FindOverlapping(ctx context.Context, user model.UserRef, from, to time.Time, types []model.SlotType) ([]*model.AvailabilitySlot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	// a1 < b2 && b1 < a2
	filter := bson.M{
		"user_id":   user.ID,
		"user_type": user.Type,
		"start_at":  bson.M{"$lt": to},
		"end_at":    bson.M{"$gt": from},
	}
	if types != nil {
		filter["slot_type"] = bson.M{"$in": types}
	}

	opts := options.Find().SetSort(bson.D{{Key: "start_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find availability slots: %w", err)
	}
	defer cursor.Close(ctx)

	var slots []*model.AvailabilitySlot
	if err = cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("failed to decode availability slots: %w", err)
	}
	return slots, nil
}

func (r *mongoSlotRepository) FindIdentical(ctx context.Context, user model.UserRef, slotType model.SlotType, start, end time.Time) (*model.AvailabilitySlot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"user_id":   user.ID,
		"user_type": user.Type,
		"slot_type": slotType,
		"source":    model.SourceManual,
		"start_at":  start,
		"end_at":    end,
	}

	var slot model.AvailabilitySlot
	err := r.collection.FindOne(ctx, filter).Decode(&slot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, availabilityerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find availability slot: %w", err)
	}
	return &slot, nil
}

func (r *mongoSlotRepository) DeleteByBookingID(ctx context.Context, bookingID string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.DeleteMany(ctx, bson.M{"booking_id": bookingID, "source": model.SourceBooking})
	if err != nil {
		return 0, fmt.Errorf("failed to delete booking slots: %w", err)
	}
	return result.DeletedCount, nil
}

func (r *mongoSlotRepository) FindBookingSourced(ctx context.Context, limit int64) ([]*model.AvailabilitySlot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "start_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := r.collection.Find(ctx, bson.M{"source": model.SourceBooking}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find booking slots: %w", err)
	}
	defer cursor.Close(ctx)

	var slots []*model.AvailabilitySlot
	if err = cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("failed to decode booking slots: %w", err)
	}
	return slots, nil
}

func (r *mongoSlotRepository) DeleteEndedBefore(ctx context.Context, sources []model.SlotSource, before time.Time) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.DeleteMany(ctx, bson.M{
		"source": bson.M{"$in": sources},
		"end_at": bson.M{"$lt": before},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to purge availability slots: %w", err)
	}
	return result.DeletedCount, nil
}

func (r *mongoSlotRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
