package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "tourbook/internal/bookings/errors"
	"tourbook/pkg/config"
	mongotx "tourbook/pkg/db/mongo"
	"tourbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Bookings"
)

type mongoBookingRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	// FindByID skips soft-deleted bookings unless includeDeleted is set.
	FindByID(ctx context.Context, id string, includeDeleted bool) (*model.Booking, error)
	// Transition applies t only while the stored booking is active and its
	// status is one of t.From. Otherwise it returns ErrStaleState.
	Transition(ctx context.Context, id string, t model.BookingTransition, now time.Time) (*model.Booking, error)
	Find(ctx context.Context, filter model.BookingFilter) ([]*model.Booking, error)
	Count(ctx context.Context, filter model.BookingFilter) (int64, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout if not already in a transaction.
// A SessionContext cannot be wrapped without breaking transaction semantics.
func (r *mongoBookingRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if mongotx.IsSessionContext(ctx) {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if booking.ID == "" {
		booking.ID = primitive.NewObjectID().Hex()
	}
	if booking.AuditLog == nil {
		booking.AuditLog = []model.AuditEntry{}
	}
	if _, err := r.collection.InsertOne(ctx, booking); err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string, includeDeleted bool) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": id}
	if !includeDeleted {
		filter["deleted_at"] = nil
	}

	var booking model.Booking
	err := r.collection.FindOne(ctx, filter).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}

	return &booking, nil
}

func (r *mongoBookingRepository) Transition(ctx context.Context, id string, t model.BookingTransition, now time.Time) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"_id":        id,
		"status":     bson.M{"$in": t.From},
		"deleted_at": nil,
	}

	set := bson.M{
		"status":     t.To,
		"updated_at": now,
	}
	unset := bson.M{}
	if t.StartAt != nil {
		set["start_at"] = *t.StartAt
	}
	if t.EndAt != nil {
		set["end_at"] = *t.EndAt
	}
	if t.AssignedUser != nil {
		set["assigned_user"] = *t.AssignedUser
	}
	if t.ProposedSlots != nil {
		if len(*t.ProposedSlots) == 0 {
			unset["proposed_slots"] = ""
		} else {
			set["proposed_slots"] = *t.ProposedSlots
		}
	}
	if t.Deletion != nil {
		set["deleted_at"] = t.Deletion.At
		set["deletion_reason"] = t.Deletion.Reason
		set["deleted_by"] = t.Deletion.By
	}

	update := bson.M{
		"$set":  set,
		"$push": bson.M{"audit_log": t.Audit},
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var booking model.Booking
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrStaleState
		}
		return nil, fmt.Errorf("failed to transition booking: %w", err)
	}

	return &booking, nil
}

func (r *mongoBookingRepository) Find(ctx context.Context, filter model.BookingFilter) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "start_at", Value: 1}, {Key: "_id", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}
	if filter.Offset > 0 {
		opts.SetSkip(filter.Offset)
	}

	cursor, err := r.collection.Find(ctx, buildFilter(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}

	return bookings, nil
}

func (r *mongoBookingRepository) Count(ctx context.Context, filter model.BookingFilter) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, buildFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

// buildFilter translates a BookingFilter. Phone and Name are alternatives:
// a booking matches when either identifies its visitor.
func buildFilter(f model.BookingFilter) bson.M {
	filter := bson.M{}

	if f.UserRef != nil {
		filter["assigned_user.id"] = f.UserRef.ID
		filter["assigned_user.type"] = f.UserRef.Type
	}
	if f.PropertyID != "" {
		filter["property_id"] = f.PropertyID
	}
	if len(f.Status) > 0 {
		filter["status"] = bson.M{"$in": f.Status}
	}
	if !f.IncludeDeleted {
		filter["deleted_at"] = nil
	}

	var identity []bson.M
	if f.Phone != "" {
		identity = append(identity, bson.M{"visitor.phone": f.Phone})
	}
	if f.NameKey != "" {
		identity = append(identity, bson.M{"visitor.name_key": f.NameKey})
	}
	if len(identity) > 0 {
		filter["$or"] = identity
	}

	return filter
}

func (r *mongoBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
