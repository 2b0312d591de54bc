package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	assignmentserrors "tourbook/internal/assignments/errors"
	"tourbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AssignmentRepository struct {
	mu   sync.Mutex
	rows []model.PropertyAssignment
}

func NewAssignmentRepository() *AssignmentRepository {
	return &AssignmentRepository{}
}

func (r *AssignmentRepository) Append(_ context.Context, row *model.PropertyAssignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if row.ID == "" {
		row.ID = primitive.NewObjectID().Hex()
	}
	r.rows = append(r.rows, *row)
	return nil
}

func (r *AssignmentRepository) LatestAt(_ context.Context, propertyID string, at time.Time) (*model.PropertyAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var latest *model.PropertyAssignment
	for i := range r.rows {
		row := r.rows[i]
		if row.PropertyID != propertyID || row.Timestamp.After(at) {
			continue
		}
		if latest == nil || !row.Timestamp.Before(latest.Timestamp) {
			latest = &row
		}
	}
	if latest == nil {
		return nil, assignmentserrors.ErrNoAssignment
	}
	return latest, nil
}

func (r *AssignmentRepository) History(_ context.Context, propertyID string) ([]*model.PropertyAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.PropertyAssignment
	for i := range r.rows {
		if r.rows[i].PropertyID == propertyID {
			row := r.rows[i]
			out = append(out, &row)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

type PropertyRepository struct {
	mu         sync.Mutex
	properties map[string]model.Property
}

// NewPropertyRepository seeds the directory with the given properties.
func NewPropertyRepository(properties ...model.Property) *PropertyRepository {
	r := &PropertyRepository{properties: make(map[string]model.Property)}
	for _, p := range properties {
		r.properties[p.ID] = p
	}
	return r
}

func (r *PropertyRepository) FindByID(_ context.Context, id string) (*model.Property, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.properties[id]
	if !ok {
		return nil, assignmentserrors.ErrPropertyNotFound
	}
	return &p, nil
}

// Properties used across service tests. Both are owned by Manager.
var (
	Loft    = model.Property{ID: "prop-loft", Name: "Harbor View Loft", Address: "12 Pier St", OwnerUserID: Manager.ID}
	Cottage = model.Property{ID: "prop-cottage", Name: "Maple Cottage", Address: "4 Elm Rd", OwnerUserID: Manager.ID}
)
