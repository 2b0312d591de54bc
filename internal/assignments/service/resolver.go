package service

import (
	"context"
	"errors"
	"strings"
	"time"

	assignmentserrors "tourbook/internal/assignments/errors"
	"tourbook/internal/assignments/repository"
	"tourbook/pkg/clock"
	"tourbook/pkg/config"
	apperrors "tourbook/pkg/errors"
	"tourbook/pkg/model"
	"tourbook/pkg/retry"
)

// Resolver answers who may approve tours of a property, now or at any past
// instant, from the append-only assignment ledger.
type Resolver interface {
	ResolveApprover(ctx context.Context, propertyID string) (model.UserRef, error)
	ApproverAt(ctx context.Context, propertyID string, at time.Time) (model.UserRef, error)
	Reassign(ctx context.Context, actor model.Actor, propertyID string, to model.UserRef, reason string) (*model.PropertyAssignment, error)
	History(ctx context.Context, propertyID string) ([]*model.PropertyAssignment, error)
	Property(ctx context.Context, propertyID string) (*model.Property, error)
}

type resolver struct {
	ledger     repository.AssignmentRepository
	properties repository.PropertyRepository
	clock      clock.Clock
	cfg        *config.Config
}

func NewResolver(ledger repository.AssignmentRepository, properties repository.PropertyRepository, clk clock.Clock, cfg *config.Config) Resolver {
	return &resolver{
		ledger:     ledger,
		properties: properties,
		clock:      clk,
		cfg:        cfg,
	}
}

func (r *resolver) Property(ctx context.Context, propertyID string) (*model.Property, error) {
	if strings.TrimSpace(propertyID) == "" {
		return nil, apperrors.InvalidInput("property_id is required")
	}

	property, err := retry.DoValue(ctx, r.cfg.RetryPolicy(), func(ctx context.Context) (*model.Property, error) {
		return r.properties.FindByID(ctx, propertyID)
	})
	if err != nil {
		if errors.Is(err, assignmentserrors.ErrPropertyNotFound) {
			return nil, apperrors.NotFoundWithID("Property", propertyID)
		}
		r.cfg.Log.Error("Failed to load property", "property_id", propertyID, "error", err)
		return nil, retry.ToAppError("Property directory", err)
	}
	return property, nil
}

func (r *resolver) ResolveApprover(ctx context.Context, propertyID string) (model.UserRef, error) {
	return r.ApproverAt(ctx, propertyID, r.clock.Now())
}

func (r *resolver) ApproverAt(ctx context.Context, propertyID string, at time.Time) (model.UserRef, error) {
	property, err := r.Property(ctx, propertyID)
	if err != nil {
		return model.UserRef{}, err
	}

	row, err := retry.DoValue(ctx, r.cfg.RetryPolicy(), func(ctx context.Context) (*model.PropertyAssignment, error) {
		return r.ledger.LatestAt(ctx, propertyID, at.UTC())
	})
	switch {
	case err == nil:
		return row.ToUser, nil
	case errors.Is(err, assignmentserrors.ErrNoAssignment):
		return ownerOf(property), nil
	default:
		r.cfg.Log.Error("Failed to read assignment ledger", "property_id", propertyID, "error", err)
		return model.UserRef{}, retry.ToAppError("Assignment ledger", err)
	}
}

func (r *resolver) Reassign(ctx context.Context, actor model.Actor, propertyID string, to model.UserRef, reason string) (*model.PropertyAssignment, error) {
	if to.ID == "" || !to.Type.Valid() {
		return nil, apperrors.Validation("to_user requires id and type (manager|agent)", nil)
	}

	property, err := r.Property(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	current, err := r.ResolveApprover(ctx, propertyID)
	if err != nil {
		return nil, err
	}

	if actor.Kind != model.ActorSystem && !actor.Is(current) && !actor.Is(ownerOf(property)) {
		r.cfg.Log.Warn("Reassignment refused", "property_id", propertyID, "actor", actor.Key())
		return nil, apperrors.Forbidden("Only the current approver or the property owner may reassign")
	}

	row := &model.PropertyAssignment{
		PropertyID: propertyID,
		FromUser:   &current,
		ToUser:     to,
		Reason:     reason,
		ChangedBy:  actor.Key(),
		Timestamp:  r.clock.Now(),
	}
	err = retry.Do(ctx, r.cfg.RetryPolicy(), func(ctx context.Context) error {
		return r.ledger.Append(ctx, row)
	})
	if err != nil {
		r.cfg.Log.Error("Failed to append assignment", "property_id", propertyID, "error", err)
		return nil, retry.ToAppError("Assignment ledger", err)
	}

	r.cfg.Log.Info("Property reassigned",
		"property_id", propertyID,
		"from", current.Key(),
		"to", to.Key(),
		"changed_by", row.ChangedBy,
	)
	return row, nil
}

func (r *resolver) History(ctx context.Context, propertyID string) ([]*model.PropertyAssignment, error) {
	if _, err := r.Property(ctx, propertyID); err != nil {
		return nil, err
	}

	rows, err := retry.DoValue(ctx, r.cfg.RetryPolicy(), func(ctx context.Context) ([]*model.PropertyAssignment, error) {
		return r.ledger.History(ctx, propertyID)
	})
	if err != nil {
		return nil, retry.ToAppError("Assignment ledger", err)
	}
	if rows == nil {
		rows = []*model.PropertyAssignment{}
	}
	return rows, nil
}

func ownerOf(p *model.Property) model.UserRef {
	return model.UserRef{ID: p.OwnerUserID, Type: model.UserTypeManager}
}
