package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	assignments "tourbook/internal/assignments/service"
	availability "tourbook/internal/availability/service"
	bookingserrors "tourbook/internal/bookings/errors"
	"tourbook/internal/bookings/repository"
	"tourbook/internal/bookings/validator"
	"tourbook/internal/notifications"
	"tourbook/internal/suggest"
	"tourbook/pkg/clock"
	"tourbook/pkg/config"
	apperrors "tourbook/pkg/errors"
	"tourbook/pkg/lock"
	"tourbook/pkg/metrics"
	"tourbook/pkg/model"
	"tourbook/pkg/ratelimit"
	"tourbook/pkg/retry"
	"tourbook/pkg/sanitizer"
	"tourbook/pkg/validation"
)

// staleRetries bounds how often a transition re-reads a booking whose status
// changed underneath it.
const staleRetries = 3

type BookingService interface {
	Create(ctx context.Context, actor model.Actor, req *model.BookingRequest) (*model.Booking, error)
	Validate(ctx context.Context, req *model.AvailabilityCheck) (*ValidationResult, error)
	CreateManual(ctx context.Context, actor model.Actor, req *model.BookingRequest) (*model.Booking, error)
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	GetAuditTrail(ctx context.Context, id string) (*model.Booking, error)
	List(ctx context.Context, filter model.BookingFilter) ([]*model.Booking, int64, error)

	Approve(ctx context.Context, id string, actor model.Actor, slot *model.Interval) (*model.Booking, error)
	Deny(ctx context.Context, id string, actor model.Actor, reason string) (*model.Booking, error)
	Reschedule(ctx context.Context, id string, actor model.Actor, candidates []model.Interval, reason string) (*model.Booking, error)
	Cancel(ctx context.Context, id string, actor model.Actor, reason string) (*model.Booking, error)
	ConfirmProposedSlot(ctx context.Context, id string, actor model.Actor, index int) (*model.Booking, error)

	LookupByVisitor(ctx context.Context, q model.VisitorQuery) ([]*model.Booking, error)
	CancelByVisitor(ctx context.Context, actor model.Actor, q model.VisitorQuery, reason string) ([]*model.Booking, error)

	Hygiene(ctx context.Context) (*HygieneReport, error)
}

// ValidationResult answers validateTourRequest.
type ValidationResult struct {
	IsAvailable     bool                `json:"is_available"`
	Reason          availability.Reason `json:"reason,omitempty"`
	Approver        model.UserRef       `json:"approver"`
	SuggestedSlots  []model.Interval    `json:"suggested_slots"`
	HasAvailability bool                `json:"has_availability"`
}

type HygieneReport struct {
	OrphanSlotsRemoved int64 `json:"orphan_slots_removed"`
	ExpiredSlotsPurged int64 `json:"expired_slots_purged"`
}

// Deps are the collaborators of the booking state machine.
type Deps struct {
	Repo      repository.BookingRepository
	Store     availability.Store
	Checker   availability.Checker
	Resolver  assignments.Resolver
	Suggester suggest.Suggester
	Locker    lock.Locker
	Limiter   *ratelimit.Limiter
	Events    notifications.Emitter
	Validator *validator.BookingValidator
	Clock     clock.Clock
}

type bookingService struct {
	repo      repository.BookingRepository
	store     availability.Store
	checker   availability.Checker
	resolver  assignments.Resolver
	suggester suggest.Suggester
	locker    lock.Locker
	limiter   *ratelimit.Limiter
	events    notifications.Emitter
	validator *validator.BookingValidator
	clock     clock.Clock
	cfg       *config.Config
}

func NewBookingService(deps Deps, cfg *config.Config) BookingService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.System()
	}
	return &bookingService{
		repo:      deps.Repo,
		store:     deps.Store,
		checker:   deps.Checker,
		resolver:  deps.Resolver,
		suggester: deps.Suggester,
		locker:    deps.Locker,
		limiter:   deps.Limiter,
		events:    deps.Events,
		validator: deps.Validator,
		clock:     clk,
		cfg:       cfg,
	}
}

func (s *bookingService) Create(ctx context.Context, actor model.Actor, req *model.BookingRequest) (b *model.Booking, err error) {
	defer func() { metrics.ObserveTransition("create", err) }()

	if err := s.allow(actor); err != nil {
		return nil, err
	}
	booking, err := s.buildBooking(ctx, actor, req)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	booking.Status = model.StatusPending
	booking.AuditLog = []model.AuditEntry{{
		At:     now,
		Actor:  actor.Key(),
		Action: model.ActionCreated,
		Detail: map[string]any{"created_by": string(booking.CreatedBy)},
	}}

	err = retry.Do(ctx, s.cfg.RetryPolicy(), func(ctx context.Context) error {
		return s.repo.Create(ctx, booking)
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create booking",
			"property_id", booking.PropertyID,
			"error", err,
		)
		return nil, retry.ToAppError("Booking storage", err)
	}

	s.cfg.Log.Info("Booking request created",
		"booking_id", booking.ID,
		"property_id", booking.PropertyID,
		"assigned_user", booking.AssignedUser.Key(),
		"start_at", booking.StartAt,
		"end_at", booking.EndAt,
		"created_by", booking.CreatedBy,
	)
	s.emit(notifications.EventCreated, booking, actor, "")
	return booking, nil
}

// buildBooking validates req and resolves everything a new booking needs,
// except its status and audit log.
func (s *bookingService) buildBooking(ctx context.Context, actor model.Actor, req *model.BookingRequest) (*model.Booking, error) {
	if req == nil {
		return nil, apperrors.InvalidInput("request body is required")
	}
	if err := s.validator.Struct(req); err != nil {
		s.cfg.Log.Warn("Booking request validation failed", "actor", actor.Key(), "error", err)
		return nil, validation.ToAppError(err)
	}

	interval, err := s.validator.ParseInterval(req.StartAt, req.EndAt)
	if err != nil {
		return nil, validation.ToAppError(err)
	}
	if rejection := s.timeWindow(interval).Rejection(); rejection != nil {
		s.cfg.Log.Warn("Booking request outside bookable window",
			"property_id", req.PropertyID,
			"start_at", interval.StartAt,
			"reason", rejection.Details["reason"],
		)
		return nil, rejection
	}

	visitor := req.Visitor
	if visitor.Phone == "" && actor.Kind == model.ActorVisitor {
		visitor.Phone = actor.Phone
	}
	if visitor.Name == "" && actor.Kind == model.ActorVisitor {
		visitor.Name = actor.Name
	}
	if err := s.validator.NormalizeVisitor(&visitor); err != nil {
		return nil, validation.ToAppError(err)
	}

	approver, err := s.resolver.ResolveApprover(ctx, req.PropertyID)
	if err != nil {
		return nil, err
	}

	timeZone := req.TimeZone
	if timeZone == "" {
		timeZone = s.cfg.DefaultTimeZone
	}
	createdBy := req.CreatedBy
	if createdBy == "" {
		createdBy = model.CreatedByDashboard
		if actor.Kind == model.ActorVisitor {
			createdBy = model.CreatedByVoiceAgent
		}
	}
	callerStart, callerEnd := req.CallerStart, req.CallerEnd
	if callerStart == "" {
		callerStart = req.StartAt
	}
	if callerEnd == "" {
		callerEnd = req.EndAt
	}

	now := s.clock.Now()
	booking := &model.Booking{
		PropertyID:   req.PropertyID,
		AssignedUser: approver,
		Visitor:      visitor,
		RequestedAt:  now,
		StartAt:      interval.StartAt,
		EndAt:        interval.EndAt,
		TimeZone:     timeZone,
		CallerStart:  callerStart,
		CallerEnd:    callerEnd,
		CreatedBy:    createdBy,
		Notes:        strings.TrimSpace(req.Notes),
		UpdatedAt:    now,
	}
	if err := s.validator.Validate(booking); err != nil {
		return nil, validation.ToAppError(err)
	}
	return booking, nil
}

func (s *bookingService) Validate(ctx context.Context, req *model.AvailabilityCheck) (*ValidationResult, error) {
	if req == nil {
		return nil, apperrors.InvalidInput("request body is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validation.ToAppError(err)
	}
	interval, err := s.validator.ParseInterval(req.StartAt, req.EndAt)
	if err != nil {
		return nil, validation.ToAppError(err)
	}

	approver, err := s.resolver.ResolveApprover(ctx, req.PropertyID)
	if err != nil {
		return nil, err
	}

	verdict, err := s.checker.Check(ctx, approver, interval.StartAt, interval.EndAt)
	if err != nil {
		return nil, err
	}

	result := &ValidationResult{
		IsAvailable:     verdict.Available,
		Reason:          verdict.Reason,
		Approver:        approver,
		SuggestedSlots:  []model.Interval{},
		HasAvailability: verdict.Available,
	}
	if verdict.Available {
		return result, nil
	}

	metrics.IncConflict("validate", string(verdict.Reason))
	suggestions, err := s.suggester.Suggest(ctx, approver, interval.StartAt, interval.EndAt, s.cfg.MaxSuggestions)
	if err != nil {
		return nil, err
	}
	result.SuggestedSlots = suggestions.Slots
	result.HasAvailability = suggestions.HasAvailability
	return result, nil
}

func (s *bookingService) CreateManual(ctx context.Context, actor model.Actor, req *model.BookingRequest) (b *model.Booking, err error) {
	defer func() { metrics.ObserveTransition("create_manual", err) }()

	if err := s.allow(actor); err != nil {
		return nil, err
	}
	if _, ok := actor.User(); !ok {
		return nil, apperrors.Forbidden("Manual bookings are created by the property's approver")
	}
	if req != nil && req.CreatedBy == "" {
		req.CreatedBy = model.CreatedByDashboard
	}

	booking, err := s.buildBooking(ctx, actor, req)
	if err != nil {
		return nil, err
	}
	approver := booking.AssignedUser
	if !actor.Is(approver) {
		s.cfg.Log.Warn("Manual booking refused", "actor", actor.Key(), "approver", approver.Key(), "property_id", booking.PropertyID)
		return nil, apperrors.Forbidden("Only the property's approver may create manual bookings")
	}

	var verdict availability.Verdict
	err = lock.Within(ctx, s.locker, approver.Key(), func(ctx context.Context) error {
		verdict, err = s.checker.Check(ctx, approver, booking.StartAt, booking.EndAt)
		if err != nil || !verdict.Available {
			return err
		}

		now := s.clock.Now()
		booking.Status = model.StatusApproved
		booking.AuditLog = []model.AuditEntry{
			{At: now, Actor: actor.Key(), Action: model.ActionCreated, Detail: map[string]any{"created_by": string(booking.CreatedBy)}},
			{At: now, Actor: actor.Key(), Action: model.ActionApproved, Detail: map[string]any{"manual": true}},
		}
		return s.repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
			if err := s.repo.Create(ctx, booking); err != nil {
				return err
			}
			_, err := s.store.Hold(ctx, booking)
			return err
		})
	})
	if err != nil {
		return nil, s.mapError(err, "create_manual", "")
	}
	if !verdict.Available {
		return nil, s.conflict(ctx, "create_manual", approver, booking.Interval(), verdict)
	}

	s.cfg.Log.Info("Manual booking created",
		"booking_id", booking.ID,
		"property_id", booking.PropertyID,
		"assigned_user", approver.Key(),
		"start_at", booking.StartAt,
		"end_at", booking.EndAt,
	)
	s.emit(notifications.EventCreated, booking, actor, "")
	s.emit(notifications.EventApproved, booking, actor, "")
	return booking, nil
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	return s.find(ctx, id, false)
}

// GetAuditTrail returns the booking with its full history, soft-deleted or not.
func (s *bookingService) GetAuditTrail(ctx context.Context, id string) (*model.Booking, error) {
	return s.find(ctx, id, true)
}

func (s *bookingService) find(ctx context.Context, id string, includeDeleted bool) (*model.Booking, error) {
	booking, err := retry.DoValue(ctx, s.cfg.RetryPolicy(), func(ctx context.Context) (*model.Booking, error) {
		return s.repo.FindByID(ctx, id, includeDeleted)
	})
	if err != nil {
		return nil, s.mapError(err, "get", id)
	}
	return booking, nil
}

func (s *bookingService) List(ctx context.Context, filter model.BookingFilter) ([]*model.Booking, int64, error) {
	filter.Limit = int64(config.NormalizePaginationLimit(int(filter.Limit)))
	filter.Offset = config.NormalizeOffset(filter.Offset)

	bookings, err := retry.DoValue(ctx, s.cfg.RetryPolicy(), func(ctx context.Context) ([]*model.Booking, error) {
		return s.repo.Find(ctx, filter)
	})
	if err != nil {
		return nil, 0, s.mapError(err, "list", "")
	}
	total, err := retry.DoValue(ctx, s.cfg.RetryPolicy(), func(ctx context.Context) (int64, error) {
		return s.repo.Count(ctx, filter)
	})
	if err != nil {
		return nil, 0, s.mapError(err, "count", "")
	}
	if bookings == nil {
		bookings = []*model.Booking{}
	}
	return bookings, total, nil
}

func (s *bookingService) Approve(ctx context.Context, id string, actor model.Actor, slot *model.Interval) (b *model.Booking, err error) {
	defer func() { metrics.ObserveTransition("approve", err) }()

	if err := s.allow(actor); err != nil {
		return nil, err
	}
	booking, err := s.find(ctx, id, false)
	if err != nil {
		return nil, err
	}
	approver, err := s.authorizeApprover(ctx, booking, actor, "approve")
	if err != nil {
		return nil, err
	}
	return s.approve(ctx, booking.ID, actor, approver, slot)
}

// approve runs the check-then-write inside the approver's serializing scope.
// The booking is re-read there so the status check and the availability
// check see the latest state.
func (s *bookingService) approve(ctx context.Context, id string, actor model.Actor, approver model.UserRef, slot *model.Interval) (*model.Booking, error) {
	var (
		approved *model.Booking
		target   model.Interval
		verdict  availability.Verdict
	)

	err := lock.Within(ctx, s.locker, approver.Key(), func(ctx context.Context) error {
		current, err := s.repo.FindByID(ctx, id, false)
		if err != nil {
			return err
		}
		if !current.Status.CanTransition(model.StatusApproved) {
			return invalidTransition(current.Status, model.StatusApproved)
		}

		target = current.Interval()
		switch {
		case current.Status == model.StatusRescheduled:
			if slot == nil || !current.HasProposal(*slot) {
				return apperrors.Validation("Choose one of the proposed slots to approve a rescheduled booking",
					map[string]any{"proposed_slots": current.ProposedSlots})
			}
			target = model.NewInterval(slot.StartAt, slot.EndAt)
		case slot != nil && !slot.Equal(target):
			return apperrors.Validation("A pending booking is approved at its requested time", nil)
		}

		verdict, err = s.checker.Check(ctx, approver, target.StartAt, target.EndAt)
		if err != nil || !verdict.Available {
			return err
		}

		detail := map[string]any{
			"from_status": string(current.Status),
			"start_at":    target.StartAt,
			"end_at":      target.EndAt,
		}
		if len(current.ProposedSlots) > 0 {
			detail["proposed_slots"] = current.ProposedSlots
		}
		start, end := target.StartAt, target.EndAt
		cleared := []model.Interval{}
		t := model.BookingTransition{
			From:          []model.BookingStatus{current.Status},
			To:            model.StatusApproved,
			StartAt:       &start,
			EndAt:         &end,
			AssignedUser:  &approver,
			ProposedSlots: &cleared,
			Audit: model.AuditEntry{
				At:     s.clock.Now(),
				Actor:  actor.Key(),
				Action: model.ActionApproved,
				Detail: detail,
			},
		}

		return s.repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
			updated, err := s.repo.Transition(ctx, id, t, s.clock.Now())
			if err != nil {
				return err
			}
			if _, err := s.store.Hold(ctx, updated); err != nil {
				return err
			}
			approved = updated
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, bookingserrors.ErrStaleState) {
			return nil, s.staleConflict(ctx, id)
		}
		return nil, s.mapError(err, "approve", id)
	}
	if !verdict.Available {
		return nil, s.conflict(ctx, "approve", approver, target, verdict)
	}

	s.cfg.Log.Info("Booking approved",
		"booking_id", approved.ID,
		"approver", approver.Key(),
		"start_at", approved.StartAt,
		"end_at", approved.EndAt,
	)
	s.emit(notifications.EventApproved, approved, actor, "")
	return approved, nil
}

func (s *bookingService) Deny(ctx context.Context, id string, actor model.Actor, reason string) (b *model.Booking, err error) {
	defer func() { metrics.ObserveTransition("deny", err) }()

	if err := s.allow(actor); err != nil {
		return nil, err
	}
	booking, err := s.find(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorizeApprover(ctx, booking, actor, "deny"); err != nil {
		return nil, err
	}
	if !booking.Status.CanTransition(model.StatusDenied) {
		return nil, invalidTransition(booking.Status, model.StatusDenied)
	}

	t := model.BookingTransition{
		From: []model.BookingStatus{booking.Status},
		To:   model.StatusDenied,
		Audit: model.AuditEntry{
			At:     s.clock.Now(),
			Actor:  actor.Key(),
			Action: model.ActionDenied,
			Detail: reasonDetail(reason),
		},
	}
	denied, err := s.repo.Transition(ctx, booking.ID, t, s.clock.Now())
	if err != nil {
		if errors.Is(err, bookingserrors.ErrStaleState) {
			return nil, s.staleConflict(ctx, id)
		}
		return nil, s.mapError(err, "deny", id)
	}

	s.cfg.Log.Info("Booking denied", "booking_id", denied.ID, "actor", actor.Key(), "reason", reason)
	s.emit(notifications.EventDenied, denied, actor, reason)
	return denied, nil
}

func (s *bookingService) Reschedule(ctx context.Context, id string, actor model.Actor, candidates []model.Interval, reason string) (b *model.Booking, err error) {
	defer func() { metrics.ObserveTransition("reschedule", err) }()

	if err := s.allow(actor); err != nil {
		return nil, err
	}
	if len(candidates) < 1 || len(candidates) > 3 {
		return nil, apperrors.Validation("Propose between one and three candidate slots", map[string]any{"count": len(candidates)})
	}

	booking, err := s.find(ctx, id, false)
	if err != nil {
		return nil, err
	}
	approver, err := s.authorizeApprover(ctx, booking, actor, "reschedule")
	if err != nil {
		return nil, err
	}
	if !booking.Status.CanTransition(model.StatusRescheduled) {
		return nil, invalidTransition(booking.Status, model.StatusRescheduled)
	}

	proposed := make([]model.Interval, 0, len(candidates))
	for i, c := range candidates {
		field := fmt.Sprintf("candidates[%d]", i)
		if err := s.validator.ValidateInterval(field, c); err != nil {
			return nil, validation.ToAppError(err)
		}
		interval := model.NewInterval(c.StartAt, c.EndAt)
		verdict, err := s.checker.Check(ctx, approver, interval.StartAt, interval.EndAt)
		if err != nil {
			return nil, err
		}
		if !verdict.Available {
			return nil, s.conflict(ctx, "reschedule", approver, interval, verdict)
		}
		proposed = append(proposed, interval)
	}

	detail := reasonDetail(reason)
	detail["proposed_slots"] = proposed
	t := model.BookingTransition{
		From:          []model.BookingStatus{booking.Status},
		To:            model.StatusRescheduled,
		AssignedUser:  &approver,
		ProposedSlots: &proposed,
		Audit: model.AuditEntry{
			At:     s.clock.Now(),
			Actor:  actor.Key(),
			Action: model.ActionRescheduled,
			Detail: detail,
		},
	}
	rescheduled, err := s.repo.Transition(ctx, booking.ID, t, s.clock.Now())
	if err != nil {
		if errors.Is(err, bookingserrors.ErrStaleState) {
			return nil, s.staleConflict(ctx, id)
		}
		return nil, s.mapError(err, "reschedule", id)
	}

	s.cfg.Log.Info("Booking rescheduled",
		"booking_id", rescheduled.ID,
		"actor", actor.Key(),
		"candidates", len(proposed),
	)
	s.emit(notifications.EventRescheduled, rescheduled, actor, reason)
	return rescheduled, nil
}

// Cancel is idempotent: an already cancelled booking is returned unchanged.
// An approved booking loses its calendar slot in the same transaction.
func (s *bookingService) Cancel(ctx context.Context, id string, actor model.Actor, reason string) (b *model.Booking, err error) {
	defer func() { metrics.ObserveTransition("cancel", err) }()

	if err := s.allow(actor); err != nil {
		return nil, err
	}
	return s.cancel(ctx, id, actor, reason)
}

// cancel runs the cancellation without charging the state-change limiter.
func (s *bookingService) cancel(ctx context.Context, id string, actor model.Actor, reason string) (*model.Booking, error) {
	for attempt := 0; attempt < staleRetries; attempt++ {
		booking, err := s.find(ctx, id, true)
		if err != nil {
			return nil, err
		}
		if err := s.authorizeCancel(ctx, booking, actor); err != nil {
			return nil, err
		}
		if booking.Status == model.StatusCancelled {
			s.cfg.Log.Info("Booking already cancelled", "booking_id", booking.ID, "actor", actor.Key())
			return booking, nil
		}
		if booking.Deleted() {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		if !booking.Status.CanTransition(model.StatusCancelled) {
			return nil, invalidTransition(booking.Status, model.StatusCancelled)
		}

		now := s.clock.Now()
		t := model.BookingTransition{
			From:     []model.BookingStatus{booking.Status},
			To:       model.StatusCancelled,
			Deletion: &model.Deletion{At: now, Reason: reason, By: actor.Key()},
			Audit: model.AuditEntry{
				At:     now,
				Actor:  actor.Key(),
				Action: model.ActionCancelled,
				Detail: map[string]any{"from_status": string(booking.Status), "reason": reason},
			},
		}

		var cancelled *model.Booking
		err = s.repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
			if booking.Status == model.StatusApproved {
				if _, err := s.store.Release(ctx, booking.ID); err != nil {
					return err
				}
			}
			updated, err := s.repo.Transition(ctx, booking.ID, t, now)
			if err != nil {
				return err
			}
			cancelled = updated
			return nil
		})
		if errors.Is(err, bookingserrors.ErrStaleState) {
			continue
		}
		if err != nil {
			return nil, s.mapError(err, "cancel", id)
		}

		s.cfg.Log.Info("Booking cancelled",
			"booking_id", cancelled.ID,
			"actor", actor.Key(),
			"from_status", booking.Status,
			"reason", reason,
		)
		s.emit(notifications.EventCancelled, cancelled, actor, reason)
		return cancelled, nil
	}

	return nil, apperrors.Busy("Booking is changing, please retry")
}

// ConfirmProposedSlot picks one of a rescheduled booking's candidates. Either
// the approver or the visitor may confirm.
func (s *bookingService) ConfirmProposedSlot(ctx context.Context, id string, actor model.Actor, index int) (b *model.Booking, err error) {
	defer func() { metrics.ObserveTransition("confirm", err) }()

	if err := s.allow(actor); err != nil {
		return nil, err
	}
	booking, err := s.find(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if booking.Status != model.StatusRescheduled {
		return nil, invalidTransition(booking.Status, model.StatusApproved).
			WithDetails(map[string]any{"hint": "only rescheduled bookings have proposed slots"})
	}
	if index < 0 || index >= len(booking.ProposedSlots) {
		return nil, apperrors.Validation("Proposed slot index is out of range",
			map[string]any{"index": index, "proposed": len(booking.ProposedSlots)})
	}

	approver, err := s.resolver.ResolveApprover(ctx, booking.PropertyID)
	if err != nil {
		return nil, err
	}
	if !actor.Is(approver) && !visitorMatches(actor, booking) && actor.Kind != model.ActorSystem {
		s.cfg.Log.Warn("Slot confirmation refused", "booking_id", id, "actor", actor.Key())
		return nil, apperrors.Forbidden("Only the approver or the visitor may confirm a proposed slot")
	}

	slot := booking.ProposedSlots[index]
	return s.approve(ctx, booking.ID, actor, approver, &slot)
}

func (s *bookingService) LookupByVisitor(ctx context.Context, q model.VisitorQuery) ([]*model.Booking, error) {
	if err := s.validator.Struct(&q); err != nil {
		return nil, validation.ToAppError(err)
	}

	filter := model.BookingFilter{
		NameKey: sanitizer.FoldName(q.Name),
		Status:  q.Status,
	}
	if strings.TrimSpace(q.Phone) != "" {
		phone, err := sanitizer.NormalizePhone(q.Phone)
		if err != nil {
			return nil, apperrors.Validation("phone is not a valid phone number", map[string]any{"phone": q.Phone})
		}
		filter.Phone = phone
	}
	if filter.Phone == "" && filter.NameKey == "" {
		return nil, apperrors.Validation("visitor phone or name is required", nil)
	}

	bookings, err := retry.DoValue(ctx, s.cfg.RetryPolicy(), func(ctx context.Context) ([]*model.Booking, error) {
		return s.repo.Find(ctx, filter)
	})
	if err != nil {
		return nil, s.mapError(err, "lookup", "")
	}

	if strings.TrimSpace(q.Property) != "" {
		bookings, err = s.narrowByProperty(ctx, bookings, q.Property)
		if err != nil {
			return nil, err
		}
	}
	if bookings == nil {
		bookings = []*model.Booking{}
	}
	return bookings, nil
}

func (s *bookingService) narrowByProperty(ctx context.Context, bookings []*model.Booking, query string) ([]*model.Booking, error) {
	names := make(map[string]bool)
	var out []*model.Booking
	for _, b := range bookings {
		match, seen := names[b.PropertyID]
		if !seen {
			property, err := s.resolver.Property(ctx, b.PropertyID)
			switch {
			case apperrors.HasCode(err, apperrors.CodeNotFound):
				match = false
			case err != nil:
				return nil, err
			default:
				match = sanitizer.FuzzyMatch(query, property.Name) || sanitizer.FuzzyMatch(query, property.Address)
			}
			names[b.PropertyID] = match
		}
		if match {
			out = append(out, b)
		}
	}
	return out, nil
}

// CancelByVisitor cancels every active booking matching the visitor identity.
// Visitors reached by phone may only cancel bookings their number or the
// given name identifies.
func (s *bookingService) CancelByVisitor(ctx context.Context, actor model.Actor, q model.VisitorQuery, reason string) ([]*model.Booking, error) {
	proof := actor
	if actor.Kind == model.ActorVisitor {
		q.Phone = actor.Phone
		if q.Name != "" {
			proof.Name = sanitizer.NormalizeName(q.Name)
		}
	}
	q.Status = model.SourcesFor(model.StatusCancelled)

	matches, err := s.LookupByVisitor(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, apperrors.NotFound("Active booking for this visitor")
	}

	// One visitor request is one state change, however many bookings match.
	if err := s.allow(actor); err != nil {
		return nil, err
	}

	cancelled := make([]*model.Booking, 0, len(matches))
	for _, b := range matches {
		c, err := s.cancel(ctx, b.ID, proof, reason)
		metrics.ObserveTransition("cancel", err)
		if err != nil {
			return cancelled, partialCancel(err, cancelled)
		}
		cancelled = append(cancelled, c)
	}

	s.cfg.Log.Info("Visitor bookings cancelled", "actor", actor.Key(), "count", len(cancelled))
	return cancelled, nil
}

// Hygiene removes booking slots whose booking is no longer approved and
// purges manual and system slots past the retention period.
func (s *bookingService) Hygiene(ctx context.Context) (*HygieneReport, error) {
	report := &HygieneReport{}

	slots, err := s.store.BookingSlots(ctx)
	if err != nil {
		return nil, err
	}
	checked := make(map[string]bool)
	for _, slot := range slots {
		if checked[slot.BookingID] {
			continue
		}
		checked[slot.BookingID] = true

		booking, err := s.repo.FindByID(ctx, slot.BookingID, true)
		switch {
		case errors.Is(err, bookingserrors.ErrNotFound), errors.Is(err, bookingserrors.ErrInvalidID):
		case err != nil:
			return nil, s.mapError(err, "hygiene", slot.BookingID)
		case booking.Status == model.StatusApproved && !booking.Deleted():
			continue
		}

		n, err := s.store.Release(ctx, slot.BookingID)
		if err != nil {
			return nil, s.mapError(err, "hygiene", slot.BookingID)
		}
		report.OrphanSlotsRemoved += n
		s.cfg.Log.Warn("Removed orphaned booking slot", "booking_id", slot.BookingID, "slots", n)
	}

	purged, err := s.store.Purge(ctx, s.clock.Now().Add(-s.cfg.SlotRetention))
	if err != nil {
		return nil, err
	}
	report.ExpiredSlotsPurged = purged

	s.cfg.Log.Info("Slot hygiene completed",
		"orphans_removed", report.OrphanSlotsRemoved,
		"expired_purged", report.ExpiredSlotsPurged,
	)
	return report, nil
}

func (s *bookingService) allow(actor model.Actor) error {
	if s.limiter == nil || actor.Kind == model.ActorSystem {
		return nil
	}
	if !s.limiter.Allow(actor.Key()) {
		s.cfg.Log.Warn("State change rate limit exceeded", "actor", actor.Key())
		return apperrors.RateLimited("Too many booking changes, please wait before trying again")
	}
	return nil
}

// timeWindow applies the past and horizon rules without touching storage.
func (s *bookingService) timeWindow(i model.Interval) availability.Verdict {
	return availability.NewSnapshot(s.clock.Now(), s.cfg.BookingHorizon, nil).Check(i.StartAt, i.EndAt)
}

func (s *bookingService) authorizeApprover(ctx context.Context, b *model.Booking, actor model.Actor, op string) (model.UserRef, error) {
	approver, err := s.resolver.ResolveApprover(ctx, b.PropertyID)
	if err != nil {
		return model.UserRef{}, err
	}
	if actor.Kind == model.ActorSystem || actor.Is(approver) {
		return approver, nil
	}

	s.cfg.Log.Warn("Transition refused for non-approver",
		"operation", op,
		"booking_id", b.ID,
		"actor", actor.Key(),
		"approver", approver.Key(),
	)
	return model.UserRef{}, apperrors.Forbidden(fmt.Sprintf("Only the property's approver may %s this booking", op))
}

func (s *bookingService) authorizeCancel(ctx context.Context, b *model.Booking, actor model.Actor) error {
	if actor.Kind == model.ActorSystem || actor.Is(b.AssignedUser) || visitorMatches(actor, b) {
		return nil
	}
	if _, ok := actor.User(); ok {
		approver, err := s.resolver.ResolveApprover(ctx, b.PropertyID)
		if err != nil {
			return err
		}
		if actor.Is(approver) {
			return nil
		}
	}

	s.cfg.Log.Warn("Cancel refused", "booking_id", b.ID, "actor", actor.Key())
	return apperrors.Forbidden("Only the approver or the visitor may cancel this booking")
}

// visitorMatches reports whether a visitor actor proves identity for b by
// phone or by name.
func visitorMatches(actor model.Actor, b *model.Booking) bool {
	if actor.Kind != model.ActorVisitor {
		return false
	}
	if actor.Phone != "" && b.Visitor.Phone != "" && sanitizer.PhonesEqual(actor.Phone, b.Visitor.Phone) {
		return true
	}
	return actor.Name != "" && sanitizer.NamesEqual(actor.Name, b.Visitor.Name)
}

// conflict builds the CONFLICT (or validation) error for an unavailable
// interval, attaching fresh suggestions.
func (s *bookingService) conflict(ctx context.Context, op string, user model.UserRef, requested model.Interval, verdict availability.Verdict) error {
	metrics.IncConflict(op, string(verdict.Reason))
	rejection := verdict.Rejection()

	result, err := s.suggester.Suggest(ctx, user, requested.StartAt, requested.EndAt, s.cfg.MaxSuggestions)
	if err != nil {
		s.cfg.Log.Error("Failed to compute suggestions", "operation", op, "user", user.Key(), "error", err)
		result = &suggest.Result{Slots: []model.Interval{}}
	}

	s.cfg.Log.Warn("Requested interval unavailable",
		"operation", op,
		"user", user.Key(),
		"requested", requested.String(),
		"reason", verdict.Reason,
		"suggestions", len(result.Slots),
	)
	return rejection.WithDetails(result.Details())
}

// staleConflict reports an approval or decision that lost a race with
// another transition.
func (s *bookingService) staleConflict(ctx context.Context, id string) error {
	status := "unknown"
	if current, err := s.repo.FindByID(ctx, id, true); err == nil {
		status = string(current.Status)
	}
	metrics.IncConflict("transition", "stale_state")
	return apperrors.Conflict("Booking changed while the request was processed").
		WithDetails(map[string]any{"status": status})
}

func (s *bookingService) emit(t notifications.EventType, b *model.Booking, actor model.Actor, reason string) {
	if s.events == nil {
		return
	}
	s.events.Emit(notifications.NewEvent(t, b, actor.Key(), reason, s.clock.Now()))
}

func (s *bookingService) mapError(err error, op, id string) error {
	switch {
	case apperrors.IsAppError(err):
		return err
	case errors.Is(err, lock.ErrBusy):
		s.cfg.Log.Warn("Calendar is busy", "operation", op, "booking_id", id)
		return apperrors.Busy("Calendar is being updated, please retry")
	case errors.Is(err, bookingserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Booking", id)
	case errors.Is(err, bookingserrors.ErrInvalidID):
		return apperrors.InvalidInput(fmt.Sprintf("invalid booking ID format: %s", id))
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Timeout("Booking operation timed out")
	}

	s.cfg.Log.Error("Booking operation failed", "operation", op, "booking_id", id, "error", err)
	return retry.ToAppError("Booking storage", err)
}

func invalidTransition(from, to model.BookingStatus) *apperrors.AppError {
	return apperrors.Validation(fmt.Sprintf("Cannot move a %s booking to %s", from, to),
		map[string]any{"status": string(from), "requested": string(to)})
}

// partialCancel reports which bookings were cancelled before err stopped the run.
func partialCancel(err error, cancelled []*model.Booking) error {
	if len(cancelled) == 0 {
		return err
	}
	appErr := apperrors.AsAppError(err)
	if appErr == nil {
		appErr = apperrors.Internal("Visitor cancellation stopped early", err)
	}
	ids := make([]string, 0, len(cancelled))
	for _, b := range cancelled {
		ids = append(ids, b.ID)
	}
	return appErr.WithDetails(map[string]any{"cancelled_ids": ids})
}

func reasonDetail(reason string) map[string]any {
	detail := map[string]any{}
	if reason != "" {
		detail["reason"] = reason
	}
	return detail
}
