package handler

import (
	"fmt"
	"net/http"
	"strings"

	"tourbook/internal/bookings/service"
	apperrors "tourbook/pkg/errors"
	httputil "tourbook/pkg/http"
	"tourbook/pkg/logger"
	"tourbook/pkg/middleware"
	"tourbook/pkg/model"
	"tourbook/pkg/validation"

	"github.com/go-playground/validator/v10"
	"github.com/julienschmidt/httprouter"
)

// Tool names the voice agent may invoke.
const (
	ToolCheckAvailability = "check_availability"
	ToolCreateBooking     = "create_booking"
	ToolBookingStatus     = "booking_status"
	ToolCancelBooking     = "cancel_booking"
	ToolConfirmSlot       = "confirm_slot"
)

type CheckAvailabilityTool struct {
	PropertyID string `json:"property_id" validate:"required,max=100"`
	StartAt    string `json:"start_at" validate:"required"`
	EndAt      string `json:"end_at" validate:"required"`
}

type CreateBookingTool struct {
	PropertyID  string `json:"property_id" validate:"required,max=100"`
	VisitorName string `json:"visitor_name" validate:"required,max=100"`
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
	StartAt     string `json:"start_at" validate:"required"`
	EndAt       string `json:"end_at" validate:"required"`
	CallerStart string `json:"caller_start,omitempty" validate:"max=200"`
	CallerEnd   string `json:"caller_end,omitempty" validate:"max=200"`
	TimeZone    string `json:"timezone,omitempty" validate:"omitempty,timezone"`
	Notes       string `json:"notes,omitempty" validate:"max=1000"`
}

type BookingStatusTool struct {
	VisitorName string `json:"visitor_name,omitempty" validate:"max=100"`
	Property    string `json:"property,omitempty" validate:"max=200"`
}

type CancelBookingTool struct {
	VisitorName string `json:"visitor_name,omitempty" validate:"max=100"`
	Property    string `json:"property,omitempty" validate:"max=200"`
	Reason      string `json:"reason,omitempty" validate:"max=500"`
}

type ConfirmSlotTool struct {
	BookingID string `json:"booking_id" validate:"required,mongodb"`
	Index     int    `json:"index" validate:"min=0,max=2"`
}

// ToolHandler maps voice-agent tool calls onto booking operations. Each tool
// has its own typed payload, validated here before the core sees it. The
// caller must be identified by phone.
type ToolHandler struct {
	service  service.BookingService
	validate *validator.Validate
	log      *logger.Logger
}

func NewToolHandler(service service.BookingService, log *logger.Logger) *ToolHandler {
	v, err := validation.New()
	if err != nil {
		log.Fatal("Failed to build tool validator", "error", err)
	}
	return &ToolHandler{
		service:  service,
		validate: v,
		log:      log,
	}
}

func (h *ToolHandler) Invoke(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if actor.Kind != model.ActorVisitor {
		httputil.WriteError(w, apperrors.Forbidden("Tools are invoked on behalf of a caller identified by phone"))
		return
	}

	tool := ps.ByName("tool")
	h.log.Info("Tool invoked",
		"request_id", middleware.RequestID(r.Context()),
		"tool", tool,
		"caller", actor.Key(),
	)

	switch tool {
	case ToolCheckAvailability:
		h.checkAvailability(w, r)
	case ToolCreateBooking:
		h.createBooking(w, r, actor)
	case ToolBookingStatus:
		h.bookingStatus(w, r, actor)
	case ToolCancelBooking:
		h.cancelBooking(w, r, actor)
	case ToolConfirmSlot:
		h.confirmSlot(w, r, actor)
	default:
		httputil.WriteError(w, apperrors.NotFound(fmt.Sprintf("Tool %q", tool)))
	}
}

// decode reads the tool payload into req and validates it.
func (h *ToolHandler) decode(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := httputil.DecodeJSON(r, req); err != nil {
		httputil.WriteError(w, err)
		return false
	}
	if err := validation.Struct(h.validate, req); err != nil {
		httputil.WriteError(w, validation.ToAppError(err))
		return false
	}
	return true
}

func (h *ToolHandler) checkAvailability(w http.ResponseWriter, r *http.Request) {
	var req CheckAvailabilityTool
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.service.Validate(r.Context(), &model.AvailabilityCheck{
		PropertyID: req.PropertyID,
		StartAt:    req.StartAt,
		EndAt:      req.EndAt,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	switch {
	case result.IsAvailable:
		httputil.WriteSuccess(w, "That time is available", result)
	case result.HasAvailability:
		httputil.WriteSuccess(w, fmt.Sprintf("That time is taken; %d other times are open", len(result.SuggestedSlots)), result)
	default:
		httputil.WriteSuccess(w, "That time is taken and nothing else is open in the next two weeks", result)
	}
}

func (h *ToolHandler) createBooking(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	var req CreateBookingTool
	if !h.decode(w, r, &req) {
		return
	}

	booking, err := h.service.Create(r.Context(), actor, &model.BookingRequest{
		PropertyID:  req.PropertyID,
		Visitor:     model.Visitor{Name: req.VisitorName, Phone: actor.Phone, Email: req.Email},
		StartAt:     req.StartAt,
		EndAt:       req.EndAt,
		CallerStart: req.CallerStart,
		CallerEnd:   req.CallerEnd,
		TimeZone:    req.TimeZone,
		CreatedBy:   model.CreatedByVoiceAgent,
		Notes:       req.Notes,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteCreated(w, "Your tour request was sent to the agent for approval", booking)
}

func (h *ToolHandler) bookingStatus(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	var req BookingStatusTool
	if !h.decode(w, r, &req) {
		return
	}

	bookings, err := h.service.LookupByVisitor(r.Context(), model.VisitorQuery{
		Phone:    actor.Phone,
		Name:     strings.TrimSpace(req.VisitorName),
		Property: req.Property,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, bookingCountMessage(len(bookings)), bookings)
}

func (h *ToolHandler) cancelBooking(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	var req CancelBookingTool
	if !h.decode(w, r, &req) {
		return
	}

	cancelled, err := h.service.CancelByVisitor(r.Context(), actor, model.VisitorQuery{
		Name:     strings.TrimSpace(req.VisitorName),
		Property: req.Property,
	}, strings.TrimSpace(req.Reason))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, bookingCountMessage(len(cancelled))+" cancelled", cancelled)
}

func (h *ToolHandler) confirmSlot(w http.ResponseWriter, r *http.Request, actor model.Actor) {
	var req ConfirmSlotTool
	if !h.decode(w, r, &req) {
		return
	}

	booking, err := h.service.ConfirmProposedSlot(r.Context(), req.BookingID, actor, req.Index)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, "Your tour is confirmed", booking)
}

func (h *ToolHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/tools/:tool", h.Invoke)
}
