package handler

import (
	"net/http"
	"strconv"
	"strings"

	"tourbook/internal/bookings/service"
	apperrors "tourbook/pkg/errors"
	httputil "tourbook/pkg/http"
	"tourbook/pkg/logger"
	"tourbook/pkg/middleware"
	"tourbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type BookingHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req model.BookingRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	booking, err := h.service.Create(r.Context(), actor, &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteCreated(w, "Tour request received and is waiting for approval", booking)
}

func (h *BookingHandler) Validate(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.AvailabilityCheck
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Validate(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	message := "The requested time is available"
	if !result.IsAvailable {
		message = "The requested time is not available"
		if !result.HasAvailability {
			message = "The requested time is not available and no alternative slots were found"
		}
	}
	httputil.WriteSuccess(w, message, result)
}

func (h *BookingHandler) CreateManual(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req model.BookingRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	booking, err := h.service.CreateManual(r.Context(), actor, &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteCreated(w, "Tour booked", booking)
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, "Booking found", booking)
}

func (h *BookingHandler) Audit(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.GetAuditTrail(r.Context(), ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, "Booking history", booking)
}

// List returns the calling user's bookings unless a property is given.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	statuses, err := parseStatuses(r.URL.Query().Get("status"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	filter := model.BookingFilter{
		PropertyID: r.URL.Query().Get("property_id"),
		Status:     statuses,
		Limit:      int64(limit),
		Offset:     offset,
	}
	if user, isUser := actor.User(); isUser && filter.PropertyID == "" {
		filter.UserRef = &user
	} else if actor.Kind != model.ActorSystem && !isUser {
		httputil.WriteError(w, apperrors.Forbidden("Listing bookings requires a manager or agent"))
		return
	}

	bookings, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WritePaginated(w, "Bookings", bookings, total, limit, offset)
}

func (h *BookingHandler) Approve(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req model.ApproveRequest
	if err := decodeOptional(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	booking, err := h.service.Approve(r.Context(), ps.ByName("id"), actor, req.Slot)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, "Tour approved", booking)
}

func (h *BookingHandler) Deny(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req model.ReasonRequest
	if err := decodeOptional(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	booking, err := h.service.Deny(r.Context(), ps.ByName("id"), actor, strings.TrimSpace(req.Reason))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, "Tour request denied", booking)
}

func (h *BookingHandler) Reschedule(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req model.RescheduleRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	booking, err := h.service.Reschedule(r.Context(), ps.ByName("id"), actor, req.Candidates, strings.TrimSpace(req.Reason))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, "New times proposed to the visitor", booking)
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req model.ReasonRequest
	if err := decodeOptional(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	booking, err := h.service.Cancel(r.Context(), ps.ByName("id"), actor, strings.TrimSpace(req.Reason))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, "Tour cancelled", booking)
}

func (h *BookingHandler) Confirm(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req model.ConfirmRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	booking, err := h.service.ConfirmProposedSlot(r.Context(), ps.ByName("id"), actor, req.Index)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, "Tour confirmed", booking)
}

// ByVisitor looks bookings up by visitor identity. Callers identified by
// phone only ever see their own number's bookings.
func (h *BookingHandler) ByVisitor(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	statuses, err := parseStatuses(query.Get("status"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	q := model.VisitorQuery{
		Phone:    query.Get("phone"),
		Name:     query.Get("name"),
		Status:   statuses,
		Property: query.Get("property"),
	}
	if actor.Kind == model.ActorVisitor {
		q.Phone = actor.Phone
		q.Name = ""
	}

	bookings, err := h.service.LookupByVisitor(r.Context(), q)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, bookingCountMessage(len(bookings)), bookings)
}

func (h *BookingHandler) CancelByVisitor(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req model.VisitorCancelRequest
	if err := decodeOptional(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	cancelled, err := h.service.CancelByVisitor(r.Context(), actor, req.VisitorQuery, strings.TrimSpace(req.Reason))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.log.Info("Visitor cancellation handled", "request_id", middleware.RequestID(r.Context()), "count", len(cancelled))
	httputil.WriteSuccess(w, bookingCountMessage(len(cancelled))+" cancelled", cancelled)
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.Create)
	router.GET("/api/v1/bookings", h.List)
	router.POST("/api/v1/bookings/validate", h.Validate)
	router.POST("/api/v1/bookings/manual", h.CreateManual)
	router.GET("/api/v1/bookings/visitor", h.ByVisitor)
	router.POST("/api/v1/bookings/visitor/cancel", h.CancelByVisitor)
	router.GET("/api/v1/bookings/id/:id", h.GetByID)
	router.GET("/api/v1/bookings/id/:id/audit", h.Audit)
	router.POST("/api/v1/bookings/id/:id/approve", h.Approve)
	router.POST("/api/v1/bookings/id/:id/deny", h.Deny)
	router.POST("/api/v1/bookings/id/:id/reschedule", h.Reschedule)
	router.POST("/api/v1/bookings/id/:id/cancel", h.Cancel)
	router.POST("/api/v1/bookings/id/:id/confirm", h.Confirm)
}

func bookingCountMessage(n int) string {
	switch n {
	case 0:
		return "No bookings found"
	case 1:
		return "1 booking"
	}
	return strconv.Itoa(n) + " bookings"
}
