package handler

import (
	"net/http"

	availability "tourbook/internal/availability/service"
	preferences "tourbook/internal/preferences/service"
	apperrors "tourbook/pkg/errors"
	httputil "tourbook/pkg/http"
	"tourbook/pkg/logger"
	"tourbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// AvailabilityHandler serves calendar slots and the preferences that shape
// suggestions.
type AvailabilityHandler struct {
	store availability.Store
	prefs preferences.PreferencesService
	log   *logger.Logger
}

func NewAvailabilityHandler(store availability.Store, prefs preferences.PreferencesService, log *logger.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{
		store: store,
		prefs: prefs,
		log:   log,
	}
}

func (h *AvailabilityHandler) Query(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	user, err := userFromQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	from, err := httputil.ExtractTime(r, "from")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	to, err := httputil.ExtractTime(r, "to")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	slots, err := h.store.Query(r.Context(), user, from, to)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, "Availability", slots)
}

func (h *AvailabilityHandler) UpsertSlot(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var slot model.AvailabilitySlot
	if err := httputil.DecodeJSON(r, &slot); err != nil {
		httputil.WriteError(w, err)
		return
	}

	saved, err := h.store.Upsert(r.Context(), actor, &slot)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, "Availability saved", saved)
}

func (h *AvailabilityHandler) DeleteSlot(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), actor, ps.ByName("id")); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, "Availability slot removed", nil)
}

func (h *AvailabilityHandler) DayOff(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req model.DayOffRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	user := model.UserRef{ID: req.UserID, Type: req.UserType}
	if user.ID == "" || !user.Type.Valid() {
		httputil.WriteError(w, apperrors.InvalidInput("user_id and user_type (manager|agent) are required"))
		return
	}

	slot, err := h.store.MarkDayOff(r.Context(), actor, user, req.Day, req.Title)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteCreated(w, "Day marked as unavailable", slot)
}

func (h *AvailabilityHandler) GetPreferences(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	user, err := userFromQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	prefs, err := h.prefs.Get(r.Context(), user)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, "Calendar preferences", prefs)
}

func (h *AvailabilityHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var prefs model.CalendarPreferences
	if err := httputil.DecodeJSON(r, &prefs); err != nil {
		httputil.WriteError(w, err)
		return
	}

	saved, err := h.prefs.Update(r.Context(), actor, &prefs)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, "Calendar preferences saved", saved)
}

func (h *AvailabilityHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/availability", h.Query)
	router.PUT("/api/v1/availability/slots", h.UpsertSlot)
	router.DELETE("/api/v1/availability/slots/:id", h.DeleteSlot)
	router.POST("/api/v1/availability/days-off", h.DayOff)
	router.GET("/api/v1/preferences", h.GetPreferences)
	router.PUT("/api/v1/preferences", h.UpdatePreferences)
}
