package handler

import (
	"net/http"
	"strings"

	assignments "tourbook/internal/assignments/service"
	httputil "tourbook/pkg/http"
	"tourbook/pkg/logger"
	"tourbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type AssignmentHandler struct {
	resolver assignments.Resolver
	log      *logger.Logger
}

func NewAssignmentHandler(resolver assignments.Resolver, log *logger.Logger) *AssignmentHandler {
	return &AssignmentHandler{
		resolver: resolver,
		log:      log,
	}
}

func (h *AssignmentHandler) Approver(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	approver, err := h.resolver.ResolveApprover(r.Context(), ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, "Current approver", approver)
}

func (h *AssignmentHandler) History(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	rows, err := h.resolver.History(r.Context(), ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, "Assignment history", rows)
}

func (h *AssignmentHandler) Reassign(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req model.ReassignRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	row, err := h.resolver.Reassign(r.Context(), actor, ps.ByName("id"), req.ToUser, strings.TrimSpace(req.Reason))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteCreated(w, "Property reassigned", row)
}

func (h *AssignmentHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/properties/:id/approver", h.Approver)
	router.GET("/api/v1/properties/:id/assignments", h.History)
	router.POST("/api/v1/properties/:id/assignments", h.Reassign)
}
