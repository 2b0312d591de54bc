package handler

import (
	"net/http"
	"strings"

	apperrors "tourbook/pkg/errors"
	httputil "tourbook/pkg/http"
	"tourbook/pkg/middleware"
	"tourbook/pkg/model"
)

// requireActor writes UNAUTHORIZED and reports false when the request carries
// no caller identity.
func requireActor(w http.ResponseWriter, r *http.Request) (model.Actor, bool) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		httputil.WriteError(w, apperrors.Unauthorized("caller identity is required"))
		return model.Actor{}, false
	}
	return actor, true
}

// decodeOptional decodes a JSON body when one was sent.
func decodeOptional(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	return httputil.DecodeJSON(r, v)
}

// parseStatuses reads a comma-separated status list.
func parseStatuses(raw string) ([]model.BookingStatus, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var out []model.BookingStatus
	for _, part := range strings.Split(raw, ",") {
		status := model.BookingStatus(strings.ToLower(strings.TrimSpace(part)))
		switch status {
		case model.StatusPending, model.StatusApproved, model.StatusDenied, model.StatusRescheduled, model.StatusCancelled:
			out = append(out, status)
		case "":
		default:
			return nil, apperrors.InvalidInput("unknown booking status: " + part)
		}
	}
	return out, nil
}

func userFromQuery(r *http.Request) (model.UserRef, error) {
	user := model.UserRef{
		ID:   strings.TrimSpace(r.URL.Query().Get("user_id")),
		Type: model.UserType(r.URL.Query().Get("user_type")),
	}
	if user.ID == "" || !user.Type.Valid() {
		return model.UserRef{}, apperrors.InvalidInput("user_id and user_type (manager|agent) are required")
	}
	return user, nil
}
