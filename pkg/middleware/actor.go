package middleware

import (
	"context"
	"net/http"

	apperrors "tourbook/pkg/errors"
	httputil "tourbook/pkg/http"
	"tourbook/pkg/model"
	"tourbook/pkg/sanitizer"
)

const (
	HeaderUserID      = "X-User-ID"
	HeaderUserType    = "X-User-Type"
	HeaderCallerPhone = "X-Caller-Phone"
	HeaderCallerName  = "X-Caller-Name"

	actorKey contextKey = "actor"
)

// Actor resolves the caller from upstream-authenticated headers. Dashboard
// callers send X-User-ID and X-User-Type, voice callers send X-Caller-Phone.
func Actor() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, err := actorFromHeaders(r)
			if err != nil {
				httputil.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

func actorFromHeaders(r *http.Request) (model.Actor, error) {
	if id := r.Header.Get(HeaderUserID); id != "" {
		userType := model.UserType(r.Header.Get(HeaderUserType))
		if !userType.Valid() {
			return model.Actor{}, apperrors.Unauthorized("X-User-Type must be manager or agent")
		}
		return model.ActorFromUser(model.UserRef{ID: id, Type: userType}), nil
	}

	if phone := r.Header.Get(HeaderCallerPhone); phone != "" {
		normalized, err := sanitizer.NormalizePhone(phone)
		if err != nil {
			return model.Actor{}, apperrors.InvalidInput("X-Caller-Phone is not a valid phone number")
		}
		return model.Actor{
			Kind:  model.ActorVisitor,
			Phone: normalized,
			Name:  sanitizer.NormalizeName(r.Header.Get(HeaderCallerName)),
		}, nil
	}

	return model.Actor{}, apperrors.Unauthorized("caller identity is required")
}

func WithActor(ctx context.Context, actor model.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

func ActorFrom(ctx context.Context) (model.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(model.Actor)
	return actor, ok
}
