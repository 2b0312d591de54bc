package middleware

import (
	"net/http"

	apperrors "tourbook/pkg/errors"
	httputil "tourbook/pkg/http"
	"tourbook/pkg/logger"
	"tourbook/pkg/ratelimit"
)

type KeyExtractor func(r *http.Request) string

// RateLimit rejects requests whose key exceeded the limiter's window.
// Requests without a key pass through.
func RateLimit(limiter *ratelimit.Limiter, extract KeyExtractor, log *logger.Logger) func(http.Handler) http.Handler {
	if extract == nil {
		extract = CallerPhoneExtractor
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := extract(r)

			if !limiter.Allow(key) {
				log.Warn("Rate limit exceeded",
					"request_id", RequestID(r.Context()),
					"key", key,
					"path", r.URL.Path,
				)
				httputil.WriteError(w, apperrors.RateLimited("Too many requests, please try again shortly"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// CallerPhoneExtractor keys on the normalized phone of a resolved visitor
// actor, falling back to the raw header.
func CallerPhoneExtractor(r *http.Request) string {
	if actor, ok := ActorFrom(r.Context()); ok && actor.Phone != "" {
		return actor.Phone
	}
	return r.Header.Get(HeaderCallerPhone)
}
