package middleware

import (
	"net/http"

	apperrors "tourbook/pkg/errors"
	httputil "tourbook/pkg/http"
)

// MaxRequestSize caps the request body at limit bytes. Bodies that declare a
// larger Content-Length are rejected up front; the rest are cut off while the
// handler reads them.
func MaxRequestSize(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			if r.ContentLength > limit {
				httputil.WriteError(w, apperrors.New(apperrors.CodeInvalidInput,
					"request body too large", http.StatusRequestEntityTooLarge))
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
