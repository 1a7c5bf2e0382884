// Package requesttime pins a single "now" per HTTP request. Audit events
// and freshness checks within one request all see the same timestamp.
package requesttime

import (
	"net/http"
	"time"

	"vaxcov/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request and
// stores it in the context via requestcontext.WithTime.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
