package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"vaxcov/pkg/requestcontext"
)

// TokenValidator validates bearer tokens presented on ingest endpoints.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// Claims carries the identity asserted by a validated token.
type Claims struct {
	Subject string
	Scope   string
}

// ScopeIngest is required to submit datasets.
const ScopeIngest = "ingest"

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireIngestAuth accepts either a JWT bearer token carrying the ingest
// scope or, when ingestKeyHash is configured, a service-account API key via
// the X-Api-Key header (compared against the bcrypt hash).
func RequireIngestAuth(validator TokenValidator, ingestKeyHash string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			if apiKey := r.Header.Get("X-Api-Key"); apiKey != "" && ingestKeyHash != "" {
				if err := bcrypt.CompareHashAndPassword([]byte(ingestKeyHash), []byte(apiKey)); err == nil {
					next.ServeHTTP(w, r)
					return
				}
				logger.WarnContext(ctx, "unauthorized ingest - bad api key", "request_id", requestID)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "invalid API key")
				return
			}

			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized ingest - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}

			if !hasScope(claims.Scope, ScopeIngest) {
				logger.WarnContext(ctx, "forbidden ingest - missing scope",
					"subject", claims.Subject,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusForbidden, "forbidden", "ingest scope required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func hasScope(scopes, want string) bool {
	for _, s := range strings.Fields(scopes) {
		if s == want {
			return true
		}
	}
	return false
}
