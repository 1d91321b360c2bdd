package middleware

import (
	"net/http"

	"github.com/fieldops/crewroster/internal/api/response"
)

// RequireSuperAdmin rejects callers that are not operators with 403.
func RequireSuperAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			identity := GetIdentity(r.Context())
			if identity == nil {
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "An API key or session token is required", requestID)
				return
			}

			if !identity.IsSuperAdmin {
				response.Err(w, http.StatusForbidden, "FORBIDDEN", "Operator access required", requestID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
