package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fieldops/crewroster/internal/api/response"
	"github.com/fieldops/crewroster/internal/auth"
)

const identityKey contextKey = "identity"

// Auth resolves the caller from either an `Authorization: Bearer` session
// token or the X-API-Key header. Requests with neither, or with an invalid
// credential, get 401.
func Auth(authService *auth.Service, sessions *auth.Sessions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			identity, err := authenticate(r, authService, sessions)
			switch {
			case err == nil:
			case errors.Is(err, errNoCredentials):
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "An API key or session token is required", requestID)
				return
			case errors.Is(err, auth.ErrInvalidKey):
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid API key", requestID)
				return
			case errors.Is(err, auth.ErrInvalidSession):
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired session", requestID)
				return
			default:
				slog.Error("authentication failed", "error", err, "requestId", requestID)
				response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Authentication failed", requestID)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

var errNoCredentials = errors.New("no credentials")

func authenticate(r *http.Request, authService *auth.Service, sessions *auth.Sessions) (*auth.Identity, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			return nil, auth.ErrInvalidSession
		}
		token = strings.TrimSpace(token)

		userID, err := sessions.Parse(token)
		if err != nil {
			return nil, err
		}
		identity, err := authService.IdentityFor(r.Context(), userID)
		if err != nil {
			return nil, err
		}
		identity.SessionToken = token
		return identity, nil
	}

	if rawKey := r.Header.Get("X-API-Key"); rawKey != "" {
		return authService.Authenticate(r.Context(), rawKey)
	}
	return nil, errNoCredentials
}

// GetIdentity retrieves the authenticated Identity from the request context.
func GetIdentity(ctx context.Context) *auth.Identity {
	if id, ok := ctx.Value(identityKey).(*auth.Identity); ok {
		return id
	}
	return nil
}

// WithIdentity returns a copy of ctx carrying identity. Handler tests use it
// to skip the Auth middleware.
func WithIdentity(ctx context.Context, identity *auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}
