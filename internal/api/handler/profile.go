package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fieldops/crewroster/internal/api/middleware"
	"github.com/fieldops/crewroster/internal/api/response"
	"github.com/fieldops/crewroster/internal/api/validation"
	"github.com/fieldops/crewroster/internal/auth"
	"github.com/fieldops/crewroster/internal/profile"
)

type registerRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

type profileResponse struct {
	ID           string  `json:"id"`
	Email        string  `json:"email"`
	DisplayName  string  `json:"displayName"`
	CompanyID    *string `json:"companyId"`
	Role         *string `json:"role"`
	IsSuperAdmin bool    `json:"isSuperAdmin"`
}

type profileWithKeyResponse struct {
	profileResponse
	APIKey    string `json:"apiKey"`
	CreatedAt string `json:"createdAt"`
}

type sessionResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"tokenType"`
	ExpiresAt string `json:"expiresAt"`
}

func toProfileResponse(id *auth.Identity) profileResponse {
	resp := profileResponse{
		ID:           id.UserID.String(),
		Email:        id.Email,
		DisplayName:  id.DisplayName,
		CompanyID:    uuidPtrString(id.CompanyID),
		IsSuperAdmin: id.IsSuperAdmin,
	}
	if id.Role != "" {
		role := string(id.Role)
		resp.Role = &role
	}
	return resp
}

// ProfileHandler handles sign-up, session and current-user endpoints.
type ProfileHandler struct {
	authService *auth.Service
	sessions    *auth.Sessions
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(authService *auth.Service, sessions *auth.Sessions) *ProfileHandler {
	return &ProfileHandler{authService: authService, sessions: sessions}
}

// Register handles POST /profiles. The API key is only returned here.
func (h *ProfileHandler) Register(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if fieldErrors(w, r, validation.ValidateRegisterRequest(validation.RegisterRequest{
		Email:       req.Email,
		DisplayName: req.DisplayName,
	})) {
		return
	}

	p, rawKey, err := h.authService.Register(r.Context(), req.Email, strings.TrimSpace(req.DisplayName))
	if err != nil {
		switch {
		case errors.Is(err, profile.ErrDuplicateEmail):
			response.Err(w, http.StatusConflict, "CONFLICT", "A profile with this email already exists", requestID)
		case errors.Is(err, auth.ErrInvalidEmail):
			response.Err(w, http.StatusBadRequest, "VALIDATION_ERROR", "Enter a valid email address", requestID)
		default:
			slog.Error("failed to register profile", "error", err, "requestId", requestID)
			response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create profile", requestID)
		}
		return
	}

	response.Success(w, http.StatusCreated, profileWithKeyResponse{
		profileResponse: toProfileResponse(auth.NewIdentity(p)),
		APIKey:          rawKey,
		CreatedAt:       formatTime(p.CreatedAt),
	}, requestID)
}

// Me handles GET /me.
func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "An API key or session token is required", requestID)
		return
	}

	response.Success(w, http.StatusOK, toProfileResponse(identity), requestID)
}

// CreateSession handles POST /sessions. It exchanges the credential the
// request was authenticated with for a short-lived bearer token.
func (h *ProfileHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "An API key or session token is required", requestID)
		return
	}

	token, expiresAt, err := h.sessions.Issue(identity)
	if err != nil {
		slog.Error("failed to issue session", "error", err, "userId", identity.UserID, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create session", requestID)
		return
	}

	response.Success(w, http.StatusCreated, sessionResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: formatTime(expiresAt),
	}, requestID)
}
