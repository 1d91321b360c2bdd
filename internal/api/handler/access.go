package handler

import (
	"net/http"
	"strings"

	"github.com/fieldops/crewroster/internal/access"
	"github.com/fieldops/crewroster/internal/api/middleware"
	"github.com/fieldops/crewroster/internal/api/response"
	"github.com/fieldops/crewroster/internal/api/validation"
)

// AccessHandler answers route-level permission checks for clients.
type AccessHandler struct {
	table *access.Table
}

// NewAccessHandler creates a new AccessHandler.
func NewAccessHandler(table *access.Table) *AccessHandler {
	return &AccessHandler{table: table}
}

// Check handles GET /access/check?action=/some/path.
func (h *AccessHandler) Check(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "An API key or session token is required", requestID)
		return
	}

	action := r.URL.Query().Get("action")
	if strings.TrimSpace(action) == "" {
		fieldErrors(w, r, []validation.FieldError{{Field: "action", Message: "action is required"}})
		return
	}

	response.Success(w, http.StatusOK, h.table.Decide(identity.Caller(), action), requestID)
}
