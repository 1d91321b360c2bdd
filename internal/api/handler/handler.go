package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fieldops/crewroster/internal/api/middleware"
	"github.com/fieldops/crewroster/internal/api/response"
	"github.com/fieldops/crewroster/internal/api/validation"
	"github.com/fieldops/crewroster/internal/membership"
)

const maxBodyBytes = 1 << 20

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func uuidPtrString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

// decodeJSON reads a size-capped JSON body into dst. On failure it writes
// the 400 response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", middleware.GetRequestID(r.Context()))
		return false
	}
	return true
}

// decodeOptionalJSON is decodeJSON for endpoints whose body may be empty.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", middleware.GetRequestID(r.Context()))
		return false
	}
	return true
}

// fieldErrors writes a VALIDATION_ERROR response when errs is non-empty.
func fieldErrors(w http.ResponseWriter, r *http.Request, errs []validation.FieldError) bool {
	if len(errs) == 0 {
		return false
	}
	response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", errs, middleware.GetRequestID(r.Context()))
	return true
}

// uuidParam parses a UUID path parameter, writing a 400 on failure.
func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_ID", name+" must be a valid UUID", middleware.GetRequestID(r.Context()))
		return uuid.Nil, false
	}
	return id, true
}

// serviceError maps a membership error onto the HTTP error envelope.
// Unclassified errors are logged and reported as 500 with fallback.
func serviceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	requestID := middleware.GetRequestID(r.Context())

	var svcErr *membership.Error
	if !errors.As(err, &svcErr) {
		slog.Error(fallback, "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", fallback, requestID)
		return
	}

	switch svcErr.Kind {
	case membership.KindValidation:
		response.Err(w, http.StatusBadRequest, string(svcErr.Kind), svcErr.Message, requestID)
	case membership.KindNotFound:
		response.Err(w, http.StatusNotFound, string(svcErr.Kind), svcErr.Message, requestID)
	case membership.KindExpired:
		response.Err(w, http.StatusGone, string(svcErr.Kind), svcErr.Message, requestID)
	case membership.KindConflict:
		response.Err(w, http.StatusConflict, string(svcErr.Kind), svcErr.Message, requestID)
	case membership.KindUnauthorized:
		if middleware.GetIdentity(r.Context()) == nil {
			response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", svcErr.Message, requestID)
			return
		}
		response.Err(w, http.StatusForbidden, "FORBIDDEN", svcErr.Message, requestID)
	default:
		slog.Error(fallback, "error", err, "kind", svcErr.Kind, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", fallback, requestID)
	}
}
