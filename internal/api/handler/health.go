package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/fieldops/crewroster/internal/api/middleware"
	"github.com/fieldops/crewroster/internal/api/response"
)

const pingTimeout = 2 * time.Second

// StorePinger checks that the record store is reachable.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles the GET /health endpoint.
type HealthHandler struct {
	store   StorePinger
	version string
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(store StorePinger, version string) *HealthHandler {
	return &HealthHandler{
		store:   store,
		version: version,
	}
}

type storeStatus struct {
	Connected bool `json:"connected"`
}

type healthData struct {
	Status  string      `json:"status"`
	Version string      `json:"version"`
	Store   storeStatus `json:"store"`
}

// ServeHTTP reports "healthy" when the store answers a ping and "degraded"
// otherwise. It always returns 200 so load balancers keep the instance.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	connected := false
	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			slog.Warn("store ping failed", "error", err, "requestId", requestID)
		} else {
			connected = true
		}
	}

	status := "healthy"
	if !connected {
		status = "degraded"
	}

	response.Success(w, http.StatusOK, healthData{
		Status:  status,
		Version: h.version,
		Store:   storeStatus{Connected: connected},
	}, requestID)
}
