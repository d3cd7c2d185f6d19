package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/cortexai/analytics/internal/analytics"
	"github.com/cortexai/analytics/internal/models"
)

const maxFailuresPage = 200

// FailureSource lists recently failed pipeline runs
type FailureSource interface {
	RecentFailures(ctx context.Context, size int) ([]analytics.QueryEvent, error)
}

// TelemetryHandler serves the query log kept in Elasticsearch
type TelemetryHandler struct {
	src FailureSource
}

func NewTelemetryHandler(src FailureSource) *TelemetryHandler {
	return &TelemetryHandler{src: src}
}

// Failures handles GET /api/v1/telemetry/failures?size=N
func (h *TelemetryHandler) Failures(w http.ResponseWriter, r *http.Request) {
	size := 20
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxFailuresPage {
			models.WriteError(w, http.StatusBadRequest, "size must be between 1 and "+strconv.Itoa(maxFailuresPage))
			return
		}
		size = n
	}

	events, err := h.src.RecentFailures(r.Context(), size)
	if err != nil {
		models.WriteError(w, http.StatusBadGateway, "query log unavailable: "+err.Error())
		return
	}
	models.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"events": events,
		"count":  len(events),
	})
}
