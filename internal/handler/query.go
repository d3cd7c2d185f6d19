package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cortexai/analytics/internal/agent"
	"github.com/cortexai/analytics/internal/middleware"
	"github.com/cortexai/analytics/internal/models"
)

// maxBodyBytes bounds request bodies; questions are capped far lower by the
// prompt validator
const maxBodyBytes = 64 << 10

// Pipeline answers one analytics question
type Pipeline interface {
	Handle(ctx context.Context, req *models.AnalyticsRequest) (*models.AnalyticsResponse, error)
}

// QueryHandler handles POST /api/v1/analytics/query
type QueryHandler struct {
	pipeline Pipeline
}

func NewQueryHandler(pipeline Pipeline) *QueryHandler {
	return &QueryHandler{pipeline: pipeline}
}

// Query handles POST /api/v1/analytics/query
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req models.AnalyticsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		models.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	req.SetDefaults()
	if err := req.Validate(); err != nil {
		models.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.pipeline.Handle(r.Context(), &req)
	runID := ""
	if resp != nil {
		runID = resp.RunID
		middleware.SetRunID(r.Context(), runID)
	}
	if err != nil {
		if errors.Is(err, agent.ErrPromptRejected) {
			models.WriteJSON(w, http.StatusBadRequest, models.ErrorResponse{
				Status:  "error",
				Message: err.Error(),
				Code:    http.StatusBadRequest,
				RunID:   runID,
			})
			return
		}
		models.WriteAnalyticsError(w, runID, err)
		return
	}

	models.WriteJSON(w, http.StatusOK, resp)
}
