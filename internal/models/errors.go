package models

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cortexai/analytics/internal/analytics"
)

type ErrorResponse struct {
	Status        string              `json:"status"`
	Message       string              `json:"message"`
	Code          int                 `json:"code,omitempty"`
	ErrorCode     analytics.ErrorCode `json:"error_code,omitempty"`
	RunID         string              `json:"run_id,omitempty"`
	MissingFields []string            `json:"missing_fields,omitempty"`
}

func WriteError(w http.ResponseWriter, code int, message string) {
	WriteJSON(w, code, ErrorResponse{
		Status:  "error",
		Message: message,
		Code:    code,
	})
}

// WriteAnalyticsError maps a pipeline error onto a status code. Only user
// facing codes keep their message; everything else becomes a generic 500.
func WriteAnalyticsError(w http.ResponseWriter, runID string, err error) {
	var aerr *analytics.Error
	if !errors.As(err, &aerr) {
		WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
			Status:  "error",
			Message: "internal error",
			Code:    http.StatusInternalServerError,
			RunID:   runID,
		})
		return
	}

	code := http.StatusInternalServerError
	if aerr.Code.UserFacing() {
		code = http.StatusUnprocessableEntity
	}
	WriteJSON(w, code, ErrorResponse{
		Status:        "error",
		Message:       aerr.PublicMessage(),
		Code:          code,
		ErrorCode:     aerr.Code,
		RunID:         runID,
		MissingFields: aerr.MissingFields,
	})
}

func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
