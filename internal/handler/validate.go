package handler

import (
	"encoding/json"
	"net/http"

	"github.com/cortexai/analytics/internal/middleware"
	"github.com/cortexai/analytics/internal/models"
	"github.com/cortexai/analytics/internal/security"
	"github.com/cortexai/analytics/internal/service"
)

// ValidateHandler handles POST /api/v1/sql/validate
type ValidateHandler struct {
	validator service.SQLValidator
	audit     *security.AuditLogger
}

func NewValidateHandler(validator service.SQLValidator, audit *security.AuditLogger) *ValidateHandler {
	if audit == nil {
		audit = security.NewAuditLogger(false)
	}
	return &ValidateHandler{validator: validator, audit: audit}
}

// Validate runs the safety gate over caller supplied SQL. The statement is
// never executed; a rejection is still a 200 with valid=false.
func (h *ValidateHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req models.ValidateSQLRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		models.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result := h.validator.Validate(security.RawSQL(req.SQL))
	if !result.Valid && result.Pattern != "" {
		h.audit.LogSafetyViolation(middleware.GetRequestID(r.Context()), req.SQL, result.Pattern)
	}
	models.WriteJSON(w, http.StatusOK, result)
}

