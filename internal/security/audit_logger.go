package security

import (
	"crypto/sha256"
	"fmt"

	"github.com/rs/zerolog/log"
)

// AuditLogger logs security-relevant events with hashed payloads
type AuditLogger struct {
	enabled bool
}

func NewAuditLogger(enabled bool) *AuditLogger {
	return &AuditLogger{enabled: enabled}
}

// LogGeneration records one pipeline run that produced (or failed to produce) SQL
func (a *AuditLogger) LogGeneration(
	runID, question, sql, template string,
	validationPassed bool,
	executionTimeMs int64,
) {
	if !a.enabled {
		return
	}
	sqlHash := ""
	if sql != "" {
		sqlHash = hashStr(sql)[:16]
	}

	log.Info().
		Str("event", "generation_audit").
		Str("run_id", runID).
		Str("question_hash", hashStr(question)[:16]).
		Str("sql_hash", sqlHash).
		Str("template", template).
		Bool("validation_passed", validationPassed).
		Int64("execution_time_ms", executionTimeMs).
		Msg("audit")
}

// LogSafetyViolation records SQL rejected by the validator. The offending
// pattern is logged here and never returned to the caller.
func (a *AuditLogger) LogSafetyViolation(runID, sql, pattern string) {
	if !a.enabled {
		return
	}
	log.Warn().
		Str("event", "sql_safety_violation").
		Str("run_id", runID).
		Str("sql_hash", hashStr(sql)[:16]).
		Str("pattern", pattern).
		Msg("audit")
}

// LogPromptRejected records a question refused before classification
func (a *AuditLogger) LogPromptRejected(runID, question, reason string) {
	if !a.enabled {
		return
	}
	log.Warn().
		Str("event", "prompt_rejected").
		Str("run_id", runID).
		Str("question_hash", hashStr(question)[:16]).
		Str("reason", reason).
		Msg("audit")
}

func hashStr(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h)
}
