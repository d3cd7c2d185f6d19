package analytics

import (
	"fmt"
	"strings"
)

// ErrorCode is the stable identifier surfaced for pipeline failures
type ErrorCode string

const (
	ErrAmbiguousSpec      ErrorCode = "AMBIGUOUS_SPEC"
	ErrUnsupportedMetric  ErrorCode = "UNSUPPORTED_METRIC"
	ErrNoTemplateMatch    ErrorCode = "NO_TEMPLATE_MATCH"
	ErrSQLSafetyViolation ErrorCode = "SQL_SAFETY_VIOLATION"
	ErrLLMUnavailable     ErrorCode = "LLM_UNAVAILABLE"
)

// UserFacing reports whether the code carries a message meant for the end user
func (c ErrorCode) UserFacing() bool {
	return c == ErrAmbiguousSpec || c == ErrUnsupportedMetric
}

// Error is returned by the pipeline when a question cannot be answered
type Error struct {
	Code          ErrorCode
	Message       string
	MissingFields []string
}

func (e *Error) Error() string {
	if len(e.MissingFields) > 0 {
		return fmt.Sprintf("%s: %s (missing: %s)", e.Code, e.Message, strings.Join(e.MissingFields, ", "))
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// PublicMessage hides internal details for codes that are not user facing
func (e *Error) PublicMessage() string {
	if e.Code.UserFacing() {
		return e.Message
	}
	return "the question could not be answered"
}
