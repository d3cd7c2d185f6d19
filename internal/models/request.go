package models

import (
	"fmt"
	"strings"

	"github.com/cortexai/analytics/internal/analytics"
)

// AnalyticsRequest for POST /api/v1/analytics/query
type AnalyticsRequest struct {
	Query      string `json:"query"`
	IntentHint string `json:"intent_hint,omitempty"`
	ModeHint   string `json:"mode_hint,omitempty"` // "dashboard" | "timeline"
	Execute    *bool  `json:"execute,omitempty"`
}

func (r *AnalyticsRequest) SetDefaults() {
	r.Query = strings.TrimSpace(r.Query)
	r.IntentHint = strings.TrimSpace(r.IntentHint)
	r.ModeHint = strings.ToLower(strings.TrimSpace(r.ModeHint))
	if r.ModeHint == "" {
		r.ModeHint = string(analytics.ModeDashboard)
	}
	if r.Execute == nil {
		execute := true
		r.Execute = &execute
	}
}

// Validate checks the hints; the query itself is checked by the prompt validator
func (r *AnalyticsRequest) Validate() error {
	if r.Query == "" {
		return fmt.Errorf("query is required")
	}
	switch analytics.Mode(r.ModeHint) {
	case analytics.ModeDashboard, analytics.ModeTimeline:
	default:
		return fmt.Errorf("mode_hint must be dashboard or timeline")
	}
	if r.IntentHint != "" {
		if _, ok := analytics.ParseIntent(r.IntentHint); !ok {
			return fmt.Errorf("unknown intent_hint %q", r.IntentHint)
		}
	}
	return nil
}

// Mode returns the validated display mode
func (r *AnalyticsRequest) Mode() analytics.Mode { return analytics.Mode(r.ModeHint) }

// ShouldExecute reports whether validated SQL should be run
func (r *AnalyticsRequest) ShouldExecute() bool { return r.Execute == nil || *r.Execute }

// ValidateSQLRequest for POST /api/v1/sql/validate
type ValidateSQLRequest struct {
	SQL string `json:"sql"`
}
