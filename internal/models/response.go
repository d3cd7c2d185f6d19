package models

import (
	"time"

	"github.com/cortexai/analytics/internal/analytics"
	"github.com/cortexai/analytics/internal/service"
	"github.com/cortexai/analytics/internal/viz"
)

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// AnalyticsResponse is returned by POST /api/v1/analytics/query
type AnalyticsResponse struct {
	Status          string                      `json:"status"`
	RunID           string                      `json:"run_id"`
	Query           string                      `json:"query"`
	Intent          *analytics.ParsedIntent     `json:"intent,omitempty"`
	Spec            *analytics.QuerySpec        `json:"spec,omitempty"`
	SQL             string                      `json:"sql,omitempty"`
	Generation      *service.GenerationMetadata `json:"generation,omitempty"`
	UsedTemplate    bool                        `json:"used_template"`
	Result          *service.QueryResult        `json:"result,omitempty"`
	Chart           *viz.ChartSpec              `json:"chart,omitempty"`
	ExecutionTimeMs int64                       `json:"execution_time_ms"`
}

// CatalogResponse is returned by GET /api/v1/catalog
type CatalogResponse struct {
	Version       uint64    `json:"version"`
	LoadedAt      time.Time `json:"loaded_at"`
	FactTable     string    `json:"fact_table"`
	AllowedTables []string  `json:"allowed_tables"`
	Metrics       []string  `json:"metrics"`
	Banks         []string  `json:"banks"`
	Columns       []string  `json:"columns"`
}
