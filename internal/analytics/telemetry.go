package analytics

import "time"

// QueryEvent is the telemetry record emitted once per pipeline run
type QueryEvent struct {
	RunID           string    `json:"run_id"`
	Timestamp       time.Time `json:"@timestamp"`
	Query           string    `json:"query"`
	GeneratedSQL    string    `json:"generated_sql,omitempty"`
	Success         bool      `json:"success"`
	Confidence      float64   `json:"confidence"`
	ExecutionTimeMs int64     `json:"execution_time_ms"`
	Intent          Intent    `json:"intent,omitempty"`
	IntentSource    string    `json:"intent_source,omitempty"`
	Template        string    `json:"template,omitempty"`
	ErrorCode       ErrorCode `json:"error_code,omitempty"`
	RowCount        int       `json:"row_count"`
}
