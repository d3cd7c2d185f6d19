// Package analytics holds the value types shared by every stage of the
// natural-language analytics pipeline.
package analytics

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Intent is the coarse classification of what the user wants to see
type Intent string

const (
	IntentPointValue Intent = "point_value"
	IntentEvolution  Intent = "evolution"
	IntentComparison Intent = "comparison"
	IntentRanking    Intent = "ranking"
	IntentUnknown    Intent = "unknown"
)

// ParseIntent maps a loosely formatted label ("Evolution", "point value") to an Intent
func ParseIntent(s string) (Intent, bool) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	switch Intent(norm) {
	case IntentPointValue, IntentEvolution, IntentComparison, IntentRanking, IntentUnknown:
		return Intent(norm), true
	}
	return IntentUnknown, false
}

// ParsedIntent is the output of intent classification
type ParsedIntent struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
	Source     string  `json:"source"` // "rules" | "llm"
}

// Entities are optional pre-extracted hints passed to the classifier
type Entities struct {
	Metric       string
	Banks        []string
	HasTimeRange bool
}

// Granularity of the time axis requested by the user
type Granularity string

const (
	GranularityMonthly   Granularity = "monthly"
	GranularityQuarterly Granularity = "quarterly"
	GranularityYearly    Granularity = "yearly"
)

// Mode hints how the caller intends to display the answer
type Mode string

const (
	ModeDashboard Mode = "dashboard"
	ModeTimeline  Mode = "timeline"
)

// QuerySpec is the structured representation of one analytics question.
// It is built once per request by the parser and never mutated afterwards.
type QuerySpec struct {
	Metric                string
	BankNames             []string
	TimeRange             TimeRange
	ComparisonMode        bool
	Granularity           Granularity
	ConfidenceScore       float64
	RequiresClarification bool
	MissingFields         []string
}

// IsComplete reports whether the spec carries enough information to build SQL
func (s *QuerySpec) IsComplete() bool {
	if s == nil {
		return false
	}
	return s.Metric != "" && s.TimeRange != nil && s.TimeRange.Valid() && !s.RequiresClarification
}

func (s QuerySpec) MarshalJSON() ([]byte, error) {
	type view struct {
		Metric                string         `json:"metric"`
		BankNames             []string       `json:"bank_names"`
		TimeRange             *TimeRangeView `json:"time_range"`
		ComparisonMode        bool           `json:"comparison_mode"`
		Granularity           Granularity    `json:"granularity"`
		ConfidenceScore       float64        `json:"confidence_score"`
		RequiresClarification bool           `json:"requires_clarification"`
		MissingFields         []string       `json:"missing_fields"`
	}
	v := view{
		Metric:                s.Metric,
		BankNames:             s.BankNames,
		ComparisonMode:        s.ComparisonMode,
		Granularity:           s.Granularity,
		ConfidenceScore:       s.ConfidenceScore,
		RequiresClarification: s.RequiresClarification,
		MissingFields:         s.MissingFields,
	}
	if v.BankNames == nil {
		v.BankNames = []string{}
	}
	if v.MissingFields == nil {
		v.MissingFields = []string{}
	}
	if s.TimeRange != nil {
		tv := ViewOf(s.TimeRange)
		v.TimeRange = &tv
	}
	return json.Marshal(v)
}

// MetricDefinition describes how a metric maps onto physical columns
type MetricDefinition struct {
	MetricName       string   `json:"metric_name"`
	PreferredColumns []string `json:"preferred_columns"`
	Description      string   `json:"description"`
}

// ExampleQuery is a natural-language / SQL pair used only to seed LLM prompts
type ExampleQuery struct {
	NL     string `json:"nl"`
	SQL    string `json:"sql"`
	Metric string `json:"metric,omitempty"`
}

// SchemaSnippet documents one column of the fact table
type SchemaSnippet struct {
	ColumnName  string `json:"column_name"`
	Description string `json:"description"`
}

// RagContext is the slice of the catalog relevant to one QuerySpec
type RagContext struct {
	AvailableColumns  []string           `json:"available_columns"`
	MetricDefinitions []MetricDefinition `json:"metric_definitions"`
	ExampleQueries    []ExampleQuery     `json:"example_queries"`
	SchemaSnippets    []SchemaSnippet    `json:"schema_snippets"`
}

// HasColumn reports whether col is available in this context
func (c RagContext) HasColumn(col string) bool {
	for _, name := range c.AvailableColumns {
		if name == col {
			return true
		}
	}
	return false
}

// Definition returns the metric definition for metric, if any
func (c RagContext) Definition(metric string) (MetricDefinition, bool) {
	for _, d := range c.MetricDefinitions {
		if strings.EqualFold(d.MetricName, metric) {
			return d, true
		}
	}
	return MetricDefinition{}, false
}

// Template is one of the fixed SQL shapes the generator can emit
type Template int

const (
	TemplateNone Template = iota
	TemplateTimeseries
	TemplateComparison
	TemplateAggregate
)

func (t Template) String() string {
	switch t {
	case TemplateTimeseries:
		return "timeseries"
	case TemplateComparison:
		return "comparison"
	case TemplateAggregate:
		return "aggregate"
	case TemplateNone:
		return "none"
	}
	return fmt.Sprintf("template(%d)", int(t))
}

func (t Template) MarshalText() ([]byte, error) { return []byte(t.String()), nil }
