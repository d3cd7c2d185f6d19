package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cortexai/analytics/internal/analytics"
	"github.com/cortexai/analytics/internal/catalog"
	"github.com/cortexai/analytics/internal/observability"
	"github.com/cortexai/analytics/internal/security"
	"github.com/rs/zerolog/log"
)

const dateLayout = "2006-01-02"

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// SQLValidator is the safety gate every generated statement goes through
type SQLValidator interface {
	Validate(sql security.RawSQL) security.ValidationResult
}

// GenerationMetadata describes how the SQL was produced
type GenerationMetadata struct {
	Template       analytics.Template `json:"template"`
	ResolvedColumn string             `json:"resolved_column,omitempty"`
	Warnings       []string           `json:"warnings,omitempty"`
}

// SQLGenerationResult is the outcome of BuildSQLFromSpec. SQL is set only on success.
type SQLGenerationResult struct {
	Success       bool                   `json:"success"`
	SQL           *security.ValidatedSQL `json:"sql,omitempty"`
	UsedTemplate  bool                   `json:"used_template"`
	ErrorCode     analytics.ErrorCode    `json:"error_code,omitempty"`
	ErrorMessage  string                 `json:"error_message,omitempty"`
	MissingFields []string               `json:"missing_fields,omitempty"`
	Metadata      GenerationMetadata     `json:"metadata"`

	// RawSQL and SafetyPattern are kept for audit logs only
	RawSQL        security.RawSQL `json:"-"`
	SafetyPattern string          `json:"-"`
}

// Err converts a failed result into the pipeline error type
func (r SQLGenerationResult) Err() error {
	if r.Success {
		return nil
	}
	return &analytics.Error{Code: r.ErrorCode, Message: r.ErrorMessage, MissingFields: r.MissingFields}
}

// SQLGenerator builds SQL from a QuerySpec with fixed templates and falls
// back to the LLM only for spec shapes no template covers
type SQLGenerator struct {
	src       catalog.Source
	validator SQLValidator
	llm       Generator
	opts      LLMOptions
	timeout   time.Duration
}

// NewSQLGenerator wires the generator. gen may be nil.
func NewSQLGenerator(src catalog.Source, validator SQLValidator, gen Generator, opts LLMOptions, timeout time.Duration) *SQLGenerator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	opts = opts.withDefaults()
	return &SQLGenerator{src: src, validator: validator, llm: gen, opts: opts, timeout: timeout}
}

// BuildSQLFromSpec never returns unvalidated SQL
func (g *SQLGenerator) BuildSQLFromSpec(ctx context.Context, spec *analytics.QuerySpec, rag analytics.RagContext) SQLGenerationResult {
	if !spec.IsComplete() {
		missing := []string{"metric", "time_range"}
		if spec != nil && len(spec.MissingFields) > 0 {
			missing = append([]string(nil), spec.MissingFields...)
		}
		return SQLGenerationResult{
			ErrorCode:     analytics.ErrAmbiguousSpec,
			ErrorMessage:  "the question needs clarification before a query can be built",
			MissingFields: missing,
		}
	}

	col, ok := ResolveColumn(spec.Metric, rag)
	if !ok {
		return SQLGenerationResult{
			ErrorCode:    analytics.ErrUnsupportedMetric,
			ErrorMessage: fmt.Sprintf("metric %s is not available in the KPI table", spec.Metric),
		}
	}

	fact := g.src.Snapshot().FactTable()
	tmpl := SelectTemplate(spec)
	meta := GenerationMetadata{Template: tmpl, ResolvedColumn: col}

	var raw security.RawSQL
	var err error
	switch tmpl {
	case analytics.TemplateComparison:
		raw, err = comparisonSQL(fact, col, spec)
	case analytics.TemplateTimeseries:
		raw, err = timeseriesSQL(fact, col, spec)
	case analytics.TemplateAggregate:
		raw = aggregateSQL(fact, col, spec)
	case analytics.TemplateNone:
		raw, err = g.generateWithLLM(ctx, spec, rag, fact, col)
	}
	if err != nil {
		log.Error().Err(err).Str("template", tmpl.String()).Str("metric", spec.Metric).Msg("no SQL could be built for spec")
		return SQLGenerationResult{
			ErrorCode:    analytics.ErrNoTemplateMatch,
			ErrorMessage: "no query shape matches the question",
			Metadata:     meta,
		}
	}
	observability.ObserveTemplate(tmpl.String())

	vr := g.validator.Validate(raw)
	observability.ObserveValidation(vr.Valid)
	if !vr.Valid {
		log.Error().
			Str("template", tmpl.String()).
			Str("pattern", vr.Pattern).
			Str("reason", vr.ErrorMessage).
			Msg("generated SQL rejected by validator")
		return SQLGenerationResult{
			UsedTemplate:  tmpl != analytics.TemplateNone,
			ErrorCode:     analytics.ErrSQLSafetyViolation,
			ErrorMessage:  vr.ErrorMessage,
			Metadata:      meta,
			RawSQL:        raw,
			SafetyPattern: vr.Pattern,
		}
	}

	meta.Warnings = vr.Warnings
	return SQLGenerationResult{
		Success:      true,
		SQL:          vr.SanitizedSQL,
		UsedTemplate: tmpl != analytics.TemplateNone,
		Metadata:     meta,
		RawSQL:       raw,
	}
}

// ResolveColumn maps a metric onto a column: exact name, then the first
// preferred column of its definition, then the first column sharing its prefix
func ResolveColumn(metric string, rag analytics.RagContext) (string, bool) {
	name := strings.ToLower(strings.TrimSpace(metric))
	if name == "" {
		return "", false
	}
	if rag.HasColumn(name) {
		return safeIdent(name)
	}
	if d, ok := rag.Definition(metric); ok && len(d.PreferredColumns) > 0 {
		return safeIdent(strings.ToLower(d.PreferredColumns[0]))
	}
	for _, c := range rag.AvailableColumns {
		if strings.HasPrefix(c, name) {
			return safeIdent(c)
		}
	}
	return "", false
}

func safeIdent(col string) (string, bool) {
	if !identRe.MatchString(col) {
		return "", false
	}
	return col, true
}

// SelectTemplate picks the SQL shape; the cases are mutually exclusive
func SelectTemplate(spec *analytics.QuerySpec) analytics.Template {
	_, allTime := spec.TimeRange.(analytics.AllTime)
	switch {
	case spec.ComparisonMode:
		return analytics.TemplateComparison
	case len(spec.BankNames) > 1:
		return analytics.TemplateNone
	case !allTime:
		return analytics.TemplateTimeseries
	default:
		return analytics.TemplateAggregate
	}
}

func comparisonSQL(fact, col string, spec *analytics.QuerySpec) (security.RawSQL, error) {
	var conds []string
	if len(spec.BankNames) > 0 {
		quoted := make([]string, len(spec.BankNames))
		for i, b := range spec.BankNames {
			quoted[i] = quoteLiteral(b)
		}
		conds = append(conds, "banco_nombre IN ("+strings.Join(quoted, ", ")+")")
	}
	tf, err := timeFilter(spec.TimeRange)
	if err != nil {
		return "", err
	}
	if tf != "" {
		conds = append(conds, tf)
	}
	return security.RawSQL(fmt.Sprintf("SELECT fecha, banco_nombre, %s FROM %s%s ORDER BY fecha ASC, banco_nombre",
		col, fact, where(conds))), nil
}

func timeseriesSQL(fact, col string, spec *analytics.QuerySpec) (security.RawSQL, error) {
	var conds []string
	if len(spec.BankNames) == 1 {
		conds = append(conds, "banco_nombre = "+quoteLiteral(spec.BankNames[0]))
	}
	tf, err := timeFilter(spec.TimeRange)
	if err != nil {
		return "", err
	}
	if tf != "" {
		conds = append(conds, tf)
	}
	return security.RawSQL(fmt.Sprintf("SELECT fecha, banco_nombre, %s FROM %s%s ORDER BY fecha ASC",
		col, fact, where(conds))), nil
}

func aggregateSQL(fact, col string, spec *analytics.QuerySpec) security.RawSQL {
	var conds []string
	if len(spec.BankNames) == 1 {
		conds = append(conds, "banco_nombre = "+quoteLiteral(spec.BankNames[0]))
	}
	return security.RawSQL(fmt.Sprintf("SELECT AVG(%[1]s), MIN(%[1]s), MAX(%[1]s) FROM %[2]s%[3]s", col, fact, where(conds)))
}

func timeFilter(tr analytics.TimeRange) (string, error) {
	switch r := tr.(type) {
	case analytics.AllTime:
		return "", nil
	case analytics.LastNMonths:
		return fmt.Sprintf("fecha >= NOW() - INTERVAL '%d months'", r.N), nil
	case analytics.YearRange:
		start, end := r.Bounds()
		return fmt.Sprintf("fecha BETWEEN '%s' AND '%s'", start.Format(dateLayout), end.Format(dateLayout)), nil
	case analytics.BetweenDates:
		return fmt.Sprintf("fecha BETWEEN '%s' AND '%s'", r.Start.Format(dateLayout), r.End.Format(dateLayout)), nil
	}
	return "", fmt.Errorf("unsupported time range %T", tr)
}

func where(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

const sqlGenerationPrompt = `You are a PostgreSQL expert writing one query over the monthly banking KPI table %s.

MANDATORY RULES:
1. Use only SELECT. Never INSERT, UPDATE, DELETE, DROP, CREATE, ALTER, UNION or comments.
2. Use only the table %s and the columns listed below.
3. The metric column for this question is %s.
4. Filter banks with banco_nombre using the exact names given.
5. Always ORDER BY fecha ASC for time series.
6. If the question cannot be answered with these columns, reply exactly: IMPOSSIBLE
7. Reply with the SQL only, inside a single ` + "```sql" + ` block.

COLUMNS:
%s
%s
QUESTION SPEC:
metric=%s banks=%s time_range=%s comparison=%t

SQL:`

func (g *SQLGenerator) generateWithLLM(ctx context.Context, spec *analytics.QuerySpec, rag analytics.RagContext, fact, col string) (security.RawSQL, error) {
	if g.llm == nil {
		return "", ErrNoGenerator
	}

	var cols strings.Builder
	for _, c := range rag.AvailableColumns {
		cols.WriteString("- " + c)
		for _, sn := range rag.SchemaSnippets {
			if sn.ColumnName == c {
				cols.WriteString(": " + sn.Description)
				break
			}
		}
		cols.WriteString("\n")
	}
	var examples strings.Builder
	if len(rag.ExampleQueries) > 0 {
		examples.WriteString("\nEXAMPLES:\n")
		for _, ex := range rag.ExampleQueries {
			examples.WriteString("Q: " + ex.NL + "\nSQL: " + ex.SQL + "\n")
		}
	}

	prompt := fmt.Sprintf(sqlGenerationPrompt, fact, fact, col, cols.String(), examples.String(),
		spec.Metric, strings.Join(spec.BankNames, ","), spec.TimeRange, spec.ComparisonMode)

	llmCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	out, err := g.llm.Generate(llmCtx, GenerateRequest{
		Model:       g.opts.Model,
		Prompt:      prompt,
		Temperature: g.opts.Temperature,
		MaxTokens:   g.opts.MaxTokens,
	})
	if err != nil {
		outcome := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
		observability.ObserveLLMFallback("sqlgen", outcome)
		log.Warn().Err(err).Str("code", string(analytics.ErrLLMUnavailable)).Msg("SQL generation LLM unavailable")
		return "", fmt.Errorf("llm generate: %w", err)
	}
	if strings.EqualFold(strings.TrimSpace(out), "IMPOSSIBLE") {
		observability.ObserveLLMFallback("sqlgen", "impossible")
		return "", errors.New("llm generate: question not answerable")
	}
	sql := extractSQL(out)
	if sql == "" {
		observability.ObserveLLMFallback("sqlgen", "error")
		return "", fmt.Errorf("llm generate: no SQL in answer %q", truncate(out, 80))
	}
	observability.ObserveLLMFallback("sqlgen", "used")
	return security.RawSQL(sql), nil
}
