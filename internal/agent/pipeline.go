package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cortexai/analytics/internal/analytics"
	"github.com/cortexai/analytics/internal/catalog"
	"github.com/cortexai/analytics/internal/models"
	"github.com/cortexai/analytics/internal/observability"
	"github.com/cortexai/analytics/internal/security"
	"github.com/cortexai/analytics/internal/service"
	"github.com/cortexai/analytics/internal/viz"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const telemetryTimeout = 2 * time.Second

// ErrPromptRejected is returned when a question fails prompt validation
var ErrPromptRejected = errors.New("prompt rejected")

// QueryRunner executes validated SQL. Only validator output can be passed in.
type QueryRunner interface {
	RunQuery(ctx context.Context, sql security.ValidatedSQL) (*service.QueryResult, error)
}

// QueryLogger receives one telemetry event per pipeline run
type QueryLogger interface {
	LogQuery(ctx context.Context, ev analytics.QueryEvent) error
}

// HandlerConfig wires the pipeline stages. Runner and Loggers are optional.
type HandlerConfig struct {
	Catalog    catalog.Source
	Prompts    *security.PromptValidator
	Classifier *service.IntentClassifier
	Parser     *service.SpecParser
	Context    *service.ContextService
	SQL        *service.SQLGenerator
	Runner     QueryRunner
	Loggers    []QueryLogger
	Audit      *security.AuditLogger
}

// AnalyticsHandler runs the NL→SQL→chart pipeline for one question at a time.
// It holds no per-request state and is safe for concurrent use.
type AnalyticsHandler struct {
	cat        catalog.Source
	prompts    *security.PromptValidator
	classifier *service.IntentClassifier
	parser     *service.SpecParser
	rag        *service.ContextService
	sql        *service.SQLGenerator
	runner     QueryRunner
	loggers    []QueryLogger
	audit      *security.AuditLogger
}

func NewAnalyticsHandler(cfg HandlerConfig) *AnalyticsHandler {
	if cfg.Audit == nil {
		cfg.Audit = security.NewAuditLogger(false)
	}
	if cfg.Prompts == nil {
		cfg.Prompts = security.NewPromptValidator()
	}
	return &AnalyticsHandler{
		cat:        cfg.Catalog,
		prompts:    cfg.Prompts,
		classifier: cfg.Classifier,
		parser:     cfg.Parser,
		rag:        cfg.Context,
		sql:        cfg.SQL,
		runner:     cfg.Runner,
		loggers:    cfg.Loggers,
		audit:      cfg.Audit,
	}
}

// HasRunner reports whether validated SQL is executed
func (h *AnalyticsHandler) HasRunner() bool { return h.runner != nil }

// Handle answers one question. The returned response is never nil; on failure
// it carries the run id and whatever stages completed, and err is either
// ErrPromptRejected, an *analytics.Error or an execution error.
func (h *AnalyticsHandler) Handle(ctx context.Context, req *models.AnalyticsRequest) (*models.AnalyticsResponse, error) {
	start := time.Now()
	runID := uuid.NewString()
	resp := &models.AnalyticsResponse{Status: "error", RunID: runID, Query: req.Query}
	ev := analytics.QueryEvent{RunID: runID, Timestamp: start.UTC(), Query: req.Query}

	finish := func(outcome string, err error) (*models.AnalyticsResponse, error) {
		elapsed := time.Since(start)
		resp.ExecutionTimeMs = elapsed.Milliseconds()
		ev.ExecutionTimeMs = resp.ExecutionTimeMs
		ev.Success = err == nil
		var aerr *analytics.Error
		if errors.As(err, &aerr) {
			ev.ErrorCode = aerr.Code
		}
		observability.ObservePipelineRun(outcome, elapsed)
		h.emit(ctx, ev)
		return resp, err
	}

	// 1. Prompt validation
	if check := h.prompts.Validate(req.Query); !check.Valid {
		h.audit.LogPromptRejected(runID, req.Query, check.Message)
		return finish("rejected", fmt.Errorf("%w: %s", ErrPromptRejected, check.Message))
	}

	// 2. Intent
	entities := h.parser.Entities(req.Query)
	intent := h.classify(ctx, req, &entities)
	resp.Intent = &intent
	ev.Intent, ev.IntentSource = intent.Intent, intent.Source

	// 3. Spec
	spec := h.parser.Parse(req.Query, intent.Intent, req.Mode())
	resp.Spec = &spec
	ev.Confidence = spec.ConfidenceScore

	// 4. Context and SQL
	rag := h.rag.RagContextForSpec(&spec, req.Query)
	gen := h.sql.BuildSQLFromSpec(ctx, &spec, rag)
	resp.UsedTemplate = gen.UsedTemplate
	ev.Template = gen.Metadata.Template.String()

	if !gen.Success {
		if gen.ErrorCode == analytics.ErrSQLSafetyViolation {
			h.audit.LogSafetyViolation(runID, string(gen.RawSQL), gen.SafetyPattern)
		}
		h.audit.LogGeneration(runID, req.Query, string(gen.RawSQL), ev.Template, false, time.Since(start).Milliseconds())
		log.Warn().
			Str("run_id", runID).
			Str("code", string(gen.ErrorCode)).
			Strs("missing", gen.MissingFields).
			Msg("no SQL generated")
		return finish(strings.ToLower(string(gen.ErrorCode)), gen.Err())
	}

	sql := gen.SQL.String()
	resp.SQL = sql
	resp.Generation = &gen.Metadata
	ev.GeneratedSQL = sql
	h.audit.LogGeneration(runID, req.Query, sql, ev.Template, true, time.Since(start).Milliseconds())

	// 5. Execution
	if h.runner != nil && req.ShouldExecute() {
		result, err := h.runner.RunQuery(ctx, *gen.SQL)
		if err != nil {
			log.Error().Err(err).Str("run_id", runID).Msg("query execution failed")
			return finish("execution_error", fmt.Errorf("execute query: %w", err))
		}
		resp.Result = result
		ev.RowCount = result.RowCount
	}

	// 6. Chart
	chart := h.recommend(intent, &spec, gen.Metadata.Template, resp.Result)
	resp.Chart = &chart

	resp.Status = "success"
	log.Info().
		Str("run_id", runID).
		Str("intent", string(intent.Intent)).
		Str("metric", spec.Metric).
		Str("template", ev.Template).
		Str("chart", chart.ChartType).
		Dur("elapsed", time.Since(start)).
		Msg("analytics query answered")
	return finish("success", nil)
}

// classify honours a caller supplied intent hint, otherwise runs the classifier
func (h *AnalyticsHandler) classify(ctx context.Context, req *models.AnalyticsRequest, entities *analytics.Entities) analytics.ParsedIntent {
	if req.IntentHint != "" {
		if hinted, ok := analytics.ParseIntent(req.IntentHint); ok && hinted != analytics.IntentUnknown {
			return analytics.ParsedIntent{Intent: hinted, Confidence: 1, Reasoning: "intent supplied by caller", Source: "hint"}
		}
	}
	return h.classifier.Classify(ctx, req.Query, entities)
}

func (h *AnalyticsHandler) recommend(intent analytics.ParsedIntent, spec *analytics.QuerySpec, tmpl analytics.Template, result *service.QueryResult) viz.ChartSpec {
	cat := h.cat.Snapshot()
	banks, points := shapeFromSpec(spec, tmpl, len(cat.Banks()))
	if result != nil {
		if rb, rp, ok := shapeFromRows(result); ok {
			banks, points = rb, rp
		}
	}

	chart := viz.Recommend(viz.RecommendInput{
		Intent:         intent.Intent,
		BankCount:      len(banks),
		TimePointCount: points,
		IsRanking:      intent.Intent == analytics.IntentRanking,
		IsComparison:   spec.ComparisonMode,
		IsDistribution: cat.IsDistributionMetric(spec.Metric),
	})
	return viz.EnhanceLayout(chart, len(banks), banks...)
}

// shapeFromSpec estimates the data shape before (or without) execution
func shapeFromSpec(spec *analytics.QuerySpec, tmpl analytics.Template, allBanks int) ([]string, int) {
	banks := spec.BankNames
	if tmpl == analytics.TemplateAggregate {
		if len(banks) == 0 {
			banks = []string{"SISTEMA"}
		}
		return banks, 1
	}
	if len(banks) == 0 {
		banks = make([]string, allBanks)
	}
	return banks, analytics.ExpectedPoints(spec.TimeRange)
}

// shapeFromRows counts distinct banks and dates in the returned rows. ok is
// false when the rows carry no bank or date column (aggregates).
func shapeFromRows(res *service.QueryResult) ([]string, int, bool) {
	hasBank, hasDate := false, false
	for _, c := range res.Columns {
		hasBank = hasBank || c == "banco_nombre"
		hasDate = hasDate || c == "fecha"
	}
	if !hasBank && !hasDate {
		return nil, 0, false
	}

	var banks []string
	seenBank := map[string]bool{}
	seenDate := map[string]bool{}
	for _, row := range res.Rows {
		if hasBank {
			b := fmt.Sprint(row["banco_nombre"])
			if !seenBank[b] {
				seenBank[b] = true
				banks = append(banks, b)
			}
		}
		if hasDate {
			seenDate[fmt.Sprint(row["fecha"])] = true
		}
	}
	points := len(seenDate)
	if !hasDate {
		points = 1
	}
	return banks, points, true
}

// emit sends telemetry without letting a cancelled request drop the event
func (h *AnalyticsHandler) emit(ctx context.Context, ev analytics.QueryEvent) {
	if len(h.loggers) == 0 {
		return
	}
	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), telemetryTimeout)
	defer cancel()
	for _, l := range h.loggers {
		if err := l.LogQuery(tctx, ev); err != nil {
			log.Warn().Err(err).Str("run_id", ev.RunID).Msg("query telemetry failed")
		}
	}
}
