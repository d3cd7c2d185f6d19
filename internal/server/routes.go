package server

import (
	"context"
	"net/http"
	"time"

	"github.com/cortexai/analytics/internal/agent"
	"github.com/cortexai/analytics/internal/catalog"
	"github.com/cortexai/analytics/internal/handler"
	"github.com/cortexai/analytics/internal/middleware"
	"github.com/cortexai/analytics/internal/observability"
	"github.com/cortexai/analytics/internal/security"
	"github.com/cortexai/analytics/internal/service"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// setupServices builds every collaborator from config. Optional backends that
// fail to start are logged and left disabled; only the catalog is required.
func (s *Server) setupServices(ctx context.Context) error {
	cfg := s.cfg

	// ─── Warehouse column sync ──────────────────────────────────────────────────
	if cfg.GCPProjectID != "" && cfg.BigQueryDataset != "" {
		bq, err := service.NewBigQueryService(ctx, cfg.GCPProjectID, cfg.GoogleApplicationCredentials)
		if err != nil {
			log.Warn().Err(err).Msg("BigQuery service unavailable - catalog column sync disabled")
		} else {
			s.bqSvc = bq
		}
	}

	// ─── Catalog ────────────────────────────────────────────────────────────────
	loader := catalog.FileLoader(cfg.CatalogPath)
	if s.bqSvc != nil {
		loader = catalog.WithColumnSync(loader, s.bqSvc, cfg.BigQueryDataset, cfg.BigQueryTable)
	}
	store, err := catalog.NewStore(ctx, loader)
	if err != nil {
		return err
	}
	s.store = store

	if cfg.CatalogPath != "" && cfg.CatalogWatch {
		w, err := catalog.NewWatcher(cfg.CatalogPath, store)
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.CatalogPath).Msg("catalog file watch disabled")
		} else {
			s.watcher = w
		}
	}
	if cfg.CatalogRefreshSchedule != "" {
		c, err := catalog.StartRefresh(cfg.CatalogRefreshSchedule, store, catalogRefreshTimeout)
		if err != nil {
			return err
		}
		s.cron = c
	}

	// ─── KPI database ───────────────────────────────────────────────────────────
	if cfg.DatabaseURL != "" {
		db, err := service.OpenPostgres(ctx, service.DBConfig{
			DSN:             cfg.DatabaseURL,
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifetime) * time.Second,
		})
		if err != nil {
			log.Warn().Err(err).Msg("KPI database unavailable - queries will not be executed")
		} else {
			s.runner = service.NewPostgresRunner(db, time.Duration(cfg.QueryTimeoutMs)*time.Millisecond)
		}
	}

	// ─── Query log ──────────────────────────────────────────────────────────────
	if cfg.ElasticsearchEnabled {
		idx, err := service.NewQueryLogIndex(service.ESConfig{
			Addresses:   []string{cfg.ElasticsearchAddress()},
			Username:    cfg.ElasticsearchUser,
			Password:    cfg.ElasticsearchPassword,
			VerifyCerts: cfg.ElasticsearchVerifyCerts,
			MaxRetries:  cfg.ElasticsearchMaxRetries,
			Index:       cfg.ElasticsearchIndex,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Elasticsearch query log unavailable")
		} else {
			s.queryLog = idx
		}
	}

	log.Info().
		Str("catalog_path", cfg.CatalogPath).
		Bool("catalog_watch", s.watcher != nil).
		Bool("catalog_column_sync", s.bqSvc != nil).
		Bool("query_execution", s.runner != nil).
		Bool("query_log", s.queryLog != nil).
		Bool("llm_fallback", cfg.LLMEnabled()).
		Bool("audit_logging", cfg.EnableAuditLogging).
		Msg("service configuration")

	if cfg.LLMFallbackEnabled && cfg.AnthropicAPIKey == "" {
		log.Warn().Msg("ANTHROPIC_API_KEY not set - LLM fallbacks disabled, rules and templates only")
	}
	return nil
}

// pipeline assembles the analytics pipeline over the live catalog store
func (s *Server) pipeline() (*agent.AnalyticsHandler, *security.SQLValidator, *security.AuditLogger) {
	cfg := s.cfg
	store := s.store

	validator := security.NewSQLValidator(func(table string) bool {
		return store.Snapshot().IsAllowedTable(table)
	}, cfg.MaxRows)
	audit := security.NewAuditLogger(cfg.EnableAuditLogging)

	opts := service.LLMOptions{
		Model:       cfg.LLMModel,
		Temperature: cfg.LLMTemperature,
		MaxTokens:   cfg.LLMMaxTokens,
	}
	llmTimeout := time.Duration(cfg.LLMTimeoutMs) * time.Millisecond

	var gen service.Generator
	var intentLLM service.IntentSource
	if cfg.LLMEnabled() {
		g := agent.NewAnthropicGenerator(cfg.AnthropicAPIKey, cfg.LLMModel, cfg.AnthropicBaseURL)
		opts.Model = g.Model()
		gen = g
		intentLLM = service.NewLLMSource(g, opts)
	}

	hc := agent.HandlerConfig{
		Catalog: store,
		Classifier: service.NewIntentClassifier(service.NewRuleSource(), intentLLM, service.ClassifierConfig{
			LLMFallbackEnabled:       cfg.LLMFallbackEnabled,
			RulesConfidenceThreshold: cfg.RulesConfidenceThreshold,
			LLMTimeout:               llmTimeout,
		}),
		Parser:  service.NewSpecParser(store),
		Context: service.NewContextService(store),
		SQL:     service.NewSQLGenerator(store, validator, gen, opts, llmTimeout),
		Audit:   audit,
	}
	if s.runner != nil {
		hc.Runner = s.runner
	}
	if s.queryLog != nil {
		hc.Loggers = append(hc.Loggers, s.queryLog)
	}
	return agent.NewAnalyticsHandler(hc), validator, audit
}

func (s *Server) setupRoutes() http.Handler {
	cfg := s.cfg
	pipeline, validator, audit := s.pipeline()

	// ─── Handlers ────────────────────────────────────────────────────────────────
	checks := map[string]handler.HealthChecker{
		"postgres":      nil,
		"elasticsearch": nil,
		"bigquery":      nil,
	}
	if s.runner != nil {
		checks["postgres"] = handler.CheckFunc(s.runner.Ping)
	}
	if s.queryLog != nil {
		checks["elasticsearch"] = s.queryLog
	}
	if s.bqSvc != nil {
		checks["bigquery"] = s.bqSvc
	}
	healthH := handler.NewHealthHandler(checks)
	queryH := handler.NewQueryHandler(pipeline)
	validateH := handler.NewValidateHandler(validator, audit)
	catalogH := handler.NewCatalogHandler(s.store)

	var telemetryH *handler.TelemetryHandler
	if s.queryLog != nil {
		telemetryH = handler.NewTelemetryHandler(s.queryLog)
	}

	// ─── Router ──────────────────────────────────────────────────────────────────
	r := chi.NewRouter()

	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSOrigins)))
	r.Use(chiMiddleware.RealIP)
	r.Use(observability.MetricsMiddleware)

	r.Get("/health", healthH.Health)
	r.Get("/", healthH.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route(cfg.APIPrefix, func(r chi.Router) {
		r.Post("/analytics/query", queryH.Query)
		r.Post("/sql/validate", validateH.Validate)
		r.Get("/catalog", catalogH.Get)
		r.Post("/catalog/reload", catalogH.Reload)
		if telemetryH != nil {
			r.Get("/telemetry/failures", telemetryH.Failures)
		}
	})

	return r
}
