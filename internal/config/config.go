package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Environment string `json:"environment"`
	APIPrefix   string `json:"api_prefix"`
	LogLevel    string `json:"log_level"`

	// CORS
	CORSOrigins []string `json:"cors_origins"`

	EnableAuditLogging bool `json:"enable_audit_logging"`

	// Catalog
	CatalogPath            string `json:"catalog_path"`
	CatalogWatch           bool   `json:"catalog_watch"`
	CatalogRefreshSchedule string `json:"catalog_refresh_schedule"` // cron, empty disables

	// KPI database
	DatabaseURL       string `json:"database_url"`
	DBMaxOpenConns    int    `json:"db_max_open_conns"`
	DBMaxIdleConns    int    `json:"db_max_idle_conns"`
	DBConnMaxLifetime int    `json:"db_conn_max_lifetime_seconds"`
	QueryTimeoutMs    int    `json:"query_timeout_ms"`
	MaxRows           int    `json:"max_rows"`

	// BigQuery column sync
	GCPProjectID                 string `json:"gcp_project_id"`
	GoogleApplicationCredentials string `json:"google_application_credentials"`
	BigQueryDataset              string `json:"bigquery_dataset"`
	BigQueryTable                string `json:"bigquery_table"`

	// Elasticsearch query log
	ElasticsearchEnabled     bool   `json:"elasticsearch_enabled"`
	ElasticsearchHost        string `json:"elasticsearch_host"`
	ElasticsearchPort        int    `json:"elasticsearch_port"`
	ElasticsearchScheme      string `json:"elasticsearch_scheme"`
	ElasticsearchUser        string `json:"elasticsearch_user"`
	ElasticsearchPassword    string `json:"elasticsearch_password"`
	ElasticsearchVerifyCerts bool   `json:"elasticsearch_verify_certs"`
	ElasticsearchMaxRetries  int    `json:"elasticsearch_max_retries"`
	ElasticsearchIndex       string `json:"elasticsearch_index"`

	// AI / LLM
	AnthropicAPIKey          string  `json:"anthropic_api_key"`
	AnthropicBaseURL         string  `json:"anthropic_base_url"` // override for a custom proxy
	LLMModel                 string  `json:"llm_model"`
	LLMFallbackEnabled       bool    `json:"llm_fallback_enabled"`
	LLMTimeoutMs             int     `json:"llm_timeout_ms"`
	LLMMaxTokens             int     `json:"llm_max_tokens"`
	LLMTemperature           float64 `json:"llm_temperature"`
	RulesConfidenceThreshold float64 `json:"rules_confidence_threshold"`
}

func Load() (*Config, error) {
	// .env is optional; variables may already be set in the environment
	_ = godotenv.Load()

	cfg := &Config{
		Host:                     DefaultHost,
		Port:                     DefaultPort,
		Environment:              DefaultEnvironment,
		APIPrefix:                DefaultAPIPrefix,
		LogLevel:                 DefaultLogLevel,
		CORSOrigins:              DefaultCORSOrigins,
		EnableAuditLogging:       true,
		CatalogWatch:             true,
		DBMaxOpenConns:           DefaultDBMaxOpenConns,
		DBMaxIdleConns:           DefaultDBMaxIdleConns,
		DBConnMaxLifetime:        int(DefaultDBConnMaxLifetime / time.Second),
		QueryTimeoutMs:           DefaultQueryTimeoutMs,
		MaxRows:                  DefaultMaxRows,
		ElasticsearchPort:        DefaultElasticsearchPort,
		ElasticsearchScheme:      DefaultElasticsearchScheme,
		ElasticsearchVerifyCerts: true,
		ElasticsearchMaxRetries:  DefaultElasticsearchMaxRetries,
		ElasticsearchIndex:       DefaultElasticsearchIndex,
		LLMModel:                 DefaultLLMModel,
		LLMFallbackEnabled:       true,
		LLMTimeoutMs:             DefaultLLMTimeoutMs,
		LLMMaxTokens:             DefaultLLMMaxTokens,
		LLMTemperature:           DefaultLLMTemperature,
		RulesConfidenceThreshold: DefaultRulesConfidenceThreshold,
	}

	// Load from JSON config file if specified
	if path := getEnv("CORTEXAI_CONFIG", ""); path != "" {
		if err := loadJSON(path, cfg); err != nil {
			return nil, err
		}
	}

	// Environment overrides
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.RulesConfidenceThreshold <= 0 || c.RulesConfidenceThreshold > 1 {
		return fmt.Errorf("rules_confidence_threshold must be in (0, 1], got %v", c.RulesConfidenceThreshold)
	}
	if c.LLMTimeoutMs <= 0 {
		return fmt.Errorf("llm_timeout_ms must be positive")
	}
	if (c.BigQueryDataset == "") != (c.BigQueryTable == "") {
		return fmt.Errorf("bigquery_dataset and bigquery_table must be set together")
	}
	return nil
}

// LLMEnabled reports whether the LLM fallbacks can run
func (c *Config) LLMEnabled() bool {
	return c.LLMFallbackEnabled && c.AnthropicAPIKey != ""
}

// ElasticsearchAddress joins scheme, host and port
func (c *Config) ElasticsearchAddress() string {
	return fmt.Sprintf("%s://%s:%d", c.ElasticsearchScheme, c.ElasticsearchHost, c.ElasticsearchPort)
}

func loadJSON(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Host, "CORTEXAI_HOST")
	setInt(&cfg.Port, "CORTEXAI_PORT")
	setString(&cfg.Environment, "CORTEXAI_ENV")
	setString(&cfg.LogLevel, "CORTEXAI_LOG_LEVEL")
	if v := getEnv("CORTEXAI_CORS_ORIGINS", ""); v != "" {
		cfg.CORSOrigins = parseCSV(v)
	}
	setBool(&cfg.EnableAuditLogging, "ENABLE_AUDIT_LOGGING")

	setString(&cfg.CatalogPath, "CATALOG_PATH")
	setBool(&cfg.CatalogWatch, "CATALOG_WATCH")
	setString(&cfg.CatalogRefreshSchedule, "CATALOG_REFRESH_SCHEDULE")

	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setInt(&cfg.DBMaxOpenConns, "DB_MAX_OPEN_CONNS")
	setInt(&cfg.QueryTimeoutMs, "QUERY_TIMEOUT_MS")
	setInt(&cfg.MaxRows, "MAX_ROWS")

	setString(&cfg.GCPProjectID, "GCP_PROJECT_ID")
	setString(&cfg.GoogleApplicationCredentials, "GOOGLE_APPLICATION_CREDENTIALS")
	setString(&cfg.BigQueryDataset, "BIGQUERY_DATASET")
	setString(&cfg.BigQueryTable, "BIGQUERY_TABLE")

	setBool(&cfg.ElasticsearchEnabled, "ELASTICSEARCH_ENABLED")
	setString(&cfg.ElasticsearchHost, "ELASTICSEARCH_HOST")
	setInt(&cfg.ElasticsearchPort, "ELASTICSEARCH_PORT")
	setString(&cfg.ElasticsearchScheme, "ELASTICSEARCH_SCHEME")
	setString(&cfg.ElasticsearchUser, "ELASTICSEARCH_USER")
	setString(&cfg.ElasticsearchPassword, "ELASTICSEARCH_PASSWORD")
	setBool(&cfg.ElasticsearchVerifyCerts, "ELASTICSEARCH_VERIFY_CERTS")
	setString(&cfg.ElasticsearchIndex, "ELASTICSEARCH_INDEX")

	setString(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	setString(&cfg.AnthropicBaseURL, "ANTHROPIC_BASE_URL")
	setString(&cfg.LLMModel, "LLM_MODEL")
	setBool(&cfg.LLMFallbackEnabled, "LLM_FALLBACK_ENABLED")
	setInt(&cfg.LLMTimeoutMs, "LLM_TIMEOUT_MS")
	if v := getEnv("RULES_CONFIDENCE_THRESHOLD", ""); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RulesConfidenceThreshold = f
		}
	}
}

func setString(dst *string, key string) {
	if v := getEnv(key, ""); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := getEnv(key, ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := getEnv(key, ""); v != "" {
		*dst = v == "true" || v == "1"
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v)
	}
	return fallback
}

func parseCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
