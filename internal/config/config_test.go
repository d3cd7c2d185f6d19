package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cortexai/analytics/internal/config"
)

// clearEnv neutralises variables the host environment might carry
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CORTEXAI_CONFIG", "CORTEXAI_PORT", "ANTHROPIC_API_KEY", "LLM_FALLBACK_ENABLED",
		"RULES_CONFIDENCE_THRESHOLD", "LLM_TIMEOUT_MS", "CATALOG_PATH", "DATABASE_URL",
		"ELASTICSEARCH_ENABLED", "ELASTICSEARCH_HOST", "BIGQUERY_DATASET", "BIGQUERY_TABLE",
		"CORTEXAI_CORS_ORIGINS",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != config.DefaultPort || cfg.APIPrefix != "/api/v1" {
		t.Errorf("server defaults = %d %s", cfg.Port, cfg.APIPrefix)
	}
	if cfg.RulesConfidenceThreshold != 0.9 || cfg.LLMTimeoutMs != config.DefaultLLMTimeoutMs {
		t.Errorf("llm defaults = %v %d", cfg.RulesConfidenceThreshold, cfg.LLMTimeoutMs)
	}
	if cfg.LLMEnabled() {
		t.Error("LLM enabled without a credential")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CORTEXAI_PORT", "9100")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("RULES_CONFIDENCE_THRESHOLD", "0.75")
	t.Setenv("LLM_TIMEOUT_MS", "1500")
	t.Setenv("DATABASE_URL", "postgres://kpi@localhost/kpis")
	t.Setenv("ELASTICSEARCH_ENABLED", "1")
	t.Setenv("ELASTICSEARCH_HOST", "es.local")
	t.Setenv("CORTEXAI_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 9100 || cfg.RulesConfidenceThreshold != 0.75 || cfg.LLMTimeoutMs != 1500 {
		t.Errorf("cfg = %+v", cfg)
	}
	if !cfg.LLMEnabled() || cfg.DatabaseURL == "" {
		t.Errorf("llm=%v db=%q", cfg.LLMEnabled(), cfg.DatabaseURL)
	}
	if got := cfg.ElasticsearchAddress(); got != "http://es.local:9200" {
		t.Errorf("es address = %s", got)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Errorf("cors = %v", cfg.CORSOrigins)
	}

	t.Setenv("LLM_FALLBACK_ENABLED", "false")
	cfg, _ = config.Load()
	if cfg.LLMEnabled() {
		t.Error("fallback disabled but LLMEnabled() is true")
	}
}

func TestLoadJSONThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "cortexai.json")
	body := `{"port": 8100, "catalog_path": "/etc/cortexai/catalog.json", "llm_model": "claude-haiku"}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CORTEXAI_CONFIG", path)
	t.Setenv("CORTEXAI_PORT", "8200")

	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 8200 {
		t.Errorf("env should win over file, port = %d", cfg.Port)
	}
	if cfg.CatalogPath != "/etc/cortexai/catalog.json" || cfg.LLMModel != "claude-haiku" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"RULES_CONFIDENCE_THRESHOLD": "1.5",
		"LLM_TIMEOUT_MS":             "-1",
		"BIGQUERY_DATASET":           "kpis",
	}
	for key, val := range tests {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, val)
			if _, err := config.Load(); err == nil {
				t.Errorf("%s=%s accepted", key, val)
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CORTEXAI_CONFIG", filepath.Join(t.TempDir(), "nope.json"))
		if _, err := config.Load(); err == nil {
			t.Error("missing config file accepted")
		}
	})
}
