package config

import "time"

const (
	DefaultHost        = "0.0.0.0"
	DefaultPort        = 8000
	DefaultEnvironment = "development"
	DefaultAPIPrefix   = "/api/v1"
	DefaultLogLevel    = "info"

	DefaultCatalogRefreshTimeout = 60 * time.Second

	DefaultDBMaxOpenConns    = 10
	DefaultDBMaxIdleConns    = 5
	DefaultDBConnMaxLifetime = 30 * time.Minute
	DefaultQueryTimeoutMs    = 30_000
	DefaultMaxRows           = 1000

	DefaultElasticsearchPort       = 9200
	DefaultElasticsearchScheme     = "http"
	DefaultElasticsearchMaxRetries = 3
	DefaultElasticsearchIndex      = "cortexai-queries"

	DefaultLLMModel                 = "claude-sonnet-4-6"
	DefaultLLMTimeoutMs             = 5_000
	DefaultLLMMaxTokens             = 512
	DefaultLLMTemperature           = 0.1
	DefaultRulesConfidenceThreshold = 0.9

	DefaultCORSMaxAge = 300
)

var DefaultCORSOrigins = []string{
	"http://localhost:3000",
	"http://localhost:8080",
}
